package codegen

import (
	"janet/internal/ast"
	"janet/internal/types"
)

// ---------------------------------------------------------------------------
// Operators
// ---------------------------------------------------------------------------

// divides reports whether op on t goes through the guarded divisor helpers,
// which read the divisor more than once.
func divides(op string, t *types.Type) bool {
	return (op == "/" || op == "%") && t != nil && t.IsIntegral()
}

// negate spells -a with two's complement wrap-around.
func negate(t *types.Type, a string) string {
	if t.Kind == types.Long {
		return "((jlong)(0ull - (unsigned long long)(" + a + ")))"
	}
	return "((jint)(0u - (unsigned int)(" + a + ")))"
}

func (l *lowerer) prepareBinary(x *ast.Binary, f flags) {
	switch x.Op {
	case "&&", "||":
		// The right operand runs conditionally, so both stay inline.
		l.prepare(x.L, 0)
		l.prepare(x.R, 0)
	default:
		lf := flags(0)
		if effectful(x.R) {
			lf = flagReusable | flagStable
		}
		rf := flags(0)
		if divides(x.Op, x.Type) {
			rf = flagReusable
			// The divisor check runs before the dividend is read.
			if effectful(x.L) {
				lf |= flagReusable
			}
		}
		l.prepare(x.L, lf)
		l.prepare(x.R, rf)
	}
	if x.Type != nil && !x.Type.IsPrimitive() {
		l.fail(x, "string concatenation is not supported")
	}
	l.materialize(x, f, false)
}

func (l *lowerer) lowerBinary(x *ast.Binary) *lowered {
	if x.Op == "&&" || x.Op == "||" {
		return &lowered{op: "(" + l.value(x.L, false) + " " + x.Op + " " + l.value(x.R, false) + " ? JNI_TRUE : JNI_FALSE)"}
	}
	lw := &lowered{}
	l.hoist(&lw.pre, x.L)
	l.hoist(&lw.pre, x.R)
	lw.op = l.arith(x.Op, x.Type, l.use(x.L, false), l.use(x.R, false))
	return lw
}

// arith spells the binary operator op on operands of type t.
func (l *lowerer) arith(op string, t *types.Type, a, b string) string {
	switch op {
	case "/":
		if t.IsIntegral() {
			// MIN / -1 overflows in C; negating through the unsigned type wraps
			// back to MIN.
			return "(" + l.local("ENSURE_DIVISOR_NOT_ZERO") + "(" + b + "), ((" + b + ") == -1 ? " + negate(t, a) + " : (" + a + ") / (" + b + ")))"
		}
	case "%":
		switch t.Kind {
		case types.Float:
			return "fmodf(" + a + ", " + b + ")"
		case types.Double:
			return "fmod(" + a + ", " + b + ")"
		}
		// x % -1 is 0 for every x; C leaves MIN % -1 undefined.
		return "(" + l.local("ENSURE_DIVISOR_NOT_ZERO") + "(" + b + "), ((" + b + ") == -1 ? 0 : (" + a + ") % (" + b + ")))"
	case "<<", ">>":
		return "(" + a + " " + op + " (" + b + " & " + shiftMask(t) + "))"
	case ">>>":
		if t.Kind == types.Long {
			return "((jlong)((unsigned long long)" + a + " >> (" + b + " & 0x3f)))"
		}
		return "((jint)((unsigned int)" + a + " >> (" + b + " & 0x1f)))"
	case "&", "|", "^":
		if t.Kind == types.Boolean {
			return "((jboolean)(" + a + " " + op + " " + b + "))"
		}
	}
	return "(" + a + " " + op + " " + b + ")"
}

func shiftMask(t *types.Type) string {
	if t.Kind == types.Long {
		return "0x3f"
	}
	return "0x1f"
}

func (l *lowerer) lowerRelational(x *ast.Relational) *lowered {
	lw := &lowered{}
	l.hoist(&lw.pre, x.L)
	l.hoist(&lw.pre, x.R)
	lt, rt := refType(x.L), refType(x.R)
	if lt == nil || rt == nil || !lt.IsReference() || !rt.IsReference() || lt.Kind == types.Null || rt.Kind == types.Null {
		lw.op = "(" + l.use(x.L, false) + " " + x.Op + " " + l.use(x.R, false) + " ? JNI_TRUE : JNI_FALSE)"
		return lw
	}
	var same string
	if l.isMulti(x.L) && l.isMulti(x.R) {
		same = "_JANET_MULTIREF_COMPARE(" + l.use(x.L, true) + ", " + l.use(x.R, true) + ")"
	} else {
		same = "_JANET_SIMPLE_COMPARE(" + l.use(x.L, false) + ", " + l.use(x.R, false) + ")"
	}
	if x.Op == "!=" {
		lw.op = "(" + same + " ? JNI_FALSE : JNI_TRUE)"
	} else {
		lw.op = "(" + same + " ? JNI_TRUE : JNI_FALSE)"
	}
	return lw
}

func (l *lowerer) lowerUnary(x *ast.Unary) *lowered {
	lw := &lowered{}
	l.hoist(&lw.pre, x.X)
	v := l.use(x.X, false)
	if x.Op == "!" {
		lw.op = "(" + v + " ? JNI_FALSE : JNI_TRUE)"
	} else {
		lw.op = "(" + x.Op + v + ")"
	}
	return lw
}
