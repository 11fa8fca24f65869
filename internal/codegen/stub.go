package codegen

import (
	"fmt"
	"strings"
	"unicode/utf16"

	"janet/internal/ast"
	"janet/internal/semantic"
	"janet/internal/types"
)

// ---------------------------------------------------------------------------
// Names
// ---------------------------------------------------------------------------

// mangle escapes s for use inside a JNI symbol name.
func mangle(s string) string {
	var b strings.Builder
	for _, u := range utf16.Encode([]rune(s)) {
		switch c := rune(u); {
		case c == '.' || c == '/':
			b.WriteByte('_')
		case c == '_':
			b.WriteString("_1")
		case c == ';':
			b.WriteString("_2")
		case c == '[':
			b.WriteString("_3")
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			b.WriteRune(c)
		default:
			fmt.Fprintf(&b, "_0%04x", u)
		}
	}
	return b.String()
}

// symbol returns prefix_<class>_<method>, with the mangled parameter
// signatures appended when the class overloads the name.
func symbol(prefix string, m *types.Method) string {
	s := prefix + "_" + mangle(m.Owner.Name) + "_" + mangle(m.Name)
	if m.Owner.DeclaresOverloads(m.Name) {
		s += "__"
		for _, p := range m.Params {
			s += mangle(p.Signature())
		}
	}
	return s
}

// memberName is the name a method entry is looked up by.
func memberName(m *types.Method) string {
	if m.Ctor {
		return "<init>"
	}
	return m.Name
}

// cString renders s as the body of a C string literal holding its
// modified UTF-8 encoding.
func cString(s string) string {
	var b strings.Builder
	for _, c := range modifiedUTF8(s) {
		switch {
		case c == '\\' || c == '"' || c == '?' || c == '\'':
			b.WriteByte('\\')
			b.WriteByte(c)
		case c < 0x20 || c >= 0x7f:
			fmt.Fprintf(&b, "\\%03o", c)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// modifiedUTF8 encodes s the way the VM stores string constants: NUL takes
// two bytes and supplementary characters are written as surrogate pairs.
func modifiedUTF8(s string) []byte {
	var out []byte
	for _, u := range utf16.Encode([]rune(s)) {
		switch {
		case u == 0:
			out = append(out, 0xc0, 0x80)
		case u <= 0x7f:
			out = append(out, byte(u))
		case u <= 0x7ff:
			out = append(out, byte(0xc0|(u>>6)&0x1f), byte(0x80|u&0x3f))
		default:
			out = append(out, byte(0xe0|(u>>12)&0x0f), byte(0x80|(u>>6)&0x3f), byte(0x80|u&0x3f))
		}
	}
	return out
}

// commentText makes s safe inside a C block comment.
func commentText(s string) string {
	return strings.ReplaceAll(s, "*/", "* /")
}

// ---------------------------------------------------------------------------
// Stub file
// ---------------------------------------------------------------------------

// stubWriter writes the JNI side of one class: the dependency tables, the
// class init and finalize entry points and one exported stub per native
// method.
type stubWriter struct {
	b        strings.Builder
	cls      *semantic.Class
	comments bool
}

func (w *stubWriter) printf(format string, args ...any) {
	fmt.Fprintf(&w.b, format, args...)
}

func (w *stubWriter) tables() {
	reg := w.cls.Deps

	if len(reg.Classes) == 0 {
		w.printf("#define _janet_depclasses ((void*)0)\n\n")
	} else {
		w.printf("static _janet_cls _janet_depclasses[] = {\n")
		for i, t := range reg.Classes {
			self := 0
			if i == 0 {
				self = 1
			}
			w.printf("   { 0, %d, \"%s\" },\n", self, cString(t.JNIName()))
		}
		w.printf("};\n\n")
	}

	if len(reg.Fields) == 0 {
		w.printf("#define _janet_depfields ((void*)0)\n\n")
	} else {
		w.printf("static _janet_fld _janet_depfields[] = {\n")
		for _, f := range reg.Fields {
			w.printf("   { 0, &_janet_depclasses[%d], %d, \"%s\", \"%s\" },\n",
				f.Class, flag(f.Field.Static), cString(f.Field.Name), cString(f.Field.Type.Signature()))
		}
		w.printf("};\n\n")
	}

	if len(reg.Methods) == 0 {
		w.printf("#define _janet_depmethods ((void*)0)\n\n")
	} else {
		w.printf("static _janet_mth _janet_depmethods[] = {\n")
		for _, m := range reg.Methods {
			w.printf("   { 0, &_janet_depclasses[%d], %d, \"%s\", \"%s\" },\n",
				m.Class, flag(m.Method.Static), cString(memberName(m.Method)), cString(m.Method.Descriptor()))
		}
		w.printf("};\n\n")
	}

	if len(reg.Strings) == 0 {
		w.printf("#define _janet_depstrings ((void*)0)\n\n")
	} else {
		w.printf("static _janet_str _janet_depstrings[] = {\n")
		for _, s := range reg.Strings {
			w.printf("   { 0, \"%s\" },\n", cString(s))
		}
		w.printf("};\n\n")
	}
}

func flag(b bool) int {
	if b {
		return 1
	}
	return 0
}

// lifecycle writes the entry points the host class calls from its static
// initializer and finalizer.
func (w *stubWriter) lifecycle() {
	reg := w.cls.Deps
	owner := w.cls.Decl.Class

	w.printf("JNIEXPORT void JNICALL\nJava_%s_%s(\n        JNIEnv* _janet_jnienv,\n        jclass _janet_jthisclass)\n",
		mangle(owner.Name), mangle("janetClassInit$"))
	w.printf("{\n    _JANET_INIT();\n")
	w.printf("    _JANET_LINK(_janet_depclasses, %d, _janet_depfields, %d, _janet_depmethods, %d, _janet_depstrings, %d);\n}\n\n",
		len(reg.Classes), len(reg.Fields), len(reg.Methods), len(reg.Strings))

	w.printf("JNIEXPORT void JNICALL\nJava_%s_%s(\n        JNIEnv* _janet_jnienv,\n        jclass _janet_jthisclass)\n",
		mangle(owner.Name), mangle("janetClassFinalize$"))
	w.printf("{\n    _JANET_UNLINK(_janet_depclasses, %d);\n    _JANET_FINALIZE();\n}\n\n", len(reg.Classes))
}

// stub writes the forward declaration of the implementation function of nm
// followed by its exported JNI entry point.
func (w *stubWriter) stub(nm *semantic.NativeMethod) {
	m := nm.Decl.Method
	u := nm.Usage
	reg := w.cls.Deps

	w.printf("%s %s(%s);\n\n", m.Return.ABIName(), symbol("Janet", m), strings.Join(implParams(nm, true), ","))

	w.printf("JNIEXPORT %s JNICALL\n%s(\n        JNIEnv* _janet_jnienv,\n        %s", m.Return.ABIName(), symbol("Java", m), receiverParam(m))
	for _, p := range nm.Decl.Params {
		w.printf(",\n        %s %s", p.Type.Type.ABIName(), argName(p))
	}
	w.printf(")\n{\n")

	if u.UsesPrimitiveArrays() {
		pins := u.PinTable()
		w.printf("    _janet_arr _janet_arrhtdata[%d] = { { 0, 0, 0, 0, 0, 0, 0, 0, 0 } };\n", pins.Size())
		w.printf("    _janet_arrHashTable _janet_arrhtable = { %d, 0, %d, 0 };\n\n", pins.Index(), pins.HighWater())
	}
	if n := u.Synchronized(); n > 0 {
		w.printf("    jobject _janet_monitors[%d] = { 0 };\n", n)
	}
	suffix := "_V"
	void := m.Return == types.VoidType
	if !void {
		suffix = "_N"
		w.printf("    %s _janet_result;\n\n", m.Return.ABIName())
	}
	if u.UsesPrimitiveArrays() {
		w.printf("    _janet_arrhtable.data = _janet_arrhtdata;\n\n")
	}

	for _, i := range u.Classes.Sorted() {
		w.printf("    _JANET_LOAD_CLASS%s(%d);", suffix, i)
		w.loadComment(reg.Classes[i].JNIName())
	}
	for _, i := range u.Fields.Sorted() {
		f := reg.Fields[i]
		w.printf("    _JANET_LOAD_FIELD%s(%d);", suffix, i)
		w.loadComment(reg.Classes[f.Class].JNIName() + "/" + f.Field.Name + " " + f.Field.Type.Signature())
	}
	for _, i := range u.Methods.Sorted() {
		mr := reg.Methods[i]
		w.printf("    _JANET_LOAD_METHOD%s(%d);", suffix, i)
		w.loadComment(reg.Classes[mr.Class].JNIName() + "/" + memberName(mr.Method) + mr.Method.Descriptor())
	}
	for _, i := range u.Strings.Sorted() {
		w.printf("    _JANET_LOAD_STRING%s(%d);", suffix, i)
		w.loadComment(reg.Strings[i])
	}

	if void {
		w.printf("    ")
	} else {
		w.printf("    _janet_result = ")
	}
	w.printf("%s(%s);\n\n", symbol("Janet", m), strings.Join(implParams(nm, false), ","))

	if u.UsesPrimitiveArrays() {
		w.printf("    _jh3_releaseHashTable(_janet_jnienv, &_janet_arrhtable);\n\n")
	}
	if n := u.Synchronized(); n > 0 {
		w.printf("    _jm1_releaseMonitors(_janet_jnienv, _janet_monitors, %d);\n\n", n)
	}
	if !void {
		w.printf("    return _janet_result;\n")
	}
	w.printf("}\n\n")
}

func (w *stubWriter) loadComment(s string) {
	if w.comments {
		w.printf(" /* %s */", commentText(s))
	}
	w.printf("\n")
}

func receiverParam(m *types.Method) string {
	if m.Static {
		return "jclass _janet_jthisclass"
	}
	return "jobject _janet_jthis"
}

// implParam is one parameter of an implementation function: its C type,
// its name inside the function and the argument the stub passes for it.
type implParam struct {
	typ, name, arg string
}

// implSignature lists the parameters of the implementation function of nm
// after the JNI environment. Tables the method does not use are left out.
func implSignature(nm *semantic.NativeMethod) []implParam {
	m := nm.Decl.Method
	u := nm.Usage
	var ps []implParam
	if u.UsesClassTable() {
		ps = append(ps, implParam{"_janet_cls*", "_janet_classes", "_janet_depclasses"})
	}
	if len(u.Fields) > 0 {
		ps = append(ps, implParam{"_janet_fld*", "_janet_fields", "_janet_depfields"})
	}
	if len(u.Methods) > 0 {
		ps = append(ps, implParam{"_janet_mth*", "_janet_methods", "_janet_depmethods"})
	}
	if len(u.Strings) > 0 {
		ps = append(ps, implParam{"_janet_str*", "_janet_strings", "_janet_depstrings"})
	}
	if u.UsesPrimitiveArrays() {
		ps = append(ps, implParam{"_janet_arrHashTable*", "_janet_arrhtable", "&_janet_arrhtable"})
	}
	if u.Synchronized() > 0 {
		ps = append(ps, implParam{"jobject*", "_janet_monitors", "_janet_monitors"})
	}
	if m.Static {
		ps = append(ps, implParam{"jclass", "_janet_jthisclass", "_janet_jthisclass"})
	} else {
		ps = append(ps, implParam{"jobject", "_janet_jthis", "_janet_jthis"})
	}
	for _, p := range nm.Decl.Params {
		ps = append(ps, implParam{p.Type.Type.ABIName(), argName(p), argName(p)})
	}
	return ps
}

// implParams renders the implementation parameters one per line, as types
// for the forward declaration or as the arguments of the stub's call.
func implParams(nm *semantic.NativeMethod, decl bool) []string {
	out := []string{"\n        _janet_jnienv"}
	if decl {
		out[0] = "\n        JNIEnv*"
	}
	for _, p := range implSignature(nm) {
		if decl {
			out = append(out, "\n        "+p.typ)
		} else {
			out = append(out, "\n        "+p.arg)
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// Implementation file
// ---------------------------------------------------------------------------

// implHeader returns the definition header of the implementation function
// of nm.
func implHeader(nm *semantic.NativeMethod, lang *Language) string {
	var b strings.Builder
	if lang.Linkage != "" {
		b.WriteString("\n" + lang.Linkage)
	}
	m := nm.Decl.Method
	b.WriteString("\n" + m.Return.ABIName() + " " + symbol("Janet", m) + "(\n    JNIEnv* _janet_jnienv")
	for _, p := range implSignature(nm) {
		b.WriteString(",\n    " + p.typ + " " + p.name)
	}
	b.WriteString(")")
	return b.String()
}

// staticNative returns the text of a class-level native block.
func staticNative(s *ast.StaticNative) string {
	return s.Text + "\n"
}
