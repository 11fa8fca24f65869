package codegen

import (
	"fmt"
	"sort"
	"strings"
)

// Language describes how implementation files of one native language are
// written. Both registered languages share the C scanner of the front end.
type Language struct {
	Name string
	// ImplExt is the extension of the implementation file.
	ImplExt string
	// Linkage prefixes every implementation function.
	Linkage string
}

var languages = map[string]*Language{
	"c":         {Name: "c", ImplExt: ".c"},
	"cplusplus": {Name: "cplusplus", ImplExt: ".cc", Linkage: `extern "C"`},
}

// CanonicalLanguage folds a language name as written in a native
// declaration: "C++" becomes "cplusplus".
func CanonicalLanguage(name string) string {
	s := strings.ToLower(name)
	s = strings.ReplaceAll(s, "+", "plus")
	return strings.ReplaceAll(s, "-", "minus")
}

// LookupLanguage returns the registered language called name.
func LookupLanguage(name string) (*Language, error) {
	if l, ok := languages[CanonicalLanguage(name)]; ok {
		return l, nil
	}
	return nil, fmt.Errorf("unsupported native language %q (known: %s)", name, strings.Join(Languages(), ", "))
}

// Languages lists the registered language names.
func Languages() []string {
	out := make([]string, 0, len(languages))
	for name := range languages {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
