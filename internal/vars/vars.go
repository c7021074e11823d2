// Package vars implements {{variable}} placeholder substitution for request
// templating. Placeholders whose identifier is missing from the variable map
// are left verbatim, delimiters included, so a template never silently loses
// content. Substituted values are inserted as-is and never re-scanned, which
// makes re-running substitution with the same variables a no-op.
package vars

import "regexp"

// placeholder matches {{identifier}} where identifier is one or more word
// characters (letters, digits, underscore).
var placeholder = regexp.MustCompile(`\{\{(\w+)\}\}`)

// Substitute replaces every {{name}} occurrence in s with variables[name].
// Unknown names stay untouched. Empty input passes through unchanged.
func Substitute(s string, variables map[string]string) string {
	if s == "" || len(variables) == 0 {
		return s
	}
	return placeholder.ReplaceAllStringFunc(s, func(match string) string {
		name := match[2 : len(match)-2]
		if value, ok := variables[name]; ok {
			return value
		}
		return match
	})
}

// SubstituteMap applies Substitute to every value of m, preserving keys.
// Keys are never substituted. A nil map yields nil.
func SubstituteMap(m map[string]string, variables map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = Substitute(v, variables)
	}
	return out
}

// SubstitutePtr applies Substitute through an optional string, passing nil through.
func SubstitutePtr(s *string, variables map[string]string) *string {
	if s == nil {
		return nil
	}
	out := Substitute(*s, variables)
	return &out
}
