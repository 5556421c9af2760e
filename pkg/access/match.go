package access

import "strings"

// MatchPattern reports whether a permission path pattern matches a
// request. Patterns are method-qualified strings of the form
// "<verb> <url-pattern>", verb lowercase, with an optional trailing "*"
// meaning "this exact prefix or anything nested below it". There is no
// mid-string wildcard support, and overlapping patterns are not ranked
// by specificity. This exact format is the wire contract between
// extension authors and the decision engine and must be preserved
// byte-for-byte.
func MatchPattern(pattern, method, path string) bool {
	target := strings.ToLower(method) + " " + path
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(target, pattern[:len(pattern)-1])
	}
	return target == pattern
}
