package config

import (
	"os"
	"strings"
)

// ExpandEnv substitutes ${VAR} and ${VAR:-default} references in s with
// the named environment variable, or default when the variable is
// unset or empty. Unlike os.Expand, it understands the ":-default"
// fallback syntax so config files can declare a value and still work
// in environments that never set the variable.
func ExpandEnv(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	for {
		start := strings.Index(s, "${")
		if start == -1 {
			b.WriteString(s)
			break
		}
		end := strings.IndexByte(s[start:], '}')
		if end == -1 {
			b.WriteString(s)
			break
		}
		end += start

		b.WriteString(s[:start])
		b.WriteString(expandRef(s[start+2 : end]))
		s = s[end+1:]
	}

	return b.String()
}

// expandRef resolves the body of a single ${...} reference, e.g.
// "HOME" or "AMANMCP_LOG_LEVEL:-info".
func expandRef(ref string) string {
	name, def, hasDefault := strings.Cut(ref, ":-")
	if v, ok := os.LookupEnv(name); ok && v != "" {
		return v
	}
	if hasDefault {
		return def
	}
	return ""
}
