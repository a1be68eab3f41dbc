package tenant

import "strings"

// Sanitize lowercases a handle and strips everything outside [a-z0-9-],
// yielding a DNS-label-safe fragment. The mapping is deterministic.
func Sanitize(handle string) string {
	lowered := strings.ToLower(handle)

	var b strings.Builder
	b.Grow(len(lowered))

	for _, r := range lowered {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '-' {
			b.WriteRune(r)
		}
	}

	return b.String()
}
