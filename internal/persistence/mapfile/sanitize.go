package mapfile

import "strings"

// SanitizeName maps a user-entered map name to a safe directory name:
// leading and trailing whitespace and dots are trimmed, every other
// non-alphanumeric character becomes an underscore, and an empty
// result becomes "empty". Idempotent.
func SanitizeName(name string) string {
	trimmed := strings.TrimFunc(name, func(r rune) bool {
		return r == '.' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
	if trimmed == "" {
		return "empty"
	}
	var b strings.Builder
	b.Grow(len(trimmed))
	for _, r := range trimmed {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
