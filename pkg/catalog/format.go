package catalog

import "strings"

// maxSubstitution is the longest field (NAME=VALUE) that gets substituted;
// longer fields are replaced by their name.
const maxSubstitution = 256

// Substitute replaces @NAME@ placeholders in text. lookup returns the value
// of a field of the current entry. Unknown or oversized fields are replaced
// by their name, which is what journalctl shows. Text between '@' signs
// that is not a field name is left alone.
func Substitute(text string, lookup func(name string) ([]byte, bool)) string {
	var b strings.Builder
	b.Grow(len(text))
	for {
		start := strings.IndexByte(text, '@')
		if start < 0 {
			b.WriteString(text)
			return b.String()
		}
		n := fieldNameLen(text[start+1:])
		if n == 0 || start+1+n >= len(text) || text[start+1+n] != '@' {
			b.WriteString(text[:start+1])
			text = text[start+1:]
			continue
		}

		name := text[start+1 : start+1+n]
		b.WriteString(text[:start])
		if v, ok := lookup(name); ok && len(name)+1+len(v) <= maxSubstitution {
			b.Write(v)
		} else {
			b.WriteString(name)
		}
		text = text[start+n+2:]
	}
}

func fieldNameLen(s string) int {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= 'A' && c <= 'Z') && !(c >= '0' && c <= '9') && c != '_' {
			return i
		}
	}
	return len(s)
}
