package header

import (
	"fmt"
	"sort"
	"strings"
)

// parseCacheControl splits a Cache-Control value into directives. Bare
// directives map to true, key=value directives to the unquoted value.
func parseCacheControl(value string) map[string]any {
	directives := make(map[string]any)
	for _, part := range splitQuoted(value, ',') {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		kv := splitQuoted(part, '=')
		key := strings.ToLower(strings.TrimSpace(kv[0]))
		if key == "" {
			continue
		}

		if len(kv) == 1 {
			directives[key] = true
			continue
		}
		directives[key] = unquote(strings.TrimSpace(strings.Join(kv[1:], "=")))
	}
	return directives
}

// formatDirectives renders directives sorted by key and separated by ", ".
func formatDirectives(directives map[string]any) string {
	keys := make([]string, 0, len(directives))
	for k := range directives {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		if v, ok := directives[k].(bool); ok && v {
			parts = append(parts, k)
			continue
		}
		parts = append(parts, k+"="+quote(fmt.Sprint(directives[k])))
	}
	return strings.Join(parts, ", ")
}

// splitQuoted splits s on sep, ignoring separators inside double quotes.
func splitQuoted(s string, sep byte) []string {
	var (
		parts   []string
		start   int
		quoted  bool
		escaped bool
	)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case quoted && c == '\\':
			escaped = true
		case c == '"':
			quoted = !quoted
		case !quoted && c == sep:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	return append(parts, s[start:])
}

func unquote(s string) string {
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return s
	}

	s = s[1 : len(s)-1]
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
		}
		sb.WriteByte(s[i])
	}
	return sb.String()
}

func quote(s string) string {
	if s != "" && isToken(s) {
		return s
	}
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return `"` + r.Replace(s) + `"`
}

func isToken(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case strings.IndexByte("!#$%&'*.^_`|~-", c) >= 0:
		default:
			return false
		}
	}
	return true
}
