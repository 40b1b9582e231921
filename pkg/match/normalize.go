package match

import "strings"

// Glob metacharacters that can be escaped with a backslash.
const globEscapable = `*?[]{}\`

// NormalizePattern converts a user-supplied exclude pattern to slash form.
//
// Unescaped backslashes become separators so Windows users can write
// "cache\**". Escapes of glob metacharacters such as \* are preserved.
//
//	"cache\**"      → "cache/**"
//	"logs/run\*.txt" → "logs/run\*.txt"
//	"./build/**"    → "build/**"
func NormalizePattern(pattern string) string {
	var b strings.Builder
	b.Grow(len(pattern))

	runes := []rune(pattern)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r != '\\' {
			b.WriteRune(r)
			continue
		}
		if i+1 < len(runes) && strings.ContainsRune(globEscapable, runes[i+1]) {
			b.WriteRune('\\')
			b.WriteRune(runes[i+1])
			i++
			continue
		}
		b.WriteRune('/')
	}

	return strings.TrimPrefix(b.String(), "./")
}
