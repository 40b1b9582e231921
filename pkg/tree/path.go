package tree

import "strings"

// JoinPrefix joins a prefix and a name with a single slash.
//
// Leading and trailing slashes are trimmed from both parts. If either part
// is empty after trimming the other is returned as is. Interior double
// slashes are preserved.
//
// Examples:
//
//	JoinPrefix("", "a")      → "a"
//	JoinPrefix("a/", "/b/")  → "a/b"
//	JoinPrefix("a", "")      → "a"
func JoinPrefix(prefix, name string) string {
	prefix = TrimPrefix(prefix)
	name = TrimPrefix(name)
	switch {
	case prefix == "":
		return name
	case name == "":
		return prefix
	}
	return prefix + "/" + name
}

// TrimPrefix strips leading and trailing slashes.
func TrimPrefix(p string) string {
	return strings.Trim(p, "/")
}

// ToSlash converts backslash separators to forward slashes.
//
// Unlike filepath.ToSlash this is applied regardless of the host OS, so
// Windows-style relative paths coming from any source normalize the same way.
func ToSlash(p string) string {
	return strings.ReplaceAll(p, `\`, "/")
}

// IsHiddenPath reports whether any segment of p is a dot-file or
// dot-directory name. The special segments "." and ".." are not hidden.
func IsHiddenPath(p string) bool {
	for _, seg := range strings.Split(ToSlash(p), "/") {
		if strings.HasPrefix(seg, ".") && seg != "." && seg != ".." {
			return true
		}
	}
	return false
}
