// Package naming derives filesystem-safe output base names from
// user-supplied upload names.
package naming

import (
	"strings"

	"github.com/mvoss/imgpress/internal/id"
)

const defaultBase = "image"

// SafeBase turns an arbitrary user-supplied name into a base name matching
// [a-z0-9_.-]+ with a random 12-hex suffix appended after a hyphen. The
// result never contains path separators, dot-dot segments or null bytes and
// is never empty; SafeBase cannot fail.
func SafeBase(name string) string {
	return scrub(name) + "-" + id.Suffix()
}

func scrub(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))

	var b strings.Builder
	b.Grow(len(name))
	lastHyphen := false
	for _, r := range name {
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			if !lastHyphen && b.Len() > 0 {
				b.WriteByte('-')
				lastHyphen = true
			}
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-', r == '.':
			b.WriteRune(r)
			lastHyphen = false
		default:
			// drop everything else, including / \ and control bytes
		}
	}

	out := strings.Trim(b.String(), "-.")
	out = stripExtension(out)
	out = collapseDots(out)
	if out == "" {
		return defaultBase
	}
	return out
}

// stripExtension removes a trailing extension so "photo.jpg" and "photo.png"
// land on the same base; the output format supplies the real extension.
func stripExtension(name string) string {
	idx := strings.LastIndexByte(name, '.')
	if idx <= 0 {
		return name
	}
	ext := name[idx+1:]
	if len(ext) == 0 || len(ext) > 5 {
		return name
	}
	return strings.TrimRight(name[:idx], ".")
}

// collapseDots folds runs of dots so the result can never contain a ".."
// segment even after extension stripping.
func collapseDots(name string) string {
	for strings.Contains(name, "..") {
		name = strings.ReplaceAll(name, "..", ".")
	}
	return strings.Trim(name, ".")
}
