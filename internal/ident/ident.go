// Package ident converts arbitrary scene identifiers into legal WGSL
// identifiers, disambiguating collisions with a short content hash.
package ident

import (
	"fmt"
	"hash/fnv"
	"strings"
)

// Sanitize maps an arbitrary string to [A-Za-z_][A-Za-z0-9_]*. Characters
// outside the class become underscores; a leading digit gains an
// underscore prefix. Because distinct inputs can collapse to the same
// output, a short FNV hash of the original is appended, making the result
// stable and collision-free per input.
func Sanitize(name string) string {
	if name == "" {
		return "_"
	}
	var b strings.Builder
	b.Grow(len(name) + 10)
	for i, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			if i == 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	h := fnv.New32a()
	h.Write([]byte(name))
	return fmt.Sprintf("%s_%08x", b.String(), h.Sum32())
}
