package id

import (
	"regexp"
	"testing"
)

func TestSuffix(t *testing.T) {
	pattern := regexp.MustCompile(`^[0-9a-f]{12}$`)

	seen := make(map[string]bool)
	for i := 0; i < 64; i++ {
		s := Suffix()
		if !pattern.MatchString(s) {
			t.Fatalf("Suffix() = %q is not 12 lowercase hex chars", s)
		}
		if seen[s] {
			t.Fatalf("Suffix() repeated %q", s)
		}
		seen[s] = true
	}
}
