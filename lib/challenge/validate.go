package challenge

import (
	"crypto/subtle"
	"strings"
)

// MatchFold reports whether answer equals solution after trimming
// surrounding whitespace and ignoring case. The comparison itself runs in
// constant time.
func MatchFold(solution, answer string) bool {
	want := strings.ToLower(strings.TrimSpace(solution))
	got := strings.ToLower(strings.TrimSpace(answer))

	return subtle.ConstantTimeCompare([]byte(want), []byte(got)) == 1
}
