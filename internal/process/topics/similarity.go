package topics

import (
	"github.com/pmezard/go-difflib/difflib"
)

// Ratio returns the Ratcliff/Obershelp similarity 2·M/T of two texts compared
// character by character, in [0, 1]. Empty input is dissimilar to everything.
func Ratio(a, b string) float64 {
	return ratio(chars(a), chars(b))
}

func ratio(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	return difflib.NewMatcher(a, b).Ratio()
}

func chars(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}

	return out
}
