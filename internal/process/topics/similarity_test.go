package topics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRatio(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{name: "identical", a: "abcd", b: "abcd", want: 1},
		{name: "disjoint", a: "abc", b: "xyz", want: 0},
		{name: "half", a: "abcd", b: "abxy", want: 0.5},
		{name: "empty left", a: "", b: "abc", want: 0},
		{name: "both empty", a: "", b: "", want: 0},
		{name: "multibyte runes", a: "привет", b: "привет", want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Ratio(tt.a, tt.b), 1e-9)
		})
	}
}

func TestRatio_Symmetric(t *testing.T) {
	a := "Central bank raises rates"
	b := "Central bank raised interest rates again"

	assert.InDelta(t, Ratio(a, b), Ratio(b, a), 0.05)
	assert.Greater(t, Ratio(a, b), 0.3)
}
