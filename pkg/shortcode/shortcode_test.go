package shortcode

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name   string
		length int
		want   int
	}{
		{name: "below minimum", length: 3, want: MinLength},
		{name: "zero", length: 0, want: MinLength},
		{name: "default", length: DefaultLength, want: DefaultLength},
		{name: "long", length: 12, want: 12},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, New(tt.length).Length())
		})
	}
}

func TestGenerator_Generate(t *testing.T) {
	g := New(DefaultLength)
	seen := make(map[string]struct{})

	for range 100 {
		code, err := g.Generate()
		require.NoError(t, err)

		assert.Len(t, code, DefaultLength)
		for _, r := range code {
			assert.True(t, strings.ContainsRune(Alphabet, r), "unexpected rune %q in %q", r, code)
		}

		seen[code] = struct{}{}
	}

	assert.Greater(t, len(seen), 90)
}
