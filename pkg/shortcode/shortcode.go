// Package shortcode generates random alphanumeric short codes.
package shortcode

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	// Alphabet is the set of characters generated codes are drawn from.
	Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

	MinLength     = 6
	DefaultLength = 7
)

// Generator produces random short codes of a fixed length.
type Generator struct {
	length int
}

// New returns a Generator for codes of the given length.
// Lengths below MinLength are raised to MinLength.
func New(length int) *Generator {
	if length < MinLength {
		length = MinLength
	}

	return &Generator{length: length}
}

// Length returns the length of generated codes.
func (g *Generator) Length() int {
	return g.length
}

// Generate returns a new random code.
func (g *Generator) Generate() (string, error) {
	const op = "shortcode.Generator.Generate"

	code, err := gonanoid.Generate(Alphabet, g.length)
	if err != nil {
		return "", fmt.Errorf("%s: failed to generate short code: %w", op, err)
	}

	return code, nil
}
