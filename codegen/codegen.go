// Package codegen produces short, URL-safe link codes.
// Generators should be safe for concurrent use.
package codegen

import (
	"crypto/rand"
	"errors"
)

const (
	// urlSafeChars is the 64-character alphabet used for short codes.
	// All characters are safe in a URL path segment without escaping.
	urlSafeChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"

	// DefaultLength gives ~2^36 possible codes, which keeps collisions
	// rare without making the short URL noticeably longer.
	DefaultLength = 6
)

// Generator generates short link codes.
// Implementations should be safe for concurrent use.
type Generator interface {
	Generate(length int) (string, error)
}

// urlSafeGenerator implements Generator over the 64-character URL-safe
// alphabet. It has no knowledge of already-issued codes; uniqueness is
// enforced by the store's unique index.
type urlSafeGenerator struct{}

// NewURLSafe returns a new URL-safe code generator.
func NewURLSafe() Generator {
	return &urlSafeGenerator{}
}

// Generate generates a random code of the specified length.
// Each character is drawn independently and uniformly from the alphabet.
func (g *urlSafeGenerator) Generate(length int) (string, error) {
	if length <= 0 {
		return "", errors.New("length must be positive")
	}

	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}

	// 256 % 64 == 0, so the modulo keeps the distribution uniform.
	for i := range b {
		b[i] = urlSafeChars[int(b[i])%len(urlSafeChars)]
	}

	return string(b), nil
}
