// Package idgen provides short, URL-safe unique ID generation backed by nanoid.
package idgen

import (
	"fmt"
	"sync/atomic"

	nanoid "github.com/matoous/go-nanoid/v2"
)

// DefaultPrefix is prepended to every generated history event ID.
var DefaultPrefix = "rh-"

// Alphabet defines the character set used for the random portion of the ID.
var Alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Length is the number of random characters generated (excluding the prefix).
var Length = 10

// Func produces a new unique ID. The service takes one so tests can inject
// a deterministic sequence.
type Func func() (string, error)

// Generate returns a new unique ID using the default prefix.
func Generate() (string, error) {
	return GenerateWithPrefix(DefaultPrefix)
}

// GenerateWithPrefix returns a new unique ID with the given prefix.
func GenerateWithPrefix(prefix string) (string, error) {
	id, err := nanoid.Generate(Alphabet, Length)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return prefix + id, nil
}

// Sequence returns a Func yielding prefix followed by a zero-padded counter
// starting at 1. IDs sort in generation order.
func Sequence(prefix string) Func {
	var n atomic.Int64
	return func() (string, error) {
		return fmt.Sprintf("%s%06d", prefix, n.Add(1)), nil
	}
}
