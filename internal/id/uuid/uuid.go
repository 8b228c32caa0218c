// Package uuid provides ID generation helpers.
package uuid

import (
	"fmt"

	"github.com/google/uuid"
)

// Generator creates UUID strings. The zero value yields time-ordered v7 IDs,
// suitable for batch identifiers; NewRandom yields v4 IDs whose every hex
// digit is random, which artifact suffixes rely on.
type Generator struct {
	random bool
}

// New creates a Generator of time-ordered UUID v7 strings.
func New() *Generator {
	return &Generator{}
}

// NewRandom creates a Generator of random UUID v4 strings.
func NewRandom() *Generator {
	return &Generator{random: true}
}

// NewID returns a fresh UUID string.
func (g Generator) NewID() (string, error) {
	if g.random {
		id, err := uuid.NewRandom()
		if err != nil {
			return "", fmt.Errorf("generate uuid4: %w", err)
		}
		return id.String(), nil
	}
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate uuid7: %w", err)
	}
	return id.String(), nil
}
