// Package uuid provides ID generation helpers.
package uuid

import (
	"fmt"

	"github.com/google/uuid"
)

// Generator creates random UUID strings for post and job identifiers.
type Generator struct{}

// New creates a new Generator.
func New() *Generator {
	return &Generator{}
}

// NewID returns a UUIDv4 string. Identifiers are random rather than content
// derived, so the same logical post extracted twice gets two distinct IDs.
func (Generator) NewID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate uuid: %w", err)
	}
	return id.String(), nil
}
