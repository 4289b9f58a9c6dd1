// Package id generates record identifiers.
package id

import (
	"fmt"

	"github.com/google/uuid"
)

// Generator hands out identifiers.
type Generator interface {
	NewID() (uuid.UUID, error)
}

// V7 issues time-ordered UUIDv7 values, so object listings and primary keys
// sort by write time.
type V7 struct{}

// NewID returns a fresh UUIDv7.
func (V7) NewID() (uuid.UUID, error) {
	v, err := uuid.NewV7()
	if err != nil {
		return uuid.Nil, fmt.Errorf("generate uuid7: %w", err)
	}
	return v, nil
}

// Sequence replays fixed identifiers in order, then fails.
type Sequence struct {
	ids []uuid.UUID
}

// NewSequence returns a Generator over ids.
func NewSequence(ids ...uuid.UUID) *Sequence {
	return &Sequence{ids: ids}
}

// NewID pops the next identifier.
func (s *Sequence) NewID() (uuid.UUID, error) {
	if len(s.ids) == 0 {
		return uuid.Nil, fmt.Errorf("id sequence exhausted")
	}
	next := s.ids[0]
	s.ids = s.ids[1:]
	return next, nil
}
