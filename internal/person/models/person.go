package models

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	dErrors "vetclinic/pkg/domain-errors"
)

// MaxNameLength bounds names so every backing store can hold them.
const MaxNameLength = 255

// MaxExplicitID is the largest id a caller may choose. Ids above it are only
// ever generated, so an explicit create can never exhaust the allocator.
const MaxExplicitID int64 = math.MaxInt64 / 2

// Person is the registry's only aggregate.
//
// Invariants:
//   - ID is positive and unique across the registry
//   - ID is immutable after creation
//   - Name is non-empty after trimming and at most MaxNameLength characters
type Person struct {
	ID   int64  `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// Rename replaces the name after validating it. The ID never changes.
func (p *Person) Rename(name string) error {
	normalized, err := NormalizeName(name)
	if err != nil {
		return err
	}
	p.Name = normalized
	return nil
}

// Draft is a creation request before the store has settled the final id.
// A nil ID asks the store to allocate one.
type Draft struct {
	ID   *int64
	Name string
}

// HasExplicitID reports whether the caller chose the id.
func (d Draft) HasExplicitID() bool {
	return d.ID != nil
}

// NewDraft validates a creation request.
func NewDraft(id *int64, name string) (Draft, error) {
	normalized, err := NormalizeName(name)
	if err != nil {
		return Draft{}, err
	}
	if id != nil {
		if err := ValidateID(*id); err != nil {
			return Draft{}, err
		}
		explicit := *id
		id = &explicit
	}
	return Draft{ID: id, Name: normalized}, nil
}

// NormalizeName trims surrounding whitespace and enforces the name invariants.
func NormalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", dErrors.New(dErrors.CodeValidation, "name is required")
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return "", dErrors.New(dErrors.CodeValidation, "name must be 255 characters or less")
	}
	return name, nil
}

// ValidateID rejects ids a caller may not choose.
func ValidateID(id int64) error {
	if id < 1 {
		return dErrors.New(dErrors.CodeValidation, "id must be a positive integer")
	}
	if id > MaxExplicitID {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("id must not exceed %d", MaxExplicitID))
	}
	return nil
}
