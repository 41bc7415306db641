package store

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"vetclinic/internal/person/models"
)

// Seeder upserts fixture people and moves the id allocator past them.
type Seeder interface {
	Seed(ctx context.Context, people []models.Person) error
}

// SeedFile is the YAML layout for fixture people:
//
//	people:
//	  - id: 2
//	    name: Michael
type SeedFile struct {
	People []models.Person `yaml:"people"`
}

// LoadSeed reads and validates a seed file.
func LoadSeed(path string) ([]models.Person, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return ParseSeed(raw)
}

// ParseSeed decodes seed YAML. Ids must be positive and unique; names follow
// the same rules as API creates.
func ParseSeed(raw []byte) ([]models.Person, error) {
	var file SeedFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("decode seed file: %w", err)
	}

	seen := make(map[int64]struct{}, len(file.People))
	people := make([]models.Person, 0, len(file.People))
	for i, p := range file.People {
		if err := models.ValidateID(p.ID); err != nil {
			return nil, fmt.Errorf("seed entry %d: %w", i, err)
		}
		if _, dup := seen[p.ID]; dup {
			return nil, fmt.Errorf("seed entry %d: duplicate id %d", i, p.ID)
		}
		seen[p.ID] = struct{}{}

		name, err := models.NormalizeName(p.Name)
		if err != nil {
			return nil, fmt.Errorf("seed entry %d: %w", i, err)
		}
		people = append(people, models.Person{ID: p.ID, Name: name})
	}
	return people, nil
}

// SeedFromFile loads path and seeds s with it. An empty path is a no-op.
func SeedFromFile(ctx context.Context, s Seeder, path string) (int, error) {
	if path == "" {
		return 0, nil
	}
	people, err := LoadSeed(path)
	if err != nil {
		return 0, err
	}
	if err := s.Seed(ctx, people); err != nil {
		return 0, err
	}
	return len(people), nil
}
