package store

import (
	"errors"
	"fmt"

	"github.com/inference-sim/popsim/sim/model"
)

// ErrInsufficient is returned when removing more of a resource than is held.
var ErrInsufficient = errors.New("insufficient resource")

// Resources tracks per-person resource levels.
type Resources struct {
	levels map[model.ResourceID]map[model.PersonID]int64
}

func NewResources() *Resources {
	return &Resources{levels: make(map[model.ResourceID]map[model.PersonID]int64)}
}

func (s *Resources) Define(r model.ResourceID) error {
	if _, dup := s.levels[r]; dup {
		return fmt.Errorf("resource %q defined twice", r)
	}
	s.levels[r] = make(map[model.PersonID]int64)
	return nil
}

func (s *Resources) Known(r model.ResourceID) bool {
	_, ok := s.levels[r]
	return ok
}

func (s *Resources) Level(p model.PersonID, r model.ResourceID) int64 {
	return s.levels[r][p]
}

// Add increases p's level of r by amount (> 0) and returns the new level.
func (s *Resources) Add(p model.PersonID, r model.ResourceID, amount int64) (int64, error) {
	lv, ok := s.levels[r]
	if !ok {
		return 0, fmt.Errorf("%w: resource %q", ErrUnknown, r)
	}
	if amount <= 0 {
		return 0, fmt.Errorf("resource amount must be > 0, got %d", amount)
	}
	lv[p] += amount
	return lv[p], nil
}

// Remove decreases p's level of r by amount (> 0) and returns the new level.
func (s *Resources) Remove(p model.PersonID, r model.ResourceID, amount int64) (int64, error) {
	lv, ok := s.levels[r]
	if !ok {
		return 0, fmt.Errorf("%w: resource %q", ErrUnknown, r)
	}
	if amount <= 0 {
		return 0, fmt.Errorf("resource amount must be > 0, got %d", amount)
	}
	if lv[p] < amount {
		return lv[p], fmt.Errorf("%w: person %d holds %d of %q, cannot remove %d",
			ErrInsufficient, p, lv[p], r, amount)
	}
	lv[p] -= amount
	if lv[p] == 0 {
		delete(lv, p)
	}
	return lv[p], nil
}

// RemovePerson drops every level held by p.
func (s *Resources) RemovePerson(p model.PersonID) {
	for _, lv := range s.levels {
		delete(lv, p)
	}
}
