package population

import (
	"math/rand"

	"github.com/inference-sim/popsim/sim/model"
)

// sparseSet backs small memberships. Members live in an append-only slot
// list; removal tombstones the slot and the list is compacted once fewer than
// half of the slots are live, so a random slot probe hits a member with
// probability of at least one half.
type sparseSet struct {
	slots []model.PersonID
	index map[model.PersonID]int
	live  int
}

func newSparseSet() *sparseSet {
	return &sparseSet{index: make(map[model.PersonID]int)}
}

func (s *sparseSet) Add(p model.PersonID) bool {
	if _, ok := s.index[p]; ok {
		return false
	}
	s.index[p] = len(s.slots)
	s.slots = append(s.slots, p)
	s.live++
	return true
}

func (s *sparseSet) Remove(p model.PersonID) bool {
	slot, ok := s.index[p]
	if !ok {
		return false
	}
	delete(s.index, p)
	s.slots[slot] = model.NoPerson
	s.live--
	if 2*s.live < len(s.slots) {
		s.compact()
	}
	return true
}

func (s *sparseSet) compact() {
	kept := make([]model.PersonID, 0, s.live)
	for _, p := range s.slots {
		if p != model.NoPerson {
			s.index[p] = len(kept)
			kept = append(kept, p)
		}
	}
	s.slots = kept
}

func (s *sparseSet) Contains(p model.PersonID) bool {
	_, ok := s.index[p]
	return ok
}

func (s *sparseSet) Size() int { return s.live }

func (s *sparseSet) Members() []model.PersonID {
	out := make([]model.PersonID, 0, s.live)
	for _, p := range s.slots {
		if p != model.NoPerson {
			out = append(out, p)
		}
	}
	return out
}

func (s *sparseSet) Random(rng *rand.Rand, exclude model.PersonID) (model.PersonID, bool) {
	if candidateCount(s, exclude) == 0 {
		return model.NoPerson, false
	}
	for {
		p := s.slots[rng.Intn(len(s.slots))]
		if p != model.NoPerson && p != exclude {
			return p, true
		}
	}
}
