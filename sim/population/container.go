// Package population implements the incrementally maintained people sets the
// kernel answers membership, size and random-draw queries from.
//
// # Reading Guide
//
//   - container.go, sparse.go, bittree.go: the two set representations
//   - adaptive.go: the container that switches between them by selectivity
//   - index.go: a live set of people matching one filter
//   - partition.go, labels.go: people bucketed by a tuple of derived labels
package population

import (
	"math/rand"

	"github.com/inference-sim/popsim/sim/model"
)

// Container is a set of people supporting uniform random draws.
type Container interface {
	// Add inserts p and reports whether it was absent.
	Add(p model.PersonID) bool
	// Remove deletes p and reports whether it was present.
	Remove(p model.PersonID) bool
	Contains(p model.PersonID) bool
	Size() int
	// Members returns every member once, in no particular order.
	Members() []model.PersonID
	// Random draws uniformly from the members other than exclude. Pass
	// model.NoPerson to exclude nobody. ok is false when no candidate exists.
	Random(rng *rand.Rand, exclude model.PersonID) (p model.PersonID, ok bool)
}

// candidateCount is the number of members eligible for a draw that excludes
// one person.
func candidateCount(c Container, exclude model.PersonID) int {
	n := c.Size()
	if exclude.Valid() && c.Contains(exclude) {
		n--
	}
	return n
}
