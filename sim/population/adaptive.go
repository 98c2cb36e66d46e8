package population

import (
	"fmt"
	"math/rand"

	"github.com/sirupsen/logrus"

	"github.com/inference-sim/popsim/sim/model"
)

// Thresholds controls when an Adaptive container changes representation.
// With population N and membership m, a sparse container turns dense once
// m*DenseDivisor >= N and a dense container turns sparse once
// m*SparseDivisor <= N. SparseDivisor must exceed DenseDivisor so that the
// two switch points never coincide.
type Thresholds struct {
	DenseDivisor  int `yaml:"dense_divisor" toml:"dense_divisor"`
	SparseDivisor int `yaml:"sparse_divisor" toml:"sparse_divisor"`
}

// DefaultThresholds switches up at N/150 and back down at N/200.
func DefaultThresholds() Thresholds {
	return Thresholds{DenseDivisor: 150, SparseDivisor: 200}
}

// Validate checks 0 < DenseDivisor < SparseDivisor.
func (t Thresholds) Validate() error {
	if t.DenseDivisor <= 0 {
		return fmt.Errorf("dense_divisor must be > 0, got %d", t.DenseDivisor)
	}
	if t.SparseDivisor <= t.DenseDivisor {
		return fmt.Errorf("sparse_divisor (%d) must be greater than dense_divisor (%d)",
			t.SparseDivisor, t.DenseDivisor)
	}
	return nil
}

// Representation names the storage an Adaptive container currently uses.
type Representation string

const (
	Sparse Representation = "sparse"
	Dense  Representation = "dense"
)

// SwitchFunc is notified after an Adaptive container changes representation.
type SwitchFunc func(to Representation, size, population int)

// Adaptive is a Container that keeps a hash-backed sparse set while
// membership is small relative to the population and a bit-indexed
// summation tree once it is large, converting transparently.
type Adaptive struct {
	impl       Container
	rep        Representation
	population func() int
	thresholds Thresholds
	onSwitch   SwitchFunc
}

// NewAdaptive creates an empty sparse container. population reports the
// current live population size N used by the switching policy.
func NewAdaptive(population func() int, thresholds Thresholds) *Adaptive {
	if population == nil {
		panic("NewAdaptive: population must not be nil")
	}
	if err := thresholds.Validate(); err != nil {
		panic(fmt.Sprintf("NewAdaptive: %v", err))
	}
	return &Adaptive{
		impl:       newSparseSet(),
		rep:        Sparse,
		population: population,
		thresholds: thresholds,
	}
}

// OnSwitch installs a hook called after every representation change.
func (a *Adaptive) OnSwitch(fn SwitchFunc) { a.onSwitch = fn }

func (a *Adaptive) Representation() Representation { return a.rep }

func (a *Adaptive) Add(p model.PersonID) bool {
	if !a.impl.Add(p) {
		return false
	}
	a.rebalance()
	return true
}

func (a *Adaptive) Remove(p model.PersonID) bool {
	if !a.impl.Remove(p) {
		return false
	}
	a.rebalance()
	return true
}

func (a *Adaptive) Contains(p model.PersonID) bool { return a.impl.Contains(p) }
func (a *Adaptive) Size() int                      { return a.impl.Size() }
func (a *Adaptive) Members() []model.PersonID      { return a.impl.Members() }

func (a *Adaptive) Random(rng *rand.Rand, exclude model.PersonID) (model.PersonID, bool) {
	return a.impl.Random(rng, exclude)
}

// rebalance applies the two-threshold policy after a mutation.
func (a *Adaptive) rebalance() {
	n := a.population()
	m := a.impl.Size()
	switch a.rep {
	case Sparse:
		if m > 0 && m*a.thresholds.DenseDivisor >= n {
			a.convert(newBitTree(), Dense, m, n)
		}
	case Dense:
		if m*a.thresholds.SparseDivisor <= n {
			a.convert(newSparseSet(), Sparse, m, n)
		}
	}
}

func (a *Adaptive) convert(next Container, rep Representation, size, population int) {
	for _, p := range a.impl.Members() {
		next.Add(p)
	}
	a.impl = next
	a.rep = rep
	logrus.Debugf("population container switched to %s (size=%d, population=%d)", rep, size, population)
	if a.onSwitch != nil {
		a.onSwitch(rep, size, population)
	}
}
