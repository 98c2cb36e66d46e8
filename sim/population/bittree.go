package population

import (
	"math/bits"
	"math/rand"

	"github.com/inference-sim/popsim/sim/model"
)

const blockBits = 64

// bitTree backs large memberships. One bit per person id is kept in 64-bit
// blocks, and a binary summation tree over the blocks holds running member
// counts so that insertion, removal, rank and k-th member selection all cost
// O(log(ids/64)).
//
// The tree is stored heap-style: node 1 is the root, node i has children 2i
// and 2i+1, and the leaf for block b is node capacity+b. capacity is always a
// power of two.
type bitTree struct {
	words    []uint64
	tree     []int
	capacity int
	size     int
}

func newBitTree() *bitTree {
	return &bitTree{
		words:    make([]uint64, 1),
		tree:     make([]int, 2),
		capacity: 1,
	}
}

// grow doubles capacity until block fits. Each old level of the tree becomes
// the left half of the next level down in the larger tree, which keeps every
// partial sum valid; the new root inherits the old root's total.
func (t *bitTree) grow(block int) {
	for block >= t.capacity {
		newCap := t.capacity * 2
		tree := make([]int, 2*newCap)
		for start := 1; start <= t.capacity; start *= 2 {
			copy(tree[2*start:3*start], t.tree[start:2*start])
		}
		tree[1] = t.tree[1]
		t.tree = tree
		t.capacity = newCap
	}
	if len(t.words) < t.capacity {
		words := make([]uint64, t.capacity)
		copy(words, t.words)
		t.words = words
	}
}

func (t *bitTree) propagate(block, delta int) {
	for node := t.capacity + block; node >= 1; node /= 2 {
		t.tree[node] += delta
	}
}

func (t *bitTree) Add(p model.PersonID) bool {
	if !p.Valid() {
		return false
	}
	block, bit := int(p)/blockBits, uint(int(p)%blockBits)
	t.grow(block)
	mask := uint64(1) << bit
	if t.words[block]&mask != 0 {
		return false
	}
	t.words[block] |= mask
	t.propagate(block, 1)
	t.size++
	return true
}

func (t *bitTree) Remove(p model.PersonID) bool {
	if !t.Contains(p) {
		return false
	}
	block, bit := int(p)/blockBits, uint(int(p)%blockBits)
	t.words[block] &^= uint64(1) << bit
	t.propagate(block, -1)
	t.size--
	return true
}

func (t *bitTree) Contains(p model.PersonID) bool {
	if !p.Valid() {
		return false
	}
	block, bit := int(p)/blockBits, uint(int(p)%blockBits)
	if block >= len(t.words) {
		return false
	}
	return t.words[block]&(uint64(1)<<bit) != 0
}

func (t *bitTree) Size() int { return t.size }

func (t *bitTree) Members() []model.PersonID {
	out := make([]model.PersonID, 0, t.size)
	for block, w := range t.words {
		for w != 0 {
			out = append(out, model.PersonID(block*blockBits+bits.TrailingZeros64(w)))
			w &= w - 1
		}
	}
	return out
}

// rank returns the number of members with id <= p. p must be a member.
func (t *bitTree) rank(p model.PersonID) int {
	block, bit := int(p)/blockBits, uint(int(p)%blockBits)
	sum := 0
	for node := t.capacity + block; node > 1; node /= 2 {
		if node&1 == 1 {
			sum += t.tree[node-1]
		}
	}
	mask := ^uint64(0) >> (blockBits - 1 - bit)
	return sum + bits.OnesCount64(t.words[block]&mask)
}

// selectNth returns the member with rank k, 1 <= k <= size. The descent picks
// the left child whenever its count covers k and otherwise subtracts that
// count and goes right; the resolved block is then scanned bit by bit.
func (t *bitTree) selectNth(k int) model.PersonID {
	node := 1
	for node < t.capacity {
		left := 2 * node
		if k <= t.tree[left] {
			node = left
		} else {
			k -= t.tree[left]
			node = left + 1
		}
	}
	block := node - t.capacity
	w := t.words[block]
	for {
		if k == 1 {
			return model.PersonID(block*blockBits + bits.TrailingZeros64(w))
		}
		w &= w - 1
		k--
	}
}

func (t *bitTree) Random(rng *rand.Rand, exclude model.PersonID) (model.PersonID, bool) {
	n := candidateCount(t, exclude)
	if n == 0 {
		return model.NoPerson, false
	}
	k := rng.Intn(n) + 1
	if exclude.Valid() && t.Contains(exclude) && k >= t.rank(exclude) {
		k++
	}
	return t.selectNth(k), true
}
