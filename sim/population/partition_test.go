package population

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inference-sim/popsim/sim/filter"
	"github.com/inference-sim/popsim/sim/internal/testutil"
	"github.com/inference-sim/popsim/sim/model"
)

// regionStatusWorld places people round-robin over two regions and three
// statuses so that every (region, status) pair is populated.
func regionStatusWorld(n int) (*testutil.World, []model.PersonID) {
	w := testutil.NewWorld().
		DefineRegions("N", "S").
		DefineAttribute("status", model.KindString, true).
		DefineAttribute("age", model.KindInt, false)
	ps := w.AddPeople(n)
	statuses := []string{"S", "I", "R"}
	for i, p := range ps {
		w.SetRegion(p, []model.RegionID{"N", "S"}[i%2])
		w.Set(p, "status", model.String(statuses[i%3]))
		w.Set(p, "age", model.Int(int64(i%90)))
	}
	return w, ps
}

func regionStatusDef() Definition {
	return Definition{
		Region:     &RegionDimension{},
		Attributes: []AttributeDimension{{Attribute: "status"}},
	}
}

func TestPartition_QueriesByLabel(t *testing.T) {
	// GIVEN 60 people partitioned by region and status
	w, ps := regionStatusWorld(60)
	pt := NewPartition(owner, regionStatusDef(), w, DefaultThresholds())
	require.NoError(t, pt.Initialize())
	assert.Equal(t, 60, pt.Size())
	assert.Equal(t, 6, pt.BucketCount())

	// THEN a full-key query hits one bucket
	n, err := pt.QuerySize(NewQuery().Region(model.RegionID("N")).Attribute("status", model.String("I")))
	require.NoError(t, err)
	assert.Equal(t, 10, n)

	// THEN a partial query sums every bucket it covers
	n, err = pt.QuerySize(NewQuery().Region(model.RegionID("S")))
	require.NoError(t, err)
	assert.Equal(t, 30, n)

	// THEN an empty query covers everybody
	members, err := pt.QueryMembers(nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, ps, members)

	// THEN a label never seen matches nothing without error
	n, err = pt.QuerySize(NewQuery().Attribute("status", model.String("X")))
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	// THEN a dimension the partition lacks is an error
	_, err = pt.QuerySize(NewQuery().Compartment(model.CompartmentID("home")))
	assert.Error(t, err)

	ok, err := pt.QueryContains(ps[0], NewQuery().Region(model.RegionID("N")))
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = pt.QueryContains(ps[0], NewQuery().Region(model.RegionID("S")))
	require.NoError(t, err)
	assert.False(t, ok)

	labels, ok := pt.Labels(ps[1])
	require.True(t, ok)
	assert.Equal(t, []any{model.RegionID("S"), model.String("I")}, labels)
}

func TestPartition_UpdatesMoveOnlyOnLabelChange(t *testing.T) {
	w, ps := regionStatusWorld(6)
	pt := NewPartition(owner, regionStatusDef(), w, DefaultThresholds())
	require.NoError(t, pt.Initialize())
	p := ps[0] // N, S

	// WHEN an attribute outside the partition changes THEN nothing moves
	w.Set(p, "age", model.Int(70))
	moved, err := pt.UpdateAttribute(p, "age")
	require.NoError(t, err)
	assert.False(t, moved)

	// WHEN the status changes THEN p moves to the (N, R) bucket
	w.Set(p, "status", model.String("R"))
	moved, err = pt.UpdateAttribute(p, "status")
	require.NoError(t, err)
	assert.True(t, moved)
	ok, _ := pt.QueryContains(p, NewQuery().Region(model.RegionID("N")).Attribute("status", model.String("R")))
	assert.True(t, ok)

	// WHEN the region is re-evaluated without a change THEN nothing moves
	moved, err = pt.UpdateRegion(p)
	require.NoError(t, err)
	assert.False(t, moved)

	w.SetRegion(p, "S")
	moved, err = pt.UpdateRegion(p)
	require.NoError(t, err)
	assert.True(t, moved)
	labels, _ := pt.Labels(p)
	assert.Equal(t, []any{model.RegionID("S"), model.String("R")}, labels)
	assert.Equal(t, 6, pt.Size())
}

func TestPartition_FilterControlsMembership(t *testing.T) {
	// GIVEN a partition of adults only
	w, ps := regionStatusWorld(6) // ages 0..5
	def := regionStatusDef()
	def.Filter = filter.Attribute("age", model.GreaterThanOrEqual, model.Int(3))
	pt := NewPartition(owner, def, w, DefaultThresholds())
	require.NoError(t, pt.Initialize())
	assert.Equal(t, 3, pt.Size())
	assert.True(t, pt.Dependencies().DependsOnAttribute("age"))
	assert.True(t, pt.Dependencies().DependsOnAttribute("status"))
	assert.True(t, pt.Dependencies().Regions)

	// WHEN someone ages into the filter THEN they enter the partition
	w.Set(ps[0], "age", model.Int(40))
	moved, err := pt.UpdateAttribute(ps[0], "age")
	require.NoError(t, err)
	assert.True(t, moved)
	assert.True(t, pt.Contains(ps[0]))

	// WHEN someone leaves the filter THEN they leave the partition
	w.Set(ps[4], "age", model.Int(1))
	moved, err = pt.UpdateAttribute(ps[4], "age")
	require.NoError(t, err)
	assert.True(t, moved)
	assert.False(t, pt.Contains(ps[4]))
	assert.Equal(t, 3, pt.Size())

	// WHEN a new person who fails the filter is added THEN they are skipped
	np := w.AddPerson()
	w.SetRegion(np, "N")
	require.NoError(t, pt.Add(np))
	assert.False(t, pt.Contains(np))
}

func TestPartition_EmptyBucketsArePrunedLazily(t *testing.T) {
	w, ps := regionStatusWorld(6)
	pt := NewPartition(owner, regionStatusDef(), w, DefaultThresholds())
	require.NoError(t, pt.Initialize())
	require.Equal(t, 6, pt.BucketCount())

	// WHEN the only member of (N, S) leaves
	assert.True(t, pt.Remove(ps[0]))
	assert.False(t, pt.Remove(ps[0]))

	// THEN the bucket is empty but queries on it still resolve
	assert.Equal(t, 5, pt.BucketCount())
	n, err := pt.QuerySize(NewQuery().Region(model.RegionID("N")).Attribute("status", model.String("S")))
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	// WHEN someone lands in it again THEN it is reused
	require.NoError(t, pt.Add(ps[0]))
	assert.Equal(t, 6, pt.BucketCount())
	assert.Len(t, pt.buckets, 6)
}

func TestPartition_CustomLabelsAndGroupTypes(t *testing.T) {
	w := testutil.NewWorld().DefineGroupType("household").DefineResource("doses")
	ps := w.AddPeople(4)
	h := w.AddGroup("household")
	w.Join(ps[0], h)
	w.Join(ps[1], h)
	w.SetResource(ps[2], "doses", 3)

	def := Definition{
		GroupTypes: &GroupTypeDimension{
			Types: []model.GroupTypeID{"household"},
			Label: func(counts map[model.GroupTypeID]int) any { return counts["household"] > 0 },
		},
		Resources: []ResourceDimension{{
			Resource: "doses",
			Label:    func(level int64) any { return level > 0 },
		}},
	}
	require.NoError(t, def.Validate(w))
	pt := NewPartition(owner, def, w, DefaultThresholds())
	require.NoError(t, pt.Initialize())

	n, _ := pt.QuerySize(NewQuery().GroupTypes(true))
	assert.Equal(t, 2, n)
	n, _ = pt.QuerySize(NewQuery().Resource("doses", true))
	assert.Equal(t, 1, n)

	w.Join(ps[3], h)
	moved, err := pt.UpdateGroups(ps[3])
	require.NoError(t, err)
	assert.True(t, moved)
	n, _ = pt.QuerySize(NewQuery().GroupTypes(true).Resource("doses", false))
	assert.Equal(t, 3, n)
}

func TestPartition_NonComparableLabelIsAnError(t *testing.T) {
	w, _ := regionStatusWorld(3)
	def := Definition{Attributes: []AttributeDimension{{
		Attribute: "status",
		Label:     func(v model.Value) any { return []string{v.AsString()} },
	}}}
	pt := NewPartition(owner, def, w, DefaultThresholds())
	assert.Error(t, pt.Initialize())

	// a query with a non-comparable label simply matches nothing
	ok := NewPartition(owner, regionStatusDef(), w, DefaultThresholds())
	require.NoError(t, ok.Initialize())
	n, err := ok.QuerySize(NewQuery().Region([]int{1}))
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

// boxedLabel has a comparable type but may hold an unhashable value.
type boxedLabel struct{ v any }

func TestPartition_LabelHoldingSliceIsAnError(t *testing.T) {
	// GIVEN a label whose static type is comparable but whose field holds a slice
	w, _ := regionStatusWorld(3)
	def := Definition{Region: &RegionDimension{
		Label: func(r model.RegionID) any { return boxedLabel{v: []string{string(r)}} },
	}}
	pt := NewPartition(owner, def, w, DefaultThresholds())

	// WHEN the partition is built THEN it reports an error instead of panicking
	assert.Error(t, pt.Initialize())

	// AND querying a valid partition with such a label matches nothing
	ok := NewPartition(owner, regionStatusDef(), w, DefaultThresholds())
	require.NoError(t, ok.Initialize())
	n, err := ok.QuerySize(NewQuery().Region(boxedLabel{v: []int{1}}))
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	// AND a boxed comparable value is still a usable label
	_, err = newLabelTable().intern(boxedLabel{v: "north"})
	assert.NoError(t, err)
}

func TestPartition_ValidateRejectsBadDefinitions(t *testing.T) {
	w, _ := regionStatusWorld(1)
	tests := []struct {
		name string
		def  Definition
	}{
		{"no dimensions", Definition{}},
		{"repeated attribute", Definition{Attributes: []AttributeDimension{{Attribute: "status"}, {Attribute: "status"}}}},
		{"unknown attribute", Definition{Attributes: []AttributeDimension{{Attribute: "height"}}}},
		{"unknown resource", Definition{Resources: []ResourceDimension{{Resource: "doses"}}}},
		{"group types without label", Definition{GroupTypes: &GroupTypeDimension{Types: []model.GroupTypeID{"x"}}}},
		{"bad filter", Definition{Region: &RegionDimension{}, Filter: filter.InRegion("W")}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Error(t, tc.def.Validate(w))
		})
	}
	assert.NoError(t, regionStatusDef().Validate(w))
}

func TestPartition_QueryRandomIsUniformAcrossBuckets(t *testing.T) {
	// GIVEN 60 people in 6 buckets and a query spanning the three N buckets
	w, ps := regionStatusWorld(60)
	pt := NewPartition(owner, regionStatusDef(), w, DefaultThresholds())
	require.NoError(t, pt.Initialize())
	north, err := pt.QueryMembers(NewQuery().Region(model.RegionID("N")))
	require.NoError(t, err)
	require.Len(t, north, 30)
	position := make(map[model.PersonID]int)
	for i, p := range north {
		position[p] = i
	}
	excluded := ps[0]

	// WHEN many draws exclude one northern person
	rng := rand.New(rand.NewSource(17))
	const trials = 29000
	counts := make(map[int]int)
	for i := 0; i < trials; i++ {
		p, ok, err := pt.QueryRandom(rng, NewQuery().Region(model.RegionID("N")), excluded)
		require.NoError(t, err)
		require.True(t, ok)
		require.NotEqual(t, excluded, p)
		idx := position[p]
		if idx > position[excluded] {
			idx--
		}
		counts[idx]++
	}

	// THEN each of the 29 eligible people is equally likely
	stat := testutil.ChiSquare(counts, 29, trials)
	assert.Less(t, stat, testutil.ChiSquareCritical999(28), "chi-square %.2f", stat)
}
