package store

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inference-sim/popsim/sim/model"
)

func TestGroups_Membership(t *testing.T) {
	g := NewGroups()
	require.NoError(t, g.DefineType("household"))
	require.NoError(t, g.DefineType("school"))
	assert.Error(t, g.DefineType("household"))

	_, err := g.Add("office")
	assert.True(t, errors.Is(err, ErrUnknown))

	h1, _ := g.Add("household")
	h2, _ := g.Add("household")
	s1, _ := g.Add("school")

	require.NoError(t, g.AddMember(5, h1))
	require.NoError(t, g.AddMember(5, h2))
	require.NoError(t, g.AddMember(5, s1))
	require.NoError(t, g.AddMember(6, h1))
	assert.Error(t, g.AddMember(5, h1), "already a member")
	assert.Error(t, g.RemoveMember(6, h2), "not a member")

	assert.Equal(t, 2, g.CountForPerson(5, "household"))
	assert.Equal(t, 1, g.CountForPerson(5, "school"))
	assert.Equal(t, []model.GroupID{h1, h2, s1}, g.GroupsFor(5))
	assert.Equal(t, []model.PersonID{5, 6}, g.Members(h1))
	assert.Equal(t, 2, g.MemberCount(h1))

	// WHEN a group is removed THEN its members are returned and its id is dead
	members, err := g.Remove(h1)
	require.NoError(t, err)
	assert.Equal(t, []model.PersonID{5, 6}, members)
	assert.False(t, g.Known(h1))
	assert.False(t, g.IsMember(5, h1))
	assert.Equal(t, 1, g.CountForPerson(5, "household"))
	_, err = g.Type(h1)
	assert.True(t, errors.Is(err, ErrUnknown))

	// WHEN a person leaves the simulation THEN they leave every group
	assert.Equal(t, []model.GroupID{h2, s1}, g.RemovePerson(5))
	assert.Equal(t, 0, g.MemberCount(s1))
	assert.Empty(t, g.GroupsFor(5))
}
