package store

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResources_Levels(t *testing.T) {
	s := NewResources()
	require.NoError(t, s.Define("doses"))
	assert.Error(t, s.Define("doses"))

	lv, err := s.Add(1, "doses", 3)
	require.NoError(t, err)
	assert.Equal(t, int64(3), lv)

	lv, err = s.Remove(1, "doses", 2)
	require.NoError(t, err)
	assert.Equal(t, int64(1), lv)

	_, err = s.Remove(1, "doses", 2)
	assert.True(t, errors.Is(err, ErrInsufficient))
	assert.Equal(t, int64(1), s.Level(1, "doses"))

	_, err = s.Add(1, "doses", 0)
	assert.Error(t, err)
	_, err = s.Add(1, "masks", 1)
	assert.True(t, errors.Is(err, ErrUnknown))

	s.RemovePerson(1)
	assert.Equal(t, int64(0), s.Level(1, "doses"))
}
