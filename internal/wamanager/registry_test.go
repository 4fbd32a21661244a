package wamanager

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryPutRejectsDuplicate(t *testing.T) {
	reg := newRegistry()
	first := newSession(1, nil, "")
	second := newSession(1, nil, "")

	require.NoError(t, reg.put(1, first))
	err := reg.put(1, second)
	assert.ErrorIs(t, err, ErrAlreadyExists)

	// the original handle stays registered, never silently replaced
	assert.Same(t, first, reg.get(1))
}

func TestRegistryRemove(t *testing.T) {
	reg := newRegistry()
	require.NoError(t, reg.put(7, newSession(7, nil, "")))
	reg.remove(7)
	assert.Nil(t, reg.get(7))

	// removing twice is harmless
	reg.remove(7)
}

func TestRegistryListIDs(t *testing.T) {
	reg := newRegistry()
	require.NoError(t, reg.put(1, newSession(1, nil, "")))
	require.NoError(t, reg.put(2, newSession(2, nil, "")))
	assert.ElementsMatch(t, []int64{1, 2}, reg.listIDs())
}
