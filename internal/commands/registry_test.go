package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_FindByAlias(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&ListCmd{}))
	require.NoError(t, r.Register(&DoneCmd{}))

	c, ok := r.Find("ls")
	require.True(t, ok)
	assert.Equal(t, "list", c.Name())

	c, ok = r.Find("complete")
	require.True(t, ok)
	assert.Equal(t, "done", c.Name())

	_, ok = r.Find("nope")
	assert.False(t, ok)
}

func TestRegistry_RejectsClash(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&ListCmd{}))
	assert.EqualError(t, r.Register(&ListCmd{}), "command already registered: list")

	// The failed registration leaves nothing behind.
	assert.Len(t, r.All(), 1)
}

func TestRegistry_AllOncePerCommand(t *testing.T) {
	var names []string
	for _, c := range DefaultRegistry.All() {
		names = append(names, c.Name())
	}
	assert.IsIncreasing(t, names)
	assert.Contains(t, names, "list")
	assert.Contains(t, names, "search")
	assert.NotContains(t, names, "ls")
}
