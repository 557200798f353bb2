package cache

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEmptyCacheReturnsZeroValues(t *testing.T) {
	c := New(nil)

	require.Nil(t, c.AutoMatchLibraryIDs())

	_, ok := c.Library("L1")
	require.False(t, ok)

	_, ok = c.Group("G1")
	require.False(t, ok)
}
