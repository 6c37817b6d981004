package dispatch

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOf(t *testing.T) {
	assert.Equal(t, 4, Of[B4]())
	assert.Equal(t, 1024, Of[B1024]())
	assert.Equal(t, 32, Of[W32]())
	assert.Equal(t, 64, Of[W64]())
	assert.Equal(t, 3, Of[I3]())
	assert.Equal(t, MaxItemsPerThread, Of[I16]())
}

func TestCheck(t *testing.T) {
	for _, v := range BlockSizes {
		require.NoError(t, Check("block size", BlockSizes, v))
	}

	err := Check("warp size", WarpSizes, 16)
	require.Error(t, err)
	var unsupported *UnsupportedError
	require.True(t, errors.As(err, &unsupported))
	assert.Equal(t, "warp size", unsupported.Name)
	assert.Equal(t, 16, unsupported.Value)
	assert.Equal(t, WarpSizes, unsupported.Menu)
	assert.Contains(t, err.Error(), "unsupported warp size 16")

	// The menu in the error is a copy.
	unsupported.Menu[0] = -1
	assert.Equal(t, 32, WarpSizes[0])
}

func TestMenusAscending(t *testing.T) {
	for name, menu := range map[string][]int{
		"block sizes":      BlockSizes,
		"warp sizes":       WarpSizes,
		"items per thread": ItemCounts,
	} {
		for i := 1; i < len(menu); i++ {
			assert.Less(t, menu[i-1], menu[i], name)
		}
	}
	assert.Equal(t, MaxItemsPerThread, ItemCounts[len(ItemCounts)-1])
}
