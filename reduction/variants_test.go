package reduction

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LynnColeArt/guda-reduction"
	"github.com/LynnColeArt/guda-reduction/dispatch"
)

func TestSelectKernelCoversMenus(t *testing.T) {
	count := 0
	for _, bs := range dispatch.BlockSizes {
		for _, ws := range dispatch.WarpSizes {
			for _, items := range dispatch.ItemCounts {
				cfg := LaunchConfig{BlockSize: bs, WarpSize: ws, ItemsPerThread: items}
				k, err := selectKernel[float32](cfg)
				require.NoError(t, err, cfg.String())
				require.NotNil(t, k, cfg.String())
				count++
			}
		}
	}
	assert.Equal(t, len(dispatch.BlockSizes)*len(dispatch.WarpSizes)*len(dispatch.ItemCounts), count)
}

func TestSelectKernelRejectsUnsupported(t *testing.T) {
	tests := []struct {
		name  string
		cfg   LaunchConfig
		field string
	}{
		{"block 48", LaunchConfig{BlockSize: 48, WarpSize: 32, ItemsPerThread: 1}, "block size"},
		{"block 2048", LaunchConfig{BlockSize: 2048, WarpSize: 32, ItemsPerThread: 1}, "block size"},
		{"warp 16", LaunchConfig{BlockSize: 256, WarpSize: 16, ItemsPerThread: 1}, "warp size"},
		{"items 5", LaunchConfig{BlockSize: 256, WarpSize: 32, ItemsPerThread: 5}, "items per thread"},
		{"items 0", LaunchConfig{BlockSize: 256, WarpSize: 64, ItemsPerThread: 0}, "items per thread"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k, err := selectKernel[int32](tt.cfg)
			require.Error(t, err)
			assert.Nil(t, k)
			assert.True(t, guda.IsInvalidArgError(err))

			var unsupported *dispatch.UnsupportedError
			require.True(t, errors.As(err, &unsupported))
			assert.Equal(t, tt.field, unsupported.Name)
		})
	}
}

func TestLaunchConfig(t *testing.T) {
	cfg := LaunchConfig{BlockSize: 256, WarpSize: 64, ItemsPerThread: 4}
	assert.Equal(t, 1024, cfg.Factor())
	assert.Equal(t, "block=256 warp=64 items=4", cfg.String())
	assert.NoError(t, cfg.Validate())
}
