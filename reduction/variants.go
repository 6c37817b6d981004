package reduction

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/LynnColeArt/guda-reduction"
	"github.com/LynnColeArt/guda-reduction/dispatch"
)

// LaunchConfig selects one specialization of the pass kernel.
type LaunchConfig struct {
	BlockSize      int
	WarpSize       int
	ItemsPerThread int
}

// Factor returns the number of input elements consumed per output element.
func (c LaunchConfig) Factor() int {
	return c.BlockSize * c.ItemsPerThread
}

func (c LaunchConfig) String() string {
	return fmt.Sprintf("block=%d warp=%d items=%d", c.BlockSize, c.WarpSize, c.ItemsPerThread)
}

// Validate reports the first value of c that is not on its menu.
func (c LaunchConfig) Validate() error {
	checks := []struct {
		name string
		menu []int
		v    int
	}{
		{"block size", dispatch.BlockSizes, c.BlockSize},
		{"warp size", dispatch.WarpSizes, c.WarpSize},
		{"items per thread", dispatch.ItemCounts, c.ItemsPerThread},
	}
	for _, check := range checks {
		if err := dispatch.Check(check.name, check.menu, check.v); err != nil {
			return &guda.GUDAError{
				Type:    guda.ErrTypeInvalidArg,
				Op:      "Reduce",
				Message: "unsupported launch configuration " + c.String(),
				Err:     err,
			}
		}
	}
	return ValidateFactor(c.Factor())
}

// selectKernel resolves cfg to its kernel specialization. The three switches
// mirror the three menus; every supported combination is instantiated here.
func selectKernel[T any](cfg LaunchConfig) (passKernel[T], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.BlockSize {
	case 4:
		return selectWarp[T, dispatch.B4](cfg)
	case 8:
		return selectWarp[T, dispatch.B8](cfg)
	case 16:
		return selectWarp[T, dispatch.B16](cfg)
	case 32:
		return selectWarp[T, dispatch.B32](cfg)
	case 64:
		return selectWarp[T, dispatch.B64](cfg)
	case 128:
		return selectWarp[T, dispatch.B128](cfg)
	case 256:
		return selectWarp[T, dispatch.B256](cfg)
	case 512:
		return selectWarp[T, dispatch.B512](cfg)
	case 1024:
		return selectWarp[T, dispatch.B1024](cfg)
	}
	return nil, unreachable(cfg)
}

func selectWarp[T any, B dispatch.BlockSize](cfg LaunchConfig) (passKernel[T], error) {
	switch cfg.WarpSize {
	case 32:
		return selectItems[T, B, dispatch.W32](cfg)
	case 64:
		return selectItems[T, B, dispatch.W64](cfg)
	}
	return nil, unreachable(cfg)
}

func selectItems[T any, B dispatch.BlockSize, W dispatch.WarpSize](cfg LaunchConfig) (passKernel[T], error) {
	switch cfg.ItemsPerThread {
	case 1:
		return reduceKernel[T, B, W, dispatch.I1], nil
	case 2:
		return reduceKernel[T, B, W, dispatch.I2], nil
	case 3:
		return reduceKernel[T, B, W, dispatch.I3], nil
	case 4:
		return reduceKernel[T, B, W, dispatch.I4], nil
	case 8:
		return reduceKernel[T, B, W, dispatch.I8], nil
	case 16:
		return reduceKernel[T, B, W, dispatch.I16], nil
	}
	return nil, unreachable(cfg)
}

// unreachable reports a menu value that passed Validate but has no case.
func unreachable(cfg LaunchConfig) error {
	return errors.Errorf("reduction: no kernel instantiated for %s", cfg)
}
