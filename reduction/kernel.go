package reduction

import (
	"github.com/LynnColeArt/guda-reduction"
	"github.com/LynnColeArt/guda-reduction/dispatch"
)

// passKernel builds the cooperative kernel for one pass over the first
// frontSize elements of front, writing one element per block into back.
type passKernel[T any] func(front, back []T, op Op[T], zero T, frontSize int) guda.BlockKernel

// reduceKernel is the pass kernel specialized for block size B, warp width W
// and I items per thread. Each block consumes B*I consecutive elements and
// emits one:
//
//  1. every thread reads its I items, substituting zero past frontSize, and
//     folds them left to right;
//  2. each warp reduces its lanes with shuffles (W/2, W/4, ..., 1) and lane 0
//     stores the partial in the shared slot of its warp;
//  3. after a barrier, the partials are loaded back into the first lanes and
//     reduced again by ceil(partials/W) warps, until one value is left;
//  4. thread 0 stores the block's value at back[block index].
//
// When B < W the block is a partial warp; the missing lanes hold zero.
func reduceKernel[T any, B dispatch.BlockSize, W dispatch.WarpSize, I dispatch.ItemsPerThread](
	front, back []T, op Op[T], zero T, frontSize int,
) guda.BlockKernel {
	blockSize, warpSize, items := dispatch.Of[B](), dispatch.Of[W](), dispatch.Of[I]()
	warpCount := (blockSize + warpSize - 1) / warpSize
	chunk := blockSize * items

	return func() guda.BlockFunc {
		regs := make([]T, warpCount*warpSize) // one register per lane
		shfl := make([]T, warpSize)          // shuffle network output
		shared := make([]T, warpCount)       // __shared__ T shared[WarpCount]

		return func(blk *guda.Block) {
			bid := blk.Idx.X
			base := bid * chunk

			// Read input from front buffer to local, then reduce to scalar.
			for tid := 0; tid < blockSize; tid++ {
				var local [dispatch.MaxItemsPerThread]T
				gid := base + tid*items
				if gid+items <= frontSize {
					copy(local[:items], front[gid:gid+items])
				} else {
					for i := 0; i < items; i++ {
						if gid+i < frontSize {
							local[i] = front[gid+i]
						} else {
							local[i] = zero
						}
					}
				}
				acc := local[0]
				for i := 1; i < items; i++ {
					acc = op(acc, local[i])
				}
				regs[tid] = acc
			}
			for lane := blockSize; lane < len(regs); lane++ {
				regs[lane] = zero
			}

			// Warp reductions, communicating partials through shared.
			active := warpCount
			for {
				for w := 0; w < active; w++ {
					lanes := regs[w*warpSize : (w+1)*warpSize]
					for delta := warpSize / 2; delta > 0; delta /= 2 {
						guda.ShflDown(shfl, lanes, delta)
						for lane := range lanes {
							lanes[lane] = op(lanes[lane], shfl[lane])
						}
					}
					shared[w] = lanes[0]
				}
				blk.SyncThreads()
				if active == 1 {
					break
				}

				// Slots past the partials written this round read as zero.
				for tid := range regs {
					if tid < active {
						regs[tid] = shared[tid]
					} else {
						regs[tid] = zero
					}
				}
				active = (active + warpSize - 1) / warpSize
			}

			back[bid] = shared[0]
		}
	}
}
