package guda

import (
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Block is the execution state of one thread block of a cooperative kernel.
// A single goroutine runs all threads of a block in lockstep: each loop over
// the block's threads is one SIMT step, and SyncThreads marks the barrier
// between steps that exchange data through shared memory.
type Block struct {
	Idx      Dim3 // Block index within the grid
	Dim      Dim3 // Dimensions of the block
	GridDim  Dim3 // Dimensions of the grid
	WarpSize int  // Lanes per warp on the launching device

	barriers int
}

// Linear returns the block's linear index within the grid.
func (b *Block) Linear() int {
	return b.Idx.X + b.GridDim.X*(b.Idx.Y+b.GridDim.norm(b.GridDim.Y)*b.Idx.Z)
}

// Threads returns the number of threads in the block.
func (b *Block) Threads() int {
	return b.Dim.Size()
}

// SyncThreads is __syncthreads: every thread of the block has finished the
// preceding step. Lockstep execution already guarantees that; the call
// records the barrier so tools and tests can count synchronization rounds.
func (b *Block) SyncThreads() {
	b.barriers++
}

// Barriers returns how many barriers the current block has passed.
func (b *Block) Barriers() int {
	return b.barriers
}

// BlockFunc executes one whole block of a cooperative kernel.
type BlockFunc func(blk *Block)

// BlockKernel builds the per-worker body of a cooperative kernel. It is called
// once by each worker goroutine of a launch, so registers and shared memory
// allocated inside it belong to that worker and are reused for every block
// the worker executes.
type BlockKernel func() BlockFunc

// LaunchBlocks enqueues a cooperative kernel on stream. Blocks are spread over
// one worker per CPU core; blocks never observe each other's state. The call
// returns once the launch is enqueued. Configuration errors are returned
// immediately; failures while running (a panicking kernel) become the
// stream's sticky error and surface at the next synchronization.
func (ctx *Context) LaunchBlocks(kernel BlockKernel, grid, block Dim3, stream *Stream) error {
	if kernel == nil {
		return NewInvalidArgError("LaunchBlocks", "nil kernel")
	}
	if stream == nil {
		stream = ctx.defaultStream
	}
	if grid.X < 0 || grid.Y < 0 || grid.Z < 0 {
		return NewInvalidArgError("LaunchBlocks", fmt.Sprintf("invalid grid dimensions %+v", grid))
	}
	threads := block.Size()
	if block.X <= 0 || block.Y < 0 || block.Z < 0 || threads > MaxThreadsPerBlock {
		return NewInvalidArgError("LaunchBlocks",
			fmt.Sprintf("invalid block dimensions %+v (1..%d threads)", block, MaxThreadsPerBlock))
	}

	gridSize := grid.Size()

	// Handle edge case where grid size is zero
	if gridSize == 0 {
		// Submit an empty task to maintain stream ordering
		return stream.Submit(func() error { return nil })
	}

	// Determine parallelism strategy
	numWorkers := min(runtime.NumCPU(), gridSize)

	// Each worker executes a contiguous range of blocks
	blocksPerWorker := (gridSize + numWorkers - 1) / numWorkers
	warpSize := ctx.device.WarpSize

	return stream.Submit(func() error {
		var g errgroup.Group
		for start := 0; start < gridSize; start += blocksPerWorker {
			end := min(start+blocksPerWorker, gridSize)
			g.Go(func() error {
				return runBlocks(kernel, start, end, grid, block, warpSize)
			})
		}
		return g.Wait()
	})
}

// runBlocks executes blocks [start, end) on the calling goroutine. A panic
// inside the kernel is reported as an execution error naming the block.
func runBlocks(kernel BlockKernel, start, end int, grid, block Dim3, warpSize int) (err error) {
	current := -1
	defer func() {
		if r := recover(); r != nil {
			err = NewExecutionError("LaunchBlocks",
				fmt.Sprintf("kernel panicked in block %d", current), fmt.Errorf("%v", r))
		}
	}()

	body := kernel()
	blk := Block{Dim: block, GridDim: grid, WarpSize: warpSize}
	for current = start; current < end; current++ {
		blk.Idx = linearTo3D(current, grid)
		blk.barriers = 0
		body(&blk)
	}
	return nil
}
