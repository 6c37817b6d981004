package guda

// Thread and block dimensions
const (
	// Maximum threads per block (CUDA compatibility)
	MaxThreadsPerBlock = 1024

	// Warp width used when no wide SIMD unit is available
	DefaultWarpSize = 32

	// Warp width reported on CPUs with 512-bit vector units
	WideWarpSize = 64
)

// Memory pool parameters
const (
	// Memory alignment for allocations
	MemoryAlignment = 64

	// Default device memory budget for a context
	DefaultMemoryLimit = 16 * 1024 * 1024 * 1024

	// Capacity of a stream's pending task queue
	StreamQueueDepth = 1000
)

// Numerical constants
const (
	// Machine epsilon for float32
	Float32Epsilon = 1.192092896e-07

	// Maximum ULP difference for float32 comparisons
	MaxULPDiff = 4
)
