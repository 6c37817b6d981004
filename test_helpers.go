package guda

import (
	"testing"
)

// MallocOrFail allocates device memory and fails the test if unsuccessful
func MallocOrFail(t testing.TB, ctx *Context, size int) DevicePtr {
	t.Helper()
	ptr, err := ctx.Malloc(size)
	if err != nil {
		t.Fatalf("Failed to allocate %d bytes: %v", size, err)
	}
	return ptr
}

// MemcpyOrFail copies data and fails the test if unsuccessful
func MemcpyOrFail(t testing.TB, ctx *Context, dst, src interface{}, size int, direction MemcpyKind) {
	t.Helper()
	if err := ctx.Memcpy(dst, src, size, direction); err != nil {
		t.Fatalf("Memcpy failed: %v", err)
	}
}

// LaunchOrFail enqueues a cooperative kernel and fails the test if the launch
// is rejected
func LaunchOrFail(t testing.TB, ctx *Context, kernel BlockKernel, grid, block Dim3, stream *Stream) {
	t.Helper()
	if err := ctx.LaunchBlocks(kernel, grid, block, stream); err != nil {
		t.Fatalf("Kernel launch failed: %v", err)
	}
}

// SynchronizeOrFail synchronizes and fails the test if unsuccessful
func SynchronizeOrFail(t testing.TB, stream *Stream) {
	t.Helper()
	if err := stream.Synchronize(); err != nil {
		t.Fatalf("Synchronize failed: %v", err)
	}
}
