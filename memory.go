package guda

import (
	"fmt"
	"sync"
	"unsafe"
)

// MemcpyKind specifies the direction of memory transfer.
// In GUDA's unified memory model, these are provided for CUDA compatibility;
// they are validated against the operand types but copy identically.
type MemcpyKind int

const (
	MemcpyHostToHost     MemcpyKind = iota // Host to host transfer
	MemcpyHostToDevice                     // Host to device transfer
	MemcpyDeviceToHost                     // Device to host transfer
	MemcpyDeviceToDevice                   // Device to device transfer
	MemcpyDefault                          // Default transfer (infer direction)
)

// String returns the CUDA-style name of the transfer direction.
func (k MemcpyKind) String() string {
	switch k {
	case MemcpyHostToHost:
		return "HostToHost"
	case MemcpyHostToDevice:
		return "HostToDevice"
	case MemcpyDeviceToHost:
		return "DeviceToHost"
	case MemcpyDeviceToDevice:
		return "DeviceToDevice"
	case MemcpyDefault:
		return "Default"
	default:
		return fmt.Sprintf("MemcpyKind(%d)", int(k))
	}
}

// MemoryPool manages device memory allocation with efficient reuse.
// It maintains a free list of previously allocated blocks to reduce
// allocation overhead and memory fragmentation.
type MemoryPool struct {
	mu         sync.Mutex
	allocated  map[uintptr]*allocation
	freeList   []*allocation
	totalAlloc int64
	peakAlloc  int64
	reserved   int64 // bytes backed by live or free-listed allocations
	limit      int64
}

type allocation struct {
	buf  []byte
	size int
	used bool
}

// NewMemoryPool creates a memory pool that hands out at most limit bytes.
// The pool tracks allocations and provides statistics on memory usage.
func NewMemoryPool(limit int64) *MemoryPool {
	return &MemoryPool{
		allocated: make(map[uintptr]*allocation),
		limit:     limit,
	}
}

// Malloc allocates device memory of the specified size in bytes.
// The memory is aligned for optimal SIMD performance.
//
// Example:
//
//	ptr, err := ctx.Malloc(1024 * 4) // Allocate 1024 float32s
//	if err != nil {
//	    return err
//	}
//	defer ctx.Free(ptr)
func (ctx *Context) Malloc(size int) (DevicePtr, error) {
	return ctx.memory.Allocate(size)
}

// Free releases device memory allocated by Malloc.
// It is safe to call Free with a zero DevicePtr.
// The memory may be retained in the pool for future allocations.
func (ctx *Context) Free(ptr DevicePtr) error {
	if ptr.ptr == nil {
		return nil
	}
	return ctx.memory.Free(ptr)
}

// MemoryStats returns the bytes currently handed out and the peak.
func (ctx *Context) MemoryStats() (allocated, peak int64) {
	return ctx.memory.GetStats()
}

// Memcpy copies size bytes between host and device.
// Each operand is either a DevicePtr or an unsafe.Pointer to host memory;
// typed host slices of the common element types are accepted too.
//
// Example:
//
//	h_data := make([]float32, 1024)
//	d_data, _ := ctx.Malloc(1024 * 4)
//	ctx.Memcpy(d_data, h_data, 1024*4, guda.MemcpyHostToDevice)
func (ctx *Context) Memcpy(dst, src interface{}, size int, kind MemcpyKind) error {
	if size < 0 {
		return NewInvalidArgError("Memcpy", fmt.Sprintf("negative size %d", size))
	}
	if size == 0 {
		return nil
	}

	dstPtr, dstDev, err := resolveOperand("dst", dst, size)
	if err != nil {
		return err
	}
	srcPtr, srcDev, err := resolveOperand("src", src, size)
	if err != nil {
		return err
	}
	if err := checkDirection(kind, dstDev, srcDev); err != nil {
		return err
	}

	// On CPU, all memory transfers are just memcpy
	copy(unsafe.Slice((*byte)(dstPtr), size), unsafe.Slice((*byte)(srcPtr), size))
	return nil
}

// resolveOperand turns a Memcpy operand into a raw pointer, reporting whether
// it lives on the device. Device and slice operands are bounds checked.
func resolveOperand(name string, v interface{}, size int) (unsafe.Pointer, bool, error) {
	var (
		ptr    unsafe.Pointer
		avail  = -1
		device bool
	)
	switch d := v.(type) {
	case DevicePtr:
		ptr, avail, device = d.ptr, d.size, true
	case unsafe.Pointer:
		ptr = d
	case []byte:
		ptr, avail = unsafe.Pointer(unsafe.SliceData(d)), len(d)
	case []float32:
		ptr, avail = unsafe.Pointer(unsafe.SliceData(d)), len(d)*4
	case []float64:
		ptr, avail = unsafe.Pointer(unsafe.SliceData(d)), len(d)*8
	case []int32:
		ptr, avail = unsafe.Pointer(unsafe.SliceData(d)), len(d)*4
	case []int64:
		ptr, avail = unsafe.Pointer(unsafe.SliceData(d)), len(d)*8
	default:
		return nil, false, NewInvalidArgError("Memcpy", fmt.Sprintf("unsupported %s type: %T", name, v))
	}
	if ptr == nil {
		return nil, false, ErrNullPointer
	}
	if avail >= 0 && size > avail {
		return nil, false, NewInvalidArgError("Memcpy",
			fmt.Sprintf("copy of %d bytes overruns %s of %d bytes", size, name, avail))
	}
	return ptr, device, nil
}

func checkDirection(kind MemcpyKind, dstDev, srcDev bool) error {
	var ok bool
	switch kind {
	case MemcpyHostToHost:
		ok = !dstDev && !srcDev
	case MemcpyHostToDevice:
		ok = dstDev && !srcDev
	case MemcpyDeviceToHost:
		ok = !dstDev && srcDev
	case MemcpyDeviceToDevice:
		ok = dstDev && srcDev
	case MemcpyDefault:
		ok = true
	}
	if !ok {
		return NewInvalidArgError("Memcpy", fmt.Sprintf("operands do not match transfer kind %s", kind))
	}
	return nil
}

// MemoryPool methods

// Allocate allocates memory from the pool
func (mp *MemoryPool) Allocate(size int) (DevicePtr, error) {
	if size <= 0 {
		return DevicePtr{}, ErrInvalidSize
	}

	mp.mu.Lock()
	defer mp.mu.Unlock()

	// Round up to alignment
	alignedSize := (size + MemoryAlignment - 1) &^ (MemoryAlignment - 1)

	// Try to reuse from free list
	for i, alloc := range mp.freeList {
		if alloc.size >= alignedSize {
			// Remove from free list
			mp.freeList = append(mp.freeList[:i], mp.freeList[i+1:]...)
			alloc.used = true
			mp.track(int64(alloc.size))
			return DevicePtr{ptr: unsafe.Pointer(&alloc.buf[0]), size: size}, nil
		}
	}

	if mp.limit > 0 && mp.reserved+int64(alignedSize) > mp.limit {
		return DevicePtr{}, NewMemoryError("Malloc",
			fmt.Sprintf("out of memory: requested %d bytes, %d of %d in use", alignedSize, mp.reserved, mp.limit), ErrOutOfMemory)
	}

	// The pool keeps buf referenced, so the GC never collects live device memory.
	buf := make([]byte, alignedSize)
	alloc := &allocation{
		buf:  buf,
		size: alignedSize,
		used: true,
	}
	mp.allocated[uintptr(unsafe.Pointer(&buf[0]))] = alloc
	mp.reserved += int64(alignedSize)
	mp.track(int64(alignedSize))

	return DevicePtr{ptr: unsafe.Pointer(&buf[0]), size: size}, nil
}

func (mp *MemoryPool) track(n int64) {
	mp.totalAlloc += n
	if mp.totalAlloc > mp.peakAlloc {
		mp.peakAlloc = mp.totalAlloc
	}
}

// Free returns memory to the pool
func (mp *MemoryPool) Free(ptr DevicePtr) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	alloc, ok := mp.allocated[uintptr(ptr.ptr)]
	if !ok {
		return NewMemoryError("Free", "pointer not found in allocation pool", nil)
	}

	if !alloc.used {
		return ErrDoubleFree
	}

	// Mark as free and add to free list
	alloc.used = false
	mp.freeList = append(mp.freeList, alloc)
	mp.totalAlloc -= int64(alloc.size)

	return nil
}

// GetStats returns memory pool statistics
func (mp *MemoryPool) GetStats() (allocated, peak int64) {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	return mp.totalAlloc, mp.peakAlloc
}

// DevicePtr methods for convenience

// View returns a typed slice over the device memory d points to. The slice
// holds as many whole T values as fit. T must not contain Go pointers: device
// memory is untyped and invisible to the garbage collector.
//
// Example:
//
//	d_data, _ := guda.Malloc(1024 * 4) // Allocate for 1024 float32s
//	data := guda.View[float32](d_data)
//	data[0] = 3.14 // Direct access
func View[T any](d DevicePtr) []T {
	var zero T
	elem := int(unsafe.Sizeof(zero))
	if d.ptr == nil || elem == 0 {
		return nil
	}
	return unsafe.Slice((*T)(d.ptr), d.size/elem)
}

// Offset returns a new DevicePtr offset by the given number of bytes.
// Useful for accessing sub-regions of allocated memory.
// The returned DevicePtr shares the same underlying memory.
func (d DevicePtr) Offset(bytes int) DevicePtr {
	return DevicePtr{
		ptr:    unsafe.Add(d.ptr, bytes),
		size:   d.size - bytes,
		offset: d.offset + bytes,
	}
}

// Size returns the size in bytes of the memory region
func (d DevicePtr) Size() int {
	return d.size
}

// IsNil reports whether d points to no memory.
func (d DevicePtr) IsNil() bool {
	return d.ptr == nil
}
