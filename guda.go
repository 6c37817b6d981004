package guda

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"unsafe"
)

// Device represents a compute device. In GUDA, this is the CPU with its
// cores and available memory. Each device has a unique ID and capabilities.
type Device struct {
	ID         int    // Unique device identifier
	Name       string // Human-readable device name
	TotalMem   uint64 // Total available memory in bytes
	NumCores   int    // Number of CPU cores
	MaxThreads int    // Maximum concurrent threads
	WarpSize   int    // Lanes per warp, fixed at startup
}

// Context represents an execution context for GUDA operations.
// It manages device resources, memory allocation, and stream execution.
// A Context must be created before any GUDA operations and should be
// destroyed when no longer needed.
type Context struct {
	device        *Device
	mu            sync.Mutex
	streams       map[int]*Stream
	streamID      int32
	memory        *MemoryPool
	defaultStream *Stream
}

// ContextOption configures a Context created by NewContext.
type ContextOption func(*Context)

// WithMemoryLimit caps the bytes the context's memory pool may hand out.
func WithMemoryLimit(bytes int64) ContextOption {
	return func(ctx *Context) {
		ctx.memory.limit = bytes
	}
}

// Dim3 represents 3D dimensions for grid and block configurations.
// This matches CUDA's dim3 structure for kernel launch parameters.
// A zero Y or Z counts as 1, so Dim3{X: n} describes n items.
type Dim3 struct {
	X, Y, Z int
}

// DevicePtr represents a pointer to device memory. It supports pointer
// arithmetic through the Offset method; use View to access the underlying
// data as a typed slice.
type DevicePtr struct {
	ptr    unsafe.Pointer
	size   int
	offset int
}

// Global runtime state
var (
	defaultDevice  *Device
	defaultContext *Context
	initOnce       sync.Once
)

// Initialize GUDA runtime
func init() {
	initOnce.Do(func() {
		defaultDevice = &Device{
			ID:         0,
			Name:       "CPU",
			TotalMem:   DefaultMemoryLimit,
			NumCores:   runtime.NumCPU(),
			MaxThreads: runtime.NumCPU() * 2, // Hyperthreading
			WarpSize:   nativeWarpSize(),
		}
		defaultContext = NewContext()
	})
}

// NewContext creates an execution context on the CPU device with its own
// memory pool and default stream.
func NewContext(opts ...ContextOption) *Context {
	ctx := &Context{
		device:  defaultDevice,
		streams: make(map[int]*Stream),
		memory:  NewMemoryPool(int64(defaultDevice.TotalMem)),
	}
	for _, opt := range opts {
		opt(ctx)
	}
	ctx.defaultStream = ctx.CreateStream()
	return ctx
}

// Default returns the process-wide context used by the package-level functions.
func Default() *Context {
	return defaultContext
}

// Malloc allocates device memory of the specified size in bytes.
// In GUDA, this allocates CPU memory with proper alignment for SIMD operations.
//
// Example:
//
//	d_data, err := guda.Malloc(1024 * 4) // Allocate 1024 float32s
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer guda.Free(d_data)
func Malloc(size int) (DevicePtr, error) {
	return defaultContext.Malloc(size)
}

// Free releases device memory allocated by Malloc.
func Free(ptr DevicePtr) error {
	return defaultContext.Free(ptr)
}

// Memcpy copies memory between host and device on the default context.
func Memcpy(dst, src interface{}, size int, kind MemcpyKind) error {
	return defaultContext.Memcpy(dst, src, size, kind)
}

// Synchronize waits for all operations on all streams to complete.
func Synchronize() error {
	return defaultContext.Synchronize()
}

// GetDevice returns the current device information.
// In GUDA, this always returns the CPU device.
func GetDevice() *Device {
	return defaultDevice
}

// SetDevice sets the active device (no-op for CPU)
func SetDevice(id int) error {
	if id != 0 {
		return ErrInvalidDevice
	}
	return nil
}

// GetDeviceCount returns the number of available devices.
// GUDA always returns 1 as it only supports CPU execution.
func GetDeviceCount() int {
	return 1 // Only CPU
}

// GetDeviceProperties returns device properties
func GetDeviceProperties(id int) (*Device, error) {
	if id != 0 {
		return nil, NewInvalidArgError("GetDeviceProperties", fmt.Sprintf("invalid device ID: %d", id))
	}
	return defaultDevice, nil
}

// Context methods

// Device returns the device the context runs on.
func (ctx *Context) Device() *Device {
	return ctx.device
}

// DefaultStream returns the stream created together with the context.
func (ctx *Context) DefaultStream() *Stream {
	return ctx.defaultStream
}

// CreateStream creates a new execution stream
func (ctx *Context) CreateStream() *Stream {
	id := int(atomic.AddInt32(&ctx.streamID, 1))
	stream := newStream(id)

	ctx.mu.Lock()
	ctx.streams[id] = stream
	ctx.mu.Unlock()
	return stream
}

// DestroyStream waits for the stream's pending work and releases it.
func (ctx *Context) DestroyStream(stream *Stream) error {
	ctx.mu.Lock()
	delete(ctx.streams, stream.id)
	ctx.mu.Unlock()
	return stream.destroy()
}

// Synchronize waits for all streams to complete and returns the first
// error any of them recorded.
func (ctx *Context) Synchronize() error {
	ctx.mu.Lock()
	streams := make([]*Stream, 0, len(ctx.streams))
	for _, stream := range ctx.streams {
		streams = append(streams, stream)
	}
	ctx.mu.Unlock()

	var first error
	for _, stream := range streams {
		if err := stream.Synchronize(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Destroy stops every stream of the context. Memory still allocated stays
// owned by the pool and is released with it.
func (ctx *Context) Destroy() error {
	ctx.mu.Lock()
	streams := ctx.streams
	ctx.streams = make(map[int]*Stream)
	ctx.mu.Unlock()

	var first error
	for _, stream := range streams {
		if err := stream.destroy(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Helper functions

// Size returns the total number of elements
func (d Dim3) Size() int {
	return d.X * d.norm(d.Y) * d.norm(d.Z)
}

func (d Dim3) norm(v int) int {
	if v == 0 {
		return 1
	}
	return v
}

// linearTo3D converts a linear index to 3D coordinates
func linearTo3D(linear int, dim Dim3) Dim3 {
	x, y := dim.X, dim.norm(dim.Y)
	z := linear / (x * y)
	return Dim3{X: linear % x, Y: (linear % (x * y)) / x, Z: z}
}
