// Package reduction reduces large arrays to one value on a GUDA device.
//
// An Engine owns two device scratch buffers sized at construction. Each call
// to Reduce copies the input to the front buffer, then launches passes of a
// block-cooperative kernel. Each pass collapses the array by a factor of
// block size × items per thread, writing one partial per block into the back
// buffer, and the buffers swap roles between passes. When a single element is
// left it is copied back to the host. The pass sequence is timed with device
// events.
//
// The kernel is specialized per (block size, warp width, items per thread)
// over fixed menus (see package dispatch); unsupported values are rejected
// before any device work.
//
// Example:
//
//	engine, err := reduction.New(guda.Default(), reduction.Sum[int64], 0,
//		reduction.WithInputSizes(1<<20))
//	if err != nil {
//	    return err
//	}
//	defer engine.Close()
//	res, err := engine.Reduce(data, 256, 4)
package reduction

import (
	"fmt"
	"reflect"
	"time"
	"unsafe"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/LynnColeArt/guda-reduction"
	"github.com/LynnColeArt/guda-reduction/dispatch"
)

// Result of one Reduce call.
type Result[T any] struct {
	Value   T
	Elapsed time.Duration // device time of the pass sequence, copies excluded
	Passes  int           // kernel launches issued
}

// ElapsedMillis returns Elapsed in fractional milliseconds.
func (r Result[T]) ElapsedMillis() float32 {
	return float32(r.Elapsed.Seconds() * 1e3)
}

// Option configures an Engine.
type Option func(*options)

type options struct {
	inputSizes []int
	blockSizes []int
	warpSize   int
}

// WithInputSizes lists the input lengths the engine will be called with. The
// front buffer is sized for the largest. At least one size is required.
func WithInputSizes(sizes ...int) Option {
	return func(o *options) {
		o.inputSizes = append(o.inputSizes, sizes...)
	}
}

// WithBlockSizes lists the block sizes the engine will be called with. The
// back buffer is sized for the smallest. Defaults to every supported size.
func WithBlockSizes(sizes ...int) Option {
	return func(o *options) {
		o.blockSizes = append(o.blockSizes, sizes...)
	}
}

// WithWarpSize overrides the warp width reported by the device.
func WithWarpSize(width int) Option {
	return func(o *options) {
		o.warpSize = width
	}
}

// Engine reduces arrays of T with a fixed operator. An Engine is not safe for
// concurrent use; independent engines may run concurrently.
type Engine[T any] struct {
	ctx      *guda.Context
	stream   *guda.Stream
	op       Op[T]
	zero     T
	elemSize int
	warpSize int
	bufs     *buffers[T]
}

// New creates an engine on ctx for op with neutral element zero, allocating
// its scratch buffers. Allocation failure is returned as a memory error and
// leaves no engine behind.
func New[T any](ctx *guda.Context, op Op[T], zero T, opts ...Option) (*Engine[T], error) {
	if ctx == nil {
		return nil, guda.NewInvalidArgError("New", "nil context")
	}
	if op == nil {
		return nil, guda.NewInvalidArgError("New", "nil operator")
	}
	if err := checkElementType(reflect.TypeOf((*T)(nil)).Elem()); err != nil {
		return nil, err
	}

	o := options{warpSize: ctx.Device().WarpSize}
	for _, opt := range opts {
		opt(&o)
	}
	if len(o.blockSizes) == 0 {
		o.blockSizes = dispatch.BlockSizes
	}
	for _, bs := range o.blockSizes {
		if err := dispatch.Check("block size", dispatch.BlockSizes, bs); err != nil {
			return nil, errors.Wrap(err, "reduction.New")
		}
	}
	if err := dispatch.Check("warp size", dispatch.WarpSizes, o.warpSize); err != nil {
		return nil, errors.Wrap(err, "reduction.New")
	}

	bufs, err := newBuffers[T](ctx, o.inputSizes, o.blockSizes)
	if err != nil {
		return nil, err
	}
	return &Engine[T]{
		ctx:      ctx,
		stream:   ctx.CreateStream(),
		op:       op,
		zero:     zero,
		elemSize: int(unsafe.Sizeof(zero)),
		warpSize: o.warpSize,
		bufs:     bufs,
	}, nil
}

// checkElementType rejects element types that cannot live in device memory.
func checkElementType(t reflect.Type) error {
	if t.Size() == 0 {
		return guda.NewInvalidArgError("New", fmt.Sprintf("element type %s has zero size", t))
	}
	if hasPointers(t) {
		return guda.NewInvalidArgError("New", fmt.Sprintf("element type %s contains Go pointers", t))
	}
	return nil
}

func hasPointers(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.UnsafePointer, reflect.Map, reflect.Slice, reflect.String,
		reflect.Chan, reflect.Func, reflect.Interface:
		return true
	case reflect.Array:
		return t.Len() > 0 && hasPointers(t.Elem())
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			if hasPointers(t.Field(i).Type) {
				return true
			}
		}
	}
	return false
}

// WarpSize returns the warp width the engine's kernels are specialized for.
func (e *Engine[T]) WarpSize() int {
	return e.warpSize
}

// Capacity returns the largest input length the engine accepts.
func (e *Engine[T]) Capacity() int {
	front, _ := e.bufs.capacity()
	return front
}

// Reduce folds input with the engine's operator using blocks of blockSize
// threads that each read itemsPerThread elements per pass. It returns the
// reduced value, the device time of the passes and the number of passes.
// An empty input reduces to the neutral element.
//
// The buffers' roles are restored before Reduce returns, whether it succeeds
// or not. Device errors are sticky on the engine's stream: after one, every
// later call fails too and the engine should be closed.
func (e *Engine[T]) Reduce(input []T, blockSize, itemsPerThread int) (res Result[T], err error) {
	cfg := LaunchConfig{BlockSize: blockSize, WarpSize: e.warpSize, ItemsPerThread: itemsPerThread}
	kernel, err := selectKernel[T](cfg)
	if err != nil {
		return res, err
	}
	factor := cfg.Factor()

	n := len(input)
	frontCap, backCap := e.bufs.capacity()
	if n > frontCap {
		return res, guda.NewInvalidArgError("Reduce",
			fmt.Sprintf("input of %d elements exceeds configured maximum %d", n, frontCap))
	}
	if first := NextSize(factor, n); first > backCap {
		return res, guda.NewInvalidArgError("Reduce",
			fmt.Sprintf("%s leaves %d partials, back buffer holds %d; configure a smaller block size with WithBlockSizes",
				cfg, first, backCap))
	}
	if n == 0 {
		res.Value = e.zero
		return res, nil
	}

	defer e.bufs.reset()

	if err = e.ctx.Memcpy(e.bufs.frontPtr(), unsafe.Pointer(unsafe.SliceData(input)), n*e.elemSize,
		guda.MemcpyHostToDevice); err != nil {
		return res, errors.Wrap(err, "Memcpy")
	}

	start, err := e.ctx.EventCreate()
	if err != nil {
		return res, errors.Wrap(err, "EventCreate")
	}
	defer e.destroyEvent(start)
	end, err := e.ctx.EventCreate()
	if err != nil {
		return res, errors.Wrap(err, "EventCreate")
	}
	defer e.destroyEvent(end)

	if err = e.ctx.EventRecord(start, e.stream); err != nil {
		return res, errors.Wrap(err, "EventRecord")
	}
	for curr := n; curr > 1; {
		next := NextSize(factor, curr)
		klog.V(2).Infof("reduction: pass %d %s: %d -> %d", res.Passes+1, cfg, curr, next)
		launch := kernel(e.bufs.front(), e.bufs.back(), e.op, e.zero, curr)
		if err = e.ctx.LaunchBlocks(launch, guda.Dim3{X: next}, guda.Dim3{X: blockSize}, e.stream); err != nil {
			return res, errors.Wrapf(err, "LaunchBlocks (pass %d)", res.Passes+1)
		}
		res.Passes++

		curr = next
		if curr > 1 {
			e.bufs.swap()
		}
	}
	if err = e.ctx.EventRecord(end, e.stream); err != nil {
		return res, errors.Wrap(err, "EventRecord")
	}
	if err = e.ctx.EventSynchronize(end); err != nil {
		return res, errors.Wrap(err, "EventSynchronize")
	}

	// With no pass issued the single input element is still in front.
	src := e.bufs.backPtr()
	if res.Passes == 0 {
		src = e.bufs.frontPtr()
	}
	if err = e.ctx.Memcpy(unsafe.Pointer(&res.Value), src, e.elemSize, guda.MemcpyDeviceToHost); err != nil {
		return res, errors.Wrap(err, "Memcpy")
	}

	ms, err := e.ctx.EventElapsedTime(start, end)
	if err != nil {
		return res, errors.Wrap(err, "EventElapsedTime")
	}
	res.Elapsed = time.Duration(float64(ms) * float64(time.Millisecond))

	klog.V(1).Infof("reduction: %d elements, %s, %d passes in %.3fms", n, cfg, res.Passes, ms)
	return res, nil
}

func (e *Engine[T]) destroyEvent(ev *guda.Event) {
	if err := e.ctx.EventDestroy(ev); err != nil {
		klog.Warningf("reduction: failed to destroy event: %v", err)
	}
}

// Close waits for pending work, then releases the engine's stream and
// buffers. The engine must not be used afterwards.
func (e *Engine[T]) Close() error {
	streamErr := e.ctx.DestroyStream(e.stream)
	if streamErr != nil {
		klog.Warningf("reduction: stream finished with error: %v", streamErr)
	}
	return e.bufs.free()
}
