package reduction

import (
	"fmt"
	"slices"
	"unsafe"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/LynnColeArt/guda-reduction"
)

// buffers owns the two device scratch arrays of an engine. The allocations
// never move; only the role tag that says which of them is the front changes.
type buffers[T any] struct {
	ctx      *guda.Context
	ptrs     [2]guda.DevicePtr // ptrs[0] is the original front, ptrs[1] the original back
	views    [2][]T
	frontIdx int // index into ptrs of the current front buffer
}

// newBuffers sizes the scratch space for the largest input and the smallest
// reduction factor any call may use: the front holds the whole input, the
// back holds the first pass's output. Items per thread are at least one, so
// the smallest block size is the smallest factor.
func newBuffers[T any](ctx *guda.Context, inputSizes, blockSizes []int) (*buffers[T], error) {
	if len(inputSizes) == 0 {
		return nil, guda.NewInvalidArgError("New", "no input sizes configured")
	}
	if len(blockSizes) == 0 {
		return nil, guda.NewInvalidArgError("New", "no block sizes configured")
	}
	largest := slices.Max(inputSizes)
	smallest := slices.Min(blockSizes)
	if slices.Min(inputSizes) <= 0 {
		return nil, guda.NewInvalidArgError("New", fmt.Sprintf("input sizes must be positive, got %v", inputSizes))
	}
	if err := ValidateFactor(smallest); err != nil {
		return nil, err
	}

	var zero T
	elem := int(unsafe.Sizeof(zero))
	frontLen, backLen := largest, NextSize(smallest, largest)

	b := &buffers[T]{ctx: ctx}
	for i, n := range [2]int{frontLen, backLen} {
		ptr, err := ctx.Malloc(n * elem)
		if err != nil {
			b.free()
			return nil, errors.Wrapf(err, "allocating %d-element %s buffer", n, roleName(i))
		}
		b.ptrs[i] = ptr
		b.views[i] = guda.View[T](ptr)[:n]
	}
	klog.V(1).Infof("reduction: allocated front=%d back=%d elements of %d bytes", frontLen, backLen, elem)
	return b, nil
}

func roleName(i int) string {
	if i == 0 {
		return "front"
	}
	return "back"
}

func (b *buffers[T]) front() []T { return b.views[b.frontIdx] }

func (b *buffers[T]) back() []T { return b.views[1-b.frontIdx] }

func (b *buffers[T]) frontPtr() guda.DevicePtr { return b.ptrs[b.frontIdx] }

func (b *buffers[T]) backPtr() guda.DevicePtr { return b.ptrs[1-b.frontIdx] }

// swap exchanges the front and back roles.
func (b *buffers[T]) swap() { b.frontIdx = 1 - b.frontIdx }

// reset restores the roles the buffers had at construction.
func (b *buffers[T]) reset() { b.frontIdx = 0 }

// capacity returns the element capacity of the original front and back.
func (b *buffers[T]) capacity() (front, back int) {
	return len(b.views[0]), len(b.views[1])
}

// free releases both allocations. It is safe to call more than once.
func (b *buffers[T]) free() error {
	var first error
	for i := range b.ptrs {
		if b.ptrs[i].IsNil() {
			continue
		}
		if err := b.ctx.Free(b.ptrs[i]); err != nil && first == nil {
			first = errors.Wrapf(err, "freeing %s buffer", roleName(i))
		}
		b.ptrs[i] = guda.DevicePtr{}
		b.views[i] = nil
	}
	return first
}
