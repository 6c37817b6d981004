package reduction

import (
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/x448/float16"

	"github.com/LynnColeArt/guda-reduction"
	"github.com/LynnColeArt/guda-reduction/dispatch"
)

func newEngine[T any](t *testing.T, op Op[T], zero T, opts ...Option) *Engine[T] {
	t.Helper()
	ctx := guda.NewContext()
	t.Cleanup(func() { ctx.Destroy() })

	e, err := New(ctx, op, zero, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, e.Close()) })
	return e
}

func iota64(n int) []int64 {
	out := make([]int64, n)
	for i := range out {
		out[i] = int64(i + 1)
	}
	return out
}

func TestReduceEightElementsBlockFour(t *testing.T) {
	e := newEngine(t, Sum[int64], 0, WithInputSizes(8), WithWarpSize(32))

	res, err := e.Reduce(iota64(8), 4, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(36), res.Value)
	assert.Equal(t, 2, res.Passes)
	assert.GreaterOrEqual(t, res.Elapsed, time.Duration(0))
}

func TestReduceTenElementsTwoItems(t *testing.T) {
	e := newEngine(t, Sum[int64], 0, WithInputSizes(10))

	res, err := e.Reduce(iota64(10), 4, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(55), res.Value)
	assert.Equal(t, len(Plan(8, 10)), res.Passes)
	assert.Equal(t, 2, res.Passes)
}

func TestReduceMatchesSequentialFold(t *testing.T) {
	sizes := []int{1, 2, 3, 31, 32, 33, 1000, 4097, 65537}
	if testing.Short() {
		sizes = []int{1, 33, 4097}
	}
	rng := rand.New(rand.NewSource(7))
	inputs := make([][]int64, len(sizes))
	for i, n := range sizes {
		inputs[i] = make([]int64, n)
		for j := range inputs[i] {
			inputs[i][j] = rng.Int63n(1<<20) - 1<<19
		}
	}

	for _, ws := range dispatch.WarpSizes {
		e := newEngine(t, Sum[int64], 0, WithInputSizes(sizes...), WithWarpSize(ws))
		assert.Equal(t, ws, e.WarpSize())

		for _, bs := range dispatch.BlockSizes {
			for _, items := range dispatch.ItemCounts {
				for i, input := range inputs {
					res, err := e.Reduce(input, bs, items)
					require.NoError(t, err)
					assert.Equal(t, Fold(input, Sum[int64], 0), res.Value,
						"warp=%d block=%d items=%d n=%d", ws, bs, items, sizes[i])
					assert.Equal(t, len(Plan(bs*items, len(input))), res.Passes)
				}
			}
		}
	}
}

func TestReduceMaxMin(t *testing.T) {
	input := make([]int32, 5000)
	rng := rand.New(rand.NewSource(3))
	for i := range input {
		input[i] = rng.Int31() - math.MaxInt32/2
	}
	input[4321] = math.MaxInt32 - 1
	input[17] = math.MinInt32 + 1

	maxEngine := newEngine(t, Max[int32], math.MinInt32, WithInputSizes(len(input)))
	res, err := maxEngine.Reduce(input, 128, 3)
	require.NoError(t, err)
	assert.Equal(t, int32(math.MaxInt32-1), res.Value)

	minEngine := newEngine(t, Min[int32], math.MaxInt32, WithInputSizes(len(input)))
	res, err = minEngine.Reduce(input, 64, 8)
	require.NoError(t, err)
	assert.Equal(t, int32(math.MinInt32+1), res.Value)
}

func TestReduceExtent(t *testing.T) {
	values := []float64{3.5, -2, 17, 0.25, -9.75, 4}
	input := make([]Extent[float64], 0, 1000)
	for i := 0; i < 1000; i++ {
		input = append(input, ExtentOf(values[i%len(values)]*float64(i%7)))
	}

	zero := EmptyExtent(math.Inf(-1), math.Inf(1))
	e := newEngine(t, MergeExtent[float64], zero, WithInputSizes(len(input)))

	res, err := e.Reduce(input, 16, 4)
	require.NoError(t, err)
	assert.Equal(t, Fold(input, MergeExtent[float64], zero), res.Value)
}

func TestReduceFloat32(t *testing.T) {
	const n = 1 << 18
	input := make([]float32, n)
	rng := rand.New(rand.NewSource(42))
	var exact, scale float64
	for i := range input {
		input[i] = rng.Float32()*2 - 0.5
		exact += float64(input[i])
		scale += math.Abs(float64(input[i]))
	}

	e := newEngine(t, Sum[float32], 0, WithInputSizes(n))
	first, err := e.Reduce(input, 256, 4)
	require.NoError(t, err)
	assert.True(t, guda.Float32NearEqual(first.Value, float32(exact), guda.ReductionTolerance(n, scale)),
		"got %v, want %v", first.Value, exact)

	// The tree order is fixed by the configuration, so results are bitwise stable.
	for i := 0; i < 3; i++ {
		again, err := e.Reduce(input, 256, 4)
		require.NoError(t, err)
		assert.Equal(t, math.Float32bits(first.Value), math.Float32bits(again.Value))
	}
}

func TestReduceFloat16(t *testing.T) {
	input := make([]float16.Float16, 1000)
	for i := range input {
		input[i] = float16.Fromfloat32(1)
	}
	e := newEngine(t, Float16Sum, float16.Float16(0), WithInputSizes(len(input)))

	res, err := e.Reduce(input, 32, 2)
	require.NoError(t, err)
	assert.Equal(t, float32(1000), res.Value.Float32())
}

func TestReducePaddingIsNeutral(t *testing.T) {
	base := iota64(37)
	padded := append(append([]int64(nil), base...), make([]int64, 91)...)
	e := newEngine(t, Sum[int64], 0, WithInputSizes(len(padded)))

	a, err := e.Reduce(base, 8, 3)
	require.NoError(t, err)
	b, err := e.Reduce(padded, 8, 3)
	require.NoError(t, err)
	assert.Equal(t, a.Value, b.Value)
}

func TestReduceReusesBuffers(t *testing.T) {
	e := newEngine(t, Sum[int64], 0, WithInputSizes(100, 5000))
	allocated, _ := e.ctx.MemoryStats()

	for _, tc := range []struct{ n, bs, items int }{
		{5000, 4, 1}, {100, 32, 2}, {5000, 1024, 16}, {1, 4, 1}, {4999, 16, 3},
	} {
		input := iota64(tc.n)
		res, err := e.Reduce(input, tc.bs, tc.items)
		require.NoError(t, err)
		assert.Equal(t, int64(tc.n*(tc.n+1)/2), res.Value)
		assert.Equal(t, 0, e.bufs.frontIdx, "buffer roles not restored")

		now, _ := e.ctx.MemoryStats()
		assert.Equal(t, allocated, now, "Reduce must not allocate device memory")
	}
}

func TestReduceSingleAndEmpty(t *testing.T) {
	e := newEngine(t, Max[int64], math.MinInt64, WithInputSizes(16))

	res, err := e.Reduce([]int64{-5}, 4, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(-5), res.Value)
	assert.Equal(t, 0, res.Passes)

	res, err = e.Reduce(nil, 4, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(math.MinInt64), res.Value)
	assert.Equal(t, 0, res.Passes)
}

func TestReduceRejectsUnsupportedConfig(t *testing.T) {
	e := newEngine(t, Sum[int64], 0, WithInputSizes(64))

	_, err := e.Reduce(iota64(64), 48, 1)
	require.Error(t, err)
	assert.True(t, guda.IsInvalidArgError(err))
	var unsupported *dispatch.UnsupportedError
	assert.True(t, errors.As(err, &unsupported))

	_, err = e.Reduce(iota64(64), 64, 7)
	assert.True(t, guda.IsInvalidArgError(err))

	// Rejection happens before any device work; the engine stays usable.
	res, err := e.Reduce(iota64(64), 64, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(64*65/2), res.Value)
}

func TestReduceCapacityErrors(t *testing.T) {
	e := newEngine(t, Sum[int64], 0, WithInputSizes(1024), WithBlockSizes(256, 512))
	front, _ := e.bufs.capacity()
	assert.Equal(t, 1024, front)
	assert.Equal(t, 1024, e.Capacity())

	_, err := e.Reduce(iota64(1025), 256, 1)
	require.Error(t, err)
	assert.True(t, guda.IsInvalidArgError(err))

	// Block 4 leaves 256 partials, the back buffer was sized for block 256.
	_, err = e.Reduce(iota64(1024), 4, 1)
	require.Error(t, err)
	assert.True(t, guda.IsInvalidArgError(err))

	// Items per thread only shrink the first pass further.
	res, err := e.Reduce(iota64(1024), 256, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(1024*1025/2), res.Value)
}

func TestNewErrors(t *testing.T) {
	ctx := guda.NewContext(guda.WithMemoryLimit(1 << 16))
	defer ctx.Destroy()

	_, err := New(ctx, Sum[int64], 0, WithInputSizes(1<<20))
	require.Error(t, err)
	assert.True(t, guda.IsMemoryError(err))
	allocated, _ := ctx.MemoryStats()
	assert.Zero(t, allocated, "failed construction must release what it allocated")

	_, err = New(ctx, Sum[int64], 0)
	assert.True(t, guda.IsInvalidArgError(err), "no input sizes")

	_, err = New(ctx, Sum[int64], 0, WithInputSizes(0))
	assert.True(t, guda.IsInvalidArgError(err), "zero input size")

	_, err = New(ctx, Sum[int64], 0, WithInputSizes(8), WithBlockSizes(48))
	var unsupported *dispatch.UnsupportedError
	assert.True(t, errors.As(err, &unsupported), "block size off the menu")

	_, err = New(ctx, Sum[int64], 0, WithInputSizes(8), WithWarpSize(16))
	assert.True(t, errors.As(err, &unsupported), "warp size off the menu")

	_, err = New[int64](ctx, nil, 0, WithInputSizes(8))
	assert.True(t, guda.IsInvalidArgError(err), "nil operator")

	_, err = New[int64](nil, Sum[int64], 0, WithInputSizes(8))
	assert.True(t, guda.IsInvalidArgError(err), "nil context")

	concat := func(a, b string) string { return a + b }
	_, err = New(ctx, concat, "", WithInputSizes(8))
	assert.True(t, guda.IsInvalidArgError(err), "string elements hold pointers")

	type tagged struct {
		v    int64
		name *string
	}
	_, err = New(ctx, func(a, b tagged) tagged { return a }, tagged{}, WithInputSizes(8))
	assert.True(t, guda.IsInvalidArgError(err), "struct with a pointer field")

	_, err = New(ctx, func(a, b struct{}) struct{} { return a }, struct{}{}, WithInputSizes(8))
	assert.True(t, guda.IsInvalidArgError(err), "zero-size elements")
}

func TestReduceOperatorPanicIsSticky(t *testing.T) {
	bad := func(a, b int64) int64 {
		if a == 13 || b == 13 {
			panic("unlucky")
		}
		return a + b
	}
	e := newEngine(t, bad, 0, WithInputSizes(100))

	_, err := e.Reduce(iota64(100), 32, 1)
	require.Error(t, err)
	assert.True(t, guda.IsExecutionError(err))
	assert.Equal(t, 0, e.bufs.frontIdx)

	// The engine's stream keeps the failure.
	_, err = e.Reduce([]int64{1, 2}, 4, 1)
	assert.True(t, guda.IsExecutionError(err))
}

func TestResultElapsedMillis(t *testing.T) {
	r := Result[int]{Elapsed: 1500 * time.Microsecond}
	assert.InDelta(t, 1.5, r.ElapsedMillis(), 1e-6)
}
