package main

import (
	"fmt"
	"math/rand"
	"os"
	"slices"
	"strconv"
	"time"
	"unsafe"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/muesli/termenv"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"github.com/x448/float16"
	"k8s.io/klog/v2"

	"github.com/LynnColeArt/guda-reduction"
	"github.com/LynnColeArt/guda-reduction/dispatch"
	"github.com/LynnColeArt/guda-reduction/reduction"
)

type sweepConfig struct {
	sizes, blockSizes, items []int
	repeat                   int
	warpSize                 int
	seed                     int64
	quiet                    bool // no progress bar
}

// dtype describes how to generate, reduce and check one element type.
type dtype[T any] struct {
	name     string
	op       reduction.Op[T]
	zero     T
	generate func(rng *rand.Rand, n int) []T
	// check compares got with a sequential reference over input and returns
	// the reference formatted for display.
	check  func(input []T, got T) (want string, ok bool)
	format func(T) string
}

var int32Type = dtype[int32]{
	name: "int32",
	op:   reduction.Sum[int32],
	generate: func(rng *rand.Rand, n int) []int32 {
		out := make([]int32, n)
		for i := range out {
			out[i] = int32(rng.Intn(201) - 100)
		}
		return out
	},
	check:  exactCheck[int32],
	format: func(v int32) string { return strconv.FormatInt(int64(v), 10) },
}

var int64Type = dtype[int64]{
	name: "int64",
	op:   reduction.Sum[int64],
	generate: func(rng *rand.Rand, n int) []int64 {
		out := make([]int64, n)
		for i := range out {
			out[i] = rng.Int63n(1<<32) - 1<<31
		}
		return out
	},
	check:  exactCheck[int64],
	format: func(v int64) string { return strconv.FormatInt(v, 10) },
}

var float32Type = dtype[float32]{
	name: "float32",
	op:   reduction.Sum[float32],
	generate: func(rng *rand.Rand, n int) []float32 {
		out := make([]float32, n)
		for i := range out {
			out[i] = rng.Float32()*2 - 1
		}
		return out
	},
	check: func(input []float32, got float32) (string, bool) {
		want, scale := reduction.CompensatedSum(input)
		tol := guda.ReductionTolerance(len(input), scale)
		return formatFloat(want), guda.Float32NearEqual(got, float32(want), tol)
	},
	format: func(v float32) string { return formatFloat(float64(v)) },
}

var float64Type = dtype[float64]{
	name: "float64",
	op:   reduction.Sum[float64],
	generate: func(rng *rand.Rand, n int) []float64 {
		out := make([]float64, n)
		for i := range out {
			out[i] = rng.Float64()*2 - 1
		}
		return out
	},
	check: func(input []float64, got float64) (string, bool) {
		want, scale := reduction.CompensatedSum(input)
		return formatFloat(want), guda.Float64NearEqual(got, want, guda.ReductionTolerance(len(input), scale))
	},
	format: formatFloat,
}

// float16Type draws from {-1, 0, 1} so partial sums stay on integers, which
// half precision holds exactly up to 2048.
var float16Type = dtype[float16.Float16]{
	name: "float16",
	op:   reduction.Float16Sum,
	zero: float16.Float16(0),
	generate: func(rng *rand.Rand, n int) []float16.Float16 {
		out := make([]float16.Float16, n)
		for i := range out {
			out[i] = float16.Fromfloat32(float32(rng.Intn(3) - 1))
		}
		return out
	},
	check: func(input []float16.Float16, got float16.Float16) (string, bool) {
		var want float64
		for _, v := range input {
			want += float64(v.Float32())
		}
		tol := guda.ToleranceConfig{AbsTol: 2, RelTol: 1e-2, CheckNaN: true, CheckInf: true}
		return formatFloat(want), guda.Float64NearEqual(float64(got.Float32()), want, tol)
	},
	format: func(v float16.Float16) string { return formatFloat(float64(v.Float32())) },
}

func exactCheck[T int32 | int64](input []T, got T) (string, bool) {
	want := reduction.Fold(input, reduction.Sum[T], 0)
	return strconv.FormatInt(int64(want), 10), got == want
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', 7, 64)
}

// runSweep reduces one generated input per size with every block size and
// items-per-thread combination, cfg.repeat times each.
func runSweep[T any](ctx *guda.Context, cfg sweepConfig, dt dtype[T]) ([]row, error) {
	for _, items := range cfg.items {
		if err := dispatch.Check("items per thread", dispatch.ItemCounts, items); err != nil {
			return nil, errors.Wrap(err, "-items")
		}
	}
	opts := []reduction.Option{
		reduction.WithInputSizes(cfg.sizes...),
		reduction.WithBlockSizes(cfg.blockSizes...),
	}
	if cfg.warpSize != 0 {
		opts = append(opts, reduction.WithWarpSize(cfg.warpSize))
	}
	engine, err := reduction.New(ctx, dt.op, dt.zero, opts...)
	if err != nil {
		return nil, errors.WithMessagef(err, "creating %s engine", dt.name)
	}
	defer func() {
		if err := engine.Close(); err != nil {
			klog.Warningf("Closing engine: %v", err)
		}
	}()

	var zero T
	elemSize := int(unsafe.Sizeof(zero))
	klog.V(1).Infof("%s engine: capacity %s elements, warp %d", dt.name,
		humanize.Comma(int64(engine.Capacity())), engine.WarpSize())

	total := len(cfg.sizes) * len(cfg.blockSizes) * len(cfg.items)
	var bar *progressbar.ProgressBar
	if !cfg.quiet {
		term := termenv.NewOutput(os.Stderr)
		term.HideCursor()
		defer term.ShowCursor()
		bar = progressbar.NewOptions(total,
			progressbar.OptionSetDescription("Reducing "+dt.name),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetTheme(progressbar.ThemeASCII),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}

	rng := rand.New(rand.NewSource(cfg.seed))
	rows := make([]row, 0, total)
	for _, n := range cfg.sizes {
		input := dt.generate(rng, n)
		for _, bs := range cfg.blockSizes {
			for _, items := range cfg.items {
				r := measure(engine, dt, input, bs, items, cfg.repeat)
				r.Bytes = int64(n * elemSize)
				rows = append(rows, r)
				if bar != nil {
					_ = bar.Add(1)
				}
			}
		}
	}
	if bar != nil {
		_ = bar.Finish()
	}
	return rows, nil
}

// measure runs one configuration repeat times, keeping the best and median
// device times. A failed call or a mismatching value fails the row.
func measure[T any](engine *reduction.Engine[T], dt dtype[T], input []T, bs, items, repeat int) row {
	r := row{
		DType:          dt.name,
		N:              len(input),
		BlockSize:      bs,
		ItemsPerThread: items,
		Status:         statusPass,
	}
	times := make([]time.Duration, 0, repeat)
	var last reduction.Result[T]
	for i := 0; i < repeat; i++ {
		res, err := engine.Reduce(input, bs, items)
		if err != nil {
			r.Status, r.Error = statusFail, err.Error()
			klog.Errorf("%s n=%d block=%d items=%d: %v", dt.name, len(input), bs, items, err)
			return r
		}
		times = append(times, res.Elapsed)
		last = res
	}
	slices.Sort(times)
	r.Passes = last.Passes
	r.Best = times[0]
	r.Median = times[len(times)/2]
	r.Value = dt.format(last.Value)

	want, ok := dt.check(input, last.Value)
	r.Expected = want
	if !ok {
		r.Status = statusMismatch
		klog.Errorf("%s n=%d block=%d items=%d: got %s, want %s", dt.name, len(input), bs, items, r.Value, want)
	}
	return r
}

var (
	headerStyle      = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle        = lipgloss.NewStyle().Padding(0, 1)
	numberStyle      = lipgloss.NewStyle().Align(lipgloss.Right).Padding(0, 1)
	failStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("#D04050")).Padding(0, 1)
	tableBorderColor = "#705090"
)

// renderTable formats rows as a bordered table.
func renderTable(rows []row) string {
	t := lgtable.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color(tableBorderColor))).
		Headers("dtype", "n", "block", "items", "passes", "best", "median", "throughput", "result").
		StyleFunc(func(r, c int) lipgloss.Style {
			switch {
			case r == lgtable.HeaderRow:
				return headerStyle
			case c == 8 && rows[r].Status != statusPass:
				return failStyle
			case c >= 1 && c <= 7:
				return numberStyle
			}
			return cellStyle
		})
	for _, r := range rows {
		result := r.Value
		switch r.Status {
		case statusFail:
			result = "error"
		case statusMismatch:
			result = fmt.Sprintf("%s != %s", r.Value, r.Expected)
		}
		t.Row(
			r.DType,
			humanize.Comma(int64(r.N)),
			strconv.Itoa(r.BlockSize),
			strconv.Itoa(r.ItemsPerThread),
			strconv.Itoa(r.Passes),
			formatMillis(r.Best),
			formatMillis(r.Median),
			r.throughput(),
			result,
		)
	}
	return t.Render()
}

func formatMillis(d time.Duration) string {
	return fmt.Sprintf("%.3fms", float64(d)/float64(time.Millisecond))
}
