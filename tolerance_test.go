package guda

import (
	"math"
	"testing"
)

func TestFloat32NearEqual(t *testing.T) {
	tests := []struct {
		name     string
		a, b     float32
		tol      ToleranceConfig
		expected bool
	}{
		// Exact equality
		{
			name:     "Exact_Equal",
			a:        1.0,
			b:        1.0,
			tol:      DefaultTolerance(),
			expected: true,
		},
		// Within absolute tolerance
		{
			name:     "Within_AbsTol",
			a:        1e-8,
			b:        2e-8,
			tol:      DefaultTolerance(),
			expected: true,
		},
		// Outside absolute tolerance
		{
			name:     "Outside_AbsTol",
			a:        1e-6,
			b:        2e-6,
			tol:      DefaultTolerance(),
			expected: false,
		},
		// Within relative tolerance
		{
			name:     "Within_RelTol",
			a:        1000.0,
			b:        1000.005,
			tol:      DefaultTolerance(),
			expected: true,
		},
		// Zero handling
		{
			name:     "Both_Zero",
			a:        0.0,
			b:        float32(math.Copysign(0, -1)),
			tol:      DefaultTolerance(),
			expected: true,
		},
		// NaN handling
		{
			name:     "Both_NaN",
			a:        float32(math.NaN()),
			b:        float32(math.NaN()),
			tol:      DefaultTolerance(),
			expected: true,
		},
		{
			name: "NaN_Not_Checked",
			a:    float32(math.NaN()),
			b:    float32(math.NaN()),
			tol: ToleranceConfig{
				CheckNaN: false,
				ULPTol:   4,
			},
			expected: false,
		},
		// Infinity handling
		{
			name:     "Both_PosInf",
			a:        float32(math.Inf(1)),
			b:        float32(math.Inf(1)),
			tol:      DefaultTolerance(),
			expected: true,
		},
		{
			name:     "Opposite_Inf",
			a:        float32(math.Inf(1)),
			b:        float32(math.Inf(-1)),
			tol:      DefaultTolerance(),
			expected: false,
		},
		// ULP handling
		{
			name:     "Adjacent_Floats",
			a:        1.0,
			b:        math.Nextafter32(1.0, 2.0),
			tol:      ToleranceConfig{ULPTol: 1},
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Float32NearEqual(tt.a, tt.b, tt.tol)
			if got != tt.expected {
				t.Errorf("Float32NearEqual(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.expected)
			}
		})
	}
}

func TestFloat32ULPDiff(t *testing.T) {
	tests := []struct {
		name string
		a, b float32
		want int
	}{
		{"Same", 1.0, 1.0, 0},
		{"Adjacent", 1.0, math.Nextafter32(1.0, 2.0), 1},
		{"Symmetric", math.Nextafter32(1.0, 2.0), 1.0, 1},
		{"Different_Signs", 1.0, -1.0, math.MaxInt32},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Float32ULPDiff(tt.a, tt.b); got != tt.want {
				t.Errorf("Float32ULPDiff(%v, %v) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestReductionTolerance(t *testing.T) {
	small := ReductionTolerance(16, 100)
	large := ReductionTolerance(1<<20, 100)
	if large.RelTol <= small.RelTol {
		t.Errorf("tolerance should grow with n: %v vs %v", small.RelTol, large.RelTol)
	}

	// A float32 sum off by a few roundings still matches.
	exact := 1234567.0
	off := float32(exact) + 0.25
	if !Float32NearEqual(off, float32(exact), ReductionTolerance(1<<16, exact)) {
		t.Errorf("%v and %v should match", off, exact)
	}
	if Float32NearEqual(float32(exact*1.01), float32(exact), ReductionTolerance(1<<16, exact)) {
		t.Errorf("a 1%% error should not match")
	}
}

func TestTolerancePresets(t *testing.T) {
	def := DefaultTolerance()
	relaxed := RelaxedTolerance()
	if relaxed.AbsTol <= def.AbsTol || relaxed.RelTol <= def.RelTol || relaxed.ULPTol <= def.ULPTol {
		t.Errorf("relaxed tolerance %+v should be looser than default %+v", relaxed, def)
	}
}
