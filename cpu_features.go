package guda

import (
	"runtime"
	"strings"

	"golang.org/x/sys/cpu"
)

// CPUFeatures tracks the CPU vector extensions that shape the emulated warp
type CPUFeatures struct {
	HasAVX2    bool
	HasAVX512F bool // Foundation
	HasFMA     bool
	HasASIMD   bool // arm64 Advanced SIMD
}

// Global CPU feature detection, resolved before any init function runs
var cpuFeatures = detectCPUFeatures()

// detectCPUFeatures reads the feature bits reported by x/sys/cpu
func detectCPUFeatures() CPUFeatures {
	return CPUFeatures{
		HasAVX2:    cpu.X86.HasAVX2,
		HasAVX512F: cpu.X86.HasAVX512F,
		HasFMA:     cpu.X86.HasFMA,
		HasASIMD:   runtime.GOARCH == "arm64" && cpu.ARM64.HasASIMD,
	}
}

// nativeWarpSize is the warp width the device reports: the wide warp on CPUs
// with 512-bit vector units, the CUDA width everywhere else.
func nativeWarpSize() int {
	if cpuFeatures.HasAVX512F {
		return WideWarpSize
	}
	return DefaultWarpSize
}

// GetCPUInfo returns a string describing available CPU features
func GetCPUInfo() string {
	var features []string
	if cpuFeatures.HasAVX2 {
		features = append(features, "AVX2")
	}
	if cpuFeatures.HasFMA {
		features = append(features, "FMA")
	}
	if cpuFeatures.HasAVX512F {
		features = append(features, "AVX512F")
	}
	if cpuFeatures.HasASIMD {
		features = append(features, "ASIMD")
	}
	if len(features) == 0 {
		return "No SIMD extensions detected"
	}
	return "CPU features: " + strings.Join(features, ", ")
}
