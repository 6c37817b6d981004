// Command reduce-bench sweeps the reduction engine over input sizes, block
// sizes and items per thread, verifies every result against a sequential
// fold and prints the timings as a table.
//
// Example:
//
//	reduce-bench -dtype float32 -sizes 1048576,16777216 -block_sizes 128,256 -items 1,4,16
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/LynnColeArt/guda-reduction"
)

var (
	flagSizes      = flag.String("sizes", "1024,65536,1048576,16777216", "Comma-separated input lengths.")
	flagBlockSizes = flag.String("block_sizes", "64,128,256,512,1024", "Comma-separated threads per block.")
	flagItems      = flag.String("items", "1,2,4,8,16", "Comma-separated items read per thread and pass.")
	flagDType      = flag.String("dtype", "int32", "Element type: int32, int64, float32, float64 or float16.")
	flagRepeat     = flag.Int("repeat", 5, "Timed repetitions per configuration.")
	flagWarp       = flag.Int("warp", 0, "Warp width override (32 or 64). 0 uses the device's width.")
	flagJSON       = flag.String("json", "", "Directory to write a JSON results session file to. Empty disables it.")
	flagSeed       = flag.Int64("seed", 1, "Seed for the generated inputs.")
	flagVersion    = flag.Bool("version", false, "Print the version and exit.")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	defer klog.Flush()

	if *flagVersion {
		version, sum := guda.Version()
		if version == "" {
			version = "(devel)"
		}
		fmt.Println("reduce-bench", version, sum)
		return
	}

	cfg := sweepConfig{
		sizes:      must.M1(parseInts("sizes", *flagSizes)),
		blockSizes: must.M1(parseInts("block_sizes", *flagBlockSizes)),
		items:      must.M1(parseInts("items", *flagItems)),
		repeat:     *flagRepeat,
		warpSize:   *flagWarp,
		seed:       *flagSeed,
	}
	if cfg.repeat < 1 {
		klog.Exitf("-repeat must be at least 1, got %d", cfg.repeat)
	}

	var log *sessionLogger
	if *flagJSON != "" {
		log = must.M1(newSessionLogger(*flagJSON, "reduce_"+*flagDType))
		klog.Infof("Writing results to %s", log.path)
	}

	ctx := guda.Default()
	dev := ctx.Device()
	fmt.Printf("Device: %s, %d cores, warp %d lanes. %s\n", dev.Name, dev.NumCores, dev.WarpSize, guda.GetCPUInfo())

	rows, err := runDType(ctx, *flagDType, cfg)
	if err != nil {
		klog.Fatalf("Sweep failed: %+v", err)
	}
	fmt.Println(renderTable(rows))

	failed := 0
	for _, r := range rows {
		if log != nil {
			log.Log(r)
		}
		if r.Status != statusPass {
			failed++
		}
	}
	if log != nil {
		must.M(log.Close())
	}
	if failed > 0 {
		fmt.Fprintf(os.Stderr, "%d of %d configurations failed\n", failed, len(rows))
		os.Exit(1)
	}
}

// runDType dispatches the sweep on the element type name.
func runDType(ctx *guda.Context, name string, cfg sweepConfig) ([]row, error) {
	switch name {
	case "int32":
		return runSweep(ctx, cfg, int32Type)
	case "int64":
		return runSweep(ctx, cfg, int64Type)
	case "float32":
		return runSweep(ctx, cfg, float32Type)
	case "float64":
		return runSweep(ctx, cfg, float64Type)
	case "float16":
		return runSweep(ctx, cfg, float16Type)
	}
	return nil, errors.Errorf("unknown -dtype %q", name)
}

// parseInts parses a comma-separated list of positive integers.
func parseInts(name, s string) ([]int, error) {
	var values []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.Atoi(part)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing -%s", name)
		}
		if v <= 0 {
			return nil, errors.Errorf("-%s: values must be positive, got %d", name, v)
		}
		values = append(values, v)
	}
	if len(values) == 0 {
		return nil, errors.Errorf("-%s is empty", name)
	}
	return values, nil
}
