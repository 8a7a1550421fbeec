// Command gostsum computes or verifies GOST R 34.11-2012 (Streebog)
// message digests: generate mode prints a digest per input file or
// standard input, check mode verifies every line of a digest
// manifest and reports per-file pass/fail.
package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/klauspost/cpuid/v2"
	"github.com/mattn/go-isatty"
	"github.com/pborman/getopt/v2"
	"github.com/pborman/options"

	"github.com/dulesov-gost/gostsum/internal/dispatch"
	"github.com/dulesov-gost/gostsum/internal/manifest"
	"github.com/dulesov-gost/gostsum/internal/task"
	"github.com/dulesov-gost/gostsum/streebog"
)

// Exit codes, matching the original tool's S_OK/S_ERR_* status values.
const (
	exitOK           = 0
	exitHashMismatch = 1
	exitFormatError  = 2
	exitMemory       = 3
	exitIO           = 4
)

// minAsyncCheckFileSize is the manifest size, in bytes, at or above which
// check mode switches from inline validation to the worker pool.
const minAsyncCheckFileSize = 4000

const readBufSize = 8 << 10

func main() {
	opts := &struct {
		NoAsync bool         `getopt:"-n --no-async     Force synchronous check mode, no worker pool"`
		Verbose bool         `getopt:"-v --verbose      Print a status line per file in check mode"`
		Long    bool         `getopt:"-l --long         Produce 512-bit digests in generate mode (default 256-bit)"`
		Stats   bool         `getopt:"-V --statistics   Print throughput and detected CPU features to stderr"`
		Check   string       `getopt:"-c --check=FILE   Verify digests listed in FILE instead of generating"`
		Help    options.Help `getopt:"-h --help         Display help"`
	}{}
	options.RegisterAndParse(opts)

	args := getopt.Args()

	var code int
	switch {
	case opts.Check != "":
		code = runCheck(opts.Check, opts.Verbose, opts.NoAsync, opts.Stats)
	case len(args) > 0:
		code = runGenerate(args, opts.Long, opts.Verbose, opts.Stats)
	default:
		code = runGenerate([]string{"-"}, opts.Long, opts.Verbose, opts.Stats)
	}
	os.Exit(code)
}

// runGenerate computes and prints a digest for each named operand,
// "-" meaning standard input (main passes "-" when no operands are
// given).
func runGenerate(names []string, long, verbose, stats bool) int {
	digestBits := 256
	if long {
		digestBits = 512
	}

	start := time.Now()
	var total int64
	code := exitOK

	for _, name := range names {
		var r io.Reader
		display := name
		if name == "-" {
			r = os.Stdin
			if isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd()) {
				log.Println("gostsum: reading from standard input...")
			} else {
				applyIOOptimizations(os.Stdin)
			}
		} else {
			f, err := os.Open(name)
			if err != nil {
				log.Printf("gostsum: %s: %v", name, err)
				code = exitIO
				continue
			}
			defer f.Close()
			r = f
		}

		h, err := streebog.New(digestBits)
		if err != nil {
			log.Printf("gostsum: %v", err)
			return exitIO
		}

		n, err := io.CopyBuffer(h, r, make([]byte, readBufSize))
		if err != nil {
			log.Printf("gostsum: %s: %v", name, err)
			code = exitIO
			continue
		}
		total += n

		sum := h.Sum(nil)
		if verbose {
			fmt.Printf("%x %s\n", sum, display)
		} else {
			fmt.Printf("%x\n", sum)
		}
	}

	if stats {
		printStats(start, total)
	}
	return code
}

// runCheck verifies every line of the manifest at path, choosing
// between inline (sync) and worker-pool (async) validation by
// manifest size, mirroring the original heuristic.
func runCheck(path string, verbose, noAsync, stats bool) int {
	f, err := os.Open(path)
	if err != nil {
		log.Printf("gostsum: %s: %v", path, err)
		return exitIO
	}
	defer f.Close()
	applyIOOptimizations(f)

	async := !noAsync
	if fi, statErr := f.Stat(); statErr == nil {
		async = async && fi.Size() >= minAsyncCheckFileSize
	}

	start := time.Now()
	var lines int

	var disp *dispatch.Dispatcher
	if async {
		disp, err = dispatch.New(dispatch.DefaultSlots)
		if err != nil {
			log.Printf("gostsum: %v", err)
			return exitMemory
		}
		disp.Start(dispatch.WorkerCount())
	}

	code := exitOK
	report := func(t *task.Task, st task.State) {
		switch st {
		case task.Hdiff, task.Efile:
			code = exitHashMismatch
		}
		if verbose {
			printStatus(t, st)
		}
	}

	p := manifest.New(f)

	var cur *task.Task
	if async {
		cur = disp.Slot(disp.Len() - 1)
	} else {
		cur = new(task.Task)
	}
	cur.Init()

	var formatErrLine int
	for {
		err := p.Next(cur)
		if err == io.EOF {
			break
		}
		if err != nil {
			var fe *manifest.FormatError
			if errors.As(err, &fe) {
				formatErrLine = fe.Line
			}
			code = exitFormatError
			break
		}
		lines++

		if async {
			disp.Submit(cur)
			cur = disp.FindSlot(report)
		} else {
			st := cur.Validate()
			report(cur, st)
			cur.Release()
		}
	}

	if async {
		disp.Stop()
		disp.Wait()
		disp.Drain(report)
	}

	if formatErrLine > 0 && verbose {
		fmt.Printf("improperly formated line %d\n", formatErrLine)
	}

	if stats {
		printCheckStats(start, lines)
	}
	return code
}

func printStatus(t *task.Task, st task.State) {
	name := t.Filename()
	if name == "" {
		return
	}
	status := "ERROR"
	if st == task.Hequ {
		status = "OK"
	}
	fmt.Printf("%s - %s\n", name, status)
}

func printStats(start time.Time, bytesRead int64) {
	elapsed := time.Since(start)
	var mbps float64
	if elapsed > 0 {
		mbps = float64(bytesRead) / elapsed.Seconds() / (1 << 20)
	}
	fmt.Fprintf(os.Stderr, "gostsum: %d bytes in %s (%.2f MB/s)\n", bytesRead, elapsed, mbps)
	fmt.Fprintf(os.Stderr, "gostsum: cpu: %s, features: %s\n", cpuid.CPU.BrandName, cpuFeatureList())
}

func printCheckStats(start time.Time, lines int) {
	elapsed := time.Since(start)
	fmt.Fprintf(os.Stderr, "gostsum: %d manifest lines in %s\n", lines, elapsed)
	fmt.Fprintf(os.Stderr, "gostsum: cpu: %s, features: %s\n", cpuid.CPU.BrandName, cpuFeatureList())
}

func cpuFeatureList() string {
	var want = []struct {
		name string
		has  bool
	}{
		{"AVX2", cpuid.CPU.Has(cpuid.AVX2)},
		{"AVX512F", cpuid.CPU.Has(cpuid.AVX512F)},
		{"SSE2", cpuid.CPU.Has(cpuid.SSE2)},
		{"AES", cpuid.CPU.Has(cpuid.AESNI)},
	}
	var present []string
	for _, w := range want {
		if w.has {
			present = append(present, w.name)
		}
	}
	if len(present) == 0 {
		return "none detected"
	}
	out := present[0]
	for _, p := range present[1:] {
		out += "," + p
	}
	return out
}
