package dispatch

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/dulesov-gost/gostsum/internal/task"
	"github.com/dulesov-gost/gostsum/streebog"
)

func TestNewRejectsOutOfRangeSize(t *testing.T) {
	if _, err := New(MinSlots - 1); err == nil {
		t.Fatal("expected error for too-small slot count")
	}
	if _, err := New(MaxSlots + 1); err == nil {
		t.Fatal("expected error for too-large slot count")
	}
}

// writeManifestFiles creates n files of varying content in dir and
// returns their paths together with their digests; every digest is
// correct except the one at corruptIdx, whose first byte is flipped.
func writeManifestFiles(t *testing.T, dir string, n int, corruptIdx int) ([]string, [][32]byte) {
	t.Helper()
	paths := make([]string, n)
	digests := make([][32]byte, n)
	for i := 0; i < n; i++ {
		content := make([]byte, i*37%5000)
		for j := range content {
			content[j] = byte(i + j)
		}
		path := filepath.Join(dir, fmt.Sprintf("f%03d.bin", i))
		if err := os.WriteFile(path, content, 0o600); err != nil {
			t.Fatal(err)
		}
		d := streebog.Sum256(content)
		if i == corruptIdx {
			d[0] ^= 0xff
		}
		paths[i] = path
		digests[i] = d
	}
	return paths, digests
}

// runAllAsync submits every task through a Dispatcher, synchronously
// draining completions as FindSlot reports them, and returns the
// outcome recorded for each file, keyed by filename.
func runAllAsync(t *testing.T, paths []string, digests [][32]byte, workers int) map[string]task.State {
	t.Helper()
	d, err := New(DefaultSlots)
	if err != nil {
		t.Fatal(err)
	}
	d.Start(workers)

	results := make(map[string]task.State)
	report := func(tk *task.Task, st task.State) {
		results[tk.Filename()] = st
	}

	var cur *task.Task = d.Slot(d.Len() - 1)
	cur.Init()
	for i := range paths {
		cur.DigestSize = 32
		copy(cur.Digest[:], digests[i][:])
		cur.SetFilename(paths[i])
		d.Submit(cur)
		cur = d.FindSlot(report)
	}

	d.Stop()
	d.Wait()
	d.Drain(report)
	return results
}

func TestHappyPathAllMatch(t *testing.T) {
	dir := t.TempDir()
	paths, digests := writeManifestFiles(t, dir, 50, -1)

	results := runAllAsync(t, paths, digests, 4)
	if len(results) != len(paths) {
		t.Fatalf("got %d results, want %d", len(results), len(paths))
	}
	for _, p := range paths {
		if results[p] != task.Hequ {
			t.Errorf("%s: state = %v, want Hequ", p, results[p])
		}
	}
}

func TestOneCorruptedOfFifty(t *testing.T) {
	dir := t.TempDir()
	const corrupt = 17
	paths, digests := writeManifestFiles(t, dir, 50, corrupt)

	results := runAllAsync(t, paths, digests, 4)

	errCount := 0
	for i, p := range paths {
		if results[p] == task.Hdiff {
			errCount++
			if i != corrupt {
				t.Errorf("unexpected mismatch for %s (index %d)", p, i)
			}
		}
	}
	if errCount != 1 {
		t.Fatalf("got %d mismatches, want 1", errCount)
	}
}

func TestAsyncMatchesSyncOutcomes(t *testing.T) {
	dir := t.TempDir()
	paths, digests := writeManifestFiles(t, dir, 30, 5)

	sync := make(map[string]task.State)
	var tsk task.Task
	tsk.Init()
	for i := range paths {
		tsk.DigestSize = 32
		copy(tsk.Digest[:], digests[i][:])
		tsk.SetFilename(paths[i])
		sync[paths[i]] = tsk.Validate()
		tsk.Release()
	}

	for _, workers := range []int{1, 2, 8} {
		async := runAllAsync(t, paths, digests, workers)
		for _, p := range paths {
			if async[p] != sync[p] {
				t.Errorf("workers=%d: %s async=%v sync=%v", workers, p, async[p], sync[p])
			}
		}
	}
}

func TestFindSlotReleasesCompletedSlots(t *testing.T) {
	d, err := New(MinSlots)
	if err != nil {
		t.Fatal(err)
	}
	d.Start(2)
	defer func() {
		d.Stop()
		d.Wait()
	}()

	dir := t.TempDir()
	paths, digests := writeManifestFiles(t, dir, 12, -1)

	seen := 0
	report := func(tk *task.Task, st task.State) { seen++ }

	cur := d.Slot(d.Len() - 1)
	cur.Init()
	for i := range paths {
		cur.DigestSize = 32
		copy(cur.Digest[:], digests[i][:])
		cur.SetFilename(paths[i])
		d.Submit(cur)
		cur = d.FindSlot(report)
	}

	// Drain whatever is left so seen reaches len(paths).
	for seen < len(paths) {
		cur = d.FindSlot(report)
		_ = cur
	}
}
