package task

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dulesov-gost/gostsum/streebog"
)

func TestHex2DigestRoundTrip(t *testing.T) {
	var tsk Task
	tsk.Init()

	hex64 := "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"
	if err := tsk.Hex2Digest(0, hex64); err != nil {
		t.Fatalf("Hex2Digest: %v", err)
	}
	want := []byte{0x01, 0x23, 0x45, 0x67, 0x89, 0xab, 0xcd, 0xef}
	for i, b := range want {
		if tsk.Digest[i] != b {
			t.Fatalf("byte %d = %#x, want %#x", i, tsk.Digest[i], b)
		}
	}
}

func TestHex2DigestRejectsBadInput(t *testing.T) {
	var tsk Task
	tsk.Init()

	if err := tsk.Hex2Digest(0, "short"); err == nil {
		t.Fatal("expected error on short input")
	}

	bad := "zz23456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"
	if err := tsk.Hex2Digest(0, bad); err == nil {
		t.Fatal("expected error on non-hex character")
	}
}

func TestSetFilenameGrows(t *testing.T) {
	var tsk Task
	tsk.Init()

	short := "a.txt"
	tsk.SetFilename(short)
	if got := tsk.Filename(); got != short {
		t.Fatalf("Filename() = %q, want %q", got, short)
	}

	long := make([]byte, defaultFilenameCap*3)
	for i := range long {
		long[i] = 'x'
	}
	tsk.SetFilename(string(long))
	if got := tsk.Filename(); got != string(long) {
		t.Fatal("Filename() did not round-trip a name longer than the default capacity")
	}

	tsk.SetFilename("")
	if got := tsk.Filename(); got != "" {
		t.Fatalf("Filename() = %q after clearing, want empty", got)
	}
}

func TestStateTransitions(t *testing.T) {
	var tsk Task
	tsk.Init()

	if tsk.GetResult() != Init {
		t.Fatalf("fresh task state = %v, want Init", tsk.GetResult())
	}

	tsk.MarkSubmitted()
	if tsk.GetResult() != Subm {
		t.Fatalf("state after MarkSubmitted = %v, want Subm", tsk.GetResult())
	}

	if !tsk.TryTake() {
		t.Fatal("TryTake should succeed from Subm")
	}
	if tsk.GetResult() != Take {
		t.Fatalf("state after TryTake = %v, want Take", tsk.GetResult())
	}
	if tsk.TryTake() {
		t.Fatal("a second TryTake must not succeed")
	}

	tsk.SetState(Hequ)
	if !tsk.GetResult().IsComplete() {
		t.Fatal("Hequ should be a complete state")
	}

	tsk.Release()
	if tsk.GetResult() != Init {
		t.Fatalf("state after Release = %v, want Init", tsk.GetResult())
	}
}

func TestValidateDetectsMatchAndMismatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.bin")
	content := []byte("some file content to hash")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatal(err)
	}

	digest := streebog.Sum256(content)

	var tsk Task
	tsk.Init()
	tsk.DigestSize = 32
	copy(tsk.Digest[:], digest[:])
	tsk.SetFilename(path)

	if got := tsk.Validate(); got != Hequ {
		t.Fatalf("Validate() = %v, want Hequ", got)
	}

	tsk.Digest[0] ^= 0xff
	if got := tsk.Validate(); got != Hdiff {
		t.Fatalf("Validate() = %v, want Hdiff", got)
	}
}

func TestValidateMissingFile(t *testing.T) {
	var tsk Task
	tsk.Init()
	tsk.DigestSize = 32
	tsk.SetFilename(filepath.Join(t.TempDir(), "does-not-exist"))

	if got := tsk.Validate(); got != Efile {
		t.Fatalf("Validate() = %v, want Efile", got)
	}
}

func TestFreeClearsFilenameAndResetsState(t *testing.T) {
	var tsk Task
	tsk.Init()
	tsk.SetFilename("whatever")
	tsk.Free()
	if tsk.Filename() != "" {
		t.Fatal("Free() should clear the filename")
	}
	if tsk.GetResult() != Init {
		t.Fatal("Free() should leave the task in Init")
	}
}
