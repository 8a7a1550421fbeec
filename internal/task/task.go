// Package task implements the Task (T) record from the design: a
// reusable, stack-allocatable job carrying an expected digest, a
// growable filename buffer, and an atomic state word that is the sole
// synchronization channel between the main thread and a worker
// goroutine. A Task holds no hash context of its own.
package task

import (
	"io"
	"os"
	"sync/atomic"

	"golang.org/x/xerrors"

	"github.com/dulesov-gost/gostsum/streebog"
)

// State is the atomic state word of a slot. The numeric values match
// the design's state alphabet exactly so log output and tests can
// refer to them directly.
type State uint32

const (
	Init  State = 0x0000 // slot free
	Subm  State = 0x0001 // filled by main, awaiting a worker
	Take  State = 0x0002 // claimed by a worker, computation in progress
	Hequ  State = 0xFF00 // completed: digests match
	Hdiff State = 0xFF01 // completed: digests differ
	Efile State = 0xFF02 // completed: file could not be read
)

// CompleteMask distinguishes any completed state from Init/Subm/Take.
const CompleteMask State = 0xFF00

// IsComplete reports whether s is one of Hequ, Hdiff, Efile.
func (s State) IsComplete() bool { return s&CompleteMask != 0 }

func (s State) String() string {
	switch s {
	case Init:
		return "INIT"
	case Subm:
		return "SUBM"
	case Take:
		return "TAKE"
	case Hequ:
		return "HEQU"
	case Hdiff:
		return "HDIFF"
	case Efile:
		return "EFILE"
	default:
		return "UNKNOWN"
	}
}

const (
	defaultFilenameCap = 256
	readBufSize        = 8 << 10 // 8 KiB, per spec's task_getdigest
)

// Task is one slot of the dispatcher's array. It owns its filename
// buffer; the buffer is grown (never shrunk) on demand. It keeps no
// hash context between validations: GetDigest allocates a fresh
// Streebog hash on every call.
type Task struct {
	state State64

	Digest     [64]byte // expected digest, hex-decoded
	DigestSize int      // 32 or 64

	filename []byte // owned, growable; only meaningful when hasName is set
	hasName  bool   // false means "use stdin"
}

// State64 wraps atomic.Uint32 so Task's zero value is ready to use
// (matches task_init's "idempotent, no allocation" contract).
type State64 struct {
	v atomic.Uint32
}

func (s *State64) Load() State   { return State(s.v.Load()) }
func (s *State64) Store(v State) { s.v.Store(uint32(v)) }

// CAS attempts to move the slot from want to next, returning whether
// it succeeded. Callers retry on failure (spec's "weak CAS acceptable
// with retry" — Go's CompareAndSwap is already strong, so the retry
// loop is the only thing that matters, not the weak/strong distinction).
func (s *State64) CAS(want, next State) bool {
	return s.v.CompareAndSwap(uint32(want), uint32(next))
}

// Init resets the task to INIT with an empty filename. Idempotent.
func (t *Task) Init() {
	t.state.Store(Init)
	t.hasName = false
}

// Free releases the filename buffer (if any) and reinitializes.
func (t *Task) Free() {
	t.filename = nil
	t.Init()
}

// MarkSubmitted stores SUBM, the publish step that hands a freshly
// filled slot to the worker pool (spec's "main stores SUBM with
// release ordering").
func (t *Task) MarkSubmitted() { t.state.Store(Subm) }

// TryTake attempts the single atomic SUBM->TAKE compare-and-swap a
// worker uses to claim a slot (spec invariant I2: at most one worker
// succeeds).
func (t *Task) TryTake() bool { return t.state.CAS(Subm, Take) }

// SetState stores an arbitrary state, used by sync-mode callers and
// by a worker publishing its completion state.
func (t *Task) SetState(s State) { t.state.Store(s) }

// Release atomically stores INIT. Relaxed ordering is sufficient:
// INIT is never used for cross-thread synchronization (only SUBM and
// the completion states are), so a plain store matches spec I4/T's
// task_release.
func (t *Task) Release() { t.state.Store(Init) }

// GetResult loads the current state with acquire ordering, pairing
// with a worker's release store of a completion state.
func (t *Task) GetResult() State { return t.state.Load() }

// SetFilename records which file this task validates. An empty
// filename means "read standard input".
func (t *Task) SetFilename(name string) {
	if name == "" {
		t.hasName = false
		return
	}
	t.hasName = true
	if cap(t.filename) < len(name) {
		t.filename = make([]byte, 0, growTo(len(name)))
	}
	t.filename = append(t.filename[:0], name...)
}

func growTo(need int) int {
	size := defaultFilenameCap
	for size < need {
		size *= 2
	}
	return size
}

// Filename returns the task's current filename, or "" for stdin.
func (t *Task) Filename() string {
	if !t.hasName {
		return ""
	}
	return string(t.filename)
}

var hexTable [256]int8

func init() {
	for i := range hexTable {
		hexTable[i] = -1
	}
	for c := '0'; c <= '9'; c++ {
		hexTable[c] = int8(c - '0')
	}
	for c := 'a'; c <= 'f'; c++ {
		hexTable[c] = int8(c-'a') + 10
	}
	for c := 'A'; c <= 'F'; c++ {
		hexTable[c] = int8(c-'A') + 10
	}
}

// Hex2Digest parses exactly 64 hex characters from str into
// t.Digest[shift:shift+32], tolerant of mixed case. It reports a
// format error on any non-hex character rather than panicking, since
// the input is attacker/typo controlled manifest content.
func (t *Task) Hex2Digest(shift int, str string) error {
	if len(str) != 64 {
		return xerrors.Errorf("task: expected 64 hex characters, got %d", len(str))
	}
	for i := 0; i < 32; i++ {
		hi := hexTable[str[2*i]]
		lo := hexTable[str[2*i+1]]
		if hi < 0 || lo < 0 {
			return xerrors.Errorf("task: invalid hex digit at offset %d", 2*i)
		}
		t.Digest[shift+i] = byte(hi)<<4 | byte(lo)
	}
	return nil
}

// CmpDigest byte-compares the first DigestSize bytes of actual
// against the expected digest.
func (t *Task) CmpDigest(actual []byte) bool {
	for i := 0; i < t.DigestSize; i++ {
		if t.Digest[i] != actual[i] {
			return false
		}
	}
	return true
}

// GetDigest opens the task's file (or stdin if none is set), drives
// the Streebog engine over it with 8 KiB reads, and writes the
// resulting digest into out. out must have room for DigestSize bytes.
func (t *Task) GetDigest(out []byte) error {
	var r io.Reader
	if !t.hasName {
		r = os.Stdin
	} else {
		f, err := os.Open(string(t.filename))
		if err != nil {
			return xerrors.Errorf("task: open %q: %w", t.filename, err)
		}
		defer f.Close()
		r = f
	}

	h, err := streebog.New(t.DigestSize * 8)
	if err != nil {
		return xerrors.Errorf("task: %w", err)
	}

	if _, err := io.CopyBuffer(h, r, make([]byte, readBufSize)); err != nil {
		return xerrors.Errorf("task: read: %w", err)
	}

	copy(out, h.Sum(nil))
	return nil
}

// Validate computes the task's actual digest and returns Hequ or
// Hdiff, or Efile on any I/O failure. It is the routine a worker runs
// outside the dispatcher's mutex.
func (t *Task) Validate() State {
	var actual [64]byte
	if err := t.GetDigest(actual[:t.DigestSize]); err != nil {
		return Efile
	}
	if t.CmpDigest(actual[:]) {
		return Hequ
	}
	return Hdiff
}
