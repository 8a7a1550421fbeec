package streebog

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"testing"
)

// known-answer vector from the standard: 63 ASCII digits, 256-bit digest.
const (
	kat1Message = "012345678901234567890123456789012345678901234567890123456789012"
	kat1Digest  = "9d151eefd8590b89daa6ba6cb74af9275dd051026bb149a452fd84e5e57b5500"
)

func TestKnownAnswer256(t *testing.T) {
	want, err := hex.DecodeString(kat1Digest[:64])
	if err != nil {
		t.Fatalf("bad test fixture: %v", err)
	}
	got := Sum256([]byte(kat1Message))
	if !bytes.Equal(got[:], want) {
		t.Fatalf("Sum256(kat1) = %x, want %x", got, want)
	}
}

func TestEmptyMessageStreamingEquivalence(t *testing.T) {
	direct := Sum256(nil)

	h := New256()
	if _, err := h.Write(nil); err != nil {
		t.Fatal(err)
	}
	streamed := h.Sum(nil)

	if !bytes.Equal(direct[:], streamed) {
		t.Fatalf("empty-message digest mismatch: direct=%x streamed=%x", direct, streamed)
	}
}

func TestDigestDeterministic(t *testing.T) {
	msg := []byte("the quick brown fox jumps over the lazy dog")
	a := Sum512(msg)
	b := Sum512(msg)
	if a != b {
		t.Fatalf("Sum512 is not deterministic: %x != %x", a, b)
	}
}

func TestVariantsDiffer(t *testing.T) {
	msg := []byte("the quick brown fox jumps over the lazy dog")
	d256 := Sum256(msg)
	d512 := Sum512(msg)
	if bytes.Equal(d256[:], d512[:32]) {
		t.Fatal("256-bit digest must not equal the high half of the 512-bit digest: chaining values are seeded differently")
	}
}

func TestStreamingEquivalence(t *testing.T) {
	buf := make([]byte, 1<<20)
	for i := range buf {
		buf[i] = byte(i)
	}
	want256 := Sum256(buf)
	want512 := Sum512(buf)

	for _, chunk := range []int{1, 63, 64, 65, 1024, 8192} {
		chunk := chunk
		t.Run(fmt.Sprintf("chunk=%d", chunk), func(t *testing.T) {
			h256 := New256()
			h512 := New512()
			for off := 0; off < len(buf); off += chunk {
				end := off + chunk
				if end > len(buf) {
					end = len(buf)
				}
				h256.Write(buf[off:end])
				h512.Write(buf[off:end])
			}
			got256 := h256.Sum(nil)
			got512 := h512.Sum(nil)
			if !bytes.Equal(got256, want256[:]) {
				t.Errorf("256-bit chunked digest mismatch at chunk size %d", chunk)
			}
			if !bytes.Equal(got512, want512[:]) {
				t.Errorf("512-bit chunked digest mismatch at chunk size %d", chunk)
			}
		})
	}
}

func TestBoundarySizes(t *testing.T) {
	for _, n := range []int{0, 1, 63, 64, 65, 127, 128} {
		n := n
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			buf := make([]byte, n)
			for i := range buf {
				buf[i] = byte(i * 7)
			}

			h := New256()
			h.Write(buf)
			oneShot := h.Sum(nil)

			direct := Sum256(buf)
			if !bytes.Equal(oneShot, direct[:]) {
				t.Fatalf("n=%d: Write+Sum disagrees with Sum256", n)
			}
		})
	}
}

func TestSumDoesNotMutate(t *testing.T) {
	h := New256()
	h.Write([]byte("abc"))
	first := h.Sum(nil)
	second := h.Sum(nil)
	if !bytes.Equal(first, second) {
		t.Fatalf("Sum is not idempotent: %x != %x", first, second)
	}
	h.Write([]byte("def"))
	third := h.Sum(nil)
	if bytes.Equal(third, first) {
		t.Fatal("Sum appears to have been cached across a further Write")
	}
}

func TestResetMatchesFresh(t *testing.T) {
	h := New512()
	h.Write([]byte("some data that will be discarded"))
	h.Reset()
	h.Write([]byte("abc"))
	got := h.Sum(nil)

	want := Sum512([]byte("abc"))
	if !bytes.Equal(got, want[:]) {
		t.Fatal("Reset did not restore the initial chaining value")
	}
}

func TestNewRejectsBadWidth(t *testing.T) {
	if _, err := New(384); err == nil {
		t.Fatal("New(384) should have failed")
	}
}

func TestSizeAndBlockSize(t *testing.T) {
	if got := New256().Size(); got != Size256 {
		t.Errorf("New256().Size() = %d, want %d", got, Size256)
	}
	if got := New512().Size(); got != Size512 {
		t.Errorf("New512().Size() = %d, want %d", got, Size512)
	}
	if got := New256().BlockSize(); got != BlockSize {
		t.Errorf("BlockSize() = %d, want %d", got, BlockSize)
	}
}

func BenchmarkSum256(b *testing.B) {
	buf := make([]byte, 64<<10)
	b.SetBytes(int64(len(buf)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Sum256(buf)
	}
}
