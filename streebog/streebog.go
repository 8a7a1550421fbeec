// Package streebog implements the GOST R 34.11-2012 ("Streebog")
// cryptographic hash function, in both its 256-bit and 512-bit digest
// variants, as a standard hash.Hash. It is a from-scratch,
// pure-Go, byte-table-based implementation of the reference
// compression function: no cgo, no external crypto engine.
package streebog

import (
	"hash"

	"golang.org/x/xerrors"
)

const (
	// BlockSize is the number of bytes the compression function
	// consumes per call to g_N.
	BlockSize = 64
)

// Size256 and Size512 are the digest lengths, in bytes, of the two
// supported variants.
const (
	Size256 = 32
	Size512 = 64
)

// digestContext is the pure-function hash engine (H): a fixed-size
// record with no I/O and no concurrency of its own. It is re-usable
// by calling init again, which is what Calc.Reset does.
type digestContext struct {
	buffer     word512
	h          word512
	n          word512
	sigma      word512
	bufsize    int
	digestSize int // 32 or 64
}

// init seeds the chaining value as the standard requires:
// all-zero for the 512-bit variant, all-0x01 for the 256-bit variant.
func (ctx *digestContext) init(digestBits int) {
	ctx.buffer = word512{}
	ctx.n = word512{}
	ctx.sigma = word512{}
	ctx.bufsize = 0

	switch digestBits {
	case 512:
		ctx.digestSize = Size512
		ctx.h = word512{}
	case 256:
		ctx.digestSize = Size256
		for i := range ctx.h {
			ctx.h[i] = 0x01
		}
	default:
		panic("streebog: digestBits must be 256 or 512")
	}
}

// stage512 is the per-block increment added to N for every full
// 64-byte block processed.
const stage512 = 512

func (ctx *digestContext) stage(m *word512) {
	ctx.h = g(&ctx.h, &ctx.n, m)
	addBits(&ctx.n, &ctx.n, stage512)
	add512(&ctx.sigma, &ctx.sigma, m)
}

// update appends p to the context, processing every complete 64-byte
// block through g_N and retaining any partial tail in buffer.
func (ctx *digestContext) update(p []byte) {
	if ctx.bufsize > 0 {
		n := copy(ctx.buffer[ctx.bufsize:], p)
		ctx.bufsize += n
		p = p[n:]
		if ctx.bufsize < BlockSize {
			return
		}
		ctx.stage(&ctx.buffer)
		ctx.bufsize = 0
	}

	for len(p) >= BlockSize {
		var m word512
		copy(m[:], p[:BlockSize])
		ctx.stage(&m)
		p = p[BlockSize:]
	}

	if len(p) > 0 {
		ctx.bufsize = copy(ctx.buffer[:], p)
	}
}

// finish pads the partial block, folds in the final bit length,
// applies g_0 to N and to Sigma, and writes the requested digest
// width into out.
func (ctx *digestContext) finish(out []byte) {
	var padded word512
	copy(padded[:], ctx.buffer[:ctx.bufsize])
	padded[ctx.bufsize] = 0x01

	var zero word512
	finalH := g(&ctx.h, &ctx.n, &padded)

	var nFinal word512
	addBits(&nFinal, &ctx.n, uint64(ctx.bufsize)*8)

	var sigmaFinal word512
	add512(&sigmaFinal, &ctx.sigma, &padded)

	finalH = g(&finalH, &zero, &nFinal)
	finalH = g(&finalH, &zero, &sigmaFinal)

	if ctx.digestSize == Size256 {
		copy(out, finalH[32:64])
	} else {
		copy(out, finalH[:64])
	}
}

// Calc implements hash.Hash for Streebog. The zero value is not
// usable: construct one with New256 or New512, which seed the
// chaining value per the standard.
type Calc struct {
	ctx digestContext
}

var (
	_ hash.Hash = (*Calc)(nil)
)

// New256 returns a Calc producing 256-bit Streebog digests.
func New256() hash.Hash {
	c := &Calc{}
	c.ctx.init(256)
	return c
}

// New512 returns a Calc producing 512-bit Streebog digests.
func New512() hash.Hash {
	c := &Calc{}
	c.ctx.init(512)
	return c
}

func (c *Calc) Write(p []byte) (int, error) {
	c.ctx.update(p)
	return len(p), nil
}

func (c *Calc) Sum(b []byte) []byte {
	// Sum must not mutate the receiver's state (hash.Hash contract),
	// so finish a throwaway copy of the context.
	clone := c.ctx
	out := make([]byte, clone.digestSize)
	clone.finish(out)
	return append(b, out...)
}

func (c *Calc) Reset() {
	digestBits := 256
	if c.ctx.digestSize == Size512 {
		digestBits = 512
	}
	c.ctx.init(digestBits)
}

func (c *Calc) Size() int { return c.ctx.digestSize }

func (c *Calc) BlockSize() int { return BlockSize }

// Sum256 and Sum512 are one-shot convenience wrappers, mirroring the
// standard library's crypto/sha256.Sum256 shape.
func Sum256(data []byte) [Size256]byte {
	var ctx digestContext
	ctx.init(256)
	ctx.update(data)
	var out [Size256]byte
	ctx.finish(out[:])
	return out
}

func Sum512(data []byte) [Size512]byte {
	var ctx digestContext
	ctx.init(512)
	ctx.update(data)
	var out [Size512]byte
	ctx.finish(out[:])
	return out
}

// New returns a Calc for the requested digest width (256 or 512),
// erroring on any other value — used by callers (the task package)
// that only learn the width at runtime, from a manifest line or a
// CLI flag.
func New(digestBits int) (hash.Hash, error) {
	switch digestBits {
	case 256:
		return New256(), nil
	case 512:
		return New512(), nil
	default:
		return nil, xerrors.Errorf("streebog: unsupported digest width %d (want 256 or 512)", digestBits)
	}
}
