// Package manifest implements the Manifest parser (P): a streaming
// reader over a check-file that extracts hex digests and trailing
// filenames, detecting the 256-bit vs 512-bit row width from the
// separator byte that follows the first 64 hex characters.
package manifest

import (
	"bufio"
	"io"

	"golang.org/x/xerrors"

	"github.com/dulesov-gost/gostsum/internal/task"
)

// DefaultMaxFilenameLen is the ceiling on filename length, standing
// in for the platform's PATH_MAX (spec §4.3: "the operating system's
// path-max limit"). Linux's PATH_MAX is 4096; we use that value on
// every platform this binary targets rather than reach for a
// per-OS syscall just to look up a number this stable.
const DefaultMaxFilenameLen = 4096

// FormatError reports the manifest line on which parsing failed, the
// way spec §4.3/§7 requires ("the parser reports the line number on
// which a format error occurred").
type FormatError struct {
	Line int
	Err  error
}

func (e *FormatError) Error() string {
	return xerrors.Errorf("manifest: line %d: %w", e.Line, e.Err).Error()
}

func (e *FormatError) Unwrap() error { return e.Err }

// Parser is a streaming reader over a digest-list check-file.
type Parser struct {
	r              *bufio.Reader
	line           int
	maxFilenameLen int
}

// New wraps r as a manifest Parser.
func New(r io.Reader) *Parser {
	return &Parser{
		r:              bufio.NewReaderSize(r, 4096),
		maxFilenameLen: DefaultMaxFilenameLen,
	}
}

// Line returns the 1-based line number of the most recently read (or
// attempted) row, for error reporting.
func (p *Parser) Line() int { return p.line }

// Next parses the next manifest row directly into t: its expected
// digest, digest size, and filename. It returns io.EOF when the
// manifest is exhausted with no partial row pending, or a
// *FormatError naming the offending line on any malformed row.
func (p *Parser) Next(t *task.Task) error {
	p.line++

	var first [64]byte
	n, err := io.ReadFull(p.r, first[:])
	if err != nil {
		if err == io.EOF && n == 0 {
			p.line--
			return io.EOF
		}
		return p.formatErrorf("truncated digest: %w", err)
	}

	sep, err := p.r.ReadByte()
	if err != nil {
		return p.formatErrorf("truncated line: %w", err)
	}

	digestSize := 32
	if sep == ' ' {
		if err := t.Hex2Digest(0, string(first[:])); err != nil {
			return p.formatError(err)
		}
	} else {
		digestSize = 64
		var second [64]byte
		second[0] = sep
		if _, err := io.ReadFull(p.r, second[1:]); err != nil {
			return p.formatErrorf("truncated long digest: %w", err)
		}
		sp, err := p.r.ReadByte()
		if err != nil {
			return p.formatErrorf("truncated line: %w", err)
		}
		if sp != ' ' {
			return p.formatErrorf("expected separator after 512-bit digest, got %q", sp)
		}
		if err := t.Hex2Digest(0, string(first[:])); err != nil {
			return p.formatError(err)
		}
		if err := t.Hex2Digest(32, string(second[:])); err != nil {
			return p.formatError(err)
		}
	}

	name, err := p.readFilename()
	if err != nil {
		return err
	}

	t.DigestSize = digestSize
	t.SetFilename(name)
	return nil
}

// readFilename reads the trailing filename up to LF, stripping a
// trailing CR, growing its buffer on demand up to maxFilenameLen.
func (p *Parser) readFilename() (string, error) {
	var buf []byte
	for {
		chunk, err := p.r.ReadSlice('\n')
		buf = append(buf, chunk...)

		switch err {
		case nil:
			name := buf[:len(buf)-1]
			if len(name) > 0 && name[len(name)-1] == '\r' {
				name = name[:len(name)-1]
			}
			if len(name) > p.maxFilenameLen {
				return "", p.formatErrorf("filename exceeds %d bytes", p.maxFilenameLen)
			}
			return string(name), nil
		case bufio.ErrBufferFull:
			if len(buf) > p.maxFilenameLen {
				return "", p.formatErrorf("filename exceeds %d bytes", p.maxFilenameLen)
			}
			continue
		case io.EOF:
			return "", p.formatErrorf("unterminated filename: %w", io.ErrUnexpectedEOF)
		default:
			return "", p.formatErrorf("reading filename: %w", err)
		}
	}
}

func (p *Parser) formatError(err error) error {
	return &FormatError{Line: p.line, Err: err}
}

func (p *Parser) formatErrorf(format string, args ...any) error {
	return &FormatError{Line: p.line, Err: xerrors.Errorf(format, args...)}
}
