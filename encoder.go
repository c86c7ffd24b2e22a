package sparse

import (
	"encoding/binary"
	"errors"
	"io"

	"github.com/scigolib/sparse/internal/utils"
)

// Encoder consumes a raw image byte-stream and produces one block per
// BlockSize bytes of input, classifying each window as raw, fill or
// skip. It follows the same scanner pattern as Reader:
//
//	enc := sparse.NewEncoder(src)
//	for enc.Next() {
//	    writer.WriteBlock(enc.Block())
//	}
//	if err := enc.Err(); err != nil {
//	    log.Fatal(err)
//	}
//
// The raw image is assumed to be a whole number of blocks; a partial
// final block is not emitted. Callers needing byte-level precision must
// pad their input. The Encoder never merges adjacent blocks - coalescing
// runs into chunks is the Writer's job.
//
// An Encoder is not safe for concurrent use.
type Encoder struct {
	src      io.Reader
	cur      *Block
	err      error
	finished bool
}

// NewEncoder constructs an Encoder reading raw image data from src.
func NewEncoder(src io.Reader) *Encoder {
	return &Encoder{src: src}
}

// Next reads and classifies the next block of input. It returns false
// at end of stream or on error; check Err() afterwards to distinguish.
func (e *Encoder) Next() bool {
	if e.finished {
		return false
	}

	buf := make([]byte, BlockSize)
	if _, err := io.ReadFull(e.src, buf); err != nil {
		e.finished = true
		// A clean EOF and a trailing partial block both end the
		// stream; anything else is a source failure.
		if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
			e.err = utils.WrapError("raw image read failed", err)
		}
		return false
	}

	e.cur = classify(buf)
	return true
}

// Block returns the block produced by the last successful Next().
func (e *Encoder) Block() *Block {
	return e.cur
}

// Err returns the first error encountered while reading the source.
func (e *Encoder) Err() error {
	return e.err
}

// classify decides the sparse representation of one block. The scan is
// word-wise over 4-byte windows: a block whose words all equal the
// first word collapses to fill (or skip when the word is zero),
// anything else stays raw. Byte-wise uniformity is not sufficient - a
// non-word-aligned repeating pattern must be kept raw.
func classify(buf []byte) *Block {
	first := binary.LittleEndian.Uint32(buf[0:4])
	for i := 4; i < BlockSize; i += 4 {
		if binary.LittleEndian.Uint32(buf[i:i+4]) != first {
			return RawBlock(buf)
		}
	}

	if first == 0 {
		return SkipBlock()
	}

	var fill [4]byte
	copy(fill[:], buf[0:4])
	return FillBlock(fill)
}
