package sparse

import (
	"bufio"
	"io"

	"github.com/scigolib/sparse/internal/format"
	"github.com/scigolib/sparse/internal/utils"
)

// Reader consumes a sparse image byte-stream and produces its blocks
// one at a time, transparently splitting multi-block chunks into
// individual blocks. It follows the Go scanner pattern (bufio.Scanner).
//
// Usage:
//
//	r, err := sparse.NewReader(src, false)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for r.Next() {
//	    processBlock(r.Block())
//	}
//	if err := r.Err(); err != nil {
//	    log.Fatal(err)
//	}
//
// A Reader constructed with verifyCRC maintains a CRC32 accumulator
// over the raw-image equivalent of every produced block; when a crc32
// chunk is read its value is compared against the accumulator and a
// mismatch surfaces as a ParseError.
//
// After any error the Reader is finished: further Next() calls return
// false. A Reader is not safe for concurrent use.
type Reader struct {
	src  *bufio.Reader
	size uint64

	remainingChunks uint32
	chunk           *format.ChunkHeader // in-progress chunk, body partially emitted
	fill            [4]byte             // cached pattern of the in-progress fill chunk
	haveFill        bool

	crc      *blockDigest // nil unless verifying
	cur      *Block
	err      error
	finished bool
}

// NewReader constructs a Reader from src. The sparse file header is
// read and validated immediately; a malformed header fails here rather
// than on the first Next(). When verifyCRC is set, crc32 chunks are
// checked against the accumulated checksum of the preceding blocks.
//
// The source is wrapped in a buffered reader; the Reader owns it for
// its lifetime.
func NewReader(src io.Reader, verifyCRC bool) (*Reader, error) {
	br := bufio.NewReader(src)

	hdr, err := format.ReadFileHeader(br)
	if err != nil {
		return nil, err
	}

	r := &Reader{
		src:             br,
		size:            uint64(hdr.TotalBlocks) * BlockSize,
		remainingChunks: hdr.TotalChunks,
	}
	if verifyCRC {
		r.crc = newBlockDigest()
	}
	return r, nil
}

// Size returns the byte length of the raw image the sparse stream
// represents (total blocks times BlockSize). Useful for progress
// reporting.
func (r *Reader) Size() uint64 {
	return r.size
}

// Next advances to the next block. It returns false when the chunk
// sequence is exhausted or an error occurred; check Err() afterwards to
// distinguish.
func (r *Reader) Next() bool {
	if r.finished {
		return false
	}

	for {
		if r.chunk == nil {
			if r.remainingChunks == 0 {
				r.finished = true
				return false
			}
			hdr, err := format.ReadChunkHeader(r.src)
			if err != nil {
				r.fail(err)
				return false
			}
			r.chunk = hdr

			// An ill-formed raw/fill/dont_care chunk with a zero block
			// count produces no blocks but still consumes its header
			// and body.
			if hdr.ChunkSize == 0 && hdr.Type != format.ChunkCrc32 {
				if err := r.skipEmptyChunkBody(hdr); err != nil {
					r.fail(err)
					return false
				}
				r.closeChunk()
				continue
			}
		}

		block, err := r.readBlock()
		if err != nil {
			r.fail(err)
			return false
		}
		r.cur = block
		return true
	}
}

// Block returns the block produced by the last successful Next().
func (r *Reader) Block() *Block {
	return r.cur
}

// Err returns the first error encountered during iteration. It should
// be checked after Next() returns false.
func (r *Reader) Err() error {
	return r.err
}

func (r *Reader) fail(err error) {
	r.err = err
	r.finished = true
}

// readBlock emits one block of the in-progress chunk and closes the
// chunk once its last block is out.
func (r *Reader) readBlock() (*Block, error) {
	var block *Block

	switch r.chunk.Type {
	case format.ChunkRaw:
		buf := make([]byte, BlockSize)
		if _, err := io.ReadFull(r.src, buf); err != nil {
			return nil, utils.WrapError("raw chunk read failed", err)
		}
		block = RawBlock(buf)

	case format.ChunkFill:
		// The 4-byte pattern is stored once per chunk; read it on the
		// chunk's first block only.
		if !r.haveFill {
			if _, err := io.ReadFull(r.src, r.fill[:]); err != nil {
				return nil, utils.WrapError("fill chunk read failed", err)
			}
			r.haveFill = true
		}
		block = FillBlock(r.fill)

	case format.ChunkDontCare:
		block = SkipBlock()

	case format.ChunkCrc32:
		value, err := utils.ReadUint32(r.src)
		if err != nil {
			return nil, utils.WrapError("crc32 chunk read failed", err)
		}
		if r.crc != nil && value != r.crc.sum() {
			return nil, format.Parse("checksum does not match")
		}
		block = Crc32Block(value)
	}

	// Crc32 blocks themselves contribute no bytes to the accumulator.
	if r.crc != nil {
		r.crc.writeBlock(block)
	}

	// Crc32 chunks always emit exactly one block regardless of their
	// (nominally zero) chunk_size.
	if r.chunk.Type == format.ChunkCrc32 || r.chunk.ChunkSize <= 1 {
		r.closeChunk()
	} else {
		r.chunk.ChunkSize--
	}

	return block, nil
}

// skipEmptyChunkBody consumes the body of a zero-block chunk.
func (r *Reader) skipEmptyChunkBody(hdr *format.ChunkHeader) error {
	if hdr.Type == format.ChunkFill {
		var fill [4]byte
		if _, err := io.ReadFull(r.src, fill[:]); err != nil {
			return utils.WrapError("fill chunk read failed", err)
		}
	}
	return nil
}

func (r *Reader) closeChunk() {
	r.chunk = nil
	r.haveFill = false
	r.remainingChunks--
}
