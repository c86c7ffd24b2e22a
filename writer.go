package sparse

import (
	"bufio"
	"errors"
	"io"

	"github.com/scigolib/sparse/internal/format"
	"github.com/scigolib/sparse/internal/utils"
)

// Writer consumes a block sequence and emits a sparse image to a
// seekable sink. The image is laid out in two passes without buffering
// the whole output: chunk bodies are written inline behind reserved
// header space, and each header is patched in once the chunk's block
// count is known. The file header is patched last, at Close.
//
// Consecutive like blocks are merged into a single multi-block chunk:
// raw follows raw, fill follows fill with the same pattern, and skip
// follows skip. A crc32 block always forms its own chunk.
//
// A Writer constructed with CRC appends one trailing crc32 chunk at
// Close, carrying the IEEE CRC32 of the raw-image equivalent of all
// written blocks. The file header's image checksum field is always
// written as zero.
//
// Close must be called to produce a well-formed image; until then the
// file header on disk is unwritten. Close is idempotent. A Writer is
// not safe for concurrent use.
type Writer struct {
	dst io.WriteSeeker
	buf *bufio.Writer
	pos int64 // logical write offset in dst

	chunk      *format.ChunkHeader // open chunk, header not yet patched
	chunkStart int64               // offset of the open chunk's header
	fill       [4]byte             // pattern of the open fill chunk
	haveFill   bool

	totalBlocks uint32
	totalChunks uint32

	crc    *blockDigest // nil unless appending a checksum
	closed bool
}

// NewWriter constructs a Writer emitting a sparse image to dst. Space
// for the file header is reserved immediately; the header itself is
// written at Close, once the block and chunk counts are known. When
// withCRC is set, a trailing crc32 chunk is appended at Close.
//
// The sink is wrapped in a buffered writer; the Writer owns it until
// Close.
func NewWriter(dst io.WriteSeeker, withCRC bool) (*Writer, error) {
	// Skip the 28-byte file header; it is back-patched at Close.
	if _, err := dst.Seek(format.FileHeaderSize, io.SeekStart); err != nil {
		return nil, utils.WrapError("file header seek failed", err)
	}

	w := &Writer{
		dst: dst,
		buf: bufio.NewWriter(dst),
		pos: format.FileHeaderSize,
	}
	if withCRC {
		w.crc = newBlockDigest()
	}
	return w, nil
}

// WriteBlock appends one block to the image, merging it into the open
// chunk when possible.
func (w *Writer) WriteBlock(b *Block) error {
	if w.closed {
		return errors.New("writer is closed")
	}
	return w.writeBlock(b)
}

func (w *Writer) writeBlock(b *Block) error {
	if w.mergeable(b) {
		if err := w.merge(b); err != nil {
			return err
		}
	} else {
		if err := w.finalizeChunk(); err != nil {
			return err
		}
		if err := w.openChunk(b); err != nil {
			return err
		}
	}

	if w.crc != nil {
		w.crc.writeBlock(b)
	}
	return nil
}

// mergeable reports whether b extends the open chunk.
func (w *Writer) mergeable(b *Block) bool {
	if w.chunk == nil || b.Kind == BlockCrc32 {
		return false
	}
	switch w.chunk.Type {
	case format.ChunkRaw:
		return b.Kind == BlockRaw
	case format.ChunkFill:
		return b.Kind == BlockFill && b.Fill == w.fill
	case format.ChunkDontCare:
		return b.Kind == BlockSkip
	default:
		return false
	}
}

// merge appends b to the open chunk. Only raw blocks add body bytes;
// the fill pattern is stored exactly once per chunk regardless of the
// chunk's block count.
func (w *Writer) merge(b *Block) error {
	if b.Kind == BlockRaw {
		if err := w.write(b.Data); err != nil {
			return err
		}
		w.chunk.TotalSize += BlockSize
	}
	w.chunk.ChunkSize++
	w.totalBlocks++
	return nil
}

// openChunk reserves header space for a new chunk and writes its first
// body bytes.
func (w *Writer) openChunk(b *Block) error {
	w.chunkStart = w.pos
	if err := w.reserveChunkHeader(); err != nil {
		return err
	}

	switch b.Kind {
	case BlockRaw:
		w.chunk = &format.ChunkHeader{
			Type:      format.ChunkRaw,
			ChunkSize: 1,
			TotalSize: format.ChunkHeaderSize + BlockSize,
		}
		if err := w.write(b.Data); err != nil {
			return err
		}

	case BlockFill:
		w.chunk = &format.ChunkHeader{
			Type:      format.ChunkFill,
			ChunkSize: 1,
			TotalSize: format.ChunkHeaderSize + 4,
		}
		w.fill = b.Fill
		w.haveFill = true
		if err := w.write(b.Fill[:]); err != nil {
			return err
		}

	case BlockSkip:
		w.chunk = &format.ChunkHeader{
			Type:      format.ChunkDontCare,
			ChunkSize: 1,
			TotalSize: format.ChunkHeaderSize,
		}

	case BlockCrc32:
		// A crc32 chunk spans no output blocks: chunk_size stays 0 and
		// the running block count is untouched.
		w.chunk = &format.ChunkHeader{
			Type:      format.ChunkCrc32,
			ChunkSize: 0,
			TotalSize: format.ChunkHeaderSize + 4,
		}
		buf := utils.GetBuffer(4)
		defer utils.ReleaseBuffer(buf)
		buf[0] = byte(b.Checksum)
		buf[1] = byte(b.Checksum >> 8)
		buf[2] = byte(b.Checksum >> 16)
		buf[3] = byte(b.Checksum >> 24)
		return w.write(buf)
	}

	w.totalBlocks++
	return nil
}

// reserveChunkHeader skips past the 12 bytes where the open chunk's
// header will be patched in.
func (w *Writer) reserveChunkHeader() error {
	var placeholder [format.ChunkHeaderSize]byte
	return w.write(placeholder[:])
}

// finalizeChunk patches the open chunk's header now that its block
// count and byte length are final.
func (w *Writer) finalizeChunk() error {
	if w.chunk == nil {
		return nil
	}

	if err := w.patchAt(w.chunkStart, w.chunk.WriteTo); err != nil {
		return err
	}

	w.chunk = nil
	w.haveFill = false
	w.totalChunks++
	return nil
}

// Close finalizes the in-flight chunk, appends the trailing crc32
// chunk when enabled, patches the file header and flushes the sink.
// The sink is left positioned at the end of the image.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}

	if w.crc != nil {
		if err := w.writeBlock(Crc32Block(w.crc.sum())); err != nil {
			return err
		}
	}
	if err := w.finalizeChunk(); err != nil {
		return err
	}

	hdr := &format.FileHeader{
		TotalBlocks:   w.totalBlocks,
		TotalChunks:   w.totalChunks,
		ImageChecksum: 0,
	}
	if err := w.patchAt(0, hdr.WriteTo); err != nil {
		return err
	}

	w.closed = true
	return nil
}

// write sends p through the buffered sink and advances the logical
// offset.
func (w *Writer) write(p []byte) error {
	n, err := w.buf.Write(p)
	w.pos += int64(n)
	if err != nil {
		return utils.WrapError("chunk body write failed", err)
	}
	return nil
}

// patchAt flushes buffered output, rewinds to off, writes a structure
// there and restores the write position. Headers are small, so the
// unbuffered write is fine.
func (w *Writer) patchAt(off int64, writeTo func(io.Writer) error) error {
	if err := w.buf.Flush(); err != nil {
		return utils.WrapError("flush failed", err)
	}
	if _, err := w.dst.Seek(off, io.SeekStart); err != nil {
		return utils.WrapError("header patch seek failed", err)
	}
	if err := writeTo(w.dst); err != nil {
		return err
	}
	if _, err := w.dst.Seek(w.pos, io.SeekStart); err != nil {
		return utils.WrapError("header patch seek failed", err)
	}
	return nil
}
