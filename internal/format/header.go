// Package format provides low-level parsing and generation of the
// Android sparse image wire format: the 28-byte file header and the
// 12-byte chunk headers that precede each chunk body. All multi-byte
// fields are little-endian.
package format

import (
	"fmt"
	"io"

	"github.com/scigolib/sparse/internal/utils"
)

// Sparse file magic and the single supported format version.
const (
	FileMagic    uint32 = 0xED26FF3A
	MajorVersion uint16 = 1
	MinorVersion uint16 = 0
)

// Fixed structure sizes of the wire format.
const (
	FileHeaderSize  = 28
	ChunkHeaderSize = 12
	BlockSize       = 4096
)

// ChunkType identifies the four chunk record kinds.
type ChunkType uint16

// Chunk type magics.
const (
	ChunkRaw      ChunkType = 0xCAC1
	ChunkFill     ChunkType = 0xCAC2
	ChunkDontCare ChunkType = 0xCAC3
	ChunkCrc32    ChunkType = 0xCAC4
)

// String returns the conventional name of the chunk type.
func (t ChunkType) String() string {
	switch t {
	case ChunkRaw:
		return "raw"
	case ChunkFill:
		return "fill"
	case ChunkDontCare:
		return "dont_care"
	case ChunkCrc32:
		return "crc32"
	default:
		return fmt.Sprintf("unknown(%#04x)", uint16(t))
	}
}

func chunkTypeFromMagic(magic uint16) (ChunkType, error) {
	switch ChunkType(magic) {
	case ChunkRaw, ChunkFill, ChunkDontCare, ChunkCrc32:
		return ChunkType(magic), nil
	default:
		return 0, Parse("invalid chunk magic: %#04x", magic)
	}
}

// FileHeader represents the sparse image file header.
//
// Wire layout (28 bytes, little-endian):
//
//	Bytes 0-3:   Magic (0xED26FF3A)
//	Bytes 4-5:   Major version (1)
//	Bytes 6-7:   Minor version (0)
//	Bytes 8-9:   File header size (28)
//	Bytes 10-11: Chunk header size (12)
//	Bytes 12-15: Block size (4096)
//	Bytes 16-19: Total output blocks
//	Bytes 20-23: Total chunks
//	Bytes 24-27: Image checksum (always written as 0)
//
// Magic, version, header sizes and block size are validated on read;
// the three trailing counters are accepted verbatim.
type FileHeader struct {
	TotalBlocks   uint32
	TotalChunks   uint32
	ImageChecksum uint32
}

// ReadFileHeader reads and validates a sparse file header from r.
func ReadFileHeader(r io.Reader) (*FileHeader, error) {
	magic, err := utils.ReadUint32(r)
	if err != nil {
		return nil, utils.WrapError("file header read failed", err)
	}
	if magic != FileMagic {
		return nil, Parse("invalid file magic: %#08x", magic)
	}

	major, err := utils.ReadUint16(r)
	if err != nil {
		return nil, utils.WrapError("file header read failed", err)
	}
	minor, err := utils.ReadUint16(r)
	if err != nil {
		return nil, utils.WrapError("file header read failed", err)
	}
	if major != MajorVersion || minor != MinorVersion {
		return nil, Parse("invalid file format version: %d.%d", major, minor)
	}

	fileHeaderSize, err := utils.ReadUint16(r)
	if err != nil {
		return nil, utils.WrapError("file header read failed", err)
	}
	if fileHeaderSize != FileHeaderSize {
		return nil, Parse("invalid file header size: %d", fileHeaderSize)
	}

	chunkHeaderSize, err := utils.ReadUint16(r)
	if err != nil {
		return nil, utils.WrapError("file header read failed", err)
	}
	if chunkHeaderSize != ChunkHeaderSize {
		return nil, Parse("invalid chunk header size: %d", chunkHeaderSize)
	}

	blockSize, err := utils.ReadUint32(r)
	if err != nil {
		return nil, utils.WrapError("file header read failed", err)
	}
	if blockSize != BlockSize {
		return nil, Parse("invalid block size: %d", blockSize)
	}

	hdr := &FileHeader{}
	if hdr.TotalBlocks, err = utils.ReadUint32(r); err != nil {
		return nil, utils.WrapError("file header read failed", err)
	}
	if hdr.TotalChunks, err = utils.ReadUint32(r); err != nil {
		return nil, utils.WrapError("file header read failed", err)
	}
	if hdr.ImageChecksum, err = utils.ReadUint32(r); err != nil {
		return nil, utils.WrapError("file header read failed", err)
	}

	return hdr, nil
}

// WriteTo writes the file header to w, exactly FileHeaderSize bytes.
func (h *FileHeader) WriteTo(w io.Writer) error {
	if err := utils.WriteUint32(w, FileMagic); err != nil {
		return utils.WrapError("file header write failed", err)
	}
	if err := utils.WriteUint16(w, MajorVersion); err != nil {
		return utils.WrapError("file header write failed", err)
	}
	if err := utils.WriteUint16(w, MinorVersion); err != nil {
		return utils.WrapError("file header write failed", err)
	}
	if err := utils.WriteUint16(w, FileHeaderSize); err != nil {
		return utils.WrapError("file header write failed", err)
	}
	if err := utils.WriteUint16(w, ChunkHeaderSize); err != nil {
		return utils.WrapError("file header write failed", err)
	}
	if err := utils.WriteUint32(w, BlockSize); err != nil {
		return utils.WrapError("file header write failed", err)
	}
	if err := utils.WriteUint32(w, h.TotalBlocks); err != nil {
		return utils.WrapError("file header write failed", err)
	}
	if err := utils.WriteUint32(w, h.TotalChunks); err != nil {
		return utils.WrapError("file header write failed", err)
	}
	if err := utils.WriteUint32(w, h.ImageChecksum); err != nil {
		return utils.WrapError("file header write failed", err)
	}
	return nil
}

// ChunkHeader represents a single chunk record header.
//
// Wire layout (12 bytes, little-endian):
//
//	Bytes 0-1:  Chunk type magic (0xCAC1 raw, 0xCAC2 fill,
//	            0xCAC3 dont_care, 0xCAC4 crc32)
//	Bytes 2-3:  Reserved (written as 0, ignored on read)
//	Bytes 4-7:  Chunk size in output blocks (0 for crc32)
//	Bytes 8-11: Total byte length of the chunk including this header
//
// ChunkSize and TotalSize are accepted without cross-validation here;
// the reader enforces semantic consistency on demand.
type ChunkHeader struct {
	Type      ChunkType
	ChunkSize uint32
	TotalSize uint32
}

// ReadChunkHeader reads a chunk header from r. Unknown chunk magics are
// parse failures.
func ReadChunkHeader(r io.Reader) (*ChunkHeader, error) {
	magic, err := utils.ReadUint16(r)
	if err != nil {
		return nil, utils.WrapError("chunk header read failed", err)
	}
	chunkType, err := chunkTypeFromMagic(magic)
	if err != nil {
		return nil, err
	}

	// Reserved field, read and discarded.
	if _, err := utils.ReadUint16(r); err != nil {
		return nil, utils.WrapError("chunk header read failed", err)
	}

	hdr := &ChunkHeader{Type: chunkType}
	if hdr.ChunkSize, err = utils.ReadUint32(r); err != nil {
		return nil, utils.WrapError("chunk header read failed", err)
	}
	if hdr.TotalSize, err = utils.ReadUint32(r); err != nil {
		return nil, utils.WrapError("chunk header read failed", err)
	}

	return hdr, nil
}

// WriteTo writes the chunk header to w, exactly ChunkHeaderSize bytes.
func (h *ChunkHeader) WriteTo(w io.Writer) error {
	if err := utils.WriteUint16(w, uint16(h.Type)); err != nil {
		return utils.WrapError("chunk header write failed", err)
	}
	// Reserved field.
	if err := utils.WriteUint16(w, 0); err != nil {
		return utils.WrapError("chunk header write failed", err)
	}
	if err := utils.WriteUint32(w, h.ChunkSize); err != nil {
		return utils.WrapError("chunk header write failed", err)
	}
	if err := utils.WriteUint32(w, h.TotalSize); err != nil {
		return utils.WrapError("chunk header write failed", err)
	}
	return nil
}
