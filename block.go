// Package sparse provides a pure Go streaming codec for the Android
// sparse image format. It reads and writes sparse images as lazy block
// sequences, encodes raw images into blocks, and decodes blocks back
// into raw images, with optional CRC32 checksumming.
//
// The four pipeline components compose naturally:
//
//	raw bytes  --Encoder--> blocks --Writer--> sparse image bytes
//	sparse image bytes --Reader--> blocks --Decoder--> raw bytes
package sparse

import (
	"bytes"
	"fmt"

	"github.com/scigolib/sparse/internal/format"
)

// BlockSize is the size of a sparse image block in bytes. All raw-image
// sizes and chunk bodies are multiples of this unit.
const BlockSize = format.BlockSize

// BlockKind identifies the variant held by a Block.
type BlockKind uint8

// Block variants.
const (
	// BlockRaw carries BlockSize bytes of verbatim data.
	BlockRaw BlockKind = iota
	// BlockFill is a 4-byte pattern repeated BlockSize/4 times.
	BlockFill
	// BlockSkip is a block whose content is unspecified on the producer
	// side and materialized as all zeros on the consumer side.
	BlockSkip
	// BlockCrc32 carries a checksum over all preceding data blocks. It
	// occupies no output block position.
	BlockCrc32
)

// String returns the name of the block kind.
func (k BlockKind) String() string {
	switch k {
	case BlockRaw:
		return "raw"
	case BlockFill:
		return "fill"
	case BlockSkip:
		return "skip"
	case BlockCrc32:
		return "crc32"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// Block is the in-memory unit exchanged between the codec components:
// a tagged value holding exactly one of the four variants. Blocks are
// ephemeral, produced and consumed one at a time.
type Block struct {
	Kind BlockKind

	// Data is the BlockSize-byte payload of a BlockRaw block.
	Data []byte
	// Fill is the 4-byte pattern of a BlockFill block.
	Fill [4]byte
	// Checksum is the value of a BlockCrc32 block.
	Checksum uint32
}

// RawBlock returns a raw block holding data. The buffer must be exactly
// BlockSize bytes long; the block takes ownership of it.
func RawBlock(data []byte) *Block {
	if len(data) != BlockSize {
		panic(fmt.Sprintf("sparse: raw block must be %d bytes, got %d", BlockSize, len(data)))
	}
	return &Block{Kind: BlockRaw, Data: data}
}

// FillBlock returns a fill block for the 4-byte pattern v.
func FillBlock(v [4]byte) *Block {
	return &Block{Kind: BlockFill, Fill: v}
}

// SkipBlock returns a block representing a BlockSize-byte region that
// decodes to zeros.
func SkipBlock() *Block {
	return &Block{Kind: BlockSkip}
}

// Crc32Block returns a checksum sentinel block.
func Crc32Block(checksum uint32) *Block {
	return &Block{Kind: BlockCrc32, Checksum: checksum}
}

// Equal reports whether two blocks are deeply equal. Raw payloads are
// compared byte-wise.
func (b *Block) Equal(other *Block) bool {
	if b.Kind != other.Kind {
		return false
	}
	switch b.Kind {
	case BlockRaw:
		return bytes.Equal(b.Data, other.Data)
	case BlockFill:
		return b.Fill == other.Fill
	case BlockSkip:
		return true
	case BlockCrc32:
		return b.Checksum == other.Checksum
	default:
		return false
	}
}

// String returns a short description of the block for diagnostics.
func (b *Block) String() string {
	switch b.Kind {
	case BlockFill:
		return fmt.Sprintf("fill(%02x%02x%02x%02x)", b.Fill[0], b.Fill[1], b.Fill[2], b.Fill[3])
	case BlockCrc32:
		return fmt.Sprintf("crc32(0x%08x)", b.Checksum)
	default:
		return b.Kind.String()
	}
}
