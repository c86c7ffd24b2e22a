package sparse

import (
	"hash"
	"hash/crc32"

	"github.com/scigolib/sparse/internal/utils"
)

// zeroBlock backs the raw-image equivalent of skip blocks.
var zeroBlock [BlockSize]byte

// expandFill writes the 4-byte pattern v repeatedly into dst, which
// must be a multiple of 4 bytes long.
func expandFill(dst []byte, v [4]byte) {
	for i := 0; i < len(dst); i += 4 {
		copy(dst[i:i+4], v[:])
	}
}

// blockDigest accumulates an IEEE CRC32 over the raw-image-equivalent
// bytes of a block sequence. Reader and Writer share it so both sides
// of a pipeline produce matching checksums.
type blockDigest struct {
	h hash.Hash32
}

func newBlockDigest() *blockDigest {
	return &blockDigest{h: crc32.NewIEEE()}
}

// writeBlock feeds the digest with the block's raw-image equivalent:
// the full payload for raw blocks, the pattern repeated for fill
// blocks, zeros for skip blocks and nothing for crc32 blocks.
func (d *blockDigest) writeBlock(b *Block) {
	switch b.Kind {
	case BlockRaw:
		d.h.Write(b.Data)
	case BlockFill:
		buf := utils.GetBuffer(BlockSize)
		expandFill(buf, b.Fill)
		d.h.Write(buf)
		utils.ReleaseBuffer(buf)
	case BlockSkip:
		d.h.Write(zeroBlock[:])
	case BlockCrc32:
		// Checksum sentinels contribute no raw-image bytes.
	}
}

// sum returns the accumulated checksum.
func (d *blockDigest) sum() uint32 {
	return d.h.Sum32()
}
