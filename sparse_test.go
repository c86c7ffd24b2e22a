package sparse

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

// testBlocks returns the canonical 5-block sequence behind the test
// fixtures: a counting raw block, an 0xAA fill block, two skip blocks
// and a nearly-zero raw block.
func testBlocks() []*Block {
	raw1 := make([]byte, BlockSize)
	for i := range raw1 {
		raw1[i] = byte(i)
	}
	raw2 := make([]byte, BlockSize)
	raw2[1] = 0x66

	return []*Block{
		RawBlock(raw1),
		FillBlock([4]byte{0xAA, 0xAA, 0xAA, 0xAA}),
		SkipBlock(),
		SkipBlock(),
		RawBlock(raw2),
	}
}

// testChecksum is the IEEE CRC32 over the 5-block raw expansion of
// testBlocks.
const testChecksum = uint32(0xFFB880A5)

// rawImage returns the 20480-byte raw expansion of testBlocks.
func rawImage() []byte {
	img := make([]byte, 0, 5*BlockSize)
	for _, b := range testBlocks() {
		switch b.Kind {
		case BlockRaw:
			img = append(img, b.Data...)
		case BlockFill:
			block := make([]byte, BlockSize)
			expandFill(block, b.Fill)
			img = append(img, block...)
		case BlockSkip:
			img = append(img, make([]byte, BlockSize)...)
		}
	}
	return img
}

// sparseImage returns the wire bytes of testBlocks encoded without a
// checksum: file header plus raw, fill, dont_care(x2) and raw chunks.
func sparseImage() []byte {
	var buf bytes.Buffer

	writeFileHeader(&buf, 5, 4)

	blocks := testBlocks()
	writeChunkHeader(&buf, 0xCAC1, 1, 12+BlockSize)
	buf.Write(blocks[0].Data)
	writeChunkHeader(&buf, 0xCAC2, 1, 16)
	buf.Write(blocks[1].Fill[:])
	writeChunkHeader(&buf, 0xCAC3, 2, 12)
	writeChunkHeader(&buf, 0xCAC1, 1, 12+BlockSize)
	buf.Write(blocks[4].Data)

	return buf.Bytes()
}

// sparseImageCRC returns the wire bytes of testBlocks encoded with a
// trailing crc32 chunk.
func sparseImageCRC() []byte {
	var buf bytes.Buffer

	writeFileHeader(&buf, 5, 5)

	blocks := testBlocks()
	writeChunkHeader(&buf, 0xCAC1, 1, 12+BlockSize)
	buf.Write(blocks[0].Data)
	writeChunkHeader(&buf, 0xCAC2, 1, 16)
	buf.Write(blocks[1].Fill[:])
	writeChunkHeader(&buf, 0xCAC3, 2, 12)
	writeChunkHeader(&buf, 0xCAC1, 1, 12+BlockSize)
	buf.Write(blocks[4].Data)
	writeChunkHeader(&buf, 0xCAC4, 0, 16)
	var crc [4]byte
	binary.LittleEndian.PutUint32(crc[:], testChecksum)
	buf.Write(crc[:])

	return buf.Bytes()
}

func writeFileHeader(buf *bytes.Buffer, totalBlocks, totalChunks uint32) {
	var hdr [28]byte
	binary.LittleEndian.PutUint32(hdr[0:4], 0xED26FF3A)
	binary.LittleEndian.PutUint16(hdr[4:6], 1)
	binary.LittleEndian.PutUint16(hdr[6:8], 0)
	binary.LittleEndian.PutUint16(hdr[8:10], 28)
	binary.LittleEndian.PutUint16(hdr[10:12], 12)
	binary.LittleEndian.PutUint32(hdr[12:16], BlockSize)
	binary.LittleEndian.PutUint32(hdr[16:20], totalBlocks)
	binary.LittleEndian.PutUint32(hdr[20:24], totalChunks)
	binary.LittleEndian.PutUint32(hdr[24:28], 0)
	buf.Write(hdr[:])
}

func writeChunkHeader(buf *bytes.Buffer, magic uint16, chunkSize, totalSize uint32) {
	var hdr [12]byte
	binary.LittleEndian.PutUint16(hdr[0:2], magic)
	binary.LittleEndian.PutUint16(hdr[2:4], 0)
	binary.LittleEndian.PutUint32(hdr[4:8], chunkSize)
	binary.LittleEndian.PutUint32(hdr[8:12], totalSize)
	buf.Write(hdr[:])
}

// collectBlocks drains a Reader and fails the test on any iteration
// error.
func collectBlocks(t *testing.T, r *Reader) []*Block {
	t.Helper()

	var blocks []*Block
	for r.Next() {
		blocks = append(blocks, r.Block())
	}
	require.NoError(t, r.Err())
	return blocks
}

func requireBlocksEqual(t *testing.T, expected, actual []*Block) {
	t.Helper()

	require.Equal(t, len(expected), len(actual), "block count mismatch")
	for i := range expected {
		require.True(t, expected[i].Equal(actual[i]),
			"block %d mismatch: want %s, got %s", i, expected[i], actual[i])
	}
}
