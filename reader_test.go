package sparse

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReaderHelloImage(t *testing.T) {
	r, err := NewReader(bytes.NewReader(sparseImage()), false)
	require.NoError(t, err)

	assert.Equal(t, uint64(5*BlockSize), r.Size())
	requireBlocksEqual(t, testBlocks(), collectBlocks(t, r))
}

func TestReaderWithCRC(t *testing.T) {
	r, err := NewReader(bytes.NewReader(sparseImageCRC()), true)
	require.NoError(t, err)

	expected := append(testBlocks(), Crc32Block(testChecksum))
	requireBlocksEqual(t, expected, collectBlocks(t, r))
}

func TestReaderChecksumMismatch(t *testing.T) {
	data := sparseImageCRC()
	// Corrupt the checksum value in the trailing crc32 chunk body.
	data[len(data)-1] ^= 0xFF

	r, err := NewReader(bytes.NewReader(data), true)
	require.NoError(t, err)

	// The five data blocks still come out; the crc32 block fails.
	for i := 0; i < 5; i++ {
		require.True(t, r.Next(), "block %d", i)
	}
	require.False(t, r.Next())

	var parseErr *ParseError
	require.True(t, errors.As(r.Err(), &parseErr))
	assert.Contains(t, parseErr.Message, "checksum does not match")

	// Terminal state after the error.
	assert.False(t, r.Next())
}

func TestReaderUnverifiedCRCIsAccepted(t *testing.T) {
	data := sparseImageCRC()
	data[len(data)-1] ^= 0xFF

	// Without verification the corrupted value is passed through.
	r, err := NewReader(bytes.NewReader(data), false)
	require.NoError(t, err)

	blocks := collectBlocks(t, r)
	require.Len(t, blocks, 6)
	assert.Equal(t, BlockCrc32, blocks[5].Kind)
	assert.NotEqual(t, testChecksum, blocks[5].Checksum)
}

func TestReaderRejectsBadHeader(t *testing.T) {
	tests := []struct {
		name    string
		corrupt func(data []byte)
	}{
		{"bad magic", func(d []byte) { d[0] = 0 }},
		{"bad version", func(d []byte) { d[4] = 9 }},
		{"bad block size", func(d []byte) { binary.LittleEndian.PutUint32(d[12:16], 512) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := sparseImage()
			tt.corrupt(data)

			// Constructor-time failure: no reader, no chunks consumed.
			_, err := NewReader(bytes.NewReader(data), false)
			require.Error(t, err)

			var parseErr *ParseError
			assert.True(t, errors.As(err, &parseErr))
		})
	}
}

func TestReaderMultiBlockChunkSplitting(t *testing.T) {
	// One fill chunk spanning 3 blocks and one dont_care chunk spanning
	// 2: the reader must emit 5 individual blocks, reading the fill
	// pattern exactly once.
	var buf bytes.Buffer
	writeFileHeader(&buf, 5, 2)
	writeChunkHeader(&buf, 0xCAC2, 3, 16)
	buf.Write([]byte{0xDE, 0xAD, 0xBE, 0xEF})
	writeChunkHeader(&buf, 0xCAC3, 2, 12)

	r, err := NewReader(bytes.NewReader(buf.Bytes()), false)
	require.NoError(t, err)

	blocks := collectBlocks(t, r)
	require.Len(t, blocks, 5)
	for i := 0; i < 3; i++ {
		require.Equal(t, BlockFill, blocks[i].Kind)
		assert.Equal(t, [4]byte{0xDE, 0xAD, 0xBE, 0xEF}, blocks[i].Fill)
	}
	assert.Equal(t, BlockSkip, blocks[3].Kind)
	assert.Equal(t, BlockSkip, blocks[4].Kind)
}

func TestReaderZeroSizeChunk(t *testing.T) {
	// A fill chunk with chunk_size 0 is ill-formed; its header and
	// 4-byte body are consumed and no block is produced.
	var buf bytes.Buffer
	writeFileHeader(&buf, 1, 2)
	writeChunkHeader(&buf, 0xCAC2, 0, 16)
	buf.Write([]byte{0x01, 0x02, 0x03, 0x04})
	writeChunkHeader(&buf, 0xCAC3, 1, 12)

	r, err := NewReader(bytes.NewReader(buf.Bytes()), false)
	require.NoError(t, err)

	blocks := collectBlocks(t, r)
	require.Len(t, blocks, 1)
	assert.Equal(t, BlockSkip, blocks[0].Kind)
}

func TestReaderUnknownChunkType(t *testing.T) {
	var buf bytes.Buffer
	writeFileHeader(&buf, 1, 1)
	writeChunkHeader(&buf, 0xCAC7, 1, 12)

	r, err := NewReader(bytes.NewReader(buf.Bytes()), false)
	require.NoError(t, err)

	require.False(t, r.Next())

	var parseErr *ParseError
	require.True(t, errors.As(r.Err(), &parseErr))
	assert.Contains(t, parseErr.Message, "invalid chunk magic")
}

func TestReaderTruncatedChunkBody(t *testing.T) {
	data := sparseImage()
	// Cut the stream in the middle of the first raw chunk body.
	truncated := data[:28+12+100]

	r, err := NewReader(bytes.NewReader(truncated), false)
	require.NoError(t, err)

	require.False(t, r.Next())
	require.Error(t, r.Err())

	var parseErr *ParseError
	assert.False(t, errors.As(r.Err(), &parseErr), "truncation is an I/O failure")
	assert.True(t, errors.Is(r.Err(), io.ErrUnexpectedEOF))
}

func TestReaderEmptyImage(t *testing.T) {
	var buf bytes.Buffer
	writeFileHeader(&buf, 0, 0)

	r, err := NewReader(bytes.NewReader(buf.Bytes()), false)
	require.NoError(t, err)

	assert.Equal(t, uint64(0), r.Size())
	assert.False(t, r.Next())
	assert.NoError(t, r.Err())
}
