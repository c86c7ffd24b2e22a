package sparse

import (
	"bufio"
	"errors"
	"io"

	"github.com/scigolib/sparse/internal/utils"
)

// Decoder consumes a block sequence and materializes the raw image to
// a seekable sink. Raw payloads are written verbatim, fill blocks are
// expanded once into a BlockSize scratch buffer, crc32 blocks are
// dropped, and skip blocks advance the output position with a relative
// seek - on a regular file this leaves a sparse hole instead of
// writing zeros.
//
// Because skips only seek, a trailing skip would otherwise leave the
// file short. Close therefore sets the output length explicitly: it
// truncates/extends the sink to the current position when the sink
// supports it (*os.File does), and otherwise, when the output ends in a
// hole, writes a single zero byte as the image's last byte (at the final
// offset minus one). Close is idempotent. A Decoder is not safe for
// concurrent use.
type Decoder struct {
	dst io.WriteSeeker
	buf *bufio.Writer
	pos int64 // logical output offset

	tailHole bool // output currently ends in a seeked-over hole
	closed   bool
}

// NewDecoder constructs a Decoder writing the raw image to dst.
func NewDecoder(dst io.WriteSeeker) *Decoder {
	return &Decoder{
		dst: dst,
		buf: bufio.NewWriter(dst),
	}
}

// WriteBlock materializes one block into the output.
func (d *Decoder) WriteBlock(b *Block) error {
	if d.closed {
		return errors.New("decoder is closed")
	}

	switch b.Kind {
	case BlockRaw:
		return d.write(b.Data)

	case BlockFill:
		buf := utils.GetBuffer(BlockSize)
		defer utils.ReleaseBuffer(buf)
		expandFill(buf, b.Fill)
		return d.write(buf)

	case BlockSkip:
		if err := d.buf.Flush(); err != nil {
			return utils.WrapError("flush failed", err)
		}
		if _, err := d.dst.Seek(BlockSize, io.SeekCurrent); err != nil {
			return utils.WrapError("skip seek failed", err)
		}
		d.pos += BlockSize
		d.tailHole = true
		return nil

	case BlockCrc32:
		// Checksum sentinels occupy no raw output bytes.
		return nil
	}

	return nil
}

// Close flushes buffered output and fixes the file length to exactly
// the decoded image size, materializing any trailing hole.
func (d *Decoder) Close() error {
	if d.closed {
		return nil
	}

	if err := d.buf.Flush(); err != nil {
		return utils.WrapError("flush failed", err)
	}

	if err := d.setLength(); err != nil {
		return err
	}

	d.closed = true
	return nil
}

func (d *Decoder) setLength() error {
	if t, ok := d.dst.(interface{ Truncate(size int64) error }); ok {
		if err := t.Truncate(d.pos); err != nil {
			return utils.WrapError("truncate failed", err)
		}
		return nil
	}

	// No truncation support: a trailing hole is materialized by writing
	// the image's last byte explicitly.
	if d.tailHole {
		if _, err := d.dst.Seek(d.pos-1, io.SeekStart); err != nil {
			return utils.WrapError("tail seek failed", err)
		}
		if _, err := d.dst.Write([]byte{0}); err != nil {
			return utils.WrapError("tail write failed", err)
		}
	}
	return nil
}

// write sends p through the buffered sink and advances the logical
// offset.
func (d *Decoder) write(p []byte) error {
	n, err := d.buf.Write(p)
	d.pos += int64(n)
	if err != nil {
		return utils.WrapError("raw image write failed", err)
	}
	d.tailHole = false
	return nil
}
