package utils

import (
	"encoding/binary"
	"io"
)

// The sparse wire format is little-endian throughout.

// ReadUint16 reads a little-endian 16-bit value from r.
func ReadUint16(r io.Reader) (uint16, error) {
	buf := GetBuffer(2)
	defer ReleaseBuffer(buf)

	if _, err := io.ReadFull(r, buf); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(buf), nil
}

// ReadUint32 reads a little-endian 32-bit value from r.
func ReadUint32(r io.Reader) (uint32, error) {
	buf := GetBuffer(4)
	defer ReleaseBuffer(buf)

	if _, err := io.ReadFull(r, buf); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf), nil
}

// WriteUint16 writes v to w as a little-endian 16-bit value.
func WriteUint16(w io.Writer, v uint16) error {
	buf := GetBuffer(2)
	defer ReleaseBuffer(buf)

	binary.LittleEndian.PutUint16(buf, v)
	_, err := w.Write(buf)
	return err
}

// WriteUint32 writes v to w as a little-endian 32-bit value.
func WriteUint32(w io.Writer, v uint32) error {
	buf := GetBuffer(4)
	defer ReleaseBuffer(buf)

	binary.LittleEndian.PutUint32(buf, v)
	_, err := w.Write(buf)
	return err
}
