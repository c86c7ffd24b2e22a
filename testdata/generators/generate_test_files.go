//go:build ignore
// +build ignore

// Regenerates the reference fixtures from the canonical 5-block
// sequence: a counting raw block, an 0xAA fill block, two skip blocks
// and a nearly-zero raw block.
//
//	go run testdata/generators/generate_test_files.go
package main

import (
	"log"
	"os"

	"github.com/scigolib/sparse"
)

func testBlocks() []*sparse.Block {
	raw1 := make([]byte, sparse.BlockSize)
	for i := range raw1 {
		raw1[i] = byte(i)
	}
	raw2 := make([]byte, sparse.BlockSize)
	raw2[1] = 0x66

	return []*sparse.Block{
		sparse.RawBlock(raw1),
		sparse.FillBlock([4]byte{0xAA, 0xAA, 0xAA, 0xAA}),
		sparse.SkipBlock(),
		sparse.SkipBlock(),
		sparse.RawBlock(raw2),
	}
}

func writeSparse(path string, withCRC bool) {
	f, err := os.Create(path)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()

	w, err := sparse.NewWriter(f, withCRC)
	if err != nil {
		log.Fatal(err)
	}
	for _, b := range testBlocks() {
		if err := w.WriteBlock(b); err != nil {
			log.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		log.Fatal(err)
	}
}

func writeRaw(path string) {
	f, err := os.Create(path)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()

	d := sparse.NewDecoder(f)
	for _, b := range testBlocks() {
		if err := d.WriteBlock(b); err != nil {
			log.Fatal(err)
		}
	}
	if err := d.Close(); err != nil {
		log.Fatal(err)
	}
}

func corruptChecksum(src, dst string) {
	data, err := os.ReadFile(src)
	if err != nil {
		log.Fatal(err)
	}
	// Flip the last byte of the trailing crc32 chunk value.
	data[len(data)-1] ^= 0xFF
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		log.Fatal(err)
	}
}

func main() {
	writeRaw("testdata/hello.img")
	writeSparse("testdata/hello.simg", false)
	writeSparse("testdata/crc.simg", true)
	corruptChecksum("testdata/crc.simg", "testdata/invalid_crc.simg")
}
