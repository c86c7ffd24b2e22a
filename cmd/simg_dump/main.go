// Command simg_dump displays the structure of an Android sparse image:
// a summary of its block and chunk counts and, in verbose mode, a
// per-chunk table of input byte ranges and output block ranges.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/scigolib/sparse/internal/format"
)

var headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))

type chunkInfo struct {
	header    *format.ChunkHeader
	bytesOff  uint64 // offset of the chunk body in the sparse file
	blocksOff uint64 // offset of the chunk in the raw image, in blocks
	detail    string // fill pattern or crc value
}

func newRootCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:          "simg_dump <sparse_image>",
		Short:        "Display sparse file info",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(args[0], verbose)
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	return cmd
}

func run(path string, verbose bool) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	hdr, chunks, parseErr := scan(f)
	// Even when parsing fails mid-file, whatever structure was read is
	// still useful, so it is dumped before the error is surfaced.
	if hdr != nil {
		dump(hdr, chunks, verbose)
	}
	if parseErr != nil {
		return parseErr
	}

	return reportTrailingData(f)
}

// scan walks the chunk headers, skipping over bodies, and returns as
// much structure as could be read.
func scan(f *os.File) (*format.FileHeader, []chunkInfo, error) {
	hdr, err := format.ReadFileHeader(f)
	if err != nil {
		return nil, nil, err
	}

	chunks := make([]chunkInfo, 0, hdr.TotalChunks)
	bytesOff := uint64(format.FileHeaderSize)
	blocksOff := uint64(0)

	for i := uint32(0); i < hdr.TotalChunks; i++ {
		ch, err := format.ReadChunkHeader(f)
		if err != nil {
			return hdr, chunks, err
		}

		info := chunkInfo{
			header:    ch,
			bytesOff:  bytesOff + format.ChunkHeaderSize,
			blocksOff: blocksOff,
		}

		bodySize := int64(ch.TotalSize) - format.ChunkHeaderSize
		switch ch.Type {
		case format.ChunkFill, format.ChunkCrc32:
			var value [4]byte
			if _, err := io.ReadFull(f, value[:]); err != nil {
				return hdr, chunks, err
			}
			if ch.Type == format.ChunkFill {
				info.detail = fmt.Sprintf(`fill: \x%02x\x%02x\x%02x\x%02x`,
					value[0], value[1], value[2], value[3])
			} else {
				info.detail = fmt.Sprintf("crc32: 0x%08x",
					uint32(value[0])|uint32(value[1])<<8|uint32(value[2])<<16|uint32(value[3])<<24)
			}
		default:
			info.detail = ch.Type.String()
			if bodySize > 0 {
				if _, err := f.Seek(bodySize, io.SeekCurrent); err != nil {
					return hdr, chunks, err
				}
			}
		}

		chunks = append(chunks, info)
		bytesOff += uint64(ch.TotalSize)
		blocksOff += uint64(ch.ChunkSize)
	}

	return hdr, chunks, nil
}

func dump(hdr *format.FileHeader, chunks []chunkInfo, verbose bool) {
	fmt.Printf("Total of %d %d-byte output blocks in %d input chunks.\n",
		hdr.TotalBlocks, format.BlockSize, hdr.TotalChunks)

	if !verbose {
		return
	}

	fmt.Println()
	fmt.Println(headerStyle.Render("       |       input_bytes       |   output_blocks   |"))
	fmt.Println(headerStyle.Render(" chunk |   offset   |   number   | offset  |  number | type"))
	fmt.Println("-----------------------------------------------------------------")

	for i, c := range chunks {
		fmt.Printf(" %5d | %10d | %10d | %7d | %7d | %s\n",
			i+1,
			c.bytesOff,
			c.header.TotalSize-format.ChunkHeaderSize,
			c.blocksOff,
			c.header.ChunkSize,
			c.detail,
		)
	}
	fmt.Println()
}

// reportTrailingData warns when the file extends past the last chunk.
func reportTrailingData(f *os.File) error {
	pos, err := f.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}
	end, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return err
	}
	if pos != end {
		fmt.Printf("There are %d bytes of extra data at the end of the file.\n", end-pos)
	}
	return nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Error("dump failed", "error", err)
		os.Exit(1)
	}
}
