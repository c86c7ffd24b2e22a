// Command img2simg encodes a raw image into an Android sparse image.
package main

import (
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/scigolib/sparse"
)

func newRootCmd() *cobra.Command {
	var withCRC bool

	cmd := &cobra.Command{
		Use:          "img2simg <raw_image> <sparse_image>",
		Short:        "Encode a raw image to a sparse image",
		Args:         cobra.ExactArgs(2),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(args[0], args[1], withCRC)
		},
	}

	cmd.Flags().BoolVarP(&withCRC, "crc", "c", false, "Add a checksum to the sparse image")
	return cmd
}

func run(rawPath, sparsePath string, withCRC bool) error {
	fi, err := os.Open(rawPath)
	if err != nil {
		return err
	}
	defer func() { _ = fi.Close() }()

	fo, err := os.Create(sparsePath)
	if err != nil {
		return err
	}
	defer func() { _ = fo.Close() }()

	w, err := sparse.NewWriter(fo, withCRC)
	if err != nil {
		return err
	}

	enc := sparse.NewEncoder(fi)
	for enc.Next() {
		if err := w.WriteBlock(enc.Block()); err != nil {
			return err
		}
	}
	if err := enc.Err(); err != nil {
		return err
	}
	return w.Close()
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Error("encoding failed", "error", err)
		os.Exit(1)
	}
}
