// Command simg2img decodes one or more Android sparse images into a
// raw image. Multiple inputs are concatenated in argument order, each
// run through the full reader pipeline.
package main

import (
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/scigolib/sparse"
)

func newRootCmd() *cobra.Command {
	var verifyCRC bool

	cmd := &cobra.Command{
		Use:          "simg2img <sparse_image>... <raw_image>",
		Short:        "Decode sparse images to a raw image",
		Args:         cobra.MinimumNArgs(2),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			inputs := args[:len(args)-1]
			output := args[len(args)-1]
			return run(inputs, output, verifyCRC)
		},
	}

	cmd.Flags().BoolVarP(&verifyCRC, "crc", "c", false, "Check the sparse image checksum")
	return cmd
}

func run(inputs []string, output string, verifyCRC bool) error {
	fo, err := os.Create(output)
	if err != nil {
		return err
	}
	defer func() { _ = fo.Close() }()

	dec := sparse.NewDecoder(fo)
	for _, input := range inputs {
		if err := decodeOne(input, dec, verifyCRC); err != nil {
			return err
		}
	}
	return dec.Close()
}

func decodeOne(input string, dec *sparse.Decoder, verifyCRC bool) error {
	fi, err := os.Open(input)
	if err != nil {
		return err
	}
	defer func() { _ = fi.Close() }()

	r, err := sparse.NewReader(fi, verifyCRC)
	if err != nil {
		return err
	}
	for r.Next() {
		if err := dec.WriteBlock(r.Block()); err != nil {
			return err
		}
	}
	return r.Err()
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Error("decoding failed", "error", err)
		os.Exit(1)
	}
}
