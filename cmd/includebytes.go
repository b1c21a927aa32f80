package cmd

import (
	"fmt"
	"io"

	"github.com/dcap-tools/dcap-prep/cairo"
	"github.com/spf13/cobra"
)

var includeBytesCmd = &cobra.Command{
	Use:   "include-bytes",
	Short: "Convert any file to a Cairo byte array",
	Long:  "Write the input file verbatim as a Cairo fixed-size byte array definition.",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		raw, err := io.ReadAll(dataInput())
		if err != nil {
			return fmt.Errorf("reading input: %w", err)
		}

		if err := cairo.WriteBytes(dataOutput(), raw); err != nil {
			return fmt.Errorf("writing Cairo bytes: %w", err)
		}
		fmt.Fprintf(debugOutput(), "Wrote %d bytes\n", len(raw))

		return nil
	},
}

func init() {
	addInputFlag(includeBytesCmd)
	addOutputFlag(includeBytesCmd)
	RootCmd.AddCommand(includeBytesCmd)
}
