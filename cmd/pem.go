package cmd

import (
	"encoding/pem"
	"errors"
	"fmt"
	"io"

	"github.com/dcap-tools/dcap-prep/cairo"
	"github.com/spf13/cobra"
)

var pemCmd = &cobra.Command{
	Use:   "pem",
	Short: "Convert a PEM certificate to a Cairo byte array",
	Long: `Convert a PEM certificate to a Cairo byte array.

The input must contain exactly one PEM block; its DER contents are written as
a Cairo fixed-size byte array definition. Certificate chains are not
supported.`,
	Args: cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		raw, err := io.ReadAll(dataInput())
		if err != nil {
			return fmt.Errorf("reading PEM file: %w", err)
		}

		block, rest := pem.Decode(raw)
		if block == nil {
			return errors.New("no PEM block found in input")
		}
		if next, _ := pem.Decode(rest); next != nil {
			return errors.New("this command can only be used for a single PEM certificate")
		}

		if err := cairo.WriteBytes(dataOutput(), block.Bytes); err != nil {
			return fmt.Errorf("writing Cairo bytes: %w", err)
		}
		fmt.Fprintf(debugOutput(), "Wrote %d certificate bytes\n", len(block.Bytes))

		return nil
	},
}

func init() {
	addInputFlag(pemCmd)
	addOutputFlag(pemCmd)
	RootCmd.AddCommand(pemCmd)
}
