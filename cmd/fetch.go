package cmd

import (
	"fmt"

	"github.com/dcap-tools/dcap-prep/tdx"
	"github.com/spf13/cobra"
)

var userData string

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch a fresh quote from the TDX guest device",
	Long: `Fetch a fresh quote from the TDX guest device.

Requests a quote over the given user data from the quote generation service
and writes the raw quote, ready for further preprocessing. Only works inside
a TDX guest on Linux.`,
	Args: cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		device, err := tdx.Open()
		if err != nil {
			return fmt.Errorf("opening %s: %w", tdx.GuestDevice, err)
		}
		defer device.Close()

		rawQuote, err := tdx.GenerateQuote(device, []byte(userData))
		if err != nil {
			return err
		}

		if _, err := dataOutput().Write(rawQuote); err != nil {
			return fmt.Errorf("writing quote: %w", err)
		}
		fmt.Fprintf(debugOutput(), "Wrote quote (%d bytes)\n", len(rawQuote))

		return nil
	},
}

func init() {
	fetchCmd.PersistentFlags().StringVar(&userData, "user-data", "",
		"user data to bind into the quote (at most 64 bytes)")
	addOutputFlag(fetchCmd)
	RootCmd.AddCommand(fetchCmd)
}
