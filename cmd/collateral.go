package cmd

import (
	"fmt"
	"io"

	"github.com/dcap-tools/dcap-prep/collateral"
	"github.com/spf13/cobra"
)

var qeIdentityCmd = &cobra.Command{
	Use:   "qeidentity",
	Short: "Convert a QE Identity JSON file to a Cairo struct definition",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		raw, err := io.ReadAll(dataInput())
		if err != nil {
			return fmt.Errorf("reading QE Identity JSON: %w", err)
		}

		if err := collateral.NewGenerator().QEIdentity(dataOutput(), raw); err != nil {
			return err
		}
		fmt.Fprintln(debugOutput(), "Wrote QE Identity definition")

		return nil
	},
}

var tcbInfoCmd = &cobra.Command{
	Use:   "tcbinfo",
	Short: "Convert a TCB Info JSON file to a Cairo struct definition",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		raw, err := io.ReadAll(dataInput())
		if err != nil {
			return fmt.Errorf("reading TCB Info JSON: %w", err)
		}

		if err := collateral.NewGenerator().TCBInfo(dataOutput(), raw); err != nil {
			return err
		}
		fmt.Fprintln(debugOutput(), "Wrote TCB Info definition")

		return nil
	},
}

func init() {
	addInputFlag(qeIdentityCmd)
	addOutputFlag(qeIdentityCmd)
	RootCmd.AddCommand(qeIdentityCmd)

	addInputFlag(tcbInfoCmd)
	addOutputFlag(tcbInfoCmd)
	RootCmd.AddCommand(tcbInfoCmd)
}
