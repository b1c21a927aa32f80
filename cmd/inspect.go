package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/dcap-tools/dcap-prep/quote"
	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Parse a quote and print its structure as JSON",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		rawQuote, err := io.ReadAll(dataInput())
		if err != nil {
			return fmt.Errorf("reading quote: %w", err)
		}

		parsedQuote, err := quote.ParseQuote(rawQuote)
		if err != nil {
			return err
		}

		prettyPrint, err := json.MarshalIndent(parsedQuote, "", " ")
		if err != nil {
			return err
		}
		fmt.Fprintln(dataOutput(), string(prettyPrint))

		return nil
	},
}

func init() {
	addInputFlag(inspectCmd)
	addOutputFlag(inspectCmd)
	RootCmd.AddCommand(inspectCmd)
}
