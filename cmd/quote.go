package cmd

import (
	"fmt"
	"io"

	"github.com/dcap-tools/dcap-prep/quote"
	"github.com/spf13/cobra"
)

var quoteCmd = &cobra.Command{
	Use:   "quote",
	Short: "Convert the cert chain inside a quote from PEM to DER",
	Long: `Convert the cert chain inside a quote from PEM to DER.

Parses a raw SGX/TDX quote, verifies that re-encoding it reproduces the input
byte for byte, rewrites the PCK certificate chain nested in the QE report
certification data from PEM to raw DER, and writes the re-encoded quote.

The round-trip check is mandatory: it is the only guard against a misparse
silently corrupting the recomputed size fields of the output.`,
	Args: cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		rawQuote, err := io.ReadAll(dataInput())
		if err != nil {
			return fmt.Errorf("reading quote: %w", err)
		}

		parsedQuote, err := quote.ParseQuote(rawQuote)
		if err != nil {
			return err
		}
		if err := parsedQuote.VerifyRoundtrip(rawQuote); err != nil {
			return err
		}
		fmt.Fprintln(debugOutput(), "Quote parsed, round trip verified")

		if err := parsedQuote.TransformCertChain(); err != nil {
			return err
		}

		transformed := parsedQuote.Marshal()
		if _, err := dataOutput().Write(transformed); err != nil {
			return fmt.Errorf("writing quote: %w", err)
		}
		fmt.Fprintf(debugOutput(), "Wrote transformed quote (%d bytes in, %d bytes out)\n", len(rawQuote), len(transformed))

		return nil
	},
}

func init() {
	addInputFlag(quoteCmd)
	addOutputFlag(quoteCmd)
	RootCmd.AddCommand(quoteCmd)
}
