// Package cmd implements the dcap-prep subcommands.
package cmd

import (
	"io"
	"os"

	"github.com/spf13/cobra"
)

// RootCmd is the top-level dcap-prep command.
var RootCmd = &cobra.Command{
	Use:   "dcap-prep",
	Short: "Preprocess Intel DCAP test data",
	Long: `Preprocess Intel DCAP test data for embedding in Cairo programs.

Converts raw SGX/TDX quotes (rewriting the embedded PEM certificate chain to
DER), PEM certificates, arbitrary binary files, and PCS collateral JSON
documents into the formats the Cairo test suite consumes.`,
	Args: cobra.NoArgs,
}

var (
	output string
	input  string
	quiet  bool
)

func init() {
	RootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false,
		"print nothing but errors")
	hideHelp(RootCmd)
}

// Disable the "help" subcommand (and just use the -h/--help flags).
// See https://github.com/spf13/cobra/issues/587 for why this is needed.
func hideHelp(cmd *cobra.Command) {
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
}

// Lets this command specify an output file, for use with dataOutput().
func addOutputFlag(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&output, "output", "",
		"output file (defaults to stdout)")
}

// Lets this command specify an input file, for use with dataInput().
func addInputFlag(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&input, "input", "",
		"input file (defaults to stdin)")
}

// alwaysError implements io.ReadWriter by always returning an error.
type alwaysError struct {
	error
}

func (ae alwaysError) Write([]byte) (int, error) {
	return 0, ae.error
}

func (ae alwaysError) Read([]byte) (int, error) {
	return 0, ae.error
}

// Handle to the output data file. If there is an issue opening the file, the
// Writer returned will return the error upon any call to Write().
func dataOutput() io.Writer {
	if output == "" {
		return os.Stdout
	}

	file, err := os.Create(output)
	if err != nil {
		return alwaysError{err}
	}
	return file
}

// Handle to the input data file. If there is an issue opening the file, the
// Reader returned will return the error upon any call to Read().
func dataInput() io.Reader {
	if input == "" {
		return os.Stdin
	}

	file, err := os.Open(input)
	if err != nil {
		return alwaysError{err}
	}
	return file
}

// debugOutput is where progress messages go, silenced by --quiet.
func debugOutput() io.Writer {
	if quiet {
		return io.Discard
	}
	return os.Stderr
}
