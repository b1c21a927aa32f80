// The dcap-prep binary preprocesses Intel DCAP test data for Cairo programs.
package main

import (
	"os"

	"github.com/dcap-tools/dcap-prep/cmd"
)

func main() {
	if cmd.RootCmd.Execute() != nil {
		os.Exit(1)
	}
}
