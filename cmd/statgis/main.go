// Command statgis runs statgis analyses from the command line, either
// in-process against the configured datasets or against a remote
// statgis-server over gRPC.
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
