package main

import "os"

// Build-time variables 'version', 'commit', and 'date' are declared in
// 'root.go' within this package and populated via -ldflags.

// main is the entry point for the seg-batch application. Command parsing,
// configuration loading, context setup, and error reporting are handled by
// the Cobra command defined in root.go. Fatal errors, including invalid
// configuration, exit with a non-zero status.
func main() {
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}
