package main

import (
	"fmt"
	"os"

	"github.com/roach88/istore/internal/cli"
)

// Version is set at build time.
var Version = "dev"

func main() {
	rootCmd := cli.NewRootCommand()
	rootCmd.Version = Version

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
