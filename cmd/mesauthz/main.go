package main

import (
	"fmt"
	"os"

	"github.com/platinummonkey/mesauthz/pkg/cli"
	"github.com/platinummonkey/mesauthz/pkg/rbac"
)

func main() {
	rbac.MustValidateCatalog()

	// Create root command
	rootCmd := cli.NewRootCommand()

	// Execute command
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
