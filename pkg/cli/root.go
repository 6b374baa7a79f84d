package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/pflag"
)

// stdout receives command output; tests replace it
var stdout io.Writer = os.Stdout

// Command represents a CLI command
type Command struct {
	Name        string
	Description string
	Run         func(args []string) error
	Subcommands map[string]*Command
	Flags       *pflag.FlagSet
}

// NewRootCommand creates the root command
func NewRootCommand() *Command {
	root := &Command{
		Name:        "mesauthz",
		Description: "mesauthz - MES permission catalog and capability tool",
		Subcommands: make(map[string]*Command),
		Flags:       pflag.NewFlagSet("mesauthz", pflag.ContinueOnError),
	}

	// Add subcommands
	root.Subcommands["catalog"] = newCatalogCommand()
	root.Subcommands["presets"] = newPresetsCommand()
	root.Subcommands["validate"] = newValidateCommand()
	root.Subcommands["migrate"] = newMigrateCommand()
	root.Subcommands["check"] = newCheckCommand()
	root.Subcommands["scope"] = newScopeCommand()
	root.Subcommands["home"] = newHomeCommand()
	root.Subcommands["profile"] = newProfileCommand()

	return root
}

// Execute runs the command with the process arguments
func (c *Command) Execute() error {
	return c.ExecuteArgs(os.Args[1:])
}

// ExecuteArgs runs the command with args
func (c *Command) ExecuteArgs(args []string) error {
	if len(args) == 0 {
		return c.usage()
	}

	// Check for help flag
	if args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		return c.usage()
	}

	// Check for subcommand
	if subcmd, ok := c.Subcommands[args[0]]; ok {
		err := subcmd.Run(args[1:])
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	return fmt.Errorf("unknown command: %s", args[0])
}

// usage prints the command usage
func (c *Command) usage() error {
	names := make([]string, 0, len(c.Subcommands))
	for name := range c.Subcommands {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintf(stdout, "Usage: %s <command> [flags]\n\n", c.Name)
	fmt.Fprintf(stdout, "Commands:\n")
	for _, name := range names {
		fmt.Fprintf(stdout, "  %-15s %s\n", name, c.Subcommands[name].Description)
	}
	return nil
}

func writeJSON(v interface{}) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
