package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/platinummonkey/mesauthz/pkg/rbac"
)

func newCatalogCommand() *Command {
	flags := pflag.NewFlagSet("catalog", pflag.ContinueOnError)
	asJSON := flags.Bool("json", false, "Output as JSON")

	return &Command{
		Name:        "catalog",
		Description: "List the permission catalog with parsed subject and action",
		Flags:       flags,
		Run: func(args []string) error {
			if err := flags.Parse(args); err != nil {
				return err
			}
			if *asJSON {
				return writeJSON(rbac.PermissionGroups())
			}

			w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "GROUP\tPERMISSION\tSUBJECT\tACTION\tLABEL")
			for _, g := range rbac.PermissionGroups() {
				for _, opt := range g.Permissions {
					subject, action := rbac.Parse(string(opt.Value))
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", g.Key, opt.Value, subject, action, opt.Label)
				}
			}
			return w.Flush()
		},
	}
}

func newPresetsCommand() *Command {
	flags := pflag.NewFlagSet("presets", pflag.ContinueOnError)
	asJSON := flags.Bool("json", false, "Output as JSON")

	return &Command{
		Name:        "presets",
		Description: "List preset roles, their data scope and landing page",
		Flags:       flags,
		Run: func(args []string) error {
			if err := flags.Parse(args); err != nil {
				return err
			}
			presets := rbac.PresetRoles()
			if *asJSON {
				return writeJSON(presets)
			}

			w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "CODE\tNAME\tSCOPE\tHOME\tPERMISSIONS")
			for _, p := range presets {
				home, _ := rbac.HomePageFor(p.Code)
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n", p.Code, p.Name, p.DataScope, home, len(p.Permissions))
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(stdout, "\nHome priority: %s\n", strings.Join(rbac.RolePriority(), " > "))
			return nil
		},
	}
}

func newHomeCommand() *Command {
	flags := pflag.NewFlagSet("home", pflag.ContinueOnError)
	roles := flags.StringSlice("roles", nil, "Role codes held by the user (comma separated)")
	preference := flags.String("preference", "", "Stored home page preference")

	return &Command{
		Name:        "home",
		Description: "Resolve the landing page for a set of roles",
		Flags:       flags,
		Run: func(args []string) error {
			if err := flags.Parse(args); err != nil {
				return err
			}
			fmt.Fprintln(stdout, rbac.ResolveHomePage(*preference, *roles))
			return nil
		},
	}
}
