package cli

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/pflag"

	"github.com/platinummonkey/mesauthz/pkg/rbac"
	"github.com/platinummonkey/mesauthz/pkg/snapshot"
)

func newValidateCommand() *Command {
	flags := pflag.NewFlagSet("validate", pflag.ContinueOnError)
	file := flags.StringP("file", "f", "", "Snapshot YAML file to validate as well")

	return &Command{
		Name:        "validate",
		Description: "Validate the built-in catalog and optionally a snapshot file",
		Flags:       flags,
		Run: func(args []string) error {
			if err := flags.Parse(args); err != nil {
				return err
			}

			if err := rbac.ValidateCatalog(); err != nil {
				return fmt.Errorf("catalog invalid: %w", err)
			}
			fmt.Fprintf(stdout, "catalog OK: %d permissions, %d preset roles\n",
				len(rbac.Catalog()), len(rbac.PresetRoles()))

			if *file == "" {
				return nil
			}

			data, err := os.ReadFile(*file)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", *file, err)
			}
			records, err := snapshot.ParseDocument(data)
			if err != nil {
				return fmt.Errorf("%s: %w", *file, err)
			}

			ids := make([]string, 0, len(records))
			for id := range records {
				ids = append(ids, id)
			}
			sort.Strings(ids)
			for _, id := range ids {
				user := records[id].User
				fmt.Fprintf(stdout, "  %-20s roles=%v lines=%d stations=%d\n",
					id, user.RoleCodes(), len(user.LineIDs), len(user.StationIDs))
			}
			fmt.Fprintf(stdout, "snapshot OK: %d users\n", len(records))
			return nil
		},
	}
}
