package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/platinummonkey/mesauthz/pkg/authz"
	"github.com/platinummonkey/mesauthz/pkg/rbac"
)

func newCheckCommand() *Command {
	flags := pflag.NewFlagSet("check", pflag.ContinueOnError)
	src := addSourceFlags(flags)
	user := flags.StringP("user", "u", "", "User id")
	action := flags.StringP("action", "a", "", "Action, e.g. authorize")
	subject := flags.StringP("subject", "s", "", "Subject, e.g. Run")
	line := flags.String("line", "", "Line id of the instance")
	station := flags.String("station", "", "Station id of the instance")
	asJSON := flags.Bool("json", false, "Output as JSON")

	return &Command{
		Name:        "check",
		Description: "Decide whether a user may act on a subject instance",
		Flags:       flags,
		Run: func(args []string) error {
			if err := flags.Parse(args); err != nil {
				return err
			}
			if *user == "" || *action == "" || *subject == "" {
				return fmt.Errorf("--user, --action and --subject are required")
			}

			a, closeFn, err := src.authorizer()
			if err != nil {
				return err
			}
			defer closeFn()

			d, err := a.Check(context.Background(), *user, rbac.Action(*action), rbac.Subject(*subject),
				rbac.Attributes{LineID: *line, StationID: *station})
			if err != nil {
				return err
			}
			if *asJSON {
				return writeJSON(d)
			}

			verdict := "DENIED"
			if d.Allowed {
				verdict = "ALLOWED"
			}
			fmt.Fprintf(stdout, "%s %s %s %s: %s\n", verdict, *user, *action, *subject, d.Reason)
			return nil
		},
	}
}

func newScopeCommand() *Command {
	flags := pflag.NewFlagSet("scope", pflag.ContinueOnError)
	src := addSourceFlags(flags)
	user := flags.StringP("user", "u", "", "User id")
	permission := flags.StringP("permission", "p", "", "Permission, e.g. wo:read")

	return &Command{
		Name:        "scope",
		Description: "Show a user's data scope for one permission",
		Flags:       flags,
		Run: func(args []string) error {
			if err := flags.Parse(args); err != nil {
				return err
			}
			if *user == "" || *permission == "" {
				return fmt.Errorf("--user and --permission are required")
			}

			a, closeFn, err := src.authorizer()
			if err != nil {
				return err
			}
			defer closeFn()

			d, err := a.Scope(context.Background(), *user, *permission)
			if errors.Is(err, authz.ErrForbidden) {
				return fmt.Errorf("%s does not hold %s", *user, *permission)
			}
			if err != nil {
				return err
			}
			return writeJSON(d)
		},
	}
}

func newProfileCommand() *Command {
	flags := pflag.NewFlagSet("profile", pflag.ContinueOnError)
	src := addSourceFlags(flags)
	user := flags.StringP("user", "u", "", "User id")
	home := flags.String("home", "", "Home page preference overriding the stored one")

	return &Command{
		Name:        "profile",
		Description: "Show a user's roles, permissions and landing page",
		Flags:       flags,
		Run: func(args []string) error {
			if err := flags.Parse(args); err != nil {
				return err
			}
			if *user == "" {
				return fmt.Errorf("--user is required")
			}

			a, closeFn, err := src.authorizer()
			if err != nil {
				return err
			}
			defer closeFn()

			p, err := a.Profile(context.Background(), *user, *home)
			if err != nil {
				return err
			}
			return writeJSON(p)
		},
	}
}
