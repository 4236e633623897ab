package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/goliatone/go-identity"
	"github.com/spf13/cobra"
)

type appKey struct{}

// cli owns the root command and the app it opens, so the app is closed
// even when a command fails.
type cli struct {
	root *cobra.Command
	app  *app
}

// Execute runs the command line and always releases the database and
// flushes the logger afterwards.
func (c *cli) Execute(ctx context.Context) error {
	err := c.root.ExecuteContext(ctx)
	if cerr := c.Close(); err == nil {
		err = cerr
	}
	return err
}

func (c *cli) Close() error {
	if c.app == nil {
		return nil
	}
	a := c.app
	c.app = nil
	return a.Close()
}

func newCLI() *cli {
	c := &cli{}
	var configFile string

	root := &cobra.Command{
		Use:           "identityctl",
		Short:         "Manage identity accounts",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(cmd, configFile)
			if err != nil {
				return fmt.Errorf("error loading config: %w", err)
			}

			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			c.app = a

			cmd.SetContext(context.WithValue(cmd.Context(), appKey{}, a))
			return nil
		},
	}
	c.root = root

	flags := root.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "config file (default ./identity.yaml)")
	flags.String("signing-key", "", "token signing key")
	flags.String("database-driver", "", "database driver: sqlite, sqliteshim or postgres")
	flags.String("database-dsn", "", "database DSN")
	flags.String("log-level", "", "log level")

	root.AddCommand(
		newMigrateCmd(),
		newRegisterCmd(),
		newLoginCmd(),
		newWhoamiCmd(),
		newVerifyCmd(),
		newProfileCmd(),
	)

	return c
}

func appFrom(cmd *cobra.Command) *app {
	if cmd.Context() == nil {
		return nil
	}
	a, _ := cmd.Context().Value(appKey{}).(*app)
	return a
}

func managerFrom(cmd *cobra.Command) (*identity.Manager, error) {
	a := appFrom(cmd)
	if a == nil {
		return nil, fmt.Errorf("identityctl is not initialized")
	}
	return a.Manager()
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the accounts table",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := appFrom(cmd).Migrate(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "accounts table ready")
			return nil
		},
	}
}

func newRegisterCmd() *cobra.Command {
	var email, password string
	var profile map[string]string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a new account",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := managerFrom(cmd)
			if err != nil {
				return err
			}

			msg := identity.RegisterAccountMessage{
				Email:    email,
				Password: password,
				Profile:  toProfile(profile),
				OnResponse: func(account *identity.Account) {
					_ = printJSON(cmd.OutOrStdout(), account)
				},
			}

			return identity.NewRegisterAccountHandler(m).Execute(cmd.Context(), msg)
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	cmd.Flags().StringToStringVar(&profile, "profile", nil, "profile entries, key=value")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

func newLoginCmd() *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Verify credentials and print a session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := managerFrom(cmd)
			if err != nil {
				return err
			}

			token, err := m.Login(cmd.Context(), email, password)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

func newWhoamiCmd() *cobra.Command {
	var token string

	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Resolve a session token to its account",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := managerFrom(cmd)
			if err != nil {
				return err
			}

			account, err := m.Authenticate(cmd.Context(), token)
			if err != nil {
				return err
			}

			return printJSON(cmd.OutOrStdout(), account)
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "session token")
	_ = cmd.MarkFlagRequired("token")

	return cmd
}

func newVerifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Email verification",
	}

	var email string
	request := &cobra.Command{
		Use:   "request",
		Short: "Issue an email verification token",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := managerFrom(cmd)
			if err != nil {
				return err
			}

			return identity.NewEmailVerificationRequestHandler(m).Execute(cmd.Context(), identity.EmailVerificationRequestMessage{
				Email: email,
				OnResponse: func(token string) {
					fmt.Fprintln(cmd.OutOrStdout(), token)
				},
			})
		},
	}
	request.Flags().StringVar(&email, "email", "", "account email")
	_ = request.MarkFlagRequired("email")

	var token string
	confirm := &cobra.Command{
		Use:   "confirm",
		Short: "Mark the email of a verification token as verified",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := managerFrom(cmd)
			if err != nil {
				return err
			}

			return identity.NewEmailVerificationConfirmHandler(m).Execute(cmd.Context(), identity.EmailVerificationConfirmMessage{
				Token: token,
				OnResponse: func(account *identity.Account) {
					_ = printJSON(cmd.OutOrStdout(), account)
				},
			})
		},
	}
	confirm.Flags().StringVar(&token, "token", "", "email verification token")
	_ = confirm.MarkFlagRequired("token")

	cmd.AddCommand(request, confirm)
	return cmd
}

func newProfileCmd() *cobra.Command {
	var email string
	var profile map[string]string

	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Replace the profile of an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := managerFrom(cmd)
			if err != nil {
				return err
			}

			account, err := m.UpdateProfile(cmd.Context(), email, toProfile(profile))
			if err != nil {
				return err
			}

			return printJSON(cmd.OutOrStdout(), account)
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringToStringVar(&profile, "set", nil, "profile entries, key=value")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func toProfile(in map[string]string) identity.Profile {
	out := identity.Profile{}
	for k, v := range in {
		out[k] = v
	}
	return out
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
