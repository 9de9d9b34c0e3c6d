package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ericfisherdev/credvault/internal/adapter/driven/aescbc"
	"github.com/ericfisherdev/credvault/internal/adapter/driving/cli"
	"github.com/ericfisherdev/credvault/internal/config"
	"github.com/ericfisherdev/credvault/internal/domain/model"
)

// overrides holds the persistent flags that take precedence over CREDVAULT_* variables.
type overrides struct {
	dbPath    string
	keyFile   string
	keySource string
	ivMode    string
}

func (o overrides) apply(cfg *config.Config) error {
	if o.dbPath != "" {
		cfg.DBPath = o.dbPath
	}
	if o.keyFile != "" {
		cfg.KeyFile = o.keyFile
	}
	if o.ivMode != "" {
		cfg.IVMode = o.ivMode
	}
	if o.keySource != "" {
		source, err := config.ParseKeySource(o.keySource)
		if err != nil {
			return fmt.Errorf("--key-source: %w", err)
		}
		cfg.KeySource = source
	}
	return cfg.Validate()
}

// newRootCmd builds the command tree. The returned func closes whatever the
// executed command opened and is safe to call when nothing was opened.
func newRootCmd(in io.Reader, out io.Writer) (*cobra.Command, func()) {
	var flags overrides
	var a *app

	root := &cobra.Command{
		Use:   "credvault",
		Short: "credvault - a local credential vault with secrets encrypted at rest",
		Long: `credvault stores application credentials in a local SQLite database.
Passwords are encrypted with AES-256-CBC before they are written.

Run without a subcommand for the interactive menu.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if !opensVault(cmd) {
				return nil
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := flags.apply(cfg); err != nil {
				return err
			}
			migrating := cmd.Name() == migrateIVName
			a, err = openApp(cmd.Context(), cfg, in, out, migrating)
			if err != nil {
				return err
			}
			return a.ready(cmd.Context(), migrating)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cli.NewShell(a.vault, a.prompt, out).Run(cmd.Context())
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.dbPath, "db", "", "database file (overrides CREDVAULT_DB_PATH)")
	pf.StringVar(&flags.keyFile, "key-file", "", "key file (overrides CREDVAULT_KEY_FILE)")
	pf.StringVar(&flags.keySource, "key-source", "", "key source: file, passphrase or env (overrides CREDVAULT_KEY_SOURCE)")
	pf.StringVar(&flags.ivMode, "iv-mode", "", "IV mode: per-record or fixed (overrides CREDVAULT_IV_MODE)")

	appRef := func() *app { return a }
	root.AddCommand(
		newInitCmd(out),
		newRegisterCmd(appRef, out),
		newSearchCmd(appRef, out),
		newListCmd(appRef, out),
		newDeleteCmd(appRef, out),
		newMigrateIVCmd(appRef, out),
	)
	closeApp := func() {
		if a != nil {
			a.close()
			a = nil
		}
	}
	return root, closeApp
}

// opensVault reports whether cmd works on the vault. Cobra's help and
// completion commands inherit the root hooks but must not create key files
// or prompt.
func opensVault(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		switch c.Name() {
		case "help", "completion", cobra.ShellCompRequestCmd, cobra.ShellCompNoDescRequestCmd:
			return false
		}
	}
	return true
}

func newInitCmd(out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the key material, database schema and admin user, then exit",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			fmt.Fprintln(out, "Vault ready.")
			return nil
		},
	}
}

func newRegisterCmd(appRef func() *app, out io.Writer) *cobra.Command {
	var cred model.Credential
	var note string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Store a credential; the password is prompted for",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := appRef()
			secret, err := a.prompt.Secret("Password: ")
			if err != nil {
				return fmt.Errorf("read password: %w", err)
			}
			cred.Secret = secret
			if cmd.Flags().Changed("note") {
				cred.Note = &note
			}

			res, err := cli.Dispatch(cmd.Context(), a.vault, cli.Register{Credential: cred})
			if err != nil {
				return err
			}
			cli.RenderRegistered(out, res.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&cred.Application, "app", "", "application name (required)")
	cmd.Flags().StringVar(&cred.Username, "user", "", "username")
	cmd.Flags().StringVar(&cred.Email, "email", "", "email")
	cmd.Flags().StringVar(&note, "note", "", "optional note")
	_ = cmd.MarkFlagRequired("app")
	return cmd
}

func newSearchCmd(appRef func() *app, out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "search <application>",
		Short: "Show every credential stored for an application",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := cli.Dispatch(cmd.Context(), appRef().vault, cli.Search{Application: args[0]})
			if err != nil {
				return err
			}
			cli.RenderListing(out, res.Listing, "No credential found.")
			return nil
		},
	}
}

func newListCmd(appRef func() *app, out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show every stored credential",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := cli.Dispatch(cmd.Context(), appRef().vault, cli.List{})
			if err != nil {
				return err
			}
			cli.RenderListing(out, res.Listing, "No credentials stored.")
			return nil
		},
	}
}

func newDeleteCmd(appRef func() *app, out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <application>",
		Short: "Delete every credential stored for an application",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := cli.Dispatch(cmd.Context(), appRef().vault, cli.Delete{Application: args[0]})
			if err != nil {
				return err
			}
			cli.RenderDeleted(out, args[0], res.Deleted)
			return nil
		},
	}
}

const migrateIVName = "migrate-iv"

func newMigrateIVCmd(appRef func() *app, out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   migrateIVName,
		Short: "Re-encrypt secrets written with a fixed IV into the per-record IV layout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := appRef()
			if a.cipher.Mode() != aescbc.IVPerRecord {
				return errors.New("migrate-iv writes the per-record layout; run it with --iv-mode per-record")
			}
			if a.stored.Mode() != aescbc.IVFixed {
				return fmt.Errorf("vault already uses the %s layout; nothing to migrate", a.stored.Mode())
			}

			n, err := a.vault.MigrateIV(cmd.Context(), a.stored, string(aescbc.IVFixed), string(aescbc.IVPerRecord))
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Re-encrypted %d secret(s).\n", n)
			return nil
		},
	}
}
