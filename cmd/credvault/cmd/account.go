package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/jmcleod/credvault/crypto"
	"github.com/jmcleod/credvault/internal/config"
	"github.com/jmcleod/credvault/vault"
)

func newAccountCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "account",
		Short: "Administer accounts in the configured storage",
		Long: `Administer accounts directly in the storage backend the server uses.
Stop the server first when using bbolt, which allows a single process.`,
	}
	addStorageFlags(c.PersistentFlags())
	c.AddCommand(
		newSetActiveCmd("enable", "Allow an account to log in again", true),
		newSetActiveCmd("disable", "Block logins and reject the account's tokens", false),
	)
	return c
}

func addStorageFlags(f *pflag.FlagSet) {
	f.String("storage", config.StorageBBolt, "Storage backend: bbolt, memory, postgres or sqlite")
	f.String("data-dir", "./data", "Directory for bbolt and sqlite data files")
	f.String("postgres-dsn", "", "PostgreSQL connection string")
	f.String("sqlite-path", "", "SQLite database file (default <data-dir>/credvault.sqlite)")
}

func newSetActiveCmd(use, short string, active bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " EMAIL",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(envFile)
			if err != nil {
				return err
			}
			if err := applyFlags(cmd.Flags(), cfg); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			ctx := cmd.Context()
			repo, closeRepo, err := openRepository(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeRepo()

			hasher, err := crypto.NewBcryptHasher(cfg.HashCost)
			if err != nil {
				return err
			}
			accounts := vault.NewAccounts(repo, hasher)

			acct, err := accounts.GetByEmail(ctx, args[0])
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			if err := accounts.SetActive(ctx, acct.ID, active); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "account %d (%s) %sd\n", acct.ID, acct.Email, use)
			return nil
		},
	}
}

func init() {
	rootCmd.AddCommand(newAccountCmd())
}
