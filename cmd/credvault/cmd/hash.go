package cmd

import (
	"bufio"
	"fmt"

	"github.com/awnumar/memguard"
	"github.com/spf13/cobra"

	"github.com/jmcleod/credvault/crypto"
)

func newHashCmd() *cobra.Command {
	var (
		cost      int
		fromStdin bool
	)
	c := &cobra.Command{
		Use:   "hash",
		Short: "Print a bcrypt hash of a passphrase",
		Long: `Hash a passphrase the way account passwords are stored. Useful for
seeding accounts or checking the cost of a hash setting.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			memguard.CatchInterrupt()
			defer memguard.Purge()

			hasher, err := crypto.NewBcryptHasher(cost)
			if err != nil {
				return err
			}
			passphrase, err := readPassphrase(cmd, bufio.NewReader(cmd.InOrStdin()), fromStdin, true)
			if err != nil {
				return err
			}
			defer passphrase.Destroy()

			hash, err := hasher.Hash(passphrase.Bytes())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), hash)
			return err
		},
	}
	c.Flags().IntVar(&cost, "cost", crypto.DefaultHashCost, "bcrypt cost")
	c.Flags().BoolVar(&fromStdin, "passphrase-stdin", false, "Read the passphrase from the first line of stdin")
	return c
}

func init() {
	rootCmd.AddCommand(newHashCmd())
}
