package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// envFile is the dotenv file loaded before the environment is parsed.
var envFile string

var rootCmd = &cobra.Command{
	Use:   "credvault",
	Short: "credvault is a credential vault service",
	Long: `A credential vault: accounts store website passwords encrypted under a
master password that the server never keeps.

Run "credvault server" to start the HTTP API, or use "credvault secret" to
seal and reveal secrets offline with the same encryption.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file to load (default .env if present)")
}
