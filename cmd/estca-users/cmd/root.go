package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var verifierFile string

var rootCmd = &cobra.Command{
	Use:   "estca-users",
	Short: "Manage bootstrap credentials for the EST enrollment authority",
	Long: `Operator tooling for the verifier database used by the EST server's
password authentication path. Passwords are never stored; each user line
holds a salted PBKDF2 verifier.`,
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&verifierFile, "verifier-file", "f", "users.txt", "path to the verifier database file")
}
