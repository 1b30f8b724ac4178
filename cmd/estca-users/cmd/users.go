package cmd

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/veridia/estca/pkg/authn"
)

var addCmd = &cobra.Command{
	Use:   "add <username> <password>",
	Short: "Add a user to the verifier database",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openVerifierDB()
		if err != nil {
			return err
		}

		if err := db.AddUser(args[0], args[1]); err != nil {
			return err
		}

		fmt.Printf("user '%s' added\n", args[0])
		return nil
	},
}

var removeCmd = &cobra.Command{
	Use:   "remove <username>",
	Short: "Remove a user from the verifier database",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openVerifierDB()
		if err != nil {
			return err
		}

		if err := db.RemoveUser(args[0]); err != nil {
			return err
		}

		fmt.Printf("user '%s' removed\n", args[0])
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List users in the verifier database",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openVerifierDB()
		if err != nil {
			return err
		}

		for _, user := range db.ListUsers() {
			fmt.Println(user)
		}
		return nil
	},
}

func openVerifierDB() (*authn.VerifierDB, error) {
	silent := logrus.New()
	silent.SetOutput(io.Discard)

	return authn.NewVerifierDB(silent.WithField("subsystem", "Verifier DB"), verifierFile)
}

func init() {
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(listCmd)
}
