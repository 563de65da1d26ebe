package cli

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"docqa/internal/credentials"
)

var registerCmd = &cobra.Command{
	Use:   "register [username]",
	Short: "Create an account",
	Args:  cobra.ExactArgs(1),
	RunE:  runRegister,
}

var (
	registerEmail    string
	registerPassword string
)

func init() {
	registerCmd.Flags().StringVarP(&registerEmail, "email", "e", "", "Email address")
	registerCmd.Flags().StringVarP(&registerPassword, "password", "p", "", "Password (or DOCQA_PASSWORD)")
	rootCmd.AddCommand(registerCmd)
}

func runRegister(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	password := passwordFrom(registerPassword)
	if password == "" {
		return errors.New("a password is required")
	}

	store := credentials.NewStore(cfg.Credentials.Path)
	if !store.Register(args[0], registerEmail, password) {
		return errors.New("username already exists")
	}

	cmd.Printf("Registered %s\n", args[0])
	return nil
}

func passwordFrom(flag string) string {
	if flag != "" {
		return flag
	}
	return os.Getenv("DOCQA_PASSWORD")
}
