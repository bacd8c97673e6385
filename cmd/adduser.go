package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/sells-group/brandy/internal/store"
)

var (
	addUserName     string
	addUserPassword string
	addUserAdmin    bool
)

var addUserCmd = &cobra.Command{
	Use:   "add-user",
	Short: "Create an account allowed to submit datasets",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("add-user"); err != nil {
			return err
		}
		if addUserName == "" || addUserPassword == "" {
			return eris.New("add-user: --username and --password are required")
		}

		st, err := store.Open(cfg.Database.Path)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Migrate(cmd.Context()); err != nil {
			return err
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(addUserPassword), bcrypt.DefaultCost)
		if err != nil {
			return eris.Wrap(err, "add-user: hash password")
		}
		user, err := st.CreateUser(cmd.Context(), addUserName, string(hash), addUserAdmin)
		if err != nil {
			return err
		}

		zap.L().Info("user created",
			zap.String("username", user.Username),
			zap.Bool("admin", user.IsAdmin))
		return nil
	},
}

func init() {
	addUserCmd.Flags().StringVar(&addUserName, "username", "", "account name")
	addUserCmd.Flags().StringVar(&addUserPassword, "password", "", "plaintext password, hashed before storage")
	addUserCmd.Flags().BoolVar(&addUserAdmin, "admin", false, "grant admin access")
	rootCmd.AddCommand(addUserCmd)
}
