package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"waterbill/internal/auth"
	"waterbill/internal/storage"
)

// useraddCmd bootstraps users from the shell, which is how the first admin
// gets created before anyone can call the register endpoint.
var useraddCmd = &cobra.Command{
	Use:   "useradd <username> <password>",
	Short: "Create a user directly in the database",
	Args:  cobra.ExactArgs(2),
	RunE:  runUseradd,
}

var useraddRole string

func init() {
	useraddCmd.Flags().StringVar(&useraddRole, "role", auth.RoleAdmin, "role: admin, clerk, or viewer")
}

func runUseradd(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	switch useraddRole {
	case auth.RoleAdmin, auth.RoleClerk, auth.RoleViewer:
	default:
		return fmt.Errorf("unknown role %q", useraddRole)
	}

	ctx := context.Background()
	st, err := storage.Open(ctx, storage.Config{
		Driver: cfg.Database.Driver,
		DSN:    cfg.Database.DSN,
		Logger: log,
	})
	if err != nil {
		return err
	}
	defer st.Close()

	authSvc, err := auth.NewService(st)
	if err != nil {
		return err
	}

	u, err := authSvc.Register(ctx, args[0], args[1], useraddRole)
	if err != nil {
		return err
	}
	fmt.Printf("created user %s (%s)\n", u.Username, u.Role)
	return nil
}
