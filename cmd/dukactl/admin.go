package main

import (
	"errors"
	"fmt"

	"github.com/dukani-next/internal/authz"
	"github.com/dukani-next/internal/models"
	"github.com/dukani-next/internal/repository"
	"github.com/dukani-next/internal/service"

	"github.com/spf13/cobra"
)

func adminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage back-office accounts",
	}
	cmd.AddCommand(adminCreateCmd())
	return cmd
}

func adminCreateCmd() *cobra.Command {
	var (
		password string
		roles    []string
		super    bool
	)
	cmd := &cobra.Command{
		Use:   "create [username]",
		Short: "Create an admin and assign roles",
		Long: `Create a back-office admin.

Built-in roles: viewer, operations, finance. Super admins skip role checks.

Examples:
  dukactl admin create wanjiru --password 'S3cure!pass' --role operations
  dukactl admin create owner --password 'S3cure!pass' --super`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				return errors.New("--password is required")
			}
			if !super && len(roles) == 0 {
				return errors.New("give at least one --role or --super")
			}
			cfg, err := openDatabase()
			if err != nil {
				return err
			}
			if err := service.ValidatePassword(cfg.Security.AdminPassword, password); err != nil {
				return err
			}
			if err := models.AutoMigrate(); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}

			adminRepo := repository.NewAdminRepository(models.DB)
			existing, err := adminRepo.GetByUsername(args[0])
			if err != nil {
				return err
			}
			if existing != nil {
				return fmt.Errorf("admin %q already exists", args[0])
			}
			hash, err := service.HashPassword(password)
			if err != nil {
				return err
			}
			admin := &models.Admin{Username: args[0], PasswordHash: hash, IsSuper: super}
			if err := adminRepo.Create(admin); err != nil {
				return fmt.Errorf("create admin: %w", err)
			}

			if len(roles) > 0 {
				authzService, err := authz.NewService(models.DB)
				if err != nil {
					return err
				}
				if err := authzService.BootstrapBuiltinRoles(); err != nil {
					return err
				}
				if err := authzService.SetAdminRoles(admin.ID, roles); err != nil {
					return fmt.Errorf("assign roles: %w", err)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created admin %s (id %d)\n", admin.Username, admin.ID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&password, "password", "p", "", "initial password, at least 8 characters")
	cmd.Flags().StringSliceVarP(&roles, "role", "r", nil, "role to assign, repeatable")
	cmd.Flags().BoolVar(&super, "super", false, "create a super admin")
	return cmd
}
