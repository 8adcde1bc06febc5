package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cmdop/cmdop-bot/pkg/config"
	"github.com/cmdop/cmdop-bot/pkg/permissions"
)

// newPermsCommand manages the permission store offline, without a
// running bot.
func newPermsCommand(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "perms",
		Short: "Manage the permission store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(
		newPermsListCommand(configPath),
		newPermsGrantCommand(configPath),
		newPermsRevokeCommand(configPath),
		newPermsAdminCommand(configPath),
	)
	return cmd
}

func withStore(configPath *string, fn func(store *permissions.Store) error) error {
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	store, err := openBackendStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

func newPermsListCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List admins and grants",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return withStore(configPath, func(store *permissions.Store) error {
				admins := store.Admins()
				fmt.Printf("Admins (%d):\n", len(admins))
				for _, a := range admins {
					fmt.Printf("  %s\n", a)
				}

				grants := store.Grants()
				fmt.Printf("Grants (%d):\n", len(grants))
				for _, g := range grants {
					fmt.Printf("  %s: %s on %s\n", g.Identity, g.Level, g.Machine)
				}
				return nil
			})
		},
	}
}

func newPermsGrantCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "grant <channel:user> <machine|*> <level>",
		Short: "Grant a permission level",
		Args:  cobra.ExactArgs(3),
		RunE: func(_ *cobra.Command, args []string) error {
			level, err := permissions.ParseLevel(args[2])
			if err != nil {
				return err
			}
			return withStore(configPath, func(store *permissions.Store) error {
				if err := store.Grant(args[0], args[1], level); err != nil {
					return err
				}
				fmt.Printf("Granted %s to %s on %s\n", level, args[0], args[1])
				return nil
			})
		},
	}
}

func newPermsRevokeCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <channel:user> <machine|*>",
		Short: "Revoke a grant",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			return withStore(configPath, func(store *permissions.Store) error {
				if err := store.Revoke(args[0], args[1]); err != nil {
					return err
				}
				fmt.Printf("Revoked %s on %s\n", args[0], args[1])
				return nil
			})
		},
	}
}

func newPermsAdminCommand(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage administrators",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "add <channel:user>",
			Short: "Add an administrator",
			Args:  cobra.ExactArgs(1),
			RunE: func(_ *cobra.Command, args []string) error {
				return withStore(configPath, func(store *permissions.Store) error {
					if err := store.AddAdmin(args[0]); err != nil {
						return err
					}
					fmt.Printf("%s is now an administrator\n", args[0])
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "remove <channel:user>",
			Short: "Remove an administrator",
			Args:  cobra.ExactArgs(1),
			RunE: func(_ *cobra.Command, args []string) error {
				return withStore(configPath, func(store *permissions.Store) error {
					if err := store.RemoveAdmin(args[0]); err != nil {
						return err
					}
					fmt.Printf("%s is no longer an administrator\n", args[0])
					return nil
				})
			},
		},
	)
	return cmd
}
