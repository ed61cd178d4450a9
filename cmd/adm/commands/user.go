package commands

import (
	"database/sql"
	"fmt"
	"strings"
	"syscall"

	"golang.org/x/term"

	"studypath/internal/observability"
	"studypath/internal/services"
	contextutils "studypath/internal/utils"

	"github.com/spf13/cobra"
)

// UserCommands returns the user management commands
func UserCommands(userService *services.UserService, logger *observability.Logger, db *sql.DB) *cobra.Command {
	userCmd := &cobra.Command{
		Use:   "user",
		Short: "User management commands",
		Long: `User management commands for the studypath backend.

Available commands:
  list   - List all users
  create - Create a new user`,
	}

	userCmd.AddCommand(listUsersCmd(logger, db))
	userCmd.AddCommand(createUserCmd(userService, logger))
	return userCmd
}

func listUsersCmd(logger *observability.Logger, db *sql.DB) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all users",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			rows, err := db.QueryContext(ctx,
				`SELECT id, username, current_streak, longest_streak, created_at FROM users ORDER BY id`)
			if err != nil {
				return contextutils.WrapError(err, "failed to query users")
			}
			defer func() { _ = rows.Close() }()

			fmt.Printf("%-5s %-24s %-8s %-8s %-20s\n", "ID", "Username", "Streak", "Longest", "Created")
			fmt.Println(strings.Repeat("-", 70))

			count := 0
			for rows.Next() {
				var (
					id, current, longest int
					username, createdAt  string
				)
				if err := rows.Scan(&id, &username, &current, &longest, &createdAt); err != nil {
					return contextutils.WrapError(err, "failed to scan user")
				}
				fmt.Printf("%-5d %-24s %-8d %-8d %-20s\n", id, username, current, longest, createdAt)
				count++
			}
			if count == 0 {
				fmt.Println("No users found")
			}
			return rows.Err()
		},
	}
}

func createUserCmd(userService *services.UserService, logger *observability.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "create [username]",
		Short: "Create a new user",
		Long:  "Create a new user. The password is read from the terminal without echo.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			username := args[0]

			fmt.Print("Password: ")
			password, err := term.ReadPassword(int(syscall.Stdin))
			fmt.Println()
			if err != nil {
				return contextutils.WrapError(err, "failed to read password")
			}

			fmt.Print("Confirm password: ")
			confirm, err := term.ReadPassword(int(syscall.Stdin))
			fmt.Println()
			if err != nil {
				return contextutils.WrapError(err, "failed to read password confirmation")
			}
			if string(password) != string(confirm) {
				return contextutils.ErrorWithContextf("passwords do not match")
			}

			user, err := userService.CreateUser(ctx, username, string(password))
			if err != nil {
				return contextutils.WrapError(err, "failed to create user")
			}

			logger.Info(ctx, "User created", map[string]interface{}{"user_id": user.ID})
			fmt.Printf("Created user %s (id %d)\n", user.Username, user.ID)
			return nil
		},
	}
}
