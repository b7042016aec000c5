package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/go-while/go-pugblog/internal/database"
	"github.com/go-while/go-pugblog/internal/web"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	userName       string
	passwordStdin  bool
	skipValidation bool
	grantStaff     bool
	grantSuper     bool
)

var createSuperuserCmd = &cobra.Command{
	Use:   "createsuperuser",
	Short: "Create an administrator account",
	RunE: func(cmd *cobra.Command, args []string) error {
		if userName == "" {
			return errors.New("--username is required")
		}
		password, err := readNewPassword(cmd.InOrStdin())
		if err != nil {
			return err
		}

		name, problems := web.CheckNewUser(userName, password)
		if len(problems) > 0 && !skipValidation {
			return fmt.Errorf("refusing to create %q:\n  %s\n(use --skip-validation to override)", name, strings.Join(problems, "\n  "))
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Shutdown()

		user, err := db.CreateUser(name, password, true)
		if err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}
		fmt.Printf("Superuser %q created with ID %d.\n", user.Username, user.ID)
		return nil
	},
}

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage user accounts",
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all users",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Shutdown()

		users, err := db.GetAllUsers()
		if err != nil {
			return fmt.Errorf("failed to list users: %w", err)
		}
		if len(users) == 0 {
			fmt.Println("No users found.")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tUSERNAME\tSTAFF\tSUPERUSER\tLAST LOGIN\tCREATED")
		for _, u := range users {
			lastLogin := "never"
			if u.LastLogin != nil {
				lastLogin = u.LastLogin.Format("2006-01-02 15:04")
			}
			fmt.Fprintf(w, "%d\t%s\t%t\t%t\t%s\t%s\n", u.ID, u.Username, u.IsStaff, u.IsSuperuser, lastLogin, u.CreatedAt.Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

var usersDeleteCmd = &cobra.Command{
	Use:   "delete <username>",
	Short: "Delete a user together with their posts and sessions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Shutdown()

		if err := db.DeleteUserByUsername(args[0]); err != nil {
			if errors.Is(err, database.ErrUserNotFound) {
				return fmt.Errorf("user %q not found", args[0])
			}
			return fmt.Errorf("failed to delete user: %w", err)
		}
		fmt.Printf("User %q deleted.\n", args[0])
		return nil
	},
}

var usersPasswdCmd = &cobra.Command{
	Use:   "passwd <username>",
	Short: "Set a new password and log the user out everywhere",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Shutdown()

		user, err := db.GetUserByUsername(args[0])
		if err != nil {
			return fmt.Errorf("user %q: %w", args[0], err)
		}
		password, err := readNewPassword(cmd.InOrStdin())
		if err != nil {
			return err
		}
		if _, problems := web.CheckNewUser(user.Username, password); len(problems) > 0 && !skipValidation {
			return fmt.Errorf("password rejected:\n  %s\n(use --skip-validation to override)", strings.Join(problems, "\n  "))
		}

		hash, err := database.HashPassword(password)
		if err != nil {
			return err
		}
		if err := db.UpdateUserPassword(user.ID, hash); err != nil {
			return fmt.Errorf("failed to update password: %w", err)
		}
		if err := db.InvalidateUserSessions(user.ID); err != nil {
			return fmt.Errorf("password changed but sessions were kept: %w", err)
		}
		if err := db.ResetLoginAttempts(user.ID); err != nil {
			return err
		}
		fmt.Printf("Password for %q updated.\n", user.Username)
		return nil
	},
}

var usersSetFlagsCmd = &cobra.Command{
	Use:   "set-flags <username>",
	Short: "Grant or revoke staff and superuser status",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Shutdown()

		user, err := db.GetUserByUsername(args[0])
		if err != nil {
			return fmt.Errorf("user %q: %w", args[0], err)
		}
		staff := grantStaff || grantSuper
		if err := db.SetUserFlags(user.ID, staff, grantSuper); err != nil {
			return fmt.Errorf("failed to update user: %w", err)
		}
		fmt.Printf("User %q: staff=%t superuser=%t\n", user.Username, staff, grantSuper)
		return nil
	},
}

// readNewPassword reads one line from stdin with --password-stdin, otherwise
// prompts twice on the terminal
func readNewPassword(in io.Reader) (string, error) {
	if passwordStdin {
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		password := strings.TrimRight(line, "\r\n")
		if password == "" {
			return "", errors.New("empty password on stdin")
		}
		return password, nil
	}

	if !term.IsTerminal(int(syscall.Stdin)) {
		return "", errors.New("stdin is not a terminal, use --password-stdin")
	}
	fmt.Fprint(os.Stderr, "Password: ")
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	fmt.Fprint(os.Stderr, "Password (again): ")
	confirm, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password confirmation: %w", err)
	}
	if string(password) != string(confirm) {
		return "", errors.New("passwords do not match")
	}
	if len(password) == 0 {
		return "", errors.New("empty password")
	}
	return string(password), nil
}

func init() {
	createSuperuserCmd.Flags().StringVarP(&userName, "username", "u", "", "username of the new superuser")
	for _, c := range []*cobra.Command{createSuperuserCmd, usersPasswdCmd} {
		c.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin")
		c.Flags().BoolVar(&skipValidation, "skip-validation", false, "accept passwords the signup form would reject")
	}
	usersSetFlagsCmd.Flags().BoolVar(&grantStaff, "staff", false, "staff status")
	usersSetFlagsCmd.Flags().BoolVar(&grantSuper, "superuser", false, "superuser status (implies staff)")

	usersCmd.AddCommand(usersListCmd, usersDeleteCmd, usersPasswdCmd, usersSetFlagsCmd)
}
