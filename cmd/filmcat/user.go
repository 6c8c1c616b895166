package main

import (
	"fmt"
	"strconv"

	"filmcat/internal/catalog"

	"github.com/spf13/cobra"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage accounts",
}

var userRegisterCmd = &cobra.Command{
	Use:   "register",
	Short: "Register a new account",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("user register")
		if err != nil {
			return err
		}
		defer a.Close()

		reg := catalog.Registration{}
		reg.FirstName, _ = cmd.Flags().GetString("first-name")
		reg.LastName, _ = cmd.Flags().GetString("last-name")
		reg.Email, _ = cmd.Flags().GetString("email")
		reg.Username, _ = cmd.Flags().GetString("username")
		reg.AdminLevel, _ = cmd.Flags().GetInt("admin-level")

		// Registering an administrator needs an administrator session,
		// which the bootstrap account does not have yet.
		if actingAs != "" {
			if err := login(a); err != nil {
				return err
			}
		}

		reg.Password, err = readNewSecret("Password")
		if err != nil {
			return err
		}

		u, err := a.Register(reg)
		if err != nil {
			return err
		}
		fmt.Printf("Registered user %d (%s)\n", u.ID, u.Username)
		if u.Admin != nil {
			fmt.Printf("Admin level: %d\n", u.Admin.Level)
		}
		return nil
	},
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List accounts",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("user list")
		if err != nil {
			return err
		}
		defer a.Close()

		users := a.Users()
		if len(users) == 0 {
			fmt.Println("No users registered")
			return nil
		}
		for _, u := range users {
			role := "user"
			if u.Admin != nil {
				role = fmt.Sprintf("admin(%d)", u.Admin.Level)
			}
			fmt.Printf("%d\t%s\t%s\t%s\t%s\t%s\n",
				u.ID, u.Username, u.FullName(), u.Email, role,
				u.CreatedAt.Local().Format("2006-01-02 15:04"))
		}
		return nil
	},
}

var userPromoteCmd = &cobra.Command{
	Use:   "promote USER_ID",
	Short: "Grant administrator rights",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		level, _ := cmd.Flags().GetInt("level")

		a, err := newSession("user promote")
		if err != nil {
			return err
		}
		defer a.Close()

		u, err := a.Promote(id, level)
		if err != nil {
			return err
		}
		fmt.Printf("User %d (%s) is now admin level %d\n", u.ID, u.Username, u.Admin.Level)
		return nil
	},
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

func init() {
	userCmd.AddCommand(userRegisterCmd)
	userRegisterCmd.Flags().String("first-name", "", "First name")
	userRegisterCmd.Flags().String("last-name", "", "Last name")
	userRegisterCmd.Flags().String("email", "", "Email address (used to log in)")
	userRegisterCmd.Flags().String("username", "", "Unique username")
	userRegisterCmd.Flags().Int("admin-level", 0, "Register as administrator at this level (1-3)")
	userRegisterCmd.MarkFlagRequired("email")
	userRegisterCmd.MarkFlagRequired("username")

	userCmd.AddCommand(userListCmd)

	userCmd.AddCommand(userPromoteCmd)
	userPromoteCmd.Flags().IntP("level", "l", catalog.AdminLevelModerator, "Admin level (1-3)")
}
