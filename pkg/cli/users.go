package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/huh"
	"github.com/getmockd/mockidp/pkg/cli/internal/output"
	"github.com/getmockd/mockidp/pkg/directory"
	"github.com/spf13/cobra"
)

// userView is a User without its password hash.
type userView struct {
	ID                string `json:"id"`
	UserPrincipalName string `json:"userPrincipalName"`
	DisplayName       string `json:"displayName"`
	GivenName         string `json:"givenName,omitempty"`
	Surname           string `json:"surname,omitempty"`
	Mail              string `json:"mail,omitempty"`
	JobTitle          string `json:"jobTitle,omitempty"`
	Department        string `json:"department,omitempty"`
}

func newUserView(u directory.User) userView {
	return userView{
		ID:                u.ID,
		UserPrincipalName: u.UserPrincipalName,
		DisplayName:       u.DisplayName,
		GivenName:         u.GivenName,
		Surname:           u.Surname,
		Mail:              u.Mail,
		JobTitle:          u.JobTitle,
		Department:        u.Department,
	}
}

var addUser directory.NewUser

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage directory users",
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List directory users",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		users, err := openUsers(cmd)
		if err != nil {
			return err
		}
		list := users.List()
		views := make([]userView, len(list))
		for i, u := range list {
			views[i] = newUserView(u)
		}
		return printResult(cmd, views, func(w io.Writer) {
			tw := output.Table(w)
			_, _ = fmt.Fprintln(tw, "PRINCIPAL NAME\tDISPLAY NAME\tID")
			for _, v := range views {
				_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", v.UserPrincipalName, v.DisplayName, v.ID)
			}
			_ = tw.Flush()
		})
	},
}

var usersAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a directory user",
	Long: `Add a directory user. The password is stored as a bcrypt hash.

When --upn or --password is missing an interactive form asks for them.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if !cmd.Flags().Changed("upn") || !cmd.Flags().Changed("password") {
			if err := userForm(&addUser).Run(); err != nil {
				return err
			}
		}

		users, err := openUsers(cmd)
		if err != nil {
			return err
		}
		user, err := users.Add(addUser)
		if err != nil {
			return err
		}
		view := newUserView(*user)
		return printResult(cmd, view, func(w io.Writer) {
			_, _ = fmt.Fprintf(w, "Added user %s (%s)\n", view.UserPrincipalName, view.ID)
		})
	},
}

func userForm(u *directory.NewUser) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("User principal name").
				Placeholder("jane@contoso.onmicrosoft.com").
				Value(&u.UserPrincipalName).
				Validate(func(s string) error {
					if s == "" {
						return errors.New("user principal name is required")
					}
					return nil
				}),
			huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(&u.Password).
				Validate(func(s string) error {
					if s == "" {
						return errors.New("password is required")
					}
					return nil
				}),
			huh.NewInput().
				Title("Display name").
				Placeholder("Jane Doe").
				Value(&u.DisplayName),
			huh.NewInput().
				Title("Mail").
				Value(&u.Mail),
		),
	)
}

func init() {
	f := usersAddCmd.Flags()
	f.StringVar(&addUser.UserPrincipalName, "upn", "", "User principal name (sign-in name)")
	f.StringVar(&addUser.Password, "password", "", "Plain text password")
	f.StringVar(&addUser.ID, "id", "", "Object ID (default random UUID)")
	f.StringVar(&addUser.DisplayName, "display-name", "", "Display name")
	f.StringVar(&addUser.GivenName, "given-name", "", "Given name")
	f.StringVar(&addUser.Surname, "surname", "", "Surname")
	f.StringVar(&addUser.Mail, "mail", "", "Mail address")
	f.StringVar(&addUser.JobTitle, "job-title", "", "Job title")
	f.StringVar(&addUser.Department, "department", "", "Department")

	usersCmd.AddCommand(usersListCmd, usersAddCmd)
	rootCmd.AddCommand(usersCmd)
}

func openUsers(cmd *cobra.Command) (*directory.Users, error) {
	cfg, logger, closeLog, err := commandSetup(cmd)
	if err != nil {
		return nil, err
	}
	defer closeLog()
	return directory.OpenUsers(cfg.UsersFile(), logger)
}
