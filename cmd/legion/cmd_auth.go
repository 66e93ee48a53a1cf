package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"legion-prm/services/auth"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newAuthCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Log in and out of the Legion API",
	}

	var phone string
	login := &cobra.Command{
		Use:   "login",
		Short: "Log in with phone number and password",
		Long: `Exchange credentials for an access token and store it in the session store.

The password is read without echo when stdin is a terminal, otherwise from the
next line of stdin.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if phone == "" {
				fmt.Fprint(c.out, "Phone: ")
				line, err := c.readLine()
				if err != nil {
					return fmt.Errorf("failed to read phone number: %w", err)
				}
				phone = line
			}

			fmt.Fprint(c.out, "Password: ")
			password, err := c.readPassword()
			if err != nil {
				return fmt.Errorf("failed to read password: %w", err)
			}

			if err := c.svc.Auth.Login(cmd.Context(), auth.Credentials{Username: phone, Password: password}); err != nil {
				return err
			}
			c.printer().ok("Logged in as %s", strings.TrimSpace(phone))
			return nil
		},
	}
	login.Flags().StringVarP(&phone, "phone", "u", "", "Phone number used as username")

	logout := &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.svc.Auth.Logout(cmd.Context()); err != nil {
				return err
			}
			c.printer().ok("Logged out")
			return nil
		},
	}

	whoami := &cobra.Command{
		Use:   "whoami",
		Short: "Show the user of the stored token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := c.svc.Auth.WhoAmI(cmd.Context())
			if err != nil {
				return err
			}
			p := c.printer()
			p.line("User:    %s", id.UserID)
			if !id.ExpiresAt.IsZero() {
				state := "valid"
				if id.Expired {
					state = "expired"
				}
				p.line("Expires: %s (%s)", id.ExpiresAt.Local().Format(time.RFC1123), state)
			}
			return nil
		},
	}

	cmd.AddCommand(login, logout, whoami)
	return cmd
}

func (c *cli) readLine() (string, error) {
	line, err := c.in.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (c *cli) readPassword() (string, error) {
	if f, ok := c.stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(c.out)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	return c.readLine()
}
