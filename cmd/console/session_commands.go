package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jrsteele09/go-pos-console/stepup"
	"github.com/jrsteele09/go-pos-console/users"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func loginCommand() *cobra.Command {
	var username, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with username and password and persist the session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if password == "" {
				if password, err = prompt(cmd, "Password: "); err != nil {
					return err
				}
			}
			if err := a.Session.Login(cmd.Context(), username, password); err != nil {
				return err
			}
			st := a.Session.State()
			printIdentity(cmd, st.User)
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "account username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "account password (prompted when empty)")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

func pinLoginCommand() *cobra.Command {
	var pin string
	cmd := &cobra.Command{
		Use:   "pin-login",
		Short: "Sign in with a staff PIN",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if pin == "" {
				if pin, err = prompt(cmd, "PIN: "); err != nil {
					return err
				}
			}
			if err := a.Session.LoginWithPIN(cmd.Context(), pin); err != nil {
				return err
			}
			st := a.Session.State()
			printIdentity(cmd, st.User)
			return nil
		},
	}
	cmd.Flags().StringVar(&pin, "pin", "", "staff PIN (prompted when empty)")
	return cmd
}

func whoamiCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the restored session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			st := a.Session.State()
			if !st.LoggedIn() {
				fmt.Fprintln(cmd.OutOrStdout(), "not signed in")
				return nil
			}
			printIdentity(cmd, st.User)
			return nil
		},
	}
}

func logoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session and forget the persisted token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if a.Session.Logout() {
				fmt.Fprintln(cmd.OutOrStdout(), "signed out")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "not signed in")
			}
			return nil
		},
	}
}

func voidCommand() *cobra.Command {
	var pin, reason string
	cmd := &cobra.Command{
		Use:   "void SALE_ID",
		Short: "Void a completed sale after confirming your PIN",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			st := a.Session.State()
			if !st.LoggedIn() {
				return fmt.Errorf("not signed in")
			}
			if pin == "" {
				if pin, err = prompt(cmd, "PIN: "); err != nil {
					return err
				}
			}
			sale, err := a.Voider.Void(cmd.Context(), args[0], stepup.NewChallenge(st.User.ID, pin), reason)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sale %s %s\n", sale.ID, sale.Status)
			return nil
		},
	}
	cmd.Flags().StringVar(&pin, "pin", "", "your PIN (prompted when empty)")
	cmd.Flags().StringVar(&reason, "reason", "", "reason recorded on the return")
	return cmd
}

func printIdentity(cmd *cobra.Command, u *users.Identity) {
	suffix := ""
	if u.IsOffline {
		suffix = " (offline profile)"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s [%s]%s\n", u.Username, u.Role, suffix)
}

// prompt reads a secret. On a terminal the input is not echoed; piped input
// is read a line at a time.
func prompt(cmd *cobra.Command, label string) (string, error) {
	fmt.Fprint(cmd.ErrOrStderr(), label)
	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		secret, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(secret)), nil
	}
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
