package main

import (
	"context"
	"fmt"
	"time"

	"library-client/library"

	"github.com/spf13/cobra"
)

func newLoginCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "login [username]",
		Short: "Sign in and store the session",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			username := ""
			if len(args) == 1 {
				username = args[0]
			}
			return a.login(cmd.Context(), username)
		},
	}
}

func (a *app) login(ctx context.Context, username string) error {
	var err error
	if username == "" {
		if username, err = a.con.Ask("Username"); err != nil {
			return err
		}
	}
	password, err := a.con.readPassword("Password: ")
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	sess, err := a.mgr.Login(ctx, username, password)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Welcome, %s! Logged in as %s (%s).\n", sess.User.FullName, sess.User.Username, sess.User.Role)
	return nil
}

func newRegisterCmd(a *app) *cobra.Command {
	var req library.RegisterRequest
	var role string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account, then log in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if req.Role, err = parseOptionalRole(role); err != nil {
				return err
			}
			return a.register(cmd.Context(), req)
		},
	}
	cmd.Flags().StringVar(&req.Username, "username", "", "username")
	cmd.Flags().StringVar(&req.FullName, "full-name", "", "full name")
	cmd.Flags().StringVar(&req.Email, "email", "", "email address")
	cmd.Flags().StringVar(&req.PhoneNumber, "phone", "", "phone number (optional)")
	cmd.Flags().StringVar(&role, "role", "", "MEMBER (default) or LIBRARIAN")
	return cmd
}

func parseOptionalRole(s string) (library.Role, error) {
	if s == "" {
		return "", nil
	}
	return library.ParseRole(s)
}

func (a *app) register(ctx context.Context, req library.RegisterRequest) error {
	fields := []struct {
		label string
		dst   *string
	}{
		{"Username", &req.Username},
		{"Full name", &req.FullName},
		{"Email", &req.Email},
	}
	for _, f := range fields {
		if *f.dst != "" {
			continue
		}
		v, err := a.con.Ask(f.label)
		if err != nil {
			return err
		}
		*f.dst = v
	}

	password, err := a.con.readPassword("Password: ")
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	confirm, err := a.con.readPassword("Confirm password: ")
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	if password != confirm {
		return fmt.Errorf("passwords do not match")
	}
	req.Password = password

	if _, err := a.mgr.Register(ctx, req); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Registration successful! Please log in.")

	select {
	case <-time.After(a.cfg.RegisterDelay):
	case <-ctx.Done():
		return ctx.Err()
	}
	return a.login(ctx, req.Username)
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.mgr.Logout(); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Logged out.")
			return nil
		},
	}
}

func newWhoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.session()
			if err != nil {
				return err
			}
			printProfile(a.out, sess, time.Now())
			return nil
		},
	}
}
