package main

import (
	"context"
	"fmt"

	"library-client/library"

	"github.com/spf13/cobra"
)

func newUsersCmd(a *app) *cobra.Command {
	var (
		search string
		role   string
		page   int
	)
	cmd := &cobra.Command{
		Use:   "users",
		Short: "List accounts (librarians)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := parseOptionalRole(role)
			if err != nil {
				return err
			}
			if err := a.mgr.LoadUsers(cmd.Context()); err != nil {
				return err
			}
			a.mgr.FilterUsers(library.UserFilter{Search: search, Role: r})
			a.mgr.Users.GoToPage(page)
			if desc := library.DescribeFilter("search", search, "role", string(r)); desc != "" {
				fmt.Fprintf(a.out, "Filter: %s\n", desc)
			}
			a.last = listUsers
			return a.showList()
		},
	}
	cmd.Flags().StringVarP(&search, "search", "s", "", "match name, username or email")
	cmd.Flags().StringVar(&role, "role", "", "member or librarian")
	cmd.Flags().IntVarP(&page, "page", "p", 1, "page number")
	return cmd
}

func newUserCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage a single account",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "edit <id>",
			Short: "Edit an account (members: only their own)",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.editUser(cmd.Context(), args[0])
			},
		},
		&cobra.Command{
			Use:   "role <id>",
			Short: "Switch an account between MEMBER and LIBRARIAN (librarians)",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				u, err := a.lookupUser(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				role, err := a.mgr.ToggleRole(cmd.Context(), *u)
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "%s is now a %s.\n", u.FullName, role)
				a.warnStale()
				return nil
			},
		},
		&cobra.Command{
			Use:   "delete <id>",
			Short: "Delete an account (librarians)",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				u, err := a.lookupUser(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if err := a.mgr.DeleteUser(cmd.Context(), *u); err != nil {
					return err
				}
				fmt.Fprintf(a.out, "Deleted user %s.\n", u.Username)
				a.warnStale()
				return nil
			},
		},
	)
	return cmd
}

// lookupUser loads the account list and finds arg in it. Librarians only.
func (a *app) lookupUser(ctx context.Context, arg string) (*library.User, error) {
	id, err := parseID("user", arg)
	if err != nil {
		return nil, err
	}
	if err := a.mgr.LoadUsers(ctx); err != nil {
		return nil, err
	}
	u, ok := a.mgr.FindUser(id)
	if !ok {
		return nil, fmt.Errorf("user with ID %d not found", id)
	}
	return u, nil
}

func (a *app) editUser(ctx context.Context, arg string) error {
	id, err := parseID("user", arg)
	if err != nil {
		return err
	}
	sess, err := a.session()
	if err != nil {
		return err
	}
	if err := library.RequireLibrarianOrSelf(sess, id, "edit users"); err != nil {
		return err
	}

	var current library.User
	if sess.User.IsLibrarian() {
		u, err := a.lookupUser(ctx, arg)
		if err != nil {
			return err
		}
		current = *u
	} else {
		current = library.User{
			ID:       sess.User.ID,
			Username: sess.User.Username,
			FullName: sess.User.FullName,
			Email:    sess.User.Email,
			Role:     sess.User.Role,
		}
	}

	in := library.UserInput{Role: current.Role}
	if in.Username, err = a.con.askDefault("Username", current.Username); err != nil {
		return err
	}
	if in.FullName, err = a.con.askDefault("Full name", current.FullName); err != nil {
		return err
	}
	if in.Email, err = a.con.askDefault("Email", current.Email); err != nil {
		return err
	}
	if in.PhoneNumber, err = a.con.askDefault("Phone (optional)", current.PhoneNumber); err != nil {
		return err
	}
	if library.Visible(sess.User.Role, library.PageUsers, library.ElemChangeRole) {
		answer, err := a.con.askDefault("Role", string(current.Role))
		if err != nil {
			return err
		}
		if in.Role, err = library.ParseRole(answer); err != nil {
			return err
		}
	}

	u, err := a.mgr.UpdateUser(ctx, id, in)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Updated %s (%s).\n", u.FullName, u.Username)
	a.warnStale()
	return nil
}
