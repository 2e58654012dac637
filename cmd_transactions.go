package main

import (
	"context"
	"fmt"
	"time"

	"library-client/library"

	"github.com/spf13/cobra"
)

func newTransactionsCmd(a *app) *cobra.Command {
	var (
		f    library.TransactionFilter
		page int
	)
	cmd := &cobra.Command{
		Use:     "transactions",
		Aliases: []string{"loans"},
		Short:   "List loans",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.mgr.FilterTransactions(f); err != nil {
				return err
			}
			failed, err := a.mgr.LoadTransactionsPage(cmd.Context())
			if err != nil {
				return err
			}
			a.mgr.Transactions.GoToPage(page)
			if desc := library.DescribeFilter("search", f.Search, "status", f.Status, "window", f.Window, "user", userLabel(f.UserID)); desc != "" {
				fmt.Fprintf(a.out, "Filter: %s\n", desc)
			}
			a.last = listTransactions
			if err := a.showList(); err != nil {
				return err
			}
			printLoadWarnings(a.out, failed)
			return nil
		},
	}
	cmd.Flags().StringVarP(&f.Search, "search", "s", "", "match book title or member name")
	cmd.Flags().StringVar(&f.Status, "status", "", "borrowed, returned or overdue")
	cmd.Flags().Int64VarP(&f.UserID, "user", "u", 0, "only this member's loans")
	cmd.Flags().StringVar(&f.Window, "window", "", "today, week or month")
	cmd.Flags().IntVarP(&page, "page", "p", 1, "page number")
	return cmd
}

func userLabel(id int64) string {
	if id == 0 {
		return ""
	}
	return fmt.Sprintf("%d", id)
}

func newReturnCmd(a *app) *cobra.Command {
	var userID int64
	cmd := &cobra.Command{
		Use:   "return <book-id>",
		Short: "Return a borrowed book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.returnBook(cmd.Context(), args[0], userID)
		},
	}
	cmd.Flags().Int64VarP(&userID, "user", "u", 0, "borrower ID (librarians; looked up when omitted)")
	return cmd
}

func (a *app) returnBook(ctx context.Context, arg string, userID int64) error {
	bookID, err := parseID("book", arg)
	if err != nil {
		return err
	}
	sess, err := a.session()
	if err != nil {
		return err
	}
	if !sess.User.IsLibrarian() && userID == 0 {
		userID = sess.User.ID
	}
	if userID == 0 {
		// A librarian without --user: find who holds the book.
		if err := a.mgr.LoadTransactions(ctx); err != nil {
			return err
		}
		loan, ok := a.mgr.FindOpenLoan(bookID)
		if !ok {
			return fmt.Errorf("no open loan for book %d", bookID)
		}
		userID = loan.UserID()
	}
	tx, err := a.mgr.Return(ctx, userID, bookID)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Returned '%s'.\n", bookTitle(*tx))
	a.warnStale()
	return nil
}

func newDashboardCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Show the library at a glance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.session()
			if err != nil {
				return err
			}
			d, err := a.mgr.LoadDashboard(cmd.Context())
			if err != nil {
				return err
			}
			printDashboard(a.out, d, sess.User, time.Now())
			return nil
		},
	}
}
