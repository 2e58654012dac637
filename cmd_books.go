package main

import (
	"context"
	"fmt"
	"strings"

	"library-client/library"

	"github.com/spf13/cobra"
)

func newBooksCmd(a *app) *cobra.Command {
	var (
		f          library.BookFilter
		page       int
		categories bool
	)
	cmd := &cobra.Command{
		Use:   "books",
		Short: "List the catalogue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f.Status = strings.ToLower(f.Status)
			if err := a.mgr.FilterBooks(f); err != nil {
				return err
			}
			if err := a.mgr.LoadBooks(cmd.Context()); err != nil {
				return err
			}
			a.mgr.Books.GoToPage(page)
			if categories {
				fmt.Fprintf(a.out, "Categories: %s\n\n", strings.Join(library.Categories(a.mgr.Books.All()), ", "))
			}
			if desc := library.DescribeFilter("search", f.Search, "category", f.Category, "status", f.Status); desc != "" {
				fmt.Fprintf(a.out, "Filter: %s\n", desc)
			}
			a.last = listBooks
			return a.showList()
		},
	}
	cmd.Flags().StringVarP(&f.Search, "search", "s", "", "match title, author or ISBN")
	cmd.Flags().StringVar(&f.Category, "category", "", "exact category")
	cmd.Flags().StringVar(&f.Status, "status", "", "available or borrowed")
	cmd.Flags().IntVarP(&page, "page", "p", 1, "page number")
	cmd.Flags().BoolVar(&categories, "categories", false, "also list the categories in the catalogue")
	return cmd
}

func newBookCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "book",
		Short: "Show or manage a single book",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "show <id>",
			Short: "Show a book",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				b, err := a.fetchBook(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				printBook(a.out, *b)
				return nil
			},
		},
		&cobra.Command{
			Use:   "add",
			Short: "Add a book (librarians)",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.addBook(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "edit <id>",
			Short: "Edit a book (librarians)",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.editBook(cmd.Context(), args[0])
			},
		},
		&cobra.Command{
			Use:   "delete <id>",
			Short: "Delete a book (librarians)",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				b, err := a.fetchBook(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if err := a.mgr.DeleteBook(cmd.Context(), *b); err != nil {
					return err
				}
				fmt.Fprintf(a.out, "Deleted '%s'.\n", b.Title)
				a.warnStale()
				return nil
			},
		},
	)
	return cmd
}

func (a *app) fetchBook(ctx context.Context, arg string) (*library.Book, error) {
	id, err := parseID("book", arg)
	if err != nil {
		return nil, err
	}
	return a.mgr.GetBook(ctx, id)
}

// bookForm asks for every book field, offering current's values as defaults.
func (a *app) bookForm(current library.Book) (library.BookInput, error) {
	var (
		in  library.BookInput
		err error
	)
	if in.Title, err = a.con.askDefault("Title", current.Title); err != nil {
		return in, err
	}
	if in.Author, err = a.con.askDefault("Author", current.Author); err != nil {
		return in, err
	}
	if in.Category, err = a.con.askDefault("Category", current.Category); err != nil {
		return in, err
	}
	if in.ISBN, err = a.con.askDefault("ISBN (optional)", current.ISBN); err != nil {
		return in, err
	}
	if in.PublicationYear, err = a.con.askInt("Publication year (optional)", current.PublicationYear); err != nil {
		return in, err
	}
	in.TotalCopies, err = a.con.askInt("Total copies", current.TotalCopies)
	return in, err
}

func (a *app) addBook(ctx context.Context) error {
	sess, err := a.session()
	if err != nil {
		return err
	}
	// Fail before the form for members.
	if err := library.RequireLibrarian(sess, "add books"); err != nil {
		return err
	}
	in, err := a.bookForm(library.Book{})
	if err != nil {
		return err
	}
	b, err := a.mgr.AddBook(ctx, in)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Added book ID %d: '%s' (%d copies).\n", b.ID, b.Title, b.TotalCopies)
	a.warnStale()
	return nil
}

func (a *app) editBook(ctx context.Context, arg string) error {
	sess, err := a.session()
	if err != nil {
		return err
	}
	if err := library.RequireLibrarian(sess, "edit books"); err != nil {
		return err
	}
	current, err := a.fetchBook(ctx, arg)
	if err != nil {
		return err
	}
	if onLoan := current.TotalCopies - current.AvailableCopies; onLoan > 0 {
		fmt.Fprintf(a.out, "%d of %d copies are on loan.\n", onLoan, current.TotalCopies)
	}
	in, err := a.bookForm(*current)
	if err != nil {
		return err
	}
	b, err := a.mgr.UpdateBook(ctx, *current, in)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Updated book ID %d: %d of %d copies available.\n", b.ID, b.AvailableCopies, b.TotalCopies)
	a.warnStale()
	return nil
}

func newBorrowCmd(a *app) *cobra.Command {
	var userID int64
	cmd := &cobra.Command{
		Use:   "borrow <book-id>",
		Short: "Borrow a book (librarians may lend with --user)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.borrow(cmd.Context(), args[0], userID)
		},
	}
	cmd.Flags().Int64VarP(&userID, "user", "u", 0, "borrower ID (librarians)")
	return cmd
}

func (a *app) borrow(ctx context.Context, arg string, userID int64) error {
	sess, err := a.session()
	if err != nil {
		return err
	}
	if !sess.User.IsLibrarian() && userID == 0 {
		userID = sess.User.ID
	}
	book, err := a.fetchBook(ctx, arg)
	if err != nil {
		return err
	}
	tx, err := a.mgr.Borrow(ctx, userID, *book)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Borrowed '%s'. Due %s.\n", book.Title, tx.DueDate.DateString("in 14 days"))
	a.warnStale()
	return nil
}
