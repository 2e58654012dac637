package library

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// recentLimit is how many loans the dashboard lists.
const recentLimit = 10

// branch is one independent fetch of a joined load.
type branch struct {
	name string
	run  func(ctx context.Context) error
}

// joinFetch runs every branch concurrently and waits for all of them. A
// failing branch is logged and reported by name while the others still
// complete; only ErrUnauthenticated aborts the whole load.
func (lm *LibraryManager) joinFetch(ctx context.Context, branches ...branch) (failed []string, err error) {
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, b := range branches {
		g.Go(func() error {
			err := b.run(gctx)
			switch {
			case err == nil:
				return nil
			case errors.Is(err, ErrUnauthenticated):
				return err
			}
			lm.log.Warnf("load %s: %v", b.name, err)
			mu.Lock()
			failed = append(failed, b.name)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return failed, nil
}

// fetchInto decodes a list endpoint into dst, leaving dst untouched on failure.
func fetchInto[T any](gw *Gateway, path string, dst *[]T) func(context.Context) error {
	return func(ctx context.Context) error {
		var out []T
		if err := gw.Get(ctx, path, &out); err != nil {
			return err
		}
		*dst = out
		return nil
	}
}

// reloadAfterLoan refreshes the lists a borrow or return changes. A list
// whose fetch fails keeps its previous contents and is marked stale.
func (lm *LibraryManager) reloadAfterLoan(ctx context.Context) error {
	sess, err := lm.sessions.Current()
	if err != nil {
		lm.markStale("books", "transactions")
		return err
	}
	var books []Book
	var txs []Transaction
	failed, err := lm.joinFetch(ctx,
		branch{"books", fetchInto(lm.gw, "/books", &books)},
		branch{"transactions", func(ctx context.Context) (err error) {
			txs, err = lm.fetchTransactions(ctx, sess)
			return err
		}},
	)
	if err != nil {
		lm.markStale("books", "transactions")
		return err
	}
	if !slices.Contains(failed, "books") {
		lm.Books.SetCollection(books)
	}
	if !slices.Contains(failed, "transactions") {
		lm.Transactions.SetCollection(txs)
	}
	if len(failed) > 0 {
		lm.markStale(failed...)
		return &APIError{Message: "could not reload " + strings.Join(failed, ", ")}
	}
	return nil
}

// LoadTransactionsPage fetches loans, the users to pick from and the books
// that can be lent, all at once. A member sees only their own loans and is
// the only user offered. Failed branches come back empty and are named in failed.
func (lm *LibraryManager) LoadTransactionsPage(ctx context.Context) (failed []string, err error) {
	sess, err := lm.sessions.Current()
	if err != nil {
		return nil, err
	}
	var (
		txs   []Transaction
		users []User
		books []Book
	)
	branches := []branch{
		{"transactions", func(ctx context.Context) (err error) {
			txs, err = lm.fetchTransactions(ctx, sess)
			return err
		}},
		{"books", fetchInto(lm.gw, "/books", &books)},
	}
	if sess.User.IsLibrarian() {
		branches = append(branches, branch{"users", fetchInto(lm.gw, "/users", &users)})
	} else {
		users = []User{selfUser(sess.User)}
	}

	if failed, err = lm.joinFetch(ctx, branches...); err != nil {
		return nil, err
	}
	lm.Transactions.SetCollection(txs)
	lm.Users.SetCollection(users)
	lm.Books.SetCollection(books)
	return failed, nil
}

// BorrowableBooks lists the loaded books with at least one free copy.
func (lm *LibraryManager) BorrowableBooks() []Book {
	var out []Book
	for _, b := range lm.Books.All() {
		if b.Available() {
			out = append(out, b)
		}
	}
	return out
}

func selfUser(p Profile) User {
	return User{ID: p.ID, Username: p.Username, FullName: p.FullName, Email: p.Email, Role: p.Role}
}

// Dashboard is the landing page summary. Users and Overdue are only filled
// for librarians; ShowStaffCards says whether they apply.
type Dashboard struct {
	TotalBooks     int
	TotalUsers     int
	ActiveLoans    int
	Overdue        int
	Recent         []Transaction
	ShowStaffCards bool
	Failed         []string
}

// LoadDashboard fetches books, transactions and (for librarians) users concurrently.
func (lm *LibraryManager) LoadDashboard(ctx context.Context) (*Dashboard, error) {
	sess, err := lm.sessions.Current()
	if err != nil {
		return nil, err
	}
	var (
		books []Book
		txs   []Transaction
		users []User
	)
	branches := []branch{
		{"books", fetchInto(lm.gw, "/books", &books)},
		{"transactions", func(ctx context.Context) (err error) {
			txs, err = lm.fetchTransactions(ctx, sess)
			return err
		}},
	}
	librarian := sess.User.IsLibrarian()
	if librarian {
		branches = append(branches, branch{"users", fetchInto(lm.gw, "/users", &users)})
	}
	failed, err := lm.joinFetch(ctx, branches...)
	if err != nil {
		return nil, err
	}

	stats := SummarizeTransactions(txs, lm.now())
	d := &Dashboard{
		TotalBooks:     len(books),
		ActiveLoans:    stats.Borrowed,
		Recent:         RecentTransactions(txs, recentLimit),
		ShowStaffCards: librarian,
		Failed:         failed,
	}
	if librarian {
		d.TotalUsers = len(users)
		d.Overdue = stats.Overdue
	}
	return d, nil
}
