package library

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"sync"
)

// Confirmer asks the user a yes/no question before a state-changing call.
type Confirmer interface {
	Confirm(prompt string) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(prompt string) (bool, error)

func (f ConfirmFunc) Confirm(prompt string) (bool, error) { return f(prompt) }

// AlwaysConfirm answers yes to every prompt (non-interactive use and tests).
var AlwaysConfirm = ConfirmFunc(func(string) (bool, error) { return true, nil })

// Circulation runs borrow and return. Each action issues at most one request;
// there is no retry. After a success the reload hook refetches the lists the
// server changed instead of patching local copies.
type Circulation struct {
	gw       *Gateway
	sessions *SessionStore
	confirm  Confirmer
	reload   func(context.Context) error
	log      *Logger

	mu   sync.Mutex
	busy map[string]bool
}

// NewCirculation wires the workflow. reload may be nil.
func NewCirculation(gw *Gateway, sessions *SessionStore, confirm Confirmer, reload func(context.Context) error, log *Logger) *Circulation {
	if confirm == nil {
		confirm = AlwaysConfirm
	}
	if log == nil {
		log = NopLogger()
	}
	return &Circulation{
		gw:       gw,
		sessions: sessions,
		confirm:  confirm,
		reload:   reload,
		log:      log,
		busy:     make(map[string]bool),
	}
}

// acquire marks key as in flight; the returned func releases it.
func (c *Circulation) acquire(key string) (func(), error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy[key] {
		return nil, ErrBusy
	}
	c.busy[key] = true
	return func() {
		c.mu.Lock()
		delete(c.busy, key)
		c.mu.Unlock()
	}, nil
}

// Busy reports whether an action on the given user and book is waiting for the backend.
func (c *Circulation) Busy(action string, userID, bookID int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy[actionKey(action, userID, bookID)]
}

func actionKey(action string, userID, bookID int64) string {
	return fmt.Sprintf("%s:%d:%d", action, userID, bookID)
}

func loanQuery(userID, bookID int64) url.Values {
	q := url.Values{}
	q.Set("userId", strconv.FormatInt(userID, 10))
	q.Set("bookId", strconv.FormatInt(bookID, 10))
	return q
}

// Borrow lends book to userID. Nothing is sent when the book has no free
// copy, when a member borrows for someone else, or when the user declines.
func (c *Circulation) Borrow(ctx context.Context, userID int64, book Book) (*Transaction, error) {
	sess, err := c.sessions.Current()
	if err != nil {
		return nil, err
	}
	if userID == 0 {
		return nil, validationf("please select a user")
	}
	if !book.Available() {
		return nil, validationf("%q has no copies available", book.Title)
	}
	if err := RequireLibrarianOrSelf(sess, userID, "borrow books"); err != nil {
		return nil, err
	}

	release, err := c.acquire(actionKey("borrow", userID, book.ID))
	if err != nil {
		return nil, err
	}
	defer release()

	ok, err := c.confirm.Confirm(fmt.Sprintf("Borrow %q?", book.Title))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrCancelled
	}

	var tx Transaction
	if err := c.gw.Post(ctx, "/transactions/borrow", loanQuery(userID, book.ID), nil, &tx); err != nil {
		return nil, err
	}
	c.log.Infof("borrowed book %d for user %d", book.ID, userID)
	c.afterChange(ctx)
	return &tx, nil
}

// Return closes the open loan of bookID held by userID. Members may only
// return their own loans; that check happens before the prompt.
func (c *Circulation) Return(ctx context.Context, userID, bookID int64) (*Transaction, error) {
	sess, err := c.sessions.Current()
	if err != nil {
		return nil, err
	}
	if err := RequireLibrarianOrSelf(sess, userID, "return books"); err != nil {
		return nil, err
	}

	release, err := c.acquire(actionKey("return", userID, bookID))
	if err != nil {
		return nil, err
	}
	defer release()

	ok, err := c.confirm.Confirm("Return this book?")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrCancelled
	}

	var tx Transaction
	if err := c.gw.Post(ctx, "/transactions/return", loanQuery(userID, bookID), nil, &tx); err != nil {
		return nil, err
	}
	c.log.Infof("returned book %d for user %d", bookID, userID)
	c.afterChange(ctx)
	return &tx, nil
}

// afterChange reloads dependent lists. The action itself already succeeded,
// so a failed reload is not returned; the reload hook keeps the old lists and
// records which ones are stale.
func (c *Circulation) afterChange(ctx context.Context) {
	if c.reload == nil {
		return
	}
	if err := c.reload(ctx); err != nil {
		c.log.Warnf("reload after change: %v", err)
	}
}
