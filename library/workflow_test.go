package library

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
)

func TestBorrowUnavailableSendsNothing(t *testing.T) {
	fb := newFakeBackend(t)
	prompt := &scriptedPrompter{}
	lm := newTestManager(t, fb, prompt)
	loginAs(t, lm, fb, librarianProfile)

	_, err := lm.Borrow(context.Background(), 2, Book{ID: 10, Title: "The Hobbit", TotalCopies: 1, AvailableCopies: 0})
	if !IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if n := fb.requestCount(); n != 0 {
		t.Fatalf("borrow of unavailable book issued %d requests", n)
	}
	if len(prompt.prompts) != 0 {
		t.Fatalf("user was asked to confirm: %v", prompt.prompts)
	}
}

func TestReturnOthersLoanAsMemberIsForbidden(t *testing.T) {
	fb := newFakeBackend(t)
	lm := newTestManager(t, fb, nil)
	loginAs(t, lm, fb, memberProfile)

	_, err := lm.Return(context.Background(), 3, 10)
	if !IsAuthorization(err) {
		t.Fatalf("expected AuthorizationError, got %v", err)
	}
	if n := fb.requestCount(); n != 0 {
		t.Fatalf("forbidden return issued %d requests", n)
	}
}

func TestBorrowForOtherAsMemberIsForbidden(t *testing.T) {
	fb := newFakeBackend(t)
	lm := newTestManager(t, fb, nil)
	loginAs(t, lm, fb, memberProfile)

	_, err := lm.Borrow(context.Background(), 3, Book{ID: 10, AvailableCopies: 1})
	if !IsAuthorization(err) {
		t.Fatalf("expected AuthorizationError, got %v", err)
	}
	if fb.requestCount() != 0 {
		t.Fatalf("forbidden borrow reached the backend")
	}
}

func TestBorrowWithoutSession(t *testing.T) {
	fb := newFakeBackend(t)
	lm := newTestManager(t, fb, nil)
	if _, err := lm.Borrow(context.Background(), 2, Book{ID: 10, AvailableCopies: 1}); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestBorrowDeclinedSendsNothing(t *testing.T) {
	fb := newFakeBackend(t)
	lm := newTestManager(t, fb, &scriptedPrompter{answers: []bool{false}})
	loginAs(t, lm, fb, memberProfile)

	_, err := lm.Borrow(context.Background(), memberProfile.ID, Book{ID: 10, Title: "Dune", AvailableCopies: 1})
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
	if fb.requestCount() != 0 {
		t.Fatalf("declined borrow reached the backend")
	}
}

func TestBorrowAndReturnReloadLists(t *testing.T) {
	fb := newFakeBackend(t)
	fb.books = []Book{{ID: 10, Title: "The Hobbit", TotalCopies: 2, AvailableCopies: 2}}
	lm := newTestManager(t, fb, nil)
	loginAs(t, lm, fb, memberProfile)
	ctx := context.Background()

	tx, err := lm.Borrow(ctx, memberProfile.ID, fb.books[0])
	if err != nil {
		t.Fatalf("borrow: %v", err)
	}
	if tx.DueDate.IsZero() {
		t.Fatalf("borrow returned no due date")
	}
	if fb.countRoute(http.MethodPost, "/transactions/borrow") != 1 {
		t.Fatalf("want exactly one borrow request, got %+v", fb.recorded())
	}
	books := lm.Books.All()
	if len(books) != 1 || books[0].AvailableCopies != 1 {
		t.Fatalf("books not reloaded from the server: %+v", books)
	}
	if lm.Transactions.TotalCount() != 1 {
		t.Fatalf("transactions not reloaded")
	}
	if fb.countRoute(http.MethodGet, "/transactions/user/2") != 1 {
		t.Fatalf("member reload should use the per-user endpoint: %+v", fb.recorded())
	}

	if _, err := lm.Return(ctx, memberProfile.ID, 10); err != nil {
		t.Fatalf("return: %v", err)
	}
	if lm.Books.All()[0].AvailableCopies != 2 {
		t.Fatalf("copies not restored after return")
	}
	if loan, ok := lm.FindOpenLoan(10); ok {
		t.Fatalf("loan still open: %+v", loan)
	}
}

func TestBorrowSurfacesServerMessage(t *testing.T) {
	fb := newFakeBackend(t)
	fb.books = []Book{{ID: 10, Title: "Dune", TotalCopies: 1, AvailableCopies: 1}}
	fb.failWith("POST /transactions/borrow", http.StatusConflict)
	lm := newTestManager(t, fb, nil)
	loginAs(t, lm, fb, librarianProfile)

	_, err := lm.Borrow(context.Background(), 2, fb.books[0])
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Message != "forced failure" {
		t.Fatalf("expected server message, got %v", err)
	}
	if fb.countRoute(http.MethodPost, "/transactions/borrow") != 1 {
		t.Fatalf("failed borrow was retried")
	}
	if fb.countRoute(http.MethodGet, "/books") != 0 {
		t.Fatalf("failed borrow triggered a reload")
	}
}

// blockingPrompter holds the first confirmation open until released.
type blockingPrompter struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (p *blockingPrompter) Confirm(string) (bool, error) {
	p.once.Do(func() {
		close(p.entered)
		<-p.release
	})
	return true, nil
}

func (p *blockingPrompter) Ask(string) (string, error) { return "", nil }

func TestSecondIdenticalActionIsBusy(t *testing.T) {
	fb := newFakeBackend(t)
	fb.books = []Book{{ID: 10, Title: "Dune", TotalCopies: 3, AvailableCopies: 3}}
	prompt := &blockingPrompter{entered: make(chan struct{}), release: make(chan struct{})}
	lm := newTestManager(t, fb, prompt)
	loginAs(t, lm, fb, librarianProfile)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := lm.Borrow(ctx, 2, fb.books[0])
		done <- err
	}()
	<-prompt.entered

	if !lm.Circulation().Busy("borrow", 2, 10) {
		t.Fatalf("first borrow not marked busy")
	}
	if _, err := lm.Borrow(ctx, 2, fb.books[0]); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	close(prompt.release)
	if err := <-done; err != nil {
		t.Fatalf("first borrow: %v", err)
	}
	if fb.countRoute(http.MethodPost, "/transactions/borrow") != 1 {
		t.Fatalf("duplicate borrow reached the backend")
	}
	if lm.Circulation().Busy("borrow", 2, 10) {
		t.Fatalf("busy flag not released")
	}
}

func TestBorrowKeepsListsWhenReloadFails(t *testing.T) {
	fb := newFakeBackend(t)
	fb.books = []Book{
		{ID: 10, Title: "The Hobbit", TotalCopies: 2, AvailableCopies: 2},
		{ID: 11, Title: "Dune", TotalCopies: 1, AvailableCopies: 1},
	}
	lm := newTestManager(t, fb, nil)
	loginAs(t, lm, fb, librarianProfile)
	ctx := context.Background()
	if err := lm.LoadBooks(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}

	fb.failWith("GET /books", http.StatusInternalServerError)
	if _, err := lm.Borrow(ctx, 2, Book{ID: 10, Title: "The Hobbit", TotalCopies: 2, AvailableCopies: 2}); err != nil {
		t.Fatalf("borrow should succeed despite the failed reload: %v", err)
	}
	if lm.Books.TotalCount() != 2 || lm.Books.All()[0].AvailableCopies != 2 {
		t.Fatalf("books list replaced after a failed reload: %+v", lm.Books.All())
	}
	if lm.Transactions.TotalCount() != 1 {
		t.Fatalf("transactions not reloaded")
	}
	if stale := lm.TakeStale(); len(stale) != 1 || stale[0] != "books" {
		t.Fatalf("stale %v", stale)
	}
	if stale := lm.TakeStale(); len(stale) != 0 {
		t.Fatalf("stale lists reported twice: %v", stale)
	}
}
