package library

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"
)

// Prompter asks the user questions on behalf of destructive operations.
type Prompter interface {
	Confirmer
	Ask(prompt string) (string, error)
}

// Options configures a LibraryManager.
type Options struct {
	BaseURL string
	// DBPath and KeyPath locate the persisted session and its sealing key.
	DBPath  string
	KeyPath string

	HTTPClient *http.Client
	Logger     *Logger
	Prompter   Prompter

	BooksPageSize        int
	UsersPageSize        int
	TransactionsPageSize int
}

// Default page sizes of the three list views.
const (
	DefaultBooksPageSize        = 9
	DefaultUsersPageSize        = 3
	DefaultTransactionsPageSize = 10
)

// LibraryManager is the façade the CLI talks to. It owns the session, the
// gateway and one ListView per list page.
type LibraryManager struct {
	db       *Database
	sessions *SessionStore
	gw       *Gateway
	auth     *Auth
	circ     *Circulation
	prompt   Prompter
	log      *Logger
	now      func() time.Time

	staleMu sync.Mutex
	stale   []string

	Books        *ListView[Book]
	Users        *ListView[User]
	Transactions *ListView[Transaction]
}

// NewLibraryManager opens (or creates) the session database at opts.DBPath.
func NewLibraryManager(opts Options) (*LibraryManager, error) {
	db, err := NewDatabase(opts.DBPath)
	if err != nil {
		return nil, err
	}
	sealer, err := LoadOrCreateSealer(opts.KeyPath)
	if err != nil {
		db.Close()
		return nil, err
	}
	lm := NewLibraryManagerWithStore(db, sealer, opts)
	lm.db = db
	return lm, nil
}

// NewLibraryManagerWithStore builds a manager over an existing store; sealer may be nil.
func NewLibraryManagerWithStore(kv KeyValueStore, sealer *Sealer, opts Options) *LibraryManager {
	log := opts.Logger
	if log == nil {
		log = NopLogger()
	}
	prompt := opts.Prompter
	if prompt == nil {
		prompt = noPrompter{}
	}
	sessions := NewSessionStore(kv, sealer, log)
	gw := NewGateway(opts.BaseURL, opts.HTTPClient, sessions, log)

	lm := &LibraryManager{
		sessions:     sessions,
		gw:           gw,
		auth:         NewAuth(gw, sessions, log),
		prompt:       prompt,
		log:          log,
		now:          time.Now,
		Books:        NewListView[Book](pageSizeOr(opts.BooksPageSize, DefaultBooksPageSize)),
		Users:        NewListView[User](pageSizeOr(opts.UsersPageSize, DefaultUsersPageSize)),
		Transactions: NewListView[Transaction](pageSizeOr(opts.TransactionsPageSize, DefaultTransactionsPageSize)),
	}
	lm.circ = NewCirculation(gw, sessions, prompt, lm.reloadAfterLoan, log)
	return lm
}

func pageSizeOr(n, def int) int {
	if n < 1 {
		return def
	}
	return n
}

// Close closes the underlying database, if any.
func (lm *LibraryManager) Close() error {
	if lm.db == nil {
		return nil
	}
	return lm.db.Close()
}

// noPrompter confirms everything and answers questions with "".
type noPrompter struct{}

func (noPrompter) Confirm(string) (bool, error) { return true, nil }
func (noPrompter) Ask(string) (string, error)   { return "", nil }

func (lm *LibraryManager) confirm(prompt string) error {
	ok, err := lm.prompt.Confirm(prompt)
	if err != nil {
		return err
	}
	if !ok {
		return ErrCancelled
	}
	return nil
}

// ------------------ Session helpers ------------------

func (lm *LibraryManager) Auth() *Auth               { return lm.auth }
func (lm *LibraryManager) Gateway() *Gateway         { return lm.gw }
func (lm *LibraryManager) Circulation() *Circulation { return lm.circ }

// Session returns the stored session or ErrUnauthenticated.
func (lm *LibraryManager) Session() (*Session, error) { return lm.sessions.Current() }

func (lm *LibraryManager) Login(ctx context.Context, username, password string) (*Session, error) {
	return lm.auth.Login(ctx, username, password)
}

func (lm *LibraryManager) Register(ctx context.Context, req RegisterRequest) (*Profile, error) {
	return lm.auth.Register(ctx, req)
}

func (lm *LibraryManager) Logout() error { return lm.auth.Logout() }

// ------------------ List refresh ------------------

// refresh reloads one list after a change that already went through. A failed
// reload keeps the previous contents and marks the list stale; the change is
// not reported as failed.
func (lm *LibraryManager) refresh(ctx context.Context, name string, load func(context.Context) error) {
	if err := load(ctx); err != nil {
		lm.log.Warnf("reload %s after change: %v", name, err)
		lm.markStale(name)
	}
}

func (lm *LibraryManager) markStale(names ...string) {
	lm.staleMu.Lock()
	defer lm.staleMu.Unlock()
	for _, n := range names {
		if !slices.Contains(lm.stale, n) {
			lm.stale = append(lm.stale, n)
		}
	}
}

// TakeStale returns, sorted, the lists whose reload after a change failed
// since the last call, and forgets them.
func (lm *LibraryManager) TakeStale() []string {
	lm.staleMu.Lock()
	defer lm.staleMu.Unlock()
	out := lm.stale
	lm.stale = nil
	sort.Strings(out)
	return out
}

// ------------------ Book helpers ------------------

// BookInput is the add/edit book form.
type BookInput struct {
	Title           string
	Author          string
	Category        string
	ISBN            string
	PublicationYear int
	TotalCopies     int
}

func (in BookInput) normalized(now time.Time) (BookInput, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Author = strings.TrimSpace(in.Author)
	in.Category = strings.TrimSpace(in.Category)
	in.ISBN = strings.TrimSpace(in.ISBN)
	if in.Title == "" || in.Author == "" || in.Category == "" || in.TotalCopies == 0 {
		return in, validationf("please fill in all required fields")
	}
	if in.TotalCopies < 0 {
		return in, validationf("total copies must be at least 1")
	}
	if in.PublicationYear == 0 {
		in.PublicationYear = now.Year()
	}
	return in, nil
}

// LoadBooks refetches the catalogue into the Books view, keeping its filter.
func (lm *LibraryManager) LoadBooks(ctx context.Context) error {
	if _, err := lm.sessions.Current(); err != nil {
		return err
	}
	var books []Book
	if err := lm.gw.Get(ctx, "/books", &books); err != nil {
		return err
	}
	lm.Books.SetCollection(books)
	return nil
}

// FilterBooks applies f to the Books view and returns to page 1.
func (lm *LibraryManager) FilterBooks(f BookFilter) error {
	if err := f.Validate(); err != nil {
		return err
	}
	lm.Books.ApplyFilter(f.Match)
	return nil
}

// GetBook fetches a single book.
func (lm *LibraryManager) GetBook(ctx context.Context, id int64) (*Book, error) {
	var b Book
	if err := lm.gw.Get(ctx, fmt.Sprintf("/books/%d", id), &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// AddBook creates a book with every copy available. Librarians only.
func (lm *LibraryManager) AddBook(ctx context.Context, in BookInput) (*Book, error) {
	sess, err := lm.sessions.Current()
	if err != nil {
		return nil, err
	}
	if err := RequireLibrarian(sess, "add books"); err != nil {
		return nil, err
	}
	if in, err = in.normalized(lm.now()); err != nil {
		return nil, err
	}
	body := Book{
		Title:           in.Title,
		Author:          in.Author,
		Category:        in.Category,
		ISBN:            in.ISBN,
		PublicationYear: in.PublicationYear,
		TotalCopies:     in.TotalCopies,
		AvailableCopies: in.TotalCopies,
	}
	var created Book
	if err := lm.gw.Post(ctx, "/books", nil, body, &created); err != nil {
		return nil, err
	}
	lm.log.Infof("added book %d %q", created.ID, created.Title)
	lm.refresh(ctx, "books", lm.LoadBooks)
	return &created, nil
}

// UpdateBook replaces the editable fields of current. Copies on loan stay on
// loan: available copies move by the change in total, never below zero.
func (lm *LibraryManager) UpdateBook(ctx context.Context, current Book, in BookInput) (*Book, error) {
	sess, err := lm.sessions.Current()
	if err != nil {
		return nil, err
	}
	if err := RequireLibrarian(sess, "edit books"); err != nil {
		return nil, err
	}
	if in, err = in.normalized(lm.now()); err != nil {
		return nil, err
	}
	onLoan := current.TotalCopies - current.AvailableCopies
	if in.TotalCopies < onLoan {
		return nil, validationf("%d copies are on loan; total copies cannot be lower", onLoan)
	}
	body := Book{
		ID:              current.ID,
		Title:           in.Title,
		Author:          in.Author,
		Category:        in.Category,
		ISBN:            in.ISBN,
		PublicationYear: in.PublicationYear,
		TotalCopies:     in.TotalCopies,
		AvailableCopies: in.TotalCopies - onLoan,
	}
	var updated Book
	if err := lm.gw.Put(ctx, fmt.Sprintf("/books/%d", current.ID), nil, body, &updated); err != nil {
		return nil, err
	}
	lm.log.Infof("updated book %d", current.ID)
	lm.refresh(ctx, "books", lm.LoadBooks)
	return &updated, nil
}

// DeleteBook removes a book after confirmation. Librarians only.
func (lm *LibraryManager) DeleteBook(ctx context.Context, b Book) error {
	sess, err := lm.sessions.Current()
	if err != nil {
		return err
	}
	if err := RequireLibrarian(sess, "delete books"); err != nil {
		return err
	}
	if err := lm.confirm(fmt.Sprintf("Delete %q? This cannot be undone.", b.Title)); err != nil {
		return err
	}
	if err := lm.gw.Delete(ctx, fmt.Sprintf("/books/%d", b.ID)); err != nil {
		return err
	}
	lm.log.Infof("deleted book %d", b.ID)
	lm.refresh(ctx, "books", lm.LoadBooks)
	return nil
}

// ------------------ User helpers ------------------

// UserInput is the edit-user form. PhoneNumber is optional.
type UserInput struct {
	Username    string `json:"username"`
	FullName    string `json:"fullName"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
	Role        Role   `json:"role"`
}

// LoadUsers refetches all accounts into the Users view. Librarians only.
func (lm *LibraryManager) LoadUsers(ctx context.Context) error {
	sess, err := lm.sessions.Current()
	if err != nil {
		return err
	}
	if err := RequireLibrarian(sess, "view users"); err != nil {
		return err
	}
	var users []User
	if err := lm.gw.Get(ctx, "/users", &users); err != nil {
		return err
	}
	lm.Users.SetCollection(users)
	return nil
}

// FilterUsers applies f to the Users view and returns to page 1.
func (lm *LibraryManager) FilterUsers(f UserFilter) {
	lm.Users.ApplyFilter(f.Match)
}

// FindUser looks id up in the loaded users.
func (lm *LibraryManager) FindUser(id int64) (*User, bool) {
	for _, u := range lm.Users.All() {
		if u.ID == id {
			return &u, true
		}
	}
	return nil, false
}

// UpdateUser saves an account. Members may only edit their own.
func (lm *LibraryManager) UpdateUser(ctx context.Context, id int64, in UserInput) (*User, error) {
	sess, err := lm.sessions.Current()
	if err != nil {
		return nil, err
	}
	if err := RequireLibrarianOrSelf(sess, id, "edit users"); err != nil {
		return nil, err
	}
	in.Username = strings.TrimSpace(in.Username)
	in.FullName = strings.TrimSpace(in.FullName)
	in.Email = strings.TrimSpace(in.Email)
	in.PhoneNumber = strings.TrimSpace(in.PhoneNumber)
	if in.Username == "" || in.FullName == "" || in.Email == "" || in.Role == "" {
		return nil, validationf("please fill in all required fields")
	}
	if !sess.User.IsLibrarian() && in.Role != sess.User.Role {
		return nil, forbiddenf("only librarians can change roles")
	}

	var updated User
	if err := lm.gw.Put(ctx, fmt.Sprintf("/users/%d", id), nil, in, &updated); err != nil {
		return nil, err
	}
	lm.log.Infof("updated user %d", id)
	self := sess.User
	if id == self.ID {
		self = lm.updateProfile(sess, updated)
	}
	if self.IsLibrarian() {
		lm.refresh(ctx, "users", lm.LoadUsers)
	}
	return &updated, nil
}

// updateProfile re-saves the session after the account edited itself, so the
// cached profile matches the server.
func (lm *LibraryManager) updateProfile(sess *Session, u User) Profile {
	p := sess.User
	if u.Username != "" {
		p.Username = u.Username
	}
	if u.FullName != "" {
		p.FullName = u.FullName
	}
	if u.Email != "" {
		p.Email = u.Email
	}
	if u.Role != "" {
		p.Role = u.Role
	}
	if err := lm.sessions.Save(Session{Token: sess.Token, User: p}); err != nil {
		lm.log.Warnf("update stored profile: %v", err)
	}
	return p
}

// ToggleRole flips u between MEMBER and LIBRARIAN after confirmation.
func (lm *LibraryManager) ToggleRole(ctx context.Context, u User) (Role, error) {
	sess, err := lm.sessions.Current()
	if err != nil {
		return "", err
	}
	if err := RequireLibrarian(sess, "change roles"); err != nil {
		return "", err
	}
	next := RoleLibrarian
	if u.Role == RoleLibrarian {
		next = RoleMember
	}
	if err := lm.confirm(fmt.Sprintf("Change %s's role from %s to %s?", u.FullName, u.Role, next)); err != nil {
		return "", err
	}
	q := url.Values{}
	q.Set("role", string(next))
	if err := lm.gw.Put(ctx, fmt.Sprintf("/users/%d/role", u.ID), q, nil, nil); err != nil {
		return "", err
	}
	lm.log.Infof("user %d is now %s", u.ID, next)
	lm.refresh(ctx, "users", lm.LoadUsers)
	return next, nil
}

// DeleteUser removes an account. It takes two confirmations and the user's
// exact username; a mismatch cancels without a request.
func (lm *LibraryManager) DeleteUser(ctx context.Context, u User) error {
	sess, err := lm.sessions.Current()
	if err != nil {
		return err
	}
	if err := RequireLibrarian(sess, "delete users"); err != nil {
		return err
	}
	if err := lm.confirm(fmt.Sprintf("Delete user %s (%s, %s)? All their data will be removed.", u.FullName, u.Username, u.Role)); err != nil {
		return err
	}
	if err := lm.confirm("This action cannot be undone. Continue?"); err != nil {
		return err
	}
	typed, err := lm.prompt.Ask(fmt.Sprintf("Type %q to confirm deletion", u.Username))
	if err != nil {
		return err
	}
	if typed != u.Username {
		return fmt.Errorf("username doesn't match: %w", ErrCancelled)
	}
	if err := lm.gw.Delete(ctx, fmt.Sprintf("/users/%d", u.ID)); err != nil {
		return err
	}
	lm.log.Infof("deleted user %d", u.ID)
	lm.refresh(ctx, "users", lm.LoadUsers)
	return nil
}

// ------------------ Circulation ------------------

// fetchTransactions returns the loans visible to the session: all of them
// for a librarian, only their own for a member.
func (lm *LibraryManager) fetchTransactions(ctx context.Context, sess *Session) ([]Transaction, error) {
	path := "/transactions"
	if !sess.User.IsLibrarian() {
		if sess.User.ID == 0 {
			return nil, validationf("your account id is unknown; log in again")
		}
		path = fmt.Sprintf("/transactions/user/%d", sess.User.ID)
	}
	var txs []Transaction
	if err := lm.gw.Get(ctx, path, &txs); err != nil {
		return nil, err
	}
	return txs, nil
}

// LoadTransactions refetches loans into the Transactions view.
func (lm *LibraryManager) LoadTransactions(ctx context.Context) error {
	sess, err := lm.sessions.Current()
	if err != nil {
		return err
	}
	txs, err := lm.fetchTransactions(ctx, sess)
	if err != nil {
		return err
	}
	lm.Transactions.SetCollection(txs)
	return nil
}

// FilterTransactions applies f to the Transactions view and returns to page 1.
func (lm *LibraryManager) FilterTransactions(f TransactionFilter) error {
	if err := f.Validate(); err != nil {
		return err
	}
	if f.Now.IsZero() {
		f.Now = lm.now()
	}
	lm.Transactions.ApplyFilter(f.Match)
	return nil
}

// Borrow lends book to userID. See Circulation.Borrow.
func (lm *LibraryManager) Borrow(ctx context.Context, userID int64, book Book) (*Transaction, error) {
	return lm.circ.Borrow(ctx, userID, book)
}

// Return closes a loan. See Circulation.Return.
func (lm *LibraryManager) Return(ctx context.Context, userID, bookID int64) (*Transaction, error) {
	return lm.circ.Return(ctx, userID, bookID)
}

// FindOpenLoan returns the caller-visible open loan of bookID, if any.
func (lm *LibraryManager) FindOpenLoan(bookID int64) (*Transaction, bool) {
	for _, t := range lm.Transactions.All() {
		if t.BookID() == bookID && !t.Returned() {
			return &t, true
		}
	}
	return nil, false
}
