package library

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	jwt "github.com/golang-jwt/jwt/v5"
)

func tempDB(t *testing.T) *Database {
	t.Helper()
	dir := t.TempDir()
	db, err := NewDatabase(filepath.Join(dir, "session.db"))
	if err != nil {
		t.Fatalf("new db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// mintToken signs a token shaped like the backend's: subject = username plus a role claim.
func mintToken(t *testing.T, subject, role string, ttl time.Duration) string {
	t.Helper()
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  subject,
		"role": role,
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

type recordedRequest struct {
	Method string
	Path   string
	Query  string
	Auth   string
}

// fakeBackend is an in-memory library API that records every request it sees.
type fakeBackend struct {
	srv *httptest.Server

	mu       sync.Mutex
	requests []recordedRequest
	token    string
	books    []Book
	users    []User
	txs      []Transaction
	nextID   int64
	fail     map[string]int
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	fb := &fakeBackend{
		token:  mintToken(t, "librarian", "ROLE_LIBRARIAN", time.Hour),
		nextID: 100,
		fail:   make(map[string]int),
	}

	r := chi.NewRouter()
	r.Use(fb.record)
	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", fb.login)
		r.Post("/auth/register", fb.register)
		r.Group(func(r chi.Router) {
			r.Use(fb.requireToken)
			r.Get("/books", fb.listBooks)
			r.Post("/books", fb.createBook)
			r.Get("/books/{id}", fb.getBook)
			r.Put("/books/{id}", fb.updateBook)
			r.Delete("/books/{id}", fb.deleteBook)
			r.Get("/users", fb.listUsers)
			r.Put("/users/{id}", fb.updateUser)
			r.Put("/users/{id}/role", fb.changeRole)
			r.Delete("/users/{id}", fb.deleteUser)
			r.Get("/transactions", fb.listTransactions)
			r.Get("/transactions/user/{id}", fb.userTransactions)
			r.Post("/transactions/borrow", fb.borrow)
			r.Post("/transactions/return", fb.returnBook)
		})
	})
	fb.srv = httptest.NewServer(r)
	t.Cleanup(fb.srv.Close)
	return fb
}

func (fb *fakeBackend) baseURL() string { return fb.srv.URL + "/api" }

// failWith makes "METHOD /path" (path without the /api prefix) answer status.
func (fb *fakeBackend) failWith(route string, status int) {
	fb.mu.Lock()
	fb.fail[route] = status
	fb.mu.Unlock()
}

// rotateToken invalidates every token issued so far.
func (fb *fakeBackend) rotateToken(token string) {
	fb.mu.Lock()
	fb.token = token
	fb.mu.Unlock()
}

func (fb *fakeBackend) requestCount() int {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return len(fb.requests)
}

func (fb *fakeBackend) recorded() []recordedRequest {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return append([]recordedRequest(nil), fb.requests...)
}

func (fb *fakeBackend) countRoute(method, path string) int {
	n := 0
	for _, r := range fb.recorded() {
		if r.Method == method && r.Path == path {
			n++
		}
	}
	return n
}

func (fb *fakeBackend) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/api")
		fb.mu.Lock()
		fb.requests = append(fb.requests, recordedRequest{
			Method: r.Method,
			Path:   path,
			Query:  r.URL.RawQuery,
			Auth:   r.Header.Get("Authorization"),
		})
		status, failing := fb.fail[r.Method+" "+path]
		fb.mu.Unlock()
		if failing {
			writeJSON(w, status, map[string]any{"status": status, "error": http.StatusText(status), "message": "forced failure", "path": r.URL.Path})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (fb *fakeBackend) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fb.mu.Lock()
		want := "Bearer " + fb.token
		fb.mu.Unlock()
		if r.Header.Get("Authorization") != want {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func idParam(r *http.Request) int64 {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id
}

func queryID(r *http.Request, key string) int64 {
	id, _ := strconv.ParseInt(r.URL.Query().Get(key), 10, 64)
	return id
}

func (fb *fakeBackend) login(w http.ResponseWriter, r *http.Request) {
	var body struct{ Username, Password string }
	json.NewDecoder(r.Body).Decode(&body)
	if body.Password != "secret" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Invalid username or password"})
		return
	}
	fb.mu.Lock()
	defer fb.mu.Unlock()
	for _, u := range fb.users {
		if u.Username == body.Username {
			writeJSON(w, http.StatusOK, map[string]any{
				"token": fb.token, "type": "Bearer", "username": u.Username,
				"fullName": u.FullName, "email": u.Email, "role": u.Role,
			})
			return
		}
	}
	writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Invalid username or password"})
}

func (fb *fakeBackend) register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	json.NewDecoder(r.Body).Decode(&req)
	fb.mu.Lock()
	defer fb.mu.Unlock()
	for _, u := range fb.users {
		if u.Username == req.Username {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Username already exists"})
			return
		}
	}
	fb.nextID++
	fb.users = append(fb.users, User{ID: fb.nextID, Username: req.Username, FullName: req.FullName, Email: req.Email, Role: req.Role})
	writeJSON(w, http.StatusOK, map[string]any{"token": fb.token, "username": req.Username, "fullName": req.FullName, "email": req.Email, "role": req.Role})
}

func (fb *fakeBackend) listBooks(w http.ResponseWriter, r *http.Request) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	writeJSON(w, http.StatusOK, fb.books)
}

func (fb *fakeBackend) getBook(w http.ResponseWriter, r *http.Request) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	for _, b := range fb.books {
		if b.ID == idParam(r) {
			writeJSON(w, http.StatusOK, b)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"message": "Book not found"})
}

func (fb *fakeBackend) createBook(w http.ResponseWriter, r *http.Request) {
	var b Book
	json.NewDecoder(r.Body).Decode(&b)
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.nextID++
	b.ID = fb.nextID
	fb.books = append(fb.books, b)
	writeJSON(w, http.StatusCreated, b)
}

func (fb *fakeBackend) updateBook(w http.ResponseWriter, r *http.Request) {
	var b Book
	json.NewDecoder(r.Body).Decode(&b)
	fb.mu.Lock()
	defer fb.mu.Unlock()
	for i := range fb.books {
		if fb.books[i].ID == idParam(r) {
			b.ID = fb.books[i].ID
			fb.books[i] = b
			writeJSON(w, http.StatusOK, b)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"message": "Book not found"})
}

func (fb *fakeBackend) deleteBook(w http.ResponseWriter, r *http.Request) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	for i, b := range fb.books {
		if b.ID == idParam(r) {
			fb.books = append(fb.books[:i], fb.books[i+1:]...)
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"message": "Book not found"})
}

func (fb *fakeBackend) listUsers(w http.ResponseWriter, r *http.Request) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	writeJSON(w, http.StatusOK, fb.users)
}

func (fb *fakeBackend) updateUser(w http.ResponseWriter, r *http.Request) {
	var in UserInput
	json.NewDecoder(r.Body).Decode(&in)
	fb.mu.Lock()
	defer fb.mu.Unlock()
	for i := range fb.users {
		if fb.users[i].ID == idParam(r) {
			u := &fb.users[i]
			u.Username, u.FullName, u.Email, u.PhoneNumber, u.Role = in.Username, in.FullName, in.Email, in.PhoneNumber, in.Role
			writeJSON(w, http.StatusOK, u)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"message": "User not found"})
}

func (fb *fakeBackend) changeRole(w http.ResponseWriter, r *http.Request) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	for i := range fb.users {
		if fb.users[i].ID == idParam(r) {
			fb.users[i].Role = Role(r.URL.Query().Get("role"))
			writeJSON(w, http.StatusOK, fb.users[i])
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"message": "User not found"})
}

func (fb *fakeBackend) deleteUser(w http.ResponseWriter, r *http.Request) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	for i, u := range fb.users {
		if u.ID == idParam(r) {
			fb.users = append(fb.users[:i], fb.users[i+1:]...)
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"message": "User not found"})
}

func (fb *fakeBackend) listTransactions(w http.ResponseWriter, r *http.Request) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	writeJSON(w, http.StatusOK, fb.txs)
}

func (fb *fakeBackend) userTransactions(w http.ResponseWriter, r *http.Request) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	out := []Transaction{}
	for _, tx := range fb.txs {
		if tx.UserID() == idParam(r) {
			out = append(out, tx)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (fb *fakeBackend) borrow(w http.ResponseWriter, r *http.Request) {
	userID, bookID := queryID(r, "userId"), queryID(r, "bookId")
	fb.mu.Lock()
	defer fb.mu.Unlock()
	for i := range fb.books {
		b := &fb.books[i]
		if b.ID != bookID {
			continue
		}
		if b.AvailableCopies == 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "No copies available"})
			return
		}
		b.AvailableCopies--
		fb.nextID++
		now := time.Now()
		book := *b
		tx := Transaction{
			ID:              fb.nextID,
			User:            &User{ID: userID},
			Book:            &book,
			TransactionDate: NewTimestamp(now),
			DueDate:         NewTimestamp(now.Add(14 * 24 * time.Hour)),
		}
		fb.txs = append(fb.txs, tx)
		writeJSON(w, http.StatusOK, tx)
		return
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"message": "Book not found"})
}

func (fb *fakeBackend) returnBook(w http.ResponseWriter, r *http.Request) {
	userID, bookID := queryID(r, "userId"), queryID(r, "bookId")
	fb.mu.Lock()
	defer fb.mu.Unlock()
	for i := range fb.txs {
		tx := &fb.txs[i]
		if tx.UserID() != userID || tx.BookID() != bookID || tx.Returned() {
			continue
		}
		tx.ReturnDate = NewTimestamp(time.Now())
		for j := range fb.books {
			if fb.books[j].ID == bookID {
				fb.books[j].AvailableCopies++
			}
		}
		writeJSON(w, http.StatusOK, tx)
		return
	}
	writeJSON(w, http.StatusBadRequest, map[string]string{"message": "No active borrowing found"})
}

// scriptedPrompter answers confirmations from a queue (yes once it runs out)
// and every Ask with typed.
type scriptedPrompter struct {
	mu      sync.Mutex
	answers []bool
	typed   string
	prompts []string
}

func (p *scriptedPrompter) Confirm(prompt string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prompts = append(p.prompts, prompt)
	if len(p.answers) == 0 {
		return true, nil
	}
	a := p.answers[0]
	p.answers = p.answers[1:]
	return a, nil
}

func (p *scriptedPrompter) Ask(prompt string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prompts = append(p.prompts, prompt)
	return p.typed, nil
}

var (
	librarianProfile = Profile{ID: 1, Username: "librarian", FullName: "Lena Librarian", Email: "lena@example.com", Role: RoleLibrarian}
	memberProfile    = Profile{ID: 2, Username: "alice", FullName: "Alice Reader", Email: "alice@example.com", Role: RoleMember}
)

// newTestManager builds a manager against fb with an in-memory session store.
// A nil prompter confirms everything.
func newTestManager(t *testing.T, fb *fakeBackend, prompt Prompter) *LibraryManager {
	t.Helper()
	lm := NewLibraryManagerWithStore(NewMemoryStore(), nil, Options{BaseURL: fb.baseURL(), Prompter: prompt})
	t.Cleanup(func() { lm.Close() })
	return lm
}

// loginAs stores a session for p without going through /auth/login.
func loginAs(t *testing.T, lm *LibraryManager, fb *fakeBackend, p Profile) {
	t.Helper()
	if err := lm.sessions.Save(Session{Token: fb.token, User: p}); err != nil {
		t.Fatalf("save session: %v", err)
	}
}

func seedUsers(fb *fakeBackend) {
	fb.users = []User{
		{ID: 1, Username: "librarian", FullName: "Lena Librarian", Email: "lena@example.com", Role: RoleLibrarian},
		{ID: 2, Username: "alice", FullName: "Alice Reader", Email: "alice@example.com", Role: RoleMember},
		{ID: 3, Username: "bob", FullName: "Bob Borrower", Email: "bob@example.com", Role: RoleMember},
	}
}
