package library

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Role is the access level of a library account.
type Role string

const (
	RoleMember    Role = "MEMBER"
	RoleLibrarian Role = "LIBRARIAN"
)

// ParseRole normalizes user input ("member", " Librarian ") into a Role.
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToUpper(strings.TrimSpace(s))) {
	case RoleMember:
		return RoleMember, nil
	case RoleLibrarian:
		return RoleLibrarian, nil
	}
	return "", fmt.Errorf("unknown role %q (want MEMBER or LIBRARIAN)", s)
}

// Book is a catalogue entry as returned by the backend.
// The client never mutates copy counts locally; they are reloaded after every change.
type Book struct {
	ID              int64  `json:"id"`
	Title           string `json:"title"`
	Author          string `json:"author"`
	Category        string `json:"category"`
	ISBN            string `json:"isbn,omitempty"`
	PublicationYear int    `json:"publicationYear,omitempty"`
	TotalCopies     int    `json:"totalCopies"`
	AvailableCopies int    `json:"availableCopies"`
}

// Available reports whether at least one copy can be borrowed.
func (b Book) Available() bool { return b.AvailableCopies > 0 }

// User is a library account.
type User struct {
	ID          int64     `json:"id"`
	Username    string    `json:"username"`
	FullName    string    `json:"fullName"`
	Email       string    `json:"email"`
	PhoneNumber string    `json:"phoneNumber,omitempty"`
	Role        Role      `json:"role"`
	CreatedAt   Timestamp `json:"createdAt"`
}

// Transaction is a single loan. Its status is derived, see DeriveStatus.
type Transaction struct {
	ID              int64     `json:"id"`
	User            *User     `json:"user"`
	Book            *Book     `json:"book"`
	TransactionDate Timestamp `json:"transactionDate"`
	DueDate         Timestamp `json:"dueDate"`
	ReturnDate      Timestamp `json:"returnDate"`
}

// UserID returns the borrower id or 0 when the backend omitted the user.
func (t Transaction) UserID() int64 {
	if t.User == nil {
		return 0
	}
	return t.User.ID
}

// BookID returns the book id or 0 when the backend omitted the book.
func (t Transaction) BookID() int64 {
	if t.Book == nil {
		return 0
	}
	return t.Book.ID
}

// Returned reports whether the loan has been closed.
func (t Transaction) Returned() bool { return !t.ReturnDate.IsZero() }

// Profile is the cached part of the session describing the logged-in account.
type Profile struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Role     Role   `json:"role"`
}

// IsLibrarian reports whether the profile carries the librarian role.
func (p Profile) IsLibrarian() bool { return p.Role == RoleLibrarian }

// Session is the persisted authentication state: the bearer token and the
// profile are always stored and removed together.
type Session struct {
	Token string  `json:"token"`
	User  Profile `json:"user"`
}

// ---------------------------------------------------------------------------
// Timestamps
// ---------------------------------------------------------------------------

// The backend serializes LocalDateTime without a zone; those values are read
// in the local time zone.
var localLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Timestamp is a time that accepts both RFC 3339 and zone-less backend values.
// The zero Timestamp means "absent" and encodes as null.
type Timestamp struct {
	time.Time
}

// NewTimestamp wraps t.
func NewTimestamp(t time.Time) Timestamp { return Timestamp{Time: t} }

// ParseTimestamp parses a backend time string. An empty string yields the zero value.
func ParseTimestamp(s string) (Timestamp, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Timestamp{}, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return Timestamp{Time: t}, nil
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return Timestamp{Time: t}, nil
		}
	}
	return Timestamp{}, fmt.Errorf("unrecognized time %q", s)
}

func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*ts = Timestamp{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	*ts = parsed
	return nil
}

func (ts Timestamp) MarshalJSON() ([]byte, error) {
	if ts.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(ts.Time.Format(time.RFC3339Nano))
}

// DateString renders the date part for tables, or fallback when absent.
func (ts Timestamp) DateString(fallback string) string {
	if ts.IsZero() {
		return fallback
	}
	return ts.Time.Format("Jan 2, 2006")
}
