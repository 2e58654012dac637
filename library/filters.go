package library

import (
	"fmt"
	"strings"
	"time"
)

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), needle)
}

// ---- Books ----

// Book availability filter values.
const (
	BookAvailable = "available"
	BookBorrowed  = "borrowed"
)

// BookFilter narrows the catalogue. Empty fields match everything.
type BookFilter struct {
	Search   string // title, author or ISBN, case-insensitive
	Category string // exact
	Status   string // BookAvailable or BookBorrowed
}

// Validate rejects an unknown status.
func (f BookFilter) Validate() error {
	switch f.Status {
	case "", BookAvailable, BookBorrowed:
		return nil
	}
	return validationf("unknown book status %q (want %s or %s)", f.Status, BookAvailable, BookBorrowed)
}

// Match reports whether b passes every set criterion.
func (f BookFilter) Match(b Book) bool {
	if q := strings.ToLower(strings.TrimSpace(f.Search)); q != "" {
		if !containsFold(b.Title, q) && !containsFold(b.Author, q) && !containsFold(b.ISBN, q) {
			return false
		}
	}
	if f.Category != "" && b.Category != f.Category {
		return false
	}
	switch f.Status {
	case BookAvailable:
		return b.AvailableCopies > 0
	case BookBorrowed:
		return b.AvailableCopies == 0
	}
	return true
}

// ---- Transactions ----

// Transaction status filter values.
const (
	TxBorrowed = "BORROWED"
	TxReturned = "RETURNED"
	TxOverdue  = "OVERDUE"
)

// Date windows, measured back from now against the transaction date.
const (
	WindowToday = "today"
	WindowWeek  = "week"
	WindowMonth = "month"
)

const day = 24 * time.Hour

// TransactionFilter narrows the loan list. Empty fields match everything.
type TransactionFilter struct {
	Search string // book title, user full name or username
	Status string // TxBorrowed, TxReturned or TxOverdue
	UserID int64  // 0 means any user
	Window string // WindowToday, WindowWeek or WindowMonth
	// Now is the reference time for OVERDUE and the date window. Zero means time.Now().
	Now time.Time
}

// Validate rejects unknown status or window values.
func (f TransactionFilter) Validate() error {
	switch strings.ToUpper(f.Status) {
	case "", TxBorrowed, TxReturned, TxOverdue:
	default:
		return validationf("unknown transaction status %q", f.Status)
	}
	switch strings.ToLower(f.Window) {
	case "", WindowToday, WindowWeek, WindowMonth:
	default:
		return validationf("unknown date window %q (want today, week or month)", f.Window)
	}
	return nil
}

// Match reports whether t passes every set criterion.
func (f TransactionFilter) Match(t Transaction) bool {
	now := f.Now
	if now.IsZero() {
		now = time.Now()
	}

	if q := strings.ToLower(strings.TrimSpace(f.Search)); q != "" {
		hit := t.Book != nil && containsFold(t.Book.Title, q)
		if !hit && t.User != nil {
			hit = containsFold(t.User.FullName, q) || containsFold(t.User.Username, q)
		}
		if !hit {
			return false
		}
	}

	switch strings.ToUpper(f.Status) {
	case TxBorrowed:
		if t.Returned() {
			return false
		}
	case TxReturned:
		if !t.Returned() {
			return false
		}
	case TxOverdue:
		if t.Returned() || t.DueDate.IsZero() || !t.DueDate.Before(now) {
			return false
		}
	}

	if f.UserID != 0 && t.UserID() != f.UserID {
		return false
	}

	// A loan without a transaction date is never excluded by the window.
	if f.Window != "" && !t.TransactionDate.IsZero() {
		borrowed := t.TransactionDate.Time
		switch strings.ToLower(f.Window) {
		case WindowToday:
			y1, m1, d1 := borrowed.In(now.Location()).Date()
			y2, m2, d2 := now.Date()
			if y1 != y2 || m1 != m2 || d1 != d2 {
				return false
			}
		case WindowWeek:
			if borrowed.Before(now.Add(-7 * day)) {
				return false
			}
		case WindowMonth:
			if borrowed.Before(now.Add(-30 * day)) {
				return false
			}
		}
	}
	return true
}

// ---- Users ----

// UserFilter narrows the account list. Empty fields match everything.
type UserFilter struct {
	Search string // full name, username or email
	Role   Role
}

// Match reports whether u passes every set criterion.
func (f UserFilter) Match(u User) bool {
	if q := strings.ToLower(strings.TrimSpace(f.Search)); q != "" {
		if !containsFold(u.FullName, q) && !containsFold(u.Username, q) && !containsFold(u.Email, q) {
			return false
		}
	}
	return f.Role == "" || u.Role == f.Role
}

// Categories returns the distinct non-empty categories of books in first-seen order.
func Categories(books []Book) []string {
	seen := make(map[string]bool)
	var out []string
	for _, b := range books {
		if b.Category == "" || seen[b.Category] {
			continue
		}
		seen[b.Category] = true
		out = append(out, b.Category)
	}
	return out
}

// DescribeFilter renders the active criteria for a status line, e.g.
// `search="tolkien" category="Fantasy"`. It returns "" when nothing is set.
func DescribeFilter(pairs ...string) string {
	var parts []string
	for i := 0; i+1 < len(pairs); i += 2 {
		if pairs[i+1] == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s=%q", pairs[i], pairs[i+1]))
	}
	return strings.Join(parts, " ")
}
