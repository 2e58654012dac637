package library

import (
	"sort"
	"time"
)

// Status is the derived state of a loan.
type Status string

const (
	StatusActive    Status = "Active"
	StatusOverdue   Status = "Overdue"
	StatusCompleted Status = "Completed"
)

// DeriveStatus is the single place a loan's status is computed:
// a return date means Completed, otherwise a due date before now means Overdue,
// otherwise the loan is Active.
func DeriveStatus(t Transaction, now time.Time) Status {
	if t.Returned() {
		return StatusCompleted
	}
	if !t.DueDate.IsZero() && t.DueDate.Before(now) {
		return StatusOverdue
	}
	return StatusActive
}

// DaysUntilDue returns the whole days left before the due date (negative when
// overdue), rounding up like a calendar countdown. ok is false for closed loans
// or loans without a due date.
func DaysUntilDue(t Transaction, now time.Time) (days int, ok bool) {
	if t.Returned() || t.DueDate.IsZero() {
		return 0, false
	}
	diff := t.DueDate.Sub(now)
	days = int(diff / (24 * time.Hour))
	if diff > 0 && diff%(24*time.Hour) != 0 {
		days++
	}
	return days, true
}

// TransactionStats summarizes a set of loans.
type TransactionStats struct {
	Total    int
	Borrowed int
	Returned int
	Overdue  int
}

// SummarizeTransactions counts loans by derived status. Borrowed includes overdue loans.
func SummarizeTransactions(txs []Transaction, now time.Time) TransactionStats {
	st := TransactionStats{Total: len(txs)}
	for _, t := range txs {
		switch DeriveStatus(t, now) {
		case StatusCompleted:
			st.Returned++
		case StatusOverdue:
			st.Borrowed++
			st.Overdue++
		default:
			st.Borrowed++
		}
	}
	return st
}

// UserStats counts accounts per role.
type UserStats struct {
	Total      int
	Members    int
	Librarians int
}

// SummarizeUsers counts users by role.
func SummarizeUsers(users []User) UserStats {
	st := UserStats{Total: len(users)}
	for _, u := range users {
		switch u.Role {
		case RoleMember:
			st.Members++
		case RoleLibrarian:
			st.Librarians++
		}
	}
	return st
}

// RecentTransactions returns up to limit loans that carry a transaction date,
// newest first. The input slice is not modified.
func RecentTransactions(txs []Transaction, limit int) []Transaction {
	out := make([]Transaction, 0, len(txs))
	for _, t := range txs {
		if !t.TransactionDate.IsZero() {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TransactionDate.After(out[j].TransactionDate.Time)
	})
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
