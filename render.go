package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"library-client/library"
)

// truncateString shortens s to max runes, marking the cut with "...".
func truncateString(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}

// rangeText is the "Showing x-y of n" line under a list.
func rangeText[T any](v *library.ListView[T], noun string) string {
	from, to := v.Range()
	if v.FilteredCount() == 0 {
		return fmt.Sprintf("No %s found.", noun)
	}
	text := fmt.Sprintf("Showing %d-%d of %d %s", from, to, v.FilteredCount(), noun)
	if v.FilteredCount() != v.TotalCount() {
		text += fmt.Sprintf(" (filtered from %d)", v.TotalCount())
	}
	return text
}

// pagerText renders the page links, e.g. "1 … 4 [5] 6 … 12".
func pagerText(links []library.PageLink) string {
	parts := make([]string, 0, len(links))
	for _, l := range links {
		switch {
		case l.Ellipsis:
			parts = append(parts, "…")
		case l.Current:
			parts = append(parts, fmt.Sprintf("[%d]", l.Number))
		default:
			parts = append(parts, fmt.Sprintf("%d", l.Number))
		}
	}
	return strings.Join(parts, " ")
}

func printFooter[T any](w io.Writer, v *library.ListView[T], noun string) {
	fmt.Fprintln(w, rangeText(v, noun))
	if links := v.Links(); links != nil {
		fmt.Fprintf(w, "Pages: %s\n", pagerText(links))
	}
}

// ---- Books ----

func printBooks(w io.Writer, v *library.ListView[library.Book], role library.Role) {
	books := v.VisibleSlice()
	if len(books) > 0 {
		fmt.Fprintf(w, "%-5s %-30s %-22s %-15s %-7s %s\n", "ID", "Title", "Author", "Category", "Copies", "Status")
		fmt.Fprintln(w, strings.Repeat("-", 95))
		for _, b := range books {
			status := "Available"
			if !b.Available() {
				status = "Borrowed"
			}
			fmt.Fprintf(w, "%-5d %-30s %-22s %-15s %-7s %s\n",
				b.ID,
				truncateString(b.Title, 30),
				truncateString(b.Author, 22),
				truncateString(b.Category, 15),
				fmt.Sprintf("%d/%d", b.AvailableCopies, b.TotalCopies),
				status)
		}
	}
	printFooter(w, v, "books")

	actions := []string{"borrow <id>"}
	if library.Visible(role, library.PageBooks, library.ElemAddBookButton) {
		actions = append(actions, "book add")
	}
	if library.Visible(role, library.PageBooks, library.ElemEditBook) {
		actions = append(actions, "book edit <id>")
	}
	if library.Visible(role, library.PageBooks, library.ElemDeleteBook) {
		actions = append(actions, "book delete <id>")
	}
	fmt.Fprintf(w, "Actions: %s\n", strings.Join(actions, " | "))
}

func printBook(w io.Writer, b library.Book) {
	fmt.Fprintf(w, "Book #%d\n", b.ID)
	fmt.Fprintf(w, "  Title:     %s\n", b.Title)
	fmt.Fprintf(w, "  Author:    %s\n", b.Author)
	fmt.Fprintf(w, "  Category:  %s\n", b.Category)
	if b.ISBN != "" {
		fmt.Fprintf(w, "  ISBN:      %s\n", b.ISBN)
	}
	if b.PublicationYear != 0 {
		fmt.Fprintf(w, "  Published: %d\n", b.PublicationYear)
	}
	fmt.Fprintf(w, "  Copies:    %d of %d available\n", b.AvailableCopies, b.TotalCopies)
}

// ---- Transactions ----

// statusText adds the day count to a loan's status.
func statusText(t library.Transaction, now time.Time) string {
	status := library.DeriveStatus(t, now)
	days, ok := library.DaysUntilDue(t, now)
	if !ok {
		return string(status)
	}
	switch status {
	case library.StatusOverdue:
		return fmt.Sprintf("Overdue (%dd)", -days)
	case library.StatusActive:
		return fmt.Sprintf("Active (%dd left)", days)
	}
	return string(status)
}

func bookTitle(t library.Transaction) string {
	if t.Book == nil {
		return "Unknown book"
	}
	return t.Book.Title
}

func borrowerName(t library.Transaction) string {
	if t.User == nil {
		return "Unknown user"
	}
	if t.User.FullName != "" {
		return t.User.FullName
	}
	return t.User.Username
}

func printTransactionRows(w io.Writer, txs []library.Transaction, now time.Time) {
	fmt.Fprintf(w, "%-5s %-5s %-26s %-20s %-13s %-13s %-13s %s\n", "ID", "Book", "Title", "Member", "Borrowed", "Due", "Returned", "Status")
	fmt.Fprintln(w, strings.Repeat("-", 118))
	for _, t := range txs {
		fmt.Fprintf(w, "%-5d %-5d %-26s %-20s %-13s %-13s %-13s %s\n",
			t.ID,
			t.BookID(),
			truncateString(bookTitle(t), 26),
			truncateString(borrowerName(t), 20),
			t.TransactionDate.DateString("-"),
			t.DueDate.DateString("-"),
			t.ReturnDate.DateString("-"),
			statusText(t, now))
	}
}

func printTransactions(w io.Writer, v *library.ListView[library.Transaction], role library.Role, now time.Time) {
	st := library.SummarizeTransactions(v.Filtered(), now)
	fmt.Fprintf(w, "Total: %d   Borrowed: %d   Returned: %d   Overdue: %d\n\n", st.Total, st.Borrowed, st.Returned, st.Overdue)
	if txs := v.VisibleSlice(); len(txs) > 0 {
		printTransactionRows(w, txs, now)
	}
	printFooter(w, v, "transactions")
	if library.Visible(role, library.PageTransactions, library.ElemBorrowUserPick) {
		fmt.Fprintln(w, "Actions: borrow <book-id> --user <id> | return <book-id> [--user <id>]")
	} else {
		fmt.Fprintln(w, "Actions: borrow <book-id> | return <book-id>")
	}
}

// ---- Users ----

func printUsers(w io.Writer, v *library.ListView[library.User]) {
	st := library.SummarizeUsers(v.Filtered())
	fmt.Fprintf(w, "Users: %d   Members: %d   Librarians: %d\n\n", st.Total, st.Members, st.Librarians)
	if users := v.VisibleSlice(); len(users) > 0 {
		fmt.Fprintf(w, "%-5s %-15s %-24s %-28s %-10s %s\n", "ID", "Username", "Full name", "Email", "Role", "Joined")
		fmt.Fprintln(w, strings.Repeat("-", 100))
		for _, u := range users {
			fmt.Fprintf(w, "%-5d %-15s %-24s %-28s %-10s %s\n",
				u.ID,
				truncateString(u.Username, 15),
				truncateString(u.FullName, 24),
				truncateString(u.Email, 28),
				u.Role,
				u.CreatedAt.DateString("-"))
		}
	}
	printFooter(w, v, "users")
	fmt.Fprintln(w, "Actions: user edit <id> | user role <id> | user delete <id>")
}

// ---- Dashboard ----

func printDashboard(w io.Writer, d *library.Dashboard, p library.Profile, now time.Time) {
	fmt.Fprintf(w, "Welcome back, %s (%s)\n\n", p.FullName, p.Role)
	fmt.Fprintf(w, "  Books:        %d\n", d.TotalBooks)
	if library.Visible(p.Role, library.PageDashboard, library.ElemTotalUsersCard) {
		fmt.Fprintf(w, "  Users:        %d\n", d.TotalUsers)
	}
	fmt.Fprintf(w, "  Active loans: %d\n", d.ActiveLoans)
	if library.Visible(p.Role, library.PageDashboard, library.ElemOverdueCard) {
		fmt.Fprintf(w, "  Overdue:      %d\n", d.Overdue)
	}
	fmt.Fprintln(w)

	if len(d.Recent) == 0 {
		fmt.Fprintln(w, "No recent activity.")
	} else {
		fmt.Fprintln(w, "Recent activity:")
		printTransactionRows(w, d.Recent, now)
	}
	printLoadWarnings(w, d.Failed)
}

// printStaleWarning reports lists that could not be refreshed after a change
// that itself succeeded.
func printStaleWarning(w io.Writer, stale []string) {
	if len(stale) > 0 {
		fmt.Fprintf(w, "Warning: could not reload %s; the list may be out of date.\n", strings.Join(stale, ", "))
	}
}

func printLoadWarnings(w io.Writer, failed []string) {
	if len(failed) > 0 {
		fmt.Fprintf(w, "\nWarning: could not load %s; showing what is available.\n", strings.Join(failed, ", "))
	}
}

// ---- Profile ----

func printProfile(w io.Writer, sess *library.Session, now time.Time) {
	p := sess.User
	fmt.Fprintf(w, "Name:     %s\n", p.FullName)
	fmt.Fprintf(w, "Username: %s\n", p.Username)
	fmt.Fprintf(w, "Email:    %s\n", p.Email)
	fmt.Fprintf(w, "Role:     %s\n", p.Role)
	if p.ID != 0 {
		fmt.Fprintf(w, "User ID:  %d\n", p.ID)
	}
	info, err := library.InspectToken(sess.Token)
	switch {
	case err != nil:
		fmt.Fprintln(w, "Token:    unreadable")
	case info.ExpiresAt.IsZero():
		fmt.Fprintln(w, "Token:    no expiry")
	case info.Expired(now):
		fmt.Fprintf(w, "Token:    expired %s\n", info.ExpiresAt.Local().Format("Jan 2, 2006 15:04"))
	default:
		fmt.Fprintf(w, "Token:    valid until %s\n", info.ExpiresAt.Local().Format("Jan 2, 2006 15:04"))
	}
}
