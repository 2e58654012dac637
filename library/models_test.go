package library

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2025-03-15T10:20:30", time.Date(2025, 3, 15, 10, 20, 30, 0, time.Local)},
		{"2025-03-15T10:20:30.123456", time.Date(2025, 3, 15, 10, 20, 30, 123456000, time.Local)},
		{"2025-03-15", time.Date(2025, 3, 15, 0, 0, 0, 0, time.Local)},
		{"2025-03-15T10:20:30Z", time.Date(2025, 3, 15, 10, 20, 30, 0, time.UTC)},
	}
	for _, tc := range tests {
		got, err := ParseTimestamp(tc.in)
		if err != nil {
			t.Fatalf("%s: %v", tc.in, err)
		}
		if !got.Equal(tc.want) {
			t.Fatalf("%s: got %v, want %v", tc.in, got.Time, tc.want)
		}
	}
	if ts, err := ParseTimestamp(""); err != nil || !ts.IsZero() {
		t.Fatalf("empty: %v %v", ts, err)
	}
	if _, err := ParseTimestamp("next tuesday"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestTransactionJSON(t *testing.T) {
	raw := `{"id":7,"user":{"id":2,"username":"alice","fullName":"Alice Reader","role":"MEMBER"},
		"book":{"id":10,"title":"The Hobbit","author":"J.R.R. Tolkien","totalCopies":2,"availableCopies":1},
		"transactionDate":"2025-03-01T09:00:00","dueDate":"2025-03-15T09:00:00","returnDate":null}`
	var tx Transaction
	if err := json.Unmarshal([]byte(raw), &tx); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if tx.UserID() != 2 || tx.BookID() != 10 || tx.Returned() {
		t.Fatalf("decoded %+v", tx)
	}
	if tx.DueDate.DateString("-") != "Mar 15, 2025" {
		t.Fatalf("due %s", tx.DueDate.DateString("-"))
	}
	if tx.ReturnDate.DateString("-") != "-" {
		t.Fatalf("absent return date rendered %q", tx.ReturnDate.DateString("-"))
	}

	var empty Transaction
	if empty.UserID() != 0 || empty.BookID() != 0 {
		t.Fatalf("nil user/book should give 0 ids")
	}
}

func TestParseRole(t *testing.T) {
	if r, err := ParseRole(" librarian "); err != nil || r != RoleLibrarian {
		t.Fatalf("got %q, %v", r, err)
	}
	if _, err := ParseRole("admin"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestTimestampJSONKeepsFraction(t *testing.T) {
	in := NewTimestamp(time.Date(2025, 3, 15, 10, 20, 30, 123456789, time.UTC))
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out Timestamp
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal %s: %v", data, err)
	}
	if !out.Equal(in.Time) {
		t.Fatalf("round trip %s gave %v, want %v", data, out.Time, in.Time)
	}

	data, err = json.Marshal(Timestamp{})
	if err != nil || string(data) != "null" {
		t.Fatalf("zero timestamp marshalled to %s (%v)", data, err)
	}
}
