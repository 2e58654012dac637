package main

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"library-client/internal/config"
	"library-client/library"
)

// Import books from a CSV file into the catalogue using the session stored by
// "librarydesk login". The account must be a librarian's.
//
//	import_books [books.csv]
//
// Columns: title,author,category,isbn,year,copies. The last three may be
// empty; copies defaults to 1. A header row starting with "title" is skipped.
func main() {
	path := "books.csv"
	if len(os.Args) > 1 {
		path = os.Args[1]
	}

	cfg, err := config.Load(".env")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	manager, err := library.NewLibraryManager(library.Options{
		BaseURL:    cfg.API.BaseURL,
		DBPath:     cfg.Storage.DBPath,
		KeyPath:    cfg.Storage.KeyPath,
		HTTPClient: &http.Client{Timeout: cfg.API.Timeout},
		Logger:     library.NewLogger(os.Stderr),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening session database: %v\n", err)
		os.Exit(1)
	}
	defer manager.Close()

	f, err := os.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading %s: %v\n", path, err)
		os.Exit(1)
	}
	rows, err := readRows(f)
	f.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing %s: %v\n", path, err)
		os.Exit(1)
	}

	fmt.Printf("Importing %d books from %s...\n", len(rows), path)
	successCount, errorCount := 0, 0
	ctx := context.Background()

	for _, in := range rows {
		fmt.Printf("Importing: %s by %s... ", in.Title, in.Author)
		book, err := manager.AddBook(ctx, in)
		if errors.Is(err, library.ErrUnauthenticated) {
			fmt.Println("ERROR - not logged in")
			fmt.Fprintln(os.Stderr, "Log in as a librarian with 'librarydesk login' and try again.")
			os.Exit(1)
		}
		if err != nil {
			fmt.Printf("ERROR - %v\n", err)
			errorCount++
			continue
		}
		fmt.Printf("SUCCESS (ID: %d)\n", book.ID)
		successCount++
	}

	fmt.Printf("\nImport complete!\n")
	fmt.Printf("Successfully imported: %d books\n", successCount)
	fmt.Printf("Errors: %d\n", errorCount)

	if stale := manager.TakeStale(); len(stale) > 0 {
		fmt.Printf("Warning: could not reload %s; the catalogue below may be incomplete.\n", strings.Join(stale, ", "))
	}

	if successCount > 0 {
		fmt.Println("\nCatalogue:")
		fmt.Printf("%-5s %-50s %-30s %s\n", "ID", "Title", "Author", "Copies")
		fmt.Println(strings.Repeat("-", 95))
		for _, b := range manager.Books.All() {
			fmt.Printf("%-5d %-50s %-30s %d/%d\n", b.ID, truncateString(b.Title, 50), truncateString(b.Author, 30), b.AvailableCopies, b.TotalCopies)
		}
	}
}

// readRows parses the CSV into book forms. Validation of the required fields
// is left to AddBook so that one bad row does not stop the import.
func readRows(r io.Reader) ([]library.BookInput, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var rows []library.BookInput
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		if line == 1 && len(rec) > 0 && strings.EqualFold(strings.TrimSpace(rec[0]), "title") {
			continue
		}
		if len(rec) < 3 {
			return nil, fmt.Errorf("line %d: want at least title,author,category", line)
		}
		in := library.BookInput{
			Title:       rec[0],
			Author:      rec[1],
			Category:    rec[2],
			TotalCopies: 1,
		}
		if len(rec) > 3 {
			in.ISBN = rec[3]
		}
		if len(rec) > 4 && strings.TrimSpace(rec[4]) != "" {
			if in.PublicationYear, err = strconv.Atoi(strings.TrimSpace(rec[4])); err != nil {
				return nil, fmt.Errorf("line %d: invalid year %q", line, rec[4])
			}
		}
		if len(rec) > 5 && strings.TrimSpace(rec[5]) != "" {
			if in.TotalCopies, err = strconv.Atoi(strings.TrimSpace(rec[5])); err != nil {
				return nil, fmt.Errorf("line %d: invalid copies %q", line, rec[5])
			}
		}
		rows = append(rows, in)
	}
}

func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
