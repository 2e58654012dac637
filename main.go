package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"

	"library-client/internal/config"
	"library-client/library"

	"github.com/spf13/cobra"
)

// app carries what every command needs. It is opened lazily so that
// --help works without a config or a session database.
type app struct {
	cfg *config.Config
	mgr *library.LibraryManager
	log *library.Logger
	con *console
	out io.Writer

	apiURL  string
	verbose bool

	// last is the list the shell pages through with next/prev.
	last listKind
}

func (a *app) open() error {
	if a.mgr != nil {
		return nil
	}
	cfg, err := config.Load(".env")
	if err != nil {
		return err
	}
	if a.apiURL != "" {
		cfg.API.BaseURL = a.apiURL
	}

	switch {
	case a.verbose:
		a.log = library.NewLogger(os.Stderr)
	case cfg.LogFile != "":
		if a.log, err = library.NewFileLogger(cfg.LogFile); err != nil {
			return err
		}
	default:
		a.log = library.NopLogger()
	}
	a.log.Infof("config: %s", cfg)

	mgr, err := library.NewLibraryManager(library.Options{
		BaseURL:              cfg.API.BaseURL,
		DBPath:               cfg.Storage.DBPath,
		KeyPath:              cfg.Storage.KeyPath,
		HTTPClient:           &http.Client{Timeout: cfg.API.Timeout},
		Logger:               a.log,
		Prompter:             a.con,
		BooksPageSize:        cfg.Paging.Books,
		UsersPageSize:        cfg.Paging.Users,
		TransactionsPageSize: cfg.Paging.Transactions,
	})
	if err != nil {
		return fmt.Errorf("error opening session database: %w", err)
	}
	a.cfg, a.mgr = cfg, mgr
	return nil
}

func (a *app) close() {
	if a.mgr != nil {
		a.mgr.Close()
	}
	a.log.Close()
}

// session returns the logged-in account or ErrUnauthenticated.
func (a *app) session() (*library.Session, error) {
	return a.mgr.Session()
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "librarydesk",
		Short:         "Library management client",
		Long:          "librarydesk talks to the library backend: browse and manage books, members and loans.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.open()
		},
	}
	root.PersistentFlags().StringVar(&a.apiURL, "api", "", "backend base URL (overrides LIBRARY_API_URL)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log diagnostics to stderr")

	root.AddCommand(
		newLoginCmd(a),
		newRegisterCmd(a),
		newLogoutCmd(a),
		newWhoamiCmd(a),
		newDashboardCmd(a),
		newBooksCmd(a),
		newBookCmd(a),
		newBorrowCmd(a),
		newReturnCmd(a),
		newTransactionsCmd(a),
		newUsersCmd(a),
		newUserCmd(a),
		newShellCmd(a),
	)
	return root
}

// report prints err the way the user should see it and returns the exit code.
func report(w io.Writer, err error) int {
	var apiErr *library.APIError
	switch {
	case err == nil:
		return 0
	case errors.Is(err, library.ErrCancelled):
		fmt.Fprintln(w, "Cancelled.")
		return 0
	case errors.Is(err, library.ErrUnauthenticated):
		fmt.Fprintln(w, "Session expired, please log in again.")
		fmt.Fprintln(w, "Run 'librarydesk login' to sign in.")
	case errors.Is(err, library.ErrBusy):
		fmt.Fprintln(w, "That action is already in progress.")
	case errors.As(err, &apiErr):
		fmt.Fprintf(w, "Error: %s\n", apiErr.Error())
	default:
		fmt.Fprintf(w, "Error: %v\n", err)
	}
	return 1
}

// warnStale prints the lists a successful change could not refresh.
func (a *app) warnStale() {
	printStaleWarning(a.out, a.mgr.TakeStale())
}

// parseID reads a positive numeric id argument.
func parseID(kind, s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s ID: %s", kind, s)
	}
	return id, nil
}

func main() {
	a := &app{con: newConsole(os.Stdin, os.Stdout), out: os.Stdout}

	err := newRootCmd(a).ExecuteContext(context.Background())
	a.close()
	os.Exit(report(os.Stderr, err))
}
