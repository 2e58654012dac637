package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
	"unicode"

	"library-client/library"

	"github.com/spf13/cobra"
)

// listKind is the list the shell last printed.
type listKind int

const (
	listNone listKind = iota
	listBooks
	listUsers
	listTransactions
)

// showList reprints the current page of the last list without refetching.
func (a *app) showList() error {
	sess, err := a.session()
	if err != nil {
		return err
	}
	switch a.last {
	case listBooks:
		printBooks(a.out, a.mgr.Books, sess.User.Role)
	case listUsers:
		printUsers(a.out, a.mgr.Users)
	case listTransactions:
		printTransactions(a.out, a.mgr.Transactions, sess.User.Role, time.Now())
	default:
		return errors.New("no list shown yet; try 'books', 'users' or 'transactions'")
	}
	return nil
}

// turnPage moves the last list to the page next returns.
func (a *app) turnPage(next func(current int) int) error {
	switch a.last {
	case listBooks:
		a.mgr.Books.GoToPage(next(a.mgr.Books.Page()))
	case listUsers:
		a.mgr.Users.GoToPage(next(a.mgr.Users.Page()))
	case listTransactions:
		a.mgr.Transactions.GoToPage(next(a.mgr.Transactions.Page()))
	}
	return a.showList()
}

func newShellCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Interactive session that keeps list pages between commands",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runShell(cmd.Context())
		},
	}
}

func printShellHelp(w io.Writer) {
	fmt.Fprintln(w, "Available commands:")
	fmt.Fprintln(w, "  Account: login, register, logout, whoami, dashboard")
	fmt.Fprintln(w, "  Books: books [--search q] [--category c] [--status s], book show|add|edit|delete")
	fmt.Fprintln(w, "  Loans: transactions [--status s] [--window w], borrow <book-id>, return <book-id>")
	fmt.Fprintln(w, "  Users: users [--search q] [--role r], user edit|role|delete <id>")
	fmt.Fprintln(w, "  Paging: next, prev, page <n>")
	fmt.Fprintln(w, "  System: help, exit")
}

func (a *app) runShell(ctx context.Context) error {
	fmt.Fprintln(a.out, "Welcome to the Library Management System!")
	printShellHelp(a.out)

	for ctx.Err() == nil {
		fmt.Fprint(a.out, "\n> ")
		line, err := a.con.readLine()
		if errors.Is(err, library.ErrCancelled) {
			fmt.Fprintln(a.out)
			return nil
		}
		if err != nil {
			return err
		}
		args, err := splitArgs(line)
		if err != nil {
			fmt.Fprintf(a.out, "Error: %v\n", err)
			continue
		}
		if len(args) == 0 {
			continue
		}

		switch args[0] {
		case "exit", "quit":
			fmt.Fprintln(a.out, "Goodbye!")
			return nil
		case "help":
			printShellHelp(a.out)
		case "shell":
			fmt.Fprintln(a.out, "Already in the shell.")
		case "next":
			err = a.turnPage(func(p int) int { return p + 1 })
		case "prev":
			err = a.turnPage(func(p int) int { return p - 1 })
		case "page":
			err = a.handlePage(args[1:])
		default:
			err = a.dispatch(ctx, args)
		}
		report(a.out, err)
	}
	return nil
}

func (a *app) handlePage(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: page <n>")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid page: %s", args[0])
	}
	return a.turnPage(func(int) int { return n })
}

// dispatch runs one command line through a fresh command tree sharing a.
func (a *app) dispatch(ctx context.Context, args []string) error {
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(a.out)
	root.SetErr(a.out)
	return root.ExecuteContext(ctx)
}

// splitArgs splits a command line on spaces, honouring single and double quotes.
func splitArgs(line string) ([]string, error) {
	var (
		args  []string
		cur   strings.Builder
		quote rune
		inArg bool
	)
	for _, r := range line {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				cur.WriteRune(r)
			}
		case r == '"' || r == '\'':
			quote = r
			inArg = true
		case unicode.IsSpace(r):
			if inArg {
				args = append(args, cur.String())
				cur.Reset()
				inArg = false
			}
		default:
			cur.WriteRune(r)
			inArg = true
		}
	}
	if quote != 0 {
		return nil, fmt.Errorf("unterminated %c quote", quote)
	}
	if inArg {
		args = append(args, cur.String())
	}
	return args, nil
}
