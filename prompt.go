package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"syscall"

	"library-client/library"

	"golang.org/x/term"
)

// console is the interactive side of the CLI: yes/no confirmations, free-text
// answers and masked passwords, all read from one scanner.
type console struct {
	sc  *bufio.Scanner
	out io.Writer
	// tty is true when stdin is a terminal and passwords can be masked.
	tty bool
}

func newConsole(in io.Reader, out io.Writer) *console {
	return &console{
		sc:  bufio.NewScanner(in),
		out: out,
		tty: term.IsTerminal(int(syscall.Stdin)),
	}
}

// readLine returns the next trimmed line; end of input cancels the prompt.
func (c *console) readLine() (string, error) {
	line, err := c.readRawLine()
	return strings.TrimSpace(line), err
}

// readRawLine returns the next line without its terminator, spaces kept.
func (c *console) readRawLine() (string, error) {
	if !c.sc.Scan() {
		if err := c.sc.Err(); err != nil {
			return "", err
		}
		return "", library.ErrCancelled
	}
	return strings.TrimSuffix(c.sc.Text(), "\r"), nil
}

func (c *console) Confirm(prompt string) (bool, error) {
	fmt.Fprintf(c.out, "%s [y/N]: ", prompt)
	answer, err := c.readLine()
	if err != nil {
		return false, err
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

func (c *console) Ask(prompt string) (string, error) {
	fmt.Fprintf(c.out, "%s: ", prompt)
	return c.readLine()
}

// askDefault shows the current value and keeps it when the answer is empty.
func (c *console) askDefault(prompt, current string) (string, error) {
	if current != "" {
		prompt = fmt.Sprintf("%s [%s]", prompt, current)
	}
	answer, err := c.Ask(prompt)
	if err != nil || answer == "" {
		return current, err
	}
	return answer, nil
}

// askInt reads a whole number, keeping current on an empty answer.
func (c *console) askInt(prompt string, current int) (int, error) {
	def := ""
	if current != 0 {
		def = strconv.Itoa(current)
	}
	for {
		answer, err := c.askDefault(prompt, def)
		if err != nil {
			return 0, err
		}
		if answer == "" {
			return 0, nil
		}
		n, err := strconv.Atoi(answer)
		if err == nil {
			return n, nil
		}
		fmt.Fprintf(c.out, "Please enter a number, got %q.\n", answer)
	}
}

// readPassword securely reads a password with masking. Piped input is read
// as a plain line. Surrounding spaces belong to the password.
func (c *console) readPassword(prompt string) (string, error) {
	fmt.Fprint(c.out, prompt)
	if !c.tty {
		return c.readRawLine()
	}
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		return "", err
	}
	fmt.Fprintln(c.out) // Add newline after password input
	return strings.TrimSuffix(string(bytePassword), "\r"), nil
}
