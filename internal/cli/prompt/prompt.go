// Package prompt asks the operator for values on the terminal.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"
)

// ErrNoInput is returned when input ends before an answer is read.
var ErrNoInput = errors.New("prompt: no input")

// Terminal reads answers from an input stream. On a terminal secrets are
// read without echo and choices use an interactive picker; otherwise every
// answer is one line of input.
type Terminal struct {
	in     io.Reader
	reader *bufio.Reader
	out    io.Writer
	fd     int
	tty    bool
}

// New returns a Terminal over in and out. in is treated as a terminal
// when it is one.
func New(in io.Reader, out io.Writer) *Terminal {
	t := &Terminal{in: in, reader: bufio.NewReader(in), out: out, fd: -1}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		t.fd = int(f.Fd())
		t.tty = true
	}
	return t
}

// Interactive reports whether input comes from a terminal.
func (t *Terminal) Interactive() bool {
	return t.tty
}

// Input asks for a visible value.
func (t *Terminal) Input(label string) (string, error) {
	fmt.Fprintf(t.out, "%s: ", label)
	return t.readLine()
}

// Secret asks for a value without echoing it.
func (t *Terminal) Secret(label string) (string, error) {
	fmt.Fprintf(t.out, "%s: ", label)
	if !t.tty {
		return t.readLine()
	}
	b, err := term.ReadPassword(t.fd)
	fmt.Fprintln(t.out)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", strings.ToLower(label), err)
	}
	return string(b), nil
}

// Confirm asks a yes/no question. Anything but y or yes is no.
func (t *Terminal) Confirm(label string) (bool, error) {
	fmt.Fprintf(t.out, "%s [y/N]: ", label)
	answer, err := t.readLine()
	if err != nil {
		return false, err
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

// Choice is one option offered by Select.
type Choice struct {
	Value  string
	Detail string
}

// Select asks the operator to pick one of choices and returns its Value.
func (t *Terminal) Select(title string, choices []Choice) (string, error) {
	if len(choices) == 0 {
		return "", fmt.Errorf("%s: nothing to choose from", title)
	}
	if t.tty {
		return runPicker(title, choices, t.in, t.out)
	}

	fmt.Fprintln(t.out, title)
	for i, c := range choices {
		if c.Detail != "" {
			fmt.Fprintf(t.out, "  %d) %s  %s\n", i+1, c.Value, c.Detail)
		} else {
			fmt.Fprintf(t.out, "  %d) %s\n", i+1, c.Value)
		}
	}
	fmt.Fprint(t.out, "Choice: ")
	answer, err := t.readLine()
	if err != nil {
		return "", err
	}
	return matchChoice(answer, choices)
}

// matchChoice accepts a 1-based index or an exact value.
func matchChoice(answer string, choices []Choice) (string, error) {
	if n, err := strconv.Atoi(answer); err == nil {
		if n < 1 || n > len(choices) {
			return "", fmt.Errorf("choice %d is out of range 1-%d", n, len(choices))
		}
		return choices[n-1].Value, nil
	}
	for _, c := range choices {
		if c.Value == answer {
			return c.Value, nil
		}
	}
	return "", fmt.Errorf("%q is not one of the choices", answer)
}

func (t *Terminal) readLine() (string, error) {
	line, err := t.reader.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		if errors.Is(err, io.EOF) {
			return "", ErrNoInput
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
