package settings

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Prompter asks the operator for missing values.
type Prompter interface {
	// Ask shows label and returns the answer, or fallback when the answer is empty.
	Ask(label, fallback string) (string, error)
	// AskSecret reads an answer without echoing it.
	AskSecret(label string) (string, error)
	// Reject tells the operator why the last answer was not accepted.
	Reject(reason string)
}

// TerminalPrompter prompts on a line-oriented stream. Secrets are read with
// echo disabled when in is a terminal.
type TerminalPrompter struct {
	in     *bufio.Reader
	out    io.Writer
	fd     int
	isTerm bool
}

// NewTerminalPrompter prompts on out and reads answers from in.
func NewTerminalPrompter(in io.Reader, out io.Writer) *TerminalPrompter {
	p := &TerminalPrompter{in: bufio.NewReader(in), out: out}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		p.fd = int(f.Fd())
		p.isTerm = true
	}
	return p
}

func (p *TerminalPrompter) Ask(label, fallback string) (string, error) {
	if fallback != "" {
		fmt.Fprintf(p.out, "%s (%s): ", label, fallback)
	} else {
		fmt.Fprintf(p.out, "%s: ", label)
	}
	line, err := p.readLine()
	if err != nil {
		return "", err
	}
	if line == "" {
		return fallback, nil
	}
	return line, nil
}

func (p *TerminalPrompter) AskSecret(label string) (string, error) {
	fmt.Fprintf(p.out, "%s: ", label)
	if !p.isTerm {
		return p.readLine()
	}
	secret, err := term.ReadPassword(p.fd)
	fmt.Fprintln(p.out)
	if err != nil {
		return "", err
	}
	return string(secret), nil
}

func (p *TerminalPrompter) Reject(reason string) {
	fmt.Fprintf(p.out, "  %s\n", reason)
}

func (p *TerminalPrompter) readLine() (string, error) {
	line, err := p.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
