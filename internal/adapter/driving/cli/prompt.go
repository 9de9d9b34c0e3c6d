package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Prompter reads answers from the operator. Secret input is not echoed when
// the input is a terminal.
type Prompter struct {
	in  *bufio.Reader
	out io.Writer
	fd  int
	tty bool
}

// NewPrompter reads from in and writes prompts to out. Secret input uses
// x/term when in is a terminal *os.File.
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	p := &Prompter{in: bufio.NewReader(in), out: out, fd: -1}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		p.fd = int(f.Fd())
		p.tty = true
	}
	return p
}

// Line prints prompt and returns the next input line without its line
// ending. io.EOF is returned only when no input remains at all.
func (p *Prompter) Line(prompt string) (string, error) {
	fmt.Fprint(p.out, prompt)
	line, err := p.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// Secret prints prompt and reads a line without echo on a terminal.
func (p *Prompter) Secret(prompt string) (string, error) {
	if !p.tty {
		return p.Line(prompt)
	}

	fmt.Fprint(p.out, prompt)
	b, err := term.ReadPassword(p.fd)
	fmt.Fprintln(p.out) // Add newline after hidden input
	if err != nil {
		return "", fmt.Errorf("read hidden input: %w", err)
	}
	return string(b), nil
}

// PromptAdminPassword asks for the administrator password, twice on a
// terminal so a typo is not stored.
func (p *Prompter) PromptAdminPassword(_ context.Context) (string, error) {
	fmt.Fprintln(p.out, "Admin user setup")
	pw, err := p.Secret("Admin password: ")
	if err != nil {
		return "", err
	}
	if p.tty {
		again, err := p.Secret("Repeat admin password: ")
		if err != nil {
			return "", err
		}
		if again != pw {
			return "", errors.New("passwords do not match")
		}
	}
	return pw, nil
}

// Passphrase asks for the vault passphrase as bytes for key derivation.
func (p *Prompter) Passphrase() ([]byte, error) {
	s, err := p.Secret("Vault passphrase: ")
	if err != nil {
		return nil, err
	}
	return []byte(s), nil
}
