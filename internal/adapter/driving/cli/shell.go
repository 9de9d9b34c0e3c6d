package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/ericfisherdev/credvault/internal/domain/model"
)

// Shell is the interactive menu loop.
type Shell struct {
	vault  Vault
	prompt *Prompter
	out    io.Writer
}

// NewShell creates a Shell reading through prompt and printing to out.
func NewShell(vault Vault, prompt *Prompter, out io.Writer) *Shell {
	return &Shell{vault: vault, prompt: prompt, out: out}
}

// Run shows the menu until the operator exits, input ends or ctx is done.
// Cancelling ctx ends a pending prompt without waiting for input. Failed
// operations are reported and the loop continues.
func (s *Shell) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		s.printMenu()
		line, err := s.line(ctx, "Choose an option: ")
		if errors.Is(err, io.EOF) || ctx.Err() != nil {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read menu choice: %w", err)
		}

		choice, err := ParseChoice(line)
		if err != nil {
			fmt.Fprintln(s.out, "Invalid option!")
			continue
		}
		if choice == ChoiceExit {
			return nil
		}

		cmd, err := s.readCommand(ctx, choice)
		if errors.Is(err, io.EOF) || ctx.Err() != nil {
			return nil
		}
		if err != nil {
			return err
		}

		res, err := Dispatch(ctx, s.vault, cmd)
		if err != nil {
			RenderError(s.out, err)
			continue
		}
		s.render(cmd, res)
	}
}

func (s *Shell) printMenu() {
	fmt.Fprintln(s.out)
	fmt.Fprintln(s.out, "Credential vault:")
	for c := ChoiceRegister; c <= ChoiceExit; c++ {
		fmt.Fprintf(s.out, "%d - %s\n", c, c.Label())
	}
}

// line reads one answer in the background so that a cancelled ctx does not
// wait for the operator to press Enter. The abandoned read ends with the
// process.
func (s *Shell) line(ctx context.Context, prompt string) (string, error) {
	return await(ctx, func() (string, error) { return s.prompt.Line(prompt) })
}

func (s *Shell) secret(ctx context.Context, prompt string) (string, error) {
	return await(ctx, func() (string, error) { return s.prompt.Secret(prompt) })
}

func await(ctx context.Context, read func() (string, error)) (string, error) {
	type answer struct {
		text string
		err  error
	}
	done := make(chan answer, 1)
	go func() {
		text, err := read()
		done <- answer{text, err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case a := <-done:
		return a.text, a.err
	}
}

func (s *Shell) readCommand(ctx context.Context, choice MenuChoice) (Command, error) {
	switch choice {
	case ChoiceRegister:
		fmt.Fprintln(s.out, "\nRegister credential:")
		return s.readRegister(ctx)
	case ChoiceSearch:
		app, err := s.line(ctx, "Application name: ")
		if err != nil {
			return nil, err
		}
		return Search{Application: app}, nil
	case ChoiceList:
		return List{}, nil
	case ChoiceDelete:
		app, err := s.line(ctx, "Application name to delete: ")
		if err != nil {
			return nil, err
		}
		return Delete{Application: app}, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownCommand, choice)
	}
}

func (s *Shell) readRegister(ctx context.Context) (Command, error) {
	var cred model.Credential
	var err error

	if cred.Application, err = s.line(ctx, "Application: "); err != nil {
		return nil, err
	}
	if cred.Username, err = s.line(ctx, "Username: "); err != nil {
		return nil, err
	}
	if cred.Email, err = s.line(ctx, "Email: "); err != nil {
		return nil, err
	}
	if cred.Secret, err = s.secret(ctx, "Password: "); err != nil {
		return nil, err
	}
	note, err := s.line(ctx, "Note (optional): ")
	if err != nil {
		return nil, err
	}
	cred.Note = &note

	return Register{Credential: cred}, nil
}

func (s *Shell) render(cmd Command, res Result) {
	switch c := cmd.(type) {
	case Register:
		RenderRegistered(s.out, res.ID)
	case Search:
		RenderListing(s.out, res.Listing, "No credential found.")
	case List:
		RenderListing(s.out, res.Listing, "No credentials stored.")
	case Delete:
		RenderDeleted(s.out, c.Application, res.Deleted)
	}
}
