// Package cli is the driving adapter for the terminal. Dispatch maps a
// Command onto the vault service; Shell owns all prompting and printing.
package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/ericfisherdev/credvault/internal/domain/model"
)

// ErrUnknownCommand is returned for a menu choice or command name the CLI
// does not recognize. It never reaches the vault service.
var ErrUnknownCommand = errors.New("unknown command")

// Vault is the subset of application.VaultService the CLI drives.
type Vault interface {
	Register(ctx context.Context, cred model.Credential) (int64, error)
	Search(ctx context.Context, application string) (model.Listing, error)
	List(ctx context.Context) (model.Listing, error)
	Delete(ctx context.Context, application string) (int64, error)
}

// Command is a request to the vault. Implemented by Register, Search, List
// and Delete.
type Command interface {
	command()
}

// Register stores a new credential.
type Register struct {
	Credential model.Credential
}

// Search finds credentials by application name.
type Search struct {
	Application string
}

// List returns every credential.
type List struct{}

// Delete removes credentials by application name.
type Delete struct {
	Application string
}

func (Register) command() {}
func (Search) command()   {}
func (List) command()     {}
func (Delete) command()   {}

// Result is the outcome of a dispatched command. Only the fields relevant to
// the command are set.
type Result struct {
	ID      int64
	Listing model.Listing
	Deleted int64
}

// Dispatch executes cmd against v.
func Dispatch(ctx context.Context, v Vault, cmd Command) (Result, error) {
	switch c := cmd.(type) {
	case Register:
		id, err := v.Register(ctx, c.Credential)
		if err != nil {
			return Result{}, err
		}
		return Result{ID: id}, nil
	case Search:
		listing, err := v.Search(ctx, c.Application)
		if err != nil {
			return Result{}, err
		}
		return Result{Listing: listing}, nil
	case List:
		listing, err := v.List(ctx)
		if err != nil {
			return Result{}, err
		}
		return Result{Listing: listing}, nil
	case Delete:
		n, err := v.Delete(ctx, c.Application)
		if err != nil {
			return Result{}, err
		}
		return Result{Deleted: n}, nil
	default:
		return Result{}, fmt.Errorf("%w: %T", ErrUnknownCommand, cmd)
	}
}
