package driven

import (
	"context"
	"errors"
)

// ErrLayoutMismatch is returned by MigrateLayout when the recorded IV layout
// is not the layout the migration reads from.
var ErrLayoutMismatch = errors.New("stored iv layout mismatch")

// LayoutStore records which IV layout the stored secrets are written in and
// moves the whole vault from one layout to another.
type LayoutStore interface {
	// IVLayout returns the recorded layout, or "" when none is recorded.
	IVLayout(ctx context.Context) (string, error)

	// RecordIVLayout records layout unless one is already recorded and
	// returns the layout in effect afterwards.
	RecordIVLayout(ctx context.Context, layout string) (string, error)

	// MigrateLayout rewrites every credential secret and the admin secret,
	// reading with from and writing with the store's own cipher, and records
	// toLayout. It runs in one transaction. Unless the recorded layout is
	// fromLayout (or nothing is recorded) it fails with ErrLayoutMismatch and
	// changes nothing. Returns the number of credentials rewritten.
	MigrateLayout(ctx context.Context, from SecretCipher, fromLayout, toLayout string) (int, error)
}
