package cli

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/ericfisherdev/credvault/internal/domain/model"
)

var (
	labelColor   = color.New(color.FgCyan)
	successColor = color.New(color.FgGreen)
	warnColor    = color.New(color.FgYellow)
	errorColor   = color.New(color.FgRed)
)

// RenderListing prints every record and an inline line per unrecoverable
// record. empty is printed when nothing matched.
func RenderListing(w io.Writer, listing model.Listing, empty string) {
	if listing.Empty() {
		fmt.Fprintln(w, empty)
		return
	}

	for _, rec := range listing.Records {
		fmt.Fprintln(w)
		field(w, "ID", fmt.Sprint(rec.ID))
		field(w, "Application", rec.Application)
		field(w, "Username", rec.Username)
		field(w, "Email", rec.Email)
		field(w, "Secret", rec.Secret)
		if rec.HasNote() {
			field(w, "Note", *rec.Note)
		} else {
			field(w, "Note", "none")
		}
	}

	for _, f := range listing.Failures {
		fmt.Fprintln(w)
		warnColor.Fprintf(w, "Record %d (%s / %s / %s) could not be decrypted: %v\n",
			f.ID, f.Application, f.Username, f.Email, f.Err)
	}
}

// RenderRegistered prints the id of a new credential.
func RenderRegistered(w io.Writer, id int64) {
	successColor.Fprintf(w, "Credential saved (id %d).\n", id)
}

// RenderDeleted prints how many credentials were removed.
func RenderDeleted(w io.Writer, application string, n int64) {
	if n == 0 {
		fmt.Fprintf(w, "No credentials found for %q.\n", application)
		return
	}
	successColor.Fprintf(w, "Deleted %d credential(s) for %q.\n", n, application)
}

// RenderError prints an operation failure.
func RenderError(w io.Writer, err error) {
	errorColor.Fprintf(w, "Error: %v\n", err)
}

func field(w io.Writer, label, value string) {
	labelColor.Fprintf(w, "%-14s", label+":")
	fmt.Fprintln(w, value)
}
