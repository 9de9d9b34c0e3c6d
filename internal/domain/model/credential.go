package model

import "time"

// Credential is one stored secret entry. Application is the lookup key and is
// not unique: several credentials may share it. Secret holds plaintext in
// memory only; the store persists it through the cipher.
type Credential struct {
	ID          int64
	Application string
	Username    string
	Email       string
	Secret      string
	Note        *string
	CreatedAt   time.Time
}

// HasNote reports whether a non-empty note is attached.
func (c Credential) HasNote() bool {
	return c.Note != nil && *c.Note != ""
}

// RecordFailure describes a stored credential whose secret could not be
// recovered. It carries only the non-secret columns of the row.
type RecordFailure struct {
	ID          int64
	Application string
	Username    string
	Email       string
	Err         error
}

// Listing is the result of a multi-record read. A row whose secret fails to
// decrypt is reported in Failures and does not hide the remaining Records.
type Listing struct {
	Records  []Credential
	Failures []RecordFailure
}

// Empty reports whether neither records nor failures were returned.
func (l Listing) Empty() bool {
	return len(l.Records) == 0 && len(l.Failures) == 0
}
