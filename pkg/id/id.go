// Package id generates the identifiers used for documents, chunks and subjects.
//
// Identifiers are ULIDs: 26 characters, lexicographically sortable by creation time.
package id

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// NewULID returns a new ULID string. Safe for concurrent use; IDs generated
// within the same millisecond are monotonic.
func NewULID() string {
	return ulid.Make().String()
}

// IsValidULID reports whether s is a well-formed ULID.
func IsValidULID(s string) bool {
	_, err := ulid.ParseStrict(s)
	return err == nil
}

// ULIDTime returns the creation time encoded in s.
func ULIDTime(s string) (time.Time, error) {
	u, err := ulid.ParseStrict(s)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(u.Time()), nil
}
