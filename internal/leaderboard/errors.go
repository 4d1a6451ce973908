package leaderboard

import (
	"errors"
	"fmt"
)

// ErrNoData is returned by Resolver.Run when every source was exhausted
// without producing a single entry, nothing should be written in that case.
var ErrNoData = errors.New("no source produced any leaderboard entries")

// AuthError is returned when the bearer token could not be acquired.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("acquire token: %v", e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// AdapterFailure describes a source (or one of its candidates/pages) that
// produced nothing, it is recovered from by trying the next candidate or source.
type AdapterFailure struct {
	Source    string
	Candidate string
	Err       error
}

func (e *AdapterFailure) Error() string {
	if e.Candidate != "" {
		return fmt.Sprintf("source %s (%s): %v", e.Source, e.Candidate, e.Err)
	}
	return fmt.Sprintf("source %s: %v", e.Source, e.Err)
}

func (e *AdapterFailure) Unwrap() error {
	return e.Err
}

// EnrichmentError describes a failed per-user detail lookup, the entry it
// belongs to is dropped from the result.
type EnrichmentError struct {
	UserID int64
	Err    error
}

func (e *EnrichmentError) Error() string {
	return fmt.Sprintf("enrich user %d: %v", e.UserID, e.Err)
}

func (e *EnrichmentError) Unwrap() error {
	return e.Err
}

// errEmpty is the cause of an AdapterFailure when a source answered but
// yielded zero usable records.
var errEmpty = errors.New("zero usable records")
