package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"modernc.org/sqlite"
)

// Primary result codes, see https://sqlite.org/rescode.html.
const (
	codeBusy       = 5
	codeLocked     = 6
	codeConstraint = 19
)

// Error satisfies repositories.RepositoryError for the SQLite backend.
type Error struct {
	op          string
	err         error
	notFound    bool
	conflict    bool
	unavailable bool
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %v", e.op, e.err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.err
}

func (e *Error) IsNotFound() bool    { return e != nil && e.notFound }
func (e *Error) IsConflict() bool    { return e != nil && e.conflict }
func (e *Error) IsUnavailable() bool { return e != nil && e.unavailable }

func notFound(op string) error {
	return &Error{op: op, err: sql.ErrNoRows, notFound: true}
}

func wrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var repoErr *Error
	if errors.As(err, &repoErr) {
		return err
	}

	wrapped := &Error{op: op, err: err}
	if errors.Is(err, sql.ErrNoRows) {
		wrapped.notFound = true
		return wrapped
	}
	if errors.Is(err, sql.ErrConnDone) {
		wrapped.unavailable = true
		return wrapped
	}
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() & 0xff {
		case codeConstraint:
			wrapped.conflict = true
		case codeBusy, codeLocked:
			wrapped.unavailable = true
		}
	}
	return wrapped
}
