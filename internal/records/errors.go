package records

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound marks tables outside the allow-list or absent from the store.
	ErrNotFound = errors.New("records: not found")
	// ErrInvalidAction marks an action other than add, update or delete.
	ErrInvalidAction = errors.New("records: invalid action")
	// ErrRejected marks permanent store rejections such as constraint violations or
	// values the column type cannot hold.
	ErrRejected = errors.New("records: rejected by store")
	// ErrUnavailable marks transient store failures worth retrying.
	ErrUnavailable = errors.New("records: store unavailable")
)

// StoreError wraps a driver error with the operation and table it came from.
type StoreError struct {
	Op    string
	Table string
	Kind  error
	Err   error
}

func (e *StoreError) Error() string {
	if e.Kind != nil {
		return fmt.Sprintf("records: %s %s: %v: %v", e.Op, e.Table, e.Kind, e.Err)
	}
	return fmt.Sprintf("records: %s %s: %v", e.Op, e.Table, e.Err)
}

// Unwrap exposes both the classification sentinel and the driver error.
func (e *StoreError) Unwrap() []error {
	if e.Kind != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Err}
}

// IsTransient reports whether err is a store failure that may succeed on retry.
func IsTransient(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

func storeError(op string, table Table, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Table: table.Name, Kind: classify(err), Err: err}
}

func classify(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && len(pgErr.Code) == 5 {
		switch {
		case pgErr.Code == "42P01":
			return ErrNotFound
		case pgErr.Code == "57014", strings.HasPrefix(pgErr.Code, "57P0"):
			return ErrUnavailable
		}
		switch pgErr.Code[:2] {
		case "08", "40", "53":
			return ErrUnavailable
		case "22", "23", "42":
			return ErrRejected
		}
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err) || pgconn.SafeToRetry(err) {
		return ErrUnavailable
	}
	return nil
}
