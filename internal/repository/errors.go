package repository

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound is returned when no row matched, including conditional
	// updates whose predicate did not hold.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique constraint rejected the write.
	ErrDuplicate = errors.New("duplicate record")
)

const (
	uniqueViolation           = "23505"
	invalidTextRepresentation = "22P02"
)

func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolation:
			return fmt.Errorf("%w: %s", ErrDuplicate, pgErr.ConstraintName)
		case invalidTextRepresentation:
			// A malformed uuid cannot name any row.
			return fmt.Errorf("%w: %s", ErrNotFound, pgErr.Message)
		}
	}
	return err
}

// listError treats a malformed filter id as an empty result.
func listError(err error) error {
	err = translateError(err)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}
