package repository

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestTranslateError(t *testing.T) {
	plain := errors.New("connection reset")
	cases := []struct {
		name string
		in   error
		want error
	}{
		{name: "nil", in: nil, want: nil},
		{name: "no rows", in: pgx.ErrNoRows, want: ErrNotFound},
		{name: "wrapped no rows", in: fmt.Errorf("scan: %w", pgx.ErrNoRows), want: ErrNotFound},
		{name: "unique violation", in: &pgconn.PgError{Code: "23505", ConstraintName: "tickets_one_active"}, want: ErrDuplicate},
		{name: "malformed uuid", in: &pgconn.PgError{Code: "22P02", Message: `invalid input syntax for type uuid: "abc"`}, want: ErrNotFound},
		{name: "other pg error", in: &pgconn.PgError{Code: "40001"}, want: nil},
		{name: "plain error", in: plain, want: plain},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := translateError(tc.in)
			switch {
			case tc.in == nil:
				if got != nil {
					t.Fatalf("expected nil, got %v", got)
				}
			case tc.want == nil:
				if errors.Is(got, ErrNotFound) || errors.Is(got, ErrDuplicate) {
					t.Fatalf("expected passthrough, got %v", got)
				}
			default:
				if !errors.Is(got, tc.want) {
					t.Fatalf("expected %v, got %v", tc.want, got)
				}
			}
		})
	}
}

func TestListErrorTreatsMalformedIDAsEmpty(t *testing.T) {
	if err := listError(&pgconn.PgError{Code: "22P02"}); err != nil {
		t.Fatalf("expected nil for malformed id, got %v", err)
	}
	if err := listError(nil); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	dup := listError(&pgconn.PgError{Code: "23505"})
	if !errors.Is(dup, ErrDuplicate) {
		t.Fatalf("expected duplicate to pass through, got %v", dup)
	}
}
