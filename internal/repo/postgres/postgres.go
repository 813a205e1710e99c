package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/evergogreen/evergogreen/internal/observability"
)

// IsUniqueViolation reports whether err is a postgres unique constraint
// violation (SQLSTATE 23505).
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError

	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func constraintName(err error) string {
	var pgErr *pgconn.PgError

	if errors.As(err, &pgErr) {
		return pgErr.ConstraintName
	}

	return ""
}

// observe routes a store call through the metrics collector when one is
// wired, and is a plain passthrough otherwise (tests, tools).
func observe(obs *observability.Prom, op string, fn func() error) error {
	if obs == nil {
		return fn()
	}

	return obs.ObserveDB(op, fn)
}
