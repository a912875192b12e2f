package pg

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrInvalidConfig     = errors.New("invalid postgres configuration")
	ErrConnectionFailed  = errors.New("failed to connect to postgres")
	ErrHealthcheckFailed = errors.New("postgres healthcheck failed")
	ErrMigrationFailed   = errors.New("failed to apply migrations")
)

// IsNotFound reports whether err is pgx's no-rows result.
func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// IsUniqueViolation reports a unique constraint violation (SQLSTATE 23505).
// The billing store uses it to detect a lost supersession race.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// IsForeignKeyViolation reports a referential integrity violation (SQLSTATE 23503).
func IsForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
