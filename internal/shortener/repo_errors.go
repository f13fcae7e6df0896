package shortener

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	destinationConstraint = "links_destination_url_key"
	codeConstraint        = "links_short_code_key"
)

// uniqueViolation reports whether err is a PostgreSQL unique-constraint
// violation (SQLSTATE 23505) on the named constraint.
func uniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "23505" && pgErr.ConstraintName == constraint
}
