// Package repository defines error types that are reused across multiple
// repositories.  These sentinel values allow higher layers such as the
// auth service and handlers to distinguish between failure scenarios
// without inspecting driver errors.
package repository

import (
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when a lookup matches no row.  Handlers
// translate it into 401 for sessions and 404 for profiles.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert violates a unique key, such
// as two concurrent first logins creating the same profile.
var ErrDuplicate = errors.New("duplicate key")

// mysqlDuplicateEntry is the server error number for a unique key violation.
const mysqlDuplicateEntry = 1062

// translate maps driver errors onto the sentinels above.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) && me.Number == mysqlDuplicateEntry {
		return ErrDuplicate
	}
	return err
}
