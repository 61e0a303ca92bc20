// package repositories provides persistence layer implementations for resolution records.
package repositories

import (
	"database/sql"
	"time"
)

// nullString maps "" to NULL.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// nullInt64 maps non-positive values to NULL.
func nullInt64(n int64) sql.NullInt64 {
	return sql.NullInt64{Int64: n, Valid: n > 0}
}

// now is the clock used for timestamps; tests replace it.
var now = func() time.Time {
	return time.Now().UTC()
}
