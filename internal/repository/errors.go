// Package repository implements the persistent store over database/sql.
// Repositories return ErrNotFound for missing rows; services translate that
// into the appropriate domain error so raw store errors never reach a
// client. Unique-constraint violations on users are translated here, because
// only the repository knows which index was hit.
package repository

import "errors"

// ErrNotFound is returned when a queried row does not exist. It replaces
// sql.ErrNoRows at the repository boundary.
var ErrNotFound = errors.New("not found")
