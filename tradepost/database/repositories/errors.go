package repositories

import "errors"

// ErrNotFound is returned when a requested entity does not exist. Callers
// classify it with errors.Is; the raw message never reaches clients.
var ErrNotFound = errors.New("not found")
