package store

import "errors"

// ErrNotFound indicates a requested signal does not exist.
var ErrNotFound = errors.New("store: not found")
