package meta

import "errors"

// ErrNotFound is wrapped by lookup helpers across the engines.
var ErrNotFound = errors.New("not found")
