package store

import "errors"

// ErrNilSwitch indicates a nil record was passed to the store.
var ErrNilSwitch = errors.New("store: nil switch")
