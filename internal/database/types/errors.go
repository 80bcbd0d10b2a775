package types

import "errors"

// ErrRecordNotFound is returned when a looked up row does not exist.
var ErrRecordNotFound = errors.New("record not found")
