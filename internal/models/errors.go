package models

import "errors"

// ErrEmptyCollection is returned when a search has nothing to search over.
var ErrEmptyCollection = errors.New("vector collection is empty")
