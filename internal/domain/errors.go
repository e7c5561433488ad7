package domain

import "errors"

// ErrEmptyQuery is returned when a search is requested with a blank term.
var ErrEmptyQuery = errors.New("search query is empty")
