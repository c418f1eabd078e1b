package domain

import "errors"

// Sentinel errors shared across components. Wrap with fmt.Errorf and
// %w; callers match with errors.Is.
var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)
