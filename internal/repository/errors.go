package repository

import "errors"

// Common repository errors
var (
	// ErrNotFound is returned when a referenced event or runner does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateStartNo is returned when a write would give two runners of
	// the same event the same start number.
	ErrDuplicateStartNo = errors.New("start number already taken")
	// ErrTxConflict is returned when a transaction lost a serialization or
	// deadlock race. The operation may be retried.
	ErrTxConflict = errors.New("transaction conflict")
)
