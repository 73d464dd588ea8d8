package models

import "errors"

var (
	// ErrNotFound is returned by repositories when a row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrTaskFull is returned when every volunteer slot is taken.
	ErrTaskFull = errors.New("task is fully booked")
	// ErrAlreadySignedUp is returned when a status already exists for the pair.
	ErrAlreadySignedUp = errors.New("already signed up for this task")
)
