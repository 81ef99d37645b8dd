package reminderjob

import "errors"

var (
	// ErrNotFound indicates no job exists for the ride.
	ErrNotFound = errors.New("reminder job not found")

	// ErrAlreadyExists indicates a job already exists for the ride.
	ErrAlreadyExists = errors.New("reminder job already exists")
)
