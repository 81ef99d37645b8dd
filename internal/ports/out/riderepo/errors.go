package riderepo

import "errors"

var (
	// ErrNotFound indicates the requested ride does not exist.
	ErrNotFound = errors.New("ride not found")

	// ErrAlreadyExists indicates a ride already exists with the provided ID.
	ErrAlreadyExists = errors.New("ride already exists")

	// ErrRiderExists indicates the user is already on the ride.
	ErrRiderExists = errors.New("rider already on ride")

	// ErrRiderNotFound indicates the user is not on the ride.
	ErrRiderNotFound = errors.New("rider not on ride")
)
