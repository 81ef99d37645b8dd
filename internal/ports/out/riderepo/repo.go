package riderepo

import (
	"context"
	"time"

	"github.com/rice-apps/carpool-backend/internal/domain"
)

// Ride is the persistence shape used by the ride repository.
type Ride struct {
	ID domain.RideID

	DepartingAt   time.Time
	DepartingFrom string
	ArrivingAt    string

	// NumberRiders is the advisory capacity entered by the creator.
	NumberRiders int
	Comments     string

	// RiderIDs is the ordered rider membership, unique by user id. A
	// persisted ride always has at least one rider; the lifecycle service
	// deletes rides that would otherwise reach zero.
	RiderIDs []domain.UserID

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Repository provides access to persisted rides.
//
// AddRider and RemoveRider are the only membership mutations. They must be
// atomic with respect to concurrent callers: two simultaneous AddRider calls
// for the same user yield exactly one membership and one ErrRiderExists.
//
// Result ordering expectations:
// - List methods return rides ordered by departure time ascending, ties
//   broken by ID, to keep behavior deterministic.
// - RiderIDs preserves booking order.
type Repository interface {
	Create(ctx context.Context, r Ride) error

	GetByID(ctx context.Context, id domain.RideID) (Ride, error)

	// AddRider appends the user to the ride's membership. Returns the
	// updated ride, ErrNotFound if the ride does not exist, or
	// ErrRiderExists if the user is already on the ride.
	AddRider(ctx context.Context, id domain.RideID, userID domain.UserID) (Ride, error)

	// RemoveRider removes the user from the ride's membership. Returns the
	// updated ride (which may have zero riders; the caller is expected to
	// delete it), ErrNotFound if the ride does not exist, or
	// ErrRiderNotFound if the user is not on the ride.
	RemoveRider(ctx context.Context, id domain.RideID, userID domain.UserID) (Ride, error)

	// Delete removes the ride. Deleting a ride that does not exist is a
	// no-op, not an error.
	Delete(ctx context.Context, id domain.RideID) error

	List(ctx context.Context) ([]Ride, error)

	// ListDepartingBefore returns rides with DepartingAt < t.
	ListDepartingBefore(ctx context.Context, t time.Time) ([]Ride, error)

	// ListDepartingAtOrAfter returns rides with DepartingAt >= t.
	ListDepartingAtOrAfter(ctx context.Context, t time.Time) ([]Ride, error)

	// ListForRider returns all rides whose membership includes the user.
	ListForRider(ctx context.Context, userID domain.UserID) ([]Ride, error)
}
