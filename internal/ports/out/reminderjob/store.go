package reminderjob

import (
	"context"
	"time"

	"github.com/rice-apps/carpool-backend/internal/domain"
)

// Job is a deferred departure reminder. At most one live job exists per
// ride; the ride id is the key.
type Job struct {
	RideID domain.RideID

	// FireAt is when the reminder should be delivered (departure - 24h).
	FireAt time.Time

	// Recipients is the set of rider emails the reminder goes to. The ride
	// lifecycle keeps it in sync with the ride's membership on every
	// book/unbook.
	Recipients []string
}

// Store is the scheduler abstraction behind the 24-hour departure reminder.
//
// Lookups and cancellations key on the ride id. Cancelling or updating a
// job that does not exist is a successful no-op: rides created less than 24
// hours before departure never get a job in the first place.
type Store interface {
	Create(ctx context.Context, j Job) error

	GetByRideID(ctx context.Context, id domain.RideID) (Job, error)

	// Save replaces the stored job for j.RideID.
	Save(ctx context.Context, j Job) error

	// CancelByRideID removes any job for the ride and returns how many were
	// removed (0 or 1). A missing job is not an error.
	CancelByRideID(ctx context.Context, id domain.RideID) (int, error)

	// ListDue returns jobs with FireAt <= now, ordered by FireAt ascending.
	ListDue(ctx context.Context, now time.Time) ([]Job, error)
}
