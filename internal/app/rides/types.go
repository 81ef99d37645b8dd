package rides

import (
	"time"

	"github.com/rice-apps/carpool-backend/internal/domain"
)

type CreateRideInput struct {
	DepartingAt   time.Time
	DepartingFrom string
	ArrivingAt    string
	NumberRiders  int
	Comments      string
}

// Window restricts a per-user ride listing by departure time.
type Window int

const (
	WindowAll Window = iota
	WindowPast
	WindowFuture
)

// EventKind tags the ride transition a notification describes.
type EventKind string

const (
	EventCreated EventKind = "CREATED"
	EventJoined  EventKind = "JOINED"
	EventLeft    EventKind = "LEFT"
	EventDeleted EventKind = "DELETED"
)

// Event is a ride transition plus the context needed to compose emails. Ride
// is the post-transition snapshot; for EventDeleted it is the last-known
// state of a ride that no longer exists. Actor is the user whose request
// triggered the transition.
type Event struct {
	Kind  EventKind
	Ride  domain.RideDetails
	Actor domain.RiderSummary
}

// Message is one rendered email: a recipient set, a subject, and an HTML
// body.
type Message struct {
	To      []string
	Subject string
	HTML    string
}
