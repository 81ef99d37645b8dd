package domain

import "time"

// RiderSummary is the slice of a user that ride read models and
// notifications need.
type RiderSummary struct {
	ID       UserID
	Username string
	Email    string

	FirstName *string
	LastName  *string
}

// DisplayName renders "First Last" when both names are present, else the
// username.
func (r RiderSummary) DisplayName() string {
	if r.FirstName == nil || *r.FirstName == "" || r.LastName == nil {
		return r.Username
	}
	return *r.FirstName + " " + *r.LastName
}

// RideDetails is the domain read model for a ride, including resolved rider
// summaries in booking order.
type RideDetails struct {
	ID RideID

	DepartingAt   time.Time
	DepartingFrom string
	ArrivingAt    string

	// NumberRiders is the advisory capacity entered by the creator; it is
	// not enforced on booking.
	NumberRiders int
	Comments     string

	Riders []RiderSummary

	CreatedAt time.Time
	UpdatedAt time.Time
}

// RiderEmails returns the emails of all riders in booking order.
func (d RideDetails) RiderEmails() []string {
	out := make([]string, 0, len(d.Riders))
	for _, r := range d.Riders {
		out = append(out, r.Email)
	}
	return out
}

// HasRider reports whether the given user is on the ride.
func (d RideDetails) HasRider(id UserID) bool {
	for _, r := range d.Riders {
		if r.ID == id {
			return true
		}
	}
	return false
}
