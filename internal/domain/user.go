package domain

import "time"

// User is the domain representation of an account created from the campus
// SSO directory. FirstName/LastName are optional: accounts provisioned
// lazily at first login carry only the netid-derived username and email.
type User struct {
	ID UserID

	Username string
	Email    string

	FirstName *string
	LastName  *string

	CreatedAt time.Time
}

// DisplayName renders "First Last" when both names are present and falls
// back to the username otherwise.
func (u User) DisplayName() string {
	if u.FirstName == nil || *u.FirstName == "" || u.LastName == nil {
		return u.Username
	}
	return *u.FirstName + " " + *u.LastName
}
