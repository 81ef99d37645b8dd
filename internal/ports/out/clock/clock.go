package clock

import "time"

// Clock provides time to the application. The ride lifecycle compares
// departure times against "now" when deciding whether a reminder job is
// worth scheduling; an interface keeps those decisions deterministic in
// tests.
type Clock interface {
	Now() time.Time
}
