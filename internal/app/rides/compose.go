package rides

import (
	"fmt"
	"strings"
	"time"

	"github.com/rice-apps/carpool-backend/internal/domain"
)

// referenceTimeZone is the zone ride times are rendered in, regardless of
// where the server runs.
const referenceTimeZone = "America/Chicago"

// Composer turns ride transition events into rendered email messages. It is
// pure: no I/O, and it never fails for a rider missing profile fields.
type Composer struct {
	baseURL string
	loc     *time.Location
}

// NewComposer builds a composer that links back to ride pages under baseURL.
func NewComposer(baseURL string) *Composer {
	loc, err := time.LoadLocation(referenceTimeZone)
	if err != nil {
		loc = time.UTC
	}
	return &Composer{
		baseURL: strings.TrimRight(baseURL, "/"),
		loc:     loc,
	}
}

// Compose renders the messages for a ride transition: an "others" message to
// the remaining riders (excluding the actor, who never self-notifies) and a
// personal message to the actor. Created and Deleted transitions have no
// "others" audience.
func (c *Composer) Compose(ev Event) []Message {
	local := ev.Ride.DepartingAt.In(c.loc)
	date := local.Format("1/2/2006")
	clock := local.Format("03:04 PM") + " " + zoneLongName(local)

	from := ev.Ride.DepartingFrom
	at := ev.Ride.ArrivingAt
	actorName := ev.Actor.DisplayName()

	body := "<p>The ride's information is now as follows: </p>" +
		"<p><b>Departing from</b>: " + from + "</p>" +
		"<p><b>Arriving at</b>: " + at + "</p>" +
		"<p><b>Departure time</b>: " + date + " " + clock + "</p>"
	if ev.Kind != EventCreated && ev.Kind != EventDeleted {
		body += riderListHTML(ev.Ride.Riders)
	}
	if ev.Kind != EventDeleted {
		link := fmt.Sprintf("%s/rides/%s", c.baseURL, ev.Ride.ID)
		body += `<br/><p> To view the ride page, <a href = "` + link + `">click here</a>.</p>`
	}

	var others Message
	var personal Message

	switch ev.Kind {
	case EventCreated:
		personal.Subject = "You have created a ride to " + at + " on " + date
		personal.HTML = "You have created a ride from " + from + " to " + at + " on " + date + "!" + body

	case EventJoined:
		others.Subject = "User " + actorName + " has joined your ride to " + at + " on " + date + "!"
		others.HTML = "<p>User " + actorName + " has joined your ride. </p>" + body
		personal.Subject = "You have joined a ride to " + at + " on " + date
		personal.HTML = "You have joined a ride from " + from + " to " + at + " on " + date + "!" + body

	case EventLeft:
		others.Subject = "User " + actorName + " has left your ride!"
		others.HTML = "<p>User " + actorName + " has left your ride. </p>" + body
		personal.Subject = "You have left a ride to " + at + " on " + date
		personal.HTML = "You have left a ride from " + from + " to " + at + " on " + date + "!" + body

	case EventDeleted:
		// The ride no longer exists: describe its last-known state instead.
		prior := "<p>The ride's information was previously as such: </p>" +
			"<p><b>Departing from</b>: " + from + "</p>" +
			"<p><b>Arriving at</b>: " + at + "</p>" +
			"<p><b>Departure time</b>: " + date + " " + clock + "</p>"
		personal.Subject = "You have left a ride to " + at + " on " + date
		personal.HTML = "You have left a ride from " + from + " to " + at + " on " + date + "! " +
			"Because you were the only person previously in this ride, the ride has been deleted." + prior
	}

	out := make([]Message, 0, 2)
	if ev.Kind == EventJoined || ev.Kind == EventLeft {
		others.To = othersAudience(ev.Ride.Riders, ev.Actor)
		if len(others.To) > 0 {
			out = append(out, others)
		}
	}
	personal.To = []string{ev.Actor.Email}
	out = append(out, personal)
	return out
}

// othersAudience is every rider's email except the actor's, so the actor
// never receives both the group message and the personal one.
func othersAudience(riders []domain.RiderSummary, actor domain.RiderSummary) []string {
	out := make([]string, 0, len(riders))
	for _, r := range riders {
		if r.Username == actor.Username {
			continue
		}
		out = append(out, r.Email)
	}
	return out
}

func riderListHTML(riders []domain.RiderSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<h4>Riders (%d)</h4><ul>", len(riders))
	for _, r := range riders {
		b.WriteString("<li>" + r.DisplayName() + "</li>")
	}
	b.WriteString("</ul>")
	return b.String()
}

// zoneLongName expands the Central-zone abbreviations to the spelled-out
// names the original emails used; other zones keep their abbreviation.
func zoneLongName(t time.Time) string {
	switch t.Format("MST") {
	case "CST":
		return "Central Standard Time"
	case "CDT":
		return "Central Daylight Time"
	default:
		return t.Format("MST")
	}
}
