package rides

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rice-apps/carpool-backend/internal/adapters/mail"
	memclock "github.com/rice-apps/carpool-backend/internal/adapters/memory/clock"
	memreminderjob "github.com/rice-apps/carpool-backend/internal/adapters/memory/reminderjob"
	memriderepo "github.com/rice-apps/carpool-backend/internal/adapters/memory/riderepo"
	memuserrepo "github.com/rice-apps/carpool-backend/internal/adapters/memory/userrepo"
	"github.com/rice-apps/carpool-backend/internal/domain"
	"github.com/rice-apps/carpool-backend/internal/ports/out/mailer"
	"github.com/rice-apps/carpool-backend/internal/ports/out/reminderjob"
	"github.com/rice-apps/carpool-backend/internal/ports/out/riderepo"
	"github.com/rice-apps/carpool-backend/internal/ports/out/userrepo"
)

type fixture struct {
	svc   *Service
	users *memuserrepo.Repo
	rides *memriderepo.Repo
	jobs  *memreminderjob.Store
	mail  *mail.MockGateway
	clk   *memclock.ManualClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		users: memuserrepo.NewRepo(),
		rides: memriderepo.NewRepo(),
		jobs:  memreminderjob.NewStore(),
		mail:  mail.NewMockGateway(nil),
		clk:   memclock.NewManualClock(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)),
	}
	f.svc = NewService(f.rides, f.users, f.jobs, f.mail, f.clk, NewComposer("https://carpool.riceapps.org"), nil)
	f.svc.SetSynchronousNotifyForTest()
	nextID := 0
	f.svc.SetNewRideIDForTest(func() domain.RideID {
		nextID++
		return domain.RideID(fmt.Sprintf("ride-%d", nextID))
	})
	return f
}

func (f *fixture) seedUser(t *testing.T, id, username, first, last string) domain.UserID {
	t.Helper()
	u := userrepo.User{
		ID:        domain.UserID(id),
		Username:  username,
		Email:     username + "@rice.edu",
		CreatedAt: f.clk.Now(),
	}
	if first != "" {
		u.FirstName = &first
	}
	if last != "" {
		u.LastName = &last
	}
	if err := f.users.Create(context.Background(), u); err != nil {
		t.Fatalf("seed user %s: %v", username, err)
	}
	return u.ID
}

func (f *fixture) createRide(t *testing.T, creator domain.UserID, departing time.Time) domain.RideDetails {
	t.Helper()
	d, err := f.svc.Create(context.Background(), creator, CreateRideInput{
		DepartingAt:   departing,
		DepartingFrom: "Rice University",
		ArrivingAt:    "IAH",
		NumberRiders:  4,
		Comments:      "meet at Sallyport",
	})
	if err != nil {
		t.Fatalf("Create err=%v", err)
	}
	return d
}

func wantAppError(t *testing.T, err error, status int, code string) {
	t.Helper()
	ae := (*Error)(nil)
	if !errors.As(err, &ae) || ae.Status != status || ae.Code != code {
		t.Fatalf("err=%v (type=%T), want %s %d", err, err, code, status)
	}
}

func TestService_CreateSchedulesReminderWithEmptyRecipients(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	creator := f.seedUser(t, "u1", "wrm1", "Willy", "Rice")

	departing := f.clk.Now().Add(48 * time.Hour)
	d := f.createRide(t, creator, departing)

	if len(d.Riders) != 1 || d.Riders[0].Username != "wrm1" {
		t.Fatalf("riders=%+v, want creator only", d.Riders)
	}

	j, err := f.jobs.GetByRideID(context.Background(), d.ID)
	if err != nil {
		t.Fatalf("GetByRideID err=%v", err)
	}
	if !j.FireAt.Equal(departing.Add(-ReminderLead)) {
		t.Fatalf("fireAt=%v, want departure-%v", j.FireAt, ReminderLead)
	}
	if len(j.Recipients) != 0 {
		t.Fatalf("recipients=%v, want empty at creation", j.Recipients)
	}

	sent := f.mail.Sent()
	if len(sent) != 1 {
		t.Fatalf("sent=%d messages, want 1", len(sent))
	}
	if got := sent[0].To; len(got) != 1 || got[0] != "wrm1@rice.edu" {
		t.Fatalf("to=%v, want creator only", got)
	}
	if !strings.Contains(sent[0].Subject, "You have created a ride to IAH") {
		t.Fatalf("subject=%q", sent[0].Subject)
	}
}

func TestService_CreateCloseToDepartureSkipsReminder(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	creator := f.seedUser(t, "u1", "wrm1", "", "")

	d := f.createRide(t, creator, f.clk.Now().Add(23*time.Hour))

	if _, err := f.jobs.GetByRideID(context.Background(), d.ID); !errors.Is(err, reminderjob.ErrNotFound) {
		t.Fatalf("expected no job for near departure, got err=%v", err)
	}
}

func TestService_CreateValidation(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	creator := f.seedUser(t, "u1", "wrm1", "", "")
	departing := f.clk.Now().Add(48 * time.Hour)

	_, err := f.svc.Create(context.Background(), creator, CreateRideInput{DepartingFrom: "A", ArrivingAt: "B"})
	wantAppError(t, err, 422, "VALIDATION_ERROR")

	_, err = f.svc.Create(context.Background(), creator, CreateRideInput{DepartingAt: departing, DepartingFrom: "   ", ArrivingAt: "B"})
	wantAppError(t, err, 422, "VALIDATION_ERROR")

	_, err = f.svc.Create(context.Background(), domain.UserID("ghost"), CreateRideInput{DepartingAt: departing, DepartingFrom: "A", ArrivingAt: "B"})
	wantAppError(t, err, 404, "USER_NOT_FOUND")
}

func TestService_BookAddsRiderAndReminderRecipient(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	creator := f.seedUser(t, "u1", "wrm1", "Willy", "Rice")
	joiner := f.seedUser(t, "u2", "ab2", "Annise", "Brown")

	d := f.createRide(t, creator, f.clk.Now().Add(48*time.Hour))

	got, err := f.svc.Book(context.Background(), d.ID, joiner)
	if err != nil {
		t.Fatalf("Book err=%v", err)
	}
	if len(got.Riders) != 2 || got.Riders[1].Username != "ab2" {
		t.Fatalf("riders=%+v, want creator then joiner", got.Riders)
	}

	j, err := f.jobs.GetByRideID(context.Background(), d.ID)
	if err != nil {
		t.Fatalf("GetByRideID err=%v", err)
	}
	if len(j.Recipients) != 1 || j.Recipients[0] != "ab2@rice.edu" {
		t.Fatalf("recipients=%v, want joiner's email", j.Recipients)
	}

	// Creation mail plus the joined pair: others to the creator, personal to
	// the joiner.
	sent := f.mail.Sent()
	if len(sent) != 3 {
		t.Fatalf("sent=%d messages, want 3", len(sent))
	}
	others, personal := sent[1], sent[2]
	if len(others.To) != 1 || others.To[0] != "wrm1@rice.edu" {
		t.Fatalf("others to=%v", others.To)
	}
	if !strings.Contains(others.Subject, "User Annise Brown has joined your ride to IAH") {
		t.Fatalf("others subject=%q", others.Subject)
	}
	if len(personal.To) != 1 || personal.To[0] != "ab2@rice.edu" {
		t.Fatalf("personal to=%v", personal.To)
	}
}

func TestService_BookSameRideTwiceIsRejected(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	creator := f.seedUser(t, "u1", "wrm1", "", "")
	joiner := f.seedUser(t, "u2", "ab2", "", "")

	d := f.createRide(t, creator, f.clk.Now().Add(48*time.Hour))
	if _, err := f.svc.Book(context.Background(), d.ID, joiner); err != nil {
		t.Fatalf("first Book err=%v", err)
	}

	_, err := f.svc.Book(context.Background(), d.ID, joiner)
	wantAppError(t, err, 403, "USER_ALREADY_ON_RIDE")

	got, err := f.rides.GetByID(context.Background(), d.ID)
	if err != nil {
		t.Fatalf("GetByID err=%v", err)
	}
	if len(got.RiderIDs) != 2 {
		t.Fatalf("membership=%v, want unchanged", got.RiderIDs)
	}
	j, err := f.jobs.GetByRideID(context.Background(), d.ID)
	if err != nil {
		t.Fatalf("GetByRideID err=%v", err)
	}
	if len(j.Recipients) != 1 {
		t.Fatalf("recipients=%v, want unchanged", j.Recipients)
	}
}

func TestService_BookUnknownRide(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	joiner := f.seedUser(t, "u2", "ab2", "", "")

	_, err := f.svc.Book(context.Background(), domain.RideID("nope"), joiner)
	wantAppError(t, err, 404, "RIDE_NOT_FOUND")
}

func TestService_UnbookRemovesReminderRecipient(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	creator := f.seedUser(t, "u1", "wrm1", "Willy", "Rice")
	joiner := f.seedUser(t, "u2", "ab2", "Annise", "Brown")

	d := f.createRide(t, creator, f.clk.Now().Add(48*time.Hour))
	if _, err := f.svc.Book(context.Background(), d.ID, joiner); err != nil {
		t.Fatalf("Book err=%v", err)
	}

	got, err := f.svc.Unbook(context.Background(), d.ID, joiner)
	if err != nil {
		t.Fatalf("Unbook err=%v", err)
	}
	if len(got.Riders) != 1 || got.Riders[0].Username != "wrm1" {
		t.Fatalf("riders=%+v, want creator only", got.Riders)
	}

	j, err := f.jobs.GetByRideID(context.Background(), d.ID)
	if err != nil {
		t.Fatalf("GetByRideID err=%v", err)
	}
	if len(j.Recipients) != 0 {
		t.Fatalf("recipients=%v, want empty after leave", j.Recipients)
	}

	sent := f.mail.Sent()
	last := sent[len(sent)-1]
	if !strings.Contains(last.Subject, "You have left a ride to IAH") {
		t.Fatalf("personal subject=%q", last.Subject)
	}
	others := sent[len(sent)-2]
	if len(others.To) != 1 || others.To[0] != "wrm1@rice.edu" {
		t.Fatalf("others to=%v", others.To)
	}
	if others.Subject != "User Annise Brown has left your ride!" {
		t.Fatalf("others subject=%q", others.Subject)
	}

	_, err = f.svc.Unbook(context.Background(), d.ID, joiner)
	wantAppError(t, err, 404, "USER_NOT_ON_RIDE")
}

func TestService_UnbookLastRiderDeletesRideAndJob(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	creator := f.seedUser(t, "u1", "wrm1", "Willy", "Rice")

	d := f.createRide(t, creator, f.clk.Now().Add(48*time.Hour))

	got, err := f.svc.Unbook(context.Background(), d.ID, creator)
	if err != nil {
		t.Fatalf("Unbook err=%v", err)
	}
	// Snapshot of the deleted ride still names where it was going.
	if got.ID != d.ID || got.ArrivingAt != "IAH" {
		t.Fatalf("snapshot=%+v", got)
	}

	if _, err := f.rides.GetByID(context.Background(), d.ID); !errors.Is(err, riderepo.ErrNotFound) {
		t.Fatalf("expected ride gone, got err=%v", err)
	}
	if _, err := f.jobs.GetByRideID(context.Background(), d.ID); !errors.Is(err, reminderjob.ErrNotFound) {
		t.Fatalf("expected job cancelled, got err=%v", err)
	}

	sent := f.mail.Sent()
	last := sent[len(sent)-1]
	if len(last.To) != 1 || last.To[0] != "wrm1@rice.edu" {
		t.Fatalf("to=%v", last.To)
	}
	if !strings.Contains(last.HTML, "the ride has been deleted") {
		t.Fatalf("body=%q", last.HTML)
	}
	if strings.Contains(last.HTML, "click here") {
		t.Fatalf("deleted notification should not link to the ride page")
	}
}

func TestService_UnbookCleansUpEmptyRide(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	user := f.seedUser(t, "u1", "wrm1", "", "")

	// An empty ride can only exist if a prior removal failed partway.
	now := f.clk.Now()
	if err := f.rides.Create(context.Background(), riderepo.Ride{
		ID:            domain.RideID("stale"),
		DepartingAt:   now.Add(48 * time.Hour),
		DepartingFrom: "A",
		ArrivingAt:    "B",
		NumberRiders:  2,
		RiderIDs:      []domain.UserID{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}); err != nil {
		t.Fatalf("seed stale ride: %v", err)
	}
	if err := f.jobs.Create(context.Background(), reminderjob.Job{
		RideID: domain.RideID("stale"),
		FireAt: now.Add(24 * time.Hour),
	}); err != nil {
		t.Fatalf("seed stale job: %v", err)
	}

	_, err := f.svc.Unbook(context.Background(), domain.RideID("stale"), user)
	wantAppError(t, err, 404, "USER_NOT_ON_RIDE")

	if _, err := f.rides.GetByID(context.Background(), domain.RideID("stale")); !errors.Is(err, riderepo.ErrNotFound) {
		t.Fatalf("expected stale ride removed, got err=%v", err)
	}
	if _, err := f.jobs.GetByRideID(context.Background(), domain.RideID("stale")); !errors.Is(err, reminderjob.ErrNotFound) {
		t.Fatalf("expected stale job cancelled, got err=%v", err)
	}
}

func TestService_DeleteIsIdempotentAndCancelsJob(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	creator := f.seedUser(t, "u1", "wrm1", "", "")

	d := f.createRide(t, creator, f.clk.Now().Add(48*time.Hour))

	if err := f.svc.Delete(context.Background(), d.ID); err != nil {
		t.Fatalf("Delete err=%v", err)
	}
	if _, err := f.jobs.GetByRideID(context.Background(), d.ID); !errors.Is(err, reminderjob.ErrNotFound) {
		t.Fatalf("expected job cancelled, got err=%v", err)
	}
	if err := f.svc.Delete(context.Background(), d.ID); err != nil {
		t.Fatalf("second Delete err=%v", err)
	}
}

type failingGateway struct{}

func (failingGateway) Send(ctx context.Context, to []string, subject, htmlBody string) error {
	return errors.New("smtp down")
}

var _ mailer.Gateway = failingGateway{}

func TestService_MailFailureDoesNotFailMutation(t *testing.T) {
	t.Parallel()

	users := memuserrepo.NewRepo()
	ridesRepo := memriderepo.NewRepo()
	jobs := memreminderjob.NewStore()
	clk := memclock.NewManualClock(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	svc := NewService(ridesRepo, users, jobs, failingGateway{}, clk, NewComposer("https://carpool.riceapps.org"), nil)
	svc.SetSynchronousNotifyForTest()

	if err := users.Create(context.Background(), userrepo.User{
		ID:        domain.UserID("u1"),
		Username:  "wrm1",
		Email:     "wrm1@rice.edu",
		CreatedAt: clk.Now(),
	}); err != nil {
		t.Fatalf("seed user: %v", err)
	}

	d, err := svc.Create(context.Background(), domain.UserID("u1"), CreateRideInput{
		DepartingAt:   clk.Now().Add(48 * time.Hour),
		DepartingFrom: "A",
		ArrivingAt:    "B",
		NumberRiders:  2,
	})
	if err != nil {
		t.Fatalf("Create err=%v", err)
	}
	if _, err := ridesRepo.GetByID(context.Background(), d.ID); err != nil {
		t.Fatalf("ride should be persisted despite mail failure: %v", err)
	}
}

func TestService_FullLifecycleKeepsJobInSync(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	a := f.seedUser(t, "ua", "aaa1", "Ada", "Ames")
	b := f.seedUser(t, "ub", "bbb2", "Ben", "Bay")
	ctx := context.Background()

	d := f.createRide(t, a, f.clk.Now().Add(48*time.Hour))
	j, err := f.jobs.GetByRideID(ctx, d.ID)
	if err != nil || len(j.Recipients) != 0 {
		t.Fatalf("after create: job=%+v err=%v, want empty recipients", j, err)
	}

	if _, err := f.svc.Book(ctx, d.ID, b); err != nil {
		t.Fatalf("Book err=%v", err)
	}
	j, _ = f.jobs.GetByRideID(ctx, d.ID)
	if len(j.Recipients) != 1 || j.Recipients[0] != "bbb2@rice.edu" {
		t.Fatalf("after book: recipients=%v", j.Recipients)
	}

	// The creator's email was never a recipient; their leave only shrinks
	// the membership.
	got, err := f.svc.Unbook(ctx, d.ID, a)
	if err != nil {
		t.Fatalf("Unbook a err=%v", err)
	}
	if len(got.Riders) != 1 || got.Riders[0].Username != "bbb2" {
		t.Fatalf("after unbook a: riders=%+v", got.Riders)
	}
	j, _ = f.jobs.GetByRideID(ctx, d.ID)
	if len(j.Recipients) != 1 || j.Recipients[0] != "bbb2@rice.edu" {
		t.Fatalf("after unbook a: recipients=%v", j.Recipients)
	}

	if _, err := f.svc.Unbook(ctx, d.ID, b); err != nil {
		t.Fatalf("Unbook b err=%v", err)
	}
	if _, err := f.rides.GetByID(ctx, d.ID); !errors.Is(err, riderepo.ErrNotFound) {
		t.Fatalf("expected ride gone, got err=%v", err)
	}
	if _, err := f.jobs.GetByRideID(ctx, d.ID); !errors.Is(err, reminderjob.ErrNotFound) {
		t.Fatalf("expected job cancelled, got err=%v", err)
	}
}

func TestService_ListUserRidesWindows(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	creator := f.seedUser(t, "u1", "wrm1", "", "")
	other := f.seedUser(t, "u2", "ab2", "", "")

	past := f.createRide(t, creator, f.clk.Now().Add(-2*time.Hour))
	future := f.createRide(t, creator, f.clk.Now().Add(48*time.Hour))
	f.createRide(t, other, f.clk.Now().Add(24*time.Hour))

	all, err := f.svc.ListUserRides(context.Background(), creator, WindowAll)
	if err != nil {
		t.Fatalf("ListUserRides all err=%v", err)
	}
	if len(all) != 2 {
		t.Fatalf("all=%d rides, want 2", len(all))
	}

	got, err := f.svc.ListUserRides(context.Background(), creator, WindowPast)
	if err != nil {
		t.Fatalf("ListUserRides past err=%v", err)
	}
	if len(got) != 1 || got[0].ID != past.ID {
		t.Fatalf("past window=%+v", got)
	}

	got, err = f.svc.ListUserRides(context.Background(), creator, WindowFuture)
	if err != nil {
		t.Fatalf("ListUserRides future err=%v", err)
	}
	if len(got) != 1 || got[0].ID != future.ID {
		t.Fatalf("future window=%+v", got)
	}

	_, err = f.svc.ListUserRides(context.Background(), domain.UserID("ghost"), WindowAll)
	wantAppError(t, err, 404, "USER_NOT_FOUND")
}
