package rides

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/rice-apps/carpool-backend/internal/domain"
	clockport "github.com/rice-apps/carpool-backend/internal/ports/out/clock"
	"github.com/rice-apps/carpool-backend/internal/ports/out/mailer"
	"github.com/rice-apps/carpool-backend/internal/ports/out/reminderjob"
	"github.com/rice-apps/carpool-backend/internal/ports/out/riderepo"
	"github.com/rice-apps/carpool-backend/internal/ports/out/userrepo"
)

// ReminderLead is how long before departure the reminder email fires.
const ReminderLead = 24 * time.Hour

// Service owns the ride lifecycle: create, book, unbook, delete. Every
// membership transition keeps the ride's reminder job in sync and fans out
// the matching notification emails.
//
// The ride write is authoritative: once it commits, failures from the job
// store or the mail gateway are logged and never surfaced to the caller.
type Service struct {
	rides riderepo.Repository
	users userrepo.Repository
	jobs  reminderjob.Store
	mail  mailer.Gateway
	clk   clockport.Clock

	composer *Composer
	logger   *slog.Logger

	newRideID  func() domain.RideID
	syncNotify bool
}

func NewService(
	ridesRepo riderepo.Repository,
	usersRepo userrepo.Repository,
	jobStore reminderjob.Store,
	mail mailer.Gateway,
	clk clockport.Clock,
	composer *Composer,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		rides:    ridesRepo,
		users:    usersRepo,
		jobs:     jobStore,
		mail:     mail,
		clk:      clk,
		composer: composer,
		logger:   logger,
		newRideID: func() domain.RideID {
			return domain.RideID(uuid.NewString())
		},
	}
}

// SetNewRideIDForTest overrides ride ID generation for deterministic tests.
// It should not be used in production code.
func (s *Service) SetNewRideIDForTest(fn func() domain.RideID) {
	if fn != nil {
		s.newRideID = fn
	}
}

// SetSynchronousNotifyForTest makes notification dispatch run inline instead
// of on a detached goroutine, so tests can observe sent mail.
func (s *Service) SetSynchronousNotifyForTest() {
	s.syncNotify = true
}

// Create persists a ride with the creator as its only rider, schedules the
// departure reminder when departure is more than ReminderLead away, and
// sends the creation confirmation.
func (s *Service) Create(ctx context.Context, userID domain.UserID, in CreateRideInput) (domain.RideDetails, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, userrepo.ErrNotFound) {
			return domain.RideDetails{}, &Error{Status: 404, Code: "USER_NOT_FOUND", Message: "user not found"}
		}
		return domain.RideDetails{}, err
	}

	if in.DepartingAt.IsZero() {
		return domain.RideDetails{}, &Error{Status: 422, Code: "VALIDATION_ERROR", Message: "invalid departingAt", Details: map[string]any{"departingAt": "must be set"}}
	}
	from := domain.NormalizeHumanName(in.DepartingFrom)
	at := domain.NormalizeHumanName(in.ArrivingAt)
	if from == "" {
		return domain.RideDetails{}, &Error{Status: 422, Code: "VALIDATION_ERROR", Message: "invalid departingFrom", Details: map[string]any{"departingFrom": "must be non-empty"}}
	}
	if at == "" {
		return domain.RideDetails{}, &Error{Status: 422, Code: "VALIDATION_ERROR", Message: "invalid arrivingAt", Details: map[string]any{"arrivingAt": "must be non-empty"}}
	}

	now := s.clk.Now()
	r := riderepo.Ride{
		ID:            s.newRideID(),
		DepartingAt:   in.DepartingAt.UTC(),
		DepartingFrom: from,
		ArrivingAt:    at,
		NumberRiders:  in.NumberRiders,
		Comments:      in.Comments,
		RiderIDs:      []domain.UserID{u.ID},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.rides.Create(ctx, r); err != nil {
		if errors.Is(err, riderepo.ErrAlreadyExists) {
			// Extremely unlikely (UUID collision); treat as conflict.
			return domain.RideDetails{}, &Error{Status: 409, Code: "RIDE_ID_CONFLICT", Message: "ride id conflict"}
		}
		return domain.RideDetails{}, err
	}

	// The reminder fires ReminderLead before departure. Rides posted closer
	// to departure than that never get a job; the creator is excluded from
	// the recipient set the same way they are excluded from the "others"
	// notification audience.
	fireAt := r.DepartingAt.Add(-ReminderLead)
	if fireAt.After(now) {
		err := s.jobs.Create(ctx, reminderjob.Job{
			RideID:     r.ID,
			FireAt:     fireAt,
			Recipients: []string{},
		})
		if err != nil {
			s.logger.Error("reminder job create failed", "ride_id", r.ID, "error", err)
		}
	} else {
		s.logger.Info("departure within reminder lead; no job scheduled", "ride_id", r.ID)
	}

	d := detailsFor(r, []domain.RiderSummary{riderSummary(u)})
	s.notify(ctx, Event{Kind: EventCreated, Ride: d, Actor: riderSummary(u)})
	return d, nil
}

// Book appends the user to the ride's membership, adds their email to the
// ride's reminder job, and notifies the existing riders plus the joiner.
// Booking a ride the user is already on is rejected, not silently accepted.
func (s *Service) Book(ctx context.Context, rideID domain.RideID, userID domain.UserID) (domain.RideDetails, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, userrepo.ErrNotFound) {
			return domain.RideDetails{}, &Error{Status: 404, Code: "USER_NOT_FOUND", Message: "user not found"}
		}
		return domain.RideDetails{}, err
	}

	updated, err := s.rides.AddRider(ctx, rideID, u.ID)
	if err != nil {
		switch {
		case errors.Is(err, riderepo.ErrNotFound):
			return domain.RideDetails{}, &Error{Status: 404, Code: "RIDE_NOT_FOUND", Message: "ride not found"}
		case errors.Is(err, riderepo.ErrRiderExists):
			return domain.RideDetails{}, &Error{Status: 403, Code: "USER_ALREADY_ON_RIDE", Message: "user already on ride"}
		default:
			return domain.RideDetails{}, err
		}
	}

	s.addJobRecipient(ctx, rideID, u.Email)

	d, err := s.detailsForRide(ctx, updated)
	if err != nil {
		return domain.RideDetails{}, err
	}
	s.notify(ctx, Event{Kind: EventJoined, Ride: d, Actor: riderSummary(u)})
	return d, nil
}

// Unbook removes the user from the ride. When the last rider leaves, the
// ride is deleted and its reminder job cancelled; otherwise the job's
// recipient set drops the leaver's email. Returns the updated ride, or the
// pre-deletion snapshot when the ride was deleted.
func (s *Service) Unbook(ctx context.Context, rideID domain.RideID, userID domain.UserID) (domain.RideDetails, error) {
	r, err := s.rides.GetByID(ctx, rideID)
	if err != nil {
		if errors.Is(err, riderepo.ErrNotFound) {
			return domain.RideDetails{}, &Error{Status: 404, Code: "RIDE_NOT_FOUND", Message: "ride not found"}
		}
		return domain.RideDetails{}, err
	}

	// An empty ride is not a valid resting state. Finding one here means a
	// prior operation failed partway; clean it up before evaluating the
	// requested removal.
	if len(r.RiderIDs) == 0 {
		if err := s.deleteRideAndJob(ctx, rideID); err != nil {
			return domain.RideDetails{}, err
		}
		return domain.RideDetails{}, &Error{Status: 404, Code: "USER_NOT_ON_RIDE", Message: "user not on ride"}
	}

	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, userrepo.ErrNotFound) {
			return domain.RideDetails{}, &Error{Status: 404, Code: "USER_NOT_FOUND", Message: "user not found"}
		}
		return domain.RideDetails{}, err
	}

	updated, err := s.rides.RemoveRider(ctx, rideID, u.ID)
	if err != nil {
		switch {
		case errors.Is(err, riderepo.ErrNotFound):
			return domain.RideDetails{}, &Error{Status: 404, Code: "RIDE_NOT_FOUND", Message: "ride not found"}
		case errors.Is(err, riderepo.ErrRiderNotFound):
			return domain.RideDetails{}, &Error{Status: 404, Code: "USER_NOT_ON_RIDE", Message: "user not on ride"}
		default:
			return domain.RideDetails{}, err
		}
	}

	if len(updated.RiderIDs) == 0 {
		if err := s.deleteRideAndJob(ctx, rideID); err != nil {
			return domain.RideDetails{}, err
		}
		d := detailsFor(updated, nil)
		s.notify(ctx, Event{Kind: EventDeleted, Ride: d, Actor: riderSummary(u)})
		return d, nil
	}

	s.removeJobRecipient(ctx, rideID, u.Email)

	d, err := s.detailsForRide(ctx, updated)
	if err != nil {
		return domain.RideDetails{}, err
	}
	s.notify(ctx, Event{Kind: EventLeft, Ride: d, Actor: riderSummary(u)})
	return d, nil
}

// Delete removes the ride regardless of rider count and cancels its reminder
// job. Deleting a ride that does not exist succeeds: deletion is idempotent.
func (s *Service) Delete(ctx context.Context, rideID domain.RideID) error {
	return s.deleteRideAndJob(ctx, rideID)
}

func (s *Service) deleteRideAndJob(ctx context.Context, rideID domain.RideID) error {
	n, err := s.jobs.CancelByRideID(ctx, rideID)
	if err != nil {
		s.logger.Error("reminder job cancel failed", "ride_id", rideID, "error", err)
	} else if n > 0 {
		s.logger.Info("reminder job cancelled", "ride_id", rideID)
	}
	return s.rides.Delete(ctx, rideID)
}

// GetRide returns a single ride with resolved rider summaries.
func (s *Service) GetRide(ctx context.Context, rideID domain.RideID) (domain.RideDetails, error) {
	r, err := s.rides.GetByID(ctx, rideID)
	if err != nil {
		if errors.Is(err, riderepo.ErrNotFound) {
			return domain.RideDetails{}, &Error{Status: 404, Code: "RIDE_NOT_FOUND", Message: "ride not found"}
		}
		return domain.RideDetails{}, err
	}
	return s.detailsForRide(ctx, r)
}

// ListRides returns every ride, soonest departure first.
func (s *Service) ListRides(ctx context.Context) ([]domain.RideDetails, error) {
	rs, err := s.rides.List(ctx)
	if err != nil {
		return nil, err
	}
	return s.detailsForRides(ctx, rs)
}

// ListPastRides returns rides that have already departed.
func (s *Service) ListPastRides(ctx context.Context) ([]domain.RideDetails, error) {
	rs, err := s.rides.ListDepartingBefore(ctx, s.clk.Now())
	if err != nil {
		return nil, err
	}
	return s.detailsForRides(ctx, rs)
}

// ListFutureRides returns rides departing now or later.
func (s *Service) ListFutureRides(ctx context.Context) ([]domain.RideDetails, error) {
	rs, err := s.rides.ListDepartingAtOrAfter(ctx, s.clk.Now())
	if err != nil {
		return nil, err
	}
	return s.detailsForRides(ctx, rs)
}

// ListUserRides returns the rides the user is on, optionally restricted to
// past or future departures.
func (s *Service) ListUserRides(ctx context.Context, userID domain.UserID, w Window) ([]domain.RideDetails, error) {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, userrepo.ErrNotFound) {
			return nil, &Error{Status: 404, Code: "USER_NOT_FOUND", Message: "user not found"}
		}
		return nil, err
	}
	rs, err := s.rides.ListForRider(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.clk.Now()
	filtered := rs[:0:0]
	for _, r := range rs {
		switch w {
		case WindowPast:
			if !r.DepartingAt.Before(now) {
				continue
			}
		case WindowFuture:
			if r.DepartingAt.Before(now) {
				continue
			}
		}
		filtered = append(filtered, r)
	}
	return s.detailsForRides(ctx, filtered)
}

// addJobRecipient adds an email to the ride's reminder job, if one exists.
// Rides without a job (posted under ReminderLead before departure) are a
// successful no-op.
func (s *Service) addJobRecipient(ctx context.Context, rideID domain.RideID, email string) {
	j, err := s.jobs.GetByRideID(ctx, rideID)
	if err != nil {
		if !errors.Is(err, reminderjob.ErrNotFound) {
			s.logger.Error("reminder job lookup failed", "ride_id", rideID, "error", err)
		}
		return
	}
	for _, e := range j.Recipients {
		if e == email {
			return
		}
	}
	j.Recipients = append(j.Recipients, email)
	if err := s.jobs.Save(ctx, j); err != nil {
		s.logger.Error("reminder job update failed", "ride_id", rideID, "error", err)
	}
}

func (s *Service) removeJobRecipient(ctx context.Context, rideID domain.RideID, email string) {
	j, err := s.jobs.GetByRideID(ctx, rideID)
	if err != nil {
		if !errors.Is(err, reminderjob.ErrNotFound) {
			s.logger.Error("reminder job lookup failed", "ride_id", rideID, "error", err)
		}
		return
	}
	kept := make([]string, 0, len(j.Recipients))
	for _, e := range j.Recipients {
		if e != email {
			kept = append(kept, e)
		}
	}
	j.Recipients = kept
	if err := s.jobs.Save(ctx, j); err != nil {
		s.logger.Error("reminder job update failed", "ride_id", rideID, "error", err)
	}
}

// notify composes and dispatches the emails for a transition. Dispatch is
// detached from the request: send failures are logged and never alter the
// outcome of the membership mutation that triggered them.
func (s *Service) notify(ctx context.Context, ev Event) {
	msgs := s.composer.Compose(ev)
	send := func(ctx context.Context) {
		for _, m := range msgs {
			if len(m.To) == 0 {
				continue
			}
			if err := s.mail.Send(ctx, m.To, m.Subject, m.HTML); err != nil {
				s.logger.Error("notification send failed",
					"ride_id", ev.Ride.ID,
					"event", string(ev.Kind),
					"recipients", len(m.To),
					"error", err)
			}
		}
	}
	if s.syncNotify {
		send(ctx)
		return
	}
	go send(context.WithoutCancel(ctx))
}

func (s *Service) detailsForRide(ctx context.Context, r riderepo.Ride) (domain.RideDetails, error) {
	riders, err := s.loadRiderSummaries(ctx, r.RiderIDs)
	if err != nil {
		return domain.RideDetails{}, err
	}
	return detailsFor(r, riders), nil
}

func (s *Service) detailsForRides(ctx context.Context, rs []riderepo.Ride) ([]domain.RideDetails, error) {
	out := make([]domain.RideDetails, 0, len(rs))
	for _, r := range rs {
		d, err := s.detailsForRide(ctx, r)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func (s *Service) loadRiderSummaries(ctx context.Context, ids []domain.UserID) ([]domain.RiderSummary, error) {
	if len(ids) == 0 {
		return []domain.RiderSummary{}, nil
	}
	out := make([]domain.RiderSummary, 0, len(ids))
	for _, id := range ids {
		u, err := s.users.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, riderSummary(u))
	}
	return out, nil
}

func riderSummary(u userrepo.User) domain.RiderSummary {
	return domain.RiderSummary{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		FirstName: cloneStringPtr(u.FirstName),
		LastName:  cloneStringPtr(u.LastName),
	}
}

func detailsFor(r riderepo.Ride, riders []domain.RiderSummary) domain.RideDetails {
	if riders == nil {
		riders = []domain.RiderSummary{}
	}
	return domain.RideDetails{
		ID:            r.ID,
		DepartingAt:   r.DepartingAt,
		DepartingFrom: r.DepartingFrom,
		ArrivingAt:    r.ArrivingAt,
		NumberRiders:  r.NumberRiders,
		Comments:      r.Comments,
		Riders:        riders,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

func cloneStringPtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
