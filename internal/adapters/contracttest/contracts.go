// Package contracttest holds behavior suites shared by every adapter
// implementation of the outbound ports. Memory and Postgres adapters run
// the same suites so they cannot drift apart.
package contracttest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/rice-apps/carpool-backend/internal/domain"
	reminderjobport "github.com/rice-apps/carpool-backend/internal/ports/out/reminderjob"
	riderepoport "github.com/rice-apps/carpool-backend/internal/ports/out/riderepo"
	userrepoport "github.com/rice-apps/carpool-backend/internal/ports/out/userrepo"
)

type CleanupFunc = func()

type UserRepoFactory func(t *testing.T) (userrepoport.Repository, CleanupFunc)
type RideRepoFactory func(t *testing.T) (riderepoport.Repository, CleanupFunc)
type JobStoreFactory func(t *testing.T) (reminderjobport.Store, CleanupFunc)

func RunUserRepo(t *testing.T, newRepo UserRepoFactory) {
	t.Helper()
	ctx := context.Background()

	repo, cleanup := newRepo(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	now := time.Unix(1000, 0).UTC()
	first := "Alice"
	aID := domain.UserID(uuid.NewString())
	username := "u" + uuid.NewString()
	if err := repo.Create(ctx, userrepoport.User{
		ID:        aID,
		Username:  username,
		Email:     username + "@rice.edu",
		FirstName: &first,
		CreatedAt: now,
	}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := repo.GetByID(ctx, aID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Username != username || got.FirstName == nil || *got.FirstName != "Alice" || got.LastName != nil {
		t.Fatalf("unexpected user: %+v", got)
	}
	if _, err := repo.GetByUsername(ctx, username); err != nil {
		t.Fatalf("GetByUsername: %v", err)
	}

	// Username uniqueness.
	err = repo.Create(ctx, userrepoport.User{
		ID:        domain.UserID(uuid.NewString()),
		Username:  username,
		Email:     "other@rice.edu",
		CreatedAt: now,
	})
	if !errors.Is(err, userrepoport.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}

	if _, err := repo.GetByID(ctx, domain.UserID(uuid.NewString())); !errors.Is(err, userrepoport.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown id, got %v", err)
	}
	if _, err := repo.GetByUsername(ctx, "nobody-"+uuid.NewString()); !errors.Is(err, userrepoport.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown username, got %v", err)
	}
}

// RunRideRepo exercises ride persistence and atomic membership. Rides
// reference users, so the suite seeds through both repositories; factories
// must hand back repos over the same backing store.
func RunRideRepo(t *testing.T, newUserRepo UserRepoFactory, newRideRepo RideRepoFactory) {
	t.Helper()
	ctx := context.Background()

	users, uCleanup := newUserRepo(t)
	if uCleanup != nil {
		t.Cleanup(uCleanup)
	}
	rides, rCleanup := newRideRepo(t)
	if rCleanup != nil {
		t.Cleanup(rCleanup)
	}

	now := time.Unix(2000, 0).UTC()
	seedUser := func(t *testing.T) domain.UserID {
		t.Helper()
		id := domain.UserID(uuid.NewString())
		username := "u" + uuid.NewString()
		if err := users.Create(ctx, userrepoport.User{
			ID:        id,
			Username:  username,
			Email:     username + "@rice.edu",
			CreatedAt: now,
		}); err != nil {
			t.Fatalf("seed user: %v", err)
		}
		return id
	}

	creator := seedUser(t)
	joiner := seedUser(t)

	rideID := domain.RideID(uuid.NewString())
	if err := rides.Create(ctx, riderepoport.Ride{
		ID:            rideID,
		DepartingAt:   now.Add(48 * time.Hour),
		DepartingFrom: "Duncan Hall",
		ArrivingAt:    "IAH Terminal C",
		NumberRiders:  3,
		RiderIDs:      []domain.UserID{creator},
		CreatedAt:     now,
		UpdatedAt:     now,
	}); err != nil {
		t.Fatalf("Create ride: %v", err)
	}

	got, err := rides.GetByID(ctx, rideID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.DepartingFrom != "Duncan Hall" || len(got.RiderIDs) != 1 || got.RiderIDs[0] != creator {
		t.Fatalf("unexpected ride: %+v", got)
	}

	// Membership is ordered by booking and unique per user.
	got, err = rides.AddRider(ctx, rideID, joiner)
	if err != nil {
		t.Fatalf("AddRider: %v", err)
	}
	if len(got.RiderIDs) != 2 || got.RiderIDs[0] != creator || got.RiderIDs[1] != joiner {
		t.Fatalf("unexpected membership after add: %v", got.RiderIDs)
	}
	if _, err := rides.AddRider(ctx, rideID, joiner); !errors.Is(err, riderepoport.ErrRiderExists) {
		t.Fatalf("expected ErrRiderExists, got %v", err)
	}
	if _, err := rides.AddRider(ctx, domain.RideID(uuid.NewString()), joiner); !errors.Is(err, riderepoport.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown ride, got %v", err)
	}

	got, err = rides.RemoveRider(ctx, rideID, joiner)
	if err != nil {
		t.Fatalf("RemoveRider: %v", err)
	}
	if len(got.RiderIDs) != 1 || got.RiderIDs[0] != creator {
		t.Fatalf("unexpected membership after remove: %v", got.RiderIDs)
	}
	if _, err := rides.RemoveRider(ctx, rideID, joiner); !errors.Is(err, riderepoport.ErrRiderNotFound) {
		t.Fatalf("expected ErrRiderNotFound, got %v", err)
	}

	// RemoveRider may drain a ride to zero; the caller deletes it.
	got, err = rides.RemoveRider(ctx, rideID, creator)
	if err != nil {
		t.Fatalf("RemoveRider last: %v", err)
	}
	if len(got.RiderIDs) != 0 {
		t.Fatalf("expected empty membership, got %v", got.RiderIDs)
	}

	// Delete is idempotent.
	if err := rides.Delete(ctx, rideID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := rides.Delete(ctx, rideID); err != nil {
		t.Fatalf("Delete again: %v", err)
	}
	if _, err := rides.GetByID(ctx, rideID); !errors.Is(err, riderepoport.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}

	// Departure-window listings split strictly at the pivot instant.
	pivot := now.Add(24 * time.Hour)
	pastID := domain.RideID(uuid.NewString())
	atID := domain.RideID(uuid.NewString())
	futureID := domain.RideID(uuid.NewString())
	for _, seed := range []struct {
		id domain.RideID
		at time.Time
	}{
		{pastID, pivot.Add(-time.Hour)},
		{atID, pivot},
		{futureID, pivot.Add(time.Hour)},
	} {
		if err := rides.Create(ctx, riderepoport.Ride{
			ID:            seed.id,
			DepartingAt:   seed.at,
			DepartingFrom: "Lovett Hall",
			ArrivingAt:    "Hobby Airport",
			NumberRiders:  2,
			RiderIDs:      []domain.UserID{creator},
			CreatedAt:     now,
			UpdatedAt:     now,
		}); err != nil {
			t.Fatalf("Create %s: %v", seed.id, err)
		}
	}

	past, err := rides.ListDepartingBefore(ctx, pivot)
	if err != nil {
		t.Fatalf("ListDepartingBefore: %v", err)
	}
	if !containsRide(past, pastID) || containsRide(past, atID) || containsRide(past, futureID) {
		t.Fatalf("unexpected past window: %v", rideIDs(past))
	}
	future, err := rides.ListDepartingAtOrAfter(ctx, pivot)
	if err != nil {
		t.Fatalf("ListDepartingAtOrAfter: %v", err)
	}
	if containsRide(future, pastID) || !containsRide(future, atID) || !containsRide(future, futureID) {
		t.Fatalf("unexpected future window: %v", rideIDs(future))
	}

	// ListForRider sees only rides the user is on.
	mine, err := rides.ListForRider(ctx, creator)
	if err != nil {
		t.Fatalf("ListForRider: %v", err)
	}
	if !containsRide(mine, pastID) || !containsRide(mine, atID) || !containsRide(mine, futureID) {
		t.Fatalf("unexpected rider rides: %v", rideIDs(mine))
	}
	other, err := rides.ListForRider(ctx, joiner)
	if err != nil {
		t.Fatalf("ListForRider joiner: %v", err)
	}
	if containsRide(other, pastID) || containsRide(other, atID) || containsRide(other, futureID) {
		t.Fatalf("joiner should not see seeded rides: %v", rideIDs(other))
	}

	// List ordering: departure ascending.
	all, err := rides.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	for i := 1; i < len(all); i++ {
		if all[i].DepartingAt.Before(all[i-1].DepartingAt) {
			t.Fatalf("rides out of order: %v", rideIDs(all))
		}
	}
}

func RunReminderJobStore(t *testing.T, newStore JobStoreFactory) {
	t.Helper()
	ctx := context.Background()

	store, cleanup := newStore(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	rideID := domain.RideID(uuid.NewString())
	fireAt := time.Unix(3000, 0).UTC()
	if err := store.Create(ctx, reminderjobport.Job{
		RideID:     rideID,
		FireAt:     fireAt,
		Recipients: []string{},
	}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := store.Create(ctx, reminderjobport.Job{RideID: rideID, FireAt: fireAt}); !errors.Is(err, reminderjobport.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}

	got, err := store.GetByRideID(ctx, rideID)
	if err != nil {
		t.Fatalf("GetByRideID: %v", err)
	}
	if !got.FireAt.Equal(fireAt) || len(got.Recipients) != 0 {
		t.Fatalf("unexpected job: %+v", got)
	}

	// Save replaces the whole job.
	got.Recipients = []string{"alice@rice.edu", "bob@rice.edu"}
	if err := store.Save(ctx, got); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err = store.GetByRideID(ctx, rideID)
	if err != nil {
		t.Fatalf("GetByRideID after save: %v", err)
	}
	if len(got.Recipients) != 2 || got.Recipients[0] != "alice@rice.edu" || got.Recipients[1] != "bob@rice.edu" {
		t.Fatalf("unexpected recipients: %v", got.Recipients)
	}

	// ListDue is an inclusive cutoff ordered by FireAt.
	laterID := domain.RideID(uuid.NewString())
	if err := store.Create(ctx, reminderjobport.Job{
		RideID:     laterID,
		FireAt:     fireAt.Add(time.Hour),
		Recipients: []string{"carol@rice.edu"},
	}); err != nil {
		t.Fatalf("Create later: %v", err)
	}
	due, err := store.ListDue(ctx, fireAt)
	if err != nil {
		t.Fatalf("ListDue: %v", err)
	}
	if !containsJob(due, rideID) || containsJob(due, laterID) {
		t.Fatalf("unexpected due set: %+v", due)
	}

	// Cancellation reports how many jobs went away; missing is a no-op.
	n, err := store.CancelByRideID(ctx, rideID)
	if err != nil || n != 1 {
		t.Fatalf("CancelByRideID: n=%d err=%v", n, err)
	}
	n, err = store.CancelByRideID(ctx, rideID)
	if err != nil || n != 0 {
		t.Fatalf("CancelByRideID missing: n=%d err=%v", n, err)
	}
	if _, err := store.GetByRideID(ctx, rideID); !errors.Is(err, reminderjobport.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after cancel, got %v", err)
	}

	if _, err := store.CancelByRideID(ctx, laterID); err != nil {
		t.Fatalf("cleanup later job: %v", err)
	}
}

func containsRide(rs []riderepoport.Ride, id domain.RideID) bool {
	for _, r := range rs {
		if r.ID == id {
			return true
		}
	}
	return false
}

func containsJob(js []reminderjobport.Job, id domain.RideID) bool {
	for _, j := range js {
		if j.RideID == id {
			return true
		}
	}
	return false
}

func rideIDs(rs []riderepoport.Ride) []domain.RideID {
	out := make([]domain.RideID, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.ID)
	}
	return out
}
