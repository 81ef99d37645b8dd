package reminderjob

import (
	"context"
	"testing"
	"time"

	"github.com/rice-apps/carpool-backend/internal/domain"
	"github.com/rice-apps/carpool-backend/internal/ports/out/reminderjob"
)

func TestStore_ListDueOrdersByFireAt(t *testing.T) {
	t.Parallel()

	s := NewStore()
	base := time.Unix(10000, 0).UTC()
	for _, j := range []reminderjob.Job{
		{RideID: domain.RideID("late"), FireAt: base.Add(2 * time.Hour)},
		{RideID: domain.RideID("early"), FireAt: base},
		{RideID: domain.RideID("mid"), FireAt: base.Add(time.Hour)},
	} {
		if err := s.Create(context.Background(), j); err != nil {
			t.Fatalf("Create(%s) err=%v", j.RideID, err)
		}
	}

	due, err := s.ListDue(context.Background(), base.Add(time.Hour))
	if err != nil {
		t.Fatalf("ListDue() err=%v", err)
	}
	if len(due) != 2 || due[0].RideID != "early" || due[1].RideID != "mid" {
		t.Fatalf("unexpected due jobs: %+v", due)
	}
}

func TestStore_ReturnsCopies(t *testing.T) {
	t.Parallel()

	s := NewStore()
	if err := s.Create(context.Background(), reminderjob.Job{
		RideID:     domain.RideID("r1"),
		FireAt:     time.Unix(10000, 0).UTC(),
		Recipients: []string{"a@rice.edu"},
	}); err != nil {
		t.Fatalf("Create() err=%v", err)
	}

	got, err := s.GetByRideID(context.Background(), domain.RideID("r1"))
	if err != nil {
		t.Fatalf("GetByRideID() err=%v", err)
	}
	got.Recipients[0] = "mutated"

	again, err := s.GetByRideID(context.Background(), domain.RideID("r1"))
	if err != nil {
		t.Fatalf("GetByRideID() err=%v", err)
	}
	if again.Recipients[0] != "a@rice.edu" {
		t.Fatalf("stored job mutated through returned copy: %v", again.Recipients)
	}
}
