package reminderjob

import (
	"testing"

	"github.com/rice-apps/carpool-backend/internal/adapters/contracttest"
	reminderjobport "github.com/rice-apps/carpool-backend/internal/ports/out/reminderjob"
)

func TestContract_ReminderJobStore(t *testing.T) {
	contracttest.RunReminderJobStore(t, func(t *testing.T) (reminderjobport.Store, func()) {
		t.Helper()
		return NewStore(), nil
	})
}
