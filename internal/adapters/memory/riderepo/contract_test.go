package riderepo

import (
	"testing"

	"github.com/rice-apps/carpool-backend/internal/adapters/contracttest"
	memuserrepo "github.com/rice-apps/carpool-backend/internal/adapters/memory/userrepo"
	riderepoport "github.com/rice-apps/carpool-backend/internal/ports/out/riderepo"
	userrepoport "github.com/rice-apps/carpool-backend/internal/ports/out/userrepo"
)

func TestContract_RideRepo(t *testing.T) {
	contracttest.RunRideRepo(t,
		func(t *testing.T) (userrepoport.Repository, func()) {
			t.Helper()
			return memuserrepo.NewRepo(), nil
		},
		func(t *testing.T) (riderepoport.Repository, func()) {
			t.Helper()
			return NewRepo(), nil
		},
	)
}
