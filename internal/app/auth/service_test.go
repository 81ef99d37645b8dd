package auth

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	memclock "github.com/rice-apps/carpool-backend/internal/adapters/memory/clock"
	memuserrepo "github.com/rice-apps/carpool-backend/internal/adapters/memory/userrepo"
	"github.com/rice-apps/carpool-backend/internal/domain"
	"github.com/rice-apps/carpool-backend/internal/platform/auth/cas"
	"github.com/rice-apps/carpool-backend/internal/ports/out/userrepo"
)

type stubValidator struct {
	netid string
	err   error
}

func (v stubValidator) Validate(ctx context.Context, ticket string) (string, error) {
	return v.netid, v.err
}

type stubIssuer struct{}

func (stubIssuer) Issue(username string) (string, error) {
	return "token-for-" + username, nil
}

func newAuthService(t *testing.T, users userrepo.Repository, v TicketValidator) *Service {
	t.Helper()
	clk := memclock.NewManualClock(time.Unix(1000, 0).UTC())
	svc := NewService(users, v, stubIssuer{}, clk, nil)
	nextID := 0
	svc.SetNewUserIDForTest(func() domain.UserID {
		nextID++
		return domain.UserID(fmt.Sprintf("user-%d", nextID))
	})
	return svc
}

func wantAuthError(t *testing.T, err error, status int, code string) {
	t.Helper()
	ae := (*Error)(nil)
	if !errors.As(err, &ae) || ae.Status != status || ae.Code != code {
		t.Fatalf("err=%v (type=%T), want %s %d", err, err, code, status)
	}
}

func TestService_ExchangeTicket_ProvisionsOnFirstLogin(t *testing.T) {
	t.Parallel()

	users := memuserrepo.NewRepo()
	svc := newAuthService(t, users, stubValidator{netid: "WRM1"})

	login, err := svc.ExchangeTicket(context.Background(), "ST-123")
	if err != nil {
		t.Fatalf("ExchangeTicket err=%v", err)
	}
	if !login.IsNew {
		t.Fatalf("IsNew=false, want provisioning on first login")
	}
	if login.Token != "token-for-wrm1" {
		t.Fatalf("token=%q", login.Token)
	}

	// The uppercase CAS netid lands as a lowercase username.
	u, err := users.GetByUsername(context.Background(), "wrm1")
	if err != nil {
		t.Fatalf("GetByUsername err=%v", err)
	}
	if u.ID != login.UserID || u.Email != "wrm1@rice.edu" {
		t.Fatalf("user=%+v login=%+v", u, login)
	}
}

func TestService_ExchangeTicket_ExistingUser(t *testing.T) {
	t.Parallel()

	users := memuserrepo.NewRepo()
	if err := users.Create(context.Background(), userrepo.User{
		ID:        domain.UserID("existing"),
		Username:  "wrm1",
		Email:     "wrm1@rice.edu",
		CreatedAt: time.Unix(500, 0).UTC(),
	}); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	svc := newAuthService(t, users, stubValidator{netid: "wrm1"})

	login, err := svc.ExchangeTicket(context.Background(), "ST-123")
	if err != nil {
		t.Fatalf("ExchangeTicket err=%v", err)
	}
	if login.IsNew {
		t.Fatalf("IsNew=true for existing user")
	}
	if login.UserID != "existing" {
		t.Fatalf("UserID=%q", login.UserID)
	}
}

func TestService_ExchangeTicket_MissingTicket(t *testing.T) {
	t.Parallel()

	svc := newAuthService(t, memuserrepo.NewRepo(), stubValidator{netid: "wrm1"})

	_, err := svc.ExchangeTicket(context.Background(), "")
	wantAuthError(t, err, 400, "MISSING_TICKET")
}

func TestService_ExchangeTicket_CASRejection(t *testing.T) {
	t.Parallel()

	svc := newAuthService(t, memuserrepo.NewRepo(), stubValidator{err: fmt.Errorf("ticket ST-1: %w", cas.ErrAuthenticationFailed)})

	_, err := svc.ExchangeTicket(context.Background(), "ST-1")
	wantAuthError(t, err, 401, "CAS_AUTH_FAILED")
}

func TestService_GetUser_NotFound(t *testing.T) {
	t.Parallel()

	svc := newAuthService(t, memuserrepo.NewRepo(), stubValidator{})

	_, err := svc.GetUser(context.Background(), domain.UserID("ghost"))
	wantAuthError(t, err, 404, "USER_NOT_FOUND")
}
