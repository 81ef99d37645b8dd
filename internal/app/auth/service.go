package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/rice-apps/carpool-backend/internal/domain"
	clockport "github.com/rice-apps/carpool-backend/internal/ports/out/clock"
	"github.com/rice-apps/carpool-backend/internal/ports/out/userrepo"
)

// EmailDomain is appended to the netid for lazily provisioned accounts.
const EmailDomain = "rice.edu"

// TicketValidator exchanges an SSO ticket for the authenticated netid.
type TicketValidator interface {
	Validate(ctx context.Context, ticket string) (string, error)
}

// TokenIssuer signs a session token for a username.
type TokenIssuer interface {
	Issue(username string) (string, error)
}

// Login is the result of a successful ticket exchange.
type Login struct {
	UserID domain.UserID
	Token  string
	IsNew  bool
}

// Service implements the CAS login flow: validate the ticket, provision the
// user on first login, and issue a session token.
type Service struct {
	users  userrepo.Repository
	cas    TicketValidator
	tokens TokenIssuer
	clk    clockport.Clock
	logger *slog.Logger

	newUserID func() domain.UserID
}

func NewService(users userrepo.Repository, cas TicketValidator, tokens TokenIssuer, clk clockport.Clock, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		users:  users,
		cas:    cas,
		tokens: tokens,
		clk:    clk,
		logger: logger,
		newUserID: func() domain.UserID {
			return domain.UserID(uuid.NewString())
		},
	}
}

// SetNewUserIDForTest overrides user ID generation for deterministic tests.
func (s *Service) SetNewUserIDForTest(fn func() domain.UserID) {
	if fn != nil {
		s.newUserID = fn
	}
}

// ExchangeTicket validates the ticket against CAS, looks up the user by the
// lowercased netid, creates the account when missing, and issues a token.
func (s *Service) ExchangeTicket(ctx context.Context, ticket string) (Login, error) {
	if ticket == "" {
		return Login{}, &Error{Status: 400, Code: "MISSING_TICKET", Message: "a ticket must be provided"}
	}

	netid, err := s.cas.Validate(ctx, ticket)
	if err != nil {
		if isAuthFailure(err) {
			return Login{}, &Error{Status: 401, Code: "CAS_AUTH_FAILED", Message: "CAS authentication failed"}
		}
		return Login{}, err
	}

	// Lowercase the netid so the same person never ends up with two
	// accounts differing only in case.
	username := domain.NormalizeUsername(netid)

	u, err := s.users.GetByUsername(ctx, username)
	isNew := false
	switch {
	case err == nil:
		// existing account
	case errors.Is(err, userrepo.ErrNotFound):
		u = userrepo.User{
			ID:        s.newUserID(),
			Username:  username,
			Email:     username + "@" + EmailDomain,
			CreatedAt: s.clk.Now(),
		}
		if err := s.users.Create(ctx, u); err != nil {
			if errors.Is(err, userrepo.ErrAlreadyExists) {
				// Lost a provisioning race; the other login won.
				if u, err = s.users.GetByUsername(ctx, username); err != nil {
					return Login{}, err
				}
			} else {
				return Login{}, err
			}
		} else {
			isNew = true
			s.logger.Info("provisioned user on first login", "username", username)
		}
	default:
		return Login{}, err
	}

	tok, err := s.tokens.Issue(u.Username)
	if err != nil {
		return Login{}, err
	}
	return Login{UserID: u.ID, Token: tok, IsNew: isNew}, nil
}

// GetUser resolves a user by id for the profile endpoint.
func (s *Service) GetUser(ctx context.Context, id domain.UserID) (domain.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, userrepo.ErrNotFound) {
			return domain.User{}, &Error{Status: 404, Code: "USER_NOT_FOUND", Message: "user not found"}
		}
		return domain.User{}, err
	}
	return domain.User{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		CreatedAt: u.CreatedAt,
	}, nil
}
