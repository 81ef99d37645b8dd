package auth

import (
	"errors"

	"github.com/rice-apps/carpool-backend/internal/platform/auth/cas"
)

// Error is an application-layer error that can be mapped to an HTTP response.
type Error struct {
	Status  int
	Code    string
	Message string
	Details map[string]any
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	return e.Code
}

func isAuthFailure(err error) bool {
	return errors.Is(err, cas.ErrAuthenticationFailed)
}
