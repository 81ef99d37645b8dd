package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/nullable"
	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/rice-apps/carpool-backend/internal/app/auth"
	"github.com/rice-apps/carpool-backend/internal/app/rides"
	"github.com/rice-apps/carpool-backend/internal/domain"
)

// Server is the HTTP adapter over the application services.
type Server struct {
	Rides  *rides.Service
	Auth   *auth.Service
	Logger *slog.Logger
}

func NewServer(ridesSvc *rides.Service, authSvc *auth.Service, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		Rides:  ridesSvc,
		Auth:   authSvc,
		Logger: logger,
	}
}

type riderDTO struct {
	ID        string              `json:"id"`
	Username  string              `json:"username"`
	Email     openapi_types.Email `json:"email"`
	FirstName *string             `json:"first_name,omitempty"`
	LastName  *string             `json:"last_name,omitempty"`
}

type rideDTO struct {
	ID                string     `json:"id"`
	DepartingDatetime time.Time  `json:"departing_datetime"`
	DepartingFrom     string     `json:"departing_from"`
	ArrivingAt        string     `json:"arriving_at"`
	NumberRiders      int        `json:"number_riders"`
	Comments          string     `json:"comments"`
	Riders            []riderDTO `json:"riders"`
}

type createRidePayload struct {
	DepartingDatetime time.Time                 `json:"departing_datetime"`
	DepartingFrom     string                    `json:"departing_from"`
	ArrivingAt        string                    `json:"arriving_at"`
	NumberRiders      int                       `json:"number_riders"`
	Comments          nullable.Nullable[string] `json:"comments_input,omitempty"`
}

type createRideRequest struct {
	UserID string             `json:"user_id"`
	Ride   *createRidePayload `json:"ride"`
}

type bookRideRequest struct {
	UserID string `json:"user_id"`
}

type loginResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	IsNew   bool   `json:"isNew"`
	User    struct {
		ID    string `json:"_id"`
		Token string `json:"token"`
	} `json:"user"`
}

// ExchangeTicket handles the CAS redirect callback: the frontend forwards
// the ticket as a query parameter and receives a session token.
func (s *Server) ExchangeTicket(w http.ResponseWriter, r *http.Request) {
	login, err := s.Auth.ExchangeTicket(r.Context(), r.URL.Query().Get("ticket"))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}

	var resp loginResponse
	resp.Success = true
	resp.Message = "CAS authentication success"
	resp.IsNew = login.IsNew
	resp.User.ID = string(login.UserID)
	resp.User.Token = login.Token
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) ListRides(w http.ResponseWriter, r *http.Request) {
	ds, err := s.Rides.ListRides(r.Context())
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ridesToDTO(ds))
}

func (s *Server) ListPastRides(w http.ResponseWriter, r *http.Request) {
	ds, err := s.Rides.ListPastRides(r.Context())
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ridesToDTO(ds))
}

func (s *Server) ListFutureRides(w http.ResponseWriter, r *http.Request) {
	ds, err := s.Rides.ListFutureRides(r.Context())
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ridesToDTO(ds))
}

func (s *Server) ListUserRides(w http.ResponseWriter, r *http.Request) {
	s.listUserRides(w, r, rides.WindowAll)
}

func (s *Server) ListPastUserRides(w http.ResponseWriter, r *http.Request) {
	s.listUserRides(w, r, rides.WindowPast)
}

func (s *Server) ListFutureUserRides(w http.ResponseWriter, r *http.Request) {
	s.listUserRides(w, r, rides.WindowFuture)
}

func (s *Server) listUserRides(w http.ResponseWriter, r *http.Request, window rides.Window) {
	userID, ok := pathUserID(w, r)
	if !ok {
		return
	}
	ds, err := s.Rides.ListUserRides(r.Context(), userID, window)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ridesToDTO(ds))
}

func (s *Server) GetRide(w http.ResponseWriter, r *http.Request) {
	d, err := s.Rides.GetRide(r.Context(), domain.RideID(chi.URLParam(r, "ride_id")))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rideToDTO(d))
}

func (s *Server) CreateRide(w http.ResponseWriter, r *http.Request) {
	var req createRideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "malformed request body", nil)
		return
	}
	if req.UserID == "" {
		writeError(w, r, http.StatusNotFound, "USER_NOT_FOUND", "a user must be provided", nil)
		return
	}
	if req.Ride == nil {
		writeError(w, r, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "missing ride payload", nil)
		return
	}

	in := rides.CreateRideInput{
		DepartingAt:   req.Ride.DepartingDatetime,
		DepartingFrom: req.Ride.DepartingFrom,
		ArrivingAt:    req.Ride.ArrivingAt,
		NumberRiders:  req.Ride.NumberRiders,
	}
	if req.Ride.Comments.IsSpecified() && !req.Ride.Comments.IsNull() {
		if v, err := req.Ride.Comments.Get(); err == nil {
			in.Comments = v
		}
	}

	d, err := s.Rides.Create(r.Context(), domain.UserID(req.UserID), in)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rideToDTO(d))
}

func (s *Server) BookRide(w http.ResponseWriter, r *http.Request) {
	var req bookRideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "malformed request body", nil)
		return
	}
	if req.UserID == "" {
		writeError(w, r, http.StatusNotFound, "USER_NOT_FOUND", "a user must be provided", nil)
		return
	}

	d, err := s.Rides.Book(r.Context(), domain.RideID(chi.URLParam(r, "ride_id")), domain.UserID(req.UserID))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rideToDTO(d))
}

func (s *Server) UnbookRide(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUserID(w, r)
	if !ok {
		return
	}
	d, err := s.Rides.Unbook(r.Context(), domain.RideID(chi.URLParam(r, "ride_id")), userID)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rideToDTO(d))
}

func (s *Server) DeleteRide(w http.ResponseWriter, r *http.Request) {
	if err := s.Rides.Delete(r.Context(), domain.RideID(chi.URLParam(r, "ride_id"))); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

// pathUserID rejects the literal "null"/"undefined" ids that a broken
// frontend state can produce.
func pathUserID(w http.ResponseWriter, r *http.Request) (domain.UserID, bool) {
	raw := chi.URLParam(r, "user_id")
	if raw == "" || raw == "null" || raw == "undefined" {
		writeError(w, r, http.StatusNotFound, "USER_NOT_FOUND", "invalid user id", nil)
		return "", false
	}
	return domain.UserID(raw), true
}

func (s *Server) writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	var re *rides.Error
	if errors.As(err, &re) {
		writeError(w, r, re.Status, re.Code, re.Message, re.Details)
		return
	}
	var ae *auth.Error
	if errors.As(err, &ae) {
		writeError(w, r, ae.Status, ae.Code, ae.Message, ae.Details)
		return
	}
	s.Logger.Error("request failed", "path", r.URL.Path, "error", err)
	writeError(w, r, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
}

func ridesToDTO(ds []domain.RideDetails) []rideDTO {
	out := make([]rideDTO, 0, len(ds))
	for _, d := range ds {
		out = append(out, rideToDTO(d))
	}
	return out
}

func rideToDTO(d domain.RideDetails) rideDTO {
	riders := make([]riderDTO, 0, len(d.Riders))
	for _, rd := range d.Riders {
		riders = append(riders, riderDTO{
			ID:        string(rd.ID),
			Username:  rd.Username,
			Email:     openapi_types.Email(rd.Email),
			FirstName: rd.FirstName,
			LastName:  rd.LastName,
		})
	}
	return rideDTO{
		ID:                string(d.ID),
		DepartingDatetime: d.DepartingAt,
		DepartingFrom:     d.DepartingFrom,
		ArrivingAt:        d.ArrivingAt,
		NumberRiders:      d.NumberRiders,
		Comments:          d.Comments,
		Riders:            riders,
	}
}
