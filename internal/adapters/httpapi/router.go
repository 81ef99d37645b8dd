package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterOptions configures cross-cutting router behavior.
type RouterOptions struct {
	// AuthMiddleware guards the ride endpoints. The auth and health
	// endpoints stay open.
	AuthMiddleware func(http.Handler) http.Handler
}

// NewRouter constructs the API HTTP router.
//
// This is intentionally a thin adapter: handlers decode requests and
// translate app errors to status codes; routing and middleware live here.
func NewRouter(s *Server, opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	// Baseline production-safe middleware (minimal but useful).
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"https://*", "http://*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Debug-User"},
	}))

	// Health endpoint is deliberately unauthenticated (used for infra checks).
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// The CAS ticket exchange happens before a session token exists.
	r.Get("/auth", s.ExchangeTicket)

	r.Route("/rides", func(r chi.Router) {
		if opts.AuthMiddleware != nil {
			r.Use(opts.AuthMiddleware)
		}

		r.Get("/", s.ListRides)
		r.Post("/", s.CreateRide)
		r.Get("/past/all", s.ListPastRides)
		r.Get("/future/all", s.ListFutureRides)
		r.Get("/past/user/{user_id}", s.ListPastUserRides)
		r.Get("/future/user/{user_id}", s.ListFutureUserRides)
		r.Get("/user/{user_id}", s.ListUserRides)
		r.Get("/{ride_id}", s.GetRide)
		r.Post("/{ride_id}/book", s.BookRide)
		r.Delete("/{ride_id}/{user_id}", s.UnbookRide)
		r.Delete("/{ride_id}", s.DeleteRide)
	})

	return r
}
