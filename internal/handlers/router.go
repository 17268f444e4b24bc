package handlers

import (
	"context"
	"net/http"

	"blinddate-backend/internal/metrics"
	"blinddate-backend/internal/middleware"
	"blinddate-backend/internal/services"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterOptions wires handlers into the router. Photos and WebSocket may be
// nil when their backends are not configured.
type RouterOptions struct {
	Tokens     *services.TokenService
	Identities *services.IdentityService
	Limiter    *middleware.TokenBucket
	Health     func(ctx context.Context) map[string]bool

	OTP           *OTPHandler
	Auth          *AuthHandler
	Announcements *AnnouncementHandler
	Pairings      *PairingHandler
	Students      *StudentHandler
	Events        *EventHandler
	Photos        *PhotoHandler
	Stats         *StatsHandler
	WebSocket     *WebSocketHandler
}

// NewRouter builds the HTTP routes
func NewRouter(opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(metrics.Middleware)
	r.Use(corsMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		// Public routes; an anonymous session is created when missing
		r.Group(func(r chi.Router) {
			if opts.Limiter != nil {
				r.Use(opts.Limiter.Middleware)
			}
			r.Use(middleware.AnonymousSession(opts.Tokens))
			r.Post("/otp/send", opts.OTP.SendOTP)
			r.Post("/otp/verify", opts.OTP.VerifyOTP)
			r.Post("/auth/login", opts.OTP.Login)
		})
		r.Post("/auth/anonymous", opts.Auth.Anonymous)
		r.Post("/auth/admin", opts.Auth.AdminLogin)

		// Student routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(opts.Tokens, opts.Identities, services.RoleStudent))
			r.Get("/me", opts.Students.Me)
			r.Put("/me", opts.Students.UpdateMe)
			r.Get("/me/dates", opts.Students.MyDates)
			if opts.Photos != nil {
				r.Post("/me/photo", opts.Photos.UploadPhoto)
				r.Post("/me/photo/confirm", opts.Photos.ConfirmPhoto)
			}
		})

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(opts.Tokens, opts.Identities, services.RoleAdmin))

			r.Route("/students", func(r chi.Router) {
				r.Get("/", opts.Students.List)
				r.Post("/", opts.Students.Create)
				r.Post("/import", opts.Students.Import)
				r.Get("/export", opts.Students.Export)
				r.Post("/bulk-delete", opts.Students.BulkDelete)
				r.Get("/{id}", opts.Students.Get)
				r.Put("/{id}", opts.Students.Update)
				r.Delete("/{id}", opts.Students.Delete)
			})

			r.Route("/events", func(r chi.Router) {
				r.Get("/", opts.Events.List)
				r.Post("/", opts.Events.Create)
				r.Get("/{id}", opts.Events.Get)
				r.Put("/{id}", opts.Events.Update)
				r.Delete("/{id}", opts.Events.Delete)
			})

			r.Route("/partnerings", func(r chi.Router) {
				r.Get("/", opts.Pairings.List)
				r.Post("/", opts.Pairings.Create)
				r.Delete("/", opts.Pairings.ClearAll)
				r.Post("/generate", opts.Pairings.Generate)
				r.Get("/grouped", opts.Pairings.Grouped)
				r.Patch("/{id}", opts.Pairings.Edit)
			})

			r.Get("/announcements", opts.Announcements.List)
			r.Post("/announcements", opts.Announcements.Broadcast)
			r.Post("/sms/send", opts.Announcements.SendSMS)
			r.Get("/stats", opts.Stats.Get)
		})
	})

	if opts.WebSocket != nil {
		r.Get("/ws", opts.WebSocket.HandleWebSocket)
	}
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", healthHandler(opts.Health))

	return r
}

func healthHandler(check func(ctx context.Context) map[string]bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		body := map[string]any{"status": "ok"}
		if check != nil {
			for name, healthy := range check(r.Context()) {
				body[name] = healthy
				if !healthy {
					status = http.StatusServiceUnavailable
					body["status"] = "degraded"
				}
			}
		}
		respondJSON(w, status, body)
	}
}

// corsMiddleware handles CORS
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		w.Header().Set("Access-Control-Expose-Headers", middleware.SessionHeader)

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
