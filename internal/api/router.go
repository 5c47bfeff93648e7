/**
 * @description
 * This file sets up the HTTP router for the person service: public sign-up,
 * authenticated customer, employee and contact endpoints, health and metrics.
 *
 * @dependencies
 * - github.com/go-chi/chi/v5: routing and standard middleware.
 * - github.com/go-chi/cors: CORS handling.
 * - github.com/prometheus/client_golang: the /metrics handler.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/omnixys/omnixys-person-service/internal/domain"
	"github.com/omnixys/omnixys-person-service/internal/logging"
)

var (
	// staffRoles may list, create and change persons.
	staffRoles = []string{domain.RoleAdmin, domain.RoleUser}
	// memberRoles covers staff and every customer tier.
	memberRoles = []string{domain.RoleAdmin, domain.RoleUser, domain.RoleSupreme, domain.RoleElite, domain.RoleBasic}
)

// RouterOptions carries the cross-cutting middleware of the router.
type RouterOptions struct {
	// Authenticate resolves the caller; see KeycloakAuthMiddleware.
	Authenticate func(http.Handler) http.Handler
	RateLimiter  func(http.Handler) http.Handler
	Logger       logrus.FieldLogger
}

// NewRouter creates the person service router.
func NewRouter(h *PersonHandlers, opts RouterOptions) *chi.Mux {
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(opts.Logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "If-Match", "If-None-Match"},
		ExposedHeaders:   []string{"ETag", "Location", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	rateLimit := passThrough
	if opts.RateLimiter != nil {
		rateLimit = opts.RateLimiter
	}
	authenticate := passThrough
	if opts.Authenticate != nil {
		authenticate = opts.Authenticate
	}

	r.Route("/customers", func(r chi.Router) {
		// Sign-up is the only anonymous endpoint.
		r.With(rateLimit).Post("/", h.handleCreateCustomer)

		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Use(rateLimit)

			r.With(RequireRoles(staffRoles...)).Get("/", h.handleListCustomers)
			r.With(RequireRoles(memberRoles...)).Get("/{id}", h.handleGetCustomer)
			r.With(RequireRoles(staffRoles...)).Put("/{id}", h.handleUpdateCustomer)
			r.With(RequireRoles(staffRoles...)).Delete("/{id}", h.handleDeleteCustomer)

			r.Route("/{id}/contacts", func(r chi.Router) {
				r.Use(RequireRoles(memberRoles...))
				r.Get("/", h.handleListContacts)
				r.Post("/", h.handleAddContact)
				r.Put("/{contactID}", h.handleUpdateContact)
				r.Delete("/{contactID}", h.handleRemoveContact)
			})
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(authenticate)
		r.Use(rateLimit)

		r.Route("/employees", func(r chi.Router) {
			r.With(RequireRoles(staffRoles...)).Get("/", h.handleListEmployees)
			r.With(RequireRoles(staffRoles...)).Post("/", h.handleCreateEmployee)
			r.With(RequireRoles(memberRoles...)).Get("/{id}", h.handleGetEmployee)
			r.With(RequireRoles(staffRoles...)).Put("/{id}", h.handleUpdateEmployee)
			r.With(RequireRoles(staffRoles...)).Delete("/{id}", h.handleDeleteEmployee)
		})

		r.With(RequireRoles(memberRoles...)).Put("/password", h.handleUpdatePassword)
	})

	return r
}

func passThrough(next http.Handler) http.Handler {
	return next
}
