// Package httpserver exposes the warranty lifecycle over JSON/HTTP.
package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/and161185/warranty-keeper/internal/errs"
	"github.com/and161185/warranty-keeper/internal/limiter"
	"github.com/and161185/warranty-keeper/internal/metrics"
	"github.com/and161185/warranty-keeper/internal/model"
	"github.com/and161185/warranty-keeper/internal/scheduler"
	"github.com/and161185/warranty-keeper/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
)

// JobRunner triggers scheduler jobs on demand.
type JobRunner interface {
	TriggerJob(ctx context.Context, name string) (scheduler.JobResult, error)
}

// Pinger reports storage readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators wired into the router.
type Deps struct {
	Warranties     service.WarrantyService
	Inspections    service.InspectionService
	Reinstatements service.ReinstatementService
	Jobs           JobRunner
	Limiter        limiter.Limiter // optional
	Storage        Pinger          // optional
	Metrics        *metrics.Metrics
	Log            *zap.Logger
	JWTKey         []byte
	Now            func() time.Time
}

// Server holds the handlers.
type Server struct {
	warranties     service.WarrantyService
	inspections    service.InspectionService
	reinstatements service.ReinstatementService
	jobs           JobRunner
	limiter        limiter.Limiter
	storage        Pinger
	metrics        *metrics.Metrics
	log            *zap.Logger
	jwtKey         []byte
	clock          func() time.Time
}

// New constructs a Server.
func New(d Deps) *Server {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return &Server{
		warranties:     d.Warranties,
		inspections:    d.Inspections,
		reinstatements: d.Reinstatements,
		jobs:           d.Jobs,
		limiter:        d.Limiter,
		storage:        d.Storage,
		metrics:        d.Metrics,
		log:            d.Log,
		jwtKey:         d.JWTKey,
		clock:          d.Now,
	}
}

// Handler registers every route.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(s.observe)
	r.Use(s.recoverer)

	r.Get("/healthz", s.healthz)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	// Token-authenticated public endpoints.
	r.Post("/verify-warranty/{token}", s.verifyWarranty)
	r.Get("/customer/activation/{token}", s.activationDetails)
	r.Post("/customer/activation/{token}/accept", s.acceptActivation)
	r.Post("/verify-inspection/{token}", s.verifyInspection)

	r.Group(func(r chi.Router) {
		r.Use(s.authenticate)

		r.Route("/warranties", func(r chi.Router) {
			r.With(requireRole(model.RoleAgent, model.RoleAdmin)).Post("/", s.createWarranty)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.getWarranty)
				r.Patch("/", s.updateWarranty)
				r.Post("/photos", s.attachWarrantyPhotos)
				r.Post("/submit", s.submitWarranty)
				r.Post("/resend-verification", s.resendWarrantyVerification)
				r.Post("/resend-activation", s.resendActivation)
				r.Get("/audit-history", s.warrantyHistory)
				r.Get("/reinstatement-eligibility", s.eligibility)
				r.Get("/reinstatements", s.listReinstatements)
				r.With(requireRole(model.RoleAdmin)).Post("/reinstate", s.reinstate)
			})
		})

		r.Route("/inspections", func(r chi.Router) {
			r.With(requireRole(model.RoleInspector, model.RoleAgent, model.RoleAdmin)).Post("/", s.createInspection)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.getInspection)
				r.Patch("/", s.updateInspection)
				r.Post("/photos", s.attachInspectionPhotos)
				r.Post("/submit", s.submitInspection)
				r.Post("/resend-verification", s.resendInspectionVerification)
				r.Get("/audit-history", s.inspectionHistory)
			})
		})

		r.Route("/erps-admin", func(r chi.Router) {
			r.Use(requireRole(model.RoleAdmin))
			r.Post("/warranties/{id}/verify", s.adminVerifyWarranty)
			r.Post("/warranties/{id}/status", s.adminWarrantyStatus)
			r.Delete("/warranties/{id}", s.deleteWarranty)
			r.Post("/inspections/{id}/verify", s.adminVerifyInspection)
			r.Post("/inspections/{id}/status", s.adminInspectionStatus)
		})

		r.With(requireRole(model.RoleAdmin)).Post("/reminders/trigger", s.triggerJob(scheduler.JobReminders))
		r.With(requireRole(model.RoleAdmin)).Post("/grace-period/trigger", s.triggerJob(scheduler.JobGracePeriod))
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, apiError{Error: "NOT_FOUND", Message: "no such route"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, apiError{Error: "METHOD_NOT_ALLOWED"})
	})
	return r
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	if s.storage != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.storage.Ping(ctx); err != nil {
			s.log.Warn("health check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) triggerJob(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := s.jobs.TriggerJob(r.Context(), name)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func pathID(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.FromString(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: malformed id %q", errs.ErrNotFound, raw)
	}
	return id, nil
}
