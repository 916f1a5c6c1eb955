package httpserver

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/and161185/warranty-keeper/internal/errs"
	"github.com/and161185/warranty-keeper/internal/limiter"
	"github.com/and161185/warranty-keeper/internal/service"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Limiter scopes for the public token endpoints.
const (
	scopeVerifyWarranty   = "verify-warranty"
	scopeActivation       = "customer-activation"
	scopeVerifyInspection = "verify-inspection"
)

// guarded runs fn under the per-IP bad-token limiter for scope. Only TOKEN_INVALID counts as a
// failure; limiter outages fail open.
func (s *Server) guarded(w http.ResponseWriter, r *http.Request, scope string, fn func() error) {
	if s.limiter == nil {
		if err := fn(); err != nil {
			s.writeError(w, r, err)
		}
		return
	}
	ctx := r.Context()
	ipHash := limiter.HashIP(clientIP(r))

	ok, retry, err := s.limiter.Allow(ctx, scope, ipHash)
	if err != nil {
		s.log.Warn("limiter allow failed", zap.String("scope", scope), zap.Error(err))
	} else if !ok {
		s.rateLimited(w, r, retry)
		return
	}

	err = fn()
	switch {
	case errors.Is(err, errs.ErrTokenInvalid):
		s.metrics.ObserveTokenFailure(scope, "invalid")
		if blocked, retry, lerr := s.limiter.Failure(ctx, scope, ipHash); lerr != nil {
			s.log.Warn("limiter failure record failed", zap.String("scope", scope), zap.Error(lerr))
		} else if blocked {
			s.rateLimited(w, r, retry)
			return
		}
		s.writeError(w, r, err)
	case errors.Is(err, errs.ErrTokenExpired):
		s.metrics.ObserveTokenFailure(scope, "expired")
		s.writeError(w, r, err)
	case err != nil:
		s.writeError(w, r, err)
	default:
		if lerr := s.limiter.Success(ctx, scope, ipHash); lerr != nil {
			s.log.Warn("limiter reset failed", zap.String("scope", scope), zap.Error(lerr))
		}
	}
}

func (s *Server) rateLimited(w http.ResponseWriter, r *http.Request, retry time.Duration) {
	if retry > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retry.Seconds()))))
	}
	s.writeError(w, r, errs.ErrRateLimited)
}

func decision(action string) service.Decision {
	return service.Decision(strings.ToUpper(strings.TrimSpace(action)))
}

func (s *Server) verifyWarranty(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.guarded(w, r, scopeVerifyWarranty, func() error {
		out, err := s.warranties.Verify(r.Context(), chi.URLParam(r, "token"), decision(req.Action), req.RejectionReason)
		if err != nil {
			return err
		}
		writeJSON(w, http.StatusOK, map[string]any{"id": out.ID, "verificationStatus": out.Status})
		return nil
	})
}

func (s *Server) activationDetails(w http.ResponseWriter, r *http.Request) {
	s.guarded(w, r, scopeActivation, func() error {
		sum, err := s.warranties.ActivationDetails(r.Context(), chi.URLParam(r, "token"))
		if err != nil {
			return err
		}
		writeJSON(w, http.StatusOK, activationResponse{
			WarrantyID:    sum.WarrantyID,
			FirstName:     sum.FirstName,
			LastName:      sum.LastName,
			Vehicle:       vehicleDTO{VIN: sum.Vehicle.VIN, Make: sum.Vehicle.Make, Model: sum.Vehicle.Model, Year: sum.Vehicle.Year},
			SerialNumber:  sum.SerialNumber,
			DateInstalled: sum.DateInstalled,
			ExpiresAt:     sum.ExpiresAt,
		})
		return nil
	})
}

func (s *Server) acceptActivation(w http.ResponseWriter, r *http.Request) {
	var req acceptRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.guarded(w, r, scopeActivation, func() error {
		out, err := s.warranties.CustomerAccept(r.Context(), chi.URLParam(r, "token"), service.AcceptInput{
			AcceptTerms: req.AcceptTerms,
			Signature:   req.CustomerSignature,
			IP:          clientIP(r),
		})
		if err != nil {
			return err
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"id":                 out.ID,
			"verificationStatus": out.Status,
			"inspectionDueDate":  out.InspectionDueDate,
		})
		return nil
	})
}

func (s *Server) verifyInspection(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.guarded(w, r, scopeVerifyInspection, func() error {
		out, err := s.inspections.Verify(r.Context(), chi.URLParam(r, "token"), decision(req.Action), req.RejectionReason)
		if err != nil {
			return err
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"id":                    out.ID,
			"verificationStatus":    out.Status,
			"warrantyExtendedUntil": out.WarrantyExtendedUntil,
		})
		return nil
	})
}
