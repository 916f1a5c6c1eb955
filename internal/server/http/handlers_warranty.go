package httpserver

import (
	"net/http"

	"github.com/and161185/warranty-keeper/internal/model"
	"github.com/and161185/warranty-keeper/internal/service"
	"github.com/gofrs/uuid/v5"
)

// warrantyOp is the shape shared by the actor-driven single-record operations.
type warrantyOp func(r *http.Request, a model.Actor, id uuid.UUID) (*model.Warranty, error)

func (s *Server) warrantyHandler(op warrantyOp) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		out, err := op(r, actor(r), id)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toWarranty(out))
	}
}

func (s *Server) createWarranty(w http.ResponseWriter, r *http.Request) {
	var req createWarrantyRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	out, err := s.warranties.Create(r.Context(), actor(r), req.input())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toWarranty(out))
}

func (s *Server) getWarranty(w http.ResponseWriter, r *http.Request) {
	s.warrantyHandler(func(r *http.Request, a model.Actor, id uuid.UUID) (*model.Warranty, error) {
		return s.warranties.Get(r.Context(), a, id)
	})(w, r)
}

func (s *Server) updateWarranty(w http.ResponseWriter, r *http.Request) {
	s.warrantyHandler(func(r *http.Request, a model.Actor, id uuid.UUID) (*model.Warranty, error) {
		var req updateWarrantyRequest
		if err := decodeBody(r, &req); err != nil {
			return nil, err
		}
		return s.warranties.UpdateDraft(r.Context(), a, id, req.draft())
	})(w, r)
}

func (s *Server) attachWarrantyPhotos(w http.ResponseWriter, r *http.Request) {
	s.warrantyHandler(func(r *http.Request, a model.Actor, id uuid.UUID) (*model.Warranty, error) {
		var req photosRequest
		if err := decodeBody(r, &req); err != nil {
			return nil, err
		}
		return s.warranties.AttachPhotos(r.Context(), a, id, photosFromDTO(req.Photos))
	})(w, r)
}

func (s *Server) submitWarranty(w http.ResponseWriter, r *http.Request) {
	s.warrantyHandler(func(r *http.Request, a model.Actor, id uuid.UUID) (*model.Warranty, error) {
		return s.warranties.Submit(r.Context(), a, id)
	})(w, r)
}

func (s *Server) resendWarrantyVerification(w http.ResponseWriter, r *http.Request) {
	s.warrantyHandler(func(r *http.Request, a model.Actor, id uuid.UUID) (*model.Warranty, error) {
		return s.warranties.ResendVerification(r.Context(), a, id)
	})(w, r)
}

func (s *Server) resendActivation(w http.ResponseWriter, r *http.Request) {
	s.warrantyHandler(func(r *http.Request, a model.Actor, id uuid.UUID) (*model.Warranty, error) {
		return s.warranties.ResendActivation(r.Context(), a, id)
	})(w, r)
}

func (s *Server) warrantyHistory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	h, err := s.warranties.History(r.Context(), actor(r), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAudit(h))
}

func (s *Server) adminVerifyWarranty(w http.ResponseWriter, r *http.Request) {
	s.warrantyHandler(func(r *http.Request, a model.Actor, id uuid.UUID) (*model.Warranty, error) {
		var req adminVerifyRequest
		if err := decodeBody(r, &req); err != nil {
			return nil, err
		}
		return s.warranties.AdminOverride(r.Context(), a, id, service.OverrideInput{
			Target:                   model.WarrantyPendingActivation,
			Reason:                   req.Reason,
			Notes:                    req.Notes,
			SkipCustomerNotification: req.SkipCustomerNotification,
		})
	})(w, r)
}

func (s *Server) adminWarrantyStatus(w http.ResponseWriter, r *http.Request) {
	s.warrantyHandler(func(r *http.Request, a model.Actor, id uuid.UUID) (*model.Warranty, error) {
		var req statusRequest
		if err := decodeBody(r, &req); err != nil {
			return nil, err
		}
		return s.warranties.AdminOverride(r.Context(), a, id, service.OverrideInput{
			Target: model.WarrantyStatus(req.TargetStatus),
			Reason: req.Reason,
			Notes:  req.Notes,
		})
	})(w, r)
}

func (s *Server) deleteWarranty(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.warranties.SoftDelete(r.Context(), actor(r), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) eligibility(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if _, err := s.warranties.Get(r.Context(), actor(r), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	e, err := s.reinstatements.CheckEligibility(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, eligibilityResponse{
		WarrantyID:              e.WarrantyID,
		Eligible:                e.Eligible,
		Status:                  string(e.Status),
		DaysLapsed:              e.DaysLapsed,
		HasQualifyingInspection: e.HasQualifyingInspection,
		QualifyingInspectionID:  e.QualifyingInspectionID,
		Reason:                  e.Reason,
	})
}

func (s *Server) reinstate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req reinstateRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	out, rec, err := s.reinstatements.Reinstate(r.Context(), actor(r), id, service.ReinstateInput{
		Reason:       req.Reason,
		InspectionID: req.InspectionID,
		Notes:        req.Notes,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"warranty":      toWarranty(out),
		"reinstatement": toReinstatement(rec),
	})
}

func (s *Server) listReinstatements(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if _, err := s.warranties.Get(r.Context(), actor(r), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	list, err := s.reinstatements.List(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]reinstatementResponse, len(list))
	for i := range list {
		out[i] = toReinstatement(&list[i])
	}
	writeJSON(w, http.StatusOK, out)
}
