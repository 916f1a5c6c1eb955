package httpserver

import (
	"net/http"

	"github.com/and161185/warranty-keeper/internal/model"
	"github.com/and161185/warranty-keeper/internal/service"
	"github.com/gofrs/uuid/v5"
)

type inspectionOp func(r *http.Request, a model.Actor, id uuid.UUID) (*model.Inspection, error)

func (s *Server) inspectionHandler(op inspectionOp) http.HandlerFunc {
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
		writeJSON(w, http.StatusOK, toInspection(out))
	}
}

func (s *Server) createInspection(w http.ResponseWriter, r *http.Request) {
	var req createInspectionRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	out, err := s.inspections.Create(r.Context(), actor(r), req.input())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toInspection(out))
}

func (s *Server) getInspection(w http.ResponseWriter, r *http.Request) {
	s.inspectionHandler(func(r *http.Request, a model.Actor, id uuid.UUID) (*model.Inspection, error) {
		return s.inspections.Get(r.Context(), a, id)
	})(w, r)
}

func (s *Server) updateInspection(w http.ResponseWriter, r *http.Request) {
	s.inspectionHandler(func(r *http.Request, a model.Actor, id uuid.UUID) (*model.Inspection, error) {
		var req updateInspectionRequest
		if err := decodeBody(r, &req); err != nil {
			return nil, err
		}
		return s.inspections.UpdateDraft(r.Context(), a, id, req.draft())
	})(w, r)
}

func (s *Server) attachInspectionPhotos(w http.ResponseWriter, r *http.Request) {
	s.inspectionHandler(func(r *http.Request, a model.Actor, id uuid.UUID) (*model.Inspection, error) {
		var req photosRequest
		if err := decodeBody(r, &req); err != nil {
			return nil, err
		}
		return s.inspections.AttachPhotos(r.Context(), a, id, photosFromDTO(req.Photos))
	})(w, r)
}

func (s *Server) submitInspection(w http.ResponseWriter, r *http.Request) {
	s.inspectionHandler(func(r *http.Request, a model.Actor, id uuid.UUID) (*model.Inspection, error) {
		return s.inspections.Submit(r.Context(), a, id)
	})(w, r)
}

func (s *Server) resendInspectionVerification(w http.ResponseWriter, r *http.Request) {
	s.inspectionHandler(func(r *http.Request, a model.Actor, id uuid.UUID) (*model.Inspection, error) {
		return s.inspections.ResendVerification(r.Context(), a, id)
	})(w, r)
}

func (s *Server) inspectionHistory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	h, err := s.inspections.History(r.Context(), actor(r), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAudit(h))
}

func (s *Server) adminVerifyInspection(w http.ResponseWriter, r *http.Request) {
	s.inspectionHandler(func(r *http.Request, a model.Actor, id uuid.UUID) (*model.Inspection, error) {
		var req adminVerifyRequest
		if err := decodeBody(r, &req); err != nil {
			return nil, err
		}
		return s.inspections.AdminOverride(r.Context(), a, id, service.InspectionOverrideInput{
			Target: model.InspectionVerified,
			Reason: req.Reason,
			Notes:  req.Notes,
		})
	})(w, r)
}

func (s *Server) adminInspectionStatus(w http.ResponseWriter, r *http.Request) {
	s.inspectionHandler(func(r *http.Request, a model.Actor, id uuid.UUID) (*model.Inspection, error) {
		var req statusRequest
		if err := decodeBody(r, &req); err != nil {
			return nil, err
		}
		return s.inspections.AdminOverride(r.Context(), a, id, service.InspectionOverrideInput{
			Target: model.InspectionStatus(req.TargetStatus),
			Reason: req.Reason,
			Notes:  req.Notes,
		})
	})(w, r)
}
