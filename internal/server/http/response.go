package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/and161185/warranty-keeper/internal/errs"
	"go.uber.org/zap"
)

type apiError struct {
	Error   string   `json:"error"`
	Message string   `json:"message,omitempty"`
	Details []string `json:"details,omitempty"`
}

var statusByCode = map[string]int{
	"VALIDATION_ERROR": http.StatusBadRequest,
	"TOKEN_EXPIRED":    http.StatusBadRequest,
	"TOKEN_INVALID":    http.StatusNotFound,
	"NOT_FOUND":        http.StatusNotFound,
	"FORBIDDEN":        http.StatusForbidden,
	"UNAUTHORIZED":     http.StatusUnauthorized,
	"INVALID_STATE":    http.StatusConflict,
	"CONFLICT":         http.StatusConflict,
	"RATE_LIMITED":     http.StatusTooManyRequests,
	"INTERNAL":         http.StatusInternalServerError,
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError maps err to its stable code. Internal failures never leak their text.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := errs.Code(err)
	status := statusByCode[code]
	body := apiError{Error: code, Details: errs.Details(err)}
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", append(requestFields(r), zap.Error(err))...)
	} else {
		body.Message = err.Error()
	}
	writeJSON(w, status, body)
}

const maxBody = 1 << 20

func decodeBody(r *http.Request, dst any) error { return decode(r, dst, false) }

// decodeOptional accepts an empty body.
func decodeOptional(r *http.Request, dst any) error { return decode(r, dst, true) }

func decode(r *http.Request, dst any, optional bool) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			if optional {
				return nil
			}
			return errs.Validation("request body is required")
		}
		return errs.Validation(fmt.Sprintf("malformed request body: %v", err))
	}
	return nil
}
