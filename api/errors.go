package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/trashio/trashio-api/models"
)

// StatusFor maps an error kind to its HTTP status
func StatusFor(kind models.ErrorKind) int {
	switch kind {
	case models.KindInvalidCredential:
		return http.StatusUnauthorized
	case models.KindSessionUnverified, models.KindForbidden:
		return http.StatusForbidden
	case models.KindNotFound:
		return http.StatusNotFound
	case models.KindInvalidTransition, models.KindConflict:
		return http.StatusConflict
	case models.KindValidation:
		return http.StatusUnprocessableEntity
	case models.KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// WriteError renders err as an ErrorResponse. Wrapped causes are logged, never sent.
func WriteError(w http.ResponseWriter, err error) {
	resp := models.ErrorResponse{Success: false, Error: "internal error"}

	status := http.StatusInternalServerError
	var we *models.WorkflowError
	if errors.As(err, &we) {
		resp.Error = we.Message
		resp.Code = string(we.Kind)
		status = StatusFor(we.Kind)
	}
	if status >= http.StatusInternalServerError {
		zap.S().Errorw("request failed", "status", status, "error", err)
	}

	b, _ := json.Marshal(resp)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(b)
}
