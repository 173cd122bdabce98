package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/trashio/trashio-api/api"
	"github.com/trashio/trashio-api/config"
	"github.com/trashio/trashio-api/models"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(b)
}

type normalizer interface {
	Normalize()
}

// decode reads a JSON body into v and checks its validate tags. Anything that
// is not a single JSON object of the expected shape is a validation error.
func decode(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return models.NewError(models.KindValidation, "malformed request body")
	}
	if n, ok := v.(normalizer); ok {
		n.Normalize()
	}
	return models.Validate(v)
}

func principal(r *http.Request) models.Principal {
	p, _ := api.PrincipalFromContext(r.Context())
	return p
}
