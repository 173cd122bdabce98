package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/trashio/trashio-api/api"
	"github.com/trashio/trashio-api/auth"
	"github.com/trashio/trashio-api/lifecycle"
	"github.com/trashio/trashio-api/models"
)

// Cleaner handles the routes used by cleaning crews
type Cleaner struct {
	D *lifecycle.Dispatcher
}

// AssignedReportsHandler lists the reports assigned to the calling cleaner
func (c Cleaner) AssignedReportsHandler(w http.ResponseWriter, r *http.Request) {
	reports, err := c.D.ListAssigned(r.Context(), principal(r))
	if err != nil {
		api.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reports)
}

// UploadAfterHandler attaches the after-cleaning media and moves the report to Cleaned
func (c Cleaner) UploadAfterHandler(w http.ResponseWriter, r *http.Request) {
	dispatch(w, r, c.D, models.CommandUploadAfter)
}

// dispatch decodes the body into a command of the given kind and runs it
// against the report named in the route
func dispatch(w http.ResponseWriter, r *http.Request, d *lifecycle.Dispatcher, kind models.CommandKind) {
	if err := auth.AuthorizeRole(principal(r), kind); err != nil {
		api.WriteError(w, err)
		return
	}
	var cmd lifecycle.Command
	if err := decode(r, &cmd); err != nil {
		api.WriteError(w, err)
		return
	}
	cmd.Kind = kind
	report, err := d.Dispatch(r.Context(), principal(r), mux.Vars(r)["report_id"], cmd)
	if err != nil {
		api.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
