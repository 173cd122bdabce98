package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/trashio/trashio-api/api"
	"github.com/trashio/trashio-api/auth"
	"github.com/trashio/trashio-api/lifecycle"
	"github.com/trashio/trashio-api/models"
)

// Report handles the citizen facing report routes
type Report struct {
	D *lifecycle.Dispatcher
}

// CreateReportHandler files a new Pending report for the caller
func (re Report) CreateReportHandler(w http.ResponseWriter, r *http.Request) {
	if err := auth.AuthorizeRole(principal(r), models.CommandCreateReport); err != nil {
		api.WriteError(w, err)
		return
	}
	var in models.NewReport
	if err := decode(r, &in); err != nil {
		api.WriteError(w, err)
		return
	}
	report, err := re.D.Create(r.Context(), principal(r), in)
	if err != nil {
		api.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, report)
}

// MyReportsHandler lists the caller's own reports, newest first
func (re Report) MyReportsHandler(w http.ResponseWriter, r *http.Request) {
	reports, err := re.D.ListOwn(r.Context(), principal(r))
	if err != nil {
		api.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reports)
}

// ReportByIDHandler returns one report the caller is allowed to see
func (re Report) ReportByIDHandler(w http.ResponseWriter, r *http.Request) {
	report, err := re.D.Get(r.Context(), principal(r), mux.Vars(r)["report_id"])
	if err != nil {
		api.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
