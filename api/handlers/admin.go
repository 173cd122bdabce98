package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/trashio/trashio-api/api"
	"github.com/trashio/trashio-api/auth"
	"github.com/trashio/trashio-api/lifecycle"
	"github.com/trashio/trashio-api/models"
)

// Admin handles the moderation routes
type Admin struct {
	D     *lifecycle.Dispatcher
	Users User
}

// ReportsHandler lists every report, optionally filtered with ?status=
func (a Admin) ReportsHandler(w http.ResponseWriter, r *http.Request) {
	status := models.Status(r.URL.Query().Get("status"))
	reports, err := a.D.List(r.Context(), principal(r), status)
	if err != nil {
		api.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reports)
}

// CleanersHandler lists the active cleaner accounts that can take an assignment
func (a Admin) CleanersHandler(w http.ResponseWriter, r *http.Request) {
	cleaners, err := a.D.ListCleaners(r.Context(), principal(r))
	if err != nil {
		api.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cleaners)
}

// VerifyHandler approves or rejects a Pending report
func (a Admin) VerifyHandler(w http.ResponseWriter, r *http.Request) {
	dispatch(w, r, a.D, models.CommandVerify)
}

// AssignHandler hands a Verified report to a cleaner
func (a Admin) AssignHandler(w http.ResponseWriter, r *http.Request) {
	dispatch(w, r, a.D, models.CommandAssign)
}

// VerifyCleaningHandler approves or sends back a Cleaned report
func (a Admin) VerifyCleaningHandler(w http.ResponseWriter, r *http.Request) {
	dispatch(w, r, a.D, models.CommandVerifyCleaning)
}

// FinalizeHandler completes an Approved report. It takes no body.
func (a Admin) FinalizeHandler(w http.ResponseWriter, r *http.Request) {
	report, err := a.D.Dispatch(r.Context(), principal(r), mux.Vars(r)["report_id"], lifecycle.Finalize())
	if err != nil {
		api.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// UpdateStatusHandler is the manual status override
func (a Admin) UpdateStatusHandler(w http.ResponseWriter, r *http.Request) {
	dispatch(w, r, a.D, models.CommandManualStatus)
}

// DeleteReportHandler removes a report
func (a Admin) DeleteReportHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["report_id"]
	if err := a.D.Delete(r.Context(), principal(r), id); err != nil {
		api.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.DeleteResponse{Success: true, ID: id})
}

// CreateUserHandler lets an admin create admin or cleaner accounts
func (a Admin) CreateUserHandler(w http.ResponseWriter, r *http.Request) {
	if err := auth.Authorize(principal(r), models.CommandCreateUser, nil); err != nil {
		api.WriteError(w, err)
		return
	}
	var in models.UserCreate
	if err := decode(r, &in); err != nil {
		api.WriteError(w, err)
		return
	}
	if in.Role != models.RoleAdmin && in.Role != models.RoleCleaner {
		api.WriteError(w, models.NewError(models.KindValidation, "role must be admin or cleaner"))
		return
	}
	user, err := a.Users.createAccount(r.Context(), in)
	if err != nil {
		api.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}
