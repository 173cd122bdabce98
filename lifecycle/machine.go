// Package lifecycle holds the report state machine and the dispatcher that
// serializes commands against the report store.
package lifecycle

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/trashio/trashio-api/models"
)

const (
	defaultVerifyRejectReason   = "Rejected by admin"
	defaultCleaningRejectReason = "Cleaning rejected by admin"
	defaultManualRejectReason   = "Updated by admin"
	manualOverrideNote          = "manual override"
)

// CanTransition reports whether the guarded table has an edge from -> to.
// Manual override does not consult it.
func CanTransition(from, to models.Status) bool {
	switch from {
	case models.StatusPending:
		return to == models.StatusVerified || to == models.StatusRejected
	case models.StatusVerified:
		return to == models.StatusAssigned
	case models.StatusAssigned:
		return to == models.StatusCleaned
	case models.StatusCleaned:
		return to == models.StatusApproved || to == models.StatusAssigned
	case models.StatusApproved:
		return to == models.StatusCompleted
	default:
		return false
	}
}

// NewPendingReport builds the initial record for a citizen's submission
func NewPendingReport(p models.Principal, in models.NewReport, now time.Time) (models.Report, error) {
	if err := ValidateNewReport(in); err != nil {
		return models.Report{}, err
	}
	now = now.UTC()
	return models.Report{
		ID:             primitive.NewObjectID(),
		ReporterID:     p.SubjectID,
		Description:    strings.TrimSpace(in.Description),
		Location:       models.Location{Lat: *in.Lat, Lng: *in.Lng},
		BeforeMediaRef: strings.TrimSpace(in.BeforeMediaRef),
		Status:         models.StatusPending,
		History: []models.HistoryEntry{{
			Status:    models.StatusPending,
			ActorID:   p.SubjectID,
			ActorRole: p.Role,
			Timestamp: now,
			Note:      "reported",
		}},
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Apply evaluates cmd against report and returns the next record. It is pure:
// report is never modified and on error nothing should be written.
//
// The caller is expected to have authorized p for cmd.Kind already.
func Apply(report models.Report, p models.Principal, cmd Command, now time.Time) (models.Report, error) {
	if err := cmd.Validate(); err != nil {
		return report, err
	}

	next := report.Clone()
	var note string

	switch cmd.Kind {
	case models.CommandVerify:
		if report.Status != models.StatusPending {
			return report, invalid("only Pending reports can be verified, report is %s", report.Status)
		}
		if cmd.Action == ActionApprove {
			next.Status = models.StatusVerified
			note = "verified"
		} else {
			next.Status = models.StatusRejected
			next.RejectionReason = reasonOr(cmd.Reason, defaultVerifyRejectReason)
			note = next.RejectionReason
		}

	case models.CommandAssign:
		if report.Status != models.StatusVerified {
			return report, invalid("only Verified reports can be assigned, report is %s", report.Status)
		}
		if !isActiveCleaner(cmd.Assignee, cmd.CleanerID) {
			return report, invalid("%s is not an active cleaner", cmd.CleanerID)
		}
		next.Status = models.StatusAssigned
		next.AssignedCleanerID = cmd.CleanerID
		note = "assigned to " + cmd.CleanerID

	case models.CommandUploadAfter:
		if report.Status != models.StatusAssigned {
			return report, invalid("only Assigned reports can be cleaned, report is %s", report.Status)
		}
		if report.AssignedCleanerID != p.SubjectID {
			return report, invalid("report is assigned to another cleaner")
		}
		next.Status = models.StatusCleaned
		next.AfterMediaRef = strings.TrimSpace(cmd.MediaRef)
		next.RejectionReason = ""
		note = "after media uploaded"

	case models.CommandVerifyCleaning:
		if report.Status != models.StatusCleaned {
			return report, invalid("only Cleaned reports can be reviewed, report is %s", report.Status)
		}
		if cmd.Action == ActionApprove {
			next.Status = models.StatusApproved
			note = "cleaning approved"
		} else {
			// back to the same cleaner for another attempt
			next.Status = models.StatusAssigned
			next.AfterMediaRef = ""
			next.RejectionReason = reasonOr(cmd.Reason, defaultCleaningRejectReason)
			note = next.RejectionReason
		}

	case models.CommandFinalize:
		if report.Status != models.StatusApproved {
			return report, invalid("only Approved reports can be finalized, report is %s", report.Status)
		}
		next.Status = models.StatusCompleted
		note = "finalized"

	case models.CommandManualStatus:
		if err := applyOverride(&next, report, cmd); err != nil {
			return report, err
		}
		note = manualOverrideNote

	default:
		return report, invalid("%s is not a lifecycle command", cmd.Kind)
	}

	ts := monotonic(report, now)
	next.History = append(next.History, models.HistoryEntry{
		Status:    next.Status,
		ActorID:   p.SubjectID,
		ActorRole: p.Role,
		Timestamp: ts,
		Note:      note,
	})
	switch {
	case next.AssignedCleanerID == "":
		next.AssignedAt = nil
	case cmd.CleanerID != "":
		at := ts
		next.AssignedAt = &at
	}
	next.Version = report.Version + 1
	next.UpdatedAt = ts
	return next, nil
}

// applyOverride moves next to cmd.Status directly while keeping the cleaner
// and media fields consistent with the target status.
func applyOverride(next *models.Report, prev models.Report, cmd Command) error {
	to := cmd.Status
	if to == prev.Status {
		return invalid("report is already %s", to)
	}

	if to.HasCleaner() {
		switch {
		case cmd.CleanerID != "":
			if !isActiveCleaner(cmd.Assignee, cmd.CleanerID) {
				return invalid("%s is not an active cleaner", cmd.CleanerID)
			}
			next.AssignedCleanerID = cmd.CleanerID
		case prev.AssignedCleanerID == "":
			return models.NewError(models.KindValidation, "cleaner_id is required to move a report to %s", to)
		}
	} else {
		next.AssignedCleanerID = ""
	}

	switch {
	case to.HasAfterMedia():
		if media := strings.TrimSpace(cmd.MediaRef); media != "" {
			next.AfterMediaRef = media
		} else if prev.AfterMediaRef == "" {
			return models.NewError(models.KindValidation, "media_ref is required to move a report to %s", to)
		}
	case to == models.StatusRejected:
		// media survives only when the report had already been cleaned
		if !prev.Status.HasAfterMedia() {
			next.AfterMediaRef = ""
		}
	default:
		next.AfterMediaRef = ""
	}

	if to == models.StatusRejected {
		if next.RejectionReason == "" {
			next.RejectionReason = defaultManualRejectReason
		}
	} else {
		next.RejectionReason = ""
	}

	next.Status = to
	return nil
}

func isActiveCleaner(u *models.User, id string) bool {
	return u != nil && u.ID.Hex() == id && u.Role == models.RoleCleaner && u.IsActive
}

func reasonOr(reason, fallback string) string {
	if r := strings.TrimSpace(reason); r != "" {
		return r
	}
	return fallback
}

// monotonic keeps history timestamps ordered even if the clock steps back
func monotonic(report models.Report, now time.Time) time.Time {
	now = now.UTC()
	if n := len(report.History); n > 0 {
		if last := report.History[n-1].Timestamp; now.Before(last) {
			return last
		}
	}
	return now
}

func invalid(format string, args ...interface{}) error {
	return models.NewError(models.KindInvalidTransition, format, args...)
}
