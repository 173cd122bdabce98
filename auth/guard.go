package auth

import (
	"github.com/trashio/trashio-api/models"
)

// Authorize decides whether p may issue the command kind against report.
// report is nil for commands that are not scoped to a single report.
//
// Role is checked first, then trust, then ownership for report scoped
// commands. A denied caller learns nothing about the report's state.
func Authorize(p models.Principal, kind models.CommandKind, report *models.Report) error {
	if err := AuthorizeRole(p, kind); err != nil {
		return err
	}

	switch kind {
	case models.CommandUploadAfter:
		if report == nil || report.AssignedCleanerID == "" || report.AssignedCleanerID != p.SubjectID {
			return models.NewError(models.KindForbidden, "report is not assigned to you")
		}
	case models.CommandGetReport:
		if !canRead(p, report) {
			return models.NewError(models.KindForbidden, "report is not visible to you")
		}
	}
	return nil
}

// AuthorizeRole runs the role and trust checks of Authorize without looking
// at a report. Handlers call it before reading a request body.
func AuthorizeRole(p models.Principal, kind models.CommandKind) error {
	if !roleAllowed(p.Role, kind) {
		return models.NewError(models.KindForbidden, "%s may not %s", p.Role, kind)
	}
	if p.Trust != models.TrustVerified && !kind.ReadOnly() {
		return models.NewError(models.KindSessionUnverified, "%s requires a verified session", kind)
	}
	return nil
}

func roleAllowed(role models.Role, kind models.CommandKind) bool {
	switch role {
	case models.RoleCitizen:
		switch kind {
		case models.CommandCreateReport, models.CommandListOwn, models.CommandGetReport:
			return true
		}
	case models.RoleCleaner:
		switch kind {
		case models.CommandListAssigned, models.CommandUploadAfter, models.CommandGetReport:
			return true
		}
	case models.RoleAdmin:
		switch kind {
		case models.CommandGetReport,
			models.CommandListReports,
			models.CommandListCleaners,
			models.CommandVerify,
			models.CommandAssign,
			models.CommandVerifyCleaning,
			models.CommandFinalize,
			models.CommandManualStatus,
			models.CommandDeleteReport,
			models.CommandCreateUser:
			return true
		}
	}
	return false
}

func canRead(p models.Principal, report *models.Report) bool {
	if report == nil {
		return false
	}
	switch p.Role {
	case models.RoleAdmin:
		return true
	case models.RoleCitizen:
		return report.ReporterID == p.SubjectID
	case models.RoleCleaner:
		return report.AssignedCleanerID != "" && report.AssignedCleanerID == p.SubjectID
	default:
		return false
	}
}
