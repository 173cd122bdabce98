package models

// CommandKind names every operation a principal can ask the workflow for
type CommandKind string

// Command kinds
const (
	CommandCreateReport   CommandKind = "create_report"
	CommandListOwn        CommandKind = "list_own_reports"
	CommandGetReport      CommandKind = "get_report"
	CommandListAssigned   CommandKind = "list_assigned"
	CommandListReports    CommandKind = "list_reports"
	CommandListCleaners   CommandKind = "list_cleaners"
	CommandVerify         CommandKind = "verify"
	CommandAssign         CommandKind = "assign"
	CommandUploadAfter    CommandKind = "upload_after"
	CommandVerifyCleaning CommandKind = "verify_cleaning"
	CommandFinalize       CommandKind = "finalize"
	CommandManualStatus   CommandKind = "manual_status"
	CommandDeleteReport   CommandKind = "delete_report"
	CommandCreateUser     CommandKind = "create_user"
)

// ReadOnly reports whether the command never mutates state. Only read-only
// commands are allowed under degraded trust.
func (k CommandKind) ReadOnly() bool {
	switch k {
	case CommandListOwn, CommandGetReport, CommandListAssigned, CommandListReports, CommandListCleaners:
		return true
	default:
		return false
	}
}
