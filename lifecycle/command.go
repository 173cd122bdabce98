package lifecycle

import (
	"strings"

	"github.com/trashio/trashio-api/models"
)

// Review decisions for verify and verify_cleaning
const (
	ActionApprove = "approve"
	ActionReject  = "reject"
)

// Command is a request to move a report through its lifecycle
type Command struct {
	Kind      models.CommandKind `json:"-"`
	Action    string             `json:"action,omitempty" validate:"omitempty,oneof=approve reject"`
	Reason    string             `json:"reason,omitempty" validate:"max=200"`
	CleanerID string             `json:"cleaner_id,omitempty" validate:"max=64"`
	MediaRef  string             `json:"media_ref,omitempty" validate:"max=500"`
	Status    models.Status      `json:"status,omitempty" validate:"omitempty,status"`

	// Assignee is the stored account for CleanerID, filled in by the dispatcher
	Assignee *models.User `json:"-"`
}

// Verify builds a verify command
func Verify(action, reason string) Command {
	return Command{Kind: models.CommandVerify, Action: action, Reason: reason}
}

// Assign builds an assign command
func Assign(cleanerID string) Command {
	return Command{Kind: models.CommandAssign, CleanerID: cleanerID}
}

// UploadAfter builds an upload_after command
func UploadAfter(mediaRef string) Command {
	return Command{Kind: models.CommandUploadAfter, MediaRef: mediaRef}
}

// VerifyCleaning builds a verify_cleaning command
func VerifyCleaning(action, reason string) Command {
	return Command{Kind: models.CommandVerifyCleaning, Action: action, Reason: reason}
}

// Finalize builds a finalize command
func Finalize() Command {
	return Command{Kind: models.CommandFinalize}
}

// ManualStatus builds an admin override to status. cleanerID and mediaRef are
// optional and only consulted when the target status needs them.
func ManualStatus(status models.Status, cleanerID, mediaRef string) Command {
	return Command{Kind: models.CommandManualStatus, Status: status, CleanerID: cleanerID, MediaRef: mediaRef}
}

// Normalize trims the free text fields before validation
func (c *Command) Normalize() {
	c.Reason = strings.TrimSpace(c.Reason)
	c.CleanerID = strings.TrimSpace(c.CleanerID)
	c.MediaRef = strings.TrimSpace(c.MediaRef)
}

// Validate checks the payload shape for c.Kind. It never looks at the report.
func (c Command) Validate() error {
	c.Normalize()
	if err := models.Validate(c); err != nil {
		return err
	}
	switch c.Kind {
	case models.CommandVerify, models.CommandVerifyCleaning:
		return models.ValidateVar("action", c.Action, "required")
	case models.CommandAssign:
		return models.ValidateVar("cleaner_id", c.CleanerID, "required")
	case models.CommandUploadAfter:
		return models.ValidateVar("media_ref", c.MediaRef, "required")
	case models.CommandFinalize:
		return nil
	case models.CommandManualStatus:
		return models.ValidateVar("status", string(c.Status), "required")
	default:
		return models.NewError(models.KindValidation, "%q is not a lifecycle command", c.Kind)
	}
}

// ValidateNewReport checks a citizen's create_report payload
func ValidateNewReport(in models.NewReport) error {
	in.Normalize()
	return models.Validate(in)
}
