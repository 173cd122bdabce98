package lifecycle

import (
	"github.com/trashio/trashio-api/models"
)

// CheckInvariants verifies the record level rules every stored report obeys
func CheckInvariants(r models.Report) error {
	if !r.Status.Valid() {
		return invalid("unknown status %q", r.Status)
	}

	if len(r.History) == 0 {
		return invalid("history is empty")
	}
	for i := 1; i < len(r.History); i++ {
		if r.History[i].Timestamp.Before(r.History[i-1].Timestamp) {
			return invalid("history entry %d is out of order", i)
		}
	}
	if last := r.History[len(r.History)-1]; last.Status != r.Status {
		return invalid("last history entry is %s, report is %s", last.Status, r.Status)
	}

	if r.Status.HasCleaner() != (r.AssignedCleanerID != "") {
		return invalid("assigned cleaner does not match status %s", r.Status)
	}

	switch {
	case r.Status.HasAfterMedia():
		if r.AfterMediaRef == "" {
			return invalid("%s report has no after media", r.Status)
		}
	case r.Status == models.StatusRejected:
	default:
		if r.AfterMediaRef != "" {
			return invalid("%s report carries after media", r.Status)
		}
	}

	switch r.Status {
	case models.StatusRejected:
		if r.RejectionReason == "" {
			return invalid("rejected report has no reason")
		}
	case models.StatusAssigned:
		// a cleaning rejection keeps its reason until the next upload
	default:
		if r.RejectionReason != "" {
			return invalid("%s report carries a rejection reason", r.Status)
		}
	}
	return nil
}
