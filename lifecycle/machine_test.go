package lifecycle_test

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/trashio/trashio-api/lifecycle"
	"github.com/trashio/trashio-api/models"
)

var (
	t0          = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	adminP      = models.Principal{SubjectID: "64b7f0c2a1b2c3d4e5f60001", Role: models.RoleAdmin, Trust: models.TrustVerified}
	citizenP    = models.Principal{SubjectID: "64b7f0c2a1b2c3d4e5f60002", Role: models.RoleCitizen, Trust: models.TrustVerified}
	cleanerID   = primitive.NewObjectID()
	cleanerUser = models.User{ID: cleanerID, FullName: "Bo Cleaner", Email: "bo@example.com", Role: models.RoleCleaner, IsActive: true}
	cleanerP    = models.Principal{SubjectID: cleanerID.Hex(), Role: models.RoleCleaner, Trust: models.TrustVerified}
)

func coord(v float64) *float64 {
	return &v
}

func reportIn(status models.Status) models.Report {
	r, err := lifecycle.NewPendingReport(citizenP, models.NewReport{
		Description:    "bags piled at the corner",
		Lat:            coord(12.97),
		Lng:            coord(77.59),
		BeforeMediaRef: "media/before.jpg",
	}, t0)
	if err != nil {
		panic(err)
	}
	if status == models.StatusPending {
		return r
	}
	r.Status = status
	if status.HasCleaner() {
		r.AssignedCleanerID = cleanerID.Hex()
	}
	if status.HasAfterMedia() {
		r.AfterMediaRef = "media/after.jpg"
	}
	if status == models.StatusRejected {
		r.RejectionReason = "duplicate"
	}
	r.History = append(r.History, models.HistoryEntry{Status: status, ActorID: adminP.SubjectID, ActorRole: models.RoleAdmin, Timestamp: t0})
	return r
}

func assignCmd() lifecycle.Command {
	cmd := lifecycle.Assign(cleanerID.Hex())
	u := cleanerUser
	cmd.Assignee = &u
	return cmd
}

func TestNewPendingReport(t *testing.T) {
	r := reportIn(models.StatusPending)

	assert.Equal(t, models.StatusPending, r.Status)
	assert.Equal(t, citizenP.SubjectID, r.ReporterID)
	assert.Equal(t, int64(1), r.Version)
	require.Len(t, r.History, 1)
	assert.Equal(t, models.StatusPending, r.History[0].Status)
	assert.NoError(t, lifecycle.CheckInvariants(r))
}

func TestNewPendingReport_Validation(t *testing.T) {
	valid := models.NewReport{Description: "litter", Lat: coord(1), Lng: coord(1), BeforeMediaRef: "m"}
	tests := []struct {
		name   string
		mutate func(*models.NewReport)
	}{
		{"short description", func(n *models.NewReport) { n.Description = "ab" }},
		{"blank description", func(n *models.NewReport) { n.Description = "     " }},
		{"nan lat", func(n *models.NewReport) { n.Lat = coord(math.NaN()) }},
		{"inf lng", func(n *models.NewReport) { n.Lng = coord(math.Inf(1)) }},
		{"lat out of range", func(n *models.NewReport) { n.Lat = coord(91) }},
		{"lng out of range", func(n *models.NewReport) { n.Lng = coord(-181) }},
		{"missing lat", func(n *models.NewReport) { n.Lat = nil }},
		{"missing lng", func(n *models.NewReport) { n.Lng = nil }},
		{"missing media", func(n *models.NewReport) { n.BeforeMediaRef = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.mutate(&in)
			_, err := lifecycle.NewPendingReport(citizenP, in, t0)
			assert.ErrorIs(t, err, models.ErrValidation)
		})
	}
}

func TestApply_TransitionTable(t *testing.T) {
	tests := []struct {
		name string
		from models.Status
		p    models.Principal
		cmd  lifecycle.Command
		to   models.Status
	}{
		{"verify approve", models.StatusPending, adminP, lifecycle.Verify("approve", ""), models.StatusVerified},
		{"verify reject", models.StatusPending, adminP, lifecycle.Verify("reject", "not garbage"), models.StatusRejected},
		{"assign", models.StatusVerified, adminP, assignCmd(), models.StatusAssigned},
		{"upload after", models.StatusAssigned, cleanerP, lifecycle.UploadAfter("media/after.jpg"), models.StatusCleaned},
		{"cleaning approved", models.StatusCleaned, adminP, lifecycle.VerifyCleaning("approve", ""), models.StatusApproved},
		{"cleaning rejected", models.StatusCleaned, adminP, lifecycle.VerifyCleaning("reject", ""), models.StatusAssigned},
		{"finalize", models.StatusApproved, models.SystemPrincipal(), lifecycle.Finalize(), models.StatusCompleted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := reportIn(tt.from)
			next, err := lifecycle.Apply(before, tt.p, tt.cmd, t0.Add(time.Minute))
			require.NoError(t, err)

			assert.Equal(t, tt.to, next.Status)
			assert.True(t, lifecycle.CanTransition(tt.from, tt.to))
			assert.Equal(t, before.Version+1, next.Version)
			assert.Len(t, next.History, len(before.History)+1)
			last := next.History[len(next.History)-1]
			assert.Equal(t, tt.to, last.Status)
			assert.Equal(t, tt.p.SubjectID, last.ActorID)
			assert.Equal(t, tt.p.Role, last.ActorRole)
			assert.NoError(t, lifecycle.CheckInvariants(next))

			// the input is untouched
			assert.Equal(t, tt.from, before.Status)
		})
	}
}

func TestApply_WrongSourceState(t *testing.T) {
	cmds := map[string]lifecycle.Command{
		"verify reject":   lifecycle.Verify("reject", "spam"),
		"verify approve":  lifecycle.Verify("approve", ""),
		"assign":          assignCmd(),
		"upload after":    lifecycle.UploadAfter("media/after.jpg"),
		"verify cleaning": lifecycle.VerifyCleaning("approve", ""),
		"finalize":        lifecycle.Finalize(),
	}
	legal := map[string]models.Status{
		"verify reject":   models.StatusPending,
		"verify approve":  models.StatusPending,
		"assign":          models.StatusVerified,
		"upload after":    models.StatusAssigned,
		"verify cleaning": models.StatusCleaned,
		"finalize":        models.StatusApproved,
	}
	for name, cmd := range cmds {
		for _, from := range models.Statuses {
			if from == legal[name] {
				continue
			}
			p := adminP
			if cmd.Kind == models.CommandUploadAfter {
				p = cleanerP
			}
			before := reportIn(from)
			next, err := lifecycle.Apply(before, p, cmd, t0)
			assert.ErrorIs(t, err, models.ErrInvalidTransition, "%s from %s", name, from)
			assert.Equal(t, before, next, "%s from %s must not mutate", name, from)
		}
	}
}

func TestApply_VerifyRejectReason(t *testing.T) {
	next, err := lifecycle.Apply(reportIn(models.StatusPending), adminP, lifecycle.Verify("reject", ""), t0)
	require.NoError(t, err)
	assert.Equal(t, "Rejected by admin", next.RejectionReason)

	next, err = lifecycle.Apply(reportIn(models.StatusPending), adminP, lifecycle.Verify("reject", "  duplicate  "), t0)
	require.NoError(t, err)
	assert.Equal(t, "duplicate", next.RejectionReason)
}

func TestApply_CleaningRejectRoundTrip(t *testing.T) {
	cleaned := reportIn(models.StatusCleaned)

	back, err := lifecycle.Apply(cleaned, adminP, lifecycle.VerifyCleaning("reject", "still dirty"), t0.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, models.StatusAssigned, back.Status)
	assert.Empty(t, back.AfterMediaRef)
	assert.Equal(t, cleaned.AssignedCleanerID, back.AssignedCleanerID)
	assert.Equal(t, "still dirty", back.RejectionReason)
	assert.NoError(t, lifecycle.CheckInvariants(back))

	again, err := lifecycle.Apply(back, cleanerP, lifecycle.UploadAfter("media/after-2.jpg"), t0.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, models.StatusCleaned, again.Status)
	assert.Equal(t, "media/after-2.jpg", again.AfterMediaRef)
	assert.Empty(t, again.RejectionReason)
}

func TestApply_AssignGuards(t *testing.T) {
	verified := reportIn(models.StatusVerified)

	citizen := models.User{ID: primitive.NewObjectID(), Role: models.RoleCitizen, IsActive: true}
	inactive := cleanerUser
	inactive.IsActive = false

	tests := []struct {
		name     string
		id       string
		assignee *models.User
	}{
		{"unknown account", primitive.NewObjectID().Hex(), nil},
		{"not a cleaner", citizen.ID.Hex(), &citizen},
		{"inactive cleaner", cleanerID.Hex(), &inactive},
		{"assignee does not match id", primitive.NewObjectID().Hex(), &cleanerUser},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := lifecycle.Assign(tt.id)
			cmd.Assignee = tt.assignee
			_, err := lifecycle.Apply(verified, adminP, cmd, t0)
			assert.ErrorIs(t, err, models.ErrInvalidTransition)
		})
	}

	_, err := lifecycle.Apply(verified, adminP, lifecycle.Assign(""), t0)
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestApply_UploadAfterByAnotherCleaner(t *testing.T) {
	other := models.Principal{SubjectID: primitive.NewObjectID().Hex(), Role: models.RoleCleaner, Trust: models.TrustVerified}
	_, err := lifecycle.Apply(reportIn(models.StatusAssigned), other, lifecycle.UploadAfter("m"), t0)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
}

func TestApply_PayloadValidation(t *testing.T) {
	long := make([]byte, 201)
	for i := range long {
		long[i] = 'x'
	}
	tests := []struct {
		name string
		from models.Status
		cmd  lifecycle.Command
	}{
		{"unknown action", models.StatusPending, lifecycle.Verify("maybe", "")},
		{"reason too long", models.StatusPending, lifecycle.Verify("reject", string(long))},
		{"missing action", models.StatusPending, lifecycle.Verify("", "")},
		{"missing media", models.StatusAssigned, lifecycle.UploadAfter("  ")},
		{"missing cleaner", models.StatusVerified, lifecycle.Assign(" ")},
		{"missing override status", models.StatusPending, lifecycle.ManualStatus("", "", "")},
		{"unknown override status", models.StatusPending, lifecycle.ManualStatus("Lost", "", "")},
		{"not a lifecycle command", models.StatusPending, lifecycle.Command{Kind: models.CommandListOwn}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := lifecycle.Apply(reportIn(tt.from), adminP, tt.cmd, t0)
			assert.ErrorIs(t, err, models.ErrValidation)
		})
	}
}

func TestApply_ManualOverride(t *testing.T) {
	tests := []struct {
		name       string
		from       models.Status
		cmd        lifecycle.Command
		wantErr    error
		wantClean  bool
		wantMedia  bool
		wantReason string
	}{
		{name: "completed from pending needs a cleaner", from: models.StatusPending, cmd: lifecycle.ManualStatus(models.StatusCompleted, "", ""), wantErr: models.ErrValidation},
		{name: "completed from assigned needs media", from: models.StatusAssigned, cmd: lifecycle.ManualStatus(models.StatusCompleted, "", ""), wantErr: models.ErrValidation},
		{name: "completed from assigned with media", from: models.StatusAssigned, cmd: lifecycle.ManualStatus(models.StatusCompleted, "", "media/after.jpg"), wantClean: true, wantMedia: true},
		{name: "back to pending clears work", from: models.StatusApproved, cmd: lifecycle.ManualStatus(models.StatusPending, "", "")},
		{name: "rejected after cleaning keeps media", from: models.StatusCleaned, cmd: lifecycle.ManualStatus(models.StatusRejected, "", ""), wantMedia: true, wantReason: "Updated by admin"},
		{name: "rejected before cleaning drops media", from: models.StatusAssigned, cmd: lifecycle.ManualStatus(models.StatusRejected, "", ""), wantReason: "Updated by admin"},
		{name: "reopen rejected clears reason", from: models.StatusRejected, cmd: lifecycle.ManualStatus(models.StatusVerified, "", "")},
		{name: "same status is a duplicate", from: models.StatusVerified, cmd: lifecycle.ManualStatus(models.StatusVerified, "", ""), wantErr: models.ErrInvalidTransition},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := reportIn(tt.from)
			next, err := lifecycle.Apply(before, adminP, tt.cmd, t0.Add(time.Hour))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.cmd.Status, next.Status)
			assert.Equal(t, tt.wantClean, next.AssignedCleanerID != "")
			assert.Equal(t, tt.wantMedia, next.AfterMediaRef != "")
			assert.Equal(t, tt.wantReason, next.RejectionReason)
			assert.Equal(t, "manual override", next.History[len(next.History)-1].Note)
			assert.NoError(t, lifecycle.CheckInvariants(next))
		})
	}
}

func TestApply_ManualOverrideWithCleaner(t *testing.T) {
	cmd := lifecycle.ManualStatus(models.StatusAssigned, cleanerID.Hex(), "")
	u := cleanerUser
	cmd.Assignee = &u

	next, err := lifecycle.Apply(reportIn(models.StatusPending), adminP, cmd, t0)
	require.NoError(t, err)
	assert.Equal(t, cleanerID.Hex(), next.AssignedCleanerID)
	assert.NoError(t, lifecycle.CheckInvariants(next))

	cmd.Assignee = nil
	_, err = lifecycle.Apply(reportIn(models.StatusPending), adminP, cmd, t0)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
}

func TestApply_TimestampsStayOrdered(t *testing.T) {
	r := reportIn(models.StatusPending)

	next, err := lifecycle.Apply(r, adminP, lifecycle.Verify("approve", ""), t0.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, t0, next.History[1].Timestamp)
	assert.NoError(t, lifecycle.CheckInvariants(next))
}

func TestCheckInvariants(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*models.Report)
	}{
		{"unknown status", func(r *models.Report) { r.Status = "Lost" }},
		{"empty history", func(r *models.Report) { r.History = nil }},
		{"history tail mismatch", func(r *models.Report) { r.History[len(r.History)-1].Status = models.StatusPending }},
		{"history out of order", func(r *models.Report) { r.History[len(r.History)-1].Timestamp = t0.Add(-time.Hour) }},
		{"cleaner missing", func(r *models.Report) { r.AssignedCleanerID = "" }},
		{"media missing", func(r *models.Report) { r.AfterMediaRef = "" }},
		{"stray reason", func(r *models.Report) { r.RejectionReason = "nope" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := reportIn(models.StatusApproved)
			require.NoError(t, lifecycle.CheckInvariants(r))
			tt.mutate(&r)
			assert.ErrorIs(t, lifecycle.CheckInvariants(r), models.ErrInvalidTransition)
		})
	}

	verified := reportIn(models.StatusVerified)
	verified.AssignedCleanerID = cleanerID.Hex()
	assert.Error(t, lifecycle.CheckInvariants(verified))

	rejected := reportIn(models.StatusRejected)
	rejected.RejectionReason = ""
	assert.Error(t, lifecycle.CheckInvariants(rejected))
}
