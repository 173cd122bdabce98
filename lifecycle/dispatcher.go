package lifecycle

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/trashio/trashio-api/auth"
	"github.com/trashio/trashio-api/databases"
	"github.com/trashio/trashio-api/models"
)

// DefaultStoreTimeout bounds the store calls a command makes once it holds the report lock
const DefaultStoreTimeout = 10 * time.Second

// responseMargin is kept free after the last store call to write the response
const responseMargin = 100 * time.Millisecond

// Dispatcher is the only writer of reports. Every command against a report
// id runs under that id's lock and commits conditionally on the version it read.
type Dispatcher struct {
	reports databases.ReportDatabase
	users   databases.UserDatabase
	locker  Locker

	// StoreTimeout bounds the store calls made under the report lock
	StoreTimeout time.Duration
	// Now is swapped in tests
	Now func() time.Time
}

// NewDispatcher wires the dispatcher to its stores and lock
func NewDispatcher(reports databases.ReportDatabase, users databases.UserDatabase, locker Locker) *Dispatcher {
	return &Dispatcher{
		reports:      reports,
		users:        users,
		locker:       locker,
		StoreTimeout: DefaultStoreTimeout,
		Now:          time.Now,
	}
}

func reportKey(id string) string {
	return "report:" + id
}

// lockDeadline is the latest moment a command may start its store calls. When
// ctx has a deadline it lies a full store round before it, so a command that
// gets going commits or fails before the caller stops listening.
func (d *Dispatcher) lockDeadline(ctx context.Context) (time.Time, bool, error) {
	deadline, ok := ctx.Deadline()
	if !ok {
		return time.Time{}, false, nil
	}
	latest := deadline.Add(-d.StoreTimeout - responseMargin)
	if !time.Now().Before(latest) {
		return time.Time{}, false, models.Unavailable("not enough time left to commit before the request deadline", context.DeadlineExceeded)
	}
	return latest, true, nil
}

// lock waits for the report lock until lockDeadline
func (d *Dispatcher) lock(ctx context.Context, reportID string) (func(), error) {
	latest, ok, err := d.lockDeadline(ctx)
	if err != nil {
		return nil, err
	}
	if ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, latest)
		defer cancel()
	}
	unlock, err := d.locker.Lock(ctx, reportKey(reportID))
	if err != nil {
		return nil, models.Unavailable("lock report", err)
	}
	return unlock, nil
}

// detach keeps a command running after the caller goes away so it either
// commits or fails as a whole
func (d *Dispatcher) detach(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), d.StoreTimeout)
}

// Dispatch loads the report, authorizes p, applies cmd and commits the result
func (d *Dispatcher) Dispatch(ctx context.Context, p models.Principal, reportID string, cmd Command) (*models.Report, error) {
	unlock, err := d.lock(ctx, reportID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	ctx, cancel := d.detach(ctx)
	defer cancel()

	current, err := d.load(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if err := auth.Authorize(p, cmd.Kind, current); err != nil {
		return nil, err
	}

	if cmd.CleanerID != "" && (cmd.Kind == models.CommandAssign || cmd.Kind == models.CommandManualStatus) {
		cmd.Assignee, err = d.cleaner(ctx, cmd.CleanerID)
		if err != nil {
			return nil, err
		}
	}

	next, err := Apply(*current, p, cmd, d.Now())
	if err != nil {
		return nil, err
	}
	if err := CheckInvariants(next); err != nil {
		zap.S().Errorw("transition rejected by invariant check",
			"reportId", reportID,
			"command", cmd.Kind,
			"error", err)
		return nil, err
	}

	if err := d.reports.Commit(ctx, next, current.Version); err != nil {
		if errors.Is(err, databases.ErrVersionConflict) {
			return nil, invalid("report was changed by another request")
		}
		return nil, models.Unavailable("commit report", err)
	}

	zap.S().Infow("report transitioned",
		"reportId", reportID,
		"command", cmd.Kind,
		"from", current.Status,
		"to", next.Status,
		"actor", p.SubjectID,
		"role", p.Role)
	return &next, nil
}

// Create stores a new Pending report for the citizen p
func (d *Dispatcher) Create(ctx context.Context, p models.Principal, in models.NewReport) (*models.Report, error) {
	if err := auth.Authorize(p, models.CommandCreateReport, nil); err != nil {
		return nil, err
	}
	report, err := NewPendingReport(p, in, d.Now())
	if err != nil {
		return nil, err
	}

	if _, _, err := d.lockDeadline(ctx); err != nil {
		return nil, err
	}

	ctx, cancel := d.detach(ctx)
	defer cancel()

	created, err := d.reports.InsertOne(ctx, report)
	if err != nil {
		return nil, models.Unavailable("insert report", err)
	}
	zap.S().Infow("report created", "reportId", created.ID.Hex(), "reporter", p.SubjectID)
	return created, nil
}

// Get returns one report if p may read it
func (d *Dispatcher) Get(ctx context.Context, p models.Principal, reportID string) (*models.Report, error) {
	report, err := d.load(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if err := auth.Authorize(p, models.CommandGetReport, report); err != nil {
		return nil, err
	}
	return report, nil
}

// ListOwn returns the reports p submitted, newest first
func (d *Dispatcher) ListOwn(ctx context.Context, p models.Principal) ([]models.Report, error) {
	if err := auth.Authorize(p, models.CommandListOwn, nil); err != nil {
		return nil, err
	}
	return d.find(ctx, bson.M{"reporterId": p.SubjectID})
}

// ListAssigned returns the reports assigned to the cleaner p, most recently
// assigned first
func (d *Dispatcher) ListAssigned(ctx context.Context, p models.Principal) ([]models.Report, error) {
	if err := auth.Authorize(p, models.CommandListAssigned, nil); err != nil {
		return nil, err
	}
	return d.find(ctx, bson.M{"assignedCleanerId": p.SubjectID}, databases.NewestAssignedFirst())
}

// List returns every report, optionally only those in status
func (d *Dispatcher) List(ctx context.Context, p models.Principal, status models.Status) ([]models.Report, error) {
	if err := auth.Authorize(p, models.CommandListReports, nil); err != nil {
		return nil, err
	}
	filter := bson.M{}
	if status != "" {
		if !status.Valid() {
			return nil, models.NewError(models.KindValidation, "unknown status %q", status)
		}
		filter["status"] = status
	}
	return d.find(ctx, filter)
}

// ListCleaners returns the active cleaner accounts an admin can assign
func (d *Dispatcher) ListCleaners(ctx context.Context, p models.Principal) ([]models.CleanerOption, error) {
	if err := auth.Authorize(p, models.CommandListCleaners, nil); err != nil {
		return nil, err
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	users, err := d.users.Find(ctx, bson.M{"role": models.RoleCleaner, "isActive": true}, opts)
	if err != nil {
		return nil, models.Unavailable("list cleaners", err)
	}
	cleaners := make([]models.CleanerOption, 0, len(users))
	for _, u := range users {
		open, err := d.reports.Count(ctx, bson.M{"assignedCleanerId": u.ID.Hex(), "status": models.StatusAssigned})
		if err != nil {
			return nil, models.Unavailable("count open assignments", err)
		}
		cleaners = append(cleaners, models.CleanerOption{
			ID:              u.ID.Hex(),
			FullName:        u.FullName,
			Email:           u.Email,
			OpenAssignments: open,
		})
	}
	return cleaners, nil
}

// Delete removes a report. It takes the report lock so it cannot interleave
// with a transition on the same id.
func (d *Dispatcher) Delete(ctx context.Context, p models.Principal, reportID string) error {
	unlock, err := d.lock(ctx, reportID)
	if err != nil {
		return err
	}
	defer unlock()

	ctx, cancel := d.detach(ctx)
	defer cancel()

	report, err := d.load(ctx, reportID)
	if err != nil {
		return err
	}
	if err := auth.Authorize(p, models.CommandDeleteReport, report); err != nil {
		return err
	}
	if err := d.reports.DeleteByID(ctx, reportID); err != nil {
		if errors.Is(err, databases.ErrNotFound) || errors.Is(err, databases.ErrInvalidID) {
			return models.NewError(models.KindNotFound, "report %s not found", reportID)
		}
		return models.Unavailable("delete report", err)
	}
	zap.S().Infow("report deleted", "reportId", reportID, "actor", p.SubjectID)
	return nil
}

// FinalizeApproved completes every Approved report as the system principal
// and returns how many were finalized. Reports that moved on in the meantime
// are skipped.
func (d *Dispatcher) FinalizeApproved(ctx context.Context) (int, error) {
	approved, err := d.find(ctx, bson.M{"status": models.StatusApproved})
	if err != nil {
		return 0, err
	}

	system := models.SystemPrincipal()
	finalized := 0
	for _, r := range approved {
		if err := ctx.Err(); err != nil {
			return finalized, err
		}
		_, err := d.Dispatch(ctx, system, r.ID.Hex(), Finalize())
		switch {
		case err == nil:
			finalized++
		case errors.Is(err, models.ErrInvalidTransition), errors.Is(err, models.ErrNotFound):
			zap.S().Infow("skipping report during finalize sweep", "reportId", r.ID.Hex(), "reason", err.Error())
		default:
			return finalized, err
		}
	}
	return finalized, nil
}

func (d *Dispatcher) load(ctx context.Context, reportID string) (*models.Report, error) {
	report, err := d.reports.FindByID(ctx, reportID)
	if err != nil {
		if errors.Is(err, databases.ErrNotFound) || errors.Is(err, databases.ErrInvalidID) {
			return nil, models.NewError(models.KindNotFound, "report %s not found", reportID)
		}
		return nil, models.Unavailable("load report", err)
	}
	return report, nil
}

func (d *Dispatcher) find(ctx context.Context, filter bson.M, sort ...*options.FindOptions) ([]models.Report, error) {
	if len(sort) == 0 {
		sort = append(sort, databases.NewestFirst())
	}
	reports, err := d.reports.Find(ctx, filter, sort...)
	if err != nil {
		return nil, models.Unavailable("list reports", err)
	}
	return reports, nil
}

// cleaner returns nil without error when id names no account
func (d *Dispatcher) cleaner(ctx context.Context, id string) (*models.User, error) {
	u, err := d.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, databases.ErrNotFound) || errors.Is(err, databases.ErrInvalidID) {
			return nil, nil
		}
		return nil, models.Unavailable("load cleaner", err)
	}
	return u, nil
}
