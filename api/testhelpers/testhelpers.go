// Package testhelpers holds in-memory stores for tests that need a working
// report and user database without mongo.
package testhelpers

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/trashio/trashio-api/databases"
	"github.com/trashio/trashio-api/models"
)

// Reports is an in-memory ReportDatabase with the same conditional commit as mongo
type Reports struct {
	mu      sync.Mutex
	reports map[string]models.Report
	Commits int
	// Err, when set, is returned by every read
	Err error
}

// NewReports returns an empty report store
func NewReports() *Reports {
	return &Reports{reports: make(map[string]models.Report)}
}

func (m *Reports) FindByID(ctx context.Context, id string) (*models.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	if _, err := primitive.ObjectIDFromHex(id); err != nil {
		return nil, databases.ErrInvalidID
	}
	r, ok := m.reports[id]
	if !ok {
		return nil, databases.ErrNotFound
	}
	c := r.Clone()
	return &c, nil
}

func (m *Reports) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	f, _ := filter.(bson.M)
	out := []models.Report{}
	for _, r := range m.reports {
		if matches(r, f) {
			out = append(out, r.Clone())
		}
	}
	byAssigned := false
	if len(opts) > 0 && opts[0] != nil {
		if keys, ok := opts[0].Sort.(bson.D); ok && len(keys) > 0 && keys[0].Key == "assignedAt" {
			byAssigned = true
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if ai, aj := assignedAt(out[i]), assignedAt(out[j]); byAssigned && !ai.Equal(aj) {
			return ai.After(aj)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (m *Reports) Count(ctx context.Context, filter interface{}) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return 0, m.Err
	}
	f, _ := filter.(bson.M)
	var n int64
	for _, r := range m.reports {
		if matches(r, f) {
			n++
		}
	}
	return n, nil
}

func assignedAt(r models.Report) time.Time {
	if r.AssignedAt == nil {
		return time.Time{}
	}
	return *r.AssignedAt
}

func matches(r models.Report, f bson.M) bool {
	for k, v := range f {
		switch k {
		case "reporterId":
			if r.ReporterID != v {
				return false
			}
		case "assignedCleanerId":
			if r.AssignedCleanerID != v {
				return false
			}
		case "status":
			if r.Status != v {
				return false
			}
		}
	}
	return true
}

func (m *Reports) InsertOne(ctx context.Context, report models.Report) (*models.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if report.ID.IsZero() {
		report.ID = primitive.NewObjectID()
	}
	m.reports[report.ID.Hex()] = report.Clone()
	return &report, nil
}

func (m *Reports) Commit(ctx context.Context, report models.Report, prevVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.reports[report.ID.Hex()]
	if !ok || cur.Version != prevVersion {
		return databases.ErrVersionConflict
	}
	m.reports[report.ID.Hex()] = report.Clone()
	m.Commits++
	return nil
}

func (m *Reports) DeleteByID(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.reports[id]; !ok {
		return databases.ErrNotFound
	}
	delete(m.reports, id)
	return nil
}

func (m *Reports) EnsureIndexes(ctx context.Context) error {
	return nil
}

// Stored returns a copy of the stored report, or the zero report
func (m *Reports) Stored(id string) models.Report {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reports[id].Clone()
}

// Users is an in-memory UserDatabase that enforces the unique email index
type Users struct {
	mu    sync.Mutex
	users map[string]models.User
	// Err, when set, is returned by every call
	Err error
}

// NewUsers returns a user store seeded with users
func NewUsers(users ...models.User) *Users {
	m := &Users{users: make(map[string]models.User)}
	for _, u := range users {
		m.users[u.ID.Hex()] = u
	}
	return m
}

func (m *Users) FindByID(ctx context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	if _, err := primitive.ObjectIDFromHex(id); err != nil {
		return nil, databases.ErrInvalidID
	}
	u, ok := m.users[id]
	if !ok {
		return nil, databases.ErrNotFound
	}
	return &u, nil
}

func (m *Users) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range m.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, databases.ErrNotFound
}

func (m *Users) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	f, _ := filter.(bson.M)
	out := []models.User{}
	for _, u := range m.users {
		if role, ok := f["role"]; ok && u.Role != role {
			continue
		}
		if active, ok := f["isActive"]; ok && u.IsActive != active {
			continue
		}
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (m *Users) InsertOne(ctx context.Context, user models.User) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	for _, u := range m.users {
		if u.Email == user.Email {
			return nil, databases.ErrDuplicateKey
		}
	}
	m.users[user.ID.Hex()] = user
	return &user, nil
}

func (m *Users) EnsureIndexes(ctx context.Context) error {
	return nil
}
