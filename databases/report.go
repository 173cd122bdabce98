package databases

// go generate: mockery --name ReportDatabase

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/trashio/trashio-api/models"
)

const reportName = "reports"

// ReportDatabase contains the methods to use with the report database
type ReportDatabase interface {
	FindByID(ctx context.Context, id string) (*models.Report, error)
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Report, error)
	Count(ctx context.Context, filter interface{}) (int64, error)
	InsertOne(ctx context.Context, report models.Report) (*models.Report, error)
	// Commit replaces the stored report if its version still equals prevVersion.
	Commit(ctx context.Context, report models.Report, prevVersion int64) error
	DeleteByID(ctx context.Context, id string) error
	EnsureIndexes(ctx context.Context) error
}

type reportDatabase struct {
	db DatabaseHelper
}

// NewReportDatabase initializes a new instance of report database with the provided db connection
func NewReportDatabase(db DatabaseHelper) ReportDatabase {
	return &reportDatabase{
		db: db,
	}
}

func (c *reportDatabase) FindByID(ctx context.Context, id string) (*models.Report, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrInvalidID
	}
	report := &models.Report{}
	err = c.db.Collection(reportName).FindOne(ctx, bson.M{"_id": oid}).Decode(&report)
	if err != nil {
		return nil, err
	}
	return report, nil
}

func (c *reportDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Report, error) {
	var reports []models.Report
	cur, err := c.db.Collection(reportName).Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	err = cur.Decode(&reports)
	if err != nil {
		return nil, err
	}
	if reports == nil {
		reports = []models.Report{}
	}
	return reports, nil
}

func (c *reportDatabase) Count(ctx context.Context, filter interface{}) (int64, error) {
	n, err := c.db.Collection(reportName).CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("count reports: %w", err)
	}
	return n, nil
}

func (c *reportDatabase) InsertOne(ctx context.Context, report models.Report) (*models.Report, error) {
	if report.ID.IsZero() {
		report.ID = primitive.NewObjectID()
	}
	if _, err := c.db.Collection(reportName).InsertOne(ctx, report); err != nil {
		return nil, fmt.Errorf("insert report: %w", err)
	}
	return &report, nil
}

func (c *reportDatabase) Commit(ctx context.Context, report models.Report, prevVersion int64) error {
	filter := bson.M{"_id": report.ID, "version": prevVersion}
	res, err := c.db.Collection(reportName).ReplaceOne(ctx, filter, report)
	if err != nil {
		return fmt.Errorf("replace report: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrVersionConflict
	}
	return nil
}

func (c *reportDatabase) DeleteByID(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrInvalidID
	}
	deleted, err := c.db.Collection(reportName).DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("delete report: %w", err)
	}
	if deleted == 0 {
		return ErrNotFound
	}
	return nil
}

func (c *reportDatabase) EnsureIndexes(ctx context.Context) error {
	return c.db.Collection(reportName).CreateIndexes(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "reporterId", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "assignedCleanerId", Value: 1}}},
	})
}

// NewestAssignedFirst sorts reports by assignment time, most recent first
func NewestAssignedFirst() *options.FindOptions {
	return options.Find().SetSort(bson.D{{Key: "assignedAt", Value: -1}, {Key: "createdAt", Value: -1}})
}

// NewestFirst sorts reports by creation time, newest first
func NewestFirst() *options.FindOptions {
	return options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
}
