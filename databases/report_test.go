package databases_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/trashio/trashio-api/config"
	"github.com/trashio/trashio-api/databases"
	"github.com/trashio/trashio-api/databases/mocks"
	"github.com/trashio/trashio-api/models"
)

func TestNewReportDatabase(t *testing.T) {
	os.Setenv("DB_URI", "mongodb://127.0.0.1:27017")
	os.Setenv("DB_NAME", "test")
	conf := config.New()

	dbClient, err := databases.NewClient(conf)
	assert.NoError(t, err)

	db := databases.NewDatabase(conf, dbClient)

	reportDB := databases.NewReportDatabase(db)

	assert.NotEmpty(t, reportDB)
}

func TestReportDatabase_FindByID(t *testing.T) {
	oid := primitive.NewObjectID()
	missing := primitive.NewObjectID()

	dbHelper := mocks.NewDatabaseHelper(t)
	collectionHelper := mocks.NewCollectionHelper(t)
	srHelperErr := mocks.NewSingleResultHelper(t)
	srHelperCorrect := mocks.NewSingleResultHelper(t)

	srHelperErr.On("Decode", mock.Anything).Return(databases.ErrNotFound)
	srHelperCorrect.On("Decode", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(0).(**models.Report)
		(*arg).ID = oid
		(*arg).Status = models.StatusPending
	})

	collectionHelper.On("FindOne", context.Background(), bson.M{"_id": missing}).Return(srHelperErr)
	collectionHelper.On("FindOne", context.Background(), bson.M{"_id": oid}).Return(srHelperCorrect)
	dbHelper.On("Collection", "reports").Return(collectionHelper)

	reportDB := databases.NewReportDatabase(dbHelper)

	report, err := reportDB.FindByID(context.Background(), missing.Hex())
	assert.Nil(t, report)
	assert.ErrorIs(t, err, databases.ErrNotFound)

	report, err = reportDB.FindByID(context.Background(), oid.Hex())
	assert.NoError(t, err)
	assert.Equal(t, oid, report.ID)
	assert.Equal(t, models.StatusPending, report.Status)
}

func TestReportDatabase_FindByIDInvalidHex(t *testing.T) {
	reportDB := databases.NewReportDatabase(mocks.NewDatabaseHelper(t))

	report, err := reportDB.FindByID(context.Background(), "not-an-id")
	assert.Nil(t, report)
	assert.ErrorIs(t, err, databases.ErrInvalidID)
}

func TestReportDatabase_Find(t *testing.T) {
	dbHelper := mocks.NewDatabaseHelper(t)
	collectionHelper := mocks.NewCollectionHelper(t)
	cursorCorrect := mocks.NewCursorHelper(t)
	cursorEmpty := mocks.NewCursorHelper(t)

	cursorCorrect.On("Decode", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(0).(*[]models.Report)
		*arg = []models.Report{{Description: "overflowing bin"}}
	})
	cursorEmpty.On("Decode", mock.Anything).Return(nil)

	collectionHelper.On("Find", context.Background(), bson.M{"error": true}).Return(nil, errors.New("mocked-error"))
	collectionHelper.On("Find", context.Background(), bson.M{"status": "Pending"}).Return(cursorCorrect, nil)
	collectionHelper.On("Find", context.Background(), bson.M{"status": "Completed"}).Return(cursorEmpty, nil)
	dbHelper.On("Collection", "reports").Return(collectionHelper)

	reportDB := databases.NewReportDatabase(dbHelper)

	reports, err := reportDB.Find(context.Background(), bson.M{"error": true})
	assert.Nil(t, reports)
	assert.EqualError(t, err, "mocked-error")

	reports, err = reportDB.Find(context.Background(), bson.M{"status": "Pending"})
	assert.NoError(t, err)
	assert.Equal(t, []models.Report{{Description: "overflowing bin"}}, reports)

	reports, err = reportDB.Find(context.Background(), bson.M{"status": "Completed"})
	assert.NoError(t, err)
	assert.NotNil(t, reports)
	assert.Empty(t, reports)
}

func TestReportDatabase_Count(t *testing.T) {
	open := bson.M{"assignedCleanerId": "c1", "status": models.StatusAssigned}
	broken := bson.M{"assignedCleanerId": "c2", "status": models.StatusAssigned}

	dbHelper := mocks.NewDatabaseHelper(t)
	collectionHelper := mocks.NewCollectionHelper(t)

	collectionHelper.On("CountDocuments", context.Background(), open).Return(int64(2), nil)
	collectionHelper.On("CountDocuments", context.Background(), broken).Return(int64(0), errors.New("mocked-error"))
	dbHelper.On("Collection", "reports").Return(collectionHelper)

	reportDB := databases.NewReportDatabase(dbHelper)

	n, err := reportDB.Count(context.Background(), open)
	assert.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = reportDB.Count(context.Background(), broken)
	assert.Zero(t, n)
	assert.ErrorContains(t, err, "mocked-error")
}

func TestReportDatabase_InsertOne(t *testing.T) {
	dbHelper := mocks.NewDatabaseHelper(t)
	collectionHelper := mocks.NewCollectionHelper(t)
	insertResult := mocks.NewInsertOneResultHelper(t)

	collectionHelper.On("InsertOne", context.Background(), mock.AnythingOfType("models.Report")).Return(insertResult, nil).Once()
	collectionHelper.On("InsertOne", context.Background(), mock.AnythingOfType("models.Report")).Return(nil, errors.New("mocked-error")).Once()
	dbHelper.On("Collection", "reports").Return(collectionHelper)

	reportDB := databases.NewReportDatabase(dbHelper)

	report, err := reportDB.InsertOne(context.Background(), models.Report{Description: "bags by the road"})
	assert.NoError(t, err)
	assert.False(t, report.ID.IsZero())

	report, err = reportDB.InsertOne(context.Background(), models.Report{Description: "bags by the road"})
	assert.Nil(t, report)
	assert.ErrorContains(t, err, "mocked-error")
}

func TestReportDatabase_Commit(t *testing.T) {
	oid := primitive.NewObjectID()
	report := models.Report{ID: oid, Version: 3}

	tests := []struct {
		name    string
		result  *mongo.UpdateResult
		err     error
		wantErr error
	}{
		{"committed", &mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil, nil},
		{"stale version", &mongo.UpdateResult{MatchedCount: 0}, nil, databases.ErrVersionConflict},
		{"driver error", nil, errors.New("mocked-error"), errors.New("mocked-error")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dbHelper := mocks.NewDatabaseHelper(t)
			collectionHelper := mocks.NewCollectionHelper(t)

			collectionHelper.On("ReplaceOne", context.Background(), bson.M{"_id": oid, "version": int64(2)}, report).Return(tt.result, tt.err)
			dbHelper.On("Collection", "reports").Return(collectionHelper)

			err := databases.NewReportDatabase(dbHelper).Commit(context.Background(), report, 2)
			switch {
			case tt.wantErr == nil:
				assert.NoError(t, err)
			case errors.Is(tt.wantErr, databases.ErrVersionConflict):
				assert.ErrorIs(t, err, databases.ErrVersionConflict)
			default:
				assert.ErrorContains(t, err, tt.wantErr.Error())
			}
		})
	}
}

func TestReportDatabase_DeleteByID(t *testing.T) {
	oid := primitive.NewObjectID()
	missing := primitive.NewObjectID()

	dbHelper := mocks.NewDatabaseHelper(t)
	collectionHelper := mocks.NewCollectionHelper(t)

	collectionHelper.On("DeleteOne", context.Background(), bson.M{"_id": oid}).Return(int64(1), nil)
	collectionHelper.On("DeleteOne", context.Background(), bson.M{"_id": missing}).Return(int64(0), nil)
	dbHelper.On("Collection", "reports").Return(collectionHelper)

	reportDB := databases.NewReportDatabase(dbHelper)

	assert.NoError(t, reportDB.DeleteByID(context.Background(), oid.Hex()))
	assert.ErrorIs(t, reportDB.DeleteByID(context.Background(), missing.Hex()), databases.ErrNotFound)
	assert.ErrorIs(t, reportDB.DeleteByID(context.Background(), "zzz"), databases.ErrInvalidID)
}

func TestReportDatabase_EnsureIndexes(t *testing.T) {
	dbHelper := mocks.NewDatabaseHelper(t)
	collectionHelper := mocks.NewCollectionHelper(t)

	collectionHelper.On("CreateIndexes", context.Background(), mock.MatchedBy(func(m []mongo.IndexModel) bool {
		return len(m) == 3
	})).Return(nil)
	dbHelper.On("Collection", "reports").Return(collectionHelper)

	assert.NoError(t, databases.NewReportDatabase(dbHelper).EnsureIndexes(context.Background()))
}
