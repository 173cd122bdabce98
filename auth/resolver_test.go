package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/trashio/trashio-api/auth"
	"github.com/trashio/trashio-api/databases"
	"github.com/trashio/trashio-api/models"
)

type lookupFunc func(ctx context.Context, id string) (*models.User, error)

func (f lookupFunc) FindByID(ctx context.Context, id string) (*models.User, error) {
	return f(ctx, id)
}

func TestSessionResolver_Resolve(t *testing.T) {
	tokens := auth.NewTokens("secret", time.Hour)
	oid := primitive.NewObjectID()

	// the token still claims citizen; the stored account was promoted
	token, _, err := tokens.Issue(oid.Hex(), models.RoleCitizen)
	require.NoError(t, err)

	tests := []struct {
		name    string
		lookup  lookupFunc
		want    models.Principal
		wantErr error
	}{
		{
			name: "verified uses authoritative role",
			lookup: func(ctx context.Context, id string) (*models.User, error) {
				return &models.User{ID: oid, Role: models.RoleAdmin, IsActive: true}, nil
			},
			want: models.Principal{SubjectID: oid.Hex(), Role: models.RoleAdmin, Trust: models.TrustVerified},
		},
		{
			name: "lookup outage degrades to token claims",
			lookup: func(ctx context.Context, id string) (*models.User, error) {
				return nil, errors.New("server selection timeout")
			},
			want: models.Principal{SubjectID: oid.Hex(), Role: models.RoleCitizen, Trust: models.TrustDegraded},
		},
		{
			name: "unknown subject is rejected",
			lookup: func(ctx context.Context, id string) (*models.User, error) {
				return nil, databases.ErrNotFound
			},
			wantErr: models.ErrInvalidCredential,
		},
		{
			name: "disabled account is rejected",
			lookup: func(ctx context.Context, id string) (*models.User, error) {
				return &models.User{ID: oid, Role: models.RoleCitizen, IsActive: false}, nil
			},
			wantErr: models.ErrInvalidCredential,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolver := auth.NewSessionResolver(tokens, tt.lookup, time.Second)

			p, err := resolver.Resolve(context.Background(), token)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, p)
		})
	}
}

func TestSessionResolver_SlowLookupDegrades(t *testing.T) {
	tokens := auth.NewTokens("secret", time.Hour)
	token, _, err := tokens.Issue("64b7f0c2a1b2c3d4e5f60718", models.RoleAdmin)
	require.NoError(t, err)

	release := make(chan struct{})
	defer close(release)
	resolver := auth.NewSessionResolver(tokens, lookupFunc(func(ctx context.Context, id string) (*models.User, error) {
		<-release
		return nil, nil
	}), 20*time.Millisecond)

	start := time.Now()
	p, err := resolver.Resolve(context.Background(), token)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, models.TrustDegraded, p.Trust)
	assert.Equal(t, models.RoleAdmin, p.Role)
}

func TestSessionResolver_BadToken(t *testing.T) {
	resolver := auth.NewSessionResolver(auth.NewTokens("secret", time.Hour), lookupFunc(func(ctx context.Context, id string) (*models.User, error) {
		t.Fatal("lookup must not run for an invalid token")
		return nil, nil
	}), time.Second)

	_, err := resolver.Resolve(context.Background(), "garbage")
	assert.ErrorIs(t, err, models.ErrInvalidCredential)
}
