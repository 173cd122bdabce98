package auth_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trashio/trashio-api/auth"
	"github.com/trashio/trashio-api/models"
)

func TestTokens_IssueAndParse(t *testing.T) {
	tokens := auth.NewTokens("secret", time.Hour)

	signed, expires, err := tokens.Issue("64b7f0c2a1b2c3d4e5f60718", models.RoleCleaner)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expires, 5*time.Second)

	claims, err := tokens.Parse(signed)
	require.NoError(t, err)
	assert.Equal(t, "64b7f0c2a1b2c3d4e5f60718", claims.Subject)
	assert.Equal(t, "cleaner", claims.Role)
}

func TestTokens_ParseRejects(t *testing.T) {
	tokens := auth.NewTokens("secret", time.Hour)
	good, _, err := tokens.Issue("user-1", models.RoleAdmin)
	require.NoError(t, err)

	expired := auth.NewTokens("secret", time.Hour)
	expired.Now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	stale, _, err := expired.Issue("user-1", models.RoleAdmin)
	require.NoError(t, err)

	other, _, err := auth.NewTokens("other-secret", time.Hour).Issue("user-1", models.RoleAdmin)
	require.NoError(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Role: "admin",
		Type: "access",
	})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	refresh := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Role: "admin",
		Type: "refresh",
	})
	wrongType, err := refresh.SignedString([]byte("secret"))
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not.a.token"},
		{"expired", stale},
		{"wrong secret", other},
		{"alg none", unsigned},
		{"not an access token", wrongType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tokens.Parse(tt.token)
			assert.ErrorIs(t, err, models.ErrInvalidCredential)
		})
	}

	_, err = tokens.Parse(good)
	assert.NoError(t, err)
}

func TestTokens_NoSecret(t *testing.T) {
	tokens := auth.NewTokens("", time.Hour)

	_, _, err := tokens.Issue("user-1", models.RoleCitizen)
	assert.Error(t, err)

	_, err = tokens.Parse("anything")
	assert.ErrorIs(t, err, models.ErrInvalidCredential)
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		token  string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"bearer abc", "abc", true},
		{"Basic abc", "", false},
		{"Bearer", "", false},
		{"", "", false},
		{"Bearer a b", "", false},
	}
	for _, tt := range tests {
		token, ok := auth.BearerToken(tt.header)
		assert.Equal(t, tt.ok, ok, tt.header)
		assert.Equal(t, tt.token, token, tt.header)
	}
}
