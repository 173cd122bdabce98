package auth

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/trashio/trashio-api/databases"
	"github.com/trashio/trashio-api/models"
)

// DefaultLookupTimeout bounds the identity lookup when no positive timeout is configured
const DefaultLookupTimeout = 2 * time.Second

// IdentityLookup is the authoritative identity service
type IdentityLookup interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// SessionResolver derives a Principal from a bearer token on every request
type SessionResolver struct {
	tokens  *Tokens
	users   IdentityLookup
	timeout time.Duration
}

// NewSessionResolver returns a resolver that bounds each identity lookup by timeout
func NewSessionResolver(tokens *Tokens, users IdentityLookup, timeout time.Duration) *SessionResolver {
	if timeout <= 0 {
		timeout = DefaultLookupTimeout
	}
	return &SessionResolver{
		tokens:  tokens,
		users:   users,
		timeout: timeout,
	}
}

type lookupResult struct {
	user *models.User
	err  error
}

// Resolve verifies token and returns the principal behind it.
//
// The authoritative lookup decides the role when it succeeds. When the lookup
// fails for reasons other than rejecting the subject, or does not answer in
// time, the principal is built from the token's own claims with degraded trust.
func (s *SessionResolver) Resolve(ctx context.Context, token string) (models.Principal, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return models.Principal{}, err
	}
	claimedRole, ok := models.ParseRole(claims.Role)
	if !ok {
		return models.Principal{}, models.NewError(models.KindInvalidCredential, "unknown role claim %q", claims.Role)
	}

	user, err := s.lookup(ctx, claims.Subject)
	switch {
	case err == nil:
	case errors.Is(err, databases.ErrNotFound), errors.Is(err, databases.ErrInvalidID):
		return models.Principal{}, models.NewError(models.KindInvalidCredential, "unknown subject")
	default:
		zap.S().Warnw("identity lookup failed, using degraded trust",
			"subject", claims.Subject,
			"error", err)
		return models.Principal{
			SubjectID: claims.Subject,
			Role:      claimedRole,
			Trust:     models.TrustDegraded,
		}, nil
	}

	if !user.IsActive {
		return models.Principal{}, models.NewError(models.KindInvalidCredential, "account disabled")
	}
	role, ok := models.ParseRole(string(user.Role))
	if !ok {
		return models.Principal{}, models.NewError(models.KindInvalidCredential, "unknown role %q", user.Role)
	}
	return models.Principal{
		SubjectID: user.ID.Hex(),
		Role:      role,
		Trust:     models.TrustVerified,
	}, nil
}

// lookup never waits past the resolver timeout even if the backend ignores ctx
func (s *SessionResolver) lookup(ctx context.Context, id string) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	done := make(chan lookupResult, 1)
	go func() {
		user, err := s.users.FindByID(ctx, id)
		done <- lookupResult{user: user, err: err}
	}()

	select {
	case res := <-done:
		if res.err == nil && res.user == nil {
			return nil, databases.ErrNotFound
		}
		return res.user, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
