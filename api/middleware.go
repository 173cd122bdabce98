package api

import (
	"context"
	"net/http"

	gauth "github.com/shaj13/go-guardian/auth"
	"go.uber.org/zap"

	"github.com/trashio/trashio-api/auth"
	"github.com/trashio/trashio-api/models"
)

// SessionStrategyKey names the bearer session strategy in the authenticator
const SessionStrategyKey = gauth.StrategyKey("trashio.session")

const (
	extRole  = "role"
	extTrust = "trust"
)

// Resolver turns a bearer token into a Principal
type Resolver interface {
	Resolve(ctx context.Context, token string) (models.Principal, error)
}

type principalKey struct{}

type failureKey struct{}

// WithPrincipal stores p on the request context
func WithPrincipal(ctx context.Context, p models.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the Principal stored by Authenticate
func PrincipalFromContext(ctx context.Context) (models.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(models.Principal)
	return p, ok
}

// SessionStrategy is a go-guardian strategy over the access token resolver.
// Nothing is cached: every request is resolved so a disabled account or a
// changed role takes effect on the next call.
type SessionStrategy struct {
	resolver Resolver
}

// NewSessionStrategy returns a strategy that resolves bearer tokens with resolver
func NewSessionStrategy(resolver Resolver) *SessionStrategy {
	return &SessionStrategy{resolver: resolver}
}

// Key returns the key the strategy is registered under
func (s *SessionStrategy) Key() gauth.StrategyKey {
	return SessionStrategyKey
}

// Authenticate resolves the bearer token of r into user info carrying the
// principal's role and trust as extensions.
func (s *SessionStrategy) Authenticate(ctx context.Context, r *http.Request) (gauth.Info, error) {
	token, ok := auth.BearerToken(r.Header.Get("Authorization"))
	if !ok {
		return nil, remember(ctx, models.NewError(models.KindInvalidCredential, "missing bearer token"))
	}
	p, err := s.resolver.Resolve(ctx, token)
	if err != nil {
		return nil, remember(ctx, err)
	}
	return gauth.NewDefaultUser(p.SubjectID, p.SubjectID, nil, map[string][]string{
		extRole:  {string(p.Role)},
		extTrust: {string(p.Trust)},
	}), nil
}

// remember keeps the typed failure for Authenticate, the authenticator only
// reports that no strategy accepted the request.
func remember(ctx context.Context, err error) error {
	if slot, ok := ctx.Value(failureKey{}).(*error); ok {
		*slot = err
	}
	return err
}

// principalFromInfo rebuilds the Principal from strategy output. Anything but
// an explicit verified trust is treated as degraded.
func principalFromInfo(info gauth.Info) (models.Principal, bool) {
	ext := info.Extensions()
	role, ok := models.ParseRole(first(ext[extRole]))
	if !ok || info.ID() == "" {
		return models.Principal{}, false
	}
	trust := models.TrustDegraded
	if first(ext[extTrust]) == string(models.TrustVerified) {
		trust = models.TrustVerified
	}
	return models.Principal{SubjectID: info.ID(), Role: role, Trust: trust}, true
}

func first(vals []string) string {
	if len(vals) == 0 {
		return ""
	}
	return vals[0]
}

// Authenticate resolves the bearer token of every request before it reaches next.
// Requests without a usable token are answered with 401.
func Authenticate(resolver Resolver) func(http.Handler) http.Handler {
	authenticator := gauth.New()
	authenticator.EnableStrategy(SessionStrategyKey, NewSessionStrategy(resolver))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var failure error
			r = r.WithContext(context.WithValue(r.Context(), failureKey{}, &failure))

			info, err := authenticator.Authenticate(r)
			if err != nil {
				if failure != nil {
					err = failure
				}
				zap.S().Infow("unauthorized", "url", r.URL.Path, "reason", err.Error())
				if models.KindOf(err) == "" {
					err = models.NewError(models.KindInvalidCredential, "invalid credential")
				}
				WriteError(w, err)
				return
			}
			p, ok := principalFromInfo(info)
			if !ok {
				zap.S().Errorw("unauthorized", "url", r.URL.Path, "reason", "incomplete user info", "user", info.UserName())
				WriteError(w, models.NewError(models.KindInvalidCredential, "invalid credential"))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}
