package usecase

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"

	"github.com/jmulyadi/Github-Agent/internal/secrets"
)

// SecretSource yields a configured secret.
type SecretSource interface {
	Resolve(ctx context.Context) (string, error)
}

// BearerGuard checks the shared bearer secret on inbound requests.
type BearerGuard struct {
	token SecretSource
}

func NewBearerGuard(token SecretSource) (*BearerGuard, error) {
	if token == nil {
		return nil, errors.New("usecase: token source must not be nil")
	}
	return &BearerGuard{token: token}, nil
}

// Check validates an Authorization header value. An unconfigured secret is
// reported as CONFIGURATION_MISSING, a missing or wrong token as
// UNAUTHORIZED.
func (g *BearerGuard) Check(ctx context.Context, authorization string) error {
	expected, err := g.token.Resolve(ctx)
	if err != nil {
		if errors.Is(err, secrets.ErrMissing) {
			return newError(ErrorConfigurationMissing, "bearer_token_not_configured", err)
		}
		return newError(ErrorInternal, "bearer_token_load_error", err)
	}
	if expected == "" {
		return newError(ErrorConfigurationMissing, "bearer_token_not_configured", nil)
	}

	scheme, presented, ok := strings.Cut(strings.TrimSpace(authorization), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return newError(ErrorUnauthorized, "missing_bearer_token", nil)
	}
	presented = strings.TrimSpace(presented)
	if subtle.ConstantTimeCompare([]byte(presented), []byte(expected)) != 1 {
		return newError(ErrorUnauthorized, "invalid_bearer_token", nil)
	}
	return nil
}
