// Package secrets resolves credentials from the process environment with an
// optional AWS Parameter Store fallback.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/jmulyadi/Github-Agent/internal/integrations/paramstore"
)

// ErrMissing is returned when a secret is configured neither in the
// environment nor in Parameter Store.
var ErrMissing = errors.New("secrets: not configured")

// Source yields a single secret value on demand.
type Source interface {
	Resolve(ctx context.Context) (string, error)
}

// Static is a fixed secret. An empty Static resolves to ErrMissing.
type Static string

func (s Static) Resolve(context.Context) (string, error) {
	if strings.TrimSpace(string(s)) == "" {
		return "", ErrMissing
	}
	return strings.TrimSpace(string(s)), nil
}

// Store looks secrets up by environment variable first, then by parameter
// name under prefix. Parameter values are cached once fetched; failed fetches
// are retried on the next call.
type Store struct {
	getter    paramstore.Getter
	prefix    string
	lookupEnv func(string) (string, bool)

	mu    sync.RWMutex
	cache map[string]string
}

// New creates a Store. A nil getter or an empty prefix disables the
// Parameter Store fallback.
func New(getter paramstore.Getter, prefix string) *Store {
	return &Store{
		getter:    getter,
		prefix:    strings.TrimRight(strings.TrimSpace(prefix), "/"),
		lookupEnv: os.LookupEnv,
		cache:     make(map[string]string),
	}
}

// Get returns the secret held in envKey, or in the parameter
// "<prefix>/<paramName>" when the variable is unset or blank.
func (s *Store) Get(ctx context.Context, envKey, paramName string) (string, error) {
	if envKey != "" {
		if v, ok := s.lookupEnv(envKey); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v), nil
		}
	}
	if s.getter == nil || s.prefix == "" || paramName == "" {
		return "", fmt.Errorf("%w: %s", ErrMissing, envKey)
	}

	name := s.prefix + "/" + paramName
	s.mu.RLock()
	v, ok := s.cache[name]
	s.mu.RUnlock()
	if ok {
		return v, nil
	}

	raw, err := s.getter.GetParameter(ctx, name)
	if err != nil {
		if errors.Is(err, paramstore.ErrNotFound) {
			return "", fmt.Errorf("%w: %s: %w", ErrMissing, name, err)
		}
		return "", fmt.Errorf("secrets: load %s: %w", name, err)
	}
	v, err = paramstore.DecodeToken(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrMissing, name, err)
	}

	s.mu.Lock()
	s.cache[name] = v
	s.mu.Unlock()
	return v, nil
}

// Secret binds an environment variable and parameter name into a Source.
func (s *Store) Secret(envKey, paramName string) Source {
	return secretRef{store: s, envKey: envKey, paramName: paramName}
}

type secretRef struct {
	store     *Store
	envKey    string
	paramName string
}

func (r secretRef) Resolve(ctx context.Context) (string, error) {
	return r.store.Get(ctx, r.envKey, r.paramName)
}
