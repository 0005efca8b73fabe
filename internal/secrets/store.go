package secrets

import (
	"fmt"
	"os"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Source supplies an opaque API key per provider. The engine only ever
// forwards the value into request headers.
type Source interface {
	Key(provider string) (string, error)
}

// EnvStore resolves provider keys from environment variables named
// {PROVIDER}_API_KEY and memoizes lookups for a short TTL so hosts that
// rotate process environment (or wrap lookups in something slower) pay once
// per window.
type EnvStore struct {
	cache *gocache.Cache
}

// NewEnvStore builds an env-backed source with a five minute cache.
func NewEnvStore() *EnvStore {
	return &EnvStore{cache: gocache.New(5*time.Minute, 10*time.Minute)}
}

// Key returns the secret for the provider, or an error when none is set.
func (s *EnvStore) Key(provider string) (string, error) {
	name := strings.ToUpper(strings.TrimSpace(provider))
	if name == "" {
		return "", fmt.Errorf("secrets: provider is required")
	}
	if cached, ok := s.cache.Get(name); ok {
		return cached.(string), nil
	}
	value := strings.TrimSpace(os.Getenv(name + "_API_KEY"))
	if value == "" {
		return "", fmt.Errorf("secrets: no api key configured for provider %q", provider)
	}
	s.cache.Set(name, value, gocache.DefaultExpiration)
	return value, nil
}

// Static is a fixed-map source used by tests and single-provider hosts.
type Static map[string]string

func (s Static) Key(provider string) (string, error) {
	if v, ok := s[provider]; ok && v != "" {
		return v, nil
	}
	return "", fmt.Errorf("secrets: no api key configured for provider %q", provider)
}
