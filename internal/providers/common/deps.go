package common

import (
	"strings"

	"github.com/rs/zerolog"

	"mediaforge/internal/secrets"
	"mediaforge/internal/transport"
)

// Deps carries the injected collaborators every adapter needs. Adapters hold
// no global state; the registry hands each one the same Deps value.
type Deps struct {
	Doer    transport.Doer
	Secrets secrets.Source
	Logger  zerolog.Logger
}

// APIKey resolves the credential for a provider, honouring the per-request
// credential reference override.
func (d Deps) APIKey(provider, override string) (string, error) {
	name := strings.TrimSpace(override)
	if name == "" {
		name = provider
	}
	return d.Secrets.Key(name)
}
