package providers

import (
	"fmt"

	"mediaforge/internal/catalog"
	"mediaforge/internal/domain"
	"mediaforge/internal/providers/bfl"
	"mediaforge/internal/providers/common"
	"mediaforge/internal/providers/luma"
	"mediaforge/internal/providers/openai"
	"mediaforge/internal/providers/replicate"
	"mediaforge/internal/providers/stability"
)

// Registry resolves model identifiers to adapter instances. Dispatch is an
// exhaustive switch over the closed model-code set, so adding a backend
// without wiring it here fails loudly in review rather than at runtime.
type Registry struct {
	deps common.Deps
}

// NewRegistry builds a registry sharing one set of collaborators across all
// adapters.
func NewRegistry(deps common.Deps) *Registry {
	return &Registry{deps: deps}
}

// Resolve maps a model id to its adapter. Unknown ids and inactive models
// fail with domain.ErrUnknownModel before any network activity.
func (r *Registry) Resolve(modelID string) (Adapter, error) {
	desc, err := catalog.Lookup(modelID)
	if err != nil {
		return nil, err
	}
	if !desc.Active {
		return nil, fmt.Errorf("model %q is inactive: %w", modelID, domain.ErrUnknownModel)
	}
	switch desc.Code {
	case catalog.CodeOpenAIGPTImage, catalog.CodeOpenAIDallE3:
		return openai.New(desc, r.deps), nil
	case catalog.CodeStabilityCore, catalog.CodeStabilitySD3:
		return stability.New(desc, r.deps), nil
	case catalog.CodeBFLFluxPro, catalog.CodeBFLFluxDev:
		return bfl.New(desc, r.deps), nil
	case catalog.CodeReplicateFluxSchnell, catalog.CodeReplicateSDXL:
		return replicate.New(desc, r.deps), nil
	case catalog.CodeLumaRay2, catalog.CodeLumaRayFlash:
		return luma.New(desc, r.deps), nil
	default:
		return nil, fmt.Errorf("model code %q has no adapter: %w", desc.Code, domain.ErrUnknownModel)
	}
}
