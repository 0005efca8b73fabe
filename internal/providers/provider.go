// Package providers defines the adapter contract every generation backend
// implements and the registry that resolves a model id to its adapter.
package providers

import (
	"context"

	"github.com/shopspring/decimal"

	"mediaforge/internal/catalog"
	"mediaforge/internal/domain"
)

// Adapter translates between the canonical request/result contract and one
// backend's protocol. Generate never returns a Go error: transport, parsing
// and backend failures are all folded into a canonical failed result, so the
// orchestrator stays protocol-agnostic.
type Adapter interface {
	Model() catalog.ModelDescriptor
	Generate(ctx context.Context, req domain.GenerationRequest) domain.GenerationResult
	EstimateCost(req domain.GenerationRequest) decimal.Decimal
}
