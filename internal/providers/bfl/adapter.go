// Package bfl adapts the Black Forest Labs FLUX API. The protocol is
// submit-then-poll: one POST returns a task id plus polling URL, then the
// status endpoint is polled at a fixed interval until Ready or Error. Ready
// results arrive as a signed sample URL that must be downloaded and
// re-encoded to base64.
package bfl

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"mediaforge/internal/catalog"
	"mediaforge/internal/domain"
	"mediaforge/internal/providers/common"
	"mediaforge/internal/transport"
)

const (
	defaultPollInterval = 4 * time.Second
	defaultPollAttempts = 30
)

// Adapter implements the canonical contract for FLUX models.
type Adapter struct {
	desc         catalog.ModelDescriptor
	deps         common.Deps
	pollInterval time.Duration
	pollAttempts uint64
}

// New constructs the adapter for the given descriptor.
func New(desc catalog.ModelDescriptor, deps common.Deps) *Adapter {
	return &Adapter{
		desc:         desc,
		deps:         deps,
		pollInterval: defaultPollInterval,
		pollAttempts: defaultPollAttempts,
	}
}

// Model returns the descriptor this adapter serves.
func (a *Adapter) Model() catalog.ModelDescriptor { return a.desc }

// EstimateCost prices the whole request.
func (a *Adapter) EstimateCost(req domain.GenerationRequest) decimal.Decimal {
	return catalog.EstimateCost(a.desc.Code, req.Quality, req.Dimensions, req.Count, req.DurationSeconds)
}

type submitRequest struct {
	Prompt string `json:"prompt"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
	Seed   *int   `json:"seed,omitempty"`
}

type submitResponse struct {
	ID         string `json:"id"`
	PollingURL string `json:"polling_url"`
	Detail     any    `json:"detail"`
}

type statusResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Result struct {
		Sample string `json:"sample"`
	} `json:"result"`
	Details struct {
		Message string `json:"message"`
	} `json:"details"`
}

// detailMessage flattens the polymorphic detail field BFL returns on errors.
// It is a string for auth failures and a list of objects for validation ones.
func detailMessage(detail any) string {
	switch v := detail.(type) {
	case string:
		return v
	case []any:
		var parts []string
		for _, item := range v {
			if m, ok := item.(map[string]any); ok {
				if msg, ok := m["msg"].(string); ok {
					parts = append(parts, msg)
				}
			}
		}
		return strings.Join(parts, "; ")
	default:
		return ""
	}
}

// Generate submits one task and polls it to a terminal state.
func (a *Adapter) Generate(ctx context.Context, req domain.GenerationRequest) domain.GenerationResult {
	key, err := a.deps.APIKey(a.desc.Provider, req.CredentialRef)
	if err != nil {
		return common.Failure(domain.CodeGeneratorError, err.Error())
	}
	headers := map[string]string{"x-key": key}

	width, height, err := common.ParseDimensions(req.Dimensions)
	if err != nil {
		width, height = 1024, 1024
	}
	env, err := a.deps.Doer.Perform(ctx, transport.Request{
		Method:  http.MethodPost,
		URL:     a.desc.BaseURL + "/" + a.desc.ModelID,
		Headers: headers,
		JSON: submitRequest{
			Prompt: common.AugmentPrompt(req.Prompt, req.Style, req.Variant),
			Width:  width,
			Height: height,
		},
	})
	if err != nil {
		return common.FailureFromError(domain.CodeTransportError, err)
	}
	var submitted submitResponse
	if err := env.DecodeJSON(&submitted); err != nil {
		return common.Failure(domain.CodeTransformResponse, "Invalid response")
	}
	// Error bodies carry detail but no task id, so the status check has to
	// come before the id check.
	if env.StatusCode >= 300 {
		msg := detailMessage(submitted.Detail)
		if msg == "" {
			msg = fmt.Sprintf("submit status %d", env.StatusCode)
		}
		return common.Failure(domain.CodeModelError, msg)
	}
	if submitted.ID == "" {
		return common.Failure(domain.CodeTransformResponse, "Invalid response")
	}

	pollURL := submitted.PollingURL
	if pollURL == "" {
		pollURL = a.desc.StatusURL + "?id=" + submitted.ID
	}

	var final statusResponse
	pollErr := common.Poll(ctx, a.pollInterval, a.pollAttempts, func() (bool, error) {
		env, err := a.deps.Doer.Perform(ctx, transport.Request{Method: http.MethodGet, URL: pollURL, Headers: headers})
		if err != nil {
			return false, err
		}
		var status statusResponse
		if err := env.DecodeJSON(&status); err != nil {
			return false, fmt.Errorf("decode status: %w", err)
		}
		switch strings.ToLower(status.Status) {
		case "ready":
			final = status
			return true, nil
		case "error", "failed", "content moderated", "request moderated":
			msg := status.Details.Message
			if msg == "" {
				msg = "generation failed"
			}
			return false, &domain.GenerationError{Code: domain.CodeModelError, Message: msg}
		default:
			return false, nil
		}
	})
	if pollErr != nil {
		var genErr *domain.GenerationError
		if errors.As(pollErr, &genErr) {
			return common.Failure(genErr.Code, genErr.Message)
		}
		return common.FailureFromError(domain.CodeGeneratorError, pollErr)
	}

	if final.Result.Sample == "" {
		return common.Failure(domain.CodeTransformResponse, "Invalid response")
	}
	payload, mime, err := common.FetchBase64(ctx, a.deps.Doer, final.Result.Sample)
	if err != nil {
		return common.FailureFromError(domain.CodeTransportError, err)
	}
	return domain.GenerationResult{
		Status:  domain.ResultGenerated,
		Payload: payload,
		MIME:    mime,
		Cost:    catalog.EstimateCost(a.desc.Code, req.Quality, req.Dimensions, 1, 0),
	}
}
