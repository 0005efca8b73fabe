// Package replicate adapts the Replicate predictions API. The protocol is
// submit-then-poll: create a prediction, then poll its status URL until a
// terminal state (succeeded, failed, canceled). Output media arrives as
// remote URLs and is downloaded into the canonical base64 form.
package replicate

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
	defaultPollInterval = 5 * time.Second
	defaultPollAttempts = 60
)

// Adapter implements the canonical contract for Replicate-hosted models.
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

type predictionInput struct {
	Prompt         string `json:"prompt"`
	NegativePrompt string `json:"negative_prompt,omitempty"`
	AspectRatio    string `json:"aspect_ratio,omitempty"`
	NumOutputs     int    `json:"num_outputs"`
}

type createRequest struct {
	Input predictionInput `json:"input"`
}

type prediction struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Output any    `json:"output"`
	Error  string `json:"error"`
	URLs   struct {
		Get string `json:"get"`
	} `json:"urls"`
	Detail string `json:"detail"`
}

// Generate creates one prediction and polls it to a terminal state.
func (a *Adapter) Generate(ctx context.Context, req domain.GenerationRequest) domain.GenerationResult {
	key, err := a.deps.APIKey(a.desc.Provider, req.CredentialRef)
	if err != nil {
		return common.Failure(domain.CodeGeneratorError, err.Error())
	}
	headers := map[string]string{"Authorization": "Bearer " + key}

	env, err := a.deps.Doer.Perform(ctx, transport.Request{
		Method:  http.MethodPost,
		URL:     fmt.Sprintf("%s/models/%s/predictions", a.desc.BaseURL, modelPath(a.desc.Code)),
		Headers: headers,
		JSON: createRequest{Input: predictionInput{
			Prompt:         common.AugmentPrompt(req.Prompt, req.Style, req.Variant),
			NegativePrompt: strings.TrimSpace(req.NegativePrompt),
			AspectRatio:    common.AspectRatio(req.Dimensions),
			NumOutputs:     1,
		}},
	})
	if err != nil {
		return common.FailureFromError(domain.CodeTransportError, err)
	}
	var created prediction
	if err := env.DecodeJSON(&created); err != nil {
		return common.Failure(domain.CodeTransformResponse, "Invalid response")
	}
	if env.StatusCode >= 300 {
		msg := created.Detail
		if msg == "" {
			msg = fmt.Sprintf("submit status %d", env.StatusCode)
		}
		return common.Failure(domain.CodeModelError, msg)
	}
	if created.ID == "" || created.URLs.Get == "" {
		return common.Failure(domain.CodeTransformResponse, "Invalid response")
	}

	var final prediction
	pollErr := common.Poll(ctx, a.pollInterval, a.pollAttempts, func() (bool, error) {
		env, err := a.deps.Doer.Perform(ctx, transport.Request{Method: http.MethodGet, URL: created.URLs.Get, Headers: headers})
		if err != nil {
			return false, err
		}
		var status prediction
		if err := env.DecodeJSON(&status); err != nil {
			return false, fmt.Errorf("decode status: %w", err)
		}
		switch status.Status {
		case "succeeded":
			final = status
			return true, nil
		case "failed", "canceled":
			msg := status.Error
			if msg == "" {
				msg = "prediction " + status.Status
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

	outputURL := firstOutputURL(final.Output)
	if outputURL == "" {
		return common.Failure(domain.CodeTransformResponse, "Invalid response")
	}
	payload, mime, err := common.FetchBase64(ctx, a.deps.Doer, outputURL)
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

// firstOutputURL handles the two output shapes Replicate models use: a
// single URL string or a list of URL strings.
func firstOutputURL(output any) string {
	switch v := output.(type) {
	case string:
		return strings.TrimSpace(v)
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}

func modelPath(code catalog.ModelCode) string {
	switch code {
	case catalog.CodeReplicateFluxSchnell:
		return "black-forest-labs/flux-schnell"
	case catalog.CodeReplicateSDXL:
		return "stability-ai/sdxl"
	default:
		return ""
	}
}
