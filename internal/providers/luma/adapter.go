// Package luma adapts the Luma Dream Machine video API. The protocol is
// submit-then-poll. When a client image conditions the generation the
// adapter performs a staging upload first (the generation payload may only
// reference media by URL) and then points the start keyframe at the staged
// file.
package luma

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
	defaultPollAttempts = 120
)

// Adapter implements the canonical contract for Luma video models.
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

// EstimateCost prices the whole request: per-second rate times duration and
// count.
func (a *Adapter) EstimateCost(req domain.GenerationRequest) decimal.Decimal {
	return catalog.EstimateCost(a.desc.Code, req.Quality, req.Dimensions, req.Count, req.DurationSeconds)
}

type keyframe struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

type createRequest struct {
	Prompt      string               `json:"prompt"`
	Model       string               `json:"model"`
	Duration    string               `json:"duration,omitempty"`
	AspectRatio string               `json:"aspect_ratio,omitempty"`
	Keyframes   map[string]*keyframe `json:"keyframes,omitempty"`
}

type generation struct {
	ID            string `json:"id"`
	State         string `json:"state"`
	FailureReason string `json:"failure_reason"`
	Assets        struct {
		Video string `json:"video"`
	} `json:"assets"`
	Detail string `json:"detail"`
}

type fileUploadResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Generate submits one video generation and polls it to a terminal state.
func (a *Adapter) Generate(ctx context.Context, req domain.GenerationRequest) domain.GenerationResult {
	key, err := a.deps.APIKey(a.desc.Provider, req.CredentialRef)
	if err != nil {
		return common.Failure(domain.CodeGeneratorError, err.Error())
	}
	headers := map[string]string{"Authorization": "Bearer " + key}

	body := createRequest{
		Prompt:      common.AugmentPrompt(req.Prompt, req.Style, req.Variant),
		Model:       a.desc.ModelID,
		AspectRatio: common.AspectRatio(req.Dimensions),
	}
	if req.DurationSeconds > 0 {
		body.Duration = fmt.Sprintf("%ds", req.DurationSeconds)
	}
	if req.ClientImage != "" {
		stagedURL, err := a.stageClientImage(ctx, headers, req.ClientImage)
		if err != nil {
			return common.FailureFromError(domain.CodeGeneratorError, err)
		}
		body.Keyframes = map[string]*keyframe{"frame0": {Type: "image", URL: stagedURL}}
	}

	env, err := a.deps.Doer.Perform(ctx, transport.Request{
		Method:  http.MethodPost,
		URL:     a.desc.BaseURL + "/generations",
		Headers: headers,
		JSON:    body,
	})
	if err != nil {
		return common.FailureFromError(domain.CodeTransportError, err)
	}
	var created generation
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
	if created.ID == "" {
		return common.Failure(domain.CodeTransformResponse, "Invalid response")
	}

	statusURL := fmt.Sprintf("%s/generations/%s", a.desc.BaseURL, created.ID)
	var final generation
	pollErr := common.Poll(ctx, a.pollInterval, a.pollAttempts, func() (bool, error) {
		env, err := a.deps.Doer.Perform(ctx, transport.Request{Method: http.MethodGet, URL: statusURL, Headers: headers})
		if err != nil {
			return false, err
		}
		var status generation
		if err := env.DecodeJSON(&status); err != nil {
			return false, fmt.Errorf("decode status: %w", err)
		}
		switch strings.ToLower(status.State) {
		case "completed":
			final = status
			return true, nil
		case "failed", "canceled":
			msg := status.FailureReason
			if msg == "" {
				msg = "generation " + status.State
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

	if final.Assets.Video == "" {
		return common.Failure(domain.CodeTransformResponse, "Invalid response")
	}
	payload, mime, err := common.FetchBase64(ctx, a.deps.Doer, final.Assets.Video)
	if err != nil {
		return common.FailureFromError(domain.CodeTransportError, err)
	}
	if !strings.HasPrefix(mime, "video/") {
		mime = "video/mp4"
	}
	return domain.GenerationResult{
		Status:  domain.ResultGenerated,
		Payload: payload,
		MIME:    mime,
		Cost:    catalog.EstimateCost(a.desc.Code, req.Quality, req.Dimensions, 1, req.DurationSeconds),
	}
}

// stageClientImage uploads the conditioning image so the generation payload
// can reference it by URL.
func (a *Adapter) stageClientImage(ctx context.Context, headers map[string]string, clientImage string) (string, error) {
	data, err := common.DecodeBase64(clientImage)
	if err != nil {
		return "", fmt.Errorf("client image: %w", err)
	}
	env, err := a.deps.Doer.Perform(ctx, transport.Request{
		Method:      http.MethodPost,
		URL:         a.desc.BaseURL + "/files",
		Headers:     headers,
		Attachments: []transport.Attachment{{Field: "file", Filename: "frame0.png", MIME: "image/png", Data: data}},
	})
	if err != nil {
		return "", fmt.Errorf("stage client image: %w", err)
	}
	var uploaded fileUploadResponse
	if err := env.DecodeJSON(&uploaded); err != nil || uploaded.URL == "" {
		return "", errors.New("stage client image: invalid response")
	}
	if env.StatusCode >= 300 {
		return "", fmt.Errorf("stage client image: status %d", env.StatusCode)
	}
	return uploaded.URL, nil
}
