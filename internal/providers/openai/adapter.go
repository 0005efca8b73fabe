// Package openai adapts the OpenAI Images API. Both models are synchronous:
// one HTTP call returns final media inline (b64_json) or an error payload.
// gpt-image-1 additionally supports mask-guided edits via multipart upload.
package openai

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"mediaforge/internal/catalog"
	"mediaforge/internal/domain"
	"mediaforge/internal/providers/common"
	"mediaforge/internal/transport"
)

// Adapter implements the canonical contract for OpenAI image models.
type Adapter struct {
	desc catalog.ModelDescriptor
	deps common.Deps
}

// New constructs the adapter for the given descriptor.
func New(desc catalog.ModelDescriptor, deps common.Deps) *Adapter {
	return &Adapter{desc: desc, deps: deps}
}

// Model returns the descriptor this adapter serves.
func (a *Adapter) Model() catalog.ModelDescriptor { return a.desc }

// EstimateCost prices the whole request (count included).
func (a *Adapter) EstimateCost(req domain.GenerationRequest) decimal.Decimal {
	return catalog.EstimateCost(a.desc.Code, req.Quality, req.Dimensions, req.Count, req.DurationSeconds)
}

type generationRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	N              int    `json:"n"`
	Size           string `json:"size,omitempty"`
	Quality        string `json:"quality,omitempty"`
	ResponseFormat string `json:"response_format,omitempty"`
}

type generationResponse struct {
	Data []struct {
		B64JSON       string `json:"b64_json"`
		URL           string `json:"url"`
		RevisedPrompt string `json:"revised_prompt"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// Generate performs one synchronous image call.
func (a *Adapter) Generate(ctx context.Context, req domain.GenerationRequest) domain.GenerationResult {
	key, err := a.deps.APIKey(a.desc.Provider, req.CredentialRef)
	if err != nil {
		return common.Failure(domain.CodeGeneratorError, err.Error())
	}

	treq, err := a.transformRequest(req, key)
	if err != nil {
		return common.Failure(domain.CodeGeneratorError, err.Error())
	}
	env, err := a.deps.Doer.Perform(ctx, treq)
	if err != nil {
		return common.FailureFromError(domain.CodeTransportError, err)
	}
	res := a.transformResponse(ctx, env)
	if !res.Failed() {
		res.Cost = catalog.EstimateCost(a.desc.Code, req.Quality, req.Dimensions, 1, 0)
	}
	return res
}

// transformRequest maps the canonical request onto the backend call. When a
// client image is present the edits endpoint takes a multipart payload.
func (a *Adapter) transformRequest(req domain.GenerationRequest, key string) (transport.Request, error) {
	prompt := common.AugmentPrompt(req.Prompt, req.Style, req.Variant)
	headers := map[string]string{"Authorization": "Bearer " + key}

	if req.ClientImage != "" {
		image, err := common.DecodeBase64(req.ClientImage)
		if err != nil {
			return transport.Request{}, fmt.Errorf("client image: %w", err)
		}
		attachments := []transport.Attachment{{Field: "image", Filename: "image.png", MIME: "image/png", Data: image}}
		if req.ClientMask != "" {
			mask, err := common.DecodeBase64(req.ClientMask)
			if err != nil {
				return transport.Request{}, fmt.Errorf("client mask: %w", err)
			}
			attachments = append(attachments, transport.Attachment{Field: "mask", Filename: "mask.png", MIME: "image/png", Data: mask})
		}
		form := map[string]string{
			"model":  a.desc.ModelID,
			"prompt": prompt,
			"n":      "1",
		}
		if size := sizeToken(req.Dimensions); size != "" {
			form["size"] = size
		}
		return transport.Request{
			Method:      http.MethodPost,
			URL:         a.desc.BaseURL + "/images/edits",
			Headers:     headers,
			Form:        form,
			Attachments: attachments,
		}, nil
	}

	body := generationRequest{
		Model:          a.desc.ModelID,
		Prompt:         prompt,
		N:              1,
		Size:           sizeToken(req.Dimensions),
		ResponseFormat: "b64_json",
	}
	if q := strings.TrimSpace(req.Quality); q != "" {
		body.Quality = q
	}
	return transport.Request{
		Method:  http.MethodPost,
		URL:     a.desc.BaseURL + "/images/generations",
		Headers: headers,
		JSON:    body,
	}, nil
}

// transformResponse maps the backend payload into the canonical result.
func (a *Adapter) transformResponse(ctx context.Context, env *transport.Envelope) domain.GenerationResult {
	var decoded generationResponse
	if err := env.DecodeJSON(&decoded); err != nil {
		return common.Failure(domain.CodeTransformResponse, "Invalid response")
	}
	if decoded.Error != nil {
		code := domain.CodeModelError
		if decoded.Error.Message == "" {
			return common.Failure(domain.CodeTransformResponse, "Invalid response")
		}
		return common.Failure(code, decoded.Error.Message)
	}
	if env.StatusCode >= 300 {
		return common.Failure(domain.CodeModelError, fmt.Sprintf("status %d", env.StatusCode))
	}
	if len(decoded.Data) == 0 {
		return common.Failure(domain.CodeTransformResponse, "Invalid response")
	}
	item := decoded.Data[0]
	payload := item.B64JSON
	mime := "image/png"
	if payload == "" {
		if item.URL == "" {
			return common.Failure(domain.CodeTransformResponse, "Invalid response")
		}
		var err error
		payload, mime, err = common.FetchBase64(ctx, a.deps.Doer, item.URL)
		if err != nil {
			return common.FailureFromError(domain.CodeTransportError, err)
		}
	}
	return domain.GenerationResult{
		Status:        domain.ResultGenerated,
		Payload:       payload,
		MIME:          mime,
		RevisedPrompt: item.RevisedPrompt,
	}
}

// sizeToken passes canonical "WxH" through: OpenAI sizes use the same shape.
func sizeToken(dims string) string {
	if _, _, err := common.ParseDimensions(dims); err != nil {
		return ""
	}
	return dims
}
