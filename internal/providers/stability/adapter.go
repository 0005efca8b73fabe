// Package stability adapts the Stability AI stable-image API. The protocol
// is synchronous multipart: every call posts form fields (plus the client
// image and mask when editing) and the backend answers with raw image bytes
// or a JSON error body. Pricing is credit-based.
package stability

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"mediaforge/internal/catalog"
	"mediaforge/internal/domain"
	"mediaforge/internal/providers/common"
	"mediaforge/internal/transport"
)

// Adapter implements the canonical contract for Stability image models.
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

// EstimateCost prices the whole request in credits.
func (a *Adapter) EstimateCost(req domain.GenerationRequest) decimal.Decimal {
	return catalog.EstimateCost(a.desc.Code, req.Quality, req.Dimensions, req.Count, req.DurationSeconds)
}

type errorResponse struct {
	Name   string   `json:"name"`
	Errors []string `json:"errors"`
	Error  string   `json:"error"`
}

// Generate performs one synchronous multipart call.
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
	res := a.transformResponse(env)
	if !res.Failed() {
		res.Cost = catalog.EstimateCost(a.desc.Code, req.Quality, req.Dimensions, 1, 0)
	}
	return res
}

func (a *Adapter) transformRequest(req domain.GenerationRequest, key string) (transport.Request, error) {
	form := map[string]string{
		"prompt":        common.AugmentPrompt(req.Prompt, req.Style, req.Variant),
		"output_format": "png",
		"aspect_ratio":  common.AspectRatio(req.Dimensions),
	}
	if neg := strings.TrimSpace(req.NegativePrompt); neg != "" {
		form["negative_prompt"] = neg
	}

	var attachments []transport.Attachment
	endpoint := a.desc.BaseURL + "/stable-image/generate/" + endpointSlug(a.desc.Code)
	if req.ClientImage != "" {
		image, err := common.DecodeBase64(req.ClientImage)
		if err != nil {
			return transport.Request{}, fmt.Errorf("client image: %w", err)
		}
		attachments = append(attachments, transport.Attachment{Field: "image", Filename: "image.png", MIME: "image/png", Data: image})
		form["mode"] = "image-to-image"
		form["strength"] = "0.65"
		// aspect_ratio is rejected in image-to-image mode; the source decides.
		delete(form, "aspect_ratio")
		if req.ClientMask != "" {
			mask, err := common.DecodeBase64(req.ClientMask)
			if err != nil {
				return transport.Request{}, fmt.Errorf("client mask: %w", err)
			}
			attachments = append(attachments, transport.Attachment{Field: "mask", Filename: "mask.png", MIME: "image/png", Data: mask})
			endpoint = a.desc.BaseURL + "/stable-image/edit/inpaint"
		}
	}

	return transport.Request{
		Method:      http.MethodPost,
		URL:         endpoint,
		Headers:     map[string]string{"Authorization": "Bearer " + key},
		Form:        form,
		Attachments: attachments,
		Accept:      "image/*",
	}, nil
}

func (a *Adapter) transformResponse(env *transport.Envelope) domain.GenerationResult {
	if env.Kind == transport.KindBinary && env.StatusCode < 300 {
		if len(env.Body) == 0 {
			return common.Failure(domain.CodeTransformResponse, "Invalid response")
		}
		mime := env.ContentType
		if mime == "" {
			mime = "image/png"
		}
		return domain.GenerationResult{
			Status:  domain.ResultGenerated,
			Payload: base64.StdEncoding.EncodeToString(env.Body),
			MIME:    mime,
		}
	}
	var decoded errorResponse
	if err := env.DecodeJSON(&decoded); err != nil {
		return common.Failure(domain.CodeTransformResponse, "Invalid response")
	}
	switch {
	case len(decoded.Errors) > 0:
		return common.Failure(domain.CodeModelError, strings.Join(decoded.Errors, "; "))
	case decoded.Error != "":
		return common.Failure(domain.CodeModelError, decoded.Error)
	default:
		return common.Failure(domain.CodeTransformResponse, "Invalid response")
	}
}

func endpointSlug(code catalog.ModelCode) string {
	if code == catalog.CodeStabilitySD3 {
		return "sd3"
	}
	return "core"
}
