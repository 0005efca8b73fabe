package stability

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"mediaforge/internal/catalog"
	"mediaforge/internal/domain"
	"mediaforge/internal/providers/common"
	"mediaforge/internal/secrets"
	"mediaforge/internal/transport"
)

type cannedDoer struct {
	requests []transport.Request
	env      *transport.Envelope
}

func (d *cannedDoer) Perform(_ context.Context, req transport.Request) (*transport.Envelope, error) {
	d.requests = append(d.requests, req)
	return d.env, nil
}

func newAdapter(t *testing.T, modelID string, doer transport.Doer) *Adapter {
	t.Helper()
	desc, err := catalog.Lookup(modelID)
	if err != nil {
		t.Fatalf("Lookup(%q): %v", modelID, err)
	}
	return New(desc, common.Deps{
		Doer:    doer,
		Secrets: secrets.Static{"stability": "sk-stab"},
		Logger:  zerolog.Nop(),
	})
}

func TestGenerateBinaryResponse(t *testing.T) {
	media := []byte{0x89, 'P', 'N', 'G'}
	doer := &cannedDoer{env: &transport.Envelope{
		StatusCode:  200,
		ContentType: "image/png",
		Kind:        transport.KindBinary,
		Body:        media,
	}}
	adapter := newAdapter(t, "stable-image-core", doer)

	res := adapter.Generate(context.Background(), domain.GenerationRequest{
		ModelID:    "stable-image-core",
		Prompt:     "a mountain",
		Dimensions: "1344x768",
	})
	if res.Failed() {
		t.Fatalf("failed: %s %s", res.ErrorCode, res.ErrorMessage)
	}
	if res.Payload != base64.StdEncoding.EncodeToString(media) {
		t.Fatalf("payload = %q", res.Payload)
	}
	if res.Cost.IsZero() {
		t.Fatal("successful result should carry the per-item credit cost")
	}

	req := doer.requests[0]
	if !strings.HasSuffix(req.URL, "/stable-image/generate/core") {
		t.Fatalf("url = %q", req.URL)
	}
	if req.Accept != "image/*" {
		t.Fatalf("accept = %q", req.Accept)
	}
	if req.Form["aspect_ratio"] != "16:9" {
		t.Fatalf("aspect_ratio = %q", req.Form["aspect_ratio"])
	}
}

func TestGenerateSD3Endpoint(t *testing.T) {
	doer := &cannedDoer{env: &transport.Envelope{StatusCode: 200, ContentType: "image/png", Kind: transport.KindBinary, Body: []byte("x")}}
	adapter := newAdapter(t, "sd3.5-large", doer)

	adapter.Generate(context.Background(), domain.GenerationRequest{ModelID: "sd3.5-large", Prompt: "a lake"})
	if !strings.HasSuffix(doer.requests[0].URL, "/stable-image/generate/sd3") {
		t.Fatalf("url = %q", doer.requests[0].URL)
	}
}

func TestGenerateJSONError(t *testing.T) {
	doer := &cannedDoer{env: &transport.Envelope{
		StatusCode:  400,
		ContentType: "application/json",
		Kind:        transport.KindObject,
		Body:        []byte(`{"name":"bad_request","errors":["prompt too long"]}`),
	}}
	adapter := newAdapter(t, "stable-image-core", doer)

	res := adapter.Generate(context.Background(), domain.GenerationRequest{ModelID: "stable-image-core", Prompt: "a mountain"})
	if res.ErrorCode != domain.CodeModelError {
		t.Fatalf("code = %q, want MODEL_ERROR", res.ErrorCode)
	}
	if res.ErrorMessage != "prompt too long" {
		t.Fatalf("message = %q", res.ErrorMessage)
	}
}

func TestGenerateImageToImageMode(t *testing.T) {
	doer := &cannedDoer{env: &transport.Envelope{StatusCode: 200, ContentType: "image/png", Kind: transport.KindBinary, Body: []byte("x")}}
	adapter := newAdapter(t, "sd3.5-large", doer)

	image := base64.StdEncoding.EncodeToString([]byte("source"))
	adapter.Generate(context.Background(), domain.GenerationRequest{
		ModelID:     "sd3.5-large",
		Prompt:      "make it night",
		Dimensions:  "1024x1024",
		ClientImage: image,
	})
	req := doer.requests[0]
	if req.Form["mode"] != "image-to-image" {
		t.Fatalf("mode = %q", req.Form["mode"])
	}
	if _, ok := req.Form["aspect_ratio"]; ok {
		t.Fatal("aspect_ratio must be dropped in image-to-image mode")
	}
	if len(req.Attachments) != 1 || req.Attachments[0].Field != "image" {
		t.Fatalf("attachments = %+v", req.Attachments)
	}
}

func TestGenerateInpaintEndpoint(t *testing.T) {
	doer := &cannedDoer{env: &transport.Envelope{StatusCode: 200, ContentType: "image/png", Kind: transport.KindBinary, Body: []byte("x")}}
	adapter := newAdapter(t, "sd3.5-large", doer)

	image := base64.StdEncoding.EncodeToString([]byte("source"))
	mask := base64.StdEncoding.EncodeToString([]byte("mask"))
	adapter.Generate(context.Background(), domain.GenerationRequest{
		ModelID:     "sd3.5-large",
		Prompt:      "remove the car",
		ClientImage: image,
		ClientMask:  mask,
	})
	req := doer.requests[0]
	if !strings.HasSuffix(req.URL, "/stable-image/edit/inpaint") {
		t.Fatalf("url = %q", req.URL)
	}
	if len(req.Attachments) != 2 {
		t.Fatalf("attachments = %d, want image and mask", len(req.Attachments))
	}
}
