package replicate

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"mediaforge/internal/catalog"
	"mediaforge/internal/domain"
	"mediaforge/internal/providers/common"
	"mediaforge/internal/secrets"
	"mediaforge/internal/transport"
)

// pollDoer answers the create call once, then serves the status sequence,
// repeating its last entry when polling continues past it.
type pollDoer struct {
	create   map[string]any
	statuses []map[string]any
	media    []byte

	createCalls int
	pollCalls   int
	mediaCalls  int
}

func jsonEnv(v any) *transport.Envelope {
	raw, _ := json.Marshal(v)
	return &transport.Envelope{StatusCode: 200, ContentType: "application/json", Kind: transport.KindObject, Body: raw}
}

func (d *pollDoer) Perform(_ context.Context, req transport.Request) (*transport.Envelope, error) {
	switch {
	case strings.Contains(req.URL, "/predictions"):
		d.createCalls++
		return jsonEnv(d.create), nil
	case strings.Contains(req.URL, "/status/"):
		d.pollCalls++
		i := d.pollCalls - 1
		if i >= len(d.statuses) {
			i = len(d.statuses) - 1
		}
		return jsonEnv(d.statuses[i]), nil
	default:
		d.mediaCalls++
		return &transport.Envelope{StatusCode: 200, ContentType: "image/webp", Kind: transport.KindBinary, Body: d.media}, nil
	}
}

func newAdapter(t *testing.T, doer transport.Doer) *Adapter {
	t.Helper()
	desc, err := catalog.Lookup("flux-schnell")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	a := New(desc, common.Deps{
		Doer:    doer,
		Secrets: secrets.Static{"replicate": "r8-test"},
		Logger:  zerolog.Nop(),
	})
	a.pollInterval = time.Millisecond
	a.pollAttempts = 3
	return a
}

func createBody(id string) map[string]any {
	return map[string]any{
		"id":     id,
		"status": "starting",
		"urls":   map[string]string{"get": "https://api.replicate.com/v1/status/" + id},
	}
}

func TestGenerateSubmitThenPoll(t *testing.T) {
	media := []byte("webp-bytes")
	doer := &pollDoer{
		create: createBody("p1"),
		statuses: []map[string]any{
			{"status": "processing"},
			{"status": "succeeded", "output": []any{"https://replicate.delivery/out.webp"}},
		},
		media: media,
	}
	adapter := newAdapter(t, doer)

	res := adapter.Generate(context.Background(), domain.GenerationRequest{
		ModelID:    "flux-schnell",
		Prompt:     "a fox",
		Dimensions: "1792x1024",
	})
	if res.Failed() {
		t.Fatalf("failed: %s %s", res.ErrorCode, res.ErrorMessage)
	}
	if res.Payload != base64.StdEncoding.EncodeToString(media) {
		t.Fatalf("payload = %q", res.Payload)
	}
	if res.MIME != "image/webp" {
		t.Fatalf("mime = %q", res.MIME)
	}
	if doer.createCalls != 1 || doer.pollCalls != 2 || doer.mediaCalls != 1 {
		t.Fatalf("calls = %d/%d/%d", doer.createCalls, doer.pollCalls, doer.mediaCalls)
	}
}

func TestGeneratePollTimeoutAfterBudget(t *testing.T) {
	doer := &pollDoer{
		create:   createBody("p2"),
		statuses: []map[string]any{{"status": "processing"}},
	}
	adapter := newAdapter(t, doer)

	res := adapter.Generate(context.Background(), domain.GenerationRequest{ModelID: "flux-schnell", Prompt: "a fox"})
	if res.ErrorCode != domain.CodePollTimeout {
		t.Fatalf("code = %q, want POLL_TIMEOUT", res.ErrorCode)
	}
	if doer.pollCalls != 3 {
		t.Fatalf("poll calls = %d, want exactly the attempt budget", doer.pollCalls)
	}
	if doer.mediaCalls != 0 {
		t.Fatal("no media download after timeout")
	}
}

func TestGeneratePredictionFailed(t *testing.T) {
	doer := &pollDoer{
		create:   createBody("p3"),
		statuses: []map[string]any{{"status": "failed", "error": "NSFW content detected"}},
	}
	adapter := newAdapter(t, doer)

	res := adapter.Generate(context.Background(), domain.GenerationRequest{ModelID: "flux-schnell", Prompt: "a fox"})
	if res.ErrorCode != domain.CodeModelError {
		t.Fatalf("code = %q, want MODEL_ERROR", res.ErrorCode)
	}
	if res.ErrorMessage != "NSFW content detected" {
		t.Fatalf("message = %q", res.ErrorMessage)
	}
	if doer.pollCalls != 1 {
		t.Fatalf("poll calls = %d, terminal failure must stop polling", doer.pollCalls)
	}
}

func TestGenerateStringOutputShape(t *testing.T) {
	doer := &pollDoer{
		create:   createBody("p4"),
		statuses: []map[string]any{{"status": "succeeded", "output": "https://replicate.delivery/single.webp"}},
		media:    []byte("x"),
	}
	adapter := newAdapter(t, doer)

	res := adapter.Generate(context.Background(), domain.GenerationRequest{ModelID: "flux-schnell", Prompt: "a fox"})
	if res.Failed() {
		t.Fatalf("failed: %s %s", res.ErrorCode, res.ErrorMessage)
	}
}

func TestGenerateMissingOutput(t *testing.T) {
	doer := &pollDoer{
		create:   createBody("p5"),
		statuses: []map[string]any{{"status": "succeeded"}},
	}
	adapter := newAdapter(t, doer)

	res := adapter.Generate(context.Background(), domain.GenerationRequest{ModelID: "flux-schnell", Prompt: "a fox"})
	if res.ErrorCode != domain.CodeTransformResponse {
		t.Fatalf("code = %q, want TRANSFORM_RESPONSE_ERROR", res.ErrorCode)
	}
}
