// Package common holds the helpers shared by every backend adapter: the
// bounded poll loop, canonical failure construction, remote media download,
// and prompt/dimension normalization.
package common

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"mediaforge/internal/domain"
	"mediaforge/internal/transport"
)

var errPending = errors.New("job still pending")

// Poll invokes fn at a fixed interval until it reports done, fails, or the
// attempt budget is exhausted. Budget exhaustion yields domain.ErrPollTimeout
// rather than hanging. fn errors abort immediately.
func Poll(ctx context.Context, interval time.Duration, maxAttempts uint64, fn func() (done bool, err error)) error {
	if maxAttempts == 0 {
		maxAttempts = 1
	}
	op := func() error {
		done, err := fn()
		if err != nil {
			return backoff.Permanent(err)
		}
		if done {
			return nil
		}
		return errPending
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(interval), maxAttempts-1), ctx)
	err := backoff.Retry(op, policy)
	if err == nil {
		return nil
	}
	if errors.Is(err, errPending) {
		return fmt.Errorf("after %d attempts: %w", maxAttempts, domain.ErrPollTimeout)
	}
	return err
}

// Failure wraps a code and message into a canonical failed result.
func Failure(code domain.ErrorCode, message string) domain.GenerationResult {
	return domain.FailedResult(code, message)
}

// FailureFromError classifies an adapter-boundary error into a canonical
// failed result. Transport and poll errors get their dedicated codes;
// everything else falls back to the provided default.
func FailureFromError(fallback domain.ErrorCode, err error) domain.GenerationResult {
	switch {
	case errors.Is(err, domain.ErrPollTimeout):
		return domain.FailedResult(domain.CodePollTimeout, err.Error())
	case errors.Is(err, domain.ErrInvalidURL):
		return domain.FailedResult(domain.CodeTransportError, err.Error())
	default:
		return domain.FailedResult(fallback, err.Error())
	}
}

// FetchBase64 downloads remote media and re-encodes it as base64 so every
// downstream consumer stays protocol-agnostic. Returns payload and MIME type.
func FetchBase64(ctx context.Context, doer transport.Doer, url string) (string, string, error) {
	env, err := doer.Perform(ctx, transport.Request{Method: "GET", URL: url})
	if err != nil {
		return "", "", fmt.Errorf("download media: %w", err)
	}
	if env.StatusCode >= 300 {
		return "", "", fmt.Errorf("download media: status %d", env.StatusCode)
	}
	if len(env.Body) == 0 {
		return "", "", errors.New("download media: empty body")
	}
	mime := env.ContentType
	if mime == "" {
		mime = "image/png"
	}
	return base64.StdEncoding.EncodeToString(env.Body), mime, nil
}

// ParseDimensions splits a canonical "WxH" dimensions string.
func ParseDimensions(dims string) (int, int, error) {
	parts := strings.SplitN(strings.TrimSpace(dims), "x", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid dimensions %q", dims)
	}
	w, err := strconv.Atoi(parts[0])
	if err != nil || w <= 0 {
		return 0, 0, fmt.Errorf("invalid dimensions %q", dims)
	}
	h, err := strconv.Atoi(parts[1])
	if err != nil || h <= 0 {
		return 0, 0, fmt.Errorf("invalid dimensions %q", dims)
	}
	return w, h, nil
}

// AspectRatio converts canonical dimensions into the closest common aspect
// token ("1:1", "16:9", ...), which several backends take instead of pixels.
func AspectRatio(dims string) string {
	w, h, err := ParseDimensions(dims)
	if err != nil {
		return "1:1"
	}
	ratios := []struct {
		token string
		value float64
	}{
		{"1:1", 1}, {"16:9", 16.0 / 9.0}, {"9:16", 9.0 / 16.0},
		{"4:3", 4.0 / 3.0}, {"3:4", 3.0 / 4.0}, {"21:9", 21.0 / 9.0},
		{"3:2", 3.0 / 2.0}, {"2:3", 2.0 / 3.0},
	}
	actual := float64(w) / float64(h)
	best := ratios[0]
	bestDiff := diff(actual, best.value)
	for _, r := range ratios[1:] {
		if d := diff(actual, r.value); d < bestDiff {
			best, bestDiff = r, d
		}
	}
	return best.token
}

func diff(a, b float64) float64 {
	if a > b {
		return a - b
	}
	return b - a
}

// AugmentPrompt appends style and variant modifiers to the prompt when they
// apply, keeping the mapping identical across backends.
func AugmentPrompt(prompt, style, variant string) string {
	out := strings.TrimSpace(prompt)
	if s := strings.TrimSpace(style); s != "" && !strings.EqualFold(s, "none") {
		out = fmt.Sprintf("%s, in %s style", out, s)
	}
	if v := strings.TrimSpace(variant); v != "" {
		out = fmt.Sprintf("%s (%s)", out, v)
	}
	return out
}

// DecodeBase64 strips an optional data-URI prefix and decodes the payload.
func DecodeBase64(payload string) ([]byte, error) {
	trimmed := strings.TrimSpace(payload)
	if idx := strings.Index(trimmed, ";base64,"); idx >= 0 {
		trimmed = trimmed[idx+len(";base64,"):]
	}
	data, err := base64.StdEncoding.DecodeString(trimmed)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, domain.ErrDecode)
	}
	return data, nil
}
