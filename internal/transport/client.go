package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"mediaforge/internal/domain"
	"mediaforge/internal/infra"
)

// EnvelopeKind tags the decoded shape of a backend response.
type EnvelopeKind int

const (
	KindObject EnvelopeKind = iota
	KindArray
	KindBinary
)

// Attachment is one file part of a multipart request.
type Attachment struct {
	Field    string
	Filename string
	MIME     string
	Data     []byte
}

// Request describes one backend call. When Attachments or Form are present
// the body is encoded as multipart/form-data, otherwise JSON is marshalled
// from the JSON field.
type Request struct {
	Method      string
	URL         string
	Headers     map[string]string
	JSON        any
	Form        map[string]string
	Attachments []Attachment
	Accept      string
}

// Envelope is the normalized response: a status code, the raw body, and a
// kind tag telling callers whether the body is a JSON object, a JSON array,
// or raw binary media.
type Envelope struct {
	StatusCode  int
	ContentType string
	Kind        EnvelopeKind
	Body        []byte
}

// DecodeJSON unmarshals the body into v.
func (e *Envelope) DecodeJSON(v any) error {
	if e.Kind == KindBinary {
		return fmt.Errorf("transport: binary envelope is not json")
	}
	return json.Unmarshal(e.Body, v)
}

// Doer is the transport contract adapters depend on. The concrete HTTP stack
// stays behind it so tests can substitute canned envelopes.
type Doer interface {
	Perform(ctx context.Context, req Request) (*Envelope, error)
}

// Options configures the HTTP client.
type Options struct {
	HTTPClient     *http.Client
	RequestTimeout time.Duration
	// RequestsPerSecond throttles outbound calls; zero disables the limiter.
	RequestsPerSecond float64
	Logger            *infra.Logger
}

// Client performs real HTTP calls with an optional request rate limit.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *infra.Logger
}

// NewClient constructs a client with sane defaults.
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}
	return &Client{httpClient: httpClient, limiter: limiter, logger: opts.Logger}
}

// Perform executes the request and classifies the response body.
func (c *Client) Perform(ctx context.Context, req Request) (*Envelope, error) {
	parsed, err := url.Parse(strings.TrimSpace(req.URL))
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("transport: %q: %w", req.URL, domain.ErrInvalidURL)
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	contentType := ""
	switch {
	case len(req.Attachments) > 0 || len(req.Form) > 0:
		buf, boundary, err := encodeMultipart(req)
		if err != nil {
			return nil, err
		}
		body = buf
		contentType = "multipart/form-data; boundary=" + boundary
	case req.JSON != nil:
		raw, err := json.Marshal(req.JSON)
		if err != nil {
			return nil, fmt.Errorf("transport: encode request: %w", err)
		}
		body = bytes.NewReader(raw)
		contentType = "application/json"
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, parsed.String(), body)
	if err != nil {
		return nil, fmt.Errorf("transport: build request: %w", err)
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	if req.Accept != "" {
		httpReq.Header.Set("Accept", req.Accept)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("transport: http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("transport: read response: %w", err)
	}

	env := &Envelope{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Kind:        classify(resp.Header.Get("Content-Type"), raw),
		Body:        raw,
	}
	if c.logger != nil {
		c.logger.Debug().
			Str("method", method).
			Str("url", parsed.Redacted()).
			Int("status", env.StatusCode).
			Int("bytes", len(raw)).
			Msg("transport: call completed")
	}
	return env, nil
}

func encodeMultipart(req Request) (*bytes.Buffer, string, error) {
	buf := &bytes.Buffer{}
	writer := multipart.NewWriter(buf)
	for field, value := range req.Form {
		if err := writer.WriteField(field, value); err != nil {
			return nil, "", fmt.Errorf("transport: write form field: %w", err)
		}
	}
	for _, att := range req.Attachments {
		header := textproto.MIMEHeader{}
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, att.Field, att.Filename))
		if att.MIME != "" {
			header.Set("Content-Type", att.MIME)
		}
		part, err := writer.CreatePart(header)
		if err != nil {
			return nil, "", fmt.Errorf("transport: create part: %w", err)
		}
		if _, err := part.Write(att.Data); err != nil {
			return nil, "", fmt.Errorf("transport: write part: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("transport: close multipart: %w", err)
	}
	return buf, writer.Boundary(), nil
}

func classify(contentType string, body []byte) EnvelopeKind {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if strings.HasPrefix(ct, "image/") || strings.HasPrefix(ct, "video/") || strings.HasPrefix(ct, "application/octet-stream") {
		return KindBinary
	}
	trimmed := bytes.TrimLeft(body, " \t\r\n")
	if len(trimmed) > 0 {
		switch trimmed[0] {
		case '{':
			return KindObject
		case '[':
			return KindArray
		}
	}
	if strings.Contains(ct, "json") {
		return KindObject
	}
	return KindBinary
}

var _ Doer = (*Client)(nil)
