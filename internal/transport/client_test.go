package transport

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"testing"

	"mediaforge/internal/domain"
)

// stubTransport captures the outgoing request and replays a canned response.
type stubTransport struct {
	req      *http.Request
	body     []byte
	status   int
	respBody []byte
	respType string
}

func (s *stubTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	s.req = req
	if req.Body != nil {
		s.body, _ = io.ReadAll(req.Body)
	}
	header := http.Header{}
	if s.respType != "" {
		header.Set("Content-Type", s.respType)
	}
	status := s.status
	if status == 0 {
		status = 200
	}
	return &http.Response{
		StatusCode: status,
		Header:     header,
		Body:       io.NopCloser(bytes.NewReader(s.respBody)),
	}, nil
}

func newStubClient(stub *stubTransport) *Client {
	return NewClient(Options{HTTPClient: &http.Client{Transport: stub}})
}

func TestPerformJSONRequest(t *testing.T) {
	stub := &stubTransport{respBody: []byte(`{"ok":true}`), respType: "application/json"}
	client := newStubClient(stub)

	env, err := client.Perform(context.Background(), Request{
		Method:  http.MethodPost,
		URL:     "https://api.example.com/v1/things",
		Headers: map[string]string{"Authorization": "Bearer k"},
		JSON:    map[string]string{"prompt": "a fox"},
	})
	if err != nil {
		t.Fatalf("Perform: %v", err)
	}
	if env.Kind != KindObject {
		t.Fatalf("kind = %v, want object", env.Kind)
	}
	if stub.req.Header.Get("Content-Type") != "application/json" {
		t.Fatalf("content type = %q", stub.req.Header.Get("Content-Type"))
	}
	if stub.req.Header.Get("Authorization") != "Bearer k" {
		t.Fatal("missing auth header")
	}
	if !bytes.Contains(stub.body, []byte(`"prompt":"a fox"`)) {
		t.Fatalf("body = %s", stub.body)
	}

	var decoded struct {
		OK bool `json:"ok"`
	}
	if err := env.DecodeJSON(&decoded); err != nil || !decoded.OK {
		t.Fatalf("decode: %v, %+v", err, decoded)
	}
}

func TestPerformClassifiesArray(t *testing.T) {
	stub := &stubTransport{respBody: []byte(`[{"id":1}]`), respType: "application/json"}
	env, err := newStubClient(stub).Perform(context.Background(), Request{URL: "https://api.example.com/list"})
	if err != nil {
		t.Fatalf("Perform: %v", err)
	}
	if env.Kind != KindArray {
		t.Fatalf("kind = %v, want array", env.Kind)
	}
}

func TestPerformClassifiesBinary(t *testing.T) {
	stub := &stubTransport{respBody: []byte{0x89, 'P', 'N', 'G'}, respType: "image/png"}
	env, err := newStubClient(stub).Perform(context.Background(), Request{URL: "https://cdn.example.com/a.png"})
	if err != nil {
		t.Fatalf("Perform: %v", err)
	}
	if env.Kind != KindBinary {
		t.Fatalf("kind = %v, want binary", env.Kind)
	}
	if env.ContentType != "image/png" {
		t.Fatalf("content type = %q", env.ContentType)
	}
	if err := env.DecodeJSON(&struct{}{}); err == nil {
		t.Fatal("binary envelopes must refuse json decoding")
	}
}

func TestPerformInvalidURL(t *testing.T) {
	client := newStubClient(&stubTransport{})
	for _, bad := range []string{"", "not a url", "/relative/path"} {
		if _, err := client.Perform(context.Background(), Request{URL: bad}); !errors.Is(err, domain.ErrInvalidURL) {
			t.Fatalf("Perform(%q) err = %v, want ErrInvalidURL", bad, err)
		}
	}
}

func TestPerformMultipartEncoding(t *testing.T) {
	stub := &stubTransport{respBody: []byte(`{}`), respType: "application/json"}
	client := newStubClient(stub)

	_, err := client.Perform(context.Background(), Request{
		Method: http.MethodPost,
		URL:    "https://api.example.com/upload",
		Form:   map[string]string{"prompt": "a fox", "model": "m1"},
		Attachments: []Attachment{
			{Field: "image", Filename: "image.png", MIME: "image/png", Data: []byte("png-bytes")},
		},
	})
	if err != nil {
		t.Fatalf("Perform: %v", err)
	}

	mediaType, params, err := mime.ParseMediaType(stub.req.Header.Get("Content-Type"))
	if err != nil || mediaType != "multipart/form-data" {
		t.Fatalf("content type = %q, %v", stub.req.Header.Get("Content-Type"), err)
	}

	reader := multipart.NewReader(bytes.NewReader(stub.body), params["boundary"])
	form, err := reader.ReadForm(1 << 20)
	if err != nil {
		t.Fatalf("parse multipart: %v", err)
	}
	if got := form.Value["prompt"]; len(got) != 1 || got[0] != "a fox" {
		t.Fatalf("prompt field = %v", form.Value["prompt"])
	}
	files := form.File["image"]
	if len(files) != 1 || files[0].Filename != "image.png" {
		t.Fatalf("image parts = %+v", files)
	}
	f, err := files[0].Open()
	if err != nil {
		t.Fatalf("open part: %v", err)
	}
	defer f.Close()
	data, _ := io.ReadAll(f)
	if string(data) != "png-bytes" {
		t.Fatalf("part data = %q", data)
	}
}

func TestPerformAcceptHeader(t *testing.T) {
	stub := &stubTransport{respBody: []byte("binary"), respType: "image/webp"}
	_, err := newStubClient(stub).Perform(context.Background(), Request{
		URL:    "https://api.example.com/gen",
		Accept: "image/*",
	})
	if err != nil {
		t.Fatalf("Perform: %v", err)
	}
	if stub.req.Header.Get("Accept") != "image/*" {
		t.Fatalf("accept = %q", stub.req.Header.Get("Accept"))
	}
}
