package pipeline

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"mediaforge/internal/domain"
)

// memStore is an in-memory blob store with optional per-suffix failures.
type memStore struct {
	mu         sync.Mutex
	blobs      map[string][]byte
	failSuffix string
}

func newMemStore() *memStore {
	return &memStore{blobs: map[string][]byte{}}
}

func (s *memStore) Save(_ context.Context, key string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSuffix != "" && strings.HasSuffix(key, s.failSuffix) {
		return "", fmt.Errorf("disk full")
	}
	s.blobs[key] = append([]byte(nil), data...)
	return key, nil
}

func (s *memStore) Load(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.blobs[key]
	if !ok {
		return nil, fmt.Errorf("no blob %q", key)
	}
	return data, nil
}

func (s *memStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, key)
	return nil
}

func (s *memStore) keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.blobs))
	for k := range s.blobs {
		out = append(out, k)
	}
	return out
}

// testPNG renders a small solid-color image and returns its PNG bytes.
func testPNG(t *testing.T, c color.Color, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	buf := &bytes.Buffer{}
	if err := png.Encode(buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func successResult(data []byte) domain.GenerationResult {
	return domain.GenerationResult{
		Status:  domain.ResultGenerated,
		Payload: base64.StdEncoding.EncodeToString(data),
		MIME:    "image/png",
	}
}

func TestProcessImage(t *testing.T) {
	store := newMemStore()
	p := New(store, nil, zerolog.Nop())
	data := testPNG(t, color.RGBA{R: 200, G: 40, B: 40, A: 255}, 100, 100)

	artifact, err := p.Process(context.Background(), domain.GenerationRequest{}, successResult(data), domain.SetTypeImageGenerate)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if artifact.ID == "" {
		t.Fatal("missing artifact id")
	}
	if artifact.ByteSize != int64(len(data)) {
		t.Fatalf("byte size = %d, want %d", artifact.ByteSize, len(data))
	}
	if len(artifact.Palette) == 0 {
		t.Fatal("image artifact should carry a palette")
	}

	original, err := store.Load(context.Background(), artifact.ID)
	if err != nil || !bytes.Equal(original, data) {
		t.Fatalf("original blob mismatch: %v", err)
	}
	for _, suffix := range []string{domain.TierSuffix50, domain.TierSuffix20, domain.TierSuffix04} {
		if _, err := store.Load(context.Background(), artifact.ID+suffix); err != nil {
			t.Fatalf("missing tier %s: %v", suffix, err)
		}
	}
}

func TestProcessTierFailureIsNotFatal(t *testing.T) {
	store := newMemStore()
	store.failSuffix = domain.TierSuffix20
	p := New(store, nil, zerolog.Nop())
	data := testPNG(t, color.RGBA{R: 10, G: 10, B: 200, A: 255}, 50, 50)

	artifact, err := p.Process(context.Background(), domain.GenerationRequest{}, successResult(data), domain.SetTypeImageGenerate)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if _, err := store.Load(context.Background(), artifact.ID+domain.TierSuffix50); err != nil {
		t.Fatal("sibling tier should still be written")
	}
	if _, err := store.Load(context.Background(), artifact.ID+domain.TierSuffix20); err == nil {
		t.Fatal("failed tier should be absent")
	}
	if _, err := store.Load(context.Background(), artifact.ID+domain.TierSuffix04); err != nil {
		t.Fatal("later tier should still be written")
	}
}

func TestProcessInvalidPayload(t *testing.T) {
	store := newMemStore()
	p := New(store, nil, zerolog.Nop())

	res := domain.GenerationResult{Status: domain.ResultGenerated, Payload: "%%% not base64 %%%"}
	if _, err := p.Process(context.Background(), domain.GenerationRequest{}, res, domain.SetTypeImageGenerate); !errors.Is(err, domain.ErrDecode) {
		t.Fatalf("err = %v, want ErrDecode", err)
	}
	if len(store.keys()) != 0 {
		t.Fatal("nothing should be persisted for an undecodable payload")
	}
}

func TestProcessOriginalSaveFailure(t *testing.T) {
	p := New(&failAllStore{}, nil, zerolog.Nop())
	data := testPNG(t, color.White, 10, 10)
	if _, err := p.Process(context.Background(), domain.GenerationRequest{}, successResult(data), domain.SetTypeImageGenerate); !errors.Is(err, domain.ErrStorage) {
		t.Fatalf("err = %v, want ErrStorage", err)
	}
}

type failAllStore struct{}

func (failAllStore) Save(context.Context, string, []byte) (string, error) {
	return "", fmt.Errorf("backend unavailable")
}
func (failAllStore) Load(context.Context, string) ([]byte, error) { return nil, fmt.Errorf("no") }
func (failAllStore) Delete(context.Context, string) error         { return nil }

// stubExtractor returns canned frame bytes.
type stubExtractor struct {
	frame []byte
	err   error
}

func (s *stubExtractor) FirstFrame(context.Context, []byte) ([]byte, error) {
	return s.frame, s.err
}

func TestProcessVideo(t *testing.T) {
	store := newMemStore()
	frame := testPNG(t, color.RGBA{R: 30, G: 160, B: 30, A: 255}, 64, 36)
	p := New(store, &stubExtractor{frame: frame}, zerolog.Nop())

	video := []byte("fake-mp4-bytes")
	res := domain.GenerationResult{
		Status:  domain.ResultGenerated,
		Payload: base64.StdEncoding.EncodeToString(video),
		MIME:    "video/mp4",
	}
	artifact, err := p.Process(context.Background(), domain.GenerationRequest{}, res, domain.SetTypeVideoImage)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(artifact.Palette) != 0 {
		t.Fatal("video artifacts carry no palette")
	}
	if _, err := store.Load(context.Background(), artifact.ID+domain.FrameSuffix); err != nil {
		t.Fatalf("missing frame blob: %v", err)
	}
	// Tiers derive from the extracted frame.
	if _, err := store.Load(context.Background(), artifact.ID+domain.TierSuffix50); err != nil {
		t.Fatalf("missing frame tier: %v", err)
	}
}

func TestProcessVideoExtractionFailureDegrades(t *testing.T) {
	store := newMemStore()
	p := New(store, &stubExtractor{err: fmt.Errorf("ffmpeg not found")}, zerolog.Nop())

	video := []byte("fake-mp4-bytes")
	res := domain.GenerationResult{Status: domain.ResultGenerated, Payload: base64.StdEncoding.EncodeToString(video)}
	artifact, err := p.Process(context.Background(), domain.GenerationRequest{}, res, domain.SetTypeVideoText)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(artifact.Palette) != 0 {
		t.Fatal("no palette without a frame")
	}
	if _, err := store.Load(context.Background(), artifact.ID); err != nil {
		t.Fatal("original video must still be persisted")
	}
	if _, err := store.Load(context.Background(), artifact.ID+domain.TierSuffix50); err == nil {
		t.Fatal("no tiers without a frame")
	}
}

func TestProcessCopiesClientInputs(t *testing.T) {
	store := newMemStore()
	p := New(store, nil, zerolog.Nop())
	data := testPNG(t, color.Black, 8, 8)

	req := domain.GenerationRequest{
		ClientImage: base64.StdEncoding.EncodeToString([]byte("client-src")),
		ClientMask:  base64.StdEncoding.EncodeToString([]byte("client-mask")),
	}
	artifact, err := p.Process(context.Background(), req, successResult(data), domain.SetTypeImageEdit)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	got, err := store.Load(context.Background(), artifact.ID+domain.ClientCopySuffix)
	if err != nil || string(got) != "client-src" {
		t.Fatalf("client copy: %q, %v", got, err)
	}
	got, err = store.Load(context.Background(), artifact.ID+domain.MaskCopySuffix)
	if err != nil || string(got) != "client-mask" {
		t.Fatalf("mask copy: %q, %v", got, err)
	}
}

func TestPaletteDominantColor(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 40, 40))
	red := color.RGBA{R: 255, A: 255}
	blue := color.RGBA{B: 255, A: 255}
	for y := 0; y < 40; y++ {
		for x := 0; x < 40; x++ {
			if x < 30 {
				img.Set(x, y, red)
			} else {
				img.Set(x, y, blue)
			}
		}
	}

	palette := Palette(img, 5)
	if len(palette) < 2 {
		t.Fatalf("palette = %v", palette)
	}
	if palette[0] != "#FF0000" {
		t.Fatalf("dominant color = %q, want #FF0000", palette[0])
	}
}

func TestPaletteEmptyInputs(t *testing.T) {
	if Palette(nil, 5) != nil {
		t.Fatal("nil image yields nil palette")
	}
	img := image.NewRGBA(image.Rect(0, 0, 4, 4)) // fully transparent
	if got := Palette(img, 5); got != nil {
		t.Fatalf("transparent image palette = %v", got)
	}
}
