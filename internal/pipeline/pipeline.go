// Package pipeline turns a successful adapter payload into persisted,
// tiered artifacts: the original media, three downscaled derivatives, copies
// of any client-supplied inputs, plus byte size and a dominant-color palette.
package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"mediaforge/internal/domain"
	"mediaforge/internal/providers/common"
	"mediaforge/internal/storage"
)

// tier describes one downscaled derivative of the original media.
type tier struct {
	suffix string
	scale  float64
}

var tiers = []tier{
	{domain.TierSuffix50, 0.50},
	{domain.TierSuffix20, 0.20},
	{domain.TierSuffix04, 0.04},
}

// Artifact is what Process hands back to the orchestrator.
type Artifact struct {
	ID       string
	ByteSize int64
	Palette  []string
}

// FrameExtractor pulls a still image out of video media.
type FrameExtractor interface {
	FirstFrame(ctx context.Context, video []byte) ([]byte, error)
}

// Pipeline persists artifacts onto a blob store. Everything after the
// original write is best-effort: a failed tier or frame extraction is logged
// and skipped, never fatal.
type Pipeline struct {
	store  storage.BlobStore
	frames FrameExtractor
	logger zerolog.Logger
}

// New builds a pipeline. frames may be nil when video support is not needed.
func New(store storage.BlobStore, frames FrameExtractor, logger zerolog.Logger) *Pipeline {
	return &Pipeline{store: store, frames: frames, logger: logger}
}

// Process decodes the payload, persists the original under a fresh id, then
// derives tiers, palette and audit copies.
func (p *Pipeline) Process(ctx context.Context, req domain.GenerationRequest, res domain.GenerationResult, setType domain.SetType) (*Artifact, error) {
	data, err := common.DecodeBase64(res.Payload)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	if _, err := p.store.Save(ctx, id, data); err != nil {
		return nil, fmt.Errorf("persist original: %w: %v", domain.ErrStorage, err)
	}

	artifact := &Artifact{ID: id, ByteSize: int64(len(data))}

	tierSource := data
	if setType.IsVideo() {
		tierSource = p.extractFrame(ctx, id, data)
	}
	if len(tierSource) > 0 {
		if img := decodeImage(tierSource); img != nil {
			p.writeTiers(ctx, id, img)
			if !setType.IsVideo() {
				artifact.Palette = Palette(img, 5)
			}
		} else {
			p.logger.Warn().Str("artifact_id", id).Msg("pipeline: media not decodable as image, skipping tiers")
		}
	}

	p.copyClientInputs(ctx, id, req)
	return artifact, nil
}

// extractFrame returns the first video frame, persisting it as the thumbnail
// basis. Failures degrade to no tiers and an empty palette.
func (p *Pipeline) extractFrame(ctx context.Context, id string, video []byte) []byte {
	if p.frames == nil {
		p.logger.Warn().Str("artifact_id", id).Msg("pipeline: no frame extractor configured")
		return nil
	}
	frame, err := p.frames.FirstFrame(ctx, video)
	if err != nil {
		p.logger.Warn().Err(err).Str("artifact_id", id).Msg("pipeline: frame extraction failed")
		return nil
	}
	if _, err := p.store.Save(ctx, id+domain.FrameSuffix, frame); err != nil {
		p.logger.Warn().Err(err).Str("artifact_id", id).Msg("pipeline: persist frame failed")
	}
	return frame
}

// writeTiers persists the 50%/20%/4% derivatives. Each tier is independent;
// one failure never blocks the others.
func (p *Pipeline) writeTiers(ctx context.Context, id string, img image.Image) {
	bounds := img.Bounds()
	for _, t := range tiers {
		width := int(float64(bounds.Dx()) * t.scale)
		if width < 1 {
			width = 1
		}
		scaled := imaging.Resize(img, width, 0, imaging.Lanczos)
		buf := &bytes.Buffer{}
		if err := imaging.Encode(buf, scaled, imaging.PNG); err != nil {
			p.logger.Warn().Err(err).Str("artifact_id", id).Str("tier", t.suffix).Msg("pipeline: encode tier failed")
			continue
		}
		if _, err := p.store.Save(ctx, id+t.suffix, buf.Bytes()); err != nil {
			p.logger.Warn().Err(err).Str("artifact_id", id).Str("tier", t.suffix).Msg("pipeline: persist tier failed")
		}
	}
}

// copyClientInputs persists audit copies of caller-supplied media.
func (p *Pipeline) copyClientInputs(ctx context.Context, id string, req domain.GenerationRequest) {
	for suffix, payload := range map[string]string{
		domain.ClientCopySuffix: req.ClientImage,
		domain.MaskCopySuffix:   req.ClientMask,
	} {
		if strings.TrimSpace(payload) == "" {
			continue
		}
		data, err := common.DecodeBase64(payload)
		if err != nil {
			p.logger.Warn().Err(err).Str("artifact_id", id).Str("copy", suffix).Msg("pipeline: client input not decodable")
			continue
		}
		if _, err := p.store.Save(ctx, id+suffix, data); err != nil {
			p.logger.Warn().Err(err).Str("artifact_id", id).Str("copy", suffix).Msg("pipeline: persist client input failed")
		}
	}
}

func decodeImage(data []byte) image.Image {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil
	}
	return img
}
