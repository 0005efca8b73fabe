package pipeline

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// FFmpegExtractor pulls the first frame out of video bytes by shelling out
// to ffmpeg. Hosts without ffmpeg on PATH simply lose video thumbnails; the
// pipeline treats extraction failures as best-effort.
type FFmpegExtractor struct{}

// NewFFmpegExtractor constructs the extractor.
func NewFFmpegExtractor() *FFmpegExtractor {
	return &FFmpegExtractor{}
}

// FirstFrame writes the video to a temp file, extracts a single frame as PNG
// and returns its bytes.
func (f *FFmpegExtractor) FirstFrame(ctx context.Context, video []byte) ([]byte, error) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return nil, fmt.Errorf("ffmpeg not found in PATH: %w", err)
	}

	dir, err := os.MkdirTemp("", "mediaforge-frame-*")
	if err != nil {
		return nil, fmt.Errorf("temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	input := filepath.Join(dir, "input.mp4")
	output := filepath.Join(dir, "frame.png")
	if err := os.WriteFile(input, video, 0o600); err != nil {
		return nil, fmt.Errorf("write temp video: %w", err)
	}

	args := []string{
		"-i", input,
		"-frames:v", "1",
		"-q:v", "2",
		"-y",
		output,
	}
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	if combined, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("ffmpeg failed: %w: %s", err, string(combined))
	}

	frame, err := os.ReadFile(output)
	if err != nil {
		return nil, fmt.Errorf("read frame: %w", err)
	}
	return frame, nil
}

var _ FrameExtractor = (*FFmpegExtractor)(nil)
