package media

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/atljh/TeleCloneX/internal/domain"
)

// FFmpegTransformer produces perceptually-unique copies of media files
// by re-encoding them with slight parameter changes. Each kind gets
// its own filter chain; the original file is never touched.
type FFmpegTransformer struct {
	binary string
	outDir string
	logger zerolog.Logger
}

// Config holds configuration for the transformer
type Config struct {
	Binary string // ffmpeg binary path, default "ffmpeg"
	OutDir string // directory for transformed output
	Logger zerolog.Logger
}

func New(cfg Config) *FFmpegTransformer {
	if cfg.Binary == "" {
		cfg.Binary = "ffmpeg"
	}
	if cfg.OutDir == "" {
		cfg.OutDir = "downloads"
	}
	return &FFmpegTransformer{
		binary: cfg.Binary,
		outDir: cfg.OutDir,
		logger: cfg.Logger.With().Str("component", "media_transformer").Logger(),
	}
}

// Transform re-encodes the file into a new scratch path. A non-zero
// ffmpeg exit maps to ErrTransformFailed; the caller decides whether
// to skip the unit.
func (t *FFmpegTransformer) Transform(ctx context.Context, path string, kind domain.MediaKind) (string, error) {
	args, ext, err := argsFor(kind)
	if err != nil {
		return "", err
	}

	out := filepath.Join(t.outDir, uuid.NewString()+ext)
	cmdArgs := append([]string{"-y", "-i", path}, args...)
	cmdArgs = append(cmdArgs, out)

	cmd := exec.CommandContext(ctx, t.binary, cmdArgs...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		t.logger.Warn().
			Err(err).
			Str("path", path).
			Str("kind", kind.String()).
			Str("output", tail(string(output), 400)).
			Msg("media transform failed")
		return "", fmt.Errorf("%w: %s: %v", domain.ErrTransformFailed, path, err)
	}

	t.logger.Debug().Str("path", path).Str("out", out).Msg("media transformed")
	return out, nil
}

// argsFor returns the encode arguments and output extension per kind.
// The tweaks are invisible to a viewer but change the file's bytes and
// perceptual hash: a slight crop-and-scale for pictures, metadata strip
// and re-encode for video and audio.
func argsFor(kind domain.MediaKind) ([]string, string, error) {
	switch kind {
	case domain.MediaPhoto:
		return []string{
			"-vf", "crop=iw-2:ih-2,scale=iw+2:ih+2,eq=brightness=0.01",
			"-q:v", "3",
		}, ".jpg", nil
	case domain.MediaVideo:
		return []string{
			"-vf", "eq=contrast=1.01:brightness=0.005",
			"-map_metadata", "-1",
			"-c:v", "libx264", "-preset", "veryfast", "-crf", "24",
			"-c:a", "aac",
		}, ".mp4", nil
	case domain.MediaRoundVideo:
		return []string{
			"-vf", "eq=contrast=1.01",
			"-map_metadata", "-1",
			"-c:v", "libx264", "-preset", "veryfast", "-crf", "24",
			"-c:a", "aac",
		}, ".mp4", nil
	case domain.MediaAudio:
		return []string{
			"-map_metadata", "-1",
			"-af", "volume=1.01",
			"-c:a", "libmp3lame", "-q:a", "4",
		}, ".mp3", nil
	default:
		return nil, "", fmt.Errorf("%w: no transform for kind %s", domain.ErrTransformFailed, kind)
	}
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

var _ domain.MediaTransformer = (*FFmpegTransformer)(nil)
