package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/atljh/TeleCloneX/internal/domain"
	"github.com/atljh/TeleCloneX/internal/infrastructure/metrics"
)

// maxCaptionLength is the platform cap for media captions. Longer
// captions are truncated to 1021 characters plus an ellipsis.
const maxCaptionLength = 1024

// Publisher sends content units to target channels and classifies the
// outcome into the closed SendResult taxonomy.
type Publisher struct {
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

func NewPublisher(log zerolog.Logger) *Publisher {
	return &Publisher{
		metrics: metrics.GetDefaultMetrics(),
		logger:  log.With().Str("component", "publisher").Logger(),
	}
}

// Publish sends one unit to one target. An empty unit is never sent.
// Scratch files are left in place: the same unit is published to every
// target before the pipeline removes them.
func (p *Publisher) Publish(ctx context.Context, client domain.ChatClient, unit domain.ContentUnit, target domain.ChannelRef) domain.SendResult {
	if unit.Empty() {
		p.metrics.UnitsSkipped.WithLabelValues("empty").Inc()
		p.logger.Debug().Int("message_id", unit.SourceMessageID).Msg("empty unit, nothing to publish")
		return domain.SkipTarget
	}

	start := time.Now()
	var err error
	if unit.MediaKind == domain.MediaNone {
		err = client.SendText(ctx, target, unit.Text)
	} else {
		err = client.SendFile(ctx, target, unit.MediaPath, TruncateCaption(unit.Text), unit.MediaKind)
	}
	p.metrics.PublishDuration.Observe(time.Since(start).Seconds())

	result := p.finish(err, target, unit.SourceMessageID)
	if result == domain.Sent {
		p.metrics.UnitsPublished.Inc()
	}
	return result
}

// PublishAlbum sends several units as one multi-attachment post. The
// units must belong to the same media group; text is concatenated into
// a single caption.
func (p *Publisher) PublishAlbum(ctx context.Context, client domain.ChatClient, units []domain.ContentUnit, target domain.ChannelRef) domain.SendResult {
	var (
		paths    []string
		kinds    []domain.MediaKind
		captions []string
	)
	for _, unit := range units {
		if unit.MediaKind == domain.MediaNone {
			continue
		}
		paths = append(paths, unit.MediaPath)
		kinds = append(kinds, unit.MediaKind)
		if unit.Text != "" {
			captions = append(captions, unit.Text)
		}
	}
	if len(paths) == 0 {
		p.metrics.UnitsSkipped.WithLabelValues("empty").Inc()
		return domain.SkipTarget
	}

	caption := TruncateCaption(strings.Join(captions, "\n"))

	start := time.Now()
	err := client.SendAlbum(ctx, target, paths, kinds, caption)
	p.metrics.PublishDuration.Observe(time.Since(start).Seconds())

	first := 0
	if len(units) > 0 {
		first = units[0].SourceMessageID
	}
	result := p.finish(err, target, first)
	if result == domain.Sent {
		p.metrics.AlbumsPublished.Inc()
	}
	return result
}

// finish maps the send error to a result and records it.
func (p *Publisher) finish(err error, target domain.ChannelRef, messageID int) domain.SendResult {
	result := classifySendError(err)
	if result == domain.Sent {
		p.logger.Info().
			Str("target", string(target)).
			Int("message_id", messageID).
			Msg("unit published")
		return result
	}

	p.metrics.PublishErrors.WithLabelValues(result.String()).Inc()
	p.logger.Warn().
		Err(err).
		Str("target", string(target)).
		Int("message_id", messageID).
		Str("result", result.String()).
		Msg("publish failed")
	return result
}

func classifySendError(err error) domain.SendResult {
	switch {
	case err == nil:
		return domain.Sent
	case errors.Is(err, domain.ErrFloodWait):
		return domain.SendFloodWait
	case errors.Is(err, domain.ErrBannedInChannel):
		return domain.BannedInTarget
	case errors.Is(err, domain.ErrMediaForbidden),
		errors.Is(err, domain.ErrChannelNotFound),
		errors.Is(err, domain.ErrAccessForbidden):
		return domain.SkipTarget
	default:
		return domain.SendError
	}
}

// TruncateCaption enforces the platform caption cap.
func TruncateCaption(text string) string {
	runes := []rune(text)
	if len(runes) <= maxCaptionLength {
		return text
	}
	return string(runes[:maxCaptionLength-3]) + "..."
}
