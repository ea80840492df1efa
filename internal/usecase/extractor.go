package usecase

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/atljh/TeleCloneX/internal/domain"
)

// Extractor turns raw source messages into content units, pulling
// media into the scratch directory.
type Extractor struct {
	logger zerolog.Logger
}

func NewExtractor(log zerolog.Logger) *Extractor {
	return &Extractor{logger: log.With().Str("component", "extractor").Logger()}
}

// Extract builds the unit for one message. Text is carried as-is;
// media is downloaded to a scratch file. A failed download errors the
// whole unit: publishing text without its media would corrupt the post.
func (e *Extractor) Extract(ctx context.Context, client domain.ChatClient, raw domain.RawMessage) (domain.ContentUnit, error) {
	unit := domain.ContentUnit{
		Text:            raw.Text,
		MediaKind:       raw.MediaKind,
		GroupID:         raw.GroupID,
		SourceMessageID: raw.ID,
	}

	if raw.MediaKind != domain.MediaNone {
		path, err := client.DownloadMedia(ctx, raw)
		if err != nil {
			return domain.ContentUnit{}, fmt.Errorf("download media for message %d: %w", raw.ID, err)
		}
		unit.MediaPath = path
		unit.OriginalPath = path
	}

	e.logger.Debug().
		Int("message_id", raw.ID).
		Str("media", raw.MediaKind.String()).
		Int64("group_id", raw.GroupID).
		Msg("content extracted")
	return unit, nil
}
