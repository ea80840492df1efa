package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/atljh/TeleCloneX/internal/domain"
	"github.com/atljh/TeleCloneX/internal/infrastructure/metrics"
)

// maskTable maps Cyrillic letters to their Latin homoglyphs. Swapping
// a handful of identical-looking characters changes the text's bytes
// without changing what a reader sees.
var maskTable = map[rune]rune{
	'а': 'a', 'е': 'e', 'о': 'o', 'р': 'p', 'с': 'c', 'у': 'y', 'х': 'x',
	'А': 'A', 'В': 'B', 'Е': 'E', 'К': 'K', 'М': 'M', 'Н': 'H',
	'О': 'O', 'Р': 'P', 'С': 'C', 'Т': 'T', 'У': 'Y', 'Х': 'X',
}

// Uniquifier rewrites a content unit so the copy is not byte- or
// perceptually identical to the source.
type Uniquifier struct {
	rewriter     domain.Rewriter
	transformer  domain.MediaTransformer
	replacements [][2]string
	maskText     bool
	rewrite      bool
	transform    bool
	metrics      *metrics.Metrics
	logger       zerolog.Logger
}

// UniquifierConfig holds configuration for the uniquifier
type UniquifierConfig struct {
	Rewriter     domain.Rewriter
	Transformer  domain.MediaTransformer
	Replacements [][2]string // ordered original->replacement pairs
	MaskText     bool
	Rewrite      bool
	Transform    bool
	Logger       zerolog.Logger
}

func NewUniquifier(cfg UniquifierConfig) *Uniquifier {
	return &Uniquifier{
		rewriter:     cfg.Rewriter,
		transformer:  cfg.Transformer,
		replacements: cfg.Replacements,
		maskText:     cfg.MaskText,
		rewrite:      cfg.Rewrite,
		transform:    cfg.Transform,
		metrics:      metrics.GetDefaultMetrics(),
		logger:       cfg.Logger.With().Str("component", "uniquifier").Logger(),
	}
}

// Apply uniquifies text and media in place. Text goes through rewrite,
// then masking, then word replacements. A rewrite or media transform
// failure errors the unit and removes its scratch files, so the
// untouched original is never published by accident.
func (u *Uniquifier) Apply(ctx context.Context, unit domain.ContentUnit) (domain.ContentUnit, error) {
	if u.rewrite && u.rewriter != nil && unit.Text != "" {
		rewritten, err := u.rewriter.Rewrite(ctx, unit.Text)
		if err != nil {
			u.metrics.RewriteErrors.Inc()
			u.logger.Warn().Err(err).Int("message_id", unit.SourceMessageID).Msg("rewrite failed, unit dropped")
			CleanupUnit(unit, u.logger)
			if errors.Is(err, domain.ErrRewriteFailed) {
				return domain.ContentUnit{}, err
			}
			return domain.ContentUnit{}, fmt.Errorf("%w: %v", domain.ErrRewriteFailed, err)
		}
		unit.Text = rewritten
	}

	if u.maskText {
		unit.Text = MaskText(unit.Text)
	}

	for _, pair := range u.replacements {
		unit.Text = strings.ReplaceAll(unit.Text, pair[0], pair[1])
	}

	if u.transform && u.transformer != nil && unit.MediaKind != domain.MediaNone {
		transformed, err := u.transformer.Transform(ctx, unit.MediaPath, unit.MediaKind)
		if err != nil {
			u.metrics.TransformErrors.Inc()
			CleanupUnit(unit, u.logger)
			if errors.Is(err, domain.ErrTransformFailed) {
				return domain.ContentUnit{}, err
			}
			return domain.ContentUnit{}, fmt.Errorf("%w: %v", domain.ErrTransformFailed, err)
		}
		unit.MediaPath = transformed
	}

	return unit, nil
}

// MaskText swaps Cyrillic letters for Latin homoglyphs.
func MaskText(text string) string {
	if text == "" {
		return text
	}
	return strings.Map(func(r rune) rune {
		if repl, ok := maskTable[r]; ok {
			return repl
		}
		return r
	}, text)
}

// CleanupUnit removes the unit's scratch files. Missing files are
// fine; anything else is logged and the cleanup continues.
func CleanupUnit(unit domain.ContentUnit, log zerolog.Logger) {
	paths := []string{unit.MediaPath}
	if unit.OriginalPath != "" && unit.OriginalPath != unit.MediaPath {
		paths = append(paths, unit.OriginalPath)
	}
	for _, path := range paths {
		if path == "" {
			continue
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", path).Msg("cannot remove scratch file")
		}
	}
}
