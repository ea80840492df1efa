package usecase

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/atljh/TeleCloneX/internal/domain"
	"github.com/atljh/TeleCloneX/internal/infrastructure/logger"
	"github.com/atljh/TeleCloneX/internal/infrastructure/metrics"
)

// albumScanWindow is how many recent messages are scanned for album
// siblings. A grouped message whose siblings fall outside this window
// is published with the members found; the window is a deliberate
// staleness bound, not a correctness guarantee.
const albumScanWindow = 20

// Pipeline replays source channel content into an account's targets:
// extract, uniquify, publish, in source order.
type Pipeline struct {
	client    domain.ChatClient
	extractor *Extractor
	uniq      *Uniquifier
	publisher *Publisher
	dedup     *AlbumDedup
	sink      domain.EventSink

	account domain.Account
	sources []domain.ChannelRef

	mode          domain.RelayMode
	postsToClone  int
	delayMin      time.Duration
	delayMax      time.Duration
	floodCooldown time.Duration
	queueSize     int

	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// PipelineConfig holds configuration for one account's pipeline
type PipelineConfig struct {
	Client    domain.ChatClient
	Extractor *Extractor
	Uniq      *Uniquifier
	Publisher *Publisher
	Dedup     *AlbumDedup
	Sink      domain.EventSink

	Account domain.Account
	Sources []domain.ChannelRef

	Mode          domain.RelayMode
	PostsToClone  int
	DelayMin      time.Duration
	DelayMax      time.Duration
	FloodCooldown time.Duration
	QueueSize     int

	Logger zerolog.Logger
}

func NewPipeline(cfg PipelineConfig) *Pipeline {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.FloodCooldown <= 0 {
		cfg.FloodCooldown = time.Minute
	}
	return &Pipeline{
		client:        cfg.Client,
		extractor:     cfg.Extractor,
		uniq:          cfg.Uniq,
		publisher:     cfg.Publisher,
		dedup:         cfg.Dedup,
		sink:          cfg.Sink,
		account:       cfg.Account,
		sources:       cfg.Sources,
		mode:          cfg.Mode,
		postsToClone:  cfg.PostsToClone,
		delayMin:      cfg.DelayMin,
		delayMax:      cfg.DelayMax,
		floodCooldown: cfg.FloodCooldown,
		queueSize:     cfg.QueueSize,
		metrics:       metrics.GetDefaultMetrics(),
		logger: cfg.Logger.With().
			Str("component", "pipeline").
			Str("phone", logger.MaskPhone(cfg.Account.Phone)).
			Logger(),
	}
}

// Run executes the pipeline in the configured mode until done (history)
// or until the context is cancelled (live).
func (p *Pipeline) Run(ctx context.Context) error {
	if p.mode == domain.ModeLive {
		return p.runLive(ctx)
	}
	return p.runHistory(ctx)
}

// runHistory replays the last N posts of every source in chronological
// order. A source that fails its existence probe is skipped; a flood
// wait during replay pauses for the cooldown and continues.
func (p *Pipeline) runHistory(ctx context.Context) error {
	for _, source := range p.sources {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := p.client.Probe(ctx, source); err != nil {
			p.logger.Warn().Err(err).Str("source", string(source)).Msg("source unavailable, skipping")
			continue
		}

		batch, err := p.client.History(ctx, source, p.postsToClone)
		if err != nil {
			p.logger.Warn().Err(err).Str("source", string(source)).Msg("cannot fetch history, skipping source")
			continue
		}

		// History arrives newest first; replay oldest first.
		sort.Slice(batch, func(i, j int) bool { return batch[i].ID < batch[j].ID })

		for _, raw := range batch {
			if err := ctx.Err(); err != nil {
				return err
			}
			flood := p.process(ctx, raw, batch)
			if flood {
				p.logger.Warn().Dur("cooldown", p.floodCooldown).Msg("flood wait during replay, cooling down")
				if err := sleepCtx(ctx, p.floodCooldown); err != nil {
					return err
				}
			}
			if err := randomSleep(ctx, p.delayMin, p.delayMax); err != nil {
				return err
			}
		}

		p.logger.Info().Str("source", string(source)).Int("messages", len(batch)).Msg("source replay finished")
	}
	return nil
}

// runLive subscribes to all sources and drains events through one
// ordered queue. Cancellation deregisters the subscription and
// discards whatever is still queued.
func (p *Pipeline) runLive(ctx context.Context) error {
	queue := make(chan domain.RawMessage, p.queueSize)

	unsubscribe, err := p.client.Subscribe(ctx, p.sources, func(raw domain.RawMessage) {
		select {
		case queue <- raw:
		default:
			p.metrics.UnitsSkipped.WithLabelValues("queue_full").Inc()
			p.logger.Warn().Int("message_id", raw.ID).Msg("live queue full, message dropped")
		}
	})
	if err != nil {
		return err
	}
	defer unsubscribe()

	p.logger.Info().Int("sources", len(p.sources)).Msg("live relay started")

	for {
		select {
		case <-ctx.Done():
			p.logger.Info().Int("discarded", len(queue)).Msg("live relay stopped")
			return ctx.Err()
		case raw := <-queue:
			if flood := p.process(ctx, raw, nil); flood {
				p.logger.Warn().Dur("cooldown", p.floodCooldown).Msg("flood wait during live relay, cooling down")
				if err := sleepCtx(ctx, p.floodCooldown); err != nil {
					return err
				}
			}
			if err := randomSleep(ctx, p.delayMin, p.delayMax); err != nil {
				return err
			}
		}
	}
}

// process handles one raw message: album grouping, extraction,
// uniquification, publish to every target. Returns true when a flood
// wait was hit so the caller can cool down.
func (p *Pipeline) process(ctx context.Context, raw domain.RawMessage, batch []domain.RawMessage) bool {
	if raw.GroupID != 0 {
		if !p.dedup.MarkIfNew(raw.GroupID) {
			p.logger.Debug().Int64("group_id", raw.GroupID).Int("message_id", raw.ID).Msg("album already handled")
			return false
		}
		return p.processAlbum(ctx, raw, batch)
	}
	return p.processSingle(ctx, raw)
}

func (p *Pipeline) processSingle(ctx context.Context, raw domain.RawMessage) bool {
	unit, err := p.extractor.Extract(ctx, p.client, raw)
	if err != nil {
		p.metrics.UnitsSkipped.WithLabelValues("extract").Inc()
		p.logger.Warn().Err(err).Int("message_id", raw.ID).Msg("extraction failed, unit skipped")
		return false
	}

	unit, err = p.uniq.Apply(ctx, unit)
	if err != nil {
		p.metrics.UnitsSkipped.WithLabelValues("transform").Inc()
		p.logger.Warn().Err(err).Int("message_id", raw.ID).Msg("uniquification failed, unit skipped")
		return false
	}

	flood := false
	for _, target := range p.account.Targets {
		result := p.publisher.Publish(ctx, p.client, unit, target)
		if result == domain.SendFloodWait {
			flood = true
		}
		if result == domain.Sent {
			p.emit(ctx, raw, target, false)
		}
	}
	// Scratch files outlive the target loop: every target uploads
	// from the same path.
	CleanupUnit(unit, p.logger)
	return flood
}

// processAlbum collects the album's siblings, uniquifies every member
// and publishes the whole group as one post.
func (p *Pipeline) processAlbum(ctx context.Context, raw domain.RawMessage, batch []domain.RawMessage) bool {
	siblings := p.albumSiblings(ctx, raw, batch)

	units := make([]domain.ContentUnit, 0, len(siblings))
	for _, member := range siblings {
		unit, err := p.extractor.Extract(ctx, p.client, member)
		if err != nil {
			p.logger.Warn().Err(err).Int("message_id", member.ID).Msg("album member extraction failed, member dropped")
			continue
		}
		unit, err = p.uniq.Apply(ctx, unit)
		if err != nil {
			p.logger.Warn().Err(err).Int("message_id", member.ID).Msg("album member uniquification failed, member dropped")
			continue
		}
		units = append(units, unit)
	}
	if len(units) == 0 {
		p.metrics.UnitsSkipped.WithLabelValues("extract").Inc()
		return false
	}

	flood := false
	for _, target := range p.account.Targets {
		result := p.publisher.PublishAlbum(ctx, p.client, units, target)
		if result == domain.SendFloodWait {
			flood = true
		}
		if result == domain.Sent {
			p.emit(ctx, raw, target, true)
		}
	}
	for _, unit := range units {
		CleanupUnit(unit, p.logger)
	}
	return flood
}

// albumSiblings returns all known members of the message's media
// group in ID order. The fetched history batch is scanned when it
// covers the sibling window; otherwise the channel's recent messages
// are fetched on demand, so a small replay batch cannot truncate an
// album.
func (p *Pipeline) albumSiblings(ctx context.Context, raw domain.RawMessage, batch []domain.RawMessage) []domain.RawMessage {
	if len(batch) < albumScanWindow {
		recent, err := p.client.History(ctx, raw.Source, albumScanWindow)
		if err != nil {
			p.logger.Warn().Err(err).Int("message_id", raw.ID).Msg("cannot scan for album siblings")
			if batch == nil {
				return []domain.RawMessage{raw}
			}
		} else {
			batch = recent
		}
	}

	var siblings []domain.RawMessage
	for _, msg := range batch {
		if msg.GroupID == raw.GroupID {
			siblings = append(siblings, msg)
		}
	}
	if len(siblings) == 0 {
		siblings = []domain.RawMessage{raw}
	}
	sort.Slice(siblings, func(i, j int) bool { return siblings[i].ID < siblings[j].ID })
	return siblings
}

// emit sends one audit event; sink failures never affect the relay.
func (p *Pipeline) emit(ctx context.Context, raw domain.RawMessage, target domain.ChannelRef, album bool) {
	if p.sink == nil {
		return
	}
	err := p.sink.Published(ctx, domain.RelayEvent{
		AccountPhone: p.account.Phone,
		Source:       raw.Source,
		Target:       target,
		MessageID:    raw.ID,
		GroupID:      raw.GroupID,
		MediaKind:    raw.MediaKind.String(),
		Album:        album,
		PublishedAt:  time.Now(),
	})
	if err != nil {
		p.logger.Warn().Err(err).Msg("audit event not delivered")
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
