package usecase

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"github.com/atljh/TeleCloneX/internal/domain"
	"github.com/atljh/TeleCloneX/internal/infrastructure/logger"
	"github.com/atljh/TeleCloneX/internal/infrastructure/metrics"
)

// Joiner subscribes one account to its source channels, classifying
// every attempt into the closed JoinResult taxonomy.
type Joiner struct {
	blacklist domain.BlacklistStore
	delayMin  time.Duration
	delayMax  time.Duration
	metrics   *metrics.Metrics
	logger    zerolog.Logger
}

// JoinerConfig holds configuration for the joiner
type JoinerConfig struct {
	Blacklist domain.BlacklistStore
	DelayMin  time.Duration
	DelayMax  time.Duration
	Logger    zerolog.Logger
}

func NewJoiner(cfg JoinerConfig) *Joiner {
	return &Joiner{
		blacklist: cfg.Blacklist,
		delayMin:  cfg.DelayMin,
		delayMax:  cfg.DelayMax,
		metrics:   metrics.GetDefaultMetrics(),
		logger:    cfg.Logger.With().Str("component", "joiner").Logger(),
	}
}

// JoinAll runs the join sequence for all sources and returns the
// account's active set. A flood wait aborts the remaining sequence;
// the second return reports whether that happened. Banned channels are
// written to the blacklist so no later run retries them.
func (j *Joiner) JoinAll(ctx context.Context, client domain.ChatClient, acc domain.Account, sources []domain.ChannelRef) ([]domain.ChannelRef, bool, error) {
	log := j.logger.With().Str("phone", logger.MaskPhone(acc.Phone)).Logger()

	var active []domain.ChannelRef
	for _, ref := range sources {
		ref = ref.Normalize()

		if j.blacklist != nil && j.blacklist.Contains(acc.Phone, ref) {
			log.Debug().Str("channel", string(ref)).Msg("channel blacklisted, skipping")
			continue
		}

		result, err := j.Join(ctx, client, ref)
		if err != nil && errors.Is(err, context.Canceled) {
			return active, false, err
		}

		j.metrics.JoinAttempts.WithLabelValues(result.String()).Inc()
		log.Info().
			Str("channel", string(ref)).
			Str("result", result.String()).
			Msg("join attempt finished")

		switch result {
		case domain.Banned:
			if j.blacklist != nil {
				if err := j.blacklist.Add(acc.Phone, ref); err != nil {
					log.Error().Err(err).Str("channel", string(ref)).Msg("cannot persist blacklist entry")
				}
			}
		case domain.FloodWait:
			log.Warn().Str("channel", string(ref)).Msg("flood wait, aborting join sequence")
			return active, true, nil
		}

		if result.CountsAsActive() {
			active = append(active, ref)
		}
	}
	return active, false, nil
}

// Join attempts to subscribe to one channel. Every attempt is preceded
// by a randomized pacing delay, including the first.
func (j *Joiner) Join(ctx context.Context, client domain.ChatClient, ref domain.ChannelRef) (domain.JoinResult, error) {
	if err := j.pace(ctx); err != nil {
		return domain.JoinError, err
	}

	start := time.Now()
	defer func() {
		j.metrics.JoinDuration.Observe(time.Since(start).Seconds())
	}()

	if ref.IsInviteLink() {
		return j.joinPrivate(ctx, client, ref)
	}
	return j.joinPublic(ctx, client, ref)
}

func (j *Joiner) joinPrivate(ctx context.Context, client domain.ChatClient, ref domain.ChannelRef) (domain.JoinResult, error) {
	member, err := client.IsMember(ctx, ref)
	if err == nil && member {
		return domain.AlreadyMember, nil
	}
	if err != nil {
		if result, terminal := classifyJoinError(err); terminal {
			return result, nil
		}
	}

	err = client.ImportInvite(ctx, ref.InviteHash())
	if err == nil {
		return domain.Joined, nil
	}
	result, _ := classifyJoinError(err)
	return result, nil
}

func (j *Joiner) joinPublic(ctx context.Context, client domain.ChatClient, ref domain.ChannelRef) (domain.JoinResult, error) {
	if _, err := client.Resolve(ctx, ref); err != nil {
		result, _ := classifyJoinError(err)
		return result, nil
	}

	member, err := client.IsMember(ctx, ref)
	if err != nil {
		if result, terminal := classifyJoinError(err); terminal {
			return result, nil
		}
	} else if member {
		return domain.AlreadyMember, nil
	}

	err = client.JoinPublic(ctx, ref)
	if err == nil {
		return domain.Joined, nil
	}
	result, _ := classifyJoinError(err)
	return result, nil
}

// classifyJoinError maps a typed adapter error to a join result. The
// second return reports whether the error settles the attempt, so a
// membership-probe failure can still fall through to the join call.
func classifyJoinError(err error) (domain.JoinResult, bool) {
	switch {
	case errors.Is(err, domain.ErrFloodWait):
		return domain.FloodWait, true
	case errors.Is(err, domain.ErrAlreadyParticipant):
		return domain.AlreadyMember, true
	case errors.Is(err, domain.ErrJoinRequestSent):
		return domain.JoinRequestPending, true
	case errors.Is(err, domain.ErrBannedInChannel):
		return domain.Banned, true
	case errors.Is(err, domain.ErrInviteExpired),
		errors.Is(err, domain.ErrInviteInvalid),
		errors.Is(err, domain.ErrChannelNotFound),
		errors.Is(err, domain.ErrAccessForbidden):
		return domain.SkippedInvalid, true
	case errors.Is(err, domain.ErrNotParticipant):
		return domain.JoinError, false
	default:
		return domain.JoinError, false
	}
}

// pace sleeps a random interval inside the configured bounds. The
// delay is mandatory even for the first attempt of a run.
func (j *Joiner) pace(ctx context.Context) error {
	return randomSleep(ctx, j.delayMin, j.delayMax)
}

// randomSleep sleeps a uniformly random duration in [min, max],
// returning early on context cancellation.
func randomSleep(ctx context.Context, min, max time.Duration) error {
	d := min
	if max > min {
		d += time.Duration(rand.Int63n(int64(max - min + 1)))
	}
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
