package usecase

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/atljh/TeleCloneX/internal/domain"
	"github.com/atljh/TeleCloneX/internal/infrastructure/logger"
)

// Controller runs one account through its whole lifecycle: session
// check, source joins, relay. Every failure is absorbed at this
// boundary and reported as a typed outcome, so one account can never
// take down its siblings.
type Controller struct {
	client  domain.ChatClient
	joiner  *Joiner
	account domain.Account
	sources []domain.ChannelRef

	// newPipeline builds the relay pipeline over the join-phase
	// active set.
	newPipeline func(active []domain.ChannelRef) *Pipeline

	logger zerolog.Logger
}

// ControllerConfig holds configuration for one account controller
type ControllerConfig struct {
	Client      domain.ChatClient
	Joiner      *Joiner
	Account     domain.Account
	Sources     []domain.ChannelRef
	NewPipeline func(active []domain.ChannelRef) *Pipeline
	Logger      zerolog.Logger
}

func NewController(cfg ControllerConfig) *Controller {
	return &Controller{
		client:      cfg.Client,
		joiner:      cfg.Joiner,
		account:     cfg.Account,
		sources:     cfg.Sources,
		newPipeline: cfg.NewPipeline,
		logger: cfg.Logger.With().
			Str("component", "controller").
			Str("phone", logger.MaskPhone(cfg.Account.Phone)).
			Logger(),
	}
}

// Run executes the account lifecycle and returns its terminal outcome.
func (c *Controller) Run(ctx context.Context) domain.RunOutcome {
	defer func() {
		if err := c.client.Close(context.Background()); err != nil {
			c.logger.Warn().Err(err).Msg("client close failed")
		}
	}()

	phone, err := c.client.Self(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrAuthTerminated) {
			c.logger.Error().Err(err).Msg("session is dead")
			return domain.RunAuthTerminal
		}
		if errors.Is(err, context.Canceled) {
			return domain.RunDone
		}
		c.logger.Error().Err(err).Msg("session check failed")
		return domain.RunFatalError
	}
	c.logger.Info().Str("self", logger.MaskPhone(phone)).Msg("session verified")

	active, flooded, err := c.joiner.JoinAll(ctx, c.client, c.account, c.sources)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return domain.RunDone
		}
		c.logger.Error().Err(err).Msg("join phase failed")
		return domain.RunFatalError
	}
	if len(active) == 0 {
		if flooded {
			c.logger.Warn().Msg("account paused by flood wait before any source joined")
			return domain.RunPausedFlood
		}
		c.logger.Info().Msg("no active sources, nothing to relay")
		return domain.RunNothingToDo
	}

	// A flood abort drops the remaining joins but the channels joined
	// before it are still relayed this run.
	c.logger.Info().Int("active", len(active)).Bool("flooded", flooded).Msg("starting relay")
	if err := c.newPipeline(active).Run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return domain.RunDone
		}
		c.logger.Error().Err(err).Msg("relay failed")
		return domain.RunFatalError
	}
	if flooded {
		return domain.RunPausedFlood
	}
	return domain.RunDone
}
