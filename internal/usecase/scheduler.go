package usecase

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/atljh/TeleCloneX/internal/domain"
	"github.com/atljh/TeleCloneX/internal/infrastructure/logger"
	"github.com/atljh/TeleCloneX/internal/infrastructure/metrics"
)

// ControllerFactory builds the per-account controller. Construction
// errors (bad session file, unusable proxy) count against that account
// only; an error wrapping the terminated-session sentinel routes it to
// the banned quarantine.
type ControllerFactory func(acc domain.Account) (*Controller, error)

// Scheduler launches one controller per discovered account, bounded by
// a counting semaphore, and quarantines accounts that end terminally.
type Scheduler struct {
	sessions    domain.SessionRepository
	factory     ControllerFactory
	maxParallel int
	metrics     *metrics.Metrics
	logger      zerolog.Logger
}

// SchedulerConfig holds configuration for the scheduler
type SchedulerConfig struct {
	Sessions    domain.SessionRepository
	Factory     ControllerFactory
	MaxParallel int
	Logger      zerolog.Logger
}

func NewScheduler(cfg SchedulerConfig) *Scheduler {
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = 1
	}
	return &Scheduler{
		sessions:    cfg.Sessions,
		factory:     cfg.Factory,
		maxParallel: cfg.MaxParallel,
		metrics:     metrics.GetDefaultMetrics(),
		logger:      cfg.Logger.With().Str("component", "scheduler").Logger(),
	}
}

// Run discovers accounts and drives them all to completion. The
// returned map holds each account's outcome keyed by phone. Run blocks
// until every account finishes or the context is cancelled.
func (s *Scheduler) Run(ctx context.Context) (map[string]domain.RunOutcome, error) {
	accounts, err := s.sessions.Discover()
	if err != nil {
		return nil, err
	}
	if len(accounts) == 0 {
		s.logger.Warn().Msg("no accounts discovered")
		return map[string]domain.RunOutcome{}, nil
	}

	s.logger.Info().
		Int("accounts", len(accounts)).
		Int("max_parallel", s.maxParallel).
		Msg("scheduler starting")

	var (
		wg        sync.WaitGroup
		semaphore = make(chan struct{}, s.maxParallel)
		outcomes  = make(map[string]domain.RunOutcome, len(accounts))
		mu        sync.Mutex
	)

	for _, acc := range accounts {
		wg.Add(1)
		go func(acc domain.Account) {
			defer wg.Done()

			select {
			case semaphore <- struct{}{}:
				defer func() { <-semaphore }()
			case <-ctx.Done():
				return
			}

			outcome := s.runAccount(ctx, acc)

			mu.Lock()
			outcomes[acc.Phone] = outcome
			mu.Unlock()
		}(acc)
	}

	wg.Wait()
	s.logger.Info().Int("finished", len(outcomes)).Msg("scheduler finished")
	return outcomes, nil
}

// runAccount executes one controller with panic isolation and
// quarantines terminal outcomes.
func (s *Scheduler) runAccount(ctx context.Context, acc domain.Account) (outcome domain.RunOutcome) {
	log := s.logger.With().Str("phone", logger.MaskPhone(acc.Phone)).Logger()

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("account run panicked")
			outcome = domain.RunFatalError
		}
		s.metrics.ActiveAccounts.Dec()

		switch outcome {
		case domain.RunAuthTerminal, domain.RunFatalError:
			s.metrics.AccountsQuarantined.WithLabelValues(outcome.String()).Inc()
			if err := s.sessions.Quarantine(acc, outcome); err != nil {
				log.Error().Err(err).Msg("quarantine failed")
			}
		}
		log.Info().Str("outcome", outcome.String()).Msg("account finished")
	}()

	s.metrics.ActiveAccounts.Inc()

	controller, err := s.factory(acc)
	if err != nil {
		log.Error().Err(err).Msg("cannot build account controller")
		// A dead session surfaces here when connecting fails the
		// authorization check; route it to the banned quarantine.
		if errors.Is(err, domain.ErrAuthTerminated) {
			return domain.RunAuthTerminal
		}
		return domain.RunFatalError
	}
	return controller.Run(ctx)
}
