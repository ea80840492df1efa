package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/atljh/TeleCloneX/config"
	"github.com/atljh/TeleCloneX/internal/domain"
	"github.com/atljh/TeleCloneX/internal/infrastructure/kafka"
	"github.com/atljh/TeleCloneX/internal/infrastructure/logger"
	"github.com/atljh/TeleCloneX/internal/infrastructure/media"
	"github.com/atljh/TeleCloneX/internal/infrastructure/rewrite"
	"github.com/atljh/TeleCloneX/internal/infrastructure/telegram"
	filerepo "github.com/atljh/TeleCloneX/internal/repository/file"
	"github.com/atljh/TeleCloneX/internal/usecase"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level)
	log.Info().Str("config", cfg.Summary()).Msg("starting cloner")

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("cloner failed")
	}
}

func run(cfg *config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(cfg.Media.DownloadDir, 0o755); err != nil {
		return fmt.Errorf("create download dir: %w", err)
	}

	sources, err := filerepo.LoadSources(cfg.Files.Sources)
	if err != nil {
		return err
	}
	targets, err := filerepo.LoadTargets(cfg.Files.Targets)
	if err != nil {
		return err
	}
	blacklist, err := filerepo.NewBlacklist(cfg.Files.Blacklist, log)
	if err != nil {
		return err
	}
	sessions := filerepo.NewSessions(cfg.Files.AccountsDir, targets, log)

	var sink domain.EventSink = kafka.NoopSink{}
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := kafka.NewEventProducer(kafka.ProducerConfig{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
			Logger:  log,
		})
		if err != nil {
			return fmt.Errorf("kafka producer: %w", err)
		}
		sink = producer
	}
	defer func() {
		if err := sink.Close(); err != nil {
			log.Warn().Err(err).Msg("event sink close failed")
		}
	}()

	var rewriter domain.Rewriter = rewrite.NoopRewriter{}
	if cfg.Rewrite.Enabled {
		r, err := rewrite.New(rewrite.Config{
			APIKey:       cfg.Rewrite.APIKey,
			Model:        cfg.Rewrite.Model,
			TemplateFile: cfg.Rewrite.TemplateFile,
			Logger:       log,
		})
		if err != nil {
			return fmt.Errorf("rewriter: %w", err)
		}
		rewriter = r
	}

	transformer := media.New(media.Config{
		Binary: cfg.Media.FFmpegPath,
		OutDir: cfg.Media.DownloadDir,
		Logger: log,
	})

	factory := func(acc domain.Account) (*usecase.Controller, error) {
		stringSession, err := sessions.StringSession(acc)
		if err != nil {
			return nil, err
		}

		client, err := telegram.NewClient(telegram.ClientConfig{
			APIID:         cfg.Telegram.APIID,
			APIHash:       cfg.Telegram.APIHash,
			Phone:         acc.Phone,
			SessionFile:   acc.SessionFile,
			StringSession: stringSession,
			Proxy:         acc.Proxy,
			DownloadDir:   cfg.Media.DownloadDir,
			Logger:        log,
		})
		if err != nil {
			return nil, err
		}
		if err := client.Connect(ctx); err != nil {
			return nil, err
		}

		replacements, err := filerepo.LoadReplacements(cfg.Files.Replacements, acc.Phone)
		if err != nil {
			return nil, err
		}

		uniq := usecase.NewUniquifier(usecase.UniquifierConfig{
			Rewriter:     rewriter,
			Transformer:  transformer,
			Replacements: replacements,
			MaskText:     cfg.Cloning.MaskText,
			Rewrite:      cfg.Rewrite.Enabled,
			Transform:    cfg.Media.Enabled,
			Logger:       log,
		})

		joiner := usecase.NewJoiner(usecase.JoinerConfig{
			Blacklist: blacklist,
			DelayMin:  cfg.Cloning.JoinDelay.MinDuration(),
			DelayMax:  cfg.Cloning.JoinDelay.MaxDuration(),
			Logger:    log,
		})

		return usecase.NewController(usecase.ControllerConfig{
			Client:  client,
			Joiner:  joiner,
			Account: acc,
			Sources: sources,
			NewPipeline: func(active []domain.ChannelRef) *usecase.Pipeline {
				return usecase.NewPipeline(usecase.PipelineConfig{
					Client:        client,
					Extractor:     usecase.NewExtractor(log),
					Uniq:          uniq,
					Publisher:     usecase.NewPublisher(log),
					Dedup:         usecase.NewAlbumDedup(0),
					Sink:          sink,
					Account:       acc,
					Sources:       active,
					Mode:          cfg.Cloning.Mode,
					PostsToClone:  cfg.Cloning.PostsToClone,
					DelayMin:      cfg.Cloning.PostDelay.MinDuration(),
					DelayMax:      cfg.Cloning.PostDelay.MaxDuration(),
					FloodCooldown: cfg.Cloning.FloodCooldown,
					QueueSize:     cfg.Cloning.QueueSize,
					Logger:        log,
				})
			},
			Logger: log,
		}), nil
	}

	scheduler := usecase.NewScheduler(usecase.SchedulerConfig{
		Sessions:    sessions,
		Factory:     factory,
		MaxParallel: cfg.Cloning.MaxParallel,
		Logger:      log,
	})

	outcomes, err := scheduler.Run(ctx)
	if err != nil {
		return err
	}

	for phone, outcome := range outcomes {
		log.Info().
			Str("phone", logger.MaskPhone(phone)).
			Str("outcome", outcome.String()).
			Msg("account result")
	}
	return nil
}
