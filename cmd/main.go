package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"subcast/bot"
	"subcast/feed"
	"subcast/internal"
	"subcast/moderation"
	"subcast/repositories"
	"subcast/runtime"
	"subcast/runtime/workers"
	"subcast/services"
	"subcast/transport"

	"github.com/Netflix/go-env"
	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the daemon lifecycle, and
// centralizes error reporting so 'defer' cleanup always executes.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if err := config.Validate(); err != nil {
		return err
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Databases (BadgerDB + Bluge name index)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.INFO))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	index, err := bluge.OpenWriter(bluge.DefaultConfig(config.BlugeFilepath))
	if err != nil {
		return fmt.Errorf("name index opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing name index...")
		_ = index.Close()
	}()

	// 3. Repositories & Services
	subscriptionRepository := repositories.NewSubscriptionRepository(db, log, config.MaxSubscription)
	channelRepository := repositories.NewChannelRepository(db, log)
	deliveryRepository := repositories.NewDeliveryRepository(db, log)

	provider := feed.NewProvider(config.FeedTimeout, config.MaxItemsPerPoll, log)
	registry := services.NewRegistry(channelRepository, provider, index, log)
	if err = registry.Reindex(); err != nil {
		return fmt.Errorf("name index rebuild failed: %w", err)
	}
	manager := services.NewManager(subscriptionRepository, channelRepository,
		registry, config.AllowGroups, log)

	filter, err := buildFilter(config)
	if err != nil {
		return err
	}

	// 4. Supervision & Orchestration
	supervisor := workers.NewSupervisor(log, config.RestartInterval)
	orchestrator := runtime.NewOrchestrator(
		log, supervisor,
		channelRepository, subscriptionRepository, deliveryRepository,
		provider, transport.NewLogTransport(log), filter,
		runtime.Options{
			PollInterval:      config.PollInterval,
			ReconcileInterval: config.ReconcileInterval,
			TelemetryInterval: config.TelemetryInterval,
			QueueSize:         config.QueueSize,
			Parallelism:       config.Parallelism,
			Retry: workers.RetryPolicy{
				MaxAttempts: config.DeliveryMaxAttempts,
				Base:        config.DeliveryRetryBase,
				Multiplier:  config.DeliveryRetryMultiplier,
				Cap:         config.DeliveryRetryCap,
			},
		},
	)

	handler := bot.NewHandler(manager, log)
	supervisor.Add(bot.NewConsoleAdapter(handler, os.Stdin, os.Stdout, log))

	// 5. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 6. Start the Engine
	if err = orchestrator.Start(ctx); err != nil {
		return fmt.Errorf("orchestrator failed to start: %w", err)
	}

	// 7. Wait for Stop
	<-ctx.Done()
	log.Info("Shutting down gracefully...")

	// 8. Final Cleanup
	orchestrator.Stop()
	log.Info("Program stopped cleanly")

	return nil
}

// buildFilter loads the censored word list, one word per line. An unset
// path yields a passthrough filter.
func buildFilter(config internal.Config) (*moderation.Filter, error) {
	replacement, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return nil, err
	}

	var words []string
	if config.CensoredWordsPath != "" {
		raw, err := os.ReadFile(config.CensoredWordsPath)
		if err != nil {
			return nil, fmt.Errorf("censored words loading failed: %w", err)
		}
		for _, line := range strings.Split(string(raw), "\n") {
			if word := strings.TrimSpace(line); word != "" {
				words = append(words, word)
			}
		}
	}
	return moderation.NewFilter(words, replacement)
}
