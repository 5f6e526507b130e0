package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pkg/errors"

	"github.com/hrygo/socialbot/bot/dispatch"
	"github.com/hrygo/socialbot/bot/eventbus"
	"github.com/hrygo/socialbot/bot/generate"
	"github.com/hrygo/socialbot/bot/importer"
	"github.com/hrygo/socialbot/bot/llm"
	"github.com/hrygo/socialbot/bot/notify"
	"github.com/hrygo/socialbot/bot/orchestrator"
	"github.com/hrygo/socialbot/bot/platform"
	"github.com/hrygo/socialbot/bot/prefs"
	"github.com/hrygo/socialbot/internal/profile"
	"github.com/hrygo/socialbot/plugin/email"
	"github.com/hrygo/socialbot/plugin/telegram"
	"github.com/hrygo/socialbot/store"
	"github.com/hrygo/socialbot/store/db"
	"github.com/hrygo/socialbot/store/db/postgres"
	"github.com/hrygo/socialbot/store/db/sqlite"
)

// app bundles the wired components for one CLI invocation.
type app struct {
	profile      *profile.Profile
	store        *store.Store
	orchestrator *orchestrator.Orchestrator
}

// watchedTables are the tables whose change feed drives the event bus.
var watchedTables = []string{"comments", "replies", "user_preferences"}

func openStore(ctx context.Context, instanceProfile *profile.Profile) (*store.Store, error) {
	dbDriver, err := db.NewDBDriver(instanceProfile)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create db driver")
	}

	storeInstance := store.New(dbDriver, instanceProfile)
	if err := storeInstance.Migrate(ctx); err != nil {
		storeInstance.Close()
		return nil, errors.Wrap(err, "failed to migrate")
	}
	return storeInstance, nil
}

// buildOrchestrator wires the generation pipeline. Platform clients and
// notification transports register only when their credentials are present;
// an unconfigured platform surfaces as an unsupported-platform error at
// dispatch time rather than a transport failure mid-action.
func buildOrchestrator(instanceProfile *profile.Profile, storeInstance *store.Store) (*orchestrator.Orchestrator, error) {
	backend, err := llm.NewService(&llm.Config{
		Provider: instanceProfile.LLMProvider,
		Model:    instanceProfile.LLMModel,
		APIKey:   instanceProfile.LLMAPIKey,
		BaseURL:  instanceProfile.LLMBaseURL,
		Timeout:  instanceProfile.LLMTimeout,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create LLM backend")
	}

	generator := generate.NewGenerator(backend, generate.Config{
		MaxTokens:   instanceProfile.LLMMaxTokens,
		Temperature: instanceProfile.LLMTemperature,
		MaxChars:    instanceProfile.MaxGeneratedChars,
	})

	registry := platform.NewRegistry()
	if instanceProfile.InstagramAPIKey != "" {
		registry.Register(platform.NewInstagramClient(platform.InstagramConfig{
			APIKey:  instanceProfile.InstagramAPIKey,
			BaseURL: instanceProfile.InstagramBaseURL,
		}))
	}
	if instanceProfile.TwitterAPIKey != "" {
		registry.Register(platform.NewTwitterClient(platform.TwitterConfig{
			APIKey:    instanceProfile.TwitterAPIKey,
			APISecret: instanceProfile.TwitterAPISecret,
			BaseURL:   instanceProfile.TwitterBaseURL,
		}))
	}

	notifier := notify.NewNotifier()
	if instanceProfile.SMTPHost != "" {
		sender, err := email.NewSender(&email.Config{
			SMTPHost:     instanceProfile.SMTPHost,
			SMTPPort:     instanceProfile.SMTPPort,
			SMTPUsername: instanceProfile.SMTPUsername,
			SMTPPassword: instanceProfile.SMTPPassword,
			FromEmail:    instanceProfile.FromEmail,
			FromName:     instanceProfile.FromName,
		})
		if err != nil {
			return nil, errors.Wrap(err, "failed to create email sender")
		}
		notifier.Register(sender)
	}
	if instanceProfile.TelegramBotToken != "" {
		sender, err := telegram.NewSender(instanceProfile.TelegramBotToken)
		if err != nil {
			return nil, errors.Wrap(err, "failed to create telegram sender")
		}
		notifier.Register(sender)
	}

	return orchestrator.New(
		storeInstance,
		prefs.NewResolver(storeInstance),
		generator,
		dispatch.NewDispatcher(registry, storeInstance),
		registry,
		notifier,
		orchestrator.Options{
			OperatorUserID:    instanceProfile.OperatorUserID,
			OperatorEmail:     instanceProfile.OperatorEmail,
			GenerationRetries: instanceProfile.GenerationRetries,
		},
	), nil
}

// newEventTransport picks the change feed transport: websocket when a
// realtime URL is configured, postgres LISTEN/NOTIFY otherwise. SQLite has no
// change feed, so serving from sqlite requires the websocket transport.
func newEventTransport(instanceProfile *profile.Profile) (eventbus.Transport, error) {
	if instanceProfile.RealtimeURL != "" {
		return eventbus.NewWSTransport(instanceProfile.RealtimeURL, instanceProfile.RealtimeToken, watchedTables), nil
	}
	if instanceProfile.Driver == "postgres" {
		return postgres.NewListenerTransport(instanceProfile.DSN), nil
	}
	return nil, sqlite.ErrChangeFeedUnsupported
}

// withStore runs fn with an opened, migrated store and closes it afterwards.
func withStore(fn func(ctx context.Context, instanceProfile *profile.Profile, storeInstance *store.Store) error) error {
	instanceProfile, err := loadProfile()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	storeInstance, err := openStore(ctx, instanceProfile)
	if err != nil {
		return err
	}
	defer func() {
		if err := storeInstance.Close(); err != nil {
			slog.Error("failed to close store", "error", err)
		}
	}()

	return fn(ctx, instanceProfile, storeInstance)
}

// withOrchestrator runs fn with a fully wired pipeline.
func withOrchestrator(fn func(ctx context.Context, app *app) error) error {
	return withStore(func(ctx context.Context, instanceProfile *profile.Profile, storeInstance *store.Store) error {
		orch, err := buildOrchestrator(instanceProfile, storeInstance)
		if err != nil {
			return err
		}
		return fn(ctx, &app{
			profile:      instanceProfile,
			store:        storeInstance,
			orchestrator: orch,
		})
	})
}

func importCaptions(ctx context.Context, storeInstance *store.Store, path string) error {
	report, err := importer.NewImporter(storeInstance).ImportFile(ctx, path)
	if err != nil {
		return err
	}
	fmt.Println(report)
	if len(report.Failures) > 0 {
		return errors.Errorf("%d caption(s) failed to import", len(report.Failures))
	}
	return nil
}
