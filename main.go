package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Ananth-NQI/outreach-engine/database"
	"github.com/Ananth-NQI/outreach-engine/internal/config"
	"github.com/Ananth-NQI/outreach-engine/internal/conversation"
	"github.com/Ananth-NQI/outreach-engine/internal/feed"
	"github.com/Ananth-NQI/outreach-engine/internal/jobs"
	"github.com/Ananth-NQI/outreach-engine/internal/routes"
	"github.com/Ananth-NQI/outreach-engine/internal/services"
	"github.com/Ananth-NQI/outreach-engine/internal/storage"
)

// Version is set at build time via ldflags.
var Version = "dev"

var (
	envFile  string
	campaign string
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	if err := newRootCmd().Execute(); err != nil {
		log.Error().Err(err).Msg("outreach exited with error")
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "outreach",
		Short:         "Paced WhatsApp outreach with generated replies",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runOutreach,
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", "", "path to a .env file (default: .env, then environments/.env.development)")
	root.PersistentFlags().StringVar(&campaign, "campaign", "", "campaign id, overrides CAMPAIGN_ID")

	root.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Run the outreach pacer and the webhook server (default)",
			RunE:  runOutreach,
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply database migrations and exit",
			RunE:  runMigrate,
		},
	)
	return root
}

func loadConfig() (*config.Config, error) {
	config.LoadEnvFile(envFile)
	cfg, err := config.Load(campaign)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	cfg.Database.LogLevel = gormlogger.Warn
	if level <= zerolog.DebugLevel {
		cfg.Database.LogLevel = gormlogger.Info
	}
	return cfg, nil
}

func runMigrate(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := database.Connect(cfg.Database)
	if err != nil {
		return err
	}
	defer database.Close(db)
	return database.Migrate(db)
}

func runOutreach(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.ValidateForRun(); err != nil {
		return err
	}
	script, err := config.LoadScript(cfg.ScriptFile)
	if err != nil {
		return err
	}

	db, err := database.Connect(cfg.Database)
	if err != nil {
		return err
	}
	defer database.Close(db)
	if err := database.Migrate(db); err != nil {
		return err
	}
	store := storage.NewDatabaseStore(db)

	twilioService, err := services.NewTwilioService(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioWhatsAppFrom)
	if err != nil {
		return err
	}
	if cfg.TwilioGreetingContentSID != "" {
		twilioService.UseGreetingTemplate(cfg.TwilioGreetingContentSID)
	}
	chat, err := services.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIModel, services.WithBaseURL(cfg.OpenAIBaseURL))
	if err != nil {
		return err
	}
	retry := services.DefaultRetryPolicy()
	retry.MaxAttempts = cfg.CompletionMaxAttempts
	completer, err := services.NewCompletionAdapter(chat, script.SystemPrompt, script.Fallback, retry)
	if err != nil {
		return err
	}

	opts := conversation.Options{
		DebounceWindow: cfg.DebounceWindow,
		ReminderWindow: cfg.ReminderWindow,
		Script:         script,
	}
	if cfg.TranscriptDir != "" {
		transcripts, err := services.NewTranscriptWriter(cfg.TranscriptDir)
		if err != nil {
			return err
		}
		opts.Transcripts = transcripts
	}
	engine := conversation.NewEngine(twilioService, completer, services.NewStatsRecorder(store), opts)
	defer engine.Close()

	contacts, err := feed.NewCSVFeed(cfg.ContactsFile, cfg.HandleColumn, cfg.NameColumn)
	if err != nil {
		return err
	}
	pacer := jobs.NewPacer(store, contacts, engine, services.NewGreeter(script.Greetings), jobs.PacerConfig{
		CampaignID: cfg.CampaignID,
		DailyQuota: cfg.DailyQuota,
		Spacing:    cfg.ContactSpacing,
		ResumeHour: cfg.ResumeHour,
	})

	app := newApp()
	routes.SetupRoutes(app, routes.Dependencies{
		Config:   cfg,
		Store:    store,
		Inbound:  engine,
		Sessions: engine,
		Pacer:    pacer,
		Version:  Version,
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("port", cfg.Port).Str("campaign", cfg.CampaignID).Str("environment", cfg.Environment).Msg("outreach engine starting")
		if err := app.Listen(":" + cfg.Port); err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("gracefully shutting down")
		return app.ShutdownWithTimeout(10 * time.Second)
	})
	g.Go(func() error {
		// A halted campaign stops greeting new contacts; replies keep flowing.
		if err := pacer.Run(gctx); err != nil {
			log.Error().Err(err).Str("campaign", cfg.CampaignID).Msg("outreach pacer stopped, conversations continue")
		}
		return nil
	})
	g.Go(func() error {
		return watchContacts(gctx, contacts)
	})
	g.Go(func() error {
		return engine.RunEviction(gctx, cfg.SessionIdleTTL, config.DefaultCleanupInterval)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info().Msg("shutdown complete")
	return nil
}

type contactWatcher interface {
	Watch(ctx context.Context) error
}

// watchContacts keeps the feed in sync with its file. A watcher failure only
// stops live reloads; the loaded contacts stay in use.
func watchContacts(ctx context.Context, w contactWatcher) error {
	if err := w.Watch(ctx); err != nil {
		log.Error().Err(err).Msg("contact file watcher stopped, feed will not reload")
	}
	return nil
}

func newApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "Outreach Engine " + Version,
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var e *fiber.Error
			if errors.As(err, &e) {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, OPTIONS",
	}))
	return app
}
