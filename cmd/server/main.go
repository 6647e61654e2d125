package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"

	"github.com/mact/ops-server/internal/api"
	"github.com/mact/ops-server/internal/chat"
	"github.com/mact/ops-server/internal/cin7"
	"github.com/mact/ops-server/internal/config"
	"github.com/mact/ops-server/internal/googleads"
	"github.com/mact/ops-server/internal/klaviyo"
	"github.com/mact/ops-server/internal/repository/postgres"
	"github.com/mact/ops-server/internal/resend"
	"github.com/mact/ops-server/internal/service/automation"
	"github.com/mact/ops-server/internal/service/dormant"
	"github.com/mact/ops-server/internal/service/outreach"
	"github.com/mact/ops-server/internal/sesmail"
	"github.com/mact/ops-server/internal/smtpmail"
	"github.com/mact/ops-server/internal/woo"
)

func main() {
	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Postgres
	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	if err := db.PingContext(pingCtx); err != nil {
		cancel()
		log.Fatalf("Failed to ping database: %v", err)
	}
	cancel()
	defer db.Close()
	log.Println("Connected to PostgreSQL")

	// Redis (dashboard cache, optional)
	var cache *redis.Client
	if cfg.Redis.Enabled {
		cache = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := cache.Ping(ctx).Err(); err != nil {
			log.Printf("Warning: redis unreachable, dashboard cache disabled: %v", err)
			cache = nil
		} else {
			log.Printf("Connected to Redis at %s", cfg.Redis.Addr)
		}
	}

	// Repositories
	campaigns := postgres.NewCampaignRepo(db)
	emails := postgres.NewEmailRepo(db)
	templates := postgres.NewTemplateRepo(db)
	settings := postgres.NewSettingsRepo(db)
	events := postgres.NewEventRepo(db)
	logs := postgres.NewLogRepo(db)
	automations := postgres.NewAutomationRepo(db)
	skills := postgres.NewSkillRepo(db)
	stats := postgres.NewStatsRepo(db)

	// Delivery provider
	provider, err := buildProvider(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to build delivery provider: %v", err)
	}
	log.Printf("Delivery provider: %s", provider.Name())

	// Outreach services
	steps := outreach.NewStepLogger(logs)
	sender := outreach.NewSender(campaigns, emails, templates, settings, events, provider, steps, outreach.SenderConfig{
		DryRunLatency:    cfg.Outreach.DryRunLatency(),
		DefaultFromName:  cfg.Outreach.DefaultFromName,
		DefaultFromEmail: cfg.Outreach.DefaultFromEmail,
	})
	batch := outreach.NewBatchProcessor(campaigns, emails, events, sender, steps)

	// Order automations (cin7 client refuses calls until connected)
	orderSource := cin7.NewClient(cfg.Cin7)
	engine := automation.NewEngine(automations, templates, campaigns, emails, batch, orderSource, automation.Config{
		MaxPerRun:         cfg.Automation.MaxPerRun,
		QuoteMaxReminders: cfg.Automation.QuoteMaxReminders,
		SendDelayMS:       cfg.Outreach.DefaultDelayMS,
	})

	var runner *automation.Runner
	if cfg.Automation.Enabled {
		runner = automation.NewRunner(engine, "default", cfg.Automation.TickInterval())
		runner.Start()
		defer runner.Stop()
		log.Printf("Automation runner started (every %s)", cfg.Automation.TickInterval())
	}

	// Dormant-customer sync
	store := woo.NewClient(cfg.Woo, nil)
	marketing := klaviyo.NewClient(cfg.Klaviyo)
	syncer := dormant.NewSyncer(store, marketing, dormant.Config{
		ThresholdDays: cfg.Dormant.ThresholdDays,
		PageSize:      cfg.Dormant.PageSize,
		ProfileDelay:  cfg.Dormant.ProfileDelay(),
	})

	// Chat widget
	chatSvc := chat.NewService(skills, chat.NewLLMClient(cfg.LLM), chat.Config{
		BusinessName: cfg.Outreach.DefaultFromName,
	})

	handlers := api.NewHandlers(api.Deps{
		Campaigns:   campaigns,
		Emails:      emails,
		Templates:   templates,
		Settings:    settings,
		Events:      events,
		Logs:        logs,
		Automations: automations,
		Skills:      skills,
		Sender:      sender,
		Batch:       batch,
		Engine:      engine,
		Dormant:     syncer,
		Chat:        chatSvc,
		Stats:       stats,
		Spend:       googleads.NewClient(cfg.GoogleAds),
		Revenue:     store,
		Provider:    provider,
		Cache:       cache,
	}, api.Config{
		DefaultBatchSize: cfg.Outreach.BatchSize,
		WebhookSecret:    cfg.Resend.WebhookSecret,
		CacheTTL:         cfg.Redis.CacheTTL(),
	})

	router := api.NewRouter(handlers, corsOrigins())

	addr := fmt.Sprintf("%s:%d", cfg.Server.GetHost(), cfg.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Server listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
	log.Println("Server stopped")
}

// buildProvider selects the delivery provider named in config.
func buildProvider(ctx context.Context, cfg *config.Config) (outreach.Provider, error) {
	switch cfg.Outreach.Provider {
	case "resend", "":
		return resend.NewClient(cfg.Resend), nil
	case "ses":
		return sesmail.NewClient(ctx, cfg.SES)
	case "smtp":
		return smtpmail.NewClient(cfg.SMTP), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Outreach.Provider)
	}
}

func corsOrigins() []string {
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		return strings.Split(v, ",")
	}
	return []string{"https://mact.au", "http://localhost:5173", "http://localhost:3000"}
}
