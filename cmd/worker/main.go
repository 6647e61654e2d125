package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/mact/ops-server/internal/cin7"
	"github.com/mact/ops-server/internal/config"
	"github.com/mact/ops-server/internal/domain"
	"github.com/mact/ops-server/internal/repository/postgres"
	"github.com/mact/ops-server/internal/resend"
	"github.com/mact/ops-server/internal/service/automation"
	"github.com/mact/ops-server/internal/service/outreach"
	"github.com/mact/ops-server/internal/sesmail"
	"github.com/mact/ops-server/internal/smtpmail"
)

const tenant = "default"

// The worker drives the two background loops the API otherwise relies on
// clients to poll: campaign batch progress and the automation scheduler.
func main() {
	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}
	defer db.Close()

	campaigns := postgres.NewCampaignRepo(db)
	emails := postgres.NewEmailRepo(db)
	templates := postgres.NewTemplateRepo(db)
	settings := postgres.NewSettingsRepo(db)
	events := postgres.NewEventRepo(db)
	logs := postgres.NewLogRepo(db)
	automations := postgres.NewAutomationRepo(db)

	provider, err := buildProvider(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to build delivery provider: %v", err)
	}

	steps := outreach.NewStepLogger(logs)
	sender := outreach.NewSender(campaigns, emails, templates, settings, events, provider, steps, outreach.SenderConfig{
		DryRunLatency:    cfg.Outreach.DryRunLatency(),
		DefaultFromName:  cfg.Outreach.DefaultFromName,
		DefaultFromEmail: cfg.Outreach.DefaultFromEmail,
	})
	batch := outreach.NewBatchProcessor(campaigns, emails, events, sender, steps)

	if cfg.Automation.Enabled {
		engine := automation.NewEngine(automations, templates, campaigns, emails, batch, cin7.NewClient(cfg.Cin7), automation.Config{
			MaxPerRun:         cfg.Automation.MaxPerRun,
			QuoteMaxReminders: cfg.Automation.QuoteMaxReminders,
			SendDelayMS:       cfg.Outreach.DefaultDelayMS,
		})
		runner := automation.NewRunner(engine, tenant, cfg.Automation.TickInterval())
		runner.Start()
		defer runner.Stop()
		log.Printf("Automation runner started (every %s)", cfg.Automation.TickInterval())
	}

	log.Println("Worker started: ticking campaign batches every 30s")
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Worker stopping")
			return
		case <-ticker.C:
			tickCampaigns(ctx, campaigns, batch, cfg.Outreach.BatchSize)
		}
	}
}

// tickCampaigns advances every campaign currently in sending by one batch.
func tickCampaigns(ctx context.Context, campaigns outreach.CampaignRepository, batch *outreach.BatchProcessor, batchSize int) {
	list, _, err := campaigns.List(ctx, tenant, 100, 0)
	if err != nil {
		log.Printf("Worker: list campaigns failed: %v", err)
		return
	}
	for _, c := range list {
		if c.Status != domain.CampaignSending {
			continue
		}
		result, err := batch.ProcessBatch(ctx, c.ID, batchSize)
		if err != nil {
			log.Printf("Worker: batch for campaign %s failed: %v", c.ID, err)
			continue
		}
		if result.Processed > 0 || result.Completed {
			log.Printf("Worker: campaign %s processed=%d remaining=%d completed=%v",
				c.ID, result.Processed, result.Remaining, result.Completed)
		}
	}
}

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
