package outreach

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mact/ops-server/internal/domain"
)

// BatchProcessor advances one campaign by a bounded amount per invocation.
// It never blocks waiting for the inter-send window: if the window hasn't
// elapsed it returns immediately and the caller polls again later. Repeated
// invocation (cron tick, UI poll) is the concurrency model.
type BatchProcessor struct {
	campaigns CampaignRepository
	emails    EmailRepository
	events    EventRepository
	sender    *Sender
	steps     *StepLogger

	now   func() time.Time
	sleep func(context.Context, time.Duration)
}

// NewBatchProcessor creates a batch processor sharing the sender's stores.
func NewBatchProcessor(campaigns CampaignRepository, emails EmailRepository, events EventRepository,
	sender *Sender, steps *StepLogger) *BatchProcessor {
	return &BatchProcessor{
		campaigns: campaigns,
		emails:    emails,
		events:    events,
		sender:    sender,
		steps:     steps,
		now:       time.Now,
		sleep:     sleepCtx,
	}
}

// ProcessBatch sends up to batchSize pending emails for the campaign.
//
// No-op unless the campaign is in "sending". When no pending emails remain
// the campaign is marked completed — the sole terminal transition out of
// "sending". Live campaigns are rate limited against the most recent sent_at
// and re-check campaign status before each individual send so an external
// pause halts the batch at email granularity. Dry-run campaigns take a fast
// batched path. Remaining is always a fresh count query.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, campaignID string, batchSize int) (*domain.BatchResult, error) {
	if batchSize <= 0 {
		batchSize = 10
	}

	campaign, err := bp.campaigns.Get(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("load campaign %s: %w", campaignID, err)
	}
	if campaign.Status != domain.CampaignSending {
		remaining, _ := bp.emails.CountPending(ctx, campaignID)
		return &domain.BatchResult{
			Remaining: remaining,
			Completed: campaign.Status == domain.CampaignCompleted,
		}, nil
	}

	pending, err := bp.emails.ListPending(ctx, campaignID, batchSize)
	if err != nil {
		return nil, fmt.Errorf("list pending emails: %w", err)
	}

	if len(pending) == 0 {
		if err := bp.campaigns.MarkCompleted(ctx, campaignID); err != nil {
			return nil, fmt.Errorf("mark campaign completed: %w", err)
		}
		bp.steps.Info(ctx, campaignID, "batch", "no pending emails remain, campaign completed", nil)
		return &domain.BatchResult{Completed: true}, nil
	}

	delay := time.Duration(campaign.SendDelayMS) * time.Millisecond

	// Rate limit live campaigns against the most recent send. Returning
	// zero processed (rather than sleeping) keeps the invocation bounded.
	if !campaign.DryRun && delay > 0 {
		lastSent, err := bp.campaigns.LastSentAt(ctx, campaignID)
		if err != nil {
			return nil, fmt.Errorf("load last sent time: %w", err)
		}
		if lastSent != nil {
			if elapsed := bp.now().Sub(*lastSent); elapsed < delay {
				remaining, countErr := bp.emails.CountPending(ctx, campaignID)
				if countErr != nil {
					return nil, fmt.Errorf("count pending emails: %w", countErr)
				}
				bp.steps.Info(ctx, campaignID, "batch", "inter-send delay not yet elapsed",
					map[string]any{"elapsed_ms": elapsed.Milliseconds(), "delay_ms": campaign.SendDelayMS})
				return &domain.BatchResult{Remaining: remaining}, nil
			}
		}
	}

	var result domain.BatchResult
	if campaign.DryRun {
		result.Processed, err = bp.processDryRunBatch(ctx, campaign, pending)
		if err != nil {
			return nil, err
		}
	} else {
		result.Processed, result.Failed = bp.processLiveBatch(ctx, campaign, pending, delay)
	}

	remaining, err := bp.emails.CountPending(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("count pending emails: %w", err)
	}
	result.Remaining = remaining
	return &result, nil
}

// processDryRunBatch simulates the whole batch in three writes: one bulk
// status update, one batched audit insert, one counter bump. This exists to
// make demo runs fast, not for correctness.
func (bp *BatchProcessor) processDryRunBatch(ctx context.Context, campaign *domain.Campaign, pending []domain.OutreachEmail) (int, error) {
	ids := make([]string, len(pending))
	events := make([]domain.EmailEvent, len(pending))
	for i, email := range pending {
		ids[i] = email.ID
		events[i] = domain.EmailEvent{
			ID:         uuid.NewString(),
			EmailID:    email.ID,
			CampaignID: campaign.ID,
			EventType:  "sent",
			Detail:     "dry run (batched)",
		}
	}

	if err := bp.emails.MarkSentBulk(ctx, ids); err != nil {
		return 0, fmt.Errorf("bulk mark sent: %w", err)
	}
	if err := bp.events.AppendBatch(ctx, events); err != nil {
		bp.steps.Warn(ctx, campaign.ID, "audit", "batched audit insert failed",
			map[string]any{"error": err.Error()})
	}
	if err := bp.campaigns.IncrementCounter(ctx, campaign.ID, "sent_count", len(ids)); err != nil {
		bp.steps.Warn(ctx, campaign.ID, "counter", "sent counter increment failed",
			map[string]any{"error": err.Error()})
	}

	bp.steps.Info(ctx, campaign.ID, "batch", "dry run batch processed",
		map[string]any{"count": len(ids)})
	return len(ids), nil
}

// processLiveBatch sends emails one at a time, re-checking campaign status
// before every send and pausing the configured delay between sends.
func (bp *BatchProcessor) processLiveBatch(ctx context.Context, campaign *domain.Campaign,
	pending []domain.OutreachEmail, delay time.Duration) (processed, failed int) {

	for i, email := range pending {
		if ctx.Err() != nil {
			return processed, failed
		}

		// A pause or cancel written by another request takes effect here,
		// at email granularity.
		current, err := bp.campaigns.Get(ctx, campaign.ID)
		if err != nil {
			bp.steps.Error(ctx, campaign.ID, "batch", "status re-check failed, halting batch",
				map[string]any{"error": err.Error()})
			return processed, failed
		}
		if current.Status != domain.CampaignSending {
			bp.steps.Info(ctx, campaign.ID, "batch", "campaign left sending state, halting batch",
				map[string]any{"status": string(current.Status), "processed": processed})
			return processed, failed
		}

		if err := bp.sender.SendEmail(ctx, email.ID); err != nil {
			failed++
			bp.steps.Error(ctx, campaign.ID, "batch", "email send failed",
				map[string]any{"email_id": email.ID, "error": err.Error()})
		} else {
			processed++
		}

		if delay > 0 && i < len(pending)-1 {
			bp.sleep(ctx, delay)
		}
	}
	return processed, failed
}
