package outreach

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mact/ops-server/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedBatchCampaign(store *memStore, dryRun bool, delayMS, emailCount int) string {
	tmplID := store.addTemplate(&domain.Template{
		TenantID: "default",
		Name:     "batch",
		Subject:  "Hello {{first_name}}",
		Body:     "<p>Hi {{first_name}}</p>",
	})
	campaignID := store.addCampaign(&domain.Campaign{
		TenantID:    "default",
		TemplateID:  &tmplID,
		Name:        "Batch Test",
		Status:      domain.CampaignSending,
		DryRun:      dryRun,
		SendDelayMS: delayMS,
		Source:      "segment",
	})
	for i := 0; i < emailCount; i++ {
		store.addEmail(&domain.OutreachEmail{
			CampaignID:     campaignID,
			RecipientEmail: "r" + string(rune('a'+i)) + "@example.com",
		})
	}
	return campaignID
}

func TestProcessBatchCompletesOnEmptyQueue(t *testing.T) {
	store, _, bp := newTestStack(&fakeProvider{})
	campaignID := seedBatchCampaign(store, false, 0, 0)
	ctx := context.Background()

	res, err := bp.ProcessBatch(ctx, campaignID, 10)
	require.NoError(t, err)
	assert.Equal(t, &domain.BatchResult{Processed: 0, Remaining: 0, Completed: true}, res)

	campaign, _ := store.Get(ctx, campaignID)
	assert.Equal(t, domain.CampaignCompleted, campaign.Status)
	require.NotNil(t, campaign.CompletedAt)

	// repeated invocation on a completed campaign is a cheap no-op
	res, err = bp.ProcessBatch(ctx, campaignID, 10)
	require.NoError(t, err)
	assert.Equal(t, &domain.BatchResult{Processed: 0, Remaining: 0, Completed: true}, res)
}

func TestProcessBatchNoopUnlessSending(t *testing.T) {
	store, _, bp := newTestStack(&fakeProvider{})
	campaignID := seedBatchCampaign(store, false, 0, 3)
	store.campaigns[campaignID].Status = domain.CampaignPaused

	res, err := bp.ProcessBatch(context.Background(), campaignID, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Processed)
	assert.Equal(t, 3, res.Remaining)
	assert.False(t, res.Completed)
}

func TestProcessBatchUnknownCampaign(t *testing.T) {
	_, _, bp := newTestStack(&fakeProvider{})
	_, err := bp.ProcessBatch(context.Background(), "missing", 10)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestProcessBatchLiveSendsUpToBatchSize(t *testing.T) {
	provider := &fakeProvider{}
	store, _, bp := newTestStack(provider)
	campaignID := seedBatchCampaign(store, false, 0, 5)

	res, err := bp.ProcessBatch(context.Background(), campaignID, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Processed)
	assert.Equal(t, 0, res.Failed)
	assert.Equal(t, 3, res.Remaining)
	assert.False(t, res.Completed)
	assert.Equal(t, 2, provider.calls())

	campaign, _ := store.Get(context.Background(), campaignID)
	assert.Equal(t, 2, campaign.SentCount)
}

func TestProcessBatchDryRunFastPath(t *testing.T) {
	provider := &fakeProvider{}
	store, _, bp := newTestStack(provider)
	campaignID := seedBatchCampaign(store, true, 2000, 3)
	ctx := context.Background()

	res, err := bp.ProcessBatch(ctx, campaignID, 10)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Processed)
	assert.Equal(t, 0, res.Remaining)
	assert.Equal(t, 0, provider.calls())

	for _, e := range store.emails {
		assert.Equal(t, domain.EmailSent, e.Status)
		assert.True(t, strings.HasPrefix(e.ProviderMsgID, "dry-run-"))
	}
	campaign, _ := store.Get(ctx, campaignID)
	assert.Equal(t, 3, campaign.SentCount)
	assert.Len(t, store.events, 3)

	// next invocation finds the empty queue and completes
	res, err = bp.ProcessBatch(ctx, campaignID, 10)
	require.NoError(t, err)
	assert.True(t, res.Completed)
}

func TestProcessBatchRateLimited(t *testing.T) {
	provider := &fakeProvider{}
	store, _, bp := newTestStack(provider)
	campaignID := seedBatchCampaign(store, false, 2000, 2)
	ctx := context.Background()

	sentAt := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	doneID := store.addEmail(&domain.OutreachEmail{
		CampaignID:     campaignID,
		RecipientEmail: "done@example.com",
		Status:         domain.EmailSent,
	})
	store.emails[doneID].SentAt = &sentAt

	// 1s after the last send: window not elapsed, nothing is attempted
	bp.now = func() time.Time { return sentAt.Add(1 * time.Second) }
	res, err := bp.ProcessBatch(ctx, campaignID, 10)
	require.NoError(t, err)
	assert.Equal(t, &domain.BatchResult{Processed: 0, Remaining: 2, Completed: false}, res)
	assert.Equal(t, 0, provider.calls())

	// 3s after: the window has elapsed and the batch proceeds
	bp.now = func() time.Time { return sentAt.Add(3 * time.Second) }
	res, err = bp.ProcessBatch(ctx, campaignID, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Processed)
	assert.Equal(t, 2, provider.calls())
}

func TestProcessBatchHaltsWhenPausedMidBatch(t *testing.T) {
	provider := &fakeProvider{}
	store, _, bp := newTestStack(provider)
	campaignID := seedBatchCampaign(store, false, 0, 3)

	// a pause written after the first delivery halts the rest of the batch
	provider.onSend = func(*Message) {
		store.mu.Lock()
		store.campaigns[campaignID].Status = domain.CampaignPaused
		store.mu.Unlock()
	}

	res, err := bp.ProcessBatch(context.Background(), campaignID, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Processed)
	assert.Equal(t, 2, res.Remaining)
	assert.Equal(t, 1, provider.calls())
}

func TestProcessBatchCountsFailures(t *testing.T) {
	provider := &fakeProvider{err: errors.New("550 rejected")}
	store, _, bp := newTestStack(provider)
	campaignID := seedBatchCampaign(store, false, 0, 2)

	res, err := bp.ProcessBatch(context.Background(), campaignID, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Processed)
	assert.Equal(t, 2, res.Failed)
	assert.Equal(t, 0, res.Remaining)

	for _, e := range store.emails {
		assert.Equal(t, domain.EmailFailed, e.Status)
	}
}

func TestProcessBatchStopsOnCancelledContext(t *testing.T) {
	provider := &fakeProvider{}
	store, _, bp := newTestStack(provider)
	campaignID := seedBatchCampaign(store, false, 0, 3)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := bp.ProcessBatch(ctx, campaignID, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Processed)
	assert.Equal(t, 0, provider.calls())
}
