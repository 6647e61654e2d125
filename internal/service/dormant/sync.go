// Package dormant finds store customers whose last purchase is older than the
// dormancy threshold and pushes them to the marketing platform for win-back
// flows.
//
// The syncer is transport-agnostic: it reports progress through an emit
// callback, and the API layer adapts those events onto an SSE stream. Running
// it from a cron tick with a logging emitter works the same way.
package dormant

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mact/ops-server/internal/klaviyo"
	"github.com/mact/ops-server/internal/pkg/logger"
	"github.com/mact/ops-server/internal/service/outreach"
	"github.com/mact/ops-server/internal/woo"
)

// EventType labels one progress event.
type EventType string

const (
	EventStatus   EventType = "status"
	EventProgress EventType = "progress"
	EventComplete EventType = "complete"
	EventError    EventType = "error"
)

// Event is one progress notification emitted during a sync run.
type Event struct {
	Type    EventType `json:"type"`
	Message string    `json:"message,omitempty"`
	Page    int       `json:"page,omitempty"`
	Scanned int       `json:"scanned"`
	Dormant int       `json:"dormant"`
	Synced  int       `json:"synced"`
	Failed  int       `json:"failed"`
}

// EmitFunc receives progress events. A nil emitter is allowed.
type EmitFunc func(Event)

// Summary is the final tally of one sync run.
type Summary struct {
	Scanned int `json:"scanned"`
	Dormant int `json:"dormant"`
	Synced  int `json:"synced"`
	Failed  int `json:"failed"`
}

// CustomerSource lists store customers and their purchase history.
// Satisfied by woo.Client.
type CustomerSource interface {
	ListCustomersPage(ctx context.Context, page, perPage int) ([]woo.Customer, error)
	LastOrder(ctx context.Context, customerID int) (*woo.Order, error)
}

// ProfileSink receives dormant-customer profiles. Satisfied by
// klaviyo.Client.
type ProfileSink interface {
	UpsertProfile(ctx context.Context, p klaviyo.Profile) (string, error)
	AddToList(ctx context.Context, profileID string) error
}

// Enrichment is the best-effort product context attached to a profile. A
// failed enrichment carries its error and never blocks the sync.
type Enrichment struct {
	Product string
	Err     error
}

// OK reports whether the enrichment produced a usable product name.
func (e Enrichment) OK() bool { return e.Err == nil && e.Product != "" }

// Config tunes a sync run.
type Config struct {
	// ThresholdDays is the dormancy cutoff: customers whose last order is
	// older than this are dormant.
	ThresholdDays int
	// PageSize is the customer page size requested from the store.
	PageSize int
	// ProfileDelay is the pause between profile pushes, respecting the
	// marketing platform's rate limits.
	ProfileDelay time.Duration
}

// Syncer runs the dormant-customer sync.
type Syncer struct {
	source CustomerSource
	sink   ProfileSink
	cfg    Config

	now   func() time.Time
	sleep func(context.Context, time.Duration)
}

func NewSyncer(source CustomerSource, sink ProfileSink, cfg Config) *Syncer {
	if cfg.ThresholdDays <= 0 {
		cfg.ThresholdDays = 365
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 250
	}
	return &Syncer{
		source: source,
		sink:   sink,
		cfg:    cfg,
		now:    time.Now,
		sleep: func(ctx context.Context, d time.Duration) {
			timer := time.NewTimer(d)
			defer timer.Stop()
			select {
			case <-timer.C:
			case <-ctx.Done():
			}
		},
	}
}

// Run walks every store customer page, pushes dormant profiles to the sink,
// and reports progress through emit. Per-customer failures are counted and
// reported but never abort the run; cancellation does.
func (s *Syncer) Run(ctx context.Context, emit EmitFunc) (*Summary, error) {
	if emit == nil {
		emit = func(Event) {}
	}

	cutoff := s.now().AddDate(0, 0, -s.cfg.ThresholdDays)
	summary := &Summary{}

	emit(Event{Type: EventStatus, Message: fmt.Sprintf("scanning customers inactive since %s", cutoff.Format("2006-01-02"))})

	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			emit(Event{Type: EventError, Message: "sync cancelled",
				Scanned: summary.Scanned, Dormant: summary.Dormant, Synced: summary.Synced, Failed: summary.Failed})
			return summary, err
		}

		customers, err := s.source.ListCustomersPage(ctx, page, s.cfg.PageSize)
		if err != nil {
			emit(Event{Type: EventError, Message: err.Error(),
				Scanned: summary.Scanned, Dormant: summary.Dormant, Synced: summary.Synced, Failed: summary.Failed})
			return summary, fmt.Errorf("list customers: %w", err)
		}
		if len(customers) == 0 {
			break
		}

		for i, customer := range customers {
			if err := ctx.Err(); err != nil {
				emit(Event{Type: EventError, Message: "sync cancelled",
					Scanned: summary.Scanned, Dormant: summary.Dormant, Synced: summary.Synced, Failed: summary.Failed})
				return summary, err
			}
			summary.Scanned++
			s.scanCustomer(ctx, customer, cutoff, summary)

			// One progress event per customer, so stream consumers see
			// movement between the rate-limited pushes.
			emit(Event{Type: EventProgress, Page: page,
				Scanned: summary.Scanned, Dormant: summary.Dormant, Synced: summary.Synced, Failed: summary.Failed})

			if s.cfg.ProfileDelay > 0 && i < len(customers)-1 {
				s.sleep(ctx, s.cfg.ProfileDelay)
			}
		}

		if len(customers) < s.cfg.PageSize {
			break
		}
	}

	emit(Event{Type: EventComplete, Message: "sync complete",
		Scanned: summary.Scanned, Dormant: summary.Dormant, Synced: summary.Synced, Failed: summary.Failed})
	logger.Info("dormant sync complete",
		"scanned", summary.Scanned, "dormant", summary.Dormant,
		"synced", summary.Synced, "failed", summary.Failed)
	return summary, nil
}

// scanCustomer decides whether one customer is dormant and, if so, pushes
// the profile, updating the running summary either way.
func (s *Syncer) scanCustomer(ctx context.Context, customer woo.Customer, cutoff time.Time, summary *Summary) {
	lastOrder, err := s.source.LastOrder(ctx, customer.ID)
	if errors.Is(err, outreach.ErrNotFound) {
		// Never-purchased signups are prospects, not dormant customers.
		return
	}
	if err != nil {
		summary.Failed++
		logger.Warn("dormant: order lookup failed", "customer_id", customer.ID, "error", err.Error())
		return
	}
	if !lastOrder.DateCreated.Before(cutoff) {
		return
	}
	if customer.Email == "" {
		return
	}

	summary.Dormant++
	enrichment := enrich(lastOrder)
	if err := s.push(ctx, customer, lastOrder, enrichment); err != nil {
		summary.Failed++
		logger.Warn("dormant: profile push failed",
			"customer_email", customer.Email, "error", err.Error())
		return
	}
	summary.Synced++
}

// enrich derives best-effort product context from the customer's last order.
func enrich(order *woo.Order) Enrichment {
	if order == nil || len(order.LineItems) == 0 {
		return Enrichment{Err: fmt.Errorf("order has no line items")}
	}
	return Enrichment{Product: order.LineItems[0].Name}
}

func (s *Syncer) push(ctx context.Context, customer woo.Customer, lastOrder *woo.Order, enrichment Enrichment) error {
	properties := map[string]interface{}{
		"dormant":         true,
		"last_order_date": lastOrder.DateCreated.Format("2006-01-02"),
	}
	if enrichment.OK() {
		properties["last_product"] = enrichment.Product
	}

	profileID, err := s.sink.UpsertProfile(ctx, klaviyo.Profile{
		Email:      customer.Email,
		FirstName:  customer.FirstName,
		LastName:   customer.LastName,
		Properties: properties,
	})
	if err != nil {
		return err
	}
	return s.sink.AddToList(ctx, profileID)
}
