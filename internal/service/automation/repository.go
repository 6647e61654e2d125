package automation

import (
	"context"
	"time"

	"github.com/mact/ops-server/internal/domain"
)

// Repository is the persistence surface for order automations. Postgres
// implements it; tests use in-memory fakes.
type Repository interface {
	// GetActiveByOrder returns the single active automation of the given
	// type for an order, or outreach.ErrNotFound.
	GetActiveByOrder(ctx context.Context, tenantID, orderID string, t domain.AutomationType) (*domain.OrderAutomation, error)
	ListActive(ctx context.Context, tenantID string) ([]domain.OrderAutomation, error)
	// ListDue returns active automations whose next_action_date is at or
	// before asOf, oldest first, capped at limit.
	ListDue(ctx context.Context, tenantID string, asOf time.Time, limit int) ([]domain.OrderAutomation, error)
	Create(ctx context.Context, a *domain.OrderAutomation) (string, error)
	// Advance records a sent reminder: new count, next date (nil when the
	// sequence is exhausted) and the campaign that carried the send.
	Advance(ctx context.Context, id string, reminderCount int, nextActionDate *time.Time, lastCampaignID string) error
	Retire(ctx context.Context, id string, status domain.AutomationStatus, reason string) error
	List(ctx context.Context, tenantID string, limit, offset int) ([]domain.OrderAutomation, int, error)
}
