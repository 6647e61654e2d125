package domain

import "time"

// AutomationType enumerates the order-driven reminder sequences.
type AutomationType string

const (
	AutomationQuoteFollowup AutomationType = "quote_followup"
	AutomationCODFollowup   AutomationType = "cod_followup"
)

// AutomationStatus enumerates the lifecycle of an order automation.
type AutomationStatus string

const (
	AutomationActive    AutomationStatus = "active"
	AutomationCompleted AutomationStatus = "completed"
	AutomationCancelled AutomationStatus = "cancelled"
)

// Retirement reason codes. An automation is retired exactly once.
const (
	ReasonOrderConfirmed  = "order_confirmed"
	ReasonOrderCancelled  = "order_cancelled"
	ReasonPaymentReceived = "payment_received"
	ReasonMaxReminders    = "max_reminders"
)

// OrderAutomation is one reminder sequence tied to the lifecycle of one
// external order. Invariant: at most one active automation exists per
// (order, type) pair.
type OrderAutomation struct {
	ID             string           `json:"id" db:"id"`
	TenantID       string           `json:"tenant_id" db:"tenant_id"`
	OrderID        string           `json:"order_id" db:"order_id"`
	OrderNumber    string           `json:"order_number" db:"order_number"`
	Type           AutomationType   `json:"type" db:"type"`
	Status         AutomationStatus `json:"status" db:"status"`
	CompletedReason string          `json:"completed_reason" db:"completed_reason"`

	CustomerEmail string `json:"customer_email" db:"customer_email"`
	CustomerName  string `json:"customer_name" db:"customer_name"`

	// AnchorDate is the date the reminder schedule counts from:
	// the order date for quote follow-ups, the invoice date for COD.
	AnchorDate time.Time `json:"anchor_date" db:"anchor_date"`

	ReminderCount  int        `json:"reminder_count" db:"reminder_count"`
	NextActionDate *time.Time `json:"next_action_date" db:"next_action_date"`

	// LastCampaignID records the one-off campaign that drove the most
	// recent reminder.
	LastCampaignID *string `json:"last_campaign_id" db:"last_campaign_id"`

	// Metadata carries order fields used to personalize reminders.
	Metadata map[string]string `json:"metadata" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// IsActive reports whether the automation still schedules reminders.
func (a *OrderAutomation) IsActive() bool { return a.Status == AutomationActive }
