package automation

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mact/ops-server/internal/domain"
	"github.com/mact/ops-server/internal/service/outreach"
)

type fakeRepo struct {
	mu   sync.Mutex
	rows map[string]*domain.OrderAutomation
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{rows: map[string]*domain.OrderAutomation{}}
}

func (r *fakeRepo) GetActiveByOrder(ctx context.Context, tenantID, orderID string, t domain.AutomationType) (*domain.OrderAutomation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.rows {
		if a.TenantID == tenantID && a.OrderID == orderID && a.Type == t && a.Status == domain.AutomationActive {
			cp := *a
			return &cp, nil
		}
	}
	return nil, outreach.ErrNotFound
}

func (r *fakeRepo) ListActive(ctx context.Context, tenantID string) ([]domain.OrderAutomation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.OrderAutomation
	for _, a := range r.rows {
		if a.TenantID == tenantID && a.Status == domain.AutomationActive {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (r *fakeRepo) ListDue(ctx context.Context, tenantID string, asOf time.Time, limit int) ([]domain.OrderAutomation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.OrderAutomation
	for _, a := range r.rows {
		if a.TenantID == tenantID && a.Status == domain.AutomationActive &&
			a.NextActionDate != nil && !a.NextActionDate.After(asOf) {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NextActionDate.Before(*out[j].NextActionDate) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeRepo) Create(ctx context.Context, a *domain.OrderAutomation) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a.ID = uuid.NewString()
	cp := *a
	r.rows[a.ID] = &cp
	return a.ID, nil
}

func (r *fakeRepo) Advance(ctx context.Context, id string, reminderCount int, nextActionDate *time.Time, lastCampaignID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.rows[id]
	if !ok {
		return outreach.ErrNotFound
	}
	a.ReminderCount = reminderCount
	a.NextActionDate = nextActionDate
	a.LastCampaignID = &lastCampaignID
	return nil
}

func (r *fakeRepo) Retire(ctx context.Context, id string, status domain.AutomationStatus, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.rows[id]
	if !ok {
		return outreach.ErrNotFound
	}
	a.Status = status
	a.CompletedReason = reason
	return nil
}

func (r *fakeRepo) List(ctx context.Context, tenantID string, limit, offset int) ([]domain.OrderAutomation, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.OrderAutomation
	for _, a := range r.rows {
		if a.TenantID == tenantID {
			out = append(out, *a)
		}
	}
	return out, len(out), nil
}

func (r *fakeRepo) get(id string) domain.OrderAutomation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.rows[id]
}

type fakeOrders struct {
	orders []Order
	err    error
}

func (f *fakeOrders) ListRecentOrders(ctx context.Context) ([]Order, error) {
	return f.orders, f.err
}

// fakeTemplates resolves any name in its set; everything else is not found.
type fakeTemplates struct {
	known map[string]string // name -> id
}

func (f *fakeTemplates) Get(ctx context.Context, id string) (*domain.Template, error) {
	return nil, outreach.ErrNotFound
}

func (f *fakeTemplates) GetByName(ctx context.Context, tenantID, name string) (*domain.Template, error) {
	id, ok := f.known[name]
	if !ok {
		return nil, outreach.ErrNotFound
	}
	return &domain.Template{ID: id, TenantID: tenantID, Name: name}, nil
}

func (f *fakeTemplates) List(ctx context.Context, tenantID string) ([]domain.Template, error) {
	return nil, nil
}

func (f *fakeTemplates) Create(ctx context.Context, t *domain.Template) (string, error) {
	return "", nil
}

func (f *fakeTemplates) Update(ctx context.Context, t *domain.Template) error { return nil }

type fakeCampaigns struct {
	mu      sync.Mutex
	created []*domain.Campaign
}

func (f *fakeCampaigns) Get(ctx context.Context, id string) (*domain.Campaign, error) {
	return nil, outreach.ErrNotFound
}

func (f *fakeCampaigns) List(ctx context.Context, tenantID string, limit, offset int) ([]domain.Campaign, int, error) {
	return nil, 0, nil
}

func (f *fakeCampaigns) Create(ctx context.Context, c *domain.Campaign) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c.ID = uuid.NewString()
	f.created = append(f.created, c)
	return c.ID, nil
}

func (f *fakeCampaigns) UpdateStatus(ctx context.Context, id string, status domain.CampaignStatus) error {
	return nil
}

func (f *fakeCampaigns) MarkCompleted(ctx context.Context, id string) error { return nil }

func (f *fakeCampaigns) IncrementCounter(ctx context.Context, id, counter string, delta int) error {
	return nil
}

func (f *fakeCampaigns) LastSentAt(ctx context.Context, id string) (*time.Time, error) {
	return nil, nil
}

type fakeEmails struct {
	mu      sync.Mutex
	created []*domain.OutreachEmail
}

func (f *fakeEmails) Get(ctx context.Context, id string) (*domain.OutreachEmail, error) {
	return nil, outreach.ErrNotFound
}

func (f *fakeEmails) Create(ctx context.Context, e *domain.OutreachEmail) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e.ID = uuid.NewString()
	f.created = append(f.created, e)
	return e.ID, nil
}

func (f *fakeEmails) ListPending(ctx context.Context, campaignID string, limit int) ([]domain.OutreachEmail, error) {
	return nil, nil
}

func (f *fakeEmails) CountPending(ctx context.Context, campaignID string) (int, error) {
	return 0, nil
}

func (f *fakeEmails) MarkSent(ctx context.Context, id, providerMsgID string) error { return nil }

func (f *fakeEmails) MarkFailed(ctx context.Context, id, errMsg string) error { return nil }

func (f *fakeEmails) MarkSentBulk(ctx context.Context, ids []string) error { return nil }

func (f *fakeEmails) AdvanceStatusByProviderMsgID(ctx context.Context, providerMsgID string, status domain.EmailStatus) (*domain.OutreachEmail, error) {
	return nil, outreach.ErrNotFound
}

func (f *fakeEmails) FindRecentSentByRecipient(ctx context.Context, recipient string) (*domain.OutreachEmail, error) {
	return nil, outreach.ErrNotFound
}

// fakeBatch records ProcessBatch calls and reports one successful send.
type fakeBatch struct {
	mu     sync.Mutex
	calls  []string
	result domain.BatchResult
	err    error
}

func (f *fakeBatch) ProcessBatch(ctx context.Context, campaignID string, batchSize int) (*domain.BatchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.calls = append(f.calls, campaignID)
	res := f.result
	if res == (domain.BatchResult{}) {
		res = domain.BatchResult{Processed: 1, Completed: true}
	}
	return &res, nil
}
