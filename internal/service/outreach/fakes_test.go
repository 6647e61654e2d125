package outreach

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mact/ops-server/internal/domain"
)

// memStore is an in-memory implementation of every repository interface in
// this package, shared by the sender and batch tests.
type memStore struct {
	mu        sync.Mutex
	campaigns map[string]*domain.Campaign
	emails    map[string]*domain.OutreachEmail
	emailSeq  []string
	templates map[string]*domain.Template
	settings  map[string]string
	events    []domain.EmailEvent
	logs      []domain.CampaignLogEntry

	clock func() time.Time
}

func newMemStore() *memStore {
	return &memStore{
		campaigns: map[string]*domain.Campaign{},
		emails:    map[string]*domain.OutreachEmail{},
		templates: map[string]*domain.Template{},
		settings:  map[string]string{},
		clock:     time.Now,
	}
}

func (m *memStore) addCampaign(c *domain.Campaign) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	m.campaigns[c.ID] = c
	return c.ID
}

func (m *memStore) addTemplate(t *domain.Template) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	m.templates[t.ID] = t
	return t.ID
}

func (m *memStore) addEmail(e *domain.OutreachEmail) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Status == "" {
		e.Status = domain.EmailPending
	}
	m.emails[e.ID] = e
	m.emailSeq = append(m.emailSeq, e.ID)
	return e.ID
}

// --- CampaignRepository ---

func (m *memStore) Get(ctx context.Context, id string) (*domain.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memStore) List(ctx context.Context, tenantID string, limit, offset int) ([]domain.Campaign, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Campaign
	for _, c := range m.campaigns {
		if c.TenantID == tenantID {
			out = append(out, *c)
		}
	}
	return out, len(out), nil
}

func (m *memStore) Create(ctx context.Context, c *domain.Campaign) (string, error) {
	return m.addCampaign(c), nil
}

func (m *memStore) UpdateStatus(ctx context.Context, id string, status domain.CampaignStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok {
		return ErrNotFound
	}
	c.Status = status
	return nil
}

func (m *memStore) MarkCompleted(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok {
		return ErrNotFound
	}
	now := m.clock()
	c.Status = domain.CampaignCompleted
	c.CompletedAt = &now
	return nil
}

func (m *memStore) IncrementCounter(ctx context.Context, id, counter string, delta int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok {
		return ErrNotFound
	}
	switch counter {
	case "sent_count":
		c.SentCount += delta
	case "delivered_count":
		c.DeliveredCount += delta
	case "open_count":
		c.OpenCount += delta
	case "click_count":
		c.ClickCount += delta
	case "bounce_count":
		c.BounceCount += delta
	case "reply_count":
		c.ReplyCount += delta
	default:
		return fmt.Errorf("unknown counter %q", counter)
	}
	return nil
}

func (m *memStore) LastSentAt(ctx context.Context, id string) (*time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var last *time.Time
	for _, e := range m.emails {
		if e.CampaignID != id || e.SentAt == nil {
			continue
		}
		if last == nil || e.SentAt.After(*last) {
			t := *e.SentAt
			last = &t
		}
	}
	return last, nil
}

// --- EmailRepository ---

func (m *memStore) GetEmail(ctx context.Context, id string) (*domain.OutreachEmail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.emails[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *memStore) CreateEmail(ctx context.Context, e *domain.OutreachEmail) (string, error) {
	return m.addEmail(e), nil
}

func (m *memStore) ListPending(ctx context.Context, campaignID string, limit int) ([]domain.OutreachEmail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.OutreachEmail
	for _, id := range m.emailSeq {
		e := m.emails[id]
		if e.CampaignID == campaignID && e.Status == domain.EmailPending {
			out = append(out, *e)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (m *memStore) CountPending(ctx context.Context, campaignID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.emails {
		if e.CampaignID == campaignID && e.Status == domain.EmailPending {
			n++
		}
	}
	return n, nil
}

func (m *memStore) MarkSent(ctx context.Context, id, providerMsgID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.emails[id]
	if !ok {
		return ErrNotFound
	}
	if e.Status != domain.EmailPending {
		return nil
	}
	now := m.clock()
	e.Status = domain.EmailSent
	e.ProviderMsgID = providerMsgID
	e.SentAt = &now
	return nil
}

func (m *memStore) MarkFailed(ctx context.Context, id, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.emails[id]
	if !ok {
		return ErrNotFound
	}
	e.Status = domain.EmailFailed
	e.ErrorMessage = errMsg
	return nil
}

func (m *memStore) MarkSentBulk(ctx context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.clock()
	for _, id := range ids {
		e, ok := m.emails[id]
		if !ok || e.Status != domain.EmailPending {
			continue
		}
		e.Status = domain.EmailSent
		e.ProviderMsgID = "dry-run-" + id
		t := now
		e.SentAt = &t
	}
	return nil
}

func (m *memStore) AdvanceStatusByProviderMsgID(ctx context.Context, providerMsgID string, status domain.EmailStatus) (*domain.OutreachEmail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.emails {
		if e.ProviderMsgID == providerMsgID {
			e.Status = status
			cp := *e
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memStore) FindRecentSentByRecipient(ctx context.Context, recipient string) (*domain.OutreachEmail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *domain.OutreachEmail
	for _, e := range m.emails {
		if e.RecipientEmail != recipient || e.SentAt == nil {
			continue
		}
		if best == nil || e.SentAt.After(*best.SentAt) {
			best = e
		}
	}
	if best == nil {
		return nil, ErrNotFound
	}
	cp := *best
	return &cp, nil
}

// --- TemplateRepository ---

func (m *memStore) GetTemplate(ctx context.Context, id string) (*domain.Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.templates[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *memStore) GetTemplateByName(ctx context.Context, tenantID, name string) (*domain.Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.templates {
		if t.TenantID == tenantID && t.Name == name {
			cp := *t
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memStore) ListTemplates(ctx context.Context, tenantID string) ([]domain.Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Template
	for _, t := range m.templates {
		if t.TenantID == tenantID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (m *memStore) CreateTemplate(ctx context.Context, t *domain.Template) (string, error) {
	return m.addTemplate(t), nil
}

func (m *memStore) UpdateTemplate(ctx context.Context, t *domain.Template) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.templates[t.ID]; !ok {
		return ErrNotFound
	}
	m.templates[t.ID] = t
	return nil
}

// --- SettingsRepository ---

func (m *memStore) GetSetting(ctx context.Context, tenantID, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.settings[tenantID+"|"+key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (m *memStore) SetSetting(ctx context.Context, tenantID, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[tenantID+"|"+key] = value
	return nil
}

func (m *memStore) ListSettings(ctx context.Context, tenantID string) ([]domain.Setting, error) {
	return nil, nil
}

// --- EventRepository / LogRepository ---

func (m *memStore) Append(ctx context.Context, ev *domain.EmailEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, *ev)
	return nil
}

func (m *memStore) AppendBatch(ctx context.Context, evs []domain.EmailEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, evs...)
	return nil
}

func (m *memStore) ListByCampaign(ctx context.Context, campaignID string, limit int) ([]domain.EmailEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.EmailEvent
	for _, ev := range m.events {
		if ev.CampaignID == campaignID {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (m *memStore) Insert(ctx context.Context, entry *domain.CampaignLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, *entry)
	return nil
}

func (m *memStore) ListLogsByCampaign(ctx context.Context, campaignID string, limit int) ([]domain.CampaignLogEntry, error) {
	return nil, nil
}

// Interface adapters: memStore method names collide across repositories, so
// thin views map each interface onto the shared store.

type emailRepoView struct{ *memStore }

func (v emailRepoView) Get(ctx context.Context, id string) (*domain.OutreachEmail, error) {
	return v.GetEmail(ctx, id)
}
func (v emailRepoView) Create(ctx context.Context, e *domain.OutreachEmail) (string, error) {
	return v.CreateEmail(ctx, e)
}

type templateRepoView struct{ *memStore }

func (v templateRepoView) Get(ctx context.Context, id string) (*domain.Template, error) {
	return v.GetTemplate(ctx, id)
}
func (v templateRepoView) GetByName(ctx context.Context, tenantID, name string) (*domain.Template, error) {
	return v.GetTemplateByName(ctx, tenantID, name)
}
func (v templateRepoView) List(ctx context.Context, tenantID string) ([]domain.Template, error) {
	return v.ListTemplates(ctx, tenantID)
}
func (v templateRepoView) Create(ctx context.Context, t *domain.Template) (string, error) {
	return v.CreateTemplate(ctx, t)
}
func (v templateRepoView) Update(ctx context.Context, t *domain.Template) error {
	return v.UpdateTemplate(ctx, t)
}

type settingsRepoView struct{ *memStore }

func (v settingsRepoView) Get(ctx context.Context, tenantID, key string) (string, error) {
	return v.GetSetting(ctx, tenantID, key)
}
func (v settingsRepoView) Set(ctx context.Context, tenantID, key, value string) error {
	return v.SetSetting(ctx, tenantID, key, value)
}
func (v settingsRepoView) List(ctx context.Context, tenantID string) ([]domain.Setting, error) {
	return v.ListSettings(ctx, tenantID)
}

type logRepoView struct{ *memStore }

func (v logRepoView) ListByCampaign(ctx context.Context, campaignID string, limit int) ([]domain.CampaignLogEntry, error) {
	return v.ListLogsByCampaign(ctx, campaignID, limit)
}

// fakeProvider records every message and returns canned results. onSend, when
// set, runs after each accepted message (used to flip campaign state
// mid-batch).
type fakeProvider struct {
	mu     sync.Mutex
	sent   []*Message
	err    error
	msgID  string
	onSend func(*Message)
}

func (p *fakeProvider) Send(ctx context.Context, msg *Message) (string, error) {
	p.mu.Lock()
	if p.err != nil {
		p.mu.Unlock()
		return "", p.err
	}
	p.sent = append(p.sent, msg)
	id := p.msgID
	if id == "" {
		id = fmt.Sprintf("msg-%d", len(p.sent))
	}
	hook := p.onSend
	p.mu.Unlock()
	if hook != nil {
		hook(msg)
	}
	return id, nil
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sent)
}

// newTestStack wires a sender and batch processor over a fresh memStore.
func newTestStack(provider Provider) (*memStore, *Sender, *BatchProcessor) {
	store := newMemStore()
	steps := NewStepLogger(logRepoView{store})
	sender := NewSender(store, emailRepoView{store}, templateRepoView{store},
		settingsRepoView{store}, store, provider, steps,
		SenderConfig{DryRunLatency: time.Millisecond, DefaultFromName: "MACt", DefaultFromEmail: "hello@mact.au"})
	sender.sleep = func(context.Context, time.Duration) {}
	bp := NewBatchProcessor(store, emailRepoView{store}, store, sender, steps)
	bp.sleep = func(context.Context, time.Duration) {}
	return store, sender, bp
}
