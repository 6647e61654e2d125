package api

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/mact/ops-server/internal/chat"
	"github.com/mact/ops-server/internal/domain"
	"github.com/mact/ops-server/internal/service/automation"
	"github.com/mact/ops-server/internal/service/dormant"
	"github.com/mact/ops-server/internal/service/outreach"
)

// apiStore is a minimal in-memory backend for handler tests. Handler tests
// run requests sequentially, so no locking.
type apiStore struct {
	campaigns   map[string]*domain.Campaign
	emails      map[string]*domain.OutreachEmail
	templates   map[string]*domain.Template
	settings    map[string]string
	skills      map[string]*domain.Skill
	automations map[string]*domain.OrderAutomation
	events      []domain.EmailEvent
	logs        []domain.CampaignLogEntry
	counters    map[string]int
	seq         int
}

func newAPIStore() *apiStore {
	return &apiStore{
		campaigns:   map[string]*domain.Campaign{},
		emails:      map[string]*domain.OutreachEmail{},
		templates:   map[string]*domain.Template{},
		settings:    map[string]string{},
		skills:      map[string]*domain.Skill{},
		automations: map[string]*domain.OrderAutomation{},
		counters:    map[string]int{},
	}
}

func (s *apiStore) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s-%d", prefix, s.seq)
}

// --- outreach.CampaignRepository ---

func (s *apiStore) Get(ctx context.Context, id string) (*domain.Campaign, error) {
	c, ok := s.campaigns[id]
	if !ok {
		return nil, outreach.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *apiStore) List(ctx context.Context, tenantID string, limit, offset int) ([]domain.Campaign, int, error) {
	var out []domain.Campaign
	for _, c := range s.campaigns {
		if c.TenantID == tenantID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, len(out), nil
}

func (s *apiStore) Create(ctx context.Context, c *domain.Campaign) (string, error) {
	id := s.nextID("camp")
	cp := *c
	cp.ID = id
	cp.CreatedAt = time.Now()
	s.campaigns[id] = &cp
	return id, nil
}

func (s *apiStore) UpdateStatus(ctx context.Context, id string, status domain.CampaignStatus) error {
	c, ok := s.campaigns[id]
	if !ok {
		return outreach.ErrNotFound
	}
	c.Status = status
	return nil
}

func (s *apiStore) MarkCompleted(ctx context.Context, id string) error {
	return s.UpdateStatus(ctx, id, domain.CampaignCompleted)
}

func (s *apiStore) IncrementCounter(ctx context.Context, id, counter string, delta int) error {
	if _, ok := s.campaigns[id]; !ok {
		return outreach.ErrNotFound
	}
	s.counters[id+"/"+counter] += delta
	return nil
}

func (s *apiStore) LastSentAt(ctx context.Context, id string) (*time.Time, error) {
	return nil, nil
}

// --- outreach.EmailRepository (via view to dodge Get/Create collisions) ---

type emailView struct{ s *apiStore }

func (v emailView) Get(ctx context.Context, id string) (*domain.OutreachEmail, error) {
	e, ok := v.s.emails[id]
	if !ok {
		return nil, outreach.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (v emailView) Create(ctx context.Context, e *domain.OutreachEmail) (string, error) {
	id := v.s.nextID("em")
	cp := *e
	cp.ID = id
	v.s.emails[id] = &cp
	return id, nil
}

func (v emailView) ListPending(ctx context.Context, campaignID string, limit int) ([]domain.OutreachEmail, error) {
	var out []domain.OutreachEmail
	for _, e := range v.s.emails {
		if e.CampaignID == campaignID && e.Status == domain.EmailPending {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (v emailView) CountPending(ctx context.Context, campaignID string) (int, error) {
	n := 0
	for _, e := range v.s.emails {
		if e.CampaignID == campaignID && e.Status == domain.EmailPending {
			n++
		}
	}
	return n, nil
}

func (v emailView) MarkSent(ctx context.Context, id, providerMsgID string) error {
	e, ok := v.s.emails[id]
	if !ok || e.Status != domain.EmailPending {
		return outreach.ErrNotFound
	}
	e.Status = domain.EmailSent
	e.ProviderMsgID = providerMsgID
	return nil
}

func (v emailView) MarkFailed(ctx context.Context, id, errMsg string) error {
	e, ok := v.s.emails[id]
	if !ok {
		return outreach.ErrNotFound
	}
	e.Status = domain.EmailFailed
	e.ErrorMessage = errMsg
	return nil
}

func (v emailView) MarkSentBulk(ctx context.Context, ids []string) error {
	for _, id := range ids {
		if err := v.MarkSent(ctx, id, "dry-run-"+id); err != nil {
			return err
		}
	}
	return nil
}

func (v emailView) AdvanceStatusByProviderMsgID(ctx context.Context, providerMsgID string, status domain.EmailStatus) (*domain.OutreachEmail, error) {
	for _, e := range v.s.emails {
		if e.ProviderMsgID == providerMsgID {
			e.Status = status
			cp := *e
			return &cp, nil
		}
	}
	return nil, outreach.ErrNotFound
}

func (v emailView) FindRecentSentByRecipient(ctx context.Context, recipient string) (*domain.OutreachEmail, error) {
	var best *domain.OutreachEmail
	for _, e := range v.s.emails {
		if e.RecipientEmail != recipient || e.SentAt == nil {
			continue
		}
		if best == nil || e.SentAt.After(*best.SentAt) {
			best = e
		}
	}
	if best == nil {
		return nil, outreach.ErrNotFound
	}
	cp := *best
	return &cp, nil
}

// --- outreach.TemplateRepository ---

type templateView struct{ s *apiStore }

func (v templateView) Get(ctx context.Context, id string) (*domain.Template, error) {
	t, ok := v.s.templates[id]
	if !ok {
		return nil, outreach.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (v templateView) GetByName(ctx context.Context, tenantID, name string) (*domain.Template, error) {
	for _, t := range v.s.templates {
		if t.TenantID == tenantID && t.Name == name {
			cp := *t
			return &cp, nil
		}
	}
	return nil, outreach.ErrNotFound
}

func (v templateView) List(ctx context.Context, tenantID string) ([]domain.Template, error) {
	var out []domain.Template
	for _, t := range v.s.templates {
		if t.TenantID == tenantID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (v templateView) Create(ctx context.Context, t *domain.Template) (string, error) {
	id := v.s.nextID("tpl")
	cp := *t
	cp.ID = id
	v.s.templates[id] = &cp
	return id, nil
}

func (v templateView) Update(ctx context.Context, t *domain.Template) error {
	if _, ok := v.s.templates[t.ID]; !ok {
		return outreach.ErrNotFound
	}
	cp := *t
	v.s.templates[t.ID] = &cp
	return nil
}

// --- outreach.SettingsRepository ---

type settingsView struct{ s *apiStore }

func (v settingsView) Get(ctx context.Context, tenantID, key string) (string, error) {
	val, ok := v.s.settings[tenantID+"/"+key]
	if !ok {
		return "", outreach.ErrNotFound
	}
	return val, nil
}

func (v settingsView) Set(ctx context.Context, tenantID, key, value string) error {
	v.s.settings[tenantID+"/"+key] = value
	return nil
}

func (v settingsView) List(ctx context.Context, tenantID string) ([]domain.Setting, error) {
	var out []domain.Setting
	for k, val := range v.s.settings {
		out = append(out, domain.Setting{TenantID: tenantID, Key: k, Value: val})
	}
	return out, nil
}

// --- outreach.EventRepository / LogRepository ---

type eventView struct{ s *apiStore }

func (v eventView) Append(ctx context.Context, ev *domain.EmailEvent) error {
	v.s.events = append(v.s.events, *ev)
	return nil
}

func (v eventView) AppendBatch(ctx context.Context, evs []domain.EmailEvent) error {
	v.s.events = append(v.s.events, evs...)
	return nil
}

func (v eventView) ListByCampaign(ctx context.Context, campaignID string, limit int) ([]domain.EmailEvent, error) {
	var out []domain.EmailEvent
	for _, ev := range v.s.events {
		if ev.CampaignID == campaignID {
			out = append(out, ev)
		}
	}
	return out, nil
}

type logView struct{ s *apiStore }

func (v logView) Insert(ctx context.Context, entry *domain.CampaignLogEntry) error {
	v.s.logs = append(v.s.logs, *entry)
	return nil
}

func (v logView) ListByCampaign(ctx context.Context, campaignID string, limit int) ([]domain.CampaignLogEntry, error) {
	var out []domain.CampaignLogEntry
	for _, entry := range v.s.logs {
		if entry.CampaignID == campaignID {
			out = append(out, entry)
		}
	}
	return out, nil
}

// --- automation.Repository ---

type automationView struct{ s *apiStore }

func (v automationView) GetActiveByOrder(ctx context.Context, tenantID, orderID string, t domain.AutomationType) (*domain.OrderAutomation, error) {
	for _, a := range v.s.automations {
		if a.TenantID == tenantID && a.OrderID == orderID && a.Type == t && a.Status == domain.AutomationActive {
			cp := *a
			return &cp, nil
		}
	}
	return nil, outreach.ErrNotFound
}

func (v automationView) ListActive(ctx context.Context, tenantID string) ([]domain.OrderAutomation, error) {
	var out []domain.OrderAutomation
	for _, a := range v.s.automations {
		if a.TenantID == tenantID && a.Status == domain.AutomationActive {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (v automationView) ListDue(ctx context.Context, tenantID string, asOf time.Time, limit int) ([]domain.OrderAutomation, error) {
	return nil, nil
}

func (v automationView) Create(ctx context.Context, a *domain.OrderAutomation) (string, error) {
	id := v.s.nextID("auto")
	cp := *a
	cp.ID = id
	v.s.automations[id] = &cp
	return id, nil
}

func (v automationView) Advance(ctx context.Context, id string, reminderCount int, nextActionDate *time.Time, lastCampaignID string) error {
	return nil
}

func (v automationView) Retire(ctx context.Context, id string, status domain.AutomationStatus, reason string) error {
	return nil
}

func (v automationView) List(ctx context.Context, tenantID string, limit, offset int) ([]domain.OrderAutomation, int, error) {
	out, err := v.ListActive(ctx, tenantID)
	return out, len(out), err
}

// --- chat.SkillRepository ---

type skillView struct{ s *apiStore }

func (v skillView) Get(ctx context.Context, id string) (*domain.Skill, error) {
	sk, ok := v.s.skills[id]
	if !ok {
		return nil, outreach.ErrNotFound
	}
	cp := *sk
	return &cp, nil
}

func (v skillView) List(ctx context.Context, tenantID string, enabledOnly bool) ([]domain.Skill, error) {
	var out []domain.Skill
	for _, sk := range v.s.skills {
		if sk.TenantID != tenantID {
			continue
		}
		if enabledOnly && !sk.Enabled {
			continue
		}
		out = append(out, *sk)
	}
	return out, nil
}

func (v skillView) Create(ctx context.Context, sk *domain.Skill) (string, error) {
	id := v.s.nextID("skill")
	cp := *sk
	cp.ID = id
	v.s.skills[id] = &cp
	return id, nil
}

func (v skillView) Update(ctx context.Context, sk *domain.Skill) error {
	if _, ok := v.s.skills[sk.ID]; !ok {
		return outreach.ErrNotFound
	}
	cp := *sk
	v.s.skills[sk.ID] = &cp
	return nil
}

func (v skillView) Delete(ctx context.Context, tenantID, id string) error {
	if _, ok := v.s.skills[id]; !ok {
		return outreach.ErrNotFound
	}
	delete(v.s.skills, id)
	return nil
}

// --- service fakes ---

type fakeBatch struct {
	result *domain.BatchResult
	err    error
	calls  []string
	sizes  []int
}

func (f *fakeBatch) ProcessBatch(ctx context.Context, campaignID string, batchSize int) (*domain.BatchResult, error) {
	f.calls = append(f.calls, campaignID)
	f.sizes = append(f.sizes, batchSize)
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &domain.BatchResult{Processed: 1, Remaining: 0, Completed: true}, nil
}

type fakeEngine struct {
	scan    *automation.ScanResult
	process *automation.ProcessResult
	err     error
}

func (f *fakeEngine) Scan(ctx context.Context, tenantID string) (*automation.ScanResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.scan, nil
}

func (f *fakeEngine) ProcessDue(ctx context.Context, tenantID string) (*automation.ProcessResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.process, nil
}

type fakeDormant struct {
	events  []dormant.Event
	summary *dormant.Summary
	err     error
}

func (f *fakeDormant) Run(ctx context.Context, emit dormant.EmitFunc) (*dormant.Summary, error) {
	if emit != nil {
		for _, ev := range f.events {
			emit(ev)
		}
	}
	return f.summary, f.err
}

type fakeChat struct {
	reply *chat.Reply
	err   error
}

func (f *fakeChat) Chat(ctx context.Context, tenantID string, req chat.Request) (*chat.Reply, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.reply, nil
}

type fakeSender struct {
	sent []string
	err  error
}

func (f *fakeSender) SendEmail(ctx context.Context, emailID string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, emailID)
	return nil
}

type fakeStats struct {
	stats *domain.DashboardStats
	calls int
}

func (f *fakeStats) DashboardStats(ctx context.Context, tenantID string) (*domain.DashboardStats, error) {
	f.calls++
	return f.stats, nil
}

type fakeMoney struct {
	value float64
	err   error
}

func (f *fakeMoney) SpendLastDays(ctx context.Context, days int) (float64, error) {
	return f.value, f.err
}

func (f *fakeMoney) RevenueLastDays(ctx context.Context, days int) (float64, error) {
	return f.value, f.err
}

type fakeProvider struct {
	sent []*outreach.Message
	err  error
}

func (f *fakeProvider) Send(ctx context.Context, msg *outreach.Message) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.sent = append(f.sent, msg)
	return "fwd-" + strconv.Itoa(len(f.sent)), nil
}

func (f *fakeProvider) Name() string { return "fake" }
