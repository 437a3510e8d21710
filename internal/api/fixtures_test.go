package api_test

import (
	"context"
	"fmt"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/ignite/bulkmailer/internal/api"
	"github.com/ignite/bulkmailer/internal/bounce"
	"github.com/ignite/bulkmailer/internal/dispatch"
	"github.com/ignite/bulkmailer/internal/domain"
	"github.com/ignite/bulkmailer/internal/pkg/distlock"
	"github.com/ignite/bulkmailer/internal/sender"
	"github.com/ignite/bulkmailer/internal/service/campaign"
	"github.com/ignite/bulkmailer/internal/service/provider"
	"github.com/ignite/bulkmailer/internal/service/suppression"
)

// memState is a shared in-memory backing store wired into every
// repository interface the handlers need.
type memState struct {
	mu         sync.Mutex
	campaigns  map[string]*domain.Campaign
	recipients map[string][]*domain.Recipient
	logs       []domain.SendLogEntry
	providers  map[string]*domain.ProviderConfig
	suppressed map[string]*domain.Suppression
	bounceRecs []domain.BounceRecord
}

func newMemState() *memState {
	return &memState{
		campaigns:  make(map[string]*domain.Campaign),
		recipients: make(map[string][]*domain.Recipient),
		providers:  make(map[string]*domain.ProviderConfig),
		suppressed: make(map[string]*domain.Suppression),
	}
}

// ---- campaign.Repository ----

type memCampaignRepo struct{ s *memState }

func (m *memCampaignRepo) Get(_ context.Context, id string) (*domain.Campaign, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	c, ok := m.s.campaigns[id]
	if !ok {
		return nil, campaign.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memCampaignRepo) List(_ context.Context, f campaign.ListFilter) ([]domain.Campaign, int, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []domain.Campaign
	for _, c := range m.s.campaigns {
		if f.Status != "" && string(c.Status) != f.Status {
			continue
		}
		out = append(out, *c)
	}
	return out, len(out), nil
}

func (m *memCampaignRepo) Create(_ context.Context, c *domain.Campaign) (string, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	cp := *c
	m.s.campaigns[c.ID] = &cp
	return c.ID, nil
}

func (m *memCampaignRepo) Update(_ context.Context, id string, u campaign.UpdateFields) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	c, ok := m.s.campaigns[id]
	if !ok {
		return campaign.ErrNotFound
	}
	if u.Name != nil {
		c.Name = *u.Name
	}
	if u.Subject != nil {
		c.Subject = *u.Subject
	}
	if u.BodyHTML != nil {
		c.BodyHTML = *u.BodyHTML
	}
	if u.ThrottleSeconds != nil {
		c.ThrottleSeconds = *u.ThrottleSeconds
	}
	return nil
}

func (m *memCampaignRepo) Delete(_ context.Context, id string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.campaigns[id]; !ok {
		return campaign.ErrNotFound
	}
	delete(m.s.campaigns, id)
	delete(m.s.recipients, id)
	return nil
}

func (m *memCampaignRepo) UpdateStatus(_ context.Context, id string, status domain.CampaignStatus) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	c, ok := m.s.campaigns[id]
	if !ok {
		return campaign.ErrNotFound
	}
	c.Status = status
	return nil
}

func (m *memCampaignRepo) AddRecipients(_ context.Context, campaignID string, recipients []domain.Recipient) (int, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	suppressed := 0
	for i := range recipients {
		rec := recipients[i]
		m.s.recipients[campaignID] = append(m.s.recipients[campaignID], &rec)
		if rec.Status == domain.RecipientSuppressed {
			suppressed++
			m.s.logs = append(m.s.logs, domain.SendLogEntry{
				CampaignID:  campaignID,
				RecipientID: rec.ID,
				Email:       rec.Email,
				Status:      domain.LogStatusSkipped,
				Response:    "suppressed at upload",
				Timestamp:   time.Now().UTC(),
			})
		}
	}
	if c, ok := m.s.campaigns[campaignID]; ok {
		c.TotalRecipients += len(recipients)
		c.SkippedCount += suppressed
	}
	return len(recipients), nil
}

func (m *memCampaignRepo) ListRecipients(_ context.Context, campaignID string, f campaign.RecipientFilter) ([]domain.Recipient, int, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []domain.Recipient
	for _, r := range m.s.recipients[campaignID] {
		if f.Status != "" && string(r.Status) != f.Status {
			continue
		}
		out = append(out, *r)
	}
	return out, len(out), nil
}

func (m *memCampaignRepo) SendLog(_ context.Context, campaignID string) ([]domain.SendLogEntry, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []domain.SendLogEntry
	for _, e := range m.s.logs {
		if e.CampaignID == campaignID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memCampaignRepo) Stats(context.Context) (*campaign.Stats, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	s := &campaign.Stats{Campaigns: len(m.s.campaigns)}
	for _, c := range m.s.campaigns {
		s.TotalSent += c.SentCount
		s.TotalFailed += c.FailedCount
		s.TotalSkipped += c.SkippedCount
		if c.Status == domain.CampaignSending || c.Status == domain.CampaignPaused {
			s.ActiveCampaigns++
		}
	}
	return s, nil
}

// ---- suppression.Repository ----

type memSuppressionRepo struct{ s *memState }

func (m *memSuppressionRepo) Insert(_ context.Context, sup *domain.Suppression) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.suppressed[sup.Email]; ok {
		return nil
	}
	cp := *sup
	m.s.suppressed[sup.Email] = &cp
	return nil
}

func (m *memSuppressionRepo) Delete(_ context.Context, email string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.suppressed[email]; !ok {
		return suppression.ErrNotFound
	}
	delete(m.s.suppressed, email)
	return nil
}

func (m *memSuppressionRepo) Get(_ context.Context, email string) (*domain.Suppression, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	sup, ok := m.s.suppressed[email]
	if !ok {
		return nil, suppression.ErrNotFound
	}
	cp := *sup
	return &cp, nil
}

func (m *memSuppressionRepo) List(_ context.Context, f suppression.ListFilter) ([]domain.Suppression, int, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []domain.Suppression
	for _, sup := range m.s.suppressed {
		out = append(out, *sup)
	}
	return out, len(out), nil
}

func (m *memSuppressionRepo) AllEmails(context.Context) ([]string, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []string
	for email := range m.s.suppressed {
		out = append(out, email)
	}
	return out, nil
}

// ---- provider.Repository ----

type memProviderRepo struct{ s *memState }

func (m *memProviderRepo) Get(_ context.Context, id string) (*domain.ProviderConfig, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	p, ok := m.s.providers[id]
	if !ok {
		return nil, provider.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memProviderRepo) List(context.Context) ([]domain.ProviderConfig, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []domain.ProviderConfig
	for _, p := range m.s.providers {
		out = append(out, *p)
	}
	return out, nil
}

func (m *memProviderRepo) Create(_ context.Context, p *domain.ProviderConfig) (string, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	cp := *p
	m.s.providers[p.ID] = &cp
	return p.ID, nil
}

func (m *memProviderRepo) Update(_ context.Context, p *domain.ProviderConfig) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.providers[p.ID]; !ok {
		return provider.ErrNotFound
	}
	cp := *p
	m.s.providers[p.ID] = &cp
	return nil
}

func (m *memProviderRepo) Delete(_ context.Context, id string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.providers[id]; !ok {
		return provider.ErrNotFound
	}
	delete(m.s.providers, id)
	return nil
}

// ---- dispatch.Store ----

type memDispatchStore struct{ s *memState }

func (m *memDispatchStore) GetCampaign(ctx context.Context, id string) (*domain.Campaign, error) {
	return (&memCampaignRepo{m.s}).Get(ctx, id)
}

func (m *memDispatchStore) UpdateCampaignStatus(ctx context.Context, id string, status domain.CampaignStatus) error {
	return (&memCampaignRepo{m.s}).UpdateStatus(ctx, id, status)
}

func (m *memDispatchStore) GetProvider(ctx context.Context, id string) (*domain.ProviderConfig, error) {
	return (&memProviderRepo{m.s}).Get(ctx, id)
}

func (m *memDispatchStore) PendingRecipients(_ context.Context, campaignID string, limit int) ([]domain.Recipient, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []domain.Recipient
	for _, r := range m.s.recipients[campaignID] {
		if r.Status != domain.RecipientPending {
			continue
		}
		out = append(out, *r)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *memDispatchStore) CountPending(_ context.Context, campaignID string) (int, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	n := 0
	for _, r := range m.s.recipients[campaignID] {
		if r.Status == domain.RecipientPending {
			n++
		}
	}
	return n, nil
}

func (m *memDispatchStore) findRecipient(id string) *domain.Recipient {
	for _, rs := range m.s.recipients {
		for _, r := range rs {
			if r.ID == id {
				return r
			}
		}
	}
	return nil
}

func (m *memDispatchStore) MarkRecipientSent(_ context.Context, id, messageID string, attempts int, sentAt time.Time) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	r := m.findRecipient(id)
	if r == nil {
		return fmt.Errorf("recipient %s not found", id)
	}
	r.Status = domain.RecipientSent
	r.MessageID = messageID
	r.Attempts = attempts
	r.SentAt = &sentAt
	return nil
}

func (m *memDispatchStore) MarkRecipientFailed(_ context.Context, id, errMsg string, attempts int) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	r := m.findRecipient(id)
	if r == nil {
		return fmt.Errorf("recipient %s not found", id)
	}
	r.Status = domain.RecipientFailed
	r.ErrorMessage = errMsg
	r.Attempts = attempts
	return nil
}

func (m *memDispatchStore) MarkRecipientSkipped(_ context.Context, id string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	r := m.findRecipient(id)
	if r == nil {
		return fmt.Errorf("recipient %s not found", id)
	}
	r.Status = domain.RecipientSuppressed
	return nil
}

func (m *memDispatchStore) AppendSendLog(_ context.Context, e *domain.SendLogEntry) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	m.s.logs = append(m.s.logs, *e)
	return nil
}

func (m *memDispatchStore) IncrementCounters(_ context.Context, campaignID string, sent, failed, skipped int) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if c, ok := m.s.campaigns[campaignID]; ok {
		c.SentCount += sent
		c.FailedCount += failed
		c.SkippedCount += skipped
	}
	return nil
}

// ---- bounce.RecordStore + api.BounceLister ----

type memBounceStore struct{ s *memState }

func (m *memBounceStore) AppendBounce(_ context.Context, rec *domain.BounceRecord) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	m.s.bounceRecs = append(m.s.bounceRecs, *rec)
	return nil
}

func (m *memBounceStore) CampaignByMessageID(_ context.Context, messageID string) (string, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, e := range m.s.logs {
		if e.MessageID == messageID {
			return e.CampaignID, nil
		}
	}
	return "", nil
}

func (m *memBounceStore) List(_ context.Context, limit, offset int) ([]domain.BounceRecord, int, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	out := append([]domain.BounceRecord(nil), m.s.bounceRecs...)
	return out, len(out), nil
}

// ---- harness ----

type noopLock struct{}

func (noopLock) Acquire(context.Context) (bool, error) { return true, nil }
func (noopLock) Extend(context.Context) error          { return nil }
func (noopLock) Release(context.Context) error         { return nil }

type okSender struct{}

func (okSender) Send(context.Context, *sender.Message) (sender.Outcome, error) {
	return sender.Outcome{Kind: sender.Accepted, MessageID: "test-id"}, nil
}
func (okSender) TestConnection(context.Context) error { return nil }
func (okSender) Provider() domain.ProviderType        { return domain.ProviderSMTP }

func newTestServer() (*httptest.Server, *memState) {
	state := newMemState()

	suppressionSvc := suppression.NewService(&memSuppressionRepo{state})
	campaignSvc := campaign.NewService(&memCampaignRepo{state}, suppressionSvc)
	providerSvc := provider.NewServiceWithFactory(&memProviderRepo{state},
		func(cfg *domain.ProviderConfig) (sender.Sender, error) { return okSender{}, nil })

	dispatcher := dispatch.NewDispatcher(
		&memDispatchStore{state},
		suppressionSvc,
		func(string) distlock.DistLock { return noopLock{} },
		func(*domain.ProviderConfig) (sender.Sender, error) { return okSender{}, nil },
		dispatch.Options{MaxAttempts: 3, RetryBackoff: time.Millisecond, BatchSize: 100},
	)

	bounceStore := &memBounceStore{state}
	processor := bounce.NewProcessor(bounceStore, suppressionSvc)

	h := api.NewHandlers(campaignSvc, providerSvc, suppressionSvc, dispatcher, processor, bounceStore)
	return httptest.NewServer(api.SetupRoutes(h)), state
}
