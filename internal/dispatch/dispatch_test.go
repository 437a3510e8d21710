package dispatch_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ignite/bulkmailer/internal/dispatch"
	"github.com/ignite/bulkmailer/internal/domain"
	"github.com/ignite/bulkmailer/internal/pkg/distlock"
	"github.com/ignite/bulkmailer/internal/sender"
)

// memStore is an in-memory dispatch store for unit testing.
type memStore struct {
	mu         sync.Mutex
	campaigns  map[string]*domain.Campaign
	recipients map[string][]*domain.Recipient // keyed by campaign id, in order
	logs       []domain.SendLogEntry
	providers  map[string]*domain.ProviderConfig
	failFetch  bool
}

func newMemStore() *memStore {
	return &memStore{
		campaigns:  make(map[string]*domain.Campaign),
		recipients: make(map[string][]*domain.Recipient),
		providers:  make(map[string]*domain.ProviderConfig),
	}
}

func (m *memStore) GetCampaign(_ context.Context, id string) (*domain.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok {
		return nil, fmt.Errorf("campaign %s not found", id)
	}
	cp := *c
	return &cp, nil
}

func (m *memStore) UpdateCampaignStatus(_ context.Context, id string, status domain.CampaignStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok {
		return fmt.Errorf("campaign %s not found", id)
	}
	c.Status = status
	return nil
}

func (m *memStore) PendingRecipients(_ context.Context, campaignID string, limit int) ([]domain.Recipient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failFetch {
		return nil, errors.New("storage unavailable")
	}
	var out []domain.Recipient
	for _, r := range m.recipients[campaignID] {
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

func (m *memStore) CountPending(_ context.Context, campaignID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.recipients[campaignID] {
		if r.Status == domain.RecipientPending {
			n++
		}
	}
	return n, nil
}

func (m *memStore) findRecipient(id string) *domain.Recipient {
	for _, rs := range m.recipients {
		for _, r := range rs {
			if r.ID == id {
				return r
			}
		}
	}
	return nil
}

func (m *memStore) MarkRecipientSent(_ context.Context, id, messageID string, attempts int, sentAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
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

func (m *memStore) MarkRecipientFailed(_ context.Context, id, errMsg string, attempts int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.findRecipient(id)
	if r == nil {
		return fmt.Errorf("recipient %s not found", id)
	}
	r.Status = domain.RecipientFailed
	r.ErrorMessage = errMsg
	r.Attempts = attempts
	return nil
}

func (m *memStore) MarkRecipientSkipped(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.findRecipient(id)
	if r == nil {
		return fmt.Errorf("recipient %s not found", id)
	}
	r.Status = domain.RecipientSuppressed
	return nil
}

func (m *memStore) AppendSendLog(_ context.Context, entry *domain.SendLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, *entry)
	return nil
}

func (m *memStore) IncrementCounters(_ context.Context, campaignID string, sent, failed, skipped int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[campaignID]
	if !ok {
		return fmt.Errorf("campaign %s not found", campaignID)
	}
	c.SentCount += sent
	c.FailedCount += failed
	c.SkippedCount += skipped
	return nil
}

func (m *memStore) GetProvider(_ context.Context, id string) (*domain.ProviderConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.providers[id]
	if !ok {
		return nil, fmt.Errorf("provider %s not found", id)
	}
	cp := *p
	return &cp, nil
}

func (m *memStore) campaignStatus(id string) domain.CampaignStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.campaigns[id].Status
}

func (m *memStore) recipientByEmail(campaignID, email string) domain.Recipient {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.recipients[campaignID] {
		if r.Email == email {
			return *r
		}
	}
	return domain.Recipient{}
}

func (m *memStore) logCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.logs)
}

// fakeSender scripts outcomes per recipient address and records call
// times for backoff assertions.
type fakeSender struct {
	mu       sync.Mutex
	outcomes map[string][]sender.Outcome // consumed per address in order
	fallback sender.Outcome
	sendErr  error
	calls    map[string][]time.Time
}

func newFakeSender() *fakeSender {
	return &fakeSender{
		outcomes: make(map[string][]sender.Outcome),
		fallback: sender.Outcome{Kind: sender.Accepted, MessageID: "ok"},
		calls:    make(map[string][]time.Time),
	}
}

func (f *fakeSender) Send(_ context.Context, msg *sender.Message) (sender.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[msg.To] = append(f.calls[msg.To], time.Now())
	if f.sendErr != nil {
		return sender.Outcome{}, f.sendErr
	}
	if queue := f.outcomes[msg.To]; len(queue) > 0 {
		out := queue[0]
		f.outcomes[msg.To] = queue[1:]
		return out, nil
	}
	return f.fallback, nil
}

func (f *fakeSender) TestConnection(context.Context) error { return nil }
func (f *fakeSender) Provider() domain.ProviderType        { return domain.ProviderSMTP }

func (f *fakeSender) callTimes(email string) []time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Time(nil), f.calls[email]...)
}

// localLock is a process-local DistLock for tests.
type localLock struct {
	mu      *sync.Mutex
	held    map[string]bool
	extends map[string]int
	key     string
}

type localLocks struct {
	mu      sync.Mutex
	held    map[string]bool
	extends map[string]int
}

func newLocalLocks() *localLocks {
	return &localLocks{held: make(map[string]bool), extends: make(map[string]int)}
}

func (s *localLocks) factory() dispatch.LockFactory {
	return func(campaignID string) distlock.DistLock {
		return &localLock{mu: &s.mu, held: s.held, extends: s.extends, key: campaignID}
	}
}

func (s *localLocks) extendCount(campaignID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.extends[campaignID]
}

func newLocalLockFactory() dispatch.LockFactory {
	return newLocalLocks().factory()
}

func (l *localLock) Acquire(context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[l.key] {
		return false, nil
	}
	l.held[l.key] = true
	return true, nil
}

func (l *localLock) Extend(context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.extends[l.key]++
	return nil
}

func (l *localLock) Release(context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, l.key)
	return nil
}

// stubChecker suppresses a fixed set of addresses.
type stubChecker map[string]bool

func (s stubChecker) IsSuppressed(email string) bool { return s[email] }

func seedCampaign(store *memStore, throttleSeconds float64, emails ...string) *domain.Campaign {
	c := &domain.Campaign{
		ID:              "camp-1",
		Name:            "Test",
		Subject:         "Hi {{first_name}}",
		BodyHTML:        "<p>Hello {{first_name}}</p>",
		FromEmail:       "news@sender.example",
		Status:          domain.CampaignDraft,
		ThrottleSeconds: throttleSeconds,
		TotalRecipients: len(emails),
	}
	store.campaigns[c.ID] = c
	for i, e := range emails {
		store.recipients[c.ID] = append(store.recipients[c.ID], &domain.Recipient{
			ID:         fmt.Sprintf("r-%d", i),
			CampaignID: c.ID,
			Email:      e,
			Fields:     map[string]string{"first_name": fmt.Sprintf("User%d", i)},
			Status:     domain.RecipientPending,
		})
	}
	store.providers["prov-1"] = &domain.ProviderConfig{
		ID: "prov-1", Name: "test smtp", Type: domain.ProviderSMTP, Host: "localhost", Enabled: true,
	}
	return c
}

func newTestDispatcher(store *memStore, snd sender.Sender, checker dispatch.SuppressionChecker) *dispatch.Dispatcher {
	return dispatch.NewDispatcher(store, checker, newLocalLockFactory(),
		func(*domain.ProviderConfig) (sender.Sender, error) { return snd, nil },
		dispatch.Options{MaxAttempts: 3, RetryBackoff: 10 * time.Millisecond, BatchSize: 10})
}

func waitStopped(t *testing.T, d *dispatch.Dispatcher, campaignID string) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for d.Running(campaignID) {
		select {
		case <-deadline:
			t.Fatal("run did not stop in time")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestRunCompletes(t *testing.T) {
	store := newMemStore()
	c := seedCampaign(store, 0, "a@example.com", "b@example.com", "c@example.com")
	snd := newFakeSender()
	d := newTestDispatcher(store, snd, nil)

	if err := d.Start(context.Background(), c.ID, "prov-1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitStopped(t, d, c.ID)

	if got := store.campaignStatus(c.ID); got != domain.CampaignCompleted {
		t.Fatalf("expected completed, got %s", got)
	}
	for _, e := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		r := store.recipientByEmail(c.ID, e)
		if r.Status != domain.RecipientSent {
			t.Fatalf("expected %s sent, got %s", e, r.Status)
		}
		if r.MessageID == "" || r.SentAt == nil {
			t.Fatalf("expected message id and sent_at for %s", e)
		}
	}
	if store.logCount() != 3 {
		t.Fatalf("expected 3 log entries, got %d", store.logCount())
	}
}

func TestRetryBoundAndBackoff(t *testing.T) {
	store := newMemStore()
	c := seedCampaign(store, 0, "flaky@example.com")
	snd := newFakeSender()
	// Every attempt is transient: exactly 3 tries, then failed.
	snd.fallback = sender.Outcome{Kind: sender.TransientFailure, Reason: "rate limited"}
	d := newTestDispatcher(store, snd, nil)

	if err := d.Start(context.Background(), c.ID, "prov-1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitStopped(t, d, c.ID)

	calls := snd.callTimes("flaky@example.com")
	if len(calls) != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d", len(calls))
	}
	gap1 := calls[1].Sub(calls[0])
	gap2 := calls[2].Sub(calls[1])
	if gap2 <= gap1 {
		t.Fatalf("expected strictly increasing backoff, got %v then %v", gap1, gap2)
	}

	r := store.recipientByEmail(c.ID, "flaky@example.com")
	if r.Status != domain.RecipientFailed {
		t.Fatalf("expected failed, got %s", r.Status)
	}
	if r.Attempts != 3 {
		t.Fatalf("expected 3 recorded attempts, got %d", r.Attempts)
	}
	if r.ErrorMessage != "rate limited" {
		t.Fatalf("expected last error recorded, got %q", r.ErrorMessage)
	}
	// One log entry per attempt.
	if store.logCount() != 3 {
		t.Fatalf("expected 3 log entries, got %d", store.logCount())
	}
	// Individual recipient failures never fail the run.
	if got := store.campaignStatus(c.ID); got != domain.CampaignCompleted {
		t.Fatalf("expected completed, got %s", got)
	}
}

func TestPermanentFailureNoRetry(t *testing.T) {
	store := newMemStore()
	c := seedCampaign(store, 0, "bad@example.com", "good@example.com")
	snd := newFakeSender()
	snd.outcomes["bad@example.com"] = []sender.Outcome{
		{Kind: sender.PermanentFailure, Reason: "550 user unknown"},
	}
	d := newTestDispatcher(store, snd, nil)

	if err := d.Start(context.Background(), c.ID, "prov-1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitStopped(t, d, c.ID)

	if n := len(snd.callTimes("bad@example.com")); n != 1 {
		t.Fatalf("expected 1 attempt for permanent failure, got %d", n)
	}
	if r := store.recipientByEmail(c.ID, "bad@example.com"); r.Status != domain.RecipientFailed {
		t.Fatalf("expected failed, got %s", r.Status)
	}
	if r := store.recipientByEmail(c.ID, "good@example.com"); r.Status != domain.RecipientSent {
		t.Fatalf("expected sent, got %s", r.Status)
	}
}

func TestSuppressedSkippedWithoutProviderCall(t *testing.T) {
	store := newMemStore()
	c := seedCampaign(store, 0, "listed@example.com", "ok@example.com")
	snd := newFakeSender()
	d := newTestDispatcher(store, snd, stubChecker{"listed@example.com": true})

	if err := d.Start(context.Background(), c.ID, "prov-1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitStopped(t, d, c.ID)

	if n := len(snd.callTimes("listed@example.com")); n != 0 {
		t.Fatalf("expected no provider call for suppressed address, got %d", n)
	}
	if r := store.recipientByEmail(c.ID, "listed@example.com"); r.Status != domain.RecipientSuppressed {
		t.Fatalf("expected skipped_suppressed, got %s", r.Status)
	}

	// Skips still produce a log entry.
	store.mu.Lock()
	skippedLogs := 0
	for _, l := range store.logs {
		if l.Status == domain.LogStatusSkipped {
			skippedLogs++
		}
	}
	store.mu.Unlock()
	if skippedLogs != 1 {
		t.Fatalf("expected 1 skip log entry, got %d", skippedLogs)
	}
}

func TestThrottlePacing(t *testing.T) {
	store := newMemStore()
	throttle := 0.05 // 50ms between sends
	c := seedCampaign(store, throttle, "a@example.com", "b@example.com", "c@example.com")
	snd := newFakeSender()
	d := newTestDispatcher(store, snd, nil)

	start := time.Now()
	if err := d.Start(context.Background(), c.ID, "prov-1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitStopped(t, d, c.ID)
	elapsed := time.Since(start)

	// Three processed recipients with a throttle after each of the first
	// two at minimum.
	if min := 2 * 50 * time.Millisecond; elapsed < min {
		t.Fatalf("expected run to take at least %v, took %v", min, elapsed)
	}
}

func TestPauseAndIdempotentResume(t *testing.T) {
	store := newMemStore()
	c := seedCampaign(store, 0.02, "a@example.com", "b@example.com", "c@example.com", "d@example.com")
	snd := newFakeSender()
	d := newTestDispatcher(store, snd, nil)

	if err := d.Start(context.Background(), c.ID, "prov-1"); err != nil {
		t.Fatalf("start: %v", err)
	}

	// Wait until at least one recipient went out, then pause.
	deadline := time.After(5 * time.Second)
	for {
		if len(snd.callTimes("a@example.com")) > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("first send never happened")
		case <-time.After(time.Millisecond):
		}
	}
	if err := d.Pause(c.ID); err != nil {
		t.Fatalf("pause: %v", err)
	}
	waitStopped(t, d, c.ID)

	if got := store.campaignStatus(c.ID); got != domain.CampaignPaused {
		t.Fatalf("expected paused, got %s", got)
	}
	sentBefore := len(snd.callTimes("a@example.com"))

	// Resume processes only the remaining pending recipients.
	if err := d.Start(context.Background(), c.ID, "prov-1"); err != nil {
		t.Fatalf("resume: %v", err)
	}
	waitStopped(t, d, c.ID)

	if got := store.campaignStatus(c.ID); got != domain.CampaignCompleted {
		t.Fatalf("expected completed after resume, got %s", got)
	}
	if n := len(snd.callTimes("a@example.com")); n != sentBefore {
		t.Fatalf("recipient re-sent on resume: %d calls before, %d after", sentBefore, n)
	}
	for _, e := range []string{"a@example.com", "b@example.com", "c@example.com", "d@example.com"} {
		if r := store.recipientByEmail(c.ID, e); r.Status != domain.RecipientSent {
			t.Fatalf("expected %s sent, got %s", e, r.Status)
		}
	}
}

func TestStartValidations(t *testing.T) {
	store := newMemStore()
	c := seedCampaign(store, 0, "a@example.com")
	snd := newFakeSender()
	d := newTestDispatcher(store, snd, nil)

	// Disabled provider fails fast.
	store.providers["prov-off"] = &domain.ProviderConfig{
		ID: "prov-off", Type: domain.ProviderSMTP, Host: "localhost", Enabled: false,
	}
	if err := d.Start(context.Background(), c.ID, "prov-off"); !errors.Is(err, dispatch.ErrProviderDisabled) {
		t.Fatalf("expected ErrProviderDisabled, got %v", err)
	}

	// No pending recipients fails fast.
	store.mu.Lock()
	for _, r := range store.recipients[c.ID] {
		r.Status = domain.RecipientSent
	}
	store.mu.Unlock()
	if err := d.Start(context.Background(), c.ID, "prov-1"); !errors.Is(err, dispatch.ErrNoPending) {
		t.Fatalf("expected ErrNoPending, got %v", err)
	}

	// Terminal campaigns cannot start.
	store.UpdateCampaignStatus(context.Background(), c.ID, domain.CampaignCompleted)
	if err := d.Start(context.Background(), c.ID, "prov-1"); !errors.Is(err, dispatch.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

func TestDoubleStartRejected(t *testing.T) {
	store := newMemStore()
	c := seedCampaign(store, 0.05, "a@example.com", "b@example.com", "c@example.com")
	snd := newFakeSender()
	d := newTestDispatcher(store, snd, nil)

	if err := d.Start(context.Background(), c.ID, "prov-1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := d.Start(context.Background(), c.ID, "prov-1"); !errors.Is(err, dispatch.ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}
	d.Pause(c.ID)
	waitStopped(t, d, c.ID)
}

func TestAdapterErrorFailsRun(t *testing.T) {
	store := newMemStore()
	c := seedCampaign(store, 0, "a@example.com")
	snd := newFakeSender()
	snd.sendErr = errors.New("adapter misconfigured")
	d := newTestDispatcher(store, snd, nil)

	if err := d.Start(context.Background(), c.ID, "prov-1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitStopped(t, d, c.ID)

	if got := store.campaignStatus(c.ID); got != domain.CampaignFailed {
		t.Fatalf("expected failed, got %s", got)
	}
	// The in-flight recipient is preserved as pending, resumable later.
	if r := store.recipientByEmail(c.ID, "a@example.com"); r.Status != domain.RecipientPending {
		t.Fatalf("expected pending preserved, got %s", r.Status)
	}
}

func TestProgressSnapshot(t *testing.T) {
	store := newMemStore()
	c := seedCampaign(store, 0, "a@example.com", "b@example.com")
	snd := newFakeSender()
	d := newTestDispatcher(store, snd, nil)

	if err := d.Start(context.Background(), c.ID, "prov-1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitStopped(t, d, c.ID)

	p, err := d.Progress(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if p.Sent != 2 || p.Remaining != 0 {
		t.Fatalf("unexpected progress: %+v", p)
	}
	if p.Status != string(domain.CampaignCompleted) {
		t.Fatalf("expected completed status, got %s", p.Status)
	}
}

// liveChecker accepts suppression additions while runs are active.
type liveChecker struct {
	mu  sync.Mutex
	set map[string]bool
}

func newLiveChecker() *liveChecker { return &liveChecker{set: make(map[string]bool)} }

func (l *liveChecker) IsSuppressed(email string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.set[email]
}

func (l *liveChecker) add(email string) {
	l.mu.Lock()
	l.set[email] = true
	l.mu.Unlock()
}

// hookSender runs a callback before each delivery, standing in for a
// bounce-processing run that suppresses addresses mid-campaign.
type hookSender struct {
	*fakeSender
	onSend func(to string)
}

func (h *hookSender) Send(ctx context.Context, msg *sender.Message) (sender.Outcome, error) {
	if h.onSend != nil {
		h.onSend(msg.To)
	}
	return h.fakeSender.Send(ctx, msg)
}

func TestConcurrentRunsObserveSuppression(t *testing.T) {
	store := newMemStore()
	shared := "shared@example.com"
	for i, first := range []string{"a@example.com", "b@example.com"} {
		id := fmt.Sprintf("camp-%d", i)
		store.campaigns[id] = &domain.Campaign{
			ID:        id,
			Name:      fmt.Sprintf("Run %d", i),
			Subject:   "Hello",
			BodyHTML:  "<p>Hello</p>",
			FromEmail: "news@sender.example",
			Status:    domain.CampaignDraft,
		}
		for j, e := range []string{first, shared} {
			store.recipients[id] = append(store.recipients[id], &domain.Recipient{
				ID:         fmt.Sprintf("%s-r-%d", id, j),
				CampaignID: id,
				Email:      e,
				Status:     domain.RecipientPending,
			})
		}
	}
	store.providers["prov-1"] = &domain.ProviderConfig{
		ID: "prov-1", Name: "test smtp", Type: domain.ProviderSMTP, Host: "localhost", Enabled: true,
	}

	checker := newLiveChecker()
	// The first delivery of either campaign suppresses the shared
	// address, before either run has reached it.
	snd := &hookSender{fakeSender: newFakeSender(), onSend: func(string) { checker.add(shared) }}
	d := newTestDispatcher(store, snd, checker)

	if err := d.Start(context.Background(), "camp-0", "prov-1"); err != nil {
		t.Fatalf("start camp-0: %v", err)
	}
	if err := d.Start(context.Background(), "camp-1", "prov-1"); err != nil {
		t.Fatalf("start camp-1: %v", err)
	}
	waitStopped(t, d, "camp-0")
	waitStopped(t, d, "camp-1")

	if n := len(snd.callTimes(shared)); n != 0 {
		t.Fatalf("expected no provider call for shared address, got %d", n)
	}
	for _, id := range []string{"camp-0", "camp-1"} {
		if r := store.recipientByEmail(id, shared); r.Status != domain.RecipientSuppressed {
			t.Fatalf("%s: expected skipped_suppressed, got %s", id, r.Status)
		}
		if status := store.campaignStatus(id); status != domain.CampaignCompleted {
			t.Fatalf("%s: expected completed, got %s", id, status)
		}
	}
}

func TestRunKeepsLockAlive(t *testing.T) {
	store := newMemStore()
	c := seedCampaign(store, 0, "a@example.com", "b@example.com", "c@example.com")
	snd := newFakeSender()
	locks := newLocalLocks()
	d := dispatch.NewDispatcher(store, nil, locks.factory(),
		func(*domain.ProviderConfig) (sender.Sender, error) { return snd, nil },
		dispatch.Options{MaxAttempts: 3, RetryBackoff: 10 * time.Millisecond, BatchSize: 10})

	if err := d.Start(context.Background(), c.ID, "prov-1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitStopped(t, d, c.ID)

	// One extend per recipient keeps a long throttled run from losing
	// its lock to another replica.
	if n := locks.extendCount(c.ID); n < 3 {
		t.Fatalf("expected at least 3 lock extends, got %d", n)
	}
}
