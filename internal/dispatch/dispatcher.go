// Package dispatch implements the campaign run engine: one sequential
// worker per active campaign that gates recipients through suppression,
// renders, delivers, paces, retries, and records every outcome.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ignite/bulkmailer/internal/domain"
	"github.com/ignite/bulkmailer/internal/pkg/distlock"
	"github.com/ignite/bulkmailer/internal/pkg/logger"
	"github.com/ignite/bulkmailer/internal/sender"
)

// Sentinel errors for run control.
var (
	ErrAlreadyRunning   = errors.New("campaign run already active")
	ErrNotRunning       = errors.New("campaign is not running")
	ErrNoPending        = errors.New("campaign has no pending recipients")
	ErrProviderDisabled = errors.New("provider is disabled")
	ErrInvalidState     = errors.New("campaign state does not allow starting")
)

// LockFactory builds the distributed lock guarding one campaign's run.
type LockFactory func(campaignID string) distlock.DistLock

// SenderFactory builds the delivery adapter for a provider record.
type SenderFactory func(cfg *domain.ProviderConfig) (sender.Sender, error)

// Options tune the retry and batching behavior of every run.
type Options struct {
	// MaxAttempts bounds delivery attempts per recipient, first try
	// included.
	MaxAttempts int
	// RetryBackoff is the delay before the second attempt; it doubles
	// for each further attempt.
	RetryBackoff time.Duration
	// BatchSize is how many pending recipients are pulled per query.
	BatchSize int
}

func (o Options) withDefaults() Options {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = time.Second
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 500
	}
	return o
}

// Dispatcher owns the registry of active campaign runs. At most one run
// per campaign exists in-process; the distributed lock extends that
// guarantee across replicas.
type Dispatcher struct {
	store       Store
	suppression SuppressionChecker
	newLock     LockFactory
	newSender   SenderFactory
	opts        Options

	mu   sync.Mutex
	runs map[string]*run
}

// NewDispatcher creates a dispatcher. newSender may be nil to use the
// built-in adapter factory.
func NewDispatcher(store Store, suppression SuppressionChecker, newLock LockFactory, newSender SenderFactory, opts Options) *Dispatcher {
	if newSender == nil {
		newSender = sender.New
	}
	return &Dispatcher{
		store:       store,
		suppression: suppression,
		newLock:     newLock,
		newSender:   newSender,
		opts:        opts.withDefaults(),
		runs:        make(map[string]*run),
	}
}

// run is one active campaign worker.
type run struct {
	campaign *domain.Campaign
	send     sender.Sender
	provider *domain.ProviderConfig
	tracker  *tracker

	ctx       context.Context
	cancel    context.CancelFunc
	pauseCh   chan struct{}
	pauseOnce sync.Once
	done      chan struct{}
}

func (r *run) requestPause() {
	r.pauseOnce.Do(func() { close(r.pauseCh) })
}

func (r *run) pauseRequested() bool {
	select {
	case <-r.pauseCh:
		return true
	case <-r.ctx.Done():
		return true
	default:
		return false
	}
}

// sleep waits for d unless a pause or cancellation arrives first.
// Returns false when interrupted.
func (r *run) sleep(d time.Duration) bool {
	if d <= 0 {
		return !r.pauseRequested()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-r.pauseCh:
		return false
	case <-r.ctx.Done():
		return false
	}
}

// Start begins or resumes a campaign run. The provider must exist and be
// enabled, the adapter must be constructible, and at least one recipient
// must be pending; any of these failing aborts before a single send.
func (d *Dispatcher) Start(ctx context.Context, campaignID, providerID string) error {
	d.mu.Lock()
	if _, active := d.runs[campaignID]; active {
		d.mu.Unlock()
		return ErrAlreadyRunning
	}
	d.mu.Unlock()

	c, err := d.store.GetCampaign(ctx, campaignID)
	if err != nil {
		return err
	}
	switch c.Status {
	case domain.CampaignDraft, domain.CampaignPaused, domain.CampaignSending:
		// sending without an active run means a previous process died;
		// resuming is safe because resume is idempotent.
	default:
		return fmt.Errorf("%w: status %s", ErrInvalidState, c.Status)
	}

	provider, err := d.store.GetProvider(ctx, providerID)
	if err != nil {
		return err
	}
	if !provider.Enabled {
		return ErrProviderDisabled
	}

	snd, err := d.newSender(provider)
	if err != nil {
		return fmt.Errorf("provider adapter: %w", err)
	}

	pending, err := d.store.CountPending(ctx, campaignID)
	if err != nil {
		return err
	}
	if pending == 0 {
		return ErrNoPending
	}

	lock := d.newLock(campaignID)
	acquired, err := lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("run lock: %w", err)
	}
	if !acquired {
		return ErrAlreadyRunning
	}

	if err := d.store.UpdateCampaignStatus(ctx, campaignID, domain.CampaignSending); err != nil {
		_ = lock.Release(ctx)
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	r := &run{
		campaign: c,
		send:     snd,
		provider: provider,
		tracker:  newTracker(campaignID, c.TotalRecipients, c.SentCount, c.FailedCount, c.SkippedCount),
		ctx:      runCtx,
		cancel:   cancel,
		pauseCh:  make(chan struct{}),
		done:     make(chan struct{}),
	}

	d.mu.Lock()
	if _, active := d.runs[campaignID]; active {
		d.mu.Unlock()
		cancel()
		_ = lock.Release(ctx)
		return ErrAlreadyRunning
	}
	d.runs[campaignID] = r
	d.mu.Unlock()

	logger.Info("campaign run started",
		"campaign_id", campaignID,
		"provider", string(provider.Type),
		"pending", pending)

	go d.runLoop(r, lock)
	return nil
}

// Pause requests a cooperative stop. The in-flight recipient finishes
// first; the loop persists the paused status before exiting.
func (d *Dispatcher) Pause(campaignID string) error {
	d.mu.Lock()
	r, ok := d.runs[campaignID]
	d.mu.Unlock()
	if !ok {
		return ErrNotRunning
	}
	r.requestPause()
	return nil
}

// Running reports whether a run is active in this process.
func (d *Dispatcher) Running(campaignID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.runs[campaignID]
	return ok
}

// Progress returns the live snapshot for an active run, or a snapshot
// built from the stored campaign when no run is active.
func (d *Dispatcher) Progress(ctx context.Context, campaignID string) (Progress, error) {
	d.mu.Lock()
	r, ok := d.runs[campaignID]
	d.mu.Unlock()
	if ok {
		return r.tracker.snapshot(), nil
	}

	c, err := d.store.GetCampaign(ctx, campaignID)
	if err != nil {
		return Progress{}, err
	}
	p := Progress{
		CampaignID: campaignID,
		Status:     string(c.Status),
		Total:      c.TotalRecipients,
		Sent:       c.SentCount,
		Failed:     c.FailedCount,
		Skipped:    c.SkippedCount,
	}
	p.Remaining = p.Total - p.Sent - p.Failed - p.Skipped
	if p.Remaining < 0 {
		p.Remaining = 0
	}
	return p, nil
}

// Shutdown pauses every active run and waits for the workers to persist
// their state, or until the context expires.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	active := make([]*run, 0, len(d.runs))
	for _, r := range d.runs {
		active = append(active, r)
	}
	d.mu.Unlock()

	for _, r := range active {
		r.requestPause()
	}
	for _, r := range active {
		select {
		case <-r.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (d *Dispatcher) unregister(campaignID string) {
	d.mu.Lock()
	delete(d.runs, campaignID)
	d.mu.Unlock()
}
