package dispatch

import (
	"sync"
	"time"
)

// rateWindowSize bounds the sliding window used for throughput: the rate
// reflects the last N sends, not the lifetime average, so a throttle
// change shows up in the ETA quickly.
const rateWindowSize = 50

// Progress is a point-in-time snapshot of a campaign run.
type Progress struct {
	CampaignID string  `json:"campaign_id"`
	Status     string  `json:"status"`
	Total      int     `json:"total"`
	Sent       int     `json:"sent"`
	Failed     int     `json:"failed"`
	Skipped    int     `json:"skipped"`
	Remaining  int     `json:"remaining"`
	Rate       float64 `json:"rate"`        // messages per second over the window
	ETASeconds float64 `json:"eta_seconds"` // 0 when the rate is unknown
}

// tracker accumulates run counters. Reads never block the run for longer
// than a counter copy.
type tracker struct {
	mu         sync.Mutex
	campaignID string
	status     string
	total      int
	sent       int
	failed     int
	skipped    int
	window     []time.Time
}

func newTracker(campaignID string, total, sent, failed, skipped int) *tracker {
	return &tracker{
		campaignID: campaignID,
		status:     "sending",
		total:      total,
		sent:       sent,
		failed:     failed,
		skipped:    skipped,
	}
}

func (t *tracker) recordSent() {
	t.mu.Lock()
	t.sent++
	t.window = append(t.window, time.Now())
	if len(t.window) > rateWindowSize {
		t.window = t.window[1:]
	}
	t.mu.Unlock()
}

func (t *tracker) recordFailed() {
	t.mu.Lock()
	t.failed++
	t.window = append(t.window, time.Now())
	if len(t.window) > rateWindowSize {
		t.window = t.window[1:]
	}
	t.mu.Unlock()
}

func (t *tracker) recordSkipped() {
	t.mu.Lock()
	t.skipped++
	t.mu.Unlock()
}

func (t *tracker) setStatus(status string) {
	t.mu.Lock()
	t.status = status
	t.mu.Unlock()
}

// snapshot computes the current progress including windowed rate and ETA.
func (t *tracker) snapshot() Progress {
	t.mu.Lock()
	defer t.mu.Unlock()

	p := Progress{
		CampaignID: t.campaignID,
		Status:     t.status,
		Total:      t.total,
		Sent:       t.sent,
		Failed:     t.failed,
		Skipped:    t.skipped,
	}
	p.Remaining = t.total - t.sent - t.failed - t.skipped
	if p.Remaining < 0 {
		p.Remaining = 0
	}

	if len(t.window) >= 2 {
		elapsed := t.window[len(t.window)-1].Sub(t.window[0]).Seconds()
		if elapsed > 0 {
			p.Rate = float64(len(t.window)-1) / elapsed
		}
	}
	if p.Rate > 0 {
		p.ETASeconds = float64(p.Remaining) / p.Rate
	}
	return p
}
