package bounce

import (
	"context"
	"time"

	"github.com/ignite/bulkmailer/internal/pkg/logger"
)

// FeedbackMessage is one raw notification pulled from a mailbox.
type FeedbackMessage struct {
	Raw           string
	SourceAccount string
}

// FeedbackSource drains pending feedback messages. Fetch returns the
// available batch and marks the messages consumed; an empty slice means
// the mailbox is drained.
type FeedbackSource interface {
	Fetch(ctx context.Context) ([]FeedbackMessage, error)
}

// Poller drains a feedback source on a fixed interval and feeds each
// message through the processor.
type Poller struct {
	source    FeedbackSource
	processor *Processor
	interval  time.Duration
}

// NewPoller creates a poller. Interval must be positive.
func NewPoller(source FeedbackSource, processor *Processor, interval time.Duration) *Poller {
	return &Poller{source: source, processor: processor, interval: interval}
}

// Run polls until the context is cancelled. A failing fetch or a failing
// message is logged and skipped; the loop itself only stops on cancel.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	logger.Info("bounce poller started", "interval", p.interval.String())
	for {
		select {
		case <-ctx.Done():
			logger.Info("bounce poller stopped")
			return
		case <-ticker.C:
			p.drain(ctx)
		}
	}
}

func (p *Poller) drain(ctx context.Context) {
	msgs, err := p.source.Fetch(ctx)
	if err != nil {
		logger.Warn("feedback fetch failed", "error", err.Error())
		return
	}
	for _, msg := range msgs {
		if _, err := p.processor.Process(ctx, msg.Raw, msg.SourceAccount); err != nil {
			logger.Error("bounce processing failed", "source", msg.SourceAccount, "error", err.Error())
		}
	}
	if len(msgs) > 0 {
		logger.Info("feedback batch processed", "count", len(msgs))
	}
}
