package dispatch

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/bulkmailer/internal/domain"
	"github.com/ignite/bulkmailer/internal/pkg/distlock"
	"github.com/ignite/bulkmailer/internal/pkg/logger"
	"github.com/ignite/bulkmailer/internal/sender"
	"github.com/ignite/bulkmailer/internal/template"
)

// recipientResult is how one recipient's processing ended.
type recipientResult int

const (
	resultProcessed recipientResult = iota // sent or failed, throttle applies
	resultSkipped                          // suppression skip, no throttle
	resultInterrupted                      // pause/cancel observed, recipient left pending
	resultFatal                            // storage or adapter breakage, run aborts
)

// runLoop drives one campaign to pause, completion, or failure. It is
// the only writer of the campaign's recipients while the run lock is
// held.
func (d *Dispatcher) runLoop(r *run, lock distlock.DistLock) {
	campaignID := r.campaign.ID
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := lock.Release(releaseCtx); err != nil {
			logger.Warn("run lock release failed", "campaign_id", campaignID, "error", err.Error())
		}
		cancel()
		d.unregister(campaignID)
		r.cancel()
		close(r.done)
	}()

	for {
		if r.pauseRequested() {
			d.persistStatus(campaignID, domain.CampaignPaused)
			r.tracker.setStatus(string(domain.CampaignPaused))
			logger.Info("campaign run paused", "campaign_id", campaignID)
			return
		}

		batch, err := d.store.PendingRecipients(r.ctx, campaignID, d.opts.BatchSize)
		if err != nil {
			d.failRun(campaignID, r, "recipient fetch failed", err)
			return
		}
		if len(batch) == 0 {
			d.persistStatus(campaignID, domain.CampaignCompleted)
			r.tracker.setStatus(string(domain.CampaignCompleted))
			logger.Info("campaign run completed", "campaign_id", campaignID,
				"sent", r.tracker.snapshot().Sent, "failed", r.tracker.snapshot().Failed)
			return
		}

		for i := range batch {
			if r.pauseRequested() {
				d.persistStatus(campaignID, domain.CampaignPaused)
				r.tracker.setStatus(string(domain.CampaignPaused))
				logger.Info("campaign run paused", "campaign_id", campaignID)
				return
			}

			// Throttled runs outlast the lock TTL; keep it alive so no
			// replica starts a second run mid-campaign.
			if err := lock.Extend(r.ctx); err != nil {
				logger.Warn("run lock extend failed", "campaign_id", campaignID, "error", err.Error())
			}

			result, fatalErr := d.processRecipient(r, &batch[i])
			switch result {
			case resultFatal:
				d.failRun(campaignID, r, "recipient processing failed", fatalErr)
				return
			case resultInterrupted:
				d.persistStatus(campaignID, domain.CampaignPaused)
				r.tracker.setStatus(string(domain.CampaignPaused))
				logger.Info("campaign run paused mid-retry", "campaign_id", campaignID)
				return
			case resultProcessed:
				// Throttle paces sends and failures; skips consume no
				// provider capacity and no delay.
				if !r.sleep(r.campaign.Throttle()) {
					continue // pause observed, handled at loop top
				}
			case resultSkipped:
			}
		}
	}
}

// processRecipient runs the full per-recipient pipeline: suppression
// gate, render, bounded delivery attempts, persistence.
func (d *Dispatcher) processRecipient(r *run, rec *domain.Recipient) (recipientResult, error) {
	ctx := r.ctx
	campaignID := r.campaign.ID
	email := domain.NormalizeEmail(rec.Email)

	if d.suppression != nil && d.suppression.IsSuppressed(email) {
		if err := d.store.MarkRecipientSkipped(ctx, rec.ID); err != nil {
			return resultFatal, err
		}
		if err := d.appendLog(ctx, r, rec, domain.LogStatusSkipped, "", "suppressed"); err != nil {
			return resultFatal, err
		}
		if err := d.store.IncrementCounters(ctx, campaignID, 0, 0, 1); err != nil {
			return resultFatal, err
		}
		r.tracker.recordSkipped()
		logger.Debug("recipient skipped", "campaign_id", campaignID, "email", email)
		return resultSkipped, nil
	}

	subject, bodyHTML, bodyText := template.RenderAll(
		r.campaign.Subject, r.campaign.BodyHTML, r.campaign.BodyText, rec.Fields)

	msg := &sender.Message{
		To:        email,
		Subject:   subject,
		BodyHTML:  bodyHTML,
		BodyText:  bodyText,
		FromEmail: r.campaign.FromEmail,
		FromName:  r.campaign.FromName,
		ReplyTo:   r.campaign.ReplyTo,
	}

	var last sender.Outcome
	for attempt := 1; attempt <= d.opts.MaxAttempts; attempt++ {
		out, err := r.send.Send(ctx, msg)
		if err != nil {
			// Adapter-level errors are config-fatal for the whole run.
			return resultFatal, err
		}
		last = out

		switch out.Kind {
		case sender.Accepted:
			if err := d.appendLog(ctx, r, rec, domain.LogStatusSent, out.MessageID, out.Raw); err != nil {
				return resultFatal, err
			}
			if err := d.store.MarkRecipientSent(ctx, rec.ID, out.MessageID, attempt, time.Now().UTC()); err != nil {
				return resultFatal, err
			}
			if err := d.store.IncrementCounters(ctx, campaignID, 1, 0, 0); err != nil {
				return resultFatal, err
			}
			r.tracker.recordSent()
			return resultProcessed, nil

		case sender.PermanentFailure:
			if err := d.appendLog(ctx, r, rec, domain.LogStatusFailed, "", out.Reason); err != nil {
				return resultFatal, err
			}
			if err := d.markFailed(ctx, r, rec, out.Reason, attempt); err != nil {
				return resultFatal, err
			}
			return resultProcessed, nil

		case sender.TransientFailure:
			if err := d.appendLog(ctx, r, rec, domain.LogStatusFailed, "", out.Reason); err != nil {
				return resultFatal, err
			}
			if attempt < d.opts.MaxAttempts {
				// Base delay doubles for each further retry.
				backoff := d.opts.RetryBackoff << (attempt - 1)
				if !r.sleep(backoff) {
					// Pause observed mid-backoff: the recipient stays
					// pending and is retried fresh on resume.
					return resultInterrupted, nil
				}
			}
		}
	}

	if err := d.markFailed(ctx, r, rec, last.Reason, d.opts.MaxAttempts); err != nil {
		return resultFatal, err
	}
	return resultProcessed, nil
}

func (d *Dispatcher) markFailed(ctx context.Context, r *run, rec *domain.Recipient, reason string, attempts int) error {
	if err := d.store.MarkRecipientFailed(ctx, rec.ID, reason, attempts); err != nil {
		return err
	}
	if err := d.store.IncrementCounters(ctx, r.campaign.ID, 0, 1, 0); err != nil {
		return err
	}
	r.tracker.recordFailed()
	logger.Warn("recipient failed", "campaign_id", r.campaign.ID, "email", rec.Email, "reason", reason)
	return nil
}

func (d *Dispatcher) appendLog(ctx context.Context, r *run, rec *domain.Recipient, status, messageID, response string) error {
	return d.store.AppendSendLog(ctx, &domain.SendLogEntry{
		ID:          uuid.New().String(),
		CampaignID:  r.campaign.ID,
		RecipientID: rec.ID,
		Email:       rec.Email,
		Provider:    r.provider.Type,
		ProviderID:  r.provider.ID,
		Status:      status,
		MessageID:   messageID,
		Response:    response,
		Timestamp:   time.Now().UTC(),
	})
}

// persistStatus writes a terminal-or-paused status with a context
// independent of the (possibly cancelled) run context.
func (d *Dispatcher) persistStatus(campaignID string, status domain.CampaignStatus) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := d.store.UpdateCampaignStatus(ctx, campaignID, status); err != nil {
		logger.Error("campaign status persist failed",
			"campaign_id", campaignID, "status", string(status), "error", err.Error())
	}
}

func (d *Dispatcher) failRun(campaignID string, r *run, msg string, err error) {
	d.persistStatus(campaignID, domain.CampaignFailed)
	r.tracker.setStatus(string(domain.CampaignFailed))
	logger.Error("campaign run failed", "campaign_id", campaignID, "cause", msg, "error", err.Error())
}
