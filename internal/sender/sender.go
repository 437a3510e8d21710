// Package sender contains the delivery adapters, one per email provider.
// Adapters report delivery outcomes as values rather than errors: a
// rejected recipient is a normal result of sending, not a failure of the
// adapter itself.
package sender

import (
	"context"
	"fmt"

	"github.com/ignite/bulkmailer/internal/domain"
)

// Message is a fully rendered, single-recipient email ready for delivery.
type Message struct {
	To        string
	Subject   string
	BodyHTML  string
	BodyText  string
	FromEmail string
	FromName  string
	ReplyTo   string
	Headers   map[string]string
}

// OutcomeKind classifies a delivery attempt.
type OutcomeKind string

const (
	// Accepted means the provider took responsibility for the message.
	Accepted OutcomeKind = "accepted"
	// PermanentFailure means retrying the same message cannot succeed
	// (rejected address, auth failure, malformed request).
	PermanentFailure OutcomeKind = "permanent_failure"
	// TransientFailure means the attempt may succeed if retried
	// (timeout, network error, rate limit, provider 5xx).
	TransientFailure OutcomeKind = "transient_failure"
)

// Outcome is the result of a single delivery attempt.
type Outcome struct {
	Kind      OutcomeKind
	MessageID string
	Reason    string
	Raw       string
}

// Retryable reports whether the dispatch loop should attempt this
// recipient again.
func (o Outcome) Retryable() bool {
	return o.Kind == TransientFailure
}

func accepted(messageID, raw string) Outcome {
	return Outcome{Kind: Accepted, MessageID: messageID, Raw: raw}
}

func permanent(reason, raw string) Outcome {
	return Outcome{Kind: PermanentFailure, Reason: reason, Raw: raw}
}

func transient(reason, raw string) Outcome {
	return Outcome{Kind: TransientFailure, Reason: reason, Raw: raw}
}

// Sender delivers a single message through one provider. Send returns an
// error only for conditions that make the adapter unusable; per-recipient
// results are carried in the Outcome.
type Sender interface {
	Send(ctx context.Context, msg *Message) (Outcome, error)
	TestConnection(ctx context.Context) error
	Provider() domain.ProviderType
}

func formatFrom(email, name string) string {
	if name == "" {
		return email
	}
	return fmt.Sprintf("%s <%s>", name, email)
}
