package sender

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/ignite/bulkmailer/internal/domain"
)

const sendgridDefaultBaseURL = "https://api.sendgrid.com"

// SendGridSender sends through the SendGrid v3 Mail Send API.
type SendGridSender struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewSendGridSender builds a SendGrid adapter from a provider record.
func NewSendGridSender(cfg *domain.ProviderConfig) (*SendGridSender, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("sendgrid api key not configured")
	}
	return &SendGridSender{
		apiKey:  cfg.APIKey,
		baseURL: sendgridDefaultBaseURL,
		client:  &http.Client{Timeout: cfg.Timeout()},
	}, nil
}

func (s *SendGridSender) Provider() domain.ProviderType { return domain.ProviderSendGrid }

type sendgridAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type sendgridContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sendgridPersonalization struct {
	To []sendgridAddress `json:"to"`
}

type sendgridPayload struct {
	Personalizations []sendgridPersonalization `json:"personalizations"`
	From             sendgridAddress           `json:"from"`
	ReplyTo          *sendgridAddress          `json:"reply_to,omitempty"`
	Subject          string                    `json:"subject"`
	Content          []sendgridContent         `json:"content"`
}

// Send posts one message to v3/mail/send. SendGrid replies 202 on accept
// with the provider id in the X-Message-Id header.
func (s *SendGridSender) Send(ctx context.Context, msg *Message) (Outcome, error) {
	payload := sendgridPayload{
		Personalizations: []sendgridPersonalization{{To: []sendgridAddress{{Email: msg.To}}}},
		From:             sendgridAddress{Email: msg.FromEmail, Name: msg.FromName},
		Subject:          msg.Subject,
		Content: []sendgridContent{
			{Type: "text/plain", Value: textBody(msg)},
			{Type: "text/html", Value: msg.BodyHTML},
		},
	}
	if msg.ReplyTo != "" {
		payload.ReplyTo = &sendgridAddress{Email: msg.ReplyTo}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return Outcome{}, fmt.Errorf("sendgrid payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v3/mail/send", bytes.NewReader(body))
	if err != nil {
		return Outcome{}, fmt.Errorf("sendgrid request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return classifyTransportError("sendgrid", err), nil
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	switch classifyHTTPStatus(resp.StatusCode) {
	case Accepted:
		return accepted(resp.Header.Get("X-Message-Id"), fmt.Sprintf("status %d", resp.StatusCode)), nil
	case PermanentFailure:
		return permanent(fmt.Sprintf("sendgrid rejected request: %d", resp.StatusCode), string(respBody)), nil
	default:
		return transient(fmt.Sprintf("sendgrid error: %d", resp.StatusCode), string(respBody)), nil
	}
}

// TestConnection checks the key against the user profile endpoint.
func (s *SendGridSender) TestConnection(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/v3/user/profile", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("sendgrid connection: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("sendgrid credential check failed: status %d", resp.StatusCode)
	}
	return nil
}
