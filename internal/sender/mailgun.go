package sender

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/ignite/bulkmailer/internal/domain"
)

// MailgunSender sends through the Mailgun v3 Messages API.
type MailgunSender struct {
	apiKey  string
	domain  string
	baseURL string
	client  *http.Client
}

// NewMailgunSender builds a Mailgun adapter. Region "eu" routes through
// the EU API host, anything else through the US host.
func NewMailgunSender(cfg *domain.ProviderConfig) (*MailgunSender, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("mailgun api key not configured")
	}
	if cfg.Domain == "" {
		return nil, fmt.Errorf("mailgun sending domain not configured")
	}
	baseURL := "https://api.mailgun.net"
	if cfg.Region == "eu" {
		baseURL = "https://api.eu.mailgun.net"
	}
	return &MailgunSender{
		apiKey:  cfg.APIKey,
		domain:  cfg.Domain,
		baseURL: baseURL,
		client:  &http.Client{Timeout: cfg.Timeout()},
	}, nil
}

func (s *MailgunSender) Provider() domain.ProviderType { return domain.ProviderMailgun }

// Send posts one form-encoded message to /v3/<domain>/messages.
func (s *MailgunSender) Send(ctx context.Context, msg *Message) (Outcome, error) {
	form := url.Values{}
	form.Set("from", formatFrom(msg.FromEmail, msg.FromName))
	form.Set("to", msg.To)
	form.Set("subject", msg.Subject)
	form.Set("html", msg.BodyHTML)
	form.Set("text", textBody(msg))
	if msg.ReplyTo != "" {
		form.Set("h:Reply-To", msg.ReplyTo)
	}

	endpoint := fmt.Sprintf("%s/v3/%s/messages", s.baseURL, s.domain)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return Outcome{}, fmt.Errorf("mailgun request: %w", err)
	}
	req.SetBasicAuth("api", s.apiKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return classifyTransportError("mailgun", err), nil
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	switch classifyHTTPStatus(resp.StatusCode) {
	case Accepted:
		var result struct {
			ID      string `json:"id"`
			Message string `json:"message"`
		}
		_ = json.Unmarshal(respBody, &result)
		return accepted(strings.Trim(result.ID, "<>"), result.Message), nil
	case PermanentFailure:
		return permanent(fmt.Sprintf("mailgun rejected request: %d", resp.StatusCode), string(respBody)), nil
	default:
		return transient(fmt.Sprintf("mailgun error: %d", resp.StatusCode), string(respBody)), nil
	}
}

// TestConnection checks the key against the domain stats endpoint.
func (s *MailgunSender) TestConnection(ctx context.Context) error {
	endpoint := fmt.Sprintf("%s/v3/%s/stats/total?event=accepted&duration=1h", s.baseURL, s.domain)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.SetBasicAuth("api", s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("mailgun connection: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("mailgun credential check failed: status %d", resp.StatusCode)
	}
	return nil
}
