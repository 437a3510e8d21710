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

const postmarkDefaultBaseURL = "https://api.postmarkapp.com"

// PostmarkSender sends through the Postmark Email API. The provider
// record's APIKey carries the server token.
type PostmarkSender struct {
	serverToken string
	baseURL     string
	client      *http.Client
}

// NewPostmarkSender builds a Postmark adapter from a provider record.
func NewPostmarkSender(cfg *domain.ProviderConfig) (*PostmarkSender, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("postmark server token not configured")
	}
	return &PostmarkSender{
		serverToken: cfg.APIKey,
		baseURL:     postmarkDefaultBaseURL,
		client:      &http.Client{Timeout: cfg.Timeout()},
	}, nil
}

func (s *PostmarkSender) Provider() domain.ProviderType { return domain.ProviderPostmark }

type postmarkPayload struct {
	From          string `json:"From"`
	To            string `json:"To"`
	ReplyTo       string `json:"ReplyTo,omitempty"`
	Subject       string `json:"Subject"`
	HTMLBody      string `json:"HtmlBody"`
	TextBody      string `json:"TextBody"`
	MessageStream string `json:"MessageStream"`
}

type postmarkResponse struct {
	MessageID string `json:"MessageID"`
	ErrorCode int    `json:"ErrorCode"`
	Message   string `json:"Message"`
}

// Send posts one message to /email.
func (s *PostmarkSender) Send(ctx context.Context, msg *Message) (Outcome, error) {
	payload := postmarkPayload{
		From:          formatFrom(msg.FromEmail, msg.FromName),
		To:            msg.To,
		ReplyTo:       msg.ReplyTo,
		Subject:       msg.Subject,
		HTMLBody:      msg.BodyHTML,
		TextBody:      textBody(msg),
		MessageStream: "outbound",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return Outcome{}, fmt.Errorf("postmark payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/email", bytes.NewReader(body))
	if err != nil {
		return Outcome{}, fmt.Errorf("postmark request: %w", err)
	}
	req.Header.Set("X-Postmark-Server-Token", s.serverToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return classifyTransportError("postmark", err), nil
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var result postmarkResponse
	_ = json.Unmarshal(respBody, &result)

	switch classifyHTTPStatus(resp.StatusCode) {
	case Accepted:
		return accepted(result.MessageID, result.Message), nil
	case PermanentFailure:
		reason := result.Message
		if reason == "" {
			reason = fmt.Sprintf("postmark rejected request: %d", resp.StatusCode)
		}
		return permanent(reason, string(respBody)), nil
	default:
		return transient(fmt.Sprintf("postmark error: %d", resp.StatusCode), string(respBody)), nil
	}
}

// TestConnection checks the token against the server details endpoint.
func (s *PostmarkSender) TestConnection(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/server", nil)
	if err != nil {
		return err
	}
	req.Header.Set("X-Postmark-Server-Token", s.serverToken)
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("postmark connection: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("postmark credential check failed: status %d", resp.StatusCode)
	}
	return nil
}
