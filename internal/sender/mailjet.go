package sender

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/ignite/bulkmailer/internal/domain"
)

const mailjetDefaultBaseURL = "https://api.mailjet.com"

// MailjetSender sends through the Mailjet Send API v3.1.
type MailjetSender struct {
	apiKey    string
	apiSecret string
	baseURL   string
	client    *http.Client
}

// NewMailjetSender builds a Mailjet adapter from a provider record.
func NewMailjetSender(cfg *domain.ProviderConfig) (*MailjetSender, error) {
	if cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, fmt.Errorf("mailjet api key pair not configured")
	}
	return &MailjetSender{
		apiKey:    cfg.APIKey,
		apiSecret: cfg.APISecret,
		baseURL:   mailjetDefaultBaseURL,
		client:    &http.Client{Timeout: cfg.Timeout()},
	}, nil
}

func (s *MailjetSender) Provider() domain.ProviderType { return domain.ProviderMailjet }

type mailjetParty struct {
	Email string `json:"Email"`
	Name  string `json:"Name,omitempty"`
}

type mailjetMessage struct {
	From     mailjetParty   `json:"From"`
	To       []mailjetParty `json:"To"`
	ReplyTo  *mailjetParty  `json:"ReplyTo,omitempty"`
	Subject  string         `json:"Subject"`
	HTMLPart string         `json:"HTMLPart"`
	TextPart string         `json:"TextPart"`
}

type mailjetResponse struct {
	Messages []struct {
		Status string `json:"Status"`
		To     []struct {
			MessageID int64 `json:"MessageID"`
		} `json:"To"`
		Errors []struct {
			ErrorMessage string `json:"ErrorMessage"`
		} `json:"Errors"`
	} `json:"Messages"`
}

// Send posts one message to /v3.1/send. Mailjet can return 200 with a
// per-message error status, so both levels are checked.
func (s *MailjetSender) Send(ctx context.Context, msg *Message) (Outcome, error) {
	payload := struct {
		Messages []mailjetMessage `json:"Messages"`
	}{
		Messages: []mailjetMessage{{
			From:     mailjetParty{Email: msg.FromEmail, Name: msg.FromName},
			To:       []mailjetParty{{Email: msg.To}},
			Subject:  msg.Subject,
			HTMLPart: msg.BodyHTML,
			TextPart: textBody(msg),
		}},
	}
	if msg.ReplyTo != "" {
		payload.Messages[0].ReplyTo = &mailjetParty{Email: msg.ReplyTo}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return Outcome{}, fmt.Errorf("mailjet payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v3.1/send", bytes.NewReader(body))
	if err != nil {
		return Outcome{}, fmt.Errorf("mailjet request: %w", err)
	}
	req.SetBasicAuth(s.apiKey, s.apiSecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return classifyTransportError("mailjet", err), nil
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	switch classifyHTTPStatus(resp.StatusCode) {
	case Accepted:
		var result mailjetResponse
		_ = json.Unmarshal(respBody, &result)
		if len(result.Messages) == 0 {
			return transient("mailjet returned empty result", string(respBody)), nil
		}
		first := result.Messages[0]
		if first.Status != "success" {
			reason := "mailjet message error"
			if len(first.Errors) > 0 {
				reason = first.Errors[0].ErrorMessage
			}
			return permanent(reason, string(respBody)), nil
		}
		messageID := ""
		if len(first.To) > 0 {
			messageID = strconv.FormatInt(first.To[0].MessageID, 10)
		}
		return accepted(messageID, "success"), nil
	case PermanentFailure:
		return permanent(fmt.Sprintf("mailjet rejected request: %d", resp.StatusCode), string(respBody)), nil
	default:
		return transient(fmt.Sprintf("mailjet error: %d", resp.StatusCode), string(respBody)), nil
	}
}

// TestConnection checks the key pair against the apikey REST resource.
func (s *MailjetSender) TestConnection(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/v3/REST/apikey", nil)
	if err != nil {
		return err
	}
	req.SetBasicAuth(s.apiKey, s.apiSecret)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("mailjet connection: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("mailjet credential check failed: status %d", resp.StatusCode)
	}
	return nil
}
