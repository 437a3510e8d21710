package sender

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"net/textproto"
	"time"

	"github.com/ignite/bulkmailer/internal/domain"
)

// SMTPSender delivers mail through a generic SMTP relay. Covers both
// plain relays and the SES SMTP interface since they speak the same
// protocol.
type SMTPSender struct {
	host     string
	port     int
	username string
	password string
	useTLS   bool // STARTTLS on the submission port
	useSSL   bool // implicit TLS, typically port 465
	timeout  time.Duration
	provider domain.ProviderType
}

// NewSMTPSender builds an SMTP adapter from a provider record.
func NewSMTPSender(cfg *domain.ProviderConfig) (*SMTPSender, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("smtp host not configured")
	}
	port := cfg.Port
	if port == 0 {
		port = 587
	}
	return &SMTPSender{
		host:     cfg.Host,
		port:     port,
		username: cfg.Username,
		password: cfg.Password,
		useTLS:   cfg.UseTLS,
		useSSL:   cfg.UseSSL,
		timeout:  cfg.Timeout(),
		provider: domain.ProviderSMTP,
	}, nil
}

func (s *SMTPSender) Provider() domain.ProviderType { return s.provider }

// Send performs a full SMTP transaction for one recipient. Reply codes
// drive the outcome: 4xx replies are transient, 5xx permanent (a 535
// auth reject during dial included), and network-level failures
// transient.
func (s *SMTPSender) Send(ctx context.Context, msg *Message) (Outcome, error) {
	raw, messageID := buildMIME(msg, s.host)

	client, err := s.dial(ctx)
	if err != nil {
		return classifySMTPError("connect", err), nil
	}
	defer client.Close()

	if err := client.Mail(msg.FromEmail); err != nil {
		return classifySMTPError("MAIL FROM", err), nil
	}
	if err := client.Rcpt(msg.To); err != nil {
		return classifySMTPError("RCPT TO", err), nil
	}
	w, err := client.Data()
	if err != nil {
		return classifySMTPError("DATA", err), nil
	}
	if _, err := w.Write(raw); err != nil {
		w.Close()
		return transient(fmt.Sprintf("smtp write: %v", err), err.Error()), nil
	}
	if err := w.Close(); err != nil {
		return classifySMTPError("DATA close", err), nil
	}
	_ = client.Quit()

	return accepted(messageID, "250 accepted"), nil
}

// TestConnection dials and authenticates without sending.
func (s *SMTPSender) TestConnection(ctx context.Context) error {
	client, err := s.dial(ctx)
	if err != nil {
		return err
	}
	defer client.Close()
	return client.Noop()
}

func (s *SMTPSender) dial(ctx context.Context) (*smtp.Client, error) {
	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	dialer := &net.Dialer{Timeout: s.timeout}

	var conn net.Conn
	var err error
	if s.useSSL {
		conn, err = tls.DialWithDialer(dialer, "tcp", addr, &tls.Config{ServerName: s.host})
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, s.host)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("smtp handshake: %w", err)
	}

	if s.useTLS && !s.useSSL {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(&tls.Config{ServerName: s.host}); err != nil {
				client.Close()
				return nil, fmt.Errorf("starttls: %w", err)
			}
		}
	}

	if s.username != "" && s.password != "" {
		auth := smtp.PlainAuth("", s.username, s.password, s.host)
		if err := client.Auth(auth); err != nil {
			client.Close()
			return nil, fmt.Errorf("smtp auth: %w", err)
		}
	}
	return client, nil
}

// classifySMTPError maps an SMTP reply to an outcome. The stdlib client
// surfaces replies as *textproto.Error with the reply code.
func classifySMTPError(phase string, err error) Outcome {
	var tpErr *textproto.Error
	if errors.As(err, &tpErr) {
		reason := fmt.Sprintf("smtp %s: %d %s", phase, tpErr.Code, tpErr.Msg)
		if tpErr.Code >= 500 {
			return permanent(reason, err.Error())
		}
		return transient(reason, err.Error())
	}
	return transient(fmt.Sprintf("smtp %s: %v", phase, err), err.Error())
}
