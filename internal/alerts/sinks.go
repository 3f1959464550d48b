package alerts

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/smtp"
	"strings"
	"time"

	"trendwatch/internal/config"
	"trendwatch/internal/core"
)

// WebhookSink POSTs alert payloads as JSON to a configured URL.
type WebhookSink struct {
	url    string
	client *http.Client
}

// NewWebhookSink builds a webhook sink.
func NewWebhookSink(url string) *WebhookSink {
	return &WebhookSink{
		url:    url,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

func (w *WebhookSink) Name() string {
	return "webhook"
}

// Send delivers one payload. Any non-2xx response is a failure.
func (w *WebhookSink) Send(ctx context.Context, payload core.AlertPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal alert payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// smtpTimeout bounds the dial and every read/write on the SMTP connection.
const smtpTimeout = 30 * time.Second

// EmailSink sends alert payloads as plain-text email over SMTP.
type EmailSink struct {
	addr string
	user string
	pass string
	to   string

	// send is swappable for tests.
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewEmailSink builds an email sink from alert configuration.
func NewEmailSink(cfg config.Alerts) *EmailSink {
	addr := cfg.EmailSMTP
	if !strings.Contains(addr, ":") {
		addr += ":587"
	}
	return &EmailSink{
		addr: addr,
		user: cfg.EmailUser,
		pass: cfg.EmailPass,
		to:   cfg.EmailTo,
		send: sendMail,
	}
}

// sendMail is smtp.SendMail with a connection deadline, so a hung server
// cannot stall an alert pass.
func sendMail(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
	conn, err := net.DialTimeout("tcp", addr, smtpTimeout)
	if err != nil {
		return err
	}
	conn.SetDeadline(time.Now().Add(smtpTimeout))

	host, _, _ := net.SplitHostPort(addr)
	c, err := smtp.NewClient(conn, host)
	if err != nil {
		conn.Close()
		return err
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: host}); err != nil {
			return err
		}
	}
	if a != nil {
		if ok, _ := c.Extension("AUTH"); ok {
			if err := c.Auth(a); err != nil {
				return err
			}
		}
	}
	if err := c.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return err
		}
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}

func (e *EmailSink) Name() string {
	return "email"
}

// Send delivers one payload as a plain-text message.
func (e *EmailSink) Send(ctx context.Context, payload core.AlertPayload) error {
	host := e.addr[:strings.LastIndex(e.addr, ":")]
	auth := smtp.PlainAuth("", e.user, e.pass, host)

	subject := fmt.Sprintf("Trending Alert: %s", payload.Entity)
	body := fmt.Sprintf(
		"Entity: %s\nSource: %s\nTrend Score: %.2f\nCurrent Mentions: %d\nGrowth Rate: %.1f%%\nAlert Type: %s\nTime: %s\n\n%s\n",
		payload.Entity,
		payload.SourceKind,
		payload.TrendScore,
		payload.CurrentCount,
		payload.GrowthRate*100,
		payload.Kind,
		payload.Timestamp.Format(time.RFC3339),
		payload.Message,
	)

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", e.user)
	fmt.Fprintf(&msg, "To: %s\r\n", e.to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	msg.WriteString(body)

	// The smtp package is not context-aware; run the send aside so a
	// cancelled context returns promptly. The connection deadline in
	// sendMail reaps the goroutine.
	done := make(chan error, 1)
	go func() {
		done <- e.send(e.addr, auth, e.user, []string{e.to}, msg.Bytes())
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
