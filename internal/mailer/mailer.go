// Package mailer delivers notification email through the Mailjet v3.1 REST
// API. When no API keys are configured a noop implementation is returned so
// callers never have to branch on whether mail is enabled.
package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/headstone-world/stoneledger/internal/config"
)

// Sender is the notification surface the worker depends on.
type Sender interface {
	Send(ctx context.Context, toEmail, subject, text string) error
}

// New builds a Sender from configuration.
func New(cfg *config.Config) Sender {
	if !cfg.MailEnabled() {
		return noopSender{}
	}
	return &mailjetSender{
		baseURL:   cfg.MailjetBaseURL,
		apiKey:    cfg.MailjetAPIKey,
		secretKey: cfg.MailjetSecretKey,
		fromEmail: cfg.MailFrom,
		fromName:  cfg.MailFromName,
		client:    &http.Client{Timeout: 10 * time.Second},
	}
}

type noopSender struct{}

func (noopSender) Send(context.Context, string, string, string) error { return nil }

type mailjetSender struct {
	baseURL   string
	apiKey    string
	secretKey string
	fromEmail string
	fromName  string
	client    *http.Client
}

// sendRequest mirrors the Mailjet v3.1 /send payload.
type sendRequest struct {
	Messages []message `json:"Messages"`
}

type message struct {
	From     address   `json:"From"`
	To       []address `json:"To"`
	Subject  string    `json:"Subject"`
	TextPart string    `json:"TextPart"`
}

type address struct {
	Email string `json:"Email"`
	Name  string `json:"Name,omitempty"`
}

func (m *mailjetSender) Send(ctx context.Context, toEmail, subject, text string) error {
	payload := sendRequest{Messages: []message{{
		From:     address{Email: m.fromEmail, Name: m.fromName},
		To:       []address{{Email: toEmail}},
		Subject:  subject,
		TextPart: text,
	}}}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal mail payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/v3.1/send", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build mail request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(m.apiKey, m.secretKey)
	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("mailjet responded %d: %s", resp.StatusCode, detail)
	}
	return nil
}
