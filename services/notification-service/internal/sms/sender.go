package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type Sender interface {
	Send(ctx context.Context, to string, body string) error
	ProviderID() string
}

// maxSegments caps outgoing texts; longer bodies are truncated with an ellipsis.
const maxSegments = 3

const segmentLen = 153

var ErrNoURL = errors.New("sms webhook url not configured")

// WebhookSender posts messages to a generic JSON SMS gateway.
type WebhookSender struct {
	url      string
	token    string
	senderID string
	http     *http.Client
}

func NewWebhookSender(url string, token string, senderID string) *WebhookSender {
	return &WebhookSender{
		url:      strings.TrimSpace(url),
		token:    strings.TrimSpace(token),
		senderID: strings.TrimSpace(senderID),
		http: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

func (s *WebhookSender) ProviderID() string {
	return "sms-webhook"
}

type webhookPayload struct {
	From string `json:"from,omitempty"`
	To   string `json:"to"`
	Body string `json:"body"`
}

func (s *WebhookSender) Send(ctx context.Context, to string, body string) error {
	if s.url == "" {
		return ErrNoURL
	}
	to = strings.TrimSpace(to)
	if to == "" {
		return errors.New("sms recipient is empty")
	}
	raw, err := json.Marshal(webhookPayload{From: s.senderID, To: to, Body: Truncate(body)})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("sms webhook returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	return nil
}

// Truncate shortens body to at most maxSegments concatenated segments.
func Truncate(body string) string {
	limit := maxSegments * segmentLen
	runes := []rune(strings.TrimSpace(body))
	if len(runes) <= limit {
		return string(runes)
	}
	return string(runes[:limit-1]) + "…"
}

// NoopSender accepts every message; used when no gateway is configured in dev.
type NoopSender struct{}

func NewNoopSender() *NoopSender {
	return &NoopSender{}
}

func (s *NoopSender) ProviderID() string {
	return "sms-noop"
}

func (s *NoopSender) Send(_ context.Context, _ string, _ string) error {
	return nil
}
