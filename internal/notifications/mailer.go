package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/stmary/giftshop-backend/pkg/config"
	"github.com/stmary/giftshop-backend/pkg/logger"
)

const sendgridEndpoint = "https://api.sendgrid.com/v3/mail/send"

// Email is one rendered message.
type Email struct {
	To      string
	ToName  string
	Subject string
	HTML    string
	Text    string
}

// Mailer hands a message to a provider.
type Mailer interface {
	Send(ctx context.Context, email Email) error
}

// SendGridMailer posts messages to the SendGrid v3 mail API.
type SendGridMailer struct {
	apiKey     string
	fromEmail  string
	fromName   string
	endpoint   string
	httpClient *http.Client
}

func NewSendGridMailer(cfg config.SendgridConfig) (*SendGridMailer, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("sendgrid api key is required")
	}
	return &SendGridMailer{
		apiKey:     cfg.APIKey,
		fromEmail:  cfg.DefaultFrom,
		fromName:   cfg.FromName,
		endpoint:   sendgridEndpoint,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}, nil
}

type sgAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type sgContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sgPersonalization struct {
	To []sgAddress `json:"to"`
}

type sgRequest struct {
	Personalizations []sgPersonalization `json:"personalizations"`
	From             sgAddress           `json:"from"`
	Subject          string              `json:"subject"`
	Content          []sgContent         `json:"content"`
}

func (m *SendGridMailer) Send(ctx context.Context, email Email) error {
	content := make([]sgContent, 0, 2)
	if email.Text != "" {
		content = append(content, sgContent{Type: "text/plain", Value: email.Text})
	}
	content = append(content, sgContent{Type: "text/html", Value: email.HTML})
	body, err := json.Marshal(sgRequest{
		Personalizations: []sgPersonalization{{To: []sgAddress{{Email: email.To, Name: email.ToName}}}},
		From:             sgAddress{Email: m.fromEmail, Name: m.fromName},
		Subject:          email.Subject,
		Content:          content,
	})
	if err != nil {
		return fmt.Errorf("encode sendgrid request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+m.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sendgrid request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("sendgrid returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	return nil
}

// LogMailer writes messages to the log instead of sending them.
type LogMailer struct {
	Logger *logger.Logger
}

func (m LogMailer) Send(ctx context.Context, email Email) error {
	logg := m.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	logg.Info(logg.WithFields(ctx, map[string]any{
		"to":      email.To,
		"subject": email.Subject,
	}), "email logged instead of sent")
	return nil
}
