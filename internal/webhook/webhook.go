package webhook

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

	"github.com/slack-go/slack"
)

// Kinds of webhook endpoints.
const (
	KindDiscord = "discord"
	KindSlack   = "slack"
)

// Message is one report as handed to a chat webhook.
type Message struct {
	Header    string
	Body      string
	Username  string
	AvatarURL string
}

// Text joins header and body the way chat clients show them.
func (m Message) Text() string {
	switch {
	case m.Header == "":
		return m.Body
	case m.Body == "":
		return m.Header
	default:
		return m.Header + "\n\n" + m.Body
	}
}

// Deliverer posts a message to a chat.
type Deliverer interface {
	Deliver(ctx context.Context, msg Message) error
}

// Config selects and configures a Deliverer.
type Config struct {
	Kind    string
	URL     string
	Timeout time.Duration
}

// New returns the Deliverer for cfg.Kind; an empty kind means Discord.
func New(cfg Config) (Deliverer, error) {
	if cfg.URL == "" {
		return nil, errors.New("webhook: url is empty")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	client := &http.Client{Timeout: cfg.Timeout}

	switch strings.ToLower(cfg.Kind) {
	case "", KindDiscord:
		return &Discord{url: cfg.URL, client: client}, nil
	case KindSlack:
		return &Slack{url: cfg.URL, client: client}, nil
	default:
		return nil, fmt.Errorf("webhook: unknown kind %q", cfg.Kind)
	}
}

// Discord posts to a Discord webhook URL.
type Discord struct {
	url    string
	client *http.Client
}

type discordEmbed struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Color       int    `json:"color,omitempty"`
}

type discordPayload struct {
	Content     string         `json:"content"`
	Embeds      []discordEmbed `json:"embeds"`
	Username    string         `json:"username,omitempty"`
	AvatarURL   string         `json:"avatar_url,omitempty"`
	Attachments []any          `json:"attachments"`
}

// Deliver sends msg once. Any non-2xx answer is an error.
func (d *Discord) Deliver(ctx context.Context, msg Message) error {
	body, err := json.Marshal(discordPayload{
		Content:     msg.Text(),
		Embeds:      []discordEmbed{},
		Username:    msg.Username,
		AvatarURL:   msg.AvatarURL,
		Attachments: []any{},
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: discord post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("webhook: discord returned %s: %s", resp.Status, strings.TrimSpace(string(snippet)))
	}
	return nil
}

// Slack posts to a Slack incoming-webhook URL.
type Slack struct {
	url    string
	client *http.Client
}

func (s *Slack) Deliver(ctx context.Context, msg Message) error {
	err := slack.PostWebhookCustomHTTPContext(ctx, s.url, s.client, &slack.WebhookMessage{
		Text:     msg.Text(),
		Username: msg.Username,
		IconURL:  msg.AvatarURL,
	})
	if err != nil {
		return fmt.Errorf("webhook: slack post: %w", err)
	}
	return nil
}
