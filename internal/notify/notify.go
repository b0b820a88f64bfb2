// Package notify delivers bulk notices for a production to an outside system.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"studioline/internal/config"
)

const defaultTimeout = 5 * time.Second

// Notice is one message addressed to every notification target of a production.
type Notice struct {
	ProductionID string   `json:"production_id"`
	ProjectRefID string   `json:"project_ref_id"`
	Title        string   `json:"title"`
	Subject      string   `json:"subject"`
	Body         string   `json:"body"`
	Recipients   []string `json:"recipients"`
	SentBy       string   `json:"sent_by"`
	SentAt       string   `json:"sent_at"`
}

type Notifier interface {
	Send(ctx context.Context, n Notice) error
}

// Noop accepts every notice and delivers nothing.
type Noop struct{}

func (Noop) Send(context.Context, Notice) error { return nil }

// Webhook posts each notice as JSON to a single URL.
type Webhook struct {
	URL    string
	Secret string
	Client *http.Client
	Log    *zap.Logger
}

// FromConfig returns a Webhook when a URL is configured and Noop otherwise.
func FromConfig(cfg config.Notifications, log *zap.Logger) Notifier {
	if strings.TrimSpace(cfg.WebhookURL) == "" {
		return Noop{}
	}
	timeout := defaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	return &Webhook{
		URL:    cfg.WebhookURL,
		Secret: cfg.Secret,
		Client: &http.Client{Timeout: timeout},
		Log:    log,
	}
}

func (w *Webhook) Send(ctx context.Context, n Notice) error {
	data, err := json.Marshal(n)
	if err != nil {
		return err
	}
	client := w.Client
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Studioline-Event", "notice.sent")
	req.Header.Set("X-Studioline-Production", n.ProjectRefID)
	if strings.TrimSpace(w.Secret) != "" {
		req.Header.Set("X-Studioline-Secret", w.Secret)
	}
	res, err := client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return fmt.Errorf("status %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}
	if w.Log != nil {
		w.Log.Debug("notice delivered",
			zap.String("production", n.ProjectRefID),
			zap.Int("recipients", len(n.Recipients)))
	}
	return nil
}
