package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/kjannette/coinledger/internal/httputil"
	"github.com/kjannette/coinledger/internal/pricesync"
)

type Sender struct {
	webhookURL string
	botName    string
	httpClient *http.Client
	retry      httputil.RetryConfig
	log        *slog.Logger
}

func NewSender(webhookURL, botName string, log *slog.Logger) *Sender {
	if botName == "" {
		botName = "CoinLedger"
	}
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "notifications")
	return &Sender{
		webhookURL: webhookURL,
		botName:    botName,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		retry: httputil.RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   1 * time.Second,
			MaxDelay:    5 * time.Second,
			Logger:      log,
		},
		log: log,
	}
}

// Send logs msg and posts it to the webhook when one is configured.
func (s *Sender) Send(ctx context.Context, msg string) error {
	formatted := fmt.Sprintf("[%s] %s", s.botName, msg)
	s.log.Info("notification", "msg", formatted)

	if s.webhookURL == "" {
		return nil
	}

	body, err := json.Marshal(s.formatPayload(formatted))
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	resp, err := httputil.Do(ctx, s.httpClient, s.retry, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return fmt.Errorf("send webhook: %w", err)
	}
	resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// SyncFailures posts a summary of the coins that failed in rep. It does
// nothing when every coin synced.
func (s *Sender) SyncFailures(ctx context.Context, rep pricesync.Report) error {
	msg := FormatSyncFailures(rep)
	if msg == "" {
		return nil
	}
	return s.Send(ctx, msg)
}

func FormatSyncFailures(rep pricesync.Report) string {
	failed := rep.Failed()
	if len(failed) == 0 {
		return ""
	}
	parts := make([]string, 0, len(failed))
	for _, res := range failed {
		parts = append(parts, fmt.Sprintf("%s (%v)", res.CoinID, res.Err))
	}
	return fmt.Sprintf("Price refresh: %d of %d coins failed: %s",
		len(failed), len(rep.Results), strings.Join(parts, "; "))
}

func (s *Sender) formatPayload(msg string) map[string]string {
	if strings.Contains(s.webhookURL, "discord") {
		return map[string]string{
			"content":  msg,
			"username": s.botName,
		}
	}
	return map[string]string{
		"text":     fmt.Sprintf("`%s`", msg),
		"username": s.botName,
	}
}

func (s *Sender) Enabled() bool {
	return s.webhookURL != ""
}
