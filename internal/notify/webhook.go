package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Notifier posts export events to a webhook. NewNotifier returns nil when no
// URL is configured, and every method is a no-op on a nil *Notifier.
type Notifier struct {
	webhookURL string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewNotifier(webhookURL string, logger *slog.Logger) *Notifier {
	if webhookURL == "" {
		return nil
	}

	return &Notifier{
		webhookURL: webhookURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

type WebhookPayload struct {
	Event     string    `json:"event"`
	Timestamp time.Time `json:"timestamp"`
	RunID     string    `json:"run_id,omitempty"`
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
	Details   Details   `json:"details,omitempty"`
}

type Details struct {
	Tables       int      `json:"tables,omitempty"`
	Exported     int      `json:"exported,omitempty"`
	Rows         int64    `json:"rows,omitempty"`
	Duration     int64    `json:"duration_ms,omitempty"`
	FailedTables []string `json:"failed_tables,omitempty"`
	Error        string   `json:"error,omitempty"`
}

// RunResult is the outcome of an export run as reported to the webhook.
type RunResult struct {
	RunID        string
	Tables       int
	Exported     int
	Rows         int64
	Duration     time.Duration
	FailedTables []string
}

// NotifyCompleted reports a run that went through its table list. Status is
// "partial" when some tables were skipped.
func (n *Notifier) NotifyCompleted(ctx context.Context, res RunResult) {
	if n == nil {
		return
	}

	status := "success"
	if len(res.FailedTables) > 0 {
		status = "partial"
	}

	payload := WebhookPayload{
		Event:     "export.completed",
		Timestamp: time.Now().UTC(),
		RunID:     res.RunID,
		Status:    status,
		Message:   fmt.Sprintf("Export %s: %d of %d tables exported", res.RunID, res.Exported, res.Tables),
		Details: Details{
			Tables:       res.Tables,
			Exported:     res.Exported,
			Rows:         res.Rows,
			Duration:     res.Duration.Milliseconds(),
			FailedTables: res.FailedTables,
		},
	}

	n.send(ctx, payload)
}

// NotifyFailure reports a run that aborted before exporting its tables.
func (n *Notifier) NotifyFailure(ctx context.Context, runID string, err error) {
	if n == nil {
		return
	}

	payload := WebhookPayload{
		Event:     "export.failed",
		Timestamp: time.Now().UTC(),
		RunID:     runID,
		Status:    "failure",
		Message:   fmt.Sprintf("Export %s failed", runID),
		Details: Details{
			Error: err.Error(),
		},
	}

	n.send(ctx, payload)
}

func (n *Notifier) send(ctx context.Context, payload WebhookPayload) {
	data, err := json.Marshal(payload)
	if err != nil {
		n.logger.Error("failed to marshal webhook payload", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(data))
	if err != nil {
		n.logger.Error("failed to create webhook request", "error", err)
		return
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "csvexport/1.0")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		n.logger.Error("failed to send webhook", "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		n.logger.Warn("webhook returned error status", "status", resp.StatusCode)
	} else {
		n.logger.Debug("webhook sent successfully", "event", payload.Event)
	}
}
