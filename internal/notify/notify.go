// Package notify is the alerting boundary of the batch: fire-and-forget
// notifications for coefficient anomalies, duplicate surges, and fatal
// errors.
package notify

import (
	"context"
	"log/slog"
	"sort"

	"github.com/slack-go/slack"
)

// Level classifies a notification.
type Level string

const (
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Notifier delivers a notification. Implementations must never fail the
// batch: delivery errors are logged and swallowed.
type Notifier interface {
	Notify(ctx context.Context, level Level, title, body string, fields map[string]string)
}

// New returns a Slack notifier when a webhook URL is configured, otherwise
// a logger-backed one.
func New(webhookURL string, log *slog.Logger) Notifier {
	if log == nil {
		log = slog.Default()
	}
	if webhookURL != "" {
		return &SlackNotifier{webhookURL: webhookURL, log: log.With("component", "notify")}
	}
	return &LogNotifier{log: log.With("component", "notify")}
}

// ---------------------------------------------------------------------------
// Slack webhook notifier
// ---------------------------------------------------------------------------

// SlackNotifier posts notifications to an incoming-webhook URL.
type SlackNotifier struct {
	webhookURL string
	log        *slog.Logger
}

var levelColors = map[Level]string{
	LevelInfo:  "good",
	LevelWarn:  "warning",
	LevelError: "danger",
}

// Notify posts one webhook message. Errors are logged, never returned.
func (n *SlackNotifier) Notify(ctx context.Context, level Level, title, body string, fields map[string]string) {
	attachment := slack.Attachment{
		Color: levelColors[level],
		Title: title,
		Text:  body,
	}
	for _, k := range sortedKeys(fields) {
		attachment.Fields = append(attachment.Fields, slack.AttachmentField{
			Title: k,
			Value: fields[k],
			Short: true,
		})
	}

	msg := &slack.WebhookMessage{
		Username:    "npbstats-backfill",
		Attachments: []slack.Attachment{attachment},
	}
	if err := slack.PostWebhookContext(ctx, n.webhookURL, msg); err != nil {
		n.log.Error("slack notification failed", "title", title, "err", err)
	}
}

// ---------------------------------------------------------------------------
// Log-only notifier
// ---------------------------------------------------------------------------

// LogNotifier writes notifications to the structured log. It is the default
// when no webhook is configured, so alerts still land somewhere visible.
type LogNotifier struct {
	log *slog.Logger
}

// Notify logs the notification at the matching slog level.
func (n *LogNotifier) Notify(_ context.Context, level Level, title, body string, fields map[string]string) {
	args := []any{"body", body}
	for _, k := range sortedKeys(fields) {
		args = append(args, k, fields[k])
	}
	switch level {
	case LevelError:
		n.log.Error(title, args...)
	case LevelWarn:
		n.log.Warn(title, args...)
	default:
		n.log.Info(title, args...)
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
