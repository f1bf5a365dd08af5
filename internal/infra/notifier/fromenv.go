package notifier

import (
	"context"
	"log/slog"
	"os"
	"time"

	"provider-mesh/pkg/config"
)

// FromEnv assembles the alert delivery chain from environment configuration.
// With no webhook configured alerts are dropped silently.
//
// Environment variables:
//   - SLACK_WEBHOOK_URL: Slack Incoming Webhook URL
//   - DISCORD_WEBHOOK_URL: Discord webhook URL
//   - ALERT_TIMEOUT: HTTP timeout for webhook delivery (default: 10s)
func FromEnv(logger *slog.Logger) Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := config.GetEnvDuration("ALERT_TIMEOUT", 10*time.Second)

	var targets []Notifier
	if url := os.Getenv("SLACK_WEBHOOK_URL"); url != "" {
		targets = append(targets, NewSlackNotifier(SlackConfig{
			Enabled:    true,
			WebhookURL: url,
			Timeout:    timeout,
		}))
		logger.Info("Slack alerts enabled")
	}
	if url := os.Getenv("DISCORD_WEBHOOK_URL"); url != "" {
		targets = append(targets, NewDiscordNotifier(DiscordConfig{
			Enabled:    true,
			WebhookURL: url,
			Timeout:    timeout,
		}))
		logger.Info("Discord alerts enabled")
	}

	switch len(targets) {
	case 0:
		logger.Warn("no alert webhook configured, alerts disabled")
		return NewNoOpNotifier()
	case 1:
		return targets[0]
	default:
		return Fanout(targets)
	}
}

// Fanout delivers each alert to every configured channel. A failing channel
// does not block the others; the last error wins.
type Fanout []Notifier

// Notify implements Notifier.
func (f Fanout) Notify(ctx context.Context, severity, message string) error {
	var lastErr error
	for _, n := range f {
		if err := n.Notify(ctx, severity, message); err != nil {
			lastErr = err
		}
	}
	return lastErr
}
