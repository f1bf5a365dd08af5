// Package notifier provides abstraction for delivering operational alerts
// raised by the remediation engine (provider quarantined, rate limit storm,
// quota exhaustion). It defines the Notifier interface which allows different
// delivery mechanisms (Slack, Discord, email, etc.) to be used
// interchangeably through dependency injection.
//
// The package includes implementations for Slack and Discord webhooks and a
// no-op notifier for when alerting is disabled.
package notifier

import "context"

// Alert severities. Delivery implementations map these to channel-specific
// formatting (colors, emoji) but never to different routing.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Notifier is an interface for delivering operational alerts.
// Implementations should handle rate limiting, retries, and error logging
// internally.
type Notifier interface {
	// Notify delivers one alert. Severity is one of the Severity constants;
	// unknown values are treated as info.
	//
	// Implementations should:
	//   - Generate a unique request ID for tracing
	//   - Apply rate limiting to prevent webhook abuse
	//   - Retry transient failures with backoff
	//   - Respect context cancellation
	Notify(ctx context.Context, severity, message string) error
}
