package notifier

import (
	"context"
	"testing"
)

func TestNoOpNotifier_Notify(t *testing.T) {
	t.Run("TC-1: should return nil without error", func(t *testing.T) {
		// Arrange
		notifier := NewNoOpNotifier()
		ctx := context.Background()

		// Act
		err := notifier.Notify(ctx, SeverityCritical, "provider runway quarantined")

		// Assert
		if err != nil {
			t.Errorf("expected nil error, got %v", err)
		}
	})

	t.Run("TC-2: should handle canceled context gracefully", func(t *testing.T) {
		// Arrange
		notifier := NewNoOpNotifier()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		// Act
		err := notifier.Notify(ctx, SeverityInfo, "ignored")

		// Assert
		if err != nil {
			t.Errorf("expected nil error even with canceled context, got %v", err)
		}
	})
}
