package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func newSlackNotifierForTest(serverURL string) *SlackNotifier {
	return NewSlackNotifier(SlackConfig{
		Enabled:    true,
		WebhookURL: serverURL,
		Timeout:    5 * time.Second,
	})
}

func TestSlackNotifier_BuildBlockKitPayload(t *testing.T) {
	n := newSlackNotifierForTest("http://unused")
	at := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)

	t.Run("TC-1: should include severity and message in section block", func(t *testing.T) {
		payload := n.buildBlockKitPayload(SeverityCritical, "provider runway quarantined for 30m", at)

		if len(payload.Blocks) != 2 {
			t.Fatalf("blocks = %d, want 2", len(payload.Blocks))
		}
		section := payload.Blocks[0]
		if section.Type != "section" || section.Text == nil {
			t.Fatalf("first block should be a section with text, got %+v", section)
		}
		if !strings.Contains(section.Text.Text, "critical") {
			t.Errorf("section text should carry the severity: %q", section.Text.Text)
		}
		if !strings.Contains(section.Text.Text, "provider runway quarantined") {
			t.Errorf("section text should carry the message: %q", section.Text.Text)
		}
		if !strings.Contains(payload.Text, "critical") {
			t.Errorf("fallback text should carry the severity: %q", payload.Text)
		}
	})

	t.Run("TC-2: should truncate an oversized message", func(t *testing.T) {
		payload := n.buildBlockKitPayload(SeverityInfo, strings.Repeat("x", maxSectionTextLength+100), at)

		if got := len(payload.Blocks[0].Text.Text); got > maxSectionTextLength {
			t.Errorf("section text length = %d, want <= %d", got, maxSectionTextLength)
		}
		if !strings.HasSuffix(payload.Blocks[0].Text.Text, slackTruncationSuffix) {
			t.Error("truncated text should end with the truncation suffix")
		}
	})

	t.Run("TC-3: should default unknown severity to info", func(t *testing.T) {
		payload := n.buildBlockKitPayload("nonsense", "msg", at)

		if !strings.Contains(payload.Blocks[0].Text.Text, SeverityInfo) {
			t.Errorf("unknown severity should render as info: %q", payload.Blocks[0].Text.Text)
		}
	})
}

func TestSlackNotifier_Notify(t *testing.T) {
	t.Run("TC-1: should deliver alert on 200 response", func(t *testing.T) {
		var received SlackWebhookPayload
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
				t.Errorf("decode payload: %v", err)
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		n := newSlackNotifierForTest(server.URL)
		if err := n.Notify(context.Background(), SeverityWarning, "error rate above threshold"); err != nil {
			t.Fatalf("Notify err=%v", err)
		}
		if len(received.Blocks) == 0 {
			t.Error("server should have received a Block Kit payload")
		}
	})

	t.Run("TC-2: should not retry on 4xx client error", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusBadRequest)
		}))
		defer server.Close()

		n := newSlackNotifierForTest(server.URL)
		err := n.Notify(context.Background(), SeverityInfo, "bad payload")
		if err == nil {
			t.Fatal("expected error on 400 response")
		}
		if calls.Load() != 1 {
			t.Errorf("calls = %d, want 1 (no retry on client error)", calls.Load())
		}
	})

	t.Run("TC-3: should retry once on 5xx and fail when it persists", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		n := newSlackNotifierForTest(server.URL)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := n.Notify(ctx, SeverityCritical, "flaky webhook"); err == nil {
			t.Fatal("expected error after exhausted retries")
		}
		if calls.Load() != 2 {
			t.Errorf("calls = %d, want 2 (initial + one retry)", calls.Load())
		}
	})
}
