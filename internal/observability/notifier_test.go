package observability

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNotifySendsBlocksToWebhook(t *testing.T) {
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("unexpected content type %q", r.Header.Get("Content-Type"))
		}
		body, _ = io.ReadAll(r.Body)
	}))
	defer srv.Close()

	alerts := []Alert{
		{
			ID:          "wip-limit",
			Condition:   "wip_limit_exceeded",
			Severity:    SeverityHigh,
			Message:     "7 tasks are in progress, exceeding the WIP limit of 6",
			TriggeredAt: time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC),
		},
		{
			ID:          "stale-TASK-00001",
			Condition:   "task_stale",
			Severity:    SeverityMedium,
			Message:     "task TASK-00001 has sat in in-progress for more than 5 days",
			TriggeredAt: time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC),
		},
	}
	if err := NewSlackNotifier(srv.URL).Notify(alerts); err != nil {
		t.Fatalf("Notify failed: %v", err)
	}

	var msg slackMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		t.Fatalf("decoding webhook payload: %v", err)
	}
	// Header + section + divider + section.
	if len(msg.Blocks) != 4 {
		t.Fatalf("expected 4 blocks, got %d", len(msg.Blocks))
	}
	if msg.Blocks[0].Type != "header" {
		t.Fatalf("first block must be the header, got %q", msg.Blocks[0].Type)
	}
	if !strings.Contains(msg.Blocks[1].Text.Text, "[HIGH]") {
		t.Fatalf("severity missing from section: %q", msg.Blocks[1].Text.Text)
	}
	if !strings.Contains(msg.Blocks[3].Text.Text, "TASK-00001") {
		t.Fatalf("task reference missing from section: %q", msg.Blocks[3].Text.Text)
	}
}

func TestNotifySkipsEmptyAlerts(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		called = true
	}))
	defer srv.Close()

	if err := NewSlackNotifier(srv.URL).Notify(nil); err != nil {
		t.Fatalf("Notify failed: %v", err)
	}
	if called {
		t.Fatal("empty alert list must not call the webhook")
	}
}

func TestNotifyReportsWebhookFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	if err := NewSlackNotifier(srv.URL).Notify([]Alert{{Severity: SeverityLow}}); err == nil {
		t.Fatal("expected error for non-200 webhook response")
	}
}
