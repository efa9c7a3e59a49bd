package observability

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestLog(t *testing.T) EventLog {
	t.Helper()
	log, err := NewJSONLEventLog(filepath.Join(t.TempDir(), "events.jsonl"))
	if err != nil {
		t.Fatalf("NewJSONLEventLog failed: %v", err)
	}
	t.Cleanup(func() { _ = log.Close() })
	return log
}

func writeEvent(t *testing.T, log EventLog, eventType string, at time.Time, data map[string]any) {
	t.Helper()
	err := log.Write(Event{
		Time:    at,
		Level:   "INFO",
		Type:    eventType,
		Message: eventType,
		Data:    data,
	})
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
}

func TestEventLogWriteAndReadBack(t *testing.T) {
	log := openTestLog(t)
	now := time.Now().UTC().Truncate(time.Second)

	writeEvent(t, log, "task.created", now, map[string]any{"task_id": "TASK-00001"})
	writeEvent(t, log, "task.moved", now.Add(time.Minute), map[string]any{
		"task_id":   "TASK-00001",
		"to_status": "in-progress",
	})

	events, err := log.Read(EventFilter{})
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Type != "task.created" || events[1].Type != "task.moved" {
		t.Fatalf("events out of order: %q, %q", events[0].Type, events[1].Type)
	}
	if got := events[1].Data["to_status"]; got != "in-progress" {
		t.Fatalf("event data lost: %v", got)
	}
}

func TestEventLogReadFilters(t *testing.T) {
	log := openTestLog(t)
	base := time.Now().UTC().Add(-time.Hour)

	writeEvent(t, log, "task.created", base, nil)
	writeEvent(t, log, "task.moved", base.Add(10*time.Minute), nil)
	writeEvent(t, log, "task.moved", base.Add(40*time.Minute), nil)

	since := base.Add(5 * time.Minute)
	until := base.Add(30 * time.Minute)
	events, err := log.Read(EventFilter{Since: &since, Until: &until, Type: "task.moved"})
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 filtered event, got %d", len(events))
	}
}

func TestEventLogReadMissingFileIsEmpty(t *testing.T) {
	log := &jsonlEventLog{path: filepath.Join(t.TempDir(), "nope.jsonl")}
	events, err := log.Read(EventFilter{})
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if events != nil {
		t.Fatalf("expected no events, got %v", events)
	}
}
