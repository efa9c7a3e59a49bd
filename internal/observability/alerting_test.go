package observability

import (
	"fmt"
	"testing"
	"time"
)

func findAlert(alerts []Alert, condition string) *Alert {
	for i := range alerts {
		if alerts[i].Condition == condition {
			return &alerts[i]
		}
	}
	return nil
}

func TestEvaluateStaleInProgressTask(t *testing.T) {
	now := time.Now().UTC()
	log := &memoryEventLog{events: []Event{
		event("task.created", now.Add(-10*24*time.Hour), map[string]any{"task_id": "TASK-00001"}),
		event("task.moved", now.Add(-8*24*time.Hour), map[string]any{
			"task_id": "TASK-00001", "to_status": "in-progress",
		}),
		// A fresh in-progress task stays quiet.
		event("task.created", now.Add(-time.Hour), map[string]any{"task_id": "TASK-00002"}),
		event("task.moved", now.Add(-time.Hour), map[string]any{
			"task_id": "TASK-00002", "to_status": "in-progress",
		}),
	}}

	alerts, err := NewAlertEngine(log, DefaultAlertThresholds()).Evaluate()
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}

	alert := findAlert(alerts, "task_stale")
	if alert == nil {
		t.Fatalf("expected task_stale alert, got %+v", alerts)
	}
	if alert.ID != "stale-TASK-00001" || alert.Severity != SeverityMedium {
		t.Fatalf("unexpected alert: %+v", alert)
	}
	if findAlert(alerts, "wip_limit_exceeded") != nil {
		t.Fatal("two in-progress tasks must not trip the WIP limit")
	}
}

func TestEvaluateStaleClearsAfterMove(t *testing.T) {
	now := time.Now().UTC()
	log := &memoryEventLog{events: []Event{
		event("task.created", now.Add(-10*24*time.Hour), map[string]any{"task_id": "TASK-00001"}),
		event("task.moved", now.Add(-8*24*time.Hour), map[string]any{
			"task_id": "TASK-00001", "to_status": "in-progress",
		}),
		event("task.moved", now.Add(-time.Hour), map[string]any{
			"task_id": "TASK-00001", "to_status": "done",
		}),
	}}

	alerts, err := NewAlertEngine(log, DefaultAlertThresholds()).Evaluate()
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if len(alerts) != 0 {
		t.Fatalf("moved task must clear all conditions, got %+v", alerts)
	}
}

func TestEvaluateLongReview(t *testing.T) {
	now := time.Now().UTC()
	log := &memoryEventLog{events: []Event{
		event("task.created", now.Add(-10*24*time.Hour), map[string]any{"task_id": "TASK-00001"}),
		event("task.moved", now.Add(-4*24*time.Hour), map[string]any{
			"task_id": "TASK-00001", "to_status": "review",
		}),
	}}

	alerts, err := NewAlertEngine(log, DefaultAlertThresholds()).Evaluate()
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	alert := findAlert(alerts, "review_too_long")
	if alert == nil {
		t.Fatalf("expected review_too_long alert, got %+v", alerts)
	}
	if alert.ID != "review-TASK-00001" {
		t.Fatalf("unexpected alert ID: %q", alert.ID)
	}
}

func TestEvaluateWIPLimit(t *testing.T) {
	now := time.Now().UTC()
	log := &memoryEventLog{}
	for i := 1; i <= 4; i++ {
		id := fmt.Sprintf("TASK-%05d", i)
		log.events = append(log.events,
			event("task.created", now.Add(-time.Hour), map[string]any{"task_id": id}),
			event("task.moved", now.Add(-time.Hour), map[string]any{
				"task_id": id, "to_status": "in-progress",
			}))
	}

	thresholds := DefaultAlertThresholds()
	thresholds.WIPLimit = 3
	alerts, err := NewAlertEngine(log, thresholds).Evaluate()
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	alert := findAlert(alerts, "wip_limit_exceeded")
	if alert == nil {
		t.Fatalf("expected wip_limit_exceeded alert, got %+v", alerts)
	}
	if alert.Severity != SeverityHigh {
		t.Fatalf("expected high severity, got %q", alert.Severity)
	}
}

func TestEvaluateRollbackRate(t *testing.T) {
	now := time.Now().UTC()
	log := &memoryEventLog{}
	// Six rollbacks in the window, plus one old enough to be ignored.
	for i := 0; i < 6; i++ {
		log.events = append(log.events,
			event("sync.rolled_back", now.Add(-time.Duration(i+1)*time.Hour), map[string]any{"task_id": "TASK-00001"}))
	}
	log.events = append(log.events,
		event("sync.rolled_back", now.Add(-30*time.Hour), map[string]any{"task_id": "TASK-00001"}))

	alerts, err := NewAlertEngine(log, DefaultAlertThresholds()).Evaluate()
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	alert := findAlert(alerts, "rollback_rate_high")
	if alert == nil {
		t.Fatalf("expected rollback_rate_high alert, got %+v", alerts)
	}
}

func TestEvaluateDeletedTaskDropsOut(t *testing.T) {
	now := time.Now().UTC()
	log := &memoryEventLog{events: []Event{
		event("task.created", now.Add(-10*24*time.Hour), map[string]any{"task_id": "TASK-00001"}),
		event("task.moved", now.Add(-8*24*time.Hour), map[string]any{
			"task_id": "TASK-00001", "to_status": "in-progress",
		}),
		event("task.deleted", now.Add(-time.Hour), map[string]any{"task_id": "TASK-00001"}),
	}}

	alerts, err := NewAlertEngine(log, DefaultAlertThresholds()).Evaluate()
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if len(alerts) != 0 {
		t.Fatalf("deleted task must not alert, got %+v", alerts)
	}
}
