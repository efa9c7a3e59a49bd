package observability

import (
	"fmt"
	"sort"
	"time"
)

// AlertSeverity represents the urgency of an alert.
type AlertSeverity string

const (
	SeverityHigh   AlertSeverity = "high"
	SeverityMedium AlertSeverity = "medium"
	SeverityLow    AlertSeverity = "low"
)

// Alert represents a triggered alert condition.
type Alert struct {
	ID          string        `json:"id"`
	Condition   string        `json:"condition"`
	Severity    AlertSeverity `json:"severity"`
	Message     string        `json:"message"`
	TriggeredAt time.Time     `json:"triggered_at"`
}

// AlertThresholds configures when alerts should fire.
type AlertThresholds struct {
	StaleDays     int `yaml:"stale_threshold_days" json:"stale_threshold_days"`
	ReviewDays    int `yaml:"review_threshold_days" json:"review_threshold_days"`
	WIPLimit      int `yaml:"wip_limit" json:"wip_limit"`
	RollbackLimit int `yaml:"rollback_limit_24h" json:"rollback_limit_24h"`
}

// DefaultAlertThresholds returns sensible defaults for alert thresholds.
func DefaultAlertThresholds() AlertThresholds {
	return AlertThresholds{
		StaleDays:     5,
		ReviewDays:    3,
		WIPLimit:      6,
		RollbackLimit: 5,
	}
}

// AlertEngine evaluates alert conditions against the event log.
type AlertEngine interface {
	Evaluate() ([]Alert, error)
}

// alertEngine implements AlertEngine by reading events and checking thresholds.
type alertEngine struct {
	eventLog   EventLog
	thresholds AlertThresholds
}

// NewAlertEngine creates a new AlertEngine with the given EventLog and thresholds.
func NewAlertEngine(eventLog EventLog, thresholds AlertThresholds) AlertEngine {
	return &alertEngine{
		eventLog:   eventLog,
		thresholds: thresholds,
	}
}

// Evaluate reads events and checks all alert conditions, returning any triggered alerts.
func (ae *alertEngine) Evaluate() ([]Alert, error) {
	now := time.Now().UTC()

	states, err := ae.replayTaskStates()
	if err != nil {
		return nil, fmt.Errorf("replaying task states: %w", err)
	}

	var alerts []Alert
	alerts = append(alerts, ae.checkStaleTasks(now, states)...)
	alerts = append(alerts, ae.checkLongReviews(now, states)...)
	alerts = append(alerts, ae.checkWIPLimit(now, states)...)

	rollbackAlerts, err := ae.checkRollbackRate(now)
	if err != nil {
		return nil, fmt.Errorf("checking rollback rate: %w", err)
	}
	alerts = append(alerts, rollbackAlerts...)

	return alerts, nil
}

// taskState is the latest known column and move time for one task,
// replayed from the event log.
type taskState struct {
	status  string
	movedAt time.Time
}

// replayTaskStates folds create/move/archive/restore events into the latest
// status per task.
func (ae *alertEngine) replayTaskStates() (map[string]taskState, error) {
	events, err := ae.eventLog.Read(EventFilter{})
	if err != nil {
		return nil, err
	}

	states := make(map[string]taskState)
	for _, event := range events {
		taskID, _ := event.Data["task_id"].(string)
		if taskID == "" {
			continue
		}

		switch event.Type {
		case "task.created":
			states[taskID] = taskState{status: "todo", movedAt: event.Time}
		case "task.moved", "task.restored":
			if status, ok := event.Data["to_status"].(string); ok {
				states[taskID] = taskState{status: status, movedAt: event.Time}
			}
		case "task.archived":
			states[taskID] = taskState{status: "archived", movedAt: event.Time}
		case "task.deleted":
			delete(states, taskID)
		}
	}
	return states, nil
}

// checkStaleTasks looks for in-progress tasks that have not moved columns
// for longer than the threshold.
func (ae *alertEngine) checkStaleTasks(now time.Time, states map[string]taskState) []Alert {
	threshold := time.Duration(ae.thresholds.StaleDays) * 24 * time.Hour
	var alerts []Alert
	for taskID, state := range states {
		if state.status == "in-progress" && now.Sub(state.movedAt) > threshold {
			alerts = append(alerts, Alert{
				ID:          fmt.Sprintf("stale-%s", taskID),
				Condition:   "task_stale",
				Severity:    SeverityMedium,
				Message:     fmt.Sprintf("task %s has sat in in-progress for more than %d days", taskID, ae.thresholds.StaleDays),
				TriggeredAt: now,
			})
		}
	}
	sortAlerts(alerts)
	return alerts
}

// checkLongReviews looks for tasks in the review column longer than the threshold.
func (ae *alertEngine) checkLongReviews(now time.Time, states map[string]taskState) []Alert {
	threshold := time.Duration(ae.thresholds.ReviewDays) * 24 * time.Hour
	var alerts []Alert
	for taskID, state := range states {
		if state.status == "review" && now.Sub(state.movedAt) > threshold {
			alerts = append(alerts, Alert{
				ID:          fmt.Sprintf("review-%s", taskID),
				Condition:   "review_too_long",
				Severity:    SeverityMedium,
				Message:     fmt.Sprintf("task %s has been in review for more than %d days", taskID, ae.thresholds.ReviewDays),
				TriggeredAt: now,
			})
		}
	}
	sortAlerts(alerts)
	return alerts
}

// checkWIPLimit counts tasks currently in progress and alerts if over the limit.
func (ae *alertEngine) checkWIPLimit(now time.Time, states map[string]taskState) []Alert {
	inProgress := 0
	for _, state := range states {
		if state.status == "in-progress" {
			inProgress++
		}
	}

	if inProgress <= ae.thresholds.WIPLimit {
		return nil
	}
	return []Alert{{
		ID:          "wip-limit",
		Condition:   "wip_limit_exceeded",
		Severity:    SeverityHigh,
		Message:     fmt.Sprintf("%d tasks are in progress, exceeding the WIP limit of %d", inProgress, ae.thresholds.WIPLimit),
		TriggeredAt: now,
	}}
}

// checkRollbackRate counts sync rollbacks in the last 24 hours; a spike
// usually means the store and the board views have diverged.
func (ae *alertEngine) checkRollbackRate(now time.Time) ([]Alert, error) {
	since := now.Add(-24 * time.Hour)
	events, err := ae.eventLog.Read(EventFilter{Since: &since, Type: "sync.rolled_back"})
	if err != nil {
		return nil, err
	}

	if len(events) <= ae.thresholds.RollbackLimit {
		return nil, nil
	}
	return []Alert{{
		ID:          "rollback-rate",
		Condition:   "rollback_rate_high",
		Severity:    SeverityHigh,
		Message:     fmt.Sprintf("%d sync rollbacks in the last 24 hours, exceeding the limit of %d", len(events), ae.thresholds.RollbackLimit),
		TriggeredAt: now,
	}}, nil
}

func sortAlerts(alerts []Alert) {
	sort.Slice(alerts, func(i, j int) bool { return alerts[i].ID < alerts[j].ID })
}
