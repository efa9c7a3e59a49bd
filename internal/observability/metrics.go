package observability

import (
	"fmt"
	"time"
)

// Metrics holds board flow metrics derived from the event log.
type Metrics struct {
	TasksCreated  int            `json:"tasks_created"`
	TasksMoved    int            `json:"tasks_moved"`
	TasksArchived int            `json:"tasks_archived"`
	TasksRestored int            `json:"tasks_restored"`
	Reorders      int            `json:"reorders"`
	SyncRollbacks int            `json:"sync_rollbacks"`
	MovesInto     map[string]int `json:"moves_into"`
	EventCount    int            `json:"event_count"`
	OldestEvent   *time.Time     `json:"oldest_event,omitempty"`
	NewestEvent   *time.Time     `json:"newest_event,omitempty"`
}

// MetricsCalculator derives metrics from the event log.
type MetricsCalculator interface {
	Calculate(since time.Time) (*Metrics, error)
}

// metricsCalculator implements MetricsCalculator by reading from an EventLog.
type metricsCalculator struct {
	eventLog EventLog
}

// NewMetricsCalculator creates a new MetricsCalculator that reads from the given EventLog.
func NewMetricsCalculator(eventLog EventLog) MetricsCalculator {
	return &metricsCalculator{eventLog: eventLog}
}

// Calculate reads all events since the given time and aggregates them into metrics.
// MovesInto counts column moves by destination status, including archive and restore.
func (mc *metricsCalculator) Calculate(since time.Time) (*Metrics, error) {
	events, err := mc.eventLog.Read(EventFilter{Since: &since})
	if err != nil {
		return nil, fmt.Errorf("reading events for metrics: %w", err)
	}

	m := &Metrics{
		MovesInto: make(map[string]int),
	}

	m.EventCount = len(events)

	for i, event := range events {
		if i == 0 {
			t := event.Time
			m.OldestEvent = &t
		}
		t := event.Time
		m.NewestEvent = &t

		switch event.Type {
		case "task.created":
			m.TasksCreated++
		case "task.moved":
			m.TasksMoved++
			if status, ok := event.Data["to_status"].(string); ok {
				m.MovesInto[status]++
			}
		case "task.reordered":
			m.Reorders++
		case "task.archived":
			m.TasksArchived++
			m.MovesInto["archived"]++
		case "task.restored":
			m.TasksRestored++
			if status, ok := event.Data["to_status"].(string); ok {
				m.MovesInto[status]++
			}
		case "sync.rolled_back":
			m.SyncRollbacks++
		}
	}

	return m, nil
}
