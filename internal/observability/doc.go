// Package observability provides event logging, flow metrics, and alerting
// for the task board. It uses structured JSON Lines (JSONL) for event
// persistence and derives metrics on demand from the event log.
package observability
