// Package internal provides the App struct that wires all components of the
// zy task board together and initializes the CLI layer.
package internal

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/zenyard/zy/internal/cli"
	"github.com/zenyard/zy/internal/core"
	"github.com/zenyard/zy/internal/observability"
	"github.com/zenyard/zy/internal/reconcile"
	"github.com/zenyard/zy/internal/storage"
	"github.com/zenyard/zy/pkg/models"
)

// App holds all service dependencies for the zy task board.
type App struct {
	BasePath string

	// Configuration
	ConfigMgr core.ConfigurationManager
	Cfg       *models.GlobalConfig

	// Storage layer
	Store storage.TaskStore

	// Sync layer
	Dispatcher *reconcile.Dispatcher

	// Observability
	EventLog    observability.EventLog
	AlertEngine observability.AlertEngine
	MetricsCalc observability.MetricsCalculator
	Notifier    observability.Notifier
}

// NewApp creates and wires all components of the zy task board.
// basePath is the directory holding .zyconfig and, for the sqlite driver,
// the task database and event log.
func NewApp(basePath string) (*App, error) {
	app := &App{BasePath: basePath}

	// --- Configuration ---
	app.ConfigMgr = core.NewConfigurationManager(basePath)
	cfg, err := app.ConfigMgr.LoadConfig()
	if err != nil {
		// Use defaults if config file is missing or unreadable.
		cfg = core.DefaultConfig()
	}
	app.Cfg = cfg

	// --- Observability ---
	eventLogPath := filepath.Join(basePath, ".zy_events.jsonl")
	app.EventLog, err = observability.NewJSONLEventLog(eventLogPath)
	if err != nil {
		// Non-fatal: disable observability if log can't be created.
		app.EventLog = nil
	}
	if app.EventLog != nil {
		thresholds := observability.DefaultAlertThresholds()
		if cfg.Notifications.Alerts.StaleDays > 0 {
			thresholds.StaleDays = cfg.Notifications.Alerts.StaleDays
		}
		if cfg.Notifications.Alerts.ReviewDays > 0 {
			thresholds.ReviewDays = cfg.Notifications.Alerts.ReviewDays
		}
		if cfg.Notifications.Alerts.WIPLimit > 0 {
			thresholds.WIPLimit = cfg.Notifications.Alerts.WIPLimit
		}
		if cfg.Notifications.Alerts.RollbackLimit > 0 {
			thresholds.RollbackLimit = cfg.Notifications.Alerts.RollbackLimit
		}
		app.AlertEngine = observability.NewAlertEngine(app.EventLog, thresholds)
		app.MetricsCalc = observability.NewMetricsCalculator(app.EventLog)
	}
	if cfg.Notifications.Enabled && cfg.Notifications.Slack.WebhookURL != "" {
		app.Notifier = observability.NewSlackNotifier(cfg.Notifications.Slack.WebhookURL)
	}

	// --- Storage layer ---
	app.Store, err = newTaskStore(basePath, cfg)
	if err != nil {
		return nil, fmt.Errorf("initializing task store: %w", err)
	}

	// --- Sync layer ---
	var evtAdapter reconcile.EventLogger
	if app.EventLog != nil {
		evtAdapter = &eventLogAdapter{log: app.EventLog}
	}
	app.Dispatcher = reconcile.NewDispatcher(app.Store, evtAdapter)

	// --- Wire CLI package-level variables ---
	cli.BasePath = basePath
	cli.Cfg = cfg
	cli.ConfigMgr = app.ConfigMgr
	cli.Dispatcher = app.Dispatcher
	cli.Project = activeProject(cfg)

	cli.EventLog = app.EventLog
	cli.AlertEngine = app.AlertEngine
	cli.MetricsCalc = app.MetricsCalc
	cli.Notifier = app.Notifier

	return app, nil
}

// newTaskStore builds the task store selected by the config: the bundled
// SQLite store by default, or a remote JSON-over-HTTP store.
func newTaskStore(basePath string, cfg *models.GlobalConfig) (storage.TaskStore, error) {
	prefix := cfg.TaskIDPrefix
	if prefix == "" {
		prefix = "TASK"
	}

	switch cfg.Store.Driver {
	case "remote":
		if cfg.Store.URL == "" {
			return nil, fmt.Errorf("store driver is remote but store.url is empty")
		}
		return storage.NewRemoteStore(cfg.Store.URL), nil
	case "", "sqlite":
		path := cfg.Store.Path
		if path == "" {
			path = ".zy_tasks.db"
		}
		if !filepath.IsAbs(path) {
			path = filepath.Join(basePath, path)
		}
		return storage.NewSQLiteStore(path, prefix, cfg.TaskIDPadWidth)
	default:
		return nil, fmt.Errorf("unknown store driver %q (expected sqlite or remote)", cfg.Store.Driver)
	}
}

func activeProject(cfg *models.GlobalConfig) string {
	if cfg.ActiveProject != "" {
		return cfg.ActiveProject
	}
	return "default"
}

// Close releases resources held by the App, such as the event log file
// handle and the store connection. Safe to call with nil members.
func (a *App) Close() error {
	var firstErr error
	if closer, ok := a.Store.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			firstErr = err
		}
	}
	if a.EventLog != nil {
		if err := a.EventLog.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// ResolveBasePath determines the base path for zy data. It checks the
// ZY_HOME env var, then walks up from the current directory looking for a
// .zyconfig file, falling back to the current directory.
func ResolveBasePath() string {
	if home := os.Getenv("ZY_HOME"); home != "" {
		return home
	}
	dir, err := os.Getwd()
	if err != nil {
		return "."
	}
	// Walk up to find a directory containing .zyconfig.
	for {
		if _, err := os.Stat(filepath.Join(dir, ".zyconfig")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	// Fall back to cwd.
	cwd, _ := os.Getwd()
	return cwd
}

// eventLogAdapter adapts observability.EventLog to reconcile.EventLogger.
type eventLogAdapter struct {
	log observability.EventLog
}

func (a *eventLogAdapter) LogEvent(eventType string, data map[string]any) error {
	return a.log.Write(observability.Event{
		Time:    time.Now().UTC(),
		Level:   "INFO",
		Type:    eventType,
		Message: eventType,
		Data:    data,
	})
}
