package cli

import (
	"github.com/zenyard/zy/internal/core"
	"github.com/zenyard/zy/internal/observability"
	"github.com/zenyard/zy/internal/reconcile"
	"github.com/zenyard/zy/pkg/models"
)

// Service instances, set during app initialization in app.go.
var (
	// BasePath is the resolved workspace root (where .zyconfig lives).
	BasePath string

	// Cfg is the loaded global configuration.
	Cfg *models.GlobalConfig

	// ConfigMgr reads and writes the .zyconfig file.
	ConfigMgr core.ConfigurationManager

	// Dispatcher applies task intents through the sync layer.
	Dispatcher *reconcile.Dispatcher

	// Project is the active project tasks are scoped to.
	Project string
)

// Observability service instances, set during app initialization in app.go.
var (
	EventLog    observability.EventLog
	AlertEngine observability.AlertEngine
	MetricsCalc observability.MetricsCalculator
	Notifier    observability.Notifier
)
