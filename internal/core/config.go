package core

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/viper"
	"github.com/zenyard/zy/pkg/models"
	"gopkg.in/yaml.v3"
)

// configFileName is the YAML config file looked up at the base path.
const configFileName = ".zyconfig"

// validPrefixPattern matches uppercase alphanumeric prefixes between 1 and 10 characters.
var validPrefixPattern = regexp.MustCompile(`^[A-Z0-9]{1,10}$`)

// ConfigurationManager defines the interface for loading, saving, and
// validating the .zyconfig file.
type ConfigurationManager interface {
	LoadConfig() (*models.GlobalConfig, error)
	SaveConfig(cfg *models.GlobalConfig) error
	ValidateConfig(cfg *models.GlobalConfig) error
}

// viperConfigManager implements ConfigurationManager using Viper for reads
// and yaml.v3 for write-back (project switching persists the selection).
type viperConfigManager struct {
	basePath string
}

// NewConfigurationManager creates a ConfigurationManager that reads and
// writes .zyconfig in basePath.
func NewConfigurationManager(basePath string) ConfigurationManager {
	return &viperConfigManager{basePath: basePath}
}

// DefaultConfig returns a GlobalConfig populated with sensible defaults.
func DefaultConfig() *models.GlobalConfig {
	return &models.GlobalConfig{
		ActiveProject:   "default",
		DefaultPriority: models.PriorityMedium,
		TaskIDPrefix:    "TASK",
		TaskIDPadWidth:  5,
		Store: models.StoreConfig{
			Driver: "sqlite",
			Path:   "zy.db",
		},
	}
}

// LoadConfig reads the .zyconfig file from the base path. If the file does
// not exist, defaults are returned.
func (cm *viperConfigManager) LoadConfig() (*models.GlobalConfig, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigName(configFileName)
	v.SetConfigType("yaml")
	v.AddConfigPath(cm.basePath)

	v.SetDefault("active_project", cfg.ActiveProject)
	v.SetDefault("default_priority", string(cfg.DefaultPriority))
	v.SetDefault("task_id.prefix", cfg.TaskIDPrefix)
	v.SetDefault("task_id.pad_width", cfg.TaskIDPadWidth)
	v.SetDefault("store.driver", cfg.Store.Driver)
	v.SetDefault("store.path", cfg.Store.Path)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading %s: %w", configFileName, err)
	}

	cfg.ActiveProject = v.GetString("active_project")
	cfg.DefaultPriority = models.Priority(v.GetString("default_priority"))
	cfg.TaskIDPrefix = v.GetString("task_id.prefix")
	if v.IsSet("task_id.pad_width") {
		cfg.TaskIDPadWidth = v.GetInt("task_id.pad_width")
	}
	cfg.Store.Driver = v.GetString("store.driver")
	cfg.Store.Path = v.GetString("store.path")
	cfg.Store.URL = v.GetString("store.url")

	cfg.Notifications.Enabled = v.GetBool("notifications.enabled")
	cfg.Notifications.Slack.WebhookURL = v.GetString("notifications.slack.webhook_url")
	cfg.Notifications.Alerts.StaleDays = v.GetInt("notifications.alerts.stale_days")
	cfg.Notifications.Alerts.ReviewDays = v.GetInt("notifications.alerts.review_days")
	cfg.Notifications.Alerts.WIPLimit = v.GetInt("notifications.alerts.wip_limit")
	cfg.Notifications.Alerts.RollbackLimit = v.GetInt("notifications.alerts.rollback_limit")

	return cfg, nil
}

// SaveConfig writes the configuration back to .zyconfig as YAML, using the
// same nested key layout LoadConfig reads.
func (cm *viperConfigManager) SaveConfig(cfg *models.GlobalConfig) error {
	if err := cm.ValidateConfig(cfg); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	doc := map[string]any{
		"active_project":   cfg.ActiveProject,
		"default_priority": string(cfg.DefaultPriority),
		"task_id": map[string]any{
			"prefix":    cfg.TaskIDPrefix,
			"pad_width": cfg.TaskIDPadWidth,
		},
		"store": map[string]any{
			"driver": cfg.Store.Driver,
			"path":   cfg.Store.Path,
			"url":    cfg.Store.URL,
		},
		"notifications": map[string]any{
			"enabled": cfg.Notifications.Enabled,
			"slack": map[string]any{
				"webhook_url": cfg.Notifications.Slack.WebhookURL,
			},
			"alerts": map[string]any{
				"stale_days":     cfg.Notifications.Alerts.StaleDays,
				"review_days":    cfg.Notifications.Alerts.ReviewDays,
				"wip_limit":      cfg.Notifications.Alerts.WIPLimit,
				"rollback_limit": cfg.Notifications.Alerts.RollbackLimit,
			},
		},
	}

	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("saving config: marshaling YAML: %w", err)
	}
	if err := os.MkdirAll(cm.basePath, 0o750); err != nil {
		return fmt.Errorf("saving config: creating directory: %w", err)
	}
	path := filepath.Join(cm.basePath, configFileName)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("saving config: writing file: %w", err)
	}
	return nil
}

// ValidateConfig checks the configuration for invalid values and returns a
// clear error message identifying every problem.
func (cm *viperConfigManager) ValidateConfig(cfg *models.GlobalConfig) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	var errs []string

	if strings.TrimSpace(cfg.ActiveProject) == "" {
		errs = append(errs, "active_project must not be empty")
	}
	if cfg.DefaultPriority != "" && !models.IsValidPriority(cfg.DefaultPriority) {
		errs = append(errs, fmt.Sprintf(
			"default_priority %q is invalid, must be one of: low, medium, high",
			cfg.DefaultPriority,
		))
	}
	if cfg.TaskIDPrefix != "" && !validPrefixPattern.MatchString(cfg.TaskIDPrefix) {
		errs = append(errs, fmt.Sprintf(
			"task_id.prefix %q is invalid, must match [A-Z0-9]{1,10}",
			cfg.TaskIDPrefix,
		))
	}
	if cfg.TaskIDPadWidth < 0 || cfg.TaskIDPadWidth > 10 {
		errs = append(errs, fmt.Sprintf(
			"task_id.pad_width %d is invalid, must be between 0 and 10",
			cfg.TaskIDPadWidth,
		))
	}
	switch cfg.Store.Driver {
	case "", "sqlite":
		// Path defaults to zy.db under the base path.
	case "remote":
		if cfg.Store.URL == "" {
			errs = append(errs, "store.url must be set when store.driver is remote")
		}
	default:
		errs = append(errs, fmt.Sprintf("store.driver %q is invalid, must be sqlite or remote", cfg.Store.Driver))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
