package models

// GlobalConfig holds settings from the .zyconfig file at the base path.
type GlobalConfig struct {
	ActiveProject   string             `yaml:"active_project"`
	DefaultPriority Priority           `yaml:"default_priority"`
	TaskIDPrefix    string             `yaml:"task_id_prefix"`
	TaskIDPadWidth  int                `yaml:"task_id_pad_width"`
	Store           StoreConfig        `yaml:"store"`
	Notifications   NotificationConfig `yaml:"notifications"`
}

// StoreConfig selects and configures the backing task store.
type StoreConfig struct {
	// Driver is "sqlite" (bundled store) or "remote" (JSON-over-HTTP API).
	Driver string `yaml:"driver"`
	// Path is the SQLite database file, relative to the base path unless absolute.
	Path string `yaml:"path"`
	// URL is the base URL of the remote task API when Driver is "remote".
	URL string `yaml:"url"`
}

// NotificationConfig configures alert notifications.
type NotificationConfig struct {
	Enabled bool                 `yaml:"enabled"`
	Slack   SlackConfig          `yaml:"slack"`
	Alerts  AlertThresholdConfig `yaml:"alerts"`
}

// SlackConfig holds Slack webhook settings.
type SlackConfig struct {
	WebhookURL string `yaml:"webhook_url"`
}

// AlertThresholdConfig overrides the default alert thresholds.
// Zero values mean "use the default".
type AlertThresholdConfig struct {
	StaleDays     int `yaml:"stale_days"`
	ReviewDays    int `yaml:"review_days"`
	WIPLimit      int `yaml:"wip_limit"`
	RollbackLimit int `yaml:"rollback_limit"`
}
