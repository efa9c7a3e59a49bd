package core

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/zenyard/zy/pkg/models"
)

func TestLoadConfigDefaultsWhenMissing(t *testing.T) {
	cm := NewConfigurationManager(t.TempDir())

	cfg, err := cm.LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.ActiveProject != "default" {
		t.Fatalf("expected default active project, got %q", cfg.ActiveProject)
	}
	if cfg.DefaultPriority != models.PriorityMedium {
		t.Fatalf("expected medium default priority, got %q", cfg.DefaultPriority)
	}
	if cfg.TaskIDPrefix != "TASK" || cfg.TaskIDPadWidth != 5 {
		t.Fatalf("expected TASK/5 ID settings, got %q/%d", cfg.TaskIDPrefix, cfg.TaskIDPadWidth)
	}
	if cfg.Store.Driver != "sqlite" {
		t.Fatalf("expected sqlite driver, got %q", cfg.Store.Driver)
	}
}

func TestSaveAndLoadConfigRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cm := NewConfigurationManager(dir)

	cfg := DefaultConfig()
	cfg.ActiveProject = "website"
	cfg.DefaultPriority = models.PriorityHigh
	cfg.TaskIDPrefix = "WEB"
	cfg.TaskIDPadWidth = 4
	cfg.Store.Driver = "remote"
	cfg.Store.URL = "https://tasks.example.com/api"
	cfg.Notifications.Enabled = true
	cfg.Notifications.Slack.WebhookURL = "https://hooks.slack.com/services/T0/B0/x"
	cfg.Notifications.Alerts.StaleDays = 10
	cfg.Notifications.Alerts.WIPLimit = 4

	if err := cm.SaveConfig(cfg); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, ".zyconfig")); err != nil {
		t.Fatalf("expected .zyconfig to exist: %v", err)
	}

	loaded, err := cm.LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if loaded.ActiveProject != "website" {
		t.Fatalf("active project: got %q", loaded.ActiveProject)
	}
	if loaded.DefaultPriority != models.PriorityHigh {
		t.Fatalf("default priority: got %q", loaded.DefaultPriority)
	}
	if loaded.TaskIDPrefix != "WEB" || loaded.TaskIDPadWidth != 4 {
		t.Fatalf("ID settings: got %q/%d", loaded.TaskIDPrefix, loaded.TaskIDPadWidth)
	}
	if loaded.Store.Driver != "remote" || loaded.Store.URL != "https://tasks.example.com/api" {
		t.Fatalf("store: got %+v", loaded.Store)
	}
	if !loaded.Notifications.Enabled || loaded.Notifications.Slack.WebhookURL == "" {
		t.Fatalf("notifications: got %+v", loaded.Notifications)
	}
	if loaded.Notifications.Alerts.StaleDays != 10 || loaded.Notifications.Alerts.WIPLimit != 4 {
		t.Fatalf("alert thresholds: got %+v", loaded.Notifications.Alerts)
	}
}

func TestValidateConfig(t *testing.T) {
	cm := NewConfigurationManager(t.TempDir())

	tests := []struct {
		name    string
		mutate  func(cfg *models.GlobalConfig)
		wantErr bool
	}{
		{"defaults valid", func(cfg *models.GlobalConfig) {}, false},
		{"empty project", func(cfg *models.GlobalConfig) { cfg.ActiveProject = " " }, true},
		{"bad priority", func(cfg *models.GlobalConfig) { cfg.DefaultPriority = "urgent" }, true},
		{"lowercase prefix", func(cfg *models.GlobalConfig) { cfg.TaskIDPrefix = "task" }, true},
		{"prefix too long", func(cfg *models.GlobalConfig) { cfg.TaskIDPrefix = "ABCDEFGHIJK" }, true},
		{"negative pad width", func(cfg *models.GlobalConfig) { cfg.TaskIDPadWidth = -1 }, true},
		{"unknown driver", func(cfg *models.GlobalConfig) { cfg.Store.Driver = "postgres" }, true},
		{"remote without url", func(cfg *models.GlobalConfig) {
			cfg.Store.Driver = "remote"
			cfg.Store.URL = ""
		}, true},
		{"remote with url", func(cfg *models.GlobalConfig) {
			cfg.Store.Driver = "remote"
			cfg.Store.URL = "https://tasks.example.com"
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cm.ValidateConfig(cfg)
			if tt.wantErr && err == nil {
				t.Fatal("expected validation error")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestSaveConfigRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	cm := NewConfigurationManager(dir)

	cfg := DefaultConfig()
	cfg.TaskIDPrefix = "bad prefix"

	if err := cm.SaveConfig(cfg); err == nil {
		t.Fatal("expected SaveConfig to reject invalid config")
	}
	if _, err := os.Stat(filepath.Join(dir, ".zyconfig")); !os.IsNotExist(err) {
		t.Fatal("invalid config must not be written")
	}
}
