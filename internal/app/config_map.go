package app

import (
	"fmt"
	"strings"
	"time"

	"tickbot/internal/config"
	"tickbot/internal/reactor"
	"tickbot/internal/storage"
	logx "tickbot/pkg/logx"
)

const defaultRecentOutcomes = 10

func mapStorageConfig(cfg *config.Config) (storage.Config, bool, error) {
	if cfg == nil || cfg.Storage == nil {
		return storage.Config{}, false, nil
	}
	sc := cfg.Storage
	driver := strings.TrimSpace(sc.Driver)
	if driver == "" || strings.EqualFold(driver, "none") {
		return storage.Config{}, false, nil
	}
	path := strings.TrimSpace(sc.Path)
	if sc.Recent < 0 {
		return storage.Config{}, false, fmt.Errorf("storage.recent must be >= 0")
	}

	dl := strings.ToLower(driver)
	switch dl {
	case "file":
		if path == "" {
			return storage.Config{}, false, fmt.Errorf("storage.path is required when storage.driver=file")
		}
		return storage.Config{Driver: "file", Path: path}, true, nil
	case "sqlite", "sqlite3":
		if path == "" {
			return storage.Config{}, false, fmt.Errorf("storage.path is required when storage.driver=sqlite")
		}
		busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, 1*time.Second)
		if err != nil {
			return storage.Config{}, false, err
		}
		return storage.Config{Driver: dl, Path: path, BusyTimeout: busy}, true, nil
	default:
		return storage.Config{}, false, fmt.Errorf("unknown storage.driver: %s", driver)
	}
}

func recentOutcomes(cfg *config.Config) int {
	if cfg == nil || cfg.Storage == nil || cfg.Storage.Recent == 0 {
		return defaultRecentOutcomes
	}
	return cfg.Storage.Recent
}

func mapLogConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func mapSchedulerConfig(cfg *config.Config) reactor.Config {
	return reactor.Config{RemoveOnDisappear: cfg.Scheduler.RemoveOnDisappear}
}
