package scheduler

import (
	"strings"
	"time"

	"github.com/smallbiznis/makerhub/internal/config"
)

// Config controls cron specs and per-job limits.
type Config struct {
	AccountRefreshSpec string
	JobTimeout         time.Duration
	LockTTL            time.Duration
}

func DefaultConfig() Config {
	return Config{
		AccountRefreshSpec: "*/15 * * * *",
		JobTimeout:         2 * time.Minute,
		LockTTL:            5 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if strings.TrimSpace(c.AccountRefreshSpec) == "" {
		c.AccountRefreshSpec = defaults.AccountRefreshSpec
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	if c.LockTTL <= 0 {
		c.LockTTL = defaults.LockTTL
	}
	return c
}

func ProvideConfig(cfg config.Config) Config {
	return Config{AccountRefreshSpec: cfg.AccountRefreshCron}.withDefaults()
}
