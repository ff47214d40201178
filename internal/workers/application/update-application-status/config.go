// internal/workers/application/update-application-status/config.go
package updateapplicationstatus

import (
	"time"

	"msad-registration/internal/common/config"
)

type Config struct {
	Table   string
	Timeout time.Duration
}

func LoadConfig(cfg *config.Config) *Config {
	c := &Config{
		Table:   cfg.Registration.Table,
		Timeout: 10 * time.Second,
	}
	if w := config.GetWorkerConfig(cfg, TaskType); w.Timeout > 0 {
		c.Timeout = config.GetDuration(w.Timeout)
	}
	return c
}
