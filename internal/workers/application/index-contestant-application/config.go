// internal/workers/application/index-contestant-application/config.go
package indexcontestantapplication

import (
	"time"

	"msad-registration/internal/common/config"
)

type Config struct {
	Index   string
	Timeout time.Duration
}

func LoadConfig(cfg *config.Config) *Config {
	c := &Config{
		Index:   cfg.Database.Elasticsearch.ApplicationIndex,
		Timeout: 10 * time.Second,
	}
	if c.Index == "" {
		c.Index = "contestants"
	}
	if w := config.GetWorkerConfig(cfg, TaskType); w.Timeout > 0 {
		c.Timeout = config.GetDuration(w.Timeout)
	}
	return c
}
