// internal/common/config/loader_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

const minimalYAML = `
database:
  postgres:
    host: localhost
    database: msad
    user: msad
  redis:
    address: localhost:6379
`

func TestLoadFromFile_AppliesDefaults(t *testing.T) {
	cfg, err := LoadFromFile(writeConfig(t, minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, 5432, cfg.Database.Postgres.Port)
	assert.Equal(t, "disable", cfg.Database.Postgres.SSLMode)
	assert.Equal(t, "local", cfg.Storage.Provider)
	assert.Equal(t, "contestant-documents", cfg.Storage.DefaultBucket)
	assert.Equal(t, "registrationFormData", cfg.Registration.DraftKeyPrefix)
	assert.Equal(t, int64(5*1024*1024), cfg.Registration.MaxUploadBytes)
	assert.Equal(t, "contestants", cfg.Registration.Table)
	assert.Equal(t, "MSAD", cfg.Registration.ReferencePrefix)
	assert.Equal(t, 18, cfg.Registration.MinAge)
	assert.Equal(t, 30, cfg.Registration.MaxAge)
	assert.Equal(t, 50, cfg.Registration.MinWords)
	assert.Equal(t, 30*24*time.Hour, cfg.Registration.DraftExpiry())
	assert.Equal(t, "contestant-review", cfg.Camunda.ReviewProcessID)
	assert.Equal(t, "contestants", cfg.Database.Elasticsearch.ApplicationIndex)
	assert.False(t, cfg.Registration.RequireIdentity)
}

func TestLoadFromFile_ExpandsEnvPlaceholders(t *testing.T) {
	t.Setenv("MSAD_TEST_PG_PASSWORD", "s3cret")

	cfg, err := LoadFromFile(writeConfig(t, minimalYAML+`
    password: ${MSAD_TEST_PG_PASSWORD}
`))
	require.NoError(t, err)

	assert.Equal(t, "s3cret", cfg.Database.Redis.Password)
}

func TestLoadFromFile_WorkerDefaults(t *testing.T) {
	cfg, err := LoadFromFile(writeConfig(t, minimalYAML+`
workers:
  update-application-status:
    enabled: true
`))
	require.NoError(t, err)

	w := GetWorkerConfig(cfg, "update-application-status")
	assert.True(t, w.Enabled)
	assert.Equal(t, 5, w.MaxJobsActive)
	assert.Equal(t, 30000, w.Timeout)
	assert.Equal(t, 3, w.MaxRetries)

	assert.True(t, IsWorkerEnabled(cfg, "update-application-status"))
	assert.False(t, IsWorkerEnabled(cfg, "index-contestant-application"))
	assert.False(t, GetWorkerConfig(cfg, "unknown").Enabled)
}

func TestLoadFromFile_Validation(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "missing postgres host",
			yaml:    "database:\n  redis:\n    address: x\n",
			wantErr: "database.postgres.host is required",
		},
		{
			name:    "missing redis",
			yaml:    "database:\n  postgres:\n    host: h\n    database: d\n    user: u\n",
			wantErr: "database.redis.address is required",
		},
		{
			name:    "bad storage provider",
			yaml:    minimalYAML + "storage:\n  provider: ftp\n",
			wantErr: "storage.provider",
		},
		{
			name:    "inverted age range",
			yaml:    minimalYAML + "registration:\n  min_age: 40\n  max_age: 30\n",
			wantErr: "registration.min_age",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromFile(writeConfig(t, tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRequireCamunda(t *testing.T) {
	assert.Error(t, RequireCamunda(&Config{}))
	assert.NoError(t, RequireCamunda(&Config{Camunda: CamundaConfig{BrokerAddress: "zeebe:26500"}}))
}

func TestPostgresConfig_GetDSN(t *testing.T) {
	p := PostgresConfig{Host: "db", Port: 5432, User: "u", Password: "p", Database: "msad", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=msad sslmode=disable", p.GetDSN())
}

func TestGetDuration(t *testing.T) {
	assert.Equal(t, 1500*time.Millisecond, GetDuration(1500))
}
