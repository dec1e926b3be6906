package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `
[mysql]
dsn = "user:pass@tcp(localhost:3306)/attribution?parseTime=true"

[http]
port = "9000"
allowed_origins = ["https://shop.example.com"]

[identity]
batch_size = 100

[report.sku]
excluded_region = "ae"
`

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(testConfig), 0o600))
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("IDENTITY_WORKER_INTERVAL", "5m")

	c, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "user:pass@tcp(localhost:3306)/attribution?parseTime=true", c.DB.DSN)
	assert.Equal(t, "9000", c.HTTP.Port)
	assert.Equal(t, []string{"https://shop.example.com"}, c.HTTP.AllowedOrigins)
	assert.Equal(t, "from-env", c.JWT.Secret)
	assert.Equal(t, 100, c.Identity.BatchSize)
	assert.Equal(t, 5*time.Minute, c.Identity.WorkerInterval)
	assert.Equal(t, "ae", c.Report.SKU.ExcludedRegion)

	// untouched keys keep their defaults
	d := Default()
	assert.Equal(t, d.RateLimit, c.RateLimit)
	assert.Equal(t, d.Backfill.PageSleep, c.Backfill.PageSleep)
	assert.Equal(t, d.HTTP.MaxUploadMB, c.HTTP.MaxUploadMB)
}

func TestLoadConfigDSNFromParts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[http]\nport = \"8080\"\n"), 0o600))
	t.Setenv("MYSQL_HOST", "db")
	t.Setenv("MYSQL_USER", "u")
	t.Setenv("MYSQL_PASSWORD", "p")
	t.Setenv("MYSQL_DATABASE", "attribution")

	c, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "u:p@tcp(db:3306)/attribution?charset=utf8mb4&parseTime=true", c.DB.DSN)
}
