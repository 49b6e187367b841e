package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slnfs/station-ledger/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "slnfs_crm.db", cfg.Database.Path)
	assert.Equal(t, config.DefaultStationName, cfg.Station.Name)
	assert.Equal(t, "admin", cfg.Auth.Username)
	assert.Equal(t, 24*time.Hour, cfg.Auth.SessionTTL)
	assert.Equal(t, "backups", cfg.Backup.Dir)
	assert.Zero(t, cfg.Backup.Interval)
	assert.False(t, cfg.Backup.S3.Enabled)
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9090
station:
  name: Test Station
auth:
  session_ttl: 2h
backup:
  interval: 24h
`), 0o600))
	t.Setenv("SLNFS_DATABASE_PATH", filepath.Join(dir, "ledger.db"))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "Test Station", cfg.Station.Name)
	assert.Equal(t, 2*time.Hour, cfg.Auth.SessionTTL)
	assert.Equal(t, 24*time.Hour, cfg.Backup.Interval)
	assert.Equal(t, filepath.Join(dir, "ledger.db"), cfg.Database.Path)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestValidate_S3NeedsBucket(t *testing.T) {
	t.Setenv("SLNFS_BACKUP_S3_ENABLED", "true")
	_, err := config.Load("")
	assert.Error(t, err)
}
