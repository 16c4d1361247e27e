package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir moves into a fresh directory so no stray armeria.yaml or .env is
// picked up.
func chdir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdir(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "armeria.db", cfg.DBPath)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, 12*time.Hour, cfg.TokenTTL)
	assert.Equal(t, "COMANDO STAZIONE CARABINIERI", cfg.Report.Station)
	assert.Empty(t, cfg.Backup.Schedule)
}

func TestLoadFile(t *testing.T) {
	dir := chdir(t)
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
db: /data/registro.db
token_ttl: 30m
report:
  station: STAZIONE CC PISA
backup:
  schedule: "0 2 * * *"
  keep: 3
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/data/registro.db", cfg.DBPath)
	assert.Equal(t, 30*time.Minute, cfg.TokenTTL)
	assert.Equal(t, "STAZIONE CC PISA", cfg.Report.Station)
	assert.Equal(t, "0 2 * * *", cfg.Backup.Schedule)
	assert.Equal(t, 3, cfg.Backup.Keep)
	// Unset keys keep their defaults.
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "backup", cfg.Backup.Dir)
}

func TestLoadDefaultFile(t *testing.T) {
	dir := chdir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultFile), []byte("addr: :9090\n"), 0o600))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Addr)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	chdir(t)
	_, err := Load("nope.yaml")
	assert.Error(t, err)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := chdir(t)
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("db: [unclosed\n"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverridesFile(t *testing.T) {
	dir := chdir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultFile), []byte("db: from-file.db\n"), 0o600))
	t.Setenv("ARMERIA_DB", "from-env.db")
	t.Setenv("ARMERIA_BACKUP_KEEP", "5")
	t.Setenv("ARMERIA_TOKEN_TTL", "1h")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "from-env.db", cfg.DBPath)
	assert.Equal(t, 5, cfg.Backup.Keep)
	assert.Equal(t, time.Hour, cfg.TokenTTL)
}

func TestDotEnv(t *testing.T) {
	dir := chdir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("ARMERIA_REPORT_STATION=STAZIONE CC LUCCA\n"), 0o600))
	t.Setenv("ARMERIA_REPORT_STATION", "")
	os.Unsetenv("ARMERIA_REPORT_STATION")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "STAZIONE CC LUCCA", cfg.Report.Station)
}

func TestEnvInvalid(t *testing.T) {
	chdir(t)
	t.Setenv("ARMERIA_BACKUP_KEEP", "many")
	_, err := Load("")
	assert.Error(t, err)

	t.Setenv("ARMERIA_BACKUP_KEEP", "-1")
	_, err = Load("")
	assert.Error(t, err)
}

func TestApplyFlags(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	fs.String("addr", ":8080", "")
	require.NoError(t, fs.Parse([]string{"--db", "flag.db", "--addr", ":7070"}))

	cfg := Default()
	cfg.Report.Station = "FROM FILE"
	require.NoError(t, cfg.ApplyFlags(fs))
	assert.Equal(t, "flag.db", cfg.DBPath)
	assert.Equal(t, ":7070", cfg.Addr)
	// Flags left at their default do not override loaded values.
	assert.Equal(t, "FROM FILE", cfg.Report.Station)
}
