package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "0 0 * * *", cfg.ScheduleCron)
	assert.Equal(t, "UTC", cfg.ScheduleTimezone)
	assert.Equal(t, BackendSupabase, cfg.RecordBackend)
	assert.Equal(t, 500, cfg.ScanPageSize)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := writeFile(t, "janitor.toml", `
max_concurrency = 4

[reconciler]
action_timeout = "3s"

[backends]
record = "Postgres"
identity = "memory"

[postgres]
database_url = "postgres://file"

[schedule]
cron = "30 2 * * *"
timezone = "Europe/Lisbon"
`)
	t.Setenv("SCHEDULE_TIMEZONE", "America/Sao_Paulo")
	t.Setenv("MAX_CONCURRENCY", "not-a-number")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.MaxConcurrency, "unparseable env keeps file value")
	assert.Equal(t, 3*time.Second, cfg.ActionTimeout)
	assert.Equal(t, BackendPostgres, cfg.RecordBackend)
	assert.Equal(t, "postgres://file", cfg.DatabaseURL)
	assert.Equal(t, "30 2 * * *", cfg.ScheduleCron)
	assert.Equal(t, "America/Sao_Paulo", cfg.ScheduleTimezone)
	assert.Equal(t, 3, cfg.MaxRetries, "undefined keys keep defaults")
	assert.NoError(t, cfg.Validate())
}

func TestLoad_FileErrors(t *testing.T) {
	_, err := Load(writeFile(t, "bad.toml", `[reconciler]
action_timeout = "soon"`))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "typo.toml", `max_concurency = 3`))
	assert.ErrorContains(t, err, "max_concurency")

	_, err = Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{name: "memory backends", mutate: func(c *Config) {}, ok: true},
		{name: "unknown record backend", mutate: func(c *Config) { c.RecordBackend = "mongo" }},
		{name: "unknown identity backend", mutate: func(c *Config) { c.IdentityBackend = "ldap" }},
		{name: "bad timezone", mutate: func(c *Config) { c.ScheduleTimezone = "Nowhere/City" }},
		{name: "bad cron", mutate: func(c *Config) { c.ScheduleCron = "* * *" }},
		{name: "zero concurrency", mutate: func(c *Config) { c.MaxConcurrency = 0 }},
		{name: "postgres without url", mutate: func(c *Config) { c.RecordBackend = BackendPostgres }},
		{name: "supabase without keys", mutate: func(c *Config) { c.IdentityBackend = BackendSupabase }},
		{name: "supabase complete", mutate: func(c *Config) {
			c.RecordBackend = BackendSupabase
			c.IdentityBackend = BackendSupabase
			c.SupabaseURL = "https://x.supabase.co"
			c.SupabaseServiceKey = "key"
		}, ok: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Defaults()
			cfg.RecordBackend = BackendMemory
			cfg.IdentityBackend = BackendMemory
			tc.mutate(cfg)

			err := cfg.Validate()
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestLoadDotEnv_DoesNotOverride(t *testing.T) {
	path := writeFile(t, ".env", "JANITOR_TEST_A=from-file\nJANITOR_TEST_B=\"quoted\"\n")
	t.Setenv("JANITOR_TEST_A", "from-env")
	t.Setenv("JANITOR_TEST_B", "")
	os.Unsetenv("JANITOR_TEST_B")

	require.NoError(t, LoadDotEnv(path, filepath.Join(t.TempDir(), "absent.env")))
	assert.Equal(t, "from-env", os.Getenv("JANITOR_TEST_A"))
	assert.Equal(t, "quoted", os.Getenv("JANITOR_TEST_B"))
}
