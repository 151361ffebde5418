package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv("APIFY_TOKEN", "")
	dir := t.TempDir()
	p := writeFile(t, dir, "config.yaml", "storage:\n  type: memory\n")

	cfg, err := Load(p)
	require.NoError(t, err)

	require.Equal(t, "memory", cfg.Storage.Type)
	require.Equal(t, "jobs", cfg.Storage.Table)
	require.Equal(t, "builtin", cfg.Normalizer.Mode)
	require.Equal(t, "IN", cfg.Collector.Input.Country)
	require.Equal(t, 15, cfg.Collector.Input.MaxItems)
	require.True(t, cfg.Collector.Input.SaveOnlyUniqueItems)
	require.True(t, cfg.Collector.Input.FollowApplyRedirects)
	require.True(t, cfg.Collector.Input.ParseCompanyDetails)
	require.Equal(t, filepath.Join(dir, "scraped_jobs.json"), cfg.Paths.Scraped)
	require.Equal(t, filepath.Join(dir, "formatted_jobs.json"), cfg.Paths.Formatted)
}

func TestLoadLocalOverlayAndEnv(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "config.yaml", `
collector:
  token: from-file
  input:
    max_items: 5
storage:
  type: sqlite
  sqlite:
    path: data/jobs.db
`)
	writeFile(t, dir, "config.local.yaml", `
collector:
  input:
    country: US
log:
  level: debug
`)
	t.Setenv("APIFY_TOKEN", "from-env")

	cfg, err := Load(p)
	require.NoError(t, err)
	require.Equal(t, "from-env", cfg.Collector.Token)
	require.Equal(t, "US", cfg.Collector.Input.Country)
	require.Equal(t, 5, cfg.Collector.Input.MaxItems)
	require.Equal(t, "debug", cfg.Log.Level)
	require.Equal(t, filepath.Join(dir, "data", "jobs.db"), cfg.Storage.SQLite.Path)
}

func TestLoadJSON5(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "config.json5", `{
		// trailing commas and comments are fine
		storage: {type: "supabase", supabase: {url: "https://x.supabase.co", key: "k"},},
		normalizer: {mode: "command", command: ["python", "format_jobs.py"]},
	}`)

	cfg, err := Load(p)
	require.NoError(t, err)
	require.Equal(t, "supabase", cfg.Storage.Type)
	require.Equal(t, []string{"python", "format_jobs.py"}, cfg.Normalizer.Command)
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Setenv("SUPABASE_URL", "")
	t.Setenv("SUPABASE_KEY", "")
	t.Setenv("LIBSQL_URL", "")

	cases := map[string]string{
		"unknown storage":   "storage:\n  type: mysql\n",
		"supabase no key":   "storage:\n  type: supabase\n  supabase:\n    url: http://x\n",
		"libsql no url":     "storage:\n  type: libsql\n",
		"command no argv":   "storage:\n  type: memory\nnormalizer:\n  mode: command\n",
		"bad normalizer":    "storage:\n  type: memory\nnormalizer:\n  mode: lambda\n",
		"bad log level":     "storage:\n  type: memory\nlog:\n  level: loud\n",
		"negative max item": "storage:\n  type: memory\ncollector:\n  input:\n    max_items: -1\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			p := writeFile(t, t.TempDir(), "config.yaml", body)
			_, err := Load(p)
			require.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
