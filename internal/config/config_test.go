package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"PORT", "ADVISOR_LOG_LEVEL", EnvOpenAIKey, EnvTavilyKey, EnvAlphaVantageKey} {
		t.Setenv(k, "")
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, defaultHTTPAddr, cfg.HTTP.Addr)
	assert.Equal(t, []string{"*"}, cfg.HTTP.CORSOrigins)
	assert.Equal(t, defaultCachePath, cfg.Cache.Path)
	assert.Equal(t, 7, cfg.Cache.TTLDays)
	assert.Equal(t, "1d", cfg.Cache.SweepInterval)
	assert.True(t, cfg.Audit.Enabled)
	assert.Equal(t, 10, cfg.Search.MaxResults)
	assert.Equal(t, "basic", cfg.Search.SearchDepth)
	assert.True(t, cfg.Search.IncludeRawContent)
	assert.Equal(t, defaultLLMModel, cfg.LLM.Model)
	assert.InDelta(t, defaultLLMTemperature, cfg.LLM.Temperature, 1e-9)
	assert.Equal(t, defaultWorkflowRunTimeout, cfg.Workflow.RunTimeoutSeconds)
	assert.Equal(t, 0, cfg.Workflow.NodeTimeoutSeconds)
}

func TestLoad_ExplicitValuesWin(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", `
http:
  addr: ":9000"
cache:
  ttl_days: 3
  sweep_interval: ""
audit:
  enabled: false
search:
  max_results: 5
  search_depth: advanced
  include_raw_content: false
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.HTTP.Addr)
	assert.Equal(t, 3, cfg.Cache.TTLDays)
	assert.Equal(t, "", cfg.Cache.SweepInterval)
	assert.False(t, cfg.Audit.Enabled)
	assert.Equal(t, 5, cfg.Search.MaxResults)
	assert.Equal(t, "advanced", cfg.Search.SearchDepth)
	assert.False(t, cfg.Search.IncludeRawContent)
}

func TestLoad_PortOverride(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "8123")
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ":8123", cfg.HTTP.Addr)
}

func TestLoad_IncludesMergeInOrder(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", `
llm:
  model: base-model
  api_url: https://llm.example/v1
cache:
  ttl_days: 2
`)
	path := writeFile(t, dir, "config.yaml", `
include:
  - base.yaml
cache:
  ttl_days: 9
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "base-model", cfg.LLM.Model)
	assert.Equal(t, "https://llm.example/v1", cfg.LLM.APIURL)
	assert.Equal(t, 9, cfg.Cache.TTLDays, "the including file overrides its includes")
}

func TestLoad_IncludeCycle(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", "include: [b.yaml]\n")
	writeFile(t, dir, "b.yaml", "include: [a.yaml]\n")
	_, err := Load(filepath.Join(dir, "a.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "include cycle")
}

func TestLoad_Validation(t *testing.T) {
	cases := map[string]string{
		"max results":  "search:\n  max_results: 50\n",
		"search depth": "search:\n  search_depth: deep\n",
		"audit path":   "audit:\n  enabled: true\n  path: \"\"\n",
		"timeouts":     "workflow:\n  node_timeout_seconds: -1\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			path := writeFile(t, t.TempDir(), "config.yaml", body)
			_, err := Load(path)
			require.Error(t, err)
		})
	}
}

func TestCredentials_Require(t *testing.T) {
	err := Credentials{OpenAIKey: "sk"}.Require()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingCredential)
	assert.Contains(t, err.Error(), EnvTavilyKey)
	assert.Contains(t, err.Error(), EnvAlphaVantageKey)
	assert.NotContains(t, err.Error(), EnvOpenAIKey)

	assert.NoError(t, Credentials{OpenAIKey: "a", TavilyKey: "b", AlphaVantageKey: "c"}.Require())
}

func TestLoadCredentials_FromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvOpenAIKey, "  sk-test ")
	creds := LoadCredentials()
	assert.Equal(t, "sk-test", creds.OpenAIKey)
}
