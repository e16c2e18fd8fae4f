package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	for _, v := range []string{
		"FIN_AGENT_PROVIDER", "FIN_AGENT_MODEL",
		"DEEPSEEK_API_KEY", "DEEPSEEK_BASE_URL", "TUSHARE_TOKEN",
	} {
		t.Setenv(v, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultProvider, cfg.Provider)
	assert.Equal(t, DefaultBaseURL, cfg.BaseURL)
	assert.Equal(t, DefaultModel, cfg.Model)
	assert.True(t, cfg.Stream)
	assert.Empty(t, cfg.APIKey)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	isolate(t)

	cfg := &Config{
		Provider:     "openai",
		Model:        "gpt-4o",
		APIKey:       "sk-test",
		BaseURL:      "https://api.openai.com/v1",
		TushareToken: "tok",
		Stream:       true,
	}
	require.NoError(t, cfg.Save())

	loaded, err := Load()
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestEnvOverridesFile(t *testing.T) {
	isolate(t)

	cfg := &Config{Provider: "deepseek", Model: "deepseek-chat", APIKey: "file-key"}
	require.NoError(t, cfg.Save())

	t.Setenv("DEEPSEEK_API_KEY", "env-key")
	t.Setenv("FIN_AGENT_MODEL", "deepseek-reasoner")

	loaded, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "env-key", loaded.APIKey)
	assert.Equal(t, "deepseek-reasoner", loaded.Model)
	assert.Equal(t, "deepseek", loaded.Provider)
}

func TestClear(t *testing.T) {
	isolate(t)

	cfg := &Config{Provider: "deepseek", APIKey: "k"}
	require.NoError(t, cfg.Save())
	require.NoError(t, Clear())

	// Clearing twice is fine.
	require.NoError(t, Clear())

	loaded, err := Load()
	require.NoError(t, err)
	assert.Empty(t, loaded.APIKey)
}

func TestValidate(t *testing.T) {
	cfg := &Config{}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api_key")
	assert.Contains(t, err.Error(), "tushare_token")

	cfg.APIKey = "k"
	err = cfg.Validate()
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "api_key (")

	cfg.TushareToken = "t"
	assert.NoError(t, cfg.Validate())
}

func TestProfileRoundTripAndSummary(t *testing.T) {
	isolate(t)

	p, err := LoadProfile()
	require.NoError(t, err)
	assert.Empty(t, p.Summary())

	p.Merge(Profile{
		RiskTolerance: "moderate",
		Watchlist:     []string{"000001.SZ", "600519.SH"},
	})
	require.NoError(t, p.Save())

	loaded, err := LoadProfile()
	require.NoError(t, err)
	assert.Equal(t, "moderate", loaded.RiskTolerance)

	sum := loaded.Summary()
	assert.Contains(t, sum, "Risk tolerance: moderate")
	assert.Contains(t, sum, "000001.SZ, 600519.SH")
	assert.NotContains(t, sum, "Horizon")
}

func TestProfileMergeKeepsExisting(t *testing.T) {
	p := &Profile{RiskTolerance: "low", Watchlist: []string{"000001.SZ"}}
	p.Merge(Profile{Horizon: "5y"})

	assert.Equal(t, "low", p.RiskTolerance)
	assert.Equal(t, "5y", p.Horizon)
	assert.Equal(t, []string{"000001.SZ"}, p.Watchlist)
}
