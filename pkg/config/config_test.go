package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "env-key")
	t.Setenv("OPENAI_BASE_URL", "https://llm.example.com/v1")

	cfg := Default()

	assert.Equal(t, ":8080", cfg.Server.ListenAddr)
	assert.Equal(t, 20, cfg.Server.HistoryWindow)
	assert.Equal(t, 2000, cfg.Server.MaxMessageSize)
	assert.Equal(t, "crewdesk.db", cfg.DatabasePath)
	assert.Equal(t, "env-key", cfg.LLM.APIKey)
	assert.Equal(t, "https://llm.example.com/v1", cfg.LLM.BaseURL)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.False(t, cfg.LLM.ClassifierEnabled)
	assert.Zero(t, cfg.Context.SummaryTrigger, "context overrides default to zero (use built-ins)")
}

func TestLoad(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "env-key")

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  listen_addr: ":9090"
  history_window: 40
database_path: /var/lib/crewdesk/crewdesk.db
llm:
  api_key: file-key
  model: gpt-4o
  summarization_model: gpt-4o-mini
  classifier_enabled: true
context:
  summary_trigger: 4000
  recent_window: 3
router:
  order_keywords: ["order", "parcel"]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.ListenAddr)
	assert.Equal(t, 40, cfg.Server.HistoryWindow)
	assert.Equal(t, 2000, cfg.Server.MaxMessageSize, "unset fields still get defaults")
	assert.Equal(t, "/var/lib/crewdesk/crewdesk.db", cfg.DatabasePath)
	assert.Equal(t, "file-key", cfg.LLM.APIKey, "file value wins over the environment")
	assert.Equal(t, "gpt-4o", cfg.LLM.Model)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.SummarizationModel)
	assert.True(t, cfg.LLM.ClassifierEnabled)
	assert.Equal(t, 4000, cfg.Context.SummaryTrigger)
	assert.Equal(t, 3, cfg.Context.RecentWindow)
	assert.Equal(t, []string{"order", "parcel"}, cfg.Router.OrderKeywords)
	assert.Nil(t, cfg.Router.BillingKeywords)
}

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "env-key")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.ListenAddr)
	assert.Equal(t, "env-key", cfg.LLM.APIKey)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not a map"), 0o600))
	_, err = Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestValidate(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	cfg := Default()
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api_key is required")

	cfg.LLM.APIKey = "key"
	require.NoError(t, cfg.Validate())

	cfg.Context.RecentWindow = -1
	require.Error(t, cfg.Validate())
}
