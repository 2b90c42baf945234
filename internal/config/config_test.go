package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "gamelens.db", cfg.DBPath)
	assert.Empty(t, cfg.DBDriver)
	assert.Equal(t, "https://api.rawg.io/api", cfg.RAWG.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.RAWG.Timeout)
	assert.Empty(t, cfg.RAWG.APIKey)
	assert.Equal(t, "wwwroot/images/games", cfg.Assets.Dir)
	assert.Equal(t, "/images/games", cfg.Assets.URLPrefix)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestConfig_GetDBPath(t *testing.T) {
	tests := []struct {
		name     string
		dbPath   string
		expected string
	}{
		{"returns configured path", "custom.db", "custom.db"},
		{"returns default when empty", "", "gamelens.db"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{DBPath: tt.dbPath}
			assert.Equal(t, tt.expected, cfg.GetDBPath())
		})
	}
}

func TestConfig_Getters(t *testing.T) {
	empty := &Config{}
	assert.Equal(t, "https://api.rawg.io/api", empty.GetRAWGBaseURL())
	assert.Equal(t, 10*time.Second, empty.GetRAWGTimeout())
	assert.Equal(t, "wwwroot/images/games", empty.GetAssetsDir())
	assert.Equal(t, "/images/games", empty.GetAssetURLPrefix())
	assert.Equal(t, ":8080", empty.GetServerAddr())

	set := &Config{
		RAWG:   RAWGConfig{BaseURL: "http://localhost:9000/api/", Timeout: 2 * time.Second},
		Assets: AssetsConfig{Dir: "/srv/covers", URLPrefix: "covers/"},
		Server: ServerConfig{Addr: "127.0.0.1:9090"},
	}
	assert.Equal(t, "http://localhost:9000/api", set.GetRAWGBaseURL())
	assert.Equal(t, 2*time.Second, set.GetRAWGTimeout())
	assert.Equal(t, "/srv/covers", set.GetAssetsDir())
	assert.Equal(t, "/covers", set.GetAssetURLPrefix())
	assert.Equal(t, "127.0.0.1:9090", set.GetServerAddr())
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	assert.ErrorIs(t, cfg.Validate(), ErrMissingAPIKey)

	cfg.RAWG.APIKey = "   "
	assert.ErrorIs(t, cfg.Validate(), ErrMissingAPIKey)

	cfg.RAWG.APIKey = "secret"
	assert.NoError(t, cfg.Validate())

	cfg.RAWG.Timeout = -time.Second
	assert.Error(t, cfg.Validate())
}

func TestLoad_FromEnvPath(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	content := `
db_path: /data/games.db
db_driver: sqlite3
rawg:
  api_key: file-key
  timeout: 3s
assets:
  dir: /data/covers
logging:
  format: json
  level: debug
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0600))
	t.Setenv("GAMELENS_CONFIG", configPath)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/data/games.db", cfg.DBPath)
	assert.Equal(t, "sqlite3", cfg.DBDriver)
	assert.Equal(t, "file-key", cfg.RAWG.APIKey)
	assert.Equal(t, 3*time.Second, cfg.RAWG.Timeout)
	assert.Equal(t, "https://api.rawg.io/api", cfg.RAWG.BaseURL, "unset fields keep defaults")
	assert.Equal(t, "/data/covers", cfg.Assets.Dir)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("rawg:\n  api_key: file-key\ndb_path: file.db\n"), 0600))

	t.Setenv("GAMELENS_CONFIG", configPath)
	t.Setenv("GAMELENS_RAWG_API_KEY", "env-key")
	t.Setenv("GAMELENS_DB", "env.db")
	t.Setenv("GAMELENS_RAWG_TIMEOUT", "750ms")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "env-key", cfg.RAWG.APIKey)
	assert.Equal(t, "env.db", cfg.DBPath)
	assert.Equal(t, 750*time.Millisecond, cfg.RAWG.Timeout)
}

func TestLoad_InvalidEnv(t *testing.T) {
	t.Setenv("GAMELENS_CONFIG", "")
	t.Setenv("GAMELENS_RAWG_TIMEOUT", "soon")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse env:")
}

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv("GAMELENS_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("rawg: [unterminated"), 0600))
	t.Setenv("GAMELENS_CONFIG", configPath)

	_, err := Load()
	assert.Error(t, err)
}
