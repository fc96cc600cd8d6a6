package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.Http.Port)
	assert.Equal(t, "/api/v1", cfg.Http.BasePath)
	assert.Equal(t, "xgboost", cfg.ML.ModelType)
	assert.Equal(t, 1425.0, cfg.ML.MAE)
	assert.Equal(t, 0.92, cfg.ML.EURRate)
	assert.Equal(t, []string{"Location", "Vente"}, cfg.Pipeline.Transactions)
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
http:
  port: 9090
  timeout: 5s
  allowed_origins: ["http://example.test"]
ml:
  artifact_dir: /srv/models
  mae_chf: 1300
log:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv(EnvPrefix+"ML_MODEL_TYPE", "decision_tree")
	t.Setenv(EnvPrefix+"HTTP_PORT", "7000")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7000, cfg.Http.Port)
	assert.Equal(t, 5*time.Second, cfg.Http.Timeout)
	assert.Equal(t, []string{"http://example.test"}, cfg.Http.AllowedOrigins)
	assert.Equal(t, "/srv/models", cfg.ML.ArtifactDir)
	assert.Equal(t, "decision_tree", cfg.ML.ModelType)
	assert.Equal(t, 1300.0, cfg.ML.MAE)
	assert.Equal(t, "debug", cfg.Log.Level)
	// untouched sections still get defaults
	assert.Equal(t, 0.763, cfg.ML.R2Score)
	assert.Equal(t, 0.5, cfg.ML.BaseScore)
	assert.Equal(t, 0.005, cfg.Pipeline.OutlierQuantile)
}

func TestLoadKeepsExplicitZero(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
ml:
  base_score: 0
pipeline:
  outlier_quantile: 0
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Zero(t, cfg.ML.BaseScore)
	assert.Zero(t, cfg.Pipeline.OutlierQuantile)
	assert.Equal(t, 5.0, cfg.Pipeline.MinSurface)
}

func TestLoadRejectsBadEnv(t *testing.T) {
	t.Setenv(EnvPrefix+"HTTP_PORT", "eighty")
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("http: [unclosed"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}
