// Package config loads the service and pipeline configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SWISSRELOCATOR_"

// Config is the whole service and pipeline configuration.
type Config struct {
	Http     HTTPConfig     `yaml:"http"`
	Log      LogConfig      `yaml:"log"`
	ML       MLConfig       `yaml:"ml"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Pipeline PipelineConfig `yaml:"pipeline"`
}

// HTTPConfig configures the API server.
type HTTPConfig struct {
	Port               int           `yaml:"port"`
	BasePath           string        `yaml:"base_path"`
	Timeout            time.Duration `yaml:"timeout"`
	MaxBodyBytes       int64         `yaml:"max_body_bytes"`
	AllowedOrigins     []string      `yaml:"allowed_origins"`
	RateLimitPerSecond float64       `yaml:"rate_limit_per_second"`
	RateLimitBurst     int           `yaml:"rate_limit_burst"`
}

// LogConfig configures the zap logger and file rotation.
type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"` // json or console
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// MLConfig locates the model artifacts and describes the deployed model.
type MLConfig struct {
	ArtifactDir    string  `yaml:"artifact_dir"`
	ModelType      string  `yaml:"model_type"`
	ScaleInputs    bool    `yaml:"scale_inputs"`
	BaseScore      float64 `yaml:"base_score"`
	MAE            float64 `yaml:"mae_chf"`
	R2Score        float64 `yaml:"r2_score"`
	EURRate        float64 `yaml:"eur_rate"`
	ModelLabel     string  `yaml:"model_label"`
	TrainingData   string  `yaml:"training_data"`
	LastTrained    string  `yaml:"last_trained"`
	WatchArtifacts bool    `yaml:"watch_artifacts"`
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// PipelineConfig drives the offline listings pipeline.
type PipelineConfig struct {
	RawDir          string   `yaml:"raw_dir"`
	DBPath          string   `yaml:"db_path"`
	ExportPath      string   `yaml:"export_path"`
	FeaturesPath    string   `yaml:"features_path"`
	Workers         int      `yaml:"workers"`
	Cities          []string `yaml:"cities"`
	Transactions    []string `yaml:"transactions"`
	PropertyTypes   []string `yaml:"property_types"`
	MinSurface      float64  `yaml:"min_surface"`
	MaxSurface      float64  `yaml:"max_surface"`
	MinPricePerM2   float64  `yaml:"min_price_m2"`
	MaxPricePerM2   float64  `yaml:"max_price_m2"`
	OutlierQuantile float64  `yaml:"outlier_quantile"`
}

// Load reads the YAML file at path, applies defaults and then environment
// overrides. A missing file yields the defaults. A .env file in the working
// directory is loaded first when present.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{}
	presetDefaults(cfg)
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	applyDefaults(cfg)
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{}
	presetDefaults(cfg)
	applyDefaults(cfg)
	return cfg
}

// presetDefaults fills keys for which zero is a meaningful setting. It runs
// before the file is parsed so an explicit 0 survives.
func presetDefaults(cfg *Config) {
	cfg.ML.BaseScore = 0.5
	cfg.Pipeline.OutlierQuantile = 0.005
}

func applyDefaults(cfg *Config) {
	if cfg.Http.Port == 0 {
		cfg.Http.Port = 8000
	}
	if cfg.Http.BasePath == "" {
		cfg.Http.BasePath = "/api/v1"
	}
	if cfg.Http.Timeout == 0 {
		cfg.Http.Timeout = 30 * time.Second
	}
	if cfg.Http.MaxBodyBytes == 0 {
		cfg.Http.MaxBodyBytes = 1 << 20
	}
	if len(cfg.Http.AllowedOrigins) == 0 {
		cfg.Http.AllowedOrigins = []string{
			"http://localhost:3000",
			"https://swissrelocator.vercel.app",
			"https://*.vercel.app",
		}
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Log.MaxSizeMB == 0 {
		cfg.Log.MaxSizeMB = 100
	}
	if cfg.Log.MaxBackups == 0 {
		cfg.Log.MaxBackups = 5
	}
	if cfg.Log.MaxAgeDays == 0 {
		cfg.Log.MaxAgeDays = 28
	}

	if cfg.ML.ArtifactDir == "" {
		cfg.ML.ArtifactDir = "ml_models"
	}
	if cfg.ML.ModelType == "" {
		cfg.ML.ModelType = "xgboost"
	}
	if cfg.ML.MAE == 0 {
		cfg.ML.MAE = 1425
	}
	if cfg.ML.R2Score == 0 {
		cfg.ML.R2Score = 0.763
	}
	if cfg.ML.EURRate == 0 {
		cfg.ML.EURRate = 0.92
	}
	if cfg.ML.ModelLabel == "" {
		cfg.ML.ModelLabel = "XGBoost Regressor"
	}
	if cfg.ML.TrainingData == "" {
		cfg.ML.TrainingData = "ImmoScout24 Suisse"
	}
	if cfg.ML.LastTrained == "" {
		cfg.ML.LastTrained = "2025-12"
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}

	if cfg.Pipeline.RawDir == "" {
		cfg.Pipeline.RawDir = "data/raw/immoscout"
	}
	if cfg.Pipeline.DBPath == "" {
		cfg.Pipeline.DBPath = "data/processed/immoscout.db"
	}
	if cfg.Pipeline.ExportPath == "" {
		cfg.Pipeline.ExportPath = "data/processed/immoscout_suisse_training.csv"
	}
	if cfg.Pipeline.FeaturesPath == "" {
		cfg.Pipeline.FeaturesPath = "ml_models/immo_ch_features.txt"
	}
	if cfg.Pipeline.Workers == 0 {
		cfg.Pipeline.Workers = 4
	}
	if len(cfg.Pipeline.Cities) == 0 {
		cfg.Pipeline.Cities = []string{"Genève", "Lausanne", "Zurich"}
	}
	if len(cfg.Pipeline.Transactions) == 0 {
		cfg.Pipeline.Transactions = []string{"Location", "Vente"}
	}
	if len(cfg.Pipeline.PropertyTypes) == 0 {
		cfg.Pipeline.PropertyTypes = []string{"Bureau", "Commercial"}
	}
	if cfg.Pipeline.MinSurface == 0 {
		cfg.Pipeline.MinSurface = 5
	}
	if cfg.Pipeline.MaxSurface == 0 {
		cfg.Pipeline.MaxSurface = 5000
	}
	if cfg.Pipeline.MinPricePerM2 == 0 {
		cfg.Pipeline.MinPricePerM2 = 5
	}
	if cfg.Pipeline.MaxPricePerM2 == 0 {
		cfg.Pipeline.MaxPricePerM2 = 150
	}
}

func applyEnv(cfg *Config) error {
	if v, ok := lookup("HTTP_PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sHTTP_PORT: %w", EnvPrefix, err)
		}
		cfg.Http.Port = port
	}
	if v, ok := lookup("LOG_LEVEL"); ok {
		cfg.Log.Level = v
	}
	if v, ok := lookup("LOG_FILE"); ok {
		cfg.Log.File = v
	}
	if v, ok := lookup("ML_ARTIFACT_DIR"); ok {
		cfg.ML.ArtifactDir = v
	}
	if v, ok := lookup("ML_MODEL_TYPE"); ok {
		cfg.ML.ModelType = v
	}
	if v, ok := lookup("METRICS_ENABLED"); ok {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sMETRICS_ENABLED: %w", EnvPrefix, err)
		}
		cfg.Metrics.Enabled = enabled
	}
	if v, ok := lookup("PIPELINE_DB_PATH"); ok {
		cfg.Pipeline.DBPath = v
	}
	if v, ok := lookup("PIPELINE_RAW_DIR"); ok {
		cfg.Pipeline.RawDir = v
	}
	return nil
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(EnvPrefix + key)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
