package ml

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// Artifact file names inside the artifact directory.
const (
	ModelFile    = "immo_ch_model.json"
	ScalerFile   = "immo_ch_scaler.json"
	FeaturesFile = "immo_ch_features.txt"
)

// ArtifactPaths locates the files written by the training pipeline.
type ArtifactPaths struct {
	Model    string
	Scaler   string
	Features string
}

// DefaultArtifactPaths returns the standard file names under dir.
func DefaultArtifactPaths(dir string) ArtifactPaths {
	return ArtifactPaths{
		Model:    filepath.Join(dir, ModelFile),
		Scaler:   filepath.Join(dir, ScalerFile),
		Features: filepath.Join(dir, FeaturesFile),
	}
}

// Artifacts is what LoadArtifacts found. Any field may be nil; the
// predictor reports the gaps through Health.
type Artifacts struct {
	Model        Regressor
	Scaler       *StandardScaler
	FeatureNames []string
}

// LoadArtifacts loads the model, the optional scaler and the feature list.
// Missing or unreadable files are logged and left empty. A feature list that
// does not match the encoder is returned as an error: serving a model
// trained on another schema would silently produce wrong rents.
func LoadArtifacts(paths ArtifactPaths, modelType string, logger *zap.Logger, opts ...LoadOption) (*Artifacts, error) {
	artifacts := &Artifacts{}

	names, err := ReadFeatureNames(paths.Features)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		logger.Warn("feature list not found", zap.String("path", paths.Features))
	case err != nil:
		logger.Error("failed to read feature list", zap.String("path", paths.Features), zap.Error(err))
	default:
		if err := CheckFeatureNames(names); err != nil {
			return nil, fmt.Errorf("%s: %w", paths.Features, err)
		}
		artifacts.FeatureNames = names
		logger.Info("feature list loaded", zap.String("path", paths.Features), zap.Int("features", len(names)))
	}

	model, err := LoadModel(modelType, paths.Model, opts...)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		logger.Warn("model not found", zap.String("path", paths.Model))
	case err != nil:
		logger.Error("failed to load model", zap.String("path", paths.Model), zap.String("type", modelType), zap.Error(err))
	default:
		artifacts.Model = model
		logger.Info("model loaded", zap.String("path", paths.Model), zap.String("type", modelType))
	}

	if paths.Scaler != "" {
		scaler, err := LoadScaler(paths.Scaler)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			logger.Info("scaler not found", zap.String("path", paths.Scaler))
		case err != nil:
			logger.Error("failed to load scaler", zap.String("path", paths.Scaler), zap.Error(err))
		default:
			artifacts.Scaler = scaler
			logger.Info("scaler loaded", zap.String("path", paths.Scaler))
		}
	}

	return artifacts, nil
}

// ReadFeatureNames reads a newline-delimited feature list. Blank lines and
// surrounding whitespace are ignored.
func ReadFeatureNames(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var names []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		name := strings.TrimSpace(scanner.Text())
		if name == "" {
			continue
		}
		names = append(names, name)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return names, nil
}

// WriteFeatureNames writes the encoder's column order to path.
func WriteFeatureNames(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strings.Join(FeatureNames(), "\n")), 0o644)
}
