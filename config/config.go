// Package config loads the YAML file shared by the server and the command-line tools.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v2"

	"fae/dataset"
	qhttp "fae/http"
	"fae/logging"
	"fae/ml"
	"fae/training"
)

type Config struct {
	Server   qhttp.ServerConfig     `yaml:"server"`
	Log      logging.Config         `yaml:"log"`
	Database DatabaseConfig         `yaml:"database"`
	Model    ModelConfig            `yaml:"model"`
	Data     dataset.RetrieveConfig `yaml:"data"`
	Training training.Config        `yaml:"training"`
}

type DatabaseConfig struct {
	// Path of the sqlite file. Empty disables the prediction and training logs.
	Path string `yaml:"path"`
}

type ModelConfig struct {
	ArtifactPath string `yaml:"artifact_path"`
	Watch        bool   `yaml:"watch"`
	CacheSize    int    `yaml:"cache_size"`
}

// FireFeatures are the columns the fire classifier consumes after encoding.
var FireFeatures = []string{"SIZE", "FUEL_lpg", "FUEL_kerosene", "FUEL_thinner", "DISTANCE", "DESIBEL", "AIRFLOW", "FREQUENCY"}

func Default() Config {
	return Config{
		Server:   qhttp.DefaultServerConfig(),
		Log:      logging.DefaultConfig(),
		Database: DatabaseConfig{Path: "data/fae.db"},
		Model: ModelConfig{
			ArtifactPath: "models/logistic_regression_output.json",
			Watch:        true,
			CacheSize:    1024,
		},
		Data: dataset.RetrieveConfig{
			DestDir:  "data",
			Encoding: "utf-8",
			Timeout:  time.Minute,
		},
		Training: training.Config{
			TestRatio: training.DefaultTestRatio,
			Seed:      training.DefaultSeed,
			Schema:    dataset.FireSchema(),
			Pipeline: ml.PipelineConfig{
				CategoricalVariables: []string{"FUEL"},
				SelectedFeatures:     append([]string(nil), FireFeatures...),
				ConstantColumns:      ml.ConstantZero,
			},
			Classifier: ml.ClassifierConfig{
				Kind:        ml.KindLogisticRegression,
				C:           ml.DefaultC,
				ClassWeight: "balanced",
				MaxIter:     ml.DefaultMaxIter,
				Tolerance:   ml.DefaultTolerance,
			},
		},
	}
}

// Load reads path on top of Default. Keys omitted from the file keep their default.
func Load(path string) (Config, error) {
	config := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.UnmarshalStrict(data, &config); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	config.resolve()
	if err := config.Validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

// LoadOrDefault behaves like Load but returns the defaults when path does not exist.
func LoadOrDefault(path string) (Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		config := Default()
		config.resolve()
		return config, nil
	}
	return Load(path)
}

// resolve fills the settings derived from other sections.
func (c *Config) resolve() {
	if c.Training.ArtifactPath == "" {
		c.Training.ArtifactPath = c.Model.ArtifactPath
	}
	if c.Training.Dataset == "" {
		c.Training.Dataset = filepath.Join(c.Data.DestDir, dataset.RetrievedFile)
	}
	c.Training = c.Training.WithDefaults()
}

func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server port %d is out of range", c.Server.Port)
	}
	if c.Model.ArtifactPath == "" {
		return errors.New("config: model artifact path is required")
	}
	if _, err := ml.NewClassifier(c.Training.Classifier); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return c.Training.Validate()
}
