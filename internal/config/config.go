package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/robfig/cron/v3"

	"github.com/couchcryptid/climate-anomaly-etl/internal/domain"
	"github.com/couchcryptid/climate-anomaly-etl/internal/training"
)

// Config holds all pipeline settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	DataDir            string
	ArtifactDir        string
	LocalFile          string
	TeleconnectionFile string

	LabelSigmas float64
	LabelStdDev domain.StdDevEstimator

	// CDS acquisition.
	CDSURL          string
	CDSKey          string
	CDSTimeout      time.Duration
	CDSPollInterval time.Duration
	RequestsFile    string

	// Optional sinks; empty disables them.
	KafkaBrokers    []string
	KafkaTopic      string
	FeatureStoreDSN string
	PushgatewayURL  string

	RebuildSchedule   string
	AcquireOnSchedule bool

	TrainerCmd        string
	Training          training.Config
	TrainTestFraction float64
	RandomSeed        int64
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		DataDir:            sharedcfg.EnvOrDefault("DATA_DIR", "data"),
		ArtifactDir:        sharedcfg.EnvOrDefault("ARTIFACT_DIR", "artifacts"),
		LocalFile:          sharedcfg.EnvOrDefault("LOCAL_FILE", "era5_uberlandia_2020.nc"),
		TeleconnectionFile: sharedcfg.EnvOrDefault("TELECONNECTION_FILE", "era5_sst_atlantic_2020.nc"),

		CDSURL:       sharedcfg.EnvOrDefault("CDS_URL", "https://cds.climate.copernicus.eu/api"),
		CDSKey:       os.Getenv("CDS_KEY"),
		RequestsFile: os.Getenv("REQUESTS_FILE"),

		KafkaTopic:      sharedcfg.EnvOrDefault("KAFKA_TOPIC", "climate-datasets"),
		FeatureStoreDSN: os.Getenv("FEATURE_STORE_DSN"),
		PushgatewayURL:  os.Getenv("PUSHGATEWAY_URL"),

		RebuildSchedule: sharedcfg.EnvOrDefault("REBUILD_SCHEDULE", "0 6 1 * *"),
		TrainerCmd:      os.Getenv("TRAINER_CMD"),
		Training: training.Config{
			Optimizer: sharedcfg.EnvOrDefault("TRAINER_OPTIMIZER", "COBYLA"),
			Backend:   sharedcfg.EnvOrDefault("TRAINER_BACKEND", "aer_simulator"),
		},
	}

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = sharedcfg.ParseBrokers(brokers)
	}

	if cfg.LabelSigmas, err = parseFloat("LABEL_SIGMAS", "2"); err != nil {
		return nil, err
	}
	if cfg.LabelStdDev, err = domain.ParseStdDevEstimator(sharedcfg.EnvOrDefault("LABEL_STDDEV", "sample")); err != nil {
		return nil, fmt.Errorf("invalid LABEL_STDDEV: %w", err)
	}
	if cfg.CDSTimeout, err = parsePositiveDuration("CDS_TIMEOUT", "60s"); err != nil {
		return nil, err
	}
	if cfg.CDSPollInterval, err = parsePositiveDuration("CDS_POLL_INTERVAL", "5s"); err != nil {
		return nil, err
	}
	if cfg.AcquireOnSchedule, err = parseBool("ACQUIRE_ON_SCHEDULE", "true"); err != nil {
		return nil, err
	}
	if cfg.Training.FeatureMapReps, err = parsePositiveInt("TRAINER_FEATURE_MAP_REPS", "1"); err != nil {
		return nil, err
	}
	if cfg.Training.AnsatzReps, err = parsePositiveInt("TRAINER_ANSATZ_REPS", "1"); err != nil {
		return nil, err
	}
	if cfg.Training.MaxIter, err = parsePositiveInt("TRAINER_MAX_ITER", "50"); err != nil {
		return nil, err
	}
	if cfg.TrainTestFraction, err = parseFloat("TRAIN_TEST_FRACTION", "0.2"); err != nil {
		return nil, err
	}
	seed, err := strconv.ParseInt(sharedcfg.EnvOrDefault("RANDOM_SEED", "42"), 10, 64)
	if err != nil {
		return nil, errors.New("invalid RANDOM_SEED")
	}
	cfg.RandomSeed = seed

	if cfg.LabelSigmas <= 0 {
		return nil, errors.New("LABEL_SIGMAS must be positive")
	}
	if cfg.TrainTestFraction <= 0 || cfg.TrainTestFraction >= 1 {
		return nil, errors.New("TRAIN_TEST_FRACTION must be between 0 and 1")
	}
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}
	if _, err := cron.ParseStandard(cfg.RebuildSchedule); err != nil {
		return nil, fmt.Errorf("invalid REBUILD_SCHEDULE: %w", err)
	}

	return cfg, nil
}

// LocalPath is the local multi-variable NetCDF file.
func (c *Config) LocalPath() string {
	return c.dataPath(c.LocalFile)
}

// TeleconnectionPath is the teleconnection sst NetCDF file.
func (c *Config) TeleconnectionPath() string {
	return c.dataPath(c.TeleconnectionFile)
}

func (c *Config) dataPath(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.DataDir, name)
}

// LabelRule is the configured anomaly label on 2 m temperature.
func (c *Config) LabelRule() domain.LabelRule {
	return domain.LabelRule{
		Variable:  domain.VarTemperature,
		Sigmas:    c.LabelSigmas,
		Estimator: c.LabelStdDev,
	}
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parsePositiveInt(key, def string) (int, error) {
	n, err := strconv.Atoi(sharedcfg.EnvOrDefault(key, def))
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}

func parseFloat(key, def string) (float64, error) {
	f, err := strconv.ParseFloat(sharedcfg.EnvOrDefault(key, def), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return f, nil
}

func parseBool(key, def string) (bool, error) {
	b, err := strconv.ParseBool(sharedcfg.EnvOrDefault(key, def))
	if err != nil {
		return false, fmt.Errorf("invalid %s", key)
	}
	return b, nil
}
