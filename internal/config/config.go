package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Runs    RunsConfig    `yaml:"runs" mapstructure:"runs"`
	Explain ExplainConfig `yaml:"explain" mapstructure:"explain"`
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Eval    EvalConfig    `yaml:"eval" mapstructure:"eval"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// RunsConfig locates run artifacts.
type RunsConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// ExplainConfig tunes run comparison.
type ExplainConfig struct {
	// MaxDiffs truncates each report diff list when > 0.
	MaxDiffs int `yaml:"max_diffs" mapstructure:"max_diffs"`
}

// StoreConfig configures the ingest record backend.
type StoreConfig struct {
	Driver string `yaml:"driver" mapstructure:"driver"`
	Path   string `yaml:"path" mapstructure:"path"`
}

// EvalConfig configures bundle assembly and scoring.
type EvalConfig struct {
	QuestionBank string `yaml:"question_bank" mapstructure:"question_bank"`
	BundleDir    string `yaml:"bundle_dir" mapstructure:"bundle_dir"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("HARNESS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("runs.dir", "runs")
	v.SetDefault("explain.max_diffs", 0)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "harness.db")
	v.SetDefault("eval.question_bank", "eval/question_bank.jsonl")
	v.SetDefault("eval.bundle_dir", "eval_bundles")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
