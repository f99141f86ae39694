package config

// Package config provides a reusable loader for a TRENTOS-M instance's
// configuration files and environment variables. It is versioned so
// that applications can depend on a stable API contract.
//
// Version: v0.1.0

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/TRENT-OS/os-core-api-sub000/pkg/utils"
)

// Version is the semantic version of this configuration package.
const Version = "v0.1.0"

// Config represents the unified configuration for a TRENTOS-M instance.
// It mirrors the structure of the YAML files under cmd/config and is
// also what core.ConfigServer reads its parameter tree from.
type Config struct {
	Dataport struct {
		SizeBytes int `mapstructure:"size_bytes" json:"size_bytes"`
	} `mapstructure:"dataport" json:"dataport"`

	Crypto struct {
		EntropySource string `mapstructure:"entropy_source" json:"entropy_source"`
		NoPrediction  bool   `mapstructure:"no_prediction_resistance" json:"no_prediction_resistance"`
	} `mapstructure:"crypto" json:"crypto"`

	Partitions []struct {
		ID         int    `mapstructure:"id" json:"id"`
		StartBlock uint64 `mapstructure:"start_block" json:"start_block"`
		EndBlock   uint64 `mapstructure:"end_block" json:"end_block"`
		BlockSize  int    `mapstructure:"block_size" json:"block_size"`
		ReadOnly   bool   `mapstructure:"read_only" json:"read_only"`
	} `mapstructure:"partitions" json:"partitions"`

	Socket struct {
		TableSize int `mapstructure:"table_size" json:"table_size"`
	} `mapstructure:"socket" json:"socket"`

	TLS struct {
		TrustAnchorPath string   `mapstructure:"trust_anchor_path" json:"trust_anchor_path"`
		Ciphersuites    []string `mapstructure:"ciphersuites" json:"ciphersuites"`
	} `mapstructure:"tls" json:"tls"`

	Logging struct {
		Level string `mapstructure:"level" json:"level"`
		Sinks []string `mapstructure:"sinks" json:"sinks"`
		File  string `mapstructure:"file" json:"file"`
	} `mapstructure:"logging" json:"logging"`
}

// AppConfig holds the configuration loaded via Load or LoadFromEnv.
var AppConfig Config

// Load reads configuration files and merges any environment specific
// overrides. The resulting configuration is stored in AppConfig and returned.
//
// The function uses the provided environment name to merge additional config
// files. If env is empty, only the default configuration is loaded.
func Load(env string) (*Config, error) {
	_ = godotenv.Load(".env")

	viper.SetConfigName("default")
	viper.AddConfigPath("cmd/config")
	viper.AddConfigPath("config")
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		return nil, utils.Wrap(err, "load config")
	}

	if env != "" {
		viper.SetConfigName(env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, utils.Wrap(err, fmt.Sprintf("merge %s config", env))
		}
	}

	viper.AutomaticEnv()

	if err := viper.Unmarshal(&AppConfig); err != nil {
		return nil, utils.Wrap(err, "unmarshal config")
	}
	return &AppConfig, nil
}

// LoadFromEnv loads configuration using the TRENTOS_ENV environment variable.
func LoadFromEnv() (*Config, error) {
	return Load(utils.EnvOrDefault("TRENTOS_ENV", ""))
}
