// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/blinklabs-io/zktender/database/plugin"
	"github.com/blinklabs-io/zktender/zkcrypto"
)

type ctxKey string

const configContextKey ctxKey = "zktender.config"

const (
	DefaultShutdownTimeout = "30s"
	DefaultOracleTimeout   = "30s"
	EnvPrefix              = "zktender"
)

func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configContextKey, cfg)
}

func FromContext(ctx context.Context) *Config {
	cfg, ok := ctx.Value(configContextKey).(*Config)
	if !ok {
		return nil
	}
	return cfg
}

const (
	DefaultBlobPlugin     = "badger"
	DefaultMetadataPlugin = "sqlite"
)

type tempConfig struct {
	Config   *Config                   `yaml:"config,omitempty"`
	Database *databaseConfig           `yaml:"database,omitempty"`
	Blob     map[string]map[string]any `yaml:"blob,omitempty"`
	Metadata map[string]map[string]any `yaml:"metadata,omitempty"`
}

type databaseConfig struct {
	Blob     map[string]any `yaml:"blob,omitempty"`
	Metadata map[string]any `yaml:"metadata,omitempty"`
}

type Config struct {
	DatabasePath    string  `yaml:"databasePath"    split_words:"true"`
	BlobPlugin      string  `yaml:"blobPlugin"      envconfig:"DATABASE_BLOB_PLUGIN"`
	MetadataPlugin  string  `yaml:"metadataPlugin"  envconfig:"DATABASE_METADATA_PLUGIN"`
	BindAddr        string  `yaml:"bindAddr"        split_words:"true"`
	ApiPort         uint    `yaml:"apiPort"         split_words:"true"`
	ApiRateLimit    float64 `yaml:"apiRateLimit"    split_words:"true"`
	ApiRateBurst    int     `yaml:"apiRateBurst"    split_words:"true"`
	MetricsPort     uint    `yaml:"metricsPort"     split_words:"true"`
	ShutdownTimeout string  `yaml:"shutdownTimeout" split_words:"true"`
	CryptoSuite     string  `yaml:"cryptoSuite"     split_words:"true"`
	VoteStake       float64 `yaml:"voteStake"       split_words:"true"`
	CommentStake    float64 `yaml:"commentStake"    split_words:"true"`
	// The API key also falls back to the unprefixed OPENAI_API_KEY
	OracleApiKey    string  `yaml:"oracleApiKey"    envconfig:"OPENAI_API_KEY"`
	OracleBaseUrl   string  `yaml:"oracleBaseUrl"   split_words:"true"`
	OracleModel     string  `yaml:"oracleModel"     split_words:"true"`
	OracleTimeout   string  `yaml:"oracleTimeout"   split_words:"true"`
	OracleRateLimit float64 `yaml:"oracleRateLimit" split_words:"true"`
	OracleRateBurst int     `yaml:"oracleRateBurst" split_words:"true"`
	Tracing         bool    `yaml:"tracing"`
	TracingStdout   bool    `yaml:"tracingStdout"   split_words:"true"`
	SeedDemo        bool    `yaml:"seedDemo"        split_words:"true"`
}

// DefaultConfig returns the built-in configuration defaults
func DefaultConfig() *Config {
	return &Config{
		DatabasePath:    ".zktender",
		BlobPlugin:      DefaultBlobPlugin,
		MetadataPlugin:  DefaultMetadataPlugin,
		BindAddr:        "0.0.0.0",
		ApiPort:         8080,
		ApiRateLimit:    5,
		ApiRateBurst:    10,
		MetricsPort:     12799,
		ShutdownTimeout: DefaultShutdownTimeout,
		CryptoSuite:     zkcrypto.MiMCName,
		VoteStake:       1,
		CommentStake:    0.5,
		OracleBaseUrl:   "https://api.openai.com/v1",
		OracleModel:     "gpt-4",
		OracleTimeout:   DefaultOracleTimeout,
		OracleRateLimit: 1,
		OracleRateBurst: 5,
	}
}

var globalConfig = DefaultConfig()

func LoadConfig(configFile string) (*Config, error) {
	cfg := DefaultConfig()
	// Load config file as YAML if provided
	if configFile == "" {
		// Check for config file in this path: ~/.zktender/zktender.yaml
		if homeDir, err := os.UserHomeDir(); err == nil {
			userPath := filepath.Join(homeDir, ".zktender", "zktender.yaml")
			if _, err := os.Stat(userPath); err == nil {
				configFile = userPath
			}
		}

		// Try to check for /etc/zktender/zktender.yaml if still not found
		if configFile == "" {
			systemPath := "/etc/zktender/zktender.yaml"
			if _, err := os.Stat(systemPath); err == nil {
				configFile = systemPath
			}
		}
	}

	if configFile != "" {
		if err := loadConfigFile(configFile, cfg); err != nil {
			return nil, err
		}
	}
	// Process environment variables
	err := envconfig.Process(EnvPrefix, cfg)
	if err != nil {
		return nil, fmt.Errorf("error processing environment: %+w", err)
	}

	// Process plugin environment variables
	err = plugin.ProcessEnvVars()
	if err != nil {
		return nil, fmt.Errorf(
			"error processing plugin environment variables: %w",
			err,
		)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	globalConfig = cfg
	return cfg, nil
}

func loadConfigFile(configFile string, cfg *Config) error {
	buf, err := os.ReadFile(configFile)
	if err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}

	// First unmarshal into temp config to handle plugin sections
	var tempCfg tempConfig
	err = yaml.Unmarshal(buf, &tempCfg)
	if err != nil {
		return fmt.Errorf("error parsing config file: %w", err)
	}

	// If config section exists, use it for main config
	if tempCfg.Config != nil {
		// Overlay config values onto existing defaults
		configBytes, err := yaml.Marshal(tempCfg.Config)
		if err != nil {
			return fmt.Errorf("error re-marshalling config: %w", err)
		}
		err = yaml.Unmarshal(configBytes, cfg)
		if err != nil {
			return fmt.Errorf("error parsing config section: %w", err)
		}
	} else {
		// Otherwise unmarshal the whole file as main config
		err = yaml.Unmarshal(buf, cfg)
		if err != nil {
			return fmt.Errorf("error parsing config file: %w", err)
		}
	}

	// Process plugin configurations
	pluginConfig := make(map[string]map[string]map[string]any)
	if tempCfg.Blob != nil {
		pluginConfig["blob"] = tempCfg.Blob
	}
	if tempCfg.Metadata != nil {
		pluginConfig["metadata"] = tempCfg.Metadata
	}
	// Handle database section if present
	if tempCfg.Database != nil {
		if tempCfg.Database.Blob != nil {
			if name, ok := pluginName(tempCfg.Database.Blob); ok {
				cfg.BlobPlugin = name
			}
			mergePluginConfig(pluginConfig, "blob", tempCfg.Database.Blob)
		}
		if tempCfg.Database.Metadata != nil {
			if name, ok := pluginName(tempCfg.Database.Metadata); ok {
				cfg.MetadataPlugin = name
			}
			mergePluginConfig(pluginConfig, "metadata", tempCfg.Database.Metadata)
		}
	}
	if len(pluginConfig) > 0 {
		err = plugin.ProcessConfig(pluginConfig)
		if err != nil {
			return fmt.Errorf(
				"error processing plugin config: %w",
				err,
			)
		}
	}
	return nil
}

// pluginName extracts and removes the plugin selector from a database
// section
func pluginName(section map[string]any) (string, bool) {
	pluginVal, exists := section["plugin"]
	if !exists {
		return "", false
	}
	name, ok := pluginVal.(string)
	if !ok {
		return "", false
	}
	delete(section, "plugin")
	return name, true
}

func mergePluginConfig(
	pluginConfig map[string]map[string]map[string]any,
	pluginType string,
	section map[string]any,
) {
	typeConfig := make(map[string]map[string]any)
	for k, v := range section {
		if val, ok := v.(map[string]any); ok {
			typeConfig[k] = val
		} else if val, ok := v.(map[any]any); ok {
			// Convert map[any]any to map[string]any
			stringAnyMap := make(map[string]any)
			for vk, vv := range val {
				if keyStr, ok := vk.(string); ok {
					stringAnyMap[keyStr] = vv
				}
			}
			typeConfig[k] = stringAnyMap
		} else {
			fmt.Fprintf(
				os.Stderr,
				"warning: skipping %s config entry %q: expected map, got %T\n",
				pluginType,
				k,
				v,
			)
		}
	}
	// Merge with existing config instead of overwriting
	if pluginConfig[pluginType] == nil {
		pluginConfig[pluginType] = typeConfig
	} else {
		maps.Copy(pluginConfig[pluginType], typeConfig)
	}
}

// Validate checks values that cannot be verified by the YAML and env
// decoders
func (c *Config) Validate() error {
	if _, err := zkcrypto.Lookup(c.CryptoSuite); err != nil {
		return fmt.Errorf("invalid cryptoSuite: %w", err)
	}
	if _, err := c.ShutdownTimeoutDuration(); err != nil {
		return err
	}
	if _, err := c.OracleTimeoutDuration(); err != nil {
		return err
	}
	if c.VoteStake < 0 || c.CommentStake < 0 {
		return errors.New("stakes must not be negative")
	}
	return nil
}

// ShutdownTimeoutDuration parses ShutdownTimeout. An empty value selects the
// default
func (c *Config) ShutdownTimeoutDuration() (time.Duration, error) {
	return parseDuration("shutdownTimeout", c.ShutdownTimeout, DefaultShutdownTimeout)
}

// OracleTimeoutDuration parses OracleTimeout. An empty value selects the
// default
func (c *Config) OracleTimeoutDuration() (time.Duration, error) {
	return parseDuration("oracleTimeout", c.OracleTimeout, DefaultOracleTimeout)
}

func parseDuration(name string, value string, def string) (time.Duration, error) {
	if value == "" {
		value = def
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	return d, nil
}

func GetConfig() *Config {
	return globalConfig
}
