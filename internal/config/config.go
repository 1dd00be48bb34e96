// Copyright 2026 Blink Labs Software
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
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

type ctxKey string

const configContextKey ctxKey = "votechain.config"

const (
	DefaultShutdownTimeout  = "30s"
	DefaultMempoolTxTimeout = "3h"
	DefaultBlockInterval    = "10s"
	envPrefix               = "VOTECHAIN"
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

type tempConfig struct {
	Config yaml.Node `yaml:"config,omitempty"`
}

type Config struct {
	DatabasePath            string `yaml:"databasePath"            split_words:"true"`
	GenesisFile             string `yaml:"genesisFile"             split_words:"true"`
	BindAddr                string `yaml:"bindAddr"                split_words:"true"`
	ShutdownTimeout         string `yaml:"shutdownTimeout"         split_words:"true"`
	MempoolTxTimeout        string `yaml:"mempoolTxTimeout"        split_words:"true"`
	BlockInterval           string `yaml:"blockInterval"           split_words:"true"`
	VoteFee                 uint64 `yaml:"voteFee"                 split_words:"true"`
	MempoolCapacity         int64  `yaml:"mempoolCapacity"         split_words:"true"`
	MaxVotesPerAccount      int    `yaml:"maxVotesPerAccount"      split_words:"true"`
	MaxVotesPerTransaction  int    `yaml:"maxVotesPerTransaction"  split_words:"true"`
	MaxTransactionsPerBlock int    `yaml:"maxTransactionsPerBlock" split_words:"true"`
	StatusCacheSize         int    `yaml:"statusCacheSize"         split_words:"true"`
	MetricsPort             uint   `yaml:"metricsPort"             split_words:"true"`
	EnforceVoteLimit        bool   `yaml:"enforceVoteLimit"        split_words:"true"`
	EnforceEntryConflicts   bool   `yaml:"enforceEntryConflicts"   split_words:"true"`
	ForgeEmptyBlocks        bool   `yaml:"forgeEmptyBlocks"        split_words:"true"`
	DisableForging          bool   `yaml:"disableForging"          split_words:"true"`
	Tracing                 bool   `yaml:"tracing"`
	TracingStdout           bool   `yaml:"tracingStdout"           split_words:"true"`
}

// DefaultConfig returns the configuration used when no file or environment
// overrides are present
func DefaultConfig() *Config {
	return &Config{
		DatabasePath:            ".votechain",
		BindAddr:                "0.0.0.0",
		MetricsPort:             12799,
		ShutdownTimeout:         DefaultShutdownTimeout,
		MempoolTxTimeout:        DefaultMempoolTxTimeout,
		BlockInterval:           DefaultBlockInterval,
		VoteFee:                 100000000,
		MempoolCapacity:         1048576,
		MaxVotesPerAccount:      101,
		MaxVotesPerTransaction:  33,
		MaxTransactionsPerBlock: 25,
		StatusCacheSize:         100000,
		EnforceVoteLimit:        true,
		EnforceEntryConflicts:   true,
	}
}

// Durations is the parsed form of the duration settings
type Durations struct {
	Shutdown      time.Duration
	MempoolTx     time.Duration
	BlockInterval time.Duration
}

// ParseDurations parses the duration strings in the config
func (c *Config) ParseDurations() (Durations, error) {
	var ret Durations
	fields := []struct {
		name  string
		value string
		dest  *time.Duration
	}{
		{name: "shutdownTimeout", value: c.ShutdownTimeout, dest: &ret.Shutdown},
		{name: "mempoolTxTimeout", value: c.MempoolTxTimeout, dest: &ret.MempoolTx},
		{name: "blockInterval", value: c.BlockInterval, dest: &ret.BlockInterval},
	}
	for _, field := range fields {
		if field.value == "" {
			continue
		}
		d, err := time.ParseDuration(field.value)
		if err != nil {
			return ret, fmt.Errorf("invalid %s: %w", field.name, err)
		}
		if d < 0 {
			return ret, fmt.Errorf("invalid %s: must not be negative", field.name)
		}
		*field.dest = d
	}
	return ret, nil
}

// LoadConfig reads the YAML config file, if any, over the defaults and then
// applies VOTECHAIN_* environment variables
func LoadConfig(configFile string) (*Config, error) {
	cfg := DefaultConfig()
	// Load config file as YAML if provided
	if configFile == "" {
		// Check for config file in this path: ~/.votechain/votechain.yaml
		if homeDir, err := os.UserHomeDir(); err == nil {
			userPath := filepath.Join(homeDir, ".votechain", "votechain.yaml")
			if _, err := os.Stat(userPath); err == nil {
				configFile = userPath
			}
		}

		// Try to check for /etc/votechain/votechain.yaml if still not found
		if configFile == "" {
			systemPath := "/etc/votechain/votechain.yaml"
			if _, err := os.Stat(systemPath); err == nil {
				configFile = systemPath
			}
		}
	}

	if configFile != "" {
		buf, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}

		var tempCfg tempConfig
		err = yaml.Unmarshal(buf, &tempCfg)
		if err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}

		// If config section exists, use it for main config
		if tempCfg.Config.Kind != 0 {
			// Overlay config values onto existing defaults
			if err := tempCfg.Config.Decode(cfg); err != nil {
				return nil, fmt.Errorf("error parsing config section: %w", err)
			}
		} else {
			// Otherwise unmarshal the whole file as main config
			err = yaml.Unmarshal(buf, cfg)
			if err != nil {
				return nil, fmt.Errorf("error parsing config file: %w", err)
			}
		}
	}
	// Process environment variables
	err := envconfig.Process(envPrefix, cfg)
	if err != nil {
		return nil, fmt.Errorf("error processing environment: %w", err)
	}
	if _, err := cfg.ParseDurations(); err != nil {
		return nil, err
	}
	return cfg, nil
}
