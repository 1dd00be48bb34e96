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

package votechain

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/blinklabs-io/votechain/ledger/forging"
	"github.com/blinklabs-io/votechain/mempool"
	"github.com/blinklabs-io/votechain/tracker"
	"github.com/blinklabs-io/votechain/vote"
	"github.com/prometheus/client_golang/prometheus"
)

type Config struct {
	promRegistry            prometheus.Registerer
	logger                  *slog.Logger
	dataDir                 string
	genesisFile             string
	validator               vote.ValidatorConfig
	mempoolCapacity         int64
	mempoolTxTimeout        time.Duration
	blockInterval           time.Duration
	maxTransactionsPerBlock int
	statusCacheSize         int
	forgeEmptyBlocks        bool
	disableForging          bool
	tracing                 bool
	tracingStdout           bool
	shutdownTimeout         time.Duration
}

func (c *Config) validate() error {
	if c.validator.Fee == 0 {
		return errors.New("vote fee must be greater than zero")
	}
	if c.validator.EnforceVoteLimit && c.validator.MaxVotesPerAccount <= 0 {
		return fmt.Errorf(
			"invalid max votes per account: %d",
			c.validator.MaxVotesPerAccount,
		)
	}
	if c.validator.MaxVotesPerTransaction <= 0 {
		return fmt.Errorf(
			"invalid max votes per transaction: %d",
			c.validator.MaxVotesPerTransaction,
		)
	}
	if c.mempoolCapacity < 0 {
		return fmt.Errorf("invalid mempool capacity: %d", c.mempoolCapacity)
	}
	if c.blockInterval < 0 {
		return fmt.Errorf("invalid block interval: %s", c.blockInterval)
	}
	return nil
}

// ConfigOptionFunc is a type that represents functions that modify the node config
type ConfigOptionFunc func(*Config)

// NewConfig creates a new votechain config with the specified options
func NewConfig(opts ...ConfigOptionFunc) Config {
	c := Config{
		// Default logger will throw away logs
		// We do this so we don't have to add guards around every log operation
		logger:                  slog.New(slog.NewJSONHandler(io.Discard, nil)),
		validator:               vote.DefaultValidatorConfig(),
		mempoolCapacity:         mempool.DefaultMempoolCapacity,
		mempoolTxTimeout:        mempool.DefaultTxTimeout,
		blockInterval:           forging.DefaultBlockInterval,
		maxTransactionsPerBlock: forging.DefaultMaxTransactionsPerBlock,
		statusCacheSize:         tracker.DefaultCacheSize,
	}
	// Apply options
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// WithDatabasePath specifies the persistent data directory to use. The default is to store everything in memory
func WithDatabasePath(dataDir string) ConfigOptionFunc {
	return func(c *Config) {
		c.dataDir = dataDir
	}
}

// WithGenesisFile specifies a YAML genesis file loaded into an empty ledger on startup
func WithGenesisFile(path string) ConfigOptionFunc {
	return func(c *Config) {
		c.genesisFile = path
	}
}

// WithLogger specifies the logger object to use for logging messages
func WithLogger(logger *slog.Logger) ConfigOptionFunc {
	return func(c *Config) {
		c.logger = logger
	}
}

// WithPrometheusRegistry specifies a prometheus.Registerer instance to add metrics to
func WithPrometheusRegistry(registry prometheus.Registerer) ConfigOptionFunc {
	return func(c *Config) {
		c.promRegistry = registry
	}
}

// WithVoteFee specifies the fee charged for each vote transaction
func WithVoteFee(fee uint64) ConfigOptionFunc {
	return func(c *Config) {
		c.validator.Fee = fee
	}
}

// WithMaxVotesPerAccount specifies the bound on an account's vote list
func WithMaxVotesPerAccount(limit int) ConfigOptionFunc {
	return func(c *Config) {
		c.validator.MaxVotesPerAccount = limit
	}
}

// WithMaxVotesPerTransaction specifies how many entries a single transaction may carry
func WithMaxVotesPerTransaction(limit int) ConfigOptionFunc {
	return func(c *Config) {
		c.validator.MaxVotesPerTransaction = limit
	}
}

// WithEnforceVoteLimit toggles the per-account vote cardinality check
func WithEnforceVoteLimit(enforce bool) ConfigOptionFunc {
	return func(c *Config) {
		c.validator.EnforceVoteLimit = enforce
	}
}

// WithEnforceEntryConflicts toggles rejection of transactions that name a
// delegate more than once
func WithEnforceEntryConflicts(enforce bool) ConfigOptionFunc {
	return func(c *Config) {
		c.validator.EnforceEntryConflicts = enforce
	}
}

// WithSignatureVerifier replaces the ed25519 signature check
func WithSignatureVerifier(verifier vote.SignatureVerifier) ConfigOptionFunc {
	return func(c *Config) {
		c.validator.Verifier = verifier
	}
}

// WithMempoolCapacity sets the mempool capacity (in bytes)
func WithMempoolCapacity(capacity int64) ConfigOptionFunc {
	return func(c *Config) {
		c.mempoolCapacity = capacity
	}
}

// WithMempoolTxTimeout specifies how long a transaction may wait in the
// mempool before it is discarded. Zero disables expiry.
func WithMempoolTxTimeout(timeout time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.mempoolTxTimeout = timeout
	}
}

// WithBlockInterval specifies the time between block attempts
func WithBlockInterval(interval time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.blockInterval = interval
	}
}

// WithMaxTransactionsPerBlock caps the transactions included in each block
func WithMaxTransactionsPerBlock(limit int) ConfigOptionFunc {
	return func(c *Config) {
		c.maxTransactionsPerBlock = limit
	}
}

// WithForgeEmptyBlocks commits blocks even when the mempool is empty
func WithForgeEmptyBlocks(forgeEmpty bool) ConfigOptionFunc {
	return func(c *Config) {
		c.forgeEmptyBlocks = forgeEmpty
	}
}

// WithForging toggles the interval block forger. Blocks can still be closed
// with Node.ForgeBlock when it is disabled.
func WithForging(enabled bool) ConfigOptionFunc {
	return func(c *Config) {
		c.disableForging = !enabled
	}
}

// WithStatusCacheSize specifies how many transaction outcomes the tracker keeps in memory
func WithStatusCacheSize(size int) ConfigOptionFunc {
	return func(c *Config) {
		c.statusCacheSize = size
	}
}

// WithTracing enables tracing. By default, spans are submitted to a HTTP(s) OTLP collector at localhost:4318
// using the OTEL_EXPORTER_OTLP_* env vars documented in the README for [go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp]
func WithTracing(tracing bool) ConfigOptionFunc {
	return func(c *Config) {
		c.tracing = tracing
	}
}

// WithTracingStdout enables tracing output to stdout. This also requires tracing to enabled separately. This is mostly useful for debugging
func WithTracingStdout(stdout bool) ConfigOptionFunc {
	return func(c *Config) {
		c.tracingStdout = stdout
	}
}

// WithShutdownTimeout sets the timeout for graceful shutdown (default: 30s)
func WithShutdownTimeout(timeout time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.shutdownTimeout = timeout
	}
}
