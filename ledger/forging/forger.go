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

package forging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/blinklabs-io/votechain/event"
	"github.com/blinklabs-io/votechain/ledger"
	"github.com/blinklabs-io/votechain/mempool"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	DefaultBlockInterval           = 10 * time.Second
	DefaultMaxTransactionsPerBlock = 25
)

// TransactionPool is the source of transactions for new blocks
type TransactionPool interface {
	// ApplyBlock hands up to limit pooled transactions to the applier and
	// reconciles the pool with the result
	ApplyBlock(
		ctx context.Context,
		applier mempool.BlockApplier,
		limit int,
	) (*ledger.AppliedBatch, error)
	// Count returns the number of pooled transactions
	Count() int
}

// ForgerConfig holds configuration for the block forger.
type ForgerConfig struct {
	Logger       *slog.Logger
	EventBus     *event.EventBus
	PromRegistry prometheus.Registerer
	Pool         TransactionPool
	Ledger       mempool.BlockApplier
	// BlockInterval is the time between block attempts
	BlockInterval time.Duration
	// MaxTransactionsPerBlock caps the transactions taken per block. Zero or
	// less takes the whole pool.
	MaxTransactionsPerBlock int
	// ForgeEmptyBlocks commits a block even when the pool is empty
	ForgeEmptyBlocks bool
}

// BlockForger closes blocks from pooled transactions on a fixed interval.
type BlockForger struct {
	config  ForgerConfig
	logger  *slog.Logger
	metrics *forgingMetrics

	// forgeMu serializes block attempts between the loop and ForgeBlock
	forgeMu sync.Mutex

	// State
	mu      sync.RWMutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewBlockForger creates a new block forger.
func NewBlockForger(cfg ForgerConfig) (*BlockForger, error) {
	if cfg.Pool == nil {
		return nil, errors.New("forger requires a transaction pool")
	}
	if cfg.Ledger == nil {
		return nil, errors.New("forger requires a block applier")
	}
	if cfg.Logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if cfg.BlockInterval <= 0 {
		cfg.BlockInterval = DefaultBlockInterval
	}
	f := &BlockForger{
		config:  cfg,
		logger:  cfg.Logger,
		metrics: initForgingMetrics(cfg.PromRegistry),
	}
	return f, nil
}

// Start begins the block forging process.
// The provided context controls the forger's lifecycle.
func (f *BlockForger) Start(ctx context.Context) error {
	f.mu.Lock()
	if f.running {
		f.mu.Unlock()
		return errors.New("forger already running")
	}
	f.running = true

	ctx, cancel := context.WithCancel(ctx)
	f.cancel = cancel
	f.wg.Add(1)
	f.mu.Unlock()

	f.logger.Info(
		"block forger started",
		"component", "forging",
		"interval", f.config.BlockInterval.String(),
	)

	go f.runLoop(ctx)
	return nil
}

// Stop stops the block forging process.
// It blocks until the loop goroutine has exited.
func (f *BlockForger) Stop() {
	f.mu.Lock()
	if !f.running {
		f.mu.Unlock()
		return
	}

	f.running = false
	if f.cancel != nil {
		f.cancel()
	}
	f.mu.Unlock()

	// Wait for the goroutine to finish before returning
	f.wg.Wait()
	f.logger.Info("block forger stopped", "component", "forging")
}

// IsRunning returns true if the forger is currently running.
func (f *BlockForger) IsRunning() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.running
}

func (f *BlockForger) runLoop(ctx context.Context) {
	defer f.wg.Done()
	defer func() {
		f.mu.Lock()
		f.running = false
		f.mu.Unlock()
	}()

	ticker := time.NewTicker(f.config.BlockInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := f.ForgeBlock(ctx); err != nil {
				f.logger.Error(
					"forge failed",
					"component", "forging",
					"error", err,
				)
			}
		}
	}
}

// ForgeBlock closes a single block from the pool. It returns a nil batch
// without error when the pool is empty and empty blocks are disabled.
func (f *BlockForger) ForgeBlock(ctx context.Context) (*ledger.AppliedBatch, error) {
	f.forgeMu.Lock()
	defer f.forgeMu.Unlock()

	pending := f.config.Pool.Count()
	if pending == 0 && !f.config.ForgeEmptyBlocks {
		f.metrics.forgeSkipped.Inc()
		f.logger.Debug("forge skip: mempool empty", "component", "forging")
		return nil, nil
	}
	start := time.Now()
	batch, err := f.config.Pool.ApplyBlock(
		ctx,
		f.config.Ledger,
		f.config.MaxTransactionsPerBlock,
	)
	if err != nil {
		f.metrics.forgeFailed.Inc()
		if f.config.EventBus != nil {
			f.config.EventBus.Publish(
				ForgeFailedEventType,
				event.NewEvent(
					ForgeFailedEventType,
					ForgeFailedEvent{Err: err, PendingCount: pending},
				),
			)
		}
		return nil, fmt.Errorf("failed to apply block: %w", err)
	}

	f.metrics.blocksForged.Inc()
	f.metrics.txsSuperseded.Add(float64(len(batch.Superseded)))
	f.metrics.blockTxCount.Observe(float64(len(batch.Applied)))
	f.metrics.forgeLatency.Observe(time.Since(start).Seconds())
	f.metrics.lastForgedTime.Set(float64(batch.Block.Timestamp.Unix()))
	f.logger.Info(
		"block produced successfully",
		"component", "forging",
		"height", batch.Block.Height,
		"id", batch.Block.ID,
		"tx_count", len(batch.Applied),
		"superseded", len(batch.Superseded),
	)
	if f.config.EventBus != nil {
		f.config.EventBus.Publish(
			event.BlockForgedEventType,
			event.NewEvent(
				event.BlockForgedEventType,
				event.BlockForgedEvent{
					Timestamp:       batch.Block.Timestamp,
					BlockID:         batch.Block.ID,
					Height:          batch.Block.Height,
					TxCount:         len(batch.Applied),
					SupersededCount: len(batch.Superseded),
				},
			),
		)
	}
	return batch, nil
}
