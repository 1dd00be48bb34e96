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
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/blinklabs-io/votechain/database"
	"github.com/blinklabs-io/votechain/event"
	"github.com/blinklabs-io/votechain/ledger"
	"github.com/blinklabs-io/votechain/ledger/forging"
	"github.com/blinklabs-io/votechain/mempool"
	"github.com/blinklabs-io/votechain/tracker"
	"github.com/blinklabs-io/votechain/vote"
	"github.com/google/uuid"
)

var ErrNodeNotRunning = errors.New("node is not running")

type Node struct {
	eventBus      *event.EventBus
	db            *database.Database
	ledgerState   *ledger.LedgerState
	mempool       *mempool.Mempool
	tracker       *tracker.Tracker
	forger        *forging.BlockForger
	shutdownFuncs []func(context.Context) error
	config        Config
	id            string
	mu            sync.Mutex
	ready         chan struct{}
	done          chan struct{}
	readyOnce     sync.Once
	shutdownOnce  sync.Once
}

func New(cfg Config) (*Node, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	n := &Node{
		config:   cfg,
		id:       uuid.New().String(),
		eventBus: event.NewEventBus(cfg.promRegistry, cfg.logger),
		ready:    make(chan struct{}),
		done:     make(chan struct{}),
	}
	return n, nil
}

// ID returns the instance id of this node
func (n *Node) ID() string {
	return n.id
}

// Ready is closed once Run has started every component
func (n *Node) Ready() <-chan struct{} {
	return n.ready
}

// Run starts the node and blocks until the context is done or Stop is called
func (n *Node) Run(ctx context.Context) error {
	if err := n.start(ctx); err != nil {
		if stopErr := n.Stop(); stopErr != nil {
			err = errors.Join(err, stopErr)
		}
		return err
	}
	select {
	case <-ctx.Done():
		return n.Stop()
	case <-n.done:
		return nil
	}
}

func (n *Node) start(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	select {
	case <-n.done:
		return ErrNodeNotRunning
	default:
	}
	n.config.logger.Info(
		"starting node",
		"component", "node",
		"instance_id", n.id,
	)
	// Configure tracing
	if n.config.tracing {
		if err := n.setupTracing(); err != nil {
			return err
		}
	}
	// Load database
	db, err := database.New(&database.Config{
		DataDir:      n.config.dataDir,
		Logger:       n.config.logger,
		PromRegistry: n.config.promRegistry,
	})
	if db != nil {
		n.db = db
	}
	if err != nil {
		var dbErr database.CommitTimestampError
		if errors.As(err, &dbErr) {
			n.config.logger.Error(
				"database stores are out of sync",
				"component", "node",
				"error", err,
			)
		}
		return fmt.Errorf("failed to open database: %w", err)
	}
	// Load state
	validator := vote.NewValidator(n.config.validator)
	state, err := ledger.NewLedgerState(
		ledger.LedgerStateConfig{
			Database:     n.db,
			EventBus:     n.eventBus,
			Logger:       n.config.logger,
			PromRegistry: n.config.promRegistry,
			Validator:    validator,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to load ledger state: %w", err)
	}
	n.ledgerState = state
	if n.config.genesisFile != "" {
		err := n.ledgerState.LoadGenesis(ctx, n.config.genesisFile)
		switch {
		case errors.Is(err, ledger.ErrLedgerNotEmpty):
			n.config.logger.Debug(
				"ledger already initialized, skipping genesis",
				"component", "node",
			)
		case err != nil:
			return fmt.Errorf("failed to load genesis: %w", err)
		}
	}
	// Initialize mempool
	pool, err := mempool.NewMempool(mempool.MempoolConfig{
		MempoolCapacity:    n.config.mempoolCapacity,
		TxTimeout:          n.config.mempoolTxTimeout,
		FinalizedCacheSize: n.config.statusCacheSize,
		Logger:             n.config.logger,
		EventBus:           n.eventBus,
		PromRegistry:       n.config.promRegistry,
		Ledger:             n.ledgerState,
		Validator:          validator,
	})
	if err != nil {
		return fmt.Errorf("failed to create mempool: %w", err)
	}
	n.mempool = pool
	// Track transaction outcomes
	tr, err := tracker.New(tracker.TrackerConfig{
		Logger:    n.config.logger,
		EventBus:  n.eventBus,
		Pool:      n.mempool,
		Ledger:    n.ledgerState,
		CacheSize: n.config.statusCacheSize,
	})
	if err != nil {
		return fmt.Errorf("failed to create tracker: %w", err)
	}
	n.tracker = tr
	// Configure block production
	forger, err := forging.NewBlockForger(forging.ForgerConfig{
		Logger:                  n.config.logger,
		EventBus:                n.eventBus,
		PromRegistry:            n.config.promRegistry,
		Pool:                    n.mempool,
		Ledger:                  n.ledgerState,
		BlockInterval:           n.config.blockInterval,
		MaxTransactionsPerBlock: n.config.maxTransactionsPerBlock,
		ForgeEmptyBlocks:        n.config.forgeEmptyBlocks,
	})
	if err != nil {
		return fmt.Errorf("failed to create block forger: %w", err)
	}
	n.forger = forger
	if !n.config.disableForging {
		if err := n.forger.Start(ctx); err != nil {
			return fmt.Errorf("failed to start block forger: %w", err)
		}
	}
	tip := n.ledgerState.Tip()
	n.config.logger.Info(
		fmt.Sprintf("node started at height %d", tip.Height),
		"component", "node",
		"instance_id", n.id,
	)
	n.readyOnce.Do(func() {
		close(n.ready)
	})
	return nil
}

func (n *Node) running() bool {
	select {
	case <-n.ready:
	default:
		return false
	}
	select {
	case <-n.done:
		return false
	default:
		return true
	}
}

// Submit validates a vote transaction and admits it to the mempool
func (n *Node) Submit(
	ctx context.Context,
	tx *vote.Transaction,
) (mempool.Receipt, error) {
	if !n.running() {
		return mempool.Receipt{}, ErrNodeNotRunning
	}
	return n.mempool.Submit(ctx, tx)
}

// Status reports the lifecycle state of a transaction
func (n *Node) Status(id string) (tracker.TxStatus, error) {
	if !n.running() {
		return tracker.TxStatus{}, ErrNodeNotRunning
	}
	return n.tracker.Status(id)
}

// WaitForConfirmation polls the status of a transaction until it is final
func (n *Node) WaitForConfirmation(
	ctx context.Context,
	id string,
	interval time.Duration,
) (tracker.TxStatus, error) {
	if !n.running() {
		return tracker.TxStatus{}, ErrNodeNotRunning
	}
	return n.tracker.WaitForConfirmation(ctx, id, interval)
}

// Account returns a copy of the committed state of an account
func (n *Node) Account(address string) (vote.AccountSnapshot, error) {
	if !n.running() {
		return vote.AccountSnapshot{}, ErrNodeNotRunning
	}
	return n.ledgerState.Snapshot(address), nil
}

// Credit adds funds to an account outside of a block
func (n *Node) Credit(ctx context.Context, address string, amount uint64) error {
	if !n.running() {
		return ErrNodeNotRunning
	}
	return n.ledgerState.Credit(ctx, address, amount)
}

// ForgeBlock closes a block immediately instead of waiting for the next interval
func (n *Node) ForgeBlock(ctx context.Context) (*ledger.AppliedBatch, error) {
	if !n.running() {
		return nil, ErrNodeNotRunning
	}
	return n.forger.ForgeBlock(ctx)
}

// Tip returns the most recently committed block
func (n *Node) Tip() (ledger.BlockRef, error) {
	if !n.running() {
		return ledger.BlockRef{}, ErrNodeNotRunning
	}
	return n.ledgerState.Tip(), nil
}

// EventBus returns the node's event bus
func (n *Node) EventBus() *event.EventBus {
	return n.eventBus
}

func (n *Node) Stop() error {
	var err error
	n.shutdownOnce.Do(func() {
		err = n.shutdown()
	})
	return err
}

func (n *Node) shutdown() error {
	// Create shutdown context with timeout (default 30s if not configured)
	shutdownTimeout := 30 * time.Second
	if n.config.shutdownTimeout > 0 {
		shutdownTimeout = n.config.shutdownTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	n.mu.Lock()
	defer n.mu.Unlock()
	close(n.done)

	var err error

	n.config.logger.Debug("starting graceful shutdown", "component", "node")

	// Phase 1: Stop producing blocks
	if n.forger != nil {
		n.forger.Stop()
	}

	// Phase 2: Stop background work
	if n.tracker != nil {
		n.tracker.Stop()
	}
	if n.mempool != nil {
		n.mempool.Stop()
	}

	// Phase 3: Close database
	if n.db != nil {
		if closeErr := n.db.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("database close: %w", closeErr))
		}
	}

	// Phase 4: Cleanup resources
	for _, fn := range n.shutdownFuncs {
		if fnErr := fn(ctx); fnErr != nil {
			err = errors.Join(err, fmt.Errorf("shutdown function: %w", fnErr))
		}
	}
	n.shutdownFuncs = nil

	if n.eventBus != nil {
		n.eventBus.Stop()
	}

	n.config.logger.Debug("graceful shutdown complete", "component", "node")
	return err
}
