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

// Package tracker reports the lifecycle state of submitted transactions.
//
// The tracker listens to mempool and ledger events and keeps the terminal
// outcome of recent transactions in an LRU cache. Pending transactions are
// read from the mempool, and confirmations that have fallen out of the cache
// are read back from the ledger.
package tracker

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
	"github.com/blinklabs-io/votechain/vote"
	lru "github.com/hashicorp/golang-lru"
)

const (
	DefaultCacheSize    = 100_000
	DefaultPollInterval = 500 * time.Millisecond
)

var ErrUnknownTransaction = errors.New("unknown transaction")

// State is the lifecycle state of a transaction
type State string

const (
	StatePending    State = "Pending"
	StateConfirmed  State = "Confirmed"
	StateRejected   State = "Rejected"
	StateSuperseded State = "Superseded"
)

// TxStatus is a point-in-time view of a transaction's lifecycle
type TxStatus struct {
	// Block is set for confirmed transactions
	Block *ledger.BlockRef
	Err   error
	ID    string
	State State
	// Code is the rejection code for rejected and superseded transactions.
	// It is empty for policy discards.
	Code       vote.RejectionCode
	BlockIndex uint32
}

// Final reports whether the state can no longer change
func (s TxStatus) Final() bool {
	return s.State != StatePending
}

// Reason returns the rejection message, if any
func (s TxStatus) Reason() string {
	if s.Err == nil {
		return ""
	}
	return s.Err.Error()
}

// PoolView looks up pending transactions
type PoolView interface {
	GetTransaction(id string) (mempool.MempoolTransaction, bool)
}

// ConfirmationStore looks up committed transactions
type ConfirmationStore interface {
	GetTransaction(id string) (*ledger.ConfirmedTransaction, error)
}

type TrackerConfig struct {
	Logger    *slog.Logger
	EventBus  *event.EventBus
	Pool      PoolView
	Ledger    ConfirmationStore
	CacheSize int
}

type Tracker struct {
	mu      sync.Mutex
	config  TrackerConfig
	logger  *slog.Logger
	records *lru.Cache
	subs    map[event.EventType]event.EventSubscriberId
	stopped bool
}

// New creates a tracker and subscribes it to the event bus
func New(cfg TrackerConfig) (*Tracker, error) {
	if cfg.EventBus == nil {
		return nil, errors.New("tracker requires an event bus")
	}
	if cfg.Pool == nil || cfg.Ledger == nil {
		return nil, errors.New("tracker requires a pool and a ledger")
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = DefaultCacheSize
	}
	if cfg.Logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	cache, err := lru.New(cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("create status cache: %w", err)
	}
	t := &Tracker{
		config:  cfg,
		logger:  cfg.Logger,
		records: cache,
		subs:    make(map[event.EventType]event.EventSubscriberId),
	}
	// Handlers run inline so a status change is visible before the publisher
	// releases its locks
	handlers := map[event.EventType]event.EventHandlerFunc{
		mempool.RejectTransactionEventType: t.handleReject,
		mempool.RemoveTransactionEventType: t.handleRemove,
		ledger.BlockAppliedEventType:       t.handleBlockApplied,
	}
	for eventType, handler := range handlers {
		t.subs[eventType] = cfg.EventBus.SubscribeFuncInline(eventType, handler)
	}
	return t, nil
}

// Stop unsubscribes the tracker from the event bus. Status lookups keep
// working from the cache and the ledger.
func (t *Tracker) Stop() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.stopped = true
	subs := t.subs
	t.subs = nil
	t.mu.Unlock()
	for eventType, subId := range subs {
		t.config.EventBus.Unsubscribe(eventType, subId)
	}
}

// Status returns the current lifecycle state of a transaction
func (t *Tracker) Status(id string) (TxStatus, error) {
	status, known := t.record(id)
	if known && status.State == StateConfirmed {
		return status, nil
	}
	// Every record is final, so a recorded rejection outranks a pooled copy
	if !known {
		if _, ok := t.config.Pool.GetTransaction(id); ok {
			return TxStatus{ID: id, State: StatePending}, nil
		}
		// The transaction may have left the pool since the first lookup
		if status, ok := t.record(id); ok && status.State == StateConfirmed {
			return status, nil
		}
	}
	confirmed, err := t.config.Ledger.GetTransaction(id)
	if err == nil {
		status := TxStatus{
			ID:    id,
			State: StateConfirmed,
			Block: &ledger.BlockRef{
				ID:     confirmed.BlockID,
				Height: confirmed.BlockHeight,
			},
			BlockIndex: confirmed.BlockIndex,
		}
		t.mu.Lock()
		t.records.Add(id, status)
		t.mu.Unlock()
		return status, nil
	}
	if !errors.Is(err, ledger.ErrTransactionNotFound) {
		return TxStatus{}, fmt.Errorf("lookup confirmed transaction: %w", err)
	}
	if status, ok := t.record(id); ok {
		return status, nil
	}
	return TxStatus{}, ErrUnknownTransaction
}

// WaitForConfirmation polls until the transaction reaches a final state or
// the context is done. A zero interval uses DefaultPollInterval.
func (t *Tracker) WaitForConfirmation(
	ctx context.Context,
	id string,
	interval time.Duration,
) (TxStatus, error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		status, err := t.Status(id)
		switch {
		case err == nil && status.Final():
			return status, nil
		case err != nil && !errors.Is(err, ErrUnknownTransaction):
			return TxStatus{}, err
		}
		select {
		case <-ctx.Done():
			return status, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (t *Tracker) record(id string) (TxStatus, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	val, ok := t.records.Get(id)
	if !ok {
		return TxStatus{}, false
	}
	return val.(TxStatus), true
}

// setFinal records a terminal outcome. A confirmation is never replaced.
func (t *Tracker) setFinal(status TxStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if val, ok := t.records.Get(status.ID); ok {
		if val.(TxStatus).State == StateConfirmed {
			return
		}
	}
	t.records.Add(status.ID, status)
	t.logger.Debug(
		"transaction final",
		"component", "tracker",
		"tx_id", status.ID,
		"state", status.State,
		"reason", status.Reason(),
	)
}

func (t *Tracker) handleReject(evt event.Event) {
	data, ok := evt.Data.(mempool.RejectTransactionEvent)
	if !ok || data.ID == "" {
		return
	}
	t.setFinal(TxStatus{
		ID:    data.ID,
		State: StateRejected,
		Code:  vote.Code(data.Err),
		Err:   data.Err,
	})
}

func (t *Tracker) handleRemove(evt event.Event) {
	data, ok := evt.Data.(mempool.RemoveTransactionEvent)
	if !ok {
		return
	}
	switch data.Reason {
	case mempool.RemoveReasonConfirmed:
		// Recorded from the block event
		return
	case mempool.RemoveReasonSuperseded:
		t.setFinal(TxStatus{
			ID:    data.ID,
			State: StateSuperseded,
			Code:  vote.CodeSuperseded,
			Err:   data.Err,
		})
	default:
		t.setFinal(TxStatus{
			ID:    data.ID,
			State: StateRejected,
			Code:  vote.Code(data.Err),
			Err:   data.Err,
		})
	}
}

func (t *Tracker) handleBlockApplied(evt event.Event) {
	data, ok := evt.Data.(ledger.BlockAppliedEvent)
	if !ok || data.Batch == nil {
		return
	}
	block := data.Batch.Block
	for idx, tx := range data.Batch.Applied {
		t.setFinal(TxStatus{
			ID:         tx.ID,
			State:      StateConfirmed,
			Block:      &block,
			BlockIndex: uint32(idx), //nolint:gosec
		})
	}
	for _, superseded := range data.Batch.Superseded {
		t.setFinal(TxStatus{
			ID:    superseded.Tx.ID,
			State: StateSuperseded,
			Code:  vote.CodeSuperseded,
			Err:   superseded.Err,
		})
	}
}
