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

package mempool

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/blinklabs-io/votechain/event"
	"github.com/blinklabs-io/votechain/ledger"
	"github.com/blinklabs-io/votechain/vote"
	lru "github.com/hashicorp/golang-lru"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spaolacci/murmur3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	AddTransactionEventType    event.EventType = "mempool.add_tx"
	RemoveTransactionEventType event.EventType = "mempool.remove_tx"
	RejectTransactionEventType event.EventType = "mempool.reject_tx"
)

const (
	DefaultMempoolCapacity    = 1 << 20
	DefaultTxTimeout          = 3 * time.Hour
	DefaultFinalizedCacheSize = 100_000

	senderLockStripes = 256
)

var (
	ErrTxAlreadyPooled = errors.New("transaction already in mempool")
	// ErrTxFinalized is wrapped by the refusal of a transaction id that was
	// already rejected or superseded
	ErrTxFinalized = errors.New("transaction already rejected")
)

// RemoveReason describes why a transaction left the pool
type RemoveReason string

const (
	RemoveReasonConfirmed  RemoveReason = "confirmed"
	RemoveReasonSuperseded RemoveReason = "superseded"
	RemoveReasonExpired    RemoveReason = "expired"
	RemoveReasonDiscarded  RemoveReason = "discarded"
)

type AddTransactionEvent struct {
	ID     string
	Sender string
	Size   int
}

type RemoveTransactionEvent struct {
	// Err is set for every reason except confirmation
	Err    error
	ID     string
	Sender string
	Reason RemoveReason
}

// RejectTransactionEvent is emitted when a submission is refused. The
// transaction never entered the pool.
type RejectTransactionEvent struct {
	Err    error
	ID     string
	Sender string
}

type MempoolTransaction struct {
	Added time.Time
	Tx    *vote.Transaction
	seq   uint64
	size  int
}

// Receipt acknowledges an admitted transaction
type Receipt struct {
	Admitted time.Time
	ID       string
	Sender   string
}

// LedgerView provides committed account state
type LedgerView interface {
	Snapshot(address string) vote.AccountSnapshot
	IsConfirmed(id string) (bool, error)
}

// BlockApplier commits an ordered batch of transactions
type BlockApplier interface {
	ApplyBlock(
		ctx context.Context,
		txs []*vote.Transaction,
	) (*ledger.AppliedBatch, error)
}

type MempoolConfig struct {
	PromRegistry    prometheus.Registerer
	Ledger          LedgerView
	Validator       *vote.Validator
	Logger          *slog.Logger
	EventBus        *event.EventBus
	MempoolCapacity int64
	TxTimeout       time.Duration

	// FinalizedCacheSize bounds how many rejected transaction ids are
	// remembered
	FinalizedCacheSize int
}

type Mempool struct {
	config       MempoolConfig
	metrics      mempoolMetrics
	validator    *vote.Validator
	ledger       LedgerView
	logger       *slog.Logger
	eventBus     *event.EventBus
	transactions map[string]*MempoolTransaction
	bySender     map[string][]*MempoolTransaction
	finalized    *lru.Cache
	done         chan struct{}
	wg           sync.WaitGroup
	size         int64
	nextSeq      uint64
	senderLocks  [senderLockStripes]sync.Mutex
	// applyMu is held shared by submissions and exclusively while the pool
	// is reconciled with committed state
	applyMu      sync.RWMutex
	doneOnce     sync.Once
	sync.RWMutex
}

type MempoolFullError struct {
	CurrentSize int
	TxSize      int
	Capacity    int64
}

func (e *MempoolFullError) Error() string {
	return fmt.Sprintf(
		"mempool full: current size=%d bytes, tx size=%d bytes, capacity=%d bytes",
		e.CurrentSize,
		e.TxSize,
		e.Capacity,
	)
}

func NewMempool(config MempoolConfig) (*Mempool, error) {
	if config.Ledger == nil {
		return nil, errors.New("mempool requires a ledger view")
	}
	if config.Validator == nil {
		config.Validator = vote.NewValidator(vote.DefaultValidatorConfig())
	}
	if config.FinalizedCacheSize <= 0 {
		config.FinalizedCacheSize = DefaultFinalizedCacheSize
	}
	finalized, err := lru.New(config.FinalizedCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create finalized id cache: %w", err)
	}
	m := &Mempool{
		config:       config,
		eventBus:     config.EventBus,
		validator:    config.Validator,
		ledger:       config.Ledger,
		transactions: make(map[string]*MempoolTransaction),
		bySender:     make(map[string][]*MempoolTransaction),
		finalized:    finalized,
		done:         make(chan struct{}),
	}
	if config.Logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		m.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	} else {
		m.logger = config.Logger
	}
	m.metrics.init(config.PromRegistry)
	if config.TxTimeout > 0 {
		m.wg.Add(1)
		go m.expireLoop()
	}
	return m, nil
}

// Stop halts background expiry. Pooled transactions are kept.
func (m *Mempool) Stop() {
	m.doneOnce.Do(func() {
		close(m.done)
	})
	m.wg.Wait()
}

func (m *Mempool) senderLock(address string) *sync.Mutex {
	idx := murmur3.Sum32([]byte(address)) % senderLockStripes
	return &m.senderLocks[idx]
}

// Submit validates a transaction against committed state plus the effects of
// the sender's pooled transactions and admits it. Submissions from different
// senders proceed in parallel.
func (m *Mempool) Submit(ctx context.Context, tx *vote.Transaction) (Receipt, error) {
	_, span := otel.Tracer("mempool").Start(ctx, "mempool.Submit")
	defer span.End()
	receipt, err := m.submit(tx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "submission refused")
		if code := vote.Code(err); code != "" {
			span.SetAttributes(attribute.String("rejection.code", string(code)))
		}
	}
	return receipt, err
}

func (m *Mempool) submit(tx *vote.Transaction) (Receipt, error) {
	if tx == nil {
		return Receipt{}, m.reject(nil, m.validator.Validate(nil, vote.AccountSnapshot{}))
	}
	m.applyMu.RLock()
	defer m.applyMu.RUnlock()
	lock := m.senderLock(tx.SenderAddress)
	lock.Lock()
	defer lock.Unlock()

	m.RLock()
	_, exists := m.transactions[tx.ID]
	pending := slices.Clone(m.bySender[tx.SenderAddress])
	m.RUnlock()
	if exists {
		return Receipt{}, ErrTxAlreadyPooled
	}
	if err := m.checkFinal(tx.ID); err != nil {
		return Receipt{}, err
	}
	snap, err := m.pendingState(tx.SenderAddress, pending)
	if err != nil {
		return Receipt{}, err
	}
	if err := m.validator.Validate(tx, snap); err != nil {
		return Receipt{}, m.reject(tx, err)
	}

	txSize := tx.Size()
	m.Lock()
	if m.config.MempoolCapacity > 0 &&
		m.size+int64(txSize) > m.config.MempoolCapacity {
		fullErr := &MempoolFullError{
			CurrentSize: int(m.size),
			TxSize:      txSize,
			Capacity:    m.config.MempoolCapacity,
		}
		m.Unlock()
		return Receipt{}, m.reject(tx, fullErr)
	}
	m.nextSeq++
	poolTx := &MempoolTransaction{
		Tx:    tx,
		Added: time.Now(),
		seq:   m.nextSeq,
		size:  txSize,
	}
	m.transactions[tx.ID] = poolTx
	m.bySender[tx.SenderAddress] = append(m.bySender[tx.SenderAddress], poolTx)
	m.size += int64(txSize)
	m.Unlock()

	m.metrics.txsProcessedNum.Inc()
	m.metrics.txsInMempool.Inc()
	m.metrics.mempoolBytes.Add(float64(txSize))
	m.logger.Debug(
		"added transaction",
		"component", "mempool",
		"tx_id", tx.ID,
		"sender", tx.SenderAddress,
		"pending", len(pending)+1,
	)
	if m.eventBus != nil {
		m.eventBus.Publish(
			AddTransactionEventType,
			event.NewEvent(
				AddTransactionEventType,
				AddTransactionEvent{
					ID:     tx.ID,
					Sender: tx.SenderAddress,
					Size:   txSize,
				},
			),
		)
	}
	return Receipt{
		ID:       tx.ID,
		Sender:   tx.SenderAddress,
		Admitted: poolTx.Added,
	}, nil
}

// pendingState returns the committed account with the effects of the given
// pooled transactions applied in order
func (m *Mempool) pendingState(
	address string,
	pending []*MempoolTransaction,
) (vote.AccountSnapshot, error) {
	snap := m.ledger.Snapshot(address)
	for _, poolTx := range pending {
		next, err := snap.WithTransaction(poolTx.Tx, m.validator.Fee())
		if err != nil {
			return snap, fmt.Errorf(
				"pooled transaction %s no longer applies: %w",
				poolTx.Tx.ID,
				err,
			)
		}
		snap = next
	}
	return snap, nil
}

// checkFinal refuses a transaction id that already reached a final state,
// either rejected here or confirmed in a committed block
func (m *Mempool) checkFinal(id string) error {
	if val, ok := m.finalized.Get(id); ok {
		return &vote.RejectionError{
			Code:    val.(vote.RejectionCode),
			Message: ErrTxFinalized.Error(),
			Err:     ErrTxFinalized,
		}
	}
	confirmed, err := m.ledger.IsConfirmed(id)
	if err != nil {
		return fmt.Errorf("lookup confirmed transaction %s: %w", id, err)
	}
	if confirmed {
		return ledger.NewTransactionIncludedError()
	}
	return nil
}

// markFinal remembers a rejected id so it is never admitted again
func (m *Mempool) markFinal(id string, err error) {
	m.finalized.Add(id, vote.Code(err))
}

func (m *Mempool) reject(tx *vote.Transaction, err error) error {
	code := vote.Code(err)
	if code == "" {
		code = "PolicyDiscard"
	}
	m.metrics.txsRejected.WithLabelValues(string(code)).Inc()
	var id, sender string
	if tx != nil {
		id = tx.ID
		sender = tx.SenderAddress
		m.markFinal(id, err)
	}
	m.logger.Debug(
		"rejected transaction",
		"component", "mempool",
		"tx_id", id,
		"sender", sender,
		"code", code,
		"error", err,
	)
	if m.eventBus != nil && tx != nil {
		m.eventBus.Publish(
			RejectTransactionEventType,
			event.NewEvent(
				RejectTransactionEventType,
				RejectTransactionEvent{
					ID:     id,
					Sender: sender,
					Err:    err,
				},
			),
		)
	}
	return err
}

// GetTransaction returns a pooled transaction by id
func (m *Mempool) GetTransaction(id string) (MempoolTransaction, bool) {
	m.RLock()
	defer m.RUnlock()
	ret, ok := m.transactions[id]
	if !ok {
		return MempoolTransaction{}, false
	}
	return *ret, true
}

// Transactions returns the pooled transactions in admission order
func (m *Mempool) Transactions() []MempoolTransaction {
	m.RLock()
	defer m.RUnlock()
	ret := make([]MempoolTransaction, 0, len(m.transactions))
	for _, tx := range m.transactions {
		ret = append(ret, *tx)
	}
	slices.SortFunc(ret, func(a, b MempoolTransaction) int {
		return compareSeq(a.seq, b.seq)
	})
	return ret
}

// Count returns the number of pooled transactions
func (m *Mempool) Count() int {
	m.RLock()
	defer m.RUnlock()
	return len(m.transactions)
}

// Size returns the total encoded size of pooled transactions in bytes
func (m *Mempool) Size() int64 {
	m.RLock()
	defer m.RUnlock()
	return m.size
}

func compareSeq(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// RemoveTransaction discards a pooled transaction. Later transactions from the
// same sender that depended on it are revalidated.
func (m *Mempool) RemoveTransaction(id string) bool {
	m.applyMu.Lock()
	defer m.applyMu.Unlock()
	m.Lock()
	poolTx, ok := m.transactions[id]
	if !ok {
		m.Unlock()
		return false
	}
	m.removeTransaction(
		poolTx,
		RemoveReasonDiscarded,
		errors.New("discarded from mempool"),
	)
	m.Unlock()
	m.revalidate([]string{poolTx.Tx.SenderAddress})
	return true
}

// removeTransaction must be called with the pool lock held
func (m *Mempool) removeTransaction(
	poolTx *MempoolTransaction,
	reason RemoveReason,
	cause error,
) {
	tx := poolTx.Tx
	if _, ok := m.transactions[tx.ID]; !ok {
		return
	}
	delete(m.transactions, tx.ID)
	if reason != RemoveReasonConfirmed {
		m.markFinal(tx.ID, cause)
	}
	senderTxs := slices.DeleteFunc(
		m.bySender[tx.SenderAddress],
		func(item *MempoolTransaction) bool {
			return item == poolTx
		},
	)
	if len(senderTxs) == 0 {
		delete(m.bySender, tx.SenderAddress)
	} else {
		m.bySender[tx.SenderAddress] = senderTxs
	}
	m.size -= int64(poolTx.size)
	m.metrics.txsInMempool.Dec()
	m.metrics.mempoolBytes.Sub(float64(poolTx.size))
	m.metrics.txsRemoved.WithLabelValues(string(reason)).Inc()
	m.logger.Debug(
		"removed transaction",
		"component", "mempool",
		"tx_id", tx.ID,
		"sender", tx.SenderAddress,
		"reason", reason,
	)
	if m.eventBus != nil {
		m.eventBus.Publish(
			RemoveTransactionEventType,
			event.NewEvent(
				RemoveTransactionEventType,
				RemoveTransactionEvent{
					ID:     tx.ID,
					Sender: tx.SenderAddress,
					Reason: reason,
					Err:    cause,
				},
			),
		)
	}
}

// ApplyBlock hands up to limit pooled transactions, in admission order, to the
// block applier and reconciles the pool with the result. A limit of 0 or less
// takes every pooled transaction. Submissions wait until it returns.
func (m *Mempool) ApplyBlock(
	ctx context.Context,
	applier BlockApplier,
	limit int,
) (*ledger.AppliedBatch, error) {
	m.applyMu.Lock()
	defer m.applyMu.Unlock()

	pooled := m.Transactions()
	if limit > 0 && len(pooled) > limit {
		pooled = pooled[:limit]
	}
	txs := make([]*vote.Transaction, 0, len(pooled))
	for _, poolTx := range pooled {
		txs = append(txs, poolTx.Tx)
	}
	batch, err := applier.ApplyBlock(ctx, txs)
	if err != nil {
		return nil, err
	}

	touched := make(map[string]struct{})
	m.Lock()
	for _, tx := range batch.Applied {
		if poolTx, ok := m.transactions[tx.ID]; ok {
			m.removeTransaction(poolTx, RemoveReasonConfirmed, nil)
		}
		touched[tx.SenderAddress] = struct{}{}
	}
	for _, superseded := range batch.Superseded {
		if poolTx, ok := m.transactions[superseded.Tx.ID]; ok {
			m.removeTransaction(poolTx, RemoveReasonSuperseded, superseded.Err)
		}
		touched[superseded.Tx.SenderAddress] = struct{}{}
	}
	m.Unlock()
	senders := make([]string, 0, len(touched))
	for sender := range touched {
		senders = append(senders, sender)
	}
	m.revalidate(senders)
	return batch, nil
}

// revalidate replays each sender's remaining pooled transactions against
// committed state and evicts the ones that no longer hold, along with the
// reason. The caller must hold applyMu exclusively.
func (m *Mempool) revalidate(senders []string) {
	for _, sender := range senders {
		m.Lock()
		pending := slices.Clone(m.bySender[sender])
		if len(pending) == 0 {
			m.Unlock()
			continue
		}
		snap := m.ledger.Snapshot(sender)
		for _, poolTx := range pending {
			err := m.validator.Validate(poolTx.Tx, snap)
			if err == nil {
				var next vote.AccountSnapshot
				next, err = snap.WithTransaction(poolTx.Tx, m.validator.Fee())
				if err == nil {
					snap = next
					continue
				}
			}
			supersededErr := vote.NewSupersededError(err)
			m.removeTransaction(poolTx, RemoveReasonSuperseded, supersededErr)
		}
		m.Unlock()
	}
}

func (m *Mempool) expireLoop() {
	defer m.wg.Done()
	interval := min(m.config.TxTimeout/2, time.Minute)
	if interval <= 0 {
		interval = m.config.TxTimeout
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case now := <-ticker.C:
			m.expire(now)
		}
	}
}

// expire discards transactions that have waited longer than the configured
// timeout, then revalidates the affected senders
func (m *Mempool) expire(now time.Time) int {
	m.applyMu.Lock()
	defer m.applyMu.Unlock()
	cutoff := now.Add(-m.config.TxTimeout)
	touched := make(map[string]struct{})
	m.Lock()
	for _, poolTx := range m.transactions {
		if poolTx.Added.After(cutoff) {
			continue
		}
		m.removeTransaction(
			poolTx,
			RemoveReasonExpired,
			fmt.Errorf(
				"transaction expired after %s in mempool",
				m.config.TxTimeout,
			),
		)
		touched[poolTx.Tx.SenderAddress] = struct{}{}
	}
	m.Unlock()
	if len(touched) == 0 {
		return 0
	}
	senders := make([]string, 0, len(touched))
	for sender := range touched {
		senders = append(senders, sender)
	}
	m.revalidate(senders)
	return len(touched)
}
