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

package ledger

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/blinklabs-io/votechain/database"
	"github.com/blinklabs-io/votechain/database/models"
	"github.com/blinklabs-io/votechain/database/types"
	"github.com/blinklabs-io/votechain/event"
	"github.com/blinklabs-io/votechain/vote"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	ErrTransactionIncluded = errors.New("transaction already included in a block")
	ErrTransactionNotFound = errors.New("transaction not found")
)

// BlockRef identifies a committed block
type BlockRef struct {
	Timestamp  time.Time
	ID         string
	PreviousID string
	Height     uint64
}

func blockRefFromModel(block *models.Block) BlockRef {
	return BlockRef{
		ID:         block.BlockID,
		PreviousID: block.PreviousID,
		Height:     block.Height,
		Timestamp:  time.UnixMilli(block.Timestamp),
	}
}

// SupersededTx is a transaction excluded from a block because it no longer
// held against the state left by earlier transactions
type SupersededTx struct {
	Tx  *vote.Transaction
	Err *vote.RejectionError
}

// AppliedBatch is the outcome of applying a block
type AppliedBatch struct {
	Block      BlockRef
	Applied    []*vote.Transaction
	Superseded []SupersededTx
}

// AppliedIDs returns the ids of the committed transactions in block order
func (b *AppliedBatch) AppliedIDs() []string {
	ret := make([]string, 0, len(b.Applied))
	for _, tx := range b.Applied {
		ret = append(ret, tx.ID)
	}
	return ret
}

// ApplyBlock revalidates the transactions in order against committed state as
// changed by the earlier transactions of the same block, then commits the
// ones that still hold in a single database transaction. Transactions that
// fail are reported as superseded. If the commit fails, committed state is
// unchanged and an error is returned.
func (ls *LedgerState) ApplyBlock(
	ctx context.Context,
	txs []*vote.Transaction,
) (*AppliedBatch, error) {
	start := time.Now()
	_, span := otel.Tracer("ledger").Start(
		ctx,
		"ledger.ApplyBlock",
		trace.WithAttributes(attribute.Int("tx.count", len(txs))),
	)
	defer span.End()

	ls.Lock()
	defer ls.Unlock()

	batch := &AppliedBatch{}
	working := make(map[string]vote.AccountSnapshot)
	included := make(map[string]struct{}, len(txs))
	txn := ls.db.Transaction(true)
	err := txn.Do(func(txn *database.Txn) error {
		for _, tx := range txs {
			if tx == nil {
				continue
			}
			next, err := ls.revalidate(tx, working, included, txn)
			if err != nil {
				var rejectErr *vote.RejectionError
				if !errors.As(err, &rejectErr) {
					return err
				}
				supersededErr := vote.NewSupersededError(rejectErr)
				batch.Superseded = append(
					batch.Superseded,
					SupersededTx{Tx: tx, Err: supersededErr},
				)
				ls.config.Logger.Debug(
					"transaction superseded",
					"component", "ledger",
					"tx_id", tx.ID,
					"sender", tx.SenderAddress,
					"reason", rejectErr.Error(),
				)
				continue
			}
			working[tx.SenderAddress] = next
			included[tx.ID] = struct{}{}
			batch.Applied = append(batch.Applied, tx)
		}
		batch.Block = ls.nextBlock(batch.Applied)
		return ls.persistBatch(batch, working, txn)
	})
	if err != nil {
		ls.metrics.blockApplyFailed.Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "block apply failed")
		ls.config.Logger.Error(
			"failed to commit block",
			"component", "ledger",
			"height", ls.tip.Height+1,
			"error", err,
		)
		return nil, fmt.Errorf("commit block %d: %w", ls.tip.Height+1, err)
	}

	// Swap in the new state only once the database has committed
	maps.Copy(ls.accounts, working)
	ls.tip = batch.Block
	ls.version++

	ls.metrics.blockHeight.Set(float64(batch.Block.Height))
	ls.metrics.accounts.Set(float64(len(ls.accounts)))
	ls.metrics.txsApplied.Add(float64(len(batch.Applied)))
	ls.metrics.txsSuperseded.Add(float64(len(batch.Superseded)))
	ls.metrics.blockApplyTime.Observe(time.Since(start).Seconds())
	span.SetAttributes(
		attribute.Int64("block.height", int64(batch.Block.Height)), //nolint:gosec
		attribute.Int("tx.applied", len(batch.Applied)),
		attribute.Int("tx.superseded", len(batch.Superseded)),
	)
	ls.config.Logger.Info(
		fmt.Sprintf(
			"committed block %d (%s) with %d transactions, %d superseded",
			batch.Block.Height,
			batch.Block.ID,
			len(batch.Applied),
			len(batch.Superseded),
		),
		"component", "ledger",
	)
	if ls.config.EventBus != nil {
		ls.config.EventBus.Publish(
			BlockAppliedEventType,
			event.NewEvent(BlockAppliedEventType, BlockAppliedEvent{Batch: batch}),
		)
	}
	return batch, nil
}

// NewTransactionIncludedError rejects a transaction whose id is already
// recorded in a committed block
func NewTransactionIncludedError() *vote.RejectionError {
	return &vote.RejectionError{
		Code:    vote.CodeSchemaViolation,
		Message: ErrTransactionIncluded.Error(),
		Err:     ErrTransactionIncluded,
	}
}

// revalidate checks a transaction against the working state and returns the
// sender account after applying it
func (ls *LedgerState) revalidate(
	tx *vote.Transaction,
	working map[string]vote.AccountSnapshot,
	included map[string]struct{},
	txn *database.Txn,
) (vote.AccountSnapshot, error) {
	if _, ok := included[tx.ID]; ok {
		return vote.AccountSnapshot{}, NewTransactionIncludedError()
	}
	if _, err := ls.db.GetTransaction(tx.ID, txn); err == nil {
		return vote.AccountSnapshot{}, NewTransactionIncludedError()
	} else if !errors.Is(err, models.ErrTransactionNotFound) {
		return vote.AccountSnapshot{}, err
	}
	snap, ok := working[tx.SenderAddress]
	if !ok {
		snap = ls.snapshotLocked(tx.SenderAddress)
	}
	validator := ls.config.Validator
	if err := validator.Validate(tx, snap); err != nil {
		return vote.AccountSnapshot{}, err
	}
	return snap.WithTransaction(tx, validator.Fee())
}

func (ls *LedgerState) nextBlock(applied []*vote.Transaction) BlockRef {
	block := BlockRef{
		Height:     ls.tip.Height + 1,
		PreviousID: ls.tip.ID,
		Timestamp:  time.Now().Truncate(time.Millisecond),
	}
	buf := make([]byte, 0, 64)
	buf = append(buf, block.PreviousID...)
	buf = binary.BigEndian.AppendUint64(buf, block.Height)
	buf = binary.BigEndian.AppendUint64(buf, uint64(block.Timestamp.UnixMilli())) //nolint:gosec
	for _, tx := range applied {
		buf = append(buf, tx.ID...)
	}
	block.ID = vote.IDFromBytes(buf)
	return block
}

func (ls *LedgerState) persistBatch(
	batch *AppliedBatch,
	working map[string]vote.AccountSnapshot,
	txn *database.Txn,
) error {
	for _, address := range slices.Sorted(maps.Keys(working)) {
		if err := ls.db.SetAccount(accountRecord(working[address]), txn); err != nil {
			return fmt.Errorf("persist account %s: %w", address, err)
		}
	}
	err := ls.db.SetBlock(
		&models.Block{
			BlockID:    batch.Block.ID,
			PreviousID: batch.Block.PreviousID,
			Height:     batch.Block.Height,
			Timestamp:  batch.Block.Timestamp.UnixMilli(),
			TxCount:    len(batch.Applied),
		},
		txn,
	)
	if err != nil {
		return fmt.Errorf("persist block: %w", err)
	}
	if err := ls.db.SetLedgerVersion(ls.version+1, txn); err != nil {
		return fmt.Errorf("persist ledger version: %w", err)
	}
	for idx, tx := range batch.Applied {
		body, err := encodeTransaction(tx)
		if err != nil {
			return fmt.Errorf("encode transaction %s: %w", tx.ID, err)
		}
		err = ls.db.SetTransaction(
			&models.Transaction{
				TxID:        tx.ID,
				BlockID:     batch.Block.ID,
				BlockHeight: batch.Block.Height,
				BlockIndex:  uint32(idx), //nolint:gosec
				Sender:      tx.SenderAddress,
				Fee:         types.Uint64(tx.Fee),
				VoteCount:   len(tx.Votes),
			},
			body,
			txn,
		)
		if err != nil {
			return fmt.Errorf("persist transaction %s: %w", tx.ID, err)
		}
	}
	return nil
}

// ConfirmedTransaction is a transaction as recorded in a committed block
type ConfirmedTransaction struct {
	Tx          *vote.Transaction
	BlockID     string
	BlockHeight uint64
	BlockIndex  uint32
}

// IsConfirmed reports whether a transaction id is recorded in a committed
// block
func (ls *LedgerState) IsConfirmed(id string) (bool, error) {
	_, err := ls.db.GetTransaction(id, nil)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, models.ErrTransactionNotFound) {
		return false, nil
	}
	return false, err
}

// GetTransaction returns a confirmed transaction with its block position
func (ls *LedgerState) GetTransaction(id string) (*ConfirmedTransaction, error) {
	record, err := ls.db.GetTransaction(id, nil)
	if err != nil {
		if errors.Is(err, models.ErrTransactionNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	body, err := ls.db.GetTransactionBody(id, nil)
	if err != nil {
		return nil, fmt.Errorf("load transaction body %s: %w", id, err)
	}
	tx, err := decodeTransaction(body)
	if err != nil {
		return nil, fmt.Errorf("decode transaction %s: %w", id, err)
	}
	return &ConfirmedTransaction{
		Tx:          tx,
		BlockID:     record.BlockID,
		BlockHeight: record.BlockHeight,
		BlockIndex:  record.BlockIndex,
	}, nil
}
