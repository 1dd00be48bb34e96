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
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/blinklabs-io/votechain/database"
	"github.com/blinklabs-io/votechain/database/models"
	"github.com/blinklabs-io/votechain/event"
	"github.com/blinklabs-io/votechain/vote"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
)

var (
	ErrNilDatabase    = errors.New("ledger requires a database")
	ErrLedgerNotEmpty = errors.New("ledger already contains accounts")
)

type LedgerStateConfig struct {
	Logger       *slog.Logger
	Database     *database.Database
	EventBus     *event.EventBus
	PromRegistry prometheus.Registerer
	Validator    *vote.Validator
}

// LedgerState is the authoritative account store. Committed state is kept in
// memory and mirrored to the database on every block.
type LedgerState struct {
	sync.RWMutex
	config   LedgerStateConfig
	db       *database.Database
	accounts map[string]vote.AccountSnapshot
	tip      BlockRef
	version  uint64
	metrics  stateMetrics
}

func NewLedgerState(cfg LedgerStateConfig) (*LedgerState, error) {
	if cfg.Database == nil {
		return nil, ErrNilDatabase
	}
	if cfg.Logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if cfg.Validator == nil {
		cfg.Validator = vote.NewValidator(vote.DefaultValidatorConfig())
	}
	ls := &LedgerState{
		config:   cfg,
		db:       cfg.Database,
		accounts: make(map[string]vote.AccountSnapshot),
	}
	ls.metrics.init(cfg.PromRegistry)
	if err := ls.load(); err != nil {
		return nil, err
	}
	ls.config.Logger.Info(
		fmt.Sprintf(
			"loaded ledger state: %d accounts, tip height %d",
			len(ls.accounts),
			ls.tip.Height,
		),
		"component", "ledger",
	)
	return ls, nil
}

func (ls *LedgerState) load() error {
	records, err := ls.db.GetAccounts(nil)
	if err != nil {
		return fmt.Errorf("load accounts: %w", err)
	}
	for _, record := range records {
		snap := vote.NewAccountSnapshot(
			record.Address,
			record.Balance,
			record.Votes...,
		)
		snap.PublicKey = record.PublicKey
		ls.accounts[record.Address] = snap
	}
	tip, err := ls.db.GetTip(nil)
	if err != nil {
		if !errors.Is(err, models.ErrBlockNotFound) {
			return fmt.Errorf("load tip: %w", err)
		}
	} else {
		ls.tip = blockRefFromModel(tip)
	}
	version, err := ls.db.GetLedgerVersion(nil)
	if err != nil {
		return fmt.Errorf("load ledger version: %w", err)
	}
	ls.version = version
	ls.metrics.blockHeight.Set(float64(ls.tip.Height))
	ls.metrics.accounts.Set(float64(len(ls.accounts)))
	return nil
}

// Validator returns the rule checker used for apply-time revalidation
func (ls *LedgerState) Validator() *vote.Validator {
	return ls.config.Validator
}

// Snapshot returns a value copy of the committed account. Unknown addresses
// yield an empty account with zero balance.
func (ls *LedgerState) Snapshot(address string) vote.AccountSnapshot {
	ls.RLock()
	defer ls.RUnlock()
	return ls.snapshotLocked(address)
}

func (ls *LedgerState) snapshotLocked(address string) vote.AccountSnapshot {
	if snap, ok := ls.accounts[address]; ok {
		return snap.Clone()
	}
	return vote.NewAccountSnapshot(address, 0)
}

// Version increases every time committed state changes. It is persisted
// with the change, so it never goes backwards across a restart.
func (ls *LedgerState) Version() uint64 {
	ls.RLock()
	defer ls.RUnlock()
	return ls.version
}

// Tip returns the most recently committed block
func (ls *LedgerState) Tip() BlockRef {
	ls.RLock()
	defer ls.RUnlock()
	return ls.tip
}

// Credit adds funds to an account outside of block application
func (ls *LedgerState) Credit(
	ctx context.Context,
	address string,
	amount uint64,
) error {
	_, span := otel.Tracer("ledger").Start(ctx, "ledger.Credit")
	defer span.End()
	ls.Lock()
	defer ls.Unlock()
	snap := ls.snapshotLocked(address)
	if snap.Balance+amount < snap.Balance {
		return fmt.Errorf("credit overflows balance of %s", address)
	}
	snap.Balance += amount
	txn := ls.db.Transaction(true)
	err := txn.Do(func(txn *database.Txn) error {
		if err := ls.db.SetAccount(accountRecord(snap), txn); err != nil {
			return fmt.Errorf("persist account %s: %w", address, err)
		}
		return ls.db.SetLedgerVersion(ls.version+1, txn)
	})
	if err != nil {
		return err
	}
	ls.accounts[address] = snap
	ls.version++
	ls.metrics.accounts.Set(float64(len(ls.accounts)))
	if ls.config.EventBus != nil {
		ls.config.EventBus.Publish(
			AccountCreditedEventType,
			event.NewEvent(
				AccountCreditedEventType,
				AccountCreditedEvent{
					Address: address,
					Amount:  amount,
					Balance: snap.Balance,
				},
			),
		)
	}
	return nil
}

func accountRecord(snap vote.AccountSnapshot) database.AccountRecord {
	return database.AccountRecord{
		Address:   snap.Address,
		PublicKey: snap.PublicKey,
		Balance:   snap.Balance,
		Votes:     snap.VoteList(),
	}
}
