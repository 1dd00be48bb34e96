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
	"encoding/hex"
	"errors"
	"fmt"
	"os"

	"github.com/blinklabs-io/votechain/database"
	"github.com/blinklabs-io/votechain/vote"
	"go.opentelemetry.io/otel"
	"gopkg.in/yaml.v3"
)

// Genesis describes the initial account set of a new ledger
type Genesis struct {
	Accounts []GenesisAccount `yaml:"accounts"`
}

type GenesisAccount struct {
	Address   string   `yaml:"address"`
	PublicKey string   `yaml:"publicKey"`
	Votes     []string `yaml:"votes"`
	Balance   uint64   `yaml:"balance"`
}

// ParseGenesis decodes and checks a YAML genesis document
func ParseGenesis(data []byte) (*Genesis, error) {
	var genesis Genesis
	if err := yaml.Unmarshal(data, &genesis); err != nil {
		return nil, fmt.Errorf("parse genesis: %w", err)
	}
	seen := make(map[string]struct{}, len(genesis.Accounts))
	for idx := range genesis.Accounts {
		account := &genesis.Accounts[idx]
		if account.PublicKey != "" {
			pubKey, err := hex.DecodeString(account.PublicKey)
			if err != nil || len(pubKey) != vote.DelegateKeySize {
				return nil, fmt.Errorf(
					"genesis account %d: invalid public key",
					idx,
				)
			}
			derived := vote.AddressFromPublicKey(pubKey)
			if account.Address == "" {
				account.Address = derived
			} else if account.Address != derived {
				return nil, fmt.Errorf(
					"genesis account %d: address %s does not match public key",
					idx,
					account.Address,
				)
			}
		}
		if account.Address == "" {
			return nil, fmt.Errorf("genesis account %d: missing address", idx)
		}
		if _, ok := seen[account.Address]; ok {
			return nil, fmt.Errorf(
				"genesis account %d: duplicate address %s",
				idx,
				account.Address,
			)
		}
		seen[account.Address] = struct{}{}
		for _, delegate := range account.Votes {
			if _, err := vote.ParseEntry("+" + delegate); err != nil {
				return nil, fmt.Errorf(
					"genesis account %s: vote %q: %w",
					account.Address,
					delegate,
					err,
				)
			}
		}
	}
	return &genesis, nil
}

// LoadGenesis reads a genesis file and loads it into an empty ledger
func (ls *LedgerState) LoadGenesis(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read genesis: %w", err)
	}
	genesis, err := ParseGenesis(data)
	if err != nil {
		return err
	}
	return ls.ApplyGenesis(ctx, genesis)
}

// ApplyGenesis stores the genesis accounts. The ledger must not contain any
// accounts or blocks.
func (ls *LedgerState) ApplyGenesis(ctx context.Context, genesis *Genesis) error {
	_, span := otel.Tracer("ledger").Start(ctx, "ledger.ApplyGenesis")
	defer span.End()
	if genesis == nil {
		return errors.New("nil genesis")
	}
	ls.Lock()
	defer ls.Unlock()
	if len(ls.accounts) > 0 || ls.tip.Height > 0 {
		return ErrLedgerNotEmpty
	}
	accounts := make(map[string]vote.AccountSnapshot, len(genesis.Accounts))
	for _, account := range genesis.Accounts {
		snap := vote.NewAccountSnapshot(
			account.Address,
			account.Balance,
			account.Votes...,
		)
		if account.PublicKey != "" {
			pubKey, err := hex.DecodeString(account.PublicKey)
			if err != nil {
				return fmt.Errorf("genesis account %s: %w", account.Address, err)
			}
			snap.PublicKey = pubKey
		}
		accounts[account.Address] = snap
	}
	txn := ls.db.Transaction(true)
	err := txn.Do(func(txn *database.Txn) error {
		for _, snap := range accounts {
			if err := ls.db.SetAccount(accountRecord(snap), txn); err != nil {
				return fmt.Errorf("persist genesis account %s: %w", snap.Address, err)
			}
		}
		return ls.db.SetLedgerVersion(ls.version+1, txn)
	})
	if err != nil {
		return err
	}
	ls.accounts = accounts
	ls.version++
	ls.metrics.accounts.Set(float64(len(ls.accounts)))
	ls.config.Logger.Info(
		fmt.Sprintf("loaded %d genesis accounts", len(accounts)),
		"component", "ledger",
	)
	return nil
}
