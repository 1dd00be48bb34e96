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

package database

import (
	"github.com/blinklabs-io/votechain/database/models"
	"github.com/blinklabs-io/votechain/database/types"
)

// AccountRecord is the stored state of an account with its vote set
type AccountRecord struct {
	Address   string
	PublicKey []byte
	Votes     []string
	Balance   uint64
}

// GetAccount returns the stored state of a single account
func (d *Database) GetAccount(address string, txn *Txn) (*AccountRecord, error) {
	if txn == nil {
		txn = d.Transaction(false)
		defer txn.Release()
	}
	account, err := d.metadata.GetAccount(address, txn.Metadata())
	if err != nil {
		return nil, err
	}
	votes, err := d.metadata.GetAccountVotes(address, txn.Metadata())
	if err != nil {
		return nil, err
	}
	ret := &AccountRecord{
		Address:   account.Address,
		PublicKey: account.PublicKey,
		Balance:   uint64(account.Balance),
	}
	for _, vote := range votes {
		ret.Votes = append(ret.Votes, vote.Delegate)
	}
	return ret, nil
}

// GetAccounts returns the stored state of every account
func (d *Database) GetAccounts(txn *Txn) ([]AccountRecord, error) {
	if txn == nil {
		txn = d.Transaction(false)
		defer txn.Release()
	}
	accounts, err := d.metadata.GetAccounts(txn.Metadata())
	if err != nil {
		return nil, err
	}
	votes, err := d.metadata.GetAccountVotes("", txn.Metadata())
	if err != nil {
		return nil, err
	}
	votesByAddr := make(map[string][]string)
	for _, vote := range votes {
		votesByAddr[vote.Address] = append(
			votesByAddr[vote.Address],
			vote.Delegate,
		)
	}
	ret := make([]AccountRecord, 0, len(accounts))
	for _, account := range accounts {
		ret = append(
			ret,
			AccountRecord{
				Address:   account.Address,
				PublicKey: account.PublicKey,
				Balance:   uint64(account.Balance),
				Votes:     votesByAddr[account.Address],
			},
		)
	}
	return ret, nil
}

// SetAccount stores the full state of an account, replacing its vote set
func (d *Database) SetAccount(record AccountRecord, txn *Txn) error {
	owned := false
	if txn == nil {
		txn = d.Transaction(true)
		owned = true
		defer txn.Release()
	}
	err := d.metadata.SetAccount(
		&models.Account{
			Address:   record.Address,
			PublicKey: record.PublicKey,
			Balance:   types.Uint64(record.Balance),
		},
		record.Votes,
		txn.Metadata(),
	)
	if err != nil {
		return err
	}
	if owned {
		return txn.Commit()
	}
	return nil
}
