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

package sqlite

import (
	"errors"

	"github.com/blinklabs-io/votechain/database/models"
	"github.com/blinklabs-io/votechain/database/types"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GetAccount returns an account by address
func (d *MetadataStoreSqlite) GetAccount(
	address string,
	txn types.Txn,
) (*models.Account, error) {
	db, err := d.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	ret := &models.Account{}
	result := db.First(ret, "address = ?", address)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, models.ErrAccountNotFound
		}
		return nil, result.Error
	}
	return ret, nil
}

// GetAccounts returns every stored account ordered by address
func (d *MetadataStoreSqlite) GetAccounts(
	txn types.Txn,
) ([]models.Account, error) {
	db, err := d.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	var ret []models.Account
	result := db.Order("address").Find(&ret)
	if result.Error != nil {
		return nil, result.Error
	}
	return ret, nil
}

// GetAccountVotes returns the vote rows for an address, or for all
// addresses when address is empty
func (d *MetadataStoreSqlite) GetAccountVotes(
	address string,
	txn types.Txn,
) ([]models.AccountVote, error) {
	db, err := d.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	var ret []models.AccountVote
	query := db.Order("address, delegate")
	if address != "" {
		query = query.Where("address = ?", address)
	}
	if result := query.Find(&ret); result.Error != nil {
		return nil, result.Error
	}
	return ret, nil
}

// SetAccount upserts an account and replaces its vote set
func (d *MetadataStoreSqlite) SetAccount(
	account *models.Account,
	delegates []string,
	txn types.Txn,
) error {
	db, err := d.resolveDB(txn)
	if err != nil {
		return err
	}
	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "address"}},
		DoUpdates: clause.AssignmentColumns([]string{"public_key", "balance"}),
	}).Create(account)
	if result.Error != nil {
		return result.Error
	}
	result = db.Where("address = ?", account.Address).
		Delete(&models.AccountVote{})
	if result.Error != nil {
		return result.Error
	}
	if len(delegates) == 0 {
		return nil
	}
	votes := make([]models.AccountVote, 0, len(delegates))
	for _, delegate := range delegates {
		votes = append(
			votes,
			models.AccountVote{
				Address:  account.Address,
				Delegate: delegate,
			},
		)
	}
	return db.Create(&votes).Error
}
