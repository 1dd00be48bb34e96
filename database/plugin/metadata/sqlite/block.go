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
)

// GetTip returns the highest stored block
func (d *MetadataStoreSqlite) GetTip(txn types.Txn) (*models.Block, error) {
	db, err := d.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	ret := &models.Block{}
	result := db.Order("height DESC").First(ret)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, models.ErrBlockNotFound
		}
		return nil, result.Error
	}
	return ret, nil
}

// GetBlockByHeight returns the block at the given height
func (d *MetadataStoreSqlite) GetBlockByHeight(
	height uint64,
	txn types.Txn,
) (*models.Block, error) {
	db, err := d.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	ret := &models.Block{}
	result := db.First(ret, "height = ?", height)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, models.ErrBlockNotFound
		}
		return nil, result.Error
	}
	return ret, nil
}

func (d *MetadataStoreSqlite) SetBlock(
	block *models.Block,
	txn types.Txn,
) error {
	db, err := d.resolveDB(txn)
	if err != nil {
		return err
	}
	return db.Create(block).Error
}
