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

package models

import (
	"errors"

	"github.com/blinklabs-io/votechain/database/types"
)

var ErrTransactionNotFound = errors.New("transaction not found")

// Transaction records where a confirmed transaction landed
type Transaction struct {
	TxID        string `gorm:"uniqueIndex;size:20"`
	BlockID     string `gorm:"index;size:20"`
	Sender      string `gorm:"index;size:21"`
	ID          uint   `gorm:"primaryKey"`
	BlockHeight uint64 `gorm:"index"`
	Fee         types.Uint64
	BlockIndex  uint32
	VoteCount   int
}

func (Transaction) TableName() string {
	return "transaction"
}
