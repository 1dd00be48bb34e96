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

var ErrAccountNotFound = errors.New("account not found")

// Account holds the committed balance and public key of an address
type Account struct {
	Address   string `gorm:"uniqueIndex;size:21"`
	PublicKey []byte `gorm:"size:32"`
	ID        uint   `gorm:"primarykey"`
	Balance   types.Uint64
}

func (a *Account) TableName() string {
	return "account"
}

// AccountVote is a single delegate held in an account's vote set
type AccountVote struct {
	Address  string `gorm:"uniqueIndex:idx_account_vote;size:21"`
	Delegate string `gorm:"uniqueIndex:idx_account_vote;size:64"`
	ID       uint   `gorm:"primarykey"`
}

func (AccountVote) TableName() string {
	return "account_vote"
}
