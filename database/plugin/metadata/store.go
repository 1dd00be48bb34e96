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

package metadata

import (
	"log/slog"

	"github.com/blinklabs-io/votechain/database/models"
	"github.com/blinklabs-io/votechain/database/plugin/metadata/sqlite"
	"github.com/blinklabs-io/votechain/database/types"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

type MetadataStore interface {
	// Database
	Close() error
	DB() *gorm.DB
	GetCommitTimestamp() (int64, error)
	SetCommitTimestamp(int64, types.Txn) error
	Transaction() types.Txn

	// Accounts
	GetAccount(string, types.Txn) (*models.Account, error)
	GetAccounts(types.Txn) ([]models.Account, error)
	GetAccountVotes(
		string, // address, empty for all
		types.Txn,
	) ([]models.AccountVote, error)
	SetAccount(
		*models.Account,
		[]string, // delegates
		types.Txn,
	) error

	// Blocks
	GetTip(types.Txn) (*models.Block, error)
	GetBlockByHeight(uint64, types.Txn) (*models.Block, error)
	SetBlock(*models.Block, types.Txn) error

	// Transactions
	GetTransaction(string, types.Txn) (*models.Transaction, error)
	GetTransactionsByBlock(uint64, types.Txn) ([]models.Transaction, error)
	SetTransaction(*models.Transaction, types.Txn) error
}

// New returns a metadata store. SQLite is the only backend.
func New(
	dataDir string,
	logger *slog.Logger,
	promRegistry prometheus.Registerer,
) (MetadataStore, error) {
	return sqlite.New(dataDir, logger, promRegistry)
}
