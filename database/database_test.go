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

package database_test

import (
	"errors"
	"testing"

	"github.com/blinklabs-io/votechain/database"
	"github.com/blinklabs-io/votechain/database/models"
	"github.com/blinklabs-io/votechain/database/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testDelegateA = "5d28e992b80172f38d3a2f9592cad740fd18d3c2e187745cd5f7badf285ed819"
	testDelegateB = "7e7d3e8b5c3a44b7ab0ef14bcde6e23d4e56d1e4d0be1cfbcb1ffd2d0cc1d08d"
)

func newTestDatabase(t *testing.T, dataDir string) *database.Database {
	t.Helper()
	db, err := database.New(&database.Config{DataDir: dataDir})
	require.NoError(t, err)
	return db
}

func TestAccountRoundTrip(t *testing.T) {
	db := newTestDatabase(t, "")
	defer db.Close()

	record := database.AccountRecord{
		Address:   "16313739661670634666L",
		PublicKey: []byte{0x01, 0x02, 0x03},
		Balance:   500000000,
		Votes:     []string{testDelegateB, testDelegateA},
	}
	require.NoError(t, db.SetAccount(record, nil))

	got, err := db.GetAccount(record.Address, nil)
	require.NoError(t, err)
	assert.Equal(t, record.Balance, got.Balance)
	assert.Equal(t, record.PublicKey, got.PublicKey)
	// Votes come back ordered by delegate
	assert.Equal(t, []string{testDelegateA, testDelegateB}, got.Votes)

	// Replacing the vote set drops removed delegates
	record.Votes = []string{testDelegateB}
	record.Balance = 400000000
	require.NoError(t, db.SetAccount(record, nil))
	got, err = db.GetAccount(record.Address, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(400000000), got.Balance)
	assert.Equal(t, []string{testDelegateB}, got.Votes)

	accounts, err := db.GetAccounts(nil)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, record.Address, accounts[0].Address)
}

func TestGetAccountNotFound(t *testing.T) {
	db := newTestDatabase(t, "")
	defer db.Close()

	_, err := db.GetAccount("1L", nil)
	assert.ErrorIs(t, err, models.ErrAccountNotFound)
}

func TestTransactionRecordAndBody(t *testing.T) {
	db := newTestDatabase(t, "")
	defer db.Close()

	txn := db.Transaction(true)
	err := txn.Do(func(txn *database.Txn) error {
		if err := db.SetBlock(
			&models.Block{BlockID: "100", Height: 1, TxCount: 1},
			txn,
		); err != nil {
			return err
		}
		return db.SetTransaction(
			&models.Transaction{
				TxID:        "12345",
				BlockID:     "100",
				BlockHeight: 1,
				Sender:      "1L",
				Fee:         types.Uint64(100000000),
			},
			[]byte{0xde, 0xad, 0xbe, 0xef},
			txn,
		)
	})
	require.NoError(t, err)

	record, err := db.GetTransaction("12345", nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), record.BlockHeight)
	assert.Equal(t, types.Uint64(100000000), record.Fee)

	body, err := db.GetTransactionBody("12345", nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, body)

	records, err := db.GetTransactionsByBlock(1, nil)
	require.NoError(t, err)
	assert.Len(t, records, 1)

	tip, err := db.GetTip(nil)
	require.NoError(t, err)
	assert.Equal(t, "100", tip.BlockID)
}

func TestTxnRollbackDiscardsBothStores(t *testing.T) {
	db := newTestDatabase(t, "")
	defer db.Close()

	errTest := errors.New("test failure")
	txn := db.Transaction(true)
	err := txn.Do(func(txn *database.Txn) error {
		if err := db.SetTransaction(
			&models.Transaction{TxID: "999", Sender: "1L"},
			[]byte{0x01},
			txn,
		); err != nil {
			return err
		}
		return errTest
	})
	require.ErrorIs(t, err, errTest)

	_, err = db.GetTransaction("999", nil)
	assert.ErrorIs(t, err, models.ErrTransactionNotFound)
	_, err = db.GetTransactionBody("999", nil)
	assert.ErrorIs(t, err, types.ErrBlobKeyNotFound)
	_, err = db.GetTip(nil)
	assert.ErrorIs(t, err, models.ErrBlockNotFound)
}

func TestLedgerVersion(t *testing.T) {
	db := newTestDatabase(t, "")
	defer db.Close()

	version, err := db.GetLedgerVersion(nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), version)

	require.NoError(t, db.SetLedgerVersion(7, nil))
	version, err = db.GetLedgerVersion(nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), version)

	// A rolled back write leaves the recorded version alone
	txn := db.Transaction(true)
	require.NoError(t, db.SetLedgerVersion(8, txn))
	require.NoError(t, txn.Rollback())
	version, err = db.GetLedgerVersion(nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), version)
}

func TestInMemoryDatabasesAreIsolated(t *testing.T) {
	db1 := newTestDatabase(t, "")
	defer db1.Close()
	db2 := newTestDatabase(t, "")
	defer db2.Close()

	require.NoError(t, db1.SetAccount(database.AccountRecord{Address: "1L", Balance: 1}, nil))
	_, err := db2.GetAccount("1L", nil)
	assert.ErrorIs(t, err, models.ErrAccountNotFound)
}

func TestPersistenceAcrossReopen(t *testing.T) {
	dataDir := t.TempDir()
	db := newTestDatabase(t, dataDir)
	txn := db.Transaction(true)
	require.NoError(t, txn.Do(func(txn *database.Txn) error {
		if err := db.SetAccount(
			database.AccountRecord{
				Address: "2L",
				Balance: 42,
				Votes:   []string{testDelegateA},
			},
			txn,
		); err != nil {
			return err
		}
		return db.SetTransaction(
			&models.Transaction{TxID: "7", Sender: "2L"},
			[]byte{0x07},
			txn,
		)
	}))
	require.NoError(t, db.Close())

	// Reopening checks that both stores agree on the last commit
	db = newTestDatabase(t, dataDir)
	defer db.Close()
	got, err := db.GetAccount("2L", nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), got.Balance)
	assert.Equal(t, []string{testDelegateA}, got.Votes)
	body, err := db.GetTransactionBody("7", nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x07}, body)
}

func TestCommitTimestampError(t *testing.T) {
	err := database.CommitTimestampError{
		MetadataTimestamp: 2,
		BlobTimestamp:     1,
	}
	assert.Equal(t, "commit timestamp mismatch: 2 (metadata) != 1 (blob)", err.Error())
}
