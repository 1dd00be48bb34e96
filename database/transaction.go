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

// SetTransaction records a confirmed transaction and stores its encoded body
// in the blob store
func (d *Database) SetTransaction(
	record *models.Transaction,
	body []byte,
	txn *Txn,
) error {
	owned := false
	if txn == nil {
		txn = d.Transaction(true)
		owned = true
		defer txn.Release()
	}
	if d.blob == nil {
		return types.ErrBlobStoreUnavailable
	}
	blobTxn := txn.Blob()
	if blobTxn == nil {
		return types.ErrNilTxn
	}
	if err := d.blob.Set(blobTxn, types.TransactionBlobKey(record.TxID), body); err != nil {
		return err
	}
	if err := d.metadata.SetTransaction(record, txn.Metadata()); err != nil {
		return err
	}
	if owned {
		return txn.Commit()
	}
	return nil
}

// GetTransaction returns the confirmation record for a transaction
func (d *Database) GetTransaction(
	txId string,
	txn *Txn,
) (*models.Transaction, error) {
	if txn == nil {
		txn = d.Transaction(false)
		defer txn.Release()
	}
	return d.metadata.GetTransaction(txId, txn.Metadata())
}

// GetTransactionsByBlock returns the records for every transaction in a block
func (d *Database) GetTransactionsByBlock(
	height uint64,
	txn *Txn,
) ([]models.Transaction, error) {
	if txn == nil {
		txn = d.Transaction(false)
		defer txn.Release()
	}
	return d.metadata.GetTransactionsByBlock(height, txn.Metadata())
}

// GetTransactionBody returns the encoded body of a confirmed transaction
func (d *Database) GetTransactionBody(txId string, txn *Txn) ([]byte, error) {
	if txn == nil {
		txn = d.Transaction(false)
		defer txn.Release()
	}
	if d.blob == nil {
		return nil, types.ErrBlobStoreUnavailable
	}
	return d.blob.Get(txn.Blob(), types.TransactionBlobKey(txId))
}
