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
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/blinklabs-io/votechain/database/types"
)

// GetLedgerVersion returns the persisted ledger version, or 0 if none has
// been recorded
func (d *Database) GetLedgerVersion(txn *Txn) (uint64, error) {
	if txn == nil {
		txn = d.Transaction(false)
		defer txn.Release()
	}
	if d.blob == nil {
		return 0, types.ErrBlobStoreUnavailable
	}
	val, err := d.blob.Get(txn.Blob(), []byte(types.LedgerVersionBlobKey))
	if err != nil {
		if errors.Is(err, types.ErrBlobKeyNotFound) {
			return 0, nil
		}
		return 0, err
	}
	if len(val) != 8 {
		return 0, fmt.Errorf("invalid ledger version value: %d bytes", len(val))
	}
	return binary.BigEndian.Uint64(val), nil
}

// SetLedgerVersion records the ledger version alongside the state change
// that produced it
func (d *Database) SetLedgerVersion(version uint64, txn *Txn) error {
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
	val := binary.BigEndian.AppendUint64(nil, version)
	if err := d.blob.Set(blobTxn, []byte(types.LedgerVersionBlobKey), val); err != nil {
		return err
	}
	if owned {
		return txn.Commit()
	}
	return nil
}
