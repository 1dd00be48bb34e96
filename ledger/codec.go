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
	"github.com/blinklabs-io/gouroboros/cbor"
	"github.com/blinklabs-io/votechain/vote"
)

// storedTransaction is the blob representation of a confirmed transaction
type storedTransaction struct {
	cbor.StructAsArray
	Type            uint8
	Timestamp       uint32
	SenderAddress   string
	SenderPublicKey []byte
	Fee             uint64
	Votes           []string
	Signature       []byte
}

func encodeTransaction(tx *vote.Transaction) ([]byte, error) {
	return cbor.Encode(
		&storedTransaction{
			Type:            vote.TransactionTypeVote,
			Timestamp:       tx.Timestamp,
			SenderAddress:   tx.SenderAddress,
			SenderPublicKey: tx.SenderPublicKey,
			Fee:             tx.Fee,
			Votes:           tx.Votes,
			Signature:       tx.Signature,
		},
	)
}

func decodeTransaction(data []byte) (*vote.Transaction, error) {
	var tmp storedTransaction
	if _, err := cbor.Decode(data, &tmp); err != nil {
		return nil, err
	}
	tx := &vote.Transaction{
		Timestamp:       tmp.Timestamp,
		SenderAddress:   tmp.SenderAddress,
		SenderPublicKey: tmp.SenderPublicKey,
		Fee:             tmp.Fee,
		Votes:           tmp.Votes,
		Signature:       tmp.Signature,
	}
	tx.ID = tx.ComputeID()
	return tx, nil
}
