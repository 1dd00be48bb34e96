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

package vote

import (
	"bytes"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"strconv"
	"strings"
)

// TransactionTypeVote is the wire type identifier of a vote transaction
const TransactionTypeVote byte = 3

// Transaction is a signed instruction adding or removing delegates from the
// sender's vote list. A Transaction is treated as immutable once created.
type Transaction struct {
	ID              string
	SenderAddress   string
	SenderPublicKey []byte
	Signature       []byte
	Votes           []string
	Fee             uint64
	Timestamp       uint32
}

// NewTransaction builds, signs and identifies a vote transaction for the
// account owning privateKey
func NewTransaction(
	privateKey ed25519.PrivateKey,
	fee uint64,
	timestamp uint32,
	votes []string,
) *Transaction {
	pubKey, _ := privateKey.Public().(ed25519.PublicKey)
	tx := &Transaction{
		SenderAddress:   AddressFromPublicKey(pubKey),
		SenderPublicKey: bytes.Clone(pubKey),
		Votes:           append([]string(nil), votes...),
		Fee:             fee,
		Timestamp:       timestamp,
	}
	digest := tx.Hash()
	tx.Signature = ed25519.Sign(privateKey, digest[:])
	tx.ID = tx.ComputeID()
	return tx
}

// Hash returns the signing digest, which covers everything except the signature
func (t *Transaction) Hash() [sha256.Size]byte {
	return sha256.Sum256(t.unsignedBytes())
}

// Bytes returns the canonical serialization of the signed transaction
func (t *Transaction) Bytes() []byte {
	buf := t.unsignedBytes()
	return append(buf, t.Signature...)
}

// ComputeID derives the transaction id from the signed bytes
func (t *Transaction) ComputeID() string {
	return idFromHash(sha256.Sum256(t.Bytes()))
}

// Size returns the length of the canonical serialization
func (t *Transaction) Size() int {
	return len(t.Bytes())
}

// Entries parses the vote asset
func (t *Transaction) Entries() ([]Entry, error) {
	return ParseEntries(t.Votes)
}

func (t *Transaction) String() string {
	return t.ID
}

func (t *Transaction) unsignedBytes() []byte {
	asset := strings.Join(t.Votes, "")
	buf := make(
		[]byte,
		0,
		1+4+len(t.SenderPublicKey)+8+8+len(asset)+ed25519.SignatureSize,
	)
	buf = append(buf, TransactionTypeVote)
	buf = binary.LittleEndian.AppendUint32(buf, t.Timestamp)
	buf = append(buf, t.SenderPublicKey...)
	// Vote transactions are addressed to the sender
	buf = binary.BigEndian.AppendUint64(buf, addressNumber(t.SenderAddress))
	buf = binary.LittleEndian.AppendUint64(buf, t.Fee)
	buf = append(buf, asset...)
	return buf
}

// AddressFromPublicKey derives the account address owned by a public key
func AddressFromPublicKey(publicKey []byte) string {
	return idFromHash(sha256.Sum256(publicKey)) + "L"
}

// PublicKeyHex returns the hex form used to reference a key as a delegate
func PublicKeyHex(publicKey []byte) string {
	return hex.EncodeToString(publicKey)
}

// IDFromBytes derives a numeric identifier for arbitrary data in the same
// way transaction ids are derived
func IDFromBytes(data []byte) string {
	return idFromHash(sha256.Sum256(data))
}

// idFromHash takes the first 8 bytes of the hash in reverse order as a
// big-endian integer
func idFromHash(hash [sha256.Size]byte) string {
	var tmp [8]byte
	for i := range tmp {
		tmp[i] = hash[7-i]
	}
	return strconv.FormatUint(binary.BigEndian.Uint64(tmp[:]), 10)
}

func addressNumber(address string) uint64 {
	num, err := strconv.ParseUint(strings.TrimSuffix(address, "L"), 10, 64)
	if err != nil {
		return 0
	}
	return num
}
