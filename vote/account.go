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
	"maps"
	"slices"
)

// AccountSnapshot is a read-only value copy of an account at validation time
type AccountSnapshot struct {
	Votes     map[string]struct{}
	Address   string
	PublicKey []byte
	Balance   uint64
}

// NewAccountSnapshot builds a snapshot holding the given delegate keys
func NewAccountSnapshot(
	address string,
	balance uint64,
	votes ...string,
) AccountSnapshot {
	ret := AccountSnapshot{
		Address: address,
		Balance: balance,
		Votes:   make(map[string]struct{}, len(votes)),
	}
	for _, v := range votes {
		ret.Votes[v] = struct{}{}
	}
	return ret
}

// HasVote reports whether the account currently votes for the delegate
func (a AccountSnapshot) HasVote(delegate string) bool {
	_, ok := a.Votes[delegate]
	return ok
}

// VoteList returns the delegate keys in sorted order
func (a AccountSnapshot) VoteList() []string {
	return slices.Sorted(maps.Keys(a.Votes))
}

// Clone returns a deep copy that shares no mutable state with the original
func (a AccountSnapshot) Clone() AccountSnapshot {
	ret := a
	ret.PublicKey = bytes.Clone(a.PublicKey)
	ret.Votes = maps.Clone(a.Votes)
	if ret.Votes == nil {
		ret.Votes = make(map[string]struct{})
	}
	return ret
}

// WithTransaction returns the account as it would be after applying an
// already validated transaction. The receiver is not modified.
func (a AccountSnapshot) WithTransaction(
	tx *Transaction,
	fee uint64,
) (AccountSnapshot, error) {
	entries, err := tx.Entries()
	if err != nil {
		return a, err
	}
	ret := a.Clone()
	if ret.Balance < fee {
		return a, NewInsufficientFundsError(a.Address, a.Balance)
	}
	ret.Balance -= fee
	if len(ret.PublicKey) == 0 {
		ret.PublicKey = bytes.Clone(tx.SenderPublicKey)
	}
	for _, entry := range entries {
		switch entry.Operation {
		case OperationAdd:
			ret.Votes[entry.Delegate] = struct{}{}
		case OperationRemove:
			delete(ret.Votes, entry.Delegate)
		}
	}
	return ret, nil
}
