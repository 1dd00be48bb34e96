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
	"encoding/hex"
	"errors"
	"fmt"
)

// DelegateKeySize is the size in bytes of a delegate public key
const DelegateKeySize = 32

type Operation byte

const (
	OperationAdd    Operation = '+'
	OperationRemove Operation = '-'
)

func (o Operation) String() string {
	switch o {
	case OperationAdd:
		return "add"
	case OperationRemove:
		return "remove"
	default:
		return "unknown"
	}
}

// Entry is a single parsed element of a vote transaction asset
type Entry struct {
	Operation Operation
	// Delegate is the lowercase hex encoding of the delegate public key
	Delegate string
}

func (e Entry) String() string {
	return string(e.Operation) + e.Delegate
}

var (
	errInvalidSign        = errors.New("invalid sign")
	errInvalidDelegateKey = errors.New("invalid delegate public key")
)

// ParseEntry parses a signed delegate reference of the form "+<hex>" or "-<hex>"
func ParseEntry(raw string) (Entry, error) {
	if len(raw) == 0 {
		return Entry{}, errInvalidSign
	}
	op := Operation(raw[0])
	if op != OperationAdd && op != OperationRemove {
		return Entry{}, errInvalidSign
	}
	key := raw[1:]
	if len(key) != hex.EncodedLen(DelegateKeySize) {
		return Entry{}, errInvalidDelegateKey
	}
	decoded, err := hex.DecodeString(key)
	if err != nil {
		return Entry{}, errInvalidDelegateKey
	}
	// Only the canonical lowercase form identifies a delegate
	if hex.EncodeToString(decoded) != key {
		return Entry{}, errInvalidDelegateKey
	}
	return Entry{Operation: op, Delegate: key}, nil
}

// EntryError reports a malformed raw vote entry
type EntryError struct {
	Err   error
	Index int
}

func (e *EntryError) Error() string {
	return fmt.Sprintf("Invalid vote at index %d - %s", e.Index, e.Err)
}

func (e *EntryError) Unwrap() error {
	return e.Err
}

// ParseEntries parses all raw vote entries, reporting the index of the first malformed one
func ParseEntries(raw []string) ([]Entry, error) {
	ret := make([]Entry, 0, len(raw))
	for idx, r := range raw {
		entry, err := ParseEntry(r)
		if err != nil {
			return nil, &EntryError{Index: idx, Err: err}
		}
		ret = append(ret, entry)
	}
	return ret, nil
}

// AddVote returns the raw asset entry voting for the delegate key
func AddVote(delegateKey []byte) string {
	return string(OperationAdd) + hex.EncodeToString(delegateKey)
}

// RemoveVote returns the raw asset entry removing a vote for the delegate key
func RemoveVote(delegateKey []byte) string {
	return string(OperationRemove) + hex.EncodeToString(delegateKey)
}
