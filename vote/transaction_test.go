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

package vote_test

import (
	"slices"
	"strconv"
	"strings"
	"testing"

	"github.com/blinklabs-io/votechain/vote"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func formatUint(v uint64) string {
	return strconv.FormatUint(v, 10)
}

func sortedCopy(s []string) []string {
	ret := slices.Clone(s)
	slices.Sort(ret)
	return ret
}

func TestNewTransaction(t *testing.T) {
	delegate := vote.AddVote(testPubKey(9))
	tx := vote.NewTransaction(testKey(1), testFee, 42, []string{delegate})
	assert.Equal(t, vote.AddressFromPublicKey(testPubKey(1)), tx.SenderAddress)
	assert.Equal(t, tx.ComputeID(), tx.ID)
	assert.True(t, vote.Ed25519Verifier{}.VerifySignature(tx))
	_, err := strconv.ParseUint(tx.ID, 10, 64)
	require.NoError(t, err)

	// Same inputs produce the same id
	again := vote.NewTransaction(testKey(1), testFee, 42, []string{delegate})
	assert.Equal(t, tx.ID, again.ID)

	// Any change to the signed content changes the id
	later := vote.NewTransaction(testKey(1), testFee, 43, []string{delegate})
	assert.NotEqual(t, tx.ID, later.ID)
}

func TestAddressFromPublicKey(t *testing.T) {
	addr := vote.AddressFromPublicKey(testPubKey(1))
	require.True(t, strings.HasSuffix(addr, "L"))
	_, err := strconv.ParseUint(strings.TrimSuffix(addr, "L"), 10, 64)
	require.NoError(t, err)
	assert.NotEqual(t, addr, vote.AddressFromPublicKey(testPubKey(2)))
}

func TestEd25519Verifier_Rejects(t *testing.T) {
	tx := vote.NewTransaction(testKey(1), testFee, 1, nil)
	verifier := vote.Ed25519Verifier{}
	assert.False(t, verifier.VerifySignature(nil))

	short := *tx
	short.Signature = tx.Signature[:10]
	assert.False(t, verifier.VerifySignature(&short))

	wrongKey := *tx
	wrongKey.SenderPublicKey = testPubKey(2)
	assert.False(t, verifier.VerifySignature(&wrongKey))
}

func TestParseEntry(t *testing.T) {
	key := vote.PublicKeyHex(testPubKey(5))
	entry, err := vote.ParseEntry("+" + key)
	require.NoError(t, err)
	assert.Equal(t, vote.OperationAdd, entry.Operation)
	assert.Equal(t, key, entry.Delegate)
	assert.Equal(t, "+"+key, entry.String())

	entry, err = vote.ParseEntry("-" + key)
	require.NoError(t, err)
	assert.Equal(t, vote.OperationRemove, entry.Operation)
	assert.Equal(t, "remove", entry.Operation.String())

	_, err = vote.ParseEntries([]string{"+" + key, "?" + key})
	var entryErr *vote.EntryError
	require.ErrorAs(t, err, &entryErr)
	assert.Equal(t, 1, entryErr.Index)
}
