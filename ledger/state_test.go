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

package ledger_test

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/blinklabs-io/votechain/database"
	"github.com/blinklabs-io/votechain/database/models"
	"github.com/blinklabs-io/votechain/event"
	"github.com/blinklabs-io/votechain/ledger"
	"github.com/blinklabs-io/votechain/vote"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testFee uint64 = vote.DefaultVoteFee

func testKey(n byte) ed25519.PrivateKey {
	return ed25519.NewKeyFromSeed(bytes.Repeat([]byte{n}, ed25519.SeedSize))
}

func testAddress(n byte) string {
	return vote.AddressFromPublicKey(testKey(n).Public().(ed25519.PublicKey))
}

func testDelegate(n byte) string {
	return vote.PublicKeyHex(testKey(n).Public().(ed25519.PublicKey))
}

func newVoteTx(n byte, timestamp uint32, votes ...string) *vote.Transaction {
	return vote.NewTransaction(testKey(n), testFee, timestamp, votes)
}

func newTestLedger(t *testing.T, dataDir string, bus *event.EventBus) (*ledger.LedgerState, *database.Database) {
	t.Helper()
	db, err := database.New(&database.Config{DataDir: dataDir})
	require.NoError(t, err)
	ls, err := ledger.NewLedgerState(ledger.LedgerStateConfig{
		Database:     db,
		EventBus:     bus,
		PromRegistry: prometheus.NewRegistry(),
	})
	require.NoError(t, err)
	return ls, db
}

func TestSnapshotUnknownAccount(t *testing.T) {
	ls, db := newTestLedger(t, "", nil)
	defer db.Close()

	snap := ls.Snapshot("123L")
	assert.Equal(t, "123L", snap.Address)
	assert.Equal(t, uint64(0), snap.Balance)
	assert.Empty(t, snap.Votes)
}

func TestSnapshotIsValueCopy(t *testing.T) {
	ls, db := newTestLedger(t, "", nil)
	defer db.Close()
	addr := testAddress(1)
	require.NoError(t, ls.Credit(context.Background(), addr, 5*testFee))

	snap := ls.Snapshot(addr)
	snap.Balance = 0
	snap.Votes[testDelegate(9)] = struct{}{}

	again := ls.Snapshot(addr)
	assert.Equal(t, 5*testFee, again.Balance)
	assert.Empty(t, again.Votes)
}

func TestApplyBlockRoundTrip(t *testing.T) {
	bus := event.NewEventBus(nil, nil)
	defer bus.Stop()
	_, evtCh := bus.Subscribe(ledger.BlockAppliedEventType)
	ls, db := newTestLedger(t, "", bus)
	defer db.Close()
	ctx := context.Background()
	sender := testAddress(1)
	bystander := testAddress(2)
	require.NoError(t, ls.Credit(ctx, sender, 3*testFee))
	require.NoError(t, ls.Credit(ctx, bystander, 7*testFee))
	before := ls.Snapshot(bystander)
	version := ls.Version()

	tx := newVoteTx(1, 10, vote.AddVote(testKey(9).Public().(ed25519.PublicKey)))
	require.NoError(t, ls.Validator().Validate(tx, ls.Snapshot(sender)))
	batch, err := ls.ApplyBlock(ctx, []*vote.Transaction{tx})
	require.NoError(t, err)
	require.Len(t, batch.Applied, 1)
	assert.Empty(t, batch.Superseded)
	assert.Equal(t, uint64(1), batch.Block.Height)
	assert.Equal(t, []string{tx.ID}, batch.AppliedIDs())

	after := ls.Snapshot(sender)
	assert.Equal(t, 2*testFee, after.Balance)
	assert.Equal(t, []string{testDelegate(9)}, after.VoteList())
	assert.Equal(t, tx.SenderPublicKey, after.PublicKey)
	assert.Equal(t, before, ls.Snapshot(bystander))
	assert.Greater(t, ls.Version(), version)
	assert.Equal(t, batch.Block, ls.Tip())

	// Committed state is mirrored to the database
	record, err := db.GetAccount(sender, nil)
	require.NoError(t, err)
	assert.Equal(t, 2*testFee, record.Balance)
	assert.Equal(t, []string{testDelegate(9)}, record.Votes)

	confirmed, err := ls.GetTransaction(tx.ID)
	require.NoError(t, err)
	assert.Equal(t, batch.Block.ID, confirmed.BlockID)
	assert.Equal(t, tx.Votes, confirmed.Tx.Votes)
	assert.Equal(t, tx.Signature, confirmed.Tx.Signature)
	assert.Equal(t, tx.ID, confirmed.Tx.ID)

	select {
	case evt := <-evtCh:
		data, ok := evt.Data.(ledger.BlockAppliedEvent)
		require.True(t, ok)
		assert.Equal(t, batch, data.Batch)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for block applied event")
	}
}

func TestApplyBlockSequentialRevalidation(t *testing.T) {
	ls, db := newTestLedger(t, "", nil)
	defer db.Close()
	ctx := context.Background()
	sender := testAddress(1)
	require.NoError(t, ls.Credit(ctx, sender, testFee))

	first := newVoteTx(1, 10, vote.AddVote(testKey(8).Public().(ed25519.PublicKey)))
	second := newVoteTx(1, 11, vote.AddVote(testKey(9).Public().(ed25519.PublicKey)))
	batch, err := ls.ApplyBlock(ctx, []*vote.Transaction{first, second})
	require.NoError(t, err)
	require.Len(t, batch.Applied, 1)
	require.Len(t, batch.Superseded, 1)
	assert.Equal(t, first.ID, batch.Applied[0].ID)
	superseded := batch.Superseded[0]
	assert.Equal(t, second.ID, superseded.Tx.ID)
	assert.Equal(t, vote.CodeSuperseded, superseded.Err.Code)
	assert.ErrorIs(t, superseded.Err, vote.ErrInsufficientFunds)
	assert.Equal(
		t,
		"Transaction superseded at apply time: Account does not have enough LSK: "+sender+" balance: 0",
		superseded.Err.Error(),
	)

	snap := ls.Snapshot(sender)
	assert.Equal(t, uint64(0), snap.Balance)
	assert.Equal(t, []string{testDelegate(8)}, snap.VoteList())

	_, err = ls.GetTransaction(second.ID)
	assert.ErrorIs(t, err, ledger.ErrTransactionNotFound)
}

func TestApplyBlockAddThenRemove(t *testing.T) {
	ls, db := newTestLedger(t, "", nil)
	defer db.Close()
	ctx := context.Background()
	sender := testAddress(1)
	require.NoError(t, ls.Credit(ctx, sender, 5*testFee))
	delegate := testKey(9).Public().(ed25519.PublicKey)

	add := newVoteTx(1, 10, vote.AddVote(delegate))
	remove := newVoteTx(1, 11, vote.RemoveVote(delegate))
	again := newVoteTx(1, 12, vote.RemoveVote(delegate))
	batch, err := ls.ApplyBlock(ctx, []*vote.Transaction{add, remove, again})
	require.NoError(t, err)
	assert.Equal(t, []string{add.ID, remove.ID}, batch.AppliedIDs())
	require.Len(t, batch.Superseded, 1)
	assert.ErrorIs(t, batch.Superseded[0].Err, vote.ErrMissingVote)

	snap := ls.Snapshot(sender)
	assert.Equal(t, 3*testFee, snap.Balance)
	assert.Empty(t, snap.Votes)
}

func TestApplyBlockRejectsRepeatedTransaction(t *testing.T) {
	ls, db := newTestLedger(t, "", nil)
	defer db.Close()
	ctx := context.Background()
	require.NoError(t, ls.Credit(ctx, testAddress(1), 5*testFee))

	tx := newVoteTx(1, 10)
	batch, err := ls.ApplyBlock(ctx, []*vote.Transaction{tx, tx})
	require.NoError(t, err)
	assert.Len(t, batch.Applied, 1)
	require.Len(t, batch.Superseded, 1)
	assert.ErrorIs(t, batch.Superseded[0].Err, ledger.ErrTransactionIncluded)

	// Already confirmed in an earlier block
	batch, err = ls.ApplyBlock(ctx, []*vote.Transaction{tx})
	require.NoError(t, err)
	assert.Empty(t, batch.Applied)
	require.Len(t, batch.Superseded, 1)
	assert.ErrorIs(t, batch.Superseded[0].Err, ledger.ErrTransactionIncluded)
	assert.Equal(t, 4*testFee, ls.Snapshot(testAddress(1)).Balance)
}

func TestApplyBlockCommitFailureLeavesStateUnchanged(t *testing.T) {
	ls, db := newTestLedger(t, "", nil)
	defer db.Close()
	ctx := context.Background()
	sender := testAddress(1)
	require.NoError(t, ls.Credit(ctx, sender, 3*testFee))
	before := ls.Snapshot(sender)
	version := ls.Version()

	// A block row at the next height makes the commit fail
	require.NoError(t, db.SetBlock(&models.Block{BlockID: "1", Height: 1}, nil))

	tx := newVoteTx(1, 10, vote.AddVote(testKey(9).Public().(ed25519.PublicKey)))
	batch, err := ls.ApplyBlock(ctx, []*vote.Transaction{tx})
	require.Error(t, err)
	assert.Nil(t, batch)

	assert.Equal(t, before, ls.Snapshot(sender))
	assert.Equal(t, version, ls.Version())
	assert.Equal(t, uint64(0), ls.Tip().Height)
	record, err := db.GetAccount(sender, nil)
	require.NoError(t, err)
	assert.Equal(t, 3*testFee, record.Balance)
	assert.Empty(t, record.Votes)
	_, err = db.GetTransaction(tx.ID, nil)
	assert.ErrorIs(t, err, models.ErrTransactionNotFound)
}

func TestLedgerReloadsCommittedState(t *testing.T) {
	dataDir := t.TempDir()
	ctx := context.Background()
	ls, db := newTestLedger(t, dataDir, nil)
	sender := testAddress(1)
	require.NoError(t, ls.Credit(ctx, sender, 2*testFee))
	tx := newVoteTx(1, 10, vote.AddVote(testKey(9).Public().(ed25519.PublicKey)))
	batch, err := ls.ApplyBlock(ctx, []*vote.Transaction{tx})
	require.NoError(t, err)
	require.NoError(t, db.Close())

	ls, db = newTestLedger(t, dataDir, nil)
	defer db.Close()
	snap := ls.Snapshot(sender)
	assert.Equal(t, testFee, snap.Balance)
	assert.Equal(t, []string{testDelegate(9)}, snap.VoteList())
	assert.Equal(t, batch.Block.ID, ls.Tip().ID)
	assert.Equal(t, batch.Block.Height, ls.Tip().Height)
}

func TestLedgerVersionSurvivesRestart(t *testing.T) {
	dataDir := t.TempDir()
	ctx := context.Background()
	ls, db := newTestLedger(t, dataDir, nil)
	sender := testAddress(1)
	require.NoError(t, ls.Credit(ctx, sender, testFee))
	require.NoError(t, ls.Credit(ctx, sender, testFee))
	tx := newVoteTx(1, 10, vote.AddVote(testKey(9).Public().(ed25519.PublicKey)))
	_, err := ls.ApplyBlock(ctx, []*vote.Transaction{tx})
	require.NoError(t, err)
	version := ls.Version()
	// Two credits and one block
	assert.Equal(t, uint64(3), version)
	assert.Equal(t, uint64(1), ls.Tip().Height)
	require.NoError(t, db.Close())

	ls, db = newTestLedger(t, dataDir, nil)
	assert.Equal(t, version, ls.Version())
	require.NoError(t, ls.Credit(ctx, testAddress(2), testFee))
	assert.Equal(t, version+1, ls.Version())
	require.NoError(t, db.Close())

	ls, db = newTestLedger(t, dataDir, nil)
	defer db.Close()
	assert.Equal(t, version+1, ls.Version())
}

func TestLoadGenesis(t *testing.T) {
	ls, db := newTestLedger(t, "", nil)
	defer db.Close()
	pubKey := testKey(1).Public().(ed25519.PublicKey)
	genesisPath := filepath.Join(t.TempDir(), "genesis.yaml")
	genesisData := "accounts:\n" +
		"  - publicKey: " + vote.PublicKeyHex(pubKey) + "\n" +
		"    balance: 300000000\n" +
		"    votes:\n" +
		"      - " + testDelegate(9) + "\n" +
		"  - address: 42L\n" +
		"    balance: 5\n"
	require.NoError(t, os.WriteFile(genesisPath, []byte(genesisData), 0o600))

	require.NoError(t, ls.LoadGenesis(context.Background(), genesisPath))
	snap := ls.Snapshot(testAddress(1))
	assert.Equal(t, uint64(300000000), snap.Balance)
	assert.Equal(t, []byte(pubKey), snap.PublicKey)
	assert.Equal(t, []string{testDelegate(9)}, snap.VoteList())
	assert.Equal(t, uint64(5), ls.Snapshot("42L").Balance)

	err := ls.LoadGenesis(context.Background(), genesisPath)
	assert.ErrorIs(t, err, ledger.ErrLedgerNotEmpty)
}

func TestParseGenesisErrors(t *testing.T) {
	testDefs := []struct {
		name string
		data string
	}{
		{name: "missing address", data: "accounts:\n  - balance: 1\n"},
		{name: "bad public key", data: "accounts:\n  - publicKey: zz\n"},
		{name: "address mismatch", data: "accounts:\n  - address: 1L\n    publicKey: " + testDelegate(1) + "\n"},
		{name: "duplicate address", data: "accounts:\n  - address: 1L\n  - address: 1L\n"},
		{name: "bad vote", data: "accounts:\n  - address: 1L\n    votes: [abc]\n"},
		{name: "bad yaml", data: "accounts: {"},
	}
	for _, testDef := range testDefs {
		t.Run(testDef.name, func(t *testing.T) {
			_, err := ledger.ParseGenesis([]byte(testDef.data))
			assert.Error(t, err)
		})
	}
}
