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

package votechain

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/blinklabs-io/votechain/ledger"
	"github.com/blinklabs-io/votechain/mempool"
	"github.com/blinklabs-io/votechain/tracker"
	"github.com/blinklabs-io/votechain/vote"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func testKey(n byte) ed25519.PrivateKey {
	return ed25519.NewKeyFromSeed(bytes.Repeat([]byte{n}, ed25519.SeedSize))
}

func testPubKey(n byte) []byte {
	return testKey(n).Public().(ed25519.PublicKey)
}

func writeGenesis(t *testing.T, balances map[byte]uint64) string {
	t.Helper()
	var buf bytes.Buffer
	buf.WriteString("accounts:\n")
	for n, balance := range balances {
		fmt.Fprintf(
			&buf,
			"  - publicKey: %s\n    balance: %d\n",
			vote.PublicKeyHex(testPubKey(n)),
			balance,
		)
	}
	path := filepath.Join(t.TempDir(), "genesis.yaml")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
	return path
}

// startNode runs a node in the background and waits for it to become ready
func startNode(t *testing.T, opts ...ConfigOptionFunc) (*Node, <-chan error) {
	t.Helper()
	opts = append(
		[]ConfigOptionFunc{WithPrometheusRegistry(prometheus.NewRegistry())},
		opts...,
	)
	n, err := New(NewConfig(opts...))
	require.NoError(t, err)
	errCh := make(chan error, 1)
	go func() {
		errCh <- n.Run(context.Background())
	}()
	select {
	case <-n.Ready():
	case err := <-errCh:
		t.Fatalf("node exited during startup: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for node startup")
	}
	return n, errCh
}

func stopNode(t *testing.T, n *Node, errCh <-chan error) {
	t.Helper()
	require.NoError(t, n.Stop())
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for node to stop")
	}
}

func TestNewConfig_Defaults(t *testing.T) {
	cfg := NewConfig()
	assert.Equal(t, uint64(vote.DefaultVoteFee), cfg.validator.Fee)
	assert.Equal(t, vote.DefaultMaxVotesPerAccount, cfg.validator.MaxVotesPerAccount)
	assert.Equal(t, vote.DefaultMaxVotesPerTransaction, cfg.validator.MaxVotesPerTransaction)
	assert.True(t, cfg.validator.EnforceVoteLimit)
	assert.True(t, cfg.validator.EnforceEntryConflicts)
	assert.Equal(t, 10*time.Second, cfg.blockInterval)
	assert.Equal(t, 25, cfg.maxTransactionsPerBlock)
	assert.Equal(t, 3*time.Hour, cfg.mempoolTxTimeout)
	assert.NotNil(t, cfg.logger)
}

func TestNew_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		opt  ConfigOptionFunc
	}{
		{name: "zero fee", opt: WithVoteFee(0)},
		{name: "zero vote limit", opt: WithMaxVotesPerAccount(0)},
		{name: "zero per transaction limit", opt: WithMaxVotesPerTransaction(0)},
		{name: "negative capacity", opt: WithMempoolCapacity(-1)},
		{name: "negative interval", opt: WithBlockInterval(-time.Second)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(NewConfig(tt.opt))
			require.Error(t, err)
		})
	}
}

func TestNew_VoteLimitDisabled(t *testing.T) {
	_, err := New(NewConfig(
		WithEnforceVoteLimit(false),
		WithMaxVotesPerAccount(0),
	))
	require.NoError(t, err)
}

func TestNode_NotRunning(t *testing.T) {
	n, err := New(NewConfig())
	require.NoError(t, err)
	defer n.Stop() //nolint:errcheck
	tx := vote.NewTransaction(testKey(1), vote.DefaultVoteFee, 1, nil)
	_, err = n.Submit(context.Background(), tx)
	assert.ErrorIs(t, err, ErrNodeNotRunning)
	_, err = n.Status(tx.ID)
	assert.ErrorIs(t, err, ErrNodeNotRunning)
	assert.NotEmpty(t, n.ID())
}

func TestNode_VoteLifecycle(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	genesis := writeGenesis(t, map[byte]uint64{1: 3 * vote.DefaultVoteFee})
	n, errCh := startNode(t, WithGenesisFile(genesis), WithForging(false))
	ctx := context.Background()
	delegate := testPubKey(9)
	voter := vote.AddressFromPublicKey(testPubKey(1))

	// An unfunded account cannot vote
	broke := vote.NewTransaction(testKey(2), vote.DefaultVoteFee, 1, []string{vote.AddVote(delegate)})
	_, err := n.Submit(ctx, broke)
	require.Error(t, err)
	assert.Equal(
		t,
		"Account does not have enough LSK: "+broke.SenderAddress+" balance: 0",
		err.Error(),
	)
	status, err := n.Status(broke.ID)
	require.NoError(t, err)
	assert.Equal(t, tracker.StateRejected, status.State)

	voteTx := vote.NewTransaction(testKey(1), vote.DefaultVoteFee, 2, []string{vote.AddVote(delegate)})
	receipt, err := n.Submit(ctx, voteTx)
	require.NoError(t, err)
	assert.Equal(t, voteTx.ID, receipt.ID)

	again := vote.NewTransaction(testKey(1), vote.DefaultVoteFee, 3, []string{vote.AddVote(delegate)})
	_, err = n.Submit(ctx, again)
	assert.ErrorIs(t, err, vote.ErrDuplicateVote)

	status, err = n.Status(voteTx.ID)
	require.NoError(t, err)
	assert.Equal(t, tracker.StatePending, status.State)

	batch, err := n.ForgeBlock(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{voteTx.ID}, batch.AppliedIDs())
	status, err = n.Status(voteTx.ID)
	require.NoError(t, err)
	assert.Equal(t, tracker.StateConfirmed, status.State)
	assert.Equal(t, batch.Block.ID, status.Block.ID)

	// A confirmed transaction cannot be replayed, and a refused one stays refused
	_, err = n.Submit(ctx, voteTx)
	assert.ErrorIs(t, err, ledger.ErrTransactionIncluded)
	_, err = n.Submit(ctx, broke)
	assert.ErrorIs(t, err, mempool.ErrTxFinalized)
	status, err = n.Status(voteTx.ID)
	require.NoError(t, err)
	assert.Equal(t, tracker.StateConfirmed, status.State)
	status, err = n.Status(broke.ID)
	require.NoError(t, err)
	assert.Equal(t, tracker.StateRejected, status.State)

	unvote := vote.NewTransaction(testKey(1), vote.DefaultVoteFee, 4, []string{vote.RemoveVote(delegate)})
	_, err = n.Submit(ctx, unvote)
	require.NoError(t, err)
	_, err = n.ForgeBlock(ctx)
	require.NoError(t, err)

	unvoteAgain := vote.NewTransaction(testKey(1), vote.DefaultVoteFee, 5, []string{vote.RemoveVote(delegate)})
	_, err = n.Submit(ctx, unvoteAgain)
	assert.ErrorIs(t, err, vote.ErrMissingVote)

	account, err := n.Account(voter)
	require.NoError(t, err)
	assert.Empty(t, account.Votes)
	assert.Equal(t, uint64(vote.DefaultVoteFee), account.Balance)
	tip, err := n.Tip()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), tip.Height)

	stopNode(t, n, errCh)
	_, err = n.Submit(ctx, unvoteAgain)
	assert.ErrorIs(t, err, ErrNodeNotRunning)
}

func TestNode_IntervalForging(t *testing.T) {
	n, errCh := startNode(t, WithBlockInterval(10*time.Millisecond))
	ctx := context.Background()
	voter := vote.AddressFromPublicKey(testPubKey(1))
	require.NoError(t, n.Credit(ctx, voter, vote.DefaultVoteFee))

	tx := vote.NewTransaction(testKey(1), vote.DefaultVoteFee, 1, []string{vote.AddVote(testPubKey(9))})
	_, err := n.Submit(ctx, tx)
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	status, err := n.WaitForConfirmation(waitCtx, tx.ID, 5*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, tracker.StateConfirmed, status.State)
	stopNode(t, n, errCh)
}

func TestNode_PersistsAcrossRestart(t *testing.T) {
	dataDir := t.TempDir()
	genesis := writeGenesis(t, map[byte]uint64{1: 2 * vote.DefaultVoteFee})
	ctx := context.Background()

	n, errCh := startNode(
		t,
		WithDatabasePath(dataDir),
		WithGenesisFile(genesis),
		WithForging(false),
	)
	tx := vote.NewTransaction(testKey(1), vote.DefaultVoteFee, 1, []string{vote.AddVote(testPubKey(9))})
	_, err := n.Submit(ctx, tx)
	require.NoError(t, err)
	_, err = n.ForgeBlock(ctx)
	require.NoError(t, err)
	stopNode(t, n, errCh)

	// Genesis is skipped for a ledger that already holds state
	n, errCh = startNode(
		t,
		WithDatabasePath(dataDir),
		WithGenesisFile(genesis),
		WithForging(false),
	)
	account, err := n.Account(tx.SenderAddress)
	require.NoError(t, err)
	assert.Equal(t, uint64(vote.DefaultVoteFee), account.Balance)
	assert.True(t, account.HasVote(vote.PublicKeyHex(testPubKey(9))))
	status, err := n.Status(tx.ID)
	require.NoError(t, err)
	assert.Equal(t, tracker.StateConfirmed, status.State)
	assert.Equal(t, uint64(1), status.Block.Height)
	stopNode(t, n, errCh)
}

func TestNode_RunStopsWithContext(t *testing.T) {
	n, err := New(NewConfig(WithPrometheusRegistry(prometheus.NewRegistry())))
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- n.Run(ctx)
	}()
	<-n.Ready()
	cancel()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for node to stop")
	}
}
