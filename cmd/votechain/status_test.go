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

package main

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"testing"

	"github.com/blinklabs-io/votechain/database"
	"github.com/blinklabs-io/votechain/internal/config"
	"github.com/blinklabs-io/votechain/ledger"
	"github.com/blinklabs-io/votechain/vote"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusRun(t *testing.T) {
	dataDir := t.TempDir()
	priv := ed25519.NewKeyFromSeed(bytes.Repeat([]byte{1}, ed25519.SeedSize))
	delegate := ed25519.NewKeyFromSeed(bytes.Repeat([]byte{9}, ed25519.SeedSize)).
		Public().(ed25519.PublicKey)
	tx := vote.NewTransaction(priv, vote.DefaultVoteFee, 1, []string{vote.AddVote(delegate)})

	db, err := database.New(&database.Config{DataDir: dataDir})
	require.NoError(t, err)
	ls, err := ledger.NewLedgerState(ledger.LedgerStateConfig{Database: db})
	require.NoError(t, err)
	require.NoError(t, ls.Credit(context.Background(), tx.SenderAddress, 2*vote.DefaultVoteFee))
	_, err = ls.ApplyBlock(context.Background(), []*vote.Transaction{tx})
	require.NoError(t, err)
	require.NoError(t, db.Close())

	cfg := config.DefaultConfig()
	cfg.DatabasePath = dataDir
	var out bytes.Buffer
	require.NoError(t, statusRun(&out, cfg, tx.SenderAddress, tx.ID))
	assert.Contains(t, out.String(), "tip: height=1")
	assert.Contains(t, out.String(), "balance=100000000")
	assert.Contains(t, out.String(), vote.PublicKeyHex(delegate))
	assert.Contains(t, out.String(), "confirmed in block 1")

	out.Reset()
	require.NoError(t, statusRun(&out, cfg, "", "999"))
	assert.Contains(t, out.String(), "transaction 999: not confirmed")
}

func TestStatusRun_RequiresDatabasePath(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.DatabasePath = ""
	require.Error(t, statusRun(&bytes.Buffer{}, cfg, "", ""))
}
