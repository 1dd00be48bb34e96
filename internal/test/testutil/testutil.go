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

// Package testutil provides shared helpers for votechain tests: deterministic
// keys, an in-memory ledger and channel synchronization.
package testutil

import (
	"bytes"
	"crypto/ed25519"
	"testing"
	"time"

	"github.com/blinklabs-io/votechain/database"
	"github.com/blinklabs-io/votechain/event"
	"github.com/blinklabs-io/votechain/ledger"
	"github.com/blinklabs-io/votechain/vote"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

// Key returns a deterministic ed25519 key derived from n
func Key(n byte) ed25519.PrivateKey {
	return ed25519.NewKeyFromSeed(bytes.Repeat([]byte{n}, ed25519.SeedSize))
}

// PublicKey returns the public half of Key(n)
func PublicKey(n byte) ed25519.PublicKey {
	return Key(n).Public().(ed25519.PublicKey)
}

// Address returns the account address owned by Key(n)
func Address(n byte) string {
	return vote.AddressFromPublicKey(PublicKey(n))
}

// VoteTx builds a signed vote transaction from Key(n) with the default fee
func VoteTx(n byte, timestamp uint32, votes ...string) *vote.Transaction {
	return vote.NewTransaction(Key(n), vote.DefaultVoteFee, timestamp, votes)
}

// Ledger bundles an in-memory ledger with its database and event bus
type Ledger struct {
	DB    *database.Database
	Bus   *event.EventBus
	State *ledger.LedgerState
}

// NewLedger opens an in-memory ledger that is closed when the test ends
func NewLedger(t *testing.T) *Ledger {
	t.Helper()
	db, err := database.New(&database.Config{})
	require.NoError(t, err)
	bus := event.NewEventBus(nil, nil)
	ls, err := ledger.NewLedgerState(ledger.LedgerStateConfig{
		Database:     db,
		EventBus:     bus,
		PromRegistry: prometheus.NewRegistry(),
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		bus.Stop()
		_ = db.Close()
	})
	return &Ledger{DB: db, Bus: bus, State: ls}
}

// RequireReceive waits for a value on the given channel or fails the test
// if the timeout expires.
func RequireReceive[T any](
	t *testing.T,
	ch <-chan T,
	timeout time.Duration,
	msg string,
) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(timeout):
		t.Fatalf("timeout waiting for channel receive: %s", msg)
		var zero T
		return zero // unreachable
	}
}

// RequireNoReceive verifies that no value is received on the given channel
// within the specified duration.
func RequireNoReceive[T any](
	t *testing.T,
	ch <-chan T,
	duration time.Duration,
	msg string,
) {
	t.Helper()
	select {
	case v := <-ch:
		t.Fatalf(
			"unexpected value received on channel: %v: %s",
			v,
			msg,
		)
	case <-time.After(duration):
		// Expected: nothing received
	}
}
