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

package forging

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/blinklabs-io/votechain/event"
	"github.com/blinklabs-io/votechain/internal/test/testutil"
	"github.com/blinklabs-io/votechain/ledger"
	"github.com/blinklabs-io/votechain/mempool"
	"github.com/blinklabs-io/votechain/vote"
	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type forgeHarness struct {
	ledger *ledger.LedgerState
	pool   *mempool.Mempool
	bus    *event.EventBus
}

func newForgeHarness(t *testing.T) *forgeHarness {
	t.Helper()
	tl := testutil.NewLedger(t)
	pool, err := mempool.NewMempool(mempool.MempoolConfig{
		Ledger:   tl.State,
		EventBus: tl.Bus,
	})
	require.NoError(t, err)
	t.Cleanup(pool.Stop)
	return &forgeHarness{ledger: tl.State, pool: pool, bus: tl.Bus}
}

func (h *forgeHarness) submitVotes(t *testing.T, sender byte, count int) {
	t.Helper()
	ctx := context.Background()
	require.NoError(
		t,
		h.ledger.Credit(ctx, testutil.Address(sender), uint64(count)*vote.DefaultVoteFee), //nolint:gosec
	)
	for i := range count {
		tx := testutil.VoteTx(
			sender,
			uint32(i), //nolint:gosec
			vote.AddVote(testutil.PublicKey(byte(200+i))),
		)
		_, err := h.pool.Submit(ctx, tx)
		require.NoError(t, err)
	}
}

// stubPool counts block attempts without touching a ledger
type stubPool struct {
	mu       sync.Mutex
	attempts int
	err      error
}

func (p *stubPool) ApplyBlock(
	context.Context,
	mempool.BlockApplier,
	int,
) (*ledger.AppliedBatch, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.attempts++
	if p.err != nil {
		return nil, p.err
	}
	return &ledger.AppliedBatch{
		Block: ledger.BlockRef{
			Height:    uint64(p.attempts), //nolint:gosec
			Timestamp: time.Now(),
		},
	}, nil
}

func (p *stubPool) Count() int {
	return 1
}

func (p *stubPool) Attempts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attempts
}

type stubApplier struct{}

func (stubApplier) ApplyBlock(
	context.Context,
	[]*vote.Transaction,
) (*ledger.AppliedBatch, error) {
	return &ledger.AppliedBatch{}, nil
}

func TestNewBlockForger_RequiresPoolAndLedger(t *testing.T) {
	_, err := NewBlockForger(ForgerConfig{Ledger: stubApplier{}})
	require.Error(t, err)
	_, err = NewBlockForger(ForgerConfig{Pool: &stubPool{}})
	require.Error(t, err)
}

func TestForgeBlock_SkipsEmptyPool(t *testing.T) {
	h := newForgeHarness(t)
	f, err := NewBlockForger(ForgerConfig{
		Pool:         h.pool,
		Ledger:       h.ledger,
		PromRegistry: prometheus.NewRegistry(),
	})
	require.NoError(t, err)

	batch, err := f.ForgeBlock(context.Background())
	require.NoError(t, err)
	assert.Nil(t, batch)
	assert.Equal(t, uint64(0), h.ledger.Tip().Height)
	assert.Equal(t, 1.0, promtestutil.ToFloat64(f.metrics.forgeSkipped))
}

func TestForgeBlock_EmptyBlocksEnabled(t *testing.T) {
	h := newForgeHarness(t)
	f, err := NewBlockForger(ForgerConfig{
		Pool:             h.pool,
		Ledger:           h.ledger,
		ForgeEmptyBlocks: true,
	})
	require.NoError(t, err)

	batch, err := f.ForgeBlock(context.Background())
	require.NoError(t, err)
	require.NotNil(t, batch)
	assert.Empty(t, batch.Applied)
	assert.Equal(t, uint64(1), batch.Block.Height)
	assert.Equal(t, batch.Block, h.ledger.Tip())
}

func TestForgeBlock_RespectsTransactionLimit(t *testing.T) {
	h := newForgeHarness(t)
	_, forgedCh := h.bus.Subscribe(event.BlockForgedEventType)
	f, err := NewBlockForger(ForgerConfig{
		Pool:                    h.pool,
		Ledger:                  h.ledger,
		EventBus:                h.bus,
		PromRegistry:            prometheus.NewRegistry(),
		MaxTransactionsPerBlock: 2,
	})
	require.NoError(t, err)
	h.submitVotes(t, 1, 3)

	batch, err := f.ForgeBlock(context.Background())
	require.NoError(t, err)
	assert.Len(t, batch.Applied, 2)
	assert.Equal(t, 1, h.pool.Count())

	evt := testutil.RequireReceive(t, forgedCh, time.Second, "forged event")
	data := evt.Data.(event.BlockForgedEvent)
	assert.Equal(t, batch.Block.ID, data.BlockID)
	assert.Equal(t, uint64(1), data.Height)
	assert.Equal(t, 2, data.TxCount)
	assert.Equal(t, 0, data.SupersededCount)

	batch, err = f.ForgeBlock(context.Background())
	require.NoError(t, err)
	assert.Len(t, batch.Applied, 1)
	assert.Equal(t, 0, h.pool.Count())
	assert.Equal(t, uint64(2), h.ledger.Tip().Height)
	assert.Equal(t, 2.0, promtestutil.ToFloat64(f.metrics.blocksForged))
}

func TestForgeBlock_FailurePublishesEvent(t *testing.T) {
	bus := event.NewEventBus(nil, nil)
	defer bus.Stop()
	_, failedCh := bus.Subscribe(ForgeFailedEventType)
	applyErr := errors.New("commit refused")
	f, err := NewBlockForger(ForgerConfig{
		Pool:     &stubPool{err: applyErr},
		Ledger:   stubApplier{},
		EventBus: bus,
	})
	require.NoError(t, err)

	_, err = f.ForgeBlock(context.Background())
	require.ErrorIs(t, err, applyErr)
	evt := testutil.RequireReceive(t, failedCh, time.Second, "failure event")
	data := evt.Data.(ForgeFailedEvent)
	assert.ErrorIs(t, data.Err, applyErr)
	assert.Equal(t, 1, data.PendingCount)
}

func TestBlockForger_StartStop(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	pool := &stubPool{}
	f, err := NewBlockForger(ForgerConfig{
		Pool:          pool,
		Ledger:        stubApplier{},
		BlockInterval: 5 * time.Millisecond,
	})
	require.NoError(t, err)

	require.NoError(t, f.Start(context.Background()))
	assert.True(t, f.IsRunning())
	require.Error(t, f.Start(context.Background()))
	require.Eventually(t, func() bool {
		return pool.Attempts() >= 3
	}, 2*time.Second, 5*time.Millisecond)

	f.Stop()
	assert.False(t, f.IsRunning())
	attempts := pool.Attempts()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, attempts, pool.Attempts())
	// Stopping twice is a no-op
	f.Stop()
}

func TestBlockForger_StopsWithContext(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	f, err := NewBlockForger(ForgerConfig{
		Pool:          &stubPool{},
		Ledger:        stubApplier{},
		BlockInterval: time.Hour,
	})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, f.Start(ctx))
	cancel()
	require.Eventually(t, func() bool {
		return !f.IsRunning()
	}, time.Second, 5*time.Millisecond)
	f.Stop()
}
