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

// Package forging closes blocks on a fixed interval.
//
// # Block Production
//
// Each tick the forger drains up to MaxTransactionsPerBlock pooled
// transactions, in admission order, through the ledger's block applier.
// The mempool removes whatever the ledger committed or superseded and
// revalidates the senders involved, so a forged block never needs a separate
// reconciliation step. Observers learn about new blocks from
// event.BlockForgedEvent, published after the ledger has committed.
package forging

import "github.com/blinklabs-io/votechain/event"

// ForgeFailedEventType is the event type for block attempts that did not commit
const ForgeFailedEventType = event.EventType("forging.failed")

// ForgeFailedEvent is emitted when the ledger refuses or fails to commit a
// block. The pooled transactions are left in place for the next attempt.
type ForgeFailedEvent struct {
	Err error
	// PendingCount is the number of pooled transactions at the time
	PendingCount int
}
