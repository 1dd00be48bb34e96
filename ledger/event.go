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

package ledger

import (
	"github.com/blinklabs-io/votechain/event"
)

const (
	BlockAppliedEventType    event.EventType = "ledger.block_applied"
	AccountCreditedEventType event.EventType = "ledger.account_credited"
)

// BlockAppliedEvent is emitted after a block has been committed
type BlockAppliedEvent struct {
	Batch *AppliedBatch
}

// AccountCreditedEvent is emitted when funds are added outside of a block
type AccountCreditedEvent struct {
	Address string
	Amount  uint64
	Balance uint64
}
