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

package event

import "time"

// BlockForgedEventType is the event type for locally forged blocks
const BlockForgedEventType = EventType("block.forged")

// BlockForgedEvent is emitted after a block has been committed to the ledger
type BlockForgedEvent struct {
	Timestamp time.Time
	// BlockID is the id of the forged block
	BlockID string
	// Height is the block height in the chain
	Height uint64
	// TxCount is the number of transactions included in the block
	TxCount int
	// SupersededCount is the number of pooled transactions dropped at apply time
	SupersededCount int
}
