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

package models

import "errors"

var ErrBlockNotFound = errors.New("block not found")

type Block struct {
	BlockID    string `gorm:"uniqueIndex;size:20"`
	PreviousID string `gorm:"size:20"`
	ID         uint   `gorm:"primarykey"`
	Height     uint64 `gorm:"uniqueIndex"`
	Timestamp  int64
	TxCount    int
}

func (Block) TableName() string {
	return "block"
}
