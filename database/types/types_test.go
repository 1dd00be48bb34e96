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

package types_test

import (
	"testing"

	"github.com/blinklabs-io/votechain/database/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUint64ScanValue(t *testing.T) {
	orig := types.Uint64(18446744073709551615)
	val, err := orig.Value()
	require.NoError(t, err)
	assert.Equal(t, "18446744073709551615", val)

	var scanned types.Uint64
	require.NoError(t, scanned.Scan(val))
	assert.Equal(t, orig, scanned)

	require.NoError(t, scanned.Scan([]byte("42")))
	assert.Equal(t, types.Uint64(42), scanned)

	require.NoError(t, scanned.Scan(int64(5)))
	assert.Equal(t, types.Uint64(5), scanned)
	assert.Error(t, scanned.Scan(int64(-1)))
	assert.Error(t, scanned.Scan(1.5))
	assert.Error(t, scanned.Scan("not-a-number"))
}

func TestTransactionBlobKey(t *testing.T) {
	assert.Equal(t, []byte("tx_12345"), types.TransactionBlobKey("12345"))
}
