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

package node

import (
	"io"
	"log/slog"
	"testing"

	"github.com/blinklabs-io/votechain"
	"github.com/blinklabs-io/votechain/internal/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNodeOptions_Defaults(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.DatabasePath = ""
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	opts, err := NodeOptions(cfg, logger, prometheus.NewRegistry())
	require.NoError(t, err)
	n, err := votechain.New(votechain.NewConfig(opts...))
	require.NoError(t, err)
	assert.NotEmpty(t, n.ID())
	require.NoError(t, n.Stop())
}

func TestNodeOptions_InvalidValues(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	cfg := config.DefaultConfig()
	cfg.BlockInterval = "whenever"
	_, err := NodeOptions(cfg, logger, nil)
	require.Error(t, err)

	cfg = config.DefaultConfig()
	cfg.VoteFee = 0
	opts, err := NodeOptions(cfg, logger, nil)
	require.NoError(t, err)
	_, err = votechain.New(votechain.NewConfig(opts...))
	require.Error(t, err)
}
