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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type stateMetrics struct {
	blockHeight      prometheus.Gauge
	accounts         prometheus.Gauge
	txsApplied       prometheus.Counter
	txsSuperseded    prometheus.Counter
	blockApplyFailed prometheus.Counter
	blockApplyTime   prometheus.Histogram
}

func (m *stateMetrics) init(promRegistry prometheus.Registerer) {
	promautoFactory := promauto.With(promRegistry)
	m.blockHeight = promautoFactory.NewGauge(prometheus.GaugeOpts{
		Name: "votechain_ledger_block_height",
		Help: "height of the last committed block",
	})
	m.accounts = promautoFactory.NewGauge(prometheus.GaugeOpts{
		Name: "votechain_ledger_accounts",
		Help: "number of accounts in committed state",
	})
	m.txsApplied = promautoFactory.NewCounter(prometheus.CounterOpts{
		Name: "votechain_ledger_txs_applied_total",
		Help: "total transactions committed in blocks",
	})
	m.txsSuperseded = promautoFactory.NewCounter(prometheus.CounterOpts{
		Name: "votechain_ledger_txs_superseded_total",
		Help: "total transactions excluded from blocks at apply time",
	})
	m.blockApplyFailed = promautoFactory.NewCounter(prometheus.CounterOpts{
		Name: "votechain_ledger_block_apply_failures_total",
		Help: "total block applications rolled back",
	})
	m.blockApplyTime = promautoFactory.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "votechain_ledger_block_apply_seconds",
			Help:    "time taken to revalidate and commit a block",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		},
	)
}
