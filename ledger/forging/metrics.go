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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type forgingMetrics struct {
	blocksForged   prometheus.Counter
	forgeSkipped   prometheus.Counter
	forgeFailed    prometheus.Counter
	txsSuperseded  prometheus.Counter
	blockTxCount   prometheus.Histogram
	forgeLatency   prometheus.Histogram
	lastForgedTime prometheus.Gauge
}

func initForgingMetrics(
	reg prometheus.Registerer,
) *forgingMetrics {
	factory := promauto.With(reg)
	m := &forgingMetrics{}
	m.blocksForged = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "votechain_forging_blocks_forged_total",
			Help: "blocks committed by this node",
		},
	)
	m.forgeSkipped = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "votechain_forging_skipped_total",
			Help: "block intervals skipped because the mempool was empty",
		},
	)
	m.forgeFailed = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "votechain_forging_failed_total",
			Help: "block attempts that failed to commit",
		},
	)
	m.txsSuperseded = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "votechain_forging_txs_superseded_total",
			Help: "pooled transactions dropped while forging",
		},
	)
	m.blockTxCount = factory.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "votechain_forging_block_tx_count",
			Help:    "number of transactions in forged blocks",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250},
		},
	)
	m.forgeLatency = factory.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "votechain_forging_latency_seconds",
			Help:    "time taken to forge and commit a block",
			Buckets: prometheus.DefBuckets,
		},
	)
	m.lastForgedTime = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "votechain_forging_last_forged_timestamp_seconds",
			Help: "unix time of the most recently forged block",
		},
	)
	return m
}
