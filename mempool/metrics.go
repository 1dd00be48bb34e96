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

package mempool

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type mempoolMetrics struct {
	txsProcessedNum prometheus.Counter
	txsInMempool    prometheus.Gauge
	mempoolBytes    prometheus.Gauge
	txsRejected     *prometheus.CounterVec
	txsRemoved      *prometheus.CounterVec
}

func (m *mempoolMetrics) init(promRegistry prometheus.Registerer) {
	promautoFactory := promauto.With(promRegistry)
	m.txsProcessedNum = promautoFactory.NewCounter(
		prometheus.CounterOpts{
			Name: "votechain_mempool_txs_processed_total",
			Help: "total transactions admitted to the mempool",
		},
	)
	m.txsInMempool = promautoFactory.NewGauge(prometheus.GaugeOpts{
		Name: "votechain_mempool_txs",
		Help: "current count of mempool transactions",
	})
	m.mempoolBytes = promautoFactory.NewGauge(prometheus.GaugeOpts{
		Name: "votechain_mempool_bytes",
		Help: "current size of mempool transactions in bytes",
	})
	m.txsRejected = promautoFactory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "votechain_mempool_txs_rejected_total",
			Help: "total submissions refused, by rejection code",
		},
		[]string{"code"},
	)
	m.txsRemoved = promautoFactory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "votechain_mempool_txs_removed_total",
			Help: "total transactions removed from the mempool, by reason",
		},
		[]string{"reason"},
	)
}
