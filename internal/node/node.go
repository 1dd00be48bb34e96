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
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/blinklabs-io/votechain"
	"github.com/blinklabs-io/votechain/internal/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NodeOptions builds the node options described by the config
func NodeOptions(
	cfg *config.Config,
	logger *slog.Logger,
	registry prometheus.Registerer,
) ([]votechain.ConfigOptionFunc, error) {
	durations, err := cfg.ParseDurations()
	if err != nil {
		return nil, err
	}
	return []votechain.ConfigOptionFunc{
		votechain.WithLogger(logger),
		votechain.WithDatabasePath(cfg.DatabasePath),
		votechain.WithGenesisFile(cfg.GenesisFile),
		votechain.WithVoteFee(cfg.VoteFee),
		votechain.WithMaxVotesPerAccount(cfg.MaxVotesPerAccount),
		votechain.WithMaxVotesPerTransaction(cfg.MaxVotesPerTransaction),
		votechain.WithEnforceVoteLimit(cfg.EnforceVoteLimit),
		votechain.WithEnforceEntryConflicts(cfg.EnforceEntryConflicts),
		votechain.WithMempoolCapacity(cfg.MempoolCapacity),
		votechain.WithMempoolTxTimeout(durations.MempoolTx),
		votechain.WithBlockInterval(durations.BlockInterval),
		votechain.WithMaxTransactionsPerBlock(cfg.MaxTransactionsPerBlock),
		votechain.WithForgeEmptyBlocks(cfg.ForgeEmptyBlocks),
		votechain.WithForging(!cfg.DisableForging),
		votechain.WithStatusCacheSize(cfg.StatusCacheSize),
		votechain.WithTracing(cfg.Tracing),
		votechain.WithTracingStdout(cfg.TracingStdout),
		votechain.WithShutdownTimeout(durations.Shutdown),
		votechain.WithPrometheusRegistry(registry),
	}, nil
}

func Run(cfg *config.Config, logger *slog.Logger) error {
	logger.Debug(fmt.Sprintf("config: %+v", cfg), "component", "node")
	opts, err := NodeOptions(cfg, logger, prometheus.DefaultRegisterer)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	durations, _ := cfg.ParseDurations()
	shutdownTimeout := durations.Shutdown
	if shutdownTimeout <= 0 {
		shutdownTimeout = 30 * time.Second
	}
	n, err := votechain.New(votechain.NewConfig(opts...))
	if err != nil {
		return err
	}
	// Metrics listener
	metricsAddr := net.JoinHostPort(
		cfg.BindAddr,
		strconv.FormatUint(uint64(cfg.MetricsPort), 10),
	)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{
		Addr:              metricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 60 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	metricsErrCh := make(chan error, 1)
	if cfg.MetricsPort > 0 {
		logger.Info(
			"serving prometheus metrics on "+metricsAddr,
			"component", "node",
		)
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil &&
				!errors.Is(err, http.ErrServerClosed) {
				metricsErrCh <- fmt.Errorf("failed to start metrics listener: %w", err)
			}
		}()
	}
	shutdownMetrics := func() {
		if cfg.MetricsPort == 0 {
			return
		}
		shutdownCtx, cancel := context.WithTimeout(
			context.Background(),
			shutdownTimeout,
		)
		defer cancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics server shutdown error", "error", err)
		}
	}

	// Wait for interrupt/termination signal
	signalCtx, signalCtxStop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer signalCtxStop()

	// Run node in goroutine
	errChan := make(chan error, 1)
	go func() {
		errChan <- n.Run(signalCtx)
	}()

	select {
	case <-signalCtx.Done():
		logger.Info("signal received, initiating graceful shutdown")
		shutdownMetrics()
		if err := n.Stop(); err != nil {
			logger.Error("shutdown errors occurred", "error", err)
			return err
		}
		logger.Info("shutdown complete")
		return nil

	case err := <-metricsErrCh:
		logger.Error("metrics listener error", "error", err)
		if stopErr := n.Stop(); stopErr != nil {
			logger.Error(
				"shutdown errors occurred during error cleanup",
				"error",
				stopErr,
			)
		}
		return err

	case err := <-errChan:
		shutdownMetrics()
		if stopErr := n.Stop(); stopErr != nil {
			logger.Error("shutdown errors occurred", "error", stopErr)
			err = errors.Join(err, stopErr)
		}
		if err != nil {
			logger.Error("node error", "error", err)
			return err
		}
		logger.Info("node stopped")
		return nil
	}
}
