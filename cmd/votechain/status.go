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

package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/blinklabs-io/votechain/database"
	"github.com/blinklabs-io/votechain/internal/config"
	"github.com/blinklabs-io/votechain/ledger"
	"github.com/spf13/cobra"
)

func statusCommand() *cobra.Command {
	var account, txID string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show committed ledger state from the database (the node must be stopped)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromContext(cmd.Context())
			if cfg == nil {
				return errors.New("no config found in context")
			}
			return statusRun(cmd.OutOrStdout(), cfg, account, txID)
		},
	}
	cmd.Flags().StringVar(&account, "account", "", "account address to show")
	cmd.Flags().StringVar(&txID, "tx", "", "transaction id to look up")
	return cmd
}

func statusRun(
	out io.Writer,
	cfg *config.Config,
	account string,
	txID string,
) error {
	if cfg.DatabasePath == "" {
		return errors.New("status requires a persistent databasePath")
	}
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	db, err := database.New(&database.Config{
		DataDir: cfg.DatabasePath,
		Logger:  logger,
	})
	if err != nil {
		if db != nil {
			_ = db.Close()
		}
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()
	ls, err := ledger.NewLedgerState(ledger.LedgerStateConfig{
		Database: db,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("loading ledger: %w", err)
	}
	tip := ls.Tip()
	fmt.Fprintf(out, "tip: height=%d id=%s\n", tip.Height, tip.ID)
	if account != "" {
		snap := ls.Snapshot(account)
		fmt.Fprintf(
			out,
			"account %s: balance=%d votes=[%s]\n",
			snap.Address,
			snap.Balance,
			strings.Join(snap.VoteList(), ","),
		)
	}
	if txID != "" {
		confirmed, err := ls.GetTransaction(txID)
		switch {
		case errors.Is(err, ledger.ErrTransactionNotFound):
			fmt.Fprintf(out, "transaction %s: not confirmed\n", txID)
		case err != nil:
			return err
		default:
			fmt.Fprintf(
				out,
				"transaction %s: confirmed in block %d (%s) at index %d\n",
				txID,
				confirmed.BlockHeight,
				confirmed.BlockID,
				confirmed.BlockIndex,
			)
		}
	}
	return nil
}
