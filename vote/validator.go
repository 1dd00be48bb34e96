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

package vote

import (
	"bytes"
	"errors"
)

const (
	DefaultVoteFee                = 100000000
	DefaultMaxVotesPerAccount     = 101
	DefaultMaxVotesPerTransaction = 33
)

type ValidatorConfig struct {
	Verifier               SignatureVerifier
	Fee                    uint64
	MaxVotesPerAccount     int
	MaxVotesPerTransaction int
	// EnforceVoteLimit enables the per-account cardinality bound
	EnforceVoteLimit bool
	// EnforceEntryConflicts rejects transactions naming a delegate more than once
	EnforceEntryConflicts bool
}

// DefaultValidatorConfig returns the network defaults with both hardening
// rules enabled
func DefaultValidatorConfig() ValidatorConfig {
	return ValidatorConfig{
		Verifier:               Ed25519Verifier{},
		Fee:                    DefaultVoteFee,
		MaxVotesPerAccount:     DefaultMaxVotesPerAccount,
		MaxVotesPerTransaction: DefaultMaxVotesPerTransaction,
		EnforceVoteLimit:       true,
		EnforceEntryConflicts:  true,
	}
}

// Validator applies the vote transaction rules to a transaction and a
// snapshot of its sender. It holds no state and never mutates its inputs.
type Validator struct {
	config ValidatorConfig
}

func NewValidator(cfg ValidatorConfig) *Validator {
	if cfg.Verifier == nil {
		cfg.Verifier = Ed25519Verifier{}
	}
	return &Validator{config: cfg}
}

// Fee returns the fee charged for each vote transaction
func (v *Validator) Fee() uint64 {
	return v.config.Fee
}

// Validate checks the transaction against the account snapshot. The checks
// run in a fixed order and stop at the first failure, which is returned as a
// *RejectionError.
func (v *Validator) Validate(tx *Transaction, account AccountSnapshot) error {
	if tx == nil {
		return newRejection(CodeSchemaViolation, "Missing transaction")
	}
	if err := v.checkAuthenticity(tx, account); err != nil {
		return err
	}
	entries, err := v.checkStructure(tx)
	if err != nil {
		return err
	}
	if account.Balance < v.config.Fee {
		return NewInsufficientFundsError(tx.SenderAddress, account.Balance)
	}
	if v.config.EnforceEntryConflicts {
		if err := checkEntryConflicts(entries); err != nil {
			return err
		}
	}
	count := len(account.Votes)
	for _, entry := range entries {
		switch entry.Operation {
		case OperationAdd:
			if account.HasVote(entry.Delegate) {
				return newRejection(CodeDuplicateVote, MsgDuplicateVote)
			}
			count++
		case OperationRemove:
			if !account.HasVote(entry.Delegate) {
				return newRejection(CodeMissingVote, MsgMissingVote)
			}
			count--
		}
	}
	if v.config.EnforceVoteLimit && count > v.config.MaxVotesPerAccount {
		return newRejection(
			CodeVoteLimitExceeded,
			"Maximum number of %d votes exceeded (%d too many)",
			v.config.MaxVotesPerAccount,
			count-v.config.MaxVotesPerAccount,
		)
	}
	return nil
}

func (v *Validator) checkAuthenticity(
	tx *Transaction,
	account AccountSnapshot,
) error {
	if !v.config.Verifier.VerifySignature(tx) {
		return newRejection(CodeInvalidSignature, "Failed to verify signature")
	}
	if len(account.PublicKey) > 0 &&
		!bytes.Equal(account.PublicKey, tx.SenderPublicKey) {
		return newRejection(CodeInvalidSignature, "Invalid sender public key")
	}
	if AddressFromPublicKey(tx.SenderPublicKey) != tx.SenderAddress {
		return newRejection(CodeInvalidSignature, "Invalid sender address")
	}
	return nil
}

func (v *Validator) checkStructure(tx *Transaction) ([]Entry, error) {
	if tx.ID != tx.ComputeID() {
		return nil, newRejection(CodeSchemaViolation, "Invalid transaction id")
	}
	if tx.Fee != v.config.Fee {
		return nil, newRejection(
			CodeSchemaViolation,
			"Invalid transaction fee: %d",
			tx.Fee,
		)
	}
	if v.config.MaxVotesPerTransaction > 0 &&
		len(tx.Votes) > v.config.MaxVotesPerTransaction {
		return nil, newRejection(
			CodeSchemaViolation,
			"Voting limit exceeded. Maximum is %d votes per transaction",
			v.config.MaxVotesPerTransaction,
		)
	}
	entries, err := tx.Entries()
	if err != nil {
		var entryErr *EntryError
		if errors.As(err, &entryErr) {
			return nil, &RejectionError{
				Code:    CodeSchemaViolation,
				Message: entryErr.Error(),
				Err:     entryErr,
			}
		}
		return nil, newRejection(CodeSchemaViolation, "%s", err)
	}
	return entries, nil
}

func checkEntryConflicts(entries []Entry) error {
	seen := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		if _, ok := seen[entry.Delegate]; ok {
			return newRejection(
				CodeSchemaViolation,
				"Multiple votes for same delegate are not allowed",
			)
		}
		seen[entry.Delegate] = struct{}{}
	}
	return nil
}
