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
	"errors"
	"fmt"
)

// RejectionCode is the stable machine-checkable reason a transaction was rejected
type RejectionCode string

const (
	CodeInvalidSignature  RejectionCode = "InvalidSignature"
	CodeSchemaViolation   RejectionCode = "SchemaViolation"
	CodeInsufficientFunds RejectionCode = "InsufficientFunds"
	CodeDuplicateVote     RejectionCode = "DuplicateVote"
	CodeMissingVote       RejectionCode = "MissingVote"
	CodeVoteLimitExceeded RejectionCode = "VoteLimitExceeded"
	CodeSuperseded        RejectionCode = "Superseded"
)

// Messages that existing clients match on verbatim
const (
	MsgDuplicateVote = "Failed to add vote, account has already voted for this delegate"
	MsgMissingVote   = "Failed to remove vote, account has not voted for this delegate"
)

// Sentinels for use with errors.Is. Matching is by code only.
var (
	ErrInvalidSignature  = &RejectionError{Code: CodeInvalidSignature, Message: "invalid signature"}
	ErrSchemaViolation   = &RejectionError{Code: CodeSchemaViolation, Message: "schema violation"}
	ErrInsufficientFunds = &RejectionError{Code: CodeInsufficientFunds, Message: "insufficient funds"}
	ErrDuplicateVote     = &RejectionError{Code: CodeDuplicateVote, Message: MsgDuplicateVote}
	ErrMissingVote       = &RejectionError{Code: CodeMissingVote, Message: MsgMissingVote}
	ErrVoteLimitExceeded = &RejectionError{Code: CodeVoteLimitExceeded, Message: "vote limit exceeded"}
	ErrSuperseded        = &RejectionError{Code: CodeSuperseded, Message: "superseded"}
)

// RejectionError is a terminal rejection of a vote transaction
type RejectionError struct {
	Err     error
	Code    RejectionCode
	Message string
}

func (e *RejectionError) Error() string {
	return e.Message
}

func (e *RejectionError) Unwrap() error {
	return e.Err
}

func (e *RejectionError) Is(target error) bool {
	t, ok := target.(*RejectionError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

func newRejection(code RejectionCode, format string, args ...any) *RejectionError {
	return &RejectionError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// NewInsufficientFundsError builds the legacy funds message for the account
func NewInsufficientFundsError(address string, balance uint64) *RejectionError {
	return newRejection(
		CodeInsufficientFunds,
		"Account does not have enough LSK: %s balance: %d",
		address,
		balance,
	)
}

// NewSupersededError marks a pool-admitted transaction that failed
// re-validation when its block was applied
func NewSupersededError(cause error) *RejectionError {
	return &RejectionError{
		Code:    CodeSuperseded,
		Message: "Transaction superseded at apply time: " + cause.Error(),
		Err:     cause,
	}
}

// Code returns the rejection code carried by err, or an empty code if err is
// not a rejection. A superseded rejection reports CodeSuperseded.
func Code(err error) RejectionCode {
	var rejectErr *RejectionError
	if errors.As(err, &rejectErr) {
		return rejectErr.Code
	}
	return ""
}
