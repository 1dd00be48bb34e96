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
	"crypto/ed25519"
)

// SignatureVerifier authenticates a transaction against its sender public key
type SignatureVerifier interface {
	VerifySignature(tx *Transaction) bool
}

// Ed25519Verifier checks ed25519 signatures over the transaction signing digest
type Ed25519Verifier struct{}

func (Ed25519Verifier) VerifySignature(tx *Transaction) bool {
	if tx == nil || len(tx.SenderPublicKey) != ed25519.PublicKeySize ||
		len(tx.Signature) != ed25519.SignatureSize {
		return false
	}
	digest := tx.Hash()
	return ed25519.Verify(
		ed25519.PublicKey(tx.SenderPublicKey),
		digest[:],
		tx.Signature,
	)
}
