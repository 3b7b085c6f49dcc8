// Package sealing is the threshold encryption collaborator. Content is encrypted under a
// policy id (the album container) and can only be decrypted with an approved policy proof.
package sealing

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"albumvault/internal/domain/models"
	"albumvault/internal/ledger"
)

var (
	ErrAccessDenied        = errors.New("policy check did not approve access")
	ErrMalformedCiphertext = errors.New("malformed ciphertext")
	ErrSessionKeyInvalid   = errors.New("session key is not valid for policy")
)

// NonceSize is the length of the random suffix of an encryption id.
const NonceSize = 5

type Sealer interface {
	Encrypt(ctx context.Context, policyID string, id []byte, data []byte) ([]byte, error)
	Decrypt(ctx context.Context, key *models.SessionKey, proof ledger.PolicyProof, ciphertext []byte) ([]byte, error)
}

// NewEncryptionID returns policyID bytes followed by a fresh random nonce,
// unique per item and per container.
func NewEncryptionID(policyID string) ([]byte, error) {
	prefix, err := hex.DecodeString(strings.TrimPrefix(policyID, "0x"))
	if err != nil {
		prefix = []byte(policyID)
	}

	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("sealing.NewEncryptionID: %w", err)
	}

	return append(prefix, nonce...), nil
}
