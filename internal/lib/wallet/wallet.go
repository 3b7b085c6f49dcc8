// Package wallet связывает адрес кошелька с его ключом ed25519 и проверяет подписи challenge.
package wallet

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2b"

	"albumvault/internal/domain/models"
)

var (
	ErrInvalidPublicKey = errors.New("invalid wallet public key")
	ErrAddressMismatch  = errors.New("public key does not belong to address")
	ErrInvalidSignature = errors.New("signature does not match challenge")
)

// флаг схемы подписи перед ключом, как у адресов ed25519 в леджере
const ed25519Flag = 0x00

// Signature ответ кошелька: публичный ключ и подпись challenge.
type Signature struct {
	PublicKey ed25519.PublicKey
	Signature []byte
}

// Address возвращает 0x + hex(blake2b-256(flag || pubkey)).
func Address(pub ed25519.PublicKey) string {
	sum := blake2b.Sum256(append([]byte{ed25519Flag}, pub...))
	return "0x" + hex.EncodeToString(sum[:])
}

// Verify проверяет, что ключ принадлежит address и подпись сделана им над message.
func Verify(address, message string, sig Signature) error {
	const op = "wallet.Verify"

	if len(sig.PublicKey) != ed25519.PublicKeySize {
		return fmt.Errorf("%s: %w", op, ErrInvalidPublicKey)
	}
	if !strings.EqualFold(Address(sig.PublicKey), address) {
		return fmt.Errorf("%s: %w", op, ErrAddressMismatch)
	}
	if len(sig.Signature) != ed25519.SignatureSize || !ed25519.Verify(sig.PublicKey, []byte(message), sig.Signature) {
		return fmt.Errorf("%s: %w", op, ErrInvalidSignature)
	}

	return nil
}

// VerifySessionKey проверяет подпись ключа и то, что подписан именно его канонический challenge,
// так что scope и срок жизни нельзя подменить после подписи.
func VerifySessionKey(key *models.SessionKey) error {
	const op = "wallet.VerifySessionKey"

	if key == nil || key.Challenge != key.ChallengeMessage() {
		return fmt.Errorf("%s: %w", op, ErrInvalidSignature)
	}

	return Verify(key.Address, key.Challenge, Signature{PublicKey: key.PublicKey, Signature: key.Signature})
}

// Encode упаковывает подпись для очереди relay: "<pubkey hex>:<signature hex>".
func (s Signature) Encode() string {
	return hex.EncodeToString(s.PublicKey) + ":" + hex.EncodeToString(s.Signature)
}

func ParseSignature(raw string) (Signature, error) {
	const op = "wallet.ParseSignature"

	pubHex, sigHex, ok := strings.Cut(raw, ":")
	if !ok {
		return Signature{}, fmt.Errorf("%s: %w", op, ErrInvalidSignature)
	}

	pub, err := hex.DecodeString(pubHex)
	if err != nil {
		return Signature{}, fmt.Errorf("%s: %w", op, ErrInvalidPublicKey)
	}
	sig, err := hex.DecodeString(sigHex)
	if err != nil {
		return Signature{}, fmt.Errorf("%s: %w", op, ErrInvalidSignature)
	}

	return Signature{PublicKey: pub, Signature: sig}, nil
}
