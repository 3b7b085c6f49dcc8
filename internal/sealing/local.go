package sealing

import (
	"bytes"
	"context"
	"crypto/cipher"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"albumvault/internal/domain/models"
	"albumvault/internal/ledger"
	"albumvault/internal/lib/wallet"
)

var magic = []byte("AVS1")

// Local заменяет пороговые key servers одним процессом. Ключ политики выводится через HKDF
// из мастер-секрета, proof должен быть подписан доверенным ключом леджера.
type Local struct {
	master    []byte
	ledgerKey ed25519.PublicKey
	now       func() time.Time
}

func NewLocal(masterSecret string, ledgerKey ed25519.PublicKey) *Local {
	return &Local{
		master:    []byte(masterSecret),
		ledgerKey: ledgerKey,
		now:       time.Now,
	}
}

func (s *Local) Encrypt(ctx context.Context, policyID string, id []byte, data []byte) ([]byte, error) {
	const op = "sealing.Local.Encrypt"

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	aead, err := s.aead(policyID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var buf bytes.Buffer
	buf.Write(magic)
	writeChunk(&buf, []byte(policyID))
	writeChunk(&buf, id)
	buf.Write(nonce)
	buf.Write(aead.Seal(nil, nonce, data, id))

	return buf.Bytes(), nil
}

func (s *Local) Decrypt(ctx context.Context, key *models.SessionKey, proof ledger.PolicyProof, ciphertext []byte) ([]byte, error) {
	const op = "sealing.Local.Decrypt"

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	policyID, id, nonce, sealed, err := parse(ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if !proof.Approved || proof.Scope != policyID || !ed25519.Verify(s.ledgerKey, proof.TxBytes, proof.Signature) {
		return nil, fmt.Errorf("%s: %w", op, ErrAccessDenied)
	}
	if !bytes.Equal(proof.TxBytes, ledger.PolicyCheckBytes(proof.Scope, proof.Caller, proof.Approved)) {
		return nil, fmt.Errorf("%s: %w", op, ErrAccessDenied)
	}
	if !key.UsableFor(policyID, s.now()) || key.Address != proof.Caller {
		return nil, fmt.Errorf("%s: %w", op, ErrSessionKeyInvalid)
	}
	// ключ должен быть подписан кошельком своего адреса
	if err := wallet.VerifySessionKey(key); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrSessionKeyInvalid, err)
	}

	aead, err := s.aead(policyID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	plain, err := aead.Open(nil, nonce, sealed, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, ErrMalformedCiphertext)
	}

	return plain, nil
}

func (s *Local) aead(policyID string) (cipher.AEAD, error) {
	k := make([]byte, chacha20poly1305.KeySize)
	r := hkdf.New(sha256.New, s.master, nil, []byte("albumvault/policy/"+policyID))
	if _, err := io.ReadFull(r, k); err != nil {
		return nil, err
	}
	return chacha20poly1305.NewX(k)
}

func writeChunk(buf *bytes.Buffer, b []byte) {
	var l [2]byte
	binary.BigEndian.PutUint16(l[:], uint16(len(b)))
	buf.Write(l[:])
	buf.Write(b)
}

func readChunk(b []byte) ([]byte, []byte, error) {
	if len(b) < 2 {
		return nil, nil, ErrMalformedCiphertext
	}
	n := int(binary.BigEndian.Uint16(b[:2]))
	if len(b) < 2+n {
		return nil, nil, ErrMalformedCiphertext
	}
	return b[2 : 2+n], b[2+n:], nil
}

func parse(ciphertext []byte) (policyID string, id, nonce, sealed []byte, err error) {
	if !bytes.HasPrefix(ciphertext, magic) {
		return "", nil, nil, nil, ErrMalformedCiphertext
	}
	rest := ciphertext[len(magic):]

	policy, rest, err := readChunk(rest)
	if err != nil {
		return "", nil, nil, nil, err
	}
	id, rest, err = readChunk(rest)
	if err != nil {
		return "", nil, nil, nil, err
	}
	if len(rest) < chacha20poly1305.NonceSizeX {
		return "", nil, nil, nil, ErrMalformedCiphertext
	}

	return string(policy), id, rest[:chacha20poly1305.NonceSizeX], rest[chacha20poly1305.NonceSizeX:], nil
}
