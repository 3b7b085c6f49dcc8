package sealing

import (
	"context"
	"crypto/ed25519"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"albumvault/internal/domain/models"
	"albumvault/internal/ledger"
	"albumvault/internal/lib/wallet"
)

func walletKey(seed byte) (string, ed25519.PrivateKey) {
	s := make([]byte, ed25519.SeedSize)
	s[0] = seed
	priv := ed25519.NewKeyFromSeed(s)
	return wallet.Address(priv.Public().(ed25519.PublicKey)), priv
}

var (
	owner, ownerKey       = walletKey(1)
	stranger, strangerKey = walletKey(2)
	friend, _             = walletKey(3)
)

func setup(t *testing.T) (*Local, *ledger.Local, ledger.Container) {
	t.Helper()

	l, err := ledger.NewLocal(slog.Default(), "9d61b19deffd5a60ba844af492ec2cc44449c5697b326919703bac031cae7f60")
	require.NoError(t, err)

	c, err := l.CreateContainer(context.Background(), "album", 5, owner)
	require.NoError(t, err)

	return NewLocal("master", l.PublicKey()), l, c
}

// activeKey выпускает ключ address и подписывает его challenge ключом priv.
func activeKey(address, scope string, priv ed25519.PrivateKey) *models.SessionKey {
	now := time.Now()
	key := &models.SessionKey{
		Address:     address,
		PolicyScope: scope,
		CreatedAt:   now,
		ExpiresAt:   now.Add(10 * time.Minute),
	}
	key.Challenge = key.ChallengeMessage()
	key.PublicKey = priv.Public().(ed25519.PublicKey)
	key.Signature = ed25519.Sign(priv, []byte(key.Challenge))
	return key
}

func TestNewEncryptionID(t *testing.T) {
	a, err := NewEncryptionID("0xabcd")
	require.NoError(t, err)
	b, err := NewEncryptionID("0xabcd")
	require.NoError(t, err)

	assert.Equal(t, []byte{0xab, 0xcd}, a[:2])
	assert.Len(t, a, 2+NonceSize)
	assert.NotEqual(t, a, b)

	raw, err := NewEncryptionID("not-hex")
	require.NoError(t, err)
	assert.Equal(t, []byte("not-hex"), raw[:7])
}

func TestLocal_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s, l, c := setup(t)

	id, err := NewEncryptionID(c.ContainerID)
	require.NoError(t, err)

	ct, err := s.Encrypt(ctx, c.ContainerID, id, []byte("secret photo"))
	require.NoError(t, err)

	policy, sealedID, _, _, err := parse(ct)
	require.NoError(t, err)
	assert.Equal(t, c.ContainerID, policy)
	assert.Equal(t, id, sealedID)

	proof, err := l.DryRunPolicyCheck(ctx, c.ContainerID, owner)
	require.NoError(t, err)

	plain, err := s.Decrypt(ctx, activeKey(owner, c.ContainerID, ownerKey), proof, ct)
	require.NoError(t, err)
	assert.Equal(t, []byte("secret photo"), plain)
}

func TestLocal_DecryptRejections(t *testing.T) {
	ctx := context.Background()
	s, l, c := setup(t)

	id, err := NewEncryptionID(c.ContainerID)
	require.NoError(t, err)
	ct, err := s.Encrypt(ctx, c.ContainerID, id, []byte("secret"))
	require.NoError(t, err)

	ownerProof, err := l.DryRunPolicyCheck(ctx, c.ContainerID, owner)
	require.NoError(t, err)
	strangerProof, err := l.DryRunPolicyCheck(ctx, c.ContainerID, stranger)
	require.NoError(t, err)

	forged := ownerProof
	forged.Caller = stranger

	expired := activeKey(owner, c.ContainerID, ownerKey)
	expired.ExpiresAt = time.Now().Add(-time.Second)

	unsigned := activeKey(owner, c.ContainerID, ownerKey)
	unsigned.Signature = nil

	// кто-то подставил адрес владельца, но подписал своим ключом
	impersonated := activeKey(owner, c.ContainerID, strangerKey)

	garbageSig := activeKey(owner, c.ContainerID, ownerKey)
	garbageSig.Signature = []byte("not-a-signature-by-owner")

	// подпись настоящая, но срок продлён после подписи
	extended := activeKey(owner, c.ContainerID, ownerKey)
	extended.ExpiresAt = extended.ExpiresAt.Add(time.Hour)

	tests := []struct {
		name    string
		key     *models.SessionKey
		proof   ledger.PolicyProof
		ct      []byte
		wantErr error
	}{
		{"denied proof", activeKey(stranger, c.ContainerID, strangerKey), strangerProof, ct, ErrAccessDenied},
		{"forged caller", activeKey(stranger, c.ContainerID, strangerKey), forged, ct, ErrAccessDenied},
		{"expired key", expired, ownerProof, ct, ErrSessionKeyInvalid},
		{"unsigned key", unsigned, ownerProof, ct, ErrSessionKeyInvalid},
		{"impersonated owner", impersonated, ownerProof, ct, wallet.ErrAddressMismatch},
		{"garbage signature", garbageSig, ownerProof, ct, wallet.ErrInvalidSignature},
		{"tampered expiry", extended, ownerProof, ct, ErrSessionKeyInvalid},
		{"wrong scope key", activeKey(owner, "0xother", ownerKey), ownerProof, ct, ErrSessionKeyInvalid},
		{"key of other address", activeKey(friend, c.ContainerID, ownerKey), ownerProof, ct, ErrSessionKeyInvalid},
		{"garbage", activeKey(owner, c.ContainerID, ownerKey), ownerProof, []byte("nope"), ErrMalformedCiphertext},
		{"truncated", activeKey(owner, c.ContainerID, ownerKey), ownerProof, ct[:len(ct)-3], ErrMalformedCiphertext},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plain, err := s.Decrypt(ctx, tt.key, tt.proof, tt.ct)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, plain)
		})
	}
}
