package services

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"albumvault/internal/domain/models"
	"albumvault/internal/ledger"
	"albumvault/internal/lib/wallet"
	"albumvault/internal/sealing"
	"albumvault/internal/storage"
	"albumvault/internal/storage/blobstore"
)

// fakeWallet подписывает challenge ключом адреса. При block ждёт release или отмены ctx.
type fakeWallet struct {
	keys map[string]ed25519.PrivateKey

	// forge подписывает всё чужим ключом, garbage отдаёт мусор вместо подписи
	forge   ed25519.PrivateKey
	garbage bool

	calls     atomic.Int32
	active    atomic.Int32
	maxActive atomic.Int32

	block   atomic.Bool
	started chan struct{}
	release chan struct{}
	err     error
}

func (w *fakeWallet) RequestSignature(ctx context.Context, address, message string) (wallet.Signature, error) {
	w.calls.Add(1)

	n := w.active.Add(1)
	defer w.active.Add(-1)
	for {
		m := w.maxActive.Load()
		if n <= m || w.maxActive.CompareAndSwap(m, n) {
			break
		}
	}

	if w.block.Load() {
		if w.started != nil {
			select {
			case w.started <- struct{}{}:
			default:
			}
		}
		select {
		case <-ctx.Done():
			return wallet.Signature{}, ctx.Err()
		case <-w.release:
		}
	}
	if w.err != nil {
		return wallet.Signature{}, w.err
	}

	priv, ok := w.keys[address]
	if w.forge != nil {
		priv, ok = w.forge, true
	}
	if !ok {
		return wallet.Signature{}, errors.New("unknown wallet")
	}

	sig := wallet.Signature{
		PublicKey: priv.Public().(ed25519.PublicKey),
		Signature: ed25519.Sign(priv, []byte(message)),
	}
	if w.garbage {
		sig.Signature = []byte("not-a-signature-by-" + address)
	}

	return sig, nil
}

func newWalletKey(t *testing.T) (string, ed25519.PrivateKey) {
	t.Helper()

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	return wallet.Address(pub), priv
}

type accessFixture struct {
	service   *AccessService
	wallet    *fakeWallet
	ledger    *ledger.Local
	container ledger.Container
	blobIDs   []string
	clock     time.Time

	owner  string
	viewer string
}

func newAccessFixture(t *testing.T, items ...string) *accessFixture {
	t.Helper()
	ctx := context.Background()

	owner, ownerKey := newWalletKey(t)
	viewer, viewerKey := newWalletKey(t)

	l, err := ledger.NewLocal(slog.Default(), "9d61b19deffd5a60ba844af492ec2cc44449c5697b326919703bac031cae7f60")
	require.NoError(t, err)

	c, err := l.CreateContainer(ctx, "album", 5, owner)
	require.NoError(t, err)

	sealer := sealing.NewLocal("master", l.PublicKey())
	blobs, err := blobstore.NewLocalBlobStore(t.TempDir(), 1<<20)
	require.NoError(t, err)

	var ids []string
	for _, it := range items {
		id, err := sealing.NewEncryptionID(c.ContainerID)
		require.NoError(t, err)
		ct, err := sealer.Encrypt(ctx, c.ContainerID, id, []byte(it))
		require.NoError(t, err)
		res, err := blobs.Put(ctx, ct)
		require.NoError(t, err)
		ids = append(ids, res.BlobID)
	}

	f := &accessFixture{
		wallet: &fakeWallet{keys: map[string]ed25519.PrivateKey{
			owner:  ownerKey,
			viewer: viewerKey,
		}},
		ledger:    l,
		container: c,
		blobIDs:   ids,
		clock:     time.Now(),
		owner:     owner,
		viewer:    viewer,
	}
	f.service = NewAccessService(slog.Default(), f.wallet, l, sealer, blobs, Options{
		Timeout:          time.Second,
		SignatureTimeout: time.Second,
		DefaultTTL:       10 * time.Minute,
		Concurrency:      2,
	})
	f.service.now = func() time.Time { return f.clock }

	return f
}

// Сценарий C: повторный вызов в пределах ttl берёт ключ из кэша, кошелёк не спрашивается.
func TestEnsureSessionKey_Cached(t *testing.T) {
	ctx := context.Background()
	f := newAccessFixture(t)

	first, err := f.service.EnsureSessionKey(ctx, f.owner, f.container.ContainerID, 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, models.SessionActive, first.State(f.clock))
	assert.Contains(t, first.Challenge, f.container.ContainerID)
	assert.True(t, ed25519.Verify(first.PublicKey, []byte(first.Challenge), first.Signature))
	assert.Equal(t, f.owner, wallet.Address(first.PublicKey))

	second, err := f.service.EnsureSessionKey(ctx, f.owner, f.container.ContainerID, 10*time.Minute)
	require.NoError(t, err)

	assert.Equal(t, int32(1), f.wallet.calls.Load())
	assert.Equal(t, first.ExpiresAt, second.ExpiresAt)
}

func TestEnsureSessionKey_TTLBoundary(t *testing.T) {
	ctx := context.Background()
	f := newAccessFixture(t, "photo")
	start := f.clock

	key, err := f.service.EnsureSessionKey(ctx, f.owner, f.container.ContainerID, 10*time.Minute)
	require.NoError(t, err)

	f.clock = start.Add(10*time.Minute - time.Second)

	report, err := f.service.RetrieveAndDecrypt(ctx, f.blobIDs, key, f.container.ContainerID)
	require.NoError(t, err)
	assert.Equal(t, []byte("photo"), report.Items[0].Data)

	_, err = f.service.EnsureSessionKey(ctx, f.owner, f.container.ContainerID, 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int32(1), f.wallet.calls.Load())

	f.clock = start.Add(10*time.Minute + time.Second)

	_, err = f.service.RetrieveAndDecrypt(ctx, f.blobIDs, key, f.container.ContainerID)
	assert.ErrorIs(t, err, ErrSessionExpired)

	_, err = f.service.Lookup(f.owner, f.container.ContainerID)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	renewed, err := f.service.EnsureSessionKey(ctx, f.owner, f.container.ContainerID, 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int32(2), f.wallet.calls.Load())
	assert.True(t, renewed.ExpiresAt.After(key.ExpiresAt))
}

func TestEnsureSessionKey_OneKeyPerAddress(t *testing.T) {
	ctx := context.Background()
	f := newAccessFixture(t)

	_, err := f.service.EnsureSessionKey(ctx, f.owner, "0xscope-a", 0)
	require.NoError(t, err)
	_, err = f.service.EnsureSessionKey(ctx, f.owner, "0xscope-b", 0)
	require.NoError(t, err)
	assert.Equal(t, int32(2), f.wallet.calls.Load())

	_, err = f.service.Lookup(f.owner, "0xscope-a")
	assert.ErrorIs(t, err, ErrScopeMismatch)

	key, err := f.service.Lookup(f.owner, "0xscope-b")
	require.NoError(t, err)
	assert.Equal(t, f.clock.Add(10*time.Minute), key.ExpiresAt)
}

func TestEnsureSessionKey_Cancelled(t *testing.T) {
	f := newAccessFixture(t)
	f.wallet.block.Store(true)
	f.wallet.started = make(chan struct{}, 1)
	f.wallet.release = make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		_, err := f.service.EnsureSessionKey(ctx, f.owner, f.container.ContainerID, 0)
		errCh <- err
	}()

	<-f.wallet.started
	cancel()

	err := <-errCh
	assert.ErrorIs(t, err, context.Canceled)

	_, err = f.service.Lookup(f.owner, f.container.ContainerID)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	// прерванный flight мог ещё не завершиться
	f.wallet.block.Store(false)
	assert.Eventually(t, func() bool {
		_, err := f.service.EnsureSessionKey(context.Background(), f.owner, f.container.ContainerID, 0)
		return err == nil
	}, time.Second, 10*time.Millisecond)
}

func TestEnsureSessionKey_ConcurrentMintsShareSignature(t *testing.T) {
	f := newAccessFixture(t)
	f.wallet.block.Store(true)
	f.wallet.started = make(chan struct{}, 1)
	f.wallet.release = make(chan struct{})

	const callers = 5
	var wg sync.WaitGroup
	keys := make([]*models.SessionKey, callers)
	errs := make([]error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			keys[i], errs[i] = f.service.EnsureSessionKey(context.Background(), f.owner, f.container.ContainerID, 0)
		}(i)
	}

	<-f.wallet.started
	close(f.wallet.release)
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, keys[0].ExpiresAt, keys[i].ExpiresAt)
	}
	assert.Equal(t, int32(1), f.wallet.calls.Load())
}

func TestEnsureSessionKey_WalletFailure(t *testing.T) {
	f := newAccessFixture(t)
	f.wallet.err = errors.New("user closed dialog")

	_, err := f.service.EnsureSessionKey(context.Background(), f.owner, f.container.ContainerID, 0)
	require.Error(t, err)
	assert.True(t, models.IsCollaboratorError(err))

	_, err = f.service.Lookup(f.owner, f.container.ContainerID)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = f.service.EnsureSessionKey(context.Background(), "", "", 0)
	assert.True(t, models.IsValidationError(err))
}

func TestRetrieveAndDecrypt(t *testing.T) {
	ctx := context.Background()
	f := newAccessFixture(t, "one", "two", "three")
	missing := blobstore.BlobID([]byte("never stored"))

	owner, err := f.service.EnsureSessionKey(ctx, f.owner, f.container.ContainerID, 0)
	require.NoError(t, err)

	t.Run("order preserved", func(t *testing.T) {
		report, err := f.service.RetrieveAndDecrypt(ctx, f.blobIDs, owner, f.container.ContainerID)
		require.NoError(t, err)
		require.Len(t, report.Items, 3)
		assert.Equal(t, []byte("one"), report.Items[0].Data)
		assert.Equal(t, []byte("two"), report.Items[1].Data)
		assert.Equal(t, []byte("three"), report.Items[2].Data)
		assert.Zero(t, report.Failed())
	})

	t.Run("partial failure", func(t *testing.T) {
		ids := []string{f.blobIDs[0], missing, f.blobIDs[2]}

		report, err := f.service.RetrieveAndDecrypt(ctx, ids, owner, f.container.ContainerID)
		require.Error(t, err)

		var pe *models.PartialBatchError
		require.ErrorAs(t, err, &pe)
		require.Len(t, pe.Failures, 1)
		assert.Equal(t, 1, pe.Failures[0].Index)
		assert.Equal(t, missing, pe.Failures[0].BlobID)

		assert.Equal(t, []byte("one"), report.Items[0].Data)
		assert.ErrorIs(t, report.Items[1].Err, storage.ErrBlobNotFound)
		assert.Equal(t, []byte("three"), report.Items[2].Data)
	})

	t.Run("total failure", func(t *testing.T) {
		report, err := f.service.RetrieveAndDecrypt(ctx, []string{missing}, owner, f.container.ContainerID)
		assert.ErrorIs(t, err, ErrAllItemsFailed)
		assert.Equal(t, 1, report.Failed())
	})

	t.Run("scope mismatch", func(t *testing.T) {
		_, err := f.service.RetrieveAndDecrypt(ctx, f.blobIDs, owner, "0xother")
		assert.ErrorIs(t, err, ErrScopeMismatch)
	})

	t.Run("no blob ids", func(t *testing.T) {
		_, err := f.service.RetrieveAndDecrypt(ctx, nil, owner, f.container.ContainerID)
		assert.True(t, models.IsValidationError(err))
	})
}

func TestRetrieveAndDecrypt_PolicyCheck(t *testing.T) {
	ctx := context.Background()
	f := newAccessFixture(t, "secret")

	viewer, err := f.service.EnsureSessionKey(ctx, f.viewer, f.container.ContainerID, 0)
	require.NoError(t, err)

	_, err = f.service.RetrieveAndDecrypt(ctx, f.blobIDs, viewer, f.container.ContainerID)
	assert.ErrorIs(t, err, sealing.ErrAccessDenied)

	require.NoError(t, f.ledger.GrantAccess(ctx, f.container.CapabilityID, f.container.ContainerID, f.viewer))

	report, err := f.service.RetrieveAndDecrypt(ctx, f.blobIDs, viewer, f.container.ContainerID)
	require.NoError(t, err)
	assert.Equal(t, []byte("secret"), report.Items[0].Data)
}

// Подпись не тем ключом или мусор вместо подписи не дают ключа, и в кэш ничего не попадает.
func TestEnsureSessionKey_ForgedSignature(t *testing.T) {
	_, strangerKey := newWalletKey(t)

	tests := []struct {
		name    string
		setup   func(w *fakeWallet)
		wantErr error
	}{
		{"signed by another wallet", func(w *fakeWallet) { w.forge = strangerKey }, wallet.ErrAddressMismatch},
		{"not a signature", func(w *fakeWallet) { w.garbage = true }, wallet.ErrInvalidSignature},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			f := newAccessFixture(t, "secret")
			tt.setup(f.wallet)

			key, err := f.service.EnsureSessionKey(ctx, f.owner, f.container.ContainerID, 0)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, key)

			_, err = f.service.Lookup(f.owner, f.container.ContainerID)
			assert.ErrorIs(t, err, ErrSessionNotFound)
		})
	}
}

// Ключ, собранный в обход EnsureSessionKey с чужой подписью, не расшифровывает контент владельца.
func TestRetrieveAndDecrypt_ForgedKey(t *testing.T) {
	ctx := context.Background()
	f := newAccessFixture(t, "secret")
	_, strangerKey := newWalletKey(t)

	key := &models.SessionKey{
		Address:     f.owner,
		PolicyScope: f.container.ContainerID,
		CreatedAt:   f.clock,
		ExpiresAt:   f.clock.Add(10 * time.Minute),
	}
	key.Challenge = key.ChallengeMessage()
	key.PublicKey = strangerKey.Public().(ed25519.PublicKey)
	key.Signature = ed25519.Sign(strangerKey, []byte(key.Challenge))

	report, err := f.service.RetrieveAndDecrypt(ctx, f.blobIDs, key, f.container.ContainerID)
	require.ErrorIs(t, err, wallet.ErrAddressMismatch)
	assert.Empty(t, report.Items)

	key.PublicKey = f.wallet.keys[f.owner].Public().(ed25519.PublicKey)
	key.Signature = []byte("not-a-signature-by-owner")

	_, err = f.service.RetrieveAndDecrypt(ctx, f.blobIDs, key, f.container.ContainerID)
	assert.ErrorIs(t, err, wallet.ErrInvalidSignature)
}

// Выпуски одного адреса для разных scope идут по очереди: у relay один challenge на адрес.
func TestEnsureSessionKey_ConcurrentScopesSameAddress(t *testing.T) {
	f := newAccessFixture(t)
	f.wallet.block.Store(true)
	f.wallet.started = make(chan struct{}, 1)
	f.wallet.release = make(chan struct{})

	scopes := []string{"0xscope-a", "0xscope-b"}
	keys := make([]*models.SessionKey, len(scopes))
	errs := make([]error, len(scopes))

	var wg sync.WaitGroup
	ensure := func(i int) {
		defer wg.Done()
		keys[i], errs[i] = f.service.EnsureSessionKey(context.Background(), f.owner, scopes[i], 0)
	}

	wg.Add(1)
	go ensure(0)
	<-f.wallet.started

	wg.Add(1)
	go ensure(1)

	// второй выпуск не трогает кошелёк, пока первый ждёт подписи
	assert.Never(t, func() bool { return f.wallet.calls.Load() > 1 }, 100*time.Millisecond, 5*time.Millisecond)

	close(f.wallet.release)
	wg.Wait()

	for i, scope := range scopes {
		require.NoError(t, errs[i])
		assert.Equal(t, scope, keys[i].PolicyScope)
		assert.NoError(t, wallet.VerifySessionKey(keys[i]))
	}
	assert.Equal(t, int32(2), f.wallet.calls.Load())
	assert.Equal(t, int32(1), f.wallet.maxActive.Load())
}
