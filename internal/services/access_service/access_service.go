package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"albumvault/internal/domain/models"
	"albumvault/internal/ledger"
	"albumvault/internal/lib/collab"
	"albumvault/internal/lib/logger/sl"
	"albumvault/internal/lib/wallet"
	"albumvault/internal/metrics"
	"albumvault/internal/sealing"
	"albumvault/internal/storage/blobstore"
)

var (
	ErrSessionNotFound = errors.New("no session key for address")
	ErrSessionExpired  = errors.New("session key expired")
	ErrScopeMismatch   = errors.New("session key was minted for another scope")
	ErrAllItemsFailed  = errors.New("every item failed to decrypt")
)

// WalletSigner просит кошелёк держателя подписать сообщение. Блокируется до ответа или отмены ctx.
type WalletSigner interface {
	RequestSignature(ctx context.Context, address, message string) (wallet.Signature, error)
}

type Options struct {
	// таймаут вызовов леджера, sealing и хранилища блобов
	Timeout          time.Duration
	SignatureTimeout time.Duration
	DefaultTTL       time.Duration
	Concurrency      int
}

// AccessService выдаёт сессионные ключи и расшифровывает контент альбомов
type AccessService struct {
	log    *slog.Logger
	signer WalletSigner
	ledger ledger.Ledger
	sealer sealing.Sealer
	blobs  blobstore.BlobStore
	opts   Options

	keys   *cache.Cache
	flight singleflight.Group
	now    func() time.Time
}

func NewAccessService(
	log *slog.Logger,
	signer WalletSigner,
	l ledger.Ledger,
	sealer sealing.Sealer,
	blobs blobstore.BlobStore,
	opts Options,
) *AccessService {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.DefaultTTL <= 0 {
		opts.DefaultTTL = 10 * time.Minute
	}

	return &AccessService{
		log:    log,
		signer: signer,
		ledger: l,
		sealer: sealer,
		blobs:  blobs,
		opts:   opts,
		keys:   cache.New(opts.DefaultTTL, time.Minute),
		now:    time.Now,
	}
}

// mintResult несёт scope выпуска, чтобы ожидающий с другим scope не принял чужой ключ или ошибку.
type mintResult struct {
	scope string
	key   *models.SessionKey
}

// EnsureSessionKey возвращает кэшированный ключ адреса, если он жив и выпущен для scope,
// иначе выпускает новый и ждёт подписи кошелька. На адрес идёт не больше одного выпуска:
// у relay один challenge на адрес. Если подпись не пришла, ничего не кэшируется.
func (s *AccessService) EnsureSessionKey(ctx context.Context, address, scope string, ttl time.Duration) (*models.SessionKey, error) {
	const op = "service.AccessService.EnsureSessionKey"

	if err := requireFields(address, scope); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if ttl <= 0 {
		ttl = s.opts.DefaultTTL
	}

	for {
		if key, ok := s.cached(address); ok && key.UsableFor(scope, s.now()) {
			metrics.SessionKeys.WithLabelValues("cache").Inc()
			return key, nil
		}

		ch := s.flight.DoChan(address, func() (interface{}, error) {
			key, err := s.mint(ctx, address, scope, ttl)
			return mintResult{scope: scope, key: key}, err
		})

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%s: %w", op, ctx.Err())
		case res := <-ch:
			if r := res.Val.(mintResult); r.scope != scope {
				// присоединились к выпуску для другого scope, ждём свой
				continue
			}
			if res.Err != nil {
				return nil, fmt.Errorf("%s: %w", op, res.Err)
			}
			key := *res.Val.(mintResult).key
			return &key, nil
		}
	}
}

func (s *AccessService) mint(ctx context.Context, address, scope string, ttl time.Duration) (*models.SessionKey, error) {
	const op = "service.AccessService.mint"
	log := s.log.With(
		slog.String("op", op),
		slog.String("address", address),
		slog.String("scope", scope),
	)

	// мог закэшироваться предыдущим flight
	if key, ok := s.cached(address); ok && key.UsableFor(scope, s.now()) {
		metrics.SessionKeys.WithLabelValues("cache").Inc()
		return key, nil
	}

	now := s.now()
	key := &models.SessionKey{
		Address:     address,
		PolicyScope: scope,
		CreatedAt:   now,
		ExpiresAt:   now.Add(ttl),
	}
	key.Challenge = key.ChallengeMessage()

	var sig wallet.Signature
	err := collab.Do(ctx, s.opts.SignatureTimeout, collab.Wallet, "sign", func(ctx context.Context) error {
		var err error
		sig, err = s.signer.RequestSignature(ctx, address, key.Challenge)
		return err
	})
	if err != nil {
		metrics.SessionKeys.WithLabelValues("failed").Inc()
		log.Warn("session key not signed", sl.Err(err))
		return nil, err
	}

	key.PublicKey = sig.PublicKey
	key.Signature = sig.Signature
	if err := wallet.VerifySessionKey(key); err != nil {
		metrics.SessionKeys.WithLabelValues("rejected").Inc()
		log.Warn("session key signature rejected", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.keys.Set(address, key, ttl)

	metrics.SessionKeys.WithLabelValues("minted").Inc()
	log.Info("session key minted", slog.Time("expires_at", key.ExpiresAt))

	return key, nil
}

// Lookup возвращает активный ключ адреса для scope.
func (s *AccessService) Lookup(address, scope string) (*models.SessionKey, error) {
	const op = "service.AccessService.Lookup"

	key, ok := s.cached(address)
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, ErrSessionNotFound)
	}
	if err := s.check(key, scope); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return key, nil
}

func (s *AccessService) cached(address string) (*models.SessionKey, bool) {
	v, ok := s.keys.Get(address)
	if !ok {
		return nil, false
	}
	key := *v.(*models.SessionKey)
	return &key, true
}

// check проверяет срок лениво: истёкший ключ вытесняется здесь же.
func (s *AccessService) check(key *models.SessionKey, scope string) error {
	if key == nil {
		return ErrSessionNotFound
	}
	if key.State(s.now()) != models.SessionActive {
		if cur, ok := s.cached(key.Address); ok && cur.ExpiresAt.Equal(key.ExpiresAt) {
			s.keys.Delete(key.Address)
		}
		return ErrSessionExpired
	}
	if key.PolicyScope != scope {
		return ErrScopeMismatch
	}
	return nil
}

// RetrieveAndDecrypt подтверждает доступ пробным policy check, затем скачивает и расшифровывает
// каждый блоб. Порядок результатов совпадает с blobIDs, сбой одного элемента не прерывает остальные.
func (s *AccessService) RetrieveAndDecrypt(ctx context.Context, blobIDs []string, key *models.SessionKey, scope string) (models.DecryptReport, error) {
	const op = "service.AccessService.RetrieveAndDecrypt"

	if len(blobIDs) == 0 {
		return models.DecryptReport{}, fmt.Errorf("%s: %w", op, &models.ValidationError{Errors: []string{"at least one blob id is required"}})
	}
	if err := s.check(key, scope); err != nil {
		return models.DecryptReport{}, fmt.Errorf("%s: %w", op, err)
	}
	if err := wallet.VerifySessionKey(key); err != nil {
		return models.DecryptReport{}, fmt.Errorf("%s: %w", op, err)
	}

	log := s.log.With(
		slog.String("op", op),
		slog.String("address", key.Address),
		slog.String("scope", scope),
	)

	var proof ledger.PolicyProof
	err := collab.Do(ctx, s.opts.Timeout, collab.Ledger, "dry_run_policy_check", func(ctx context.Context) error {
		var err error
		proof, err = s.ledger.DryRunPolicyCheck(ctx, scope, key.Address)
		return err
	})
	if err != nil {
		log.Error("policy check failed", sl.Err(err))
		return models.DecryptReport{}, fmt.Errorf("%s: %w", op, err)
	}
	if !proof.Approved {
		log.Info("access denied")
		return models.DecryptReport{}, fmt.Errorf("%s: %w", op, sealing.ErrAccessDenied)
	}

	items := make([]models.DecryptedItem, len(blobIDs))

	var (
		mu     sync.Mutex
		failed []models.ItemFailure
		g      errgroup.Group
	)
	g.SetLimit(s.opts.Concurrency)

	for i, blobID := range blobIDs {
		items[i].BlobID = blobID

		g.Go(func() error {
			data, err := s.decryptItem(ctx, key, proof, blobID)
			if err != nil {
				items[i].Err = err
				metrics.DecryptedItems.WithLabelValues("failed").Inc()

				mu.Lock()
				failed = append(failed, models.ItemFailure{Index: i, BlobID: blobID, Reason: err.Error()})
				mu.Unlock()
				return nil
			}

			items[i].Data = data
			metrics.DecryptedItems.WithLabelValues("ok").Inc()
			return nil
		})
	}
	_ = g.Wait()

	report := models.DecryptReport{Items: items}

	switch {
	case len(failed) == len(items):
		log.Warn("decrypt failed", slog.Int("items", len(items)))
		return report, fmt.Errorf("%s: %w: %w", op, ErrAllItemsFailed, items[0].Err)
	case len(failed) > 0:
		sort.Slice(failed, func(i, j int) bool { return failed[i].Index < failed[j].Index })
		log.Warn("decrypt partially failed",
			slog.Int("failed", len(failed)),
			slog.Int("total", len(items)),
		)
		return report, fmt.Errorf("%s: %w", op, &models.PartialBatchError{
			Op:       "decrypt",
			Total:    len(items),
			Failures: failed,
		})
	}

	return report, nil
}

func (s *AccessService) decryptItem(ctx context.Context, key *models.SessionKey, proof ledger.PolicyProof, blobID string) ([]byte, error) {
	var ciphertext []byte
	err := collab.Do(ctx, s.opts.Timeout, collab.BlobStore, "get", func(ctx context.Context) error {
		var err error
		ciphertext, err = s.blobs.Get(ctx, blobID)
		return err
	})
	if err != nil {
		return nil, err
	}

	var plain []byte
	err = collab.Do(ctx, s.opts.Timeout, collab.Sealing, "decrypt", func(ctx context.Context) error {
		var err error
		plain, err = s.sealer.Decrypt(ctx, key, proof, ciphertext)
		return err
	})
	if err != nil {
		return nil, err
	}

	return plain, nil
}

func requireFields(address, scope string) error {
	var errs []string
	if strings.TrimSpace(address) == "" {
		errs = append(errs, "address is required")
	}
	if strings.TrimSpace(scope) == "" {
		errs = append(errs, "scope is required")
	}
	if len(errs) > 0 {
		return &models.ValidationError{Errors: errs}
	}
	return nil
}
