package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"albumvault/internal/lib/wallet"
)

var (
	ErrNoChallenge = errors.New("no pending challenge for address")
	ErrThrottled   = errors.New("too many signature submissions")
)

const (
	challengePrefix = "wallet:challenge:"
	signaturePrefix = "wallet:signature:"
)

// WalletRelay передаёт challenge кошельку и ждёт подписанный ответ.
// Сервер публикует challenge, кошелёк читает его и возвращает подпись.
type WalletRelay struct {
	client goredis.Cmdable
	ttl    time.Duration
	poll   time.Duration

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

func NewWalletRelay(client goredis.Cmdable, challengeTTL time.Duration) *WalletRelay {
	return &WalletRelay{
		client:   client,
		ttl:      challengeTTL,
		poll:     5 * time.Second,
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Every(time.Second),
		burst:    3,
	}
}

func challengeKey(address string) string {
	return challengePrefix + address
}

func signatureKey(address string) string {
	return signaturePrefix + address
}

// RequestSignature блокируется до подписи кошельком или отмены ctx.
// Одновременно для адреса может ждать только один challenge.
func (r *WalletRelay) RequestSignature(ctx context.Context, address, message string) (wallet.Signature, error) {
	const op = "storage.redis.WalletRelay.RequestSignature"

	// старые подписи от прошлых челленджей не должны подойти к новому
	if err := r.client.Del(ctx, signatureKey(address)).Err(); err != nil {
		return wallet.Signature{}, fmt.Errorf("%s: %w", op, err)
	}
	if err := r.client.Set(ctx, challengeKey(address), message, r.ttl).Err(); err != nil {
		return wallet.Signature{}, fmt.Errorf("%s: %w", op, err)
	}
	defer r.client.Del(context.WithoutCancel(ctx), challengeKey(address))

	for {
		res, err := r.client.BLPop(ctx, r.poll, signatureKey(address)).Result()
		switch {
		case ctx.Err() != nil:
			return wallet.Signature{}, fmt.Errorf("%s: %w", op, ctx.Err())
		case errors.Is(err, goredis.Nil):
			continue
		case err != nil:
			return wallet.Signature{}, fmt.Errorf("%s: %w", op, err)
		}

		if len(res) != 2 {
			return wallet.Signature{}, fmt.Errorf("%s: unexpected BLPOP reply %v", op, res)
		}

		sig, err := wallet.ParseSignature(res[1])
		if err != nil {
			return wallet.Signature{}, fmt.Errorf("%s: %w", op, err)
		}

		return sig, nil
	}
}

func (r *WalletRelay) Challenge(ctx context.Context, address string) (string, error) {
	const op = "storage.redis.WalletRelay.Challenge"

	msg, err := r.client.Get(ctx, challengeKey(address)).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return "", fmt.Errorf("%s: %w", op, ErrNoChallenge)
		}
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return msg, nil
}

// SubmitSignature кладёт подпись в очередь, только если она сделана ключом address
// над текущим challenge. Чужая подпись не должна сорвать ожидание владельца.
func (r *WalletRelay) SubmitSignature(ctx context.Context, address string, sig wallet.Signature) error {
	const op = "storage.redis.WalletRelay.SubmitSignature"

	if !r.limiter(address).Allow() {
		return fmt.Errorf("%s: %w", op, ErrThrottled)
	}

	msg, err := r.client.Get(ctx, challengeKey(address)).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return fmt.Errorf("%s: %w", op, ErrNoChallenge)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := wallet.Verify(address, msg, sig); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := r.client.RPush(ctx, signatureKey(address), sig.Encode()).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := r.client.Expire(ctx, signatureKey(address), r.ttl).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *WalletRelay) limiter(address string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.limiters[address]
	if !ok {
		l = rate.NewLimiter(r.limit, r.burst)
		r.limiters[address] = l
	}
	return l
}
