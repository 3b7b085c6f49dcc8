package ledger

import (
	"context"
	"crypto/ed25519"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/crypto/blake2b"
)

type container struct {
	id           string
	capabilityID string
	owner        string
	name         string
	price        int64
	blobs        map[string]struct{}
	allowlist    map[string]struct{}
}

// Local is an in-process devnet ledger. Object ids are blake2b-256 derived from the
// signer and a sequence number; transaction digests are ulids.
type Local struct {
	log    *slog.Logger
	signer ed25519.PrivateKey

	mu         sync.RWMutex
	seq        uint64
	containers map[string]*container
	caps       map[string]string // capability id -> container id

	entropyMu sync.Mutex
	entropy   *ulid.MonotonicEntropy
}

func NewLocal(log *slog.Logger, signerSeedHex string) (*Local, error) {
	seed, err := hex.DecodeString(signerSeedHex)
	if err != nil {
		return nil, fmt.Errorf("ledger.NewLocal: decode signer seed: %w", err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("ledger.NewLocal: signer seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}

	return &Local{
		log:        log,
		signer:     ed25519.NewKeyFromSeed(seed),
		containers: make(map[string]*container),
		caps:       make(map[string]string),
		entropy:    ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
	}, nil
}

// PublicKey verifies policy proofs produced by this ledger.
func (l *Local) PublicKey() ed25519.PublicKey {
	return l.signer.Public().(ed25519.PublicKey)
}

func (l *Local) CreateContainer(ctx context.Context, name string, price int64, owner string) (Container, error) {
	const op = "ledger.Local.CreateContainer"

	if err := ctx.Err(); err != nil {
		return Container{}, fmt.Errorf("%s: %w", op, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	c := &container{
		id:           l.nextObjectID("container"),
		capabilityID: l.nextObjectID("cap"),
		owner:        owner,
		name:         name,
		price:        price,
		blobs:        make(map[string]struct{}),
		allowlist:    make(map[string]struct{}),
	}
	l.containers[c.id] = c
	l.caps[c.capabilityID] = c.id

	digest := l.txDigest()

	l.log.Debug("container created",
		slog.String("op", op),
		slog.String("container_id", c.id),
		slog.String("owner", owner),
		slog.String("tx", digest),
	)

	return Container{
		ContainerID:  c.id,
		CapabilityID: c.capabilityID,
		Owner:        owner,
		TxDigest:     digest,
	}, nil
}

func (l *Local) RegisterBlob(ctx context.Context, capabilityID, containerID, blobID string) (string, error) {
	const op = "ledger.Local.RegisterBlob"

	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	c, err := l.controlled(capabilityID, containerID)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	c.blobs[blobID] = struct{}{}

	return l.txDigest(), nil
}

func (l *Local) IsBlobRegistered(ctx context.Context, containerID, blobID string) (bool, error) {
	const op = "ledger.Local.IsBlobRegistered"

	if err := ctx.Err(); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	c, ok := l.containers[containerID]
	if !ok {
		return false, fmt.Errorf("%s: %w", op, ErrObjectNotFound)
	}
	_, ok = c.blobs[blobID]
	return ok, nil
}

func (l *Local) GrantAccess(ctx context.Context, capabilityID, containerID, member string) error {
	const op = "ledger.Local.GrantAccess"

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	c, err := l.controlled(capabilityID, containerID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	c.allowlist[member] = struct{}{}

	return nil
}

// DryRunPolicyCheck evaluates the access predicate: owner or allowlisted member.
func (l *Local) DryRunPolicyCheck(ctx context.Context, scope, caller string) (PolicyProof, error) {
	const op = "ledger.Local.DryRunPolicyCheck"

	if err := ctx.Err(); err != nil {
		return PolicyProof{}, fmt.Errorf("%s: %w", op, err)
	}

	l.mu.RLock()
	c, ok := l.containers[scope]
	approved := false
	if ok {
		_, member := c.allowlist[caller]
		approved = c.owner == caller || member
	}
	l.mu.RUnlock()

	if !ok {
		return PolicyProof{}, fmt.Errorf("%s: %w", op, ErrObjectNotFound)
	}

	txBytes := PolicyCheckBytes(scope, caller, approved)

	return PolicyProof{
		Scope:     scope,
		Caller:    caller,
		TxBytes:   txBytes,
		Approved:  approved,
		Signature: ed25519.Sign(l.signer, txBytes),
	}, nil
}

// PolicyCheckBytes is the canonical payload of a policy-check call.
func PolicyCheckBytes(scope, caller string, approved bool) []byte {
	return []byte(fmt.Sprintf("seal_approve|%s|%s|%t", scope, caller, approved))
}

func (l *Local) controlled(capabilityID, containerID string) (*container, error) {
	c, ok := l.containers[containerID]
	if !ok {
		return nil, ErrObjectNotFound
	}
	if l.caps[capabilityID] != containerID {
		return nil, ErrCapabilityDenied
	}
	return c, nil
}

// nextObjectID must be called with mu held.
func (l *Local) nextObjectID(kind string) string {
	l.seq++

	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], l.seq)

	h, _ := blake2b.New256(nil)
	h.Write(l.PublicKey())
	h.Write([]byte(kind))
	h.Write(buf[:])

	return "0x" + hex.EncodeToString(h.Sum(nil))
}

func (l *Local) txDigest() string {
	l.entropyMu.Lock()
	defer l.entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), l.entropy).String()
}
