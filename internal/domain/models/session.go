package models

import (
	"fmt"
	"time"
)

type SessionKeyState string

const (
	SessionAwaitingSignature SessionKeyState = "awaiting_signature"
	SessionActive            SessionKeyState = "active"
	SessionExpired           SessionKeyState = "expired"
)

// SessionKey is a short-lived wallet-signed credential. It lives only in process memory.
type SessionKey struct {
	Address     string    `json:"address"`
	PolicyScope string    `json:"policy_scope"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	Challenge   string    `json:"challenge"`
	PublicKey   []byte    `json:"-"`
	Signature   []byte    `json:"-"`
}

// ChallengeMessage is the canonical text the holder's wallet signs.
func (k *SessionKey) ChallengeMessage() string {
	return fmt.Sprintf(
		"Accessing keys of package %s for %d mins from %s, session key %s",
		k.PolicyScope,
		int(k.ExpiresAt.Sub(k.CreatedAt).Minutes()),
		k.CreatedAt.UTC().Format("2006-01-02 15:04:05 UTC"),
		k.Address,
	)
}

func (k *SessionKey) State(now time.Time) SessionKeyState {
	switch {
	case len(k.Signature) == 0:
		return SessionAwaitingSignature
	case !now.Before(k.ExpiresAt):
		return SessionExpired
	default:
		return SessionActive
	}
}

// UsableFor reports whether the key may authorise a decrypt for scope at now.
func (k *SessionKey) UsableFor(scope string, now time.Time) bool {
	return k != nil && k.PolicyScope == scope && k.State(now) == SessionActive
}

// DecryptedItem carries one result of a batch decrypt. Err is set instead of Data on failure.
type DecryptedItem struct {
	BlobID string `json:"blob_id"`
	Data   []byte `json:"data,omitempty"`
	Err    error  `json:"-"`
}

type DecryptReport struct {
	Items []DecryptedItem `json:"items"`
}

func (r DecryptReport) Failed() int {
	n := 0
	for _, it := range r.Items {
		if it.Err != nil {
			n++
		}
	}
	return n
}
