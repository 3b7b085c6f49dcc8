// Package ledger describes the on-chain collaborator: access-controlled album containers,
// owner capabilities, per-blob registration and the read-only policy check that gates decryption.
package ledger

import (
	"context"
	"errors"
)

var (
	ErrObjectNotFound   = errors.New("ledger object not found")
	ErrCapabilityDenied = errors.New("capability does not control container")
)

// Container is the result of the server-signed container creation transaction.
type Container struct {
	ContainerID  string `json:"container_id"`
	CapabilityID string `json:"capability_id"`
	Owner        string `json:"owner"`
	TxDigest     string `json:"tx_digest"`
}

// PolicyProof is the outcome of a dry-run policy check. It is never committed.
type PolicyProof struct {
	Scope     string `json:"scope"`
	Caller    string `json:"caller"`
	TxBytes   []byte `json:"tx_bytes"`
	Approved  bool   `json:"approved"`
	Signature []byte `json:"signature"`
}

type Ledger interface {
	CreateContainer(ctx context.Context, name string, price int64, owner string) (Container, error)
	RegisterBlob(ctx context.Context, capabilityID, containerID, blobID string) (string, error)
	IsBlobRegistered(ctx context.Context, containerID, blobID string) (bool, error)
	GrantAccess(ctx context.Context, capabilityID, containerID, member string) error
	DryRunPolicyCheck(ctx context.Context, scope, caller string) (PolicyProof, error)
}
