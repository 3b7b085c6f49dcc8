package dto

import "github.com/google/uuid"

type PublishRequest struct {
	ID uuid.UUID `json:"id" validate:"required"`
}

// ConfirmBlobRequest carries the client-observed result of the owner's registration transaction.
// An empty proof means approved.
type ConfirmBlobRequest struct {
	Proof string `json:"proof" validate:"omitempty,oneof=approved rejected failed"`
}

type RegisterBlobRequest struct {
	CapabilityID string `json:"capability_id" validate:"required"`
	ContainerID  string `json:"container_id" validate:"required"`
	BlobID       string `json:"blob_id" validate:"required"`
}

type RegisterBlobResponse struct {
	TxDigest string `json:"tx_digest"`
}
