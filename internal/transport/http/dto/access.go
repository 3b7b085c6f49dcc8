package dto

import "time"

type SessionKeyRequest struct {
	Address    string `json:"address" validate:"required"`
	Scope      string `json:"scope" validate:"required"`
	TTLMinutes int    `json:"ttl_minutes" validate:"omitempty,min=1,max=60"`
}

type SessionKeyResponse struct {
	Token     string    `json:"token"`
	Address   string    `json:"address"`
	Scope     string    `json:"scope"`
	ExpiresAt time.Time `json:"expires_at"`
}

type ChallengeResponse struct {
	Address string `json:"address"`
	Message string `json:"message"`
}

// SignatureRequest ответ кошелька: ed25519 ключ адреса и подпись challenge, оба в hex.
type SignatureRequest struct {
	PublicKey string `json:"public_key" validate:"required,hexadecimal"`
	Signature string `json:"signature" validate:"required,hexadecimal"`
}

type DecryptRequest struct {
	Token   string   `json:"token" validate:"required"`
	Scope   string   `json:"scope" validate:"required"`
	BlobIDs []string `json:"blob_ids" validate:"required,min=1,dive,required"`
}

type DecryptedItemResponse struct {
	BlobID string `json:"blob_id"`
	Data   []byte `json:"data,omitempty"`
	Error  string `json:"error,omitempty"`
}

type DecryptResponse struct {
	Items  []DecryptedItemResponse `json:"items"`
	Failed int                     `json:"failed"`
}
