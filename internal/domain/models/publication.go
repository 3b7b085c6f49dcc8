package models

type PublicationKind string

const (
	PublicationPending   PublicationKind = "pending"
	PublicationFinalized PublicationKind = "finalized"
)

// PublicationState is returned by every confirmation so callers never poll blindly.
type PublicationState struct {
	Kind      PublicationKind `json:"kind"`
	Remaining int             `json:"remaining"`
	Total     int             `json:"total"`
	AlbumID   string          `json:"album_id,omitempty"`
}

func Finalized(albumID string, total int) PublicationState {
	return PublicationState{Kind: PublicationFinalized, Total: total, AlbumID: albumID}
}

// WalletProof is the client-observed outcome of the owner's registration transaction.
type WalletProof string

const (
	WalletApproved WalletProof = "approved"
	WalletRejected WalletProof = "rejected"
	WalletFailed   WalletProof = "failed"
)

type ApprovalResult struct {
	Status DraftStatus `json:"status"`
	// Scored is false when this approver had already been credited for the draft.
	Scored bool `json:"scored"`
}

// UploadReport describes the outcome of one encryption/upload pass.
type UploadReport struct {
	ContainerID  string          `json:"container_id"`
	CapabilityID string          `json:"capability_id"`
	Uploaded     int             `json:"uploaded"`
	Total        int             `json:"total"`
	Failures     []ItemFailure   `json:"failures,omitempty"`
	Records      []PublishRecord `json:"publish_records,omitempty"`
}

// Complete is true once publish records have been persisted.
func (r UploadReport) Complete() bool {
	return len(r.Records) > 0
}
