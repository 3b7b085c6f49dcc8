package repository

import (
	"context"

	"github.com/google/uuid"

	"albumvault/internal/domain/models"
)

type DraftRepository interface {
	SaveDraft(ctx context.Context, draft models.Draft) (uuid.UUID, error)
	GetDraft(ctx context.Context, id uuid.UUID) (models.Draft, error)
	// ListAwaitingApproval excludes drafts owned by approver.
	ListAwaitingApproval(ctx context.Context, approver string) ([]models.Draft, error)
	ListByOwner(ctx context.Context, owner string) ([]models.Draft, error)
	Approve(ctx context.Context, id uuid.UUID, approver string) (models.ApprovalResult, error)
	Reject(ctx context.Context, id uuid.UUID, approver string) (models.DraftStatus, error)

	// SetContainer succeeds only once per draft (compare-and-set on an unset container).
	SetContainer(ctx context.Context, id uuid.UUID, containerID, capabilityID string) error
	SetUpload(ctx context.Context, id uuid.UUID, index int, blobID string) error
	SavePublishRecords(ctx context.Context, id uuid.UUID, records []models.PublishRecord) error
	// MarkBlobPublished flips one record and, when it was the last one, creates the album
	// and deletes the draft in the same transaction.
	MarkBlobPublished(ctx context.Context, id uuid.UUID, blobID string) (models.PublicationState, error)
}

type AlbumRepository interface {
	GetAlbum(ctx context.Context, albumID string) (models.Album, error)
	GetAlbumByDraft(ctx context.Context, draftID uuid.UUID) (models.Album, error)
	ListAlbums(ctx context.Context) ([]models.Album, error)
	AddPurchase(ctx context.Context, identity, albumID string) (bool, error)
	ListPurchased(ctx context.Context, identity string) ([]models.Album, error)
	AddInteraction(ctx context.Context, albumID string, kind models.InteractionKind) (models.Interaction, error)
}

type ApproverRepository interface {
	Score(ctx context.Context, identity string) (int64, error)
}
