package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"albumvault/internal/domain/models"
)

type DraftRepository struct {
	mock.Mock
}

func (m *DraftRepository) SaveDraft(ctx context.Context, draft models.Draft) (uuid.UUID, error) {
	args := m.Called(ctx, draft)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func (m *DraftRepository) GetDraft(ctx context.Context, id uuid.UUID) (models.Draft, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(models.Draft), args.Error(1)
}

func (m *DraftRepository) ListAwaitingApproval(ctx context.Context, approver string) ([]models.Draft, error) {
	args := m.Called(ctx, approver)
	return args.Get(0).([]models.Draft), args.Error(1)
}

func (m *DraftRepository) ListByOwner(ctx context.Context, owner string) ([]models.Draft, error) {
	args := m.Called(ctx, owner)
	return args.Get(0).([]models.Draft), args.Error(1)
}

func (m *DraftRepository) Approve(ctx context.Context, id uuid.UUID, approver string) (models.ApprovalResult, error) {
	args := m.Called(ctx, id, approver)
	return args.Get(0).(models.ApprovalResult), args.Error(1)
}

func (m *DraftRepository) Reject(ctx context.Context, id uuid.UUID, approver string) (models.DraftStatus, error) {
	args := m.Called(ctx, id, approver)
	return args.Get(0).(models.DraftStatus), args.Error(1)
}

func (m *DraftRepository) SetContainer(ctx context.Context, id uuid.UUID, containerID, capabilityID string) error {
	args := m.Called(ctx, id, containerID, capabilityID)
	return args.Error(0)
}

func (m *DraftRepository) SetUpload(ctx context.Context, id uuid.UUID, index int, blobID string) error {
	args := m.Called(ctx, id, index, blobID)
	return args.Error(0)
}

func (m *DraftRepository) SavePublishRecords(ctx context.Context, id uuid.UUID, records []models.PublishRecord) error {
	args := m.Called(ctx, id, records)
	return args.Error(0)
}

func (m *DraftRepository) MarkBlobPublished(ctx context.Context, id uuid.UUID, blobID string) (models.PublicationState, error) {
	args := m.Called(ctx, id, blobID)
	return args.Get(0).(models.PublicationState), args.Error(1)
}

type AlbumRepository struct {
	mock.Mock
}

func (m *AlbumRepository) GetAlbum(ctx context.Context, albumID string) (models.Album, error) {
	args := m.Called(ctx, albumID)
	return args.Get(0).(models.Album), args.Error(1)
}

func (m *AlbumRepository) GetAlbumByDraft(ctx context.Context, draftID uuid.UUID) (models.Album, error) {
	args := m.Called(ctx, draftID)
	return args.Get(0).(models.Album), args.Error(1)
}

func (m *AlbumRepository) ListAlbums(ctx context.Context) ([]models.Album, error) {
	args := m.Called(ctx)
	return args.Get(0).([]models.Album), args.Error(1)
}

func (m *AlbumRepository) AddPurchase(ctx context.Context, identity, albumID string) (bool, error) {
	args := m.Called(ctx, identity, albumID)
	return args.Bool(0), args.Error(1)
}

func (m *AlbumRepository) ListPurchased(ctx context.Context, identity string) ([]models.Album, error) {
	args := m.Called(ctx, identity)
	return args.Get(0).([]models.Album), args.Error(1)
}

func (m *AlbumRepository) AddInteraction(ctx context.Context, albumID string, kind models.InteractionKind) (models.Interaction, error) {
	args := m.Called(ctx, albumID, kind)
	return args.Get(0).(models.Interaction), args.Error(1)
}

type ApproverRepository struct {
	mock.Mock
}

func (m *ApproverRepository) Score(ctx context.Context, identity string) (int64, error) {
	args := m.Called(ctx, identity)
	return args.Get(0).(int64), args.Error(1)
}
