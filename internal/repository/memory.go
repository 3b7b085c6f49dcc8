package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"albumvault/internal/domain/models"
	"albumvault/internal/storage"
)

type approvalKey struct {
	draftID  uuid.UUID
	approver string
}

type purchase struct {
	albumID string
	at      time.Time
}

// MemoryStore keeps drafts, albums, purchases and scores in process memory.
// A single mutex serialises writes, which gives the same guarantees as the row lock in Postgres.
type MemoryStore struct {
	mu sync.RWMutex

	drafts       map[uuid.UUID]models.Draft
	albums       map[string]models.Album
	albumByDraft map[uuid.UUID]string
	purchases    map[string][]purchase
	scores       map[string]int64
	approvals    map[approvalKey]struct{}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		drafts:       make(map[uuid.UUID]models.Draft),
		albums:       make(map[string]models.Album),
		albumByDraft: make(map[uuid.UUID]string),
		purchases:    make(map[string][]purchase),
		scores:       make(map[string]int64),
		approvals:    make(map[approvalKey]struct{}),
	}
}

func (m *MemoryStore) SaveDraft(ctx context.Context, d models.Draft) (uuid.UUID, error) {
	const op = "repository.MemoryStore.SaveDraft"

	if err := ctx.Err(); err != nil {
		return uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.drafts[d.ID]; ok {
		return uuid.Nil, fmt.Errorf("%s: draft %s already exists", op, d.ID)
	}
	m.drafts[d.ID] = d.Clone()

	return d.ID, nil
}

func (m *MemoryStore) GetDraft(ctx context.Context, id uuid.UUID) (models.Draft, error) {
	const op = "repository.MemoryStore.GetDraft"

	m.mu.RLock()
	defer m.mu.RUnlock()

	d, ok := m.drafts[id]
	if !ok {
		return models.Draft{}, fmt.Errorf("%s: %w", op, storage.ErrDraftNotFound)
	}

	return d.Clone(), nil
}

func (m *MemoryStore) ListAwaitingApproval(ctx context.Context, approver string) ([]models.Draft, error) {
	return m.listDrafts(func(d models.Draft) bool {
		return d.Status.Awaiting() && d.Owner != approver
	}), nil
}

func (m *MemoryStore) ListByOwner(ctx context.Context, owner string) ([]models.Draft, error) {
	return m.listDrafts(func(d models.Draft) bool {
		return d.Owner == owner
	}), nil
}

func (m *MemoryStore) Approve(ctx context.Context, id uuid.UUID, approver string) (models.ApprovalResult, error) {
	const op = "repository.MemoryStore.Approve"

	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.drafts[id]
	if !ok {
		return models.ApprovalResult{}, fmt.Errorf("%s: %w", op, storage.ErrDraftNotFound)
	}
	if d.Owner == approver {
		return models.ApprovalResult{}, fmt.Errorf("%s: %w", op, storage.ErrSelfApproval)
	}
	if d.Status == models.DraftStatusRejected {
		return models.ApprovalResult{}, fmt.Errorf("%s: %w", op, storage.ErrInvalidStatus)
	}

	d.Status = models.DraftStatusApproved
	m.drafts[id] = d

	key := approvalKey{draftID: id, approver: approver}
	_, seen := m.approvals[key]
	if !seen {
		m.approvals[key] = struct{}{}
		m.scores[approver]++
	}

	return models.ApprovalResult{Status: models.DraftStatusApproved, Scored: !seen}, nil
}

func (m *MemoryStore) Reject(ctx context.Context, id uuid.UUID, approver string) (models.DraftStatus, error) {
	const op = "repository.MemoryStore.Reject"

	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.drafts[id]
	if !ok {
		return "", fmt.Errorf("%s: %w", op, storage.ErrDraftNotFound)
	}
	if d.Owner == approver {
		return "", fmt.Errorf("%s: %w", op, storage.ErrSelfApproval)
	}
	if d.Status == models.DraftStatusApproved {
		return "", fmt.Errorf("%s: %w", op, storage.ErrInvalidStatus)
	}

	d.Status = models.DraftStatusRejected
	m.drafts[id] = d

	return d.Status, nil
}

func (m *MemoryStore) SetContainer(ctx context.Context, id uuid.UUID, containerID, capabilityID string) error {
	const op = "repository.MemoryStore.SetContainer"

	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.drafts[id]
	if !ok {
		return fmt.Errorf("%s: %w", op, storage.ErrDraftNotFound)
	}
	if d.Status != models.DraftStatusApproved {
		return fmt.Errorf("%s: %w", op, storage.ErrInvalidStatus)
	}
	if d.Started() {
		return fmt.Errorf("%s: %w", op, storage.ErrAlreadyStarted)
	}

	d.ContainerID = containerID
	d.CapabilityID = capabilityID
	m.drafts[id] = d

	return nil
}

func (m *MemoryStore) SetUpload(ctx context.Context, id uuid.UUID, index int, blobID string) error {
	const op = "repository.MemoryStore.SetUpload"

	m.mu.Lock()
	defer m.mu.Unlock()

	d, err := m.startedDraft(id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if len(d.PublishRecords) > 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrRecordsExist)
	}
	if index < 0 || index >= len(d.ContentItems) {
		return fmt.Errorf("%s: content index %d out of range", op, index)
	}

	uploads := make([]string, len(d.ContentItems))
	copy(uploads, d.Uploads)
	uploads[index] = blobID
	d.Uploads = uploads
	m.drafts[id] = d

	return nil
}

func (m *MemoryStore) SavePublishRecords(ctx context.Context, id uuid.UUID, records []models.PublishRecord) error {
	const op = "repository.MemoryStore.SavePublishRecords"

	m.mu.Lock()
	defer m.mu.Unlock()

	d, err := m.startedDraft(id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if len(d.PublishRecords) > 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrRecordsExist)
	}
	if len(records) == 0 || len(records) != len(d.ContentItems) || len(d.MissingUploads()) > 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrUploadIncomplete)
	}

	d.PublishRecords = append([]models.PublishRecord(nil), records...)
	m.drafts[id] = d

	return nil
}

func (m *MemoryStore) MarkBlobPublished(ctx context.Context, id uuid.UUID, blobID string) (models.PublicationState, error) {
	const op = "repository.MemoryStore.MarkBlobPublished"

	m.mu.Lock()
	defer m.mu.Unlock()

	d, err := m.startedDraft(id)
	if err != nil {
		return models.PublicationState{}, fmt.Errorf("%s: %w", op, err)
	}
	if len(d.PublishRecords) == 0 {
		return models.PublicationState{}, fmt.Errorf("%s: %w", op, storage.ErrUploadIncomplete)
	}

	d = d.Clone()
	if _, found := d.MarkPublished(blobID); !found {
		return models.PublicationState{}, fmt.Errorf("%s: %w", op, storage.ErrRecordNotFound)
	}

	if !d.FullyPublished() {
		m.drafts[id] = d
		return d.State(), nil
	}

	album, err := models.NewAlbumFromDraft(d)
	if err != nil {
		return models.PublicationState{}, fmt.Errorf("%s: %w", op, err)
	}
	if _, ok := m.albums[album.AlbumID]; ok {
		return models.PublicationState{}, fmt.Errorf("%s: album %s already exists", op, album.AlbumID)
	}

	m.albums[album.AlbumID] = album
	m.albumByDraft[id] = album.AlbumID
	delete(m.drafts, id)

	return models.Finalized(album.AlbumID, len(album.BlobIDs)), nil
}

func (m *MemoryStore) GetAlbum(ctx context.Context, albumID string) (models.Album, error) {
	const op = "repository.MemoryStore.GetAlbum"

	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.albums[albumID]
	if !ok {
		return models.Album{}, fmt.Errorf("%s: %w", op, storage.ErrAlbumNotFound)
	}

	return cloneAlbum(a), nil
}

func (m *MemoryStore) GetAlbumByDraft(ctx context.Context, draftID uuid.UUID) (models.Album, error) {
	const op = "repository.MemoryStore.GetAlbumByDraft"

	m.mu.RLock()
	defer m.mu.RUnlock()

	albumID, ok := m.albumByDraft[draftID]
	if !ok {
		return models.Album{}, fmt.Errorf("%s: %w", op, storage.ErrAlbumNotFound)
	}

	return cloneAlbum(m.albums[albumID]), nil
}

func (m *MemoryStore) ListAlbums(ctx context.Context) ([]models.Album, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	albums := make([]models.Album, 0, len(m.albums))
	for _, a := range m.albums {
		albums = append(albums, cloneAlbum(a))
	}
	sort.Slice(albums, func(i, j int) bool {
		return albums[i].CreatedAt.After(albums[j].CreatedAt)
	})

	return albums, nil
}

func (m *MemoryStore) AddPurchase(ctx context.Context, identity, albumID string) (bool, error) {
	const op = "repository.MemoryStore.AddPurchase"

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.albums[albumID]; !ok {
		return false, fmt.Errorf("%s: %w", op, storage.ErrAlbumNotFound)
	}
	for _, p := range m.purchases[identity] {
		if p.albumID == albumID {
			return false, nil
		}
	}
	m.purchases[identity] = append(m.purchases[identity], purchase{albumID: albumID, at: time.Now()})

	return true, nil
}

func (m *MemoryStore) ListPurchased(ctx context.Context, identity string) ([]models.Album, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	albums := []models.Album{}
	for _, p := range m.purchases[identity] {
		albums = append(albums, cloneAlbum(m.albums[p.albumID]))
	}

	return albums, nil
}

func (m *MemoryStore) AddInteraction(ctx context.Context, albumID string, kind models.InteractionKind) (models.Interaction, error) {
	const op = "repository.MemoryStore.AddInteraction"

	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.albums[albumID]
	if !ok {
		return models.Interaction{}, fmt.Errorf("%s: %w", op, storage.ErrAlbumNotFound)
	}

	switch kind {
	case models.InteractionLike:
		a.Interaction.Likes++
	case models.InteractionShare:
		a.Interaction.Shares++
	case models.InteractionSave:
		a.Interaction.Saves++
	default:
		return models.Interaction{}, fmt.Errorf("%s: unknown interaction %q", op, kind)
	}
	m.albums[albumID] = a

	return a.Interaction, nil
}

func (m *MemoryStore) Score(ctx context.Context, identity string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.scores[identity], nil
}

func (m *MemoryStore) startedDraft(id uuid.UUID) (models.Draft, error) {
	d, ok := m.drafts[id]
	if !ok {
		return models.Draft{}, storage.ErrDraftNotFound
	}
	if !d.Started() {
		return models.Draft{}, storage.ErrNotStarted
	}
	return d, nil
}

func (m *MemoryStore) listDrafts(match func(models.Draft) bool) []models.Draft {
	m.mu.RLock()
	defer m.mu.RUnlock()

	drafts := []models.Draft{}
	for _, d := range m.drafts {
		if match(d) {
			drafts = append(drafts, d.Clone())
		}
	}
	sort.Slice(drafts, func(i, j int) bool {
		return drafts[i].CreatedAt.Before(drafts[j].CreatedAt)
	})

	return drafts
}

func cloneAlbum(a models.Album) models.Album {
	a.Tags = append([]string{}, a.Tags...)
	a.PreviewItems = append([]string{}, a.PreviewItems...)
	a.BlobIDs = append([]string{}, a.BlobIDs...)
	return a
}
