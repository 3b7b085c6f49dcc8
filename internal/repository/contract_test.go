package repository_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"albumvault/internal/domain/models"
	"albumvault/internal/repository"
	"albumvault/internal/storage"
)

func newDraft(owner string, items int) models.Draft {
	content := make([][]byte, items)
	for i := range content {
		content[i] = []byte(gofakeit.Sentence(5))
	}

	return models.NewDraft(
		owner,
		gofakeit.BookTitle(),
		models.TierPremium,
		int64(gofakeit.Number(1, 1000)),
		gofakeit.Sentence(8),
		[]string{"art", "film"},
		[]string{gofakeit.URL()},
		content,
	)
}

// startedDraft saves an approved draft with a container and all uploads recorded.
func startedDraft(t *testing.T, repo *repository.Repository, items int) models.Draft {
	t.Helper()
	ctx := context.Background()

	d := newDraft("0x"+gofakeit.LetterN(8), items)
	_, err := repo.Drafts.SaveDraft(ctx, d)
	require.NoError(t, err)

	_, err = repo.Drafts.Approve(ctx, d.ID, "0xapprover")
	require.NoError(t, err)

	containerID := "0x" + gofakeit.LetterN(16)
	require.NoError(t, repo.Drafts.SetContainer(ctx, d.ID, containerID, "0xcap"+gofakeit.LetterN(4)))

	records := make([]models.PublishRecord, items)
	for i := 0; i < items; i++ {
		blobID := fmt.Sprintf("sha256:%064d", i+1)
		require.NoError(t, repo.Drafts.SetUpload(ctx, d.ID, i, blobID))
		records[i] = models.PublishRecord{BlobID: blobID}
	}
	require.NoError(t, repo.Drafts.SavePublishRecords(ctx, d.ID, records))

	got, err := repo.Drafts.GetDraft(ctx, d.ID)
	require.NoError(t, err)
	return got
}

func runStoreContract(t *testing.T, newRepo func(t *testing.T) *repository.Repository) {
	ctx := context.Background()

	t.Run("save and get draft", func(t *testing.T) {
		repo := newRepo(t)
		d := newDraft("0xowner", 2)

		id, err := repo.Drafts.SaveDraft(ctx, d)
		require.NoError(t, err)
		assert.Equal(t, d.ID, id)

		got, err := repo.Drafts.GetDraft(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, d.Name, got.Name)
		assert.Equal(t, models.DraftStatusPendingApproval, got.Status)
		assert.Equal(t, d.ContentItems, got.ContentItems)
		assert.Len(t, got.Uploads, 2)
		assert.Empty(t, got.PublishRecords)
		assert.False(t, got.Started())
	})

	t.Run("get unknown draft", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.Drafts.GetDraft(ctx, uuid.New())
		assert.ErrorIs(t, err, storage.ErrDraftNotFound)
	})

	t.Run("awaiting approval excludes own drafts", func(t *testing.T) {
		repo := newRepo(t)
		alice := "0x" + gofakeit.LetterN(10)
		mine := newDraft(alice, 1)
		theirs := newDraft("0x"+gofakeit.LetterN(10), 1)
		_, err := repo.Drafts.SaveDraft(ctx, mine)
		require.NoError(t, err)
		_, err = repo.Drafts.SaveDraft(ctx, theirs)
		require.NoError(t, err)

		list, err := repo.Drafts.ListAwaitingApproval(ctx, alice)
		require.NoError(t, err)
		assert.True(t, containsDraft(list, theirs.ID))
		assert.False(t, containsDraft(list, mine.ID))

		owned, err := repo.Drafts.ListByOwner(ctx, alice)
		require.NoError(t, err)
		require.Len(t, owned, 1)
		assert.Equal(t, mine.ID, owned[0].ID)
	})

	t.Run("approve credits score once per approver", func(t *testing.T) {
		repo := newRepo(t)
		approver := "0x" + gofakeit.LetterN(10)
		d := newDraft("0xowner", 1)
		_, err := repo.Drafts.SaveDraft(ctx, d)
		require.NoError(t, err)

		score, err := repo.Approvers.Score(ctx, approver)
		require.NoError(t, err)
		assert.Zero(t, score)

		res, err := repo.Drafts.Approve(ctx, d.ID, approver)
		require.NoError(t, err)
		assert.True(t, res.Scored)

		res, err = repo.Drafts.Approve(ctx, d.ID, approver)
		require.NoError(t, err)
		assert.False(t, res.Scored)
		assert.Equal(t, models.DraftStatusApproved, res.Status)

		score, err = repo.Approvers.Score(ctx, approver)
		require.NoError(t, err)
		assert.Equal(t, int64(1), score)

		list, err := repo.Drafts.ListAwaitingApproval(ctx, "0xsomeone")
		require.NoError(t, err)
		assert.False(t, containsDraft(list, d.ID))
	})

	t.Run("approve and reject transitions", func(t *testing.T) {
		repo := newRepo(t)
		d := newDraft("0xowner", 1)
		_, err := repo.Drafts.SaveDraft(ctx, d)
		require.NoError(t, err)

		_, err = repo.Drafts.Approve(ctx, d.ID, "0xowner")
		assert.ErrorIs(t, err, storage.ErrSelfApproval)

		status, err := repo.Drafts.Reject(ctx, d.ID, "0xapprover")
		require.NoError(t, err)
		assert.Equal(t, models.DraftStatusRejected, status)

		status, err = repo.Drafts.Reject(ctx, d.ID, "0xapprover")
		require.NoError(t, err)
		assert.Equal(t, models.DraftStatusRejected, status)

		_, err = repo.Drafts.Approve(ctx, d.ID, "0xapprover")
		assert.ErrorIs(t, err, storage.ErrInvalidStatus)

		_, err = repo.Drafts.Approve(ctx, uuid.New(), "0xapprover")
		assert.ErrorIs(t, err, storage.ErrDraftNotFound)
	})

	t.Run("container is set once and only on approved drafts", func(t *testing.T) {
		repo := newRepo(t)
		d := newDraft("0xowner", 1)
		_, err := repo.Drafts.SaveDraft(ctx, d)
		require.NoError(t, err)

		err = repo.Drafts.SetContainer(ctx, d.ID, "0xc1", "0xcap1")
		assert.ErrorIs(t, err, storage.ErrInvalidStatus)

		_, err = repo.Drafts.Approve(ctx, d.ID, "0xapprover")
		require.NoError(t, err)

		require.NoError(t, repo.Drafts.SetContainer(ctx, d.ID, "0xc1", "0xcap1"))
		err = repo.Drafts.SetContainer(ctx, d.ID, "0xc2", "0xcap2")
		assert.ErrorIs(t, err, storage.ErrAlreadyStarted)

		got, err := repo.Drafts.GetDraft(ctx, d.ID)
		require.NoError(t, err)
		assert.Equal(t, "0xc1", got.ContainerID)
		assert.Equal(t, "0xcap1", got.CapabilityID)
	})

	t.Run("publish records require every upload", func(t *testing.T) {
		repo := newRepo(t)
		d := newDraft("0xowner", 2)
		_, err := repo.Drafts.SaveDraft(ctx, d)
		require.NoError(t, err)

		err = repo.Drafts.SetUpload(ctx, d.ID, 0, "sha256:a")
		assert.ErrorIs(t, err, storage.ErrNotStarted)

		_, err = repo.Drafts.Approve(ctx, d.ID, "0xapprover")
		require.NoError(t, err)
		require.NoError(t, repo.Drafts.SetContainer(ctx, d.ID, "0xc", "0xcap"))
		require.NoError(t, repo.Drafts.SetUpload(ctx, d.ID, 1, "sha256:b"))

		records := []models.PublishRecord{{BlobID: "sha256:a"}, {BlobID: "sha256:b"}}
		err = repo.Drafts.SavePublishRecords(ctx, d.ID, records)
		assert.ErrorIs(t, err, storage.ErrUploadIncomplete)

		got, err := repo.Drafts.GetDraft(ctx, d.ID)
		require.NoError(t, err)
		assert.Equal(t, []int{0}, got.MissingUploads())

		require.NoError(t, repo.Drafts.SetUpload(ctx, d.ID, 0, "sha256:a"))
		require.NoError(t, repo.Drafts.SavePublishRecords(ctx, d.ID, records))

		err = repo.Drafts.SavePublishRecords(ctx, d.ID, records)
		assert.ErrorIs(t, err, storage.ErrRecordsExist)
		err = repo.Drafts.SetUpload(ctx, d.ID, 0, "sha256:c")
		assert.ErrorIs(t, err, storage.ErrRecordsExist)
	})

	t.Run("confirmations finalize exactly once", func(t *testing.T) {
		repo := newRepo(t)
		d := startedDraft(t, repo, 2)

		state, err := repo.Drafts.MarkBlobPublished(ctx, d.ID, d.PublishRecords[0].BlobID)
		require.NoError(t, err)
		assert.Equal(t, models.PublicationState{Kind: models.PublicationPending, Remaining: 1, Total: 2}, state)

		state, err = repo.Drafts.MarkBlobPublished(ctx, d.ID, d.PublishRecords[0].BlobID)
		require.NoError(t, err)
		assert.Equal(t, 1, state.Remaining)

		_, err = repo.Drafts.MarkBlobPublished(ctx, d.ID, "sha256:unknown")
		assert.ErrorIs(t, err, storage.ErrRecordNotFound)

		state, err = repo.Drafts.MarkBlobPublished(ctx, d.ID, d.PublishRecords[1].BlobID)
		require.NoError(t, err)
		assert.Equal(t, models.PublicationFinalized, state.Kind)
		assert.Equal(t, d.ContainerID, state.AlbumID)

		_, err = repo.Drafts.GetDraft(ctx, d.ID)
		assert.ErrorIs(t, err, storage.ErrDraftNotFound)

		album, err := repo.Albums.GetAlbum(ctx, d.ContainerID)
		require.NoError(t, err)
		assert.Equal(t, []string{d.PublishRecords[0].BlobID, d.PublishRecords[1].BlobID}, album.BlobIDs)
		assert.Equal(t, d.Owner, album.Owner)

		byDraft, err := repo.Albums.GetAlbumByDraft(ctx, d.ID)
		require.NoError(t, err)
		assert.Equal(t, album.AlbumID, byDraft.AlbumID)

		_, err = repo.Drafts.MarkBlobPublished(ctx, d.ID, d.PublishRecords[1].BlobID)
		assert.ErrorIs(t, err, storage.ErrDraftNotFound)
	})

	t.Run("concurrent confirmations finalize once", func(t *testing.T) {
		repo := newRepo(t)
		d := startedDraft(t, repo, 3)

		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			finalized int
		)
		for _, rec := range d.PublishRecords {
			for j := 0; j < 2; j++ {
				wg.Add(1)
				go func(blobID string) {
					defer wg.Done()
					state, err := repo.Drafts.MarkBlobPublished(ctx, d.ID, blobID)
					if err != nil {
						return
					}
					if state.Kind == models.PublicationFinalized {
						mu.Lock()
						finalized++
						mu.Unlock()
					}
				}(rec.BlobID)
			}
		}
		wg.Wait()

		assert.Equal(t, 1, finalized)
		album, err := repo.Albums.GetAlbum(ctx, d.ContainerID)
		require.NoError(t, err)
		assert.Len(t, album.BlobIDs, 3)
	})

	t.Run("purchases and interactions", func(t *testing.T) {
		repo := newRepo(t)
		d := startedDraft(t, repo, 1)
		_, err := repo.Drafts.MarkBlobPublished(ctx, d.ID, d.PublishRecords[0].BlobID)
		require.NoError(t, err)

		fan := "0x" + gofakeit.LetterN(10)
		added, err := repo.Albums.AddPurchase(ctx, fan, d.ContainerID)
		require.NoError(t, err)
		assert.True(t, added)

		added, err = repo.Albums.AddPurchase(ctx, fan, d.ContainerID)
		require.NoError(t, err)
		assert.False(t, added)

		_, err = repo.Albums.AddPurchase(ctx, fan, "0xmissing")
		assert.ErrorIs(t, err, storage.ErrAlbumNotFound)

		purchased, err := repo.Albums.ListPurchased(ctx, fan)
		require.NoError(t, err)
		require.Len(t, purchased, 1)
		assert.Equal(t, d.ContainerID, purchased[0].AlbumID)

		_, err = repo.Albums.AddInteraction(ctx, d.ContainerID, models.InteractionLike)
		require.NoError(t, err)
		in, err := repo.Albums.AddInteraction(ctx, d.ContainerID, models.InteractionLike)
		require.NoError(t, err)
		assert.Equal(t, models.Interaction{Likes: 2}, in)

		_, err = repo.Albums.AddInteraction(ctx, "0xmissing", models.InteractionSave)
		assert.ErrorIs(t, err, storage.ErrAlbumNotFound)

		all, err := repo.Albums.ListAlbums(ctx)
		require.NoError(t, err)
		found := false
		for _, a := range all {
			found = found || a.AlbumID == d.ContainerID
		}
		assert.True(t, found)
	})
}

func containsDraft(drafts []models.Draft, id uuid.UUID) bool {
	for _, d := range drafts {
		if d.ID == id {
			return true
		}
	}
	return false
}
