package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"albumvault/internal/domain/models"
	"albumvault/internal/ledger"
	"albumvault/internal/repository"
	"albumvault/internal/sealing"
	"albumvault/internal/storage"
	"albumvault/internal/storage/blobstore"
)

const testSeed = "9d61b19deffd5a60ba844af492ec2cc44449c5697b326919703bac031cae7f60"

// flakySealer не шифрует перечисленные plaintext
type flakySealer struct {
	sealing.Sealer

	mu    sync.Mutex
	fail  map[string]bool
	calls int
}

func (f *flakySealer) Encrypt(ctx context.Context, policyID string, id []byte, data []byte) ([]byte, error) {
	f.mu.Lock()
	f.calls++
	fail := f.fail[string(data)]
	f.mu.Unlock()

	if fail {
		return nil, errors.New("key server unavailable")
	}
	return f.Sealer.Encrypt(ctx, policyID, id, data)
}

func (f *flakySealer) setFail(items ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = make(map[string]bool)
	for _, it := range items {
		f.fail[it] = true
	}
	f.calls = 0
}

// failingLedger не создаёт контейнеры
type failingLedger struct {
	ledger.Ledger
}

func (failingLedger) CreateContainer(ctx context.Context, name string, price int64, owner string) (ledger.Container, error) {
	return ledger.Container{}, errors.New("rpc timeout")
}

type fixture struct {
	repo    *repository.Repository
	ledger  *ledger.Local
	sealer  *flakySealer
	service *PublicationService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	l, err := ledger.NewLocal(slog.Default(), testSeed)
	require.NoError(t, err)

	blobs, err := blobstore.NewLocalBlobStore(t.TempDir(), 1<<20)
	require.NoError(t, err)

	repo := repository.NewMemoryRepository()
	sealer := &flakySealer{Sealer: sealing.NewLocal("master", l.PublicKey())}

	return &fixture{
		repo:   repo,
		ledger: l,
		sealer: sealer,
		service: NewPublicationService(slog.Default(), repo.Drafts, repo.Albums, l, sealer, blobs, Options{
			Timeout:     time.Second,
			Concurrency: 2,
		}),
	}
}

// approvedDraft подаёт и одобряет заявку с заданным контентом
func (f *fixture) approvedDraft(t *testing.T, items ...string) uuid.UUID {
	t.Helper()
	ctx := context.Background()

	content := make([][]byte, len(items))
	for i, it := range items {
		content[i] = []byte(it)
	}

	d := models.NewDraft("0xowner", "album", models.TierStandard, 10, "", nil, nil, content)
	_, err := f.repo.Drafts.SaveDraft(ctx, d)
	require.NoError(t, err)

	_, err = f.repo.Drafts.Approve(ctx, d.ID, "0xapprover")
	require.NoError(t, err)

	return d.ID
}

// register играет роль кошелька владельца: регистрирует блоб в леджере по capability владельца
func (f *fixture) register(t *testing.T, report models.UploadReport, blobID string) {
	t.Helper()
	_, err := f.ledger.RegisterBlob(context.Background(), report.CapabilityID, report.ContainerID, blobID)
	require.NoError(t, err)
}

func TestBeginPublication_RequiresApproved(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	d := models.NewDraft("0xowner", "album", models.TierStandard, 10, "", nil, nil, [][]byte{[]byte("a")})
	_, err := f.repo.Drafts.SaveDraft(ctx, d)
	require.NoError(t, err)

	_, err = f.service.BeginPublication(ctx, d.ID)
	assert.ErrorIs(t, err, storage.ErrInvalidStatus)

	_, err = f.repo.Drafts.Reject(ctx, d.ID, "0xapprover")
	require.NoError(t, err)
	_, err = f.service.BeginPublication(ctx, d.ID)
	assert.ErrorIs(t, err, storage.ErrInvalidStatus)

	got, err := f.repo.Drafts.GetDraft(ctx, d.ID)
	require.NoError(t, err)
	assert.False(t, got.Started())
	assert.Empty(t, got.PublishRecords)

	_, err = f.service.BeginPublication(ctx, uuid.New())
	assert.ErrorIs(t, err, storage.ErrDraftNotFound)
}

func TestBeginPublication_AlreadyStarted(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.approvedDraft(t, "a", "b")

	report, err := f.service.BeginPublication(ctx, id)
	require.NoError(t, err)
	assert.True(t, report.Complete())
	assert.Equal(t, 2, report.Uploaded)
	require.Len(t, report.Records, 2)
	assert.NotEqual(t, report.Records[0].BlobID, report.Records[1].BlobID)

	_, err = f.service.BeginPublication(ctx, id)
	assert.ErrorIs(t, err, storage.ErrAlreadyStarted)

	got, err := f.repo.Drafts.GetDraft(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, report.ContainerID, got.ContainerID)
}

func TestBeginPublication_LedgerFailureLeavesDraftUnchanged(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.approvedDraft(t, "a")

	f.service.ledger = failingLedger{Ledger: f.ledger}

	_, err := f.service.BeginPublication(ctx, id)
	require.Error(t, err)
	assert.True(t, models.IsCollaboratorError(err))

	got, err := f.repo.Drafts.GetDraft(ctx, id)
	require.NoError(t, err)
	assert.False(t, got.Started())
}

func TestPartialUploadRetry(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.approvedDraft(t, "a", "b", "c")

	f.sealer.setFail("b")

	report, err := f.service.BeginPublication(ctx, id)
	require.Error(t, err)
	assert.True(t, models.IsPartialBatchError(err))
	assert.False(t, report.Complete())
	assert.Equal(t, 2, report.Uploaded)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, 1, report.Failures[0].Index)

	got, err := f.repo.Drafts.GetDraft(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, got.MissingUploads())
	assert.Empty(t, got.PublishRecords)
	firstUploads := append([]string(nil), got.Uploads...)

	f.sealer.setFail()

	report, err = f.service.ResumeUpload(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1, f.sealer.calls, "only the failed item is encrypted again")
	require.Len(t, report.Records, 3)
	assert.Equal(t, firstUploads[0], report.Records[0].BlobID)
	assert.Equal(t, firstUploads[2], report.Records[2].BlobID)

	// повторный resume ничего не загружает
	f.sealer.setFail()
	again, err := f.service.ResumeUpload(ctx, id)
	require.NoError(t, err)
	assert.Zero(t, f.sealer.calls)
	assert.Equal(t, report.Records, again.Records)
}

func TestResumeUpload_NotStarted(t *testing.T) {
	f := newFixture(t)
	id := f.approvedDraft(t, "a")

	_, err := f.service.ResumeUpload(context.Background(), id)
	assert.ErrorIs(t, err, storage.ErrNotStarted)
}

func TestScenarioA(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.approvedDraft(t, "photo-1", "photo-2")

	report, err := f.service.BeginPublication(ctx, id)
	require.NoError(t, err)

	progress, err := f.service.Progress(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.PublicationState{Kind: models.PublicationPending, Remaining: 2, Total: 2}, progress)

	first, second := report.Records[0].BlobID, report.Records[1].BlobID

	f.register(t, report, first)
	state, err := f.service.ConfirmBlobPublished(ctx, id, first, models.WalletApproved)
	require.NoError(t, err)
	assert.Equal(t, models.PublicationPending, state.Kind)
	assert.Equal(t, 1, state.Remaining)

	_, err = f.repo.Drafts.GetDraft(ctx, id)
	require.NoError(t, err)

	f.register(t, report, second)
	state, err = f.service.ConfirmBlobPublished(ctx, id, second, models.WalletApproved)
	require.NoError(t, err)
	assert.Equal(t, models.Finalized(report.ContainerID, 2), state)

	_, err = f.repo.Drafts.GetDraft(ctx, id)
	assert.ErrorIs(t, err, storage.ErrDraftNotFound)

	album, err := f.repo.Albums.GetAlbum(ctx, report.ContainerID)
	require.NoError(t, err)
	assert.Equal(t, []string{first, second}, album.BlobIDs)

	// повторное подтверждение после финализации безвредно
	state, err = f.service.ConfirmBlobPublished(ctx, id, second, models.WalletApproved)
	require.NoError(t, err)
	assert.Equal(t, models.PublicationFinalized, state.Kind)

	progress, err = f.service.Progress(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.PublicationFinalized, progress.Kind)
}

func TestConfirmBlobPublished_Idempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.approvedDraft(t, "a", "b")

	report, err := f.service.BeginPublication(ctx, id)
	require.NoError(t, err)
	blobID := report.Records[0].BlobID
	f.register(t, report, blobID)

	once, err := f.service.ConfirmBlobPublished(ctx, id, blobID, models.WalletApproved)
	require.NoError(t, err)
	twice, err := f.service.ConfirmBlobPublished(ctx, id, blobID, models.WalletApproved)
	require.NoError(t, err)

	assert.Equal(t, once, twice)
}

func TestConfirmBlobPublished_Rejections(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.approvedDraft(t, "a")

	report, err := f.service.BeginPublication(ctx, id)
	require.NoError(t, err)
	blobID := report.Records[0].BlobID

	tests := []struct {
		name    string
		blobID  string
		proof   models.WalletProof
		wantErr error
	}{
		{"wallet rejected", blobID, models.WalletRejected, ErrWalletRejected},
		{"wallet failed", blobID, models.WalletFailed, ErrWalletFailed},
		{"not registered on ledger", blobID, models.WalletApproved, ErrNotRegistered},
		{"unknown blob", "sha256:nope", models.WalletApproved, storage.ErrRecordNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.service.ConfirmBlobPublished(ctx, id, tt.blobID, tt.proof)
			assert.ErrorIs(t, err, tt.wantErr)

			got, err := f.repo.Drafts.GetDraft(ctx, id)
			require.NoError(t, err)
			assert.False(t, got.PublishRecords[0].IsPublished)
		})
	}

	_, err = f.service.ConfirmBlobPublished(ctx, id, blobID, models.WalletProof("maybe"))
	assert.True(t, models.IsValidationError(err))

	_, err = f.service.ConfirmBlobPublished(ctx, uuid.New(), blobID, models.WalletApproved)
	assert.ErrorIs(t, err, storage.ErrDraftNotFound)
}

func permutations(n int) [][]int {
	if n == 1 {
		return [][]int{{0}}
	}
	var res [][]int
	for _, p := range permutations(n - 1) {
		for i := 0; i <= len(p); i++ {
			perm := append([]int{}, p[:i]...)
			perm = append(perm, n-1)
			perm = append(perm, p[i:]...)
			res = append(res, perm)
		}
	}
	return res
}

// Финализация происходит ровно один раз, на подтверждении последнего флага, в любом порядке.
func TestConfirmBlobPublished_AllOrders(t *testing.T) {
	ctx := context.Background()

	for n := 1; n <= 3; n++ {
		for _, order := range permutations(n) {
			t.Run(fmt.Sprintf("n=%d order=%v", n, order), func(t *testing.T) {
				f := newFixture(t)

				items := make([]string, n)
				for i := range items {
					items[i] = fmt.Sprintf("item-%d", i)
				}
				id := f.approvedDraft(t, items...)

				report, err := f.service.BeginPublication(ctx, id)
				require.NoError(t, err)

				finalized := 0
				for step, idx := range order {
					blobID := report.Records[idx].BlobID
					f.register(t, report, blobID)

					state, err := f.service.ConfirmBlobPublished(ctx, id, blobID, models.WalletApproved)
					require.NoError(t, err)

					if step < n-1 {
						assert.Equal(t, models.PublicationPending, state.Kind)
						assert.Equal(t, n-step-1, state.Remaining)
						_, err := f.repo.Drafts.GetDraft(ctx, id)
						require.NoError(t, err)
					} else {
						assert.Equal(t, models.PublicationFinalized, state.Kind)
						finalized++
					}
				}
				assert.Equal(t, 1, finalized)

				album, err := f.repo.Albums.GetAlbum(ctx, report.ContainerID)
				require.NoError(t, err)
				assert.Len(t, album.BlobIDs, n)
			})
		}
	}
}

func TestConfirmBlobPublished_Concurrent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.approvedDraft(t, "a", "b", "c")

	report, err := f.service.BeginPublication(ctx, id)
	require.NoError(t, err)
	for _, rec := range report.Records {
		f.register(t, report, rec.BlobID)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 2*len(report.Records))
	for _, rec := range report.Records {
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func(blobID string) {
				defer wg.Done()
				_, err := f.service.ConfirmBlobPublished(ctx, id, blobID, models.WalletApproved)
				errs <- err
			}(rec.BlobID)
		}
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}

	_, err = f.repo.Drafts.GetDraft(ctx, id)
	assert.ErrorIs(t, err, storage.ErrDraftNotFound)

	albums, err := f.repo.Albums.ListAlbums(ctx)
	require.NoError(t, err)
	require.Len(t, albums, 1)
	assert.Len(t, albums[0].BlobIDs, 3)
}
