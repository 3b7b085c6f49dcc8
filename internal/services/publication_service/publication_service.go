package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"albumvault/internal/domain/models"
	"albumvault/internal/ledger"
	"albumvault/internal/lib/collab"
	"albumvault/internal/lib/logger/sl"
	"albumvault/internal/metrics"
	"albumvault/internal/repository"
	"albumvault/internal/sealing"
	"albumvault/internal/storage"
	"albumvault/internal/storage/blobstore"
)

var (
	ErrWalletRejected = errors.New("wallet rejected the registration transaction")
	ErrWalletFailed   = errors.New("registration transaction failed")
	ErrNotRegistered  = errors.New("blob is not registered on the ledger")
)

type Options struct {
	// таймаут одного вызова внешнего участника
	Timeout     time.Duration
	Concurrency int
}

// PublicationService ведёт заявку от approved до опубликованного альбома
type PublicationService struct {
	log    *slog.Logger
	drafts repository.DraftRepository
	albums repository.AlbumRepository
	ledger ledger.Ledger
	sealer sealing.Sealer
	blobs  blobstore.BlobStore
	opts   Options
}

func NewPublicationService(
	log *slog.Logger,
	drafts repository.DraftRepository,
	albums repository.AlbumRepository,
	l ledger.Ledger,
	sealer sealing.Sealer,
	blobs blobstore.BlobStore,
	opts Options,
) *PublicationService {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}

	return &PublicationService{
		log:    log,
		drafts: drafts,
		albums: albums,
		ledger: l,
		sealer: sealer,
		blobs:  blobs,
		opts:   opts,
	}
}

// BeginPublication создаёт контейнер в леджере для одобренной заявки и загружает контент.
// Повторный вызов для начатой заявки вернёт storage.ErrAlreadyStarted, дальше только ResumeUpload.
func (s *PublicationService) BeginPublication(ctx context.Context, draftID uuid.UUID) (models.UploadReport, error) {
	const op = "service.PublicationService.BeginPublication"
	log := s.log.With(
		slog.String("op", op),
		slog.String("draft_id", draftID.String()),
	)

	d, err := s.drafts.GetDraft(ctx, draftID)
	if err != nil {
		return models.UploadReport{}, fmt.Errorf("%s: %w", op, err)
	}
	if d.Status != models.DraftStatusApproved {
		return models.UploadReport{}, fmt.Errorf("%s: %w", op, storage.ErrInvalidStatus)
	}
	if d.Started() {
		return models.UploadReport{}, fmt.Errorf("%s: %w", op, storage.ErrAlreadyStarted)
	}

	var c ledger.Container
	err = collab.Do(ctx, s.opts.Timeout, collab.Ledger, "create_container", func(ctx context.Context) error {
		var err error
		c, err = s.ledger.CreateContainer(ctx, d.Name, d.Price, d.Owner)
		return err
	})
	if err != nil {
		log.Error("failed to create container", sl.Err(err))
		return models.UploadReport{}, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.drafts.SetContainer(ctx, draftID, c.ContainerID, c.CapabilityID); err != nil {
		// контейнер на леджере остаётся сиротой, заявка не меняется
		log.Warn("container not recorded",
			slog.String("container_id", c.ContainerID),
			sl.Err(err),
		)
		return models.UploadReport{}, fmt.Errorf("%s: %w", op, err)
	}

	metrics.PublicationsStarted.Inc()
	log.Info("container created",
		slog.String("container_id", c.ContainerID),
		slog.String("tx", c.TxDigest),
	)

	d.ContainerID = c.ContainerID
	d.CapabilityID = c.CapabilityID

	return s.uploadMissing(ctx, d)
}

// ResumeUpload шифрует и загружает только элементы без блоба
func (s *PublicationService) ResumeUpload(ctx context.Context, draftID uuid.UUID) (models.UploadReport, error) {
	const op = "service.PublicationService.ResumeUpload"

	d, err := s.drafts.GetDraft(ctx, draftID)
	if err != nil {
		return models.UploadReport{}, fmt.Errorf("%s: %w", op, err)
	}
	if !d.Started() {
		return models.UploadReport{}, fmt.Errorf("%s: %w", op, storage.ErrNotStarted)
	}

	return s.uploadMissing(ctx, d)
}

func (s *PublicationService) uploadMissing(ctx context.Context, d models.Draft) (models.UploadReport, error) {
	const op = "service.PublicationService.uploadMissing"
	log := s.log.With(
		slog.String("op", op),
		slog.String("draft_id", d.ID.String()),
	)

	report := models.UploadReport{
		ContainerID:  d.ContainerID,
		CapabilityID: d.CapabilityID,
		Total:        len(d.ContentItems),
	}

	if len(d.PublishRecords) > 0 {
		report.Uploaded = report.Total
		report.Records = d.PublishRecords
		return report, nil
	}

	missing := d.MissingUploads()

	var (
		mu       sync.Mutex
		failures []models.ItemFailure
		g        errgroup.Group
	)
	g.SetLimit(s.opts.Concurrency)

	for _, idx := range missing {
		g.Go(func() error {
			blobID, err := s.uploadItem(ctx, d, idx)
			if err == nil {
				err = s.drafts.SetUpload(ctx, d.ID, idx, blobID)
			}
			if err != nil {
				mu.Lock()
				failures = append(failures, models.ItemFailure{Index: idx, BlobID: blobID, Reason: err.Error()})
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	report.Uploaded = report.Total - len(failures)

	if len(failures) > 0 {
		sort.Slice(failures, func(i, j int) bool { return failures[i].Index < failures[j].Index })
		report.Failures = failures

		log.Warn("upload incomplete",
			slog.Int("failed", len(failures)),
			slog.Int("total", report.Total),
		)
		return report, fmt.Errorf("%s: %w", op, &models.PartialBatchError{
			Op:       "upload",
			Total:    report.Total,
			Failures: failures,
		})
	}

	records, err := s.persistRecords(ctx, d.ID)
	if err != nil {
		log.Error("failed to persist publish records", sl.Err(err))
		return report, fmt.Errorf("%s: %w", op, err)
	}
	report.Records = records

	log.Info("content uploaded", slog.Int("blobs", len(records)))

	return report, nil
}

func (s *PublicationService) persistRecords(ctx context.Context, draftID uuid.UUID) ([]models.PublishRecord, error) {
	d, err := s.drafts.GetDraft(ctx, draftID)
	if err != nil {
		return nil, err
	}
	if len(d.PublishRecords) > 0 {
		return d.PublishRecords, nil
	}

	records := make([]models.PublishRecord, 0, len(d.Uploads))
	for _, blobID := range d.Uploads {
		records = append(records, models.PublishRecord{BlobID: blobID})
	}

	err = s.drafts.SavePublishRecords(ctx, draftID, records)
	if errors.Is(err, storage.ErrRecordsExist) {
		// параллельный resume успел раньше
		d, err = s.drafts.GetDraft(ctx, draftID)
		if err != nil {
			return nil, err
		}
		return d.PublishRecords, nil
	}
	if err != nil {
		return nil, err
	}

	return records, nil
}

func (s *PublicationService) uploadItem(ctx context.Context, d models.Draft, idx int) (string, error) {
	id, err := sealing.NewEncryptionID(d.ContainerID)
	if err != nil {
		return "", err
	}

	var ciphertext []byte
	err = collab.Do(ctx, s.opts.Timeout, collab.Sealing, "encrypt", func(ctx context.Context) error {
		var err error
		ciphertext, err = s.sealer.Encrypt(ctx, d.ContainerID, id, d.ContentItems[idx])
		return err
	})
	if err != nil {
		metrics.BlobUploads.WithLabelValues("failed").Inc()
		return "", err
	}

	var res blobstore.PutResult
	err = collab.Do(ctx, s.opts.Timeout, collab.BlobStore, "put", func(ctx context.Context) error {
		var err error
		res, err = s.blobs.Put(ctx, ciphertext)
		return err
	})
	if err != nil {
		metrics.BlobUploads.WithLabelValues("failed").Inc()
		return "", err
	}

	metrics.BlobUploads.WithLabelValues(string(res.Outcome)).Inc()

	return res.BlobID, nil
}

// ConfirmBlobPublished фиксирует регистрацию одного блоба владельцем в леджере.
// Подтверждение последней записи финализирует альбом в той же транзакции.
func (s *PublicationService) ConfirmBlobPublished(ctx context.Context, draftID uuid.UUID, blobID string, proof models.WalletProof) (models.PublicationState, error) {
	const op = "service.PublicationService.ConfirmBlobPublished"
	log := s.log.With(
		slog.String("op", op),
		slog.String("draft_id", draftID.String()),
		slog.String("blob_id", blobID),
	)

	switch proof {
	case models.WalletApproved:
	case models.WalletRejected:
		metrics.BlobConfirmations.WithLabelValues(string(proof)).Inc()
		return models.PublicationState{}, fmt.Errorf("%s: %w", op, ErrWalletRejected)
	case models.WalletFailed:
		metrics.BlobConfirmations.WithLabelValues(string(proof)).Inc()
		return models.PublicationState{}, fmt.Errorf("%s: %w", op, ErrWalletFailed)
	default:
		return models.PublicationState{}, fmt.Errorf("%s: %w", op, &models.ValidationError{
			Errors: []string{fmt.Sprintf("unknown wallet proof %q", proof)},
		})
	}

	d, err := s.drafts.GetDraft(ctx, draftID)
	if errors.Is(err, storage.ErrDraftNotFound) {
		return s.finalizedState(ctx, draftID, op)
	}
	if err != nil {
		return models.PublicationState{}, fmt.Errorf("%s: %w", op, err)
	}
	if !d.Started() {
		return models.PublicationState{}, fmt.Errorf("%s: %w", op, storage.ErrNotStarted)
	}
	if len(d.PublishRecords) == 0 {
		return models.PublicationState{}, fmt.Errorf("%s: %w", op, storage.ErrUploadIncomplete)
	}

	published, known := false, false
	for _, rec := range d.PublishRecords {
		if rec.BlobID == blobID {
			known, published = true, rec.IsPublished
			break
		}
	}
	if !known {
		return models.PublicationState{}, fmt.Errorf("%s: %w", op, storage.ErrRecordNotFound)
	}

	if !published {
		var registered bool
		err := collab.Do(ctx, s.opts.Timeout, collab.Ledger, "is_blob_registered", func(ctx context.Context) error {
			var err error
			registered, err = s.ledger.IsBlobRegistered(ctx, d.ContainerID, blobID)
			return err
		})
		if err != nil {
			log.Error("failed to verify registration", sl.Err(err))
			return models.PublicationState{}, fmt.Errorf("%s: %w", op, err)
		}
		if !registered {
			return models.PublicationState{}, fmt.Errorf("%s: %w", op, ErrNotRegistered)
		}
	}

	state, err := s.drafts.MarkBlobPublished(ctx, draftID, blobID)
	if errors.Is(err, storage.ErrDraftNotFound) {
		return s.finalizedState(ctx, draftID, op)
	}
	if err != nil {
		log.Error("failed to mark blob published", sl.Err(err))
		return models.PublicationState{}, fmt.Errorf("%s: %w", op, err)
	}

	metrics.BlobConfirmations.WithLabelValues(string(proof)).Inc()

	if state.Kind == models.PublicationFinalized {
		metrics.AlbumsFinalized.Inc()
		log.Info("album published", slog.String("album_id", state.AlbumID), slog.Int("blobs", state.Total))
	} else {
		log.Info("blob confirmed", slog.Int("remaining", state.Remaining), slog.Int("total", state.Total))
	}

	return state, nil
}

// Progress возвращает N из M подтверждённых блобов или Finalized, если альбом уже создан
func (s *PublicationService) Progress(ctx context.Context, draftID uuid.UUID) (models.PublicationState, error) {
	const op = "service.PublicationService.Progress"

	d, err := s.drafts.GetDraft(ctx, draftID)
	if errors.Is(err, storage.ErrDraftNotFound) {
		return s.finalizedState(ctx, draftID, op)
	}
	if err != nil {
		return models.PublicationState{}, fmt.Errorf("%s: %w", op, err)
	}

	if len(d.PublishRecords) == 0 {
		n := len(d.ContentItems)
		return models.PublicationState{Kind: models.PublicationPending, Remaining: n, Total: n}, nil
	}

	return d.State(), nil
}

func (s *PublicationService) finalizedState(ctx context.Context, draftID uuid.UUID, op string) (models.PublicationState, error) {
	album, err := s.albums.GetAlbumByDraft(ctx, draftID)
	if errors.Is(err, storage.ErrAlbumNotFound) {
		return models.PublicationState{}, fmt.Errorf("%s: %w", op, storage.ErrDraftNotFound)
	}
	if err != nil {
		return models.PublicationState{}, fmt.Errorf("%s: %w", op, err)
	}

	return models.Finalized(album.AlbumID, len(album.BlobIDs)), nil
}
