package repository

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/lib/pq"

	"albumvault/internal/domain/models"
	"albumvault/internal/storage"
)

const (
	draftsTable  = "drafts"
	recordsTable = "draft_publish_records"
)

var draftColumns = []string{
	"id",
	"owner",
	"name",
	"tier",
	"price",
	"description",
	"tags",
	"status",
	"preview_items",
	"content_items",
	"uploads",
	"COALESCE(container_id, '')",
	"COALESCE(capability_id, '')",
	"created_at",
}

// querier общий для пула и транзакции
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
}

type DraftRepo struct {
	db *pgxpool.Pool
	sb sq.StatementBuilderType
}

func NewDraftRepo(db *pgxpool.Pool) *DraftRepo {
	return &DraftRepo{
		db: db,
		sb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// SaveDraft сохраняет новую заявку
func (r *DraftRepo) SaveDraft(ctx context.Context, d models.Draft) (uuid.UUID, error) {
	const op = "repository.DraftRepo.SaveDraft"

	query, args, err := r.sb.Insert(draftsTable).
		Columns(
			"id",
			"owner",
			"name",
			"tier",
			"price",
			"description",
			"tags",
			"status",
			"preview_items",
			"content_items",
			"uploads",
			"created_at",
		).
		Values(
			d.ID,
			d.Owner,
			d.Name,
			string(d.Tier),
			d.Price,
			d.Description,
			pq.Array(d.Tags),
			string(d.Status),
			pq.Array(d.PreviewItems),
			d.ContentItems,
			pq.Array(d.Uploads),
			d.CreatedAt,
		).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	var id uuid.UUID
	if err := r.db.QueryRow(ctx, query, args...).Scan(&id); err != nil {
		return uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	return id, nil
}

func (r *DraftRepo) GetDraft(ctx context.Context, id uuid.UUID) (models.Draft, error) {
	const op = "repository.DraftRepo.GetDraft"

	d, err := r.getDraft(ctx, r.db, id, false)
	if err != nil {
		return models.Draft{}, fmt.Errorf("%s: %w", op, err)
	}

	return d, nil
}

func (r *DraftRepo) ListAwaitingApproval(ctx context.Context, approver string) ([]models.Draft, error) {
	const op = "repository.DraftRepo.ListAwaitingApproval"

	drafts, err := r.listDrafts(ctx, sq.And{
		sq.Eq{"status": []string{
			string(models.DraftStatusDraft),
			string(models.DraftStatusPendingApproval),
		}},
		sq.NotEq{"owner": approver},
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return drafts, nil
}

func (r *DraftRepo) ListByOwner(ctx context.Context, owner string) ([]models.Draft, error) {
	const op = "repository.DraftRepo.ListByOwner"

	drafts, err := r.listDrafts(ctx, sq.Eq{"owner": owner})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return drafts, nil
}

// Approve переводит заявку в approved и начисляет очко апруверу один раз на пару (draft, approver)
func (r *DraftRepo) Approve(ctx context.Context, id uuid.UUID, approver string) (models.ApprovalResult, error) {
	const op = "repository.DraftRepo.Approve"

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return models.ApprovalResult{}, fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}
	defer tx.Rollback(ctx)

	owner, status, err := r.lockStatus(ctx, tx, id)
	if err != nil {
		return models.ApprovalResult{}, fmt.Errorf("%s: %w", op, err)
	}
	if owner == approver {
		return models.ApprovalResult{}, fmt.Errorf("%s: %w", op, storage.ErrSelfApproval)
	}
	if status == models.DraftStatusRejected {
		return models.ApprovalResult{}, fmt.Errorf("%s: %w", op, storage.ErrInvalidStatus)
	}

	if status.Awaiting() {
		if err := r.setStatus(ctx, tx, id, models.DraftStatusApproved); err != nil {
			return models.ApprovalResult{}, fmt.Errorf("%s: %w", op, err)
		}
	}

	query, args, err := r.sb.Insert("draft_approvals").
		Columns("draft_id", "approver").
		Values(id, approver).
		Suffix("ON CONFLICT (draft_id, approver) DO NOTHING").
		ToSql()
	if err != nil {
		return models.ApprovalResult{}, fmt.Errorf("%s: %w", op, err)
	}

	tag, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return models.ApprovalResult{}, fmt.Errorf("%s: failed to record approval: %w", op, err)
	}

	scored := tag.RowsAffected() == 1
	if scored {
		query, args, err = r.sb.Insert("approver_scores").
			Columns("identity", "score").
			Values(approver, 1).
			Suffix("ON CONFLICT (identity) DO UPDATE SET score = approver_scores.score + 1").
			ToSql()
		if err != nil {
			return models.ApprovalResult{}, fmt.Errorf("%s: %w", op, err)
		}

		if _, err := tx.Exec(ctx, query, args...); err != nil {
			return models.ApprovalResult{}, fmt.Errorf("%s: failed to increment score: %w", op, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return models.ApprovalResult{}, fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}

	return models.ApprovalResult{Status: models.DraftStatusApproved, Scored: scored}, nil
}

func (r *DraftRepo) Reject(ctx context.Context, id uuid.UUID, approver string) (models.DraftStatus, error) {
	const op = "repository.DraftRepo.Reject"

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}
	defer tx.Rollback(ctx)

	owner, status, err := r.lockStatus(ctx, tx, id)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if owner == approver {
		return "", fmt.Errorf("%s: %w", op, storage.ErrSelfApproval)
	}

	switch {
	case status == models.DraftStatusApproved:
		return "", fmt.Errorf("%s: %w", op, storage.ErrInvalidStatus)
	case status == models.DraftStatusRejected:
		return status, nil
	}

	if err := r.setStatus(ctx, tx, id, models.DraftStatusRejected); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}

	return models.DraftStatusRejected, nil
}

func (r *DraftRepo) SetContainer(ctx context.Context, id uuid.UUID, containerID, capabilityID string) error {
	const op = "repository.DraftRepo.SetContainer"

	query, args, err := r.sb.Update(draftsTable).
		Set("container_id", containerID).
		Set("capability_id", capabilityID).
		Where(sq.Eq{"id": id}).
		Where(sq.Eq{"status": string(models.DraftStatusApproved)}).
		Where("container_id IS NULL").
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	// ничего не обновили: выясняем почему
	d, err := r.getDraft(ctx, r.db, id, false)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if d.Status != models.DraftStatusApproved {
		return fmt.Errorf("%s: %w", op, storage.ErrInvalidStatus)
	}

	return fmt.Errorf("%s: %w", op, storage.ErrAlreadyStarted)
}

func (r *DraftRepo) SetUpload(ctx context.Context, id uuid.UUID, index int, blobID string) error {
	const op = "repository.DraftRepo.SetUpload"

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}
	defer tx.Rollback(ctx)

	d, err := r.getDraft(ctx, tx, id, true)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !d.Started() {
		return fmt.Errorf("%s: %w", op, storage.ErrNotStarted)
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

	query, args, err := r.sb.Update(draftsTable).
		Set("uploads", pq.Array(uploads)).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}

	return nil
}

func (r *DraftRepo) SavePublishRecords(ctx context.Context, id uuid.UUID, records []models.PublishRecord) error {
	const op = "repository.DraftRepo.SavePublishRecords"

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}
	defer tx.Rollback(ctx)

	d, err := r.getDraft(ctx, tx, id, true)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !d.Started() {
		return fmt.Errorf("%s: %w", op, storage.ErrNotStarted)
	}
	if len(d.PublishRecords) > 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrRecordsExist)
	}
	if len(records) == 0 || len(records) != len(d.ContentItems) || len(d.MissingUploads()) > 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrUploadIncomplete)
	}

	builder := r.sb.Insert(recordsTable).Columns("draft_id", "position", "blob_id", "is_published")
	for i, rec := range records {
		builder = builder.Values(id, i, rec.BlobID, rec.IsPublished)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}

	return nil
}

func (r *DraftRepo) MarkBlobPublished(ctx context.Context, id uuid.UUID, blobID string) (models.PublicationState, error) {
	const op = "repository.DraftRepo.MarkBlobPublished"

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return models.PublicationState{}, fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}
	defer tx.Rollback(ctx)

	// строка заявки блокируется, поэтому подтверждения одной заявки идут строго по очереди
	d, err := r.getDraft(ctx, tx, id, true)
	if err != nil {
		return models.PublicationState{}, fmt.Errorf("%s: %w", op, err)
	}
	if !d.Started() {
		return models.PublicationState{}, fmt.Errorf("%s: %w", op, storage.ErrNotStarted)
	}
	if len(d.PublishRecords) == 0 {
		return models.PublicationState{}, fmt.Errorf("%s: %w", op, storage.ErrUploadIncomplete)
	}

	changed, found := d.MarkPublished(blobID)
	if !found {
		return models.PublicationState{}, fmt.Errorf("%s: %w", op, storage.ErrRecordNotFound)
	}

	if changed {
		query, args, err := r.sb.Update(recordsTable).
			Set("is_published", true).
			Where(sq.Eq{"draft_id": id, "blob_id": blobID}).
			ToSql()
		if err != nil {
			return models.PublicationState{}, fmt.Errorf("%s: %w", op, err)
		}
		if _, err := tx.Exec(ctx, query, args...); err != nil {
			return models.PublicationState{}, fmt.Errorf("%s: %w", op, err)
		}
	}

	state := d.State()
	if d.FullyPublished() {
		album, err := models.NewAlbumFromDraft(d)
		if err != nil {
			return models.PublicationState{}, fmt.Errorf("%s: %w", op, err)
		}

		if err := insertAlbum(ctx, tx, r.sb, album, d.ID); err != nil {
			return models.PublicationState{}, fmt.Errorf("%s: %w", op, err)
		}

		query, args, err := r.sb.Delete(draftsTable).Where(sq.Eq{"id": id}).ToSql()
		if err != nil {
			return models.PublicationState{}, fmt.Errorf("%s: %w", op, err)
		}
		if _, err := tx.Exec(ctx, query, args...); err != nil {
			return models.PublicationState{}, fmt.Errorf("%s: failed to delete draft: %w", op, err)
		}

		state = models.Finalized(album.AlbumID, len(album.BlobIDs))
	}

	if err := tx.Commit(ctx); err != nil {
		return models.PublicationState{}, fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}

	return state, nil
}

func (r *DraftRepo) lockStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID) (string, models.DraftStatus, error) {
	query, args, err := r.sb.Select("owner", "status").
		From(draftsTable).
		Where(sq.Eq{"id": id}).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return "", "", err
	}

	var owner, status string
	if err := tx.QueryRow(ctx, query, args...).Scan(&owner, &status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", "", storage.ErrDraftNotFound
		}
		return "", "", err
	}

	return owner, models.DraftStatus(status), nil
}

func (r *DraftRepo) setStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status models.DraftStatus) error {
	query, args, err := r.sb.Update(draftsTable).
		Set("status", string(status)).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, query, args...)
	return err
}

func (r *DraftRepo) getDraft(ctx context.Context, q querier, id uuid.UUID, forUpdate bool) (models.Draft, error) {
	builder := r.sb.Select(draftColumns...).From(draftsTable).Where(sq.Eq{"id": id})
	if forUpdate {
		builder = builder.Suffix("FOR UPDATE")
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return models.Draft{}, err
	}

	d, err := scanDraft(q.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Draft{}, storage.ErrDraftNotFound
		}
		return models.Draft{}, err
	}

	records, err := r.loadRecords(ctx, q, []string{id.String()})
	if err != nil {
		return models.Draft{}, err
	}
	d.PublishRecords = records[id]
	if d.PublishRecords == nil {
		d.PublishRecords = []models.PublishRecord{}
	}

	return d, nil
}

func (r *DraftRepo) listDrafts(ctx context.Context, where sq.Sqlizer) ([]models.Draft, error) {
	query, args, err := r.sb.Select(draftColumns...).
		From(draftsTable).
		Where(where).
		OrderBy("created_at ASC").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	drafts := []models.Draft{}
	ids := []string{}
	for rows.Next() {
		d, err := scanDraft(rows)
		if err != nil {
			return nil, err
		}
		drafts = append(drafts, d)
		ids = append(ids, d.ID.String())
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(ids) == 0 {
		return drafts, nil
	}

	records, err := r.loadRecords(ctx, r.db, ids)
	if err != nil {
		return nil, err
	}
	for i := range drafts {
		drafts[i].PublishRecords = records[drafts[i].ID]
		if drafts[i].PublishRecords == nil {
			drafts[i].PublishRecords = []models.PublishRecord{}
		}
	}

	return drafts, nil
}

func (r *DraftRepo) loadRecords(ctx context.Context, q querier, ids []string) (map[uuid.UUID][]models.PublishRecord, error) {
	query, args, err := r.sb.Select("draft_id", "blob_id", "is_published").
		From(recordsTable).
		Where("draft_id = ANY(?)", pq.Array(ids)).
		OrderBy("draft_id", "position ASC").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	res := make(map[uuid.UUID][]models.PublishRecord)
	for rows.Next() {
		var (
			draftID uuid.UUID
			rec     models.PublishRecord
		)
		if err := rows.Scan(&draftID, &rec.BlobID, &rec.IsPublished); err != nil {
			return nil, err
		}
		res[draftID] = append(res[draftID], rec)
	}

	return res, rows.Err()
}

func scanDraft(row pgx.Row) (models.Draft, error) {
	var (
		d      models.Draft
		tier   string
		status string
	)

	err := row.Scan(
		&d.ID,
		&d.Owner,
		&d.Name,
		&tier,
		&d.Price,
		&d.Description,
		&d.Tags,
		&status,
		&d.PreviewItems,
		&d.ContentItems,
		&d.Uploads,
		&d.ContainerID,
		&d.CapabilityID,
		&d.CreatedAt,
	)
	if err != nil {
		return models.Draft{}, err
	}

	d.Tier = models.Tier(tier)
	d.Status = models.DraftStatus(status)

	return d, nil
}
