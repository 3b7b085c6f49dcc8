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
	albumsTable    = "albums"
	purchasesTable = "album_purchases"
)

var albumColumns = []string{
	"albums.album_id",
	"albums.owner",
	"albums.name",
	"albums.tier",
	"albums.price",
	"albums.description",
	"albums.tags",
	"albums.preview_items",
	"albums.blob_ids",
	"albums.created_at",
	"albums.likes",
	"albums.shares",
	"albums.saves",
	"albums.capability_id",
}

var interactionColumns = map[models.InteractionKind]string{
	models.InteractionLike:  "likes",
	models.InteractionShare: "shares",
	models.InteractionSave:  "saves",
}

type AlbumRepo struct {
	db *pgxpool.Pool
	sb sq.StatementBuilderType
}

func NewAlbumRepo(db *pgxpool.Pool) *AlbumRepo {
	return &AlbumRepo{
		db: db,
		sb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// insertAlbum пишет альбом в рамках транзакции финализации
func insertAlbum(ctx context.Context, tx pgx.Tx, sb sq.StatementBuilderType, a models.Album, draftID uuid.UUID) error {
	query, args, err := sb.Insert(albumsTable).
		Columns(
			"album_id",
			"source_draft_id",
			"owner",
			"name",
			"tier",
			"price",
			"description",
			"tags",
			"preview_items",
			"blob_ids",
			"capability_id",
			"created_at",
		).
		Values(
			a.AlbumID,
			draftID,
			a.Owner,
			a.Name,
			string(a.Tier),
			a.Price,
			a.Description,
			pq.Array(a.Tags),
			pq.Array(a.PreviewItems),
			pq.Array(a.BlobIDs),
			a.CapabilityID,
			a.CreatedAt,
		).
		ToSql()
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert album: %w", err)
	}

	return nil
}

func (r *AlbumRepo) GetAlbum(ctx context.Context, albumID string) (models.Album, error) {
	const op = "repository.AlbumRepo.GetAlbum"

	a, err := r.getBy(ctx, sq.Eq{"album_id": albumID})
	if err != nil {
		return models.Album{}, fmt.Errorf("%s: %w", op, err)
	}

	return a, nil
}

func (r *AlbumRepo) GetAlbumByDraft(ctx context.Context, draftID uuid.UUID) (models.Album, error) {
	const op = "repository.AlbumRepo.GetAlbumByDraft"

	a, err := r.getBy(ctx, sq.Eq{"source_draft_id": draftID})
	if err != nil {
		return models.Album{}, fmt.Errorf("%s: %w", op, err)
	}

	return a, nil
}

func (r *AlbumRepo) ListAlbums(ctx context.Context) ([]models.Album, error) {
	const op = "repository.AlbumRepo.ListAlbums"

	query, args, err := r.sb.Select(albumColumns...).
		From(albumsTable).
		OrderBy("albums.created_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	albums, err := r.queryAlbums(ctx, query, args)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return albums, nil
}

// AddPurchase отмечает покупку. false если альбом уже был куплен этим identity
func (r *AlbumRepo) AddPurchase(ctx context.Context, identity, albumID string) (bool, error) {
	const op = "repository.AlbumRepo.AddPurchase"

	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM albums WHERE album_id = $1)`, albumID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("%s: failed to check album existence: %w", op, err)
	}
	if !exists {
		return false, fmt.Errorf("%s: %w", op, storage.ErrAlbumNotFound)
	}

	query, args, err := r.sb.Insert(purchasesTable).
		Columns("identity", "album_id").
		Values(identity, albumID).
		Suffix("ON CONFLICT (identity, album_id) DO NOTHING").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return tag.RowsAffected() == 1, nil
}

func (r *AlbumRepo) ListPurchased(ctx context.Context, identity string) ([]models.Album, error) {
	const op = "repository.AlbumRepo.ListPurchased"

	query, args, err := r.sb.Select(albumColumns...).
		From(albumsTable).
		Join(purchasesTable + " p ON p.album_id = albums.album_id").
		Where(sq.Eq{"p.identity": identity}).
		OrderBy("p.purchased_at ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	albums, err := r.queryAlbums(ctx, query, args)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return albums, nil
}

func (r *AlbumRepo) AddInteraction(ctx context.Context, albumID string, kind models.InteractionKind) (models.Interaction, error) {
	const op = "repository.AlbumRepo.AddInteraction"

	column, ok := interactionColumns[kind]
	if !ok {
		return models.Interaction{}, fmt.Errorf("%s: unknown interaction %q", op, kind)
	}

	query, args, err := r.sb.Update(albumsTable).
		Set(column, sq.Expr(column+" + 1")).
		Where(sq.Eq{"album_id": albumID}).
		Suffix("RETURNING likes, shares, saves").
		ToSql()
	if err != nil {
		return models.Interaction{}, fmt.Errorf("%s: %w", op, err)
	}

	var in models.Interaction
	err = r.db.QueryRow(ctx, query, args...).Scan(&in.Likes, &in.Shares, &in.Saves)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Interaction{}, fmt.Errorf("%s: %w", op, storage.ErrAlbumNotFound)
		}
		return models.Interaction{}, fmt.Errorf("%s: %w", op, err)
	}

	return in, nil
}

func (r *AlbumRepo) getBy(ctx context.Context, where sq.Sqlizer) (models.Album, error) {
	query, args, err := r.sb.Select(albumColumns...).
		From(albumsTable).
		Where(where).
		ToSql()
	if err != nil {
		return models.Album{}, err
	}

	a, err := scanAlbum(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Album{}, storage.ErrAlbumNotFound
		}
		return models.Album{}, err
	}

	return a, nil
}

func (r *AlbumRepo) queryAlbums(ctx context.Context, query string, args []interface{}) ([]models.Album, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	albums := []models.Album{}
	for rows.Next() {
		a, err := scanAlbum(rows)
		if err != nil {
			return nil, err
		}
		albums = append(albums, a)
	}

	return albums, rows.Err()
}

func scanAlbum(row pgx.Row) (models.Album, error) {
	var (
		a    models.Album
		tier string
	)

	err := row.Scan(
		&a.AlbumID,
		&a.Owner,
		&a.Name,
		&tier,
		&a.Price,
		&a.Description,
		&a.Tags,
		&a.PreviewItems,
		&a.BlobIDs,
		&a.CreatedAt,
		&a.Interaction.Likes,
		&a.Interaction.Shares,
		&a.Interaction.Saves,
		&a.CapabilityID,
	)
	if err != nil {
		return models.Album{}, err
	}
	a.Tier = models.Tier(tier)

	return a, nil
}
