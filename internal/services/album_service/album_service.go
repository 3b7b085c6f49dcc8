package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"albumvault/internal/domain/models"
	"albumvault/internal/ledger"
	"albumvault/internal/lib/collab"
	"albumvault/internal/lib/logger/sl"
	"albumvault/internal/repository"
)

type AlbumService struct {
	log     *slog.Logger
	albums  repository.AlbumRepository
	ledger  ledger.Ledger
	timeout time.Duration
}

func NewAlbumService(log *slog.Logger, albums repository.AlbumRepository, l ledger.Ledger, timeout time.Duration) *AlbumService {
	return &AlbumService{
		log:     log,
		albums:  albums,
		ledger:  l,
		timeout: timeout,
	}
}

func (s *AlbumService) ListAlbums(ctx context.Context) ([]models.Album, error) {
	const op = "service.AlbumService.ListAlbums"

	albums, err := s.albums.ListAlbums(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return albums, nil
}

func (s *AlbumService) GetAlbum(ctx context.Context, albumID string) (models.Album, error) {
	const op = "service.AlbumService.GetAlbum"

	album, err := s.albums.GetAlbum(ctx, albumID)
	if err != nil {
		return models.Album{}, fmt.Errorf("%s: %w", op, err)
	}

	return album, nil
}

// RecordPurchase добавляет покупателя в allowlist контейнера и в покупки альбома.
// Повторная покупка ничего не меняет и возвращает added=false.
func (s *AlbumService) RecordPurchase(ctx context.Context, albumID, supporter string) (bool, error) {
	const op = "service.AlbumService.RecordPurchase"
	log := s.log.With(
		slog.String("op", op),
		slog.String("album_id", albumID),
		slog.String("supporter", supporter),
	)

	if strings.TrimSpace(supporter) == "" {
		return false, fmt.Errorf("%s: %w", op, &models.ValidationError{Errors: []string{"supporter is required"}})
	}

	album, err := s.albums.GetAlbum(ctx, albumID)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	// allowlist идемпотентен, поэтому сначала леджер
	err = collab.Do(ctx, s.timeout, collab.Ledger, "grant_access", func(ctx context.Context) error {
		return s.ledger.GrantAccess(ctx, album.CapabilityID, album.AlbumID, supporter)
	})
	if err != nil {
		log.Error("failed to grant access", sl.Err(err))
		return false, fmt.Errorf("%s: %w", op, err)
	}

	added, err := s.albums.AddPurchase(ctx, supporter, albumID)
	if err != nil {
		log.Error("failed to record purchase", sl.Err(err))
		return false, fmt.Errorf("%s: %w", op, err)
	}

	if added {
		log.Info("album purchased")
	}

	return added, nil
}

func (s *AlbumService) ListPurchased(ctx context.Context, identity string) ([]models.Album, error) {
	const op = "service.AlbumService.ListPurchased"

	albums, err := s.albums.ListPurchased(ctx, identity)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return albums, nil
}

func (s *AlbumService) RecordInteraction(ctx context.Context, albumID, kind string) (models.Interaction, error) {
	const op = "service.AlbumService.RecordInteraction"

	k := models.InteractionKind(strings.ToLower(kind))
	switch k {
	case models.InteractionLike, models.InteractionShare, models.InteractionSave:
	default:
		return models.Interaction{}, fmt.Errorf("%s: %w", op, &models.ValidationError{
			Errors: []string{fmt.Sprintf("unknown interaction %q", kind)},
		})
	}

	counters, err := s.albums.AddInteraction(ctx, albumID, k)
	if err != nil {
		return models.Interaction{}, fmt.Errorf("%s: %w", op, err)
	}

	return counters, nil
}
