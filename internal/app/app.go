package app

import (
	"context"
	"fmt"
	"log/slog"

	httpapp "albumvault/internal/app/http"
	"albumvault/internal/config"
	"albumvault/internal/ledger"
	"albumvault/internal/lib/logger/sl"
	"albumvault/internal/repository"
	"albumvault/internal/sealing"
	access "albumvault/internal/services/access_service"
	album "albumvault/internal/services/album_service"
	draft "albumvault/internal/services/draft_service"
	publication "albumvault/internal/services/publication_service"
	"albumvault/internal/storage/blobstore"
	"albumvault/internal/storage/redis"
	httprouters "albumvault/internal/transport/http"
)

const envProd = "prod"

type App struct {
	HTTPServer *httpapp.Server

	repo  *repository.Repository
	redis *redis.Client
}

func New(ctx context.Context, log *slog.Logger, cfg *config.Config) (*App, error) {
	const op = "app.New"

	repo, err := newRepository(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	blobs, err := newBlobStore(ctx, cfg.BlobStore)
	if err != nil {
		repo.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	l, err := ledger.NewLocal(log, cfg.Ledger.SignerSeed)
	if err != nil {
		repo.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	sealer := sealing.NewLocal(cfg.Sealing.MasterSecret, l.PublicKey())

	rdb := redis.NewClient(cfg.Redis.RedisAddr, cfg.Redis.RedisPassword, cfg.Redis.RedisDB)
	if err := rdb.HealthCheck(ctx); err != nil {
		// без redis не будет подписей кошелька, остальное работает
		log.Warn("redis unavailable", sl.Err(err))
	}
	relay := redis.NewWalletRelay(rdb, cfg.Access.SignatureTimeout)

	draftService := draft.NewDraftService(log, repo.Drafts, repo.Approvers)
	publicationService := publication.NewPublicationService(log, repo.Drafts, repo.Albums, l, sealer, blobs, publication.Options{
		Timeout:     cfg.Collaborators.Timeout,
		Concurrency: cfg.Publication.UploadConcurrency,
	})
	albumService := album.NewAlbumService(log, repo.Albums, l, cfg.Collaborators.Timeout)
	accessService := access.NewAccessService(log, relay, l, sealer, blobs, access.Options{
		Timeout:          cfg.Collaborators.Timeout,
		SignatureTimeout: cfg.Access.SignatureTimeout,
		DefaultTTL:       cfg.Access.SessionTTL,
		Concurrency:      cfg.Access.FetchConcurrency,
	})

	routers := httprouters.NewRouter(
		log,
		draftService,
		publicationService,
		albumService,
		accessService,
		relay,
		l,
		cfg.Access.TokenSecret,
	)

	server := httpapp.New(log, cfg.HTTP.Host, cfg.HTTP.Port, cfg.Env != envProd, routers)
	server.BuildRouters()

	return &App{
		HTTPServer: server,
		repo:       repo,
		redis:      rdb,
	}, nil
}

// Close закрывает соединения хранилищ после остановки сервера
func (a *App) Close() {
	a.repo.Close()
	_ = a.redis.Close()
}

func newRepository(ctx context.Context, cfg config.StorageConfig) (*repository.Repository, error) {
	switch cfg.Driver {
	case "memory":
		return repository.NewMemoryRepository(), nil
	case "postgres":
		return repository.NewRepository(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

func newBlobStore(ctx context.Context, cfg config.BlobStoreConfig) (blobstore.BlobStore, error) {
	switch cfg.Driver {
	case "fs":
		return blobstore.NewLocalBlobStore(cfg.BaseDir, cfg.MaxSize)
	case "s3":
		return blobstore.NewS3BlobStore(ctx, blobstore.S3Config{
			Bucket:       cfg.S3Bucket,
			Region:       cfg.S3Region,
			BaseEndpoint: cfg.S3BaseEndpoint,
			AccessKey:    cfg.S3AccessKey,
			SecretKey:    cfg.S3SecretKey,
			MaxSize:      cfg.MaxSize,
		})
	default:
		return nil, fmt.Errorf("unknown blob store driver %q", cfg.Driver)
	}
}
