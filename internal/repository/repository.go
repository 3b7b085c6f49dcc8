package repository

import (
	"context"
	"fmt"

	"albumvault/internal/storage/postgresql"
)

type Repository struct {
	Drafts    DraftRepository
	Albums    AlbumRepository
	Approvers ApproverRepository

	close func()
}

func NewRepository(ctx context.Context, dsn string) (*Repository, error) {
	st, err := postgresql.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &Repository{
		Drafts:    NewDraftRepo(st.DB),
		Albums:    NewAlbumRepo(st.DB),
		Approvers: NewApproverRepo(st.DB),
		close:     st.Stop,
	}, nil
}

// NewMemoryRepository is backed by a single in-process store shared by every repository.
func NewMemoryRepository() *Repository {
	m := NewMemoryStore()

	return &Repository{
		Drafts:    m,
		Albums:    m,
		Approvers: m,
		close:     func() {},
	}
}

func (r *Repository) Close() {
	r.close()
}
