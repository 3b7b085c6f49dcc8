package postgresql

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"
	_ "github.com/jackc/pgx/v4/stdlib"
	"github.com/pressly/goose/v3"

	"albumvault/internal/storage/postgresql/migrations"
)

type Storage struct {
	DB *pgxpool.Pool
}

// New подключается к базе и накатывает миграции
func New(ctx context.Context, dsn string) (*Storage, error) {
	const op = "storage.postgresql.New"

	if err := Migrate(ctx, dsn); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	db, err := pgxpool.Connect(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{DB: db}, nil
}

func (s *Storage) Stop() {
	s.DB.Close()
}

// Migrate накатывает встроенные миграции goose через database/sql драйвер pgx
func Migrate(ctx context.Context, dsn string) error {
	const op = "storage.postgresql.Migrate"

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer db.Close()

	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
