package repository

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

type ApproverRepo struct {
	db *pgxpool.Pool
	sb sq.StatementBuilderType
}

func NewApproverRepo(db *pgxpool.Pool) *ApproverRepo {
	return &ApproverRepo{
		db: db,
		sb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Score возвращает счёт апрувера, ноль если он ещё ничего не одобрял
func (r *ApproverRepo) Score(ctx context.Context, identity string) (int64, error) {
	const op = "repository.ApproverRepo.Score"

	query, args, err := r.sb.Select("score").
		From("approver_scores").
		Where(sq.Eq{"identity": identity}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	var score int64
	if err := r.db.QueryRow(ctx, query, args...).Scan(&score); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return score, nil
}
