package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"albumvault/internal/domain/models"
	"albumvault/internal/lib/logger/sl"
	"albumvault/internal/repository"
	"albumvault/internal/transport/http/dto"
)

type DraftService struct {
	log       *slog.Logger
	drafts    repository.DraftRepository
	approvers repository.ApproverRepository
}

func NewDraftService(log *slog.Logger, drafts repository.DraftRepository, approvers repository.ApproverRepository) *DraftService {
	return &DraftService{
		log:       log,
		drafts:    drafts,
		approvers: approvers,
	}
}

// SubmitDraft сохраняет заявку в статусе pending_approval
func (s *DraftService) SubmitDraft(ctx context.Context, req dto.SubmitDraftRequest) (uuid.UUID, error) {
	const op = "service.DraftService.SubmitDraft"
	log := s.log.With(
		slog.String("op", op),
		slog.String("owner", req.Owner),
	)

	draft := models.NewDraft(
		strings.TrimSpace(req.Owner),
		strings.TrimSpace(req.Name),
		models.Tier(strings.ToLower(strings.TrimSpace(req.Tier))),
		req.Price,
		req.Description,
		req.Tags,
		req.PreviewItems,
		req.ContentItems,
	)

	if err := draft.Validate(); err != nil {
		log.Warn("invalid draft", sl.Err(err))
		return uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	id, err := s.drafts.SaveDraft(ctx, draft)
	if err != nil {
		log.Error("failed to save draft", sl.Err(err))
		return uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("draft submitted", slog.String("draft_id", id.String()), slog.Int("items", len(draft.ContentItems)))

	return id, nil
}

// ListPendingForApprover не возвращает заявки самого апрувера
func (s *DraftService) ListPendingForApprover(ctx context.Context, approver string) ([]models.Draft, error) {
	const op = "service.DraftService.ListPendingForApprover"

	if err := requireIdentity("approver", approver); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	drafts, err := s.drafts.ListAwaitingApproval(ctx, approver)
	if err != nil {
		s.log.Error("failed to list drafts", slog.String("op", op), sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return drafts, nil
}

func (s *DraftService) ListOwned(ctx context.Context, owner string) ([]models.Draft, error) {
	const op = "service.DraftService.ListOwned"

	if err := requireIdentity("owner", owner); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	drafts, err := s.drafts.ListByOwner(ctx, owner)
	if err != nil {
		s.log.Error("failed to list drafts", slog.String("op", op), sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return drafts, nil
}

func (s *DraftService) GetDraft(ctx context.Context, id uuid.UUID) (models.Draft, error) {
	const op = "service.DraftService.GetDraft"

	d, err := s.drafts.GetDraft(ctx, id)
	if err != nil {
		return models.Draft{}, fmt.Errorf("%s: %w", op, err)
	}

	return d, nil
}

// Approve идемпотентен для пары (draft, approver): повтор не меняет статус и не начисляет очко
func (s *DraftService) Approve(ctx context.Context, id uuid.UUID, approver string) (models.ApprovalResult, error) {
	const op = "service.DraftService.Approve"
	log := s.log.With(
		slog.String("op", op),
		slog.String("draft_id", id.String()),
		slog.String("approver", approver),
	)

	if err := requireIdentity("approver", approver); err != nil {
		return models.ApprovalResult{}, fmt.Errorf("%s: %w", op, err)
	}

	res, err := s.drafts.Approve(ctx, id, approver)
	if err != nil {
		log.Warn("approve failed", sl.Err(err))
		return models.ApprovalResult{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("draft approved", slog.Bool("scored", res.Scored))

	return res, nil
}

func (s *DraftService) Reject(ctx context.Context, id uuid.UUID, approver string) (models.DraftStatus, error) {
	const op = "service.DraftService.Reject"
	log := s.log.With(
		slog.String("op", op),
		slog.String("draft_id", id.String()),
		slog.String("approver", approver),
	)

	if err := requireIdentity("approver", approver); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	status, err := s.drafts.Reject(ctx, id, approver)
	if err != nil {
		log.Warn("reject failed", sl.Err(err))
		return "", fmt.Errorf("%s: %w", op, err)
	}

	log.Info("draft rejected")

	return status, nil
}

func (s *DraftService) ApproverScore(ctx context.Context, identity string) (int64, error) {
	const op = "service.DraftService.ApproverScore"

	if err := requireIdentity("identity", identity); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	score, err := s.approvers.Score(ctx, identity)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return score, nil
}

func requireIdentity(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return &models.ValidationError{Errors: []string{field + " is required"}}
	}
	return nil
}
