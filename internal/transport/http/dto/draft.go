package dto

import (
	"time"

	"github.com/google/uuid"

	"albumvault/internal/domain/models"
)

// SubmitDraftRequest: поля заявки без производных (status, container, records)
type SubmitDraftRequest struct {
	Owner        string   `json:"owner" validate:"required"`
	Name         string   `json:"name" validate:"required"`
	Tier         string   `json:"tier" validate:"required,oneof=standard premium exclusive principal"`
	Price        int64    `json:"price" validate:"required,gt=0"`
	Description  string   `json:"description"`
	Tags         []string `json:"tags"`
	PreviewItems []string `json:"preview_items"`
	// plaintext элементы в base64
	ContentItems [][]byte `json:"content_items" validate:"required,min=1,dive,min=1"`
}

type DraftResponse struct {
	ID             uuid.UUID              `json:"id"`
	Owner          string                 `json:"owner"`
	Name           string                 `json:"name"`
	Tier           models.Tier            `json:"tier"`
	Price          int64                  `json:"price"`
	Description    string                 `json:"description"`
	Tags           []string               `json:"tags"`
	Status         models.DraftStatus     `json:"status"`
	PreviewItems   []string               `json:"preview_items"`
	ContentCount   int                    `json:"content_count"`
	CreatedAt      time.Time              `json:"created_at"`
	ContainerID    string                 `json:"container_id,omitempty"`
	CapabilityID   string                 `json:"capability_id,omitempty"`
	Uploads        []string               `json:"uploads,omitempty"`
	PublishRecords []models.PublishRecord `json:"publish_records"`
}

func NewDraftResponse(d models.Draft) DraftResponse {
	return DraftResponse{
		ID:             d.ID,
		Owner:          d.Owner,
		Name:           d.Name,
		Tier:           d.Tier,
		Price:          d.Price,
		Description:    d.Description,
		Tags:           d.Tags,
		Status:         d.Status,
		PreviewItems:   d.PreviewItems,
		ContentCount:   len(d.ContentItems),
		CreatedAt:      d.CreatedAt,
		ContainerID:    d.ContainerID,
		CapabilityID:   d.CapabilityID,
		Uploads:        d.Uploads,
		PublishRecords: d.PublishRecords,
	}
}

func NewDraftListResponse(drafts []models.Draft) []DraftResponse {
	res := make([]DraftResponse, 0, len(drafts))
	for _, d := range drafts {
		res = append(res, NewDraftResponse(d))
	}
	return res
}

type ScoreResponse struct {
	Identity string `json:"identity"`
	Score    int64  `json:"score"`
}
