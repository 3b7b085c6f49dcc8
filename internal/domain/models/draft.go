package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type DraftStatus string

const (
	DraftStatusDraft           DraftStatus = "draft"
	DraftStatusPendingApproval DraftStatus = "pending_approval"
	DraftStatusApproved        DraftStatus = "approved"
	DraftStatusRejected        DraftStatus = "rejected"
)

// Awaiting: заявка ещё ждёт решения апрувера
func (s DraftStatus) Awaiting() bool {
	return s == DraftStatusDraft || s == DraftStatusPendingApproval
}

type Tier string

const (
	TierStandard  Tier = "standard"
	TierPremium   Tier = "premium"
	TierExclusive Tier = "exclusive"
	TierPrincipal Tier = "principal"
)

func ParseTier(s string) (Tier, error) {
	switch t := Tier(strings.ToLower(s)); t {
	case TierStandard, TierPremium, TierExclusive, TierPrincipal:
		return t, nil
	default:
		return "", fmt.Errorf("unknown tier %q", s)
	}
}

// PublishRecord отслеживает регистрацию одного загруженного блоба в леджере
type PublishRecord struct {
	BlobID      string `json:"blob_id"`
	IsPublished bool   `json:"is_published"`
}

// Draft представляет заявку на альбом до публикации
type Draft struct {
	ID           uuid.UUID   `json:"id"`
	Owner        string      `json:"owner"`
	Name         string      `json:"name"`
	Tier         Tier        `json:"tier"`
	Price        int64       `json:"price"`
	Description  string      `json:"description"`
	Tags         []string    `json:"tags"`
	Status       DraftStatus `json:"status"`
	PreviewItems []string    `json:"preview_items"`
	ContentItems [][]byte    `json:"-"`
	CreatedAt    time.Time   `json:"created_at"`

	// Заполняются оркестратором публикации
	ContainerID    string          `json:"container_id,omitempty"`
	CapabilityID   string          `json:"capability_id,omitempty"`
	Uploads        []string        `json:"uploads,omitempty"`
	PublishRecords []PublishRecord `json:"publish_records"`
}

// NewDraft собирает заявку в статусе pending_approval. Поля проверяются отдельно через Validate.
func NewDraft(owner, name string, tier Tier, price int64, description string, tags, previews []string, content [][]byte) Draft {
	if tags == nil {
		tags = []string{}
	}
	if previews == nil {
		previews = []string{}
	}

	return Draft{
		ID:             uuid.New(),
		Owner:          owner,
		Name:           name,
		Tier:           tier,
		Price:          price,
		Description:    description,
		Tags:           tags,
		Status:         DraftStatusPendingApproval,
		PreviewItems:   previews,
		ContentItems:   content,
		CreatedAt:      time.Now().UTC(),
		Uploads:        make([]string, len(content)),
		PublishRecords: []PublishRecord{},
	}
}

// Validate проверяет обязательные поля заявки
func (d *Draft) Validate() error {
	var validationErrors []string

	if strings.TrimSpace(d.Owner) == "" {
		validationErrors = append(validationErrors, "owner is required")
	}
	if strings.TrimSpace(d.Name) == "" {
		validationErrors = append(validationErrors, "name is required")
	}
	if d.Price <= 0 {
		validationErrors = append(validationErrors, "price must be positive")
	}
	if len(d.ContentItems) == 0 {
		validationErrors = append(validationErrors, "at least one content item is required")
	}
	for i, item := range d.ContentItems {
		if len(item) == 0 {
			validationErrors = append(validationErrors, fmt.Sprintf("content item %d is empty", i))
		}
	}
	if _, err := ParseTier(string(d.Tier)); err != nil {
		validationErrors = append(validationErrors, err.Error())
	}

	if len(validationErrors) > 0 {
		return &ValidationError{Errors: validationErrors}
	}

	return nil
}

// Started: контейнер в леджере уже создан
func (d *Draft) Started() bool {
	return d.ContainerID != ""
}

// MissingUploads возвращает индексы контента, для которых ещё нет блоба
func (d *Draft) MissingUploads() []int {
	var missing []int
	for i := range d.ContentItems {
		if i >= len(d.Uploads) || d.Uploads[i] == "" {
			missing = append(missing, i)
		}
	}
	return missing
}

// State считает прогресс публикации по publish records
func (d *Draft) State() PublicationState {
	remaining := 0
	for _, rec := range d.PublishRecords {
		if !rec.IsPublished {
			remaining++
		}
	}

	return PublicationState{
		Kind:      PublicationPending,
		Remaining: remaining,
		Total:     len(d.PublishRecords),
	}
}

// FullyPublished истинно, только если записи есть и все подтверждены
func (d *Draft) FullyPublished() bool {
	if len(d.PublishRecords) == 0 {
		return false
	}
	for _, rec := range d.PublishRecords {
		if !rec.IsPublished {
			return false
		}
	}
	return true
}

// MarkPublished отмечает запись blobID. Второе значение false, если такого блоба нет.
func (d *Draft) MarkPublished(blobID string) (changed bool, found bool) {
	for i := range d.PublishRecords {
		if d.PublishRecords[i].BlobID != blobID {
			continue
		}
		if d.PublishRecords[i].IsPublished {
			return false, true
		}
		d.PublishRecords[i].IsPublished = true
		return true, true
	}
	return false, false
}

// Clone глубокая копия, слайсы не разделяются с оригиналом
func (d Draft) Clone() Draft {
	c := d
	c.Tags = append([]string(nil), d.Tags...)
	c.PreviewItems = append([]string(nil), d.PreviewItems...)
	c.Uploads = append([]string(nil), d.Uploads...)
	c.PublishRecords = append([]PublishRecord(nil), d.PublishRecords...)
	c.ContentItems = make([][]byte, len(d.ContentItems))
	for i, item := range d.ContentItems {
		c.ContentItems[i] = append([]byte(nil), item...)
	}
	return c
}
