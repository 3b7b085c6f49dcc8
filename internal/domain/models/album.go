package models

import (
	"errors"
	"time"
)

var ErrDraftNotFullyPublished = errors.New("draft is not fully published")

type InteractionKind string

const (
	InteractionLike  InteractionKind = "like"
	InteractionShare InteractionKind = "share"
	InteractionSave  InteractionKind = "save"
)

type Interaction struct {
	Likes  int64 `json:"likes"`
	Shares int64 `json:"shares"`
	Saves  int64 `json:"saves"`
}

// Album опубликованный альбом, неизменяемый после создания
type Album struct {
	AlbumID      string      `json:"album_id"`
	Owner        string      `json:"owner"`
	Name         string      `json:"name"`
	Tier         Tier        `json:"tier"`
	Price        int64       `json:"price"`
	Description  string      `json:"description"`
	Tags         []string    `json:"tags"`
	PreviewItems []string    `json:"preview_items"`
	BlobIDs      []string    `json:"blob_ids"`
	CreatedAt    time.Time   `json:"created_at"`
	Interaction  Interaction `json:"interaction"`

	// capability владельца, через неё выдаётся доступ покупателям
	CapabilityID string `json:"-"`
}

// NewAlbumFromDraft единственный способ получить опубликованный альбом.
// Id альбома совпадает с id контейнера заявки в леджере.
func NewAlbumFromDraft(d Draft) (Album, error) {
	if !d.Started() || !d.FullyPublished() {
		return Album{}, ErrDraftNotFullyPublished
	}

	blobIDs := make([]string, 0, len(d.PublishRecords))
	for _, rec := range d.PublishRecords {
		blobIDs = append(blobIDs, rec.BlobID)
	}

	return Album{
		AlbumID:      d.ContainerID,
		Owner:        d.Owner,
		Name:         d.Name,
		Tier:         d.Tier,
		Price:        d.Price,
		Description:  d.Description,
		Tags:         append([]string{}, d.Tags...),
		PreviewItems: append([]string{}, d.PreviewItems...),
		BlobIDs:      blobIDs,
		CreatedAt:    time.Now().UTC(),
		CapabilityID: d.CapabilityID,
	}, nil
}
