package dto

import "albumvault/internal/domain/models"

type PurchaseResponse struct {
	AlbumID   string `json:"album_id"`
	Supporter string `json:"supporter"`
	// false when the supporter had already purchased the album
	Added bool `json:"added"`
}

type InteractionResponse struct {
	AlbumID     string             `json:"album_id"`
	Interaction models.Interaction `json:"interaction"`
}
