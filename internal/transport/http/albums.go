package http

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"albumvault/internal/transport/http/dto"
	"albumvault/internal/transport/http/dto/response"
)

// ListAlbums godoc
// @Summary Все опубликованные альбомы
// @Tags albums
// @Produce json
// @Success 200 {object} response.Response{data=[]models.Album}
// @Router /explore-albums [get]
func (r *Routers) ListAlbums(c echo.Context) error {
	const op = "http.routers.ListAlbums"
	log := r.log.With(slog.String("op", op))

	albums, err := r.AlbumService.ListAlbums(c.Request().Context())
	if err != nil {
		return r.fail(c, log, err)
	}

	return c.JSON(http.StatusOK, response.SuccessResponse(albums))
}

// GetAlbum godoc
// @Summary Опубликованный альбом
// @Tags albums
// @Produce json
// @Param album_id path string true "Id альбома (контейнера)"
// @Success 200 {object} response.Response{data=models.Album}
// @Failure 404 {object} response.ErrorResponse "Альбом не найден"
// @Router /explore-album/{album_id} [get]
func (r *Routers) GetAlbum(c echo.Context) error {
	const op = "http.routers.GetAlbum"
	log := r.log.With(slog.String("op", op))

	album, err := r.AlbumService.GetAlbum(c.Request().Context(), c.Param("album_id"))
	if err != nil {
		return r.fail(c, log, err)
	}

	return c.JSON(http.StatusOK, response.SuccessResponse(album))
}

// PurchaseAlbum godoc
// @Summary Купить альбом
// @Description Добавляет покупателя в allowlist контейнера. Повторная покупка ничего не меняет.
// @Tags albums
// @Produce json
// @Param album_id path string true "Id альбома"
// @Param supporter path string true "Идентификатор покупателя"
// @Success 200 {object} response.Response{data=dto.PurchaseResponse}
// @Failure 404 {object} response.ErrorResponse "Альбом не найден"
// @Failure 502 {object} response.ErrorResponse "Леджер недоступен"
// @Router /explore-album/purchase/{album_id}/{supporter} [post]
func (r *Routers) PurchaseAlbum(c echo.Context) error {
	const op = "http.routers.PurchaseAlbum"
	log := r.log.With(slog.String("op", op))

	albumID, supporter := c.Param("album_id"), c.Param("supporter")

	added, err := r.AlbumService.RecordPurchase(c.Request().Context(), albumID, supporter)
	if err != nil {
		return r.fail(c, log, err)
	}

	return c.JSON(http.StatusOK, response.SuccessResponse(dto.PurchaseResponse{
		AlbumID:   albumID,
		Supporter: supporter,
		Added:     added,
	}))
}

// ListPurchased godoc
// @Summary Купленные альбомы
// @Tags albums
// @Produce json
// @Param owner path string true "Идентификатор покупателя"
// @Success 200 {object} response.Response{data=[]models.Album}
// @Router /my-album/purchase/{owner} [get]
func (r *Routers) ListPurchased(c echo.Context) error {
	const op = "http.routers.ListPurchased"
	log := r.log.With(slog.String("op", op))

	albums, err := r.AlbumService.ListPurchased(c.Request().Context(), c.Param("owner"))
	if err != nil {
		return r.fail(c, log, err)
	}

	return c.JSON(http.StatusOK, response.SuccessResponse(albums))
}

// RecordInteraction godoc
// @Summary Лайк, репост или сохранение
// @Tags albums
// @Produce json
// @Param album_id path string true "Id альбома"
// @Param kind path string true "like | share | save"
// @Success 200 {object} response.Response{data=dto.InteractionResponse}
// @Failure 400 {object} response.ErrorResponse "Неизвестный тип"
// @Failure 404 {object} response.ErrorResponse "Альбом не найден"
// @Router /explore-album/{album_id}/interaction/{kind} [post]
func (r *Routers) RecordInteraction(c echo.Context) error {
	const op = "http.routers.RecordInteraction"
	log := r.log.With(slog.String("op", op))

	albumID := c.Param("album_id")

	counters, err := r.AlbumService.RecordInteraction(c.Request().Context(), albumID, c.Param("kind"))
	if err != nil {
		return r.fail(c, log, err)
	}

	return c.JSON(http.StatusOK, response.SuccessResponse(dto.InteractionResponse{
		AlbumID:     albumID,
		Interaction: counters,
	}))
}
