package http

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"albumvault/internal/domain/models"
	"albumvault/internal/transport/http/dto"
	"albumvault/internal/transport/http/dto/response"
)

// Publish godoc
// @Summary Начать публикацию
// @Description Создаёт контейнер на леджере, шифрует и загружает контент одобренной заявки.
// @Description При частичном сбое возвращает 207 со списком неудавшихся элементов; повтор через /my-album/publish/resume.
// @Tags publication
// @Accept json
// @Produce json
// @Param request body dto.PublishRequest true "UUID заявки"
// @Success 200 {object} response.Response{data=models.UploadReport}
// @Success 207 {object} response.Response{data=models.UploadReport}
// @Failure 404 {object} response.ErrorResponse "Заявка не найдена"
// @Failure 409 {object} response.ErrorResponse "Публикация уже начата или заявка не одобрена"
// @Failure 502 {object} response.ErrorResponse "Внешний сервис недоступен"
// @Router /my-album/publish [patch]
func (r *Routers) Publish(c echo.Context) error {
	const op = "http.routers.Publish"
	log := r.log.With(slog.String("op", op))

	var req dto.PublishRequest
	if ok, err := r.bind(c, log, &req); !ok {
		return err
	}

	report, err := r.PublicationService.BeginPublication(c.Request().Context(), req.ID)
	return r.uploadResult(c, log, report, err)
}

// ResumePublish godoc
// @Summary Догрузить контент
// @Description Шифрует и загружает только элементы без blob id.
// @Tags publication
// @Accept json
// @Produce json
// @Param request body dto.PublishRequest true "UUID заявки"
// @Success 200 {object} response.Response{data=models.UploadReport}
// @Success 207 {object} response.Response{data=models.UploadReport}
// @Failure 409 {object} response.ErrorResponse "Публикация не начата"
// @Router /my-album/publish/resume [patch]
func (r *Routers) ResumePublish(c echo.Context) error {
	const op = "http.routers.ResumePublish"
	log := r.log.With(slog.String("op", op))

	var req dto.PublishRequest
	if ok, err := r.bind(c, log, &req); !ok {
		return err
	}

	report, err := r.PublicationService.ResumeUpload(c.Request().Context(), req.ID)
	return r.uploadResult(c, log, report, err)
}

func (r *Routers) uploadResult(c echo.Context, log *slog.Logger, report models.UploadReport, err error) error {
	var pe *models.PartialBatchError
	if errors.As(err, &pe) {
		return c.JSON(http.StatusMultiStatus, response.Response{
			Status:  "partial",
			Data:    report,
			Message: pe.Error(),
		})
	}
	if err != nil {
		return r.fail(c, log, err)
	}

	return c.JSON(http.StatusOK, response.Response{
		Status:  "success",
		Data:    report,
		Message: fmt.Sprintf("%d blobs uploaded, awaiting registration", len(report.Records)),
	})
}

// ConfirmBlob godoc
// @Summary Подтвердить регистрацию блоба
// @Description Вызывается после того, как кошелёк владельца зарегистрировал блоб на леджере.
// @Description Последнее подтверждение публикует альбом и удаляет заявку.
// @Tags publication
// @Accept json
// @Produce json
// @Param draft_id path string true "UUID заявки" format(uuid)
// @Param blob_id path string true "Blob id"
// @Param request body dto.ConfirmBlobRequest false "Результат транзакции кошелька"
// @Success 200 {object} response.Response{data=models.PublicationState}
// @Failure 404 {object} response.ErrorResponse "Заявка или регистрация не найдены"
// @Failure 422 {object} response.ErrorResponse "Кошелёк отклонил транзакцию"
// @Router /my-album/publish/{draft_id}/{blob_id} [patch]
func (r *Routers) ConfirmBlob(c echo.Context) error {
	const op = "http.routers.ConfirmBlob"
	log := r.log.With(slog.String("op", op))

	id, err := parseID(c.Param("draft_id"))
	if err != nil {
		return r.fail(c, log, err)
	}

	// пустое тело означает approved
	var req dto.ConfirmBlobRequest
	if ok, err := r.bind(c, log, &req); !ok {
		return err
	}

	proof := models.WalletApproved
	if req.Proof != "" {
		proof = models.WalletProof(req.Proof)
	}

	state, err := r.PublicationService.ConfirmBlobPublished(c.Request().Context(), id, c.Param("blob_id"), proof)
	if err != nil {
		return r.fail(c, log, err)
	}

	return c.JSON(http.StatusOK, response.Response{
		Status:  "success",
		Data:    state,
		Message: stateMessage(state),
	})
}

// PublishProgress godoc
// @Summary Прогресс публикации
// @Tags publication
// @Produce json
// @Param draft_id path string true "UUID заявки" format(uuid)
// @Success 200 {object} response.Response{data=models.PublicationState}
// @Failure 404 {object} response.ErrorResponse "Заявка не найдена"
// @Router /my-album/publish/{draft_id}/progress [get]
func (r *Routers) PublishProgress(c echo.Context) error {
	const op = "http.routers.PublishProgress"
	log := r.log.With(slog.String("op", op))

	id, err := parseID(c.Param("draft_id"))
	if err != nil {
		return r.fail(c, log, err)
	}

	state, err := r.PublicationService.Progress(c.Request().Context(), id)
	if err != nil {
		return r.fail(c, log, err)
	}

	return c.JSON(http.StatusOK, response.Response{
		Status:  "success",
		Data:    state,
		Message: stateMessage(state),
	})
}

func stateMessage(state models.PublicationState) string {
	if state.Kind == models.PublicationFinalized {
		return fmt.Sprintf("album %s published", state.AlbumID)
	}
	return fmt.Sprintf("%d of %d blobs published", state.Total-state.Remaining, state.Total)
}

// RegisterBlob godoc
// @Summary Зарегистрировать блоб на локальном леджере
// @Description Только для devnet: заменяет транзакцию кошелька владельца.
// @Tags dev
// @Accept json
// @Produce json
// @Param request body dto.RegisterBlobRequest true "Capability, контейнер и blob id"
// @Success 200 {object} response.Response{data=dto.RegisterBlobResponse}
// @Failure 502 {object} response.ErrorResponse "Леджер отказал"
// @Router /dev/ledger/register-blob [post]
func (r *Routers) RegisterBlob(c echo.Context) error {
	const op = "http.routers.RegisterBlob"
	log := r.log.With(slog.String("op", op))

	var req dto.RegisterBlobRequest
	if ok, err := r.bind(c, log, &req); !ok {
		return err
	}

	digest, err := r.Registrar.RegisterBlob(c.Request().Context(), req.CapabilityID, req.ContainerID, req.BlobID)
	if err != nil {
		return r.fail(c, log, &models.CollaboratorError{Collaborator: "ledger", Op: "register_blob", Err: err})
	}

	return c.JSON(http.StatusOK, response.SuccessResponse(dto.RegisterBlobResponse{TxDigest: digest}))
}
