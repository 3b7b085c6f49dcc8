package http

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"albumvault/internal/transport/http/dto"
	"albumvault/internal/transport/http/dto/response"
)

// GetDraft godoc
// @Summary Получить заявку
// @Tags drafts
// @Produce json
// @Param id path string true "UUID заявки" format(uuid)
// @Success 200 {object} response.Response{data=dto.DraftResponse}
// @Failure 400 {object} response.ErrorResponse "Невалидный UUID"
// @Failure 404 {object} response.ErrorResponse "Заявка не найдена"
// @Router /draft-album/{id} [get]
func (r *Routers) GetDraft(c echo.Context) error {
	const op = "http.routers.GetDraft"
	log := r.log.With(slog.String("op", op))

	id, err := parseID(c.Param("id"))
	if err != nil {
		return r.fail(c, log, err)
	}

	draft, err := r.DraftService.GetDraft(c.Request().Context(), id)
	if err != nil {
		return r.fail(c, log, err)
	}

	return c.JSON(http.StatusOK, response.SuccessResponse(dto.NewDraftResponse(draft)))
}

// SubmitDraft godoc
// @Summary Отправить заявку на одобрение
// @Description Сохраняет заявку в статусе pending_approval. Контент передаётся в base64.
// @Tags drafts
// @Accept json
// @Produce json
// @Param request body dto.SubmitDraftRequest true "Поля заявки"
// @Success 201 {object} response.Response{data=object{id=string}}
// @Failure 400 {object} response.ErrorResponse "Неверный формат запроса"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /draft-album/request-approval [post]
func (r *Routers) SubmitDraft(c echo.Context) error {
	const op = "http.routers.SubmitDraft"
	log := r.log.With(slog.String("op", op))

	var req dto.SubmitDraftRequest
	if ok, err := r.bind(c, log, &req); !ok {
		return err
	}

	id, err := r.DraftService.SubmitDraft(c.Request().Context(), req)
	if err != nil {
		return r.fail(c, log, err)
	}

	return c.JSON(http.StatusCreated, response.Response{
		Status:  "success",
		Data:    map[string]string{"id": id.String()},
		Message: "draft submitted for approval",
	})
}

// ListPendingDrafts godoc
// @Summary Заявки, ожидающие одобрения
// @Description Не возвращает заявки, владельцем которых является сам одобряющий.
// @Tags approval
// @Produce json
// @Param approver path string true "Идентификатор одобряющего"
// @Success 200 {object} response.Response{data=[]dto.DraftResponse}
// @Router /draft-album-approval/{approver} [get]
func (r *Routers) ListPendingDrafts(c echo.Context) error {
	const op = "http.routers.ListPendingDrafts"
	log := r.log.With(slog.String("op", op))

	drafts, err := r.DraftService.ListPendingForApprover(c.Request().Context(), c.Param("approver"))
	if err != nil {
		return r.fail(c, log, err)
	}

	return c.JSON(http.StatusOK, response.SuccessResponse(dto.NewDraftListResponse(drafts)))
}

// ApproveDraft godoc
// @Summary Одобрить заявку
// @Description Повторное одобрение тем же участником не начисляет очки повторно.
// @Tags approval
// @Produce json
// @Param draft_id path string true "UUID заявки" format(uuid)
// @Param approver path string true "Идентификатор одобряющего"
// @Success 200 {object} response.Response{data=models.ApprovalResult}
// @Failure 404 {object} response.ErrorResponse "Заявка не найдена"
// @Failure 409 {object} response.ErrorResponse "Недопустимый переход статуса"
// @Router /draft-album-approval/{draft_id}/{approver} [patch]
func (r *Routers) ApproveDraft(c echo.Context) error {
	const op = "http.routers.ApproveDraft"
	log := r.log.With(slog.String("op", op))

	id, err := parseID(c.Param("draft_id"))
	if err != nil {
		return r.fail(c, log, err)
	}

	res, err := r.DraftService.Approve(c.Request().Context(), id, c.Param("approver"))
	if err != nil {
		return r.fail(c, log, err)
	}

	return c.JSON(http.StatusOK, response.Response{
		Status:  "success",
		Data:    res,
		Message: "draft approved",
	})
}

// RejectDraft godoc
// @Summary Отклонить заявку
// @Tags approval
// @Produce json
// @Param draft_id path string true "UUID заявки" format(uuid)
// @Param approver path string true "Идентификатор одобряющего"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse "Заявка не найдена"
// @Failure 409 {object} response.ErrorResponse "Недопустимый переход статуса"
// @Router /draft-album-rejection/{draft_id}/{approver} [patch]
func (r *Routers) RejectDraft(c echo.Context) error {
	const op = "http.routers.RejectDraft"
	log := r.log.With(slog.String("op", op))

	id, err := parseID(c.Param("draft_id"))
	if err != nil {
		return r.fail(c, log, err)
	}

	status, err := r.DraftService.Reject(c.Request().Context(), id, c.Param("approver"))
	if err != nil {
		return r.fail(c, log, err)
	}

	return c.JSON(http.StatusOK, response.Response{
		Status:  "success",
		Data:    map[string]string{"status": string(status)},
		Message: "draft rejected",
	})
}

// ListOwnedDrafts godoc
// @Summary Заявки владельца
// @Tags drafts
// @Produce json
// @Param owner path string true "Идентификатор владельца"
// @Success 200 {object} response.Response{data=[]dto.DraftResponse}
// @Router /my-album/{owner} [get]
func (r *Routers) ListOwnedDrafts(c echo.Context) error {
	const op = "http.routers.ListOwnedDrafts"
	log := r.log.With(slog.String("op", op))

	drafts, err := r.DraftService.ListOwned(c.Request().Context(), c.Param("owner"))
	if err != nil {
		return r.fail(c, log, err)
	}

	return c.JSON(http.StatusOK, response.SuccessResponse(dto.NewDraftListResponse(drafts)))
}

// ApproverScore godoc
// @Summary Очки одобряющего
// @Tags approval
// @Produce json
// @Param identity path string true "Идентификатор"
// @Success 200 {object} response.Response{data=dto.ScoreResponse}
// @Router /approver-score/{identity} [get]
func (r *Routers) ApproverScore(c echo.Context) error {
	const op = "http.routers.ApproverScore"
	log := r.log.With(slog.String("op", op))

	identity := c.Param("identity")

	score, err := r.DraftService.ApproverScore(c.Request().Context(), identity)
	if err != nil {
		return r.fail(c, log, err)
	}

	return c.JSON(http.StatusOK, response.SuccessResponse(dto.ScoreResponse{Identity: identity, Score: score}))
}
