package http

import (
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"albumvault/internal/domain/models"
	"albumvault/internal/lib/jwt"
	"albumvault/internal/lib/wallet"
	"albumvault/internal/transport/http/dto"
	"albumvault/internal/transport/http/dto/response"
)

// CreateSessionKey godoc
// @Summary Получить сессионный ключ
// @Description Возвращает кэшированный ключ или выпускает новый. Запрос ждёт подписи кошелька,
// @Description который читает challenge и отправляет подпись через /access/session-key/{address}/signature.
// @Tags access
// @Accept json
// @Produce json
// @Param request body dto.SessionKeyRequest true "Адрес, контейнер и срок жизни"
// @Success 200 {object} response.Response{data=dto.SessionKeyResponse}
// @Failure 400 {object} response.ErrorResponse "Неверный формат запроса"
// @Failure 502 {object} response.ErrorResponse "Кошелёк не подписал challenge"
// @Router /access/session-key [post]
func (r *Routers) CreateSessionKey(c echo.Context) error {
	const op = "http.routers.CreateSessionKey"
	log := r.log.With(slog.String("op", op))

	var req dto.SessionKeyRequest
	if ok, err := r.bind(c, log, &req); !ok {
		return err
	}

	ttl := time.Duration(req.TTLMinutes) * time.Minute

	key, err := r.AccessService.EnsureSessionKey(c.Request().Context(), req.Address, req.Scope, ttl)
	if err != nil {
		return r.fail(c, log, err)
	}

	token, err := jwt.NewSessionToken(key, r.tokenSecret)
	if err != nil {
		return r.fail(c, log, err)
	}

	return c.JSON(http.StatusOK, response.SuccessResponse(dto.SessionKeyResponse{
		Token:     token,
		Address:   key.Address,
		Scope:     key.PolicyScope,
		ExpiresAt: key.ExpiresAt,
	}))
}

// GetChallenge godoc
// @Summary Challenge для подписи кошельком
// @Tags access
// @Produce json
// @Param address path string true "Адрес кошелька"
// @Success 200 {object} response.Response{data=dto.ChallengeResponse}
// @Failure 404 {object} response.ErrorResponse "Нет ожидающего challenge"
// @Router /access/session-key/{address}/challenge [get]
func (r *Routers) GetChallenge(c echo.Context) error {
	const op = "http.routers.GetChallenge"
	log := r.log.With(slog.String("op", op))

	address := c.Param("address")

	msg, err := r.Wallet.Challenge(c.Request().Context(), address)
	if err != nil {
		return r.fail(c, log, err)
	}

	return c.JSON(http.StatusOK, response.SuccessResponse(dto.ChallengeResponse{Address: address, Message: msg}))
}

// SubmitSignature godoc
// @Summary Отправить подпись challenge
// @Tags access
// @Accept json
// @Produce json
// @Param address path string true "Адрес кошелька"
// @Description Подпись принимается, только если ключ принадлежит адресу и подписан текущий challenge.
// @Param request body dto.SignatureRequest true "Публичный ключ и подпись в hex"
// @Success 202 {object} response.Response
// @Failure 401 {object} response.ErrorResponse "Подпись не от этого адреса"
// @Failure 404 {object} response.ErrorResponse "Нет ожидающего challenge"
// @Failure 429 {object} response.ErrorResponse "Слишком много попыток"
// @Router /access/session-key/{address}/signature [post]
func (r *Routers) SubmitSignature(c echo.Context) error {
	const op = "http.routers.SubmitSignature"
	log := r.log.With(slog.String("op", op))

	var req dto.SignatureRequest
	if ok, err := r.bind(c, log, &req); !ok {
		return err
	}

	pub, err := decodeHex(req.PublicKey)
	if err != nil {
		return c.JSON(http.StatusBadRequest, response.ErrorResponseWithDetails("invalid_request", "public_key must be hex encoded"))
	}
	sig, err := decodeHex(req.Signature)
	if err != nil {
		return c.JSON(http.StatusBadRequest, response.ErrorResponseWithDetails("invalid_request", "signature must be hex encoded"))
	}

	err = r.Wallet.SubmitSignature(c.Request().Context(), c.Param("address"), wallet.Signature{PublicKey: pub, Signature: sig})
	if err != nil {
		return r.fail(c, log, err)
	}

	return c.JSON(http.StatusAccepted, response.Response{Status: "success", Message: "signature accepted"})
}

// Decrypt godoc
// @Summary Расшифровать контент альбома
// @Description Проверяет доступ через policy check и расшифровывает блобы в исходном порядке.
// @Description Если часть элементов не удалась, возвращает 207 с ошибками по каждому.
// @Tags access
// @Accept json
// @Produce json
// @Param request body dto.DecryptRequest true "Токен сессии, контейнер и blob ids"
// @Success 200 {object} response.Response{data=dto.DecryptResponse}
// @Success 207 {object} response.Response{data=dto.DecryptResponse}
// @Failure 401 {object} response.ErrorResponse "Сессия истекла или не подходит"
// @Failure 403 {object} response.ErrorResponse "Нет доступа к контейнеру"
// @Router /access/decrypt [post]
func (r *Routers) Decrypt(c echo.Context) error {
	const op = "http.routers.Decrypt"
	log := r.log.With(slog.String("op", op))

	var req dto.DecryptRequest
	if ok, err := r.bind(c, log, &req); !ok {
		return err
	}

	claims, err := jwt.ParseSessionToken(req.Token, r.tokenSecret, r.now())
	if err != nil {
		return r.fail(c, log, err)
	}

	key, err := r.AccessService.Lookup(claims.Address, req.Scope)
	if err != nil {
		return r.fail(c, log, err)
	}

	report, err := r.AccessService.RetrieveAndDecrypt(c.Request().Context(), req.BlobIDs, key, req.Scope)

	var pe *models.PartialBatchError
	switch {
	case errors.As(err, &pe):
		return c.JSON(http.StatusMultiStatus, response.Response{
			Status:  "partial",
			Data:    newDecryptResponse(report),
			Message: pe.Error(),
		})
	case err != nil:
		return r.fail(c, log, err)
	}

	return c.JSON(http.StatusOK, response.SuccessResponse(newDecryptResponse(report)))
}

func decodeHex(s string) ([]byte, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err == nil && len(b) == 0 {
		err = errors.New("empty value")
	}
	return b, err
}

func newDecryptResponse(report models.DecryptReport) dto.DecryptResponse {
	items := make([]dto.DecryptedItemResponse, 0, len(report.Items))
	for _, it := range report.Items {
		item := dto.DecryptedItemResponse{BlobID: it.BlobID, Data: it.Data}
		if it.Err != nil {
			item.Error = it.Err.Error()
		}
		items = append(items, item)
	}

	return dto.DecryptResponse{Items: items, Failed: report.Failed()}
}
