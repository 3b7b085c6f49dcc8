package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"albumvault/internal/domain/models"
	"albumvault/internal/lib/jwt"
	"albumvault/internal/lib/logger/sl"
	"albumvault/internal/lib/wallet"
	"albumvault/internal/sealing"
	access "albumvault/internal/services/access_service"
	publication "albumvault/internal/services/publication_service"
	"albumvault/internal/storage"
	"albumvault/internal/storage/redis"
	"albumvault/internal/transport/http/dto"
	"albumvault/internal/transport/http/dto/response"

	_ "albumvault/docs"
)

type DraftService interface {
	SubmitDraft(ctx context.Context, req dto.SubmitDraftRequest) (uuid.UUID, error)
	ListPendingForApprover(ctx context.Context, approver string) ([]models.Draft, error)
	ListOwned(ctx context.Context, owner string) ([]models.Draft, error)
	GetDraft(ctx context.Context, id uuid.UUID) (models.Draft, error)
	Approve(ctx context.Context, id uuid.UUID, approver string) (models.ApprovalResult, error)
	Reject(ctx context.Context, id uuid.UUID, approver string) (models.DraftStatus, error)
	ApproverScore(ctx context.Context, identity string) (int64, error)
}

type PublicationService interface {
	BeginPublication(ctx context.Context, draftID uuid.UUID) (models.UploadReport, error)
	ResumeUpload(ctx context.Context, draftID uuid.UUID) (models.UploadReport, error)
	ConfirmBlobPublished(ctx context.Context, draftID uuid.UUID, blobID string, proof models.WalletProof) (models.PublicationState, error)
	Progress(ctx context.Context, draftID uuid.UUID) (models.PublicationState, error)
}

type AlbumService interface {
	ListAlbums(ctx context.Context) ([]models.Album, error)
	GetAlbum(ctx context.Context, albumID string) (models.Album, error)
	RecordPurchase(ctx context.Context, albumID, supporter string) (bool, error)
	ListPurchased(ctx context.Context, identity string) ([]models.Album, error)
	RecordInteraction(ctx context.Context, albumID, kind string) (models.Interaction, error)
}

type AccessService interface {
	EnsureSessionKey(ctx context.Context, address, scope string, ttl time.Duration) (*models.SessionKey, error)
	Lookup(address, scope string) (*models.SessionKey, error)
	RetrieveAndDecrypt(ctx context.Context, blobIDs []string, key *models.SessionKey, scope string) (models.DecryptReport, error)
}

// WalletInbox is the wallet side of the signature relay.
type WalletInbox interface {
	Challenge(ctx context.Context, address string) (string, error)
	SubmitSignature(ctx context.Context, address string, sig wallet.Signature) error
}

// BlobRegistrar stands in for the owner's wallet on the local devnet ledger.
type BlobRegistrar interface {
	RegisterBlob(ctx context.Context, capabilityID, containerID, blobID string) (string, error)
}

type Routers struct {
	log                *slog.Logger
	DraftService       DraftService
	PublicationService PublicationService
	AlbumService       AlbumService
	AccessService      AccessService
	Wallet             WalletInbox
	Registrar          BlobRegistrar

	tokenSecret string
	now         func() time.Time
}

func NewRouter(
	log *slog.Logger,
	draftService DraftService,
	publicationService PublicationService,
	albumService AlbumService,
	accessService AccessService,
	wallet WalletInbox,
	registrar BlobRegistrar,
	tokenSecret string,
) *Routers {
	return &Routers{
		log:                log,
		DraftService:       draftService,
		PublicationService: publicationService,
		AlbumService:       albumService,
		AccessService:      accessService,
		Wallet:             wallet,
		Registrar:          registrar,
		tokenSecret:        tokenSecret,
		now:                time.Now,
	}
}

var ErrInvalidUUID = errors.New("not valid UUID")

// StatusOf maps a service error to the HTTP status and the public error code.
func StatusOf(err error) (int, string) {
	var ve *models.ValidationError

	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, "validation_failed"
	case errors.Is(err, ErrInvalidUUID):
		return http.StatusBadRequest, "invalid_id"
	case errors.Is(err, storage.ErrDraftNotFound),
		errors.Is(err, storage.ErrAlbumNotFound),
		errors.Is(err, storage.ErrRecordNotFound),
		errors.Is(err, publication.ErrNotRegistered),
		errors.Is(err, redis.ErrNoChallenge),
		errors.Is(err, access.ErrSessionNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, storage.ErrAlreadyStarted),
		errors.Is(err, storage.ErrNotStarted),
		errors.Is(err, storage.ErrInvalidStatus),
		errors.Is(err, storage.ErrSelfApproval),
		errors.Is(err, storage.ErrRecordsExist),
		errors.Is(err, storage.ErrUploadIncomplete):
		return http.StatusConflict, "conflict"
	case errors.Is(err, publication.ErrWalletRejected),
		errors.Is(err, publication.ErrWalletFailed):
		return http.StatusUnprocessableEntity, "wallet_rejected"
	case errors.Is(err, wallet.ErrInvalidSignature),
		errors.Is(err, wallet.ErrAddressMismatch),
		errors.Is(err, wallet.ErrInvalidPublicKey):
		return http.StatusUnauthorized, "signature_invalid"
	case errors.Is(err, access.ErrSessionExpired),
		errors.Is(err, access.ErrScopeMismatch),
		errors.Is(err, jwt.ErrInvalidToken),
		errors.Is(err, jwt.ErrInvalidTokenClaims),
		errors.Is(err, jwt.ErrTokenExpired):
		return http.StatusUnauthorized, "session_invalid"
	case errors.Is(err, sealing.ErrAccessDenied):
		return http.StatusForbidden, "access_denied"
	case errors.Is(err, redis.ErrThrottled):
		return http.StatusTooManyRequests, "throttled"
	case errors.Is(err, storage.ErrBlobTooLarge):
		return http.StatusRequestEntityTooLarge, "too_large"
	case models.IsCollaboratorError(err):
		return http.StatusBadGateway, "collaborator_unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func (r *Routers) fail(c echo.Context, log *slog.Logger, err error) error {
	status, code := StatusOf(err)

	details := err.Error()
	var ve *models.ValidationError
	if errors.As(err, &ve) {
		details = strings.Join(ve.Errors, "; ")
	}

	if status >= http.StatusInternalServerError {
		log.Error("request failed", sl.Err(err))
		if status == http.StatusInternalServerError {
			return c.JSON(status, response.ErrInternal)
		}
	} else {
		log.Warn("request rejected", slog.Int("status", status), sl.Err(err))
	}

	return c.JSON(status, response.ErrorResponseWithDetails(code, details))
}

// bind writes the 400 response itself and reports ok=false when the request is unusable.
func (r *Routers) bind(c echo.Context, log *slog.Logger, req interface{}) (bool, error) {
	if err := c.Bind(req); err != nil {
		log.Warn("failed to bind request", sl.Err(err))
		return false, c.JSON(http.StatusBadRequest, response.ErrInvalidRequestFormat)
	}

	if err := c.Validate(req); err != nil {
		log.Warn("validation failed", sl.Err(err))
		return false, c.JSON(http.StatusBadRequest, response.ErrorResponseWithDetails("invalid_request", err.Error()))
	}

	return true, nil
}

func parseID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, ErrInvalidUUID
	}
	return id, nil
}

// Health godoc
// @Summary Проверка работоспособности
// @Tags system
// @Produce json
// @Success 200 {object} response.Response
// @Router /health [get]
func (r *Routers) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, response.Response{Status: "success", Message: "ok"})
}
