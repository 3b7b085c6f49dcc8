package httpapp

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	echoSwagger "github.com/swaggo/echo-swagger"

	appmiddleware "albumvault/internal/middleware"
	httprouters "albumvault/internal/transport/http"
)

type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}

type Server struct {
	log     *slog.Logger
	e       *echo.Echo
	routers *httprouters.Routers
	host    string
	port    string
	devnet  bool
}

// New builds the echo server. devnet mounts the local ledger helpers.
func New(log *slog.Logger, host, port string, devnet bool, routers *httprouters.Routers) *Server {
	e := echo.New()
	e.HideBanner = true

	e.Validator = &CustomValidator{validator: validator.New()}

	e.Use(middleware.CORS())
	e.Use(middleware.Recover())
	e.Use(appmiddleware.PrometheusMetrics)

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:      true,
		LogStatus:   true,
		LogRemoteIP: true,
		LogLatency:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.Info("request",
				slog.String("URI", v.URI),
				slog.Int("status", v.Status),
				slog.String("remote ip", v.RemoteIP),
				slog.Duration("latency", v.Latency),
			)

			return nil
		},
	}))

	return &Server{
		log:     log,
		e:       e,
		routers: routers,
		host:    host,
		port:    port,
		devnet:  devnet,
	}
}

// Handler exposes the router for httptest.
func (s *Server) Handler() http.Handler {
	return s.e
}

func (s *Server) MustRun() {
	const op = "http.Server.MustRun"

	s.log.Info(op, slog.String("Start", "server"), slog.String("port", s.port))

	if err := s.Start(); err != nil {
		panic(err)
	}
}

func (s *Server) Start() error {
	const op = "http.Server.Start"

	if err := s.e.Start(fmt.Sprintf("%s:%s", s.host, s.port)); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("%s server stopped: %w", op, err)
	}

	return nil
}

func (s *Server) Stop() error {
	const op = "http.Server.Stop"

	optCtx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()

	s.log.Info("stopping", slog.String("op", op))

	if err := s.e.Shutdown(optCtx); err != nil {
		return fmt.Errorf("%s could not shutdown server gracefuly: %w", op, err)
	}

	return nil
}

func (s *Server) BuildRouters() {
	s.e.GET("/health", s.routers.Health)
	s.e.GET("/metrics", echoprometheus.NewHandler())
	s.e.GET("/swagger/*", echoSwagger.WrapHandler)

	draft := s.e.Group("/draft-album")
	{
		draft.GET("/:id", s.routers.GetDraft)
		draft.POST("/request-approval", s.routers.SubmitDraft)
	}

	approval := s.e.Group("/draft-album-approval")
	{
		approval.GET("/:approver", s.routers.ListPendingDrafts)
		approval.PATCH("/:draft_id/:approver", s.routers.ApproveDraft)
	}
	s.e.PATCH("/draft-album-rejection/:draft_id/:approver", s.routers.RejectDraft)
	s.e.GET("/approver-score/:identity", s.routers.ApproverScore)

	my := s.e.Group("/my-album")
	{
		my.GET("/:owner", s.routers.ListOwnedDrafts)
		my.GET("/purchase/:owner", s.routers.ListPurchased)
		my.PATCH("/publish", s.routers.Publish)
		my.PATCH("/publish/resume", s.routers.ResumePublish)
		my.PATCH("/publish/:draft_id/:blob_id", s.routers.ConfirmBlob)
		my.GET("/publish/:draft_id/progress", s.routers.PublishProgress)
	}

	s.e.GET("/explore-albums", s.routers.ListAlbums)
	explore := s.e.Group("/explore-album")
	{
		explore.GET("/:album_id", s.routers.GetAlbum)
		explore.POST("/purchase/:album_id/:supporter", s.routers.PurchaseAlbum)
		explore.POST("/:album_id/interaction/:kind", s.routers.RecordInteraction)
	}

	access := s.e.Group("/access")
	{
		access.POST("/session-key", s.routers.CreateSessionKey)
		access.GET("/session-key/:address/challenge", s.routers.GetChallenge)
		access.POST("/session-key/:address/signature", s.routers.SubmitSignature)
		access.POST("/decrypt", s.routers.Decrypt)
	}

	if s.devnet && s.routers.Registrar != nil {
		s.e.POST("/dev/ledger/register-blob", s.routers.RegisterBlob)
	}
}
