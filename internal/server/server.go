package server

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/shouni/gemini-brand-kit/internal/config"
	"github.com/shouni/gemini-brand-kit/pkg/domain"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

//go:embed templates/index.html
var pageFS embed.FS

// ReferenceFetcher は URL で指定された参照写真を取得します。
type ReferenceFetcher interface {
	FetchReference(ctx context.Context, url string) (*domain.EncodedImage, error)
}

// Server は gin エンジンとセッションをまとめた HTTP サーバーです。
type Server struct {
	cfg        *config.Config
	engine     *gin.Engine
	sessions   *SessionStore
	references ReferenceFetcher
}

// New はルーティングを登録した Server を作ります。references が nil の場合は URL 指定の参照写真を受け付けません。
func New(cfg *config.Config, factory ControllerFactory, references ReferenceFetcher) (*Server, error) {
	if factory == nil {
		return nil, fmt.Errorf("factory (ControllerFactory) is required")
	}
	switch cfg.GinMode {
	case gin.DebugMode, gin.ReleaseMode, gin.TestMode:
		gin.SetMode(cfg.GinMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	page, err := template.ParseFS(pageFS, "templates/index.html")
	if err != nil {
		return nil, fmt.Errorf("ページテンプレートの解析に失敗しました: %w", err)
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger())
	engine.SetHTMLTemplate(page)

	s := &Server{
		cfg:        cfg,
		engine:     engine,
		sessions:   NewSessionStore(cfg.SessionTTL, factory),
		references: references,
	}
	s.registerRoutes()
	return s, nil
}

// Handler はテストなどから直接呼び出すための http.Handler を返します。
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run は HTTP リスナーを起動し、ctx がキャンセルされたらグレースフルに停止するのだ。
func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP サーバーを起動します", "addr", s.cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		slog.Info("シャットダウン要求を受け取りました。HTTP サーバーを停止します")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func (s *Server) registerRoutes() {
	s.engine.GET("/", s.index)
	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := s.engine.Group("/api", s.withSession())
	api.GET("/state", s.getState)
	api.GET("/presets", s.getPresets)
	api.POST("/view", s.setView)
	api.POST("/name", s.setName)
	api.POST("/style", s.setStyle)

	api.POST("/roles", s.addRole)
	api.DELETE("/roles", s.clearRoles)
	api.DELETE("/roles/:id", s.removeRole)
	api.POST("/roles/:index/up", s.moveRole(true))
	api.POST("/roles/:index/down", s.moveRole(false))

	api.POST("/reference", s.setReference)
	api.DELETE("/reference", s.clearReference)

	api.POST("/generate", s.generate)
	api.POST("/edit", s.edit)
	api.GET("/download", s.download)
}

// requestLogger はアクセスログを slog で出力するミドルウェアです。
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.InfoContext(c.Request.Context(), "request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"latency", time.Since(start),
		)
	}
}
