// Package server は生成キットを JSON API として公開します。
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shouni/aihubmix-image-kit/pkg/domain"
	"github.com/shouni/aihubmix-image-kit/pkg/gallery"
)

const (
	// APIKeyHeader があれば保存済みのキーより優先します。
	APIKeyHeader = "X-API-Key"

	maxUploadBytes  = 64 << 20
	multipartMemory = 32 << 20
)

// Generator は生成要求を実行します。
type Generator interface {
	Generate(ctx context.Context, apiKey string, req domain.GenerationRequest) (*domain.GenerationResult, error)
}

// ResultFetcher は生成結果の画像データを取得します。
type ResultFetcher interface {
	FetchResult(ctx context.Context, loc domain.Locator) ([]byte, string, error)
}

type QuotaFetcher interface {
	Fetch(ctx context.Context, apiKey string) (*domain.QuotaReading, error)
}

// KeyStore は API キーの保存先です。
type KeyStore interface {
	Load() (string, error)
	Save(key string) error
	Clear() error
}

// Metrics は HTTP 指標の記録と公開を行います。
type Metrics interface {
	RecordHTTPRequest(method, route string, status int, elapsed time.Duration)
	SetQuota(converted float64)
	Handler() http.Handler
}

// Deps はサーバーの依存関係です。Metrics は省略できます。
type Deps struct {
	Generator  Generator
	Results    ResultFetcher
	Quota      QuotaFetcher
	Keys       KeyStore
	Gallery    *gallery.Gallery
	Metrics    Metrics
	Multiplier float64
}

// Server は HTTP ハンドラー群です。
type Server struct {
	Deps
}

func New(deps Deps) (*Server, error) {
	switch {
	case deps.Generator == nil:
		return nil, errors.New("generator is required")
	case deps.Results == nil:
		return nil, errors.New("result fetcher is required")
	case deps.Quota == nil:
		return nil, errors.New("quota fetcher is required")
	case deps.Keys == nil:
		return nil, errors.New("key store is required")
	}
	if deps.Gallery == nil {
		deps.Gallery = gallery.New()
	}
	return &Server{Deps: deps}, nil
}

// Router はルーティング済みのハンドラーを返します。
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		s.observe,
	)

	r.Get("/healthz", s.health)
	if s.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.Metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/prompts", s.listPrompts)

		r.Get("/key", s.showKey)
		r.Put("/key", s.saveKey)
		r.Delete("/key", s.clearKey)

		r.Get("/quota", s.getQuota)

		r.Post("/generate", s.generate)
		r.Get("/results", s.listResults)
		r.Get("/results/{id}/download", s.downloadResult)
	})
	return r
}

// Serve は ctx がキャンセルされるまで addr で待ち受けます。
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}
