package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/shouni/aihubmix-image-kit/internal/config"
	"github.com/shouni/aihubmix-image-kit/internal/fsio"
	"github.com/shouni/aihubmix-image-kit/internal/metrics"
	"github.com/shouni/aihubmix-image-kit/pkg/domain"
	"github.com/shouni/aihubmix-image-kit/pkg/gallery"
	"github.com/shouni/aihubmix-image-kit/pkg/generator"
	"github.com/shouni/aihubmix-image-kit/pkg/keystore"
	"github.com/shouni/aihubmix-image-kit/pkg/provider"
	"github.com/shouni/aihubmix-image-kit/pkg/quota"
	"github.com/shouni/go-http-kit/pkg/httpkit"
	"github.com/shouni/go-remote-io/pkg/remoteio"
)

const (
	metricsNamespace = "aihubmix"
	// fetchTimeout は参照画像と生成結果のダウンロードに使います。生成リクエスト自体には掛けません。
	fetchTimeout = 60 * time.Second
)

// App は設定から組み立てた依存関係一式です。
type App struct {
	Config  config.Config
	Keys    *keystore.Store
	Reader  remoteio.InputReader
	Core    *generator.ImageCore
	Adapter *generator.Adapter
	Quota   *quota.Client
	Metrics *metrics.Collector
	Gallery *gallery.Gallery

	readerCloser io.Closer

	mu        sync.Mutex
	lastQuota *domain.QuotaReading
	quotaErr  error
}

// NewApp は設定に従って依存関係を組み立てます。
func NewApp(ctx context.Context, cfg config.Config) (*App, error) {
	keyPath := cfg.KeyStorePath
	if keyPath == "" {
		p, err := keystore.DefaultPath()
		if err != nil {
			return nil, err
		}
		keyPath = p
	}

	app := &App{
		Config:  cfg,
		Keys:    keystore.New(keyPath),
		Metrics: metrics.NewCollector(metricsNamespace),
		Gallery: gallery.New(),
	}

	reader, closer, err := fsio.NewReader(ctx, cfg.GCSReferences)
	if err != nil {
		// GCS が使えなくてもローカル / HTTP の参照画像は扱える
		slog.WarnContext(ctx, "GCSクライアントの初期化に失敗しました。gs:// の参照画像は読めません", "error", err)
		reader, closer, _ = fsio.NewReader(ctx, false)
	}
	app.Reader, app.readerCloser = reader, closer

	fetchTTL := fetchTimeout
	if cfg.RequestTimeout > 0 {
		fetchTTL = cfg.RequestTimeout
	}
	var fetcher httpkit.ClientInterface = httpkit.New(fetchTTL)

	var imageCache generator.ImageCacher
	if cfg.CacheTTL > 0 {
		imageCache = cache.New(cfg.CacheTTL, 2*cfg.CacheTTL)
	}

	var coreOpts []generator.CoreOption
	if cfg.CompressReferences {
		coreOpts = append(coreOpts, generator.WithCompression(cfg.CompressionQuality))
	}
	core, err := generator.NewImageCore(app.Reader, fetcher, imageCache, cfg.CacheTTL, coreOpts...)
	if err != nil {
		return nil, fmt.Errorf("image core: %w", err)
	}
	app.Core = core

	quotaClient, err := quota.NewClient(&http.Client{Timeout: cfg.RequestTimeout}, cfg.BillingURL, cfg.QuotaMultiplier)
	if err != nil {
		return nil, fmt.Errorf("quota client: %w", err)
	}
	app.Quota = quotaClient

	builder := provider.NewBuilder(provider.Endpoints{
		GeminiBaseURL:   cfg.GeminiBaseURL,
		PredictionURL:   cfg.PredictionURL,
		PredictionModel: cfg.PredictionModel,
	}, provider.WithLegacyFallback(cfg.LegacyProviderFallback))

	adapter, err := generator.NewAdapter(core, builder, &http.Client{},
		generator.WithRequestTimeout(cfg.RequestTimeout),
		generator.WithRecorder(app.Metrics),
		generator.WithQuotaRefresh(quotaClient, app.observeQuota),
	)
	if err != nil {
		return nil, fmt.Errorf("adapter: %w", err)
	}
	app.Adapter = adapter
	return app, nil
}

// Close は保持しているクライアントを解放します。
func (a *App) Close() error {
	if a.readerCloser == nil {
		return nil
	}
	err := a.readerCloser.Close()
	a.readerCloser = nil
	return err
}

// ResolveKey はフラグ → 設定（環境変数）→ 保存済みキーの順で API キーを決めます。
func (a *App) ResolveKey(flagKey string) (string, error) {
	if k := strings.TrimSpace(flagKey); k != "" {
		return k, nil
	}
	if k := strings.TrimSpace(a.Config.APIKey); k != "" {
		return k, nil
	}
	return a.Keys.Load()
}

// FetchQuota は残量を照会し、取得できた値を指標に反映します。
func (a *App) FetchQuota(ctx context.Context, apiKey string) (*domain.QuotaReading, error) {
	reading, err := a.Quota.Fetch(ctx, apiKey)
	a.observeQuota(reading, err)
	return reading, err
}

// LastQuota は最後に観測した残量照会の結果を返します。
func (a *App) LastQuota() (*domain.QuotaReading, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastQuota, a.quotaErr
}

func (a *App) observeQuota(reading *domain.QuotaReading, err error) {
	a.mu.Lock()
	a.lastQuota, a.quotaErr = reading, err
	a.mu.Unlock()

	if err != nil || reading == nil {
		return
	}
	if reading.Converted != nil {
		a.Metrics.SetQuota(*reading.Converted)
	}
	slog.Info("残量を更新しました", "quota", reading.String())
}
