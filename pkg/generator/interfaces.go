package generator

import (
	"context"
	"net/http"
	"time"

	"github.com/shouni/aihubmix-image-kit/pkg/domain"
	"github.com/shouni/aihubmix-image-kit/pkg/provider"
)

// ImageGenerator はアプリケーション層が利用する統合窓口です。
type ImageGenerator interface {
	Generate(ctx context.Context, apiKey string, req domain.GenerationRequest) (*domain.GenerationResult, error)
}

// ImageEncoder は参照画像を base64 に変換します。
type ImageEncoder interface {
	// Encode は1枚の参照画像をエンコードします。
	Encode(ctx context.Context, img domain.ReferenceImage) (domain.EncodedImage, error)
	// EncodeAll は全画像を並行にエンコードし、入力と同じ順序で返します。1枚でも失敗すれば全体が失敗します。
	EncodeAll(ctx context.Context, imgs []domain.ReferenceImage) ([]domain.EncodedImage, error)
}

// PayloadBuilder は系統ごとのリクエストを組み立てます。
type PayloadBuilder interface {
	Family(model string) (domain.Family, error)
	Build(req domain.GenerationRequest, images []domain.EncodedImage, apiKey string) (*provider.Payload, error)
}

// QuotaFetcher は残量照会を行います。
type QuotaFetcher interface {
	Fetch(ctx context.Context, apiKey string) (*domain.QuotaReading, error)
}

// Recorder は生成結果のメトリクスを記録します。
type Recorder interface {
	ObserveGeneration(family, outcome string, elapsed time.Duration)
	ObserveQuota(outcome string)
}

// Doer は HTTP リクエストを実行します。*http.Client が満たします。
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ImageCacher は、画像をキャッシュするためのインターフェースです。
type ImageCacher interface {
	// Get は、指定されたキーに紐づくアイテムを取得します。
	Get(key string) (any, bool)
	// Set は、指定されたキーと値、有効期限でアイテムを保存します。
	Set(key string, value any, d time.Duration)
}

// HTTPClient は、URLからデータを取得するためのインターフェースです。
type HTTPClient interface {
	FetchBytes(ctx context.Context, url string) ([]byte, error)
}
