package generator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shouni/aihubmix-image-kit/pkg/domain"
	"github.com/shouni/aihubmix-image-kit/pkg/imgutil"

	"github.com/shouni/go-remote-io/pkg/remoteio"
	"golang.org/x/sync/errgroup"
)

// ImageCore は参照画像の読み込み・エンコードと、生成結果の取得を担う基盤クラスです。
type ImageCore struct {
	reader     remoteio.InputReader
	httpClient HTTPClient
	cache      ImageCacher
	expiration time.Duration
	compress   bool
	quality    int
}

// CoreOption は ImageCore の設定を変更します。
type CoreOption func(*ImageCore)

// WithCompression は参照画像を送信前に JPEG 圧縮します。既定では元のバイト列をそのまま送ります。
func WithCompression(quality int) CoreOption {
	return func(c *ImageCore) {
		c.compress = true
		c.quality = quality
	}
}

// NewImageCore は依存関係を注入して ImageCore を初期化します。
func NewImageCore(reader remoteio.InputReader, httpClient HTTPClient, cache ImageCacher, cacheTTL time.Duration, opts ...CoreOption) (*ImageCore, error) {
	if reader == nil {
		return nil, fmt.Errorf("reader is required")
	}
	if httpClient == nil {
		return nil, fmt.Errorf("httpClient is required")
	}
	// cache は nil を許容（キャッシュなし動作）

	c := &ImageCore{
		reader:     reader,
		httpClient: httpClient,
		cache:      cache,
		expiration: cacheTTL,
		quality:    DefaultCompressionQuality,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Encode は参照画像を読み込み、data URI のペイロード部分（base64）を返します。
func (c *ImageCore) Encode(ctx context.Context, img domain.ReferenceImage) (domain.EncodedImage, error) {
	data, err := c.loadBytes(ctx, img)
	if err != nil {
		return domain.EncodedImage{}, &domain.ReadError{Source: sourceLabel(img), Err: err}
	}

	mimeType := resolveMIMEType(img.MIMEType, data)
	if c.compress {
		if compressed, err := imgutil.CompressToJPEG(data, c.quality); err == nil {
			data = compressed
			mimeType = imgutil.JPEGMIMEType
		} else {
			slog.WarnContext(ctx, "参照画像の圧縮に失敗したため元データを送信します", "source", sourceLabel(img), "error", err)
		}
	}

	payload, err := imgutil.DataURIPayload(imgutil.EncodeDataURI(mimeType, data))
	if err != nil {
		return domain.EncodedImage{}, &domain.ReadError{Source: sourceLabel(img), Err: err}
	}
	return domain.EncodedImage{MIMEType: mimeType, Base64: payload}, nil
}

// EncodeAll は全画像を並行にエンコードします。順序は入力と同じです。
func (c *ImageCore) EncodeAll(ctx context.Context, imgs []domain.ReferenceImage) ([]domain.EncodedImage, error) {
	if len(imgs) == 0 {
		return nil, nil
	}

	out := make([]domain.EncodedImage, len(imgs))
	g, gctx := errgroup.WithContext(ctx)
	for i, img := range imgs {
		g.Go(func() error {
			enc, err := c.Encode(gctx, img)
			if err != nil {
				return err
			}
			out[i] = enc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// FetchResult は生成結果の Locator から画像データを取得します。
// data URI はそのままデコードし、URL は安全性を確認してからダウンロードします。
func (c *ImageCore) FetchResult(ctx context.Context, loc domain.Locator) ([]byte, string, error) {
	switch loc.Kind {
	case domain.LocatorDataURI:
		mimeType, data, err := imgutil.DecodeDataURI(loc.Value)
		if err != nil {
			return nil, "", err
		}
		return data, mimeType, nil
	case domain.LocatorURL:
		data, err := c.fetchRemote(ctx, loc.Value)
		if err != nil {
			return nil, "", fmt.Errorf("生成画像のダウンロードに失敗しました: %w", err)
		}
		return data, resolveMIMEType("", data), nil
	default:
		return nil, "", fmt.Errorf("locator is empty")
	}
}
