package generator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/shouni/aihubmix-image-kit/pkg/domain"
)

var errEmptyImage = errors.New("画像データが空です")

func (c *ImageCore) loadBytes(ctx context.Context, img domain.ReferenceImage) ([]byte, error) {
	if len(img.Data) > 0 {
		return img.Data, nil
	}
	if img.Source == "" {
		return nil, errEmptyImage
	}

	cacheKey := cacheKeyReference + img.Source
	if c.cache != nil {
		if val, ok := c.cache.Get(cacheKey); ok {
			if data, ok := val.([]byte); ok {
				return data, nil
			}
		}
	}

	var (
		data []byte
		err  error
	)
	if isHTTPURL(img.Source) {
		data, err = c.fetchRemote(ctx, img.Source)
	} else {
		data, err = c.readSource(ctx, img.Source)
	}
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, errEmptyImage
	}

	if c.cache != nil {
		c.cache.Set(cacheKey, data, c.expiration)
	}
	return data, nil
}

func (c *ImageCore) fetchRemote(ctx context.Context, rawURL string) ([]byte, error) {
	safe, err := IsSafeURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("安全ではないURLが指定されました: %w", err)
	}
	if !safe {
		return nil, fmt.Errorf("安全ではないURLが指定されました: %s", rawURL)
	}
	return c.httpClient.FetchBytes(ctx, rawURL)
}

func (c *ImageCore) readSource(ctx context.Context, uri string) ([]byte, error) {
	rc, err := c.reader.Open(ctx, uri)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// resolveMIMEType は申告された MIME タイプを優先し、無ければ内容から判定します。
func resolveMIMEType(declared string, data []byte) string {
	if declared = strings.TrimSpace(declared); declared != "" {
		return declared
	}
	if detected := http.DetectContentType(data); strings.HasPrefix(detected, "image/") {
		return detected
	}
	return defaultImageMIME
}

func sourceLabel(img domain.ReferenceImage) string {
	if img.Name != "" {
		return img.Name
	}
	return img.Source
}

func isHTTPURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
