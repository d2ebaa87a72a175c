// Package fsio は参照画像の読み込み元（ローカル / gs://）を組み立てます。
package fsio

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"

	"github.com/shouni/go-remote-io/pkg/gcsfactory"
	"github.com/shouni/go-remote-io/pkg/remoteio"
)

var imageExts = []string{".png", ".jpg", ".jpeg", ".webp", ".gif"}

// NewReader は参照画像用の remoteio.InputReader を返します。
// useGCS が false の場合はローカルパスのみを読み、gs:// は未初期化エラーになります。
// 返り値の io.Closer は GCS クライアントを保持している場合のみ非 nil です。
func NewReader(ctx context.Context, useGCS bool) (remoteio.InputReader, io.Closer, error) {
	if !useGCS {
		return remoteio.NewUniversalInputReader(nil, nil), nil, nil
	}

	factory, err := gcsfactory.New(ctx)
	if err != nil {
		return nil, nil, err
	}
	reader, err := factory.InputReader()
	if err != nil {
		_ = factory.Close()
		return nil, nil, err
	}
	return reader, factory, nil
}

// IsRemoteDir は uri が gs:// / s3:// の「ディレクトリ」（末尾スラッシュ）を指すか判定します。
func IsRemoteDir(uri string) bool {
	return remoteio.IsRemoteURI(uri) && strings.HasSuffix(uri, "/")
}

// ListImages は uri 直下の画像ファイル（拡張子で判定）を名前順に返します。
func ListImages(ctx context.Context, reader remoteio.InputReader, uri string) ([]string, error) {
	var out []string
	err := reader.List(ctx, uri, func(path string) error {
		if IsImagePath(path) {
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list images in %s: %w", uri, err)
	}
	slices.Sort(out)
	return out, nil
}

func IsImagePath(path string) bool {
	return slices.Contains(imageExts, strings.ToLower(filepath.Ext(path)))
}
