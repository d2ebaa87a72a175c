package domain

import (
	"fmt"
	"slices"
	"strings"
)

// Mode は生成モード（テキスト/画像変換/複数参照）です。
type Mode string

const (
	ModeText    Mode = "text"
	ModeImg2Img Mode = "img2img"
	ModeMulti   Mode = "multi"
)

const (
	// DefaultProviderModel はモデル未指定時に使うモデルIDです。
	DefaultProviderModel = "gemini-3-pro-image-preview"
	// MaxReferenceImages は multi モードで送信する参照画像の上限です。超過分は黙って捨てます。
	MaxReferenceImages = 3
	// DefaultMaxImages は multi モードの max_images 未指定時の値です。
	DefaultMaxImages = 4
)

// Resolution は出力解像度です。
type Resolution string

const (
	Resolution1K Resolution = "1K"
	Resolution2K Resolution = "2K"
	Resolution4K Resolution = "4K"

	// DefaultResolution は入力面で解像度が省略されたときの値です。
	DefaultResolution = Resolution2K
)

// AspectRatios は Gemini 系で受け付けるアスペクト比の一覧です。
var AspectRatios = []string{"1:1", "2:3", "3:2", "3:4", "4:3", "4:5", "5:4", "9:16", "16:9", "21:9"}

// ParseMode は文字列を Mode に変換します。空文字は text として扱います。
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeText, nil
	case ModeText, ModeImg2Img, ModeMulti:
		return m, nil
	default:
		return "", &ValidationError{Field: "mode", Message: fmt.Sprintf("unsupported mode %q", s)}
	}
}

// ParseResolution は文字列を Resolution に変換します。
func ParseResolution(s string) (Resolution, error) {
	switch r := Resolution(strings.ToUpper(strings.TrimSpace(s))); r {
	case Resolution1K, Resolution2K, Resolution4K:
		return r, nil
	default:
		return "", &ValidationError{Field: "resolution", Message: fmt.Sprintf("unsupported resolution %q", s)}
	}
}

// ReferenceImage はユーザーが指定した参照画像です。
// Data があればそれを使い、なければ Source (ローカルパス, gs://, http(s)://) から読み込みます。
type ReferenceImage struct {
	Name     string
	Source   string
	Data     []byte
	MIMEType string
}

// EncodedImage は base64 エンコード済みの参照画像です。
type EncodedImage struct {
	MIMEType string
	Base64   string
}

// DataURI は EncodedImage を data URI 形式で返します。
func (e EncodedImage) DataURI() string {
	return "data:" + e.MIMEType + ";base64," + e.Base64
}

// GenerationRequest は1回の送信ごとに組み立てられる生成要求です。
type GenerationRequest struct {
	Prompt          string
	Mode            Mode
	ProviderModel   string
	AspectRatio     string
	Resolution      Resolution
	ReferenceImages []ReferenceImage
	MaxImages       int
}

// Model は送信に使うモデルIDを返します。
func (r GenerationRequest) Model() string {
	if m := strings.TrimSpace(r.ProviderModel); m != "" {
		return m
	}
	return DefaultProviderModel
}

// EffectiveMaxImages は multi モードの max_images を返します。
func (r GenerationRequest) EffectiveMaxImages() int {
	if r.MaxImages > 0 {
		return r.MaxImages
	}
	return DefaultMaxImages
}

// References はモードに応じて実際に送信する参照画像を返します。
// text は0枚、img2img は先頭1枚、multi は先頭から最大3枚です。順序は維持されます。
func (r GenerationRequest) References() []ReferenceImage {
	switch r.Mode {
	case ModeImg2Img:
		if len(r.ReferenceImages) == 0 {
			return nil
		}
		return r.ReferenceImages[:1]
	case ModeMulti:
		if len(r.ReferenceImages) > MaxReferenceImages {
			return r.ReferenceImages[:MaxReferenceImages]
		}
		return r.ReferenceImages
	default:
		return nil
	}
}

// Validate はネットワーク通信の前に要求を検証します。
func (r GenerationRequest) Validate(apiKey string) error {
	if strings.TrimSpace(apiKey) == "" {
		return &ValidationError{Field: "api_key", Message: "API Key を先に入力してください"}
	}
	if strings.TrimSpace(r.Prompt) == "" {
		return &ValidationError{Field: "prompt", Message: "プロンプトが空です"}
	}

	switch r.Mode {
	case ModeText:
	case ModeImg2Img:
		if len(r.ReferenceImages) == 0 {
			return &ValidationError{Field: "reference_images", Message: "参照画像を1枚アップロードしてください"}
		}
	case ModeMulti:
		if len(r.ReferenceImages) == 0 {
			return &ValidationError{Field: "reference_images", Message: "参照画像を少なくとも1枚アップロードしてください"}
		}
	default:
		return &ValidationError{Field: "mode", Message: fmt.Sprintf("unsupported mode %q", r.Mode)}
	}

	if _, err := ParseResolution(string(r.Resolution)); err != nil {
		return err
	}
	if r.AspectRatio != "" && !slices.Contains(AspectRatios, r.AspectRatio) {
		return &ValidationError{Field: "aspect_ratio", Message: fmt.Sprintf("unsupported aspect ratio %q", r.AspectRatio)}
	}
	if r.MaxImages < 0 {
		return &ValidationError{Field: "max_images", Message: "max_images must not be negative"}
	}
	return nil
}
