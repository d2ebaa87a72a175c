package provider

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/shouni/aihubmix-image-kit/pkg/domain"
	"google.golang.org/genai"
)

const (
	DefaultGeminiBaseURL   = "https://aihubmix.com/gemini/v1beta/models"
	DefaultPredictionModel = "doubao-seedream-4-5-251128"
	DefaultPredictionURL   = "https://aihubmix.com/v1/models/doubao/" + DefaultPredictionModel + "/predictions"

	generateContentAction = ":generateContent"
	predictionFormat      = "url"
	sequentialAuto        = "auto"
	sequentialDisabled    = "disabled"
)

// Endpoints は各系統の送信先です。
type Endpoints struct {
	GeminiBaseURL   string
	PredictionURL   string
	PredictionModel string
}

// DefaultEndpoints は aihubmix の既定エンドポイントです。
func DefaultEndpoints() Endpoints {
	return Endpoints{
		GeminiBaseURL:   DefaultGeminiBaseURL,
		PredictionURL:   DefaultPredictionURL,
		PredictionModel: DefaultPredictionModel,
	}
}

// Payload は1回のHTTP呼び出しに必要な情報です。
type Payload struct {
	Family   domain.Family
	Method   string
	Endpoint string
	Header   http.Header
	Body     []byte
}

// Option は Builder の設定を変更します。
type Option func(*Builder)

// WithLegacyFallback は未知のモデルIDを predictions 系統へ送る旧挙動を有効にします。
func WithLegacyFallback(enabled bool) Option {
	return func(b *Builder) { b.legacyFallback = enabled }
}

// Builder は正規化された要求を各系統のリクエストに変換します。
type Builder struct {
	endpoints      Endpoints
	legacyFallback bool
}

// NewBuilder は Builder を生成します。空のエンドポイントは既定値で補います。
func NewBuilder(endpoints Endpoints, opts ...Option) *Builder {
	def := DefaultEndpoints()
	if endpoints.GeminiBaseURL == "" {
		endpoints.GeminiBaseURL = def.GeminiBaseURL
	}
	if endpoints.PredictionURL == "" {
		endpoints.PredictionURL = def.PredictionURL
	}
	if endpoints.PredictionModel == "" {
		endpoints.PredictionModel = def.PredictionModel
	}
	b := &Builder{endpoints: endpoints}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Family はモデルIDの系統を返します。
func (b *Builder) Family(model string) (domain.Family, error) {
	return Classify(model, b.legacyFallback)
}

// Build は要求とエンコード済み参照画像からリクエストを組み立てます。
// images は req.References() と同じ順序である必要があります。モードの枚数制限を超えた分は捨てます。
func (b *Builder) Build(req domain.GenerationRequest, images []domain.EncodedImage, apiKey string) (*Payload, error) {
	family, err := b.Family(req.Model())
	if err != nil {
		return nil, err
	}

	images = selectImages(req.Mode, images)

	switch family {
	case domain.FamilyGemini:
		return b.buildGemini(req, images, apiKey)
	default:
		return b.buildPrediction(req, images, apiKey)
	}
}

func (b *Builder) buildGemini(req domain.GenerationRequest, images []domain.EncodedImage, apiKey string) (*Payload, error) {
	parts := make([]geminiPart, 0, len(images)+1)
	parts = append(parts, geminiPart{Text: req.Prompt})
	for _, img := range images {
		parts = append(parts, geminiPart{InlineData: &geminiInlineData{MimeType: img.MIMEType, Data: img.Base64}})
	}

	body := geminiRequest{
		Contents: []geminiContent{{Role: string(genai.RoleUser), Parts: parts}},
		GenerationConfig: &geminiGenerationConfig{
			// テキストと画像の両方を必ず要求する
			ResponseModalities: []string{string(genai.ModalityText), string(genai.ModalityImage)},
			ImageConfig: &geminiImageConfig{
				AspectRatio: req.AspectRatio,
				ImageSize:   string(req.Resolution),
			},
		},
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal gemini request: %w", err)
	}

	header := http.Header{}
	header.Set("Content-Type", "application/json")
	header.Set("x-goog-api-key", apiKey)

	return &Payload{
		Family:   domain.FamilyGemini,
		Method:   http.MethodPost,
		Endpoint: strings.TrimRight(b.endpoints.GeminiBaseURL, "/") + "/" + url.PathEscape(req.Model()) + generateContentAction,
		Header:   header,
		Body:     data,
	}, nil
}

func (b *Builder) buildPrediction(req domain.GenerationRequest, images []domain.EncodedImage, apiKey string) (*Payload, error) {
	input := predictionInput{
		Model:                     b.endpoints.PredictionModel,
		Prompt:                    req.Prompt,
		Size:                      string(req.Resolution),
		SequentialImageGeneration: sequentialDisabled,
		ResponseFormat:            predictionFormat,
		Watermark:                 true,
	}

	switch req.Mode {
	case domain.ModeImg2Img:
		if len(images) > 0 {
			input.Image = images[0].DataURI()
		}
	case domain.ModeMulti:
		input.SequentialImageGeneration = sequentialAuto
		input.SequentialImageGenerationOptions = &sequentialOptions{MaxImages: req.EffectiveMaxImages()}
		if len(images) > 0 {
			uris := make([]string, 0, len(images))
			for _, img := range images {
				uris = append(uris, img.DataURI())
			}
			input.Image = uris
		}
	}

	data, err := json.Marshal(predictionRequest{Input: input})
	if err != nil {
		return nil, fmt.Errorf("marshal prediction request: %w", err)
	}

	header := http.Header{}
	header.Set("Content-Type", "application/json")
	header.Set("Authorization", "Bearer "+apiKey)

	return &Payload{
		Family:   domain.FamilyPrediction,
		Method:   http.MethodPost,
		Endpoint: b.endpoints.PredictionURL,
		Header:   header,
		Body:     data,
	}, nil
}

func selectImages(mode domain.Mode, images []domain.EncodedImage) []domain.EncodedImage {
	switch mode {
	case domain.ModeImg2Img:
		return images[:min(len(images), 1)]
	case domain.ModeMulti:
		return images[:min(len(images), domain.MaxReferenceImages)]
	default:
		return nil
	}
}
