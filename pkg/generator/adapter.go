package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shouni/aihubmix-image-kit/pkg/domain"
	"github.com/shouni/aihubmix-image-kit/pkg/normalizer"
	"github.com/shouni/aihubmix-image-kit/pkg/provider"
	"google.golang.org/genai"
)

// QuotaObserver は生成完了後の残量更新の結果を受け取ります。
type QuotaObserver func(reading *domain.QuotaReading, err error)

// AdapterOption は Adapter の設定を変更します。
type AdapterOption func(*Adapter)

// WithQuotaRefresh は生成成功後にバックグラウンドで残量を更新します。
// 更新の成否は生成結果に影響しません。
func WithQuotaRefresh(fetcher QuotaFetcher, observer QuotaObserver) AdapterOption {
	return func(a *Adapter) {
		a.quota = fetcher
		a.onQuota = observer
	}
}

// WithStateObserver は状態遷移ごとに呼ばれるコールバックを設定します。
func WithStateObserver(fn func(State)) AdapterOption {
	return func(a *Adapter) { a.onState = fn }
}

// WithRecorder はメトリクスの記録先を設定します。
func WithRecorder(r Recorder) AdapterOption {
	return func(a *Adapter) {
		if r != nil {
			a.recorder = r
		}
	}
}

// WithRequestTimeout は生成リクエスト1回あたりのタイムアウトを設定します。0 は無制限です。
func WithRequestTimeout(d time.Duration) AdapterOption {
	return func(a *Adapter) { a.timeout = d }
}

// Adapter は正規化された生成要求を系統ごとのAPI呼び出しに変換し、結果を正規化します。
type Adapter struct {
	encoder    ImageEncoder
	builder    PayloadBuilder
	httpClient Doer

	quota    QuotaFetcher
	onQuota  QuotaObserver
	onState  func(State)
	recorder Recorder
	timeout  time.Duration

	now   func() time.Time
	newID func() string

	wg sync.WaitGroup
}

// NewAdapter は依存関係を注入して Adapter を初期化します。
func NewAdapter(encoder ImageEncoder, builder PayloadBuilder, httpClient Doer, opts ...AdapterOption) (*Adapter, error) {
	if encoder == nil {
		return nil, fmt.Errorf("encoder (ImageEncoder) is required")
	}
	if builder == nil {
		return nil, fmt.Errorf("builder (PayloadBuilder) is required")
	}
	if httpClient == nil {
		return nil, fmt.Errorf("httpClient is required")
	}

	a := &Adapter{
		encoder:    encoder,
		builder:    builder,
		httpClient: httpClient,
		recorder:   nopRecorder{},
		now:        time.Now,
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Generate は1回の送信を Validating → EncodingImages → Requesting → Parsing → Done の順に処理します。
// どの段階で失敗しても Failed に遷移してエラーを返します。
func (a *Adapter) Generate(ctx context.Context, apiKey string, req domain.GenerationRequest) (*domain.GenerationResult, error) {
	start := a.now()
	var family domain.Family

	result, err := a.generate(ctx, strings.TrimSpace(apiKey), req, &family)
	if err != nil {
		a.transition(ctx, StateFailed)
		slog.WarnContext(ctx, "画像生成に失敗しました", "model", req.Model(), "mode", req.Mode, "error", err)
	}
	a.recorder.ObserveGeneration(family.String(), Outcome(err), a.now().Sub(start))
	return result, err
}

func (a *Adapter) generate(ctx context.Context, apiKey string, req domain.GenerationRequest, family *domain.Family) (*domain.GenerationResult, error) {
	a.transition(ctx, StateValidating)
	if err := req.Validate(apiKey); err != nil {
		return nil, err
	}
	f, err := a.builder.Family(req.Model())
	if err != nil {
		return nil, err
	}
	*family = f

	a.transition(ctx, StateEncodingImages)
	refs := req.References()
	images, err := a.encoder.EncodeAll(ctx, refs)
	if err != nil {
		return nil, err
	}

	a.transition(ctx, StateRequesting)
	payload, err := a.builder.Build(req, images, apiKey)
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "画像生成をリクエストします",
		"family", payload.Family, "model", req.Model(), "mode", req.Mode, "images", len(images))

	body, err := a.send(ctx, payload)
	if err != nil {
		return nil, err
	}

	a.transition(ctx, StateParsing)
	match := normalizer.Normalize(payload.Family, body)
	if !match.Found {
		return nil, &domain.ParseError{Reason: diagnose(payload.Family, body)}
	}

	result := &domain.GenerationResult{
		ID:         a.newID(),
		Locator:    match.Locator,
		PromptEcho: req.Prompt,
		Family:     payload.Family,
		Model:      req.Model(),
		CreatedAt:  a.now(),
	}
	if usage, ok := normalizer.ExtractUsage(body); ok {
		result.Usage = &usage
	}

	a.transition(ctx, StateDone)
	slog.InfoContext(ctx, "画像生成が完了しました", "id", result.ID, "shape", match.Shape, "has_usage", result.Usage != nil)

	a.refreshQuota(ctx, apiKey)
	return result, nil
}

func (a *Adapter) send(ctx context.Context, payload *provider.Payload) ([]byte, error) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(ctx, payload.Method, payload.Endpoint, bytes.NewReader(payload.Body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header = payload.Header.Clone()

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("画像生成リクエストの送信に失敗しました: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &domain.RequestFailedError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return body, nil
}

// refreshQuota は残量更新をバックグラウンドで実行します。呼び出し元のキャンセルは引き継ぎません。
func (a *Adapter) refreshQuota(ctx context.Context, apiKey string) {
	if a.quota == nil {
		return
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()

		qctx := context.WithoutCancel(ctx)
		if a.timeout > 0 {
			var cancel context.CancelFunc
			qctx, cancel = context.WithTimeout(qctx, a.timeout)
			defer cancel()
		}

		reading, err := a.quota.Fetch(qctx, apiKey)
		if err != nil {
			slog.WarnContext(qctx, "残量の更新に失敗しました", "error", err)
			a.recorder.ObserveQuota(OutcomeError)
		} else {
			a.recorder.ObserveQuota(OutcomeSuccess)
		}
		if a.onQuota != nil {
			a.onQuota(reading, err)
		}
	}()
}

// Wait は実行中の残量更新がすべて終わるまで待ちます。
func (a *Adapter) Wait() {
	a.wg.Wait()
}

func (a *Adapter) transition(ctx context.Context, s State) {
	slog.DebugContext(ctx, "state", "state", s.String())
	if a.onState != nil {
		a.onState(s)
	}
}

// Outcome はエラーをメトリクス用のラベルに分類します。
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, domain.ErrValidation):
		return OutcomeValidation
	case errors.Is(err, domain.ErrUnknownProvider):
		return OutcomeUnknownProvider
	case errors.Is(err, domain.ErrRead):
		return OutcomeRead
	case errors.Is(err, domain.ErrRequestFailed):
		return OutcomeRequestFailed
	case errors.Is(err, domain.ErrNoImage):
		return OutcomeNoImage
	default:
		return OutcomeError
	}
}

// diagnose は画像が見つからなかった Gemini 応答から、安全フィルター等による終了理由を取り出します。
func diagnose(family domain.Family, body []byte) string {
	if family != domain.FamilyGemini {
		return ""
	}
	var resp genai.GenerateContentResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return ""
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return fmt.Sprintf("BlockReason: %s", resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return ""
	}
	if fr := resp.Candidates[0].FinishReason; fr != "" && fr != genai.FinishReasonUnspecified && fr != genai.FinishReasonStop {
		return fmt.Sprintf("FinishReason: %s", fr)
	}
	return ""
}
