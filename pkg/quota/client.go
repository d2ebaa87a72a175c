// Package quota は aihubmix の課金エンドポイントから残量を照会します。
package quota

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/shouni/aihubmix-image-kit/pkg/domain"
	"github.com/shouni/aihubmix-image-kit/pkg/normalizer"
	"github.com/tidwall/gjson"
)

const (
	DefaultBillingURL = "https://aihubmix.com/dashboard/billing/remain"
	// DefaultMultiplier は表示用の換算倍率です。
	DefaultMultiplier = 1000
)

// quotaFields は残量を探すフィールド名で、先に存在したものを採用します。
var quotaFields = []string{"total_usage", "remain", "credit"}

// Doer は HTTP リクエストを実行します。*http.Client が満たします。
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client は残量照会クライアントです。
type Client struct {
	httpClient Doer
	url        string
	multiplier float64
}

// NewClient は Client を生成します。
func NewClient(httpClient Doer, billingURL string, multiplier float64) (*Client, error) {
	if httpClient == nil {
		return nil, fmt.Errorf("httpClient is required")
	}
	if billingURL == "" {
		billingURL = DefaultBillingURL
	}
	if multiplier <= 0 {
		return nil, fmt.Errorf("multiplier must be positive: %v", multiplier)
	}
	return &Client{httpClient: httpClient, url: billingURL, multiplier: multiplier}, nil
}

// Multiplier は換算倍率を返します。
func (c *Client) Multiplier() float64 {
	return c.multiplier
}

// Fetch は残量を照会します。失敗はすべて *domain.QuotaError で返します。
func (c *Client) Fetch(ctx context.Context, apiKey string) (*domain.QuotaReading, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, &domain.QuotaError{Err: domain.ErrMissingKey}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, &domain.QuotaError{Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domain.QuotaError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.QuotaError{Err: fmt.Errorf("read body: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &domain.QuotaError{StatusCode: resp.StatusCode}
	}
	if !gjson.ValidBytes(body) {
		return nil, &domain.QuotaError{Err: fmt.Errorf("invalid json response")}
	}

	reading := ParseReading(body, c.multiplier)
	slog.DebugContext(ctx, "残量を取得しました", "field", reading.Field, "remain", reading.String())
	return &reading, nil
}

// ParseReading はレスポンス本文から残量を取り出します。
// 最初に存在したフィールドを採用し、それが数値でなければ不明として扱います。
func ParseReading(body []byte, multiplier float64) domain.QuotaReading {
	for _, field := range quotaFields {
		r := gjson.GetBytes(body, field)
		if !r.Exists() || r.Type == gjson.Null {
			continue
		}
		if v, ok := normalizer.Number(r); ok {
			return domain.NewQuotaReading(&v, field, multiplier)
		}
		return domain.NewQuotaReading(nil, field, multiplier)
	}
	return domain.NewQuotaReading(nil, "", multiplier)
}
