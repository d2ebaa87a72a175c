package provider

import (
	"fmt"
	"strings"

	"github.com/shouni/aihubmix-image-kit/pkg/domain"
)

const (
	// GeminiPrefix は generateContent 形式で送るモデルIDの接頭辞です。
	GeminiPrefix = "gemini"
	// PredictionPrefix は predictions 形式で送るモデルIDの接頭辞です。
	PredictionPrefix = "doubao"
)

// Classify はモデルIDから API 系統を判定します。
// legacyFallback が true の場合、未知のIDは predictions 系統として扱います。
func Classify(model string, legacyFallback bool) (domain.Family, error) {
	id := strings.ToLower(strings.TrimSpace(model))
	switch {
	case strings.HasPrefix(id, GeminiPrefix):
		return domain.FamilyGemini, nil
	case strings.HasPrefix(id, PredictionPrefix):
		return domain.FamilyPrediction, nil
	case legacyFallback:
		return domain.FamilyPrediction, nil
	default:
		return 0, fmt.Errorf("%w: %s", domain.ErrUnknownProvider, model)
	}
}
