package normalizer

import (
	"testing"

	"github.com/shouni/aihubmix-image-kit/pkg/domain"
	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name      string
		family    domain.Family
		body      string
		wantFound bool
		wantValue string
		wantShape string
	}{
		{"data[0].url", domain.FamilyGemini, `{"data":[{"url":"X"}]}`, true, "X", "data_url"},
		{"images[0].b64_json", domain.FamilyGemini, `{"images":[{"b64_json":"YQ=="}]}`, true, "data:image/png;base64,YQ==", "b64_json"},
		{"空オブジェクト", domain.FamilyGemini, `{}`, false, "", ""},
		{"output配列(文字列)", domain.FamilyPrediction, `{"output":["https://cdn/a.png"]}`, true, "https://cdn/a.png", "output_array"},
		{"output配列(url持ち)", domain.FamilyPrediction, `{"output":[{"url":"https://cdn/b.png"}]}`, true, "https://cdn/b.png", "output_array"},
		{"outputオブジェクト", domain.FamilyPrediction, `{"output":{"url":"https://cdn/c.png"}}`, true, "https://cdn/c.png", "output_object"},
		{"images[0].url", domain.FamilyPrediction, `{"images":[{"url":"https://cdn/d.png"}]}`, true, "https://cdn/d.png", "images_url"},
		{"data[0].b64_json", domain.FamilyPrediction, `{"data":[{"b64_json":"Zm9v"}]}`, true, "data:image/png;base64,Zm9v", "b64_json"},
		{
			"candidatesのinlineData",
			domain.FamilyGemini,
			`{"candidates":[{"content":{"parts":[{"text":"here you go"},{"inlineData":{"mimeType":"image/png","data":"aW1n"}}]}}]}`,
			true, "data:image/png;base64,aW1n", "inline_data",
		},
		{"テキストのみの候補", domain.FamilyGemini, `{"candidates":[{"content":{"parts":[{"text":"no"}]}}]}`, false, "", ""},
		{"不正なJSON", domain.FamilyGemini, `{"data":`, false, "", ""},
		{"配列ルート", domain.FamilyGemini, `[1,2]`, false, "", ""},
		{"urlが数値", domain.FamilyGemini, `{"data":[{"url":1}]}`, false, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.family, []byte(tt.body))
			assert.Equal(t, tt.wantFound, got.Found)
			assert.Equal(t, tt.wantValue, got.Locator.Value)
			assert.Equal(t, tt.wantShape, got.Shape)
		})
	}
}

func TestNormalize_Priority(t *testing.T) {
	t.Run("outputはdataより優先される", func(t *testing.T) {
		body := []byte(`{"output":[{"url":"first"}],"data":[{"url":"second"}]}`)
		got := Normalize(domain.FamilyPrediction, body)
		assert.Equal(t, "first", got.Locator.Value)
	})

	t.Run("urlはb64_jsonより優先される", func(t *testing.T) {
		body := []byte(`{"data":[{"url":"u","b64_json":"YQ=="}]}`)
		got := Normalize(domain.FamilyGemini, body)
		assert.Equal(t, domain.LocatorURL, got.Locator.Kind)
		assert.Equal(t, "u", got.Locator.Value)
	})

	t.Run("Gemini系ではoutputを見ない", func(t *testing.T) {
		body := []byte(`{"output":[{"url":"ignored"}],"images":[{"url":"used"}]}`)
		got := Normalize(domain.FamilyGemini, body)
		assert.Equal(t, "used", got.Locator.Value)
	})
}

func TestExtractUsage(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		want   float64
		wantOK bool
	}{
		{"total_usage", `{"usage":{"total_usage":0.5,"image_usage":0.1}}`, 0.5, true},
		{"image_usage", `{"usage":{"image_usage":0.25}}`, 0.25, true},
		{"usageそのもの", `{"usage":3}`, 3, true},
		{"文字列の数値", `{"usage":{"total_usage":"1.5"}}`, 1.5, true},
		{"usageなし", `{"data":[]}`, 0, false},
		{"数値でない", `{"usage":{"prompt_tokens_details":{}}}`, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractUsage([]byte(tt.body))
			assert.Equal(t, tt.wantOK, ok)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}
