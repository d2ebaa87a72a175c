// Package normalizer は各系統の生成レスポンスから画像の所在と usage を取り出します。
package normalizer

import (
	"slices"
	"strconv"
	"strings"

	"github.com/shouni/aihubmix-image-kit/pkg/domain"
	"github.com/tidwall/gjson"
)

const defaultImageMIME = "image/png"

// Match は Normalize の結果です。Found が false の場合 Locator は空です。
type Match struct {
	Found   bool
	Locator domain.Locator
	// Shape は一致したレスポンス形状の名前です。
	Shape string
}

// NotFound は一致なしの Match です。
var NotFound = Match{}

type matcher struct {
	name string
	// families が空なら全系統に適用します。
	families []domain.Family
	extract  func(gjson.Result) (domain.Locator, bool)
}

func (m matcher) appliesTo(f domain.Family) bool {
	return len(m.families) == 0 || slices.Contains(m.families, f)
}

// matchers は優先順位順です。複数に一致しうるレスポンスでも先に一致したものを採用します。
var matchers = []matcher{
	{name: "output_array", families: []domain.Family{domain.FamilyPrediction}, extract: outputArray},
	{name: "output_object", families: []domain.Family{domain.FamilyPrediction}, extract: urlAt("output.url")},
	{name: "data_url", extract: urlAt("data.0.url")},
	{name: "images_url", extract: urlAt("images.0.url")},
	{name: "b64_json", extract: b64JSON},
	{name: "inline_data", extract: inlineData},
}

// Normalize はレスポンス本文から画像の Locator を探します。
// 想定外の形状や不正なJSONでもエラーにはせず NotFound を返します。
func Normalize(family domain.Family, body []byte) Match {
	if !gjson.ValidBytes(body) {
		return NotFound
	}
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return NotFound
	}
	for _, m := range matchers {
		if !m.appliesTo(family) {
			continue
		}
		if loc, ok := m.extract(root); ok {
			return Match{Found: true, Locator: loc, Shape: m.name}
		}
	}
	return NotFound
}

// ExtractUsage は usage.total_usage, usage.image_usage, usage の順に最初の数値を返します。
func ExtractUsage(body []byte) (float64, bool) {
	for _, path := range []string{"usage.total_usage", "usage.image_usage", "usage"} {
		if v, ok := Number(gjson.GetBytes(body, path)); ok {
			return v, true
		}
	}
	return 0, false
}

// Number は JSON の数値、または数値として解釈できる文字列を float64 で返します。
func Number(r gjson.Result) (float64, bool) {
	switch r.Type {
	case gjson.Number:
		return r.Float(), true
	case gjson.String:
		v, err := strconv.ParseFloat(strings.TrimSpace(r.Str), 64)
		if err != nil {
			return 0, false
		}
		return v, true
	default:
		return 0, false
	}
}

func outputArray(root gjson.Result) (domain.Locator, bool) {
	out := root.Get("output")
	if !out.IsArray() {
		return domain.Locator{}, false
	}
	first := out.Get("0")
	switch {
	case first.Type == gjson.String && first.Str != "":
		return domain.URLLocator(first.Str), true
	case first.IsObject():
		if u := first.Get("url"); u.Type == gjson.String && u.Str != "" {
			return domain.URLLocator(u.Str), true
		}
	}
	return domain.Locator{}, false
}

func urlAt(path string) func(gjson.Result) (domain.Locator, bool) {
	return func(root gjson.Result) (domain.Locator, bool) {
		u := root.Get(path)
		if u.Type != gjson.String || u.Str == "" {
			return domain.Locator{}, false
		}
		return domain.URLLocator(u.Str), true
	}
}

func b64JSON(root gjson.Result) (domain.Locator, bool) {
	for _, path := range []string{"data.0.b64_json", "images.0.b64_json"} {
		if v := root.Get(path); v.Type == gjson.String && v.Str != "" {
			return domain.DataURILocator(defaultImageMIME, v.Str), true
		}
	}
	return domain.Locator{}, false
}

// inlineData は generateContent 形式の最初の候補から inlineData を持つ最初のパーツを探します。
func inlineData(root gjson.Result) (domain.Locator, bool) {
	parts := root.Get("candidates.0.content.parts")
	if !parts.IsArray() {
		return domain.Locator{}, false
	}
	var loc domain.Locator
	parts.ForEach(func(_, part gjson.Result) bool {
		data := part.Get("inlineData.data")
		if !data.Exists() {
			data = part.Get("inline_data.data")
		}
		if data.Type == gjson.String && data.Str != "" {
			loc = domain.DataURILocator(defaultImageMIME, data.Str)
			return false
		}
		return true
	})
	return loc, !loc.IsZero()
}
