package domain

import (
	"strconv"
	"time"
)

// Family は画像生成 API の系統です。
type Family int

const (
	// FamilyGemini はマルチモーダル chat 形式 (generateContent) の系統です。
	FamilyGemini Family = iota + 1
	// FamilyPrediction は input オブジェクトを送る predictions 形式の系統です。
	FamilyPrediction
)

func (f Family) String() string {
	switch f {
	case FamilyGemini:
		return "gemini"
	case FamilyPrediction:
		return "prediction"
	default:
		return "unknown"
	}
}

// LocatorKind は Locator の種別です。
type LocatorKind int

const (
	LocatorNone LocatorKind = iota
	LocatorURL
	LocatorDataURI
)

// Locator は生成画像の所在です。リモートURLか data URI のどちらか一方だけを持ちます。
type Locator struct {
	Kind  LocatorKind
	Value string
}

// URLLocator はリモートURLの Locator を返します。
func URLLocator(u string) Locator {
	return Locator{Kind: LocatorURL, Value: u}
}

// DataURILocator は base64 データを data URI に包んだ Locator を返します。
func DataURILocator(mimeType, b64 string) Locator {
	return Locator{Kind: LocatorDataURI, Value: "data:" + mimeType + ";base64," + b64}
}

// IsZero は Locator が空かどうかを返します。
func (l Locator) IsZero() bool {
	return l.Kind == LocatorNone || l.Value == ""
}

func (l Locator) String() string {
	return l.Value
}

// GenerationResult は成功した1回の生成結果です。
type GenerationResult struct {
	ID         string
	Locator    Locator
	Usage      *float64
	PromptEcho string
	Family     Family
	Model      string
	CreatedAt  time.Time
}

// ScaledUsage は usage に表示用倍率を掛けた値を返します。usage が無い場合は false です。
func (r GenerationResult) ScaledUsage(multiplier float64) (float64, bool) {
	if r.Usage == nil {
		return 0, false
	}
	return *r.Usage * multiplier, true
}

// QuotaReading は課金エンドポイントから得た残量です。
type QuotaReading struct {
	Raw        *float64
	Converted  *float64
	Multiplier float64
	// Field は値を取り出したJSONフィールド名です。
	Field string
}

// NewQuotaReading は raw に倍率を掛けた QuotaReading を作ります。
func NewQuotaReading(raw *float64, field string, multiplier float64) QuotaReading {
	q := QuotaReading{Raw: raw, Multiplier: multiplier, Field: field}
	if raw != nil {
		v := *raw * multiplier
		q.Converted = &v
	}
	return q
}

// Known は数値が得られたかどうかを返します。
func (q QuotaReading) Known() bool {
	return q.Converted != nil
}

// String は表示用の残量を返します。数値が無い場合は "unknown" です。
func (q QuotaReading) String() string {
	if q.Converted == nil {
		return "unknown"
	}
	return strconv.FormatFloat(*q.Converted, 'f', -1, 64)
}
