package generator

import "time"

const (
	DefaultCompressionQuality = 75
	defaultImageMIME          = "image/png"
	cacheKeyReference         = "reference:"
)

// State は1回の送信の処理段階です。
type State int

const (
	StateValidating State = iota + 1
	StateEncodingImages
	StateRequesting
	StateParsing
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateValidating:
		return "validating"
	case StateEncodingImages:
		return "encoding_images"
	case StateRequesting:
		return "requesting"
	case StateParsing:
		return "parsing"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome ラベル
const (
	OutcomeSuccess         = "success"
	OutcomeValidation      = "validation"
	OutcomeUnknownProvider = "unknown_provider"
	OutcomeRead            = "read"
	OutcomeRequestFailed   = "request_failed"
	OutcomeNoImage         = "no_image"
	OutcomeError           = "error"
)

type nopRecorder struct{}

func (nopRecorder) ObserveGeneration(string, string, time.Duration) {}
func (nopRecorder) ObserveQuota(string)                             {}
