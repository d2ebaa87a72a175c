package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation      = errors.New("validation error")
	ErrRead            = errors.New("image read error")
	ErrRequestFailed   = errors.New("request failed")
	ErrNoImage         = errors.New("no image in response")
	ErrQuota           = errors.New("quota error")
	ErrUnknownProvider = errors.New("unknown provider")
	ErrMissingKey      = errors.New("missing api key")
)

// ValidationError は通信前の入力検証エラーです。
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// ReadError は参照画像の読み込み・エンコード失敗です。
type ReadError struct {
	Source string
	Err    error
}

func (e *ReadError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("ファイルの読み込みに失敗しました: %v", e.Err)
	}
	return fmt.Sprintf("ファイルの読み込みに失敗しました (%s): %v", e.Source, e.Err)
}

func (e *ReadError) Unwrap() []error { return []error{ErrRead, e.Err} }

// RequestFailedError は非2xxのHTTP応答です。
type RequestFailedError struct {
	StatusCode int
	Body       string
}

// Error はレスポンス本文をそのまま返し、本文が空ならステータスコード付きの汎用メッセージを返します。
func (e *RequestFailedError) Error() string {
	if e.Body != "" {
		return e.Body
	}
	return fmt.Sprintf("リクエスト失敗: %d", e.StatusCode)
}

func (e *RequestFailedError) Unwrap() error { return ErrRequestFailed }

// ParseError は2xx応答に画像が含まれていなかったことを表します。
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	if e.Reason == "" {
		return "レスポンスに画像URLまたはbase64データが見つかりませんでした"
	}
	return fmt.Sprintf("レスポンスに画像URLまたはbase64データが見つかりませんでした (%s)", e.Reason)
}

func (e *ParseError) Unwrap() error { return ErrNoImage }

// QuotaError は残量照会の失敗です。生成結果には伝播させません。
type QuotaError struct {
	StatusCode int
	Err        error
}

func (e *QuotaError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("照会失敗: %d", e.StatusCode)
	}
	return fmt.Sprintf("照会失敗: %v", e.Err)
}

func (e *QuotaError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrQuota}
	}
	return []error{ErrQuota, e.Err}
}

// UserMessage はエラーを画面表示用のステータス文字列にします。
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		return ve.Message
	case errors.Is(err, ErrUnknownProvider):
		return "未対応のモデルです: " + err.Error()
	default:
		return err.Error()
	}
}
