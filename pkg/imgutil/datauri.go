package imgutil

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

var ErrNotDataURI = errors.New("not a data URI")

// EncodeDataURI はバイト列を base64 の data URI にします。
func EncodeDataURI(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DataURIPayload は data URI の最初のカンマ以降（ペイロード部分）を返します。
func DataURIPayload(uri string) (string, error) {
	if !strings.HasPrefix(uri, "data:") {
		return "", ErrNotDataURI
	}
	_, payload, ok := strings.Cut(uri, ",")
	if !ok {
		return "", fmt.Errorf("%w: missing comma", ErrNotDataURI)
	}
	return payload, nil
}

// DecodeDataURI は base64 の data URI を MIME タイプとバイト列に戻します。
func DecodeDataURI(uri string) (string, []byte, error) {
	payload, err := DataURIPayload(uri)
	if err != nil {
		return "", nil, err
	}
	meta := strings.TrimPrefix(uri[:len(uri)-len(payload)-1], "data:")
	mimeType, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		return "", nil, fmt.Errorf("%w: only base64 payloads are supported", ErrNotDataURI)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("decode data URI: %w", err)
	}
	if mimeType == "" {
		mimeType = "text/plain"
	}
	return mimeType, data, nil
}
