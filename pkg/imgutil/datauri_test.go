package imgutil

import (
	"errors"
	"testing"
)

func TestDataURI(t *testing.T) {
	t.Run("エンコードしてペイロードを取り出せる", func(t *testing.T) {
		uri := EncodeDataURI("image/png", []byte("a"))
		if uri != "data:image/png;base64,YQ==" {
			t.Fatalf("unexpected uri: %s", uri)
		}
		payload, err := DataURIPayload(uri)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if payload != "YQ==" {
			t.Errorf("payload = %s, want YQ==", payload)
		}
	})

	t.Run("data URIでなければエラー", func(t *testing.T) {
		for _, in := range []string{"https://example.com/a.png", "data:image/png;base64"} {
			if _, err := DataURIPayload(in); !errors.Is(err, ErrNotDataURI) {
				t.Errorf("%q: expected ErrNotDataURI, got %v", in, err)
			}
		}
	})

	t.Run("デコードでMIMEタイプとバイト列に戻る", func(t *testing.T) {
		mime, data, err := DecodeDataURI("data:image/jpeg;base64,Zm9v")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if mime != "image/jpeg" || string(data) != "foo" {
			t.Errorf("got %s %q", mime, data)
		}
	})

	t.Run("base64以外は未対応", func(t *testing.T) {
		if _, _, err := DecodeDataURI("data:text/plain,hello"); err == nil {
			t.Error("expected error for non-base64 data URI")
		}
	})
}
