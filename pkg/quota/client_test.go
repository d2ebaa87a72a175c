package quota

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shouni/aihubmix-image-kit/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseReading(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantKnown bool
		want      float64
		wantField string
	}{
		{"total_usage", `{"total_usage":5}`, true, 5000, "total_usage"},
		{"remain", `{"remain":"2.5"}`, true, 2500, "remain"},
		{"credit", `{"credit":1}`, true, 1000, "credit"},
		{"先に存在したフィールドが優先", `{"remain":1,"total_usage":2}`, true, 2000, "total_usage"},
		{"nullは存在しない扱い", `{"total_usage":null,"credit":3}`, true, 3000, "credit"},
		{"数値でなければ不明", `{"total_usage":"n/a","remain":7}`, false, 0, "total_usage"},
		{"どれも無い", `{"balance":9}`, false, 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseReading([]byte(tt.body), 1000)
			assert.Equal(t, tt.wantKnown, got.Known())
			assert.Equal(t, tt.wantField, got.Field)
			if tt.wantKnown {
				assert.InDelta(t, tt.want, *got.Converted, 1e-9)
			} else {
				assert.Equal(t, "unknown", got.String())
			}
		})
	}
}

func TestClient_Fetch(t *testing.T) {
	ctx := context.Background()

	t.Run("Bearerヘッダ付きでGETする", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodGet, r.Method)
			assert.Equal(t, "Bearer sk-abc", r.Header.Get("Authorization"))
			_, _ = w.Write([]byte(`{"total_usage":5}`))
		}))
		defer srv.Close()

		c, err := NewClient(srv.Client(), srv.URL, 1000)
		require.NoError(t, err)

		got, err := c.Fetch(ctx, " sk-abc ")
		require.NoError(t, err)
		assert.Equal(t, "5000", got.String())
	})

	t.Run("非2xxはQuotaError", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer srv.Close()

		c, _ := NewClient(srv.Client(), srv.URL, 9)
		_, err := c.Fetch(ctx, "k")
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrQuota)
		var qe *domain.QuotaError
		require.True(t, errors.As(err, &qe))
		assert.Equal(t, http.StatusUnauthorized, qe.StatusCode)
		assert.Contains(t, err.Error(), "401")
	})

	t.Run("Keyが無ければ通信しない", func(t *testing.T) {
		c, _ := NewClient(&http.Client{Transport: failingTransport{t}}, "http://unused", 9)
		_, err := c.Fetch(ctx, "")
		assert.ErrorIs(t, err, domain.ErrMissingKey)
	})

	t.Run("不正なJSONはQuotaError", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`<html>`))
		}))
		defer srv.Close()

		c, _ := NewClient(srv.Client(), srv.URL, 9)
		_, err := c.Fetch(ctx, "k")
		assert.ErrorIs(t, err, domain.ErrQuota)
	})
}

func TestNewClient(t *testing.T) {
	_, err := NewClient(nil, "", 1000)
	assert.Error(t, err)

	_, err = NewClient(http.DefaultClient, "", 0)
	assert.Error(t, err)

	c, err := NewClient(http.DefaultClient, "", 9)
	require.NoError(t, err)
	assert.Equal(t, DefaultBillingURL, c.url)
	assert.Equal(t, 9.0, c.Multiplier())
}

type failingTransport struct{ t *testing.T }

func (f failingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	f.t.Error("network must not be used")
	return nil, errors.New("unexpected")
}
