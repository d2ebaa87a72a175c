package generator

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/shouni/aihubmix-image-kit/pkg/domain"
)

// --- Mocks ---

type mockReader struct {
	files  map[string][]byte
	opened []string
}

func (m *mockReader) Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	m.opened = append(m.opened, uri)
	data, ok := m.files[uri]
	if !ok {
		return nil, errors.New("file not found: " + uri)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *mockReader) List(ctx context.Context, uri string, fn func(string) error) error {
	for name := range m.files {
		if err := fn(name); err != nil {
			return err
		}
	}
	return nil
}

type mockHTTPClient struct {
	data  []byte
	err   error
	calls int
}

func (m *mockHTTPClient) FetchBytes(ctx context.Context, url string) ([]byte, error) {
	m.calls++
	return m.data, m.err
}

type mockCache struct {
	mu   sync.Mutex
	data map[string]any
}

func (m *mockCache) Get(key string) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	val, ok := m.data[key]
	return val, ok
}

func (m *mockCache) Set(key string, value any, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
}

// mockDoer は送信されたリクエストを記録し、固定のレスポンスを返します。
type mockDoer struct {
	status int
	body   string
	err    error

	calls    int
	lastReq  *http.Request
	lastBody []byte
}

func (m *mockDoer) Do(req *http.Request) (*http.Response, error) {
	m.calls++
	m.lastReq = req
	if req.Body != nil {
		m.lastBody, _ = io.ReadAll(req.Body)
	}
	if m.err != nil {
		return nil, m.err
	}
	return &http.Response{
		StatusCode: m.status,
		Body:       io.NopCloser(bytes.NewBufferString(m.body)),
		Header:     make(http.Header),
	}, nil
}

type mockEncoder struct {
	err   error
	calls int
}

func (m *mockEncoder) Encode(ctx context.Context, img domain.ReferenceImage) (domain.EncodedImage, error) {
	return domain.EncodedImage{MIMEType: "image/png", Base64: "QUJD"}, m.err
}

func (m *mockEncoder) EncodeAll(ctx context.Context, imgs []domain.ReferenceImage) ([]domain.EncodedImage, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	out := make([]domain.EncodedImage, len(imgs))
	for i := range imgs {
		out[i] = domain.EncodedImage{MIMEType: "image/png", Base64: "QUJD"}
	}
	return out, nil
}

type mockQuota struct {
	reading *domain.QuotaReading
	err     error
	keys    chan string
}

func (m *mockQuota) Fetch(ctx context.Context, apiKey string) (*domain.QuotaReading, error) {
	if m.keys != nil {
		m.keys <- apiKey
	}
	return m.reading, m.err
}

type recorded struct {
	family  string
	outcome string
}

type mockRecorder struct {
	mu          sync.Mutex
	generations []recorded
	quotas      []string
}

func (m *mockRecorder) ObserveGeneration(family, outcome string, elapsed time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.generations = append(m.generations, recorded{family: family, outcome: outcome})
}

func (m *mockRecorder) ObserveQuota(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quotas = append(m.quotas, outcome)
}
