package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/shouni/aihubmix-image-kit/pkg/domain"
	"github.com/shouni/aihubmix-image-kit/pkg/prompts"
)

type promptResponse struct {
	prompts.Template
	Text string `json:"text"`
}

type keyResponse struct {
	Saved      bool           `json:"saved"`
	Masked     string         `json:"masked,omitempty"`
	Quota      *quotaResponse `json:"quota,omitempty"`
	QuotaError string         `json:"quota_error,omitempty"`
}

type quotaResponse struct {
	Raw        *float64 `json:"raw"`
	Converted  *float64 `json:"converted"`
	Multiplier float64  `json:"multiplier"`
	Field      string   `json:"field,omitempty"`
	Display    string   `json:"display"`
}

type resultResponse struct {
	ID          string    `json:"id"`
	ImageURL    string    `json:"image_url"`
	IsDataURI   bool      `json:"is_data_uri"`
	Usage       *float64  `json:"usage,omitempty"`
	ScaledUsage *float64  `json:"scaled_usage,omitempty"`
	Prompt      string    `json:"prompt"`
	Family      string    `json:"family"`
	Model       string    `json:"model"`
	CreatedAt   time.Time `json:"created_at"`
	DownloadURL string    `json:"download_url"`
}

type resultsResponse struct {
	Count   int              `json:"count"`
	Results []resultResponse `json:"results"`
}

func (s *Server) quotaBody(q *domain.QuotaReading) *quotaResponse {
	if q == nil {
		return &quotaResponse{Display: "unknown", Multiplier: s.Multiplier}
	}
	if q.Converted != nil {
		s.recordQuota(*q.Converted)
	}
	return &quotaResponse{
		Raw:        q.Raw,
		Converted:  q.Converted,
		Multiplier: q.Multiplier,
		Field:      q.Field,
		Display:    q.String(),
	}
}

func (s *Server) recordQuota(v float64) {
	if s.Metrics != nil {
		s.Metrics.SetQuota(v)
	}
}

func (s *Server) resultBody(r domain.GenerationResult) resultResponse {
	out := resultResponse{
		ID:          r.ID,
		ImageURL:    r.Locator.Value,
		IsDataURI:   r.Locator.Kind == domain.LocatorDataURI,
		Usage:       r.Usage,
		Prompt:      r.PromptEcho,
		Family:      r.Family.String(),
		Model:       r.Model,
		CreatedAt:   r.CreatedAt,
		DownloadURL: "/api/results/" + r.ID + "/download",
	}
	if s.Multiplier > 0 {
		if v, ok := r.ScaledUsage(s.Multiplier); ok {
			out.ScaledUsage = &v
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
