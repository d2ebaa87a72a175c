package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shouni/aihubmix-image-kit/pkg/domain"
	"github.com/shouni/aihubmix-image-kit/pkg/prompts"
)

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listPrompts(w http.ResponseWriter, r *http.Request) {
	all := prompts.All()
	out := make([]promptResponse, 0, len(all))
	for _, p := range all {
		out = append(out, promptResponse{Template: p, Text: p.Text()})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) showKey(w http.ResponseWriter, r *http.Request) {
	key, err := s.Keys.Load()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, keyResponse{Saved: key != "", Masked: maskKey(key)})
}

// saveKey はキーを保存し、続けて残量を照会します。照会の失敗は保存の成否に影響しません。
func (s *Server) saveKey(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Key string `json:"key"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	key := strings.TrimSpace(body.Key)
	if err := s.Keys.Save(key); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := keyResponse{Saved: key != "", Masked: maskKey(key)}
	reading, err := s.Quota.Fetch(r.Context(), key)
	if err != nil {
		resp.QuotaError = domain.UserMessage(err)
	} else {
		resp.Quota = s.quotaBody(reading)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) clearKey(w http.ResponseWriter, r *http.Request) {
	if err := s.Keys.Clear(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, keyResponse{})
}

func (s *Server) getQuota(w http.ResponseWriter, r *http.Request) {
	key, err := s.apiKey(r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	reading, err := s.Quota.Fetch(r.Context(), key)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, domain.ErrMissingKey) {
			status = http.StatusBadRequest
		}
		writeError(w, status, domain.UserMessage(err))
		return
	}
	writeJSON(w, http.StatusOK, s.quotaBody(reading))
}

func (s *Server) generate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid form: %v", err))
		return
	}

	req, err := parseGenerationForm(r)
	if err != nil {
		writeError(w, statusFor(err), domain.UserMessage(err))
		return
	}
	key, err := s.apiKey(r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	result, err := s.Generator.Generate(r.Context(), key, req)
	if err != nil {
		writeError(w, statusFor(err), domain.UserMessage(err))
		return
	}
	s.Gallery.Add(*result)
	writeJSON(w, http.StatusOK, s.resultBody(*result))
}

func (s *Server) listResults(w http.ResponseWriter, r *http.Request) {
	list := s.Gallery.List()
	out := resultsResponse{Count: len(list), Results: make([]resultResponse, 0, len(list))}
	for _, res := range list {
		out.Results = append(out.Results, s.resultBody(res))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) downloadResult(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	res, ok := s.Gallery.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "result not found")
		return
	}
	data, mimeType, err := s.Results.FetchResult(r.Context(), res.Locator)
	if err != nil {
		slog.WarnContext(r.Context(), "生成画像の取得に失敗しました", "id", id, "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": id + extensionFor(mimeType)}))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// apiKey はヘッダーのキーを優先し、無ければ保存済みのキーを返します。
func (s *Server) apiKey(r *http.Request) (string, error) {
	if key := strings.TrimSpace(r.Header.Get(APIKeyHeader)); key != "" {
		return key, nil
	}
	return s.Keys.Load()
}

func parseGenerationForm(r *http.Request) (domain.GenerationRequest, error) {
	mode, err := domain.ParseMode(r.FormValue("mode"))
	if err != nil {
		return domain.GenerationRequest{}, err
	}
	resolution := domain.DefaultResolution
	if v := r.FormValue("resolution"); v != "" {
		if resolution, err = domain.ParseResolution(v); err != nil {
			return domain.GenerationRequest{}, err
		}
	}
	maxImages := 0
	if v := strings.TrimSpace(r.FormValue("max_images")); v != "" {
		if maxImages, err = strconv.Atoi(v); err != nil {
			return domain.GenerationRequest{}, &domain.ValidationError{Field: "max_images", Message: "max_images must be an integer"}
		}
	}

	req := domain.GenerationRequest{
		Prompt:        strings.TrimSpace(r.FormValue("prompt")),
		Mode:          mode,
		ProviderModel: strings.TrimSpace(r.FormValue("model")),
		AspectRatio:   strings.TrimSpace(r.FormValue("aspect_ratio")),
		Resolution:    resolution,
		MaxImages:     maxImages,
	}

	if r.MultipartForm != nil {
		files := slices.Concat(r.MultipartForm.File["images"], r.MultipartForm.File["images[]"])
		for _, fh := range files {
			img, err := readUpload(fh)
			if err != nil {
				return domain.GenerationRequest{}, err
			}
			req.ReferenceImages = append(req.ReferenceImages, img)
		}
	}
	return req, nil
}

func readUpload(fh *multipart.FileHeader) (domain.ReferenceImage, error) {
	f, err := fh.Open()
	if err != nil {
		return domain.ReferenceImage{}, &domain.ReadError{Source: fh.Filename, Err: err}
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return domain.ReferenceImage{}, &domain.ReadError{Source: fh.Filename, Err: err}
	}
	return domain.ReferenceImage{
		Name:     fh.Filename,
		Data:     data,
		MIMEType: fh.Header.Get("Content-Type"),
	}, nil
}

// statusFor はエラー種別を HTTP ステータスに対応付けます。
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrUnknownProvider):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrRequestFailed), errors.Is(err, domain.ErrNoImage), errors.Is(err, domain.ErrRead):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func maskKey(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:3] + strings.Repeat("*", len(key)-7) + key[len(key)-4:]
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	}
	if exts, err := mime.ExtensionsByType(mimeType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}
