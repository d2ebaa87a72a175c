// Package config は既定値 → YAML ファイル → 環境変数 (AIHUBMIX_*) の順に設定を読み込みます。
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shouni/aihubmix-image-kit/pkg/provider"
	"github.com/shouni/aihubmix-image-kit/pkg/quota"
	"gopkg.in/yaml.v3"
)

// EnvPrefix は環境変数の接頭辞です。
const EnvPrefix = "AIHUBMIX_"

// Config はアプリケーション全体の設定です。
type Config struct {
	APIKey          string `yaml:"api_key"`
	BillingURL      string `yaml:"billing_url"`
	GeminiBaseURL   string `yaml:"gemini_base_url"`
	PredictionURL   string `yaml:"prediction_url"`
	PredictionModel string `yaml:"prediction_model"`

	// QuotaMultiplier は残量と usage の表示倍率です。
	QuotaMultiplier float64 `yaml:"quota_multiplier"`
	// RequestTimeout は生成と残量照会1回あたりの上限です。0 は無制限です。
	RequestTimeout         time.Duration `yaml:"request_timeout"`
	LegacyProviderFallback bool          `yaml:"legacy_provider_fallback"`

	CacheTTL           time.Duration `yaml:"cache_ttl"`
	CompressReferences bool          `yaml:"compress_references"`
	CompressionQuality int           `yaml:"compression_quality"`
	// GCSReferences が true なら gs:// の参照画像をアプリケーションデフォルト認証で読みます。
	GCSReferences bool `yaml:"gcs_references"`

	ListenAddr   string `yaml:"listen_addr"`
	KeyStorePath string `yaml:"key_store_path"`
	LogLevel     string `yaml:"log_level"`
}

// Default は既定値の設定を返します。
func Default() Config {
	return Config{
		BillingURL:         quota.DefaultBillingURL,
		GeminiBaseURL:      provider.DefaultGeminiBaseURL,
		PredictionURL:      provider.DefaultPredictionURL,
		PredictionModel:    provider.DefaultPredictionModel,
		QuotaMultiplier:    quota.DefaultMultiplier,
		CacheTTL:           30 * time.Minute,
		CompressionQuality: 75,
		ListenAddr:         ":8080",
		LogLevel:           "info",
	}
}

// Load は .env を読み込んだうえで設定を組み立てます。path が空なら YAML は読みません。
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn(".env の読み込みに失敗しました", "error", err)
	}

	cfg := Default()
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	get := func(name string) (string, bool) {
		v, ok := lookup(EnvPrefix + name)
		if !ok {
			return "", false
		}
		return strings.TrimSpace(v), true
	}

	strs := map[string]*string{
		"API_KEY":          &c.APIKey,
		"BILLING_URL":      &c.BillingURL,
		"GEMINI_BASE_URL":  &c.GeminiBaseURL,
		"PREDICTION_URL":   &c.PredictionURL,
		"PREDICTION_MODEL": &c.PredictionModel,
		"LISTEN_ADDR":      &c.ListenAddr,
		"KEY_STORE_PATH":   &c.KeyStorePath,
		"LOG_LEVEL":        &c.LogLevel,
	}
	for name, dst := range strs {
		if v, ok := get(name); ok {
			*dst = v
		}
	}

	durations := map[string]*time.Duration{
		"REQUEST_TIMEOUT": &c.RequestTimeout,
		"CACHE_TTL":       &c.CacheTTL,
	}
	for name, dst := range durations {
		if v, ok := get(name); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
			}
			*dst = d
		}
	}

	bools := map[string]*bool{
		"LEGACY_PROVIDER_FALLBACK": &c.LegacyProviderFallback,
		"COMPRESS_REFERENCES":      &c.CompressReferences,
		"GCS_REFERENCES":           &c.GCSReferences,
	}
	for name, dst := range bools {
		if v, ok := get(name); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
			}
			*dst = b
		}
	}

	if v, ok := get("QUOTA_MULTIPLIER"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%sQUOTA_MULTIPLIER: %w", EnvPrefix, err)
		}
		c.QuotaMultiplier = f
	}
	if v, ok := get("COMPRESSION_QUALITY"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sCOMPRESSION_QUALITY: %w", EnvPrefix, err)
		}
		c.CompressionQuality = n
	}
	return nil
}

// Validate は設定値の整合性を確認します。
func (c Config) Validate() error {
	var errs []error
	for name, raw := range map[string]string{
		"billing_url":     c.BillingURL,
		"gemini_base_url": c.GeminiBaseURL,
		"prediction_url":  c.PredictionURL,
	} {
		if err := validateURL(raw); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	if c.QuotaMultiplier <= 0 {
		errs = append(errs, fmt.Errorf("quota_multiplier must be positive: %v", c.QuotaMultiplier))
	}
	if c.CompressionQuality < 1 || c.CompressionQuality > 100 {
		errs = append(errs, fmt.Errorf("compression_quality must be 1-100: %d", c.CompressionQuality))
	}
	if c.RequestTimeout < 0 || c.CacheTTL < 0 {
		errs = append(errs, errors.New("durations must not be negative"))
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ParseLevel は log_level を slog.Level に変換します。
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("log_level: %w", err)
	}
	return level, nil
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("absolute http(s) URL required: %q", raw)
	}
	return nil
}
