package keystore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// StorageKey は API キーを保存するキー名です。
const StorageKey = "aihubmix-key"

const fileMode = 0o600

// Store は API キーを YAML ファイルに保存します。
type Store struct {
	path string
}

// DefaultPath はユーザー設定ディレクトリ配下の保存先を返します。
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve user config dir: %w", err)
	}
	return filepath.Join(dir, "aihubmix-image-kit", "keys.yaml"), nil
}

func New(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Path() string { return s.path }

// Load は保存済みのキーを返します。ファイルが無ければ空文字です。
func (s *Store) Load() (string, error) {
	entries, err := s.read()
	if err != nil {
		return "", err
	}
	return entries[StorageKey], nil
}

// Save は前後の空白を除いたキーを保存します。空文字もそのまま保存します。
func (s *Store) Save(key string) error {
	entries, err := s.read()
	if err != nil {
		return err
	}
	entries[StorageKey] = strings.TrimSpace(key)
	return s.write(entries)
}

// Clear は保存済みのキーを削除します。
func (s *Store) Clear() error {
	entries, err := s.read()
	if err != nil {
		return err
	}
	if _, ok := entries[StorageKey]; !ok {
		return nil
	}
	delete(entries, StorageKey)
	return s.write(entries)
}

func (s *Store) read() (map[string]string, error) {
	entries := make(map[string]string)
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return entries, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read key store: %w", err)
	}
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse key store %s: %w", s.path, err)
	}
	if entries == nil {
		entries = make(map[string]string)
	}
	return entries, nil
}

func (s *Store) write(entries map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create key store dir: %w", err)
	}
	data, err := yaml.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode key store: %w", err)
	}
	if err := os.WriteFile(s.path, data, fileMode); err != nil {
		return fmt.Errorf("write key store: %w", err)
	}
	return os.Chmod(s.path, fileMode)
}
