package gallery

import (
	"sync"

	"github.com/shouni/aihubmix-image-kit/pkg/domain"
)

// Gallery は生成結果の一覧です。追加のみで、新しいものが先頭に来ます。上限はありません。
type Gallery struct {
	mu      sync.RWMutex
	results []domain.GenerationResult
	byID    map[string]int
}

func New() *Gallery {
	return &Gallery{byID: make(map[string]int)}
}

// Add は結果を一覧に追加します。Locator が空の結果は無視して false を返します。
func (g *Gallery) Add(r domain.GenerationResult) bool {
	if r.Locator.IsZero() {
		return false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.results = append(g.results, r)
	if r.ID != "" {
		g.byID[r.ID] = len(g.results) - 1
	}
	return true
}

// List は新しい順の一覧のコピーを返します。
func (g *Gallery) List() []domain.GenerationResult {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]domain.GenerationResult, len(g.results))
	for i, r := range g.results {
		out[len(g.results)-1-i] = r
	}
	return out
}

func (g *Gallery) Get(id string) (domain.GenerationResult, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	i, ok := g.byID[id]
	if !ok {
		return domain.GenerationResult{}, false
	}
	return g.results[i], true
}

// Len は表示上の「N 张」にあたる件数です。
func (g *Gallery) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.results)
}
