package gallery

import (
	"fmt"
	"sync"
	"testing"

	"github.com/shouni/aihubmix-image-kit/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func result(id string) domain.GenerationResult {
	return domain.GenerationResult{ID: id, Locator: domain.URLLocator("https://cdn.example.com/" + id + ".png")}
}

func TestGallery(t *testing.T) {
	g := New()

	assert.True(t, g.Add(result("a")))
	assert.True(t, g.Add(result("b")))
	assert.False(t, g.Add(domain.GenerationResult{ID: "empty"}), "Locator が無い結果は追加しない")

	list := g.List()
	require.Len(t, list, 2)
	assert.Equal(t, "b", list[0].ID)
	assert.Equal(t, "a", list[1].ID)
	assert.Equal(t, 2, g.Len())

	got, ok := g.Get("a")
	require.True(t, ok)
	assert.Equal(t, "https://cdn.example.com/a.png", got.Locator.Value)

	_, ok = g.Get("empty")
	assert.False(t, ok)
}

func TestGallery_Concurrent(t *testing.T) {
	g := New()
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g.Add(result(fmt.Sprintf("r%d", i)))
			_ = g.List()
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, g.Len())
}
