package prompts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAll(t *testing.T) {
	all := All()
	require.Len(t, all, 4)
	for _, tpl := range all {
		assert.NotEmpty(t, tpl.Title)
		assert.NotEmpty(t, tpl.Tag)
		assert.NotEmpty(t, tpl.Body)
	}

	all[0].Title = "changed"
	assert.NotEqual(t, "changed", All()[0].Title, "呼び出し側の変更が組み込みデータに影響しないこと")
}

func TestTemplate_Text(t *testing.T) {
	tpl := Template{Title: "タイトル", Body: "本文"}
	assert.Equal(t, "タイトル\n本文", tpl.Text())
}

func TestGet(t *testing.T) {
	tpl, err := Get(1)
	require.NoError(t, err)
	assert.Equal(t, "电商", tpl.Tag)

	_, err = Get(4)
	assert.Error(t, err)
	_, err = Get(-1)
	assert.Error(t, err)
}
