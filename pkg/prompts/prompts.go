package prompts

import (
	"fmt"
	"slices"
)

// Template はプロンプトライブラリの1項目です。
type Template struct {
	Title string `json:"title"`
	Tag   string `json:"tag"`
	Body  string `json:"body"`
}

// Text はプロンプト欄に入れる文字列（タイトル + 改行 + 本文）を返します。
func (t Template) Text() string {
	return t.Title + "\n" + t.Body
}

var builtin = []Template{
	{
		Title: "极简科技感 PPT 封面",
		Tag:   "PPT",
		Body:  "玻璃拟态渐变，留出标题区域，深空蓝加少量点光，干净克制。",
	},
	{
		Title: "电商极简主图",
		Tag:   "电商",
		Body:  "4K 产品主图，柔和顶光，轻薄渐变背景，无水印，高对比度。",
	},
	{
		Title: "治愈系插画海报",
		Tag:   "插画",
		Body:  "手绘笔触，柔焦背景，角色温暖，细节丰富但保留留白。",
	},
	{
		Title: "会议纪要封面",
		Tag:   "PPT",
		Body:  "深色底，蓝绿流线，右上角点阵，稳重克制，标题区域充足。",
	},
}

// All は組み込みテンプレートのコピーを返します。
func All() []Template {
	return slices.Clone(builtin)
}

// Get は 0 始まりの番号でテンプレートを返します。
func Get(index int) (Template, error) {
	if index < 0 || index >= len(builtin) {
		return Template{}, fmt.Errorf("prompt template %d not found (0-%d)", index, len(builtin)-1)
	}
	return builtin[index], nil
}
