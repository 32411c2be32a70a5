package structure

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cellTexts(cells []Cell) (texts []string, delims []bool) {
	for _, c := range cells {
		texts = append(texts, c.Text)
		delims = append(delims, c.Delim)
	}
	return texts, delims
}

func TestSplitRow(t *testing.T) {
	tests := []struct {
		line   string
		texts  []string
		delims []bool
	}{
		{"│功能│说明│", []string{"│", "功能", "│", "说明", "│"}, []bool{true, false, true, false, true}},
		{"序号\t功能\t状态", []string{"序号", "\t", "功能", "\t", "状态"}, []bool{false, true, false, true, false}},
		{"| 模块 | 描述 |", []string{"| ", "模块", " | ", "描述", " |"}, []bool{true, false, true, false, true}},
		{"user login  done", []string{"user login", "  ", "done"}, []bool{false, true, false}},
		{"plain text", []string{"plain text"}, []bool{false}},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			cells := SplitRow(tt.line)
			texts, delims := cellTexts(cells)
			assert.Equal(t, tt.texts, texts)
			assert.Equal(t, tt.delims, delims)
			assert.Equal(t, tt.line, strings.Join(texts, ""))
		})
	}
}

func TestIsBorder(t *testing.T) {
	for _, line := range []string{"┌──┬──┐", "|---|:---:|", "+------+-----+", "", "   "} {
		assert.True(t, IsBorder(line), line)
	}
	for _, line := range []string{"| 模块 | 描述 |", "│12│", "总计"} {
		assert.False(t, IsBorder(line), line)
	}
}

func TestTranslateTableBoxDrawing(t *testing.T) {
	text := strings.Join([]string{
		"┌────┬────┐",
		"│功能│状态│",
		"├────┼────┤",
		"│登录│完成│",
		"│注册│完成│",
		"│ 12 │ 3.5 │",
		"└────┴────┘",
	}, "\n")
	d := &dict{words: map[string]string{
		"功能": "Feature",
		"状态": "Status",
		"登录": "Login",
		"注册": "Sign-up",
		"完成": "Done",
	}}

	res := TranslateTable(context.Background(), text, d, Options{})
	require.NoError(t, res.Err)
	want := strings.Join([]string{
		"┌────┬────┐",
		"│Feature│Status│",
		"├────┼────┤",
		"│Login│Done│",
		"│Sign-up│Done│",
		"│ 12 │ 3.5 │",
		"└────┴────┘",
	}, "\n")
	assert.Equal(t, want, res.Text)
	assert.Equal(t, 5, d.calls)
	assert.Equal(t, 5, res.Units)
}

func TestTranslateTableMarkdownAndGaps(t *testing.T) {
	text := "| 模块 | 描述 |\n|---|---|\n| 登录 | 用户 登录 |\n\n序号\t名称\n1\t导出"
	d := &dict{words: map[string]string{
		"模块":    "Module",
		"描述":    "Description",
		"登录":    "Login",
		"用户 登录": "User login",
		"序号":    "No.",
		"名称":    "Name",
		"导出":    "Export",
	}}
	res := TranslateTable(context.Background(), text, d, Options{})
	require.NoError(t, res.Err)
	assert.Equal(t, "| Module | Description |\n|---|---|\n| Login | User login |\n\nNo.\tName\n1\tExport", res.Text)
}

func TestTranslateTablePartialFailure(t *testing.T) {
	text := "│功能│状态│\n│登录│未知│"
	d := &dict{words: map[string]string{"功能": "Feature", "状态": "Status", "登录": "Login"}}

	res := TranslateTable(context.Background(), text, d, Options{})
	require.Error(t, res.Err)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 4, res.Units)
	assert.Equal(t, "│Feature│Status│\n│Login│未知│", res.Text)

	res = TranslateTable(context.Background(), text, d, Options{MaxFailedRatio: 0.25})
	assert.NoError(t, res.Err)
}
