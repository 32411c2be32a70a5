package structure

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdf-translator/internal/chunker"
)

// dict translates through a fixed table and counts calls; unknown text
// fails.
type dict struct {
	words map[string]string
	calls int
}

func (d *dict) TranslateUnit(_ context.Context, text string) (string, error) {
	d.calls++
	if out, ok := d.words[text]; ok {
		return out, nil
	}
	return "", fmt.Errorf("no translation for %q", text)
}

func TestParseTOC(t *testing.T) {
	tests := []struct {
		line string
		want TOCItem
	}{
		{
			line: "    1 系统概述 ........................... 1",
			want: TOCItem{Indent: "    ", Number: "1", Gap: " ", Label: "系统概述", Leader: " ........................... ", Page: "1", Depth: 1},
		},
		{
			line: "2.1.1 用户注册.......7",
			want: TOCItem{Number: "2.1.1", Gap: " ", Label: "用户注册", Leader: ".......", Page: "7", Depth: 3},
		},
		{
			line: "第一章 总则 - 1 -",
			want: TOCItem{Number: "第一章", Gap: " ", Label: "总则", Leader: " ", Page: "- 1 -", Depth: 1},
		},
		{
			line: "第二节 适用范围……5",
			want: TOCItem{Number: "第二节", Gap: " ", Label: "适用范围", Leader: "……", Page: "5", Depth: 2},
		},
		{
			line: "Preface ..... iv",
			want: TOCItem{Label: "Preface", Leader: " ..... ", Page: "iv", Depth: 1},
		},
		{
			line: "1.1概述 3",
			want: TOCItem{Number: "1.1", Label: "概述", Leader: " ", Page: "3", Depth: 2},
		},
		{
			line: "  附录A 术语表",
			want: TOCItem{Indent: "  ", Label: "附录A 术语表", Depth: 2},
		},
		{
			line: "3D 建模说明 12",
			want: TOCItem{Label: "3D 建模说明", Leader: " ", Page: "12", Depth: 1},
		},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			items := ParseTOC(tt.line)
			require.Len(t, items, 1)
			assert.Equal(t, tt.want, items[0])
			assert.Equal(t, strings.TrimRight(tt.line, " "), items[0].String())
		})
	}
}

func TestParseTOCSplitsFlattenedEntries(t *testing.T) {
	text := "1.1 总体说明... 3 1.2 适用范围... 4 1.3 术语定义... 6"
	items := ParseTOC(text)
	require.Len(t, items, 3)
	assert.Equal(t, "1.1 总体说明... 3", items[0].String())
	assert.Equal(t, "1.2", items[1].Number)
	assert.Equal(t, "适用范围", items[1].Label)
	assert.Equal(t, "4", items[1].Page)
	assert.Equal(t, "1.3 术语定义... 6", items[2].String())
}

func TestParseTOCSkipsBlankLines(t *testing.T) {
	items := ParseTOC("目录\n\n1 概述 ..... 1\n   \n")
	require.Len(t, items, 2)
	assert.Equal(t, "目录", items[0].Label)
}

func TestTranslateTOC(t *testing.T) {
	text := "目录\n1 概述 ........ 1\n1.1 范围 ........ 2\n2 概述 ........ 5\n3 ........ 9"
	d := &dict{words: map[string]string{
		"目录": "Contents",
		"概述": "Overview",
		"范围": "Scope\nof use",
	}}

	items, res := TranslateTOC(context.Background(), ParseTOC(text), d, Options{})
	require.NoError(t, res.Err)
	assert.Equal(t, "Contents\n1 Overview ........ 1\n1.1 Scope of use ........ 2\n2 Overview ........ 5\n3 ........ 9", res.Text)
	assert.Equal(t, 3, d.calls, "repeated label translated once, number-only entry not at all")
	assert.Equal(t, 3, res.Units)
	assert.Zero(t, res.Failed)
	require.Len(t, items, 5)
	assert.Equal(t, "Overview", items[1].Label)
	assert.Equal(t, "1", items[1].Page)
}

func TestTranslateTOCFailedLabels(t *testing.T) {
	text := "1 概述 ..... 1\n2 范围 ..... 3\n3 术语 ..... 4\n4 附录 ..... 9"
	d := &dict{words: map[string]string{"概述": "Overview", "范围": "Scope", "术语": "Terms"}}

	t.Run("any failure fails by default", func(t *testing.T) {
		_, res := TranslateTOC(context.Background(), ParseTOC(text), d, Options{})
		require.Error(t, res.Err)
		assert.True(t, errors.Is(res.Err, chunker.ErrTooManyFailures))
		assert.Equal(t, 1, res.Failed)
		assert.Equal(t, 4, res.Units)
		assert.Contains(t, res.Text, "4 附录 ..... 9", "failed label keeps source")
		assert.Contains(t, res.Text, "1 Overview ..... 1")
	})

	t.Run("tolerated ratio", func(t *testing.T) {
		_, res := TranslateTOC(context.Background(), ParseTOC(text), d, Options{MaxFailedRatio: 0.25})
		assert.NoError(t, res.Err)
		assert.Equal(t, 1, res.Failed)
	})
}

func TestTranslateTOCBlankReplyIsFailure(t *testing.T) {
	tr := UnitFunc(func(context.Context, string) (string, error) { return "  ", nil })
	_, res := TranslateTOC(context.Background(), ParseTOC("1 概述 ..... 1"), tr, Options{})
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, "1 概述 ..... 1", res.Text)
}
