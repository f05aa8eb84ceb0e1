package textutil_test

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/pdfrag/internal/pkg/rag/textutil"
	"github.com/kart-io/pdfrag/pkg/utils/errors"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		a        []float32
		b        []float32
		expected float64
	}{
		{"相同向量", []float32{1, 0, 0}, []float32{1, 0, 0}, 1.0},
		{"正交向量", []float32{1, 0, 0}, []float32{0, 1, 0}, 0.0},
		{"相反向量", []float32{1, 0, 0}, []float32{-1, 0, 0}, -1.0},
		{"空向量", []float32{}, []float32{}, 0.0},
		{"长度不匹配", []float32{1, 2}, []float32{1}, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, textutil.CosineSimilarity(tt.a, tt.b), 0.0001)
		})
	}
}

func TestSplitIntoChunks(t *testing.T) {
	alphabet := "abcdefghijklmnopqrstuvwxyz"

	tests := []struct {
		name      string
		text      string
		size      int
		overlap   int
		want      []string
		minChunks int
	}{
		{"空文本", "", 10, 2, []string{}, 0},
		{"短文本", "hello", 10, 2, []string{"hello"}, 1},
		{"恰好一个窗口", "abcdefghij", 10, 2, []string{"abcdefghij"}, 1},
		{"字母表", alphabet, 10, 2, []string{"abcdefghij", "ijklmnopqr", "qrstuvwxyz"}, 3},
		{"无重叠", "abcdef", 2, 0, []string{"ab", "cd", "ef"}, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := textutil.SplitIntoChunks(tt.text, tt.size, tt.overlap)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.GreaterOrEqual(t, len(got), tt.minChunks)
		})
	}
}

func TestSplitIntoChunksInvalidConfig(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		overlap int
	}{
		{"重叠等于块大小", 10, 10},
		{"重叠大于块大小", 10, 20},
		{"负重叠", 10, -1},
		{"块大小为零", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := textutil.SplitIntoChunks("some text", tt.size, tt.overlap)
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.ErrRAGConfiguration.Code))

			_, err = textutil.NewChunker(tt.size, tt.overlap)
			assert.Error(t, err)
		})
	}
}

// 任意合法参数下：终止、每块长度不超过 size、去掉重叠后可还原原文。
func TestSplitIntoChunksProperties(t *testing.T) {
	texts := []string{
		strings.Repeat("lorem ipsum dolor sit amet ", 40),
		"第一页的中文内容，用于验证按字符而不是按字节切分。",
		"x",
	}
	params := [][2]int{{1, 0}, {5, 4}, {7, 3}, {16, 0}, {100, 15}}

	for _, text := range texts {
		for _, p := range params {
			size, overlap := p[0], p[1]
			chunks, err := textutil.SplitIntoChunks(text, size, overlap)
			require.NoError(t, err)
			require.NotEmpty(t, chunks)

			var rebuilt strings.Builder
			for i, c := range chunks {
				assert.LessOrEqual(t, utf8.RuneCountInString(c), size)
				assert.True(t, utf8.ValidString(c))
				if i == 0 {
					rebuilt.WriteString(c)
					continue
				}
				rebuilt.WriteString(string([]rune(c)[overlap:]))
			}
			assert.Equal(t, text, rebuilt.String(), "size=%d overlap=%d", size, overlap)
		}
	}
}

func TestChunkerSplit(t *testing.T) {
	c, err := textutil.NewChunker(1000, 150)
	require.NoError(t, err)
	assert.Len(t, c.Split(strings.Repeat("a", 2000)), 3)
	assert.Empty(t, c.Split(""))
}

func TestTruncateAndHash(t *testing.T) {
	assert.Equal(t, "你好", textutil.TruncateString("你好世界", 2))
	assert.Equal(t, "abc", textutil.TruncateString("abc", 10))
	assert.Len(t, textutil.HashString("x"), 64)
	assert.Equal(t, textutil.HashString("x"), textutil.HashString("x"))
	assert.NotEqual(t, textutil.HashString("x"), textutil.HashString("x "))
}
