// Package textutil 提供分块、相似度与哈希等文本工具。
package textutil

import (
	"crypto/sha256"
	"encoding/hex"
	"math"

	"github.com/kart-io/pdfrag/pkg/utils/errors"
)

// CosineSimilarity 返回 a 与 b 的余弦相似度，取值 [-1, 1]。
// 长度不同、为空或任一向量为零向量时返回 0。
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, aa, bb float64
	for i, x := range a {
		y := float64(b[i])
		dot += float64(x) * y
		aa += float64(x) * float64(x)
		bb += y * y
	}
	if aa == 0 || bb == 0 {
		return 0
	}
	return dot / math.Sqrt(aa*bb)
}

// HashString 返回 s 的 SHA-256 十六进制摘要。
func HashString(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// TruncateString 保留前 n 个字符（按 rune 计）。
func TruncateString(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// Chunker 按固定字符数切分文本，相邻窗口重叠 Overlap 个字符。
type Chunker struct {
	Size    int
	Overlap int
}

// NewChunker 校验参数后创建 Chunker。
func NewChunker(size, overlap int) (*Chunker, error) {
	if err := ValidateChunking(size, overlap); err != nil {
		return nil, err
	}
	return &Chunker{Size: size, Overlap: overlap}, nil
}

// Split 切分 text，参数已在 NewChunker 中校验。
func (c *Chunker) Split(text string) []string {
	return windows([]rune(text), c.Size, c.Size-c.Overlap)
}

// ValidateChunking 要求 size > 0 且 0 <= overlap < size。
func ValidateChunking(size, overlap int) error {
	if size <= 0 {
		return errors.ErrRAGConfiguration.WithMessagef("chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return errors.ErrRAGConfiguration.WithMessagef("chunk overlap must be in [0, %d), got %d", size, overlap)
	}
	return nil
}

// SplitIntoChunks 校验参数并切分 text。空文本返回空切片。
// 最后一个窗口到达文本末尾即停止，因此不会产生只含重叠部分的尾块。
func SplitIntoChunks(text string, size, overlap int) ([]string, error) {
	if err := ValidateChunking(size, overlap); err != nil {
		return nil, err
	}
	return windows([]rune(text), size, size-overlap), nil
}

func windows(runes []rune, size, step int) []string {
	out := []string{}
	for start := 0; start < len(runes); start += step {
		end := min(start+size, len(runes))
		out = append(out, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return out
}
