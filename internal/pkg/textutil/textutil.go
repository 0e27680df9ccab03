// Package textutil 提供检索流程使用的文本与向量工具函数。
package textutil

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"strings"
	"unicode/utf8"
)

// CosineSimilarity 计算两个向量的余弦相似度。
// 返回值范围为 [-1, 1]，长度不一致或存在零向量时返回 0。
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// CosineDistance 返回 1 - cos，范围为 [0, 2]，越小越相似。
func CosineDistance(a, b []float32) float64 {
	return 1 - CosineSimilarity(a, b)
}

// Span 表示文本中的一个窗口。
type Span struct {
	Text string
	// Offset 窗口首字符在原文中的 rune 下标。
	Offset int
}

// SplitIntoChunks 按 rune 滑动窗口把文本切成重叠的块。
// 每块 chunkSize 个字符，相邻块重叠 overlap 个字符，窗口到达文本末尾即停止。
// 空文本返回 nil。
func SplitIntoChunks(text string, chunkSize, overlap int) []Span {
	if chunkSize <= 0 || text == "" {
		return nil
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize - 1
	}

	runes := []rune(text)
	if len(runes) <= chunkSize {
		return []Span{{Text: text, Offset: 0}}
	}

	chunks := make([]Span, 0, ExpectedChunkCount(len(runes), chunkSize, overlap))
	step := chunkSize - overlap

	for i := 0; i < len(runes); i += step {
		end := i + chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, Span{Text: string(runes[i:end]), Offset: i})
		if end == len(runes) {
			break
		}
	}

	return chunks
}

// ExpectedChunkCount 返回 SplitIntoChunks 对 n 个字符产生的块数。
func ExpectedChunkCount(n, chunkSize, overlap int) int {
	switch {
	case n <= 0:
		return 0
	case n <= chunkSize:
		return 1
	}
	step := chunkSize - overlap
	return (n - overlap + step - 1) / step
}

// TruncateString 截断字符串到指定的最大 Unicode 字符数。
func TruncateString(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxLen])
}

// NormalizeQuery 去除首尾空白、合并连续空白并转为小写。
func NormalizeQuery(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// HashString 计算字符串的 SHA-256 哈希值。
func HashString(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
