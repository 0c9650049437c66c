// Package textutil 提供 RAG 相关的文本处理工具函数。
package textutil

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"regexp"
	"strings"
	"unicode/utf8"
)

// wordRegex 匹配由字母开头的单词，允许内部撇号。
var wordRegex = regexp.MustCompile(`\p{L}[\p{L}\p{N}'’]*`)

// CosineSimilarity 计算两个向量的余弦相似度。
// 返回值范围为 [-1, 1]，1 表示完全相同，-1 表示完全相反。
// 维度不一致或存在零向量时返回 0。
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

// Comparable 判断两个向量能否比较相似度。
func Comparable(a, b []float32) bool {
	return len(a) > 0 && len(a) == len(b)
}

// ClampScore 将分数限制在 [0, 1] 范围。
func ClampScore(score float64) float64 {
	if score < 0 || math.IsNaN(score) {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// HashString 计算字符串的 SHA-256 哈希值。
func HashString(s string) string {
	hash := sha256.Sum256([]byte(s))
	return hex.EncodeToString(hash[:])
}

// TruncateString 截断字符串到指定的最大 Unicode 字符数。
func TruncateString(s string, maxLen int) string {
	if maxLen <= 0 || utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxLen])
}

// SplitIntoChunks 将文本分割成重叠的块。
// chunkSize 是每个块的大小（Unicode 字符数），overlap 是块之间的重叠大小。
func SplitIntoChunks(text string, chunkSize, overlap int) []string {
	if chunkSize <= 0 || strings.TrimSpace(text) == "" {
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
		return []string{text}
	}

	var chunks []string
	step := chunkSize - overlap

	for i := 0; i < len(runes); i += step {
		end := i + chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[i:end]))
		if end == len(runes) {
			break
		}
	}

	return chunks
}

// Words 返回文本中的小写单词序列。
func Words(text string) []string {
	matches := wordRegex.FindAllString(text, -1)
	for i, m := range matches {
		matches[i] = strings.ToLower(m)
	}
	return matches
}

// Terms 提取查询词，忽略长度小于 minLen 的单词并去重，保持出现顺序。
func Terms(text string, minLen int) []string {
	seen := make(map[string]struct{})
	var terms []string
	for _, w := range Words(text) {
		if utf8.RuneCountInString(w) < minLen {
			continue
		}
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		terms = append(terms, w)
	}
	return terms
}

// LeadingWords 返回文本的前 n 个单词，用空格连接。
func LeadingWords(text string, n int) string {
	fields := strings.Fields(text)
	if len(fields) > n {
		fields = fields[:n]
	}
	return strings.Join(fields, " ")
}

// ContainsString 检查字符串切片是否包含指定元素。
func ContainsString(slice []string, item string) bool {
	for _, v := range slice {
		if v == item {
			return true
		}
	}
	return false
}
