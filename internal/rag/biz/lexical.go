package biz

import (
	"unicode/utf8"

	"github.com/kart-io/quizmind/internal/pkg/rag/textutil"
)

const (
	// minTermRunes 短于该长度的查询词被忽略。
	minTermRunes = 3

	topicWeight   = 0.7
	subjectWeight = 0.3

	coverageWeight = 0.7
	densityWeight  = 0.3
)

// LexicalScorer 基于整词匹配的相关性评分。
type LexicalScorer struct {
	topic        []string
	instructions []string
	subjects     [][]string
}

// NewLexicalScorer 从检索请求提取查询词。
func NewLexicalScorer(q *RelevanceQuery) *LexicalScorer {
	s := &LexicalScorer{
		topic:        textutil.Terms(q.Topic, minTermRunes),
		instructions: textutil.Terms(q.Instructions, minTermRunes),
	}
	for _, subject := range q.Subjects {
		if terms := textutil.Terms(subject, minTermRunes); len(terms) > 0 {
			s.subjects = append(s.subjects, terms)
		}
	}
	return s
}

// Empty 判断是否没有任何可用查询词。
func (s *LexicalScorer) Empty() bool {
	return len(s.topic) == 0 && len(s.instructions) == 0 && len(s.subjects) == 0
}

// Score 计算文本的相关性分数，范围 [0, 1]。
func (s *LexicalScorer) Score(text string) float64 {
	if s.Empty() {
		return 0
	}

	counts := make(map[string]int)
	for _, w := range textutil.Words(text) {
		counts[w]++
	}
	length := utf8.RuneCountInString(text)

	hasTopic := len(s.topic) > 0 || len(s.instructions) > 0
	topic := max(termSetScore(counts, length, s.topic), termSetScore(counts, length, s.instructions))

	var subject float64
	for _, terms := range s.subjects {
		subject = max(subject, termSetScore(counts, length, terms))
	}
	return combineScores(topic, subject, hasTopic, len(s.subjects) > 0)
}

// termSetScore = 0.7·coverage + 0.3·density。
// coverage 为命中词占比，density 为每百字符出现次数，上限为 1。
func termSetScore(counts map[string]int, length int, terms []string) float64 {
	if len(terms) == 0 || length == 0 {
		return 0
	}

	var matched, occurrences int
	for _, t := range terms {
		if n := counts[t]; n > 0 {
			matched++
			occurrences += n
		}
	}
	coverage := float64(matched) / float64(len(terms))
	density := min(float64(occurrences)/(float64(length)/100), 1)
	return coverageWeight*coverage + densityWeight*density
}

// combineScores 主题与知识点同时存在时按 0.7/0.3 加权，否则取存在的一项。
func combineScores(topic, subject float64, hasTopic, hasSubjects bool) float64 {
	switch {
	case hasTopic && hasSubjects:
		return textutil.ClampScore(topicWeight*topic + subjectWeight*subject)
	case hasTopic:
		return textutil.ClampScore(topic)
	default:
		return textutil.ClampScore(subject)
	}
}
