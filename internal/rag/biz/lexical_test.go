package biz

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLexicalScorer_Score(t *testing.T) {
	lex := NewLexicalScorer(&RelevanceQuery{Topic: "Machine Learning"})

	both := lex.Score("Machine learning basics")
	one := lex.Score("Machine tools explained")
	none := lex.Score("Cooking recipes for dinner")

	assert.InDelta(t, 1.0, both, 1e-9)
	assert.InDelta(t, 0.65, one, 1e-9)
	assert.Zero(t, none)
	assert.Greater(t, both, one, "覆盖更多查询词的文本得分更高")
}

func TestLexicalScorer_WholeWords(t *testing.T) {
	lex := NewLexicalScorer(&RelevanceQuery{Topic: "learning"})
	assert.Zero(t, lex.Score("machinelearning is one token"))
	assert.Positive(t, lex.Score("LEARNING, in capitals"))
}

func TestLexicalScorer_Empty(t *testing.T) {
	tests := []struct {
		name  string
		query *RelevanceQuery
		empty bool
	}{
		{"短词被忽略", &RelevanceQuery{Topic: "AI ML"}, true},
		{"主题", &RelevanceQuery{Topic: "neural networks"}, false},
		{"仅说明", &RelevanceQuery{Instructions: "focus on definitions"}, false},
		{"仅知识点", &RelevanceQuery{Subjects: []string{"AI", "photosynthesis"}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lex := NewLexicalScorer(tt.query)
			assert.Equal(t, tt.empty, lex.Empty())
			if tt.empty {
				assert.Zero(t, lex.Score("AI ML everywhere"))
			}
		})
	}
}

func TestLexicalScorer_Subjects(t *testing.T) {
	lex := NewLexicalScorer(&RelevanceQuery{
		Topic:    "history",
		Subjects: []string{"roman empire", "photosynthesis"},
	})

	// 主题未命中时只剩知识点的 0.3 权重
	score := lex.Score("The roman empire")
	assert.InDelta(t, 0.3, score, 1e-9)

	assert.Zero(t, lex.Score("nothing relevant here"))
}

func TestCombineScores(t *testing.T) {
	tests := []struct {
		name        string
		topic       float64
		subject     float64
		hasTopic    bool
		hasSubjects bool
		want        float64
	}{
		{"主题与知识点加权", 0.5, 1.0, true, true, 0.65},
		{"仅主题", 0.5, 1.0, true, false, 0.5},
		{"仅知识点", 0.5, 0.8, false, true, 0.8},
		{"超出范围被截断", 1.5, 1.5, true, false, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, combineScores(tt.topic, tt.subject, tt.hasTopic, tt.hasSubjects), 1e-9)
		})
	}
}
