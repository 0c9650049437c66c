package biz

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/quizmind/pkg/errors"
)

func TestRelevanceQuery_Validate(t *testing.T) {
	manyIDs := make([]string, MaxRequestCount+1)
	for i := range manyIDs {
		manyIDs[i] = strings.Repeat("d", i+1)
	}

	tests := []struct {
		name    string
		query   *RelevanceQuery
		wantErr bool
	}{
		{"合法请求", &RelevanceQuery{Topic: "photosynthesis", DocumentIDs: []string{"d1"}, Count: 5}, false},
		{"仅知识点", &RelevanceQuery{Subjects: []string{"roman empire"}, DocumentIDs: []string{"d1"}, Count: 1}, false},
		{"空请求", nil, true},
		{"缺少文档", &RelevanceQuery{Topic: "x", Count: 1}, true},
		{"主题与知识点均为空", &RelevanceQuery{Topic: "  ", Subjects: []string{" "}, DocumentIDs: []string{"d1"}, Count: 1}, true},
		{"题目数量为 0", &RelevanceQuery{Topic: "x", DocumentIDs: []string{"d1"}}, true},
		{"题目数量超过上限", &RelevanceQuery{Topic: "x", DocumentIDs: []string{"d1"}, Count: MaxRequestCount + 1}, true},
		{"文档数量超过上限", &RelevanceQuery{Topic: "x", DocumentIDs: manyIDs, Count: 1}, true},
		{"主题过长", &RelevanceQuery{Topic: strings.Repeat("a", 501), DocumentIDs: []string{"d1"}, Count: 1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.query.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, errors.ErrRAGInvalidRequest)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestRelevanceQuery_Normalize(t *testing.T) {
	q := &RelevanceQuery{
		Topic:       "  cells ",
		Subjects:    []string{" mitosis", "", "  "},
		DocumentIDs: []string{"d1", " d2 ", "d1", "d2"},
		Count:       3,
	}
	require.NoError(t, q.Validate())

	assert.Equal(t, "cells", q.Topic)
	assert.Equal(t, []string{"mitosis"}, q.Subjects)
	assert.Equal(t, []string{"d1", "d2"}, q.DocumentIDs)
}

func TestRelevanceQuery_ResultCap(t *testing.T) {
	for count, want := range map[int]int{1: 2, 5: 10, 20: 40, 100: 40} {
		assert.Equal(t, want, (&RelevanceQuery{Count: count}).ResultCap(), count)
	}
}
