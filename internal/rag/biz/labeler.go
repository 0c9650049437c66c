package biz

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/quizmind/internal/pkg/rag/textutil"
	"github.com/kart-io/quizmind/pkg/errors"
	"github.com/kart-io/quizmind/pkg/llm"
	"github.com/kart-io/quizmind/pkg/llm/resilience"
	"github.com/kart-io/quizmind/pkg/utils/json"
)

// 知识点重要度。
const (
	ImportanceHigh   = "high"
	ImportanceMedium = "medium"
	ImportanceLow    = "low"
)

const (
	// representativeMembers 每个簇用于标注的成员数。
	representativeMembers = 3
	// representativeChars 每个簇代表文本的字符上限。
	representativeChars = 600
	// fallbackNameWords 降级名称取用的单词数。
	fallbackNameWords = 6
)

// LabelInput 一个待标注簇的代表文本。
type LabelInput struct {
	Text       string
	Importance int
}

// Label 标注结果。
type Label struct {
	Name       string `json:"name"`
	Importance string `json:"importance"`
}

// Labeler 为簇生成知识点名称。
type Labeler interface {
	Label(ctx context.Context, inputs []LabelInput) ([]Label, error)
}

// NewLabelInput 由簇的前几个成员拼接代表文本。
func NewLabelInput(c *Cluster) LabelInput {
	var parts []string
	for i, m := range c.Members {
		if i >= representativeMembers {
			break
		}
		parts = append(parts, strings.TrimSpace(m.Content))
	}
	return LabelInput{
		Text:       textutil.TruncateString(strings.Join(parts, "\n"), representativeChars),
		Importance: c.Importance,
	}
}

// NewFallbackLabel 使用代表文本的前几个单词作为名称，重要度按排名给出。
func NewFallbackLabel(input LabelInput, rank int) Label {
	name := textutil.LeadingWords(input.Text, fallbackNameWords)
	if textutil.IsWindowScript(name) {
		name = textutil.TruncateString(strings.Join(strings.Fields(input.Text), ""), 16)
	}
	if name == "" {
		name = fmt.Sprintf("Topic %d", rank+1)
	}
	return Label{Name: name, Importance: importanceForRank(rank)}
}

func importanceForRank(rank int) string {
	switch {
	case rank < 3:
		return ImportanceHigh
	case rank < 6:
		return ImportanceMedium
	default:
		return ImportanceLow
	}
}

const labelSystemPrompt = `You name study topics. For every numbered excerpt return one short topic name (at most 8 words, in the excerpt's language) and an importance of "high", "medium" or "low".
Reply with a JSON array only, one object per excerpt in order: [{"name": "...", "importance": "..."}]`

// LLMLabeler 通过 Chat 模型标注，调用经过熔断器保护。
type LLMLabeler struct {
	chat    llm.ChatProvider
	breaker *resilience.Breaker
	timeout time.Duration
}

// NewLLMLabeler 创建标注器。breaker 为 nil 时使用默认熔断配置。
func NewLLMLabeler(chat llm.ChatProvider, breaker *resilience.Breaker, timeout time.Duration) *LLMLabeler {
	if breaker == nil {
		breaker = resilience.NewBreaker(resilience.DefaultBreakerConfig("labeler"))
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &LLMLabeler{chat: chat, breaker: breaker, timeout: timeout}
}

// Label 一次调用标注全部簇，返回数量与输入不一致视为失败。
func (l *LLMLabeler) Label(ctx context.Context, inputs []LabelInput) ([]Label, error) {
	if len(inputs) == 0 {
		return nil, nil
	}

	var prompt strings.Builder
	for i, in := range inputs {
		fmt.Fprintf(&prompt, "%d. %s\n\n", i+1, in.Text)
	}

	var reply string
	err := l.breaker.Do(ctx, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, l.timeout)
		defer cancel()

		var err error
		reply, err = l.chat.Generate(callCtx, prompt.String(), labelSystemPrompt)
		return err
	})
	if err != nil {
		return nil, errors.ErrRAGProviderFailure.WithCause(err)
	}

	labels, err := parseLabels(reply)
	if err != nil {
		return nil, errors.ErrRAGProviderFailure.WithCause(err)
	}
	if len(labels) != len(inputs) {
		return nil, errors.ErrRAGProviderFailure.WithMessagef("expected %d labels, got %d", len(inputs), len(labels))
	}

	for i := range labels {
		labels[i].Name = strings.TrimSpace(labels[i].Name)
		if labels[i].Name == "" {
			labels[i] = NewFallbackLabel(inputs[i], i)
		}
		labels[i].Importance = normalizeImportance(labels[i].Importance, i)
	}
	return labels, nil
}

// Stats 返回熔断器统计。
func (l *LLMLabeler) Stats() resilience.Stats {
	return l.breaker.Stats()
}

// parseLabels 从回复中截取第一个 JSON 数组。
func parseLabels(reply string) ([]Label, error) {
	start := strings.Index(reply, "[")
	end := strings.LastIndex(reply, "]")
	if start < 0 || end <= start {
		logger.Debugw("labeler reply has no JSON array", "reply", textutil.TruncateString(reply, 200))
		return nil, fmt.Errorf("reply contains no JSON array")
	}

	var labels []Label
	if err := json.Unmarshal([]byte(reply[start:end+1]), &labels); err != nil {
		return nil, fmt.Errorf("decode labels: %w", err)
	}
	return labels, nil
}

func normalizeImportance(importance string, rank int) string {
	switch strings.ToLower(strings.TrimSpace(importance)) {
	case ImportanceHigh:
		return ImportanceHigh
	case ImportanceMedium:
		return ImportanceMedium
	case ImportanceLow:
		return ImportanceLow
	}
	return importanceForRank(rank)
}

var _ Labeler = (*LLMLabeler)(nil)
