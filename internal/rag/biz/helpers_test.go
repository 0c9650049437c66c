package biz

import (
	"context"
	stderrors "errors"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/kart-io/quizmind/internal/model"
	"github.com/kart-io/quizmind/internal/pkg/rag/textutil"
	"github.com/kart-io/quizmind/internal/rag/store"
	"github.com/kart-io/quizmind/pkg/llm"
)

// testVocab 每个词对应向量的一个维度，最后一维为常量偏置。
var testVocab = []string{
	"photosynthesis", "chlorophyll", "plant", "light",
	"roman", "empire", "legion", "senate",
	"machine", "learning", "neural", "network",
}

func keywordVector(text string) []float32 {
	v := make([]float32, len(testVocab)+1)
	v[len(testVocab)] = 0.05
	for _, w := range textutil.Words(text) {
		for i, term := range testVocab {
			if w == term {
				v[i]++
			}
		}
	}
	return v
}

// keywordProvider 以词频生成向量的 Embedding 供应商。
type keywordProvider struct {
	down  atomic.Bool
	calls atomic.Int32
}

func (p *keywordProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	p.calls.Add(1)
	if p.down.Load() {
		return nil, stderrors.New("provider unavailable")
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = keywordVector(text)
	}
	return out, nil
}

func (p *keywordProvider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	vectors, err := p.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (p *keywordProvider) Dimension() int     { return len(testVocab) + 1 }
func (p *keywordProvider) MaxInputChars() int { return 8000 }
func (p *keywordProvider) Name() string       { return "keyword" }

func newTestEmbeddings(p *keywordProvider) *llm.EmbeddingManager {
	return llm.NewEmbeddingManager(p, llm.ManagerOptions{CacheSize: 256})
}

// stubLabeler 返回 "subject N" 形式的名称。
type stubLabeler struct {
	err   error
	calls atomic.Int32
}

func (l *stubLabeler) Label(_ context.Context, inputs []LabelInput) ([]Label, error) {
	l.calls.Add(1)
	if l.err != nil {
		return nil, l.err
	}
	labels := make([]Label, len(inputs))
	for i := range inputs {
		labels[i] = Label{Name: fmt.Sprintf("subject %d", i+1), Importance: ImportanceHigh}
	}
	return labels, nil
}

func newTestMeta(t *testing.T) store.MetadataStore {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "meta.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, store.AutoMigrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return store.NewMetadataStore(db)
}

func createDoc(t *testing.T, meta store.MetadataStore, id, workspace, content string) *model.Document {
	t.Helper()
	doc := &model.Document{
		ID:          id,
		WorkspaceID: workspace,
		Filename:    id + ".txt",
		MimeType:    "text/plain",
		Content:     content,
		Status:      model.DocumentStatusPending,
	}
	require.NoError(t, meta.CreateDocument(context.Background(), doc))
	return doc
}

func newChunk(docID, workspace string, index int, content string) *model.Chunk {
	return &model.Chunk{
		ID:          fmt.Sprintf("%s-%d", docID, index),
		DocumentID:  docID,
		WorkspaceID: workspace,
		Index:       index,
		Content:     content,
		PageNumber:  1,
		Embedding:   keywordVector(content),
	}
}

func vecChunk(index int, v ...float32) *model.Chunk {
	return &model.Chunk{
		ID:         fmt.Sprintf("c-%d", index),
		DocumentID: "doc",
		Index:      index,
		Content:    fmt.Sprintf("chunk %d", index),
		Embedding:  v,
	}
}

const (
	biologySentence = "Photosynthesis lets the plant turn light into sugar using chlorophyll. "
	historySentence = "The roman senate sent a legion to defend the empire frontier. "
)
