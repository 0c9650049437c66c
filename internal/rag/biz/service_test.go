package biz

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/quizmind/internal/model"
	"github.com/kart-io/quizmind/internal/pkg/rag/chunker"
	"github.com/kart-io/quizmind/internal/rag/metrics"
	"github.com/kart-io/quizmind/internal/rag/store"
	"github.com/kart-io/quizmind/pkg/errors"
	"github.com/kart-io/quizmind/pkg/id"
)

func newTestService(t *testing.T) (*Service, store.MetadataStore) {
	t.Helper()
	meta := newTestMeta(t)
	svc := NewService(ServiceDeps{
		Embeddings: newTestEmbeddings(&keywordProvider{}),
		Chunks:     store.NewMemoryChunkStore(),
		Meta:       meta,
		Extractor:  &MultiExtractor{},
		Labeler:    &stubLabeler{},
		Metrics:    metrics.New(),
	}, ServiceConfig{
		Indexer: IndexerConfig{Chunker: chunker.Config{ChunkSize: 200}},
	})
	require.NoError(t, svc.Prepare(context.Background()))
	return svc, meta
}

func waitReady(t *testing.T, svc *Service, documentID string) *model.Document {
	t.Helper()
	var doc *model.Document
	require.Eventually(t, func() bool {
		var err error
		doc, err = svc.GetDocument(context.Background(), documentID)
		return err == nil && doc.Status != model.DocumentStatusProcessing
	}, 5*time.Second, 10*time.Millisecond)
	return doc
}

func TestService_CreateDocument(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	t.Run("参数校验", func(t *testing.T) {
		_, err := svc.CreateDocument(ctx, &CreateDocumentRequest{Filename: "a.txt", MimeType: "text/plain"})
		assert.ErrorIs(t, err, errors.ErrRAGInvalidRequest)
	})

	t.Run("不带内容时保持 pending", func(t *testing.T) {
		doc, err := svc.CreateDocument(ctx, &CreateDocumentRequest{WorkspaceID: "w1", Filename: "a.pdf", MimeType: "application/pdf"})
		require.NoError(t, err)
		assert.True(t, id.IsValidULID(doc.ID))
		assert.Equal(t, model.DocumentStatusPending, doc.Status)
	})

	t.Run("带内容时调度摄取", func(t *testing.T) {
		doc, err := svc.CreateDocument(ctx, &CreateDocumentRequest{
			ID:          "doc-1",
			WorkspaceID: "w1",
			Filename:    "notes.txt",
			MimeType:    "text/plain",
			Content:     []byte(testDocument),
		})
		require.NoError(t, err)
		assert.Equal(t, "doc-1", doc.ID)
		assert.Equal(t, model.DocumentStatusProcessing, doc.Status)

		assert.Equal(t, model.DocumentStatusReady, waitReady(t, svc, "doc-1").Status)
	})
}

func TestService_Ingest(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateDocument(ctx, &CreateDocumentRequest{ID: "d1", WorkspaceID: "w1", Filename: "a.pdf", MimeType: "application/pdf"})
	require.NoError(t, err)

	// 未配置文件源时摄取失败
	require.NoError(t, svc.Ingest(ctx, "d1", "token"))
	doc := waitReady(t, svc, "d1")
	assert.Equal(t, model.DocumentStatusFailed, doc.Status)

	assert.ErrorIs(t, svc.Ingest(ctx, "missing", ""), errors.ErrRAGDocumentNotFound)
}

func TestService_SubjectsAndRetrieve(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateDocument(ctx, &CreateDocumentRequest{
		ID: "d1", WorkspaceID: "w1", Filename: "notes.txt", MimeType: "text/plain", Content: []byte(testDocument),
	})
	require.NoError(t, err)
	waitReady(t, svc, "d1")

	subjects, err := svc.ListSubjects(ctx, "d1")
	require.NoError(t, err)
	require.NotEmpty(t, subjects)

	_, err = svc.ListSubjects(ctx, "missing")
	assert.ErrorIs(t, err, errors.ErrRAGDocumentNotFound)

	t.Run("按知识点 ID 检索", func(t *testing.T) {
		result, err := svc.Retrieve(ctx, &RetrieveRequest{
			SubjectIDs:  []string{subjects[0].ID},
			DocumentIDs: []string{"d1"},
			Count:       2,
		})
		require.NoError(t, err)
		assert.NotEmpty(t, result.Chunks)
		assert.LessOrEqual(t, len(result.Chunks), 4)
		assert.NotEmpty(t, result.Context)
	})

	t.Run("知识点 ID 均不存在", func(t *testing.T) {
		_, err := svc.Retrieve(ctx, &RetrieveRequest{
			SubjectIDs:  []string{"unknown"},
			DocumentIDs: []string{"d1"},
			Count:       2,
		})
		assert.ErrorIs(t, err, errors.ErrRAGInvalidScope)
	})

	t.Run("其他工作区的知识点不参与解析", func(t *testing.T) {
		_, err := svc.Retrieve(ctx, &RetrieveRequest{
			SubjectIDs:  []string{subjects[0].ID},
			DocumentIDs: []string{"d1"},
			WorkspaceID: "w2",
			Count:       2,
		})
		assert.ErrorIs(t, err, errors.ErrRAGInvalidScope)
	})

	t.Run("按主题检索", func(t *testing.T) {
		result, err := svc.Retrieve(ctx, &RetrieveRequest{
			Topic:       "roman senate",
			DocumentIDs: []string{"d1"},
			WorkspaceID: "w1",
			Count:       1,
		})
		require.NoError(t, err)
		assert.Contains(t, result.Chunks[0].Chunk.Content, "roman senate")
	})
}

// countingMeta 统计 GetSubjects 调用次数。
type countingMeta struct {
	store.MetadataStore
	subjectReads atomic.Int32
}

func (m *countingMeta) GetSubjects(ctx context.Context, ids []string) ([]*model.Subject, error) {
	m.subjectReads.Add(1)
	return m.MetadataStore.GetSubjects(ctx, ids)
}

func TestService_RetrieveValidatesBeforeStore(t *testing.T) {
	svc, meta := newTestService(t)
	counting := &countingMeta{MetadataStore: meta}
	svc.deps.Meta = counting

	tests := []struct {
		name string
		req  *RetrieveRequest
	}{
		{"缺少文档范围", &RetrieveRequest{SubjectIDs: []string{"s1"}, Count: 2}},
		{"数量非法", &RetrieveRequest{SubjectIDs: []string{"s1"}, DocumentIDs: []string{"d1"}, Count: 0}},
		{"文档 ID 非法", &RetrieveRequest{SubjectIDs: []string{"s1"}, DocumentIDs: []string{"bad id!"}, Count: 2}},
		{"主题与知识点均为空", &RetrieveRequest{DocumentIDs: []string{"d1"}, Count: 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Retrieve(context.Background(), tt.req)
			assert.ErrorIs(t, err, errors.ErrRAGInvalidRequest)
		})
	}
	assert.Zero(t, counting.subjectReads.Load(), "校验失败时不应访问存储")
}

func TestService_Stats(t *testing.T) {
	svc, _ := newTestService(t)

	stats := svc.Stats(context.Background())
	for _, key := range []string{"retrieval", "indexing", "embedding", "chunks"} {
		assert.Contains(t, stats, key)
	}
	assert.Equal(t, int64(0), stats["chunks"])
}
