package store

import (
	"context"
	"fmt"

	"github.com/kart-io/logger"
	"github.com/milvus-io/milvus/client/v2/column"
	"github.com/milvus-io/milvus/client/v2/entity"

	"github.com/kart-io/quizmind/internal/model"
	"github.com/kart-io/quizmind/pkg/component/milvus"
	"github.com/kart-io/quizmind/pkg/utils/json"
)

const (
	fieldID          = "id"
	fieldDocumentID  = "document_id"
	fieldWorkspaceID = "workspace_id"
	fieldChunkIndex  = "chunk_index"
	fieldPageNumber  = "page_number"
	fieldStartChar   = "start_char"
	fieldEndChar     = "end_char"
	fieldContent     = "content"
	fieldMetadata    = "metadata"
)

var chunkOutputFields = []string{
	fieldID, fieldDocumentID, fieldWorkspaceID, fieldChunkIndex, fieldPageNumber,
	fieldStartChar, fieldEndChar, fieldContent, fieldMetadata, milvus.VectorField,
}

// MilvusChunkStore 实现基于 Milvus 的文档块存储。
type MilvusChunkStore struct {
	client     *milvus.Client
	collection string
}

// NewMilvusChunkStore 创建 Milvus 存储实例。
func NewMilvusChunkStore(client *milvus.Client, collection string) *MilvusChunkStore {
	return &MilvusChunkStore{client: client, collection: collection}
}

// EnsureCollection 创建或校验集合。
func (s *MilvusChunkStore) EnsureCollection(ctx context.Context, dimension int) error {
	return s.client.EnsureCollection(ctx, &milvus.CollectionSchema{
		Name:        s.collection,
		Description: "quizmind document chunks",
		PrimaryKey:  fieldID,
		PKMaxLen:    64,
		Dimension:   dimension,
		Metric:      entity.COSINE,
		MetaFields: []milvus.MetaField{
			{Name: fieldDocumentID, DataType: entity.FieldTypeVarChar, MaxLen: 64},
			{Name: fieldWorkspaceID, DataType: entity.FieldTypeVarChar, MaxLen: 64},
			{Name: fieldChunkIndex, DataType: entity.FieldTypeInt64},
			{Name: fieldPageNumber, DataType: entity.FieldTypeInt64},
			{Name: fieldStartChar, DataType: entity.FieldTypeInt64},
			{Name: fieldEndChar, DataType: entity.FieldTypeInt64},
			{Name: fieldContent, DataType: entity.FieldTypeVarChar, MaxLen: 65535},
			{Name: fieldMetadata, DataType: entity.FieldTypeJSON},
		},
	})
}

// Insert 批量写入文档块，所有文档块必须带向量。
func (s *MilvusChunkStore) Insert(ctx context.Context, chunks []*model.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	n := len(chunks)
	ids := make([]string, n)
	docIDs := make([]string, n)
	workspaceIDs := make([]string, n)
	indexes := make([]int64, n)
	pages := make([]int64, n)
	starts := make([]int64, n)
	ends := make([]int64, n)
	contents := make([]string, n)
	metadata := make([][]byte, n)
	vectors := make([][]float32, n)

	dim := len(chunks[0].Embedding)
	for i, c := range chunks {
		if len(c.Embedding) != dim || dim == 0 {
			return fmt.Errorf("chunk %s has embedding dimension %d, expected %d", c.ID, len(c.Embedding), dim)
		}
		meta, err := json.Marshal(c.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode chunk metadata: %w", err)
		}

		ids[i] = c.ID
		docIDs[i] = c.DocumentID
		workspaceIDs[i] = c.WorkspaceID
		indexes[i] = int64(c.Index)
		pages[i] = int64(c.PageNumber)
		starts[i] = int64(c.StartChar)
		ends[i] = int64(c.EndChar)
		contents[i] = c.Content
		metadata[i] = meta
		vectors[i] = c.Embedding
	}

	return s.client.Insert(ctx, s.collection,
		column.NewColumnVarChar(fieldID, ids),
		column.NewColumnVarChar(fieldDocumentID, docIDs),
		column.NewColumnVarChar(fieldWorkspaceID, workspaceIDs),
		column.NewColumnInt64(fieldChunkIndex, indexes),
		column.NewColumnInt64(fieldPageNumber, pages),
		column.NewColumnInt64(fieldStartChar, starts),
		column.NewColumnInt64(fieldEndChar, ends),
		column.NewColumnVarChar(fieldContent, contents),
		column.NewColumnJSONBytes(fieldMetadata, metadata),
		column.NewColumnFloatVector(milvus.VectorField, dim, vectors),
	)
}

// Search 执行带过滤的向量检索。
func (s *MilvusChunkStore) Search(ctx context.Context, vector []float32, filter *Filter, topK int) ([]*SearchHit, error) {
	rows, err := s.client.Search(ctx, s.collection, vector, topK, filter.Expr(), chunkOutputFields)
	if err != nil {
		return nil, err
	}

	hits := make([]*SearchHit, 0, len(rows))
	for _, row := range rows {
		hits = append(hits, &SearchHit{Chunk: rowToChunk(row), Score: row.Score})
	}
	return hits, nil
}

// ListByDocuments 查询范围内的全部文档块。
func (s *MilvusChunkStore) ListByDocuments(ctx context.Context, filter *Filter) ([]*model.Chunk, error) {
	expr := filter.Expr()
	if expr == "" {
		return nil, fmt.Errorf("listing chunks requires a document or workspace filter")
	}

	rows, err := s.client.Query(ctx, s.collection, expr, chunkOutputFields)
	if err != nil {
		return nil, err
	}

	chunks := make([]*model.Chunk, 0, len(rows))
	for _, row := range rows {
		chunks = append(chunks, rowToChunk(row))
	}
	sortChunks(chunks)
	return chunks, nil
}

// DeleteByDocument 删除文档的全部文档块。
func (s *MilvusChunkStore) DeleteByDocument(ctx context.Context, documentID string) error {
	filter := &Filter{DocumentIDs: []string{documentID}}
	n, err := s.client.Delete(ctx, s.collection, filter.Expr())
	if err != nil {
		return err
	}
	logger.Debugw("deleted document chunks", "document_id", documentID, "count", n)
	return nil
}

// Count 返回集合行数。
func (s *MilvusChunkStore) Count(ctx context.Context) (int64, error) {
	return s.client.GetCollectionStats(ctx, s.collection)
}

func rowToChunk(row milvus.Row) *model.Chunk {
	c := &model.Chunk{
		ID:          stringField(row, fieldID),
		DocumentID:  stringField(row, fieldDocumentID),
		WorkspaceID: stringField(row, fieldWorkspaceID),
		Index:       intField(row, fieldChunkIndex),
		PageNumber:  intField(row, fieldPageNumber),
		StartChar:   intField(row, fieldStartChar),
		EndChar:     intField(row, fieldEndChar),
		Content:     stringField(row, fieldContent),
	}
	if v, ok := row.Fields[milvus.VectorField].([]float32); ok {
		c.Embedding = v
	}
	if raw, ok := row.Fields[fieldMetadata].([]byte); ok && len(raw) > 0 {
		if err := json.Unmarshal(raw, &c.Metadata); err != nil {
			logger.Warnw("failed to decode chunk metadata", "chunk_id", c.ID, "error", err)
		}
	}
	return c
}

func stringField(row milvus.Row, name string) string {
	v, _ := row.Fields[name].(string)
	return v
}

func intField(row milvus.Row, name string) int {
	v, _ := row.Fields[name].(int64)
	return int(v)
}

var _ ChunkStore = (*MilvusChunkStore)(nil)
