package biz

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/quizmind/internal/model"
	"github.com/kart-io/quizmind/internal/pkg/rag/chunker"
	"github.com/kart-io/quizmind/internal/pkg/rag/textutil"
	"github.com/kart-io/quizmind/internal/rag/metrics"
	"github.com/kart-io/quizmind/internal/rag/store"
	"github.com/kart-io/quizmind/pkg/errors"
	"github.com/kart-io/quizmind/pkg/id"
	infralog "github.com/kart-io/quizmind/pkg/infra/logger"
	"github.com/kart-io/quizmind/pkg/infra/pool"
	"github.com/kart-io/quizmind/pkg/infra/tracing"
)

const (
	// DefaultExtractTimeout 文本提取超时。
	DefaultExtractTimeout = 120 * time.Second
	// DefaultIngestTimeout 单次摄取的总超时。
	DefaultIngestTimeout = 15 * time.Minute
	// statusTimeout 失败状态回写的超时。
	statusTimeout = 10 * time.Second
)

// IndexerConfig 索引器配置。
type IndexerConfig struct {
	Chunker        chunker.Config
	Cluster        ClusterConfig
	ExtractTimeout time.Duration
	IngestTimeout  time.Duration
}

// IngestRequest 摄取请求。Data 为空时通过 FileSource 获取文件。
type IngestRequest struct {
	DocumentID string
	AuthToken  string
	Data       []byte
}

// IndexerDeps 索引器依赖。Labeler 为 nil 时直接使用降级名称。
type IndexerDeps struct {
	Embedder  Embedder
	Chunks    store.ChunkStore
	Meta      store.MetadataStore
	Extractor Extractor
	Files     FileSource
	Labeler   Labeler
	Pools     *pool.Manager
	Metrics   *metrics.RAGMetrics
}

// Indexer 负责文档摄取：提取、分块、嵌入、持久化、聚类、标注。
type Indexer struct {
	IndexerDeps
	chunker  *chunker.Chunker
	clusters *ClusterEngine
	config   IndexerConfig
}

// NewIndexer 创建索引器实例。
func NewIndexer(deps IndexerDeps, config IndexerConfig) *Indexer {
	if config.ExtractTimeout <= 0 {
		config.ExtractTimeout = DefaultExtractTimeout
	}
	if config.IngestTimeout <= 0 {
		config.IngestTimeout = DefaultIngestTimeout
	}
	return &Indexer{
		IndexerDeps: deps,
		chunker:     chunker.New(config.Chunker),
		clusters:    NewClusterEngine(config.Cluster),
		config:      config,
	}
}

// Schedule 将文档置为 processing 并提交到摄取池后立即返回。
// 文档正在处理时返回 ErrRAGIngestInProgress。
func (i *Indexer) Schedule(ctx context.Context, req *IngestRequest) error {
	doc, err := i.begin(ctx, req.DocumentID)
	if err != nil {
		return err
	}

	runCtx := context.WithoutCancel(ctx)
	task := func() { _ = i.run(runCtx, doc, req) }

	if i.Pools != nil {
		err = i.Pools.Submit(pool.IngestPool, task)
		if err == nil {
			return nil
		}
		logger.Warnw("ingest pool unavailable, starting goroutine",
			"document_id", doc.ID,
			"error", err.Error(),
		)
	}
	go task()
	return nil
}

// Ingest 同步执行一次完整摄取。
func (i *Indexer) Ingest(ctx context.Context, req *IngestRequest) error {
	doc, err := i.begin(ctx, req.DocumentID)
	if err != nil {
		return err
	}
	return i.run(ctx, doc, req)
}

func (i *Indexer) begin(ctx context.Context, documentID string) (*model.Document, error) {
	if documentID == "" {
		return nil, errors.ErrRAGInvalidRequest.WithMessage("document id is required")
	}
	ok, err := i.Meta.MarkProcessing(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.ErrRAGIngestInProgress
	}

	doc, err := i.Meta.GetDocument(ctx, documentID)
	if err != nil {
		// 已置为 processing，读取失败时改为 failed
		i.fail(infralog.WithDocument(ctx, documentID, ""), documentID, err)
		return nil, err
	}
	return doc, nil
}

// run 顺序执行各步骤，致命错误或 panic 时将文档标记为 failed。
func (i *Indexer) run(ctx context.Context, doc *model.Document, req *IngestRequest) (err error) {
	ctx, cancel := context.WithTimeout(ctx, i.config.IngestTimeout)
	defer cancel()
	ctx = infralog.WithDocument(ctx, doc.ID, doc.WorkspaceID)
	ctx, span := tracing.StartSpan(ctx, tracerName, "Indexer.Ingest")
	defer span.End()
	span.SetAttributes(tracing.String(tracing.DocumentID, doc.ID), tracing.String(tracing.WorkspaceID, doc.WorkspaceID))

	start := time.Now()
	i.Metrics.IngestStarted()
	var chunkCount int
	defer func() {
		if r := recover(); r != nil {
			infralog.GetLogger(ctx).Errorw("ingestion panicked", "panic", r)
			err = errors.ErrRAGIndexFailed.WithMessagef("panic: %v", r)
		}
		i.Metrics.RecordIngest(time.Since(start), chunkCount, err)
		if err != nil {
			tracing.RecordError(ctx, err)
			i.fail(ctx, doc.ID, err)
		}
	}()

	log := infralog.GetLogger(ctx)
	log.Infow("ingestion started", "mime_type", doc.MimeType)

	text, err := i.extract(ctx, doc, req)
	if err != nil {
		return err
	}

	result := i.chunker.Split(text)
	if len(result.Chunks) == 0 {
		return errors.ErrRAGExtractionFailed.WithMessage("document has no extractable text")
	}
	if result.Truncated {
		log.Warnw("chunk limit reached, document truncated",
			"max_chunks", i.chunker.Config().MaxChunks,
		)
	}

	doc.Content = result.Text
	doc.CharLength = result.CharLength
	doc.Hash = textutil.HashString(result.Text)
	if doc.Language == "" {
		doc.Language = textutil.DetectLanguage(result.Text)
	}

	chunks := newChunks(doc, result)
	embedded := i.embed(ctx, chunks)

	if err = i.Chunks.DeleteByDocument(ctx, doc.ID); err != nil {
		return err
	}
	if len(embedded) > 0 {
		if err = i.Chunks.Insert(ctx, embedded); err != nil {
			return err
		}
	}
	chunkCount = len(embedded)
	doc.ChunkCount = chunkCount

	subjects := i.subjects(ctx, doc, embedded)
	if err = i.Meta.ReplaceSubjects(ctx, doc.ID, subjects); err != nil {
		return err
	}
	if err = i.Meta.SaveContent(ctx, doc); err != nil {
		return err
	}

	message := ""
	if len(embedded) < len(chunks) {
		message = fmt.Sprintf("%d of %d chunks embedded", len(embedded), len(chunks))
	}
	if err = i.Meta.UpdateStatus(ctx, doc.ID, model.DocumentStatusReady, message); err != nil {
		return err
	}

	log.Infow("ingestion finished",
		"chunks", len(chunks),
		"embedded", len(embedded),
		"subjects", len(subjects),
		"language", doc.Language,
		"duration", time.Since(start).String(),
	)
	return nil
}

func (i *Indexer) extract(ctx context.Context, doc *model.Document, req *IngestRequest) (string, error) {
	data := req.Data
	if len(data) == 0 {
		if i.Files == nil {
			return "", errors.ErrRAGExtractionFailed.WithMessage("no document content and no file source configured")
		}
		var err error
		if data, err = i.Files.Fetch(ctx, doc.ID, req.AuthToken); err != nil {
			return "", err
		}
	}

	ctx, cancel := context.WithTimeout(ctx, i.config.ExtractTimeout)
	defer cancel()

	text, err := i.Extractor.Extract(ctx, &ExtractRequest{
		Data:           data,
		MimeType:       doc.MimeType,
		Filename:       doc.Filename,
		Language:       doc.Language,
		AddPageMarkers: true,
		AuthToken:      req.AuthToken,
	})
	if err != nil {
		if !stderrors.Is(err, errors.ErrRAGExtractionFailed) {
			err = errors.ErrRAGExtractionFailed.WithCause(err)
		}
		return "", err
	}
	return text, nil
}

// embed 批量嵌入，返回成功嵌入的文档块。供应商失败时记录日志并继续。
func (i *Indexer) embed(ctx context.Context, chunks []*model.Chunk) []*model.Chunk {
	texts := make([]string, len(chunks))
	for k, c := range chunks {
		texts[k] = c.Content
	}

	vectors, err := i.Embedder.EmbedBatch(ctx, texts)
	if err != nil {
		infralog.GetLogger(ctx).Warnw("embedding partially failed",
			"chunks", len(chunks),
			"error", err.Error(),
		)
	}

	embedded := make([]*model.Chunk, 0, len(chunks))
	for k, c := range chunks {
		if k < len(vectors) && len(vectors[k]) > 0 {
			c.Embedding = vectors[k]
			embedded = append(embedded, c)
		}
	}
	return embedded
}

// subjects 聚类、选择并标注，标注失败时使用降级名称。
func (i *Indexer) subjects(ctx context.Context, doc *model.Document, chunks []*model.Chunk) []*model.Subject {
	if len(chunks) == 0 {
		return nil
	}

	clusters := i.clusters.Cluster(chunks)
	if len(clusters) > 0 && clusters[0].Fallback {
		i.Metrics.RecordClusterFallback()
	}
	selected := i.clusters.SelectDiverse(clusters)

	inputs := make([]LabelInput, len(selected))
	for k, c := range selected {
		inputs[k] = NewLabelInput(c)
	}
	labels := i.label(ctx, inputs)

	subjects := make([]*model.Subject, len(selected))
	for k, c := range selected {
		chunkIDs := make([]string, len(c.Members))
		for m, member := range c.Members {
			chunkIDs[m] = member.ID
		}
		subjects[k] = &model.Subject{
			ID:          id.NewULID(),
			DocumentID:  doc.ID,
			WorkspaceID: doc.WorkspaceID,
			Name:        textutil.TruncateString(labels[k].Name, 255),
			Importance:  labels[k].Importance,
			Rank:        k,
			ChunkIDs:    chunkIDs,
		}
	}
	return subjects
}

func (i *Indexer) label(ctx context.Context, inputs []LabelInput) []Label {
	if i.Labeler != nil {
		labels, err := i.Labeler.Label(ctx, inputs)
		if err == nil && len(labels) == len(inputs) {
			return labels
		}
		infralog.GetLogger(ctx).Warnw("labeling failed, using fallback names",
			"clusters", len(inputs),
			"error", fmt.Sprint(err),
		)
	}

	i.Metrics.RecordLabelFallback()
	labels := make([]Label, len(inputs))
	for k, in := range inputs {
		labels[k] = NewFallbackLabel(in, k)
	}
	return labels
}

func (i *Indexer) fail(ctx context.Context, documentID string, cause error) {
	log := infralog.GetLogger(ctx)
	log.Errorw("ingestion failed", "error", cause.Error())

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), statusTimeout)
	defer cancel()
	if err := i.Meta.UpdateStatus(ctx, documentID, model.DocumentStatusFailed, textutil.TruncateString(cause.Error(), 1000)); err != nil {
		log.Errorw("failed to record ingestion failure", "error", err.Error())
	}
}

// newChunks 将分块结果转换为文档块。
func newChunks(doc *model.Document, result *chunker.Result) []*model.Chunk {
	chunks := make([]*model.Chunk, len(result.Chunks))
	for k, p := range result.Chunks {
		chunks[k] = &model.Chunk{
			ID:          id.NewULID(),
			DocumentID:  doc.ID,
			WorkspaceID: doc.WorkspaceID,
			Index:       k,
			Content:     p.Text,
			StartChar:   p.StartChar,
			EndChar:     p.EndChar,
			PageNumber:  p.PageNumber,
			Metadata: model.ChunkMetadata{
				StartChar:   p.StartChar,
				EndChar:     p.EndChar,
				PageNumber:  p.PageNumber,
				ChunkIndex:  k,
				TotalChunks: len(result.Chunks),
			},
		}
	}
	return chunks
}
