package store

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kart-io/quizmind/internal/model"
	apierrors "github.com/kart-io/quizmind/pkg/errors"
)

type metadata struct {
	db *gorm.DB
}

// NewMetadataStore 创建基于 GORM 的元数据存储。
func NewMetadataStore(db *gorm.DB) MetadataStore {
	return &metadata{db: db}
}

// AutoMigrate 创建或更新元数据表。
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&model.Document{}, &model.Subject{})
}

// CreateDocument creates a new document row.
func (m *metadata) CreateDocument(ctx context.Context, doc *model.Document) error {
	if err := m.db.WithContext(ctx).Create(doc).Error; err != nil {
		return apierrors.ErrRAGStoreFailed.WithCause(err)
	}
	return nil
}

// GetDocument retrieves a document by id.
func (m *metadata) GetDocument(ctx context.Context, id string) (*model.Document, error) {
	var doc model.Document
	if err := m.db.WithContext(ctx).Where("id = ?", id).First(&doc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierrors.ErrRAGDocumentNotFound.WithMessagef("document %s not found", id)
		}
		return nil, apierrors.ErrRAGStoreFailed.WithCause(err)
	}
	return &doc, nil
}

// ListDocuments returns the documents with the given ids in the given order.
// Unknown ids are skipped.
func (m *metadata) ListDocuments(ctx context.Context, ids []string) ([]*model.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var docs []*model.Document
	if err := m.db.WithContext(ctx).Where("id IN ?", ids).Find(&docs).Error; err != nil {
		return nil, apierrors.ErrRAGStoreFailed.WithCause(err)
	}

	byID := make(map[string]*model.Document, len(docs))
	for _, d := range docs {
		byID[d.ID] = d
	}
	ordered := make([]*model.Document, 0, len(docs))
	for _, id := range ids {
		if d, ok := byID[id]; ok {
			ordered = append(ordered, d)
			delete(byID, id)
		}
	}
	return ordered, nil
}

// MarkProcessing moves a document to processing unless it already is.
func (m *metadata) MarkProcessing(ctx context.Context, id string) (bool, error) {
	res := m.db.WithContext(ctx).Model(&model.Document{}).
		Where("id = ? AND status <> ?", id, model.DocumentStatusProcessing).
		Updates(map[string]any{"status": model.DocumentStatusProcessing, "status_message": ""})
	if res.Error != nil {
		return false, apierrors.ErrRAGStoreFailed.WithCause(res.Error)
	}
	if res.RowsAffected > 0 {
		return true, nil
	}

	if _, err := m.GetDocument(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

// UpdateStatus updates status and message.
func (m *metadata) UpdateStatus(ctx context.Context, id, status, message string) error {
	err := m.db.WithContext(ctx).Model(&model.Document{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": status, "status_message": message}).Error
	if err != nil {
		return apierrors.ErrRAGStoreFailed.WithCause(err)
	}
	return nil
}

// SaveContent persists the extracted text and derived fields.
func (m *metadata) SaveContent(ctx context.Context, doc *model.Document) error {
	err := m.db.WithContext(ctx).Model(&model.Document{}).
		Where("id = ?", doc.ID).
		Updates(map[string]any{
			"content":     doc.Content,
			"language":    doc.Language,
			"char_length": doc.CharLength,
			"hash":        doc.Hash,
			"chunk_count": doc.ChunkCount,
		}).Error
	if err != nil {
		return apierrors.ErrRAGStoreFailed.WithCause(err)
	}
	return nil
}

// ReplaceSubjects deletes the document's subjects and inserts the new ones in one transaction.
func (m *metadata) ReplaceSubjects(ctx context.Context, documentID string, subjects []*model.Subject) error {
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("document_id = ?", documentID).Delete(&model.Subject{}).Error; err != nil {
			return err
		}
		if len(subjects) == 0 {
			return nil
		}
		return tx.Create(subjects).Error
	})
	if err != nil {
		return apierrors.ErrRAGStoreFailed.WithCause(err)
	}
	return nil
}

// ListSubjects lists a document's subjects by rank.
func (m *metadata) ListSubjects(ctx context.Context, documentID string) ([]*model.Subject, error) {
	var subjects []*model.Subject
	err := m.db.WithContext(ctx).
		Where("document_id = ?", documentID).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "rank"}}).
		Find(&subjects).Error
	if err != nil {
		return nil, apierrors.ErrRAGStoreFailed.WithCause(err)
	}
	return subjects, nil
}

// GetSubjects returns subjects by id. Unknown ids are skipped.
func (m *metadata) GetSubjects(ctx context.Context, ids []string) ([]*model.Subject, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var subjects []*model.Subject
	if err := m.db.WithContext(ctx).Where("id IN ?", ids).Find(&subjects).Error; err != nil {
		return nil, apierrors.ErrRAGStoreFailed.WithCause(err)
	}
	return subjects, nil
}
