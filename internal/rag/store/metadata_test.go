package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/kart-io/quizmind/internal/model"
	apierrors "github.com/kart-io/quizmind/pkg/errors"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "meta.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func TestMetadataStore_Documents(t *testing.T) {
	ctx := context.Background()
	s := NewMetadataStore(newTestDB(t))

	for _, id := range []string{"d1", "d2", "d3"} {
		require.NoError(t, s.CreateDocument(ctx, &model.Document{
			ID: id, WorkspaceID: "w1", Filename: id + ".pdf", Status: model.DocumentStatusPending,
		}))
	}

	doc, err := s.GetDocument(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, "d1.pdf", doc.Filename)

	_, err = s.GetDocument(ctx, "missing")
	assert.ErrorIs(t, err, apierrors.ErrRAGDocumentNotFound)

	docs, err := s.ListDocuments(ctx, []string{"d3", "missing", "d1"})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "d3", docs[0].ID)
	assert.Equal(t, "d1", docs[1].ID)
}

func TestMetadataStore_MarkProcessing(t *testing.T) {
	ctx := context.Background()
	s := NewMetadataStore(newTestDB(t))
	require.NoError(t, s.CreateDocument(ctx, &model.Document{ID: "d1", WorkspaceID: "w1", Status: model.DocumentStatusFailed}))
	require.NoError(t, s.UpdateStatus(ctx, "d1", model.DocumentStatusFailed, "boom"))

	ok, err := s.MarkProcessing(ctx, "d1")
	require.NoError(t, err)
	assert.True(t, ok)

	doc, err := s.GetDocument(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, model.DocumentStatusProcessing, doc.Status)
	assert.Empty(t, doc.StatusMessage)

	ok, err = s.MarkProcessing(ctx, "d1")
	require.NoError(t, err)
	assert.False(t, ok, "处理中的文档不能重复进入处理")

	_, err = s.MarkProcessing(ctx, "missing")
	assert.ErrorIs(t, err, apierrors.ErrRAGDocumentNotFound)
}

func TestMetadataStore_SaveContent(t *testing.T) {
	ctx := context.Background()
	s := NewMetadataStore(newTestDB(t))
	require.NoError(t, s.CreateDocument(ctx, &model.Document{ID: "d1", WorkspaceID: "w1"}))

	require.NoError(t, s.SaveContent(ctx, &model.Document{
		ID: "d1", Content: "正文", Language: "zh", CharLength: 2, Hash: "abc", ChunkCount: 1,
	}))

	doc, err := s.GetDocument(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, "正文", doc.Content)
	assert.Equal(t, "zh", doc.Language)
	assert.Equal(t, "abc", doc.Hash)
	assert.Equal(t, 1, doc.ChunkCount)
}

func TestMetadataStore_Subjects(t *testing.T) {
	ctx := context.Background()
	s := NewMetadataStore(newTestDB(t))

	first := []*model.Subject{
		{ID: "s2", DocumentID: "d1", Name: "第二", Rank: 1, ChunkIDs: []string{"c3"}},
		{ID: "s1", DocumentID: "d1", Name: "第一", Rank: 0, ChunkIDs: []string{"c1", "c2"}},
	}
	require.NoError(t, s.ReplaceSubjects(ctx, "d1", first))

	subjects, err := s.ListSubjects(ctx, "d1")
	require.NoError(t, err)
	require.Len(t, subjects, 2)
	assert.Equal(t, "s1", subjects[0].ID)
	assert.Equal(t, []string{"c1", "c2"}, subjects[0].ChunkIDs)

	got, err := s.GetSubjects(ctx, []string{"s2", "unknown"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "第二", got[0].Name)

	require.NoError(t, s.ReplaceSubjects(ctx, "d1", []*model.Subject{{ID: "s3", DocumentID: "d1", Name: "新"}}))
	subjects, err = s.ListSubjects(ctx, "d1")
	require.NoError(t, err)
	require.Len(t, subjects, 1)
	assert.Equal(t, "s3", subjects[0].ID)

	require.NoError(t, s.ReplaceSubjects(ctx, "d1", nil))
	subjects, err = s.ListSubjects(ctx, "d1")
	require.NoError(t, err)
	assert.Empty(t, subjects)
}
