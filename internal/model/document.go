// Package model provides data models for the quizmind RAG service.
package model

import (
	"time"
)

// Document status values.
const (
	DocumentStatusPending    = "pending"
	DocumentStatusProcessing = "processing"
	DocumentStatusReady      = "ready"
	DocumentStatusFailed     = "failed"
)

// Document represents an uploaded document known to the RAG core.
type Document struct {
	ID            string    `json:"id" gorm:"primaryKey;type:varchar(64)"`
	WorkspaceID   string    `json:"workspace_id" gorm:"type:varchar(64);index;not null"`
	Filename      string    `json:"filename" gorm:"type:varchar(255)"`
	MimeType      string    `json:"mime_type" gorm:"type:varchar(128)"`
	Language      string    `json:"language" gorm:"type:varchar(16)"`
	CharLength    int       `json:"char_length" gorm:"default:0"`
	Content       string    `json:"-" gorm:"type:text"` // Cleaned extracted text, chunk offsets refer to it
	Hash          string    `json:"hash" gorm:"type:varchar(64);index"`
	ChunkCount    int       `json:"chunk_count" gorm:"default:0"`
	Status        string    `json:"status" gorm:"type:varchar(32);default:'pending'"`
	StatusMessage string    `json:"status_message,omitempty" gorm:"type:varchar(1024)"`
	CreatedAt     time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt     time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for Document.
func (Document) TableName() string {
	return "rag_documents"
}

// ChunkMetadata is the metadata record stored with every chunk row.
type ChunkMetadata struct {
	StartChar   int            `json:"start_char"`
	EndChar     int            `json:"end_char"`
	PageNumber  int            `json:"page_number"`
	ChunkIndex  int            `json:"chunk_index"`
	TotalChunks int            `json:"total_chunks"`
	Extra       map[string]any `json:"extra,omitempty"`
}

// Chunk represents a text chunk of a document. Chunks live in the vector store.
type Chunk struct {
	ID          string        `json:"id"`
	DocumentID  string        `json:"document_id"`
	WorkspaceID string        `json:"workspace_id"`
	Index       int           `json:"index"`
	Content     string        `json:"content"`
	StartChar   int           `json:"start_char"`
	EndChar     int           `json:"end_char"`
	PageNumber  int           `json:"page_number"`
	Embedding   []float32     `json:"-"`
	Metadata    ChunkMetadata `json:"metadata"`
}

// HasEmbedding reports whether an embedding is attached.
func (c *Chunk) HasEmbedding() bool {
	return c != nil && len(c.Embedding) > 0
}

// Subject is a named topic derived from a cluster of chunks.
type Subject struct {
	ID          string    `json:"id" gorm:"primaryKey;type:varchar(64)"`
	DocumentID  string    `json:"document_id" gorm:"type:varchar(64);index;not null"`
	WorkspaceID string    `json:"workspace_id" gorm:"type:varchar(64);index"`
	Name        string    `json:"name" gorm:"type:varchar(255);not null"`
	Importance  string    `json:"importance" gorm:"type:varchar(32)"`
	Rank        int       `json:"rank" gorm:"default:0"`
	ChunkIDs    []string  `json:"chunk_ids" gorm:"serializer:json;type:text"`
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// TableName specifies the table name for Subject.
func (Subject) TableName() string {
	return "rag_subjects"
}
