// Package store 提供 RAG 服务的数据存储层。
//
// ChunkStore 保存文档块及其向量（Milvus 或进程内实现），
// MetadataStore 通过 GORM 保存文档状态与知识点。
package store
