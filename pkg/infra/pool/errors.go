// Package pool provides ants-backed worker pools for ingestion and retrieval.
package pool

import "errors"

var (
	// ErrPoolClosed 池或管理器已关闭，任务不再被接受。
	ErrPoolClosed = errors.New("pool: closed")

	// ErrPoolNotFound 未注册的池类型。
	ErrPoolNotFound = errors.New("pool: not found")

	// ErrPoolAlreadyExists 同名池重复注册。
	ErrPoolAlreadyExists = errors.New("pool: already registered")

	// ErrPoolOverload 非阻塞池已满，调用方应降级为直接执行。
	ErrPoolOverload = errors.New("pool: overloaded")
)
