// Package biz 提供 RAG 服务的业务逻辑层。
//
// 该包将业务逻辑拆分为以下组件：
//   - Indexer: 文档摄取（提取、分块、嵌入、持久化、聚类、标注）
//   - ClusterEngine: 贪心单链接聚类与多样化子集选择
//   - RelevanceScorer: 向量与词法两种策略的相关性评分
//   - Retriever: 多文档检索、全局重排与上下文组装
//   - Service: 组合以上组件，提供统一的服务接口
package biz
