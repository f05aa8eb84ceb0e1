// Package store 提供 RAG 服务的向量索引层。
//
// Index 在具体的 Backend 之上实现集合管理、维度校验、超时控制和错误归一化，
// 所有后端错误都会被转换为 ErrRAGVectorStore，后端自身的错误类型不会泄露到调用方。
//
// 支持的后端：memory、bolt、qdrant、milvus、pgvector，启动时按配置选择一次。
package store
