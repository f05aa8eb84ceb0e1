// Package biz 提供 RAG 服务的业务逻辑层。
//
// Service 编排完整的检索增强问答流程：
//   - Ingest: 校验文件名、解析 PDF、分块、批量嵌入并写入向量索引
//   - Query: 嵌入问题、检索 top-k 分块、拼接上下文并调用语言模型生成答案
//
// 向量索引、嵌入模型和语言模型都以接口注入，便于替换后端和编写测试。
package biz
