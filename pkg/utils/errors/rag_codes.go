package errors

import (
	"net/http"

	"google.golang.org/grpc/codes"
)

// RAG 服务代码: 20 (业务服务范围 20-79)
// 错误码格式: AABBCCC
// - AA: 20 (RAG 服务)
// - BB: 类别代码
// - CCC: 序号

var (
	// 请求参数错误 (类别 01)
	ErrRAGBadRequest = Register(New(MakeCode(ServiceRAG, CategoryRequest, 1), http.StatusBadRequest, codes.InvalidArgument, "Invalid request", "请求参数无效"))
	ErrRAGValidation = Register(New(MakeCode(ServiceRAG, CategoryRequest, 2), http.StatusBadRequest, codes.InvalidArgument, "Validation failed", "数据校验失败"))

	// 资源错误 (类别 04)
	ErrRAGCollectionNotFound = Register(New(MakeCode(ServiceRAG, CategoryResource, 1), http.StatusNotFound, codes.NotFound, "Collection not found", "集合不存在"))

	// 内部错误 (类别 07)
	ErrRAGInternal = Register(New(MakeCode(ServiceRAG, CategoryInternal, 1), http.StatusInternalServerError, codes.Internal, "Internal processing error", "内部处理错误"))

	// 向量库错误 (类别 08)
	ErrRAGVectorStore = Register(New(MakeCode(ServiceRAG, CategoryStorage, 1), http.StatusBadGateway, codes.Unavailable, "Vector store operation failed", "向量库操作失败"))

	// 嵌入错误 (类别 10)
	ErrRAGEmbedding = Register(New(MakeCode(ServiceRAG, CategoryNetwork, 1), http.StatusBadGateway, codes.Unavailable, "Embedding generation failed", "向量生成失败"))

	// 模型不可用 (类别 10)
	ErrRAGModelUnavailable = Register(New(MakeCode(ServiceRAG, CategoryNetwork, 2), http.StatusServiceUnavailable, codes.Unavailable, "Language model unavailable", "语言模型不可用"))

	// 配置错误 (类别 12)
	ErrRAGConfiguration = Register(New(MakeCode(ServiceRAG, CategoryConfig, 1), http.StatusInternalServerError, codes.FailedPrecondition, "Invalid configuration", "配置无效"))

	// 文档处理错误 (类别 13)
	ErrRAGDocumentProcessing = Register(New(MakeCode(ServiceRAG, CategoryDocument, 1), http.StatusUnprocessableEntity, codes.InvalidArgument, "Document processing failed", "文档处理失败"))
)
