// Package handler provides HTTP handlers for the RAG service.
package handler

import (
	"context"
	"encoding/base64"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/pdfrag/internal/model"
	"github.com/kart-io/pdfrag/internal/pkg/rag/docutil"
	"github.com/kart-io/pdfrag/internal/pkg/rag/textutil"
	"github.com/kart-io/pdfrag/pkg/llm/resilience"
	"github.com/kart-io/pdfrag/pkg/utils/errors"
	"github.com/kart-io/pdfrag/pkg/utils/response"
	"github.com/kart-io/pdfrag/pkg/utils/validator"
)

// Service is the set of RAG operations exposed over HTTP.
type Service interface {
	Ingest(ctx context.Context, filename string, content []byte, collection string) (*model.IngestResult, error)
	Query(ctx context.Context, query string, topK int, collection string) (*model.QueryResult, error)
	ListCollections(ctx context.Context) ([]model.CollectionInfo, error)
	DeleteCollection(ctx context.Context, collection string) error
	DeleteDocument(ctx context.Context, collection, documentID string) (int64, error)
}

// Options 处理器配置。
type Options struct {
	// DefaultTopK 请求未携带 top_k 时使用。
	DefaultTopK int
	// MaxUploadSize 上传 PDF 的最大字节数。
	MaxUploadSize int64
	// QueryRetries 查询遇到瞬时故障时的最大尝试次数。
	QueryRetries int
	// RetryDelay 首次重试前的等待时间。
	RetryDelay time.Duration
}

// RAGHandler handles RAG HTTP requests.
type RAGHandler struct {
	service Service
	opts    Options
}

// NewRAGHandler creates a new RAGHandler.
func NewRAGHandler(service Service, opts Options) *RAGHandler {
	if opts.DefaultTopK <= 0 {
		opts.DefaultTopK = 5
	}
	if opts.MaxUploadSize <= 0 {
		opts.MaxUploadSize = 50 << 20
	}
	if opts.QueryRetries <= 0 {
		opts.QueryRetries = 1
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 500 * time.Millisecond
	}
	return &RAGHandler{service: service, opts: opts}
}

// QueryRequest represents a query request.
type QueryRequest struct {
	Query          string `json:"query" validate:"notblank,max=1000"`
	TopK           *int   `json:"top_k" validate:"omitempty,min=1,max=20"`
	CollectionName string `json:"collection_name" validate:"omitempty,collection"`
}

// UploadRequest is the JSON form of an upload, content is base64 encoded.
type UploadRequest struct {
	Filename       string `json:"filename" validate:"required,pdffilename"`
	Content        string `json:"content" validate:"required,base64"`
	CollectionName string `json:"collection_name" validate:"omitempty,collection"`
}

// UploadResponse represents an upload response.
type UploadResponse struct {
	Success       bool   `json:"success"`
	Message       string `json:"message"`
	DocumentID    string `json:"document_id"`
	ChunksCreated int    `json:"chunks_created"`
}

// CollectionsResponse lists the collections of the index.
type CollectionsResponse struct {
	Collections []model.CollectionInfo `json:"collections"`
}

// Query answers a question from the indexed documents.
// 瞬时故障（模型不可用、向量库或嵌入失败）按指数退避重试，校验错误立即返回。
func (h *RAGHandler) Query(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, errors.ErrRAGBadRequest.WithMessage("invalid JSON body: "+err.Error()))
		return
	}
	req.Query = validator.SanitizeQuery(req.Query)
	if !h.validate(c, &req) {
		return
	}

	topK := h.opts.DefaultTopK
	if req.TopK != nil {
		topK = *req.TopK
	}

	var result *model.QueryResult
	err := resilience.Retry(c.Request.Context(), h.retryConfig(req.Query), func(ctx context.Context) error {
		var err error
		result, err = h.service.Query(ctx, req.Query, topK, req.CollectionName)
		return err
	})
	if err != nil {
		response.FailWithError(c, err)
		return
	}
	response.OK(c, result)
}

// Upload ingests one PDF sent either as multipart form data or as JSON.
func (h *RAGHandler) Upload(c *gin.Context) {
	var (
		filename   string
		content    []byte
		collection string
	)

	if strings.HasPrefix(c.ContentType(), gin.MIMEMultipartPOSTForm) {
		header, err := c.FormFile("file")
		if err != nil {
			response.Fail(c, errors.ErrRAGBadRequest.WithMessage("multipart field \"file\" is required"))
			return
		}
		if header.Size > h.opts.MaxUploadSize {
			response.Fail(c, h.tooLarge())
			return
		}
		f, err := header.Open()
		if err != nil {
			response.Fail(c, errors.ErrRAGBadRequest.WithCause(err))
			return
		}
		defer f.Close()

		content, err = io.ReadAll(io.LimitReader(f, h.opts.MaxUploadSize+1))
		if err != nil {
			response.Fail(c, errors.ErrRAGBadRequest.WithCause(err))
			return
		}
		filename = filepath.Base(header.Filename)
		collection = c.PostForm("collection_name")

		if !h.validateVar(c, "filename", filename, "required,"+validator.TagPDFFilename) ||
			!h.validateVar(c, "collection_name", collection, "omitempty,"+validator.TagCollection) {
			return
		}
	} else {
		var req UploadRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Fail(c, errors.ErrRAGBadRequest.WithMessage("invalid JSON body: "+err.Error()))
			return
		}
		if !h.validate(c, &req) {
			return
		}
		decoded, err := base64.StdEncoding.DecodeString(req.Content)
		if err != nil {
			response.Fail(c, errors.ErrRAGValidation.WithMessage("content must be base64 encoded"))
			return
		}
		filename, content, collection = req.Filename, decoded, req.CollectionName
	}

	if int64(len(content)) > h.opts.MaxUploadSize {
		response.Fail(c, h.tooLarge())
		return
	}
	if !docutil.IsPDF(content) {
		response.Fail(c, errors.ErrRAGValidation.WithMessage("content is not a PDF document"))
		return
	}

	result, err := h.service.Ingest(c.Request.Context(), filename, content, collection)
	if err != nil {
		response.FailWithError(c, err)
		return
	}

	message := "document processed successfully"
	if result.ChunksCreated == 0 {
		message = "document contains no extractable text"
	}
	response.OK(c, UploadResponse{
		Success:       true,
		Message:       message,
		DocumentID:    result.DocumentID,
		ChunksCreated: result.ChunksCreated,
	})
}

// Collections lists every collection with its chunk count.
func (h *RAGHandler) Collections(c *gin.Context) {
	infos, err := h.service.ListCollections(c.Request.Context())
	if err != nil {
		response.FailWithError(c, err)
		return
	}
	if infos == nil {
		infos = []model.CollectionInfo{}
	}
	response.OK(c, CollectionsResponse{Collections: infos})
}

// DeleteCollection drops a collection and all of its chunks.
func (h *RAGHandler) DeleteCollection(c *gin.Context) {
	name := c.Param("name")
	if !h.validateVar(c, "name", name, "required,"+validator.TagCollection) {
		return
	}
	if err := h.service.DeleteCollection(c.Request.Context(), name); err != nil {
		response.FailWithError(c, err)
		return
	}
	response.OK(c, gin.H{"deleted": name})
}

// DeleteDocument removes every chunk of one document from a collection.
func (h *RAGHandler) DeleteDocument(c *gin.Context) {
	name, id := c.Param("name"), c.Param("id")
	if !h.validateVar(c, "name", name, "required,"+validator.TagCollection) ||
		!h.validateVar(c, "id", id, "required,max=128") {
		return
	}
	n, err := h.service.DeleteDocument(c.Request.Context(), name, id)
	if err != nil {
		response.FailWithError(c, err)
		return
	}
	logger.Debugw("document removed over http", "collection", name, "document_id", id, "chunks", n)
	response.OK(c, gin.H{"deleted": id})
}

// logQueryLen 日志中记录的查询文本最大字符数。
const logQueryLen = 64

// logQuery 截断过长的查询文本，避免整段写入日志。
func logQuery(q string) string {
	return textutil.TruncateString(q, logQueryLen)
}

func (h *RAGHandler) retryConfig(query string) *resilience.RetryConfig {
	return &resilience.RetryConfig{
		MaxAttempts:  h.opts.QueryRetries,
		InitialDelay: h.opts.RetryDelay,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
		Retryable:    resilience.IsTransient,
		OnRetry: func(attempt int, err error) {
			logger.Warnw("retrying query", "attempt", attempt,
				"query", logQuery(query), "error", err.Error())
		},
	}
}

func (h *RAGHandler) tooLarge() *errors.Errno {
	return errors.ErrRequestTooLarge.WithMessagef("file exceeds the maximum upload size of %d bytes", h.opts.MaxUploadSize)
}

// validate 校验请求体，失败时写入 400 响应并返回 false。
func (h *RAGHandler) validate(c *gin.Context, req any) bool {
	errs := validator.StructWithLang(req, c.GetHeader("Accept-Language"))
	if !errs.HasErrors() {
		return true
	}
	response.Fail(c, errors.ErrRAGValidation.WithMessage(errs.First()))
	return false
}

func (h *RAGHandler) validateVar(c *gin.Context, field string, value any, tag string) bool {
	if err := validator.Var(value, tag); err != nil {
		response.Fail(c, errors.ErrRAGValidation.WithMessagef("%s is invalid", field))
		return false
	}
	return true
}

