package biz

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"github.com/kart-io/logger"
	"go.opentelemetry.io/otel/attribute"

	"github.com/kart-io/pdfrag/internal/model"
	"github.com/kart-io/pdfrag/internal/pkg/rag/docutil"
	"github.com/kart-io/pdfrag/internal/rag/metrics"
	"github.com/kart-io/pdfrag/internal/rag/store"
	"github.com/kart-io/pdfrag/pkg/infra/tracing"
	"github.com/kart-io/pdfrag/pkg/llm"
	"github.com/kart-io/pdfrag/pkg/utils/errors"
)

// Extractor 将 PDF 内容解析为带分块的文档。
type Extractor interface {
	Extract(ctx context.Context, filename string, data []byte) (*model.Document, error)
}

// VectorIndex 是 Service 依赖的向量索引操作集合，由 *store.Index 实现。
type VectorIndex interface {
	EnsureCollection(ctx context.Context, name string) (*store.CollectionHandle, error)
	Upsert(ctx context.Context, collection string, chunks []model.Chunk, vectors [][]float32) error
	Query(ctx context.Context, collection string, vector []float32, topK int, filter map[string]any) ([]store.Hit, error)
	Count(ctx context.Context, collection string) (int64, error)
	ListCollections(ctx context.Context) ([]string, error)
	DeleteCollection(ctx context.Context, collection string) error
	DeleteDocument(ctx context.Context, collection, documentID string) (int64, error)
}

var _ VectorIndex = (*store.Index)(nil)

// Config RAG 服务配置。
type Config struct {
	// Collection 请求未指定集合时使用的默认集合。
	Collection string
	// TopK 默认检索数量。
	TopK int
	// ContextSources 拼接到 prompt 中的最大来源数量。
	ContextSources int
	// Temperature 生成答案的采样温度。
	Temperature float64
	// MaxTokens 生成答案的最大 token 数。
	MaxTokens int
}

// DefaultConfig returns the default service configuration.
func DefaultConfig() Config {
	return Config{
		Collection:     "documents",
		TopK:           5,
		ContextSources: 5,
		Temperature:    0.1,
		MaxTokens:      512,
	}
}

// Option configures a Service.
type Option func(*Service)

// WithMetrics sets the metrics sink. Defaults to the global metrics.
func WithMetrics(m *metrics.RAGMetrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// Service 组合解析器、嵌入模型、向量索引和语言模型，提供完整的 RAG 服务。
type Service struct {
	extractor Extractor
	embedder  llm.EmbeddingProvider
	index     VectorIndex
	chat      llm.ChatProvider
	config    Config
	metrics   *metrics.RAGMetrics
}

// NewService 创建 RAG 服务实例。
func NewService(
	extractor Extractor,
	embedder llm.EmbeddingProvider,
	index VectorIndex,
	chat llm.ChatProvider,
	config Config,
	opts ...Option,
) *Service {
	def := DefaultConfig()
	if config.Collection == "" {
		config.Collection = def.Collection
	}
	if config.TopK <= 0 {
		config.TopK = def.TopK
	}
	if config.ContextSources <= 0 {
		config.ContextSources = def.ContextSources
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = def.MaxTokens
	}

	s := &Service{
		extractor: extractor,
		embedder:  embedder,
		index:     index,
		chat:      chat,
		config:    config,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.GetRAGMetrics()
	}
	return s
}

// Config returns the effective configuration.
func (s *Service) Config() Config {
	return s.config
}

func (s *Service) collection(name string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	return s.config.Collection
}

// Ingest 解析并索引一份 PDF。
// 文件名必须以 .pdf 结尾；没有可提取文本时返回 chunks_created 为 0 的成功结果，不访问索引。
// 嵌入或写入失败时不会留下部分数据。
func (s *Service) Ingest(ctx context.Context, filename string, content []byte, collection string) (result *model.IngestResult, err error) {
	collection = s.collection(collection)
	ctx, span := tracing.Start(ctx, "rag.ingest",
		attribute.String("rag.filename", filename),
		attribute.String("rag.collection", collection),
	)
	defer func() {
		s.metrics.RecordError(err)
		tracing.End(span, err)
	}()

	if !docutil.HasPDFExtension(filename) {
		return nil, errors.ErrRAGBadRequest.WithMessagef("only PDF files are supported, got %q", filename)
	}

	doc, err := s.extractor.Extract(ctx, filename, content)
	if err != nil {
		// 调用方取消或超时不属于文档本身的问题
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, errors.ErrTimeout.WithCause(ctxErr)
		}
		return nil, asErrno(err, errors.ErrRAGDocumentProcessing)
	}
	if len(doc.Chunks) == 0 {
		logger.Infow("document has no extractable text", "filename", filename, "document_id", doc.ID)
		return &model.IngestResult{DocumentID: doc.ID, ChunksCreated: 0}, nil
	}

	texts := make([]string, len(doc.Chunks))
	for i, c := range doc.Chunks {
		texts[i] = c.Text
	}

	start := time.Now()
	vectors, err := s.embedder.Embed(ctx, texts)
	s.metrics.ObserveLLM("embed", time.Since(start))
	if err != nil {
		return nil, asErrno(err, errors.ErrRAGEmbedding)
	}
	if len(vectors) != len(doc.Chunks) {
		return nil, errors.ErrRAGInternal.WithMessagef(
			"embedding count mismatch: got %d vectors for %d chunks", len(vectors), len(doc.Chunks))
	}

	if _, err := s.index.EnsureCollection(ctx, collection); err != nil {
		return nil, err
	}
	if err := s.index.Upsert(ctx, collection, doc.Chunks, vectors); err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.Int("rag.chunks", len(doc.Chunks)))
	logger.Infow("document ingested",
		"filename", filename,
		"document_id", doc.ID,
		"collection", collection,
		"pages", doc.Pages,
		"chunks", len(doc.Chunks),
	)
	return &model.IngestResult{DocumentID: doc.ID, ChunksCreated: len(doc.Chunks)}, nil
}

// Query 执行 RAG 查询：检索 top-k 分块并基于上下文生成答案。
// topK <= 0 时使用默认值。
func (s *Service) Query(ctx context.Context, query string, topK int, collection string) (result *model.QueryResult, err error) {
	collection = s.collection(collection)
	if topK <= 0 {
		topK = s.config.TopK
	}

	ctx, span := tracing.Start(ctx, "rag.query",
		attribute.String("rag.collection", collection),
		attribute.Int("rag.top_k", topK),
	)
	start := time.Now()
	s.metrics.QueryStarted(collection)
	defer func() {
		s.metrics.QueryFinished(collection, time.Since(start), err)
		tracing.End(span, err)
	}()

	if strings.TrimSpace(query) == "" {
		return nil, errors.ErrRAGBadRequest.WithMessage("query must not be empty")
	}

	embedStart := time.Now()
	vector, err := s.embedder.EmbedSingle(ctx, query)
	s.metrics.ObserveLLM("embed", time.Since(embedStart))
	if err != nil {
		return nil, asErrno(err, errors.ErrRAGEmbedding)
	}

	hits, err := s.index.Query(ctx, collection, vector, topK, nil)
	if err != nil {
		return nil, err
	}

	sources := make([]model.Source, len(hits))
	for i, h := range hits {
		meta := h.Metadata
		if meta == nil {
			meta = map[string]any{}
		}
		sources[i] = model.Source{
			Text:            h.Text,
			Metadata:        meta,
			ConfidenceScore: store.Confidence(h.Distance),
		}
	}

	prompt := BuildPrompt(BuildContext(sources, s.config.ContextSources), query)
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: SystemPrompt},
		{Role: llm.RoleUser, Content: prompt},
	}

	chatStart := time.Now()
	answer, err := s.chat.Chat(ctx, messages,
		llm.WithTemperature(s.config.Temperature),
		llm.WithMaxTokens(s.config.MaxTokens),
	)
	s.metrics.ObserveLLM("chat", time.Since(chatStart))
	if err != nil {
		logger.Warnw("answer generation failed", "collection", collection, "error", err.Error())
		return nil, errors.ErrRAGModelUnavailable.WithCause(err)
	}

	span.SetAttributes(attribute.Int("rag.sources", len(sources)))
	return &model.QueryResult{
		Answer:          answer,
		Sources:         sources,
		Query:           query,
		ConfidenceScore: MeanConfidence(sources),
	}, nil
}

// ListCollections 返回所有集合及其分块数量。
func (s *Service) ListCollections(ctx context.Context) ([]model.CollectionInfo, error) {
	names, err := s.index.ListCollections(ctx)
	if err != nil {
		return nil, err
	}

	infos := make([]model.CollectionInfo, 0, len(names))
	for _, name := range names {
		n, err := s.index.Count(ctx, name)
		if err != nil {
			if errors.IsCode(err, errors.ErrRAGCollectionNotFound.Code) {
				continue
			}
			return nil, err
		}
		infos = append(infos, model.CollectionInfo{Name: name, Count: n})
	}
	return infos, nil
}

// DeleteCollection 删除整个集合。
func (s *Service) DeleteCollection(ctx context.Context, collection string) error {
	if strings.TrimSpace(collection) == "" {
		return errors.ErrRAGBadRequest.WithMessage("collection must not be empty")
	}
	if err := s.index.DeleteCollection(ctx, collection); err != nil {
		return err
	}
	logger.Infow("collection deleted", "collection", collection)
	return nil
}

// DeleteDocument 删除集合中某个文档的全部分块，文档不存在时返回 ErrNotFound。
func (s *Service) DeleteDocument(ctx context.Context, collection, documentID string) (int64, error) {
	collection = s.collection(collection)
	if strings.TrimSpace(documentID) == "" {
		return 0, errors.ErrRAGBadRequest.WithMessage("document id must not be empty")
	}

	n, err := s.index.DeleteDocument(ctx, collection, documentID)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, errors.ErrNotFound.WithMessagef("document %q not found in collection %q", documentID, collection)
	}
	logger.Infow("document deleted", "collection", collection, "document_id", documentID, "chunks", n)
	return n, nil
}

// asErrno keeps structured errors and wraps anything else in fallback.
func asErrno(err error, fallback *errors.Errno) error {
	var e *errors.Errno
	if stderrors.As(err, &e) {
		return err
	}
	return fallback.WithCause(err)
}
