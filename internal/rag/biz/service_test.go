package biz

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/pdfrag/internal/model"
	"github.com/kart-io/pdfrag/internal/pkg/rag/docutil"
	"github.com/kart-io/pdfrag/internal/pkg/rag/textutil"
	"github.com/kart-io/pdfrag/internal/rag/metrics"
	"github.com/kart-io/pdfrag/internal/rag/store"
	"github.com/kart-io/pdfrag/pkg/llm"
	"github.com/kart-io/pdfrag/pkg/utils/errors"
)

const alphabet = "abcdefghijklmnopqrstuvwxyz"

// pages is an in-memory PageSource.
type pages []string

func (p pages) NumPage() int { return len(p) }
func (p pages) Text(i int) (string, error) { return p[i], nil }
func (p pages) Close() error { return nil }

// countingExtractor records how often extraction ran.
type countingExtractor struct {
	inner *docutil.Extractor
	calls atomic.Int32
}

func (e *countingExtractor) Extract(ctx context.Context, filename string, data []byte) (*model.Document, error) {
	e.calls.Add(1)
	return e.inner.Extract(ctx, filename, data)
}

// fakeEmbedder maps a text to a 2-d vector derived from its first letter.
type fakeEmbedder struct {
	calls int
	err   error
	drop  bool
}

func (f *fakeEmbedder) vector(text string) []float32 {
	if text == "" {
		return []float32{1, 1}
	}
	c := float32(text[0]-'a') + 1
	return []float32{1, c}
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		out = append(out, f.vector(t))
	}
	if f.drop && len(out) > 0 {
		out = out[:len(out)-1]
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	vs, err := f.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vs[0], nil
}

func (f *fakeEmbedder) Name() string { return "fake" }

// fakeChat records the last request.
type fakeChat struct {
	messages []llm.Message
	options  llm.ChatOptions
	err      error
}

func (f *fakeChat) Chat(_ context.Context, messages []llm.Message, opts ...llm.ChatOption) (string, error) {
	f.messages = messages
	f.options = llm.ApplyChatOptions(opts...)
	if f.err != nil {
		return "", f.err
	}
	return "the answer", nil
}

func (f *fakeChat) Name() string { return "fake" }

type fixture struct {
	svc       *Service
	extractor *countingExtractor
	embedder  *fakeEmbedder
	chat      *fakeChat
	index     *store.Index
	doc       pages
}

func newFixture(t *testing.T, doc pages) *fixture {
	t.Helper()
	chunker, err := textutil.NewChunker(10, 2)
	require.NoError(t, err)

	f := &fixture{
		embedder: &fakeEmbedder{},
		chat:     &fakeChat{},
		index:    store.NewIndex(store.NewMemoryBackend(), store.Config{Dimension: 2, Timeout: time.Second}),
		doc:      doc,
	}
	f.extractor = &countingExtractor{inner: docutil.NewExtractor(chunker,
		docutil.WithOpener(func([]byte) (docutil.PageSource, error) { return f.doc, nil }),
	)}
	f.svc = NewService(f.extractor, f.embedder, f.index, f.chat, Config{
		Collection:     "documents",
		TopK:           5,
		ContextSources: 5,
		Temperature:    0.1,
		MaxTokens:      512,
	}, WithMetrics(metrics.NewRAGMetrics(prometheus.NewRegistry())))
	return f
}

func TestIngestRejectsNonPDF(t *testing.T) {
	f := newFixture(t, pages{alphabet})

	_, err := f.svc.Ingest(context.Background(), "notes.txt", []byte("%PDF-1.4"), "")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrRAGBadRequest.Code))
	assert.Zero(t, f.extractor.calls.Load(), "extraction must not run")
}

func TestIngestCancelledDuringExtraction(t *testing.T) {
	f := newFixture(t, pages{alphabet, alphabet})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.svc.Ingest(ctx, "a.pdf", []byte("%PDF-1.4"), "")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrTimeout.Code), err.Error())
	assert.False(t, errors.IsCode(err, errors.ErrRAGDocumentProcessing.Code))
	assert.EqualValues(t, 1, f.extractor.calls.Load())
	assert.Zero(t, f.embedder.calls)
}

func TestIngestAndQuery(t *testing.T) {
	f := newFixture(t, pages{alphabet, ""})
	ctx := context.Background()

	res, err := f.svc.Ingest(ctx, "Alphabet.PDF", []byte("%PDF-1.4"), "")
	require.NoError(t, err)
	assert.NotEmpty(t, res.DocumentID)
	assert.Equal(t, 3, res.ChunksCreated)
	assert.Equal(t, 1, f.embedder.calls, "chunks are embedded in one batch")

	n, err := f.index.Count(ctx, "documents")
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	out, err := f.svc.Query(ctx, "what comes after q?", 5, "")
	require.NoError(t, err)
	assert.Equal(t, "the answer", out.Answer)
	assert.Equal(t, "what comes after q?", out.Query)
	require.Len(t, out.Sources, 3, "top_k larger than the collection returns every chunk")
	for _, s := range out.Sources {
		assert.Equal(t, 1, model.PageOf(s.Metadata))
		assert.Equal(t, res.DocumentID, s.Metadata[model.MetaDocumentID])
		assert.GreaterOrEqual(t, s.ConfidenceScore, 0.0)
		assert.LessOrEqual(t, s.ConfidenceScore, 1.0)
	}
	assert.InDelta(t, MeanConfidence(out.Sources), out.ConfidenceScore, 1e-9)

	require.Len(t, f.chat.messages, 2)
	assert.Equal(t, llm.RoleSystem, f.chat.messages[0].Role)
	assert.Equal(t, SystemPrompt, f.chat.messages[0].Content)
	prompt := f.chat.messages[1].Content
	assert.True(t, strings.HasPrefix(prompt, "You are an expert assistant that answers based only on the context."))
	assert.Contains(t, prompt, "[p1] ")
	assert.True(t, strings.HasSuffix(prompt, "Question: what comes after q?\nAnswer:"))
	assert.Equal(t, 0.1, f.chat.options.Temperature)
	assert.Equal(t, 512, f.chat.options.MaxTokens)
}

func TestIngestZeroChunks(t *testing.T) {
	f := newFixture(t, pages{"", "   "})
	ctx := context.Background()

	res, err := f.svc.Ingest(ctx, "empty.pdf", []byte("%PDF"), "")
	require.NoError(t, err)
	assert.Zero(t, res.ChunksCreated)
	assert.NotEmpty(t, res.DocumentID)
	assert.Zero(t, f.embedder.calls)

	names, err := f.index.ListCollections(ctx)
	require.NoError(t, err)
	assert.Empty(t, names, "no index call for an empty document")
}

func TestIngestEmbeddingCountMismatch(t *testing.T) {
	f := newFixture(t, pages{alphabet})
	f.embedder.drop = true
	ctx := context.Background()

	_, err := f.svc.Ingest(ctx, "a.pdf", []byte("%PDF"), "")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrRAGInternal.Code))

	names, _ := f.index.ListCollections(ctx)
	assert.Empty(t, names)
}

func TestIngestEmbeddingFailure(t *testing.T) {
	f := newFixture(t, pages{alphabet})
	f.embedder.err = fmt.Errorf("model offline")
	ctx := context.Background()

	_, err := f.svc.Ingest(ctx, "a.pdf", []byte("%PDF"), "other")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrRAGEmbedding.Code))

	names, _ := f.index.ListCollections(ctx)
	assert.Empty(t, names)
}

func TestQueryEmpty(t *testing.T) {
	f := newFixture(t, pages{alphabet})

	_, err := f.svc.Query(context.Background(), "   ", 5, "")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrRAGBadRequest.Code))
	assert.Zero(t, f.embedder.calls)
}

func TestQueryNoSources(t *testing.T) {
	f := newFixture(t, pages{alphabet})

	out, err := f.svc.Query(context.Background(), "anything", 0, "fresh")
	require.NoError(t, err)
	assert.Empty(t, out.Sources)
	assert.Zero(t, out.ConfidenceScore)
	assert.Contains(t, f.chat.messages[1].Content, "Context:\n\n\nQuestion: anything")
}

func TestQueryChatFailure(t *testing.T) {
	f := newFixture(t, pages{alphabet})
	f.chat.err = context.DeadlineExceeded

	_, err := f.svc.Query(context.Background(), "anything", 3, "")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrRAGModelUnavailable.Code))
}

func TestCollectionsAndDeletion(t *testing.T) {
	f := newFixture(t, pages{alphabet})
	ctx := context.Background()

	first, err := f.svc.Ingest(ctx, "a.pdf", []byte("%PDF"), "alpha")
	require.NoError(t, err)
	_, err = f.svc.Ingest(ctx, "b.pdf", []byte("%PDF"), "alpha")
	require.NoError(t, err)
	_, err = f.svc.Ingest(ctx, "c.pdf", []byte("%PDF"), "beta")
	require.NoError(t, err)

	infos, err := f.svc.ListCollections(ctx)
	require.NoError(t, err)
	assert.Equal(t, []model.CollectionInfo{{Name: "alpha", Count: 6}, {Name: "beta", Count: 3}}, infos)

	removed, err := f.svc.DeleteDocument(ctx, "alpha", first.DocumentID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, removed)

	_, err = f.svc.DeleteDocument(ctx, "alpha", first.DocumentID)
	assert.True(t, errors.IsCode(err, errors.ErrNotFound.Code))

	require.NoError(t, f.svc.DeleteCollection(ctx, "beta"))
	infos, err = f.svc.ListCollections(ctx)
	require.NoError(t, err)
	assert.Equal(t, []model.CollectionInfo{{Name: "alpha", Count: 3}}, infos)
}

func TestBuildContext(t *testing.T) {
	sources := []model.Source{
		{Text: "one", Metadata: map[string]any{model.MetaPage: 1}},
		{Text: "two", Metadata: map[string]any{}},
		{Text: "three", Metadata: map[string]any{model.MetaPage: float64(3)}},
	}
	assert.Equal(t, "[p1] one\n\n[p?] two\n\n[p3] three", BuildContext(sources, 5))
	assert.Equal(t, "[p1] one\n\n[p?] two", BuildContext(sources, 2))
	assert.Empty(t, BuildContext(nil, 5))
}

func TestBuildPrompt(t *testing.T) {
	want := "You are an expert assistant that answers based only on the context.\n" +
		"If the answer cannot be found in the context, say you don't know.\n\n" +
		"Context:\nCTX\n\nQuestion: Q\nAnswer:"
	assert.Equal(t, want, BuildPrompt("CTX", "Q"))
}

func TestMeanConfidence(t *testing.T) {
	assert.Zero(t, MeanConfidence(nil))
	assert.InDelta(t, 0.5, MeanConfidence([]model.Source{{ConfidenceScore: 0.25}, {ConfidenceScore: 0.75}}), 1e-9)
}
