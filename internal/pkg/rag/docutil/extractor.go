package docutil

import (
	"context"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/google/uuid"
	"github.com/kart-io/logger"

	"github.com/kart-io/pdfrag/internal/model"
	"github.com/kart-io/pdfrag/internal/pkg/rag/textutil"
	"github.com/kart-io/pdfrag/pkg/utils/errors"
)

// PageSource is an opened document that exposes text per page.
// Pages are 0-indexed here; metadata records them 1-indexed.
type PageSource interface {
	NumPage() int
	Text(page int) (string, error)
	Close() error
}

// Opener parses raw bytes into a PageSource.
type Opener func(data []byte) (PageSource, error)

// FitzOpener opens PDF bytes with MuPDF.
func FitzOpener(data []byte) (PageSource, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// IDFunc generates chunk and document identifiers.
type IDFunc func() string

// Extractor turns PDF bytes into page-tagged chunks.
type Extractor struct {
	chunker *textutil.Chunker
	open    Opener
	newID   IDFunc
}

// ExtractorOption configures an Extractor.
type ExtractorOption func(*Extractor)

// WithOpener replaces the PDF parser.
func WithOpener(open Opener) ExtractorOption {
	return func(e *Extractor) { e.open = open }
}

// WithIDFunc replaces the UUID generator.
func WithIDFunc(fn IDFunc) ExtractorOption {
	return func(e *Extractor) { e.newID = fn }
}

// NewExtractor creates an Extractor using go-fitz and random UUIDs by default.
func NewExtractor(chunker *textutil.Chunker, opts ...ExtractorOption) *Extractor {
	e := &Extractor{
		chunker: chunker,
		open:    FitzOpener,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract 解析 PDF 并按页分块。
// 无法解析整个文档时返回 ErrRAGDocumentProcessing；单页失败只记录日志并跳过。
// 所有页面都为空时返回不含 chunk 的文档。
func (e *Extractor) Extract(ctx context.Context, filename string, data []byte) (*model.Document, error) {
	src, err := e.open(data)
	if err != nil {
		return nil, errors.ErrRAGDocumentProcessing.
			WithMessagef("failed to parse %s as PDF", filename).
			WithCause(err)
	}
	defer func() { _ = src.Close() }()

	doc := &model.Document{
		ID:       e.newID(),
		Filename: filename,
		Pages:    src.NumPage(),
		Chunks:   []model.Chunk{},
	}

	for i := 0; i < doc.Pages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page := i + 1
		text, err := src.Text(i)
		if err != nil {
			logger.Warnw("Failed to extract page text, skipping",
				"filename", filename,
				"page", page,
				"error", err.Error(),
			)
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}

		for _, piece := range e.chunker.Split(text) {
			doc.Chunks = append(doc.Chunks, model.Chunk{
				ID:   e.newID(),
				Text: piece,
				Metadata: map[string]any{
					model.MetaDocumentID: doc.ID,
					model.MetaFilename:   filename,
					model.MetaPage:       page,
				},
			})
		}
	}

	logger.Debugw("Document extracted",
		"filename", filename,
		"document_id", doc.ID,
		"pages", doc.Pages,
		"chunks", len(doc.Chunks),
	)
	return doc, nil
}
