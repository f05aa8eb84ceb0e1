package app

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/pdfrag/internal/model"
	"github.com/kart-io/pdfrag/pkg/infra/pool"
)

type fakeIngester struct {
	mu    sync.Mutex
	calls map[string]string
	fail  string
	panic string
}

func (f *fakeIngester) Ingest(_ context.Context, filename string, content []byte, collection string) (*model.IngestResult, error) {
	if filename == f.panic {
		panic("malformed object stream")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if filename == f.fail {
		return nil, errors.New("extraction failed")
	}
	if f.calls == nil {
		f.calls = map[string]string{}
	}
	f.calls[filename] = collection
	return &model.IngestResult{DocumentID: "doc-" + filename, ChunksCreated: len(content)}, nil
}

func writeFiles(t *testing.T, names ...string) []string {
	t.Helper()
	dir := t.TempDir()
	paths := make([]string, 0, len(names))
	for _, n := range names {
		p := filepath.Join(dir, n)
		require.NoError(t, os.WriteFile(p, []byte("abc"), 0o600))
		paths = append(paths, p)
	}
	return paths
}

func newTestPool(t *testing.T) *pool.Pool {
	t.Helper()
	p, err := pool.NewPool("ingest-test", pool.IngestPool, pool.IngestPoolConfig(2))
	require.NoError(t, err)
	t.Cleanup(p.Release)
	return p
}

func TestIngestFiles(t *testing.T) {
	files := writeFiles(t, "a.pdf", "b.pdf", "c.pdf")
	svc := &fakeIngester{}

	var done int
	summary := ingestFiles(context.Background(), svc, newTestPool(t), files, "papers", func(fileResult) { done++ })

	assert.Equal(t, 3, done)
	assert.Equal(t, 3, summary.Files)
	assert.Equal(t, 3, summary.Succeeded)
	assert.Equal(t, 9, summary.Chunks)
	assert.Empty(t, summary.Failures)
	require.NoError(t, summary.Err())
	assert.Equal(t, map[string]string{"a.pdf": "papers", "b.pdf": "papers", "c.pdf": "papers"}, svc.calls)
}

func TestIngestFilesReportsFailures(t *testing.T) {
	files := writeFiles(t, "good.pdf", "bad.pdf")
	files = append(files, filepath.Join(t.TempDir(), "missing.pdf"))
	svc := &fakeIngester{fail: "bad.pdf"}

	summary := ingestFiles(context.Background(), svc, newTestPool(t), files, "", nil)

	assert.Equal(t, 1, summary.Succeeded)
	require.Len(t, summary.Failures, 2)
	err := summary.Err()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 of 3 files failed")
}

func TestIngestFilesRecordsPanics(t *testing.T) {
	files := writeFiles(t, "good.pdf", "boom.pdf")
	svc := &fakeIngester{panic: "boom.pdf"}

	var done int
	summary := ingestFiles(context.Background(), svc, newTestPool(t), files, "", func(fileResult) { done++ })

	assert.Equal(t, 2, done)
	assert.Equal(t, 1, summary.Succeeded)
	require.Len(t, summary.Failures, 1)
	assert.Equal(t, files[1], summary.Failures[0].Path)
	assert.Contains(t, summary.Failures[0].Err.Error(), "malformed object stream")
	assert.Error(t, summary.Err())
}

func TestIngestFilesCancelled(t *testing.T) {
	files := writeFiles(t, "a.pdf", "b.pdf")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary := ingestFiles(ctx, &fakeIngester{}, newTestPool(t), files, "", nil)

	assert.Zero(t, summary.Succeeded)
	require.Len(t, summary.Failures, 2)
	assert.ErrorIs(t, summary.Failures[0].Err, context.Canceled)
}

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	printSummary(&buf, ingestSummary{
		Files:     2,
		Succeeded: 1,
		Chunks:    7,
		Failures:  []fileResult{{Path: "x.pdf", Err: errors.New("boom")}},
	}, 1500*time.Millisecond)

	out := buf.String()
	assert.Contains(t, out, "Ingested 1/2 files (7 chunks) in 1.5s")
	assert.Contains(t, out, "FAILED x.pdf: boom")
}

func TestPrintAnswer(t *testing.T) {
	var buf bytes.Buffer
	printAnswer(&buf, &model.QueryResult{
		Answer:          "Forty-two.",
		ConfidenceScore: 0.8,
		Sources: []model.Source{{
			Text:            "the answer is 42",
			Metadata:        map[string]any{model.MetaFilename: "guide.pdf", model.MetaPage: 3},
			ConfidenceScore: 0.8,
		}},
	})

	out := buf.String()
	assert.Contains(t, out, "Forty-two.")
	assert.Contains(t, out, "[1] guide.pdf p.3 (0.80)")
}

func TestNewAppCommands(t *testing.T) {
	cmd := NewApp().Command()
	for _, name := range []string{"serve", "ingest", "query", "config"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, sub.Name())
	}
	assert.NotNil(t, cmd.PersistentFlags().Lookup("vector.backend"))
	assert.NotNil(t, cmd.PersistentFlags().Lookup("embedding.model"))
}
