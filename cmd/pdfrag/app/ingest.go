package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/kart-io/logger"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kart-io/pdfrag/cmd/pdfrag/app/options"
	"github.com/kart-io/pdfrag/internal/model"
	"github.com/kart-io/pdfrag/internal/pkg/rag/docutil"
	"github.com/kart-io/pdfrag/pkg/infra/pool"
)

// ingester is the part of the RAG service used by the ingest command.
type ingester interface {
	Ingest(ctx context.Context, filename string, content []byte, collection string) (*model.IngestResult, error)
}

type ingestFlags struct {
	collection string
	workers    int
	excludes   []string
}

// fileResult is the outcome of ingesting one file.
type fileResult struct {
	Path   string
	Result *model.IngestResult
	Err    error
}

// ingestSummary aggregates the outcome of an ingest run.
type ingestSummary struct {
	Files     int
	Succeeded int
	Chunks    int
	Failures  []fileResult
}

// Err returns a non-nil error when at least one file failed.
func (s ingestSummary) Err() error {
	if len(s.Failures) == 0 {
		return nil
	}
	return fmt.Errorf("%d of %d files failed to ingest", len(s.Failures), s.Files)
}

func newIngestCommand(opts *options.ServerOptions) *cobra.Command {
	f := &ingestFlags{workers: 4}

	cmd := &cobra.Command{
		Use:   "ingest [paths or globs...]",
		Short: "Index local PDF files into the vector store",
		Long: `Index local PDF files into the vector store.

Arguments may be files, directories (searched recursively for *.pdf) or
doublestar patterns such as "docs/**/*.pdf".`,
		Example: `  pdfrag ingest ./papers
  pdfrag ingest "docs/**/*.pdf" --exclude "**/drafts/**" --workers 8`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd, opts, f, args)
		},
	}

	cmd.Flags().StringVar(&f.collection, "collection", "", "Target collection; defaults to rag.collection.")
	cmd.Flags().IntVarP(&f.workers, "workers", "w", f.workers, "Number of files ingested concurrently.")
	cmd.Flags().StringSliceVar(&f.excludes, "exclude", nil, "Doublestar patterns of files to skip.")

	return cmd
}

func runIngest(cmd *cobra.Command, opts *options.ServerOptions, f *ingestFlags, args []string) error {
	files, err := docutil.FindFiles(args, f.excludes)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no PDF files matched %v", args)
	}

	cfg, err := opts.Config()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	ctx := setupSignalContext()
	rt, err := cfg.NewRuntime(ctx)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = rt.Close(closeCtx)
		_ = logger.Flush()
	}()

	p, err := pool.NewPool("ingest", pool.IngestPool, pool.IngestPoolConfig(f.workers))
	if err != nil {
		return err
	}
	defer p.Release()

	collection := f.collection
	if collection == "" {
		collection = opts.RAGOptions.Collection
	}

	logger.Infow("Ingesting documents",
		"files", len(files),
		"collection", collection,
		"workers", p.Cap(),
	)

	bar := newProgressBar(cmd.ErrOrStderr(), len(files))
	start := time.Now()
	summary := ingestFiles(ctx, rt.Service, p, files, collection, func(fileResult) {
		_ = bar.Add(1)
	})
	_ = bar.Finish()

	printSummary(cmd.OutOrStdout(), summary, time.Since(start))
	logger.Infow("Ingest finished",
		"files", summary.Files,
		"succeeded", summary.Succeeded,
		"failed", len(summary.Failures),
		"chunks", summary.Chunks,
		"pool", p.Stats(),
	)
	return summary.Err()
}

// ingestFiles reads and ingests files concurrently on p. onDone is invoked
// once per file, serialized.
func ingestFiles(
	ctx context.Context,
	svc ingester,
	p *pool.Pool,
	files []string,
	collection string,
	onDone func(fileResult),
) ingestSummary {
	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		summary = ingestSummary{Files: len(files)}
	)

	record := func(r fileResult) {
		mu.Lock()
		defer mu.Unlock()
		if r.Err != nil {
			summary.Failures = append(summary.Failures, r)
			logger.Warnw("failed to ingest file", "path", r.Path, "error", r.Err.Error())
		} else {
			summary.Succeeded++
			summary.Chunks += r.Result.ChunksCreated
		}
		if onDone != nil {
			onDone(r)
		}
	}

	for _, path := range files {
		path := path
		wg.Add(1)
		err := p.Submit(func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					record(fileResult{Path: path, Err: fmt.Errorf("panic while ingesting: %v", r)})
				}
			}()
			record(ingestFile(ctx, svc, path, collection))
		})
		if err != nil {
			wg.Done()
			record(fileResult{Path: path, Err: err})
		}
	}
	wg.Wait()

	return summary
}

func ingestFile(ctx context.Context, svc ingester, path, collection string) fileResult {
	if err := ctx.Err(); err != nil {
		return fileResult{Path: path, Err: err}
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return fileResult{Path: path, Err: err}
	}
	res, err := svc.Ingest(ctx, filepath.Base(path), content, collection)
	if err != nil {
		return fileResult{Path: path, Err: err}
	}
	return fileResult{Path: path, Result: res}
}

func newProgressBar(w io.Writer, total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowBytes(false),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetElapsedTime(true),
		progressbar.OptionSetDescription("[cyan]Ingesting[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			_, _ = fmt.Fprintln(w)
		}),
	)
}

func printSummary(w io.Writer, s ingestSummary, elapsed time.Duration) {
	_, _ = fmt.Fprintf(w, "Ingested %d/%d files (%d chunks) in %s\n",
		s.Succeeded, s.Files, s.Chunks, elapsed.Round(time.Millisecond))
	for _, f := range s.Failures {
		_, _ = fmt.Fprintf(w, "  FAILED %s: %v\n", f.Path, f.Err)
	}
}
