package app

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/kart-io/logger"
	"github.com/spf13/cobra"

	"github.com/kart-io/pdfrag/cmd/pdfrag/app/options"
	"github.com/kart-io/pdfrag/internal/model"
	"github.com/kart-io/pdfrag/pkg/utils/json"
)

type queryFlags struct {
	collection string
	topK       int
	jsonOutput bool
}

func newQueryCommand(opts *options.ServerOptions) *cobra.Command {
	f := &queryFlags{}

	cmd := &cobra.Command{
		Use:     "query QUESTION",
		Short:   "Ask a question against the indexed documents",
		Example: `  pdfrag query "What is the refund policy?" --top-k 3`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, opts, f, strings.Join(args, " "))
		},
	}

	cmd.Flags().StringVar(&f.collection, "collection", "", "Collection to search; defaults to rag.collection.")
	cmd.Flags().IntVarP(&f.topK, "top-k", "k", 0, "Number of chunks to retrieve; defaults to rag.top-k.")
	cmd.Flags().BoolVar(&f.jsonOutput, "json", false, "Print the result as JSON.")

	return cmd
}

func runQuery(cmd *cobra.Command, opts *options.ServerOptions, f *queryFlags, question string) error {
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

	res, err := rt.Service.Query(ctx, question, f.topK, f.collection)
	if err != nil {
		return err
	}

	if f.jsonOutput {
		out, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return err
	}
	printAnswer(cmd.OutOrStdout(), res)
	return nil
}

func printAnswer(w io.Writer, res *model.QueryResult) {
	_, _ = fmt.Fprintln(w, res.Answer)
	if len(res.Sources) == 0 {
		return
	}
	_, _ = fmt.Fprintf(w, "\nSources (confidence %.2f):\n", res.ConfidenceScore)
	for i, s := range res.Sources {
		filename, _ := s.Metadata[model.MetaFilename].(string)
		_, _ = fmt.Fprintf(w, "  [%d] %s p.%d (%.2f)\n", i+1, filename, model.PageOf(s.Metadata), s.ConfidenceScore)
	}
}
