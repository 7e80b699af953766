package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/balkanpress/rassegna/internal/output"
	"github.com/balkanpress/rassegna/internal/search"
	"github.com/balkanpress/rassegna/internal/store"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	mode   string
	limit  int
	rerank bool
	sector string
	source string
	status string
	format string // "text", "json"
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search indexed articles",
		Long: `Search indexed articles with hybrid retrieval.

Combines BM25 keyword matching and semantic similarity with
reciprocal rank fusion. Use --mode to restrict to one source.

Examples:
  rassegna search "elezioni in serbia"
  rassegna search "banca centrale" --mode keyword --limit 5
  rassegna search "adesione europea" --sector politica --rerank
  rassegna search "inflazione" --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return runSearch(cmd.Context(), cmd, query, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.mode, "mode", "m", "hybrid", "Search mode: keyword, semantic, hybrid")
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Maximum number of results (0 = configured default)")
	cmd.Flags().BoolVar(&opts.rerank, "rerank", false, "Refine results with the cross-encoder reranker")
	cmd.Flags().StringVar(&opts.sector, "sector", "", "Filter by sector (e.g. politica, economia)")
	cmd.Flags().StringVar(&opts.source, "source", "", "Filter by source outlet")
	cmd.Flags().StringVar(&opts.status, "status", "", "Filter by workflow status: pending, approved, discarded, sent")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, query string, opts searchOptions) error {
	stack, err := buildStack(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = stack.Close() }()

	limit := opts.limit
	if limit <= 0 {
		limit = stack.Config.Search.DefaultLimit
	}

	resp, err := stack.Engine.Search(ctx, query, search.Options{
		Mode:           search.Mode(opts.mode),
		Limit:          limit,
		ApplyReranking: opts.rerank,
		Filter: store.Filter{
			Sector: opts.sector,
			Source: opts.source,
			Status: opts.status,
		},
	})
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if opts.format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}
	return formatSearchText(output.New(cmd.OutOrStdout()), query, resp)
}

func formatSearchText(out *output.Writer, query string, resp *search.Response) error {
	if resp.Degraded {
		out.Warning(fmt.Sprintf("degraded search: %s", resp.DegradedReason))
	}
	if len(resp.Results) == 0 {
		out.Statusf("", "No results found for %q", query)
		return nil
	}

	out.Statusf("🔍", "Found %d results for %q (%s):", len(resp.Results), query, resp.Mode)
	out.Newline()

	for _, r := range resp.Results {
		if resp.Reranked {
			out.Statusf("", "%d. %s  [%s/%s] (fused: %.4f, rerank: %.3f)",
				r.FinalRank, r.Title, r.Source, r.Sector, r.FusedScore, r.RerankScore)
		} else {
			out.Statusf("", "%d. %s  [%s/%s] (score: %.4f)",
				r.FinalRank, r.Title, r.Source, r.Sector, r.FusedScore)
		}
		out.Snippet(r.Snippet, 3)
		out.Newline()
	}
	return nil
}
