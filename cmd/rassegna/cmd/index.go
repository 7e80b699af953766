package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/balkanpress/rassegna/internal/output"
	"github.com/balkanpress/rassegna/internal/store"
)

// indexBatchSize bounds how many articles are embedded and written per
// round trip.
const indexBatchSize = 100

func newIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index <articles.json>",
		Short: "Index articles from a JSON file",
		Long: `Index articles from a JSON file containing an array of article
objects. Existing article IDs are updated in place.

Example:
  rassegna index articoli.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndex(cmd.Context(), cmd, args[0])
		},
	}
	return cmd
}

func runIndex(ctx context.Context, cmd *cobra.Command, path string) error {
	out := output.New(cmd.OutOrStdout())

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read articles file: %w", err)
	}
	var articles []*store.Article
	if err := json.Unmarshal(data, &articles); err != nil {
		return fmt.Errorf("parse articles file: %w", err)
	}
	if len(articles) == 0 {
		out.Warning("no articles in file")
		return nil
	}
	for _, a := range articles {
		if a.ID == "" {
			a.ID = uuid.New().String()
		}
	}

	stack, err := buildStack(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = stack.Close() }()

	for start := 0; start < len(articles); start += indexBatchSize {
		end := start + indexBatchSize
		if end > len(articles) {
			end = len(articles)
		}
		if err := stack.Engine.Index(ctx, articles[start:end]); err != nil {
			return fmt.Errorf("index articles %d-%d: %w", start, end-1, err)
		}
	}

	out.Successf("Indexed %d articles from %s", len(articles), path)
	return nil
}
