package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/yishak-cs/shop-recommender/internal/database"
	"github.com/yishak-cs/shop-recommender/internal/logging"
	"github.com/yishak-cs/shop-recommender/internal/recommend"
)

type options struct {
	snapshotPath string
	userID       string
	k            int
	n            int
	workers      int
	jsonOutput   bool
	verbose      bool
}

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:          "recommend",
		Short:        "Recommend products from a JSON shop snapshot",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecommend(cmd.Context(), opts, out)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.snapshotPath, "snapshot", "", "Path to a JSON snapshot of users, products and orders")
	flags.StringVar(&opts.userID, "user", "", "Target user ID")
	flags.IntVar(&opts.k, "k", 3, "Number of nearest neighbors")
	flags.IntVar(&opts.workers, "workers", 1, "Goroutines used to build brand vectors")
	flags.BoolVar(&opts.jsonOutput, "json", false, "Print results as JSON")
	flags.BoolVar(&opts.verbose, "verbose", false, "Log engine debug output to stderr")
	_ = rootCmd.MarkPersistentFlagRequired("snapshot")
	_ = rootCmd.MarkPersistentFlagRequired("user")

	rootCmd.Flags().IntVar(&opts.n, "n", 5, "Number of products to recommend")

	neighborsCmd := &cobra.Command{
		Use:   "neighbors",
		Short: "List the user's nearest neighbors by brand taste",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNeighbors(cmd.Context(), opts, out)
		},
	}
	rootCmd.AddCommand(neighborsCmd)

	return rootCmd
}

func newEngine(opts *options) (*recommend.Engine, error) {
	logger := zerolog.Nop()
	if opts.verbose {
		logging.Init(logging.Config{Level: "debug", Format: "console"})
		logger = logging.Logger()
	}
	return recommend.NewEngine(recommend.Config{Workers: opts.workers}, logger)
}

func runRecommend(ctx context.Context, opts *options, out io.Writer) error {
	snap, err := database.ReadSnapshotFile(opts.snapshotPath)
	if err != nil {
		return err
	}

	engine, err := newEngine(opts)
	if err != nil {
		return err
	}
	defer engine.Close()

	recommendations, err := engine.Recommend(ctx, opts.userID, snap, opts.k, opts.n)
	if err != nil {
		return err
	}

	if opts.jsonOutput {
		return writeJSON(out, recommendations)
	}

	if len(recommendations) == 0 {
		fmt.Fprintf(out, "No recommendations for %s\n", opts.userID)
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tPRODUCT\tNAME\tBRAND\tSTRATEGY\tWHY")
	for i, rec := range recommendations {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			i+1, rec.Product.ID, rec.Product.Name, rec.Product.BrandID, rec.Strategy, rec.Explanation)
	}
	return w.Flush()
}

func runNeighbors(ctx context.Context, opts *options, out io.Writer) error {
	snap, err := database.ReadSnapshotFile(opts.snapshotPath)
	if err != nil {
		return err
	}

	engine, err := newEngine(opts)
	if err != nil {
		return err
	}
	defer engine.Close()

	neighbors, err := engine.Neighbors(ctx, opts.userID, snap, opts.k)
	if err != nil {
		return err
	}

	if opts.jsonOutput {
		return writeJSON(out, neighbors)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "USER\tDISTANCE")
	for _, nb := range neighbors {
		fmt.Fprintf(w, "%s\t%.3f\n", nb.UserID, nb.Distance)
	}
	return w.Flush()
}

func writeJSON(out io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}
