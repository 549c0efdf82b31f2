package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pricelens/backend/config"
	"github.com/pricelens/backend/internal/app"
	"github.com/pricelens/backend/internal/domain"
	"github.com/pricelens/backend/internal/logger"
)

type options struct {
	cfgPath   string
	search    string
	sortBy    string
	direction string
	asJSON    bool
	debug     bool

	// extractor replaces the Firecrawl client in tests
	extractor domain.Extractor
}

// NewRootCmd builds the pricecheck command
func NewRootCmd() *cobra.Command {
	return newRootCmd(&options{})
}

func newRootCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pricecheck [upc...]",
		Short: "Compare a product's price across retailers",
		Long: `pricecheck aggregates each UPC across the configured retailers and prints
a comparison table with percentage deltas against the baseline retailer.
Without arguments the configured default UPC is checked.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts, args, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.cfgPath, "config", "", "config file (default searches ./config.yaml, ./config/, /etc/pricelens/)")
	cmd.Flags().StringVar(&opts.search, "search", "", "only show products whose name contains this text")
	cmd.Flags().StringVar(&opts.sortBy, "sort", "productName", "sort key: productName, identifier, lastUpdated, baselinePrice, retailerPrice:<key>, delta:<key>")
	cmd.Flags().StringVar(&opts.direction, "direction", "asc", "sort direction: asc or desc")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "print comparison rows as JSON")
	cmd.Flags().BoolVar(&opts.debug, "debug", false, "enable debug logging")

	return cmd
}

// Execute runs the root command until it finishes or the process is interrupted
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, opts *options, upcs []string, out io.Writer) error {
	cfg, err := config.LoadFrom(opts.cfgPath)
	if err != nil {
		return err
	}

	level := "warn"
	if opts.debug {
		level = "debug"
	}
	log, err := logger.New(level, "console")
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	application, err := app.New(ctx, cfg, opts.extractor, log)
	if err != nil {
		return err
	}
	defer func() { _ = application.Close() }()

	query, err := application.Comparer.ParseQuery(opts.search, opts.sortBy, opts.direction)
	if err != nil {
		return err
	}

	if len(upcs) == 0 {
		upcs = []string{cfg.Aggregation.DefaultUPC}
	}
	records := application.Aggregator.AggregateMany(ctx, upcs)
	log.Debug("pricecheck.aggregated", zap.Int("requested", len(upcs)), zap.Int("records", len(records)))

	rows := application.Comparer.Compare(records, query)
	if opts.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}

	if err := renderTable(out, rows, application.Comparer.Retailers()); err != nil {
		return fmt.Errorf("render table: %w", err)
	}
	return nil
}
