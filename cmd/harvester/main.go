package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mmcdole/harvester/internal/adapter"
	"github.com/mmcdole/harvester/internal/adapter/catalog"
	"github.com/mmcdole/harvester/internal/adapter/remote"
	"github.com/mmcdole/harvester/internal/codec"
	"github.com/mmcdole/harvester/internal/domain"
	"github.com/mmcdole/harvester/internal/extract"
	"github.com/mmcdole/harvester/internal/metrics"
	"github.com/mmcdole/harvester/internal/search"
	"github.com/mmcdole/harvester/internal/service"
	"github.com/mmcdole/harvester/internal/store"
	"github.com/mmcdole/harvester/internal/store/mongostore"
	"github.com/mmcdole/harvester/internal/tui"
	"github.com/mmcdole/harvester/internal/tui/styles"
	"github.com/spf13/pflag"
	"golang.org/x/term"
)

// Version is set at build time via -ldflags
var Version = "dev"

const usage = `Usage: harvester [flags] [command]

Commands:
  run             harvest comments for every catalog item (default)
  search <query>  fuzzy search stored records
  stats           count stored records

Flags:
`

type options struct {
	configPath string
	tuiMode    string
	limit      int
	field      string
}

func main() {
	defaults := adapter.DefaultConfig()

	flags := pflag.NewFlagSet("harvester", pflag.ContinueOnError)
	flags.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flags.PrintDefaults()
	}

	var opts options
	var showVersion bool
	flags.StringVarP(&opts.configPath, "config", "c", "", "config file (default: search ./config, ~/.config/harvester, .)")
	flags.Int("batch-size", defaults.Harvest.BatchSize, "catalog items per batch")
	flags.Int("workers", defaults.Harvest.Workers, "items paginated concurrently")
	flags.String("metrics-addr", "", "serve Prometheus metrics on this address")
	flags.String("log-level", defaults.Logging.Level, "log level: debug, info, warn, error")
	flags.String("log-file", "", "write JSON logs to this file instead of stderr")
	flags.StringVar(&opts.tuiMode, "tui", "auto", "progress view: auto, on, off")
	flags.IntVarP(&opts.limit, "limit", "n", 20, "search: maximum results")
	flags.StringVar(&opts.field, "field", search.DefaultTextField, "search: record field to match")
	flags.BoolVarP(&showVersion, "version", "v", false, "print version")

	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		os.Exit(2)
	}

	if showVersion {
		fmt.Printf("harvester %s\n", Version)
		return
	}

	command, args := "run", flags.Args()
	if len(args) > 0 {
		command, args = args[0], args[1:]
	}

	if err := run(command, args, opts, flags); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(command string, args []string, opts options, flags *pflag.FlagSet) error {
	// Load configuration
	cfg, err := adapter.LoadConfig(opts.configPath, flags)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	useTUI := false
	if command == "run" {
		useTUI, err = tuiEnabled(opts.tuiMode)
		if err != nil {
			return err
		}
		// Keep log lines from tearing through the progress view
		if useTUI && cfg.Logging.File == "" {
			cfg.Logging.File = adapter.DefaultLogPath()
		}
	}

	// Setup logger
	logger, logCloser, err := adapter.SetupLogger(&cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: logging disabled: %v\n", err)
		logger, logCloser = adapter.NullLogger(), nil
	}
	if logCloser != nil {
		defer logCloser.Close()
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch command {
	case "run":
		return runHarvest(ctx, cfg, useTUI, logger)
	case "search":
		if len(args) == 0 {
			return fmt.Errorf("search requires a query")
		}
		return runSearch(cfg, strings.Join(args, " "), opts, logger)
	case "stats":
		return runStats(ctx, cfg)
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

func tuiEnabled(mode string) (bool, error) {
	switch mode {
	case "on":
		return true, nil
	case "off":
		return false, nil
	case "auto":
		return term.IsTerminal(int(os.Stdout.Fd())), nil
	default:
		return false, fmt.Errorf("--tui must be auto, on or off, got %q", mode)
	}
}

// runHarvest wires the pipeline and walks the whole catalog once
func runHarvest(ctx context.Context, cfg *adapter.Config, useTUI bool, logger *slog.Logger) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	tc, err := codec.New(cfg.Remote.Encoding)
	if err != nil {
		return err
	}

	logger.Info("starting harvester", "version", Version, "encoding", tc.Name())

	client, err := remote.NewClient(remote.Config{
		URLTemplate: cfg.Remote.URLTemplate,
		PageSize:    cfg.Remote.PageSize,
		Timeout:     cfg.Remote.Timeout,
		UserAgent:   cfg.Remote.UserAgent,
		Headers:     cfg.Remote.Headers,
	}, tc, logger)
	if err != nil {
		return fmt.Errorf("failed to create page client: %w", err)
	}

	extractor := extract.New(extract.Config{
		RecordsField:  cfg.Remote.RecordsField,
		IdentityField: cfg.Remote.IdentityField,
	}, logger)

	cat, err := catalog.Open(ctx, catalog.Config{
		Driver:      cfg.Catalog.Driver,
		DSN:         cfg.Catalog.DSN,
		Table:       cfg.Catalog.Table,
		IDColumn:    cfg.Catalog.IDColumn,
		CountColumn: cfg.Catalog.CountColumn,
	})
	if err != nil {
		return fmt.Errorf("failed to open catalog: %w", err)
	}
	defer cat.Close()

	sink, err := openSink(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open sink: %w", err)
	}
	defer sink.Close()

	collector := metrics.NewCollector(Version)
	if cfg.Metrics.Addr != "" {
		go func() {
			if err := collector.Serve(ctx, cfg.Metrics.Addr, logger); err != nil {
				logger.Error("metrics server failed", "error", err)
			}
		}()
	}

	observers := domain.Observers{collector}

	var events chan tui.Event
	if useTUI {
		events = make(chan tui.Event, 256)
		observers = append(observers, tui.NewChannelObserver(events))
	}

	writer := service.NewWriter(sink, logger)
	paginator := service.NewPaginator(client, extractor, writer, observers, logger)
	walker := service.NewWalker(cat, paginator, service.WalkerConfig{
		BatchSize: cfg.Harvest.BatchSize,
		Workers:   cfg.Harvest.Workers,
	}, observers, logger)

	var result domain.HarvestResult
	if useTUI {
		result, err = runWithTUI(ctx, walker, events, logger)
	} else {
		result, err = walker.Run(ctx)
	}

	printSummary(result, err)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("harvest interrupted")
		}
		return err
	}

	logger.Info("shutting down")
	return nil
}

// runWithTUI runs the walker in the background behind the progress view
func runWithTUI(ctx context.Context, walker *service.Walker, events chan tui.Event, logger *slog.Logger) (domain.HarvestResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(tui.NewModel(events, cancel))

	type outcome struct {
		result domain.HarvestResult
		err    error
	}
	done := make(chan outcome, 1)

	go func() {
		res, err := walker.Run(ctx)
		close(events)
		p.Send(tui.DoneMsg{Result: res, Err: err})
		done <- outcome{res, err}
	}()

	logger.Info("starting TUI")
	if _, err := p.Run(); err != nil {
		logger.Error("TUI error", "error", err)
		cancel()
	}

	// The view may exit before the harvest returns; keep the observer unblocked.
	go func() {
		for range events {
		}
	}()

	out := <-done
	return out.result, out.err
}

func openSink(ctx context.Context, cfg *adapter.Config) (domain.RecordSink, error) {
	switch cfg.Sink.Type {
	case adapter.SinkTypeMongo:
		return mongostore.Open(ctx, mongostore.Config{
			URI:        cfg.Sink.Mongo.URI,
			Host:       cfg.Sink.Mongo.Host,
			Port:       cfg.Sink.Mongo.Port,
			Database:   cfg.Sink.Mongo.Database,
			Collection: cfg.Sink.Mongo.Collection,
			Timeout:    cfg.Remote.Timeout,
		})
	default:
		return store.NewRecordStore(cfg.Sink.Bolt.Path, cfg.Sink.Bolt.Bucket)
	}
}

func printSummary(res domain.HarvestResult, err error) {
	status := styles.SuccessStyle.Render("✓ harvest complete")
	switch {
	case errors.Is(err, context.Canceled):
		status = styles.WarnStyle.Render("harvest interrupted")
	case err != nil:
		status = styles.ErrorStyle.Render("✗ harvest failed")
	}

	fmt.Println(status)
	fmt.Printf("  %s %d\n", styles.LabelStyle.Render("Batches"), res.Batches)
	fmt.Printf("  %s %d\n", styles.LabelStyle.Render("Items"), res.Items)
	fmt.Printf("  %s %d\n", styles.LabelStyle.Render("Records"), res.Records)
	if res.Discrepancies > 0 {
		fmt.Printf("  %s %s\n", styles.LabelStyle.Render("Short items"),
			styles.WarnStyle.Render(fmt.Sprint(res.Discrepancies)))
	}
}

// runSearch fuzzy-matches stored records in the bolt sink
func runSearch(cfg *adapter.Config, query string, opts options, logger *slog.Logger) error {
	if cfg.Sink.Type != adapter.SinkTypeBolt {
		return fmt.Errorf("search reads the bolt sink; sink.type is %q", cfg.Sink.Type)
	}

	rs, err := store.NewRecordStore(cfg.Sink.Bolt.Path, cfg.Sink.Bolt.Bucket)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer rs.Close()

	svc := search.NewService(opts.field, logger)
	idx, err := svc.Build(rs)
	if err != nil {
		return err
	}

	results := svc.Search(idx, query, opts.limit)
	if len(results) == 0 {
		fmt.Println(styles.DimStyle.Render("no matches"))
		return nil
	}

	for _, r := range results {
		id := r.Identity
		if id == "" {
			id = "-"
		}
		fmt.Printf("%s  %s\n",
			styles.IdentityStyle.Render(id),
			search.Highlight(r.Text, r.MatchedIndexes, styles.MatchHighlightStyle.Render))
	}
	return nil
}

// runStats prints the number of stored documents
func runStats(ctx context.Context, cfg *adapter.Config) error {
	switch cfg.Sink.Type {
	case adapter.SinkTypeMongo:
		ms, err := mongostore.Open(ctx, mongostore.Config{
			URI:        cfg.Sink.Mongo.URI,
			Host:       cfg.Sink.Mongo.Host,
			Port:       cfg.Sink.Mongo.Port,
			Database:   cfg.Sink.Mongo.Database,
			Collection: cfg.Sink.Mongo.Collection,
		})
		if err != nil {
			return err
		}
		defer ms.Close()

		n, err := ms.Count(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("%s %d\n", styles.LabelStyle.Render("Documents"), n)

	default:
		rs, err := store.NewRecordStore(cfg.Sink.Bolt.Path, cfg.Sink.Bolt.Bucket)
		if err != nil {
			return err
		}
		defer rs.Close()
		fmt.Printf("%s %d\n", styles.LabelStyle.Render("Documents"), rs.Count())
	}
	return nil
}
