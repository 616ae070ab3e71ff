// Command icf converts ICF ClaML XML into a hierarchical JSON record
// tree and serves derived views (flatten, stats, child enumeration,
// search) over the exported records, from disk or over HTTP.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"github.com/politpatrick/icf-api/internal/api"
	"github.com/politpatrick/icf-api/internal/claml"
	"github.com/politpatrick/icf-api/internal/config"
	"github.com/politpatrick/icf-api/internal/export"
	"github.com/politpatrick/icf-api/internal/remote"
	"github.com/politpatrick/icf-api/internal/store"
	"github.com/politpatrick/icf-api/internal/views"
)

const version = "0.1.0"

// logger writes structured diagnostics to stderr; stdout is reserved
// for command output.
var logger = slog.New(slog.NewJSONHandler(os.Stderr, nil))

// CLI defines the command-line interface for icf.
var CLI struct {
	Export   ExportCmd   `cmd:"" help:"Export a ClaML XML document into a JSON record tree"`
	Flatten  FlattenCmd  `cmd:"" help:"Write the flattened single-file view of an export"`
	Stats    StatsCmd    `cmd:"" help:"Print aggregate statistics over an export"`
	Children ChildrenCmd `cmd:"" help:"List descendant codes up to a depth"`
	Search   SearchCmd   `cmd:"" help:"Substring search over record fields"`
	Fetch    FetchCmd    `cmd:"" help:"Fetch a single record by code"`
	Serve    ServeCmd    `cmd:"" help:"Start the HTTP API over an export"`
	Version  VersionCmd  `cmd:"" help:"Print version information"`
}

// SourceFlags selects where derived views read from: a local export
// directory or a remote export root.
type SourceFlags struct {
	Dir     string `help:"Local export directory" type:"path"`
	BaseURL string `name:"base-url" help:"Remote export root URL (overrides --dir)"`
}

// open builds the read source. The remote client is returned separately
// so callers can close it; it is nil for disk sources.
func (f *SourceFlags) open(cfg config.Config) (store.Source, *remote.Client, error) {
	if f.BaseURL != "" {
		client := remote.NewClient(f.BaseURL, cfg.HTTPTimeout, cfg.FetchRetries, logger)
		return client, client, nil
	}
	dir := f.Dir
	if dir == "" {
		dir = cfg.DataDir
	}
	if dir == "" {
		return nil, nil, fmt.Errorf("no source: pass --dir or --base-url, or set ICF_DATA_DIR")
	}
	return store.NewDir(dir), nil, nil
}

// ExportCmd exports a ClaML document into a record tree plus index.
type ExportCmd struct {
	XML  string `arg:"" help:"Path to the ClaML XML document" type:"existingfile"`
	Out  string `arg:"" help:"Destination directory" type:"path"`
	Lang string `help:"Rubric language" default:"de"`

	Flatten bool `help:"Also write icf_flat.json"`
	Stats   bool `help:"Print aggregate statistics after the export"`
	Clean   bool `help:"Delete the destination directory before writing"`
}

func (c *ExportCmd) Run() error {
	f, err := os.Open(c.XML)
	if err != nil {
		return fmt.Errorf("open source document: %w", err)
	}
	doc, parseErr := claml.Parse(f)
	f.Close()
	if parseErr != nil {
		return parseErr
	}

	if c.Clean {
		if err := os.RemoveAll(c.Out); err != nil {
			return fmt.Errorf("clean destination: %w", err)
		}
	}
	if err := os.MkdirAll(c.Out, 0o755); err != nil {
		return fmt.Errorf("create destination: %w", err)
	}

	index, report, err := export.New(doc, c.Lang, logger).Run(c.Out)
	if err != nil {
		return err
	}
	logger.Info("export complete",
		"records", report.Written,
		"missing_children", len(report.MissingChildren),
		"dest", c.Out,
	)

	ctx := context.Background()
	builder := views.NewBuilder(store.NewDir(c.Out), logger)

	if c.Flatten {
		n, err := builder.WriteFlat(ctx, c.Out)
		if err != nil {
			return err
		}
		logger.Info("flat view written", "records", n, "file", views.FlatFile)
	}
	if c.Stats {
		stats, err := builder.Stats(ctx)
		if err != nil {
			return err
		}
		if err := printJSON(stats); err != nil {
			return err
		}
	}

	return printJSON(index)
}

// FlattenCmd rebuilds icf_flat.json from an existing export.
type FlattenCmd struct {
	Dir string `arg:"" help:"Export directory" type:"existingdir"`
}

func (c *FlattenCmd) Run() error {
	builder := views.NewBuilder(store.NewDir(c.Dir), logger)
	n, err := builder.WriteFlat(context.Background(), c.Dir)
	if err != nil {
		return err
	}
	logger.Info("flat view written", "records", n, "file", views.FlatFile)
	return nil
}

// StatsCmd prints total record count, maximum depth and mean child count.
type StatsCmd struct {
	SourceFlags
}

func (c *StatsCmd) Run() error {
	cfg := config.Load()
	src, client, err := c.open(cfg)
	if err != nil {
		return err
	}
	if client != nil {
		defer client.Close()
	}

	stats, err := views.NewBuilder(src, logger).Stats(context.Background())
	if err != nil {
		return err
	}
	return printJSON(stats)
}

// ChildrenCmd lists descendant codes of one class.
type ChildrenCmd struct {
	SourceFlags
	Code  string `arg:"" help:"Parent code"`
	Depth int    `help:"Hierarchy levels to descend (1 = direct children)" default:"1"`
}

func (c *ChildrenCmd) Run() error {
	cfg := config.Load()
	src, client, err := c.open(cfg)
	if err != nil {
		return err
	}
	if client != nil {
		defer client.Close()
	}

	children, err := views.NewBuilder(src, logger).Children(context.Background(), c.Code, c.Depth)
	if err != nil {
		return err
	}
	for _, child := range children {
		fmt.Println(child)
	}
	return nil
}

// SearchCmd searches record fields for a substring.
type SearchCmd struct {
	SourceFlags
	Query  string   `arg:"" help:"Search term (matched case-insensitively)"`
	Fields []string `help:"Record fields to search" default:"preferred,definitions,coding-hints"`
	Limit  int      `help:"Maximum number of results" default:"20"`
}

func (c *SearchCmd) Run() error {
	cfg := config.Load()
	src, client, err := c.open(cfg)
	if err != nil {
		return err
	}
	if client != nil {
		defer client.Close()
	}

	results, err := views.NewBuilder(src, logger).Search(context.Background(), c.Query, c.Fields, c.Limit)
	if err != nil {
		return err
	}
	return printJSON(results)
}

// FetchCmd prints a single record.
type FetchCmd struct {
	SourceFlags
	Code string `arg:"" help:"Code to fetch"`
}

func (c *FetchCmd) Run() error {
	cfg := config.Load()
	src, client, err := c.open(cfg)
	if err != nil {
		return err
	}
	if client != nil {
		defer client.Close()
	}

	rec, err := src.Get(context.Background(), c.Code)
	if err != nil {
		return err
	}
	return printJSON(rec)
}

// ServeCmd runs the HTTP API.
type ServeCmd struct {
	SourceFlags
	Port string `help:"Listen port (overrides ICF_PORT)"`
}

func (c *ServeCmd) Run() error {
	cfg := config.Load()
	if c.Dir != "" {
		cfg.DataDir = c.Dir
	}
	if c.BaseURL != "" {
		cfg.BaseURL = c.BaseURL
	}
	if c.Port != "" {
		cfg.Port = c.Port
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	var (
		src    store.Source
		fetch  *remote.FetchStats
		client *remote.Client
	)
	if cfg.BaseURL != "" {
		client = remote.NewClient(cfg.BaseURL, cfg.HTTPTimeout, cfg.FetchRetries, logger)
		src = client
		fetch = client.Stats()
	} else {
		src = store.NewDir(cfg.DataDir)
	}

	srv := api.NewServer(src, fetch, logger, cfg)
	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logger.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)

		if client != nil {
			client.Close()
		}
	}()

	logger.Info("starting icf api", "port", cfg.Port)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// VersionCmd prints version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Printf("icf %s\n", version)
	return nil
}

// printJSON writes v to stdout as indented JSON with HTML escaping off.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	slog.SetDefault(logger)

	ctx := kong.Parse(&CLI,
		kong.Name("icf"),
		kong.Description("ICF ClaML → hierarchical JSON export and read API"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
