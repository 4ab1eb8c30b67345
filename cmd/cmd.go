// Package cmd provides CLI command implementations for appgraph.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/fatih/color"

	"github.com/dmaclachlan/appgraph/internal/config"
	"github.com/dmaclachlan/appgraph/internal/graph"
	"github.com/dmaclachlan/appgraph/internal/ingestion"
	"github.com/dmaclachlan/appgraph/internal/query"
	"github.com/dmaclachlan/appgraph/internal/storage"
	"github.com/dmaclachlan/appgraph/mcp"
)

// Version is set at build time via ldflags.
var Version = "dev"

// BuildCmd scans an application definition into a cached graph.
type BuildCmd struct {
	Path    string `arg:"" optional:"" default:"." help:"Path to the application definition root"`
	NoCache bool   `help:"Build without writing the cache"`
}

// Run executes the build command.
func (c *BuildCmd) Run() error {
	ctx := context.Background()
	root, err := filepath.Abs(c.Path)
	if err != nil {
		return fmt.Errorf("resolving path: %w", err)
	}

	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("accessing %s: %w", root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", root)
	}

	settings, err := config.Load(root)
	if err != nil {
		return err
	}

	color.Green("Building graph for %s", root)

	var store ingestion.GraphSaver
	if !c.NoCache {
		s, err := openCache(root, settings, true)
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }()
		store = s
	}

	progress := func(phase string, pct float64) {
		fmt.Printf("\r\033[K%s (%.0f%%)", phase, pct*100)
	}

	_, result, err := ingestion.Build(ctx, root, settings, store, progress)
	if err != nil {
		return fmt.Errorf("building graph: %w", err)
	}
	fmt.Println() // end the \r progress line

	color.Green("\n✓ Build complete")
	fmt.Printf("  Files:      %d\n", result.Files)
	fmt.Printf("  Nodes:      %d\n", result.Nodes)
	fmt.Printf("  Edges:      %d\n", result.Edges)
	fmt.Printf("  Undefined:  %d\n", result.Undefined)
	if result.Skipped > 0 {
		fmt.Printf("  Skipped:    %d\n", result.Skipped)
	}
	fmt.Printf("  Duration:   %.2fs\n", result.Duration.Seconds())

	return nil
}

// SearchCmd matches nodes against a case-insensitive regex.
type SearchCmd struct {
	Pattern string   `arg:"" help:"Regular expression matched against node data"`
	Edges   bool     `help:"Also match against edge data"`
	Ignore  []string `help:"Node kinds to leave out"`
}

// Run executes the search command.
func (c *SearchCmd) Run() error {
	ctx := context.Background()
	g, settings, err := loadGraph(ctx)
	if err != nil {
		return err
	}

	matches, err := query.Select(g, c.Pattern, query.Options{Ignore: c.Ignore, IncludeEdges: c.Edges})
	if err != nil {
		return err
	}

	if len(matches) == 0 {
		fmt.Println("No matches found")
		return nil
	}

	for i, m := range matches {
		fmt.Printf("%3d %s\n", i, renderData(settings, m.Data))
	}
	return nil
}

// MissingCmd reports nodes referenced by edges but never defined by a
// record.
type MissingCmd struct{}

// Run executes the missing command.
func (c *MissingCmd) Run() error {
	ctx := context.Background()
	g, _, err := loadGraph(ctx)
	if err != nil {
		return err
	}

	missing := ingestion.MissingData(g)
	if len(missing) == 0 {
		fmt.Println("Every referenced node has data")
		return nil
	}

	renderMissing(os.Stdout, missing)
	return nil
}

// OrphansCmd reports defined artifacts that nothing references.
type OrphansCmd struct{}

// Run executes the orphans command.
func (c *OrphansCmd) Run() error {
	ctx := context.Background()
	g, settings, err := loadGraph(ctx)
	if err != nil {
		return err
	}

	orphans := ingestion.Orphans(g)
	if len(orphans) == 0 {
		fmt.Println("Every artifact is referenced")
		return nil
	}

	renderOrphans(os.Stdout, settings, orphans)
	return nil
}

// StatusCmd shows cache status for the current definition root.
type StatusCmd struct{}

// Run executes the status command.
func (c *StatusCmd) Run() error {
	ctx := context.Background()
	root, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting working directory: %w", err)
	}

	settings, err := config.Load(root)
	if err != nil {
		return err
	}

	store, err := openCache(root, settings, false)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	meta, err := store.Meta(ctx)
	if errors.Is(err, storage.ErrEmpty) {
		return fmt.Errorf("cache at %s holds no graph. Run 'appgraph build' first", root)
	}
	if err != nil {
		return err
	}

	fmt.Printf("Graph status for %s\n", root)
	fmt.Printf("  Nodes:      %d\n", meta.Nodes)
	fmt.Printf("  Edges:      %d\n", meta.Edges)
	fmt.Printf("  Cached at:  %s\n", meta.SavedAt.Format(time.RFC3339))

	return nil
}

// WatchCmd rebuilds the graph whenever records change.
type WatchCmd struct{}

// Run executes the watch command.
func (c *WatchCmd) Run() error {
	root, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting working directory: %w", err)
	}

	settings, err := config.Load(root)
	if err != nil {
		return err
	}

	store, err := openCache(root, settings, true)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Ctrl+C cancels the watch loop.
	go func() {
		<-osSignalChannel()
		fmt.Println("\nStopping watch...")
		cancel()
	}()

	session := ingestion.NewSession(root, settings)
	progress := func(phase string, pct float64) {
		fmt.Printf("\r\033[K%s (%.0f%%)", phase, pct*100)
	}

	result, err := session.Rebuild(ctx, store, progress)
	if err != nil {
		return fmt.Errorf("building graph: %w", err)
	}
	fmt.Println()
	color.Green("✓ Build complete: %d nodes, %d edges", result.Nodes, result.Edges)
	fmt.Printf("\nWatching %s for changes (Ctrl+C to stop)\n\n", root)

	err = ingestion.Watch(ctx, session, store, func(result *ingestion.BuildResult, err error) {
		if err != nil {
			color.Red("Rebuild failed: %v", err)
			return
		}
		color.Green("Rebuilt: %d nodes, %d edges (%.2fs)", result.Nodes, result.Edges, result.Duration.Seconds())
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("watch error: %w", err)
	}

	fmt.Println("Watch stopped.")
	return nil
}

// ServeCmd starts the MCP server with optional watch mode.
type ServeCmd struct {
	Watch bool `short:"w" help:"Rebuild the graph when records change"`
}

// Run executes the serve command.
func (c *ServeCmd) Run() error {
	ctx := context.Background()
	root, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting working directory: %w", err)
	}

	settings, err := config.Load(root)
	if err != nil {
		return err
	}

	store, err := openCache(root, settings, true)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	session := ingestion.NewSession(root, settings)
	g, err := store.Load(ctx)
	switch {
	case errors.Is(err, storage.ErrEmpty):
		// Nothing cached yet; build before serving.
		if _, err := session.Rebuild(ctx, store, nil); err != nil {
			return fmt.Errorf("building graph: %w", err)
		}
	case err != nil:
		return fmt.Errorf("loading cached graph: %w", err)
	default:
		session.Swap(g, nil)
	}

	server := mcp.NewServer(session, settings)

	if c.Watch {
		fmt.Fprintln(os.Stderr, "Starting MCP server with watch mode...")

		watchCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		go func() {
			err := ingestion.Watch(watchCtx, session, store, nil)
			if err != nil && !errors.Is(err, context.Canceled) {
				fmt.Fprintf(os.Stderr, "Watch error: %v\n", err)
			}
		}()

		fmt.Fprintln(os.Stderr, "File watching enabled")
	} else {
		fmt.Fprintln(os.Stderr, "Starting MCP server...")
	}

	// Note: no output to stdout - the server uses stdio for JSON-RPC only
	return server.Run(ctx, os.Stdin, os.Stdout)
}

// CleanCmd deletes the cache for the current definition root.
type CleanCmd struct {
	Force bool `short:"f" help:"Skip confirmation"`
}

// Run executes the clean command.
func (c *CleanCmd) Run() error {
	root, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting working directory: %w", err)
	}

	settings, err := config.Load(root)
	if err != nil {
		return err
	}

	cacheDir := filepath.Join(root, settings.CacheDir)
	if _, err := os.Stat(cacheDir); os.IsNotExist(err) {
		return fmt.Errorf("no cache found at %s. Nothing to clean", root)
	}

	if !c.Force {
		fmt.Printf("Delete cache at %s? [y/N] ", cacheDir)
		var response string
		_, _ = fmt.Scanln(&response)
		if response != "y" && response != "Y" {
			fmt.Println("Aborted")
			return nil
		}
	}

	if err := os.RemoveAll(cacheDir); err != nil {
		return fmt.Errorf("deleting cache: %w", err)
	}

	color.Green("Deleted %s", cacheDir)
	return nil
}

// Helper functions

// osSignalChannel returns a channel that receives OS signals for graceful shutdown.
func osSignalChannel() <-chan os.Signal {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	return sigChan
}

func cachePath(root string, settings *config.Settings) string {
	return filepath.Join(root, settings.CacheDir, "badger")
}

// openCache opens the cache store, creating the directory when create
// is set and requiring a previous build otherwise.
func openCache(root string, settings *config.Settings, create bool) (*storage.Store, error) {
	path := cachePath(root, settings)
	if create {
		if err := os.MkdirAll(path, 0o755); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
	} else if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("no cached graph at %s. Run 'appgraph build' first", root)
	}

	store, err := storage.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening cache: %w", err)
	}
	return store, nil
}

// loadGraph loads the cached graph for the working directory.
func loadGraph(ctx context.Context) (*graph.Graph, *config.Settings, error) {
	root, err := os.Getwd()
	if err != nil {
		return nil, nil, fmt.Errorf("getting working directory: %w", err)
	}

	settings, err := config.Load(root)
	if err != nil {
		return nil, nil, err
	}

	store, err := openCache(root, settings, false)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = store.Close() }()

	g, err := store.Load(ctx)
	if errors.Is(err, storage.ErrEmpty) {
		return nil, nil, fmt.Errorf("cache at %s holds no graph. Run 'appgraph build' first", root)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("loading cached graph: %w", err)
	}
	return g, settings, nil
}

// CLI is the root Kong command structure.
type CLI struct {
	Version kong.VersionFlag `help:"Show version information"`
	Verbose bool             `short:"v" help:"Enable debug logging"`

	// Commands
	Build   BuildCmd   `cmd:"" help:"Scan an application definition and cache its graph"`
	Search  SearchCmd  `cmd:"" help:"Match nodes against a regex"`
	Explore ExploreCmd `cmd:"" help:"Interactive graph explorer"`
	Missing MissingCmd `cmd:"" help:"Report references with no backing record"`
	Orphans OrphansCmd `cmd:"" help:"Report artifacts nothing references"`
	Status  StatusCmd  `cmd:"" help:"Show cached graph status"`
	Watch   WatchCmd   `cmd:"" help:"Rebuild the graph when records change"`
	Serve   ServeCmd   `cmd:"" help:"Start MCP server (stdio transport)"`
	Clean   CleanCmd   `cmd:"" help:"Delete the cached graph"`
}

// NewCLI creates a new CLI instance.
func NewCLI() *CLI {
	return &CLI{}
}

// Execute parses command-line arguments and executes the selected command.
func (c *CLI) Execute(args []string) error {
	kongCtx := kong.Parse(c,
		kong.Name("appgraph"),
		kong.Description("Cross-reference explorer for YAML application definitions"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
		kong.Vars{
			"version": Version,
		},
	)

	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	return kongCtx.Run()
}
