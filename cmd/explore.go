package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dmaclachlan/appgraph/internal/config"
	"github.com/dmaclachlan/appgraph/internal/graph"
	"github.com/dmaclachlan/appgraph/internal/ingestion"
	"github.com/dmaclachlan/appgraph/internal/query"
	"github.com/dmaclachlan/appgraph/internal/storage"
)

const banner = `
    appgraph explorer
    -----------------

This is an exploration tool for the relationships between
entities, formflows, templates, conditions, commands and
images using a directed graph.

Search strings are specified as regex
(see https://regex101.com for details).

For example to find:

 - anything containing 'truck'
   > truck

 - only templates containing 'truck'
   > truck.*type: template

 - anything with one or more parents
   > counts: [1-9][0-9]*<

You are only limited by your imagination (and regex skills)


Special commands
----------------

You can vary the degree of expansion when looking at a specific
object. Entering '$$max_level=n' stops expanding parents or
children beyond the given level. The default is '1'; setting it
to '0' expands all available levels.

To leave particular kinds out when searching and expanding, use
'$$ignore=foo bar'. Provide an empty list to clear it.

To include edge data in matches, use '$$edges=true|false'.
The default is false.

'$$rebuild' rescans the records and swaps in a fresh graph.
'$$help' shows this text again, '$$quit' leaves (so does Ctrl+D).
`

// ExploreCmd builds the graph and opens the interactive explorer.
type ExploreCmd struct {
	Path   string `arg:"" optional:"" default:"." help:"Path to the application definition root"`
	Cached bool   `help:"Load the cached graph instead of rebuilding"`
	Quiet  bool   `short:"q" help:"Skip the startup banner"`
}

// Run executes the explore command.
func (c *ExploreCmd) Run() error {
	ctx := context.Background()
	root, err := filepath.Abs(c.Path)
	if err != nil {
		return fmt.Errorf("resolving path: %w", err)
	}

	settings, err := config.Load(root)
	if err != nil {
		return err
	}

	if !c.Quiet {
		fmt.Println(banner)
	}

	start := time.Now()
	g, err := c.openGraph(ctx, root, settings)
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Printf("Graph completed in %d seconds\n", int(time.Since(start).Round(time.Second).Seconds()))
	fmt.Println()
	printStats(os.Stdout, g)

	if g.NodeCount() == 0 {
		fmt.Println("Nothing was added to the graph - run again in an application definition root")
		fmt.Println()
		return nil
	}

	renderMissing(os.Stdout, ingestion.MissingData(g))

	// Ctrl+C leaves like end of input does.
	go func() {
		<-osSignalChannel()
		farewell(os.Stdout)
		os.Exit(0)
	}()

	rebuild := func() (*graph.Graph, error) {
		return buildGraph(ctx, root, settings)
	}
	NewExplorer(g, settings, rebuild, os.Stdin, os.Stdout).Run()
	farewell(os.Stdout)
	return nil
}

func (c *ExploreCmd) openGraph(ctx context.Context, root string, settings *config.Settings) (*graph.Graph, error) {
	if c.Cached {
		store, err := openCache(root, settings, false)
		if err != nil {
			return nil, err
		}
		defer func() { _ = store.Close() }()

		g, err := store.Load(ctx)
		if errors.Is(err, storage.ErrEmpty) {
			return nil, fmt.Errorf("cache at %s holds no graph. Run 'appgraph build' first", root)
		}
		if err != nil {
			return nil, fmt.Errorf("loading cached graph: %w", err)
		}
		return g, nil
	}

	return buildGraph(ctx, root, settings)
}

// buildGraph scans the records and refreshes the cache.
func buildGraph(ctx context.Context, root string, settings *config.Settings) (*graph.Graph, error) {
	store, err := openCache(root, settings, true)
	if err != nil {
		return nil, err
	}
	defer func() { _ = store.Close() }()

	g, _, err := ingestion.Build(ctx, root, settings, store, nil)
	if err != nil {
		return nil, fmt.Errorf("building graph: %w", err)
	}
	return g, nil
}

func farewell(w io.Writer) {
	fmt.Fprintln(w)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Thanks for using appgraph")
	fmt.Fprintln(w)
	fmt.Fprintln(w)
}

// RebuildFunc rescans the records and returns a replacement graph.
type RebuildFunc func() (*graph.Graph, error)

// Explorer is the interactive read-eval loop over a built graph.
type Explorer struct {
	g        *graph.Graph
	settings *config.Settings
	rebuild  RebuildFunc
	in       *bufio.Scanner
	out      io.Writer

	maxLevel int
	ignore   []string
	edges    bool
	quit     bool
}

// NewExplorer wires an explorer over the graph, expanding to the
// settings' default depth. rebuild may be nil when the session cannot
// rescan, such as over a cached graph with no records on disk.
func NewExplorer(g *graph.Graph, settings *config.Settings, rebuild RebuildFunc, in io.Reader, out io.Writer) *Explorer {
	return &Explorer{
		g:        g,
		settings: settings,
		rebuild:  rebuild,
		in:       bufio.NewScanner(in),
		out:      out,
		maxLevel: settings.MaxLevel,
	}
}

// Run prompts for regex queries until the input ends. A numeric answer
// at the inner prompt navigates into that result; anything else becomes
// the next query.
func (e *Explorer) Run() {
	var focus string
	for {
		pattern := focus
		focus = ""
		if pattern == "" {
			var ok bool
			pattern, ok = e.read("Enter regex for selecting nodes: ")
			if !ok {
				return
			}
		}
		if e.directive(pattern) {
			if e.quit {
				return
			}
			continue
		}

		matches, err := query.Select(e.g, pattern, query.Options{Ignore: e.ignore, IncludeEdges: e.edges})
		fmt.Fprintln(e.out)
		if err != nil {
			fmt.Fprintf(e.out, "--> '%s' is an invalid regex!\n", pattern)
			continue
		}
		if len(matches) == 0 {
			continue
		}

		for i, m := range matches {
			fmt.Fprintf(e.out, "%3d %s\n", i, renderData(e.settings, m.Data))
		}

		for {
			input, ok := e.read("Enter number to navigate or another regex to search again: ")
			if !ok {
				return
			}
			index, err := strconv.Atoi(strings.TrimSpace(input))
			if err != nil {
				focus = input
				break
			}
			if index < 0 || index >= len(matches) {
				continue
			}
			e.show(matches[index])
		}
	}
}

// read prints a blank line and the prompt, then reads one input line.
func (e *Explorer) read(prompt string) (string, bool) {
	fmt.Fprintln(e.out)
	fmt.Fprint(e.out, prompt)
	if !e.in.Scan() {
		return "", false
	}
	return e.in.Text(), true
}

// directive handles the $$ settings commands; reports whether the
// input was one.
func (e *Explorer) directive(pattern string) bool {
	value := pattern[strings.LastIndex(pattern, "=")+1:]
	switch {
	case strings.HasPrefix(pattern, "$$max_level="):
		level, err := strconv.Atoi(value)
		fmt.Fprintln(e.out)
		if err != nil {
			fmt.Fprintln(e.out, "-> Error: Invalid value for max level!")
		} else {
			e.maxLevel = level
			fmt.Fprintf(e.out, "-> MAX_LEVEL updated to %d\n", level)
		}
		fmt.Fprintln(e.out)
		return true

	case strings.HasPrefix(pattern, "$$ignore="):
		e.ignore = strings.Fields(value)
		fmt.Fprintln(e.out)
		fmt.Fprintf(e.out, "-> IGNORE_TYPES updated to %v\n", e.ignore)
		fmt.Fprintln(e.out)
		return true

	case strings.HasPrefix(pattern, "$$edges="):
		edges, err := strconv.ParseBool(value)
		fmt.Fprintln(e.out)
		if err != nil {
			fmt.Fprintln(e.out, "-> Error: Invalid value for edges!")
		} else {
			e.edges = edges
			fmt.Fprintf(e.out, "-> EDGES updated to %t\n", edges)
		}
		fmt.Fprintln(e.out)
		return true

	case pattern == "$$rebuild":
		fmt.Fprintln(e.out)
		if e.rebuild == nil {
			fmt.Fprintln(e.out, "-> Rebuild is not available in this session")
			fmt.Fprintln(e.out)
			return true
		}
		g, err := e.rebuild()
		if err != nil {
			fmt.Fprintf(e.out, "-> Error: rebuild failed: %v\n", err)
		} else {
			e.g = g
			fmt.Fprintf(e.out, "-> Rebuilt: %d nodes, %d edges\n", g.NodeCount(), g.EdgeCount())
		}
		fmt.Fprintln(e.out)
		return true

	case pattern == "$$help":
		fmt.Fprintln(e.out)
		fmt.Fprintln(e.out, banner)
		return true

	case pattern == "$$quit":
		e.quit = true
		return true
	}
	return false
}

// show renders one selected node with its parent and child trees.
func (e *Explorer) show(m query.Match) {
	fmt.Fprintln(e.out)
	fmt.Fprintln(e.out, strings.Repeat("-", 120))
	fmt.Fprintln(e.out)
	pindent(e.out, renderData(e.settings, m.Data), 0)
	fmt.Fprintln(e.out)
	fmt.Fprintln(e.out, "These are the parents (predecessors):")
	e.walkFrom(m.Key, query.Parents)
	fmt.Fprintln(e.out)
	fmt.Fprintln(e.out, "These are the children (successors):")
	e.walkFrom(m.Key, query.Children)
}

func (e *Explorer) walkFrom(start string, dir query.Direction) {
	query.Walk(e.g, start, dir, e.maxLevel, e.ignore, func(s query.Step) {
		fmt.Fprintln(e.out)
		if s.Undefined {
			pindent(e.out, paint("red", fmt.Sprintf("%s is an undefined reference!", s.Key)), s.Depth)
			return
		}

		line := displayData(e.settings, s.Data)
		if s.Revisited {
			pindent(e.out, paint("white", line), s.Depth)
		} else {
			pindent(e.out, paint(e.settings.Color(s.Data["type"]), line), s.Depth)
		}
		for _, edge := range s.Edges {
			pindent(e.out, renderData(e.settings, edge.Data()), s.Depth)
		}
	})
}
