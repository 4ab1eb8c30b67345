package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/dmaclachlan/appgraph/internal/config"
	"github.com/dmaclachlan/appgraph/internal/graph"
	"github.com/dmaclachlan/appgraph/internal/ingestion"
	"github.com/dmaclachlan/appgraph/internal/query"
)

// palette maps the color names used in artifact specs to terminal colors.
var palette = map[string]*color.Color{
	"red":        color.New(color.FgRed),
	"green":      color.New(color.FgGreen),
	"yellow":     color.New(color.FgYellow),
	"blue":       color.New(color.FgBlue),
	"magenta":    color.New(color.FgMagenta),
	"cyan":       color.New(color.FgCyan),
	"white":      color.New(color.FgWhite),
	"grey":       color.New(color.FgHiBlack),
	"hi-red":     color.New(color.FgHiRed),
	"hi-green":   color.New(color.FgHiGreen),
	"hi-yellow":  color.New(color.FgHiYellow),
	"hi-blue":    color.New(color.FgHiBlue),
	"hi-magenta": color.New(color.FgHiMagenta),
	"hi-cyan":    color.New(color.FgHiCyan),
}

// paint colors text by palette name, passing unknown names through.
func paint(name, text string) string {
	if c, ok := palette[name]; ok {
		return c.Sprint(text)
	}
	return text
}

// displayData serializes node or edge data for display. Kinds with a
// configured display list show only those keys, in order; everything
// else falls back to the full serialization.
func displayData(settings *config.Settings, data map[string]string) string {
	keys := settings.Display(data["type"])
	if keys == nil {
		return query.Serialize(data)
	}
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		if v, ok := data[k]; ok {
			parts = append(parts, fmt.Sprintf("%s: %s", k, v))
		}
	}
	return strings.Join(parts, ", ")
}

// renderData colors the display serialization by the data's kind.
func renderData(settings *config.Settings, data map[string]string) string {
	return paint(settings.Color(data["type"]), displayData(settings, data))
}

// pindent prints text indented by level, prefixed with the level.
func pindent(w io.Writer, text string, level int) {
	fmt.Fprintf(w, "%3d %s%s\n", level, strings.Repeat("  ", level), text)
}

// renderMissing prints nodes that only exist as reference targets, with
// each defined caller and the edges it reaches them through.
func renderMissing(w io.Writer, missing []ingestion.Missing) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "These nodes have no data:")
	for _, m := range missing {
		fmt.Fprintln(w)
		fmt.Fprintln(w, m.Key)
		for _, caller := range m.Callers {
			fmt.Fprintln(w)
			fmt.Fprintf(w, "-> from : %s\n", query.Serialize(caller.Data))
			for _, edge := range caller.Edges {
				fmt.Fprintf(w, "    via : %s\n", query.Serialize(edge))
			}
		}
	}
}

// renderOrphans prints defined artifacts with no callers, colored by
// kind the way search results are.
func renderOrphans(w io.Writer, settings *config.Settings, orphans []ingestion.Orphan) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "These nodes are referenced by nothing:")
	fmt.Fprintln(w)
	for _, o := range orphans {
		fmt.Fprintf(w, "  %s\n", renderData(settings, o.Data))
	}
}

// printStats prints the shape of the graph.
func printStats(w io.Writer, g *graph.Graph) {
	stats := g.Stats()
	fmt.Fprintln(w, "Type: directed multigraph")
	fmt.Fprintf(w, "Number of nodes: %d\n", stats["nodes"])
	fmt.Fprintf(w, "Number of edges: %d\n", stats["edges"])
	if stats["nodes"] > 0 {
		avg := float64(stats["edges"]) / float64(stats["nodes"])
		fmt.Fprintf(w, "Average in degree: %.4f\n", avg)
		fmt.Fprintf(w, "Average out degree: %.4f\n", avg)
	}
}
