package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmaclachlan/appgraph/internal/config"
	"github.com/dmaclachlan/appgraph/internal/graph"
	"github.com/dmaclachlan/appgraph/internal/records"
)

// ProgressCallback reports build progress. phase names the current
// stage and progress runs from 0.0 to 1.0 within it.
type ProgressCallback func(phase string, progress float64)

// GraphSaver persists a finished graph. *storage.Store implements it.
type GraphSaver interface {
	Save(ctx context.Context, g *graph.Graph) error
}

// BuildResult summarizes one build.
type BuildResult struct {
	// Files is the number of record files the scan found.
	Files int
	// Nodes and Edges are final graph totals, placeholders and
	// parallel edges included.
	Nodes int
	Edges int
	// Undefined counts nodes that edges reference but no record defined.
	Undefined int
	// Skipped counts records dropped because they failed to load or link.
	Skipped int
	// Misses counts command references whose owning entity never
	// declared them.
	Misses int
	// Duration is the wall time of the whole build, caching included.
	Duration time.Duration
}

// Build scans a definition root and assembles its cross-reference
// graph. Structural phases (entities, metadata, indexes, media) run
// before referential ones (conditions, formflows, templates, modules,
// tests) so that references bind no matter which file declares what.
// A record that fails to load or link is skipped with a warning; only
// scanning and caching failures abort the build.
func Build(ctx context.Context, root string, settings *config.Settings, store GraphSaver, progress ProgressCallback) (*graph.Graph, *BuildResult, error) {
	start := time.Now()
	result := &BuildResult{}

	step := func(phase string, p float64) {
		if progress != nil {
			progress(phase, p)
		}
	}

	step("Scanning records", 0.0)
	files, err := records.Enumerate(root, settings)
	if err != nil {
		return nil, nil, fmt.Errorf("scanning records: %w", err)
	}
	for _, bucket := range files {
		result.Files += len(bucket)
	}
	step("Scanning records", 1.0)

	b := newBuilder(settings)

	load := func(kind graph.Kind) []*records.Record {
		spec := settings.Spec(kind)
		recs := make([]*records.Record, 0, len(files[kind]))
		for _, f := range files[kind] {
			rec, err := records.Load(f.Path, spec)
			if err != nil {
				slog.Warn("skipping record", "path", f.Path, "error", err)
				result.Skipped++
				continue
			}
			if rec.Empty() {
				continue
			}
			recs = append(recs, rec)
		}
		return recs
	}

	process := func(phase string, recs []*records.Record, handle func(*records.Record) error) {
		step(phase, 0.0)
		for _, rec := range recs {
			if err := handle(rec); err != nil {
				slog.Warn("skipping record", "path", rec.Path, "error", err)
				result.Skipped++
			}
		}
		slog.Debug("phase complete", "phase", phase, "records", len(recs))
		step(phase, 1.0)
	}

	process("Loading entities", load(graph.KindEntity), b.addEntity)
	process("Loading metadata", load("metadata"), b.addMetadata)
	process("Loading indexes", load(graph.KindIndex), b.addIndex)
	process("Loading media", append(load(graph.KindImage), load(graph.KindSound)...), b.addAsset)

	// Formflow and template records load once here so their display
	// names are known before anything references them.
	step("Indexing names", 0.0)
	formflows := load(graph.KindFormflow)
	templates := load(graph.KindTemplate)
	b.registerNames(formflows, templates)
	step("Indexing names", 1.0)

	process("Loading conditions", load(graph.KindCondition), b.addCondition)
	process("Loading formflows", formflows, b.addFormflow)
	process("Loading templates", templates, b.addTemplate)
	process("Loading modules", load(graph.KindModule), b.addModule)

	step("Scanning tests", 0.0)
	matchers := settings.Spec(graph.KindTest).Matchers
	for _, f := range files[graph.KindTest] {
		if err := b.addTest(f.Path, matchers); err != nil {
			slog.Warn("skipping test", "path", f.Path, "error", err)
			result.Skipped++
		}
	}
	slog.Debug("phase complete", "phase", "Scanning tests", "records", len(files[graph.KindTest]))
	step("Scanning tests", 1.0)

	g := b.g
	result.Nodes = g.NodeCount()
	result.Edges = g.EdgeCount()
	result.Undefined = len(g.Undefined())
	result.Misses = b.resolver.Misses()

	if store != nil {
		step("Caching graph", 0.0)
		if err := store.Save(ctx, g); err != nil {
			return nil, nil, fmt.Errorf("caching graph: %w", err)
		}
		step("Caching graph", 1.0)
	}

	result.Duration = time.Since(start)
	return g, result, nil
}
