package ingestion

import (
	"context"
	"sync"

	"github.com/dmaclachlan/appgraph/internal/config"
	"github.com/dmaclachlan/appgraph/internal/graph"
)

// Session holds the graph an interactive explorer or server queries
// while rebuilds replace it underneath. Readers always see a complete
// graph: a rebuild assembles the replacement off to the side and the
// swap is atomic.
type Session struct {
	root     string
	settings *config.Settings

	mu     sync.RWMutex
	g      *graph.Graph
	result *BuildResult
}

// NewSession creates a session for a definition root. The graph is
// empty until the first Rebuild or Swap.
func NewSession(root string, settings *config.Settings) *Session {
	return &Session{
		root:     root,
		settings: settings,
		g:        graph.New(),
	}
}

// Graph returns the current graph. The graph itself is read-only, so
// callers may hold it across a swap and finish on the old snapshot.
func (s *Session) Graph() *graph.Graph {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.g
}

// Result returns the outcome of the last completed build, or nil
// before the first one.
func (s *Session) Result() *BuildResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.result
}

// Swap installs a prebuilt graph.
func (s *Session) Swap(g *graph.Graph, result *BuildResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.g = g
	s.result = result
}

// Rebuild runs a full build of the session's root and installs the
// result. On failure the current graph stays in place.
func (s *Session) Rebuild(ctx context.Context, store GraphSaver, progress ProgressCallback) (*BuildResult, error) {
	g, result, err := Build(ctx, s.root, s.settings, store, progress)
	if err != nil {
		return nil, err
	}
	s.Swap(g, result)
	return result, nil
}
