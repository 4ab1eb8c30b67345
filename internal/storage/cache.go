// Package storage persists built graphs in an on-disk BadgerDB cache so
// commands can reload them without rescanning the application definition.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/dmaclachlan/appgraph/internal/graph"
)

// Key prefixes for the cached record types.
const (
	prefixNode = "n:" // node data, keyed by node key
	prefixEdge = "e:" // edge data, keyed by zero-padded edge ID
	metaKey    = "meta"
)

// ErrEmpty is returned when the cache holds no graph.
var ErrEmpty = errors.New("cache holds no graph")

// Meta describes a cached graph without loading it.
type Meta struct {
	Nodes   int       `json:"nodes"`
	Edges   int       `json:"edges"`
	SavedAt time.Time `json:"saved_at"`
}

type nodeRecord struct {
	Kind  graph.Kind        `json:"kind,omitempty"`
	Attrs map[string]string `json:"attrs,omitempty"`
}

type edgeRecord struct {
	Source   string            `json:"source"`
	Target   string            `json:"target"`
	Kind     graph.Kind        `json:"kind,omitempty"`
	LinkType graph.LinkType    `json:"link_type,omitempty"`
	Attrs    map[string]string `json:"attrs,omitempty"`
}

// Store is a BadgerDB-backed graph cache.
type Store struct {
	db   *badger.DB
	path string
}

// Open opens or creates the cache database at the given path.
func Open(path string) (*Store, error) {
	opts := badger.DefaultOptions(path).
		WithNumCompactors(2).
		WithNumMemtables(5).
		WithLoggingLevel(badger.ERROR) // Suppress INFO/WARNING logs

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening badger DB: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Path returns the directory the cache lives in.
func (s *Store) Path() string {
	return s.path
}

// Close releases all resources held by the store.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Save replaces the entire cache with the contents of the graph.
func (s *Store) Save(ctx context.Context, g *graph.Graph) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := s.db.DropAll(); err != nil {
		return fmt.Errorf("clearing cache: %w", err)
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	for _, key := range g.Keys() {
		node := g.Node(key)
		data, err := json.Marshal(nodeRecord{Kind: node.Kind, Attrs: node.Attrs})
		if err != nil {
			return fmt.Errorf("marshaling node: %w", err)
		}
		if err := wb.Set(nodeKey(key), data); err != nil {
			return fmt.Errorf("writing node: %w", err)
		}
	}

	for _, edge := range g.Edges() {
		data, err := json.Marshal(edgeRecord{
			Source:   edge.Source,
			Target:   edge.Target,
			Kind:     edge.Kind,
			LinkType: edge.LinkType,
			Attrs:    edge.Attrs,
		})
		if err != nil {
			return fmt.Errorf("marshaling edge: %w", err)
		}
		if err := wb.Set(edgeKey(edge.ID), data); err != nil {
			return fmt.Errorf("writing edge: %w", err)
		}
	}

	meta, err := json.Marshal(Meta{
		Nodes:   g.NodeCount(),
		Edges:   g.EdgeCount(),
		SavedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshaling metadata: %w", err)
	}
	if err := wb.Set([]byte(metaKey), meta); err != nil {
		return fmt.Errorf("writing metadata: %w", err)
	}

	return wb.Flush()
}

// Load rebuilds the cached graph. Edges are replayed in insertion order
// so edge IDs and adjacency ordering survive the round trip.
func (s *Store) Load(ctx context.Context) (*graph.Graph, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	g := graph.New()
	err := s.db.View(func(txn *badger.Txn) error {
		if _, err := txn.Get([]byte(metaKey)); err == badger.ErrKeyNotFound {
			return ErrEmpty
		} else if err != nil {
			return fmt.Errorf("reading metadata: %w", err)
		}

		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixNode)
		it := txn.NewIterator(opts)
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			key := strings.TrimPrefix(string(item.Key()), prefixNode)
			var rec nodeRecord
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				it.Close()
				return fmt.Errorf("unmarshaling node %q: %w", key, err)
			}
			g.SetNode(key, rec.Kind, rec.Attrs)
		}
		it.Close()

		// Zero-padded IDs make key order match insertion order.
		opts.Prefix = []byte(prefixEdge)
		it = txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			var rec edgeRecord
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return fmt.Errorf("unmarshaling edge %q: %w", it.Item().Key(), err)
			}
			g.AddEdge(rec.Source, rec.Target, rec.Kind, rec.LinkType, rec.Attrs)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return g, nil
}

// Meta returns the cached graph's metadata, or ErrEmpty when nothing
// has been saved yet.
func (s *Store) Meta(ctx context.Context) (*Meta, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var meta Meta
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(metaKey))
		if err == badger.ErrKeyNotFound {
			return ErrEmpty
		}
		if err != nil {
			return fmt.Errorf("reading metadata: %w", err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &meta)
		})
	})
	if err != nil {
		return nil, err
	}
	return &meta, nil
}

func nodeKey(key string) []byte {
	return []byte(prefixNode + key)
}

func edgeKey(id int) []byte {
	return []byte(fmt.Sprintf("%s%010d", prefixEdge, id))
}
