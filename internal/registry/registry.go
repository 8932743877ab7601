// Package registry tracks every dataset the engine knows about: the
// in-memory working set, the durable columnar payloads behind it, and
// the parent links that form each dataset's lineage.
package registry

import (
	"context"
	"sort"
	"sync"

	"datawhisperer/domain/core"
	"datawhisperer/domain/dataset"
	"datawhisperer/internal"
	"datawhisperer/internal/errors"
	"datawhisperer/ports"

	"golang.org/x/sync/singleflight"
)

// CacheStats reports registry cache behavior since process start.
type CacheStats struct {
	Hits           uint64 `json:"hits"`
	Misses         uint64 `json:"misses"`
	CachedDatasets int    `json:"cached_datasets"`
}

// Service is the dataset registry. All engine operations resolve
// handles through it.
type Service struct {
	repo  ports.DatasetRepository
	store ports.FrameStore
	log   *internal.Logger

	mu     sync.RWMutex
	frames map[core.DatasetID]*dataset.Frame
	meta   map[core.DatasetID]*dataset.Metadata
	hits   uint64
	misses uint64

	hydrating singleflight.Group
}

// NewService creates a registry over the given metadata repository and
// frame store.
func NewService(repo ports.DatasetRepository, store ports.FrameStore, log *internal.Logger) *Service {
	return &Service{
		repo:   repo,
		store:  store,
		log:    log,
		frames: make(map[core.DatasetID]*dataset.Frame),
		meta:   make(map[core.DatasetID]*dataset.Metadata),
	}
}

// Register assigns a fresh handle to the frame, persists the payload
// and metadata, and caches the frame for subsequent lookups. A durable
// write failure degrades to in-memory only: the dataset stays usable
// for this process lifetime and the failure is logged, not returned.
func (s *Service) Register(ctx context.Context, frame *dataset.Frame, filename string, parent core.DatasetID, note string) (*dataset.Metadata, error) {
	id := core.NewDatasetID()

	storagePath, err := s.store.Save(ctx, id, frame)
	if err != nil {
		s.log.Warn("durable write failed for %s, keeping dataset in memory only: %v", id, err)
		storagePath = ""
	}

	columnTypes := make(map[string]string, frame.NumCols())
	for _, col := range frame.Columns() {
		columnTypes[col.Name] = string(col.DType)
	}
	meta := &dataset.Metadata{
		DatasetID:          id,
		Filename:           filename,
		IngestedAt:         core.Now(),
		NumRows:            frame.NumRows(),
		NumColumns:         frame.NumCols(),
		Columns:            frame.ColumnNames(),
		ColumnTypes:        columnTypes,
		ParentDatasetID:    parent,
		TransformationNote: note,
		StoragePath:        storagePath,
	}

	if err := s.repo.Create(ctx, meta); err != nil {
		s.log.Warn("metadata write failed for %s, keeping record in memory only: %v", id, err)
	}

	s.mu.Lock()
	s.frames[id] = frame
	s.meta[id] = meta
	s.mu.Unlock()

	cp := *meta
	return &cp, nil
}

// Get resolves a handle to its frame and metadata. Cache misses are
// hydrated from the durable store; concurrent misses for one handle
// share a single load. Callers must treat the returned frame as
// read-only.
func (s *Service) Get(ctx context.Context, id core.DatasetID) (*dataset.Frame, *dataset.Metadata, error) {
	if id == "" {
		return nil, nil, errors.ValidationError("dataset_id cannot be empty")
	}

	s.mu.RLock()
	frame, ok := s.frames[id]
	meta := s.meta[id]
	s.mu.RUnlock()
	if ok {
		s.mu.Lock()
		s.hits++
		s.mu.Unlock()
		cp := *meta
		return frame, &cp, nil
	}

	s.mu.Lock()
	s.misses++
	s.mu.Unlock()

	v, err, _ := s.hydrating.Do(id.String(), func() (any, error) {
		return s.hydrate(ctx, id)
	})
	if err != nil {
		return nil, nil, err
	}
	hydrated := v.(*hydrated)
	cp := *hydrated.meta
	return hydrated.frame, &cp, nil
}

type hydrated struct {
	frame *dataset.Frame
	meta  *dataset.Metadata
}

func (s *Service) hydrate(ctx context.Context, id core.DatasetID) (*hydrated, error) {
	// Another waiter may have filled the cache while we queued.
	s.mu.RLock()
	if frame, ok := s.frames[id]; ok {
		meta := s.meta[id]
		s.mu.RUnlock()
		return &hydrated{frame: frame, meta: meta}, nil
	}
	s.mu.RUnlock()

	meta, err := s.lookupMetadata(ctx, id)
	if err != nil {
		return nil, err
	}
	if meta == nil {
		known, _ := s.knownHandles(ctx)
		return nil, errors.DatasetNotFound(id.String(), known)
	}

	frame, err := s.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.frames[id] = frame
	s.meta[id] = meta
	s.mu.Unlock()
	return &hydrated{frame: frame, meta: meta}, nil
}

// GetMetadata resolves a handle to metadata without touching the
// payload.
func (s *Service) GetMetadata(ctx context.Context, id core.DatasetID) (*dataset.Metadata, error) {
	meta, err := s.lookupMetadata(ctx, id)
	if err != nil {
		return nil, err
	}
	if meta == nil {
		known, _ := s.knownHandles(ctx)
		return nil, errors.DatasetNotFound(id.String(), known)
	}
	cp := *meta
	return &cp, nil
}

// Lineage returns the ancestry chain starting at the handle itself and
// walking parent links back to the root ingestion.
func (s *Service) Lineage(ctx context.Context, id core.DatasetID) ([]*dataset.Metadata, error) {
	var chain []*dataset.Metadata
	seen := make(map[core.DatasetID]bool)

	current := id
	for current != "" {
		if seen[current] {
			s.log.Warn("lineage cycle detected at %s, truncating chain", current)
			break
		}
		seen[current] = true

		meta, err := s.lookupMetadata(ctx, current)
		if err != nil {
			return nil, err
		}
		if meta == nil {
			if len(chain) == 0 {
				known, _ := s.knownHandles(ctx)
				return nil, errors.DatasetNotFound(current.String(), known)
			}
			// A broken parent link truncates the chain rather than
			// failing the whole query.
			s.log.Warn("lineage parent %s of %s is unknown, truncating chain", current, chain[len(chain)-1].DatasetID)
			break
		}
		chain = append(chain, meta)
		current = meta.ParentDatasetID
	}
	return chain, nil
}

// List returns metadata for every known dataset, newest first,
// including any that only live in memory after a degraded register.
func (s *Service) List(ctx context.Context) ([]*dataset.Metadata, error) {
	byID := make(map[core.DatasetID]*dataset.Metadata)

	durable, err := s.repo.List(ctx)
	if err != nil {
		s.log.Warn("metadata list failed, serving cached records only: %v", err)
	}
	for _, meta := range durable {
		byID[meta.DatasetID] = meta
	}

	s.mu.RLock()
	for id, meta := range s.meta {
		if _, ok := byID[id]; !ok {
			cp := *meta
			byID[id] = &cp
		}
	}
	s.mu.RUnlock()

	out := make([]*dataset.Metadata, 0, len(byID))
	for _, meta := range byID {
		out = append(out, meta)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[j].IngestedAt.Before(out[i].IngestedAt)
	})
	return out, nil
}

// Stats reports cache hit and miss counts.
func (s *Service) Stats() CacheStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return CacheStats{Hits: s.hits, Misses: s.misses, CachedDatasets: len(s.frames)}
}

func (s *Service) lookupMetadata(ctx context.Context, id core.DatasetID) (*dataset.Metadata, error) {
	s.mu.RLock()
	meta, ok := s.meta[id]
	s.mu.RUnlock()
	if ok {
		return meta, nil
	}
	meta, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return meta, nil
}

func (s *Service) knownHandles(ctx context.Context) ([]string, error) {
	ids, err := s.repo.KnownIDs(ctx)
	if err != nil {
		s.log.Warn("listing known handles failed: %v", err)
	}
	set := make(map[string]bool)
	for _, id := range ids {
		set[id.String()] = true
	}
	s.mu.RLock()
	for id := range s.meta {
		set[id.String()] = true
	}
	s.mu.RUnlock()

	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}
