// Package viz validates chart requests against a dataset's schema and
// dedupes identical renders through a durable artifact cache.
package viz

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"datawhisperer/domain/core"
	"datawhisperer/domain/dataset"
	"datawhisperer/domain/viz"
	"datawhisperer/internal"
	"datawhisperer/internal/errors"
	"datawhisperer/internal/registry"
	"datawhisperer/ports"

	"golang.org/x/sync/singleflight"
)

const indexFilename = "plot_cache.json"

// RawSpec is an unvalidated chart request as a caller supplies it.
type RawSpec struct {
	DatasetID string `json:"dataset_id"`
	ChartType string `json:"chart_type"`
	X         string `json:"x"`
	Y         string `json:"y,omitempty"`
	Hue       string `json:"hue,omitempty"`
	Bins      int    `json:"bins,omitempty"`
}

type cacheEntry struct {
	Key       string         `json:"key"`
	FilePath  string         `json:"file_path"`
	Spec      viz.Spec       `json:"spec"`
	CreatedAt core.Timestamp `json:"created_at"`
}

// Service resolves specs and renders charts, reusing prior artifacts
// for identical normalized specs. The cache index is persisted next to
// the artifacts and reloaded at startup, so dedup survives restarts.
type Service struct {
	registry *registry.Service
	renderer ports.Renderer
	plotsDir string
	log      *internal.Logger

	mu    sync.Mutex
	index map[core.SpecKey]cacheEntry

	rendering singleflight.Group
}

// NewService creates a viz service and hydrates the render cache index
// from disk. A missing or unreadable index starts empty.
func NewService(reg *registry.Service, renderer ports.Renderer, plotsDir string, log *internal.Logger) *Service {
	s := &Service{
		registry: reg,
		renderer: renderer,
		plotsDir: plotsDir,
		log:      log,
		index:    make(map[core.SpecKey]cacheEntry),
	}
	s.loadIndex()
	return s
}

// Resolve validates a raw request into a normalized spec without
// rendering anything.
func (s *Service) Resolve(ctx context.Context, raw RawSpec) (viz.Spec, error) {
	spec, _, err := s.resolve(ctx, raw)
	return spec, err
}

// Render resolves the request and returns the chart artifact, reusing
// a previously rendered one when the normalized spec is identical.
// Concurrent identical requests share a single render.
func (s *Service) Render(ctx context.Context, raw RawSpec) (*viz.Result, error) {
	spec, frame, err := s.resolve(ctx, raw)
	if err != nil {
		return nil, err
	}
	key := spec.CacheKey()

	if path, ok := s.cachedArtifact(key); ok {
		return &viz.Result{
			Spec:     spec,
			FilePath: path,
			Reused:   true,
			Message:  "Identical chart already rendered, returning existing artifact.",
		}, nil
	}

	v, err, _ := s.rendering.Do(key.String(), func() (any, error) {
		// A concurrent caller may have finished while we queued.
		if path, ok := s.cachedArtifact(key); ok {
			return path, nil
		}
		path, err := s.renderer.Render(ctx, spec, frame)
		if err != nil {
			return "", err
		}
		s.storeArtifact(key, spec, path)
		return path, nil
	})
	if err != nil {
		return nil, err
	}

	// Reused marks index hits only; a render that happened to be
	// shared by concurrent duplicates still counts as fresh.
	return &viz.Result{
		Spec:     spec,
		FilePath: v.(string),
		Reused:   false,
	}, nil
}

// CacheSize reports the number of live index entries.
func (s *Service) CacheSize() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.index)
}

func (s *Service) resolve(ctx context.Context, raw RawSpec) (viz.Spec, *dataset.Frame, error) {
	ct, err := viz.NormalizeChartType(raw.ChartType)
	if err != nil {
		return viz.Spec{}, nil, errors.ValidationError(err.Error())
	}

	frame, meta, err := s.registry.Get(ctx, core.DatasetID(raw.DatasetID))
	if err != nil {
		return viz.Spec{}, nil, err
	}

	if strings.TrimSpace(raw.X) == "" {
		return viz.Spec{}, nil, errors.ValidationError("x column is required").
			WithContext("chart_type", string(ct))
	}
	x, err := resolveColumn(frame, raw.X)
	if err != nil {
		return viz.Spec{}, nil, err
	}

	var y string
	if raw.Y != "" {
		if y, err = resolveColumn(frame, raw.Y); err != nil {
			return viz.Spec{}, nil, err
		}
	}
	var hue string
	if raw.Hue != "" {
		if hue, err = resolveColumn(frame, raw.Hue); err != nil {
			return viz.Spec{}, nil, err
		}
	}

	// Per-chart preconditions fail before any rendering work.
	if (ct == viz.ChartScatter || ct == viz.ChartLine) && y == "" {
		return viz.Spec{}, nil, errors.ValidationError(
			string(ct) + " charts require both x and y columns").
			WithContext("chart_type", string(ct))
	}

	bins := raw.Bins
	if bins < 0 {
		return viz.Spec{}, nil, errors.InvalidParameter("bins", "must be non-negative")
	}
	if bins == 0 {
		bins = viz.DefaultBins
	}

	return viz.Spec{
		DatasetID: meta.DatasetID,
		ChartType: ct,
		X:         x,
		Y:         y,
		Hue:       hue,
		Bins:      bins,
		Role:      viz.ChartRole(ct),
	}, frame, nil
}

// resolveColumn matches a column name exactly, then case-insensitively
// as a fallback. An ambiguous case-insensitive match fails.
func resolveColumn(frame *dataset.Frame, name string) (string, error) {
	if frame.HasColumn(name) {
		return name, nil
	}
	var match string
	for _, candidate := range frame.ColumnNames() {
		if strings.EqualFold(candidate, name) {
			if match != "" {
				return "", errors.ColumnNotFound(name, frame.ColumnNames()).
					WithHint("column name matches multiple columns case-insensitively, use the exact name")
			}
			match = candidate
		}
	}
	if match == "" {
		return "", errors.ColumnNotFound(name, frame.ColumnNames())
	}
	return match, nil
}

// cachedArtifact returns the live artifact for a key. A stale entry
// whose file is gone is evicted so the caller re-renders.
func (s *Service) cachedArtifact(key core.SpecKey) (string, bool) {
	s.mu.Lock()
	entry, ok := s.index[key]
	s.mu.Unlock()
	if !ok {
		return "", false
	}
	if _, err := os.Stat(entry.FilePath); err != nil {
		s.log.Warn("cached chart %s is missing on disk, evicting and re-rendering", entry.FilePath)
		s.mu.Lock()
		delete(s.index, key)
		s.mu.Unlock()
		s.persistIndex()
		return "", false
	}
	return entry.FilePath, true
}

func (s *Service) storeArtifact(key core.SpecKey, spec viz.Spec, path string) {
	s.mu.Lock()
	s.index[key] = cacheEntry{
		Key:       key.String(),
		FilePath:  path,
		Spec:      spec,
		CreatedAt: core.Now(),
	}
	s.mu.Unlock()
	s.persistIndex()
}

func (s *Service) indexPath() string {
	return filepath.Join(s.plotsDir, indexFilename)
}

func (s *Service) loadIndex() {
	data, err := os.ReadFile(s.indexPath())
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn("reading render cache index: %v", err)
		}
		return
	}
	var entries []cacheEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		s.log.Warn("render cache index is corrupt, starting empty: %v", err)
		return
	}
	for _, e := range entries {
		s.index[core.SpecKey(e.Key)] = e
	}
	s.log.Debug("render cache hydrated with %d entries", len(entries))
}

// persistIndex writes the index atomically so a crash mid-write never
// leaves a truncated file behind.
func (s *Service) persistIndex() {
	s.mu.Lock()
	entries := make([]cacheEntry, 0, len(s.index))
	for _, e := range s.index {
		entries = append(entries, e)
	}
	s.mu.Unlock()

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		s.log.Warn("encoding render cache index: %v", err)
		return
	}
	if err := os.MkdirAll(s.plotsDir, 0o755); err != nil {
		s.log.Warn("creating plots directory: %v", err)
		return
	}
	tmp := s.indexPath() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		s.log.Warn("writing render cache index: %v", err)
		return
	}
	if err := os.Rename(tmp, s.indexPath()); err != nil {
		s.log.Warn("replacing render cache index: %v", err)
	}
}
