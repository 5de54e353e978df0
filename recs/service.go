// Package recs resolves a video id into its related-video list: validate,
// serve from cache, otherwise fetch a snapshot, extract and store.
package recs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/use-agent/upnext/cache"
	"github.com/use-agent/upnext/engine"
	"github.com/use-agent/upnext/extract"
	"github.com/use-agent/upnext/metrics"
	"github.com/use-agent/upnext/models"
)

// Result is the outcome of one successful Resolve.
type Result struct {
	// Items is never nil.
	Items []models.Item

	// Cached is true when Items came from the result cache.
	Cached bool

	// Tier is the extraction strategy that produced Items. Empty for cache
	// hits.
	Tier extract.Tier
}

// Service is the request orchestrator. It is safe for concurrent use.
type Service struct {
	engine   engine.Engine
	store    cache.Store
	maxItems int
	flights  singleflight.Group
}

// NewService wires an engine and a cache. maxItems <= 0 selects
// models.MaxItems.
func NewService(eng engine.Engine, store cache.Store, maxItems int) *Service {
	if maxItems <= 0 || maxItems > models.MaxItems {
		maxItems = models.MaxItems
	}
	return &Service{engine: eng, store: store, maxItems: maxItems}
}

// EngineName reports the configured page source provider.
func (s *Service) EngineName() string {
	return s.engine.Name()
}

// Resolve returns the recommendations for rawVideoID. Errors are always
// *models.RecsError.
func (s *Service) Resolve(ctx context.Context, rawVideoID string) (*Result, error) {
	res, err := s.resolve(ctx, rawVideoID)
	if err != nil {
		re := asRecsError(err)
		metrics.RecordRequest(re.Code)
		return nil, re
	}
	if res.Cached {
		metrics.RecordRequest("cached")
	} else {
		metrics.RecordRequest("ok")
	}
	return res, nil
}

func (s *Service) resolve(ctx context.Context, rawVideoID string) (*Result, error) {
	// ── 1. Validate ──────────────────────────────────────────────────
	id := strings.TrimSpace(rawVideoID)
	if id == "" {
		return nil, models.NewRecsError(models.ErrCodeMissingVideoID, "query parameter v is required", nil)
	}
	if !models.ValidVideoID(id) {
		return nil, models.NewRecsError(models.ErrCodeBadVideoID, "video id has an invalid shape", nil)
	}

	// ── 2. Cache ─────────────────────────────────────────────────────
	if items, ok := s.store.Get(ctx, id); ok {
		slog.Debug("cache hit", "video_id", id, "items", len(items))
		return &Result{Items: items, Cached: true}, nil
	}

	// ── 3. Coalesced fetch ───────────────────────────────────────────
	// The shared fetch is detached from any single caller so one client
	// going away does not fail the others. Each caller still stops
	// waiting when its own context ends.
	ch := s.flights.DoChan(id, func() (any, error) {
		return s.fetch(context.WithoutCancel(ctx), id)
	})
	select {
	case <-ctx.Done():
		return nil, models.NewRecsError(models.ErrCodeInternal, "request canceled", ctx.Err())
	case r := <-ch:
		if r.Shared {
			metrics.RecordCoalesced()
		}
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.(*Result), nil
	}
}

// fetch runs the provider and the extraction engine for id and stores the
// outcome. A panic anywhere below is reported as an internal error.
func (s *Service) fetch(ctx context.Context, id string) (res *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("recovered panic while resolving", "video_id", id, "panic", r)
			res = nil
			err = models.NewRecsError(models.ErrCodeInternal, "unexpected failure", fmt.Errorf("panic: %v", r))
		}
	}()

	// A flight that finished just before this one started may have filled
	// the cache.
	if items, ok := s.store.Get(ctx, id); ok {
		return &Result{Items: items, Cached: true}, nil
	}

	start := time.Now()
	snap, err := s.engine.Fetch(ctx, id)
	metrics.RecordUpstream(s.engine.Name(), time.Since(start), err)
	if err != nil {
		slog.Warn("page source failed", "video_id", id, "engine", s.engine.Name(), "error", err)
		return nil, err
	}

	out := extract.Extract(snap, s.maxItems)
	metrics.RecordExtraction(string(out.Tier), len(out.Items))
	slog.Info("extracted recommendations",
		"video_id", id, "tier", out.Tier, "items", len(out.Items),
		"duration_ms", time.Since(start).Milliseconds())

	// Empty results are stored too: they are what the upstream produced.
	s.store.Put(ctx, id, out.Items)
	return &Result{Items: out.Items, Tier: out.Tier}, nil
}

// asRecsError classifies err. Unclassified errors are internal.
func asRecsError(err error) *models.RecsError {
	var re *models.RecsError
	if errors.As(err, &re) {
		return re
	}
	return models.NewRecsError(models.ErrCodeInternal, "unexpected failure", err)
}
