package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/use-agent/upnext/extract"
	"github.com/use-agent/upnext/models"
)

// preferenceKey is the single upstream all engines talk to.
const preferenceKey = "watch"

// Dispatcher coordinates several engines with staged escalation. It starts
// the cheapest engine first and progressively starts heavier ones if the
// earlier ones fail, time out or return a snapshot without the structured
// data object.
type Dispatcher struct {
	engines          []Engine
	escalationDelays []time.Duration
	memory           *Preference
}

// NewDispatcher creates a Dispatcher with the given engines and escalation
// delays. engines[i] starts after escalationDelays[i] from the race
// beginning. The first delay should be 0 (immediate start). memory may be nil.
func NewDispatcher(engines []Engine, escalationDelays []time.Duration, memory *Preference) *Dispatcher {
	delays := make([]time.Duration, len(engines))
	copy(delays, escalationDelays)
	return &Dispatcher{
		engines:          engines,
		escalationDelays: delays,
		memory:           memory,
	}
}

func (d *Dispatcher) Name() string { return "auto" }

// Fetch runs the race for videoID. The first engine whose snapshot carries
// structured data wins. If none does, the best weaker snapshot is returned,
// and if every engine failed, the last error is.
//
// A remembered engine is tried alone first. If it falls short, its outcome
// seeds the race and it is not run a second time.
func (d *Dispatcher) Fetch(ctx context.Context, videoID string) (*extract.Snapshot, error) {
	if remembered := d.memory.Get(preferenceKey); remembered != "" {
		for rank, eng := range d.engines {
			if eng.Name() != remembered {
				continue
			}
			snap, err := eng.Fetch(ctx, videoID)
			if err == nil && snap.HasStructured() {
				return snap, nil
			}
			slog.Info("preferred engine fell short, racing the others",
				"engine", remembered, "video_id", videoID, "error", err)
			d.memory.Delete(preferenceKey)
			return d.race(ctx, videoID, &raceResult{engine: remembered, rank: rank, snap: snap, err: err})
		}
	}
	return d.race(ctx, videoID, nil)
}

type raceResult struct {
	engine string
	rank   int
	snap   *extract.Snapshot
	err    error
}

// race runs all engines with staged delays. A non-nil seed is the outcome of
// an engine that already ran for this request; that engine is skipped and
// the remaining ones take the earliest delays.
func (d *Dispatcher) race(ctx context.Context, videoID string, seed *raceResult) (*extract.Snapshot, error) {
	raceCtx, raceCancel := context.WithCancel(ctx)
	defer raceCancel()

	results := make(chan raceResult, len(d.engines))
	var wg sync.WaitGroup

	started := 0
	for i, eng := range d.engines {
		if seed != nil && seed.engine == eng.Name() {
			continue
		}
		delay := d.escalationDelays[started]
		started++

		wg.Add(1)
		go func(rank int, e Engine, delay time.Duration) {
			defer wg.Done()

			if delay > 0 {
				timer := time.NewTimer(delay)
				defer timer.Stop()
				select {
				case <-raceCtx.Done():
					return
				case <-timer.C:
				}
			}

			// Check if another engine already won.
			select {
			case <-raceCtx.Done():
				return
			default:
			}

			slog.Debug("engine starting", "engine", e.Name(), "video_id", videoID)
			snap, err := e.Fetch(raceCtx, videoID)
			if err != nil {
				slog.Debug("engine failed", "engine", e.Name(), "video_id", videoID, "error", err)
			}
			results <- raceResult{engine: e.Name(), rank: rank, snap: snap, err: err}
		}(i, eng, delay)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	var (
		fallback *raceResult
		lastErr  error
	)
	if seed != nil {
		if seed.err != nil {
			lastErr = seed.err
		} else if seed.snap != nil {
			fallback = seed
		}
	}
	for rr := range results {
		if rr.err != nil {
			lastErr = rr.err
			continue
		}
		if rr.snap == nil {
			continue
		}
		if rr.snap.HasStructured() {
			raceCancel()
			slog.Info("engine won race", "engine", rr.engine, "video_id", videoID)
			d.memory.Set(preferenceKey, rr.engine)
			return rr.snap, nil
		}
		// Prefer the heavier engine's weak snapshot: a render tree beats
		// raw text.
		if fallback == nil || rr.rank > fallback.rank {
			r := rr
			fallback = &r
		}
	}

	if fallback != nil {
		slog.Info("no engine produced structured data, using best snapshot",
			"engine", fallback.engine, "video_id", videoID)
		return fallback.snap, nil
	}
	if lastErr == nil {
		lastErr = models.NewRecsError(models.ErrCodeInternal,
			fmt.Sprintf("all engines failed for %s", videoID), nil)
	}
	return nil, lastErr
}
