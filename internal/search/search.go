package search

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"feedsync/internal/core"
	"feedsync/pkg/async"

	"github.com/bep/debounce"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const defaultDelay = 300 * time.Millisecond

var searches = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "feedsync_profile_searches_total",
	Help: "The total number of profile searches, by outcome",
}, []string{"outcome"})

// Results is the state of the last applied search.
type Results struct {
	Query    string
	Profiles []core.Profile
	Err      error
}

// Search runs a profile search for the latest query only. Queries are debounced; a new
// query aborts the request in flight and responses to older queries are discarded.
type Search struct {
	Logger *slog.Logger
	API    core.ProfileSearcher
	// OnResults is called with every applied result, outside of any lock.
	OnResults func(Results)

	debounced func(func())

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	generation uint64
	started    uint64
	pending    string
	// done is closed once the latest query is applied.
	done    chan struct{}
	job     *async.JobHandle[[]core.Profile]
	results Results
}

func New(api core.ProfileSearcher, delay time.Duration, logger *slog.Logger) *Search {
	if delay <= 0 {
		delay = defaultDelay
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Search{
		Logger:    logger.With("component", "search.Search"),
		API:       api,
		debounced: debounce.New(delay),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Query schedules a search for q.
func (s *Search) Query(q string) {
	q = strings.TrimSpace(q)

	s.mu.Lock()
	s.generation++
	generation := s.generation
	s.pending = q
	if s.done == nil {
		s.done = make(chan struct{})
	}
	s.abort()
	s.mu.Unlock()

	s.debounced(func() {
		s.run(generation, q)
	})
}

// Results returns the last applied results.
func (s *Search) Results() Results {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.results
}

// Flush runs the pending query without waiting for the debounce delay and blocks until its
// results are applied. It returns at once when nothing is pending.
func (s *Search) Flush(ctx context.Context) error {
	s.mu.Lock()
	generation, q, done := s.generation, s.pending, s.done
	s.mu.Unlock()

	if done == nil {
		return nil
	}

	s.run(generation, q)

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close aborts the request in flight and drops pending queries.
func (s *Search) Close() {
	s.mu.Lock()
	s.generation++
	s.abort()
	s.settle()
	s.mu.Unlock()

	s.cancel()
}

func (s *Search) run(generation uint64, q string) {
	s.mu.Lock()
	if generation != s.generation || generation == s.started {
		s.mu.Unlock()
		return
	}
	s.started = generation

	if q == "" {
		s.mu.Unlock()
		s.apply(generation, Results{})
		return
	}

	job := async.Job(s.ctx, func(ctx context.Context) ([]core.Profile, error) {
		return s.API.SearchProfiles(ctx, q)
	})
	s.job = job
	s.mu.Unlock()

	profiles, err := job.Wait()
	s.apply(generation, Results{Query: q, Profiles: profiles, Err: err})
}

func (s *Search) apply(generation uint64, results Results) {
	s.mu.Lock()
	if generation != s.generation {
		s.mu.Unlock()
		searches.WithLabelValues("discarded").Inc()
		s.Logger.Debug("discarding stale search response", "query", results.Query)
		return
	}

	s.results = results
	s.job = nil
	onResults := s.OnResults
	done := s.done
	s.done = nil
	s.mu.Unlock()

	if done != nil {
		defer close(done)
	}

	if results.Err != nil {
		searches.WithLabelValues("failed").Inc()
		s.Logger.Warn("profile search failed", "query", results.Query, "error", results.Err)
	} else {
		searches.WithLabelValues("applied").Inc()
	}

	if onResults != nil {
		onResults(results)
	}
}

// settle releases Flush waiters, mu must be held.
func (s *Search) settle() {
	if s.done != nil {
		close(s.done)
		s.done = nil
	}
}

// abort must be called with mu held.
func (s *Search) abort() {
	if s.job != nil {
		s.job.Stop()
		s.job = nil
	}
}
