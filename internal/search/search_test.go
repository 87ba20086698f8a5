package search_test

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"feedsync/internal/core"
	"feedsync/internal/search"

	"github.com/stretchr/testify/require"
)

const delay = 20 * time.Millisecond

type fakeSearcher struct {
	mu      sync.Mutex
	queries []string
	block   map[string]chan struct{}
	fail    map[string]error
}

func (f *fakeSearcher) SearchProfiles(ctx context.Context, q string) ([]core.Profile, error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	gate := f.block[q]
	err := f.fail[q]
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}

	return []core.Profile{{Username: q}}, nil
}

func (f *fakeSearcher) seen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.queries)
}

func newSearch(t *testing.T, api core.ProfileSearcher) (*search.Search, <-chan search.Results) {
	t.Helper()

	results := make(chan search.Results, 10)

	s := search.New(api, delay, nil)
	s.OnResults = func(r search.Results) {
		results <- r
	}
	t.Cleanup(s.Close)

	return s, results
}

func receive(t *testing.T, ch <-chan search.Results) search.Results {
	t.Helper()

	select {
	case r := <-ch:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("no search results")
		return search.Results{}
	}
}

func TestSearch_DebouncesQueries(t *testing.T) {
	t.Parallel()

	api := &fakeSearcher{}
	s, results := newSearch(t, api)

	s.Query("a")
	s.Query("al")
	s.Query(" ali ")

	r := receive(t, results)

	require.Equal(t, "ali", r.Query)
	require.Equal(t, []core.Profile{{Username: "ali"}}, r.Profiles)
	require.Equal(t, []string{"ali"}, api.seen())
	require.Equal(t, r, s.Results())
}

func TestSearch_OnlyLatestResponseIsApplied(t *testing.T) {
	t.Parallel()

	api := &fakeSearcher{block: map[string]chan struct{}{"slow": make(chan struct{})}}
	s, results := newSearch(t, api)

	s.Query("slow")
	require.Eventually(t, func() bool {
		return slices.Contains(api.seen(), "slow")
	}, 5*time.Second, 5*time.Millisecond)

	s.Query("fast")

	r := receive(t, results)
	require.Equal(t, "fast", r.Query)
	require.NoError(t, r.Err)

	time.Sleep(3 * delay)
	require.Empty(t, results)
	require.Equal(t, "fast", s.Results().Query)
}

func TestSearch_FailuresAreReported(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	api := &fakeSearcher{fail: map[string]error{"bad": boom}}
	s, results := newSearch(t, api)

	s.Query("bad")

	r := receive(t, results)
	require.ErrorIs(t, r.Err, boom)
	require.Empty(t, r.Profiles)
}

func TestSearch_EmptyQueryClearsResults(t *testing.T) {
	t.Parallel()

	api := &fakeSearcher{}
	s, results := newSearch(t, api)

	s.Query("bob")
	require.Equal(t, "bob", receive(t, results).Query)

	s.Query("   ")
	require.Equal(t, search.Results{}, receive(t, results))
	require.Equal(t, []string{"bob"}, api.seen())
}

func TestSearch_CloseDropsPendingQueries(t *testing.T) {
	t.Parallel()

	api := &fakeSearcher{}
	s, results := newSearch(t, api)

	s.Query("never")
	s.Close()

	time.Sleep(3 * delay)
	require.Empty(t, results)
	require.Empty(t, api.seen())
}

func TestSearch_FlushAppliesLastQuery(t *testing.T) {
	t.Parallel()

	api := &fakeSearcher{}

	// The debounce never fires within the test.
	s := search.New(api, time.Hour, nil)
	t.Cleanup(s.Close)

	var applied []search.Results
	s.OnResults = func(r search.Results) {
		applied = append(applied, r)
	}

	require.NoError(t, s.Flush(t.Context()))

	s.Query("al")
	s.Query("ali")
	require.NoError(t, s.Flush(t.Context()))

	require.Equal(t, "ali", s.Results().Query)
	require.Len(t, applied, 1)
	require.Equal(t, []string{"ali"}, api.seen())

	require.NoError(t, s.Flush(t.Context()))
	require.Equal(t, []string{"ali"}, api.seen())
}

func TestSearch_FlushWaitsForRequestInFlight(t *testing.T) {
	t.Parallel()

	gate := make(chan struct{})
	api := &fakeSearcher{block: map[string]chan struct{}{"slow": gate}}
	s, results := newSearch(t, api)

	s.Query("slow")
	require.Eventually(t, func() bool {
		return slices.Contains(api.seen(), "slow")
	}, 5*time.Second, 5*time.Millisecond)

	flushed := make(chan error, 1)
	go func() {
		flushed <- s.Flush(t.Context())
	}()

	select {
	case <-flushed:
		t.Fatal("flush returned before the response")
	case <-time.After(3 * delay):
	}

	close(gate)
	require.NoError(t, <-flushed)
	require.Equal(t, "slow", receive(t, results).Query)
	require.Equal(t, []string{"slow"}, api.seen())
}

func TestSearch_CloseReleasesFlush(t *testing.T) {
	t.Parallel()

	api := &fakeSearcher{block: map[string]chan struct{}{"stuck": make(chan struct{})}}
	s, _ := newSearch(t, api)

	s.Query("stuck")

	flushed := make(chan error, 1)
	go func() {
		flushed <- s.Flush(t.Context())
	}()

	require.Eventually(t, func() bool {
		return slices.Contains(api.seen(), "stuck")
	}, 5*time.Second, 5*time.Millisecond)
	s.Close()

	select {
	case err := <-flushed:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("flush still blocked after close")
	}
}
