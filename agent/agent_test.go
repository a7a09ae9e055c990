package agent

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valuationhq/propcache/cache"
	"github.com/valuationhq/propcache/logger"
	"github.com/valuationhq/propcache/query"
)

type countingAnalyzer struct {
	mu        sync.Mutex
	calls     int
	inFlight  int32
	maxSeen   int32
	delay     time.Duration
	valuation *query.Valuation
	err       error
}

func (a *countingAnalyzer) Analyze(ctx context.Context, question string) (*query.Valuation, error) {
	cur := atomic.AddInt32(&a.inFlight, 1)
	defer atomic.AddInt32(&a.inFlight, -1)
	for {
		prev := atomic.LoadInt32(&a.maxSeen)
		if cur <= prev || atomic.CompareAndSwapInt32(&a.maxSeen, prev, cur) {
			break
		}
	}
	if a.delay > 0 {
		time.Sleep(a.delay)
	}
	a.mu.Lock()
	a.calls++
	err, val := a.err, a.valuation
	a.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return val, nil
}

func (a *countingAnalyzer) callCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

func newTestAgent(t *testing.T, analyzer Analyzer) *Agent {
	t.Helper()
	c, err := cache.New(context.Background(), logger.NewTestLogger(),
		cache.WithDiskDir(t.TempDir()),
		cache.WithSweepInterval(0),
	)
	require.NoError(t, err)
	a := New(analyzer, c, logger.NewTestLogger(), 2)
	t.Cleanup(a.Close)
	return a
}

func TestAnalyzeCachesResult(t *testing.T) {
	analyzer := &countingAnalyzer{valuation: &query.Valuation{FinalEstimate: "$500,000"}}
	a := newTestAgent(t, analyzer)
	req := query.Request{Addresses: []string{"123 Main St"}, Kind: query.KindSingle}

	val, err := a.Analyze(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "$500,000", val.FinalEstimate)
	assert.Equal(t, 1, analyzer.callCount())

	// Second call is served from cache; the pipeline does not run again.
	val, err = a.Analyze(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "$500,000", val.FinalEstimate)
	assert.Equal(t, 1, analyzer.callCount())
}

func TestAnalyzeEquivalentRequestsShareEntry(t *testing.T) {
	analyzer := &countingAnalyzer{valuation: &query.Valuation{FinalEstimate: "$1"}}
	a := newTestAgent(t, analyzer)

	_, err := a.Analyze(context.Background(), query.Request{
		Addresses: []string{"123 Main Street, City"}, Kind: query.KindSingle,
	})
	require.NoError(t, err)
	_, err = a.Analyze(context.Background(), query.Request{
		Addresses: []string{"123 main st, city"}, Kind: query.KindSingle,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, analyzer.callCount())
}

func TestAnalyzeErrorNotCached(t *testing.T) {
	analyzer := &countingAnalyzer{err: errors.New("pipeline down")}
	a := newTestAgent(t, analyzer)
	req := query.Request{Addresses: []string{"123 Main St"}, Kind: query.KindSingle}

	_, err := a.Analyze(context.Background(), req)
	assert.Error(t, err)

	analyzer.mu.Lock()
	analyzer.err = nil
	analyzer.valuation = &query.Valuation{FinalEstimate: "$2"}
	analyzer.mu.Unlock()

	val, err := a.Analyze(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "$2", val.FinalEstimate)
	assert.Equal(t, 2, analyzer.callCount())
}

func TestAnalyzeConcurrencyBound(t *testing.T) {
	analyzer := &countingAnalyzer{
		delay:     30 * time.Millisecond,
		valuation: &query.Valuation{FinalEstimate: "$1"},
	}
	a := newTestAgent(t, analyzer)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, _ = a.Analyze(context.Background(), query.Request{
				Addresses: []string{string(rune('a'+n)) + "00 Test St"},
				Kind:      query.KindSingle,
			})
		}(i)
	}
	wg.Wait()
	assert.LessOrEqual(t, atomic.LoadInt32(&analyzer.maxSeen), int32(2))
}

func TestBuildQuestion(t *testing.T) {
	two := []string{"123 Main St", "125 Main St"}
	assert.Contains(t, BuildQuestion(query.Request{Addresses: two, Kind: query.KindMultiple}), "selling them together")
	assert.Contains(t, BuildQuestion(query.Request{Addresses: two, Kind: query.KindCompare}), "Compare the estimated values")
	assert.Contains(t, BuildQuestion(query.Request{Addresses: two[:1], Kind: query.KindSingle}), "123 Main St")
	assert.Contains(t, BuildQuestion(query.Request{Kind: query.KindSingle}), "valid property address")
}

func TestQuickEstimate(t *testing.T) {
	analyzer := &countingAnalyzer{valuation: &query.Valuation{
		FinalEstimate: "$500,000\nbased on three comparable sales",
		Confidence:    0.85,
	}}
	a := newTestAgent(t, analyzer)

	est := a.QuickEstimate(context.Background(), "123 Main St")
	assert.True(t, est.Success)
	assert.Equal(t, "$500,000", est.Estimate)
	assert.InDelta(t, 0.85, est.Confidence, 1e-9)
}

func TestQuickEstimateFailure(t *testing.T) {
	analyzer := &countingAnalyzer{err: errors.New("pipeline down")}
	a := newTestAgent(t, analyzer)

	est := a.QuickEstimate(context.Background(), "123 Main St")
	assert.False(t, est.Success)
	assert.Equal(t, "Analysis failed", est.Estimate)
	assert.Contains(t, est.Error, "pipeline down")
}

func TestAgentWithoutCache(t *testing.T) {
	analyzer := &countingAnalyzer{valuation: &query.Valuation{FinalEstimate: "$1"}}
	a := New(analyzer, nil, logger.NewTestLogger(), 0)
	defer a.Close()
	req := query.Request{Addresses: []string{"123 Main St"}, Kind: query.KindSingle}

	_, err := a.Analyze(context.Background(), req)
	require.NoError(t, err)
	_, err = a.Analyze(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 2, analyzer.callCount())
	assert.Equal(t, 0, a.InvalidateAddress("123 Main St"))
	memory, disk := a.ClearCache()
	assert.Zero(t, memory)
	assert.Zero(t, disk)
}

func TestHealthCheck(t *testing.T) {
	a := newTestAgent(t, &countingAnalyzer{valuation: &query.Valuation{}})
	assert.True(t, a.HealthCheck(context.Background()))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, a.HealthCheck(ctx))
}
