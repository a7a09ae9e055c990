// Package agent wraps the property-valuation analysis pipeline with the
// two-tier cache and a concurrency bound. The pipeline itself is an opaque
// collaborator behind the Analyzer interface; this package decides when it
// runs at all.
package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/valuationhq/propcache/cache"
	"github.com/valuationhq/propcache/logger"
	"github.com/valuationhq/propcache/query"
)

// Analyzer runs the expensive, non-idempotent valuation computation for a
// fully formed question.
type Analyzer interface {
	Analyze(ctx context.Context, question string) (*query.Valuation, error)
}

// AnalyzerFunc adapts a function to the Analyzer interface.
type AnalyzerFunc func(ctx context.Context, question string) (*query.Valuation, error)

func (f AnalyzerFunc) Analyze(ctx context.Context, question string) (*query.Valuation, error) {
	return f(ctx, question)
}

// DefaultMaxConcurrent bounds simultaneous pipeline invocations. The pipeline
// is slow and rate-limited upstream; two in flight matches its capacity.
const DefaultMaxConcurrent = 2

// Agent is the caching front for the valuation pipeline. The cache may be nil,
// in which case every request runs the pipeline.
type Agent struct {
	analyzer Analyzer
	cache    *cache.Cache
	log      logger.Logger
	sem      *semaphore.Weighted
}

// New constructs an Agent. maxConcurrent values below one fall back to
// DefaultMaxConcurrent.
func New(analyzer Analyzer, c *cache.Cache, log logger.Logger, maxConcurrent int64) *Agent {
	if maxConcurrent < 1 {
		maxConcurrent = DefaultMaxConcurrent
	}
	return &Agent{
		analyzer: analyzer,
		cache:    c,
		log:      log,
		sem:      semaphore.NewWeighted(maxConcurrent),
	}
}

// Analyze answers a structured property query, consulting the cache before
// the pipeline and writing fresh results through afterwards. The semaphore
// bounds concurrent pipeline runs; cached answers never wait on it.
func (a *Agent) Analyze(ctx context.Context, req query.Request) (*query.Valuation, error) {
	log := a.log.With(map[string]interface{}{"request_id": uuid.NewString()})

	if a.cache != nil {
		if val, ok := a.cache.Get(req); ok {
			log.Info("cache hit for query: %v", req.Addresses)
			return val, nil
		}
	}

	question := BuildQuestion(req)
	if err := a.sem.Acquire(ctx, 1); err != nil {
		return nil, errors.Wrap(err, "waiting for analysis slot")
	}
	defer a.sem.Release(1)

	log.Debug("running analysis: %s", question)
	val, err := a.analyzer.Analyze(ctx, question)
	if err != nil {
		return nil, errors.Wrap(err, "analyzing property")
	}

	if a.cache != nil {
		a.cache.Set(req, val)
		log.Info("cached result for query: %v", req.Addresses)
	}
	return val, nil
}

// BuildQuestion renders the pipeline prompt for a query.
func BuildQuestion(req query.Request) string {
	switch {
	case req.Kind == query.KindMultiple && len(req.Addresses) == 2:
		return fmt.Sprintf(
			"If I want to sell two houses %s and %s, what is the estimated price of the two houses when selling them together?",
			req.Addresses[0], req.Addresses[1])
	case req.Kind == query.KindCompare && len(req.Addresses) >= 2:
		return fmt.Sprintf(
			"Compare the estimated values of %s and %s. What are their individual values and how do they differ?",
			req.Addresses[0], req.Addresses[1])
	case len(req.Addresses) >= 1:
		return fmt.Sprintf("What is the estimated price of %s today?", req.Addresses[0])
	default:
		return "I need a valid property address to provide an estimate."
	}
}

// Estimate is the condensed answer returned by QuickEstimate.
type Estimate struct {
	Address    string  `json:"address"`
	Estimate   string  `json:"estimate"`
	Confidence float64 `json:"confidence"`
	Success    bool    `json:"success"`
	Error      string  `json:"error,omitempty"`
}

// QuickEstimate runs a single-property valuation and condenses the result to
// its headline figure. Failures are reported in the Estimate rather than as
// an error so callers can always render something.
func (a *Agent) QuickEstimate(ctx context.Context, address string) Estimate {
	val, err := a.Analyze(ctx, query.Request{
		Addresses: []string{address},
		Kind:      query.KindSingle,
	})
	if err != nil {
		return Estimate{Address: address, Estimate: "Analysis failed", Error: err.Error()}
	}
	estimate := val.FinalEstimate
	if i := strings.IndexByte(estimate, '\n'); i >= 0 {
		estimate = estimate[:i]
	}
	if estimate == "" {
		estimate = "Estimate unavailable"
	}
	return Estimate{
		Address:    address,
		Estimate:   estimate,
		Confidence: val.Confidence,
		Success:    true,
	}
}

// HealthCheck reports whether the agent can accept work.
func (a *Agent) HealthCheck(ctx context.Context) bool {
	return a.analyzer != nil && ctx.Err() == nil
}

// CacheInfo reports cache state, or a zero Info when caching is disabled.
func (a *Agent) CacheInfo() cache.Info {
	if a.cache == nil {
		return cache.Info{}
	}
	return a.cache.Info()
}

// ClearCache empties both cache tiers and returns the (memory, disk) counts.
func (a *Agent) ClearCache() (int, int) {
	if a.cache == nil {
		return 0, 0
	}
	return a.cache.ClearAll()
}

// InvalidateAddress removes every cached entry mentioning the address.
func (a *Agent) InvalidateAddress(address string) int {
	if a.cache == nil {
		return 0
	}
	return a.cache.InvalidateAddress(address)
}

// Close releases the cache's background resources.
func (a *Agent) Close() {
	if a.cache != nil {
		a.cache.Close()
	}
}
