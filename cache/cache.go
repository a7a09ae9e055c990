package cache

import (
	"context"
	"sync"
	"time"

	"github.com/valuationhq/propcache/cachekey"
	"github.com/valuationhq/propcache/logger"
	"github.com/valuationhq/propcache/query"
)

// Defaults mirror the valuation pipeline's operating profile: memory entries
// bound staleness to a day, disk entries to a week.
const (
	DefaultMaxMemoryItems = 100
	DefaultMemoryTTL      = 24 * time.Hour
	DefaultDiskTTL        = 7 * 24 * time.Hour
	DefaultDiskDir        = "cache"
	DefaultSweepInterval  = time.Minute
)

type config struct {
	maxMemoryItems int
	memoryTTL      time.Duration
	diskDir        string
	diskTTL        time.Duration
	diskEnabled    bool
	sweepInterval  time.Duration
}

// Option configures a Cache.
type Option func(*config)

func defaultConfig() config {
	return config{
		maxMemoryItems: DefaultMaxMemoryItems,
		memoryTTL:      DefaultMemoryTTL,
		diskDir:        DefaultDiskDir,
		diskTTL:        DefaultDiskTTL,
		diskEnabled:    true,
		sweepInterval:  DefaultSweepInterval,
	}
}

// WithMaxMemoryItems sets the memory tier capacity before eviction triggers.
func WithMaxMemoryItems(n int) Option {
	return func(c *config) { c.maxMemoryItems = n }
}

// WithMemoryTTL sets the absolute age limit for memory entries.
func WithMemoryTTL(d time.Duration) Option {
	return func(c *config) { c.memoryTTL = d }
}

// WithDiskDir sets the directory holding one file per disk record.
func WithDiskDir(dir string) Option {
	return func(c *config) { c.diskDir = dir }
}

// WithDiskTTL sets the absolute age limit for disk entries, judged from file
// modification time.
func WithDiskTTL(d time.Duration) Option {
	return func(c *config) { c.diskTTL = d }
}

// WithDiskDisabled degrades the cache to memory-only.
func WithDiskDisabled() Option {
	return func(c *config) { c.diskEnabled = false }
}

// WithSweepInterval sets how often the background sweeper reclaims expired
// entries. Zero or negative disables the sweeper; lazy expiry on access keeps
// the cache correct either way.
func WithSweepInterval(d time.Duration) Option {
	return func(c *config) { c.sweepInterval = d }
}

// Cache is a two-tier valuation cache: a bounded in-memory tier in front of a
// file-per-key disk tier. Keys are content-addressed digests of the
// normalized request, so semantically equivalent requests share an entry.
// All methods are safe for concurrent use. No method ever surfaces an error
// for a data-not-found condition; absence is always a miss.
type Cache struct {
	log       logger.Logger
	cfg       config
	memory    *memoryStore
	disk      *diskStore
	stats     *stats
	cancel    context.CancelFunc
	waitGroup sync.WaitGroup
	once      sync.Once
}

// New constructs a Cache. The parent context bounds the background sweeper;
// cancelling it (or calling Close) stops the sweeper. The only constructor
// error is failing to create the disk directory.
func New(parent context.Context, log logger.Logger, opts ...Option) (*Cache, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	ctx, cancel := context.WithCancel(parent)
	st := newStats()
	c := &Cache{
		log:    log,
		cfg:    cfg,
		memory: newMemoryStore(cfg.maxMemoryItems, cfg.memoryTTL, st),
		stats:  st,
		cancel: cancel,
	}
	if cfg.diskEnabled {
		disk, err := newDiskStore(cfg.diskDir, cfg.diskTTL, log)
		if err != nil {
			cancel()
			return nil, err
		}
		c.disk = disk
	}
	if cfg.sweepInterval > 0 {
		c.waitGroup.Add(1)
		go c.run(ctx)
	}
	log.Info("cache initialized: memory=%d disk=%v", cfg.maxMemoryItems, cfg.diskEnabled)
	return c, nil
}

func (c *Cache) run(ctx context.Context) {
	defer c.waitGroup.Done()
	ticker := time.NewTicker(c.cfg.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			memory, disk := c.ClearExpired()
			if memory+disk > 0 {
				c.log.Debug("sweeper cleared %d memory + %d disk expired entries", memory, disk)
			}
		}
	}
}

// Get returns the cached valuation for a request, trying the memory tier
// first and falling back to disk. A disk hit is promoted into memory.
func (c *Cache) Get(req query.Request) (*query.Valuation, bool) {
	canonical := cachekey.Normalize(req)
	key := cachekey.Digest(canonical)
	now := time.Now()

	if val, ok := c.memory.get(key, now); ok {
		c.stats.hit()
		c.log.Debug("cache hit (memory): %.8s", key)
		return val, true
	}

	if c.disk != nil {
		if val, ok := c.disk.get(key, now); ok {
			c.memory.put(key, val, canonical.Addresses, now)
			c.stats.hit()
			c.log.Debug("cache hit (disk): %.8s", key)
			return val, true
		}
	}

	c.stats.miss()
	c.log.Debug("cache miss: %.8s", key)
	return nil, false
}

// Set writes a valuation through to both tiers. The original request is
// persisted with the disk record to support later address invalidation.
func (c *Cache) Set(req query.Request, val *query.Valuation) {
	canonical := cachekey.Normalize(req)
	key := cachekey.Digest(canonical)
	now := time.Now()

	c.memory.put(key, val, canonical.Addresses, now)
	if c.disk != nil {
		c.disk.put(key, val, req, now)
	}
	c.stats.save()
	c.log.Debug("cached result: %.8s", key)
}

// InvalidateAddress removes every cached entry, in both tiers, whose
// normalized address set contains the normalized form of address as a
// substring. It returns the number of entries removed across both tiers.
func (c *Cache) InvalidateAddress(address string) int {
	normalized := cachekey.NormalizeAddress(address)
	removed := c.memory.invalidateAddress(normalized)
	if c.disk != nil {
		for _, key := range c.disk.findByAddressSubstring(normalized) {
			if c.disk.remove(key) {
				removed++
			}
		}
	}
	c.log.Info("invalidated %d cache entries for address: %s", removed, address)
	return removed
}

// ClearExpired sweeps expired entries from both tiers and returns the
// (memory, disk) removal counts.
func (c *Cache) ClearExpired() (int, int) {
	now := time.Now()
	memory := c.memory.sweepExpired(now)
	disk := 0
	if c.disk != nil {
		disk = c.disk.sweepExpired(now)
	}
	if memory+disk > 0 {
		c.log.Info("cleared %d memory + %d disk expired entries", memory, disk)
	}
	return memory, disk
}

// ClearAll unconditionally empties both tiers and returns the (memory, disk)
// removal counts.
func (c *Cache) ClearAll() (int, int) {
	memory := c.memory.clear()
	disk := 0
	if c.disk != nil {
		disk = c.disk.clear()
	}
	c.log.Info("cleared all cache: %d memory + %d disk entries", memory, disk)
	return memory, disk
}

// Stats returns the performance counters plus current tier occupancy.
func (c *Cache) Stats() StatsSnapshot {
	snap := c.stats.snapshot()
	snap.MemoryItems = c.memory.size()
	if c.disk != nil {
		snap.DiskItems, _ = c.disk.size()
	}
	return snap
}

// MemoryInfo describes the memory tier.
type MemoryInfo struct {
	Size    int           `json:"size"`
	MaxSize int           `json:"max_size"`
	TTL     time.Duration `json:"ttl"`
}

// DiskInfo describes the disk tier.
type DiskInfo struct {
	Enabled   bool          `json:"enabled"`
	Dir       string        `json:"dir,omitempty"`
	Size      int           `json:"size"`
	SizeBytes int64         `json:"size_bytes"`
	TTL       time.Duration `json:"ttl"`
}

// Info is a comprehensive view of both tiers and the stats counters.
type Info struct {
	Memory MemoryInfo    `json:"memory_cache"`
	Disk   DiskInfo      `json:"disk_cache"`
	Stats  StatsSnapshot `json:"statistics"`
}

// Info reports tier configuration, occupancy, and statistics.
func (c *Cache) Info() Info {
	info := Info{
		Memory: MemoryInfo{
			Size:    c.memory.size(),
			MaxSize: c.cfg.maxMemoryItems,
			TTL:     c.cfg.memoryTTL,
		},
		Disk: DiskInfo{
			Enabled: c.cfg.diskEnabled,
			TTL:     c.cfg.diskTTL,
		},
		Stats: c.stats.snapshot(),
	}
	info.Stats.MemoryItems = info.Memory.Size
	if c.disk != nil {
		info.Disk.Dir = c.cfg.diskDir
		info.Disk.Size, info.Disk.SizeBytes = c.disk.size()
		info.Stats.DiskItems = info.Disk.Size
	}
	return info
}

// Close stops the background sweeper. Cached data is left intact.
func (c *Cache) Close() {
	c.once.Do(func() {
		c.cancel()
		c.waitGroup.Wait()
	})
}
