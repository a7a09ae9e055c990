package cache

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/valuationhq/propcache/cachekey"
	"github.com/valuationhq/propcache/logger"
	"github.com/valuationhq/propcache/query"
)

// schemaVersion is embedded in every disk record. Records carrying any other
// version are treated as corrupt and deleted on read.
const schemaVersion = "1"

// fileExt is the extension for disk record files, one file per cache key.
const fileExt = ".msgpack"

// diskRecord is the persisted envelope. The original request rides along
// because the key digest is not reversible: address invalidation and
// debugging both need to recover what produced a cached value.
type diskRecord struct {
	Value    *query.Valuation `msgpack:"value"`
	Request  query.Request    `msgpack:"request"`
	StoredAt time.Time        `msgpack:"stored_at"`
	Version  string           `msgpack:"version"`
}

type diskStore struct {
	mu  sync.Mutex
	dir string
	ttl time.Duration
	log logger.Logger
}

func newDiskStore(dir string, ttl time.Duration, log logger.Logger) (*diskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "creating disk cache directory %s", dir)
	}
	return &diskStore{dir: dir, ttl: ttl, log: log}, nil
}

func (s *diskStore) path(key string) string {
	return filepath.Join(s.dir, key+fileExt)
}

// get reads the record for key. Expiry is judged from the file's modification
// time. Expired, unreadable, undecodable, or version-mismatched files are
// deleted so they cannot keep failing, and all of those cases report a miss.
func (s *diskStore) get(key string, now time.Time) (*query.Valuation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	path := s.path(key)
	info, err := os.Stat(path)
	if err != nil {
		return nil, false
	}
	if now.Sub(info.ModTime()) > s.ttl {
		_ = os.Remove(path)
		return nil, false
	}
	record, err := s.readRecord(path)
	if err != nil {
		s.log.Warn("removing unreadable cache record %s: %v", key, err)
		_ = os.Remove(path)
		return nil, false
	}
	return record.Value, true
}

func (s *diskStore) readRecord(path string) (*diskRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var record diskRecord
	if err := msgpack.Unmarshal(data, &record); err != nil {
		return nil, errors.Wrap(err, "decoding record")
	}
	if record.Version != schemaVersion {
		return nil, errors.Newf("unsupported record version %q", record.Version)
	}
	return &record, nil
}

// put persists the full envelope. The write goes to a temporary file in the
// same directory and is renamed into place so readers can never observe a
// half-written record. Failures are logged and swallowed; the memory tier
// keeps serving the key.
func (s *diskStore) put(key string, val *query.Valuation, req query.Request, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record := diskRecord{
		Value:    val,
		Request:  req,
		StoredAt: now,
		Version:  schemaVersion,
	}
	data, err := msgpack.Marshal(&record)
	if err != nil {
		s.log.Warn("encoding cache record %s: %v", key, err)
		return
	}
	tmp, err := os.CreateTemp(s.dir, key+".tmp-*")
	if err != nil {
		s.log.Warn("writing cache record %s: %v", key, err)
		return
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		_ = os.Remove(tmp.Name())
		s.log.Warn("writing cache record %s: %v", key, err)
		return
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		s.log.Warn("writing cache record %s: %v", key, err)
		return
	}
	if err := os.Rename(tmp.Name(), s.path(key)); err != nil {
		_ = os.Remove(tmp.Name())
		s.log.Warn("writing cache record %s: %v", key, err)
	}
}

// listKeys returns the key of every record file currently on disk.
func (s *diskStore) listKeys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listKeysLocked()
}

func (s *diskStore) listKeysLocked() []string {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		s.log.Warn("listing cache directory %s: %v", s.dir, err)
		return nil
	}
	keys := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, fileExt) {
			continue
		}
		keys = append(keys, strings.TrimSuffix(name, fileExt))
	}
	return keys
}

// findByAddressSubstring scans every record and reports the keys whose stored
// request contains an address that, once normalized, contains the target
// substring. Unreadable records are skipped, not fatal. This is a full scan;
// invalidation is rare and operator-triggered, never on the request hot path.
func (s *diskStore) findByAddressSubstring(normalized string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matches []string
	for _, key := range s.listKeysLocked() {
		record, err := s.readRecord(s.path(key))
		if err != nil {
			s.log.Warn("skipping cache record %s during scan: %v", key, err)
			continue
		}
		for _, addr := range record.Request.Addresses {
			if strings.Contains(cachekey.NormalizeAddress(addr), normalized) {
				matches = append(matches, key)
				break
			}
		}
	}
	return matches
}

func (s *diskStore) remove(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return os.Remove(s.path(key)) == nil
}

func (s *diskStore) sweepExpired(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for _, key := range s.listKeysLocked() {
		path := s.path(key)
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) > s.ttl {
			if os.Remove(path) == nil {
				removed++
			}
		}
	}
	return removed
}

func (s *diskStore) clear() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for _, key := range s.listKeysLocked() {
		if os.Remove(s.path(key)) == nil {
			removed++
		}
	}
	return removed
}

// size returns the record count and total byte size on disk.
func (s *diskStore) size() (int, int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	var bytes int64
	for _, key := range s.listKeysLocked() {
		info, err := os.Stat(s.path(key))
		if err != nil {
			continue
		}
		count++
		bytes += info.Size()
	}
	return count, bytes
}
