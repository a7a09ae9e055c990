// Package cache is a two-tier store for property valuations keyed by a
// semantically normalized request fingerprint.
//
// # Tiers
//
// The memory tier is a bounded, mutex-guarded map. Entries expire a fixed
// duration after insertion (absolute TTL, never refreshed on access) and are
// reclaimed lazily on access or by an optional background sweeper. When the
// tier is full, the least-used then oldest quarter of entries is evicted in
// one pass, which amortizes the eviction sort across many insertions.
//
// The disk tier stores one msgpack-encoded file per key under a configured
// directory. Each record carries the value, the original request, the store
// time, and a schema version. Expiry is judged from the file's modification
// time. Writes go through a temp-file-plus-rename so a crash can never leave
// a half-written record visible; reads treat undecodable or wrong-version
// files as misses and delete them.
//
// # Flow
//
// [Cache.Get] checks memory first and falls back to disk, promoting a disk
// hit into memory. [Cache.Set] writes through to both tiers. Because the key
// digest is not reversible, the disk record retains the original request;
// [Cache.InvalidateAddress] uses it (and the normalized address set kept on
// memory entries) to remove every entry mentioning an address.
//
// # Keys
//
// Keys come from [github.com/valuationhq/propcache/cachekey]: addresses are
// case-folded, whitespace-collapsed, street-type-abbreviated and sorted, so
// "123 Main Street" and "123 main st" in either order share one entry.
//
// # Errors
//
// No operation surfaces an error for absent data, and disk I/O failures are
// logged and swallowed: a failed disk write leaves the key served from
// memory, and a corrupt record is deleted and reported as a miss. Callers can
// always treat any cache outcome as "compute it" or "use this value".
package cache
