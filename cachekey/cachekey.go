// Package cachekey derives content-addressed cache keys from property queries.
//
// Two queries that mean the same thing must map to the same key even when the
// user typed them differently: address order, letter case, surrounding
// whitespace, and common street-type spellings ("Street" vs "St") are all
// absorbed by normalization before hashing. The digest is xxhash-based; it is
// a distribution guarantee, not a security boundary.
package cachekey

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/valuationhq/propcache/query"
)

// streetAbbreviations reduces common street-type words to their standard
// short form so "123 Main Street" and "123 Main St" share a key.
var streetAbbreviations = []struct{ long, short string }{
	{" street", " st"},
	{" avenue", " ave"},
	{" road", " rd"},
	{" drive", " dr"},
	{" lane", " ln"},
	{" court", " ct"},
	{" place", " pl"},
}

// NormalizeAddress canonicalizes a single address string: lower-case, trimmed,
// interior whitespace collapsed, street types abbreviated.
func NormalizeAddress(address string) string {
	addr := strings.ToLower(strings.TrimSpace(address))
	addr = strings.Join(strings.Fields(addr), " ")
	for _, abbr := range streetAbbreviations {
		addr = strings.ReplaceAll(addr, abbr.long, abbr.short)
	}
	return addr
}

// Canonical is the order-independent normalized form of a query.Request.
// Addresses are normalized and sorted; the kind is lower-cased and trimmed.
type Canonical struct {
	Addresses []string
	Kind      string
}

// Normalize builds the Canonical form of a request. The request's RawMessage
// never participates, so retries of the same structured query share a key
// regardless of phrasing.
func Normalize(req query.Request) Canonical {
	addresses := make([]string, 0, len(req.Addresses))
	for _, addr := range req.Addresses {
		addresses = append(addresses, NormalizeAddress(addr))
	}
	sort.Strings(addresses)
	return Canonical{
		Addresses: addresses,
		Kind:      strings.ToLower(strings.TrimSpace(string(req.Kind))),
	}
}

// String serializes the canonical form with a fixed field order so identical
// normalized content always yields byte-identical input to the digest.
// Field and element separators are control characters that cannot appear in
// normalized content.
func (c Canonical) String() string {
	var sb strings.Builder
	sb.WriteString("addresses\x1f")
	for i, addr := range c.Addresses {
		if i > 0 {
			sb.WriteByte('\x1e')
		}
		sb.WriteString(addr)
	}
	sb.WriteString("\x1fkind\x1f")
	sb.WriteString(c.Kind)
	return sb.String()
}

// Digest computes the fixed-width 128-bit hex cache key for a canonical form.
// Two chained xxhash sums widen the 64-bit hash; collision probability over a
// cache-sized key population is negligible.
func Digest(c Canonical) string {
	s := c.String()
	d := xxhash.New()
	_, _ = d.WriteString(s)
	lo := d.Sum64()
	_, _ = d.WriteString(s)
	hi := d.Sum64()
	return fmt.Sprintf("%016x%016x", hi, lo)
}

// ForRequest is the common path: normalize then digest.
func ForRequest(req query.Request) string {
	return Digest(Normalize(req))
}
