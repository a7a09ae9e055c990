package query

import (
	"regexp"
	"strings"
)

// addressPattern matches a street-number-anchored address, optionally followed
// by comma-separated locality segments ("123 Main St, Springfield, IL 62704").
var addressPattern = regexp.MustCompile(`(?i)(\d+[A-Z]?\s+[^,\n]+(?:,\s*[^,\n]+)*)`)

// conjunctionPattern splits a message into per-address segments before
// matching, so "123 Main St and 456 Oak Ave" yields two addresses instead of
// one run-on match.
var conjunctionPattern = regexp.MustCompile(`(?i)\s+(?:and|vs\.?|versus|&)\s+`)

var compareWords = []string{"compare", " vs ", " vs.", "versus"}
var multipleWords = []string{"both", "multiple", "together"}

// ParseMessage extracts a structured Request from a free-text message using
// deterministic heuristics. It never fails; a message with no recognizable
// address yields a Request with an empty address list.
func ParseMessage(message string) Request {
	var addresses []string
	seen := make(map[string]struct{})
	for _, segment := range conjunctionPattern.Split(message, -1) {
		for _, match := range addressPattern.FindAllString(segment, -1) {
			addr := strings.TrimSpace(match)
			if len(addr) <= 5 {
				continue
			}
			if _, dup := seen[addr]; dup {
				continue
			}
			seen[addr] = struct{}{}
			addresses = append(addresses, addr)
		}
	}

	lower := strings.ToLower(message)
	kind := KindSingle
	switch {
	case containsAny(lower, compareWords):
		kind = KindCompare
	case len(addresses) > 1 || containsAny(lower, multipleWords):
		kind = KindMultiple
	}

	return Request{
		Addresses:  addresses,
		Kind:       kind,
		RawMessage: message,
	}
}

// ValidateAddresses splits addresses into plausibly valid and invalid. An
// address must contain at least one digit and be longer than a handful of
// characters to be worth sending to the analysis pipeline.
func ValidateAddresses(addresses []string) (valid []string, invalid []string) {
	for _, address := range addresses {
		if isValidAddress(address) {
			valid = append(valid, address)
		} else {
			invalid = append(invalid, address)
		}
	}
	return valid, invalid
}

var digitPattern = regexp.MustCompile(`\d`)

func isValidAddress(address string) bool {
	if !digitPattern.MatchString(address) {
		return false
	}
	return len(strings.TrimSpace(address)) >= 5
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
