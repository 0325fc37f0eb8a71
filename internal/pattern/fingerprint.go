package pattern

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"strings"
)

// ErrInvalidFingerprint is returned for a context string that cannot yield a
// fingerprint. Callers treat this as a cold-start pattern, never as fatal.
var ErrInvalidFingerprint = errors.New("pattern: invalid fingerprint context")

// DefaultPrefixLen is the number of runes of normalized context that feed the
// fingerprint hash.
const DefaultPrefixLen = 50

// Fingerprint derives a coarse, lossy digest from a raw context string using
// the default prefix length.
func Fingerprint(context string) (string, error) {
	return FingerprintN(context, DefaultPrefixLen)
}

// FingerprintN normalizes the context (lowercase, collapsed whitespace),
// truncates it to prefixLen runes, and hashes the prefix.
//
// The truncation is deliberate: near-duplicate contexts collapse into one
// pattern so learning generalizes across similar situations. Tighter
// fingerprints would make every context "new" and slow learning to a crawl;
// looser ones generalize faster but noisier. Collisions are acceptable.
func FingerprintN(context string, prefixLen int) (string, error) {
	norm := strings.ToLower(strings.Join(strings.Fields(context), " "))
	if norm == "" {
		return "", ErrInvalidFingerprint
	}
	if prefixLen <= 0 {
		prefixLen = DefaultPrefixLen
	}
	runes := []rune(norm)
	if len(runes) > prefixLen {
		runes = runes[:prefixLen]
	}
	sum := sha1.Sum([]byte(string(runes)))
	return hex.EncodeToString(sum[:]), nil
}
