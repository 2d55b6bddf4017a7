// Package urlnorm canonicalises article URLs for deduplication. The
// functions here are pure and dependency-light on purpose: the storage
// service carries a byte-identical copy, and any divergence between the
// two causes ingestion drift.
package urlnorm

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Mode controls how aggressively URLs are rewritten.
type Mode string

const (
	ModeStrict  Mode = "strict"
	ModeLenient Mode = "lenient"
	ModeNone    Mode = "none"
)

// ParseMode maps a config string to a Mode, defaulting to strict.
func ParseMode(s string) Mode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "lenient":
		return ModeLenient
	case "none":
		return ModeNone
	default:
		return ModeStrict
	}
}

// Tracking query parameters stripped in strict mode. Prefixes match any
// key beginning with the prefix; exact keys match whole.
var (
	trackingPrefixes = []string{"utm_", "spm", "icid"}
	trackingExact    = map[string]bool{
		"fbclid":  true,
		"gclid":   true,
		"mc_eid":  true,
		"mc_cid":  true,
		"mkt_tok": true,
		"cmpid":   true,
	}
)

func isTrackingParam(key string) bool {
	k := strings.ToLower(key)
	if trackingExact[k] {
		return true
	}
	for _, p := range trackingPrefixes {
		if strings.HasPrefix(k, p) {
			return true
		}
	}
	return false
}

// Normalize returns the canonical form of (rawURL, canonical) under the
// given mode. The canonical URL wins when non-empty. Normalize is
// idempotent: Normalize(Normalize(u)) == Normalize(u).
func Normalize(rawURL, canonical string, mode Mode) string {
	target := strings.TrimSpace(rawURL)
	if c := strings.TrimSpace(canonical); c != "" {
		target = c
	}
	if mode == ModeNone || target == "" {
		return target
	}

	u, err := url.Parse(target)
	if err != nil || u.Host == "" {
		return target
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	// Drop default ports matching the scheme.
	if h, p, ok := strings.Cut(u.Host, ":"); ok {
		if (u.Scheme == "http" && p == "80") || (u.Scheme == "https" && p == "443") {
			u.Host = h
		}
	}

	if mode == ModeLenient {
		return u.String()
	}

	u.Path = collapseSlashes(u.Path)
	if len(u.Path) > 1 {
		u.Path = strings.TrimRight(u.Path, "/")
		if u.Path == "" {
			u.Path = "/"
		}
	}
	u.RawQuery = stripTracking(u.RawQuery)
	return u.String()
}

// collapseSlashes reduces runs of '/' in a path to single separators.
func collapseSlashes(path string) string {
	if !strings.Contains(path, "//") {
		return path
	}
	var b strings.Builder
	prevSlash := false
	for _, r := range path {
		if r == '/' {
			if prevSlash {
				continue
			}
			prevSlash = true
		} else {
			prevSlash = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

// stripTracking removes tracking parameters while preserving the order of
// the remaining pairs, so hashing stays deterministic.
func stripTracking(rawQuery string) string {
	if rawQuery == "" {
		return ""
	}
	var kept []string
	for _, pair := range strings.Split(rawQuery, "&") {
		if pair == "" {
			continue
		}
		key := pair
		if i := strings.IndexByte(pair, '='); i >= 0 {
			key = pair[:i]
		}
		if decoded, err := url.QueryUnescape(key); err == nil {
			key = decoded
		}
		if isTrackingParam(key) {
			continue
		}
		kept = append(kept, pair)
	}
	return strings.Join(kept, "&")
}

// Hash digests a normalized URL under the named algorithm. Supported:
// sha256 (default), sha1, md5, xxhash.
func Hash(normalized, algo string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(algo)) {
	case "", "sha256":
		sum := sha256.Sum256([]byte(normalized))
		return hex.EncodeToString(sum[:]), nil
	case "sha1":
		sum := sha1.Sum([]byte(normalized))
		return hex.EncodeToString(sum[:]), nil
	case "md5":
		sum := md5.Sum([]byte(normalized))
		return hex.EncodeToString(sum[:]), nil
	case "xxhash":
		return fmt.Sprintf("%016x", xxhash.Sum64String(normalized)), nil
	default:
		return "", fmt.Errorf("unsupported url hash algorithm %q", algo)
	}
}
