// Package canon canonicalizes hierarchical topic names and computes their
// 64-bit hash (spec.md §4.C), including "pinned" name detection — a
// canonical name that is itself a small decimal integer maps directly to
// that subject-id, bypassing the dynamic allocator entirely.
package canon

import (
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/cynet/meshcore/errs"
)

// MaxNameLen is the maximum length, in bytes, of a canonical topic name.
const MaxNameLen = 96

// PinnedLimit is the exclusive upper bound of the pinned subject-id range;
// canonical names whose integer value falls in [1, PinnedLimit) are pinned.
const PinnedLimit = 8192

// Canonicalize expands raw against namespace and user per spec.md §4.C:
//
//  1. If raw begins with "/", it is already an absolute name.
//  2. Else if raw begins with "~", or namespace begins with "~", the name
//     is expanded relative to the user's display name.
//  3. Else the name is expanded relative to namespace.
//
// Runs of "/" are then collapsed and any trailing "/" is stripped. An
// error is returned if the result exceeds MaxNameLen bytes.
func Canonicalize(namespace, user, raw string) (string, error) {
	if raw == "" {
		return "", errs.Argument("canon: raw name must not be empty")
	}

	var combined string
	switch {
	case strings.HasPrefix(raw, "/"):
		combined = raw
	case strings.HasPrefix(raw, "~") || strings.HasPrefix(namespace, "~"):
		tail := strings.TrimPrefix(raw, "~")
		ns := strings.TrimPrefix(namespace, "~")
		combined = "/" + trimSlashes(user) + "/" + trimSlashes(ns) + "/" + trimSlashes(tail)
	default:
		combined = "/" + trimSlashes(namespace) + "/" + trimSlashes(raw)
	}

	out := collapseSlashes(combined)
	out = strings.TrimSuffix(out, "/")
	if out == "" {
		out = "/"
	}
	if len(out) > MaxNameLen {
		return "", errs.InvalidName("canon: canonical name %q exceeds %d bytes", out, MaxNameLen)
	}
	return out, nil
}

func trimSlashes(s string) string {
	return strings.Trim(s, "/")
}

// collapseSlashes replaces every run of one or more "/" with a single "/".
func collapseSlashes(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevSlash := false
	for _, c := range s {
		if c == '/' {
			if prevSlash {
				continue
			}
			prevSlash = true
		} else {
			prevSlash = false
		}
		b.WriteRune(c)
	}
	return b.String()
}

// Pinned reports whether a canonical name is "pinned": of the form
// "/<k>" where k is a decimal integer in [1, PinnedLimit) with no
// leading zero. It returns k and true if so.
func Pinned(canonical string) (uint64, bool) {
	rest, ok := strings.CutPrefix(canonical, "/")
	if !ok || rest == "" || rest[0] == '0' {
		return 0, false
	}
	for _, c := range rest {
		if c < '0' || c > '9' {
			return 0, false
		}
	}
	v, err := strconv.ParseUint(rest, 10, 64)
	if err != nil || v < 1 || v >= PinnedLimit {
		return 0, false
	}
	return v, true
}

// Hash computes a topic's 64-bit name hash: for a pinned name, the hash
// equals the pinned integer; otherwise it is the xxhash/v2 digest of the
// name bytes (meshcore's concrete stand-in for the spec's "rapidhash",
// which is not an importable Go module — see DESIGN.md). The probability
// a non-pinned hash lands in the pinned range is treated as impossible
// per spec.md §3.
func Hash(canonical string) uint64 {
	if v, ok := Pinned(canonical); ok {
		return v
	}
	return xxhash.Sum64String(canonical)
}

// Discriminator returns the top 51 bits of a name hash, used by
// transports for fast subject-id mismatch detection.
func Discriminator(hash uint64) uint64 {
	return hash >> 13
}
