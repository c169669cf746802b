package workspace

import (
	"path/filepath"
	"regexp"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// IgnoreRule is a compiled ignore pattern tested against entry basenames.
// An invalid pattern compiles to a rule that matches nothing.
type IgnoreRule struct {
	pattern string
	re      *regexp.Regexp
	valid   bool
}

// CompileIgnore compiles a user pattern. It never fails: an empty pattern
// ignores nothing, and a malformed one logs a diagnostic and ignores nothing.
func CompileIgnore(pattern string) *IgnoreRule {
	rule := &IgnoreRule{pattern: pattern, valid: true}
	if pattern == "" {
		return rule
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		sub("ignore").Warn("invalid ignore pattern, nothing will be ignored", "pattern", pattern, "err", err)
		rule.valid = false
		return rule
	}
	rule.re = re
	return rule
}

// Match reports whether the entry should be pruned. Only the basename of
// name is tested, so a rule prunes equally named entries at any depth.
func (r *IgnoreRule) Match(name string) bool {
	if r == nil || r.re == nil {
		return false
	}
	return r.re.MatchString(filepath.Base(name))
}

// Valid is false when the source pattern failed to compile.
func (r *IgnoreRule) Valid() bool {
	return r == nil || r.valid
}

// Pattern returns the source pattern.
func (r *IgnoreRule) Pattern() string {
	if r == nil {
		return ""
	}
	return r.pattern
}

const defaultMatcherTTL = 10 * time.Minute

// MatcherCache keeps compiled rules keyed by their pattern string, so
// re-reading the pattern on every scan does not recompile it. A changed
// pattern is simply a different key.
type MatcherCache struct {
	cache *ttlcache.Cache[string, *IgnoreRule]
}

// NewMatcherCache creates a cache whose entries expire after ttl of disuse.
func NewMatcherCache(ttl time.Duration) *MatcherCache {
	if ttl <= 0 {
		ttl = defaultMatcherTTL
	}
	return &MatcherCache{
		cache: ttlcache.New[string, *IgnoreRule](
			ttlcache.WithTTL[string, *IgnoreRule](ttl),
		),
	}
}

// Get returns the compiled rule for pattern, compiling it on first use.
func (c *MatcherCache) Get(pattern string) *IgnoreRule {
	if item := c.cache.Get(pattern); item != nil {
		return item.Value()
	}
	rule := CompileIgnore(pattern)
	c.cache.Set(pattern, rule, ttlcache.DefaultTTL)
	return rule
}

// Len returns the number of cached rules.
func (c *MatcherCache) Len() int {
	return c.cache.Len()
}
