package wire

import (
	"cmp"
	"fmt"
	"slices"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/maxpert/eventwire/telemetry"
)

// matcher resolves a concrete channel to its ordered list of live records
// and caches the result until the next mutation.
type matcher struct {
	cache *lru.Cache[string, []*Record]
}

func newMatcher(size int) *matcher {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, []*Record](size)
	if err != nil {
		// lru.New only fails for non-positive sizes
		panic(fmt.Sprintf("match cache: %v", err))
	}
	return &matcher{cache: cache}
}

// resolve returns the records applying to channel. The returned slice is
// shared with the cache and must not be modified. Callers hold Wire.mu.
func (m *matcher) resolve(channel string, records []*Record, skips *skipRegistry) []*Record {
	if cached, ok := m.cache.Get(channel); ok {
		telemetry.MatchCacheTotal.With("hit").Inc()
		return cached
	}
	telemetry.MatchCacheTotal.With("miss").Inc()

	result := make([]*Record, 0, 4)
	for _, r := range records {
		if !r.Live() {
			continue
		}
		if skips.skips(r.name, channel) {
			continue
		}
		if !r.matches(channel) {
			continue
		}
		result = append(result, r)
	}

	stableSort(result)
	m.cache.Add(channel, result)
	return result
}

// invalidate drops every cached resolution.
func (m *matcher) invalidate() {
	m.cache.Purge()
}

// len returns the number of cached channels.
func (m *matcher) len() int {
	return m.cache.Len()
}

// stableSort orders records by ascending priority. Records arrive in
// registration order, which is kept for equal priorities.
func stableSort(records []*Record) {
	slices.SortStableFunc(records, func(a, b *Record) int {
		return cmp.Compare(a.priority, b.priority)
	})
}
