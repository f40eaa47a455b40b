package db

import (
	"strings"
	"sync"
)

// prefixIndex tracks live cache keys so whole key families can be
// invalidated at once.
type prefixIndex struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

func newPrefixIndex() *prefixIndex {
	return &prefixIndex{keys: make(map[string]struct{})}
}

func (p *prefixIndex) add(key string) {
	p.mu.Lock()
	p.keys[key] = struct{}{}
	p.mu.Unlock()
}

func (p *prefixIndex) remove(key string) {
	p.mu.Lock()
	delete(p.keys, key)
	p.mu.Unlock()
}

// take returns and forgets every tracked key with the given prefix.
func (p *prefixIndex) take(prefix string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var matched []string
	for key := range p.keys {
		if strings.HasPrefix(key, prefix) {
			matched = append(matched, key)
			delete(p.keys, key)
		}
	}
	return matched
}
