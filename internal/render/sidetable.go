package render

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

const DefaultSideTableSize = 4096

// SideTable is a bounded host-side map from row key to the id of the externally rendered
// artifact for that row. The least recently bound entries are evicted first.
type SideTable struct {
	cache *lru.Cache[string, string]
}

func NewSideTable(size int) (*SideTable, error) {
	if size <= 0 {
		size = DefaultSideTableSize
	}
	c, err := lru.New[string, string](size)
	if err != nil {
		return nil, err
	}
	return &SideTable{cache: c}, nil
}

func (t *SideTable) Bind(key, externalID string) {
	t.cache.Add(key, externalID)
}

func (t *SideTable) ExternalID(key string) (string, bool) {
	return t.cache.Get(key)
}

func (t *SideTable) Forget(key string) {
	t.cache.Remove(key)
}

func (t *SideTable) Len() int { return t.cache.Len() }
