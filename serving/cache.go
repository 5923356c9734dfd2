package serving

import (
	"slices"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"fae/ml"
)

// Cache memoises predictions per model and canonical row. A zero or negative
// size disables it.
type Cache struct {
	entries *lru.Cache[string, ml.Prediction]
}

func NewCache(size int) (*Cache, error) {
	if size <= 0 {
		return &Cache{}, nil
	}
	entries, err := lru.New[string, ml.Prediction](size)
	if err != nil {
		return nil, err
	}
	return &Cache{entries: entries}, nil
}

func (c *Cache) Get(modelID string, row ml.FeatureRow) (ml.Prediction, bool) {
	if c.entries == nil {
		return ml.Prediction{}, false
	}
	return c.entries.Get(cacheKey(modelID, row))
}

func (c *Cache) Add(modelID string, row ml.FeatureRow, p ml.Prediction) {
	if c.entries == nil {
		return
	}
	c.entries.Add(cacheKey(modelID, row), p)
}

func (c *Cache) Purge() {
	if c.entries != nil {
		c.entries.Purge()
	}
}

func (c *Cache) Len() int {
	if c.entries == nil {
		return 0
	}
	return c.entries.Len()
}

// cacheKey is independent of field order: the pipeline aligns columns anyway.
func cacheKey(modelID string, row ml.FeatureRow) string {
	parts := make([]string, len(row))
	for i, f := range row {
		kind := "n"
		if f.Value.Categorical {
			kind = "c"
		}
		parts[i] = f.Name + "=" + kind + ":" + f.Value.Key()
	}
	slices.Sort(parts)
	return modelID + "|" + strings.Join(parts, ",")
}
