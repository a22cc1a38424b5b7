package models

import (
	"bytes"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// FeatureBag is an ordered mapping of CSV column name to a float64 or string value.
// Keys keep their header order through JSON round trips.
type FeatureBag struct {
	m *orderedmap.OrderedMap[string, interface{}]
}

// NewFeatureBag returns an empty bag with room for n columns.
func NewFeatureBag(n int) FeatureBag {
	return FeatureBag{m: orderedmap.New[string, interface{}](n)}
}

// Set stores value under key. Re-setting a key keeps its original position.
func (b *FeatureBag) Set(key string, value interface{}) {
	if b.m == nil {
		b.m = orderedmap.New[string, interface{}]()
	}
	b.m.Set(key, value)
}

// Get returns the value stored under key.
func (b FeatureBag) Get(key string) (interface{}, bool) {
	if b.m == nil {
		return nil, false
	}
	return b.m.Get(key)
}

// Has reports whether key is present.
func (b FeatureBag) Has(key string) bool {
	_, ok := b.Get(key)
	return ok
}

// Keys returns the keys in insertion order.
func (b FeatureBag) Keys() []string {
	keys := make([]string, 0, b.Len())
	if b.m == nil {
		return keys
	}
	for pair := b.m.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

// Len returns the number of entries.
func (b FeatureBag) Len() int {
	if b.m == nil {
		return 0
	}
	return b.m.Len()
}

// MarshalJSON encodes the bag as a JSON object in insertion order.
func (b FeatureBag) MarshalJSON() ([]byte, error) {
	if b.m == nil {
		return []byte("{}"), nil
	}
	return b.m.MarshalJSON()
}

// UnmarshalJSON decodes a JSON object, keeping key order. Numbers decode to float64.
func (b *FeatureBag) UnmarshalJSON(data []byte) error {
	*b = NewFeatureBag(0)
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}
	return b.m.UnmarshalJSON(data)
}

// String returns the JSON encoding, or "{}" if encoding fails.
func (b FeatureBag) String() string {
	data, err := b.MarshalJSON()
	if err != nil {
		return "{}"
	}
	return string(data)
}
