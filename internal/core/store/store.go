// Package store is the persisted key-value store shared by every execution
// context. Values are JSON documents; writers are last-write-wins and every
// change is echoed to subscribers as a delta.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("store is closed")

// Values maps keys to their JSON-encoded values.
type Values map[string]json.RawMessage

// Change is the before/after of a single key. Old is nil when the key was absent.
type Change struct {
	Old json.RawMessage `json:"oldValue,omitempty"`
	New json.RawMessage `json:"newValue"`
}

// Changes maps keys to their change. Only keys whose encoded value differs are present.
type Changes map[string]Change

// Store is the contract the core depends on.
type Store interface {
	// Get returns the stored value for every key in defaults, falling back to
	// the default for keys that were never written.
	Get(ctx context.Context, defaults Values) (Values, error)

	// Set writes a partial object. Subscribers are notified asynchronously.
	Set(ctx context.Context, values Values) error

	// Subscribe registers fn for change deltas. The returned func unsubscribes.
	Subscribe(fn func(Changes)) (cancel func())

	Close() error
}

// Encode marshals each entry of m into a Values map.
func Encode(m map[string]any) (Values, error) {
	out := make(Values, len(m))
	for k, v := range m {
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %q: %w", k, err)
		}
		out[k] = data
	}
	return out, nil
}

// MustEncode is Encode for values known to be marshalable.
func MustEncode(m map[string]any) Values {
	v, err := Encode(m)
	if err != nil {
		panic(err)
	}
	return v
}

// Decode unmarshals the value stored under key into dst.
// It reports false when the key is absent or the value does not decode.
func (v Values) Decode(key string, dst any) bool {
	raw, ok := v[key]
	if !ok || len(raw) == 0 {
		return false
	}
	return json.Unmarshal(raw, dst) == nil
}

// Keys returns the keys of v.
func (v Values) Keys() []string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	return keys
}

// diff computes the delta between the previous values and an update.
func diff(prev, next Values) Changes {
	changes := make(Changes)
	for k, nv := range next {
		ov, ok := prev[k]
		if ok && bytes.Equal(compact(ov), compact(nv)) {
			continue
		}
		c := Change{New: nv}
		if ok {
			c.Old = ov
		}
		changes[k] = c
	}
	return changes
}

func compact(raw json.RawMessage) []byte {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return raw
	}
	return buf.Bytes()
}
