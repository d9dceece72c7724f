package state

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
)

// Blob is the caller-owned state value.
//
// The worker never interprets its contents: it loads whatever was last saved
// and saves whatever is currently held. Any JSON value is allowed; a fresh
// blob is an empty object. The key accessors (Get, Set, Delete, Keys, Len,
// Update, Decode) only act on objects. Use Value, UpdateValue and Replace
// for arrays or scalars.
//
// Tasks run concurrently, so every access goes through the blob's lock.
type Blob struct {
	mu   sync.RWMutex
	data any
}

// NewBlob wraps m (nil means empty object). The blob takes ownership of m.
func NewBlob(m map[string]any) *Blob {
	if m == nil {
		m = map[string]any{}
	}
	return &Blob{data: m}
}

// NewBlobValue wraps an arbitrary decoded JSON value. nil is JSON null.
func NewBlobValue(v any) *Blob {
	return &Blob{data: v}
}

// IsObject reports whether the blob currently holds a JSON object.
func (b *Blob) IsObject() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.data.(map[string]any)
	return ok
}

// Kind names the JSON type held: object, array, string, number, bool or null.
func (b *Blob) Kind() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return kindOf(b.data)
}

func (b *Blob) Get(key string) (any, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	m, ok := b.data.(map[string]any)
	if !ok {
		return nil, false
	}
	v, ok := m[key]
	return v, ok
}

// Set stores v under key. It returns false, leaving the blob untouched, when
// the blob does not hold an object.
func (b *Blob) Set(key string, v any) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	m, ok := b.data.(map[string]any)
	if !ok {
		return false
	}
	m[key] = v
	return true
}

func (b *Blob) Delete(key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	m, ok := b.data.(map[string]any)
	if !ok {
		return false
	}
	if _, ok := m[key]; !ok {
		return false
	}
	delete(m, key)
	return true
}

// Len is the number of keys; 0 for non-objects.
func (b *Blob) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	m, _ := b.data.(map[string]any)
	return len(m)
}

// Keys returns the keys in sorted order.
func (b *Blob) Keys() []string {
	b.mu.RLock()
	m, _ := b.data.(map[string]any)
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	b.mu.RUnlock()
	sort.Strings(keys)
	return keys
}

// Update runs fn with exclusive access to the underlying object, for
// read-modify-write sequences. fn must not retain m. It returns false without
// calling fn when the blob does not hold an object.
func (b *Blob) Update(fn func(m map[string]any)) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	m, ok := b.data.(map[string]any)
	if !ok {
		return false
	}
	if fn != nil {
		fn(m)
	}
	return true
}

// UpdateValue replaces the held value with fn(current) under the write lock.
func (b *Blob) UpdateValue(fn func(v any) any) {
	if fn == nil {
		return
	}
	b.mu.Lock()
	b.data = fn(b.data)
	b.mu.Unlock()
}

// Value returns the held value. Objects and arrays are shared with the blob,
// so callers must treat them as read-only; use Snapshot for a copy.
func (b *Blob) Value() any {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.data
}

// Snapshot returns a shallow copy of the current value.
func (b *Blob) Snapshot() any {
	b.mu.RLock()
	defer b.mu.RUnlock()
	switch v := b.data.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, e := range v {
			out[k] = e
		}
		return out
	case []any:
		return append([]any(nil), v...)
	default:
		return v
	}
}

// Replace swaps the whole value. nil stores JSON null.
func (b *Blob) Replace(v any) {
	b.mu.Lock()
	b.data = v
	b.mu.Unlock()
}

// Decode converts the value under key into out (a pointer) by re-encoding it
// as JSON. It returns false when the key is absent or the blob is not an object.
func (b *Blob) Decode(key string, out any) (bool, error) {
	b.mu.RLock()
	m, _ := b.data.(map[string]any)
	v, ok := m[key]
	if !ok {
		b.mu.RUnlock()
		return false, nil
	}
	raw, err := json.Marshal(v)
	b.mu.RUnlock()
	if err != nil {
		return true, fmt.Errorf("state: encode %q: %w", key, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return true, fmt.Errorf("state: decode %q: %w", key, err)
	}
	return true, nil
}

func (b *Blob) MarshalJSON() ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return json.Marshal(b.data)
}

func (b *Blob) UnmarshalJSON(p []byte) error {
	v, err := decodeValue(p)
	if err != nil {
		return err
	}
	b.Replace(v)
	return nil
}

// decodeValue parses exactly one JSON value. Numbers stay json.Number so a
// load/save round-trip does not reformat them.
func decodeValue(p []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(p))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	// reject trailing tokens (e.g. concatenated JSON)
	var extra any
	if err := dec.Decode(&extra); err != io.EOF {
		if err == nil {
			return nil, errors.New("trailing data after state value")
		}
		return nil, err
	}
	return v, nil
}

func kindOf(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case bool:
		return "bool"
	case json.Number, float64, float32, int, int64, int32, uint, uint64, uint32:
		return "number"
	default:
		return fmt.Sprintf("%T", v)
	}
}
