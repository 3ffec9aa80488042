package dbmo

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Record is one result row: column name to value, with case-insensitive lookup and the
// column order of the result set preserved.
// columns 保留原始列名，lowerKeyMap 用于大小写不敏感的查找，keys 保存列顺序
type Record struct {
	columns     map[string]any
	lowerKeyMap map[string]string
	keys        []string
	mu          sync.RWMutex
}

// NewRecord creates an empty Record.
func NewRecord() *Record {
	return newRecordSize(0)
}

func newRecordSize(n int) *Record {
	return &Record{
		columns:     make(map[string]any, n),
		lowerKeyMap: make(map[string]string, n),
		keys:        make([]string, 0, n),
	}
}

// FromMap creates a Record from m. Map iteration order is random, so column order is too.
func FromMap(m map[string]any) *Record {
	r := newRecordSize(len(m))
	for k, v := range m {
		r.Set(k, v)
	}
	return r
}

// Set stores value under column. An existing column matching case-insensitively is replaced
// in place and keeps its original spelling. Pointers are dereferenced.
func (r *Record) Set(column string, value any) *Record {
	r.mu.Lock()
	defer r.mu.Unlock()

	value = derefPointer(value)
	lowerKey := strings.ToLower(column)
	if existing, ok := r.lowerKeyMap[lowerKey]; ok {
		r.columns[existing] = value
		return r
	}
	r.columns[column] = value
	r.lowerKeyMap[lowerKey] = column
	r.keys = append(r.keys, column)
	return r
}

// setDirect 扫描结果时使用：不加锁，record 尚未对外可见
// 同名列（如 join 结果）保留第一个
func (r *Record) setDirect(column string, value any) {
	lowerKey := strings.ToLower(column)
	if _, ok := r.lowerKeyMap[lowerKey]; ok {
		return
	}
	r.columns[column] = value
	r.lowerKeyMap[lowerKey] = column
	r.keys = append(r.keys, column)
}

func (r *Record) lookup(column string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if key, ok := r.lowerKeyMap[strings.ToLower(column)]; ok {
		return r.columns[key], true
	}
	return nil, false
}

// Get returns the value of column, nil when absent or NULL.
func (r *Record) Get(column string) any {
	v, _ := r.lookup(column)
	return v
}

// MustGet returns the value of column or an error when the column is absent.
func (r *Record) MustGet(column string) (any, error) {
	v, ok := r.lookup(column)
	if !ok {
		return nil, fmt.Errorf("dbmo: column %s not found", column)
	}
	return v, nil
}

// Has reports whether column exists, case-insensitively.
func (r *Record) Has(column string) bool {
	_, ok := r.lookup(column)
	return ok
}

func (r *Record) GetString(column string) string { return Convert.ToString(r.Get(column)) }
func (r *Record) GetInt(column string) int { return Convert.ToInt(r.Get(column)) }
func (r *Record) GetInt64(column string) int64 { return Convert.ToInt64(r.Get(column)) }
func (r *Record) GetFloat(column string) float64 { return Convert.ToFloat64(r.Get(column)) }
func (r *Record) GetBool(column string) bool { return Convert.ToBool(r.Get(column)) }
func (r *Record) GetTime(column string) time.Time { return Convert.ToTime(r.Get(column)) }

// GetBytes returns []byte and string values as bytes; other values through their string form.
func (r *Record) GetBytes(column string) []byte {
	switch v := r.Get(column).(type) {
	case nil:
		return nil
	case []byte:
		return v
	case string:
		return []byte(v)
	default:
		return []byte(Convert.ToString(v))
	}
}

// Columns returns the column names in result order.
func (r *Record) Columns() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, len(r.keys))
	copy(keys, r.keys)
	return keys
}

// Len returns the number of columns.
func (r *Record) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.keys)
}

// Remove deletes column, case-insensitively.
func (r *Record) Remove(column string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	lowerKey := strings.ToLower(column)
	key, ok := r.lowerKeyMap[lowerKey]
	if !ok {
		return
	}
	delete(r.columns, key)
	delete(r.lowerKeyMap, lowerKey)
	for i, k := range r.keys {
		if k == key {
			r.keys = append(r.keys[:i], r.keys[i+1:]...)
			break
		}
	}
}

// ToMap returns a copy of the columns as a plain map.
func (r *Record) ToMap() map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m := make(map[string]any, len(r.columns))
	for k, v := range r.columns {
		m[k] = v
	}
	return m
}

// Clone returns a shallow copy.
func (r *Record) Clone() *Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c := newRecordSize(len(r.keys))
	for _, k := range r.keys {
		c.setDirect(k, r.columns[k])
	}
	return c
}

// String returns the JSON form of the record.
func (r *Record) String() string {
	data, err := r.MarshalJSON()
	if err != nil {
		return "{}"
	}
	return string(data)
}

// MarshalJSON writes the columns as a JSON object in column order.
// []byte values are written as strings.
func (r *Record) MarshalJSON() ([]byte, error) {
	if r == nil {
		return []byte("null"), nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, _ := json.Marshal(k)
		buf.Write(key)
		buf.WriteByte(':')
		v := r.columns[k]
		if b, ok := v.([]byte); ok {
			v = string(b)
		}
		val, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("dbmo: marshal column %s: %w", k, err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object keeping its key order. Integral numbers become int64,
// other numbers float64.
func (r *Record) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("dbmo: record json must be an object")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.columns = make(map[string]any)
	r.lowerKeyMap = make(map[string]string)
	r.keys = r.keys[:0]
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := tok.(string)
		var v any
		if err := dec.Decode(&v); err != nil {
			return err
		}
		r.setDirect(key, normalizeJSONValue(v))
	}
	_, err = dec.Token()
	return err
}

func normalizeJSONValue(v any) any {
	n, ok := v.(json.Number)
	if !ok {
		return v
	}
	if i, err := n.Int64(); err == nil {
		return i
	}
	f, _ := n.Float64()
	return f
}
