package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Document is an insertion-ordered JSON object.  Stored bookings come in
// several historical shapes and the order of their occasion fields is shown
// to staff as-is for legacy occasions, so a plain map (which forgets order)
// cannot hold them.  Nested objects decode to *Document, arrays to []any,
// numbers to json.Number.
//
// A nil *Document behaves as an empty, read-only document.
type Document struct {
	m *orderedmap.OrderedMap[string, any]
}

// NewDocument returns an empty document ready for Set.
func NewDocument() *Document {
	return &Document{m: orderedmap.New[string, any]()}
}

// Len reports the number of keys.
func (d *Document) Len() int {
	if d == nil || d.m == nil {
		return 0
	}
	return d.m.Len()
}

// Keys returns a copy of the keys in insertion order.
func (d *Document) Keys() []string {
	if d == nil || d.m == nil {
		return nil
	}
	out := make([]string, 0, d.m.Len())
	for p := d.m.Oldest(); p != nil; p = p.Next() {
		out = append(out, p.Key)
	}
	return out
}

// Get returns the raw value stored under key.
func (d *Document) Get(key string) (any, bool) {
	if d == nil || d.m == nil {
		return nil, false
	}
	return d.m.Get(key)
}

// Has reports whether key is present (even with a null value).
func (d *Document) Has(key string) bool {
	_, ok := d.Get(key)
	return ok
}

// Set stores v under key.  New keys are appended; existing keys keep their
// position.
func (d *Document) Set(key string, v any) {
	if d.m == nil {
		d.m = orderedmap.New[string, any]()
	}
	d.m.Set(key, v)
}

// Merge copies every key of src into d.  Keys already present keep their
// position and take src's value; new keys are appended in src order.
func (d *Document) Merge(src *Document) {
	for _, k := range src.Keys() {
		v, _ := src.Get(k)
		d.Set(k, cloneValue(v))
	}
}

// Delete removes key if present.
func (d *Document) Delete(key string) {
	if d == nil || d.m == nil {
		return
	}
	d.m.Delete(key)
}

// String returns the value under key rendered as text; see AsString.
func (d *Document) String(key string) string {
	v, _ := d.Get(key)
	return AsString(v)
}

// Doc returns the nested document under key, or nil when absent or not an object.
func (d *Document) Doc(key string) *Document {
	v, _ := d.Get(key)
	if nested, ok := v.(*Document); ok {
		return nested
	}
	return nil
}

// Clone returns a deep copy.  Nested documents and arrays are copied too.
func (d *Document) Clone() *Document {
	out := NewDocument()
	if d == nil || d.m == nil {
		return out
	}
	for p := d.m.Oldest(); p != nil; p = p.Next() {
		out.Set(p.Key, cloneValue(p.Value))
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case *Document:
		return t.Clone()
	case []any:
		arr := make([]any, len(t))
		for i := range t {
			arr[i] = cloneValue(t[i])
		}
		return arr
	default:
		return v
	}
}

// MarshalJSON writes the keys in insertion order.
func (d *Document) MarshalJSON() ([]byte, error) {
	if d == nil {
		return []byte("null"), nil
	}
	if d.m == nil {
		return []byte("{}"), nil
	}
	return d.m.MarshalJSON()
}

// UnmarshalJSON decodes a JSON object keeping key order at every depth.
// orderedmap's own decoder turns nested objects into Go maps, so the token
// stream is walked here instead.
func (d *Document) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	v, err := decodeValue(dec)
	if err != nil {
		return err
	}
	doc, ok := v.(*Document)
	if !ok {
		return fmt.Errorf("document: expected JSON object, got %T", v)
	}
	d.m = doc.m
	return nil
}

func decodeValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	delim, ok := tok.(json.Delim)
	if !ok {
		return tok, nil
	}
	switch delim {
	case '{':
		doc := NewDocument()
		for dec.More() {
			kt, err := dec.Token()
			if err != nil {
				return nil, err
			}
			key, ok := kt.(string)
			if !ok {
				return nil, fmt.Errorf("document: object key is %T", kt)
			}
			val, err := decodeValue(dec)
			if err != nil {
				return nil, err
			}
			doc.Set(key, val)
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return doc, nil
	case '[':
		arr := []any{}
		for dec.More() {
			val, err := decodeValue(dec)
			if err != nil {
				return nil, err
			}
			arr = append(arr, val)
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return arr, nil
	}
	return nil, fmt.Errorf("document: unexpected delimiter %v", delim)
}

// AsString renders a scalar JSON value as text.  Objects, arrays and nulls
// render as "".
func AsString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	case fmt.Stringer:
		return t.String()
	}
	return ""
}
