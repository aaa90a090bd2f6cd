package wordpress

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Params is the field-value lookup for one input item: the node parameters
// the host resolved for that item. A missing key and a JSON null are both
// "not supplied"; an empty string is supplied.
type Params map[string]any

// Merge returns a copy of p overlaid with over.
func (p Params) Merge(over Params) Params {
	out := make(Params, len(p)+len(over))
	for k, v := range p {
		out[k] = v
	}
	for k, v := range over {
		out[k] = v
	}
	return out
}

// Lookup returns the raw value and whether it was supplied.
func (p Params) Lookup(name string) (any, bool) {
	v, ok := p[name]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// String returns the parameter as a string, or def when not supplied.
func (p Params) String(name, def string) string {
	v, ok := p.OptionalString(name)
	if !ok {
		return def
	}
	return v
}

// OptionalString returns the parameter as a string and whether it was supplied.
func (p Params) OptionalString(name string) (string, bool) {
	v, ok := p.Lookup(name)
	if !ok {
		return "", false
	}
	return stringify(v), true
}

// Int returns the parameter as an int, or def when not supplied or not numeric.
func (p Params) Int(name string, def int) int {
	v, ok := p.Lookup(name)
	if !ok {
		return def
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i)
		}
		if f, err := n.Float64(); err == nil {
			return int(f)
		}
	case string:
		if i, err := strconv.Atoi(n); err == nil {
			return i
		}
	}
	return def
}

// Map returns a nested object parameter, or nil.
func (p Params) Map(name string) map[string]any {
	v, _ := p.Lookup(name)
	m, _ := v.(map[string]any)
	return m
}

// optionsBag returns options.<key> as an object, e.g. options.qs.
func (p Params) optionsBag(key string) map[string]any {
	opts := p.Map("options")
	if opts == nil {
		return nil
	}
	m, _ := opts[key].(map[string]any)
	return m
}

// stringify renders scalar parameter values the way they appear in a path or
// query string. Integral numbers never get a decimal point.
func stringify(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case json.Number:
		return s.String()
	case float64:
		if s == math.Trunc(s) && math.Abs(s) < 1e15 {
			return strconv.FormatInt(int64(s), 10)
		}
		return strconv.FormatFloat(s, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(s)
	case nil:
		return ""
	default:
		if data, err := json.Marshal(s); err == nil {
			return string(data)
		}
		return fmt.Sprint(s)
	}
}

// BinaryData is a file attached to an input item.
type BinaryData struct {
	FileName string `json:"fileName,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
	Data     []byte `json:"data"` // base64 in JSON
}

// Item is one input item of a batch. Params overrides the batch parameters
// for this item only.
type Item struct {
	JSON   map[string]any         `json:"json,omitempty"`
	Binary map[string]*BinaryData `json:"binary,omitempty"`
	Params Params                 `json:"parameters,omitempty"`
}

// Record is one output record. Error is set on error records, whose JSON is
// always {"error": message}.
type Record struct {
	JSON       any    `json:"json"`
	Error      string `json:"error,omitempty"`
	PairedItem int    `json:"paired_item"`
}

// errorRecord builds the record emitted for a failed item under continue-on-fail.
func errorRecord(index int, err error) Record {
	return Record{
		JSON:       map[string]any{"error": err.Error()},
		Error:      err.Error(),
		PairedItem: index,
	}
}

// toRecords expands a response into records: arrays become one record per
// element, a nil response produces none.
func toRecords(index int, resp any) []Record {
	switch v := resp.(type) {
	case nil:
		return nil
	case []any:
		out := make([]Record, 0, len(v))
		for _, el := range v {
			out = append(out, Record{JSON: el, PairedItem: index})
		}
		return out
	default:
		return []Record{{JSON: v, PairedItem: index}}
	}
}
