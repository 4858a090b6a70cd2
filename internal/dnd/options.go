package dnd

import (
	"math"
	"reflect"
)

// Options is the loosely typed option bag the host passes around when an
// item or actor roll is triggered.
type Options map[string]any

// Bool reports whether key holds boolean true.
func (o Options) Bool(key string) bool {
	v, ok := o[key].(bool)
	return ok && v
}

// Ignored reports whether the caller asked the add-on to stay out of this
// roll. Any truthy "ignore" value counts, as it does for the host.
func (o Options) Ignored() bool { return Truthy(o["ignore"]) }

// Truthy follows the host's notion of truth: nil, false, zero, NaN and the
// empty string are false; everything else is true.
func Truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case float64:
		return x != 0 && !math.IsNaN(x)
	case float32:
		return x != 0 && !math.IsNaN(float64(x))
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint() != 0
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return !rv.IsNil()
	}

	return true
}

// Merge returns a shallow merge of base and over. Keys in over win.
// Neither input is modified.
func Merge(base, over Options) Options {
	out := make(Options, len(base)+len(over))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range over {
		out[k] = v
	}
	return out
}

// SetDefault stores value under key unless key is already present.
func (o Options) SetDefault(key string, value any) {
	if _, ok := o[key]; !ok {
		o[key] = value
	}
}
