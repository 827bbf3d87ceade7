package ajax

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"
)

// wireLayout is the inbound timestamp format: what JavaScript's
// Date.prototype.toISOString produces. The trailing Z is a literal.
const wireLayout = "2006-01-02T15:04:05.999999Z"

const (
	outLayout       = "2006-01-02T15:04:05"
	outMillisLayout = "2006-01-02T15:04:05.000"
)

var (
	timeType      = reflect.TypeOf((*time.Time)(nil)).Elem()
	marshalerType = reflect.TypeOf((*json.Marshaler)(nil)).Elem()
)

// ParseTime parses s in the YYYY-MM-DDTHH:MM:SS.ffffffZ wire format.
//
// The fraction must have between one and six digits and the string must end
// in a literal "Z". The numeric fields are taken as UTC.
func ParseTime(s string) (time.Time, error) {
	date, frac, ok := strings.Cut(s, ".")
	if !ok || !strings.HasSuffix(frac, "Z") {
		return time.Time{}, fmt.Errorf("ajax: time %q does not match %s", s, wireLayout)
	}
	digits := strings.TrimSuffix(frac, "Z")
	if len(digits) == 0 || len(digits) > 6 || strings.Trim(digits, "0123456789") != "" {
		return time.Time{}, fmt.Errorf("ajax: time %q: fractional seconds must be 1 to 6 digits", s)
	}
	if len(date) != len(outLayout) {
		return time.Time{}, fmt.Errorf("ajax: time %q does not match %s", s, wireLayout)
	}
	t, err := time.Parse(wireLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("ajax: %w", err)
	}
	return t, nil
}

// FormatTime renders t the way responses carry times: wall clock fields
// with no zone designator, and milliseconds only when t has a sub-second
// component at microsecond precision.
//
//	2020-12-19T00:45:08.651
//	2020-12-19T00:45:08
func FormatTime(t time.Time) string {
	if t.Nanosecond()/int(time.Microsecond) == 0 {
		return t.Format(outLayout)
	}
	return t.Format(outMillisLayout)
}

// Timestamp is a time.Time that marshals with FormatTime. Use it for fields
// of returned structs; bare time.Time return values, and those nested in
// maps and slices, are formatted automatically.
type Timestamp time.Time

func (ts Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(FormatTime(time.Time(ts)))
}

// coerceTemporal replaces each temporal argument present in args with its
// parsed time.Time value. A null argument is not a time string and fails.
func coerceTemporal(args Args, temporal []string) error {
	for _, name := range temporal {
		v, ok := args[name]
		if !ok {
			continue
		}
		raw, ok := v.(json.RawMessage)
		if !ok {
			continue
		}
		if isNull(raw) {
			return fmt.Errorf("ajax: argument %q: expected a time string, got null", name)
		}
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return fmt.Errorf("ajax: argument %q: expected a time string: %w", name, err)
		}
		t, err := ParseTime(s)
		if err != nil {
			return fmt.Errorf("ajax: argument %q: %w", name, err)
		}
		args[name] = t
	}
	return nil
}

// wireValue rewrites time values found at the top level of v, or inside maps,
// slices and arrays, into their FormatTime strings. Other values, including
// structs, are returned unchanged for encoding/json, so a time.Time struct
// field encodes as RFC 3339. Declare such fields as Timestamp.
func wireValue(v any) any {
	if v == nil {
		return nil
	}
	switch t := v.(type) {
	case time.Time:
		return FormatTime(t)
	case *time.Time:
		if t == nil {
			return nil
		}
		return FormatTime(*t)
	}
	return wireReflect(reflect.ValueOf(v))
}

func wireReflect(rv reflect.Value) any {
	if !containsTime(rv.Type(), 0) {
		return rv.Interface()
	}
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return wireValue(rv.Elem().Interface())
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return nil
		}
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = wireValue(rv.Index(i).Interface())
		}
		return out
	case reflect.Map:
		if rv.IsNil() {
			return nil
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[fmt.Sprint(iter.Key().Interface())] = wireValue(iter.Value().Interface())
		}
		return out
	}
	return rv.Interface()
}

// containsTime reports whether values of t may hold a time.Time that
// wireReflect would rewrite. Interface types may hold anything.
func containsTime(t reflect.Type, depth int) bool {
	if depth > 8 {
		return false
	}
	if t == timeType || (t.Kind() == reflect.Pointer && t.Elem() == timeType) {
		return true
	}
	if t.Implements(marshalerType) || reflect.PointerTo(t).Implements(marshalerType) {
		return false
	}
	switch t.Kind() {
	case reflect.Interface:
		return true
	case reflect.Pointer, reflect.Slice, reflect.Array:
		return containsTime(t.Elem(), depth+1)
	case reflect.Map:
		// encoding/json only accepts string and integer keys, both of which
		// fmt.Sprint renders identically.
		k := t.Key().Kind()
		if k != reflect.String && (k < reflect.Int || k > reflect.Uint64) {
			return false
		}
		return containsTime(t.Elem(), depth+1)
	}
	return false
}
