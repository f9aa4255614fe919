package frame

import (
	"bytes"
	"cmp"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/cespare/xxhash/v2"

	"github.com/ajitpratap0/logpress/pkg/errors"
	jsonx "github.com/ajitpratap0/logpress/pkg/json"
)

// ValueAt extracts row i of arr as a Go value. Integers are returned as
// int64 (uint64 for UINT64), floats as float64, strings and dictionary
// values as string, temporal values as time.Time in UTC, nulls as nil.
// Types without a native mapping fall back to their arrow string form.
func ValueAt(arr arrow.Array, i int) any {
	if arr.IsNull(i) {
		return nil
	}

	switch a := arr.(type) {
	case *array.Boolean:
		return a.Value(i)
	case *array.Int8:
		return int64(a.Value(i))
	case *array.Int16:
		return int64(a.Value(i))
	case *array.Int32:
		return int64(a.Value(i))
	case *array.Int64:
		return a.Value(i)
	case *array.Uint8:
		return int64(a.Value(i))
	case *array.Uint16:
		return int64(a.Value(i))
	case *array.Uint32:
		return int64(a.Value(i))
	case *array.Uint64:
		return a.Value(i)
	case *array.Float32:
		return float64(a.Value(i))
	case *array.Float64:
		return a.Value(i)
	case *array.String:
		return a.Value(i)
	case *array.LargeString:
		return a.Value(i)
	case *array.Binary:
		return a.Value(i)
	case *array.LargeBinary:
		return a.Value(i)
	case *array.Timestamp:
		unit := a.DataType().(*arrow.TimestampType).Unit
		return a.Value(i).ToTime(unit)
	case *array.Date32:
		return a.Value(i).ToTime()
	case *array.Date64:
		return a.Value(i).ToTime()
	case *array.Dictionary:
		return ValueAt(a.Dictionary(), a.GetValueIndex(i))
	default:
		return arr.ValueStr(i)
	}
}

// Normalize converts Go scalar literals to the value kinds produced by ValueAt
func Normalize(v any) any {
	switch x := v.(type) {
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case uint:
		return uint64(x)
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case float32:
		return float64(x)
	default:
		return v
	}
}

// Compare orders two non-nil values produced by ValueAt or Normalize.
// Numeric kinds compare across each other. ok is false when the values
// are not comparable.
func Compare(a, b any) (c int, ok bool) {
	a, b = Normalize(a), Normalize(b)

	switch x := a.(type) {
	case int64:
		switch y := b.(type) {
		case int64:
			return cmp.Compare(x, y), true
		case uint64:
			if x < 0 {
				return -1, true
			}
			return cmp.Compare(uint64(x), y), true
		case float64:
			return cmp.Compare(float64(x), y), true
		}
	case uint64:
		switch y := b.(type) {
		case uint64:
			return cmp.Compare(x, y), true
		case int64:
			if y < 0 {
				return 1, true
			}
			return cmp.Compare(x, uint64(y)), true
		case float64:
			return cmp.Compare(float64(x), y), true
		}
	case float64:
		switch y := b.(type) {
		case float64:
			return cmp.Compare(x, y), true
		case int64:
			return cmp.Compare(x, float64(y)), true
		case uint64:
			return cmp.Compare(x, float64(y)), true
		}
	case string:
		if y, isStr := b.(string); isStr {
			return strings.Compare(x, y), true
		}
	case bool:
		if y, isBool := b.(bool); isBool {
			switch {
			case x == y:
				return 0, true
			case !x:
				return -1, true
			default:
				return 1, true
			}
		}
	case time.Time:
		if y, isTime := b.(time.Time); isTime {
			return x.Compare(y), true
		}
	case []byte:
		if y, isBytes := b.([]byte); isBytes {
			return bytes.Compare(x, y), true
		}
	}
	return 0, false
}

// equalValues reports whether two values from the same column are identical
func equalValues(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	c, ok := Compare(a, b)
	return ok && c == 0
}

// hashRow fingerprints a row of values
func hashRow(d *xxhash.Digest, values []any) uint64 {
	d.Reset()
	var scratch [9]byte
	for _, v := range values {
		switch x := v.(type) {
		case nil:
			scratch[0] = 0
			_, _ = d.Write(scratch[:1])
		case bool:
			scratch[0] = 1
			scratch[1] = 0
			if x {
				scratch[1] = 1
			}
			_, _ = d.Write(scratch[:2])
		case int64:
			scratch[0] = 2
			binary.LittleEndian.PutUint64(scratch[1:], uint64(x))
			_, _ = d.Write(scratch[:])
		case uint64:
			scratch[0] = 3
			binary.LittleEndian.PutUint64(scratch[1:], x)
			_, _ = d.Write(scratch[:])
		case float64:
			scratch[0] = 4
			binary.LittleEndian.PutUint64(scratch[1:], math.Float64bits(x))
			_, _ = d.Write(scratch[:])
		case time.Time:
			scratch[0] = 5
			binary.LittleEndian.PutUint64(scratch[1:], uint64(x.UnixNano()))
			_, _ = d.Write(scratch[:])
		case string:
			scratch[0] = 6
			binary.LittleEndian.PutUint64(scratch[1:], uint64(len(x)))
			_, _ = d.Write(scratch[:])
			_, _ = d.WriteString(x)
		case []byte:
			scratch[0] = 7
			binary.LittleEndian.PutUint64(scratch[1:], uint64(len(x)))
			_, _ = d.Write(scratch[:])
			_, _ = d.Write(x)
		default:
			s := fmt.Sprint(x)
			scratch[0] = 8
			binary.LittleEndian.PutUint64(scratch[1:], uint64(len(s)))
			_, _ = d.Write(scratch[:])
			_, _ = d.WriteString(s)
		}
	}
	return d.Sum64()
}

// FormatValue renders a value as text for delimited output and display.
// Nulls render as the empty string.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.Format(time.RFC3339Nano)
	case []byte:
		return string(x)
	default:
		return fmt.Sprint(x)
	}
}

// jsonValue converts a value to something the JSON encoder writes faithfully
func jsonValue(v any) any {
	switch x := v.(type) {
	case time.Time:
		return x.Format(time.RFC3339Nano)
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil
		}
		return x
	default:
		return v
	}
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// ParseTimestamp parses the textual timestamp forms accepted in JSON logs.
// Values without a zone are taken as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, errors.Newf(errors.ErrorTypeData, "cannot parse %q as a timestamp", s)
}

func toArrowTimestamp(t time.Time, unit arrow.TimeUnit) arrow.Timestamp {
	switch unit {
	case arrow.Second:
		return arrow.Timestamp(t.Unix())
	case arrow.Millisecond:
		return arrow.Timestamp(t.UnixMilli())
	case arrow.Microsecond:
		return arrow.Timestamp(t.UnixMicro())
	default:
		return arrow.Timestamp(t.UnixNano())
	}
}

// jsonText renders a decoded JSON value as a string column value
func jsonText(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case jsonx.Number:
		return x.String(), nil
	case bool:
		return strconv.FormatBool(x), nil
	default:
		b, err := jsonx.Marshal(x)
		if err != nil {
			return "", errors.Wrap(err, errors.ErrorTypeData, "cannot encode nested value")
		}
		return string(b), nil
	}
}

// appendJSONValue appends a value decoded from a JSON record to b, whose
// arrow type is dt.
func appendJSONValue(b array.Builder, dt arrow.DataType, v any) error {
	if v == nil {
		b.AppendNull()
		return nil
	}

	switch bb := b.(type) {
	case *array.StringBuilder:
		s, err := jsonText(v)
		if err != nil {
			return err
		}
		bb.Append(s)

	case *array.Int64Builder:
		n, ok := v.(jsonx.Number)
		if !ok {
			return mismatch(dt, v)
		}
		if i, err := n.Int64(); err == nil {
			bb.Append(i)
			return nil
		}
		f, err := n.Float64()
		if err != nil || f != math.Trunc(f) || f >= math.MaxInt64 || f < math.MinInt64 {
			return mismatch(dt, v)
		}
		bb.Append(int64(f))

	case *array.Float64Builder:
		n, ok := v.(jsonx.Number)
		if !ok {
			return mismatch(dt, v)
		}
		f, err := n.Float64()
		if err != nil {
			return mismatch(dt, v)
		}
		bb.Append(f)

	case *array.BooleanBuilder:
		bv, ok := v.(bool)
		if !ok {
			return mismatch(dt, v)
		}
		bb.Append(bv)

	case *array.TimestampBuilder:
		unit := dt.(*arrow.TimestampType).Unit
		switch x := v.(type) {
		case string:
			t, err := ParseTimestamp(x)
			if err != nil {
				return err
			}
			bb.Append(toArrowTimestamp(t, unit))
		case jsonx.Number:
			i, err := x.Int64()
			if err != nil {
				return mismatch(dt, v)
			}
			bb.Append(arrow.Timestamp(i))
		default:
			return mismatch(dt, v)
		}

	case *array.BinaryDictionaryBuilder:
		s, err := jsonText(v)
		if err != nil {
			return err
		}
		if err := bb.AppendString(s); err != nil {
			return errors.Wrap(err, errors.ErrorTypeData, "cannot append dictionary value")
		}

	default:
		return errors.Newf(errors.ErrorTypeData, "JSON decoding into %s columns is not supported", dt)
	}
	return nil
}

func mismatch(dt arrow.DataType, v any) error {
	return errors.Newf(errors.ErrorTypeData, "value %v (%T) does not fit column type %s", v, v, dt)
}
