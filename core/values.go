package core

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// DefaultTimeLayout is the text form of timestamps when no layout is given.
const DefaultTimeLayout = "2006-01-02T15:04:05.000Z07:00"

// NormalizeValue widens Go values to the canonical representation of their column type:
// int64 for integers, float64 for floats, UTC time.Time for timestamps.
func NormalizeValue(value interface{}) interface{} {
	switch v := value.(type) {
	case int:
		return int64(v)
	case int8:
		return int64(v)
	case int16:
		return int64(v)
	case int32:
		return int64(v)
	case uint:
		return int64(v)
	case uint8:
		return int64(v)
	case uint16:
		return int64(v)
	case uint32:
		return int64(v)
	case uint64:
		if v > math.MaxInt64 {
			return float64(v)
		}
		return int64(v)
	case float32:
		return float64(v)
	case time.Time:
		return v.UTC()
	default:
		return value
	}
}

// FormatValue renders a value as text for delimited output. Null renders as the empty string.
func FormatValue(value interface{}, timeLayout string) string {
	if timeLayout == "" {
		timeLayout = DefaultTimeLayout
	}
	switch v := NormalizeValue(value).(type) {
	case nil:
		return ""
	case string:
		return v
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case time.Time:
		return v.Format(timeLayout)
	case []byte:
		return string(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// CompareValues orders two non-null values: numbers numerically, booleans false before true,
// timestamps chronologically, strings bytewise. Values of different kinds compare by their text form.
func CompareValues(a, b interface{}) int {
	a, b = NormalizeValue(a), NormalizeValue(b)

	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			if ia, ok := a.(int64); ok {
				if ib, ok := b.(int64); ok {
					return compareOrdered(ia, ib)
				}
			}
			return compareOrdered(fa, fb)
		}
	}

	switch va := a.(type) {
	case bool:
		if vb, ok := b.(bool); ok {
			switch {
			case va == vb:
				return 0
			case !va:
				return -1
			default:
				return 1
			}
		}
	case time.Time:
		if vb, ok := b.(time.Time); ok {
			return va.Compare(vb)
		}
	case string:
		if vb, ok := b.(string); ok {
			return strings.Compare(va, vb)
		}
	}
	return strings.Compare(FormatValue(a, time.RFC3339Nano), FormatValue(b, time.RFC3339Nano))
}

// Fingerprint encodes the values of columns, in order, into a key that is equal for two rows
// exactly when every value is equal and of the same kind.
func Fingerprint(record Record, columns []string) string {
	var b strings.Builder
	for _, name := range columns {
		v := NormalizeValue(record[name])
		var tag byte
		var s string
		switch x := v.(type) {
		case nil:
			tag = 'n'
		case string:
			tag, s = 's', x
		case int64:
			tag, s = 'i', strconv.FormatInt(x, 10)
		case float64:
			tag, s = 'f', strconv.FormatFloat(x, 'g', -1, 64)
		case bool:
			tag, s = 'b', strconv.FormatBool(x)
		case time.Time:
			tag, s = 't', strconv.FormatInt(x.UnixNano(), 10)
		case []byte:
			tag, s = 'y', string(x)
		default:
			tag, s = 'v', fmt.Sprintf("%v", x)
		}
		b.WriteByte(tag)
		b.WriteString(strconv.Itoa(len(s)))
		b.WriteByte(':')
		b.WriteString(s)
	}
	return b.String()
}

func toFloat(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case int64:
		return float64(x), true
	case float64:
		return x, true
	default:
		return 0, false
	}
}

func compareOrdered[T int64 | float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
