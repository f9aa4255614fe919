package config

import (
	"strings"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/ajitpratap0/logpress/pkg/errors"
	"github.com/ajitpratap0/logpress/pkg/frame"
)

// Kind is the family of a declared field type
type Kind int

const (
	KindInvalid Kind = iota
	KindString
	KindInt64
	KindFloat64
	KindBool
	KindDatetime
	KindCategorical
	KindEnum
)

// DataType is an explicit type declaration for a log field
type DataType struct {
	kind       Kind
	unit       arrow.TimeUnit
	timeZone   string
	categories []string
}

// TypeString declares a UTF-8 string field
func TypeString() DataType { return DataType{kind: KindString} }

// TypeInt64 declares a 64-bit integer field
func TypeInt64() DataType { return DataType{kind: KindInt64} }

// TypeFloat64 declares a 64-bit float field
func TypeFloat64() DataType { return DataType{kind: KindFloat64} }

// TypeBool declares a boolean field
func TypeBool() DataType { return DataType{kind: KindBool} }

// TypeDatetime declares a timestamp field with the given unit and optional time zone
func TypeDatetime(unit arrow.TimeUnit, timeZone string) DataType {
	return DataType{kind: KindDatetime, unit: unit, timeZone: timeZone}
}

// TypeCategorical declares a dictionary-encoded string field
func TypeCategorical() DataType { return DataType{kind: KindCategorical} }

// TypeEnum declares a dictionary-encoded string field restricted to categories
func TypeEnum(categories ...string) DataType {
	return DataType{kind: KindEnum, categories: append([]string(nil), categories...)}
}

// Kind returns the type family
func (d DataType) Kind() Kind { return d.kind }

// Categories returns the allowed values of an enum, nil otherwise
func (d DataType) Categories() []string {
	if d.kind != KindEnum {
		return nil
	}
	return append([]string(nil), d.categories...)
}

// ArrowType returns the arrow representation of the declared type
func (d DataType) ArrowType() arrow.DataType {
	switch d.kind {
	case KindString:
		return arrow.BinaryTypes.String
	case KindInt64:
		return arrow.PrimitiveTypes.Int64
	case KindFloat64:
		return arrow.PrimitiveTypes.Float64
	case KindBool:
		return arrow.FixedWidthTypes.Boolean
	case KindDatetime:
		return &arrow.TimestampType{Unit: d.unit, TimeZone: d.timeZone}
	case KindCategorical, KindEnum:
		return frame.CategoricalType()
	default:
		return nil
	}
}

// Field returns the arrow field for a column of this type
func (d DataType) Field(name string) arrow.Field {
	if d.kind == KindEnum {
		return frame.EnumField(name, d.categories)
	}
	return arrow.Field{Name: name, Type: d.ArrowType(), Nullable: true}
}

// String renders the type in the form accepted by ParseDataType
func (d DataType) String() string {
	switch d.kind {
	case KindString:
		return "string"
	case KindInt64:
		return "int64"
	case KindFloat64:
		return "float64"
	case KindBool:
		return "bool"
	case KindDatetime:
		s := "datetime[" + unitName(d.unit)
		if d.timeZone != "" {
			s += "," + d.timeZone
		}
		return s + "]"
	case KindCategorical:
		return "categorical"
	case KindEnum:
		return "enum[" + strings.Join(d.categories, ",") + "]"
	default:
		return "invalid"
	}
}

// ParseDataType parses the textual type form used in YAML files and CLI flags:
// string, int64, float64, bool, datetime[unit(,tz)], categorical, enum[A,B,...].
func ParseDataType(s string) (DataType, error) {
	raw := strings.TrimSpace(s)
	name, args, hasArgs, err := splitArgs(raw)
	if err != nil {
		return DataType{}, err
	}

	switch strings.ToLower(name) {
	case "string", "str", "utf8":
		return noArgs(raw, hasArgs, TypeString())
	case "int64", "int", "i64":
		return noArgs(raw, hasArgs, TypeInt64())
	case "float64", "float", "f64":
		return noArgs(raw, hasArgs, TypeFloat64())
	case "bool", "boolean":
		return noArgs(raw, hasArgs, TypeBool())
	case "categorical", "cat":
		return noArgs(raw, hasArgs, TypeCategorical())
	case "datetime", "timestamp":
		if !hasArgs {
			return TypeDatetime(arrow.Nanosecond, ""), nil
		}
		parts := strings.SplitN(args, ",", 2)
		unit, ok := parseUnit(strings.TrimSpace(parts[0]))
		if !ok {
			return DataType{}, errors.Newf(errors.ErrorTypeConfig, "invalid time unit in %q", raw)
		}
		tz := ""
		if len(parts) == 2 {
			tz = strings.TrimSpace(parts[1])
		}
		return TypeDatetime(unit, tz), nil
	case "enum":
		if !hasArgs || strings.TrimSpace(args) == "" {
			return DataType{}, errors.Newf(errors.ErrorTypeConfig, "enum %q needs at least one category", raw)
		}
		cats := strings.Split(args, ",")
		seen := make(map[string]bool, len(cats))
		for i, c := range cats {
			cats[i] = strings.TrimSpace(c)
			if cats[i] == "" || seen[cats[i]] {
				return DataType{}, errors.Newf(errors.ErrorTypeConfig, "enum %q has an empty or repeated category", raw)
			}
			seen[cats[i]] = true
		}
		return TypeEnum(cats...), nil
	default:
		return DataType{}, errors.Newf(errors.ErrorTypeConfig, "unknown data type %q", raw)
	}
}

func splitArgs(s string) (name, args string, hasArgs bool, err error) {
	open := strings.IndexByte(s, '[')
	if open < 0 {
		return s, "", false, nil
	}
	if !strings.HasSuffix(s, "]") {
		return "", "", false, errors.Newf(errors.ErrorTypeConfig, "unterminated type arguments in %q", s)
	}
	return s[:open], s[open+1 : len(s)-1], true, nil
}

func noArgs(raw string, hasArgs bool, d DataType) (DataType, error) {
	if hasArgs {
		return DataType{}, errors.Newf(errors.ErrorTypeConfig, "type %q takes no arguments", raw)
	}
	return d, nil
}

func parseUnit(s string) (arrow.TimeUnit, bool) {
	switch s {
	case "s":
		return arrow.Second, true
	case "ms":
		return arrow.Millisecond, true
	case "us":
		return arrow.Microsecond, true
	case "ns":
		return arrow.Nanosecond, true
	default:
		return 0, false
	}
}

func unitName(u arrow.TimeUnit) string {
	switch u {
	case arrow.Second:
		return "s"
	case arrow.Millisecond:
		return "ms"
	case arrow.Microsecond:
		return "us"
	default:
		return "ns"
	}
}
