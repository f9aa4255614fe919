package frame

import (
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
)

// EnumMetadataKey is the field metadata key holding the allowed values of
// an enum column. Values are joined with enumSeparator.
const EnumMetadataKey = "logpress.enum"

const enumSeparator = "\x1f"

// CategoricalType is the arrow type of categorical and enum columns
func CategoricalType() *arrow.DictionaryType {
	return &arrow.DictionaryType{
		IndexType: arrow.PrimitiveTypes.Int32,
		ValueType: arrow.BinaryTypes.String,
	}
}

// EnumField returns a dictionary-encoded string field restricted to categories
func EnumField(name string, categories []string) arrow.Field {
	md := arrow.NewMetadata(
		[]string{EnumMetadataKey},
		[]string{strings.Join(categories, enumSeparator)},
	)
	return arrow.Field{Name: name, Type: CategoricalType(), Nullable: true, Metadata: md}
}

// EnumCategories returns the allowed values of an enum field, or nil
func EnumCategories(f arrow.Field) []string {
	idx := f.Metadata.FindKey(EnumMetadataKey)
	if idx < 0 {
		return nil
	}
	v := f.Metadata.Values()[idx]
	if v == "" {
		return nil
	}
	return strings.Split(v, enumSeparator)
}

// TypeLabel returns a short display name for an arrow type
func TypeLabel(f arrow.Field) string {
	switch t := f.Type.(type) {
	case *arrow.TimestampType:
		s := "datetime[" + t.Unit.String()
		if t.TimeZone != "" {
			s += ", " + t.TimeZone
		}
		return s + "]"
	case *arrow.DictionaryType:
		if EnumCategories(f) != nil {
			return "enum"
		}
		return "cat"
	}

	switch f.Type.ID() {
	case arrow.STRING, arrow.LARGE_STRING:
		return "str"
	case arrow.BOOL:
		return "bool"
	case arrow.INT8:
		return "i8"
	case arrow.INT16:
		return "i16"
	case arrow.INT32:
		return "i32"
	case arrow.INT64:
		return "i64"
	case arrow.UINT8:
		return "u8"
	case arrow.UINT16:
		return "u16"
	case arrow.UINT32:
		return "u32"
	case arrow.UINT64:
		return "u64"
	case arrow.FLOAT32:
		return "f32"
	case arrow.FLOAT64:
		return "f64"
	case arrow.DATE32, arrow.DATE64:
		return "date"
	case arrow.BINARY, arrow.LARGE_BINARY:
		return "binary"
	default:
		return f.Type.String()
	}
}

// FieldNames returns the field names of a schema in order
func FieldNames(s *arrow.Schema) []string {
	names := make([]string, s.NumFields())
	for i, f := range s.Fields() {
		names[i] = f.Name
	}
	return names
}
