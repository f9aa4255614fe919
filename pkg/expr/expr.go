// Package expr builds row predicates for frame.LazyFrame.Filter.
//
// Predicates are either a declarative tree built from Col and the logical
// combinators, or a CEL expression compiled against a schema with CEL.
package expr

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ajitpratap0/logpress/pkg/errors"
	"github.com/ajitpratap0/logpress/pkg/frame"
)

// Op is the operation of an Expr node
type Op int

const (
	// Logical operators
	OpAnd Op = iota
	OpOr
	OpNot

	// Comparison operators
	OpEq       // ==
	OpNe       // !=
	OpGt       // >
	OpGte      // >=
	OpLt       // <
	OpLte      // <=
	OpContains // substring match
	OpMatches  // regex match
	OpIn       // membership
	OpIsNull
	OpIsNotNull
)

var opSymbols = map[Op]string{
	OpEq:        "==",
	OpNe:        "!=",
	OpGt:        ">",
	OpGte:       ">=",
	OpLt:        "<",
	OpLte:       "<=",
	OpContains:  "contains",
	OpMatches:   "matches",
	OpIn:        "in",
	OpIsNull:    "is null",
	OpIsNotNull: "is not null",
}

// Expr is a composable row predicate. Comparisons against null values are
// false; only IsNull matches them.
type Expr struct {
	Op       Op      // Operation type
	Field    string  // Column name for comparisons (empty for logical ops)
	Value    any     // Comparison value (nil for logical ops)
	Children []*Expr // Child expressions for logical ops

	re  *regexp.Regexp
	err error
}

// Column names the column a comparison reads
type Column string

// Col starts a comparison on the named column
func Col(name string) Column {
	return Column(name)
}

func (c Column) compare(op Op, v any) *Expr {
	return &Expr{Op: op, Field: string(c), Value: frame.Normalize(v)}
}

// Eq matches rows where the column equals v
func (c Column) Eq(v any) *Expr { return c.compare(OpEq, v) }

// Ne matches rows where the column is not null and differs from v
func (c Column) Ne(v any) *Expr { return c.compare(OpNe, v) }

// Gt matches rows where the column is greater than v
func (c Column) Gt(v any) *Expr { return c.compare(OpGt, v) }

// Gte matches rows where the column is at least v
func (c Column) Gte(v any) *Expr { return c.compare(OpGte, v) }

// Lt matches rows where the column is less than v
func (c Column) Lt(v any) *Expr { return c.compare(OpLt, v) }

// Lte matches rows where the column is at most v
func (c Column) Lte(v any) *Expr { return c.compare(OpLte, v) }

// Contains matches rows whose text contains substr
func (c Column) Contains(substr string) *Expr { return c.compare(OpContains, substr) }

// Matches matches rows whose text matches the regular expression pattern
func (c Column) Matches(pattern string) *Expr {
	e := c.compare(OpMatches, pattern)
	e.re, e.err = regexp.Compile(pattern)
	if e.err != nil {
		e.err = errors.Wrap(e.err, errors.ErrorTypeValidation, "invalid regular expression").
			WithDetail("pattern", pattern)
	}
	return e
}

// In matches rows whose value equals one of values
func (c Column) In(values ...any) *Expr {
	list := make([]any, len(values))
	for i, v := range values {
		list[i] = frame.Normalize(v)
	}
	return &Expr{Op: OpIn, Field: string(c), Value: list}
}

// IsNull matches rows where the column is null
func (c Column) IsNull() *Expr { return &Expr{Op: OpIsNull, Field: string(c)} }

// IsNotNull matches rows where the column has a value
func (c Column) IsNotNull() *Expr { return &Expr{Op: OpIsNotNull, Field: string(c)} }

// And combines expressions with AND logic. An empty And is true.
func And(exprs ...*Expr) *Expr {
	return &Expr{Op: OpAnd, Children: exprs}
}

// Or combines expressions with OR logic. An empty Or is false.
func Or(exprs ...*Expr) *Expr {
	return &Expr{Op: OpOr, Children: exprs}
}

// Not negates an expression
func Not(e *Expr) *Expr {
	return &Expr{Op: OpNot, Children: []*Expr{e}}
}

// Validate reports construction errors such as invalid patterns
func (e *Expr) Validate() error {
	if e == nil {
		return errors.New(errors.ErrorTypeValidation, "nil expression")
	}
	if e.err != nil {
		return e.err
	}
	if e.Op == OpNot && len(e.Children) != 1 {
		return errors.New(errors.ErrorTypeValidation, "not takes exactly one expression")
	}
	for _, c := range e.Children {
		if err := c.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Columns returns the columns referenced by e in first-use order
func (e *Expr) Columns() []string {
	var cols []string
	seen := make(map[string]struct{})
	var walk func(*Expr)
	walk = func(x *Expr) {
		if x == nil {
			return
		}
		if x.Field != "" {
			if _, ok := seen[x.Field]; !ok {
				seen[x.Field] = struct{}{}
				cols = append(cols, x.Field)
			}
		}
		for _, c := range x.Children {
			walk(c)
		}
	}
	walk(e)
	return cols
}

// Eval implements frame.Predicate
func (e *Expr) Eval(row frame.Row) (bool, error) {
	if err := e.Validate(); err != nil {
		return false, err
	}
	return e.eval(row)
}

func (e *Expr) eval(row frame.Row) (bool, error) {
	switch e.Op {
	case OpAnd:
		for _, c := range e.Children {
			ok, err := c.eval(row)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	case OpOr:
		for _, c := range e.Children {
			ok, err := c.eval(row)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	case OpNot:
		ok, err := e.Children[0].eval(row)
		return !ok && err == nil, err
	}

	v, found := row.Value(e.Field)
	if !found {
		return false, errors.Newf(errors.ErrorTypeValidation, "column %q not found", e.Field)
	}

	switch e.Op {
	case OpIsNull:
		return v == nil, nil
	case OpIsNotNull:
		return v != nil, nil
	}
	if v == nil {
		return false, nil
	}

	switch e.Op {
	case OpContains:
		return strings.Contains(frame.FormatValue(v), e.Value.(string)), nil
	case OpMatches:
		return e.re.MatchString(frame.FormatValue(v)), nil
	case OpIn:
		for _, lit := range e.Value.([]any) {
			if lit == nil {
				continue
			}
			c, err := compare(e.Field, v, lit)
			if err != nil {
				return false, err
			}
			if c == 0 {
				return true, nil
			}
		}
		return false, nil
	}

	if e.Value == nil {
		return false, nil
	}
	c, err := compare(e.Field, v, e.Value)
	if err != nil {
		return false, err
	}
	switch e.Op {
	case OpEq:
		return c == 0, nil
	case OpNe:
		return c != 0, nil
	case OpGt:
		return c > 0, nil
	case OpGte:
		return c >= 0, nil
	case OpLt:
		return c < 0, nil
	case OpLte:
		return c <= 0, nil
	default:
		return false, errors.Newf(errors.ErrorTypeInternal, "unknown operator %d", e.Op)
	}
}

// compare orders a column value against a literal. Strings are read as
// timestamps when the other side is a time.
func compare(field string, v, lit any) (int, error) {
	switch x := v.(type) {
	case time.Time:
		if s, ok := lit.(string); ok {
			t, err := frame.ParseTimestamp(s)
			if err != nil {
				return 0, errors.Wrap(err, errors.ErrorTypeValidation, "invalid timestamp literal").
					WithDetail("column", field)
			}
			lit = t
		}
	case string:
		if t, ok := lit.(time.Time); ok {
			parsed, err := frame.ParseTimestamp(x)
			if err != nil {
				return 0, nil
			}
			v = parsed
			lit = t
		}
	}

	c, ok := frame.Compare(v, lit)
	if !ok {
		return 0, errors.Newf(errors.ErrorTypeValidation, "cannot compare column %q value %v (%T) with %v (%T)",
			field, v, v, lit, lit)
	}
	return c, nil
}

// String renders the expression
func (e *Expr) String() string {
	switch e.Op {
	case OpAnd, OpOr:
		sep := " && "
		if e.Op == OpOr {
			sep = " || "
		}
		parts := make([]string, len(e.Children))
		for i, c := range e.Children {
			parts[i] = c.String()
		}
		return "(" + strings.Join(parts, sep) + ")"
	case OpNot:
		if len(e.Children) == 1 {
			return "!" + e.Children[0].String()
		}
		return "!()"
	case OpIsNull, OpIsNotNull:
		return e.Field + " " + opSymbols[e.Op]
	case OpIn:
		parts := make([]string, 0)
		for _, v := range e.Value.([]any) {
			parts = append(parts, literal(v))
		}
		return e.Field + " in [" + strings.Join(parts, ", ") + "]"
	default:
		return e.Field + " " + opSymbols[e.Op] + " " + literal(e.Value)
	}
}

func literal(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return strconv.Quote(x)
	case time.Time:
		return strconv.Quote(x.Format(time.RFC3339Nano))
	default:
		return fmt.Sprint(x)
	}
}
