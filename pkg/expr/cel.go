package expr

import (
	"regexp"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/google/cel-go/cel"

	"github.com/ajitpratap0/logpress/pkg/errors"
	"github.com/ajitpratap0/logpress/pkg/frame"
)

// RowVariable is the CEL map variable holding every non-null column of the
// row, for columns whose names are not valid identifiers.
const RowVariable = "row"

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

var celReserved = map[string]struct{}{
	"true": {}, "false": {}, "null": {}, "in": {},
	"as": {}, "break": {}, "const": {}, "continue": {}, "else": {},
	"for": {}, "function": {}, "if": {}, "import": {}, "let": {},
	"loop": {}, "package": {}, "namespace": {}, "return": {}, "var": {}, "void": {}, "while": {},
	RowVariable: {},
}

// valuesRow is a row that can list all of its values
type valuesRow interface {
	Values() map[string]any
}

// CELPredicate is a compiled CEL boolean expression evaluated per row.
// Each column with an identifier-safe name is a typed variable; all columns
// are reachable through row["name"].
type CELPredicate struct {
	source  string
	prog    cel.Program
	vars    []string
	usesRow bool
}

// CEL compiles expression against schema. The expression must be boolean.
// A row for which evaluation fails (a null column, a missing map key) does
// not match.
func CEL(expression string, schema *arrow.Schema) (*CELPredicate, error) {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return nil, errors.New(errors.ErrorTypeValidation, "empty CEL expression")
	}

	opts := []cel.EnvOption{cel.Variable(RowVariable, cel.MapType(cel.StringType, cel.DynType))}
	var vars []string
	for _, f := range schema.Fields() {
		if !identifier.MatchString(f.Name) {
			continue
		}
		if _, reserved := celReserved[f.Name]; reserved {
			continue
		}
		opts = append(opts, cel.Variable(f.Name, celType(f.Type)))
		vars = append(vars, f.Name)
	}

	env, err := cel.NewEnv(opts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to create CEL environment")
	}
	ast, iss := env.Parse(expression)
	if iss != nil && iss.Err() != nil {
		return nil, errors.Wrap(iss.Err(), errors.ErrorTypeValidation, "invalid CEL expression").
			WithDetail("expression", expression)
	}
	checked, iss := env.Check(ast)
	if iss != nil && iss.Err() != nil {
		return nil, errors.Wrap(iss.Err(), errors.ErrorTypeValidation, "invalid CEL expression").
			WithDetail("expression", expression)
	}
	if !checked.OutputType().IsExactType(cel.BoolType) {
		return nil, errors.Newf(errors.ErrorTypeValidation, "CEL expression must be boolean, got %s",
			checked.OutputType()).
			WithDetail("expression", expression)
	}
	prog, err := env.Program(checked)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeValidation, "failed to build CEL program").
			WithDetail("expression", expression)
	}

	return &CELPredicate{
		source:  expression,
		prog:    prog,
		vars:    vars,
		usesRow: strings.Contains(expression, RowVariable),
	}, nil
}

func celType(dt arrow.DataType) *cel.Type {
	switch dt.ID() {
	case arrow.STRING, arrow.LARGE_STRING, arrow.DICTIONARY:
		return cel.StringType
	case arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64,
		arrow.UINT8, arrow.UINT16, arrow.UINT32:
		return cel.IntType
	case arrow.UINT64:
		return cel.UintType
	case arrow.FLOAT16, arrow.FLOAT32, arrow.FLOAT64:
		return cel.DoubleType
	case arrow.BOOL:
		return cel.BoolType
	case arrow.TIMESTAMP, arrow.DATE32, arrow.DATE64:
		return cel.TimestampType
	case arrow.BINARY, arrow.LARGE_BINARY:
		return cel.BytesType
	default:
		return cel.DynType
	}
}

// Eval implements frame.Predicate. Evaluation errors count as no match.
func (p *CELPredicate) Eval(row frame.Row) (bool, error) {
	activation := make(map[string]any, len(p.vars)+1)
	for _, name := range p.vars {
		if v, ok := row.Value(name); ok && v != nil {
			activation[name] = v
		}
	}

	all := make(map[string]any)
	switch rr, ok := row.(valuesRow); {
	case !p.usesRow:
	case ok:
		for k, v := range rr.Values() {
			if v != nil {
				all[k] = v
			}
		}
	default:
		for k, v := range activation {
			all[k] = v
		}
	}
	activation[RowVariable] = all

	out, _, err := p.prog.Eval(activation)
	if err != nil {
		return false, nil
	}
	b, ok := out.Value().(bool)
	return ok && b, nil
}

// String returns the source expression
func (p *CELPredicate) String() string {
	return p.source
}
