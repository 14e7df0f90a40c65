package invoke

import (
	"context"
	"regexp"
	"strings"

	"github.com/lance6716/procdiff/pkg/conn"
	"github.com/lance6716/procdiff/pkg/param"
	"github.com/lance6716/procdiff/pkg/resultset"
	"github.com/lance6716/procdiff/pkg/util"
	"github.com/pingcap/errors"
)

var procNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$]*(\.[A-Za-z_][A-Za-z0-9_$]*)?$`)

// Invoker executes one named procedure with a structured parameter set and
// materializes every result set it emits. It is stateless per call; one
// Invoker can serve many invocations.
type Invoker struct {
	mgr *conn.Manager
}

// NewInvoker creates an Invoker on the given connection manager.
func NewInvoker(mgr *conn.Manager) *Invoker {
	return &Invoker{mgr: mgr}
}

// declaredParam is one row of INFORMATION_SCHEMA.PARAMETERS, in ordinal order.
type declaredParam struct {
	name     string
	dataType string
	mode     string
}

// Invoke binds params to the declared parameters of procName, executes
// CALL and drains all result sets. Failures are classified into
// ParameterBindingError, ExecutionError, conn.ConnectionError or
// conn.TimeoutError.
func (iv *Invoker) Invoke(
	ctx context.Context,
	procName string,
	params param.Set,
) ([]resultset.ResultSet, conn.CallStats, error) {
	var stats conn.CallStats
	if !procNameRe.MatchString(procName) {
		return nil, stats, &ParameterBindingError{
			Procedure: procName,
			Err:       errors.Errorf("invalid procedure name %q", procName),
		}
	}

	declared, err := iv.readDeclaredParams(ctx, procName)
	if err != nil {
		return nil, stats, classifyCallError(procName, err)
	}

	args, err := bindParams(procName, declared, params)
	if err != nil {
		return nil, stats, err
	}

	placeholders := make([]string, len(args))
	for i := range placeholders {
		placeholders[i] = "?"
	}
	query := "CALL " + escapeProcName(procName) + "(" + strings.Join(placeholders, ", ") + ")"

	sets, stats, err := iv.mgr.CallProcedure(ctx, query, args)
	if err != nil {
		return nil, stats, classifyCallError(procName, err)
	}
	return sets, stats, nil
}

// readDeclaredParams loads the parameter declarations of the target procedure
// in ordinal order, resolving an unqualified name against the current schema.
func (iv *Invoker) readDeclaredParams(ctx context.Context, procName string) ([]declaredParam, error) {
	schema := ""
	name := procName
	if i := strings.IndexByte(procName, '.'); i >= 0 {
		schema, name = procName[:i], procName[i+1:]
	}

	c, err := iv.mgr.Acquire(ctx)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer c.Close()

	query := `
		SELECT PARAMETER_NAME, DATA_TYPE, PARAMETER_MODE
		FROM INFORMATION_SCHEMA.PARAMETERS
		WHERE SPECIFIC_SCHEMA = COALESCE(NULLIF(?, ''), DATABASE())
			AND SPECIFIC_NAME = ?
			AND ROUTINE_TYPE = 'PROCEDURE'
			AND PARAMETER_NAME IS NOT NULL
		ORDER BY ORDINAL_POSITION`
	rows, err := c.QueryContext(ctx, query, schema, name)
	if err != nil {
		return nil, errors.Annotatef(err, "read declared parameters of %s", procName)
	}
	defer rows.Close()

	fields, allFound, err := util.ReadStrRowsByColumnName(
		rows, []string{"PARAMETER_NAME", "DATA_TYPE", "PARAMETER_MODE"},
	)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if !allFound {
		return nil, errors.Errorf("unexpected INFORMATION_SCHEMA.PARAMETERS columns for %s", procName)
	}

	declared := make([]declaredParam, 0, len(fields))
	for _, f := range fields {
		declared = append(declared, declaredParam{name: f[0], dataType: f[1], mode: f[2]})
	}
	return declared, nil
}

// bindParams aligns the provided set with the declaration list and coerces
// every value to its declared SQL type. Unknown names and incompatible types
// fail explicitly; a declared parameter without a provided value binds NULL.
func bindParams(procName string, declared []declaredParam, params param.Set) ([]any, error) {
	for _, d := range declared {
		if !strings.EqualFold(d.mode, "IN") {
			return nil, &ParameterBindingError{
				Procedure: procName,
				Name:      d.name,
				Err:       errors.Errorf("%s parameters are not supported", d.mode),
			}
		}
	}

	if params.Named() {
		return bindNamed(procName, declared, params)
	}
	return bindPositional(procName, declared, params)
}

func bindNamed(procName string, declared []declaredParam, params param.Set) ([]any, error) {
	byName := make(map[string]param.Value, len(params))
	for _, p := range params {
		byName[normalizeParamName(p.Name)] = p.Value
	}

	declaredNames := make(map[string]struct{}, len(declared))
	for _, d := range declared {
		declaredNames[normalizeParamName(d.name)] = struct{}{}
	}
	for _, p := range params {
		if _, ok := declaredNames[normalizeParamName(p.Name)]; !ok {
			return nil, &ParameterBindingError{
				Procedure: procName,
				Name:      p.Name,
				Err:       errors.New("not declared by the target procedure"),
			}
		}
	}

	args := make([]any, 0, len(declared))
	for _, d := range declared {
		v, ok := byName[normalizeParamName(d.name)]
		if !ok {
			args = append(args, nil)
			continue
		}
		arg, err := v.Coerce(d.dataType)
		if err != nil {
			return nil, &ParameterBindingError{Procedure: procName, Name: d.name, Err: err}
		}
		args = append(args, arg)
	}
	return args, nil
}

func bindPositional(procName string, declared []declaredParam, params param.Set) ([]any, error) {
	if len(params) > len(declared) {
		return nil, &ParameterBindingError{
			Procedure: procName,
			Err: errors.Errorf(
				"%d values provided but only %d parameters declared", len(params), len(declared)),
		}
	}

	args := make([]any, 0, len(declared))
	for i, d := range declared {
		if i >= len(params) {
			args = append(args, nil)
			continue
		}
		arg, err := params[i].Value.Coerce(d.dataType)
		if err != nil {
			return nil, &ParameterBindingError{Procedure: procName, Name: d.name, Err: err}
		}
		args = append(args, arg)
	}
	return args, nil
}

// normalizeParamName makes names comparable across the @name convention of
// the stored cases and the bare names of INFORMATION_SCHEMA.
func normalizeParamName(name string) string {
	return strings.ToLower(strings.TrimPrefix(name, "@"))
}

func escapeProcName(procName string) string {
	parts := strings.Split(procName, ".")
	for i := range parts {
		parts[i] = util.EscapeIdentifier(parts[i])
	}
	return strings.Join(parts, ".")
}
