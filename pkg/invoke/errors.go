package invoke

import (
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/lance6716/procdiff/pkg/conn"
)

// ParameterBindingError means the supplied parameter set cannot be bound to
// the procedure's declared parameters. This is a data problem and is never
// retried.
type ParameterBindingError struct {
	Procedure string
	Name      string
	Err       error
}

func (e *ParameterBindingError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("bind parameter %s of %s: %s", e.Name, e.Procedure, e.Err)
	}
	return fmt.Sprintf("bind parameters of %s: %s", e.Procedure, e.Err)
}

func (e *ParameterBindingError) Unwrap() error { return e.Err }

// ExecutionError means the server rejected or aborted the call.
type ExecutionError struct {
	Procedure string
	Code      uint16
	Message   string
	Err       error
}

func (e *ExecutionError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("execute %s: server error %d: %s", e.Procedure, e.Code, e.Message)
	}
	return fmt.Sprintf("execute %s: %s", e.Procedure, e.Message)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// classifyCallError folds an invocation failure into the error taxonomy:
// timeout and connection errors pass through from the connection manager,
// server errors become ExecutionError.
func classifyCallError(procedure string, err error) error {
	var (
		timeoutErr *conn.TimeoutError
		connErr    *conn.ConnectionError
		serverErr  *mysql.MySQLError
	)
	switch {
	case errors.As(err, &timeoutErr), errors.As(err, &connErr):
		return err
	case errors.As(err, &serverErr):
		return &ExecutionError{
			Procedure: procedure,
			Code:      serverErr.Number,
			Message:   serverErr.Message,
			Err:       err,
		}
	case conn.IsTimeout(err):
		return err
	case conn.IsConnectionError(err):
		return &conn.ConnectionError{Attempts: 1, Err: err}
	default:
		return &ExecutionError{Procedure: procedure, Message: err.Error(), Err: err}
	}
}

// ErrorKind names the taxonomy class of an invocation error, for reports.
func ErrorKind(err error) string {
	var (
		bindingErr *ParameterBindingError
		execErr    *ExecutionError
		timeoutErr *conn.TimeoutError
		connErr    *conn.ConnectionError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &bindingErr):
		return "parameter_binding"
	case errors.As(err, &execErr):
		return "execution"
	case errors.As(err, &timeoutErr):
		return "timeout"
	case errors.As(err, &connErr):
		return "connection"
	default:
		return "internal"
	}
}
