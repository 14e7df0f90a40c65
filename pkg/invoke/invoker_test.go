package invoke

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/lance6716/procdiff/pkg/conn"
	"github.com/lance6716/procdiff/pkg/param"
	"github.com/lance6716/procdiff/pkg/resultset"
	"github.com/stretchr/testify/require"
)

func newTestInvoker(t *testing.T) (*Invoker, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewInvoker(conn.NewManagerForTest(db, time.Minute, 0)), mock
}

func expectDeclaredParams(mock sqlmock.Sqlmock, decls ...[3]string) {
	rows := sqlmock.NewRows([]string{"PARAMETER_NAME", "DATA_TYPE", "PARAMETER_MODE"})
	for _, d := range decls {
		rows.AddRow(d[0], d[1], d[2])
	}
	mock.ExpectQuery("SELECT PARAMETER_NAME, DATA_TYPE, PARAMETER_MODE").
		WithArgs("", "p").
		WillReturnRows(rows)
}

func TestInvokeNamedParams(t *testing.T) {
	iv, mock := newTestInvoker(t)
	expectDeclaredParams(mock,
		[3]string{"p_id", "int", "IN"},
		[3]string{"p_name", "varchar", "IN"},
	)
	mock.ExpectQuery(regexp.QuoteMeta("CALL `p`(?, ?)")).
		WithArgs(int64(5), "alice").
		WillReturnRows(sqlmock.NewRowsWithColumnDefinition(
			sqlmock.NewColumn("id").OfType("INT", nil)).AddRow(5))

	// provided order differs from declared order, binding goes by name
	sets, stats, err := iv.Invoke(context.Background(), "p", param.Set{
		{Name: "@p_name", Value: param.String("alice")},
		{Name: "@p_id", Value: param.Int(5)},
	})
	require.NoError(t, err)
	require.Equal(t, 1, stats.Attempts)
	require.Len(t, sets, 1)
	require.Equal(t, []resultset.Row{{int64(5)}}, sets[0].Rows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInvokeMissingParamBindsNull(t *testing.T) {
	iv, mock := newTestInvoker(t)
	expectDeclaredParams(mock,
		[3]string{"p_id", "int", "IN"},
		[3]string{"p_note", "varchar", "IN"},
	)
	mock.ExpectQuery(regexp.QuoteMeta("CALL `p`(?, ?)")).
		WithArgs(int64(5), nil).
		WillReturnRows(sqlmock.NewRowsWithColumnDefinition(
			sqlmock.NewColumn("id").OfType("INT", nil)))

	_, _, err := iv.Invoke(context.Background(), "p", param.Set{
		{Name: "@p_id", Value: param.Int(5)},
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInvokePositionalParams(t *testing.T) {
	iv, mock := newTestInvoker(t)
	expectDeclaredParams(mock,
		[3]string{"p_id", "int", "IN"},
		[3]string{"p_name", "varchar", "IN"},
	)
	mock.ExpectQuery(regexp.QuoteMeta("CALL `p`(?, ?)")).
		WithArgs(int64(5), "alice").
		WillReturnRows(sqlmock.NewRowsWithColumnDefinition(
			sqlmock.NewColumn("id").OfType("INT", nil)))

	_, _, err := iv.Invoke(context.Background(), "p", param.Set{
		{Value: param.Int(5)},
		{Value: param.String("alice")},
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInvokeUnknownParamName(t *testing.T) {
	iv, mock := newTestInvoker(t)
	expectDeclaredParams(mock, [3]string{"p_id", "int", "IN"})

	_, _, err := iv.Invoke(context.Background(), "p", param.Set{
		{Name: "@no_such", Value: param.Int(1)},
	})
	require.Error(t, err)
	bindErr := &ParameterBindingError{}
	require.ErrorAs(t, err, &bindErr)
	require.Equal(t, "@no_such", bindErr.Name)
	require.Equal(t, "parameter_binding", ErrorKind(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInvokeTooManyPositional(t *testing.T) {
	iv, mock := newTestInvoker(t)
	expectDeclaredParams(mock, [3]string{"p_id", "int", "IN"})

	_, _, err := iv.Invoke(context.Background(), "p", param.Set{
		{Value: param.Int(1)},
		{Value: param.Int(2)},
	})
	require.Error(t, err)
	bindErr := &ParameterBindingError{}
	require.ErrorAs(t, err, &bindErr)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInvokeCoercionFailure(t *testing.T) {
	iv, mock := newTestInvoker(t)
	expectDeclaredParams(mock, [3]string{"p_id", "int", "IN"})

	_, _, err := iv.Invoke(context.Background(), "p", param.Set{
		{Name: "@p_id", Value: param.String("abc")},
	})
	require.Error(t, err)
	bindErr := &ParameterBindingError{}
	require.ErrorAs(t, err, &bindErr)
	require.Equal(t, "p_id", bindErr.Name)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInvokeRejectsOutParams(t *testing.T) {
	iv, mock := newTestInvoker(t)
	expectDeclaredParams(mock,
		[3]string{"p_id", "int", "IN"},
		[3]string{"p_total", "int", "OUT"},
	)

	_, _, err := iv.Invoke(context.Background(), "p", param.Set{
		{Name: "@p_id", Value: param.Int(1)},
	})
	require.Error(t, err)
	bindErr := &ParameterBindingError{}
	require.ErrorAs(t, err, &bindErr)
	require.Equal(t, "p_total", bindErr.Name)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInvokeServerError(t *testing.T) {
	iv, mock := newTestInvoker(t)
	expectDeclaredParams(mock, [3]string{"p_id", "int", "IN"})
	mock.ExpectQuery(regexp.QuoteMeta("CALL `p`(?)")).
		WillReturnError(&mysql.MySQLError{Number: 1644, Message: "custom signal"})

	_, _, err := iv.Invoke(context.Background(), "p", param.Set{
		{Name: "@p_id", Value: param.Int(1)},
	})
	require.Error(t, err)
	execErr := &ExecutionError{}
	require.ErrorAs(t, err, &execErr)
	require.Equal(t, uint16(1644), execErr.Code)
	require.Equal(t, "execution", ErrorKind(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInvokeInvalidProcName(t *testing.T) {
	iv, _ := newTestInvoker(t)

	for _, name := range []string{"", "p; DROP TABLE t", "a.b.c", "1p"} {
		_, _, err := iv.Invoke(context.Background(), name, nil)
		require.Error(t, err, "name %q", name)
		bindErr := &ParameterBindingError{}
		require.ErrorAs(t, err, &bindErr)
	}
}

func TestInvokeQualifiedName(t *testing.T) {
	iv, mock := newTestInvoker(t)

	rows := sqlmock.NewRows([]string{"PARAMETER_NAME", "DATA_TYPE", "PARAMETER_MODE"}).
		AddRow("p_id", "int", "IN")
	mock.ExpectQuery("SELECT PARAMETER_NAME, DATA_TYPE, PARAMETER_MODE").
		WithArgs("mydb", "p").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("CALL `mydb`.`p`(?)")).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRowsWithColumnDefinition(
			sqlmock.NewColumn("id").OfType("INT", nil)))

	_, _, err := iv.Invoke(context.Background(), "mydb.p", param.Set{
		{Value: param.Int(1)},
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestErrorKind(t *testing.T) {
	require.Equal(t, "", ErrorKind(nil))
	require.Equal(t, "parameter_binding", ErrorKind(&ParameterBindingError{}))
	require.Equal(t, "execution", ErrorKind(&ExecutionError{}))
	require.Equal(t, "timeout", ErrorKind(&conn.TimeoutError{}))
	require.Equal(t, "connection", ErrorKind(&conn.ConnectionError{}))
	require.Equal(t, "internal", ErrorKind(context.Canceled))
}
