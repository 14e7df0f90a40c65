package conn

import (
	"context"
	"database/sql/driver"
	"io"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/pingcap/errors"
	"github.com/stretchr/testify/require"
)

func TestIsConnectionError(t *testing.T) {
	require.True(t, IsConnectionError(driver.ErrBadConn))
	require.True(t, IsConnectionError(mysql.ErrInvalidConn))
	require.True(t, IsConnectionError(io.EOF))
	require.True(t, IsConnectionError(io.ErrUnexpectedEOF))
	require.True(t, IsConnectionError(&mysql.MySQLError{Number: 1053}))
	require.True(t, IsConnectionError(&mysql.MySQLError{Number: 1927}))

	// annotated errors are still recognized
	require.True(t, IsConnectionError(errors.Annotate(driver.ErrBadConn, "call p")))

	// server-raised statement errors must not be retried
	require.False(t, IsConnectionError(&mysql.MySQLError{Number: 1305, Message: "does not exist"}))
	require.False(t, IsConnectionError(errors.New("other")))
	require.False(t, IsConnectionError(nil))
}

func TestIsTimeout(t *testing.T) {
	require.True(t, IsTimeout(context.DeadlineExceeded))
	require.True(t, IsTimeout(errors.Annotate(context.DeadlineExceeded, "call p")))
	require.False(t, IsTimeout(context.Canceled))
	require.False(t, IsTimeout(nil))
}
