package conn

import (
	"context"
	"database/sql/driver"
	stderrors "errors"
	"fmt"
	"io"
	"net"

	"github.com/go-sql-driver/mysql"
	"github.com/pingcap/errors"
)

// ConnectionError is returned when an invocation still fails with a
// connection-class error after the retry budget is spent. Attempts carries the
// number of full invocation attempts so callers can tell "failed after retry"
// apart from "failed first try".
type ConnectionError struct {
	Attempts int
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection failure after %d attempt(s): %s", e.Attempts, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// TimeoutError is returned when a single procedure call exceeds the per-call
// timeout. The driver closes the client side of the call; the server-side
// command is cancelled best-effort and may still complete out-of-band.
type TimeoutError struct {
	Timeout string
	Err     error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("procedure call exceeded the %s timeout: %s", e.Timeout, e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// server error numbers that indicate the connection, not the statement, failed
const (
	errServerShutdown   = 1053
	errNewAbortingConn  = 1184
	errNormalShutdown   = 1077
	errConnectionKilled = 1927
)

// IsConnectionError reports whether err is a connection-class failure worth
// retrying on a fresh connection. Server-raised statement errors are not.
func IsConnectionError(err error) bool {
	for err != nil {
		if err == driver.ErrBadConn || err == mysql.ErrInvalidConn ||
			err == io.EOF || err == io.ErrUnexpectedEOF {
			return true
		}
		if _, ok := err.(net.Error); ok {
			return true
		}
		if merr, ok := err.(*mysql.MySQLError); ok {
			switch merr.Number {
			case errServerShutdown, errNewAbortingConn, errNormalShutdown, errConnectionKilled:
				return true
			}
			return false
		}
		err = errors.Unwrap(err)
	}
	return false
}

// IsTimeout reports whether err stems from an expired call deadline.
func IsTimeout(err error) bool {
	return stderrors.Is(err, context.DeadlineExceeded)
}
