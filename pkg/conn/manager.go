package conn

import (
	"context"
	"database/sql"
	stderrors "errors"
	"net"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/lance6716/procdiff/pkg/resultset"
	"github.com/lance6716/procdiff/pkg/util"
	"github.com/pingcap/errors"
	"go.uber.org/zap"
)

const (
	// DefaultCallTimeout bounds one procedure invocation, chosen to survive
	// long-running report procedures.
	DefaultCallTimeout = 300 * time.Second
	// DefaultMaxRetries is the bound of full-invocation retries on connection
	// loss.
	DefaultMaxRetries = 1
)

// Options configures the connection manager.
type Options struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	// MaxConn bounds the pool. Concurrent cases never share a connection, so
	// this should be at least the configured concurrency.
	MaxConn     int
	CallTimeout time.Duration
	MaxRetries  int
}

// Manager owns the pooled connection to the target database and provides the
// execute-procedure-with-multiple-result-sets primitive.
type Manager struct {
	db          *sql.DB
	callTimeout time.Duration
	maxRetries  int
}

// CallStats describes how one successful or failed invocation went. Attempts
// is at least 1; a value above 1 means the call only succeeded (or finally
// failed) after reconnecting.
type CallStats struct {
	Attempts      int           `json:"attempts"`
	ExecDuration  time.Duration `json:"exec_duration"`
	FetchDuration time.Duration `json:"fetch_duration"`
}

// NewManager connects to a MySQL compatible database.
func NewManager(opts Options) (*Manager, error) {
	addr := net.JoinHostPort(opts.Host, strconv.Itoa(opts.Port))
	cfg := mysql.NewConfig()
	cfg.User = opts.User
	cfg.Passwd = opts.Password
	cfg.Addr = addr
	cfg.DBName = opts.Database
	cfg.AllowNativePasswords = true
	cfg.ParseTime = true
	cfg.MaxAllowedPacket = -1
	cfg.MultiStatements = false

	c, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, errors.Annotatef(err, "connect to %s as %s", addr, opts.User)
	}
	db := sql.OpenDB(c)
	if opts.MaxConn > 0 {
		db.SetMaxOpenConns(opts.MaxConn)
	}

	timeout := opts.CallTimeout
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	retries := opts.MaxRetries
	if retries < 0 {
		retries = DefaultMaxRetries
	}
	return &Manager{db: db, callTimeout: timeout, maxRetries: retries}, nil
}

// NewManagerForTest wraps an existing DB handle, for tests on a mocked driver.
func NewManagerForTest(db *sql.DB, callTimeout time.Duration, maxRetries int) *Manager {
	return &Manager{db: db, callTimeout: callTimeout, maxRetries: maxRetries}
}

// DB exposes the underlying pool for metadata reads outside the call path.
func (m *Manager) DB() *sql.DB {
	return m.db
}

// Acquire checks one connection out of the pool. The caller owns it for its
// unit of work and must close it to release.
func (m *Manager) Acquire(ctx context.Context) (*sql.Conn, error) {
	c, err := m.db.Conn(ctx)
	if err != nil {
		return nil, errors.Annotate(err, "acquire connection")
	}
	return c, nil
}

// Ping verifies at least one connection can be established.
func (m *Manager) Ping(ctx context.Context) error {
	return errors.Trace(m.db.PingContext(ctx))
}

// Close releases the pool.
func (m *Manager) Close() error {
	return errors.Trace(m.db.Close())
}

// CallProcedure executes query (a CALL statement) on a dedicated connection,
// drains every result set it emits and materializes all rows. On a
// connection-class failure the full invocation is retried on a fresh
// connection up to the configured bound. A timeout is terminal for the
// invocation and never retried.
func (m *Manager) CallProcedure(
	ctx context.Context,
	query string,
	args []any,
) ([]resultset.ResultSet, CallStats, error) {
	var (
		stats   CallStats
		lastErr error
	)
	for attempt := 0; attempt <= m.maxRetries; attempt++ {
		stats.Attempts = attempt + 1
		sets, err := m.callOnce(ctx, query, args, &stats)
		if err == nil {
			return sets, stats, nil
		}
		if IsTimeout(err) {
			return nil, stats, &TimeoutError{Timeout: m.callTimeout.String(), Err: err}
		}
		if !IsConnectionError(err) {
			return nil, stats, errors.Trace(err)
		}
		lastErr = err
		util.Logger.Warn("procedure call hit a connection error, retrying on a fresh connection",
			zap.String("call", query),
			zap.Int("attempt", stats.Attempts),
			zap.Error(err))
	}
	return nil, stats, &ConnectionError{Attempts: stats.Attempts, Err: lastErr}
}

func (m *Manager) callOnce(
	ctx context.Context,
	query string,
	args []any,
	stats *CallStats,
) ([]resultset.ResultSet, error) {
	callCtx, cancel := context.WithTimeout(ctx, m.callTimeout)
	defer cancel()

	c, err := m.db.Conn(callCtx)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer c.Close()

	start := time.Now()
	rows, err := c.QueryContext(callCtx, query, args...)
	stats.ExecDuration = time.Since(start)
	if err != nil {
		return nil, m.wrapDeadline(callCtx, err)
	}
	defer rows.Close()

	start = time.Now()
	sets, err := resultset.ReadAll(rows)
	stats.FetchDuration = time.Since(start)
	if err != nil {
		return nil, m.wrapDeadline(callCtx, err)
	}
	return sets, nil
}

// wrapDeadline attributes failures caused by an expired call deadline to the
// deadline, so they classify as timeout instead of a generic driver error.
func (m *Manager) wrapDeadline(callCtx context.Context, err error) error {
	if callCtx.Err() == context.DeadlineExceeded && !stderrors.Is(err, context.DeadlineExceeded) {
		return errors.Annotatef(context.DeadlineExceeded, "%s", err)
	}
	return errors.Trace(err)
}
