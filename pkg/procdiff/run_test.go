package procdiff

import (
	"context"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/lance6716/procdiff/pkg/casestore"
	"github.com/lance6716/procdiff/pkg/compare"
	"github.com/lance6716/procdiff/pkg/conn"
	"github.com/lance6716/procdiff/pkg/invoke"
	"github.com/stretchr/testify/require"
)

func newBatchInvoker(t *testing.T) (*invoke.Invoker, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	// per-case execution order is randomized, expectations cannot be ordered
	mock.MatchExpectationsInOrder(false)
	return invoke.NewInvoker(conn.NewManagerForTest(db, time.Minute, 0)), mock
}

func expectNoParams(mock sqlmock.Sqlmock, procName string) {
	mock.ExpectQuery("SELECT PARAMETER_NAME, DATA_TYPE, PARAMETER_MODE").
		WithArgs("", procName).
		WillReturnRows(sqlmock.NewRows([]string{"PARAMETER_NAME", "DATA_TYPE", "PARAMETER_MODE"}))
}

func expectCall(mock sqlmock.Sqlmock, procName string, value int) {
	expectNoParams(mock, procName)
	mock.ExpectQuery(regexp.QuoteMeta("CALL `" + procName + "`()")).
		WillReturnRows(sqlmock.NewRowsWithColumnDefinition(
			sqlmock.NewColumn("id").OfType("INT", nil)).AddRow(value))
}

func TestRunBatch(t *testing.T) {
	iv, mock := newBatchInvoker(t)

	// case 1 passes, case 2 fails on a value diff, case 3 errors on the
	// candidate side; the batch must still produce all three outcomes
	expectCall(mock, "p_base", 1)
	expectCall(mock, "p_cand", 1)
	expectCall(mock, "q_base", 1)
	expectCall(mock, "q_cand", 2)
	expectCall(mock, "r_base", 1)
	expectNoParams(mock, "r_cand")
	mock.ExpectQuery(regexp.QuoteMeta("CALL `r_cand`()")).
		WillReturnError(&mysql.MySQLError{Number: 1305, Message: "PROCEDURE r_cand does not exist"})

	cases := []casestore.TestCase{
		{ID: 1, BaselineProc: "p_base", CandidateProc: "p_cand"},
		{ID: 2, BaselineProc: "q_base", CandidateProc: "q_cand"},
		{ID: 3, BaselineProc: "r_base", CandidateProc: "r_cand"},
	}

	var progressed []int64
	outcomes := runBatch(context.Background(), iv, cases, batchOptions{
		concurrency: 1,
		progress: func(done, total int, o *compare.Outcome) {
			require.Equal(t, 3, total)
			require.Equal(t, len(progressed)+1, done)
			progressed = append(progressed, o.TestCaseID)
		},
	})

	require.Len(t, outcomes, 3)
	require.Equal(t, []int64{1, 2, 3}, progressed)

	require.Equal(t, compare.StatusPass, outcomes[0].Status)
	require.Equal(t, int64(1), outcomes[0].TestCaseID)
	require.NotNil(t, outcomes[0].Baseline)
	require.Equal(t, 1, outcomes[0].Baseline.Attempts)
	require.Contains(t, []string{"baseline_first", "candidate_first"}, outcomes[0].ExecutionOrder)

	require.Equal(t, compare.StatusFail, outcomes[1].Status)
	require.Len(t, outcomes[1].SetDiffs, 1)

	require.Equal(t, compare.StatusError, outcomes[2].Status)
	require.Contains(t, outcomes[2].ErrorDetail, "candidate:")
	require.Equal(t, "execution", outcomes[2].Candidate.ErrorKind)
	// the baseline side of the errored case was still invoked
	require.Equal(t, 1, outcomes[2].Baseline.Attempts)
	require.Empty(t, outcomes[2].Baseline.Error)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunBatchConcurrent(t *testing.T) {
	iv, mock := newBatchInvoker(t)

	cases := make([]casestore.TestCase, 4)
	for i := range cases {
		base := "base" + string(rune('a'+i))
		cand := "cand" + string(rune('a'+i))
		cases[i] = casestore.TestCase{ID: int64(i + 1), BaselineProc: base, CandidateProc: cand}
		expectCall(mock, base, 1)
		expectCall(mock, cand, 1)
	}

	var (
		mu        sync.Mutex
		doneCalls int
	)
	outcomes := runBatch(context.Background(), iv, cases, batchOptions{
		concurrency: 2,
		progress: func(done, total int, o *compare.Outcome) {
			mu.Lock()
			doneCalls++
			mu.Unlock()
		},
	})

	require.Len(t, outcomes, 4)
	require.Equal(t, 4, doneCalls)
	for i, o := range outcomes {
		// outcomes stay aligned with the input order regardless of
		// completion order
		require.Equal(t, cases[i].ID, o.TestCaseID)
		require.Equal(t, compare.StatusPass, o.Status)
	}
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunCaseBothSidesFail(t *testing.T) {
	iv, mock := newBatchInvoker(t)

	expectNoParams(mock, "b")
	mock.ExpectQuery(regexp.QuoteMeta("CALL `b`()")).
		WillReturnError(&mysql.MySQLError{Number: 1305, Message: "no b"})
	expectNoParams(mock, "c")
	mock.ExpectQuery(regexp.QuoteMeta("CALL `c`()")).
		WillReturnError(&mysql.MySQLError{Number: 1305, Message: "no c"})

	tc := casestore.TestCase{ID: 9, BaselineProc: "b", CandidateProc: "c"}
	out := runCase(context.Background(), iv, &tc, compare.Options{})
	require.Equal(t, compare.StatusError, out.Status)
	require.Contains(t, out.ErrorDetail, "baseline:")
	require.Contains(t, out.ErrorDetail, "candidate:")
	require.NoError(t, mock.ExpectationsWereMet())
}
