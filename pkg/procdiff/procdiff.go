package procdiff

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/lance6716/procdiff/pkg/casestore"
	"github.com/lance6716/procdiff/pkg/compare"
	"github.com/lance6716/procdiff/pkg/conn"
	"github.com/lance6716/procdiff/pkg/filemgr"
	"github.com/lance6716/procdiff/pkg/invoke"
	"github.com/lance6716/procdiff/pkg/report"
	"github.com/lance6716/procdiff/pkg/util"
	"github.com/pingcap/errors"
	"go.uber.org/zap"
)

// Run is the main entry function of the procdiff logic.
func Run(ctx context.Context, cfg *Config) error {
	cfg.ensureDefaults()
	if cfg.Log.Filename != "" {
		if err := util.RedirectLogger(cfg.Log.Filename); err != nil {
			return errors.Trace(err)
		}
	}

	runID := uuid.NewString()
	target := net.JoinHostPort(cfg.DB.Host, strconv.Itoa(cfg.DB.Port)) + "/" + cfg.DB.Database
	util.Logger.Info("start batch run",
		zap.String("task", cfg.TaskName),
		zap.String("run-id", runID),
		zap.String("target", target))

	mgr, err := conn.NewManager(conn.Options{
		Host:        cfg.DB.Host,
		Port:        cfg.DB.Port,
		User:        cfg.DB.User,
		Password:    cfg.DB.Password,
		Database:    cfg.DB.Database,
		MaxConn:     cfg.DB.MaxConn,
		CallTimeout: time.Duration(cfg.CallTimeoutSeconds) * time.Second,
		MaxRetries:  *cfg.MaxRetries,
	})
	if err != nil {
		return errors.Trace(err)
	}
	defer mgr.Close()

	// inability to acquire any connection at all aborts the batch; per-case
	// failures later do not
	if err = mgr.Ping(ctx); err != nil {
		return errors.Trace(err)
	}

	var cases []casestore.TestCase
	if cfg.CaseFile != "" {
		cases, err = casestore.ReadCasesFromFile(cfg.CaseFile)
	} else {
		cases, err = casestore.ReadTestCases(ctx, mgr.DB(), cfg.CaseTable)
	}
	if err != nil {
		return errors.Trace(err)
	}
	if len(cases) == 0 {
		util.Logger.Warn("no test cases to run")
		return nil
	}

	inv := invoke.NewInvoker(mgr)
	outcomes := runBatch(ctx, inv, cases, batchOptions{
		concurrency: cfg.MaxConcurrentCases,
		compareOpts: compare.Options{FloatTolerance: cfg.FloatTolerance},
		progress: func(done, total int, o *compare.Outcome) {
			util.Logger.Info("case finished",
				zap.Int64("case-id", o.TestCaseID),
				zap.String("status", string(o.Status)),
				zap.Int("done", done),
				zap.Int("total", total))
		},
	})

	fm := filemgr.NewManager(cfg.WorkDir)
	for i := range outcomes {
		if err2 := fm.WriteOutcome(cases[i].BaselineProc, outcomes[i]); err2 != nil {
			util.Logger.Warn("failed to persist outcome",
				zap.Int64("case-id", outcomes[i].TestCaseID),
				zap.Error(err2))
		}
	}

	rep := report.Build(cfg.TaskName, runID, target, cases, outcomes)
	reportFile := cfg.ReportFile
	if reportFile == "" {
		reportFile = fm.ReportPath()
	}
	if err = report.Render(rep, reportFile); err != nil {
		return errors.Trace(err)
	}

	fmt.Print(report.TextSummary(rep))
	util.Logger.Info("batch run finished",
		zap.String("run-id", runID),
		zap.String("report", reportFile))
	return errors.Trace(ctx.Err())
}
