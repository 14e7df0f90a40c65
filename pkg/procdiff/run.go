package procdiff

import (
	"context"
	"math/rand"
	"sync"

	"github.com/lance6716/procdiff/pkg/casestore"
	"github.com/lance6716/procdiff/pkg/compare"
	"github.com/lance6716/procdiff/pkg/conn"
	"github.com/lance6716/procdiff/pkg/invoke"
	"github.com/lance6716/procdiff/pkg/resultset"
)

// ProgressFunc is notified after each case completes, for live feedback
// consumers. It is a side effect, not part of the batch result.
type ProgressFunc func(done, total int, outcome *compare.Outcome)

type batchOptions struct {
	concurrency int
	compareOpts compare.Options
	progress    ProgressFunc
}

// runBatch executes every test case and returns one outcome per case, in
// input order. Cases run sequentially unless the concurrency bound permits
// more; each in-flight case owns its connections for its full duration, so
// concurrent cases never share one. Invocation failures never abort the
// batch.
func runBatch(
	ctx context.Context,
	inv *invoke.Invoker,
	cases []casestore.TestCase,
	opts batchOptions,
) []*compare.Outcome {
	outcomes := make([]*compare.Outcome, len(cases))

	var (
		mu   sync.Mutex
		done int
	)
	finish := func(i int, o *compare.Outcome) {
		mu.Lock()
		outcomes[i] = o
		done++
		doneNow := done
		mu.Unlock()
		if opts.progress != nil {
			opts.progress(doneNow, len(cases), o)
		}
	}

	if opts.concurrency <= 1 {
		for i := range cases {
			finish(i, runCase(ctx, inv, &cases[i], opts.compareOpts))
		}
		return outcomes
	}

	workers := opts.concurrency
	if workers > len(cases) {
		workers = len(cases)
	}
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				finish(i, runCase(ctx, inv, &cases[i], opts.compareOpts))
			}
		}()
	}
	for i := range cases {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	return outcomes
}

type sideResult struct {
	sets  []resultset.ResultSet
	stats conn.CallStats
	err   error
}

// runCase invokes both procedure variants and compares their outputs. Both
// sides are always invoked, so a failure on one side still records the fate
// of the other. Execution order is randomized per case so cache warm-up does
// not systematically favor one side.
func runCase(
	ctx context.Context,
	inv *invoke.Invoker,
	tc *casestore.TestCase,
	opts compare.Options,
) *compare.Outcome {
	order := "baseline_first"
	if rand.Intn(2) == 1 {
		order = "candidate_first"
	}

	runSide := func(proc string) sideResult {
		var r sideResult
		r.sets, r.stats, r.err = inv.Invoke(ctx, proc, tc.Params)
		return r
	}

	var baseline, candidate sideResult
	if order == "baseline_first" {
		baseline = runSide(tc.BaselineProc)
		candidate = runSide(tc.CandidateProc)
	} else {
		candidate = runSide(tc.CandidateProc)
		baseline = runSide(tc.BaselineProc)
	}

	var out *compare.Outcome
	if baseline.err != nil || candidate.err != nil {
		out = &compare.Outcome{
			Status:      compare.StatusError,
			ErrorDetail: errorDetail(baseline.err, candidate.err),
		}
	} else {
		compared := compare.Compare(baseline.sets, candidate.sets, opts)
		out = &compared
	}

	out.TestCaseID = tc.ID
	out.ExecutionOrder = order
	out.Baseline = invocationReport(baseline)
	out.Candidate = invocationReport(candidate)
	return out
}

func errorDetail(baselineErr, candidateErr error) string {
	switch {
	case baselineErr != nil && candidateErr != nil:
		return "baseline: " + baselineErr.Error() + "; candidate: " + candidateErr.Error()
	case baselineErr != nil:
		return "baseline: " + baselineErr.Error()
	default:
		return "candidate: " + candidateErr.Error()
	}
}

func invocationReport(r sideResult) *compare.InvocationReport {
	ir := &compare.InvocationReport{
		Attempts:        r.stats.Attempts,
		ExecDurationMS:  r.stats.ExecDuration.Milliseconds(),
		FetchDurationMS: r.stats.FetchDuration.Milliseconds(),
	}
	if r.err != nil {
		ir.ErrorKind = invoke.ErrorKind(r.err)
		ir.Error = r.err.Error()
	}
	return ir
}
