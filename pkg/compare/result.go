package compare

// Status is the per-case verdict.
type Status string

const (
	StatusPass  Status = "PASS"
	StatusFail  Status = "FAIL"
	StatusError Status = "ERROR"
)

// Outcome is the final result unit of one test case. Compare fills the diff
// fields; the orchestrator fills the identity, timing and error fields. All
// fields serialize to JSON losslessly so external writers can render a full
// human-readable diff without re-querying the database.
type Outcome struct {
	TestCaseID int64  `json:"test_case_id"`
	Status     Status `json:"status"`

	SetCountDiff *SetCountDiff   `json:"set_count_diff,omitempty"`
	SetDiffs     []ResultSetDiff `json:"result_set_diffs,omitempty"`

	ErrorDetail string `json:"error_detail,omitempty"`

	// ExecutionOrder records which side ran first ("baseline_first" or
	// "candidate_first"); the order is randomized per case.
	ExecutionOrder string             `json:"execution_order,omitempty"`
	Baseline       *InvocationReport `json:"baseline,omitempty"`
	Candidate      *InvocationReport `json:"candidate,omitempty"`
}

// InvocationReport carries per-side observability data: attempt count (above
// 1 means the call only went through after a reconnect) and durations.
type InvocationReport struct {
	Attempts        int    `json:"attempts"`
	ExecDurationMS  int64  `json:"exec_duration_ms"`
	FetchDurationMS int64  `json:"fetch_duration_ms"`
	ErrorKind       string `json:"error_kind,omitempty"`
	Error           string `json:"error,omitempty"`
}

// SetCountDiff reports that the two invocations emitted a different number of
// result sets.
type SetCountDiff struct {
	BaselineCount  int `json:"baseline_count"`
	CandidateCount int `json:"candidate_count"`
}

// ResultSetDiff is the comparison record of the result sets at one index.
type ResultSetDiff struct {
	Index       int  `json:"index"`
	SchemaMatch bool `json:"schema_match"`

	// ColumnOrderMismatch is recorded for visibility when both sides have the
	// same column name set in a different order; it does not fail the case.
	ColumnOrderMismatch bool `json:"column_order_mismatch,omitempty"`

	ColumnDiffs  []ColumnDiff  `json:"column_diffs,omitempty"`
	RowCountDiff *RowCountDiff `json:"row_count_diff,omitempty"`
	RowDiffs     []RowDiff     `json:"row_diffs,omitempty"`

	// ExtraSide marks an unmatched trailing result set ("baseline" or
	// "candidate") when the sequence lengths differ.
	ExtraSide string `json:"extra_side,omitempty"`
}

// Empty reports whether the diff contains nothing that should fail the case.
func (d *ResultSetDiff) Empty() bool {
	return len(d.ColumnDiffs) == 0 &&
		d.RowCountDiff == nil &&
		len(d.RowDiffs) == 0 &&
		d.ExtraSide == ""
}

// ColumnDiff is one column-schema mismatch.
type ColumnDiff struct {
	Name string `json:"name"`
	// Kind is "added" (candidate only), "removed" (baseline only) or
	// "type_changed".
	Kind          string `json:"kind"`
	BaselineType  string `json:"baseline_type,omitempty"`
	CandidateType string `json:"candidate_type,omitempty"`
}

// RowCountDiff reports differing row counts of one result set pair.
type RowCountDiff struct {
	BaselineRows  int `json:"baseline_rows"`
	CandidateRows int `json:"candidate_rows"`
}

// RowDiff is one differing field. Values are rendered to strings; nil means
// SQL NULL.
type RowDiff struct {
	RowIndex  int     `json:"row_index"`
	Field     string  `json:"field"`
	Baseline  *string `json:"baseline"`
	Candidate *string `json:"candidate"`
}
