package compare

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lance6716/procdiff/pkg/resultset"
)

// Options tunes value comparison.
type Options struct {
	// FloatTolerance is the maximum absolute difference under which two
	// float/decimal values still compare equal. Zero means exact equality.
	FloatTolerance float64
}

// Compare diffs two ordered result set sequences and returns the verdict. It
// is a pure function: no I/O, deterministic for identical inputs, and safe to
// call concurrently. Status is PASS only when the sequence lengths match and
// every per-set diff is empty; it never returns ERROR (execution failures are
// handled by the orchestrator before the comparator runs).
func Compare(baseline, candidate []resultset.ResultSet, opts Options) Outcome {
	outcome := Outcome{Status: StatusPass}

	if len(baseline) != len(candidate) {
		outcome.SetCountDiff = &SetCountDiff{
			BaselineCount:  len(baseline),
			CandidateCount: len(candidate),
		}
	}

	// compare the overlapping prefix index by index, then flag every
	// unmatched trailing set on the longer side
	overlap := min(len(baseline), len(candidate))
	for i := 0; i < overlap; i++ {
		diff := compareSet(i, &baseline[i], &candidate[i], opts)
		if !diff.Empty() || diff.ColumnOrderMismatch {
			outcome.SetDiffs = append(outcome.SetDiffs, diff)
		}
	}
	for i := overlap; i < len(baseline); i++ {
		outcome.SetDiffs = append(outcome.SetDiffs, ResultSetDiff{Index: i, ExtraSide: "baseline"})
	}
	for i := overlap; i < len(candidate); i++ {
		outcome.SetDiffs = append(outcome.SetDiffs, ResultSetDiff{Index: i, ExtraSide: "candidate"})
	}

	if outcome.SetCountDiff != nil {
		outcome.Status = StatusFail
	}
	for i := range outcome.SetDiffs {
		if !outcome.SetDiffs[i].Empty() {
			outcome.Status = StatusFail
			break
		}
	}
	return outcome
}

// compareSet diffs one pair of result sets: column schemas keyed by name and
// declared type, then rows aligned positionally with fields compared by name.
func compareSet(index int, baseline, candidate *resultset.ResultSet, opts Options) ResultSetDiff {
	diff := ResultSetDiff{Index: index}

	candidateTypes := make(map[string]string, len(candidate.Columns))
	for _, c := range candidate.Columns {
		candidateTypes[c.Name] = c.DeclaredType
	}
	baselineTypes := make(map[string]string, len(baseline.Columns))
	for _, c := range baseline.Columns {
		baselineTypes[c.Name] = c.DeclaredType
	}

	sameNameSet := true
	for _, c := range baseline.Columns {
		candidateType, ok := candidateTypes[c.Name]
		if !ok {
			diff.ColumnDiffs = append(diff.ColumnDiffs, ColumnDiff{
				Name: c.Name, Kind: "removed", BaselineType: c.DeclaredType,
			})
			sameNameSet = false
			continue
		}
		if candidateType != c.DeclaredType {
			diff.ColumnDiffs = append(diff.ColumnDiffs, ColumnDiff{
				Name:          c.Name,
				Kind:          "type_changed",
				BaselineType:  c.DeclaredType,
				CandidateType: candidateType,
			})
		}
	}
	for _, c := range candidate.Columns {
		if _, ok := baselineTypes[c.Name]; !ok {
			diff.ColumnDiffs = append(diff.ColumnDiffs, ColumnDiff{
				Name: c.Name, Kind: "added", CandidateType: c.DeclaredType,
			})
			sameNameSet = false
		}
	}
	diff.SchemaMatch = len(diff.ColumnDiffs) == 0

	if sameNameSet && len(baseline.Columns) == len(candidate.Columns) {
		for i := range baseline.Columns {
			if baseline.Columns[i].Name != candidate.Columns[i].Name {
				diff.ColumnOrderMismatch = true
				break
			}
		}
	}

	// rows are only comparable when the column name sets agree; a declared
	// type change is already reported above and does not block value diffs
	if !sameNameSet {
		return diff
	}

	if len(baseline.Rows) != len(candidate.Rows) {
		diff.RowCountDiff = &RowCountDiff{
			BaselineRows:  len(baseline.Rows),
			CandidateRows: len(candidate.Rows),
		}
	}

	rowOverlap := min(len(baseline.Rows), len(candidate.Rows))
	for r := 0; r < rowOverlap; r++ {
		for bi, col := range baseline.Columns {
			ci := candidate.ColumnIndex(col.Name)
			bv := baseline.Rows[r][bi]
			cv := candidate.Rows[r][ci]
			if !equalValue(bv, cv, col.DeclaredType, opts.FloatTolerance) {
				diff.RowDiffs = append(diff.RowDiffs, RowDiff{
					RowIndex:  r,
					Field:     col.Name,
					Baseline:  renderValue(bv),
					Candidate: renderValue(cv),
				})
			}
		}
	}
	return diff
}

// equalValue applies type-aware equality: NULL only equals NULL, approximate
// numeric types honor the tolerance, everything else compares exactly.
func equalValue(a, b any, declaredType string, tolerance float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	if isApproxNumericType(declaredType) {
		af, aok := toFloat(a)
		bf, bok := toFloat(b)
		if aok && bok {
			d := af - bf
			if d < 0 {
				d = -d
			}
			return d <= tolerance
		}
	}

	if at, ok := a.(time.Time); ok {
		if bt, ok2 := b.(time.Time); ok2 {
			return at.Equal(bt)
		}
	}

	return renderedValue(a) == renderedValue(b)
}

// isApproxNumericType reports declared types whose server-side representation
// can legitimately drift within a tolerance.
func isApproxNumericType(declaredType string) bool {
	switch strings.ToUpper(declaredType) {
	case "FLOAT", "DOUBLE", "DECIMAL", "NUMERIC", "REAL":
		return true
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch val := v.(type) {
	case int64:
		return float64(val), true
	case uint64:
		return float64(val), true
	case float64:
		return val, true
	case string:
		f, err := strconv.ParseFloat(val, 64)
		return f, err == nil
	}
	return 0, false
}

func renderValue(v any) *string {
	if v == nil {
		return nil
	}
	s := renderedValue(v)
	return &s
}

func renderedValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case time.Time:
		return val.Format("2006-01-02 15:04:05")
	case bool:
		if val {
			return "1"
		}
		return "0"
	default:
		return fmt.Sprintf("%v", val)
	}
}
