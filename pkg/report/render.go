package report

import (
	"fmt"
	"html/template"
	"io"
	"os"
	"strings"

	"github.com/lance6716/procdiff/pkg/casestore"
	"github.com/lance6716/procdiff/pkg/compare"
)

var t = template.Must(template.New("report").Parse(tpl))

// Report is the renderable view of one batch run.
type Report struct {
	TaskInfoItems [][2]string // [key, value]
	Summary       Summary
	Timing        Timing
	Details       []Details
}

// Summary counts case verdicts.
type Summary struct {
	Total  int
	Passed int
	Failed int
	Errors int
}

// Timing aggregates per-side execution durations over successful invocations.
type Timing struct {
	BaselineAvg  string
	BaselineMin  string
	BaselineMax  string
	CandidateAvg string
	CandidateMin string
	CandidateMax string
	Improvement  string
}

// Details is the per-case section of the report.
type Details struct {
	Header string
	Labels [][2]string
	Lines  []string
}

// Build assembles the report view from the batch inputs. cases and outcomes
// are aligned by index.
func Build(
	taskName, runID, target string,
	cases []casestore.TestCase,
	outcomes []*compare.Outcome,
) *Report {
	r := &Report{
		TaskInfoItems: [][2]string{
			{"Task", taskName},
			{"Run ID", runID},
			{"Target", target},
		},
		Summary: Summary{Total: len(outcomes)},
	}

	var baselineTimes, candidateTimes []float64
	for i, o := range outcomes {
		switch o.Status {
		case compare.StatusPass:
			r.Summary.Passed++
		case compare.StatusFail:
			r.Summary.Failed++
		case compare.StatusError:
			r.Summary.Errors++
		}

		tc := cases[i]
		d := Details{
			Header: fmt.Sprintf("#%d %s vs %s: %s", tc.ID, tc.BaselineProc, tc.CandidateProc, o.Status),
			Labels: [][2]string{
				{"Description", tc.Description},
				{"Execution order", o.ExecutionOrder},
			},
			Lines: DiffLines(o),
		}
		if o.Baseline != nil && o.Baseline.Error == "" {
			baselineTimes = append(baselineTimes, float64(o.Baseline.ExecDurationMS)/1000)
			d.Labels = append(d.Labels, [2]string{
				"Baseline timing", invocationLabel(o.Baseline),
			})
		}
		if o.Candidate != nil && o.Candidate.Error == "" {
			candidateTimes = append(candidateTimes, float64(o.Candidate.ExecDurationMS)/1000)
			d.Labels = append(d.Labels, [2]string{
				"Candidate timing", invocationLabel(o.Candidate),
			})
		}
		r.Details = append(r.Details, d)
	}

	bAvg, bMin, bMax := timeStats(baselineTimes)
	cAvg, cMin, cMax := timeStats(candidateTimes)
	r.Timing = Timing{
		BaselineAvg:  formatSeconds(bAvg),
		BaselineMin:  formatSeconds(bMin),
		BaselineMax:  formatSeconds(bMax),
		CandidateAvg: formatSeconds(cAvg),
		CandidateMin: formatSeconds(cMin),
		CandidateMax: formatSeconds(cMax),
	}
	if bAvg > 0 && cAvg > 0 {
		r.Timing.Improvement = fmt.Sprintf("%+.1f%%", (bAvg-cAvg)/bAvg*100)
	}
	return r
}

// DiffLines renders one outcome's differences as human-readable lines.
func DiffLines(o *compare.Outcome) []string {
	var lines []string
	if o.ErrorDetail != "" {
		lines = append(lines, "error: "+o.ErrorDetail)
	}
	if d := o.SetCountDiff; d != nil {
		lines = append(lines, fmt.Sprintf(
			"result set count differs: baseline %d, candidate %d",
			d.BaselineCount, d.CandidateCount))
	}
	for i := range o.SetDiffs {
		sd := &o.SetDiffs[i]
		if sd.ExtraSide != "" {
			lines = append(lines, fmt.Sprintf(
				"unmatched extra result set at index %d (%s)", sd.Index, sd.ExtraSide))
			continue
		}
		for _, cd := range sd.ColumnDiffs {
			switch cd.Kind {
			case "added":
				lines = append(lines, fmt.Sprintf(
					"result set %d: column %s only in candidate (%s)",
					sd.Index, cd.Name, cd.CandidateType))
			case "removed":
				lines = append(lines, fmt.Sprintf(
					"result set %d: column %s only in baseline (%s)",
					sd.Index, cd.Name, cd.BaselineType))
			case "type_changed":
				lines = append(lines, fmt.Sprintf(
					"result set %d: column %s declared type changed (%s -> %s)",
					sd.Index, cd.Name, cd.BaselineType, cd.CandidateType))
			}
		}
		if sd.ColumnOrderMismatch {
			lines = append(lines, fmt.Sprintf(
				"result set %d: column order differs (values compared by name)", sd.Index))
		}
		if rc := sd.RowCountDiff; rc != nil {
			lines = append(lines, fmt.Sprintf(
				"result set %d: row count differs: baseline %d, candidate %d",
				sd.Index, rc.BaselineRows, rc.CandidateRows))
		}
		for _, rd := range sd.RowDiffs {
			lines = append(lines, fmt.Sprintf(
				"result set %d row %d: field %s differs (%s != %s)",
				sd.Index, rd.RowIndex, rd.Field,
				renderNullable(rd.Baseline), renderNullable(rd.Candidate)))
		}
	}
	return lines
}

// TextSummary renders a terminal-friendly batch summary.
func TextSummary(r *Report) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("total %d: %d passed, %d failed, %d errors\n",
		r.Summary.Total, r.Summary.Passed, r.Summary.Failed, r.Summary.Errors))
	b.WriteString(fmt.Sprintf("baseline exec avg/min/max: %s/%s/%s\n",
		r.Timing.BaselineAvg, r.Timing.BaselineMin, r.Timing.BaselineMax))
	b.WriteString(fmt.Sprintf("candidate exec avg/min/max: %s/%s/%s\n",
		r.Timing.CandidateAvg, r.Timing.CandidateMin, r.Timing.CandidateMax))
	if r.Timing.Improvement != "" {
		b.WriteString("improvement: " + r.Timing.Improvement + "\n")
	}
	for _, d := range r.Details {
		if len(d.Lines) == 0 {
			continue
		}
		b.WriteString(d.Header + "\n")
		for _, line := range d.Lines {
			b.WriteString("  " + line + "\n")
		}
	}
	return b.String()
}

// Render writes the HTML report to outFilename.
func Render(r *Report, outFilename string) error {
	file, err := os.Create(outFilename)
	if err != nil {
		return err
	}
	defer file.Close()

	return render(r, file)
}

func render(r *Report, out io.Writer) error {
	return t.Execute(out, r)
}

func invocationLabel(ir *compare.InvocationReport) string {
	label := fmt.Sprintf("exec %s, fetch %s",
		formatSeconds(float64(ir.ExecDurationMS)/1000),
		formatSeconds(float64(ir.FetchDurationMS)/1000))
	if ir.Attempts > 1 {
		label += fmt.Sprintf(" (succeeded on attempt %d)", ir.Attempts)
	}
	return label
}

func timeStats(times []float64) (avg, minVal, maxVal float64) {
	if len(times) == 0 {
		return 0, 0, 0
	}
	minVal, maxVal = times[0], times[0]
	sum := 0.0
	for _, v := range times {
		sum += v
		if v < minVal {
			minVal = v
		}
		if v > maxVal {
			maxVal = v
		}
	}
	return sum / float64(len(times)), minVal, maxVal
}

func formatSeconds(s float64) string {
	return fmt.Sprintf("%.3fs", s)
}

func renderNullable(v *string) string {
	if v == nil {
		return "NULL"
	}
	return "'" + *v + "'"
}
