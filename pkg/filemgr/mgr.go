package filemgr

import (
	"encoding/json"
	"os"
	"path"
	"strconv"

	"github.com/lance6716/procdiff/pkg/compare"
	"github.com/lance6716/procdiff/pkg/util"
	"github.com/pingcap/errors"
)

const (
	outcomeDir     = "outcome"
	outcomeExt     = ".json"
	reportFilename = "report.html"
)

// Manager owns a folder and organizes the files procdiff writes: one outcome
// JSON per test case and the rendered batch report.
type Manager struct {
	workDir string
}

// NewManager creates a new Manager instance on the given work directory.
func NewManager(workDir string) *Manager {
	return &Manager{workDir: workDir}
}

// WriteOutcome writes one case outcome to the outcome directory. The file
// name combines the case ID and the baseline procedure name so a directory
// listing stays readable.
func (m *Manager) WriteOutcome(baselineProc string, o *compare.Outcome) error {
	dir := path.Join(m.workDir, outcomeDir)
	if err := os.MkdirAll(dir, 0776); err != nil {
		return errors.Trace(err)
	}
	content, err := json.Marshal(o)
	if err != nil {
		return errors.Trace(err)
	}
	filename := strconv.FormatInt(o.TestCaseID, 10) + "-" + util.EscapePath(baselineProc) + outcomeExt
	return util.AtomicWrite(path.Join(dir, filename), content)
}

// ReadOutcome reads a previously written outcome back, for re-rendering
// reports without re-querying the database.
func (m *Manager) ReadOutcome(caseID int64, baselineProc string) (*compare.Outcome, error) {
	filename := strconv.FormatInt(caseID, 10) + "-" + util.EscapePath(baselineProc) + outcomeExt
	content, err := os.ReadFile(path.Join(m.workDir, outcomeDir, filename))
	if err != nil {
		return nil, errors.Trace(err)
	}
	var o compare.Outcome
	if err = json.Unmarshal(content, &o); err != nil {
		return nil, errors.Trace(err)
	}
	return &o, nil
}

// ReportPath returns the default location of the rendered batch report.
func (m *Manager) ReportPath() string {
	return path.Join(m.workDir, reportFilename)
}
