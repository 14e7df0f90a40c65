package casestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"time"

	"github.com/lance6716/procdiff/pkg/param"
	"github.com/lance6716/procdiff/pkg/util"
	"github.com/pingcap/errors"
)

// DefaultTable is the table the external registration layer writes cases to.
const DefaultTable = "test_case"

// TestCase pairs a baseline procedure with its candidate under a fixed
// parameter set. Cases are immutable once executed against; the core only
// reads this store, never writes.
type TestCase struct {
	ID            int64     `json:"id"`
	BaselineProc  string    `json:"baseline_proc"`
	CandidateProc string    `json:"candidate_proc"`
	Params        param.Set `json:"params"`
	Description   string    `json:"description"`
	CreatedBy     string    `json:"created_by"`
	CreatedAt     time.Time `json:"created_at"`
}

// ReadTestCases loads every stored case from the given table in ID order,
// decoding the params JSON column into the structured parameter set.
func ReadTestCases(ctx context.Context, db *sql.DB, table string) ([]TestCase, error) {
	if table == "" {
		table = DefaultTable
	}
	query := `
		SELECT id, baseline_proc, candidate_proc, params, description, created_by, created_at
		FROM ` + util.EscapeIdentifier(table) + `
		ORDER BY id`
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.Annotatef(err, "read test cases from %s", table)
	}
	defer rows.Close()

	var ret []TestCase
	for rows.Next() {
		var (
			tc          TestCase
			paramsJSON  sql.NullString
			description sql.NullString
			createdBy   sql.NullString
			createdAt   sql.NullTime
		)
		err = rows.Scan(
			&tc.ID, &tc.BaselineProc, &tc.CandidateProc,
			&paramsJSON, &description, &createdBy, &createdAt,
		)
		if err != nil {
			return nil, errors.Trace(err)
		}
		if paramsJSON.Valid && paramsJSON.String != "" {
			if err = json.Unmarshal([]byte(paramsJSON.String), &tc.Params); err != nil {
				return nil, errors.Annotatef(err, "decode params of test case %d", tc.ID)
			}
		}
		tc.Description = description.String
		tc.CreatedBy = createdBy.String
		tc.CreatedAt = createdAt.Time

		ret = append(ret, tc)
	}
	return ret, errors.Trace(rows.Err())
}

// ReadCasesFromFile loads test cases from a JSON file, an alternative source
// for environments without the case table.
func ReadCasesFromFile(path string) ([]TestCase, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Annotatef(err, "read case file %s", path)
	}
	var cases []TestCase
	if err = json.Unmarshal(content, &cases); err != nil {
		return nil, errors.Annotatef(err, "decode case file %s", path)
	}
	return cases, nil
}
