package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/crocs-muni/scrutiny-viz/internal/report"
	"github.com/crocs-muni/scrutiny-viz/internal/validate"
)

// ErrNotFound is returned when a run id is not stored.
var ErrNotFound = errors.New("run not found")

// RunSummary is one row of ListRuns.
type RunSummary struct {
	ID            string
	ReferenceName string
	ProfileName   string
	SchemaVersion string
	Overall       report.Severity
}

// ReadDocument returns the document stored under runID.
func (s *Store) ReadDocument(ctx context.Context, runID string) (*report.Document, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT document FROM runs WHERE id = ?`, runID).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("read document %q: %w", runID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read document %q: %w", runID, err)
	}

	var doc report.Document
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return nil, fmt.Errorf("read document %q: decode: %w", runID, err)
	}
	return &doc, nil
}

// ListRuns returns all stored runs ordered by id. UUIDv7 ids sort by
// creation time.
func (s *Store) ListRuns(ctx context.Context) ([]RunSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, reference_name, profile_name, schema_version, overall
		FROM runs
		ORDER BY id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []RunSummary{}
	for rows.Next() {
		var r RunSummary
		var overall string
		if err := rows.Scan(&r.ID, &r.ReferenceName, &r.ProfileName, &r.SchemaVersion, &overall); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if r.Overall, err = report.ParseSeverity(overall); err != nil {
			return nil, fmt.Errorf("run %q: %w", r.ID, err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// SectionSummaries returns the per-section rows of a run in document order.
func (s *Store) SectionSummaries(ctx context.Context, runID string) ([]report.SectionSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, comparator, status, severity, compared, changed, only_ref, only_test
		FROM sections
		WHERE run_id = ?
		ORDER BY position ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query sections: %w", err)
	}
	defer rows.Close()

	out := []report.SectionSummary{}
	for rows.Next() {
		var ss report.SectionSummary
		var status, sev string
		if err := rows.Scan(&ss.Section, &ss.Comparator, &status, &sev,
			&ss.Compared, &ss.Changed, &ss.OnlyRef, &ss.OnlyTest); err != nil {
			return nil, fmt.Errorf("scan section: %w", err)
		}
		ss.Status = report.SectionStatus(status)
		if ss.Severity, err = report.ParseSeverity(sev); err != nil {
			return nil, fmt.Errorf("section %q: %w", ss.Section, err)
		}
		out = append(out, ss)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sections: %w", err)
	}
	return out, nil
}

// Diffs returns the diff entries of a run at or above minSev, in document
// order. An empty section name selects all sections.
func (s *Store) Diffs(ctx context.Context, runID, section string, minSev report.Severity) ([]report.DiffEntry, error) {
	var names []string
	for _, sev := range report.Severities {
		if sev >= minSev {
			names = append(names, sev.String())
		}
	}

	query := `
		SELECT d.key, d.show_label, d.status, d.severity, d.detail, d.field, d.ref, d.op, d.test
		FROM diffs d
		JOIN sections s ON s.run_id = d.run_id AND s.name = d.section
		WHERE d.run_id = ? AND d.severity IN (` + placeholders(len(names)) + `)`
	args := []any{runID}
	for _, n := range names {
		args = append(args, n)
	}
	if section != "" {
		query += ` AND d.section = ?`
		args = append(args, section)
	}
	query += ` ORDER BY s.position ASC, d.position ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query diffs: %w", err)
	}
	defer rows.Close()

	out := []report.DiffEntry{}
	for rows.Next() {
		d, err := scanDiff(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate diffs: %w", err)
	}
	return out, nil
}

func scanDiff(rows *sql.Rows) (report.DiffEntry, error) {
	var (
		d                 report.DiffEntry
		status, sev       string
		field, op         sql.NullString
		refJSON, testJSON sql.NullString
	)
	if err := rows.Scan(&d.Key, &d.ShowLabel, &status, &sev, &d.Detail, &field, &refJSON, &op, &testJSON); err != nil {
		return d, fmt.Errorf("scan diff: %w", err)
	}
	d.Status = report.Status(status)
	d.Field = field.String
	d.Op = op.String

	var err error
	if d.Severity, err = report.ParseSeverity(sev); err != nil {
		return d, fmt.Errorf("diff %q: %w", d.Key, err)
	}
	if d.Ref, err = unmarshalValue(refJSON); err != nil {
		return d, fmt.Errorf("diff %q ref: %w", d.Key, err)
	}
	if d.Test, err = unmarshalValue(testJSON); err != nil {
		return d, fmt.Errorf("diff %q test: %w", d.Key, err)
	}
	return d, nil
}

// Issues returns the validation issues recorded for a section.
func (s *Store) Issues(ctx context.Context, runID, section string) ([]validate.Issue, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT side, record, key, field, code, message
		FROM issues
		WHERE run_id = ? AND section = ?
		ORDER BY position ASC
	`, runID, section)
	if err != nil {
		return nil, fmt.Errorf("query issues: %w", err)
	}
	defer rows.Close()

	out := []validate.Issue{}
	for rows.Next() {
		var is validate.Issue
		var key sql.NullString
		if err := rows.Scan(&is.Side, &is.Record, &key, &is.Field, &is.Code, &is.Message); err != nil {
			return nil, fmt.Errorf("scan issue: %w", err)
		}
		is.Key = key.String
		out = append(out, is)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate issues: %w", err)
	}
	return out, nil
}

func placeholders(n int) string {
	if n == 0 {
		return "NULL"
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
