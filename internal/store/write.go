package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/crocs-muni/scrutiny-viz/internal/report"
)

// ErrNoRunID is returned when a document without meta.run_id is written.
var ErrNoRunID = errors.New("document has no run id")

// WriteDocument stores doc under its meta.run_id. Writing a run id that is
// already stored is a no-op, so a retried write never duplicates rows.
func (s *Store) WriteDocument(ctx context.Context, doc *report.Document) error {
	runID := doc.Meta.RunID
	if runID == "" {
		return fmt.Errorf("write document: %w", ErrNoRunID)
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("write document: encode: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write document: begin tx: %w", err)
	}
	defer tx.Rollback() // no-op once committed

	res, err := tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, reference_name, profile_name, schema_version, generated_by, theme, overall, document)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		runID,
		doc.ReferenceName,
		doc.ProfileName,
		doc.Meta.SchemaVersion,
		doc.Meta.GeneratedBy,
		doc.Theme,
		doc.Overall.String(),
		string(body),
	)
	if err != nil {
		return fmt.Errorf("write document: insert run: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("write document: %w", err)
	} else if n == 0 {
		return nil
	}

	if doc.Sections != nil {
		for pos, name := range doc.Sections.Names() {
			sr, _ := doc.Sections.Get(name)
			if err := writeSection(ctx, tx, runID, pos, name, sr); err != nil {
				return fmt.Errorf("write document: section %q: %w", name, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write document: commit: %w", err)
	}
	return nil
}

func writeSection(ctx context.Context, tx *sql.Tx, runID string, pos int, name string, sr *report.SectionResult) error {
	var errMsg sql.NullString
	if sr.Error != nil {
		errMsg = sql.NullString{String: sr.Error.Message, Valid: true}
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO sections
		(run_id, position, name, comparator, status, stage, severity,
		 compared, changed, matched, only_ref, only_test, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		runID, pos, name, sr.Comparator, string(sr.Status), string(sr.Stage), sr.Severity.String(),
		sr.Stats.Compared, sr.Stats.Changed, sr.Stats.Matched, sr.Stats.OnlyRef, sr.Stats.OnlyTest,
		errMsg,
	)
	if err != nil {
		return fmt.Errorf("insert section: %w", err)
	}

	for i, d := range sr.Diffs {
		ref, err := marshalValue(d.Ref)
		if err != nil {
			return fmt.Errorf("diff %d ref: %w", i, err)
		}
		test, err := marshalValue(d.Test)
		if err != nil {
			return fmt.Errorf("diff %d test: %w", i, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO diffs
			(run_id, section, position, key, show_label, status, severity, detail, field, ref, op, test)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			runID, name, i, d.Key, d.ShowLabel, string(d.Status), d.Severity.String(), d.Detail,
			nullString(d.Field), ref, nullString(d.Op), test,
		)
		if err != nil {
			return fmt.Errorf("insert diff %d: %w", i, err)
		}
	}

	for i, is := range sr.Issues {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO issues
			(run_id, section, position, side, record, key, field, code, message)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			runID, name, i, is.Side, is.Record, nullString(is.Key), is.Field, is.Code, is.Message,
		)
		if err != nil {
			return fmt.Errorf("insert issue %d: %w", i, err)
		}
	}
	return nil
}
