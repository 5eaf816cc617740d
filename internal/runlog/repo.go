package runlog

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/starford/taxport/internal/apperr"
	"github.com/starford/taxport/internal/models"
)

// Run is one row of the runs table plus its warnings.
type Run struct {
	ID             int64            `json:"id"`
	StartedAt      time.Time        `json:"startedAt"`
	FinishedAt     time.Time        `json:"finishedAt"`
	Status         string           `json:"status"`
	Fingerprint    string           `json:"fingerprint,omitempty"`
	TotalConcepts  int              `json:"totalConcepts"`
	ConceptSchemes int              `json:"conceptSchemes"`
	MaxDepth       int              `json:"maxDepth"`
	Error          string           `json:"error,omitempty"`
	Warnings       []models.Warning `json:"warnings"`
}

// ConceptRow is a stored concept of the last successful export.
type ConceptRow struct {
	ID          string   `json:"id"`
	Label       string   `json:"preferredLabel"`
	Description string   `json:"description"`
	SchemeID    string   `json:"schemeId"`
	BroaderID   string   `json:"broaderId,omitempty"`
	AltLabels   []string `json:"altLabels,omitempty"`
}

// RecordRun inserts a run and its warnings within a transaction and returns
// the new run id.
func (db *DB) RecordRun(r Run) (int64, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return 0, fmt.Errorf("runlog: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	res, err := tx.Exec(`
		INSERT INTO runs (started_at, finished_at, status, fingerprint, total_concepts, concept_schemes, max_depth, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, r.StartedAt.UTC(), r.FinishedAt.UTC(), r.Status, r.Fingerprint, r.TotalConcepts, r.ConceptSchemes, r.MaxDepth, r.Error)
	if err != nil {
		return 0, fmt.Errorf("runlog: insert run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("runlog: run id: %w", err)
	}

	if len(r.Warnings) > 0 {
		stmt, err := tx.Prepare(`INSERT INTO run_warnings (run_id, code, scheme_id, lim, actual, message) VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return 0, fmt.Errorf("runlog: prepare warning insert: %w", err)
		}
		defer stmt.Close()
		for _, w := range r.Warnings {
			if _, err := stmt.Exec(id, w.Code, w.SchemeID, w.Limit, w.Actual, w.Message); err != nil {
				return 0, fmt.Errorf("runlog: insert warning: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("runlog: commit: %w", err)
	}
	return id, nil
}

// ListRuns returns runs newest first together with the total number of runs.
func (db *DB) ListRuns(limit, offset int) ([]Run, int, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	var total int
	if err := db.conn.QueryRow(`SELECT count(*) FROM runs`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("runlog: count runs: %w", err)
	}

	rows, err := db.conn.Query(`
		SELECT id, started_at, finished_at, status, fingerprint, total_concepts, concept_schemes, max_depth, error
		FROM runs ORDER BY id DESC LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("runlog: list runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	for i := range out {
		ws, err := db.warnings(out[i].ID)
		if err != nil {
			return nil, 0, err
		}
		out[i].Warnings = ws
	}
	return out, total, nil
}

// LastRun returns the most recent run, or apperr.ErrNotFound.
func (db *DB) LastRun() (*Run, error) {
	row := db.conn.QueryRow(`
		SELECT id, started_at, finished_at, status, fingerprint, total_concepts, concept_schemes, max_depth, error
		FROM runs ORDER BY id DESC LIMIT 1
	`)
	r, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	if r.Warnings, err = db.warnings(r.ID); err != nil {
		return nil, err
	}
	return r, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*Run, error) {
	var r Run
	if err := s.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.Status, &r.Fingerprint,
		&r.TotalConcepts, &r.ConceptSchemes, &r.MaxDepth, &r.Error); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("runlog: scan run: %w", err)
	}
	return &r, nil
}

func (db *DB) warnings(runID int64) ([]models.Warning, error) {
	rows, err := db.conn.Query(`
		SELECT code, scheme_id, lim, actual, message FROM run_warnings WHERE run_id = ? ORDER BY rowid
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("runlog: warnings: %w", err)
	}
	defer rows.Close()

	out := []models.Warning{}
	for rows.Next() {
		w := models.Warning{Kind: models.WarningKindLimitExceeded}
		if err := rows.Scan(&w.Code, &w.SchemeID, &w.Limit, &w.Actual, &w.Message); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// ReplaceConcepts swaps the stored concepts for the given list.
func (db *DB) ReplaceConcepts(concepts []models.Concept) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("runlog: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec(`DELETE FROM concepts`); err != nil {
		return fmt.Errorf("runlog: clear concepts: %w", err)
	}
	stmt, err := tx.Prepare(`
		INSERT INTO concepts (id, position, label, description, scheme_id, broader_id, alt_labels)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("runlog: prepare concept insert: %w", err)
	}
	defer stmt.Close()

	for i, c := range concepts {
		alt := c.AltLabels
		if alt == nil {
			alt = []string{}
		}
		altJSON, _ := json.Marshal(alt)
		if _, err := stmt.Exec(c.Sys.ID, i, c.PreferredLabel, c.Description, c.SchemeID(), c.BroaderID(), string(altJSON)); err != nil {
			return fmt.Errorf("runlog: insert concept %s: %w", c.Sys.ID, err)
		}
	}
	return tx.Commit()
}

// GetConcept returns one stored concept, or apperr.ErrNotFound.
func (db *DB) GetConcept(id string) (*ConceptRow, error) {
	row := db.conn.QueryRow(`
		SELECT id, label, description, scheme_id, broader_id, alt_labels FROM concepts WHERE id = ?
	`, id)
	c, err := scanConcept(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return c, nil
}

// SearchConcepts performs a LIKE search over ids, labels and alternative
// labels, in export order.
func (db *DB) SearchConcepts(query string, limit int) ([]ConceptRow, error) {
	if limit <= 0 {
		limit = 20
	}
	like := "%" + query + "%"
	rows, err := db.conn.Query(`
		SELECT id, label, description, scheme_id, broader_id, alt_labels
		FROM concepts
		WHERE id LIKE ? OR label LIKE ? OR alt_labels LIKE ?
		ORDER BY position
		LIMIT ?
	`, like, like, like, limit)
	if err != nil {
		return nil, fmt.Errorf("runlog: search: %w", err)
	}
	defer rows.Close()

	var out []ConceptRow
	for rows.Next() {
		c, err := scanConcept(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func scanConcept(s scanner) (*ConceptRow, error) {
	var c ConceptRow
	var alt string
	if err := s.Scan(&c.ID, &c.Label, &c.Description, &c.SchemeID, &c.BroaderID, &alt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(alt), &c.AltLabels); err != nil {
		return nil, fmt.Errorf("runlog: decode alt labels of %s: %w", c.ID, err)
	}
	if len(c.AltLabels) == 0 {
		c.AltLabels = nil
	}
	return &c, nil
}
