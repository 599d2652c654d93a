package database

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/kamilpajak/remedy/pkg/models"
)

// Analysis is a stored healing analysis row.
type Analysis struct {
	ID           uuid.UUID
	TestID       string
	Model        string
	RootCause    string
	SuggestedFix string
	Confidence   float64
	Decision     string
	Unavailable  bool
	ReportPath   string
	Result       *models.AnalysisResult
	CreatedAt    time.Time
}

const analysisColumns = `id, test_id, model, root_cause, suggested_fix, confidence, decision, unavailable, report_path, result, created_at`

// RecordAnalysis stores one analyzed failure. Satisfies healing.History.
func (db *DB) RecordAnalysis(ctx context.Context, report *models.HealingReport, reportPath string) error {
	resultJSON, err := json.Marshal(report.Result)
	if err != nil {
		return err
	}

	_, err = db.pool.Exec(ctx, `
		INSERT INTO healing_analyses (test_id, model, root_cause, suggested_fix, confidence, decision, unavailable, report_path, result)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		report.TestID, report.Model,
		report.Result.RootCause, report.Result.SuggestedFix,
		report.Result.Confidence, string(report.Decision),
		report.Unavailable, reportPath, resultJSON,
	)
	return err
}

// scanAnalysis scans a row and unmarshals the result JSON.
func scanAnalysis(row pgx.Row) (*Analysis, error) {
	var a Analysis
	var resultJSON []byte
	err := row.Scan(
		&a.ID, &a.TestID, &a.Model, &a.RootCause, &a.SuggestedFix,
		&a.Confidence, &a.Decision, &a.Unavailable, &a.ReportPath,
		&resultJSON, &a.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if resultJSON != nil {
		a.Result = &models.AnalysisResult{}
		if err := json.Unmarshal(resultJSON, a.Result); err != nil {
			return nil, err
		}
	}
	return &a, nil
}

// GetAnalysis returns one analysis by id, or nil when absent.
func (db *DB) GetAnalysis(ctx context.Context, id uuid.UUID) (*Analysis, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT `+analysisColumns+` FROM healing_analyses WHERE id = $1`, id)
	return scanAnalysis(row)
}

// ListAnalysesByTest returns the most recent analyses for one test.
func (db *DB) ListAnalysesByTest(ctx context.Context, testID string, limit int) ([]*Analysis, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT `+analysisColumns+` FROM healing_analyses
		WHERE test_id = $1 ORDER BY created_at DESC LIMIT $2`, testID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Analysis
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ListRecentAnalyses returns the most recent analyses across all tests.
func (db *DB) ListRecentAnalyses(ctx context.Context, limit int) ([]*Analysis, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT `+analysisColumns+` FROM healing_analyses
		ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Analysis
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
