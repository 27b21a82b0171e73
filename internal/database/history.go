package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/pdfharvest/internal/model"
)

const (
	// FileName is the database file created inside the history directory.
	FileName = "history.db"

	// timeLayout is fixed width so stored timestamps sort lexically.
	timeLayout = "2006-01-02T15:04:05.000000000Z"
)

// ErrRunNotFound is returned when a run id is not in the history.
var ErrRunNotFound = errors.New("run not found in history")

// HistoryDB stores finished runs and their download outcomes in SQLite.
type HistoryDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures HistoryDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// RunRecord is one row of the runs table.
type RunRecord struct {
	RunID        string
	Sources      []string
	StartedAt    time.Time
	FinishedAt   time.Time
	Policy       string
	OutputDir    string
	LinksFound   int
	Filtered     int
	Success      int
	Failed       int
	Skipped      int
	Cancelled    bool
	Error        string
	MergeOutput  string
	MergePages   int
	MergeInputs  int
	MergeDeleted int
}

// Elapsed returns the run duration.
func (r RunRecord) Elapsed() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// OutcomeRecord is one row of the outcomes table.
type OutcomeRecord struct {
	RunID        string
	Index        int
	URL          string
	AnchorText   string
	SourcePage   string
	TargetPath   string
	Status       string
	Attempts     int
	BytesWritten int64
	Elapsed      time.Duration
	Digest       string
	ErrorKind    string
	StatusCode   int
	ErrorMessage string
}

// Open opens or creates the history database inside dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*HistoryDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a missing file, mode=rwc allows it.
	var dsn string
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	} else {
		dsn = dbPath + "?mode=rw"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	hdb := &HistoryDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close() //nolint:errcheck // already failing
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := hdb.createTables(); err != nil {
		_ = db.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return hdb, nil
}

// Path returns the database file path.
func (h *HistoryDB) Path() string {
	return h.dbPath
}

// Close closes the database connection.
func (h *HistoryDB) Close() error {
	return h.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (h *HistoryDB) createTables() error {
	schema := `
	-- One row per crawl run
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		sources TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL,
		policy TEXT NOT NULL,
		output_dir TEXT NOT NULL,
		links_found INTEGER NOT NULL DEFAULT 0,
		filtered INTEGER NOT NULL DEFAULT 0,
		success INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0,
		skipped INTEGER NOT NULL DEFAULT 0,
		cancelled INTEGER NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT '',
		merge_output TEXT NOT NULL DEFAULT '',
		merge_pages INTEGER NOT NULL DEFAULT 0,
		merge_inputs INTEGER NOT NULL DEFAULT 0,
		merge_deleted INTEGER NOT NULL DEFAULT 0,
		report_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

	-- One row per download outcome
	CREATE TABLE IF NOT EXISTS outcomes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
		idx INTEGER NOT NULL,
		url TEXT NOT NULL,
		anchor_text TEXT NOT NULL DEFAULT '',
		source_page TEXT NOT NULL DEFAULT '',
		target_path TEXT NOT NULL,
		status TEXT NOT NULL,
		attempts INTEGER NOT NULL DEFAULT 0,
		bytes_written INTEGER NOT NULL DEFAULT 0,
		elapsed_ms INTEGER NOT NULL DEFAULT 0,
		digest TEXT NOT NULL DEFAULT '',
		error_kind TEXT NOT NULL DEFAULT '',
		status_code INTEGER NOT NULL DEFAULT 0,
		error_message TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_outcomes_run ON outcomes(run_id);
	CREATE INDEX IF NOT EXISTS idx_outcomes_digest ON outcomes(digest);
	`

	_, err := h.db.ExecContext(context.Background(), schema)
	return err
}

// SaveRun stores a finished run and all of its outcomes in one transaction.
// Saving the same run id twice replaces the earlier entry.
func (h *HistoryDB) SaveRun(ctx context.Context, report *model.RunReport) (err error) {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to serialize report: %w", err)
	}
	sourcesJSON, err := json.Marshal(report.Sources)
	if err != nil {
		return fmt.Errorf("failed to serialize sources: %w", err)
	}

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback() //nolint:errcheck // the original error is returned
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM outcomes WHERE run_id = ?`, report.RunID); err != nil {
		return fmt.Errorf("failed to replace outcomes: %w", err)
	}

	var mergeOutput string
	var mergePages, mergeInputs, mergeDeleted int
	if m := report.Merge; m != nil {
		mergeOutput = m.OutputPath
		mergePages = m.TotalPages
		mergeInputs = m.InputCount
		mergeDeleted = len(m.Deleted)
	}

	_, err = tx.ExecContext(ctx, `
	INSERT OR REPLACE INTO runs (
		run_id, sources, started_at, finished_at, policy, output_dir,
		links_found, filtered, success, failed, skipped, cancelled, error,
		merge_output, merge_pages, merge_inputs, merge_deleted, report_json
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		report.RunID,
		string(sourcesJSON),
		report.StartedAt.UTC().Format(timeLayout),
		report.FinishedAt.UTC().Format(timeLayout),
		report.Policy.Mode.String(),
		report.OutputDir,
		report.LinksFound,
		report.Filtered,
		report.Succeeded(),
		report.FailedCount(),
		report.SkippedCount(),
		boolToInt(report.Cancelled),
		report.ErrorMessage,
		mergeOutput,
		mergePages,
		mergeInputs,
		mergeDeleted,
		string(reportJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO outcomes (
		run_id, idx, url, anchor_text, source_page, target_path, status,
		attempts, bytes_written, elapsed_ms, digest, error_kind, status_code, error_message
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare outcome insert: %w", err)
	}
	defer stmt.Close()

	for _, o := range report.Outcomes {
		var kind, msg string
		var code int
		if o.Err != nil {
			kind = o.Err.Kind.String()
			code = o.Err.StatusCode
			msg = o.Err.Message
		}
		if _, err = stmt.ExecContext(ctx,
			report.RunID,
			o.Index,
			o.Task.Link.URL,
			o.Task.Link.AnchorText,
			o.Task.Link.SourcePage,
			o.Task.TargetPath,
			o.Status.String(),
			o.Attempts,
			o.BytesWritten,
			o.Elapsed.Milliseconds(),
			o.Digest,
			kind,
			code,
			msg,
		); err != nil {
			return fmt.Errorf("failed to save outcome %d: %w", o.Index, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	return nil
}

const runColumns = `run_id, sources, started_at, finished_at, policy, output_dir,
	links_found, filtered, success, failed, skipped, cancelled, error,
	merge_output, merge_pages, merge_inputs, merge_deleted`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*RunRecord, error) {
	var (
		r                      RunRecord
		sources, started, done string
		cancelled              int
	)
	if err := row.Scan(
		&r.RunID, &sources, &started, &done, &r.Policy, &r.OutputDir,
		&r.LinksFound, &r.Filtered, &r.Success, &r.Failed, &r.Skipped, &cancelled, &r.Error,
		&r.MergeOutput, &r.MergePages, &r.MergeInputs, &r.MergeDeleted,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(sources), &r.Sources); err != nil {
		return nil, fmt.Errorf("failed to parse sources: %w", err)
	}
	r.StartedAt = parseTimestamp(started)
	r.FinishedAt = parseTimestamp(done)
	r.Cancelled = cancelled != 0
	return &r, nil
}

// ListRuns returns the most recent runs, newest first. limit <= 0 returns
// every run.
func (h *HistoryDB) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := make([]RunRecord, 0)
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

// GetRun returns one run. A unique run id prefix is accepted, so the short
// ids printed by ListRuns work too.
func (h *HistoryDB) GetRun(ctx context.Context, runID string) (*RunRecord, error) {
	rows, err := h.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE run_id = ? OR run_id LIKE ? ESCAPE '\' LIMIT 2`,
		runID, escapeLike(runID)+"%")
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	defer rows.Close()

	var found []*RunRecord
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if r.RunID == runID {
			return r, nil
		}
		found = append(found, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	switch len(found) {
	case 1:
		return found[0], nil
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	default:
		return nil, fmt.Errorf("run id prefix %q is ambiguous", runID)
	}
}

// GetOutcomes returns the outcomes of a run in candidate order.
func (h *HistoryDB) GetOutcomes(ctx context.Context, runID string) ([]OutcomeRecord, error) {
	return h.queryOutcomes(ctx, `WHERE run_id = ? ORDER BY idx`, runID)
}

// FindByDigest returns successful outcomes whose file had the given SHA3-256
// digest, newest run first.
func (h *HistoryDB) FindByDigest(ctx context.Context, digest string) ([]OutcomeRecord, error) {
	return h.queryOutcomes(ctx, `WHERE digest = ? AND digest != '' ORDER BY id DESC`, digest)
}

func (h *HistoryDB) queryOutcomes(ctx context.Context, where string, args ...any) ([]OutcomeRecord, error) {
	query := `
	SELECT run_id, idx, url, anchor_text, source_page, target_path, status,
		attempts, bytes_written, elapsed_ms, digest, error_kind, status_code, error_message
	FROM outcomes ` + where

	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query outcomes: %w", err)
	}
	defer rows.Close()

	outcomes := make([]OutcomeRecord, 0)
	for rows.Next() {
		var (
			o         OutcomeRecord
			elapsedMS int64
		)
		if err := rows.Scan(
			&o.RunID, &o.Index, &o.URL, &o.AnchorText, &o.SourcePage, &o.TargetPath, &o.Status,
			&o.Attempts, &o.BytesWritten, &elapsedMS, &o.Digest, &o.ErrorKind, &o.StatusCode, &o.ErrorMessage,
		); err != nil {
			return nil, fmt.Errorf("failed to scan outcome: %w", err)
		}
		o.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		outcomes = append(outcomes, o)
	}
	return outcomes, rows.Err()
}

// GetRunJSON returns the stored JSON document of a run.
func (h *HistoryDB) GetRunJSON(ctx context.Context, runID string) (string, error) {
	var doc string
	err := h.db.QueryRowContext(ctx, `SELECT report_json FROM runs WHERE run_id = ?`, runID).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return "", fmt.Errorf("failed to get run: %w", err)
	}
	return doc, nil
}

// DeleteRunsBefore removes runs started before t together with their
// outcomes and returns the number of runs removed.
func (h *HistoryDB) DeleteRunsBefore(ctx context.Context, t time.Time) (int64, error) {
	cutoff := t.UTC().Format(timeLayout)
	if _, err := h.db.ExecContext(ctx,
		`DELETE FROM outcomes WHERE run_id IN (SELECT run_id FROM runs WHERE started_at < ?)`, cutoff); err != nil {
		return 0, fmt.Errorf("failed to delete outcomes: %w", err)
	}
	res, err := h.db.ExecContext(ctx, `DELETE FROM runs WHERE started_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete runs: %w", err)
	}
	return res.RowsAffected()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// timestampFormats lists the formats SQLite timestamps may come back in.
var timestampFormats = []string{
	timeLayout,
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999",
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
