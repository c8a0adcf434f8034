package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/linkwalk/internal/model"
)

// FileName is the database file created inside the data directory.
const FileName = "linkwalk.db"

// ErrNilReport is returned by SaveRun when no report is given.
var ErrNilReport = errors.New("report is nil")

// CrawlDB stores crawl runs and their per-URL results.
type CrawlDB struct {
	db     *sql.DB
	dbPath string
}

// Options configures CrawlDB behavior.
type Options struct {
	// CreateIfNotExists creates the directory and database file when missing.
	CreateIfNotExists bool

	// EnableWAL turns on write-ahead logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the database in dbDir.
func Open(dbDir string, opts Options) (*CrawlDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if opts.CreateIfNotExists {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	} else if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
	} else if err != nil {
		return nil, fmt.Errorf("failed to check database path: %w", err)
	}

	// mode=rw refuses to create a missing file.
	dsn := dbPath + "?mode=rw&_pragma=foreign_keys(1)"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc&_pragma=foreign_keys(1)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite has a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cdb := &CrawlDB{db: db, dbPath: dbPath}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}
	if err := cdb.createTables(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return cdb, nil
}

// Path returns the database file path.
func (cdb *CrawlDB) Path() string {
	return cdb.dbPath
}

// Close closes the database connection.
func (cdb *CrawlDB) Close() error {
	return cdb.db.Close()
}

func (cdb *CrawlDB) createTables(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS crawl_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		host TEXT NOT NULL,
		seed TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL,
		cancelled INTEGER NOT NULL DEFAULT 0,
		page_count INTEGER NOT NULL DEFAULT 0,
		skipped_by_limit INTEGER NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT '',
		summary TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_runs_host ON crawl_runs(host);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON crawl_runs(started_at);

	CREATE TABLE IF NOT EXISTS fetch_results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL REFERENCES crawl_runs(id) ON DELETE CASCADE,
		url TEXT NOT NULL,
		outcome TEXT NOT NULL,
		status_code INTEGER NOT NULL DEFAULT 0,
		elapsed_ms INTEGER NOT NULL DEFAULT 0,
		content_type TEXT NOT NULL DEFAULT '',
		error TEXT NOT NULL DEFAULT '',
		links_found INTEGER NOT NULL DEFAULT 0,
		content_hash TEXT NOT NULL DEFAULT '',
		depth INTEGER NOT NULL DEFAULT 0,
		fetched_at TEXT NOT NULL DEFAULT '',
		UNIQUE(run_id, url)
	);

	CREATE INDEX IF NOT EXISTS idx_results_run ON fetch_results(run_id);
	CREATE INDEX IF NOT EXISTS idx_results_url ON fetch_results(url);
	`
	_, err := cdb.db.ExecContext(ctx, schema)
	return err
}

// RunMetadata summarizes a stored run without its per-URL results.
type RunMetadata struct {
	ID         int64
	Host       string
	Seed       string
	StartedAt  time.Time
	FinishedAt time.Time
	Cancelled  bool
	PageCount  int
	// Summary maps a status class ("2xx", "error", ...) to its page count.
	Summary map[string]int
}

// SaveRun stores report and all its results in one transaction and sets
// report.ID to the new run ID.
func (cdb *CrawlDB) SaveRun(ctx context.Context, report *model.CrawlReport) (int64, error) {
	if report == nil {
		return 0, ErrNilReport
	}

	summaryJSON, err := json.Marshal(classCounts(report))
	if err != nil {
		return 0, fmt.Errorf("failed to serialize summary: %w", err)
	}

	tx, err := cdb.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }() //nolint:errcheck // no-op after commit

	res, err := tx.ExecContext(ctx, `
	INSERT INTO crawl_runs (host, seed, started_at, finished_at, cancelled, page_count, skipped_by_limit, error, summary)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		report.Host,
		report.Seed,
		formatTimestamp(report.StartedAt),
		formatTimestamp(report.FinishedAt),
		report.Cancelled,
		len(report.Results),
		report.SkippedByLimit,
		report.Error,
		string(summaryJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert crawl run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read run id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO fetch_results (run_id, url, outcome, status_code, elapsed_ms, content_type, error, links_found, content_hash, depth, fetched_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare result insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range report.Sorted() {
		if _, err := stmt.ExecContext(ctx,
			runID,
			r.URL,
			string(r.Outcome),
			r.StatusCode,
			r.Elapsed.Milliseconds(),
			r.ContentType,
			r.Error,
			r.LinksFound,
			r.ContentHash,
			r.Depth,
			formatTimestamp(r.FetchedAt),
		); err != nil {
			return 0, fmt.Errorf("failed to insert result for %s: %w", r.URL, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit crawl run: %w", err)
	}
	report.ID = runID
	return runID, nil
}

func classCounts(report *model.CrawlReport) map[string]int {
	counts := make(map[string]int)
	for class, n := range report.Summary().ByClass {
		counts[class.String()] = n
	}
	return counts
}

// ListHosts returns every host with at least one stored run.
func (cdb *CrawlDB) ListHosts(ctx context.Context) ([]string, error) {
	rows, err := cdb.db.QueryContext(ctx, `SELECT DISTINCT host FROM crawl_runs ORDER BY host`)
	if err != nil {
		return nil, fmt.Errorf("failed to list hosts: %w", err)
	}
	defer rows.Close()

	var hosts []string
	for rows.Next() {
		var host string
		if err := rows.Scan(&host); err != nil {
			return nil, fmt.Errorf("failed to scan host: %w", err)
		}
		hosts = append(hosts, host)
	}
	return hosts, rows.Err()
}

// GetRunHistory returns metadata for every run of host, newest first.
func (cdb *CrawlDB) GetRunHistory(ctx context.Context, host string) ([]RunMetadata, error) {
	rows, err := cdb.db.QueryContext(ctx, `
	SELECT id, host, seed, started_at, finished_at, cancelled, page_count, summary
	FROM crawl_runs
	WHERE host = ?
	ORDER BY started_at DESC, id DESC
	`, host)
	if err != nil {
		return nil, fmt.Errorf("failed to get run history: %w", err)
	}
	defer rows.Close()

	var history []RunMetadata
	for rows.Next() {
		var (
			meta              RunMetadata
			started, finished string
			summary           sql.NullString
		)
		if err := rows.Scan(&meta.ID, &meta.Host, &meta.Seed, &started, &finished,
			&meta.Cancelled, &meta.PageCount, &summary); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		meta.StartedAt = parseTimestamp(started)
		meta.FinishedAt = parseTimestamp(finished)
		meta.Summary = make(map[string]int)
		if summary.Valid && summary.String != "" {
			if err := json.Unmarshal([]byte(summary.String), &meta.Summary); err != nil {
				meta.Summary = make(map[string]int)
			}
		}
		history = append(history, meta)
	}
	return history, rows.Err()
}

// GetRun loads a run and its results. It returns nil without error when no
// run has that ID.
func (cdb *CrawlDB) GetRun(ctx context.Context, id int64) (*model.CrawlReport, error) {
	var (
		report            model.CrawlReport
		started, finished string
	)
	err := cdb.db.QueryRowContext(ctx, `
	SELECT id, host, seed, started_at, finished_at, cancelled, skipped_by_limit, error
	FROM crawl_runs
	WHERE id = ?
	`, id).Scan(&report.ID, &report.Host, &report.Seed, &started, &finished,
		&report.Cancelled, &report.SkippedByLimit, &report.Error)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get crawl run: %w", err)
	}
	report.StartedAt = parseTimestamp(started)
	report.FinishedAt = parseTimestamp(finished)

	results, err := cdb.loadResults(ctx, id)
	if err != nil {
		return nil, err
	}
	report.Results = results
	return &report, nil
}

func (cdb *CrawlDB) loadResults(ctx context.Context, runID int64) (map[string]model.FetchResult, error) {
	rows, err := cdb.db.QueryContext(ctx, `
	SELECT url, outcome, status_code, elapsed_ms, content_type, error, links_found, content_hash, depth, fetched_at
	FROM fetch_results
	WHERE run_id = ?
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load results: %w", err)
	}
	defer rows.Close()

	results := make(map[string]model.FetchResult)
	for rows.Next() {
		var (
			r         model.FetchResult
			outcome   string
			elapsedMS int64
			fetchedAt string
		)
		if err := rows.Scan(&r.URL, &outcome, &r.StatusCode, &elapsedMS, &r.ContentType,
			&r.Error, &r.LinksFound, &r.ContentHash, &r.Depth, &fetchedAt); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		r.Outcome = model.Outcome(outcome)
		r.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		r.FetchedAt = parseTimestamp(fetchedAt)
		results[r.URL] = r
	}
	return results, rows.Err()
}

// GetLatestRuns loads up to n runs of host with their results, newest first.
func (cdb *CrawlDB) GetLatestRuns(ctx context.Context, host string, n int) ([]*model.CrawlReport, error) {
	if n <= 0 {
		return nil, nil
	}
	rows, err := cdb.db.QueryContext(ctx, `
	SELECT id FROM crawl_runs
	WHERE host = ?
	ORDER BY started_at DESC, id DESC
	LIMIT ?
	`, host, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest runs: %w", err)
	}

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan run id: %w", err)
		}
		ids = append(ids, id)
	}
	// The single connection must be released before loading each run.
	if err := rows.Close(); err != nil {
		return nil, fmt.Errorf("failed to close rows: %w", err)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}

	reports := make([]*model.CrawlReport, 0, len(ids))
	for _, id := range ids {
		report, err := cdb.GetRun(ctx, id)
		if err != nil {
			return nil, err
		}
		if report != nil {
			reports = append(reports, report)
		}
	}
	return reports, nil
}

// DeleteRun removes a run and, through the foreign key, its results.
func (cdb *CrawlDB) DeleteRun(ctx context.Context, id int64) error {
	if _, err := cdb.db.ExecContext(ctx, `DELETE FROM crawl_runs WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete crawl run: %w", err)
	}
	return nil
}

// timestampLayout has fixed width so that stored timestamps sort as text.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timestampLayout)
}

// timestampFormats lists the layouts parseTimestamp accepts, most specific first.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// parseTimestamp returns the zero time for empty or unrecognized input.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
