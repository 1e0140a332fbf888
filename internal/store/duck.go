package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/marcboeker/go-duckdb"

	"github.com/redlinehq/redline/internal/model"
)

// DuckStore is a ContentStore backed by an embedded DuckDB file.
// The unique index on analysis_runs(document_id) is the atomic guarantee
// that at most one run exists per document; violations surface as
// ErrConflict.
type DuckStore struct {
	db     *sql.DB
	dbPath string
}

var _ ContentStore = (*DuckStore)(nil)

const duckSchema = `
CREATE TABLE IF NOT EXISTS documents (
	id          VARCHAR PRIMARY KEY,
	user_id     VARCHAR NOT NULL,
	blob_prefix VARCHAR NOT NULL,
	created_at  TIMESTAMP NOT NULL,
	updated_at  TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS extracted_pages (
	id          VARCHAR PRIMARY KEY,
	document_id VARCHAR NOT NULL,
	ordinal     INTEGER NOT NULL,
	content     VARCHAR
);
CREATE TABLE IF NOT EXISTS analysis_runs (
	id              VARCHAR PRIMARY KEY,
	document_id     VARCHAR NOT NULL,
	status          VARCHAR NOT NULL,
	summary         VARCHAR,
	overall_comment VARCHAR,
	warning_comment VARCHAR,
	advice          VARCHAR,
	created_at      TIMESTAMP NOT NULL,
	updated_at      TIMESTAMP NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS analysis_runs_document_idx ON analysis_runs(document_id);
CREATE TABLE IF NOT EXISTS findings (
	id               VARCHAR PRIMARY KEY,
	run_id           VARCHAR NOT NULL,
	title            VARCHAR,
	clause           VARCHAR,
	reason           VARCHAR,
	reason_reference VARCHAR,
	severity_level   INTEGER NOT NULL
);
`

// NewDuckStore opens (or creates) the store file under dataDir.
func NewDuckStore(dataDir string) (*DuckStore, error) {
	dbPath := filepath.Join(dataDir, "redline.duckdb")

	connector, err := duckdb.NewConnector(dbPath, func(execer driver.ExecerContext) error {
		pragmas := []string{
			"PRAGMA memory_limit='512MB'",
			"PRAGMA threads=4",
		}
		for _, pragma := range pragmas {
			if _, err := execer.ExecContext(context.Background(), pragma, nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create DuckDB connector: %w", err)
	}

	db := sql.OpenDB(connector)
	if _, err := db.Exec(duckSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &DuckStore{db: db, dbPath: dbPath}, nil
}

// isConstraintViolation detects DuckDB unique-constraint errors.
// The driver does not expose a typed error for these.
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "Constraint Error") || strings.Contains(msg, "Duplicate key")
}

func (s *DuckStore) CreateDocument(ctx context.Context, doc *model.Document) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (id, user_id, blob_prefix, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		doc.ID, doc.UserID, doc.BlobPrefix, doc.CreatedAt, doc.UpdatedAt)
	if isConstraintViolation(err) {
		return fmt.Errorf("document %s: %w", doc.ID, ErrConflict)
	}
	return err
}

func (s *DuckStore) GetDocument(ctx context.Context, id string) (*model.Document, error) {
	var doc model.Document
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, blob_prefix, created_at, updated_at FROM documents WHERE id = ?`, id).
		Scan(&doc.ID, &doc.UserID, &doc.BlobPrefix, &doc.CreatedAt, &doc.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (s *DuckStore) CreatePages(ctx context.Context, pages []model.ExtractedPage) error {
	if len(pages) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, p := range pages {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO extracted_pages (id, document_id, ordinal, content) VALUES (?, ?, ?, ?)`,
			p.ID, p.DocumentID, p.Ordinal, p.Content); err != nil {
			return fmt.Errorf("insert page %s: %w", p.ID, err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE documents SET updated_at = ? WHERE id = ?`,
		time.Now().UTC(), pages[0].DocumentID); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *DuckStore) ListPages(ctx context.Context, documentID string) ([]model.ExtractedPage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, document_id, ordinal, content FROM extracted_pages WHERE document_id = ? ORDER BY ordinal ASC`,
		documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pages []model.ExtractedPage
	for rows.Next() {
		var p model.ExtractedPage
		if err := rows.Scan(&p.ID, &p.DocumentID, &p.Ordinal, &p.Content); err != nil {
			return nil, err
		}
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

func (s *DuckStore) CountPages(ctx context.Context, documentID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM extracted_pages WHERE document_id = ?`, documentID).Scan(&count)
	return count, err
}

func (s *DuckStore) GetPage(ctx context.Context, documentID, pageID string) (*model.ExtractedPage, error) {
	var p model.ExtractedPage
	err := s.db.QueryRowContext(ctx,
		`SELECT id, document_id, ordinal, content FROM extracted_pages WHERE id = ? AND document_id = ?`,
		pageID, documentID).
		Scan(&p.ID, &p.DocumentID, &p.Ordinal, &p.Content)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("page %s: %w", pageID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *DuckStore) UpdatePageContent(ctx context.Context, pageID, content string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE extracted_pages SET content = ? WHERE id = ?`, content, pageID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("page %s: %w", pageID, ErrNotFound)
	}
	return nil
}

func (s *DuckStore) CreateRun(ctx context.Context, run *model.AnalysisRun) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO analysis_runs (id, document_id, status, summary, overall_comment, warning_comment, advice, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.DocumentID, string(run.Status), run.Summary,
		run.Commentary.OverallComment, run.Commentary.WarningComment, run.Commentary.Advice,
		run.CreatedAt, run.UpdatedAt)
	if isConstraintViolation(err) {
		return fmt.Errorf("analysis run for document %s: %w", run.DocumentID, ErrConflict)
	}
	return err
}

func (s *DuckStore) GetRun(ctx context.Context, runID string) (*model.AnalysisRun, error) {
	return s.queryRun(ctx, `WHERE id = ?`, runID)
}

func (s *DuckStore) GetRunByDocument(ctx context.Context, documentID string) (*model.AnalysisRun, error) {
	return s.queryRun(ctx, `WHERE document_id = ?`, documentID)
}

func (s *DuckStore) queryRun(ctx context.Context, where, arg string) (*model.AnalysisRun, error) {
	var run model.AnalysisRun
	var status string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, document_id, status, summary, overall_comment, warning_comment, advice, created_at, updated_at
		 FROM analysis_runs `+where, arg).
		Scan(&run.ID, &run.DocumentID, &status, &run.Summary,
			&run.Commentary.OverallComment, &run.Commentary.WarningComment, &run.Commentary.Advice,
			&run.CreatedAt, &run.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("analysis run (%s): %w", arg, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	run.Status = model.RunStatus(status)
	return &run, nil
}

func (s *DuckStore) UpdateRun(ctx context.Context, run *model.AnalysisRun) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE analysis_runs SET status = ?, summary = ?, overall_comment = ?, warning_comment = ?, advice = ?, updated_at = ?
		 WHERE id = ?`,
		string(run.Status), run.Summary,
		run.Commentary.OverallComment, run.Commentary.WarningComment, run.Commentary.Advice,
		time.Now().UTC(), run.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("analysis run %s: %w", run.ID, ErrNotFound)
	}
	return nil
}

func (s *DuckStore) DeleteRun(ctx context.Context, runID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM findings WHERE run_id = ?`, runID); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM analysis_runs WHERE id = ?`, runID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("analysis run %s: %w", runID, ErrNotFound)
	}
	return nil
}

func (s *DuckStore) CreateFindings(ctx context.Context, findings []model.Finding) error {
	if len(findings) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, f := range findings {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO findings (id, run_id, title, clause, reason, reason_reference, severity_level)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			f.ID, f.RunID, f.Title, f.Clause, f.Reason, f.ReasonReference, f.SeverityLevel); err != nil {
			return fmt.Errorf("insert finding %s: %w", f.ID, err)
		}
	}
	return tx.Commit()
}

func (s *DuckStore) ListFindings(ctx context.Context, runID string) ([]model.Finding, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, title, clause, reason, reason_reference, severity_level
		 FROM findings WHERE run_id = ? ORDER BY severity_level DESC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var findings []model.Finding
	for rows.Next() {
		var f model.Finding
		if err := rows.Scan(&f.ID, &f.RunID, &f.Title, &f.Clause, &f.Reason, &f.ReasonReference, &f.SeverityLevel); err != nil {
			return nil, err
		}
		findings = append(findings, f)
	}
	return findings, rows.Err()
}

func (s *DuckStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *DuckStore) Close() error {
	return s.db.Close()
}
