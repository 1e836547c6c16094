package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/casefile/internal/core/domain"
)

type DocumentRepository struct {
	db *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *DocumentRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026083001)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	case_id TEXT NOT NULL,
	batch_id TEXT NOT NULL DEFAULT '',
	filename TEXT NOT NULL,
	storage_key TEXT NOT NULL,
	category TEXT NOT NULL DEFAULT '',
	subcategory TEXT NOT NULL DEFAULT '',
	extraction JSONB,
	summary TEXT NOT NULL DEFAULT '',
	key_insights JSONB NOT NULL DEFAULT '[]'::jsonb,
	annual_cost DOUBLE PRECISION NOT NULL DEFAULT 0,
	one_time_costs JSONB NOT NULL DEFAULT '[]'::jsonb,
	page_count INTEGER NOT NULL DEFAULT 0,
	text_extractable BOOLEAN NOT NULL DEFAULT FALSE,
	status TEXT NOT NULL,
	processing_error TEXT NOT NULL DEFAULT '',
	processing_started_at TIMESTAMPTZ,
	processing_completed_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_batch_id ON documents(batch_id);
CREATE INDEX IF NOT EXISTS idx_documents_case_status ON documents(case_id, status);
CREATE INDEX IF NOT EXISTS idx_documents_created_at ON documents(created_at DESC);

CREATE TABLE IF NOT EXISTS syntheses (
	case_id TEXT NOT NULL,
	category TEXT NOT NULL DEFAULT '',
	summary TEXT NOT NULL DEFAULT '',
	risk_level TEXT NOT NULL DEFAULT '',
	key_findings JSONB NOT NULL DEFAULT '[]'::jsonb,
	recommendations JSONB NOT NULL DEFAULT '[]'::jsonb,
	annual_cost_breakdown JSONB NOT NULL DEFAULT '{}'::jsonb,
	one_time_cost_breakdown JSONB NOT NULL DEFAULT '{}'::jsonb,
	cross_document_themes JSONB NOT NULL DEFAULT '[]'::jsonb,
	overrides JSONB,
	updated_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (case_id, category)
);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *DocumentRepository) Create(ctx context.Context, doc *domain.Document) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO documents (
	id, case_id, batch_id, filename, storage_key, status, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
`,
		doc.ID, doc.CaseID, doc.BatchID, doc.Filename, doc.StorageKey,
		string(doc.Status), doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

const documentColumns = `
id, case_id, batch_id, filename, storage_key, category, subcategory, extraction,
summary, key_insights, annual_cost, one_time_costs, page_count, text_extractable,
status, processing_error, processing_started_at, processing_completed_at, created_at, updated_at`

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	row := r.db.QueryRowContext(ctx, `SELECT`+documentColumns+` FROM documents WHERE id = $1`, id)

	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", errors.New(id))
		}
		return nil, err
	}
	return doc, nil
}

func (r *DocumentRepository) ListByBatch(ctx context.Context, batchID string) ([]domain.Document, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT`+documentColumns+` FROM documents WHERE batch_id = $1 ORDER BY created_at, id`, batchID)
	if err != nil {
		return nil, fmt.Errorf("query batch documents: %w", err)
	}
	defer rows.Close()

	return collectDocuments(rows)
}

func (r *DocumentRepository) ListCompletedByCase(ctx context.Context, caseID string) ([]domain.Document, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT`+documentColumns+` FROM documents WHERE case_id = $1 AND status = $2 ORDER BY created_at, id`,
		caseID, string(domain.StatusCompleted))
	if err != nil {
		return nil, fmt.Errorf("query completed documents: %w", err)
	}
	defer rows.Close()

	return collectDocuments(rows)
}

// UpdateStatus moves a document through the status machine. The WHERE clause
// enforces forward-only transitions; updating zero rows means either the
// document is gone or the transition is not allowed.
func (r *DocumentRepository) UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error {
	now := time.Now().UTC()

	var result sql.Result
	var err error
	switch status {
	case domain.StatusProcessing:
		result, err = r.db.ExecContext(ctx, `
UPDATE documents
SET status = $2, processing_error = '', processing_started_at = $3, updated_at = $3
WHERE id = $1 AND status = 'pending'
`, id, string(status), now)
	case domain.StatusCompleted:
		result, err = r.db.ExecContext(ctx, `
UPDATE documents
SET status = $2, processing_error = '', processing_completed_at = $3, updated_at = $3
WHERE id = $1 AND status = 'processing'
`, id, string(status), now)
	case domain.StatusFailed:
		result, err = r.db.ExecContext(ctx, `
UPDATE documents
SET status = $2, processing_error = $3, processing_completed_at = $4, updated_at = $4
WHERE id = $1 AND status IN ('pending', 'processing')
`, id, string(status), errMessage, now)
	default:
		return domain.WrapError(domain.ErrInvalidInput, "update document status", fmt.Errorf("unsupported target status %q", status))
	}
	if err != nil {
		return fmt.Errorf("update document status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update document status rows: %w", err)
	}
	if affected == 0 {
		return r.transitionConflict(ctx, id, status)
	}
	return nil
}

func (r *DocumentRepository) transitionConflict(ctx context.Context, id string, status domain.DocumentStatus) error {
	var current string
	err := r.db.QueryRowContext(ctx, `SELECT status FROM documents WHERE id = $1`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.WrapError(domain.ErrDocumentNotFound, "update document status", errors.New(id))
	}
	if err != nil {
		return fmt.Errorf("check document status: %w", err)
	}
	return domain.WrapError(domain.ErrInvalidInput, "update document status",
		fmt.Errorf("document %s cannot move from %s to %s", id, current, status))
}

func (r *DocumentRepository) SavePreparation(ctx context.Context, id string, prep domain.Prepared) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE documents
SET page_count = $2, text_extractable = $3, updated_at = $4
WHERE id = $1
`, id, prep.PageCount, prep.TextExtractable, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save preparation: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("save preparation rows: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrDocumentNotFound, "save preparation", errors.New(id))
	}
	return nil
}

// SaveExtraction records the analysis result and completes the document in
// one statement, so a crash cannot leave a completed status without facts.
func (r *DocumentRepository) SaveExtraction(ctx context.Context, id string, category domain.Category, ext *domain.Extraction) error {
	if ext == nil {
		return domain.WrapError(domain.ErrInvalidInput, "save extraction", errors.New("nil extraction"))
	}
	extJSON, err := json.Marshal(ext)
	if err != nil {
		return fmt.Errorf("marshal extraction: %w", err)
	}
	insightsJSON, err := json.Marshal(emptyIfNilStrings(ext.KeyInsights))
	if err != nil {
		return fmt.Errorf("marshal key insights: %w", err)
	}
	costsJSON, err := json.Marshal(emptyIfNilCosts(ext.OneTimeCosts))
	if err != nil {
		return fmt.Errorf("marshal one-time costs: %w", err)
	}

	result, err := r.db.ExecContext(ctx, `
UPDATE documents
SET category = $2, subcategory = $3, extraction = $4, summary = $5, key_insights = $6,
	annual_cost = $7, one_time_costs = $8, status = $9, processing_error = '',
	processing_completed_at = $10, updated_at = $10
WHERE id = $1 AND status = 'processing'
`,
		id, string(category), ext.Subcategory, extJSON, ext.Summary, insightsJSON,
		ext.AnnualCost, costsJSON, string(domain.StatusCompleted), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("save extraction: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("save extraction rows: %w", err)
	}
	if affected == 0 {
		return r.transitionConflict(ctx, id, domain.StatusCompleted)
	}
	return nil
}

// MarkBatchFailed flips every member that has not settled yet. Documents that
// already completed keep their result; failed ones keep their own error.
func (r *DocumentRepository) MarkBatchFailed(ctx context.Context, batchID, errMessage string) error {
	_, err := r.db.ExecContext(ctx, `
UPDATE documents
SET status = $2, processing_error = $3, processing_completed_at = $4, updated_at = $4
WHERE batch_id = $1 AND status IN ('pending', 'processing')
`, batchID, string(domain.StatusFailed), errMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("mark batch failed: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*domain.Document, error) {
	var doc domain.Document
	var extractionRaw, insightsRaw, costsRaw []byte
	var status string

	err := row.Scan(
		&doc.ID, &doc.CaseID, &doc.BatchID, &doc.Filename, &doc.StorageKey,
		&doc.Category, &doc.Subcategory, &extractionRaw,
		&doc.Summary, &insightsRaw, &doc.AnnualCost, &costsRaw,
		&doc.PageCount, &doc.TextExtractable,
		&status, &doc.ProcessingError, &doc.ProcessingStartedAt, &doc.ProcessingCompletedAt,
		&doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}

	doc.Status = domain.DocumentStatus(status)
	if len(extractionRaw) > 0 {
		doc.Extraction = &domain.Extraction{}
		if err := json.Unmarshal(extractionRaw, doc.Extraction); err != nil {
			return nil, fmt.Errorf("unmarshal extraction: %w", err)
		}
	}
	if len(insightsRaw) > 0 {
		if err := json.Unmarshal(insightsRaw, &doc.KeyInsights); err != nil {
			return nil, fmt.Errorf("unmarshal key insights: %w", err)
		}
	}
	if len(costsRaw) > 0 {
		if err := json.Unmarshal(costsRaw, &doc.OneTimeCosts); err != nil {
			return nil, fmt.Errorf("unmarshal one-time costs: %w", err)
		}
	}
	return &doc, nil
}

func collectDocuments(rows *sql.Rows) ([]domain.Document, error) {
	var docs []domain.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return docs, nil
}

func emptyIfNilStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func emptyIfNilCosts(values []domain.CostItem) []domain.CostItem {
	if values == nil {
		return []domain.CostItem{}
	}
	return values
}
