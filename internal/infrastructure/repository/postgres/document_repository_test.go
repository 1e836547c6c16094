package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kirillkom/casefile/internal/core/domain"
)

func newMockRepo(t *testing.T) (*DocumentRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return NewDocumentRepository(db), mock, func() { _ = db.Close() }
}

func documentRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "case_id", "batch_id", "filename", "storage_key", "category", "subcategory", "extraction",
		"summary", "key_insights", "annual_cost", "one_time_costs", "page_count", "text_extractable",
		"status", "processing_error", "processing_started_at", "processing_completed_at", "created_at", "updated_at",
	})
}

func TestDocumentRepositoryGetByIDNotFound(t *testing.T) {
	repo, mock, closeDB := newMockRepo(t)
	defer closeDB()

	mock.ExpectQuery("FROM documents").
		WithArgs("missing").
		WillReturnRows(documentRows())

	_, err := repo.GetByID(context.Background(), "missing")
	if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected document not found, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestDocumentRepositoryGetByIDDecodesExtraction(t *testing.T) {
	repo, mock, closeDB := newMockRepo(t)
	defer closeDB()

	now := time.Now()
	rows := documentRows().AddRow(
		"doc-1", "case-1", "batch-1", "report.pdf", "cases/case-1/doc-1_report.pdf",
		string(domain.CategoryTaxNotice), "property_tax",
		[]byte(`{"summary":"tax assessment","key_insights":["due june"],"annual_cost":1200,"one_time_costs":[]}`),
		"tax assessment", []byte(`["due june"]`), 1200.0, []byte(`[]`), 3, true,
		string(domain.StatusCompleted), "", now, now, now, now,
	)
	mock.ExpectQuery("FROM documents").
		WithArgs("doc-1").
		WillReturnRows(rows)

	doc, err := repo.GetByID(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if doc.Category != domain.CategoryTaxNotice {
		t.Fatalf("category = %s", doc.Category)
	}
	if doc.Extraction == nil || doc.Extraction.AnnualCost != 1200 {
		t.Fatalf("extraction not decoded: %+v", doc.Extraction)
	}
	if len(doc.KeyInsights) != 1 {
		t.Fatalf("key insights = %v", doc.KeyInsights)
	}
}

func TestDocumentRepositoryUpdateStatusGuardsTransitions(t *testing.T) {
	repo, mock, closeDB := newMockRepo(t)
	defer closeDB()

	// Zero rows updated, document exists in a terminal state.
	mock.ExpectExec("UPDATE documents").
		WithArgs("doc-1", string(domain.StatusProcessing), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT status FROM documents").
		WithArgs("doc-1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow(string(domain.StatusCompleted)))

	err := repo.UpdateStatus(context.Background(), "doc-1", domain.StatusProcessing, "")
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid transition error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestDocumentRepositoryUpdateStatusMissingDocument(t *testing.T) {
	repo, mock, closeDB := newMockRepo(t)
	defer closeDB()

	mock.ExpectExec("UPDATE documents").
		WithArgs("ghost", string(domain.StatusFailed), "boom", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT status FROM documents").
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"status"}))

	err := repo.UpdateStatus(context.Background(), "ghost", domain.StatusFailed, "boom")
	if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDocumentRepositoryUpdateStatusProcessing(t *testing.T) {
	repo, mock, closeDB := newMockRepo(t)
	defer closeDB()

	mock.ExpectExec("UPDATE documents").
		WithArgs("doc-1", string(domain.StatusProcessing), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.UpdateStatus(context.Background(), "doc-1", domain.StatusProcessing, ""); err != nil {
		t.Fatalf("UpdateStatus() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestDocumentRepositorySaveExtractionCompletesDocument(t *testing.T) {
	repo, mock, closeDB := newMockRepo(t)
	defer closeDB()

	ext := &domain.Extraction{
		Summary:      "inspection findings",
		KeyInsights:  []string{"roof damage"},
		AnnualCost:   0,
		OneTimeCosts: []domain.CostItem{{Description: "roof repair", Amount: 15000}},
		Subcategory:  "structural",
	}
	mock.ExpectExec("UPDATE documents").
		WithArgs("doc-1", string(domain.CategoryInspection), "structural", sqlmock.AnyArg(), "inspection findings",
			sqlmock.AnyArg(), 0.0, sqlmock.AnyArg(), string(domain.StatusCompleted), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.SaveExtraction(context.Background(), "doc-1", domain.CategoryInspection, ext); err != nil {
		t.Fatalf("SaveExtraction() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestDocumentRepositorySaveExtractionRejectsNonProcessing(t *testing.T) {
	repo, mock, closeDB := newMockRepo(t)
	defer closeDB()

	mock.ExpectExec("UPDATE documents").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT status FROM documents").
		WithArgs("doc-1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow(string(domain.StatusFailed)))

	err := repo.SaveExtraction(context.Background(), "doc-1", domain.CategoryOther, &domain.Extraction{})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
}

func TestDocumentRepositoryMarkBatchFailedOnlyTouchesUnsettled(t *testing.T) {
	repo, mock, closeDB := newMockRepo(t)
	defer closeDB()

	mock.ExpectExec("UPDATE documents").
		WithArgs("batch-1", string(domain.StatusFailed), "infrastructure down", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))

	if err := repo.MarkBatchFailed(context.Background(), "batch-1", "infrastructure down"); err != nil {
		t.Fatalf("MarkBatchFailed() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestDocumentRepositoryListByBatch(t *testing.T) {
	repo, mock, closeDB := newMockRepo(t)
	defer closeDB()

	now := time.Now()
	rows := documentRows().
		AddRow("doc-1", "case-1", "batch-1", "a.pdf", "k1", "", "", nil, "", []byte(`[]`), 0.0, []byte(`[]`), 0, false,
			string(domain.StatusCompleted), "", nil, nil, now, now).
		AddRow("doc-2", "case-1", "batch-1", "b.pdf", "k2", "", "", nil, "", []byte(`[]`), 0.0, []byte(`[]`), 0, false,
			string(domain.StatusFailed), "download failed", nil, nil, now, now)
	mock.ExpectQuery("FROM documents").
		WithArgs("batch-1").
		WillReturnRows(rows)

	docs, err := repo.ListByBatch(context.Background(), "batch-1")
	if err != nil {
		t.Fatalf("ListByBatch() error = %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}
	if docs[1].ProcessingError != "download failed" {
		t.Fatalf("processing error = %q", docs[1].ProcessingError)
	}
}
