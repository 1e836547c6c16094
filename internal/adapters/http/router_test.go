package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kirillkom/casefile/internal/core/domain"
	"github.com/kirillkom/casefile/internal/core/ports"
)

type submitterFake struct {
	err      error
	lastCase string
	lastLang string
	uploads  []ports.BatchUpload
}

func (f *submitterFake) Submit(_ context.Context, caseID, language string, uploads []ports.BatchUpload) (*domain.Batch, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.lastCase = caseID
	f.lastLang = language
	f.uploads = uploads

	members := make([]domain.BatchMember, 0, len(uploads))
	for i, upload := range uploads {
		members = append(members, domain.BatchMember{
			DocumentID: "doc-" + string(rune('a'+i)),
			Filename:   upload.Filename,
		})
	}
	return &domain.Batch{ID: "batch-1", CaseID: caseID, Members: members}, nil
}

type statusFake struct {
	report *ports.BatchStatusReport
	err    error
}

func (f *statusFake) BatchStatus(_ context.Context, batchID string) (*ports.BatchStatusReport, error) {
	if f.err != nil {
		return nil, f.err
	}
	report := *f.report
	report.BatchID = batchID
	return &report, nil
}

type synthesisFake struct {
	result *domain.Synthesis
	err    error

	lastPatch map[string]any
}

func (f *synthesisFake) Get(context.Context, string) (*domain.Synthesis, error) {
	return f.result, f.err
}

func (f *synthesisFake) Regenerate(_ context.Context, caseID, _ string) (*domain.Synthesis, error) {
	return f.result, f.err
}

func (f *synthesisFake) ApplyOverrides(_ context.Context, _ string, patch map[string]any) (*domain.Synthesis, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.lastPatch = patch
	return f.result, nil
}

type documentsFake struct {
	doc *domain.Document
	err error
}

func (f *documentsFake) GetByID(context.Context, string) (*domain.Document, error) {
	return f.doc, f.err
}

func newTestHandler(submitter *submitterFake, status *statusFake, synthesis *synthesisFake, documents *documentsFake) http.Handler {
	if submitter == nil {
		submitter = &submitterFake{}
	}
	if status == nil {
		status = &statusFake{report: &ports.BatchStatusReport{}}
	}
	if synthesis == nil {
		synthesis = &synthesisFake{result: &domain.Synthesis{CaseID: "case-1"}}
	}
	if documents == nil {
		documents = &documentsFake{doc: &domain.Document{ID: "doc-1"}}
	}
	return NewRouter(submitter, status, synthesis, documents, nil, "api").Handler()
}

func multipartBatch(t *testing.T, caseID string, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if err := writer.WriteField("case_id", caseID); err != nil {
		t.Fatalf("WriteField() error = %v", err)
	}
	for name, content := range files {
		part, err := writer.CreateFormFile("files", name)
		if err != nil {
			t.Fatalf("CreateFormFile() error = %v", err)
		}
		if _, err := part.Write([]byte(content)); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	return &body, writer.FormDataContentType()
}

func TestHealthzEndpoint(t *testing.T) {
	handler := newTestHandler(nil, nil, nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
}

func TestSubmitBatchAccepted(t *testing.T) {
	submitter := &submitterFake{}
	handler := newTestHandler(submitter, nil, nil, nil)

	body, contentType := multipartBatch(t, "case-1", map[string]string{
		"a.pdf": "first",
		"b.pdf": "second",
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/batches", body)
	req.Header.Set("Content-Type", contentType)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", res.Code, res.Body.String())
	}
	if submitter.lastCase != "case-1" {
		t.Fatalf("case id = %q", submitter.lastCase)
	}
	if len(submitter.uploads) != 2 {
		t.Fatalf("uploads = %d, want 2", len(submitter.uploads))
	}

	var batch map[string]any
	if err := json.NewDecoder(res.Body).Decode(&batch); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if batch["id"] != "batch-1" {
		t.Fatalf("unexpected response: %+v", batch)
	}
}

func TestSubmitBatchByStorageRefs(t *testing.T) {
	submitter := &submitterFake{}
	handler := newTestHandler(submitter, nil, nil, nil)

	payload := bytes.NewBufferString(`{
		"case_id": "case-2",
		"language": "de",
		"documents": [{"filename": "old.pdf", "storage_key": "cases/case-2/old.pdf"}]
	}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/batches", payload)
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", res.Code, res.Body.String())
	}
	if submitter.lastLang != "de" {
		t.Fatalf("language = %q", submitter.lastLang)
	}
	if len(submitter.uploads) != 1 || submitter.uploads[0].StorageKey != "cases/case-2/old.pdf" {
		t.Fatalf("uploads = %+v", submitter.uploads)
	}
}

func TestSubmitBatchByStorageRefsRequiresKeys(t *testing.T) {
	handler := newTestHandler(nil, nil, nil, nil)

	payload := bytes.NewBufferString(`{"case_id": "case-2", "documents": [{"filename": "old.pdf"}]}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/batches", payload)
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestSubmitBatchRequiresCaseID(t *testing.T) {
	handler := newTestHandler(nil, nil, nil, nil)

	body, contentType := multipartBatch(t, "", map[string]string{"a.pdf": "x"})
	req := httptest.NewRequest(http.MethodPost, "/v1/batches", body)
	req.Header.Set("Content-Type", contentType)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestSubmitBatchRequiresFiles(t *testing.T) {
	handler := newTestHandler(nil, nil, nil, nil)

	body, contentType := multipartBatch(t, "case-1", nil)
	req := httptest.NewRequest(http.MethodPost, "/v1/batches", body)
	req.Header.Set("Content-Type", contentType)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestGetBatchStatus(t *testing.T) {
	status := &statusFake{report: &ports.BatchStatusReport{
		CaseID: "case-1",
		Status: domain.BatchProcessing,
		Progress: domain.BatchProgress{
			Total:      2,
			Completed:  1,
			Processing: 1,
		},
	}}
	handler := newTestHandler(nil, status, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/batches/batch-7", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var report ports.BatchStatusReport
	if err := json.NewDecoder(res.Body).Decode(&report); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if report.BatchID != "batch-7" || report.Status != domain.BatchProcessing {
		t.Fatalf("unexpected report: %+v", report)
	}
}

func TestGetBatchStatusUnknownBatch(t *testing.T) {
	status := &statusFake{err: domain.WrapError(domain.ErrBatchNotFound, "batch status", errors.New("no documents"))}
	handler := newTestHandler(nil, status, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/batches/missing", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestGetSynthesisNotFound(t *testing.T) {
	synthesis := &synthesisFake{err: domain.WrapError(domain.ErrSynthesisNotFound, "get synthesis", errors.New("no row"))}
	handler := newTestHandler(nil, nil, synthesis, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/cases/case-1/synthesis", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestRegenerateSynthesisWithoutDocuments(t *testing.T) {
	synthesis := &synthesisFake{result: nil}
	handler := newTestHandler(nil, nil, synthesis, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/cases/case-1/synthesis", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
}

func TestPatchOverrides(t *testing.T) {
	now := time.Now().UTC()
	synthesis := &synthesisFake{result: &domain.Synthesis{CaseID: "case-1", UpdatedAt: now}}
	handler := newTestHandler(nil, nil, synthesis, nil)

	payload := bytes.NewBufferString(`{"risk_level": "high", "stale_note": null}`)
	req := httptest.NewRequest(http.MethodPatch, "/v1/cases/case-1/synthesis/overrides", payload)
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if synthesis.lastPatch["risk_level"] != "high" {
		t.Fatalf("patch = %+v", synthesis.lastPatch)
	}
	if value, ok := synthesis.lastPatch["stale_note"]; !ok || value != nil {
		t.Fatalf("null value should survive decoding, patch = %+v", synthesis.lastPatch)
	}
}

func TestPatchOverridesRejectsInvalidJSON(t *testing.T) {
	handler := newTestHandler(nil, nil, nil, nil)

	req := httptest.NewRequest(http.MethodPatch, "/v1/cases/case-1/synthesis/overrides", bytes.NewBufferString("{broken"))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestGetDocumentByID(t *testing.T) {
	documents := &documentsFake{doc: &domain.Document{ID: "doc-1", Status: domain.StatusCompleted}}
	handler := newTestHandler(nil, nil, nil, documents)

	req := httptest.NewRequest(http.MethodGet, "/v1/documents/doc-1", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
}

func TestTemporaryErrorMapsToServiceUnavailable(t *testing.T) {
	submitter := &submitterFake{err: domain.WrapError(domain.ErrTemporary, "publish batch event", errors.New("nats down"))}
	handler := newTestHandler(submitter, nil, nil, nil)

	body, contentType := multipartBatch(t, "case-1", map[string]string{"a.pdf": "x"})
	req := httptest.NewRequest(http.MethodPost, "/v1/batches", body)
	req.Header.Set("Content-Type", contentType)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", res.Code)
	}
}
