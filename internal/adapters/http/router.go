package httpadapter

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/kirillkom/casefile/internal/core/ports"
	"github.com/kirillkom/casefile/internal/observability/metrics"
)

const maxUploadBytes = 64 << 20

type Router struct {
	submitter ports.BatchSubmitter
	status    ports.BatchStatusReader
	synthesis ports.SynthesisService
	documents ports.DocumentReader

	metrics *metrics.HTTPServerMetrics
	service string
}

func NewRouter(
	submitter ports.BatchSubmitter,
	status ports.BatchStatusReader,
	synthesis ports.SynthesisService,
	documents ports.DocumentReader,
	m *metrics.HTTPServerMetrics,
	service string,
) *Router {
	return &Router{
		submitter: submitter,
		status:    status,
		synthesis: synthesis,
		documents: documents,
		metrics:   m,
		service:   service,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/batches", rt.submitBatch)
	mux.HandleFunc("/v1/batches/", rt.getBatchStatus)
	mux.HandleFunc("/v1/cases/", rt.caseSynthesis)
	mux.HandleFunc("/v1/documents/", rt.getDocumentByID)

	var handler http.Handler = mux
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(rt.service, handler)
	}
	return requestIDMiddleware(accessLogMiddleware(handler))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) submitBatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		rt.submitBatchRefs(w, r)
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart form is required"})
		return
	}

	caseID := strings.TrimSpace(r.FormValue("case_id"))
	if caseID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "form field 'case_id' is required"})
		return
	}
	language := strings.TrimSpace(r.FormValue("language"))

	fileHeaders := r.MultipartForm.File["files"]
	if len(fileHeaders) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "at least one 'files' part is required"})
		return
	}

	uploads := make([]ports.BatchUpload, 0, len(fileHeaders))
	var totalBytes int64
	for _, header := range fileHeaders {
		file, err := header.Open()
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unreadable upload " + header.Filename})
			return
		}
		data, err := io.ReadAll(file)
		file.Close()
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unreadable upload " + header.Filename})
			return
		}
		totalBytes += int64(len(data))
		uploads = append(uploads, ports.BatchUpload{
			Filename:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Data:        data,
		})
	}

	batch, err := rt.submitter.Submit(r.Context(), caseID, language, uploads)
	if err != nil {
		writeError(w, err)
		return
	}

	if rt.metrics != nil {
		rt.metrics.RecordBatchSubmitted(rt.service, len(batch.Members), totalBytes)
	}
	writeJSON(w, http.StatusAccepted, batch)
}

// submitBatchRefs accepts a batch of blobs already present in object storage,
// referenced by key instead of carried in the request.
func (rt *Router) submitBatchRefs(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CaseID    string `json:"case_id"`
		Language  string `json:"language"`
		Documents []struct {
			Filename   string `json:"filename"`
			StorageKey string `json:"storage_key"`
		} `json:"documents"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.CaseID) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "'case_id' is required"})
		return
	}

	uploads := make([]ports.BatchUpload, 0, len(req.Documents))
	for _, doc := range req.Documents {
		if doc.StorageKey == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "every document needs a 'storage_key'"})
			return
		}
		uploads = append(uploads, ports.BatchUpload{
			Filename:   doc.Filename,
			StorageKey: doc.StorageKey,
		})
	}

	batch, err := rt.submitter.Submit(r.Context(), req.CaseID, req.Language, uploads)
	if err != nil {
		writeError(w, err)
		return
	}

	if rt.metrics != nil {
		rt.metrics.RecordBatchSubmitted(rt.service, len(batch.Members), 0)
	}
	writeJSON(w, http.StatusAccepted, batch)
}

func (rt *Router) getBatchStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/batches/")
	if id == "" || strings.Contains(id, "/") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "batch id is required"})
		return
	}

	report, err := rt.status.BatchStatus(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// caseSynthesis serves /v1/cases/{case_id}/synthesis and its overrides
// sub-resource. GET reads the stored aggregate, POST regenerates it, PATCH on
// overrides merges a correction into it.
func (rt *Router) caseSynthesis(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/cases/")
	parts := strings.Split(rest, "/")

	switch {
	case len(parts) == 2 && parts[1] == "synthesis":
		caseID := parts[0]
		if caseID == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "case id is required"})
			return
		}
		switch r.Method {
		case http.MethodGet:
			rt.getSynthesis(w, r, caseID)
		case http.MethodPost:
			rt.regenerateSynthesis(w, r, caseID)
		default:
			writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		}
	case len(parts) == 3 && parts[1] == "synthesis" && parts[2] == "overrides":
		if r.Method != http.MethodPatch {
			writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
			return
		}
		rt.patchOverrides(w, r, parts[0])
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	}
}

func (rt *Router) getSynthesis(w http.ResponseWriter, r *http.Request, caseID string) {
	result, err := rt.synthesis.Get(r.Context(), caseID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) regenerateSynthesis(w http.ResponseWriter, r *http.Request, caseID string) {
	var req struct {
		Language string `json:"language"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
			return
		}
	}

	result, err := rt.synthesis.Regenerate(r.Context(), caseID, req.Language)
	if err != nil {
		writeError(w, err)
		return
	}
	if result == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "no completed documents, synthesis removed"})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) patchOverrides(w http.ResponseWriter, r *http.Request, caseID string) {
	if caseID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "case id is required"})
		return
	}

	var patch map[string]any
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	result, err := rt.synthesis.ApplyOverrides(r.Context(), caseID, patch)
	if err != nil {
		writeError(w, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordOverridesApplied(rt.service)
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) getDocumentByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/documents/")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "document id is required"})
		return
	}

	doc, err := rt.documents.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
